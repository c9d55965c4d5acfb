package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/okian/faceval/internal/domain/taxonomy"
)

// newTable creates a markdown table with the formatting shared by every
// section of the text report.
func newTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

func render(w io.Writer, headers []string, rows [][]string) error {
	table := newTable(headers, w)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// WriteText renders r as a sequence of markdown tables: a summary, then per
// model the confusion matrices, per-class scores and reliability buckets,
// then model-vs-model agreement.
func WriteText(w io.Writer, r *Report) error {
	if _, err := fmt.Fprintf(w, "# Evaluation %s\n\nGround truth: %s\n\n", r.RunID, r.GroundTruth); err != nil {
		return err
	}
	if err := writeSummary(w, r); err != nil {
		return err
	}
	for _, m := range r.Models {
		if m.Failed() {
			continue
		}
		if err := writeModel(w, m); err != nil {
			return err
		}
	}
	if len(r.Agreement) > 0 {
		if err := writeAgreement(w, r); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(w io.Writer, r *Report) error {
	rows := make([][]string, 0, len(r.Models))
	for _, m := range r.Models {
		if m.Failed() {
			rows = append(rows, []string{m.Model, "-", "-", "-", "-", "-", "FAILED: " + m.Error})
			continue
		}
		row := []string{m.Model, strconv.Itoa(m.Subjects)}
		for _, attr := range taxonomy.All() {
			a, ok := m.Attribute(attr)
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, fmt.Sprintf("%s / %s", pct(a.Accuracy), num(a.MacroF1)))
		}
		mbd := "-"
		if a, ok := m.Attribute(taxonomy.Age); ok && a.Ordinal != nil {
			mbd = num(a.Ordinal.MeanBinDistance)
		}
		note := ""
		if m.Join != nil && m.Join.Warning != "" {
			note = m.Join.Warning
		}
		rows = append(rows, append(row, mbd, note))
	}
	if _, err := io.WriteString(w, "## Summary (accuracy / macro-F1)\n\n"); err != nil {
		return err
	}
	if err := render(w, []string{"Model", "Subjects", "Gender", "Race", "Age", "Age bin MAE", "Notes"}, rows); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func writeModel(w io.Writer, m ModelReport) error {
	for _, a := range m.Attributes {
		if _, err := fmt.Fprintf(w, "## %s: %s\n\nRow-normalized confusion (rows = truth)\n\n", m.Model, a.Attribute); err != nil {
			return err
		}
		headers := append([]string{"truth \\ predicted"}, a.Labels...)
		rows := make([][]string, len(a.Confusion))
		for i, cells := range a.Confusion {
			row := make([]string, 0, len(cells)+1)
			row = append(row, a.Labels[i])
			for _, v := range cells {
				row = append(row, num(v))
			}
			rows[i] = row
		}
		if err := render(w, headers, rows); err != nil {
			return err
		}

		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		rows = make([][]string, 0, len(a.PerClass))
		for _, c := range a.PerClass {
			rows = append(rows, []string{c.Label, num(c.Precision), num(c.Recall), num(c.F1), strconv.Itoa(c.Support)})
		}
		if err := render(w, []string{"Label", "Precision", "Recall", "F1", "Support"}, rows); err != nil {
			return err
		}
		if a.Ordinal != nil {
			if _, err := fmt.Fprintf(w, "\nMean bin distance %s, within 1 bin %s, within 2 bins %s\n",
				num(a.Ordinal.MeanBinDistance), pct(a.Ordinal.Within1), pct(a.Ordinal.Within2)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}

	for _, c := range m.Calibration {
		if _, err := fmt.Fprintf(w, "## %s: calibration of %s against %s (%s)\n\nECE %s over %d rows, %d skipped\n\n",
			m.Model, c.Attribute, c.Field, c.Strategy, num(c.ECE), c.Total, c.Skipped); err != nil {
			return err
		}
		rows := make([][]string, 0, len(c.Buckets))
		for _, b := range c.Buckets {
			rows = append(rows, []string{
				fmt.Sprintf("[%s, %s]", num(b.Lo), num(b.Hi)),
				num(b.MeanConfidence),
				num(b.Accuracy),
				strconv.Itoa(b.Count),
			})
		}
		if err := render(w, []string{"Bucket", "Mean confidence", "Accuracy", "Count"}, rows); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

func writeAgreement(w io.Writer, r *Report) error {
	if _, err := io.WriteString(w, "## Model agreement\n\n"); err != nil {
		return err
	}
	rows := make([][]string, 0, len(r.Agreement))
	for _, a := range r.Agreement {
		attrs := make([]string, 0, len(a.Rates))
		for attr := range a.Rates {
			attrs = append(attrs, string(attr))
		}
		sort.Strings(attrs)
		parts := make([]string, len(attrs))
		for i, attr := range attrs {
			parts[i] = fmt.Sprintf("%s %s", attr, pct(a.Rates[taxonomy.Attribute(attr)]))
		}
		rates := strings.Join(parts, ", ")
		gap := "-"
		if a.MeanAgeBinGap != nil {
			gap = num(*a.MeanAgeBinGap)
		}
		rows = append(rows, []string{a.ModelA, a.ModelB, strconv.Itoa(a.Shared), rates, gap})
	}
	if err := render(w, []string{"Model A", "Model B", "Shared", "Agreement", "Age bin gap"}, rows); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}
