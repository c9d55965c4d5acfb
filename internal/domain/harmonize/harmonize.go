// Package harmonize maps the raw labels emitted by models and annotators onto
// the canonical taxonomy labels, using explicit versioned tables.
package harmonize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/taxonomy"
)

// DefaultVersion identifies the tables returned by DefaultTables.
const DefaultVersion = "fairface-v1"

// identityVersion is reported for attributes no table was given for.
const identityVersion = "canonical"

// Table maps raw labels of one attribute onto canonical labels.
type Table struct {
	Attribute taxonomy.Attribute
	Version   string
	Entries   map[string]string
}

// With returns a copy of t with extra entries layered on top.
func (t Table) With(version string, entries map[string]string) Table {
	out := Table{
		Attribute: t.Attribute,
		Version:   t.Version,
		Entries:   make(map[string]string, len(t.Entries)+len(entries)),
	}
	for k, v := range t.Entries {
		out.Entries[k] = v
	}
	for k, v := range entries {
		out.Entries[k] = v
	}
	if version != "" {
		out.Version = version
	}
	return out
}

// DefaultTables returns the FairFace harmonization tables. Canonical labels map
// to themselves implicitly and are not listed.
func DefaultTables() []Table {
	return []Table{
		{
			Attribute: taxonomy.Gender,
			Version:   DefaultVersion,
			Entries: map[string]string{
				"Man":   taxonomy.Male,
				"Woman": taxonomy.Female,
			},
		},
		{
			Attribute: taxonomy.Race,
			Version:   DefaultVersion,
			Entries: map[string]string{
				"Southeast Asian": taxonomy.Asian,
				"East Asian":      taxonomy.Asian,
				"Latino Hispanic": taxonomy.LatinoHispanic,
				"Latino/Hispanic": taxonomy.LatinoHispanic,
				"Middle_Eastern":  taxonomy.MiddleEastern,
			},
		},
		{
			Attribute: taxonomy.Age,
			Version:   DefaultVersion,
			Entries: map[string]string{
				"more than 70": taxonomy.Age70Plus,
			},
		},
	}
}

type compiled struct {
	version   string
	entries   map[string]string
	canonical map[string]string
}

// Harmonizer resolves raw labels through its tables. It is immutable and safe
// for concurrent use.
type Harmonizer struct {
	tables map[taxonomy.Attribute]compiled
}

// New validates tables and builds a Harmonizer. Every attribute gets identity
// entries for its canonical labels, so harmonizing twice is the same as once.
func New(tables ...Table) (*Harmonizer, error) {
	h := &Harmonizer{tables: make(map[taxonomy.Attribute]compiled, len(tables))}
	for _, t := range tables {
		tax, err := taxonomy.For(t.Attribute)
		if err != nil {
			return nil, err
		}
		if _, dup := h.tables[t.Attribute]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTable, t.Attribute)
		}
		c := compiled{version: t.Version, entries: identity(tax), canonical: identity(tax)}
		for raw, target := range t.Entries {
			if _, err := tax.Index(target); err != nil {
				return nil, fmt.Errorf("table %s entry %q: %w", t.Version, raw, err)
			}
			key := fold(raw)
			if canonical, ok := c.canonical[key]; ok && canonical != target {
				return nil, fmt.Errorf("%w: table %s maps %s label %q to %q",
					ErrCanonicalRemapped, t.Version, t.Attribute, canonical, target)
			}
			c.entries[key] = target
		}
		h.tables[t.Attribute] = c
	}
	for _, attr := range taxonomy.All() {
		if _, ok := h.tables[attr]; !ok {
			h.tables[attr] = compiled{version: identityVersion, entries: identity(attr.Taxonomy())}
		}
	}
	return h, nil
}

// Default returns a Harmonizer over DefaultTables.
func Default() *Harmonizer {
	h, err := New(DefaultTables()...)
	if err != nil {
		panic(err)
	}
	return h
}

// Version returns the table version used for attr.
func (h *Harmonizer) Version(attr taxonomy.Attribute) string {
	return h.tables[attr].version
}

// Harmonize maps raw onto a canonical label of attr. Lookup ignores
// surrounding whitespace and case.
func (h *Harmonizer) Harmonize(attr taxonomy.Attribute, raw string) (string, error) {
	t, ok := h.tables[attr]
	if !ok {
		return "", fmt.Errorf("%w: %q", taxonomy.ErrUnknownAttribute, string(attr))
	}
	if out, ok := t.entries[fold(raw)]; ok {
		return out, nil
	}
	return "", &UnknownLabelError{Attribute: attr, Raw: raw, Version: t.version}
}

// HarmonizeRecord returns a copy of rec with every attribute value harmonized.
func (h *Harmonizer) HarmonizeRecord(rec model.LabelRecord) (model.LabelRecord, error) {
	out := rec.Clone()
	// sorted so the first reported error is deterministic
	attrs := make([]taxonomy.Attribute, 0, len(rec.Values))
	for a := range rec.Values {
		attrs = append(attrs, a)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i] < attrs[j] })
	for _, a := range attrs {
		v, err := h.Harmonize(a, rec.Values[a])
		if err != nil {
			return model.LabelRecord{}, fmt.Errorf("subject %d: %w", rec.SubjectID, err)
		}
		out.Values[a] = v
	}
	return out, nil
}

// HarmonizeRecords harmonizes recs in order, stopping at the first failure.
func (h *Harmonizer) HarmonizeRecords(recs []model.LabelRecord) ([]model.LabelRecord, error) {
	out := make([]model.LabelRecord, len(recs))
	for i, r := range recs {
		hr, err := h.HarmonizeRecord(r)
		if err != nil {
			return nil, err
		}
		out[i] = hr
	}
	return out, nil
}

// BinAge maps a numeric age in years onto its age bin.
func BinAge(years int) (string, error) {
	switch {
	case years < 0:
		return "", fmt.Errorf("%w: %d", ErrNegativeAge, years)
	case years <= 2:
		return taxonomy.Age0to2, nil
	case years <= 9:
		return taxonomy.Age3to9, nil
	case years >= 70:
		return taxonomy.Age70Plus, nil
	}
	// 10-69 are decade bins starting at index 2
	return taxonomy.Age.Taxonomy().Label(years/10 + 1), nil
}

func identity(tax taxonomy.Taxonomy) map[string]string {
	m := make(map[string]string, tax.Len())
	for _, l := range tax.Labels() {
		m[fold(l)] = l
	}
	return m
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
