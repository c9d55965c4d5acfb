// Package report holds the result of an evaluation run and renders it as
// markdown tables or JSON.
package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/okian/faceval/internal/domain/calibration"
	"github.com/okian/faceval/internal/domain/scoring"
	"github.com/okian/faceval/internal/domain/taxonomy"
)

// Report is the outcome of one evaluation run over every configured model.
type Report struct {
	RunID       string                     `json:"run_id"`
	GeneratedAt time.Time                  `json:"generated_at"`
	GroundTruth string                     `json:"ground_truth"`
	Harmonized  map[string]string          `json:"harmonization_versions,omitempty"`
	Models      []ModelReport              `json:"models"`
	Agreement   []*scoring.AgreementResult `json:"agreement,omitempty"`
}

// ModelReport is the evaluation of a single model. Error is set, and the
// metric sections are empty, when the model's run failed.
type ModelReport struct {
	Model       string                `json:"model"`
	Subjects    int                   `json:"subjects"`
	Join        *JoinSummary          `json:"join,omitempty"`
	Attributes  []AttributeReport     `json:"attributes,omitempty"`
	Calibration []*calibration.Result `json:"calibration,omitempty"`
	Duration    time.Duration         `json:"duration_ns"`
	Error       string                `json:"error,omitempty"`
}

// Failed reports whether the model's run aborted.
func (m ModelReport) Failed() bool { return m.Error != "" }

// Attribute returns the scores for attr.
func (m ModelReport) Attribute(attr taxonomy.Attribute) (AttributeReport, bool) {
	for _, a := range m.Attributes {
		if a.Attribute == attr {
			return a, true
		}
	}
	return AttributeReport{}, false
}

// JoinSummary mirrors join.Stats.
type JoinSummary struct {
	Truth              int    `json:"truth"`
	Predictions        int    `json:"predictions"`
	Joined             int    `json:"joined"`
	DroppedTruth       int    `json:"dropped_truth"`
	DroppedPredictions int    `json:"dropped_predictions"`
	Warning            string `json:"warning,omitempty"`
}

// AttributeReport holds the categorical and, for age, ordinal scores of one
// attribute.
type AttributeReport struct {
	Attribute taxonomy.Attribute   `json:"attribute"`
	Labels    []string             `json:"labels"`
	Accuracy  float64              `json:"accuracy"`
	MacroF1   float64              `json:"macro_f1"`
	Confusion [][]float64          `json:"confusion"`
	Counts    [][]float64          `json:"counts"`
	PerClass  []scoring.ClassScore `json:"per_class"`
	Ordinal   *OrdinalReport       `json:"ordinal,omitempty"`
}

// OrdinalReport holds bin-distance metrics.
type OrdinalReport struct {
	MeanBinDistance float64 `json:"mean_bin_distance"`
	Within1         float64 `json:"within_1"`
	Within2         float64 `json:"within_2"`
}

// Model returns the report of the named model.
func (r *Report) Model(name string) (ModelReport, bool) {
	for _, m := range r.Models {
		if m.Model == name {
			return m, true
		}
	}
	return ModelReport{}, false
}

// Failed lists the models whose run aborted.
func (r *Report) Failed() []string {
	var out []string
	for _, m := range r.Models {
		if m.Failed() {
			out = append(out, m.Model)
		}
	}
	return out
}

// WriteJSON encodes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
