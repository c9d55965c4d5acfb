// Package config defines faceval configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config holding every default.
// - Load layers a YAML file and FACEVAL_ environment variables on top.
// - Validation failures wrap ErrInvalidConfig; I/O and parse failures wrap ErrLoadConfig.
package config

import (
	"runtime"
)

// Prediction input formats.
const (
	FormatCSV      = "csv"
	FormatDeepFace = "deepface"
	FormatFaceLLM  = "facellm"
)

// Confidence bucketing strategies.
const (
	BucketingFixed    = "fixed"
	BucketingDistinct = "distinct"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address of `faceval serve`, e.g. ":9080".
	Addr string `koanf:"addr"`

	// GroundTruth is the path of the ground-truth CSV.
	GroundTruth string `koanf:"ground_truth"`

	// Output is an optional path for the JSON report.
	Output string `koanf:"output"`

	// WorkerCount bounds how many models are evaluated concurrently.
	WorkerCount int `koanf:"worker_count"`

	// MaxDropRatio is the tolerated fraction of unjoined rows per side.
	MaxDropRatio float64 `koanf:"max_drop_ratio"`

	// CalibrationBins is the bucket count of fixed-width calibration.
	CalibrationBins int `koanf:"calibration_bins"`

	// Attributes lists the evaluated attributes; empty means all.
	Attributes []string `koanf:"attributes"`

	// Harmonization extends the built-in label tables.
	Harmonization Harmonization `koanf:"harmonization"`

	// Models lists the prediction sets to evaluate.
	Models []Model `koanf:"models"`
}

// Harmonization holds extra raw->canonical entries per attribute. A non-empty
// Version replaces the built-in table version for every extended table.
type Harmonization struct {
	Version string            `koanf:"version"`
	Gender  map[string]string `koanf:"gender"`
	Race    map[string]string `koanf:"race"`
	Age     map[string]string `koanf:"age"`
}

// Model describes one model's prediction file.
type Model struct {
	// Name labels the model in reports and metrics.
	Name string `koanf:"name"`

	// Predictions is the path of the prediction file.
	Predictions string `koanf:"predictions"`

	// Format is csv (default) or a raw JSONL format: deepface, facellm.
	Format string `koanf:"format"`

	// ConfidenceFields maps an attribute to the confidence field calibrated
	// for it. Attributes not listed use their own name.
	ConfidenceFields map[string]string `koanf:"confidence_fields"`

	// Bucketing is fixed (default) or distinct.
	Bucketing string `koanf:"bucketing"`

	// ConfidenceScale divides a confidence field on load, e.g. 100 for percents.
	ConfidenceScale map[string]float64 `koanf:"confidence_scale"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		WorkerCount:     runtime.NumCPU(),
		MaxDropRatio:    0.05,
		CalibrationBins: 10,
	}
}

// Field returns the confidence field calibrated for attr.
func (m Model) Field(attr string) string {
	if f, ok := m.ConfidenceFields[attr]; ok && f != "" {
		return f
	}
	return attr
}
