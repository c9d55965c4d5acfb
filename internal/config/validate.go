package config

import (
	"fmt"
	"strings"
)

var validAttributes = map[string]bool{"gender": true, "race": true, "age": true}

// Validate checks value ranges and model definitions. Every failure wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	if c.WorkerCount <= 0 {
		return invalid("worker_count must be positive, got %d", c.WorkerCount)
	}
	if c.MaxDropRatio < 0 || c.MaxDropRatio > 1 {
		return invalid("max_drop_ratio must be within [0,1], got %g", c.MaxDropRatio)
	}
	if c.CalibrationBins <= 0 {
		return invalid("calibration_bins must be positive, got %d", c.CalibrationBins)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	for _, a := range c.Attributes {
		if !validAttributes[strings.ToLower(strings.TrimSpace(a))] {
			return invalid("unknown attribute %q", a)
		}
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Name == "" {
			return invalid("models[%d]: name must not be empty", i)
		}
		if seen[m.Name] {
			return invalid("models[%d]: duplicate model name %q", i, m.Name)
		}
		seen[m.Name] = true
		if m.Predictions == "" {
			return invalid("model %s: predictions must not be empty", m.Name)
		}
		switch m.Format {
		case "", FormatCSV, FormatDeepFace, FormatFaceLLM:
		default:
			return invalid("model %s: unknown format %q", m.Name, m.Format)
		}
		switch m.Bucketing {
		case "", BucketingFixed, BucketingDistinct:
		default:
			return invalid("model %s: unknown bucketing %q", m.Name, m.Bucketing)
		}
		for attr := range m.ConfidenceFields {
			if !validAttributes[attr] {
				return invalid("model %s: confidence_fields has unknown attribute %q", m.Name, attr)
			}
		}
		for field, scale := range m.ConfidenceScale {
			if scale <= 0 {
				return invalid("model %s: confidence_scale[%s] must be positive", m.Name, field)
			}
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
