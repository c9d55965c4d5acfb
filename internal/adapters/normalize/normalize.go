// Package normalize turns raw batch-inference JSONL output into label records.
//
// Every input line is an envelope {image_path, model, raw_output, status}.
// Lines whose status is not "ok" are skipped and counted.
package normalize

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/okian/faceval/internal/domain/harmonize"
	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/taxonomy"
	"github.com/okian/faceval/pkg/logger"
	"github.com/okian/faceval/pkg/metrics"
)

// StatusOK marks a successful inference envelope.
const StatusOK = "ok"

// Envelope is one line of batch-inference output.
type Envelope struct {
	ImagePath string          `json:"image_path"`
	Model     string          `json:"model"`
	RawOutput json.RawMessage `json:"raw_output"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
}

// Prediction is a decoded model output before harmonization. Labels hold the
// model's own vocabulary; Confidences are in the model's own scale.
type Prediction struct {
	Labels      map[taxonomy.Attribute]string
	Confidences map[string]float64
}

// Decoder extracts a prediction from a raw_output payload.
type Decoder interface {
	Format() string
	Decode(raw json.RawMessage) (Prediction, error)
}

// ForFormat returns the decoder registered under name.
func ForFormat(name string) (Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case formatDeepFace:
		return DeepFace{}, nil
	case formatFaceLLM:
		return FaceLLM{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Stats counts the lines seen by Read.
type Stats struct {
	Lines      int
	Normalized int
	Skipped    int
}

// Read decodes every envelope in r with dec and harmonizes the result. The
// first malformed line or unknown label aborts the read.
func Read(ctx context.Context, r io.Reader, dec Decoder, opts ...Option) ([]model.LabelRecord, Stats, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.harmonizer == nil {
		o.harmonizer = harmonize.Default()
	}

	var (
		out   []model.LabelRecord
		stats Stats
	)
	defer func() {
		metrics.RecordNormalized(dec.Format(), "ok", stats.Normalized)
		metrics.RecordNormalized(dec.Format(), "skipped", stats.Skipped)
	}()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		stats.Lines++

		var env Envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			return nil, stats, fmt.Errorf("%w: line %d: %w", ErrMalformedRecord, stats.Lines, err)
		}
		if env.Status != StatusOK {
			stats.Skipped++
			if o.logger != nil {
				o.logger.Debug(ctx, "skipping failed inference",
					logger.String("image", env.ImagePath),
					logger.String("status", env.Status),
					logger.String("reason", env.Error))
			}
			continue
		}

		rec, err := normalizeEnvelope(env, dec, o)
		if err != nil {
			return nil, stats, fmt.Errorf("line %d (%s): %w", stats.Lines, env.ImagePath, err)
		}
		out = append(out, rec)
		stats.Normalized++
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, stats, fmt.Errorf("%w: line %d: %w", ErrMalformedRecord, stats.Lines+1, err)
		}
		return nil, stats, err
	}
	return out, stats, nil
}

func normalizeEnvelope(env Envelope, dec Decoder, o options) (model.LabelRecord, error) {
	id, err := model.ParseSubjectID(env.ImagePath)
	if err != nil {
		return model.LabelRecord{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	p, err := dec.Decode(env.RawOutput)
	if err != nil {
		return model.LabelRecord{}, err
	}

	rec := model.LabelRecord{SubjectID: id, Values: make(map[taxonomy.Attribute]string, len(p.Labels))}
	// sorted so the first reported error is deterministic
	attrs := make([]taxonomy.Attribute, 0, len(p.Labels))
	for attr := range p.Labels {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i] < attrs[j] })
	for _, attr := range attrs {
		v, err := o.harmonizer.Harmonize(attr, p.Labels[attr])
		if err != nil {
			return model.LabelRecord{}, err
		}
		rec.Values[attr] = v
	}
	if len(p.Confidences) > 0 {
		rec.Confidences = make(map[string]float64, len(p.Confidences))
		for field, c := range p.Confidences {
			if s, ok := o.scale[field]; ok && s > 0 {
				c /= s
			}
			rec.Confidences[field] = c
		}
	}
	return rec, nil
}
