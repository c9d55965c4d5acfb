package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/taxonomy"
	"github.com/okian/faceval/pkg/logger"
)

// ctxCheckEvery is how many rows are decoded between context checks.
const ctxCheckEvery = 1024

// idColumns are accepted names for the subject column, in priority order.
var idColumns = []string{"image_id", "file"}

// CSVStore implements Store on local CSV files.
type CSVStore struct {
	comma  rune
	logger logger.Logger
}

var _ Store = (*CSVStore)(nil)

// NewCSVStore creates a CSV store.
func NewCSVStore(opts ...Option) *CSVStore {
	s := &CSVStore{comma: ','}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadTruth implements Store.
func (s *CSVStore) LoadTruth(ctx context.Context, path string) ([]model.LabelRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ground truth: %w", err)
	}
	defer func() { _ = f.Close() }()

	recs, err := s.ReadTruth(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.loaded(ctx, "ground truth", path, len(recs))
	return recs, nil
}

// LoadPredictions implements Store.
func (s *CSVStore) LoadPredictions(ctx context.Context, path string, opts ...ReadOption) ([]model.LabelRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open predictions: %w", err)
	}
	defer func() { _ = f.Close() }()

	recs, err := s.ReadPredictions(ctx, f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.loaded(ctx, "predictions", path, len(recs))
	return recs, nil
}

// SaveTruth implements Store.
func (s *CSVStore) SaveTruth(ctx context.Context, path string, recs []model.LabelRecord) error {
	return s.save(path, func(w io.Writer) error { return s.WriteTruth(ctx, w, recs) })
}

// SavePredictions implements Store.
func (s *CSVStore) SavePredictions(ctx context.Context, path, modelName string, recs []model.LabelRecord) error {
	return s.save(path, func(w io.Writer) error { return s.WritePredictions(ctx, w, modelName, recs) })
}

func (s *CSVStore) save(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f)
}

func (s *CSVStore) loaded(ctx context.Context, kind, path string, n int) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(ctx, "records loaded",
		logger.String("kind", kind),
		logger.String("path", path),
		logger.Int("records", n))
}

// ReadTruth decodes ground-truth rows from r.
func (s *CSVStore) ReadTruth(ctx context.Context, r io.Reader) ([]model.LabelRecord, error) {
	return s.read(ctx, r, false, readOptions{})
}

// ReadPredictions decodes prediction rows from r.
func (s *CSVStore) ReadPredictions(ctx context.Context, r io.Reader, opts ...ReadOption) ([]model.LabelRecord, error) {
	o := readOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return s.read(ctx, r, true, o)
}

type header struct {
	id          int
	attrs       map[taxonomy.Attribute]int
	confidences map[string]int
}

func parseHeader(row []string, withConfidence bool) (header, error) {
	h := header{id: -1, attrs: map[taxonomy.Attribute]int{}, confidences: map[string]int{}}
	cols := make(map[string]int, len(row))
	for i, name := range row {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range idColumns {
		if i, ok := cols[name]; ok {
			h.id = i
			break
		}
	}
	if h.id < 0 {
		return h, fmt.Errorf("%w: image_id", ErrMissingColumn)
	}
	for _, a := range taxonomy.All() {
		if i, ok := cols[string(a)]; ok {
			h.attrs[a] = i
		}
	}
	if len(h.attrs) == 0 {
		return h, fmt.Errorf("%w: no attribute columns", ErrMissingColumn)
	}
	if withConfidence {
		for name, i := range cols {
			if field, ok := strings.CutSuffix(name, ConfidenceSuffix); ok && field != "" {
				h.confidences[field] = i
			}
		}
	}
	return h, nil
}

func (s *CSVStore) read(ctx context.Context, r io.Reader, withConfidence bool, o readOptions) ([]model.LabelRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = s.comma
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrMalformedRow, err)
	}
	h, err := parseHeader(first, withConfidence)
	if err != nil {
		return nil, err
	}

	var out []model.LabelRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedRow, line, err)
		}
		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := decodeRow(row, h, o)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRow(row []string, h header, o readOptions) (model.LabelRecord, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	id, err := model.ParseSubjectID(cell(h.id))
	if err != nil {
		return model.LabelRecord{}, fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}
	rec := model.LabelRecord{SubjectID: id, Values: make(map[taxonomy.Attribute]string, len(h.attrs))}
	// empty cells are kept so harmonization reports them
	for a, i := range h.attrs {
		rec.Values[a] = cell(i)
	}
	for field, i := range h.confidences {
		raw := cell(i)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.LabelRecord{}, fmt.Errorf("%w: %s%s %q", ErrMalformedRow, field, ConfidenceSuffix, raw)
		}
		if scale, ok := o.scale[field]; ok && scale > 0 {
			v /= scale
		}
		if rec.Confidences == nil {
			rec.Confidences = make(map[string]float64, len(h.confidences))
		}
		rec.Confidences[field] = v
	}
	return rec, nil
}

var truthColumns = []taxonomy.Attribute{taxonomy.Age, taxonomy.Gender, taxonomy.Race}

// WriteTruth encodes ground-truth records as CSV.
func (s *CSVStore) WriteTruth(ctx context.Context, w io.Writer, recs []model.LabelRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = s.comma

	head := []string{"image_id"}
	for _, a := range truthColumns {
		head = append(head, string(a))
	}
	if err := cw.Write(head); err != nil {
		return err
	}
	row := make([]string, len(head))
	for i, r := range recs {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row[0] = strconv.FormatInt(r.SubjectID, 10)
		for j, a := range truthColumns {
			row[j+1] = r.Values[a]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePredictions encodes prediction records as CSV with one
// <field>_confidence column per confidence field seen in recs.
func (s *CSVStore) WritePredictions(ctx context.Context, w io.Writer, modelName string, recs []model.LabelRecord) error {
	fieldSet := map[string]struct{}{}
	for _, r := range recs {
		for f := range r.Confidences {
			fieldSet[f] = struct{}{}
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for f := range fieldSet {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	cw := csv.NewWriter(w)
	cw.Comma = s.comma

	head := []string{"image_id", "model"}
	for _, a := range truthColumns {
		head = append(head, string(a))
	}
	for _, f := range fields {
		head = append(head, f+ConfidenceSuffix)
	}
	if err := cw.Write(head); err != nil {
		return err
	}

	row := make([]string, len(head))
	for i, r := range recs {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row[0] = strconv.FormatInt(r.SubjectID, 10)
		row[1] = modelName
		for j, a := range truthColumns {
			row[j+2] = r.Values[a]
		}
		for j, f := range fields {
			row[j+2+len(truthColumns)] = ""
			if c, ok := r.Confidences[f]; ok {
				row[j+2+len(truthColumns)] = strconv.FormatFloat(c, 'g', -1, 64)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
