// Package model contains the records and evaluation sets passed between layers.
package model

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/faceval/internal/domain/taxonomy"
)

// LabelRecord is one ground-truth or prediction entry for a subject.
// Ground-truth records carry no confidences.
type LabelRecord struct {
	SubjectID int64
	// Values maps each attribute to its label, raw or harmonized depending on stage.
	Values map[taxonomy.Attribute]string
	// Confidences maps a confidence field (usually the attribute name, but also
	// extra fields such as "face") to a score.
	Confidences map[string]float64
}

// Value returns the label for attr.
func (r LabelRecord) Value(attr taxonomy.Attribute) (string, bool) {
	v, ok := r.Values[attr]
	return v, ok
}

// Confidence returns the score stored under field.
func (r LabelRecord) Confidence(field string) (float64, bool) {
	c, ok := r.Confidences[field]
	return c, ok
}

// Clone returns a deep copy of the record.
func (r LabelRecord) Clone() LabelRecord {
	out := LabelRecord{SubjectID: r.SubjectID}
	if r.Values != nil {
		out.Values = make(map[taxonomy.Attribute]string, len(r.Values))
		for k, v := range r.Values {
			out.Values[k] = v
		}
	}
	if r.Confidences != nil {
		out.Confidences = make(map[string]float64, len(r.Confidences))
		for k, v := range r.Confidences {
			out.Confidences[k] = v
		}
	}
	return out
}

// ParseSubjectID extracts the numeric subject identifier from either a bare
// integer ("123") or an image path ("train/123.jpg").
func ParseSubjectID(s string) (int64, error) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(s), "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	id, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSubjectID, s)
	}
	return id, nil
}

// Row is one joined subject: ground truth and one model's prediction.
type Row struct {
	SubjectID   int64
	Truth       map[taxonomy.Attribute]string
	Predicted   map[taxonomy.Attribute]string
	Confidences map[string]float64
}

// Correct reports whether the prediction for attr equals the ground truth.
func (r Row) Correct(attr taxonomy.Attribute) bool {
	return r.Truth[attr] == r.Predicted[attr]
}

// EvaluationSet is the read-only join of one model's predictions with ground
// truth. Rows are unique by SubjectID, ordered by it, and complete for every
// evaluated attribute.
type EvaluationSet struct {
	model      string
	attributes []taxonomy.Attribute
	rows       []Row
}

// NewEvaluationSet validates rows and builds an evaluation set. Rows are copied.
func NewEvaluationSet(modelName string, attrs []taxonomy.Attribute, rows []Row) (*EvaluationSet, error) {
	seen := make(map[int64]struct{}, len(rows))
	out := make([]Row, len(rows))
	for i, r := range rows {
		if _, dup := seen[r.SubjectID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateSubject, r.SubjectID)
		}
		seen[r.SubjectID] = struct{}{}
		for _, a := range attrs {
			if r.Truth[a] == "" {
				return nil, fmt.Errorf("%w: subject %d has no ground-truth %s", ErrMissingValue, r.SubjectID, a)
			}
			if r.Predicted[a] == "" {
				return nil, fmt.Errorf("%w: subject %d has no predicted %s", ErrMissingValue, r.SubjectID, a)
			}
		}
		out[i] = r
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })

	as := make([]taxonomy.Attribute, len(attrs))
	copy(as, attrs)
	return &EvaluationSet{model: modelName, attributes: as, rows: out}, nil
}

// Model returns the name of the evaluated model.
func (s *EvaluationSet) Model() string { return s.model }

// Len returns the number of rows.
func (s *EvaluationSet) Len() int { return len(s.rows) }

// Attributes returns the attributes every row is guaranteed to carry.
func (s *EvaluationSet) Attributes() []taxonomy.Attribute {
	out := make([]taxonomy.Attribute, len(s.attributes))
	copy(out, s.attributes)
	return out
}

// Has reports whether attr is evaluated by this set.
func (s *EvaluationSet) Has(attr taxonomy.Attribute) bool {
	for _, a := range s.attributes {
		if a == attr {
			return true
		}
	}
	return false
}

// Rows returns the rows in SubjectID order. The maps inside each row are
// shared with the set and must not be modified.
func (s *EvaluationSet) Rows() []Row {
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Labels returns parallel slices of ground-truth and predicted labels for attr.
func (s *EvaluationSet) Labels(attr taxonomy.Attribute) (truth, predicted []string) {
	truth = make([]string, len(s.rows))
	predicted = make([]string, len(s.rows))
	for i, r := range s.rows {
		truth[i] = r.Truth[attr]
		predicted[i] = r.Predicted[attr]
	}
	return truth, predicted
}

// SubjectIDs returns the subject identifiers in row order.
func (s *EvaluationSet) SubjectIDs() []int64 {
	out := make([]int64, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.SubjectID
	}
	return out
}
