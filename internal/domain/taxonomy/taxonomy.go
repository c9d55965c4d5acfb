// Package taxonomy defines the evaluated face attributes and the canonical
// label set each of them is scored against.
//
// A Taxonomy is the fixed index space used by confusion matrices and per-class
// vectors. Its order is stable; for ordered taxonomies (age) the position of a
// label is also its ordinal value.
package taxonomy

import (
	"fmt"
	"strings"
)

// Attribute identifies one predicted face attribute.
type Attribute string

// Supported attributes.
const (
	Gender Attribute = "gender"
	Race   Attribute = "race"
	Age    Attribute = "age"
)

// Canonical gender labels.
const (
	Female = "Female"
	Male   = "Male"
)

// Canonical race labels.
const (
	Asian          = "Asian"
	Black          = "Black"
	Indian         = "Indian"
	LatinoHispanic = "Latino_Hispanic"
	MiddleEastern  = "Middle Eastern"
	White          = "White"
)

// Canonical age bins, youngest first.
const (
	Age0to2   = "0-2"
	Age3to9   = "3-9"
	Age10to19 = "10-19"
	Age20to29 = "20-29"
	Age30to39 = "30-39"
	Age40to49 = "40-49"
	Age50to59 = "50-59"
	Age60to69 = "60-69"
	Age70Plus = "70+"
)

// All returns every supported attribute in reporting order.
func All() []Attribute {
	return []Attribute{Gender, Race, Age}
}

// ParseAttribute converts a case-insensitive name into an Attribute.
func ParseAttribute(s string) (Attribute, error) {
	a := Attribute(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAttribute, s)
	}
	return a, nil
}

// String implements fmt.Stringer.
func (a Attribute) String() string { return string(a) }

// Valid reports whether a is one of the supported attributes.
func (a Attribute) Valid() bool {
	switch a {
	case Gender, Race, Age:
		return true
	default:
		return false
	}
}

// Taxonomy returns the canonical taxonomy carried by the attribute.
// It panics for invalid attributes; use For when the attribute is untrusted.
func (a Attribute) Taxonomy() Taxonomy {
	t, err := For(a)
	if err != nil {
		panic(err)
	}
	return t
}

// Taxonomy is an immutable, ordered list of canonical labels for one attribute.
type Taxonomy struct {
	attribute Attribute
	labels    []string
	ordered   bool
	index     map[string]int
}

// New builds a taxonomy. ordered marks the label order as semantically
// significant (adjacent labels are "close").
func New(attr Attribute, labels []string, ordered bool) (Taxonomy, error) {
	if len(labels) == 0 {
		return Taxonomy{}, fmt.Errorf("%w: %s", ErrEmptyTaxonomy, attr)
	}
	t := Taxonomy{
		attribute: attr,
		labels:    make([]string, len(labels)),
		ordered:   ordered,
		index:     make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		if _, dup := t.index[l]; dup {
			return Taxonomy{}, fmt.Errorf("%w: %s %q", ErrDuplicateLabel, attr, l)
		}
		t.labels[i] = l
		t.index[l] = i
	}
	return t, nil
}

func mustNew(attr Attribute, labels []string, ordered bool) Taxonomy {
	t, err := New(attr, labels, ordered)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	genderTaxonomy = mustNew(Gender, []string{Female, Male}, false)
	raceTaxonomy   = mustNew(Race, []string{Asian, Black, Indian, LatinoHispanic, MiddleEastern, White}, false)
	ageTaxonomy    = mustNew(Age, []string{
		Age0to2, Age3to9, Age10to19, Age20to29, Age30to39,
		Age40to49, Age50to59, Age60to69, Age70Plus,
	}, true)
)

// For returns the canonical taxonomy of attr.
func For(attr Attribute) (Taxonomy, error) {
	switch attr {
	case Gender:
		return genderTaxonomy, nil
	case Race:
		return raceTaxonomy, nil
	case Age:
		return ageTaxonomy, nil
	default:
		return Taxonomy{}, fmt.Errorf("%w: %q", ErrUnknownAttribute, string(attr))
	}
}

// Attribute returns the attribute this taxonomy indexes.
func (t Taxonomy) Attribute() Attribute { return t.attribute }

// Ordered reports whether label order carries ordinal meaning.
func (t Taxonomy) Ordered() bool { return t.ordered }

// Len returns the number of labels.
func (t Taxonomy) Len() int { return len(t.labels) }

// Labels returns a copy of the labels in index order.
func (t Taxonomy) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Label returns the label at position i.
func (t Taxonomy) Label(i int) string { return t.labels[i] }

// Contains reports whether label is part of the taxonomy.
func (t Taxonomy) Contains(label string) bool {
	_, ok := t.index[label]
	return ok
}

// Index returns the position of label, or a *LabelOutOfTaxonomyError.
func (t Taxonomy) Index(label string) (int, error) {
	i, ok := t.index[label]
	if !ok {
		return -1, &LabelOutOfTaxonomyError{Attribute: t.attribute, Label: label}
	}
	return i, nil
}
