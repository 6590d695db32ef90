package domain

import (
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// TagSet is a set of validated, case-sensitive tag names.
// The zero value is an empty set.
type TagSet struct {
	s mapset.Set[string]
}

// NewTagSet validates names and collects them into a set.
// Surrounding whitespace is trimmed; empty names are rejected.
func NewTagSet(names ...string) (TagSet, error) {
	s := mapset.NewThreadUnsafeSet[string]()
	for _, name := range names {
		tag := strings.TrimSpace(name)
		if tag == "" {
			return TagSet{}, invalidTag(name)
		}
		s.Add(tag)
	}
	return TagSet{s: s}, nil
}

// MustTagSet is NewTagSet for literals known to be valid.
func MustTagSet(names ...string) TagSet {
	ts, err := NewTagSet(names...)
	if err != nil {
		panic(err)
	}
	return ts
}

func (ts TagSet) Len() int {
	if ts.s == nil {
		return 0
	}
	return ts.s.Cardinality()
}

func (ts TagSet) IsEmpty() bool {
	return ts.Len() == 0
}

func (ts TagSet) Contains(name string) bool {
	return ts.s != nil && ts.s.Contains(name)
}

// Intersects reports whether a tag appears in both sets.
func (ts TagSet) Intersects(other TagSet) bool {
	if ts.IsEmpty() || other.IsEmpty() {
		return false
	}
	return ts.s.Intersect(other.s).Cardinality() > 0
}

// Names returns the tags sorted ascending.
func (ts TagSet) Names() []string {
	if ts.s == nil {
		return []string{}
	}
	names := ts.s.ToSlice()
	slices.Sort(names)
	return names
}

// ParseTagQuery splits a search-bar query into required and excluded tags.
// Terms are separated by whitespace or commas; a leading "!" excludes a term.
func ParseTagQuery(q string) (required, excluded TagSet, err error) {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	var req, exc []string
	for _, f := range fields {
		if name, ok := strings.CutPrefix(f, "!"); ok {
			name = strings.TrimLeft(name, "!")
			if name == "" {
				return TagSet{}, TagSet{}, invalidTag(f)
			}
			exc = append(exc, name)
			continue
		}
		req = append(req, f)
	}

	if required, err = NewTagSet(req...); err != nil {
		return TagSet{}, TagSet{}, err
	}
	if excluded, err = NewTagSet(exc...); err != nil {
		return TagSet{}, TagSet{}, err
	}
	return required, excluded, nil
}
