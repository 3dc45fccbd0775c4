package hl7

import "strings"

// Field is one field slot within a segment. It holds the fully parsed
// repetition/component/subcomponent structure: reps[i][j][k] is the k-th
// subcomponent of the j-th component of the i-th repetition, each leaf a
// plain string.
//
// Because splitting and rejoining on the same separators are exact inverses,
// Encode reproduces the original raw value byte-for-byte when the field has
// not been mutated.
type Field struct {
	reps [][][]string
}

// NewField returns an empty field with no repetitions. It encodes as the
// empty string until a value is set.
func NewField() *Field {
	return &Field{}
}

// ParseField splits a raw field string on the repetition, component, and
// subcomponent separators of the given profile, in that order.
func ParseField(raw string, p EncodingProfile) *Field {
	repSep := string(p.RepetitionSeparator)
	compSep := string(p.ComponentSeparator)
	subSep := string(p.SubcomponentSeparator)

	f := &Field{}
	for _, rep := range strings.Split(raw, repSep) {
		comps := strings.Split(rep, compSep)
		parsed := make([][]string, len(comps))
		for j, comp := range comps {
			parsed[j] = strings.Split(comp, subSep)
		}
		f.reps = append(f.reps, parsed)
	}
	return f
}

// literalField wraps a string as a single-leaf field without splitting it.
// Used for MSH-1, where the value is the field separator character itself.
func literalField(value string) *Field {
	return &Field{reps: [][][]string{{{value}}}}
}

// Value returns the leaf at the given repetition/component/subcomponent
// indices (all 0-based). Out-of-range indices report ok=false rather than an
// error: real-world feeds routinely omit trailing structure, so absence is
// not a fault.
func (f *Field) Value(rep, comp, sub int) (string, bool) {
	if f == nil || rep < 0 || rep >= len(f.reps) {
		return "", false
	}
	if comp < 0 || comp >= len(f.reps[rep]) {
		return "", false
	}
	if sub < 0 || sub >= len(f.reps[rep][comp]) {
		return "", false
	}
	return f.reps[rep][comp][sub], true
}

// FirstValue returns the first subcomponent of the first component of the
// first repetition, or "" when the field is empty.
func (f *Field) FirstValue() string {
	v, _ := f.Value(0, 0, 0)
	return v
}

// Component returns the first subcomponent of the given component of the
// first repetition. Components are 0-based.
func (f *Field) Component(comp int) (string, bool) {
	return f.Value(0, comp, 0)
}

// Repetitions returns the number of repetitions in the field.
func (f *Field) Repetitions() int {
	if f == nil {
		return 0
	}
	return len(f.reps)
}

// Components returns the number of components in the given repetition.
func (f *Field) Components(rep int) int {
	if f == nil || rep < 0 || rep >= len(f.reps) {
		return 0
	}
	return len(f.reps[rep])
}

// SetValue writes a leaf at the given indices, growing the repetition,
// component, and subcomponent arrays with empty-string placeholders as
// needed. Mutation never fails.
func (f *Field) SetValue(value string, rep, comp, sub int) {
	for len(f.reps) <= rep {
		f.reps = append(f.reps, [][]string{{""}})
	}
	r := f.reps[rep]
	for len(r) <= comp {
		r = append(r, []string{""})
	}
	c := r[comp]
	for len(c) <= sub {
		c = append(c, "")
	}
	c[sub] = value
	r[comp] = c
	f.reps[rep] = r
}

// Encode rejoins subcomponents, components, and repetitions using the
// profile's separators. It is the inverse of ParseField.
func (f *Field) Encode(p EncodingProfile) string {
	if f == nil || len(f.reps) == 0 {
		return ""
	}
	repSep := string(p.RepetitionSeparator)
	compSep := string(p.ComponentSeparator)
	subSep := string(p.SubcomponentSeparator)

	reps := make([]string, len(f.reps))
	for i, rep := range f.reps {
		comps := make([]string, len(rep))
		for j, comp := range rep {
			comps[j] = strings.Join(comp, subSep)
		}
		reps[i] = strings.Join(comps, compSep)
	}
	return strings.Join(reps, repSep)
}
