package hl7

import (
	"fmt"
	"strings"
)

// Segment is one logical line of an HL7 message: a 3-letter segment ID plus
// an ordered sequence of fields. Fields are 1-indexed at the protocol level
// (field 1 is the first field after the ID).
type Segment struct {
	ID     string
	fields []*Field
}

// NewSegment creates an empty segment with the given 3-letter ID.
func NewSegment(id string) *Segment {
	return &Segment{ID: id}
}

// ParseSegment splits a segment line on the profile's field separator. The
// first token is the segment ID; the remaining tokens become fields.
//
// MSH is special: the character immediately after "MSH" is the field
// separator itself and is stored as field 1 without re-splitting, since it
// defines the separator.
func ParseSegment(line string, p EncodingProfile) (*Segment, error) {
	if len(line) < 3 {
		return nil, fmt.Errorf("segment line too short: %q", line)
	}

	fieldSep := string(p.FieldSeparator)

	if strings.HasPrefix(line, "MSH") {
		seg := &Segment{ID: "MSH"}
		if len(line) < 4 {
			return seg, nil
		}
		seg.fields = append(seg.fields, literalField(string(line[3])))
		rest := line[4:]
		for _, token := range strings.Split(rest, fieldSep) {
			seg.fields = append(seg.fields, ParseField(token, p))
		}
		return seg, nil
	}

	tokens := strings.Split(line, fieldSep)
	seg := &Segment{ID: tokens[0]}
	for _, token := range tokens[1:] {
		seg.fields = append(seg.fields, ParseField(token, p))
	}
	return seg, nil
}

// Field returns the n-th field (1-indexed), or nil when the segment has
// fewer fields. Absence is not an error.
func (s *Segment) Field(n int) *Field {
	if s == nil || n < 1 || n > len(s.fields) {
		return nil
	}
	return s.fields[n-1]
}

// FieldValue returns the first value of the n-th field, or "" when the field
// is absent or empty.
func (s *Segment) FieldValue(n int) string {
	return s.Field(n).FirstValue()
}

// ComponentValue returns component comp (0-based) of the n-th field's first
// repetition.
func (s *Segment) ComponentValue(n, comp int) string {
	f := s.Field(n)
	v, _ := f.Component(comp)
	return v
}

// SetField parses value with the profile and stores it as the n-th field,
// growing the field list with empty fields as needed. Like Field.SetValue,
// mutation never fails.
func (s *Segment) SetField(n int, value string, p EncodingProfile) {
	if n < 1 {
		return
	}
	for len(s.fields) < n {
		s.fields = append(s.fields, NewField())
	}
	s.fields[n-1] = ParseField(value, p)
}

// FieldCount returns the number of fields present in the segment.
func (s *Segment) FieldCount() int {
	return len(s.fields)
}

// Encode rejoins the segment ID and fields on the field separator. For MSH,
// field 1 is the literal separator character and is re-inserted as such
// rather than joined, so MSH|^~\&|... round-trips exactly.
func (s *Segment) Encode(p EncodingProfile) string {
	fieldSep := string(p.FieldSeparator)

	if s.ID == "MSH" {
		if len(s.fields) == 0 {
			return s.ID
		}
		sep := s.fields[0].FirstValue()
		if sep == "" {
			sep = fieldSep
		}
		parts := make([]string, 0, len(s.fields)-1)
		for _, f := range s.fields[1:] {
			parts = append(parts, f.Encode(p))
		}
		return s.ID + sep + strings.Join(parts, sep)
	}

	if len(s.fields) == 0 {
		return s.ID
	}
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.Encode(p)
	}
	return s.ID + fieldSep + strings.Join(parts, fieldSep)
}
