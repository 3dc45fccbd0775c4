package hl7

import "strings"

// EncodingProfile holds the five delimiter characters that structure an HL7 v2
// message. The profile is declared by the message itself: MSH-1 is the field
// separator and MSH-2 carries the remaining four characters.
type EncodingProfile struct {
	FieldSeparator        byte
	ComponentSeparator    byte
	RepetitionSeparator   byte
	EscapeCharacter       byte
	SubcomponentSeparator byte
}

// DefaultEncoding returns the HL7-standard delimiter set: |^~\&.
func DefaultEncoding() EncodingProfile {
	return EncodingProfile{
		FieldSeparator:        '|',
		ComponentSeparator:    '^',
		RepetitionSeparator:   '~',
		EscapeCharacter:       '\\',
		SubcomponentSeparator: '&',
	}
}

// EncodingFromMSH reads the delimiter characters from the fixed offsets of an
// MSH line: the field separator at offset 3, then the four MSH-2 characters at
// offsets 4-7. When the line is too short to declare all five characters the
// standard defaults are returned and ok is false; callers surface that as a
// parse warning rather than an error, since short MSH lines occur in the wild.
func EncodingFromMSH(line string) (profile EncodingProfile, ok bool) {
	profile = DefaultEncoding()
	if len(line) < 8 || !strings.HasPrefix(line, "MSH") {
		return profile, false
	}
	profile.FieldSeparator = line[3]
	profile.ComponentSeparator = line[4]
	profile.RepetitionSeparator = line[5]
	profile.EscapeCharacter = line[6]
	profile.SubcomponentSeparator = line[7]
	return profile, true
}

// EncodingString returns the four non-field delimiters in the fixed order they
// appear in MSH-2 (component, repetition, escape, subcomponent).
func (p EncodingProfile) EncodingString() string {
	return string([]byte{
		p.ComponentSeparator,
		p.RepetitionSeparator,
		p.EscapeCharacter,
		p.SubcomponentSeparator,
	})
}

// Valid reports whether the five delimiters are distinct printable characters.
func (p EncodingProfile) Valid() bool {
	chars := []byte{
		p.FieldSeparator,
		p.ComponentSeparator,
		p.RepetitionSeparator,
		p.EscapeCharacter,
		p.SubcomponentSeparator,
	}
	seen := map[byte]bool{}
	for _, c := range chars {
		if c <= 0x20 || c >= 0x7F {
			return false
		}
		if seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}
