package hl7

import "strings"

// Escape replaces the profile's delimiter characters in s with the standard
// HL7 escape sequences so the value can be embedded in a field verbatim:
//
//	\F\ field separator
//	\S\ component separator
//	\R\ repetition separator
//	\E\ escape character
//	\T\ subcomponent separator
func Escape(s string, p EncodingProfile) string {
	esc := string(p.EscapeCharacter)
	// The escape character goes first so already-escaped text is not
	// double-escaped.
	s = strings.ReplaceAll(s, esc, esc+"E"+esc)
	s = strings.ReplaceAll(s, string(p.FieldSeparator), esc+"F"+esc)
	s = strings.ReplaceAll(s, string(p.ComponentSeparator), esc+"S"+esc)
	s = strings.ReplaceAll(s, string(p.RepetitionSeparator), esc+"R"+esc)
	s = strings.ReplaceAll(s, string(p.SubcomponentSeparator), esc+"T"+esc)
	return s
}

// Unescape is the inverse of Escape. Sequences are consumed left to right so
// an escaped escape character cannot be re-read as the start of another
// sequence. Unrecognized or unterminated sequences are kept verbatim.
func Unescape(s string, p EncodingProfile) string {
	esc := string(p.EscapeCharacter)
	if !strings.Contains(s, esc) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		start := strings.Index(s, esc)
		if start < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])
		s = s[start+len(esc):]

		end := strings.Index(s, esc)
		if end < 0 {
			b.WriteString(esc)
			b.WriteString(s)
			break
		}
		token := s[:end]
		rest := s[end+len(esc):]

		switch token {
		case "F":
			b.WriteByte(p.FieldSeparator)
		case "S":
			b.WriteByte(p.ComponentSeparator)
		case "R":
			b.WriteByte(p.RepetitionSeparator)
		case "T":
			b.WriteByte(p.SubcomponentSeparator)
		case "E":
			b.WriteByte(p.EscapeCharacter)
		default:
			b.WriteString(esc)
			b.WriteString(token)
			b.WriteString(esc)
		}
		s = rest
	}
	return b.String()
}
