package hl7

import (
	"fmt"
	"strings"
)

// Message is an ordered sequence of segments plus the encoding profile the
// message was parsed or built with. A valid message begins with an MSH
// segment. Metadata such as the message type and control ID is read from MSH
// on demand, never cached, so it cannot desync from the segment list.
//
// A Message exclusively owns its segments and fields. Instances are not safe
// for concurrent mutation; confine each message to one goroutine at a time.
// Parsing or building different messages concurrently is safe.
type Message struct {
	Encoding EncodingProfile
	Segments []*Segment
}

// NewMessage creates an empty message with the default encoding profile.
func NewMessage() *Message {
	return &Message{Encoding: DefaultEncoding()}
}

// ParseMessage parses a full HL7 v2 text blob. Segments are separated by CR
// (the HL7 standard), with CRLF and bare LF tolerated. The first line must be
// an MSH segment; its declared delimiters are established before any segment
// is split.
//
// Parsing is deliberately lenient: recoverable oddities (a short MSH line
// that cannot declare delimiters, an unparseable segment line) are reported
// as human-readable warnings alongside the message rather than failing the
// parse. An error is returned only when there is no message to speak of:
// empty input or a missing MSH header.
func ParseMessage(text string) (*Message, []string, error) {
	if text == "" {
		return nil, nil, fmt.Errorf("hl7: message is empty")
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\r")
	normalized = strings.ReplaceAll(normalized, "\n", "\r")

	var lines []string
	for _, line := range strings.Split(normalized, "\r") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("hl7: no segments found")
	}
	if !strings.HasPrefix(lines[0], "MSH") {
		got := lines[0]
		if len(got) > 3 {
			got = got[:3]
		}
		return nil, nil, fmt.Errorf("hl7: first segment must be MSH, got %q", got)
	}

	var warnings []string

	profile, ok := EncodingFromMSH(lines[0])
	if !ok {
		warnings = append(warnings, "MSH line too short to declare delimiters; using standard defaults")
	}

	msg := &Message{Encoding: profile}
	for _, line := range lines {
		seg, err := ParseSegment(line, profile)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped unparseable segment: %v", err))
			continue
		}
		msg.Segments = append(msg.Segments, seg)
	}

	return msg, warnings, nil
}

// AddSegment appends a segment to the message.
func (m *Message) AddSegment(seg *Segment) {
	m.Segments = append(m.Segments, seg)
}

// Segment returns the index-th occurrence (0-based) of the given segment
// type, or nil when there are not that many.
func (m *Message) Segment(id string, index int) *Segment {
	if index < 0 {
		return nil
	}
	n := 0
	for _, seg := range m.Segments {
		if seg.ID == id {
			if n == index {
				return seg
			}
			n++
		}
	}
	return nil
}

// FirstSegment returns the first occurrence of the given segment type.
func (m *Message) FirstSegment(id string) *Segment {
	return m.Segment(id, 0)
}

// AllSegments returns every occurrence of the given segment type in original
// order.
func (m *Message) AllSegments(id string) []*Segment {
	var out []*Segment
	for _, seg := range m.Segments {
		if seg.ID == id {
			out = append(out, seg)
		}
	}
	return out
}

// Type reads the message type from MSH-9 as "TYPE^TRIGGER" (e.g. "ADT^A01").
// ok is false when either component is empty.
func (m *Message) Type() (string, bool) {
	msh := m.FirstSegment("MSH")
	if msh == nil {
		return "", false
	}
	typ := msh.ComponentValue(9, 0)
	trigger := msh.ComponentValue(9, 1)
	if typ == "" || trigger == "" {
		return "", false
	}
	return typ + "^" + trigger, true
}

// ControlID returns the message control ID from MSH-10.
func (m *Message) ControlID() string {
	return m.FirstSegment("MSH").FieldValue(10)
}

// Encode serializes the message: each segment encoded with the message's
// profile, joined by CR.
func (m *Message) Encode() string {
	parts := make([]string, len(m.Segments))
	for i, seg := range m.Segments {
		parts[i] = seg.Encode(m.Encoding)
	}
	return strings.Join(parts, "\r")
}

// mshRequiredFields are the MSH fields every message must populate,
// regardless of type.
var mshRequiredFields = []struct {
	n    int
	name string
}{
	{3, "sending application"},
	{4, "sending facility"},
	{9, "message type"},
	{10, "message control ID"},
	{11, "processing ID"},
	{12, "version ID"},
}

// Validate checks structural conformance. It never fails fast: every problem
// is accumulated as a human-readable string so batch pipelines can report all
// of a message's defects in one pass.
//
// MSH-level required fields are checked unconditionally. When MSH-9 carries a
// recognized type prefix (ADT, ORM, ORU) the type-specific required segments
// are checked too; unrecognized types simply skip the type rules.
func (m *Message) Validate() (bool, []string) {
	var errs []string

	msh := m.FirstSegment("MSH")
	if msh == nil {
		errs = append(errs, "message has no MSH segment")
		return false, errs
	}

	for _, req := range mshRequiredFields {
		if msh.FieldValue(req.n) == "" {
			errs = append(errs, fmt.Sprintf("MSH-%d (%s) is required", req.n, req.name))
		}
	}

	if typ, ok := m.Type(); ok {
		errs = append(errs, m.validateTypeSegments(typ)...)
	}

	return len(errs) == 0, errs
}

// validateTypeSegments applies the per-message-type required-segment rules.
func (m *Message) validateTypeSegments(typ string) []string {
	var required []string

	switch {
	case strings.HasPrefix(typ, "ADT"):
		trigger := ""
		if parts := strings.SplitN(typ, "^", 2); len(parts) == 2 {
			trigger = parts[1]
		}
		// A31 (update person) and A40 (merge) carry no visit, so PV1 is
		// not required for them.
		if trigger == "A31" || trigger == "A40" {
			required = []string{"PID"}
		} else {
			required = []string{"PID", "PV1"}
		}
	case strings.HasPrefix(typ, "ORM"):
		required = []string{"ORC", "OBR"}
	case strings.HasPrefix(typ, "ORU"):
		required = []string{"OBR", "OBX"}
	default:
		return nil
	}

	var errs []string
	for _, id := range required {
		if m.FirstSegment(id) == nil {
			errs = append(errs, fmt.Sprintf("%s requires %s segment", typ, id))
		}
	}
	return errs
}
