package hl7

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownMessageType is returned when a message's MSH-9 type has no
// registered handler. This is the one programmer-error style failure in the
// codec; malformed data never raises.
var ErrUnknownMessageType = errors.New("hl7: unknown message type")

// Routing identifies the sending and receiving systems stamped into MSH.
// ControlID is generated from a random UUID when left empty.
type Routing struct {
	SendingApp        string
	SendingFacility   string
	ReceivingApp      string
	ReceivingFacility string
	ControlID         string
}

func (r Routing) controlID() string {
	if r.ControlID != "" {
		return r.ControlID
	}
	return NewControlID()
}

// NewControlID generates a message control ID from a random UUID, shortened
// to fit the 20-character limit of MSH-10.
func NewControlID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "MSG" + strings.ToUpper(hex[:16])
}

// PatientInfo is the patient demographics record exchanged with the message
// handlers, mapped to and from PID.
type PatientInfo struct {
	ID             string
	IdentifierType string // MRN when empty
	Name           PersonName
	BirthDate      string // YYYYMMDD
	Gender         string
	Address        string
	Phone          string
}

// CodedValue is an HL7 CE coded element: code^text^coding system.
type CodedValue struct {
	Code         string
	Text         string
	CodingSystem string
}

func (cv CodedValue) encode(p EncodingProfile) string {
	return joinComponents(p, cv.Code, cv.Text, cv.CodingSystem)
}

func parseCodedValue(f *Field) CodedValue {
	get := func(i int) string {
		v, _ := f.Component(i)
		return v
	}
	return CodedValue{Code: get(0), Text: get(1), CodingSystem: get(2)}
}

// parsePatient reconstructs a PatientInfo from a PID segment, or nil when
// the segment is absent.
func parsePatient(seg *Segment) *PatientInfo {
	if seg == nil {
		return nil
	}
	return &PatientInfo{
		ID:             seg.ComponentValue(3, 0),
		IdentifierType: seg.ComponentValue(3, 4),
		Name:           parsePersonName(seg.Field(5)),
		BirthDate:      seg.FieldValue(7),
		Gender:         seg.FieldValue(8),
		Address:        seg.FieldValue(11),
		Phone:          seg.FieldValue(13),
	}
}

// parseNotes collects NTE-3 comments in segment order.
func parseNotes(m *Message) []string {
	var notes []string
	for _, nte := range m.AllSegments("NTE") {
		if v := nte.FieldValue(3); v != "" {
			notes = append(notes, v)
		}
	}
	return notes
}

// ParseRecord dispatches on the MSH-9 type prefix and returns the matching
// typed record: *ADTRecord, *ORMRecord, or *ORURecord. Messages of any other
// type yield ErrUnknownMessageType.
func ParseRecord(m *Message) (interface{}, error) {
	typ, ok := m.Type()
	if !ok {
		return nil, fmt.Errorf("%w: MSH-9 is empty or incomplete", ErrUnknownMessageType)
	}
	switch {
	case strings.HasPrefix(typ, "ADT"):
		return ParseADTMessage(m)
	case strings.HasPrefix(typ, "ORM"):
		return ParseORMMessage(m)
	case strings.HasPrefix(typ, "ORU"):
		return ParseORUMessage(m)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, typ)
	}
}
