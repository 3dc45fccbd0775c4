package hl7

import (
	"strconv"
	"strings"
	"time"
)

// PersonName is the component breakdown of an HL7 XPN name field
// (family^given^middle^suffix^prefix).
type PersonName struct {
	Family string
	Given  string
	Middle string
	Suffix string
	Prefix string
}

func (n PersonName) encode(p EncodingProfile) string {
	return joinComponents(p, n.Family, n.Given, n.Middle, n.Suffix, n.Prefix)
}

// parsePersonName reads an XPN field back into its components.
func parsePersonName(f *Field) PersonName {
	get := func(i int) string {
		v, _ := f.Component(i)
		return v
	}
	return PersonName{
		Family: get(0),
		Given:  get(1),
		Middle: get(2),
		Suffix: get(3),
		Prefix: get(4),
	}
}

// MSHInfo carries the header fields stamped into MSH by the builder.
// ProcessingID defaults to "P" and VersionID to "2.5" when empty.
type MSHInfo struct {
	SendingApp        string
	SendingFacility   string
	ReceivingApp      string
	ReceivingFacility string
	MessageType       string // "TYPE^TRIGGER", e.g. "ADT^A01"
	ControlID         string
	ProcessingID      string
	VersionID         string
}

// PIDInfo carries the patient identification fields for AddPID.
// IdentifierType defaults to "MRN". BirthDate, Gender, Address, and Phone
// are optional and omitted from the segment when empty.
type PIDInfo struct {
	PatientID      string
	IdentifierType string
	Name           PersonName
	BirthDate      string // YYYYMMDD
	Gender         string
	Address        string
	Phone          string
}

// PV1Info carries the patient visit fields for AddPV1.
type PV1Info struct {
	PatientClass    string // I, O, E, ...
	Location        string
	AdmissionType   string
	AttendingDoctor string
}

// MessageBuilder assembles a well-formed Message from typed inputs. All Add
// methods mutate only the builder's internal message and return the builder
// for chaining; no validation happens until the caller runs
// Message.Validate on the built message.
type MessageBuilder struct {
	msg *Message
	now func() time.Time
}

// NewMessageBuilder creates a builder producing a message with the standard
// delimiter set.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		msg: NewMessage(),
		now: time.Now,
	}
}

// AddMSH appends the message header segment. The current timestamp is
// stamped into MSH-7 and the encoding characters into MSH-2.
func (b *MessageBuilder) AddMSH(info MSHInfo) *MessageBuilder {
	if info.ProcessingID == "" {
		info.ProcessingID = "P"
	}
	if info.VersionID == "" {
		info.VersionID = "2.5"
	}

	p := b.msg.Encoding
	seg := NewSegment("MSH")
	seg.SetField(1, string(p.FieldSeparator), p)
	seg.SetField(2, p.EncodingString(), p)
	seg.SetField(3, info.SendingApp, p)
	seg.SetField(4, info.SendingFacility, p)
	seg.SetField(5, info.ReceivingApp, p)
	seg.SetField(6, info.ReceivingFacility, p)
	seg.SetField(7, FormatTimestamp(b.now()), p)
	seg.SetField(9, info.MessageType, p)
	seg.SetField(10, info.ControlID, p)
	seg.SetField(11, info.ProcessingID, p)
	seg.SetField(12, info.VersionID, p)
	b.msg.AddSegment(seg)
	return b
}

// AddPID appends a patient identification segment. PID-3 carries the
// identifier with its type code in the fifth component (MRN by default).
func (b *MessageBuilder) AddPID(info PIDInfo) *MessageBuilder {
	if info.IdentifierType == "" {
		info.IdentifierType = "MRN"
	}

	p := b.msg.Encoding
	seg := NewSegment("PID")
	seg.SetField(1, "1", p)
	seg.SetField(3, joinComponents(p, info.PatientID, "", "", "", info.IdentifierType), p)
	seg.SetField(5, info.Name.encode(p), p)
	if info.BirthDate != "" {
		seg.SetField(7, info.BirthDate, p)
	}
	if info.Gender != "" {
		seg.SetField(8, info.Gender, p)
	}
	if info.Address != "" {
		seg.SetField(11, info.Address, p)
	}
	if info.Phone != "" {
		seg.SetField(13, info.Phone, p)
	}
	b.msg.AddSegment(seg)
	return b
}

// AddPV1 appends a patient visit segment, stamping the admit time into
// PV1-44.
func (b *MessageBuilder) AddPV1(info PV1Info) *MessageBuilder {
	p := b.msg.Encoding
	seg := NewSegment("PV1")
	seg.SetField(1, "1", p)
	seg.SetField(2, info.PatientClass, p)
	if info.Location != "" {
		seg.SetField(3, info.Location, p)
	}
	if info.AdmissionType != "" {
		seg.SetField(4, info.AdmissionType, p)
	}
	if info.AttendingDoctor != "" {
		seg.SetField(7, info.AttendingDoctor, p)
	}
	seg.SetField(44, FormatTimestamp(b.now()), p)
	b.msg.AddSegment(seg)
	return b
}

// AddSegmentFields appends a segment built from raw field values, field 1
// first. Empty trailing values are preserved as written.
func (b *MessageBuilder) AddSegmentFields(id string, fields ...string) *MessageBuilder {
	p := b.msg.Encoding
	seg := NewSegment(id)
	for i, v := range fields {
		seg.SetField(i+1, v, p)
	}
	b.msg.AddSegment(seg)
	return b
}

// Build returns the accumulated message.
func (b *MessageBuilder) Build() *Message {
	return b.msg
}

// joinComponents joins values on the component separator, dropping trailing
// empty components so sparse fields stay compact.
func joinComponents(p EncodingProfile, values ...string) string {
	last := -1
	for i, v := range values {
		if v != "" {
			last = i
		}
	}
	return strings.Join(values[:last+1], string(p.ComponentSeparator))
}

// setIDValue renders a 1-based set ID for repeating segments (NK1, DG1, ...).
func setIDValue(i int) string {
	return strconv.Itoa(i)
}
