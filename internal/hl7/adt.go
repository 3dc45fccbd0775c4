package hl7

import (
	"fmt"
	"strings"
	"time"
)

// AdmissionData carries the visit-level inputs for an ADT build, plus the
// optional repeating segments (next of kin, diagnoses, allergies).
type AdmissionData struct {
	PatientClass    string // I (inpatient), O (outpatient), E (emergency), ...
	Location        string
	AdmissionType   string
	AttendingDoctor string

	NextOfKin []NextOfKin
	Diagnoses []Diagnosis
	Allergies []Allergy
}

// NextOfKin maps to one NK1 segment.
type NextOfKin struct {
	Name         PersonName
	Relationship string
	Phone        string
}

// Diagnosis maps to one DG1 segment. Type is the HL7 diagnosis type code
// (A=admitting, W=working, F=final), passed through verbatim.
type Diagnosis struct {
	Code         string
	Description  string
	CodingMethod string // e.g. I10
	Type         string
}

// Allergy maps to one AL1 segment. Severity is the HL7 code (SV, MO, MI),
// passed through verbatim.
type Allergy struct {
	Type        string // DA (drug), FA (food), MA (misc), ...
	Code        string
	Description string
	Severity    string
	Reaction    string
}

// EventInfo is the EVN segment content of a parsed ADT message.
type EventInfo struct {
	TypeCode     string
	RecordedTime string
}

// ADTRecord is the structured form of a parsed ADT message. Optional
// segments that were absent leave their field nil or empty rather than
// raising.
type ADTRecord struct {
	MessageType string
	ControlID   string
	Event       *EventInfo
	Patient     *PatientInfo
	Visit       *PV1Info
	NextOfKin   []NextOfKin
	Diagnoses   []Diagnosis
	Allergies   []Allergy
}

// BuildADTMessage assembles a complete ADT message for the given trigger
// event (e.g. "A01"). The segment sequence is MSH, EVN, PID, PV1, then any
// NK1, DG1, and AL1 repetitions from the admission data. A31 and A40 events
// carry no visit, so PV1 is omitted for them.
func BuildADTMessage(event string, routing Routing, patient PatientInfo, admission AdmissionData) (*Message, error) {
	if event == "" {
		return nil, fmt.Errorf("hl7: ADT trigger event is required")
	}

	b := NewMessageBuilder()
	b.AddMSH(MSHInfo{
		SendingApp:        routing.SendingApp,
		SendingFacility:   routing.SendingFacility,
		ReceivingApp:      routing.ReceivingApp,
		ReceivingFacility: routing.ReceivingFacility,
		MessageType:       "ADT^" + event,
		ControlID:         routing.controlID(),
	})
	b.AddSegmentFields("EVN", event, FormatTimestamp(time.Now()))
	b.AddPID(PIDInfo{
		PatientID:      patient.ID,
		IdentifierType: patient.IdentifierType,
		Name:           patient.Name,
		BirthDate:      patient.BirthDate,
		Gender:         patient.Gender,
		Address:        patient.Address,
		Phone:          patient.Phone,
	})
	if event != "A31" && event != "A40" {
		b.AddPV1(PV1Info{
			PatientClass:    admission.PatientClass,
			Location:        admission.Location,
			AdmissionType:   admission.AdmissionType,
			AttendingDoctor: admission.AttendingDoctor,
		})
	}

	p := b.msg.Encoding
	for i, nk := range admission.NextOfKin {
		b.AddSegmentFields("NK1",
			setIDValue(i+1),
			nk.Name.encode(p),
			nk.Relationship,
			"",
			nk.Phone,
		)
	}
	for i, dx := range admission.Diagnoses {
		b.AddSegmentFields("DG1",
			setIDValue(i+1),
			dx.CodingMethod,
			joinComponents(p, dx.Code, dx.Description, dx.CodingMethod),
			"",
			FormatTimestamp(time.Now()),
			dx.Type,
		)
	}
	for i, al := range admission.Allergies {
		b.AddSegmentFields("AL1",
			setIDValue(i+1),
			al.Type,
			joinComponents(p, al.Code, al.Description),
			al.Severity,
			al.Reaction,
		)
	}

	return b.Build(), nil
}

// ParseADTMessage walks an ADT message's segments and reconstructs the
// admission record. Missing optional segments are tolerated; only a message
// whose type is not ADT at all is rejected.
func ParseADTMessage(m *Message) (*ADTRecord, error) {
	typ, ok := m.Type()
	if !ok || !strings.HasPrefix(typ, "ADT") {
		return nil, fmt.Errorf("%w: expected ADT, got %q", ErrUnknownMessageType, typ)
	}

	rec := &ADTRecord{
		MessageType: typ,
		ControlID:   m.ControlID(),
		Patient:     parsePatient(m.FirstSegment("PID")),
	}

	if evn := m.FirstSegment("EVN"); evn != nil {
		rec.Event = &EventInfo{
			TypeCode:     evn.FieldValue(1),
			RecordedTime: evn.FieldValue(2),
		}
	}

	if pv1 := m.FirstSegment("PV1"); pv1 != nil {
		rec.Visit = &PV1Info{
			PatientClass:    pv1.FieldValue(2),
			Location:        pv1.FieldValue(3),
			AdmissionType:   pv1.FieldValue(4),
			AttendingDoctor: pv1.FieldValue(7),
		}
	}

	for _, nk1 := range m.AllSegments("NK1") {
		rec.NextOfKin = append(rec.NextOfKin, NextOfKin{
			Name:         parsePersonName(nk1.Field(2)),
			Relationship: nk1.FieldValue(3),
			Phone:        nk1.FieldValue(5),
		})
	}
	for _, dg1 := range m.AllSegments("DG1") {
		rec.Diagnoses = append(rec.Diagnoses, Diagnosis{
			Code:         dg1.ComponentValue(3, 0),
			Description:  dg1.ComponentValue(3, 1),
			CodingMethod: dg1.FieldValue(2),
			Type:         dg1.FieldValue(6),
		})
	}
	for _, al1 := range m.AllSegments("AL1") {
		rec.Allergies = append(rec.Allergies, Allergy{
			Type:        al1.FieldValue(2),
			Code:        al1.ComponentValue(3, 0),
			Description: al1.ComponentValue(3, 1),
			Severity:    al1.FieldValue(4),
			Reaction:    al1.FieldValue(5),
		})
	}

	return rec, nil
}
