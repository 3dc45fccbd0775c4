package hl7

import (
	"fmt"
	"strings"
	"time"
)

// Observation maps to one OBX segment. ValueType and Status are HL7 codes
// (NM/ST/TX, F/P/C) passed through verbatim; the codec does not validate
// them against a vocabulary.
type Observation struct {
	ValueType      string
	Identifier     CodedValue
	Value          string
	Units          string
	ReferenceRange string
	AbnormalFlags  string
	Status         string
}

// ResultData carries the inputs for an ORU build: the order being reported
// on, its observations, and any free-text notes.
type ResultData struct {
	PlacerOrderNumber string
	FillerOrderNumber string
	UniversalService  CodedValue
	ResultStatus      string // F (final), P (preliminary), C (corrected)
	Observations      []Observation
	Notes             []string
}

// ORURecord is the structured form of a parsed ORU message.
type ORURecord struct {
	MessageType  string
	ControlID    string
	Patient      *PatientInfo
	Order        *OrderRecord
	ResultStatus string
	Observations []Observation
	Notes        []string
}

// BuildORUMessage assembles an ORU^R01 result message: MSH, PID, ORC (RE),
// OBR, one OBX per observation, then one NTE per note.
func BuildORUMessage(routing Routing, patient PatientInfo, result ResultData) (*Message, error) {
	if len(result.Observations) == 0 {
		return nil, fmt.Errorf("hl7: result requires at least one observation")
	}
	if result.FillerOrderNumber == "" {
		result.FillerOrderNumber = "RES" + NewControlID()[3:]
	}
	if result.ResultStatus == "" {
		result.ResultStatus = "F"
	}

	b := NewMessageBuilder()
	b.AddMSH(MSHInfo{
		SendingApp:        routing.SendingApp,
		SendingFacility:   routing.SendingFacility,
		ReceivingApp:      routing.ReceivingApp,
		ReceivingFacility: routing.ReceivingFacility,
		MessageType:       "ORU^R01",
		ControlID:         routing.controlID(),
	})
	b.AddPID(PIDInfo{
		PatientID:      patient.ID,
		IdentifierType: patient.IdentifierType,
		Name:           patient.Name,
		BirthDate:      patient.BirthDate,
		Gender:         patient.Gender,
		Address:        patient.Address,
		Phone:          patient.Phone,
	})

	p := b.msg.Encoding
	now := FormatTimestamp(time.Now())
	b.AddSegmentFields("ORC",
		"RE",
		result.PlacerOrderNumber,
		result.FillerOrderNumber,
		"", "", "", "", "",
		now,
	)
	b.AddSegmentFields("OBR",
		"1",
		result.PlacerOrderNumber,
		result.FillerOrderNumber,
		result.UniversalService.encode(p),
		"", "",
		now,
	)
	// OBR-25 carries the result status.
	obr := b.msg.FirstSegment("OBR")
	obr.SetField(25, result.ResultStatus, p)

	for i, obs := range result.Observations {
		status := obs.Status
		if status == "" {
			status = "F"
		}
		valueType := obs.ValueType
		if valueType == "" {
			valueType = "ST"
		}
		b.AddSegmentFields("OBX",
			setIDValue(i+1),
			valueType,
			obs.Identifier.encode(p),
			"",
			obs.Value,
			obs.Units,
			obs.ReferenceRange,
			obs.AbnormalFlags,
			"", "",
			status,
		)
	}
	addNotes(b, result.Notes)

	return b.Build(), nil
}

// ParseORUMessage walks an ORU message's segments and reconstructs the
// result record. Missing optional segments are tolerated.
func ParseORUMessage(m *Message) (*ORURecord, error) {
	typ, ok := m.Type()
	if !ok || !strings.HasPrefix(typ, "ORU") {
		return nil, fmt.Errorf("%w: expected ORU, got %q", ErrUnknownMessageType, typ)
	}

	rec := &ORURecord{
		MessageType: typ,
		ControlID:   m.ControlID(),
		Patient:     parsePatient(m.FirstSegment("PID")),
		Order:       parseOrder(m),
		Notes:       parseNotes(m),
	}
	if obr := m.FirstSegment("OBR"); obr != nil {
		rec.ResultStatus = obr.FieldValue(25)
	}

	for _, obx := range m.AllSegments("OBX") {
		rec.Observations = append(rec.Observations, Observation{
			ValueType:      obx.FieldValue(2),
			Identifier:     parseCodedValue(obx.Field(3)),
			Value:          obx.FieldValue(5),
			Units:          obx.FieldValue(6),
			ReferenceRange: obx.FieldValue(7),
			AbnormalFlags:  obx.FieldValue(8),
			Status:         obx.FieldValue(11),
		})
	}

	return rec, nil
}
