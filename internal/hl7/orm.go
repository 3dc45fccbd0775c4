package hl7

import (
	"fmt"
	"strings"
	"time"
)

// OrderData carries the inputs for an ORM build. OrderControl defaults to
// "NW" (new order) and PlacerOrderNumber is generated from a UUID when left
// empty.
type OrderData struct {
	OrderControl      string
	PlacerOrderNumber string
	FillerOrderNumber string
	UniversalService  CodedValue
	OrderingProvider  string
	Priority          string
	Notes             []string
}

// OrderRecord is the order-level content of a parsed ORM or ORU message,
// merged from ORC and OBR.
type OrderRecord struct {
	OrderControl      string
	PlacerOrderNumber string
	FillerOrderNumber string
	UniversalService  CodedValue
	OrderingProvider  string
	Priority          string
	TransactionTime   string
}

// ORMRecord is the structured form of a parsed ORM message.
type ORMRecord struct {
	MessageType string
	ControlID   string
	Patient     *PatientInfo
	Order       *OrderRecord
	Notes       []string
}

// BuildORMMessage assembles an ORM^O01 order message: MSH, PID, ORC, OBR,
// then one NTE per note.
func BuildORMMessage(routing Routing, patient PatientInfo, order OrderData) (*Message, error) {
	if order.UniversalService.Code == "" {
		return nil, fmt.Errorf("hl7: order requires a universal service code")
	}
	if order.OrderControl == "" {
		order.OrderControl = "NW"
	}
	if order.PlacerOrderNumber == "" {
		order.PlacerOrderNumber = "ORD" + NewControlID()[3:]
	}

	b := NewMessageBuilder()
	b.AddMSH(MSHInfo{
		SendingApp:        routing.SendingApp,
		SendingFacility:   routing.SendingFacility,
		ReceivingApp:      routing.ReceivingApp,
		ReceivingFacility: routing.ReceivingFacility,
		MessageType:       "ORM^O01",
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
		order.OrderControl,
		order.PlacerOrderNumber,
		order.FillerOrderNumber,
		"", "", "", "", "",
		now,
		"", "",
		order.OrderingProvider,
	)
	b.AddSegmentFields("OBR",
		"1",
		order.PlacerOrderNumber,
		order.FillerOrderNumber,
		order.UniversalService.encode(p),
		order.Priority,
		"",
		now,
	)
	addNotes(b, order.Notes)

	return b.Build(), nil
}

// ParseORMMessage walks an ORM message's segments and reconstructs the order
// record. Missing optional segments are tolerated.
func ParseORMMessage(m *Message) (*ORMRecord, error) {
	typ, ok := m.Type()
	if !ok || !strings.HasPrefix(typ, "ORM") {
		return nil, fmt.Errorf("%w: expected ORM, got %q", ErrUnknownMessageType, typ)
	}

	rec := &ORMRecord{
		MessageType: typ,
		ControlID:   m.ControlID(),
		Patient:     parsePatient(m.FirstSegment("PID")),
		Order:       parseOrder(m),
		Notes:       parseNotes(m),
	}
	return rec, nil
}

// parseOrder merges ORC and OBR into one OrderRecord, or nil when neither
// segment is present.
func parseOrder(m *Message) *OrderRecord {
	orc := m.FirstSegment("ORC")
	obr := m.FirstSegment("OBR")
	if orc == nil && obr == nil {
		return nil
	}

	rec := &OrderRecord{}
	if orc != nil {
		rec.OrderControl = orc.FieldValue(1)
		rec.PlacerOrderNumber = orc.FieldValue(2)
		rec.FillerOrderNumber = orc.FieldValue(3)
		rec.TransactionTime = orc.FieldValue(9)
		rec.OrderingProvider = orc.FieldValue(12)
	}
	if obr != nil {
		if rec.PlacerOrderNumber == "" {
			rec.PlacerOrderNumber = obr.FieldValue(2)
		}
		if rec.FillerOrderNumber == "" {
			rec.FillerOrderNumber = obr.FieldValue(3)
		}
		rec.UniversalService = parseCodedValue(obr.Field(4))
		rec.Priority = obr.FieldValue(5)
	}
	return rec
}

// addNotes appends one NTE segment per comment.
func addNotes(b *MessageBuilder, notes []string) {
	for i, note := range notes {
		b.AddSegmentFields("NTE", setIDValue(i+1), "L", note)
	}
}
