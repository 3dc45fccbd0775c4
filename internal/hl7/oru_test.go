package hl7

import (
	"errors"
	"testing"
)

func testObservations() []Observation {
	return []Observation{
		{
			ValueType:      "NM",
			Identifier:     CodedValue{Code: "718-7", Text: "Hemoglobin", CodingSystem: "LN"},
			Value:          "13.5",
			Units:          "g/dL",
			ReferenceRange: "12.0-17.5",
			AbnormalFlags:  "N",
		},
		{
			Identifier: CodedValue{Code: "XT-1", Text: "Comment"},
			Value:      "sample slightly hemolyzed",
		},
	}
}

func TestBuildORUMessage(t *testing.T) {
	msg, err := BuildORUMessage(testRouting(), testPatient(), ResultData{
		PlacerOrderNumber: "ORD300",
		FillerOrderNumber: "LAB300",
		UniversalService:  CodedValue{Code: "85025", Text: "CBC", CodingSystem: "LN"},
		Observations:      testObservations(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	typ, _ := msg.Type()
	if typ != "ORU^R01" {
		t.Errorf("expected type 'ORU^R01', got %q", typ)
	}
	if orc := msg.FirstSegment("ORC"); orc.FieldValue(1) != "RE" {
		t.Errorf("expected ORC-1 'RE', got %q", orc.FieldValue(1))
	}
	if obr := msg.FirstSegment("OBR"); obr.FieldValue(25) != "F" {
		t.Errorf("expected default result status 'F' in OBR-25, got %q", obr.FieldValue(25))
	}

	obxs := msg.AllSegments("OBX")
	if len(obxs) != 2 {
		t.Fatalf("expected 2 OBX segments, got %d", len(obxs))
	}
	first := obxs[0]
	if first.FieldValue(2) != "NM" || first.FieldValue(5) != "13.5" || first.FieldValue(6) != "g/dL" {
		t.Errorf("unexpected first OBX: %q", first.Encode(msg.Encoding))
	}
	second := obxs[1]
	if second.FieldValue(1) != "2" {
		t.Error("OBX set IDs should increment")
	}
	if second.FieldValue(2) != "ST" {
		t.Errorf("expected default value type 'ST', got %q", second.FieldValue(2))
	}
	if second.FieldValue(11) != "F" {
		t.Errorf("expected default observation status 'F', got %q", second.FieldValue(11))
	}

	if ok, errs := msg.Validate(); !ok {
		t.Errorf("built ORU should validate, got %v", errs)
	}
}

func TestBuildORUMessage_NoObservations(t *testing.T) {
	if _, err := BuildORUMessage(testRouting(), testPatient(), ResultData{}); err == nil {
		t.Error("expected error without observations")
	}
}

func TestORUHandlerRoundTrip(t *testing.T) {
	patient := testPatient()
	msg, err := BuildORUMessage(testRouting(), patient, ResultData{
		FillerOrderNumber: "LAB400",
		UniversalService:  CodedValue{Code: "85025", Text: "CBC", CodingSystem: "LN"},
		ResultStatus:      "P",
		Observations:      testObservations(),
		Notes:             []string{"Repeat in 2 weeks"},
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	rec, err := ParseORUMessage(msg)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if rec.Patient == nil || rec.Patient.ID != patient.ID {
		t.Errorf("patient ID lost in round trip: %+v", rec.Patient)
	}
	if rec.ResultStatus != "P" {
		t.Errorf("expected result status 'P', got %q", rec.ResultStatus)
	}
	if len(rec.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(rec.Observations))
	}
	if rec.Observations[0].Identifier.Text != "Hemoglobin" || rec.Observations[0].Value != "13.5" {
		t.Errorf("observation lost in round trip: %+v", rec.Observations[0])
	}
	if rec.Order == nil || rec.Order.FillerOrderNumber != "LAB400" {
		t.Errorf("order lost in round trip: %+v", rec.Order)
	}
	if len(rec.Notes) != 1 {
		t.Errorf("notes lost: %v", rec.Notes)
	}
}

func TestParseORUMessage_SampleWire(t *testing.T) {
	msg, _, err := ParseMessage(sampleORU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := ParseORUMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(rec.Observations))
	}
	if rec.Observations[1].Identifier.Text != "Hematocrit" || rec.Observations[1].Value != "40.1" {
		t.Errorf("unexpected second observation: %+v", rec.Observations[1])
	}
}

func TestParseRecord_Dispatch(t *testing.T) {
	parse := func(raw string) interface{} {
		t.Helper()
		msg, _, err := ParseMessage(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rec, err := ParseRecord(msg)
		if err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		return rec
	}

	if _, ok := parse(sampleADT).(*ADTRecord); !ok {
		t.Error("expected *ADTRecord for an ADT message")
	}
	if _, ok := parse(sampleORM).(*ORMRecord); !ok {
		t.Error("expected *ORMRecord for an ORM message")
	}
	if _, ok := parse(sampleORU).(*ORURecord); !ok {
		t.Error("expected *ORURecord for an ORU message")
	}
}

func TestParseRecord_UnknownType(t *testing.T) {
	raw := "MSH|^~\\&|App|Fac|RApp|RFac|20240115143025||SIU^S12|C1|P|2.5"
	msg, _, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseRecord(msg); !errors.Is(err, ErrUnknownMessageType) {
		t.Errorf("expected ErrUnknownMessageType, got %v", err)
	}
}
