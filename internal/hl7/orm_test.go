package hl7

import (
	"strings"
	"testing"
)

func TestBuildORMMessage(t *testing.T) {
	msg, err := BuildORMMessage(testRouting(), testPatient(), OrderData{
		PlacerOrderNumber: "ORD100",
		UniversalService:  CodedValue{Code: "85025", Text: "CBC", CodingSystem: "LN"},
		OrderingProvider:  "1234^Smith^Robert",
		Priority:          "S",
		Notes:             []string{"Fasting sample"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	typ, _ := msg.Type()
	if typ != "ORM^O01" {
		t.Errorf("expected type 'ORM^O01', got %q", typ)
	}

	orc := msg.FirstSegment("ORC")
	if orc == nil {
		t.Fatal("expected ORC segment")
	}
	if orc.FieldValue(1) != "NW" {
		t.Errorf("expected default order control 'NW', got %q", orc.FieldValue(1))
	}
	if orc.FieldValue(2) != "ORD100" {
		t.Errorf("expected placer number 'ORD100', got %q", orc.FieldValue(2))
	}
	if orc.ComponentValue(12, 1) != "Smith" {
		t.Errorf("expected ordering provider in ORC-12, got %q", orc.FieldValue(12))
	}

	obr := msg.FirstSegment("OBR")
	if obr == nil {
		t.Fatal("expected OBR segment")
	}
	if obr.ComponentValue(4, 0) != "85025" || obr.ComponentValue(4, 2) != "LN" {
		t.Errorf("unexpected OBR-4: %q", obr.FieldValue(4))
	}
	if obr.FieldValue(5) != "S" {
		t.Errorf("expected priority 'S', got %q", obr.FieldValue(5))
	}

	nte := msg.FirstSegment("NTE")
	if nte == nil || nte.FieldValue(3) != "Fasting sample" {
		t.Errorf("unexpected NTE: %v", nte)
	}

	if ok, errs := msg.Validate(); !ok {
		t.Errorf("built ORM should validate, got %v", errs)
	}
}

func TestBuildORMMessage_MissingServiceCode(t *testing.T) {
	if _, err := BuildORMMessage(testRouting(), testPatient(), OrderData{}); err == nil {
		t.Error("expected error without a universal service code")
	}
}

func TestBuildORMMessage_GeneratesPlacerNumber(t *testing.T) {
	msg, err := BuildORMMessage(testRouting(), testPatient(), OrderData{
		UniversalService: CodedValue{Code: "85025"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	placer := msg.FirstSegment("ORC").FieldValue(2)
	if !strings.HasPrefix(placer, "ORD") || len(placer) != 19 {
		t.Errorf("expected generated ORD placer number, got %q", placer)
	}
}

func TestORMHandlerRoundTrip(t *testing.T) {
	patient := testPatient()
	msg, err := BuildORMMessage(testRouting(), patient, OrderData{
		PlacerOrderNumber: "ORD200",
		UniversalService:  CodedValue{Code: "80053", Text: "Metabolic panel", CodingSystem: "LN"},
		Notes:             []string{"STAT"},
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	rec, err := ParseORMMessage(msg)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if rec.Patient == nil || rec.Patient.ID != patient.ID {
		t.Errorf("patient ID lost in round trip: %+v", rec.Patient)
	}
	if rec.Order == nil {
		t.Fatal("expected an order record")
	}
	if rec.Order.PlacerOrderNumber != "ORD200" {
		t.Errorf("expected placer 'ORD200', got %q", rec.Order.PlacerOrderNumber)
	}
	if rec.Order.UniversalService.Text != "Metabolic panel" {
		t.Errorf("service text lost: %+v", rec.Order.UniversalService)
	}
	if len(rec.Notes) != 1 || rec.Notes[0] != "STAT" {
		t.Errorf("notes lost: %v", rec.Notes)
	}
}

func TestParseORMMessage_SampleWire(t *testing.T) {
	msg, _, err := ParseMessage(sampleORM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := ParseORMMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Order.OrderControl != "NW" {
		t.Errorf("expected order control 'NW', got %q", rec.Order.OrderControl)
	}
	if rec.Order.UniversalService.Code != "85025" {
		t.Errorf("expected service code '85025', got %q", rec.Order.UniversalService.Code)
	}
	if rec.Order.OrderingProvider == "" {
		t.Error("expected ordering provider from ORC-12")
	}
}

func TestParseORMMessage_WrongType(t *testing.T) {
	msg, _, err := ParseMessage(sampleADT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseORMMessage(msg); err == nil {
		t.Error("expected error for a non-ORM message")
	}
}
