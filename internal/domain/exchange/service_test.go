package exchange

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hl7bridge/hl7bridge/internal/hl7"
)

// -- Mock Repository --

type mockMessageRepo struct {
	store map[uuid.UUID]*MessageRecord
	order []uuid.UUID
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{store: make(map[uuid.UUID]*MessageRecord)}
}

func (m *mockMessageRepo) Create(_ context.Context, rec *MessageRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	m.store[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	return nil
}

func (m *mockMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*MessageRecord, error) {
	rec, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return rec, nil
}

func (m *mockMessageRepo) GetByControlID(_ context.Context, controlID string) (*MessageRecord, error) {
	for _, rec := range m.store {
		if rec.ControlID == controlID {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockMessageRepo) List(_ context.Context, params map[string]string, limit, offset int) ([]*MessageRecord, int, error) {
	var r []*MessageRecord
	for _, id := range m.order {
		rec := m.store[id]
		if p, ok := params["type"]; ok && rec.MessageType != p {
			continue
		}
		if p, ok := params["direction"]; ok && rec.Direction != p {
			continue
		}
		if p, ok := params["status"]; ok && rec.Status != p {
			continue
		}
		r = append(r, rec)
	}
	return r, len(r), nil
}

func newTestService() (*Service, *mockMessageRepo) {
	repo := newMockMessageRepo()
	routing := hl7.Routing{
		SendingApp:        "HL7BRIDGE",
		SendingFacility:   "HL7BRIDGE",
		ReceivingApp:      "EHR",
		ReceivingFacility: "HOSPITAL",
	}
	return NewService(repo, routing, zerolog.Nop()), repo
}

const validADT = "MSH|^~\\&|SENDAPP|SENDFAC|RECVAPP|RECVFAC|20240315103000||ADT^A01|CTRL001|P|2.5\r" +
	"EVN|A01|20240315103000\r" +
	"PID|1||12345^^^HOSP^MR||DOE^JANE||19800101|F\r" +
	"PV1|1|I|ICU^201^A"

// Same message without PV1, which A01 requires.
const invalidADT = "MSH|^~\\&|SENDAPP|SENDFAC|RECVAPP|RECVFAC|20240315103000||ADT^A01|CTRL002|P|2.5\r" +
	"EVN|A01|20240315103000\r" +
	"PID|1||12345^^^HOSP^MR||DOE^JANE||19800101|F"

// -- Service Tests --

func TestIngest_ValidMessage(t *testing.T) {
	svc, _ := newTestService()
	result, err := svc.Ingest(context.Background(), validADT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := result.Record
	if rec.Status != StatusAccepted {
		t.Errorf("status = %q, want %q", rec.Status, StatusAccepted)
	}
	if rec.Direction != DirectionInbound {
		t.Errorf("direction = %q, want %q", rec.Direction, DirectionInbound)
	}
	if rec.MessageType != "ADT^A01" {
		t.Errorf("message type = %q, want ADT^A01", rec.MessageType)
	}
	if rec.ControlID != "CTRL001" {
		t.Errorf("control ID = %q, want CTRL001", rec.ControlID)
	}
	if rec.Raw != validADT {
		t.Error("journaled raw text is not byte-exact")
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected validation errors: %v", result.Errors)
	}
}

func TestIngest_CapturesRoutingAndPatient(t *testing.T) {
	svc, _ := newTestService()
	result, err := svc.Ingest(context.Background(), validADT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := result.Record
	if rec.SendingApp == nil || *rec.SendingApp != "SENDAPP" {
		t.Errorf("sending app = %v, want SENDAPP", rec.SendingApp)
	}
	if rec.ReceivingApp == nil || *rec.ReceivingApp != "RECVAPP" {
		t.Errorf("receiving app = %v, want RECVAPP", rec.ReceivingApp)
	}
	if rec.PatientID == nil || *rec.PatientID != "12345" {
		t.Errorf("patient ID = %v, want 12345", rec.PatientID)
	}
}

func TestIngest_InvalidMessageJournaledRejected(t *testing.T) {
	svc, repo := newTestService()
	result, err := svc.Ingest(context.Background(), invalidADT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Record.Status != StatusRejected {
		t.Errorf("status = %q, want %q", result.Record.Status, StatusRejected)
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected validation errors")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "PV1") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a PV1 error, got %v", result.Errors)
	}
	if len(repo.store) != 1 {
		t.Errorf("expected rejected message to be journaled, store has %d", len(repo.store))
	}
}

func TestIngest_UnparseableNotJournaled(t *testing.T) {
	svc, repo := newTestService()
	if _, err := svc.Ingest(context.Background(), "PID|1||12345"); err == nil {
		t.Fatal("expected error for message without MSH")
	}
	if len(repo.store) != 0 {
		t.Errorf("expected nothing journaled, store has %d", len(repo.store))
	}
}

func TestIngest_EmptyInput(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Ingest(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestBuildADT(t *testing.T) {
	svc, _ := newTestService()
	rec, err := svc.BuildADT(context.Background(), "A01",
		hl7.PatientInfo{ID: "P100", Name: hl7.PersonName{Family: "SMITH", Given: "JOHN"}},
		hl7.AdmissionData{PatientClass: "I", Location: "3W^301^B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.MessageType != "ADT^A01" {
		t.Errorf("message type = %q, want ADT^A01", rec.MessageType)
	}
	if rec.Direction != DirectionOutbound {
		t.Errorf("direction = %q, want %q", rec.Direction, DirectionOutbound)
	}
	if rec.Status != StatusGenerated {
		t.Errorf("status = %q, want %q", rec.Status, StatusGenerated)
	}
	if !strings.HasPrefix(rec.Raw, "MSH|^~\\&|HL7BRIDGE|") {
		t.Errorf("raw does not start with configured MSH: %q", rec.Raw[:40])
	}
	if rec.PatientID == nil || *rec.PatientID != "P100" {
		t.Errorf("patient ID = %v, want P100", rec.PatientID)
	}
}

func TestBuildADT_UnknownEvent(t *testing.T) {
	svc, repo := newTestService()
	// Any event code is accepted; the trigger just lands in MSH-9.
	rec, err := svc.BuildADT(context.Background(), "A99",
		hl7.PatientInfo{ID: "P100"}, hl7.AdmissionData{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.MessageType != "ADT^A99" {
		t.Errorf("message type = %q, want ADT^A99", rec.MessageType)
	}
	if len(repo.store) != 1 {
		t.Errorf("expected 1 journaled message, got %d", len(repo.store))
	}
}

func TestBuildORM(t *testing.T) {
	svc, _ := newTestService()
	rec, err := svc.BuildORM(context.Background(),
		hl7.PatientInfo{ID: "P200", Name: hl7.PersonName{Family: "LEE"}},
		hl7.OrderData{UniversalService: hl7.CodedValue{Code: "CBC", Text: "Complete Blood Count", CodingSystem: "L"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.MessageType != "ORM^O01" {
		t.Errorf("message type = %q, want ORM^O01", rec.MessageType)
	}
	msg, _, err := hl7.ParseMessage(rec.Raw)
	if err != nil {
		t.Fatalf("generated message does not parse: %v", err)
	}
	if ok, errs := msg.Validate(); !ok {
		t.Errorf("generated ORM fails validation: %v", errs)
	}
}

func TestBuildORU(t *testing.T) {
	svc, _ := newTestService()
	rec, err := svc.BuildORU(context.Background(),
		hl7.PatientInfo{ID: "P300"},
		hl7.ResultData{
			UniversalService: hl7.CodedValue{Code: "GLU", Text: "Glucose"},
			Observations: []hl7.Observation{
				{Identifier: hl7.CodedValue{Code: "GLU"}, Value: "105", Units: "mg/dL"},
			},
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.MessageType != "ORU^R01" {
		t.Errorf("message type = %q, want ORU^R01", rec.MessageType)
	}
	msg, _, err := hl7.ParseMessage(rec.Raw)
	if err != nil {
		t.Fatalf("generated message does not parse: %v", err)
	}
	if ok, errs := msg.Validate(); !ok {
		t.Errorf("generated ORU fails validation: %v", errs)
	}
}

func TestDecode(t *testing.T) {
	svc, repo := newTestService()
	rec, warnings, err := svc.Decode(validADT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	adt, ok := rec.(*hl7.ADTRecord)
	if !ok {
		t.Fatalf("expected *hl7.ADTRecord, got %T", rec)
	}
	if adt.Patient == nil || adt.Patient.ID != "12345" {
		t.Error("patient not decoded")
	}
	if len(repo.store) != 0 {
		t.Error("Decode must not journal")
	}
}

func TestValidate(t *testing.T) {
	svc, _ := newTestService()
	ok, errs, err := svc.Validate(validADT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || len(errs) != 0 {
		t.Errorf("expected valid, got ok=%v errs=%v", ok, errs)
	}

	ok, errs, err = svc.Validate(invalidADT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || len(errs) == 0 {
		t.Errorf("expected invalid with errors, got ok=%v errs=%v", ok, errs)
	}
}

func TestGetMessageByControlID(t *testing.T) {
	svc, _ := newTestService()
	result, err := svc.Ingest(context.Background(), validADT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.GetMessageByControlID(context.Background(), "CTRL001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != result.Record.ID {
		t.Error("ID mismatch")
	}
}

func TestListMessages_Filters(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Ingest(context.Background(), validADT); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Ingest(context.Background(), invalidADT); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.BuildADT(context.Background(), "A03", hl7.PatientInfo{ID: "P1"}, hl7.AdmissionData{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, total, err := svc.ListMessages(context.Background(), nil, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Errorf("expected 3 messages, got total=%d len=%d", total, len(items))
	}

	items, total, err = svc.ListMessages(context.Background(), map[string]string{"status": StatusRejected}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("expected 1 rejected message, got total=%d len=%d", total, len(items))
	}

	items, total, err = svc.ListMessages(context.Background(), map[string]string{"direction": DirectionOutbound}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("expected 1 outbound message, got total=%d len=%d", total, len(items))
	}
}

func TestNewRecord_TypeFallback(t *testing.T) {
	svc, _ := newTestService()
	// MSH-9 has a type but no trigger event.
	raw := "MSH|^~\\&|A|B|C|D|20240101120000||ADT|CTRL777|P|2.5\rPID|1||99"
	result, err := svc.Ingest(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Record.MessageType != "ADT" {
		t.Errorf("message type = %q, want ADT", result.Record.MessageType)
	}
}
