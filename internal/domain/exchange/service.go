package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hl7bridge/hl7bridge/internal/hl7"
)

// Service journals and validates HL7 messages flowing through the gateway.
type Service struct {
	messages MessageRepository
	routing  hl7.Routing
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(messages MessageRepository, routing hl7.Routing, logger zerolog.Logger) *Service {
	return &Service{
		messages: messages,
		routing:  routing,
		logger:   logger,
		now:      time.Now,
	}
}

// IngestResult reports the outcome of journaling one inbound message.
type IngestResult struct {
	Record   *MessageRecord `json:"record"`
	Warnings []string       `json:"warnings,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
}

// Ingest parses raw HL7 wire text, validates it, and journals it. Unparseable
// input returns an error and nothing is journaled; a message that parses but
// fails validation is journaled with StatusRejected and the errors attached.
func (s *Service) Ingest(ctx context.Context, raw string) (*IngestResult, error) {
	msg, warnings, err := hl7.ParseMessage(raw)
	if err != nil {
		return nil, err
	}
	return s.IngestParsed(ctx, msg, warnings)
}

// IngestParsed journals a message that was already parsed, e.g. by the MLLP
// listener. The raw text is re-encoded from the message, which is byte-exact
// for unmutated parses.
func (s *Service) IngestParsed(ctx context.Context, msg *hl7.Message, warnings []string) (*IngestResult, error) {
	ok, validationErrors := msg.Validate()

	status := StatusAccepted
	if !ok {
		status = StatusRejected
	}

	rec := s.newRecord(msg, DirectionInbound, status)
	rec.ValidationErrors = validationErrors

	if err := s.messages.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("journal message: %w", err)
	}

	evt := s.logger.Info()
	if !ok {
		evt = s.logger.Warn().Strs("validation_errors", validationErrors)
	}
	evt.
		Str("control_id", rec.ControlID).
		Str("message_type", rec.MessageType).
		Str("status", status).
		Msg("message ingested")

	return &IngestResult{Record: rec, Warnings: warnings, Errors: validationErrors}, nil
}

// BuildADT assembles an ADT message for the given trigger event, journals it
// as outbound, and returns the journal record carrying the wire text.
func (s *Service) BuildADT(ctx context.Context, event string, patient hl7.PatientInfo, admission hl7.AdmissionData) (*MessageRecord, error) {
	msg, err := hl7.BuildADTMessage(event, s.routing, patient, admission)
	if err != nil {
		return nil, err
	}
	return s.journalOutbound(ctx, msg)
}

// BuildORM assembles an ORM^O01 order message and journals it as outbound.
func (s *Service) BuildORM(ctx context.Context, patient hl7.PatientInfo, order hl7.OrderData) (*MessageRecord, error) {
	msg, err := hl7.BuildORMMessage(s.routing, patient, order)
	if err != nil {
		return nil, err
	}
	return s.journalOutbound(ctx, msg)
}

// BuildORU assembles an ORU^R01 result message and journals it as outbound.
func (s *Service) BuildORU(ctx context.Context, patient hl7.PatientInfo, result hl7.ResultData) (*MessageRecord, error) {
	msg, err := hl7.BuildORUMessage(s.routing, patient, result)
	if err != nil {
		return nil, err
	}
	return s.journalOutbound(ctx, msg)
}

// Decode parses raw wire text and returns the typed record for its message
// family (ADT, ORM, or ORU) without journaling anything.
func (s *Service) Decode(raw string) (interface{}, []string, error) {
	msg, warnings, err := hl7.ParseMessage(raw)
	if err != nil {
		return nil, nil, err
	}
	rec, err := hl7.ParseRecord(msg)
	if err != nil {
		return nil, warnings, err
	}
	return rec, warnings, nil
}

// Validate parses raw wire text and runs structural validation without
// journaling anything.
func (s *Service) Validate(raw string) (bool, []string, error) {
	msg, _, err := hl7.ParseMessage(raw)
	if err != nil {
		return false, nil, err
	}
	ok, errs := msg.Validate()
	return ok, errs, nil
}

func (s *Service) GetMessage(ctx context.Context, id uuid.UUID) (*MessageRecord, error) {
	return s.messages.GetByID(ctx, id)
}

func (s *Service) GetMessageByControlID(ctx context.Context, controlID string) (*MessageRecord, error) {
	return s.messages.GetByControlID(ctx, controlID)
}

func (s *Service) ListMessages(ctx context.Context, params map[string]string, limit, offset int) ([]*MessageRecord, int, error) {
	return s.messages.List(ctx, params, limit, offset)
}

func (s *Service) journalOutbound(ctx context.Context, msg *hl7.Message) (*MessageRecord, error) {
	rec := s.newRecord(msg, DirectionOutbound, StatusGenerated)
	if err := s.messages.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("journal message: %w", err)
	}
	s.logger.Info().
		Str("control_id", rec.ControlID).
		Str("message_type", rec.MessageType).
		Msg("message generated")
	return rec, nil
}

func (s *Service) newRecord(msg *hl7.Message, direction, status string) *MessageRecord {
	typ, ok := msg.Type()
	if !ok {
		// MSH-9 was empty or incomplete; fall back to whatever it carried.
		typ = msg.FirstSegment("MSH").FieldValue(9)
		if typ == "" {
			typ = "UNKNOWN"
		}
	}

	rec := &MessageRecord{
		ID:          uuid.New(),
		ControlID:   msg.ControlID(),
		MessageType: typ,
		Direction:   direction,
		Status:      status,
		Raw:         msg.Encode(),
		ReceivedAt:  s.now().UTC(),
	}

	if msh := msg.FirstSegment("MSH"); msh != nil {
		if v := msh.FieldValue(3); v != "" {
			rec.SendingApp = &v
		}
		if v := msh.FieldValue(5); v != "" {
			rec.ReceivingApp = &v
		}
	}
	if pid := msg.FirstSegment("PID"); pid != nil {
		if v := pid.ComponentValue(3, 0); v != "" {
			rec.PatientID = &v
		}
	}

	return rec
}
