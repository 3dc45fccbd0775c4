package exchange

import (
	"time"

	"github.com/google/uuid"
)

// Message direction relative to the gateway.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Journal statuses.
const (
	StatusAccepted  = "accepted"  // parsed and structurally valid
	StatusRejected  = "rejected"  // parsed but failed validation
	StatusGenerated = "generated" // built by the gateway
)

// MessageRecord maps to the messages table: one journaled HL7 v2 message,
// inbound or outbound, with the raw wire text preserved byte for byte.
type MessageRecord struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ControlID        string    `db:"control_id" json:"control_id"`
	MessageType      string    `db:"message_type" json:"message_type"`
	Direction        string    `db:"direction" json:"direction"`
	Status           string    `db:"status" json:"status"`
	Raw              string    `db:"raw" json:"raw"`
	PatientID        *string   `db:"patient_id" json:"patient_id,omitempty"`
	SendingApp       *string   `db:"sending_app" json:"sending_app,omitempty"`
	ReceivingApp     *string   `db:"receiving_app" json:"receiving_app,omitempty"`
	ValidationErrors []string  `db:"validation_errors" json:"validation_errors,omitempty"`
	ReceivedAt       time.Time `db:"received_at" json:"received_at"`
}

// Valid reports whether the journaled message passed structural validation.
func (m *MessageRecord) Valid() bool {
	return m.Status != StatusRejected
}
