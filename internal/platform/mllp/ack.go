package mllp

import (
	"strings"
	"time"

	"github.com/hl7bridge/hl7bridge/internal/hl7"
)

// Acknowledgment codes for MSA-1.
const (
	AckAccept = "AA"
	AckError  = "AE"
	AckReject = "AR"
)

// GenerateACK creates an HL7 ACK message for the given incoming message.
// ackCode should be AckAccept, AckError, or AckReject; textMessage, when
// non-empty, is carried in MSA-3.
//
// The ACK swaps the sending and receiving application/facility from the
// original message and references the original control ID in MSA-2.
func GenerateACK(incoming *hl7.Message, ackCode, textMessage string) *hl7.Message {
	trigger := ""
	if typ, ok := incoming.Type(); ok {
		if _, t, found := strings.Cut(typ, "^"); found {
			trigger = t
		}
	}

	msh := incoming.FirstSegment("MSH")
	version := "2.5"
	var sendingApp, sendingFac, receivingApp, receivingFac string
	if msh != nil {
		// Swap the routing so the ACK goes back where the message came from.
		sendingApp = msh.FieldValue(5)
		sendingFac = msh.FieldValue(6)
		receivingApp = msh.FieldValue(3)
		receivingFac = msh.FieldValue(4)
		if v := msh.FieldValue(12); v != "" {
			version = v
		}
	}

	controlID := "ACK" + time.Now().UTC().Format("20060102150405.000")

	b := hl7.NewMessageBuilder()
	b.AddMSH(hl7.MSHInfo{
		SendingApp:        sendingApp,
		SendingFacility:   sendingFac,
		ReceivingApp:      receivingApp,
		ReceivingFacility: receivingFac,
		MessageType:       "ACK^" + trigger,
		ControlID:         controlID,
		VersionID:         version,
	})
	if textMessage != "" {
		b.AddSegmentFields("MSA", ackCode, incoming.ControlID(), textMessage)
	} else {
		b.AddSegmentFields("MSA", ackCode, incoming.ControlID())
	}

	return b.Build()
}

// DefaultHandler returns a Handler that always ACKs with AA.
func DefaultHandler() Handler {
	return func(msg *hl7.Message) *hl7.Message {
		return GenerateACK(msg, AckAccept, "")
	}
}
