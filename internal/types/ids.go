// internal/types/ids.go
package types

import (
	"strconv"

	"github.com/google/uuid"
)

// InboundID identifies one inbound chat delivery for deduplication.
type InboundID string

// MessageInboundID is the ledger key of a plain chat message.
func MessageInboundID(messageID int) InboundID {
	return InboundID("msg_" + strconv.Itoa(messageID))
}

// CallbackInboundID is the ledger key of an inline-button press.
func CallbackInboundID(callbackID string) InboundID {
	return InboundID("cb_" + callbackID)
}

func NewNotificationID() string {
	return uuid.New().String()
}

func NewRequestID() string {
	return uuid.New().String()
}
