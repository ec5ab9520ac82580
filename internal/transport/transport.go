// Package transport integrates with the external WhatsApp gateway that
// actually delivers messages to devices. The engine only consumes the
// send(message) -> deliveryId | failure contract.
package transport

import (
	"context"

	"github.com/ptrelli/wadrip/internal/campaign"
)

// Message is one outbound message handed to the gateway
type Message struct {
	To         string               `json:"to"` // phone number
	Body       string               `json:"body,omitempty"`
	Attachment *campaign.Attachment `json:"attachment,omitempty"`
}

// SendResult carries the transport-assigned delivery identifier
type SendResult struct {
	MessageID string `json:"message_id"`
}

// Client sends messages through one gateway session
type Client interface {
	Send(ctx context.Context, msg *Message) (*SendResult, error)
}
