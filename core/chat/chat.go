// Package chat holds the transport-neutral message types exchanged between the
// Telegram adapter and the dialogue core.
package chat

import (
	"context"
	"fmt"

	"github.com/m3rciful/numbot/core/dialogue"
)

// User identifies the author of an inbound message.
type User struct {
	ID       int64
	Username string
}

// Message is one inbound text message.
type Message struct {
	ConversationID dialogue.ConversationID
	Sender         User
	Text           string
	// UpdateID is the transport sequence number, zero when unknown.
	UpdateID int
}

// Outbound delivers text replies to a conversation.
type Outbound interface {
	Send(ctx context.Context, to dialogue.ConversationID, text string) error
}

// OutboundFunc adapts a function to Outbound.
type OutboundFunc func(ctx context.Context, to dialogue.ConversationID, text string) error

func (f OutboundFunc) Send(ctx context.Context, to dialogue.ConversationID, text string) error {
	return f(ctx, to, text)
}

// Send error codes.
const (
	CodeTransient    = "TG_TRANSIENT"
	CodeForbidden    = "TG_FORBIDDEN"
	CodeBadRequest   = "TG_BAD_REQUEST"
	CodeRateLimited  = "TG_RATE_LIMITED"
	CodeCancelled    = "TG_CANCELLED"
	CodeSendInternal = "TG_SEND"
)

// SendError reports a failed delivery.
type SendError struct {
	To   dialogue.ConversationID
	Code string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("chat: send to %s failed (%s): %v", e.To, e.Code, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
