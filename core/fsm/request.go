package fsm

import (
	"context"
	"errors"

	"github.com/m3rciful/numbot/core/chat"
	"github.com/m3rciful/numbot/core/commands"
	"github.com/m3rciful/numbot/core/dialogue"
)

// Parser turns message text into a command.
type Parser interface {
	Parse(text string) (commands.Command, error)
}

// Request carries one inbound message through the machine.
type Request struct {
	Message  chat.Message
	Dialogue *dialogue.Dialogue
	// State is the dialogue state loaded before routing.
	State dialogue.State

	out    chat.Outbound
	parser Parser

	parsed   bool
	cmd      commands.Command
	parseErr error

	replies int
}

// NewRequest binds msg to its dialogue, the state read from it and the outbound channel.
func NewRequest(msg chat.Message, dlg *dialogue.Dialogue, st dialogue.State, out chat.Outbound) *Request {
	return &Request{Message: msg, Dialogue: dlg, State: st, out: out}
}

// Command parses the message text once and returns the cached result afterwards.
func (r *Request) Command() (commands.Command, error) {
	if !r.parsed {
		r.parsed = true
		if r.parser == nil {
			r.parseErr = &commands.ParseError{Text: r.Message.Text, Reason: commands.ReasonUnknown}
		} else {
			r.cmd, r.parseErr = r.parser.Parse(r.Message.Text)
		}
	}
	return r.cmd, r.parseErr
}

// Reply sends text to the conversation of the request. Failures are always *chat.SendError.
func (r *Request) Reply(ctx context.Context, text string) error {
	if r.out == nil {
		return &chat.SendError{To: r.Message.ConversationID, Code: chat.CodeSendInternal, Err: errors.New("no outbound configured")}
	}
	err := r.out.Send(ctx, r.Message.ConversationID, text)
	if err == nil {
		r.replies++
		return nil
	}
	var se *chat.SendError
	if errors.As(err, &se) {
		return err
	}
	return &chat.SendError{To: r.Message.ConversationID, Code: chat.CodeSendInternal, Err: err}
}

// Replies reports how many replies were delivered.
func (r *Request) Replies() int { return r.replies }
