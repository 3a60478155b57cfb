package telegram

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/numbot/core/chat"
	"github.com/m3rciful/numbot/core/dialogue"
	"github.com/m3rciful/numbot/core/logger"
	tghelpers "github.com/m3rciful/numbot/core/telegram/helpers"
)

// DropFunc is told why an update never reached the dispatcher.
type DropFunc func(reason string)

// IntakeEndpoints lists the telebot endpoints routed into the inbox. Messages
// without text arrive with an empty Text.
var IntakeEndpoints = []string{
	tele.OnText,
	tele.OnMedia,
	tele.OnContact,
	tele.OnLocation,
	tele.OnVenue,
	tele.OnDice,
}

// MessageFrom converts a message update into a chat message.
func MessageFrom(c tele.Context) (chat.Message, bool) {
	m := c.Message()
	if m == nil || c.Chat() == nil {
		return chat.Message{}, false
	}
	msg := chat.Message{
		ConversationID: dialogue.ConversationID(c.Chat().ID),
		Text:           m.Text,
		UpdateID:       c.Update().ID,
	}
	if u := c.Sender(); u != nil {
		msg.Sender = chat.User{ID: u.ID, Username: u.Username}
	}
	return msg, true
}

// IntakeHandler pushes messages into inbox. It blocks while inbox is full,
// which stalls polling instead of dropping updates, and gives up once ctx is done.
func IntakeHandler(ctx context.Context, inbox chan<- chat.Message, onDrop DropFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		msg, ok := MessageFrom(c)
		if !ok {
			return nil
		}
		select {
		case inbox <- msg:
			return nil
		case <-ctx.Done():
			if onDrop != nil {
				onDrop("shutdown")
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "update.dropped",
				slog.String("status", "skip"),
				slog.String("reason", "shutdown"),
			)
			return nil
		}
	}
}
