// Package sender delivers outbound text to Telegram chats.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/numbot/core/chat"
	"github.com/m3rciful/numbot/core/dialogue"
	"github.com/m3rciful/numbot/core/logger"
)

// Client is the part of *tele.Bot used for delivery.
type Client interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Sender implements chat.Outbound. Calls are synchronous so the dispatcher
// observes the delivery result; transport retries live in the HTTP client.
type Sender struct {
	client Client
}

// New wraps client. *tele.Bot satisfies Client.
func New(client Client) *Sender {
	return &Sender{client: client}
}

// Send delivers text as a plain message. Failures are *chat.SendError.
func (s *Sender) Send(ctx context.Context, to dialogue.ConversationID, text string) error {
	if err := ctx.Err(); err != nil {
		return &chat.SendError{To: to, Code: sendCode(err), Err: err}
	}
	if s.client == nil {
		return &chat.SendError{To: to, Code: chat.CodeSendInternal, Err: errors.New("no telegram client")}
	}

	start := time.Now()
	_, err := s.client.Send(tele.ChatID(to), text)
	if err != nil {
		logSendFailure(ctx, to, err, time.Since(start))
		return &chat.SendError{To: to, Code: sendCode(err), Err: err}
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "tg.sender", "send.success",
			slog.String("status", "ok"),
			slog.String("action", "send.text"),
			slog.Int64("chat_id", int64(to)),
			slog.Int("elapsed_ms", durationToMS(time.Since(start))),
		)
	}
	return nil
}

func logSendFailure(ctx context.Context, to dialogue.ConversationID, err error, elapsed time.Duration) {
	logger.Error(ctx, "tg.sender", "send.fail",
		slog.String("status", "fail"),
		slog.String("action", "send.text"),
		slog.String("endpoint", "sendMessage"),
		slog.Int64("chat_id", int64(to)),
		slog.String("error", sanitizeErrorMessage(err)),
		slog.String("error_kind", classifyError(err)),
		slog.Int("elapsed_ms", durationToMS(elapsed)),
	)
}

func durationToMS(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(logger.RoundMS(d) / time.Millisecond)
}
