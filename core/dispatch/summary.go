package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/numbot/core/chat"
	"github.com/m3rciful/numbot/core/dialogue"
	"github.com/m3rciful/numbot/core/fsm"
	"github.com/m3rciful/numbot/core/logger"
)

func (d *Dispatcher) summarize(ctx context.Context, rule string, replies int, start time.Time, err error) {
	took := time.Since(start)
	status, outcome := classify(rule, err)
	d.rec.ObserveMessage(rule, status, took)

	if rule != "" {
		ctx = logger.WithHandler(ctx, rule)
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("rule", rule),
		slog.String("outcome", outcome),
		slog.Int("messages", replies),
		slog.Duration("duration", logger.Took(start)),
	}
	level := slog.LevelInfo
	if status == "fail" {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.Dispatch, level, "handler.handled", attrs...)
}

func classify(rule string, err error) (status, outcome string) {
	var (
		storeErr *dialogue.StoreError
		sendErr  *chat.SendError
	)
	switch {
	case err == nil && rule == "":
		return "skip", "ok"
	case err == nil:
		return "ok", "ok"
	case errors.Is(err, fsm.ErrNoRule):
		return "skip", "ok"
	case errors.As(err, &storeErr):
		return "fail", "store_error"
	case errors.As(err, &sendErr):
		return "fail", "send_error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "fail", "cancelled"
	default:
		return "fail", "fail"
	}
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var sendErr *chat.SendError
	if errors.As(err, &sendErr) && sendErr.Code != "" {
		return sendErr.Code
	}
	var c interface{ Code() string }
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
