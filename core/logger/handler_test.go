package logger

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestHandler(buf *bytes.Buffer, format logFormat) (*structuredHandler, *asyncWriter) {
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	return newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	}), aw
}

func closeWriter(t *testing.T, aw *asyncWriter) {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(handler).With("component", "dispatch")
	LogEvent(ctx, log, slog.LevelInfo, "handler.handled",
		slog.String("status", "ok"),
		slog.String("rule", "start"),
	)
	closeWriter(t, aw)

	tokens := strings.Split(strings.TrimSpace(buf.String()), " ")
	expected := []string{"ts=", "level=INFO", "component=dispatch", "event=handler.handled", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "rule=start"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), buf.String())
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONCompactRID(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatJSON)
	rawRID := BuildRID(12, 34, 56)
	ctx := WithRID(Background(), rawRID)

	LogEvent(ctx, slog.New(handler).With("component", "store"), slog.LevelError, "store.op",
		slog.String("status", "fail"),
		slog.Any("err", errors.New("boom")),
	)
	closeWriter(t, aw)

	line := strings.TrimSpace(buf.String())
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"store"`, `"event":"store.op"`, `"status":"fail"`, `"rid":"` + CompactRID(rawRID) + `"`, `"rid_full":"` + rawRID + `"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
	if !strings.Contains(line, `"err":"boom"`) {
		t.Fatalf("expected err attr, got %s", line)
	}
}

func TestStructuredHandlerDurationsAndOutcome(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)

	slog.New(handler).Info("x",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.Duration("startup_duration", 2*time.Second),
		slog.String("outcome", "bogus"),
		slog.String("empty", ""),
	)
	closeWriter(t, aw)

	line := buf.String()
	for _, want := range []string{"duration_ms=2", "startup_duration_ms=2000", "event=x", "component=app"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
	for _, unwanted := range []string{"outcome=", "empty="} {
		if strings.Contains(line, unwanted) {
			t.Fatalf("did not expect %q in %s", unwanted, line)
		}
	}
}

func TestCompactRID(t *testing.T) {
	if got := CompactRID("35:36:1"); got != "z.10.1" {
		t.Fatalf("CompactRID = %q", got)
	}
	if got := CompactRID("not-a-rid"); got != "not-a-rid" {
		t.Fatalf("CompactRID passthrough = %q", got)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var allowed int
	for i := 0; i < 9; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3", allowed)
	}
	if n, d := parseRatioSpec("2/5"); n != 2 || d != 5 {
		t.Fatalf("parseRatioSpec = %d/%d", n, d)
	}
	if n, d := parseRatioSpec("10"); n != 1 || d != 10 {
		t.Fatalf("parseRatioSpec = %d/%d", n, d)
	}
}

func TestTookRoundsToMillisecond(t *testing.T) {
	took := Took(time.Now().Add(-1500 * time.Microsecond))
	if took < 2*time.Millisecond || took%time.Millisecond != 0 {
		t.Fatalf("Took = %v", took)
	}
	if got := Took(time.Now().Add(time.Hour)); got != 0 {
		t.Fatalf("Took(future) = %v", got)
	}
}
