package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/numbot/core/chat"
	"github.com/m3rciful/numbot/core/commands"
	"github.com/m3rciful/numbot/core/dialogue"
	"github.com/m3rciful/numbot/core/storage"
)

type idle struct{}

func (idle) StateKind() string { return "idle" }

type busy struct{}

func (busy) StateKind() string { return "busy" }

type countingParser struct {
	set   *commands.Set
	calls int
}

func (p *countingParser) Parse(text string) (commands.Command, error) {
	p.calls++
	return p.set.Parse(text)
}

func newParser(t *testing.T) *countingParser {
	t.Helper()
	set, err := commands.NewSet("/",
		commands.Command{Name: "get", Description: "get."},
		commands.Command{Name: "reset", Description: "reset."},
	)
	require.NoError(t, err)
	return &countingParser{set: set}
}

type sink struct {
	texts []string
	err   error
}

func (s *sink) Send(_ context.Context, _ dialogue.ConversationID, text string) error {
	if s.err != nil {
		return s.err
	}
	s.texts = append(s.texts, text)
	return nil
}

func request(st dialogue.State, text string, out chat.Outbound) *Request {
	store := dialogue.NewStore(storage.NewMemory(), dialogue.NewSchema(idle{}), dialogue.StoreOptions{})
	dlg := dialogue.Open(1, store, idle{})
	return NewRequest(chat.Message{ConversationID: 1, Text: text}, dlg, st, out)
}

func reply(text string) Handler {
	return func(ctx context.Context, req *Request) error {
		return req.Reply(ctx, text)
	}
}

func TestHandleFirstMatchWins(t *testing.T) {
	p := newParser(t)
	m := New(p,
		Rule{Name: "busy.get", State: InState[busy](), Command: IsCommand("get"), Handler: reply("get")},
		Rule{Name: "busy.command", State: InState[busy](), Command: AnyCommand, Handler: reply("command")},
		Rule{Name: "busy.any", State: InState[busy](), Handler: reply("any")},
		Rule{Name: "idle", State: InState[idle](), Handler: reply("idle")},
	)
	assert.Equal(t, []string{"busy.get", "busy.command", "busy.any", "idle"}, m.Rules())

	cases := []struct {
		state dialogue.State
		text  string
		rule  string
	}{
		{busy{}, "/get", "busy.get"},
		{busy{}, "/reset", "busy.command"},
		{busy{}, "hello", "busy.any"},
		{busy{}, "/get extra", "busy.any"},
		{idle{}, "/get", "idle"},
	}
	for _, tc := range cases {
		out := &sink{}
		rule, err := m.Handle(context.Background(), request(tc.state, tc.text, out))
		require.NoError(t, err, tc.text)
		assert.Equal(t, tc.rule, rule, tc.text)
		require.Len(t, out.texts, 1)
	}
}

func TestHandleParsesOnce(t *testing.T) {
	p := newParser(t)
	never := func(commands.Command) bool { return false }
	m := New(p,
		Rule{Name: "a", Command: never, Handler: reply("a")},
		Rule{Name: "b", Command: never, Handler: reply("b")},
		Rule{Name: "c", Command: AnyCommand, Handler: func(ctx context.Context, req *Request) error {
			cmd, err := req.Command()
			require.NoError(t, err)
			return req.Reply(ctx, cmd.Name)
		}},
	)
	out := &sink{}
	rule, err := m.Handle(context.Background(), request(idle{}, "/reset", out))
	require.NoError(t, err)
	assert.Equal(t, "c", rule)
	assert.Equal(t, []string{"reset"}, out.texts)
	assert.Equal(t, 1, p.calls)
}

func TestHandleFallback(t *testing.T) {
	m := New(newParser(t), Rule{Name: "busy", State: InState[busy](), Handler: reply("busy")})

	rule, err := m.Handle(context.Background(), request(idle{}, "x", &sink{}))
	assert.ErrorIs(t, err, ErrNoRule)
	assert.Empty(t, rule)

	fb := m.WithFallback("fallback", reply("fallback"))
	out := &sink{}
	rule, err = fb.Handle(context.Background(), request(idle{}, "x", out))
	require.NoError(t, err)
	assert.Equal(t, "fallback", rule)
	assert.Equal(t, []string{"fallback"}, out.texts)

	_, err = m.Handle(context.Background(), request(idle{}, "x", &sink{}))
	assert.ErrorIs(t, err, ErrNoRule, "WithFallback must not modify the original machine")
}

func TestReplyWrapsSendErrors(t *testing.T) {
	m := New(newParser(t), Rule{Name: "any", Handler: reply("hi")})
	cause := errors.New("connection reset")

	req := request(idle{}, "x", &sink{err: cause})
	_, err := m.Handle(context.Background(), req)
	var se *chat.SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, chat.CodeSendInternal, se.Code)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, req.Replies())

	typed := &chat.SendError{To: 1, Code: chat.CodeForbidden, Err: cause}
	_, err = m.Handle(context.Background(), request(idle{}, "x", &sink{err: typed}))
	assert.Same(t, typed, err)
}

func TestNewPanicsOnInvalidRules(t *testing.T) {
	assert.Panics(t, func() { New(nil, Rule{Handler: reply("x")}) })
	assert.Panics(t, func() { New(nil, Rule{Name: "x"}) })
	assert.Panics(t, func() {
		New(nil, Rule{Name: "x", Handler: reply("x")}, Rule{Name: "x", Handler: reply("y")})
	})
}
