// Package fsm routes a message to the first rule whose state and command
// predicates match the current dialogue.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/numbot/core/commands"
	"github.com/m3rciful/numbot/core/dialogue"
	"github.com/m3rciful/numbot/core/logger"
)

// ErrNoRule is returned when no rule matches and the machine has no fallback.
var ErrNoRule = errors.New("fsm: no rule matched")

// Handler reacts to a routed message.
type Handler func(ctx context.Context, req *Request) error

// Rule pairs predicates with a handler.
type Rule struct {
	Name string
	// State selects dialogue states; nil matches any state.
	State func(dialogue.State) bool
	// Command selects parsed commands; nil matches any text, command or not.
	Command func(commands.Command) bool
	Handler Handler
}

func (r Rule) matches(req *Request) bool {
	if r.State != nil && !r.State(req.State) {
		return false
	}
	if r.Command == nil {
		return true
	}
	cmd, err := req.Command()
	return err == nil && r.Command(cmd)
}

// Machine is an immutable ordered rule list.
type Machine struct {
	parser   Parser
	rules    []Rule
	fallback *Rule
}

// New builds a machine. It panics on a rule without name or handler, or on
// duplicate names.
func New(parser Parser, rules ...Rule) *Machine {
	m := &Machine{parser: parser}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		mustValid(r)
		if seen[r.Name] {
			panic(fmt.Sprintf("fsm: duplicate rule %q", r.Name))
		}
		seen[r.Name] = true
		m.rules = append(m.rules, r)
	}
	return m
}

func mustValid(r Rule) {
	if r.Name == "" {
		panic("fsm: rule without name")
	}
	if r.Handler == nil {
		panic(fmt.Sprintf("fsm: rule %q has no handler", r.Name))
	}
}

// WithFallback returns a copy of m that runs h when no rule matches.
func (m *Machine) WithFallback(name string, h Handler) *Machine {
	fb := Rule{Name: name, Handler: h}
	mustValid(fb)
	cp := *m
	cp.fallback = &fb
	return &cp
}

// Rules lists rule names in evaluation order.
func (m *Machine) Rules() []string {
	names := make([]string, 0, len(m.rules))
	for _, r := range m.rules {
		names = append(names, r.Name)
	}
	return names
}

// Handle runs the first matching rule and returns its name.
func (m *Machine) Handle(ctx context.Context, req *Request) (string, error) {
	if req.parser == nil {
		req.parser = m.parser
	}
	rule := m.route(req)
	if rule == nil {
		logger.Debug(ctx, "fsm", "fsm.route",
			slog.String("status", "skip"),
			slog.String("state", stateKind(req.State)),
		)
		return "", ErrNoRule
	}
	if logger.ShouldSampleDebug() {
		attrs := []slog.Attr{
			slog.String("status", "ok"),
			slog.String("rule", rule.Name),
			slog.String("state", stateKind(req.State)),
		}
		if cmd, err := req.Command(); err == nil {
			attrs = append(attrs, slog.String("command", cmd.Name))
		}
		logger.Debug(ctx, "fsm", "fsm.route", attrs...)
	}
	return rule.Name, rule.Handler(logger.WithHandler(ctx, rule.Name), req)
}

func (m *Machine) route(req *Request) *Rule {
	for i := range m.rules {
		if m.rules[i].matches(req) {
			return &m.rules[i]
		}
	}
	return m.fallback
}

func stateKind(st dialogue.State) string {
	if st == nil {
		return ""
	}
	return st.StateKind()
}

// InState matches states of concrete type S.
func InState[S dialogue.State]() func(dialogue.State) bool {
	return func(st dialogue.State) bool {
		_, ok := st.(S)
		return ok
	}
}

// AnyCommand matches every successfully parsed command.
func AnyCommand(commands.Command) bool { return true }

// IsCommand matches commands by canonical name.
func IsCommand(names ...string) func(commands.Command) bool {
	return func(cmd commands.Command) bool {
		for _, n := range names {
			if cmd.Name == n {
				return true
			}
		}
		return false
	}
}
