package commands

import (
	"errors"
	"strings"
	"unicode"
)

// ErrNotACommand is matched by every parse failure.
var ErrNotACommand = errors.New("commands: not a command")

// Parse failure reasons.
const (
	ReasonNoPrefix       = "no_prefix"
	ReasonUnknown        = "unknown"
	ReasonOtherBot       = "other_bot"
	ReasonUnexpectedArgs = "unexpected_args"
)

// ParseError explains why text is not a command.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return "commands: not a command (" + e.Reason + ")"
}

func (e *ParseError) Is(target error) bool {
	return target == ErrNotACommand
}

// Parse maps text to exactly one command of the set. The first token must be the
// prefix followed by a name or alias, optionally suffixed with "@botname".
// Names match exactly. Commands take no arguments, so trailing text fails.
func (s *Set) Parse(text string) (Command, error) {
	if !strings.HasPrefix(text, s.prefix) {
		return Command{}, &ParseError{Text: text, Reason: ReasonNoPrefix}
	}
	head, args := text[len(s.prefix):], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, args = head[:i], head[i:]
	}

	name, mention, hasMention := strings.Cut(head, "@")
	if hasMention && s.botName != "" && !strings.EqualFold(mention, s.botName) {
		return Command{}, &ParseError{Text: text, Reason: ReasonOtherBot}
	}
	i, ok := s.index[name]
	if !ok {
		return Command{}, &ParseError{Text: text, Reason: ReasonUnknown}
	}
	if strings.TrimSpace(args) != "" {
		return Command{}, &ParseError{Text: text, Reason: ReasonUnexpectedArgs}
	}
	return s.list[i], nil
}
