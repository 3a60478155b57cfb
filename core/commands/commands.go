package commands

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// DefaultPrefix is the command marker used by Telegram.
const DefaultPrefix = "/"

// Command is one entry of a bot's command vocabulary.
type Command struct {
	// Name is the canonical lowercase command name without prefix.
	Name        string
	Description string
	Aliases     []string
	Hidden      bool
}

// Set is a closed, ordered command vocabulary and the parser for it.
// A Set is immutable after construction except for SetBotName, which must be
// called before the Set is shared.
type Set struct {
	prefix  string
	botName string
	list    []Command
	index   map[string]int
}

// NewSet validates cmds and builds a Set. Names and aliases must be non-empty,
// lowercase, free of whitespace and unique.
func NewSet(prefix string, cmds ...Command) (*Set, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := &Set{prefix: prefix, index: make(map[string]int, len(cmds))}
	for i, cmd := range cmds {
		if strings.TrimSpace(cmd.Description) == "" {
			return nil, fmt.Errorf("commands: %q has no description", cmd.Name)
		}
		for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
			if err := validName(name); err != nil {
				return nil, err
			}
			if _, dup := s.index[name]; dup {
				return nil, fmt.Errorf("commands: duplicate name %q", name)
			}
			s.index[name] = i
		}
		s.list = append(s.list, cmd)
	}
	return s, nil
}

// MustSet is NewSet that panics on invalid input, for package-level vocabularies.
func MustSet(prefix string, cmds ...Command) *Set {
	s, err := NewSet(prefix, cmds...)
	if err != nil {
		panic(err)
	}
	return s
}

func validName(name string) error {
	switch {
	case name == "":
		return errors.New("commands: empty name")
	case name != strings.ToLower(name):
		return fmt.Errorf("commands: %q must be lowercase", name)
	case strings.ContainsAny(name, " \t\n@"):
		return fmt.Errorf("commands: %q contains whitespace or '@'", name)
	}
	return nil
}

// SetBotName restricts "/cmd@name" forms to this bot. Empty accepts any mention.
func (s *Set) SetBotName(name string) {
	s.botName = strings.TrimPrefix(strings.TrimSpace(name), "@")
}

// Trigger returns the text a user types to invoke cmd.
func (s *Set) Trigger(cmd Command) string {
	return s.prefix + cmd.Name
}

// Commands returns the vocabulary in declaration order.
func (s *Set) Commands() []Command {
	return append([]Command(nil), s.list...)
}

// Triggers returns the triggers of visible commands in declaration order.
func (s *Set) Triggers() []string {
	var out []string
	for _, cmd := range s.list {
		if !cmd.Hidden {
			out = append(out, s.Trigger(cmd))
		}
	}
	return out
}

// Help renders header followed by one "trigger — description" line per visible command.
func (s *Set) Help(header string) string {
	var b strings.Builder
	b.WriteString(header)
	for _, cmd := range s.list {
		if cmd.Hidden {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.Trigger(cmd))
		b.WriteString(" — ")
		b.WriteString(cmd.Description)
	}
	return b.String()
}

// BotCommands lists visible commands for the Telegram command menu.
func (s *Set) BotCommands() []tele.Command {
	var list []tele.Command
	for _, cmd := range s.list {
		if !cmd.Hidden {
			list = append(list, tele.Command{Text: cmd.Name, Description: cmd.Description})
		}
	}
	return list
}
