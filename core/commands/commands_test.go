package commands

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSet(t *testing.T) *Set {
	t.Helper()
	s, err := NewSet("",
		Command{Name: "get", Description: "get your number."},
		Command{Name: "reset", Description: "reset your number.", Aliases: []string{"clear"}},
		Command{Name: "debug", Description: "internal.", Hidden: true},
	)
	require.NoError(t, err)
	return s
}

func TestParse(t *testing.T) {
	s := testSet(t)
	s.SetBotName("@numbot")

	cases := []struct {
		text   string
		want   string
		reason string
	}{
		{text: "/get", want: "get"},
		{text: "/reset", want: "reset"},
		{text: "/clear", want: "reset"},
		{text: "/debug", want: "debug"},
		{text: "/get@numbot", want: "get"},
		{text: "/get@NumBot", want: "get"},
		{text: "/get  ", want: "get"},
		{text: "get", reason: ReasonNoPrefix},
		{text: "", reason: ReasonNoPrefix},
		{text: " /get", reason: ReasonNoPrefix},
		{text: "/", reason: ReasonUnknown},
		{text: "/GET", reason: ReasonUnknown},
		{text: "/list", reason: ReasonUnknown},
		{text: "/get@otherbot", reason: ReasonOtherBot},
		{text: "/get 5", reason: ReasonUnexpectedArgs},
		{text: "/get\nmore", reason: ReasonUnexpectedArgs},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			cmd, err := s.Parse(tc.text)
			if tc.reason == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.want, cmd.Name)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotACommand))
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.reason, pe.Reason)
			assert.Equal(t, tc.text, pe.Text)
		})
	}
}

func TestParseAnyMentionWithoutBotName(t *testing.T) {
	s := testSet(t)
	cmd, err := s.Parse("/get@whatever")
	require.NoError(t, err)
	assert.Equal(t, "get", cmd.Name)
}

func TestNewSetRejectsInvalid(t *testing.T) {
	cases := map[string][]Command{
		"empty name":     {{Name: "", Description: "x"}},
		"uppercase":      {{Name: "Get", Description: "x"}},
		"space":          {{Name: "g et", Description: "x"}},
		"mention":        {{Name: "get@bot", Description: "x"}},
		"no description": {{Name: "get"}},
		"duplicate":      {{Name: "get", Description: "x"}, {Name: "fetch", Description: "y", Aliases: []string{"get"}}},
	}
	for name, cmds := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewSet("/", cmds...)
			assert.Error(t, err)
		})
	}
	assert.Panics(t, func() { MustSet("/", Command{Name: "x"}) })
}

func TestMetadata(t *testing.T) {
	s := testSet(t)

	assert.Equal(t, []string{"/get", "/reset"}, s.Triggers())
	assert.Len(t, s.Commands(), 3)
	assert.Equal(t, "Commands:\n/get — get your number.\n/reset — reset your number.", s.Help("Commands:"))
	assert.Equal(t, "/get — get your number.\n/reset — reset your number.", s.Help(""))

	menu := s.BotCommands()
	require.Len(t, menu, 2)
	assert.Equal(t, "get", menu[0].Text)
	assert.Equal(t, "reset your number.", menu[1].Description)
}

func TestCustomPrefix(t *testing.T) {
	s, err := NewSet("!", Command{Name: "get", Description: "get."})
	require.NoError(t, err)

	_, err = s.Parse("/get")
	assert.ErrorIs(t, err, ErrNotACommand)
	cmd, err := s.Parse("!get")
	require.NoError(t, err)
	assert.Equal(t, "!get", s.Trigger(cmd))
}
