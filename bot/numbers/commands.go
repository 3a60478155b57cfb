package numbers

import (
	"strings"

	"github.com/m3rciful/numbot/core/commands"
)

// Command names.
const (
	CmdGet   = "get"
	CmdReset = "reset"
	CmdList  = "list"
)

// HelpHeader precedes the command listing.
const HelpHeader = "These commands are supported:"

// Commands returns the bot vocabulary in menu order.
func Commands() *commands.Set {
	return commands.MustSet(commands.DefaultPrefix,
		commands.Command{Name: CmdGet, Description: "get your number."},
		commands.Command{Name: CmdReset, Description: "reset your number."},
		commands.Command{Name: CmdList, Description: "list of events."},
	)
}

// invalidPrompt renders "Please, send /a, /b or /c." from the visible commands.
func invalidPrompt(set *commands.Set) string {
	triggers := set.Triggers()
	var list string
	switch n := len(triggers); n {
	case 0:
		return "Please, send a command."
	case 1:
		list = triggers[0]
	default:
		list = strings.Join(triggers[:n-1], ", ") + " or " + triggers[n-1]
	}
	return "Please, send " + list + "."
}
