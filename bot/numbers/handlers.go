package numbers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/m3rciful/numbot/core/commands"
	"github.com/m3rciful/numbot/core/fsm"
)

// Rule names, also used as metric labels.
const (
	RuleStart   = "start"
	RuleGet     = "got_number.get"
	RuleReset   = "got_number.reset"
	RuleList    = "got_number.list"
	RuleInvalid = "got_number.invalid"
)

// Machine wires the numbers dialogue. Rules are tried in order, so the
// catch-all invalid rule must stay last.
func Machine(set *commands.Set) *fsm.Machine {
	inGotNumber := fsm.InState[GotNumber]()
	prompt := invalidPrompt(set)
	return fsm.New(set,
		fsm.Rule{Name: RuleStart, State: fsm.InState[Start](), Handler: start},
		fsm.Rule{Name: RuleGet, State: inGotNumber, Command: fsm.IsCommand(CmdGet), Handler: get},
		fsm.Rule{Name: RuleReset, State: inGotNumber, Command: fsm.IsCommand(CmdReset), Handler: reset},
		fsm.Rule{Name: RuleList, State: inGotNumber, Command: fsm.IsCommand(CmdList), Handler: list},
		fsm.Rule{Name: RuleInvalid, State: inGotNumber, Handler: func(ctx context.Context, req *fsm.Request) error {
			return req.Reply(ctx, prompt)
		}},
	)
}

// start expects a bare 32-bit integer; surrounding spaces are not accepted.
func start(ctx context.Context, req *fsm.Request) error {
	n, err := strconv.ParseInt(req.Message.Text, 10, 32)
	if err != nil {
		return req.Reply(ctx, "Please, send me a number.")
	}
	if err := req.Dialogue.Update(ctx, GotNumber{Value: int32(n)}); err != nil {
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("Remembered number %d. Now use /get or /reset.", n))
}

func get(ctx context.Context, req *fsm.Request) error {
	n := req.State.(GotNumber).Value
	return req.Reply(ctx, fmt.Sprintf("Here is your number: %d.", n))
}

func reset(ctx context.Context, req *fsm.Request) error {
	if err := req.Dialogue.Reset(ctx); err != nil {
		return err
	}
	return req.Reply(ctx, "Number reset.")
}

// TODO: list replies with the stored number until an event log exists to list.
func list(ctx context.Context, req *fsm.Request) error {
	n := req.State.(GotNumber).Value
	return req.Reply(ctx, fmt.Sprintf("List of events: %d.", n))
}
