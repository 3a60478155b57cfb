// Package numbers implements a bot that remembers one number per chat.
package numbers

import "github.com/m3rciful/numbot/core/dialogue"

// Start is the state of a chat that has not stored a number yet.
type Start struct{}

func (Start) StateKind() string { return "start" }

// GotNumber holds the remembered number.
type GotNumber struct {
	Value int32 `json:"value"`
}

func (GotNumber) StateKind() string { return "got_number" }

// Schema lists the persisted states; Start is the initial one.
func Schema() *dialogue.Schema {
	s := dialogue.NewSchema(Start{})
	dialogue.Register[GotNumber](s)
	return s
}
