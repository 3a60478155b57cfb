package dialogue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// ConversationID identifies a conversation; for Telegram it is the chat id.
type ConversationID int64

func (id ConversationID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// State is one value of a dialogue's tagged state. Implementations are plain value
// types whose exported fields form the JSON payload.
type State interface {
	StateKind() string
}

// ErrSerialization marks failures to encode or decode a stored state.
var ErrSerialization = errors.New("dialogue: serialization failed")

const envelopeVersion = 1

type envelope struct {
	Version int             `json:"v"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type decodeFunc func(json.RawMessage) (State, error)

// Schema is the closed set of state kinds a bot uses, plus its initial state.
// Stored values carry their kind tag, so registering a new kind never invalidates
// data written for existing kinds.
type Schema struct {
	mu      sync.RWMutex
	initial State
	kinds   map[string]decodeFunc
}

// NewSchema creates a schema whose initial state is registered automatically.
func NewSchema[S State](initial S) *Schema {
	s := &Schema{initial: initial, kinds: make(map[string]decodeFunc)}
	Register[S](s)
	return s
}

// Register adds state type S to the schema under its StateKind.
// Registering the same kind twice replaces the decoder.
func Register[S State](s *Schema) {
	var zero S
	kind := zero.StateKind()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds[kind] = func(data json.RawMessage) (State, error) {
		var v S
		if len(data) == 0 || string(data) == "null" {
			return v, nil
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Initial returns the state of a conversation with nothing stored.
func (s *Schema) Initial() State {
	return s.initial
}

// Known reports whether kind is registered.
func (s *Schema) Known(kind string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.kinds[kind]
	return ok
}

// Encode serializes st into a versioned, kind-tagged JSON envelope.
func (s *Schema) Encode(st State) ([]byte, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: nil state", ErrSerialization)
	}
	kind := st.StateKind()
	if !s.Known(kind) {
		return nil, fmt.Errorf("%w: unregistered kind %q", ErrSerialization, kind)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if string(data) == "{}" {
		data = nil
	}
	out, err := json.Marshal(envelope{Version: envelopeVersion, Kind: kind, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return out, nil
}

// Decode parses an envelope produced by Encode.
func (s *Schema) Decode(raw []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if env.Version > envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", ErrSerialization, env.Version)
	}
	s.mu.RLock()
	decode, ok := s.kinds[env.Kind]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrSerialization, env.Kind)
	}
	st, err := decode(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: kind %q: %v", ErrSerialization, env.Kind, err)
	}
	return st, nil
}
