package dialogue

import "context"

// Dialogue is a handle on one conversation's state. It is created per inbound
// message and discarded once the message is handled.
type Dialogue struct {
	id      ConversationID
	store   Store
	initial State
}

// Open binds a handle to id. initial is reported while nothing is stored.
func Open(id ConversationID, store Store, initial State) *Dialogue {
	return &Dialogue{id: id, store: store, initial: initial}
}

// ID returns the conversation the handle is bound to.
func (d *Dialogue) ID() ConversationID {
	return d.id
}

// Current returns the stored state, or the initial state when none is recorded.
func (d *Dialogue) Current(ctx context.Context) (State, error) {
	st, ok, err := d.store.Get(ctx, d.id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return d.initial, nil
	}
	return st, nil
}

// Update replaces the stored state.
func (d *Dialogue) Update(ctx context.Context, st State) error {
	return d.store.Set(ctx, d.id, st)
}

// Reset removes the stored state, returning the conversation to its initial state.
func (d *Dialogue) Reset(ctx context.Context) error {
	return d.store.Delete(ctx, d.id)
}
