package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/numbot/core/logger"
	"github.com/m3rciful/numbot/core/storage"
)

// Store persists one State per conversation.
type Store interface {
	// Get returns the stored state and true, or nil and false when nothing is stored.
	Get(ctx context.Context, id ConversationID) (State, bool, error)
	Set(ctx context.Context, id ConversationID, st State) error
	Delete(ctx context.Context, id ConversationID) error
}

// StoreError reports a failed store operation. Match ErrSerialization with errors.Is
// to tell codec failures from I/O failures.
type StoreError struct {
	Op  string
	ID  ConversationID
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("dialogue store %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Code classifies the error for log aggregation.
func (e *StoreError) Code() string {
	switch {
	case errors.Is(e.Err, ErrSerialization):
		return "STORE_SERIALIZATION"
	case errors.Is(e.Err, context.DeadlineExceeded):
		return "STORE_TIMEOUT"
	}
	return "STORE_IO"
}

// Observer receives the outcome of every backend call.
type Observer interface {
	ObserveStoreOp(op string, err error, took time.Duration)
}

// StoreOptions tunes NewStore.
type StoreOptions struct {
	// OpTimeout bounds each backend call; zero disables the bound.
	OpTimeout time.Duration
	Observer  Observer
}

type codecStore struct {
	backend storage.Backend
	schema  *Schema
	opts    StoreOptions
}

// NewStore returns a Store that encodes states with schema and keeps them in backend.
func NewStore(backend storage.Backend, schema *Schema, opts StoreOptions) Store {
	return &codecStore{backend: backend, schema: schema, opts: opts}
}

func (s *codecStore) Get(ctx context.Context, id ConversationID) (State, bool, error) {
	var raw []byte
	err := s.do(ctx, "get", id, func(ctx context.Context) error {
		var err error
		raw, err = s.backend.Get(ctx, id.String())
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Op: "get", ID: id, Err: err}
	}
	st, err := s.schema.Decode(raw)
	if err != nil {
		logger.Store.Warn("state decode failed",
			slog.String("event", "store.decode"),
			slog.Int64("chat_id", int64(id)),
			slog.String("err", err.Error()),
		)
		return nil, false, &StoreError{Op: "get", ID: id, Err: err}
	}
	return st, true, nil
}

func (s *codecStore) Set(ctx context.Context, id ConversationID, st State) error {
	raw, err := s.schema.Encode(st)
	if err != nil {
		return &StoreError{Op: "set", ID: id, Err: err}
	}
	err = s.do(ctx, "set", id, func(ctx context.Context) error {
		return s.backend.Put(ctx, id.String(), raw)
	})
	if err != nil {
		return &StoreError{Op: "set", ID: id, Err: err}
	}
	return nil
}

func (s *codecStore) Delete(ctx context.Context, id ConversationID) error {
	err := s.do(ctx, "delete", id, func(ctx context.Context) error {
		return s.backend.Delete(ctx, id.String())
	})
	if err != nil {
		return &StoreError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

func (s *codecStore) do(ctx context.Context, op string, id ConversationID, fn func(context.Context) error) error {
	if s.opts.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.OpTimeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	took := time.Since(start)

	if s.opts.Observer != nil {
		observed := err
		if errors.Is(err, storage.ErrNotFound) {
			observed = nil
		}
		s.opts.Observer.ObserveStoreOp(op, observed, took)
	}
	if logger.ShouldSampleDebug() {
		logger.LogEvent(ctx, logger.Store, slog.LevelDebug, "store.op",
			slog.String("status", logger.Status(err)),
			slog.String("op", op),
			slog.Int64("chat_id", int64(id)),
			slog.Duration("duration", took),
		)
	}
	return err
}
