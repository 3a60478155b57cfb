// Package dispatch feeds inbound messages through the state machine with
// per-conversation serialization and bounded parallelism.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/moby/locker"

	"github.com/m3rciful/numbot/core/chat"
	"github.com/m3rciful/numbot/core/dialogue"
	"github.com/m3rciful/numbot/core/fsm"
	"github.com/m3rciful/numbot/core/logger"
)

const (
	defaultWorkers        = 16
	defaultMessageTimeout = 30 * time.Second
)

// Recorder receives per-message metrics.
type Recorder interface {
	ObserveMessage(rule, status string, took time.Duration)
	IncDropped(reason string)
	Inflight(delta int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMessage(string, string, time.Duration) {}
func (nopRecorder) IncDropped(string)                            {}
func (nopRecorder) Inflight(int)                                 {}

// Options configures a Dispatcher.
type Options struct {
	// Initial is the state of conversations without a stored entry. Required.
	Initial dialogue.State
	// Workers bounds concurrently handled messages; 0 means 16.
	Workers int
	// MessageTimeout bounds the handling of one message once its conversation
	// lock is held; 0 means 30s.
	MessageTimeout time.Duration
	Metrics        Recorder
}

// Dispatcher runs messages through a Machine.
type Dispatcher struct {
	store   dialogue.Store
	machine *fsm.Machine
	out     chat.Outbound
	initial dialogue.State
	workers int
	timeout time.Duration
	rec     Recorder
	locks   *locker.Locker
}

// New validates opts and builds a dispatcher.
func New(store dialogue.Store, machine *fsm.Machine, out chat.Outbound, opts Options) (*Dispatcher, error) {
	if store == nil || machine == nil || out == nil {
		return nil, errors.New("dispatch: store, machine and outbound are required")
	}
	if opts.Initial == nil {
		return nil, errors.New("dispatch: initial state is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.MessageTimeout <= 0 {
		opts.MessageTimeout = defaultMessageTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	return &Dispatcher{
		store:   store,
		machine: machine,
		out:     out,
		initial: opts.Initial,
		workers: opts.Workers,
		timeout: opts.MessageTimeout,
		rec:     opts.Metrics,
		locks:   locker.New(),
	}, nil
}

// Run handles messages from in until ctx is done or in is closed, then waits
// for every accepted message to finish. Per-message failures are logged, not returned.
//
// Each conversation holds at most one worker slot at a time: messages for a
// conversation that is already being handled wait in its own queue, so a
// stuck conversation never starves intake for the others.
func (d *Dispatcher) Run(ctx context.Context, in <-chan chat.Message) error {
	sem := make(chan struct{}, d.workers)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		queues = make(map[dialogue.ConversationID][]chat.Message)
	)

	// next pops the following queued message of id or retires the conversation.
	next := func(id dialogue.ConversationID) (chat.Message, bool) {
		mu.Lock()
		defer mu.Unlock()
		q := queues[id]
		if len(q) == 0 {
			delete(queues, id)
			return chat.Message{}, false
		}
		msg := q[0]
		if len(q) == 1 {
			queues[id] = nil
		} else {
			queues[id] = q[1:]
		}
		return msg, true
	}
	// enqueue reports whether msg was parked behind an active conversation.
	enqueue := func(msg chat.Message) bool {
		mu.Lock()
		defer mu.Unlock()
		if q, busy := queues[msg.ConversationID]; busy {
			queues[msg.ConversationID] = append(q, msg)
			return true
		}
		queues[msg.ConversationID] = nil
		return false
	}

	logger.Info(ctx, "dispatch", "dispatch.start",
		slog.String("status", "ok"),
		slog.Int("workers", d.workers),
	)
	stop := func(attrs ...slog.Attr) error {
		wg.Wait()
		logger.Info(ctx, "dispatch", "dispatch.stop", append([]slog.Attr{slog.String("status", "ok")}, attrs...)...)
		return nil
	}
	for {
		if ctx.Err() != nil {
			return stop(slog.Int("dropped", d.discard(in)))
		}
		select {
		case <-ctx.Done():
			return stop(slog.Int("dropped", d.discard(in)))
		case msg, ok := <-in:
			if !ok {
				return stop()
			}
			if enqueue(msg) {
				continue
			}
			// An accepted message always runs, queued ones included.
			sem <- struct{}{}
			wg.Add(1)
			go func(msg chat.Message) {
				defer wg.Done()
				id := msg.ConversationID
				for {
					_ = d.Process(ctx, msg)
					<-sem
					var more bool
					if msg, more = next(id); !more {
						return
					}
					sem <- struct{}{}
				}
			}(msg)
		}
	}
}

// discard drains messages still buffered in the intake after shutdown.
func (d *Dispatcher) discard(in <-chan chat.Message) int {
	n := 0
	for {
		select {
		case _, ok := <-in:
			if !ok {
				return n
			}
			n++
			d.rec.IncDropped("shutdown")
		default:
			return n
		}
	}
}

// Process handles one message while holding the lock of its conversation.
// The handler runs detached from ctx cancellation and bounded by MessageTimeout,
// counted from lock acquisition.
func (d *Dispatcher) Process(ctx context.Context, msg chat.Message) (err error) {
	start := time.Now()
	ctx = d.scope(ctx, msg)
	d.rec.Inflight(1)
	defer d.rec.Inflight(-1)

	key := msg.ConversationID.String()
	d.locks.Lock(key)
	defer func() { _ = d.locks.Unlock(key) }()

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	var (
		rule    string
		replies int
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: panic in rule %q: %v", rule, r)
			logger.Error(ctx, "dispatch", "message.failed",
				slog.String("status", "fail"),
				slog.String("rule", rule),
				slog.String("err", logger.SanitizeLimit(fmt.Sprint(r), 256)),
				slog.String("stack", logger.SanitizeLimit(string(debug.Stack()), 2048)),
			)
		}
		d.summarize(ctx, rule, replies, start, err)
	}()

	rule, replies, err = d.handle(hctx, msg)
	if errors.Is(err, fsm.ErrNoRule) {
		return nil
	}
	return err
}

func (d *Dispatcher) handle(ctx context.Context, msg chat.Message) (string, int, error) {
	dlg := dialogue.Open(msg.ConversationID, d.store, d.initial)
	st, err := dlg.Current(ctx)
	if err != nil {
		return "", 0, err
	}
	req := fsm.NewRequest(msg, dlg, st, d.out)
	rule, err := d.machine.Handle(ctx, req)
	return rule, req.Replies(), err
}

func (d *Dispatcher) scope(ctx context.Context, msg chat.Message) context.Context {
	chatID := int64(msg.ConversationID)
	ctx = logger.WithUpdateMeta(ctx, msg.UpdateID, msg.Sender.ID, chatID)
	if logger.RIDFrom(ctx) == "" {
		ctx = logger.WithRID(ctx, logger.BuildRID(msg.UpdateID, chatID, msg.Sender.ID))
	}
	return ctx
}
