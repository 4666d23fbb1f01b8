package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lpFarm/internal/model"
)

// Journaled is state that can be captured before a call and restored if it fails.
type Journaled interface {
	Checkpoint() func()
}

// Recorder observes completed calls.
type Recorder interface {
	ObserveCall(op string, elapsed time.Duration, err error)
}

// EventSink persists committed ledger events.
type EventSink interface {
	PutEvents(events []model.LedgerEvent) error
}

type refresher interface {
	Refresh(ctx context.Context) error
}

// Option configures a Runtime.
type Option func(*Runtime)

func WithRecorder(rec Recorder) Option {
	return func(r *Runtime) { r.recorder = rec }
}

func WithSink(sink EventSink) Option {
	return func(r *Runtime) { r.sink = sink }
}

func WithRunID(id string) Option {
	return func(r *Runtime) { r.runID = id }
}

// Runtime executes calls one at a time. A call that returns an error leaves every
// registered component exactly as it was before the call.
type Runtime struct {
	clock    Clock
	logger   *zap.Logger
	recorder Recorder
	sink     EventSink
	runID    string

	mu         sync.Mutex
	components []Journaled

	evMu    sync.Mutex
	seq     uint64
	op      string
	caller  common.Address
	pending []model.LedgerEvent
	journal []model.LedgerEvent
}

func New(clock Clock, logger *zap.Logger, opts ...Option) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runtime{clock: clock, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r
}

func (r *Runtime) RunID() string {
	return r.runID
}

func (r *Runtime) Clock() Clock {
	return r.clock
}

// Register adds components whose state calls may mutate.
func (r *Runtime) Register(components ...Journaled) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = append(r.components, components...)
}

// Call runs fn as one all-or-nothing operation on behalf of caller.
func (r *Runtime) Call(ctx context.Context, op string, caller common.Address, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if c, ok := r.clock.(refresher); ok {
		if err := c.Refresh(ctx); err != nil {
			return err
		}
	}

	restores := make([]func(), len(r.components))
	for i, c := range r.components {
		restores[i] = c.Checkpoint()
	}
	r.begin(op, caller)

	start := time.Now()
	err := fn(ctx)
	if r.recorder != nil {
		r.recorder.ObserveCall(op, time.Since(start), err)
	}

	if err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		r.logger.Warn("call reverted",
			zap.String("op", op),
			zap.String("caller", caller.Hex()),
			zap.Uint64("ts", r.clock.Now()),
			zap.Error(err),
		)
		r.abort(err)
		return err
	}

	events := r.commit()
	if r.sink != nil && len(events) > 0 {
		if err := r.sink.PutEvents(events); err != nil {
			return fmt.Errorf("journal %s: %w", op, err)
		}
	}
	return nil
}

// Emit queues an event for the running call. Events of reverted calls are dropped.
func (r *Runtime) Emit(eventName string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		r.logger.Error("marshal event", zap.String("event", eventName), zap.Error(err))
		return
	}

	r.evMu.Lock()
	defer r.evMu.Unlock()
	r.pending = append(r.pending, model.LedgerEvent{
		RunID:     r.runID,
		Timestamp: r.clock.Now(),
		Op:        r.op,
		EventName: eventName,
		Caller:    callerHex(r.caller),
		Data:      payload,
	})
}

// Events returns every committed event, reverted calls included as Reverted entries.
func (r *Runtime) Events() []model.LedgerEvent {
	r.evMu.Lock()
	defer r.evMu.Unlock()
	return append([]model.LedgerEvent(nil), r.journal...)
}

// Seq is the sequence number of the last journaled event.
func (r *Runtime) Seq() uint64 {
	r.evMu.Lock()
	defer r.evMu.Unlock()
	return r.seq
}

func (r *Runtime) begin(op string, caller common.Address) {
	r.evMu.Lock()
	r.op = op
	r.caller = caller
	r.pending = nil
	r.evMu.Unlock()
}

func (r *Runtime) commit() []model.LedgerEvent {
	r.evMu.Lock()
	defer r.evMu.Unlock()

	events := r.pending
	for i := range events {
		r.seq++
		events[i].Seq = r.seq
	}
	r.journal = append(r.journal, events...)
	r.pending = nil
	return events
}

func (r *Runtime) abort(cause error) {
	r.evMu.Lock()
	r.pending = []model.LedgerEvent{{
		RunID:     r.runID,
		Timestamp: r.clock.Now(),
		Op:        r.op,
		EventName: model.EventReverted,
		Caller:    callerHex(r.caller),
		Error:     cause.Error(),
	}}
	r.evMu.Unlock()

	events := r.commit()
	if r.sink != nil {
		if err := r.sink.PutEvents(events); err != nil {
			r.logger.Warn("journal revert failed", zap.Error(err))
		}
	}
}

func callerHex(caller common.Address) string {
	if caller == (common.Address{}) {
		return ""
	}
	return caller.Hex()
}
