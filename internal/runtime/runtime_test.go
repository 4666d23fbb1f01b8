package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lpFarm/internal/model"
)

type counter struct {
	n int
}

func (c *counter) Checkpoint() func() {
	saved := c.n
	return func() { c.n = saved }
}

type recorder struct {
	ops  []string
	errs int
}

func (r *recorder) ObserveCall(op string, _ time.Duration, err error) {
	r.ops = append(r.ops, op)
	if err != nil {
		r.errs++
	}
}

type memSink struct {
	events []model.LedgerEvent
}

func (s *memSink) PutEvents(events []model.LedgerEvent) error {
	s.events = append(s.events, events...)
	return nil
}

func TestCallCommitsAndReverts(t *testing.T) {
	a, b := &counter{}, &counter{}
	rec := &recorder{}
	sink := &memSink{}
	rt := New(NewManualClock(100), nil, WithRecorder(rec), WithSink(sink), WithRunID("run-1"))
	rt.Register(a, b)
	caller := common.HexToAddress("0x1111111111111111111111111111111111111111")
	ctx := context.Background()

	err := rt.Call(ctx, "inc", caller, func(context.Context) error {
		a.n++
		b.n += 2
		rt.Emit("Inc", map[string]int{"a": a.n})
		return nil
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	boom := errors.New("boom")
	err = rt.Call(ctx, "fail", caller, func(context.Context) error {
		a.n += 10
		b.n += 10
		rt.Emit("Inc", nil)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if a.n != 1 || b.n != 2 {
		t.Fatalf("state not restored: a=%d b=%d", a.n, b.n)
	}

	events := rt.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventName != "Inc" || events[0].Seq != 1 || events[0].RunID != "run-1" || events[0].Timestamp != 100 {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].EventName != model.EventReverted || events[1].Error != "boom" || events[1].Op != "fail" {
		t.Fatalf("unexpected revert event %+v", events[1])
	}
	if len(sink.events) != 2 || rt.Seq() != 2 {
		t.Fatalf("sink got %d events, seq %d", len(sink.events), rt.Seq())
	}
	if len(rec.ops) != 2 || rec.errs != 1 {
		t.Fatalf("recorder saw %v with %d errors", rec.ops, rec.errs)
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(10)
	if got := c.Advance(5); got != 15 {
		t.Fatalf("advance got %d", got)
	}
	if err := c.Set(14); err == nil {
		t.Fatalf("expected error moving back")
	}
	if err := c.Set(20); err != nil || c.Now() != 20 {
		t.Fatalf("set: %v now %d", err, c.Now())
	}
}

type fixedSource struct {
	ts  uint64
	err error
}

func (f *fixedSource) LatestTimestamp(context.Context) (uint64, error) {
	return f.ts, f.err
}

func TestChainClockRefresh(t *testing.T) {
	src := &fixedSource{ts: 1700000000}
	c, err := NewChainClock(context.Background(), src)
	if err != nil {
		t.Fatalf("new chain clock: %v", err)
	}
	src.ts = 1700000012
	rt := New(c, nil)
	if err := rt.Call(context.Background(), "noop", common.Address{}, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("call: %v", err)
	}
	if c.Now() != 1700000012 {
		t.Fatalf("clock not refreshed: %d", c.Now())
	}

	src.err = errors.New("rpc down")
	if err := rt.Call(context.Background(), "noop", common.Address{}, func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected refresh error")
	}
}
