package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	rec.ObserveCall("stake", time.Millisecond, nil)
	rec.ObserveCall("stake", time.Millisecond, errors.New("withdraw locked"))
	rec.ObserveCall("exit", time.Millisecond, nil)

	if got := testutil.ToFloat64(rec.CallsTotal.WithLabelValues("stake")); got != 2 {
		t.Fatalf("stake calls %v", got)
	}
	if got := testutil.ToFloat64(rec.RevertsTotal.WithLabelValues("stake")); got != 1 {
		t.Fatalf("stake reverts %v", got)
	}
	if got := testutil.CollectAndCount(rec.CallDuration); got != 2 {
		t.Fatalf("duration series %d", got)
	}
}

func TestObserveState(t *testing.T) {
	rec, err := NewRecorder(nil)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.ObserveState(3, 17)
	if got := testutil.ToFloat64(rec.Stakers); got != 3 {
		t.Fatalf("stakers %v", got)
	}
	if got := testutil.ToFloat64(rec.Events); got != 17 {
		t.Fatalf("events %v", got)
	}
}

func TestNewRecorderToleratesReregistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg); err != nil {
		t.Fatalf("first recorder: %v", err)
	}
	if _, err := NewRecorder(reg); err != nil {
		t.Fatalf("second recorder: %v", err)
	}
}
