package chain

import (
	"context"
	"errors"
	"testing"
	"time"
)

type revertError struct{}

func (revertError) Error() string  { return "reverted" }
func (revertError) ErrorCode() int { return revertErrorCode }

func TestRetryPolicyEventuallySucceeds(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}
	err := policy.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts %d", attempts)
	}
}

func TestRetryPolicyGivesUp(t *testing.T) {
	attempts := 0
	want := errors.New("down")
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	err := policy.Do(context.Background(), func(context.Context) error {
		attempts++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts %d", attempts)
	}
}

func TestRetryPolicySkipsReverts(t *testing.T) {
	cases := map[string]error{
		"rpc code":  revertError{},
		"message":   errors.New("execution reverted: ds-math-sub-underflow"),
		"permanent": Permanent(errors.New("bad abi")),
	}
	for name, failure := range cases {
		attempts := 0
		policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour}
		err := policy.Do(context.Background(), func(context.Context) error {
			attempts++
			return failure
		})
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if attempts != 1 {
			t.Fatalf("%s: attempts %d", name, attempts)
		}
	}
}

func TestPermanentUnwrapped(t *testing.T) {
	want := errors.New("bad abi")
	err := RetryPolicy{}.Do(context.Background(), func(context.Context) error {
		return Permanent(want)
	})
	if err != want {
		t.Fatalf("expected unwrapped error, got %v", err)
	}
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil) should be nil")
	}
}

func TestRetryPolicyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour}.Do(ctx, func(context.Context) error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
