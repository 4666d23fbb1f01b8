package main

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
)

type staticHead struct {
	chainID *big.Int
	ts      uint64
	err     error
}

func (s staticHead) ChainID(context.Context) (*big.Int, error) {
	return s.chainID, nil
}

func (s staticHead) LatestTimestamp(context.Context) (uint64, error) {
	return s.ts, s.err
}

func TestStampQuote(t *testing.T) {
	out := quoteOutput{Stable: "0x01"}
	if err := stampQuote(context.Background(), staticHead{chainID: big.NewInt(56), ts: 1700000000}, &out); err != nil {
		t.Fatalf("stamp: %v", err)
	}
	if out.ChainID != 56 || out.Timestamp != 1700000000 {
		t.Fatalf("stamped chain %d timestamp %d", out.ChainID, out.Timestamp)
	}
}

func TestStampQuoteHeadUnavailable(t *testing.T) {
	var out quoteOutput
	err := stampQuote(context.Background(), staticHead{chainID: big.NewInt(1), err: errors.New("rpc down")}, &out)
	if err == nil || !strings.Contains(err.Error(), "head timestamp") {
		t.Fatalf("expected head timestamp error, got %v", err)
	}
	if out.Timestamp != 0 {
		t.Fatalf("timestamp set on failure: %d", out.Timestamp)
	}
}
