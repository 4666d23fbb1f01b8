package auth

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestCheck(t *testing.T) {
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	held := NewCapability(owner)

	if err := Check(held, held); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	forged := NewCapability(owner)
	if err := Check(held, forged); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for a copy with the same account, got %v", err)
	}
	if err := Check(held, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for nil, got %v", err)
	}
	if held.Account() != owner {
		t.Fatalf("account mismatch: %s", held.Account().Hex())
	}
	if held.ID() == forged.ID() {
		t.Fatalf("capability ids must differ")
	}
}
