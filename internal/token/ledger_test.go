package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	pool  = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestLedgerTransferFrom(t *testing.T) {
	l := NewLedger(common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), "ESW", 18)
	if err := l.Mint(alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := l.TransferFrom(pool, alice, pool, uint256.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}

	_ = l.Approve(alice, pool, uint256.NewInt(60))
	if err := CanPull(l, pool, alice, uint256.NewInt(61)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected allowance error from CanPull, got %v", err)
	}
	if err := l.TransferFrom(pool, alice, pool, uint256.NewInt(60)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}

	if got := l.BalanceOf(alice).Uint64(); got != 40 {
		t.Fatalf("alice balance %d", got)
	}
	if got := l.BalanceOf(pool).Uint64(); got != 60 {
		t.Fatalf("pool balance %d", got)
	}
	if !l.Allowance(alice, pool).IsZero() {
		t.Fatalf("allowance should be spent")
	}
	if err := l.Transfer(bob, alice, uint256.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected balance error, got %v", err)
	}
}

func TestLedgerCheckpointRestores(t *testing.T) {
	l := NewLedger(common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"), "LP", 18)
	_ = l.Mint(alice, uint256.NewInt(5))

	restore := l.Checkpoint()
	_ = l.Transfer(alice, bob, uint256.NewInt(5))
	_ = l.Mint(bob, uint256.NewInt(7))
	restore()

	if got := l.BalanceOf(alice).Uint64(); got != 5 {
		t.Fatalf("alice balance after restore %d", got)
	}
	if !l.BalanceOf(bob).IsZero() {
		t.Fatalf("bob balance should be restored to zero")
	}
	if got := l.TotalSupply().Uint64(); got != 5 {
		t.Fatalf("supply after restore %d", got)
	}
}
