package reward

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestAccrue(t *testing.T) {
	stored := uint256.NewInt(5)
	rate := uint256.NewInt(2)
	total := uint256.NewInt(4_000_000_000_000_000_000)

	cases := []struct {
		name      string
		now, last uint64
		finish    uint64
		total     *uint256.Int
		want      uint64
	}{
		{name: "empty pool", now: 100, last: 0, finish: 200, total: new(uint256.Int), want: 5},
		{name: "before last update", now: 10, last: 20, finish: 200, total: total, want: 5},
		{name: "running period", now: 100, last: 0, finish: 200, total: total, want: 55},
		{name: "capped at finish", now: 500, last: 0, finish: 200, total: total, want: 105},
	}
	for _, tc := range cases {
		got, err := accrue(stored, tc.now, tc.last, tc.finish, rate, tc.total)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got.Uint64() != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got.Uint64(), tc.want)
		}
	}
}

func TestEarned(t *testing.T) {
	value := uint256.NewInt(3_000_000_000_000_000_000)
	got, err := earned(value, uint256.NewInt(1_500_000_000_000_000_000), uint256.NewInt(500_000_000_000_000_000), uint256.NewInt(7))
	if err != nil {
		t.Fatalf("earned: %v", err)
	}
	if got.Uint64() != 3_000_000_000_000_000_007 {
		t.Fatalf("got %d", got.Uint64())
	}
}

func TestNextRateRollsOverLeftover(t *testing.T) {
	rate, err := nextRate(uint256.NewInt(1000), 50, 100, 100, uint256.NewInt(10))
	if err != nil {
		t.Fatalf("next rate: %v", err)
	}
	if rate.Uint64() != 15 {
		t.Fatalf("got %d", rate.Uint64())
	}
	rate, _ = nextRate(uint256.NewInt(1000), 150, 100, 100, uint256.NewInt(10))
	if rate.Uint64() != 10 {
		t.Fatalf("expired period got %d", rate.Uint64())
	}
}
