package reward

import (
	"fmt"

	"github.com/holiman/uint256"
)

// precision scales the reward-per-stake-value accumulator.
var precision = uint256.NewInt(1_000_000_000_000_000_000)

func lastTimeApplicable(now, finish uint64) uint64 {
	if now < finish {
		return now
	}
	return finish
}

// accrue returns the accumulator advanced from last to min(now, finish) at rate,
// shared across total stake value. An empty pool leaves it unchanged.
func accrue(stored *uint256.Int, now, last, finish uint64, rate, total *uint256.Int) (*uint256.Int, error) {
	applicable := lastTimeApplicable(now, finish)
	if total.IsZero() || applicable <= last {
		return stored.Clone(), nil
	}

	delta, o1 := new(uint256.Int).MulOverflow(uint256.NewInt(applicable-last), rate)
	delta, o2 := delta.MulOverflow(delta, precision)
	if o1 || o2 {
		return nil, fmt.Errorf("accrue: %w", ErrOverflow)
	}
	delta.Div(delta, total)

	next, overflow := new(uint256.Int).AddOverflow(stored, delta)
	if overflow {
		return nil, fmt.Errorf("accrue: %w", ErrOverflow)
	}
	return next, nil
}

// earned = value * (perValue - paid) / precision + accrued.
func earned(value, perValue, paid, accrued *uint256.Int) (*uint256.Int, error) {
	owed, overflow := new(uint256.Int).MulOverflow(value, new(uint256.Int).Sub(perValue, paid))
	if overflow {
		return nil, fmt.Errorf("earned: %w", ErrOverflow)
	}
	owed.Div(owed, precision)

	total, overflow := owed.AddOverflow(owed, accrued)
	if overflow {
		return nil, fmt.Errorf("earned: %w", ErrOverflow)
	}
	return total, nil
}

// nextRate spreads amount plus whatever the running period has not vested yet
// over duration.
func nextRate(amount *uint256.Int, now, finish, duration uint64, rate *uint256.Int) (*uint256.Int, error) {
	total := amount.Clone()
	if now < finish {
		leftover, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(finish-now), rate)
		if overflow {
			return nil, fmt.Errorf("leftover: %w", ErrOverflow)
		}
		if total, overflow = total.AddOverflow(total, leftover); overflow {
			return nil, fmt.Errorf("leftover: %w", ErrOverflow)
		}
	}
	return total.Div(total, uint256.NewInt(duration)), nil
}
