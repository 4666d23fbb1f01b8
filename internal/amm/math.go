package amm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// FeeDenominator is the basis-point scale of the per-hop swap fee.
const FeeDenominator = 10_000

// GetAmountOut applies the constant-product formula for a single hop:
// out = reserveOut*in*(D-fee) / (reserveIn*D + in*(D-fee)), floored.
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}

	inWithFee, o1 := new(uint256.Int).MulOverflow(amountIn, uint256.NewInt(FeeDenominator-feeBps))
	num, o2 := new(uint256.Int).MulOverflow(reserveOut, inWithFee)
	den, o3 := new(uint256.Int).MulOverflow(reserveIn, uint256.NewInt(FeeDenominator))
	den, o4 := den.AddOverflow(den, inWithFee)
	if o1 || o2 || o3 || o4 {
		return nil, fmt.Errorf("amount out: %w", ErrOverflow)
	}
	return num.Div(num, den), nil
}

// GetAmountIn returns the smallest input for which GetAmountOut yields at least amountOut.
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	if reserveIn.IsZero() || reserveOut.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, ErrInsufficientLiquidity
	}
	if amountOut.IsZero() {
		return new(uint256.Int), nil
	}

	num, o1 := new(uint256.Int).MulOverflow(amountOut, reserveIn)
	num, o2 := num.MulOverflow(num, uint256.NewInt(FeeDenominator))
	den, o3 := new(uint256.Int).MulOverflow(new(uint256.Int).Sub(reserveOut, amountOut), uint256.NewInt(FeeDenominator-feeBps))
	if o1 || o2 || o3 {
		return nil, fmt.Errorf("amount in: %w", ErrOverflow)
	}
	return divCeil(num, den), nil
}

func divCeil(num, den *uint256.Int) *uint256.Int {
	q := new(uint256.Int).Div(num, den)
	if !new(uint256.Int).Mod(num, den).IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}
