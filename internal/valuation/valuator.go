package valuation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"lpFarm/internal/amm"
	"lpFarm/internal/oracle"
)

var (
	ErrTokenNotRecognized = errors.New("token incorrect or not LP")
	ErrTokenNotInPair     = amm.ErrTokenNotInPair
	ErrEmptyPair          = errors.New("pair has no supply")
	ErrZeroPrice          = errors.New("reward token price is zero")
)

// Pricer is the oracle surface the valuation engine needs.
type Pricer interface {
	Stable() common.Address
	HasRoute(tokenAddr common.Address) bool
	PriceOf(ctx context.Context, tokenAddr common.Address, amountIn *uint256.Int) (*uint256.Int, error)
	TokenPrice(ctx context.Context, tokenAddr common.Address) (*uint256.Int, error)
	AmountInFor(ctx context.Context, tokenAddr common.Address, stableOut *uint256.Int) (*uint256.Int, error)
}

var _ Pricer = (*oracle.Oracle)(nil)

// Valuator decomposes LP amounts into their constituents and prices them.
type Valuator struct {
	gateway amm.Gateway
	pricer  Pricer
	logger  *zap.Logger
}

func NewValuator(gateway amm.Gateway, pricer Pricer, logger *zap.Logger) *Valuator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Valuator{gateway: gateway, pricer: pricer, logger: logger}
}

// Reserves loads the pair, mapping an unknown pair to ErrTokenNotRecognized.
func (v *Valuator) Reserves(ctx context.Context, pair common.Address) (amm.Reserves, error) {
	res, err := v.gateway.GetReserves(ctx, pair)
	if err != nil {
		if errors.Is(err, amm.ErrUnknownPair) {
			return amm.Reserves{}, fmt.Errorf("%w: %s", ErrTokenNotRecognized, pair.Hex())
		}
		return amm.Reserves{}, err
	}
	if res.TotalSupply == nil || res.TotalSupply.IsZero() {
		return amm.Reserves{}, fmt.Errorf("%w: %s", ErrEmptyPair, pair.Hex())
	}
	return res, nil
}

// UnderlyingAmount returns floor(reserve[tokenAddr] * lpAmount / totalSupply).
// Dust amounts floor to zero.
func (v *Valuator) UnderlyingAmount(ctx context.Context, pair common.Address, lpAmount *uint256.Int, tokenAddr common.Address) (*uint256.Int, error) {
	res, err := v.Reserves(ctx, pair)
	if err != nil {
		return nil, err
	}
	return underlying(res, lpAmount, tokenAddr)
}

// Anchor picks the constituent used to price the pair: one with an active route,
// token0 when both qualify.
func (v *Valuator) Anchor(ctx context.Context, pair common.Address) (common.Address, error) {
	res, err := v.Reserves(ctx, pair)
	if err != nil {
		return common.Address{}, err
	}
	return v.anchor(res)
}

// LPValueInStable prices one side of the pair and doubles it.
func (v *Valuator) LPValueInStable(ctx context.Context, pair common.Address, lpAmount *uint256.Int) (*uint256.Int, error) {
	res, err := v.Reserves(ctx, pair)
	if err != nil {
		return nil, err
	}
	anchor, err := v.anchor(res)
	if err != nil {
		return nil, err
	}
	amount, err := underlying(res, lpAmount, anchor)
	if err != nil {
		return nil, err
	}
	side, err := v.pricer.PriceOf(ctx, anchor, amount)
	if err != nil {
		return nil, err
	}
	value, overflow := new(uint256.Int).MulOverflow(side, uint256.NewInt(2))
	if overflow {
		return nil, fmt.Errorf("lp value: %w", amm.ErrOverflow)
	}

	v.logger.Debug("lp valued",
		zap.String("pair", pair.Hex()),
		zap.String("lp_amount", lpAmount.Dec()),
		zap.String("anchor", anchor.Hex()),
		zap.String("value", value.Dec()),
	)
	return value, nil
}

func (v *Valuator) anchor(res amm.Reserves) (common.Address, error) {
	switch {
	case v.pricer.HasRoute(res.Token0):
		return res.Token0, nil
	case v.pricer.HasRoute(res.Token1):
		return res.Token1, nil
	default:
		return common.Address{}, fmt.Errorf("%w: pair %s", oracle.ErrNoRouteAvailable, res.Pair.Hex())
	}
}

func underlying(res amm.Reserves, lpAmount *uint256.Int, tokenAddr common.Address) (*uint256.Int, error) {
	reserve, err := res.ReserveOf(tokenAddr)
	if err != nil {
		return nil, err
	}
	num, overflow := new(uint256.Int).MulOverflow(reserve, lpAmount)
	if overflow {
		return nil, fmt.Errorf("underlying amount: %w", amm.ErrOverflow)
	}
	return num.Div(num, res.TotalSupply), nil
}
