package valuation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"lpFarm/internal/amm"
	"lpFarm/internal/token"
)

// Converter translates between LP amounts and stake value denominated in the
// reward token.
type Converter struct {
	valuator    *Valuator
	gateway     amm.Gateway
	pricer      Pricer
	rewardToken common.Address
	logger      *zap.Logger
}

func NewConverter(valuator *Valuator, rewardToken common.Address, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{
		valuator:    valuator,
		gateway:     valuator.gateway,
		pricer:      valuator.pricer,
		rewardToken: rewardToken,
		logger:      logger,
	}
}

func (c *Converter) RewardToken() common.Address {
	return c.rewardToken
}

func (c *Converter) Valuator() *Valuator {
	return c.valuator
}

// LPValueInStable delegates to the valuator.
func (c *Converter) LPValueInStable(ctx context.Context, pair common.Address, lpAmount *uint256.Int) (*uint256.Int, error) {
	return c.valuator.LPValueInStable(ctx, pair, lpAmount)
}

// RewardUnitPrice is the stable value of one whole reward token.
func (c *Converter) RewardUnitPrice(ctx context.Context) (*uint256.Int, error) {
	price, err := c.pricer.TokenPrice(ctx, c.rewardToken)
	if err != nil {
		return nil, fmt.Errorf("reward price: %w", err)
	}
	if price.IsZero() {
		return nil, ErrZeroPrice
	}
	return price, nil
}

// StakeValueForLP = floor(LPValueInStable * 10^rewardDecimals / rewardUnitPrice).
func (c *Converter) StakeValueForLP(ctx context.Context, pair common.Address, lpAmount *uint256.Int) (*uint256.Int, error) {
	value, err := c.valuator.LPValueInStable(ctx, pair, lpAmount)
	if err != nil {
		return nil, err
	}
	price, unit, err := c.priceAndUnit(ctx)
	if err != nil {
		return nil, err
	}
	stake, overflow := new(uint256.Int).MulOverflow(value, unit)
	if overflow {
		return nil, fmt.Errorf("stake value: %w", amm.ErrOverflow)
	}
	return stake.Div(stake, price), nil
}

// LPValueForStake inverts StakeValueForLP in closed form. Every floor in the forward
// direction widens the set of LP amounts mapping to one stake value; the inverse
// solves the bounds of that set through the anchor side and returns its midpoint.
func (c *Converter) LPValueForStake(ctx context.Context, pair common.Address, stake *uint256.Int) (*uint256.Int, error) {
	if stake.IsZero() {
		return new(uint256.Int), nil
	}
	res, err := c.valuator.Reserves(ctx, pair)
	if err != nil {
		return nil, err
	}
	anchor, err := c.valuator.anchor(res)
	if err != nil {
		return nil, err
	}
	reserve, err := res.ReserveOf(anchor)
	if err != nil {
		return nil, err
	}
	if reserve.IsZero() {
		return nil, fmt.Errorf("lp for stake: %w", amm.ErrInsufficientLiquidity)
	}
	price, unit, err := c.priceAndUnit(ctx)
	if err != nil {
		return nil, err
	}

	stable, overflow := new(uint256.Int).MulOverflow(stake, price)
	if overflow {
		return nil, fmt.Errorf("lp for stake: %w", amm.ErrOverflow)
	}
	stable = divCeil(stable, unit)
	side := new(uint256.Int).Rsh(stable, 1)

	lo, err := c.pricer.AmountInFor(ctx, anchor, side)
	if err != nil {
		return nil, err
	}
	xlo, err := lpForUnderlying(lo, reserve, res.TotalSupply)
	if err != nil {
		return nil, err
	}

	xhi := xlo
	hi, err := c.pricer.AmountInFor(ctx, anchor, new(uint256.Int).AddUint64(side, 1))
	switch {
	case err == nil:
		upper, err := lpForUnderlying(hi, reserve, res.TotalSupply)
		if err != nil {
			return nil, err
		}
		if !upper.IsZero() {
			upper.SubUint64(upper, 1)
		}
		if upper.Gt(xlo) {
			xhi = upper
		}
	case errors.Is(err, amm.ErrInsufficientLiquidity):
	default:
		return nil, err
	}

	mid := new(uint256.Int).Add(xlo, xhi)
	return mid.Rsh(mid, 1), nil
}

func (c *Converter) priceAndUnit(ctx context.Context) (*uint256.Int, *uint256.Int, error) {
	price, err := c.RewardUnitPrice(ctx)
	if err != nil {
		return nil, nil, err
	}
	decimals, err := c.gateway.Decimals(ctx, c.rewardToken)
	if err != nil {
		return nil, nil, fmt.Errorf("reward decimals: %w", err)
	}
	return price, token.Unit(decimals), nil
}

// lpForUnderlying is the least LP amount whose underlying share reaches amount.
func lpForUnderlying(amount, reserve, supply *uint256.Int) (*uint256.Int, error) {
	num, overflow := new(uint256.Int).MulOverflow(amount, supply)
	if overflow {
		return nil, fmt.Errorf("lp for underlying: %w", amm.ErrOverflow)
	}
	return divCeil(num, reserve), nil
}

func divCeil(num, den *uint256.Int) *uint256.Int {
	q := new(uint256.Int).Div(num, den)
	if !new(uint256.Int).Mod(num, den).IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}
