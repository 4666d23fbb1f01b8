package amm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrUnknownPair           = errors.New("unknown pair")
	ErrTokenNotInPair        = errors.New("token not in pair")
	ErrIdenticalTokens       = errors.New("identical tokens")
	ErrInvalidPath           = errors.New("invalid path")
	ErrOverflow              = errors.New("arithmetic overflow")
)

// Reserves is a point-in-time view of a constant-product pair.
type Reserves struct {
	Pair        common.Address
	Token0      common.Address
	Token1      common.Address
	Reserve0    *uint256.Int
	Reserve1    *uint256.Int
	TotalSupply *uint256.Int
}

// Has reports whether token is one of the pair's constituents.
func (r Reserves) Has(token common.Address) bool {
	return token == r.Token0 || token == r.Token1
}

// ReserveOf returns the reserve held for token.
func (r Reserves) ReserveOf(token common.Address) (*uint256.Int, error) {
	switch token {
	case r.Token0:
		return r.Reserve0, nil
	case r.Token1:
		return r.Reserve1, nil
	default:
		return nil, fmt.Errorf("%w: %s not in %s", ErrTokenNotInPair, token.Hex(), r.Pair.Hex())
	}
}

// Gateway is the AMM surface consumed by the valuation engine.
type Gateway interface {
	PairTokens(ctx context.Context, pair common.Address) (common.Address, common.Address, error)
	GetReserves(ctx context.Context, pair common.Address) (Reserves, error)
	GetPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error)
	QuoteMultiHop(ctx context.Context, amountIn *uint256.Int, path []common.Address) (*uint256.Int, error)
	QuoteMultiHopIn(ctx context.Context, amountOut *uint256.Int, path []common.Address) (*uint256.Int, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// SortTokens orders a token pair the way pairs store them.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, common.Address{}, ErrIdenticalTokens
	}
	if tokenA.Cmp(tokenB) < 0 {
		return tokenA, tokenB, nil
	}
	return tokenB, tokenA, nil
}

type reserveReader interface {
	GetPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error)
	GetReserves(ctx context.Context, pair common.Address) (Reserves, error)
}

func hopReserves(ctx context.Context, r reserveReader, tokenIn, tokenOut common.Address) (*uint256.Int, *uint256.Int, error) {
	pair, err := r.GetPair(ctx, tokenIn, tokenOut)
	if err != nil {
		if errors.Is(err, ErrUnknownPair) || errors.Is(err, ErrIdenticalTokens) {
			return nil, nil, fmt.Errorf("%w: %s -> %s: %v", ErrInsufficientLiquidity, tokenIn.Hex(), tokenOut.Hex(), err)
		}
		return nil, nil, err
	}
	res, err := r.GetReserves(ctx, pair)
	if err != nil {
		return nil, nil, err
	}
	reserveIn, err := res.ReserveOf(tokenIn)
	if err != nil {
		return nil, nil, err
	}
	reserveOut, err := res.ReserveOf(tokenOut)
	if err != nil {
		return nil, nil, err
	}
	return reserveIn, reserveOut, nil
}

func quoteOut(ctx context.Context, r reserveReader, feeBps uint64, amountIn *uint256.Int, path []common.Address) (*uint256.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: %d hops", ErrInvalidPath, len(path))
	}
	amount := amountIn.Clone()
	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := hopReserves(ctx, r, path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		amount, err = GetAmountOut(amount, reserveIn, reserveOut, feeBps)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
	}
	return amount, nil
}

func quoteIn(ctx context.Context, r reserveReader, feeBps uint64, amountOut *uint256.Int, path []common.Address) (*uint256.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: %d hops", ErrInvalidPath, len(path))
	}
	amount := amountOut.Clone()
	for i := len(path) - 1; i > 0; i-- {
		reserveIn, reserveOut, err := hopReserves(ctx, r, path[i-1], path[i])
		if err != nil {
			return nil, err
		}
		amount, err = GetAmountIn(amount, reserveIn, reserveOut, feeBps)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i-1, err)
		}
	}
	return amount, nil
}
