package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"lpFarm/internal/amm"
	"lpFarm/internal/route"
	"lpFarm/internal/token"
)

var ErrNoRouteAvailable = errors.New("no route available")

// RouteSource is the read side of the route registry.
type RouteSource interface {
	Stable() common.Address
	ActiveRoutesFrom(tokenAddr common.Address) []route.Route
}

// Oracle prices tokens in the stable asset through registered routes.
type Oracle struct {
	gateway amm.Gateway
	routes  RouteSource
	logger  *zap.Logger
}

func New(gateway amm.Gateway, routes RouteSource, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{gateway: gateway, routes: routes, logger: logger}
}

func (o *Oracle) Stable() common.Address {
	return o.routes.Stable()
}

// HasRoute reports whether tokenAddr can be priced. The stable asset always can.
func (o *Oracle) HasRoute(tokenAddr common.Address) bool {
	if tokenAddr == o.routes.Stable() {
		return true
	}
	return len(o.routes.ActiveRoutesFrom(tokenAddr)) > 0
}

// PriceOf converts amountIn of tokenAddr into the stable asset. Among several active
// routes the largest output wins; ties go to the earliest registered route.
func (o *Oracle) PriceOf(ctx context.Context, tokenAddr common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	_, out, err := o.BestRoute(ctx, tokenAddr, amountIn)
	return out, err
}

// BestRoute is PriceOf that also reports the chosen route.
func (o *Oracle) BestRoute(ctx context.Context, tokenAddr common.Address, amountIn *uint256.Int) (route.Route, *uint256.Int, error) {
	stable := o.routes.Stable()
	if tokenAddr == stable {
		return route.Route{Path: []common.Address{stable}, Active: true}, amountIn.Clone(), nil
	}

	candidates := o.routes.ActiveRoutesFrom(tokenAddr)
	if len(candidates) == 0 {
		return route.Route{}, nil, fmt.Errorf("%w: %s", ErrNoRouteAvailable, tokenAddr.Hex())
	}

	var (
		best    route.Route
		bestOut *uint256.Int
		lastErr error
	)
	for _, candidate := range candidates {
		out, err := o.gateway.QuoteMultiHop(ctx, amountIn, candidate.Path)
		if err != nil {
			if errors.Is(err, amm.ErrInsufficientLiquidity) {
				lastErr = err
				continue
			}
			return route.Route{}, nil, err
		}
		if bestOut == nil || out.Gt(bestOut) {
			best, bestOut = candidate, out
		}
	}
	if bestOut == nil {
		return route.Route{}, nil, fmt.Errorf("price %s: %w", tokenAddr.Hex(), lastErr)
	}

	o.logger.Debug("price quoted",
		zap.String("token", tokenAddr.Hex()),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("amount_out", bestOut.Dec()),
		zap.String("route", best.String()),
	)
	return best, bestOut, nil
}

// TokenPrice prices one whole unit of tokenAddr.
func (o *Oracle) TokenPrice(ctx context.Context, tokenAddr common.Address) (*uint256.Int, error) {
	decimals, err := o.decimals(ctx, tokenAddr)
	if err != nil {
		return nil, err
	}
	return o.PriceOf(ctx, tokenAddr, token.Unit(decimals))
}

// AmountOut quotes an explicit path without consulting the registry.
func (o *Oracle) AmountOut(ctx context.Context, amountIn *uint256.Int, path []common.Address) (*uint256.Int, error) {
	return o.gateway.QuoteMultiHop(ctx, amountIn, path)
}

// AmountInFor returns the least amount of tokenAddr whose price reaches stableOut
// over any active route.
func (o *Oracle) AmountInFor(ctx context.Context, tokenAddr common.Address, stableOut *uint256.Int) (*uint256.Int, error) {
	stable := o.routes.Stable()
	if tokenAddr == stable {
		return stableOut.Clone(), nil
	}

	candidates := o.routes.ActiveRoutesFrom(tokenAddr)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRouteAvailable, tokenAddr.Hex())
	}

	var (
		best    *uint256.Int
		lastErr error
	)
	for _, candidate := range candidates {
		in, err := o.gateway.QuoteMultiHopIn(ctx, stableOut, candidate.Path)
		if err != nil {
			if errors.Is(err, amm.ErrInsufficientLiquidity) {
				lastErr = err
				continue
			}
			return nil, err
		}
		if best == nil || in.Lt(best) {
			best = in
		}
	}
	if best == nil {
		return nil, fmt.Errorf("reverse price %s: %w", tokenAddr.Hex(), lastErr)
	}
	return best, nil
}

func (o *Oracle) decimals(ctx context.Context, tokenAddr common.Address) (uint8, error) {
	decimals, err := o.gateway.Decimals(ctx, tokenAddr)
	if err != nil {
		return 0, fmt.Errorf("decimals %s: %w", tokenAddr.Hex(), err)
	}
	return decimals, nil
}
