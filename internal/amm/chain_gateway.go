package amm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"lpFarm/internal/chain"
	"lpFarm/internal/model"
)

// ContractCaller is the subset of chain.Client the gateway needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainConfig controls the RPC-backed gateway.
type ChainConfig struct {
	Factory      common.Address
	FeeBps       uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// ChainGateway reads pairs of a deployed constant-product factory over eth_call
// and quotes swaps locally from the fetched reserves.
type ChainGateway struct {
	cfg        ChainConfig
	caller     ContractCaller
	tokenCache *TokenMetaCache
	pairCache  *pairTokensCache
	logger     *zap.Logger
}

func NewChainGateway(cfg ChainConfig, caller ContractCaller, logger *zap.Logger) (*ChainGateway, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if cfg.FeeBps >= FeeDenominator {
		return nil, fmt.Errorf("fee %d bps out of range", cfg.FeeBps)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainGateway{
		cfg:        cfg,
		caller:     caller,
		tokenCache: NewTokenMetaCache(),
		pairCache:  newPairTokensCache(),
		logger:     logger,
	}, nil
}

func (g *ChainGateway) GetPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	if _, _, err := SortTokens(tokenA, tokenB); err != nil {
		return common.Address{}, err
	}
	factoryABI, err := FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := g.call(ctx, g.cfg.Factory, factoryABI, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	pair, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("getPair: %w", err)
	}
	if pair == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s/%s", ErrUnknownPair, tokenA.Hex(), tokenB.Hex())
	}
	return pair, nil
}

// PairTokens returns the constituents of pair and verifies the factory knows it.
func (g *ChainGateway) PairTokens(ctx context.Context, pair common.Address) (common.Address, common.Address, error) {
	if cached, ok := g.pairCache.Get(pair); ok {
		return cached.token0, cached.token1, nil
	}

	pairABI, err := PairABI()
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := g.call(ctx, pair, pairABI, "token0")
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %s: %v", ErrUnknownPair, pair.Hex(), err)
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token0: %w", err)
	}
	values, err = g.call(ctx, pair, pairABI, "token1")
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %s: %v", ErrUnknownPair, pair.Hex(), err)
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token1: %w", err)
	}

	registered, err := g.GetPair(ctx, token0, token1)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	if registered != pair {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %s is not the factory pair", ErrUnknownPair, pair.Hex())
	}

	g.pairCache.Set(pair, pairTokens{token0: token0, token1: token1})
	return token0, token1, nil
}

func (g *ChainGateway) GetReserves(ctx context.Context, pair common.Address) (Reserves, error) {
	token0, token1, err := g.PairTokens(ctx, pair)
	if err != nil {
		return Reserves{}, err
	}

	pairABI, err := PairABI()
	if err != nil {
		return Reserves{}, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := g.call(ctx, pair, pairABI, "getReserves")
	if err != nil {
		return Reserves{}, err
	}
	if len(values) < 2 {
		return Reserves{}, fmt.Errorf("getReserves return size %d", len(values))
	}
	reserve0, err := asUint256(values[0])
	if err != nil {
		return Reserves{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asUint256(values[1])
	if err != nil {
		return Reserves{}, fmt.Errorf("reserve1: %w", err)
	}

	values, err = g.call(ctx, pair, pairABI, "totalSupply")
	if err != nil {
		return Reserves{}, err
	}
	supply, err := asUint256(values[0])
	if err != nil {
		return Reserves{}, fmt.Errorf("totalSupply: %w", err)
	}

	return Reserves{
		Pair:        pair,
		Token0:      token0,
		Token1:      token1,
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		TotalSupply: supply,
	}, nil
}

func (g *ChainGateway) QuoteMultiHop(ctx context.Context, amountIn *uint256.Int, path []common.Address) (*uint256.Int, error) {
	return quoteOut(ctx, g, g.cfg.FeeBps, amountIn, path)
}

func (g *ChainGateway) QuoteMultiHopIn(ctx context.Context, amountOut *uint256.Int, path []common.Address) (*uint256.Int, error) {
	return quoteIn(ctx, g, g.cfg.FeeBps, amountOut, path)
}

func (g *ChainGateway) Decimals(ctx context.Context, tokenAddr common.Address) (uint8, error) {
	meta, err := g.TokenMeta(ctx, tokenAddr)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

// TokenMeta loads decimals and symbol, caching the result.
func (g *ChainGateway) TokenMeta(ctx context.Context, tokenAddr common.Address) (model.TokenMeta, error) {
	if meta, ok := g.tokenCache.Get(tokenAddr); ok {
		return meta, nil
	}

	erc20, err := erc20ABIInstance()
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	meta := model.TokenMeta{Address: tokenAddr}

	values, err := g.call(ctx, tokenAddr, erc20, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("decimals unexpected type %T", values[0])
	}
	meta.Decimals = decimals

	if values, err := g.call(ctx, tokenAddr, erc20, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else {
		g.logger.Debug("symbol call failed", zap.String("token", tokenAddr.Hex()), zap.Error(err))
	}

	g.tokenCache.Set(tokenAddr, meta)
	return meta, nil
}

func (g *ChainGateway) call(ctx context.Context, target common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &target, Data: data}

	var resp []byte
	policy := chain.RetryPolicy{MaxRetries: g.cfg.MaxRetries, BaseDelay: g.cfg.RetryBackoff}
	err = policy.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = g.caller.CallContract(ctx, msg, nil)
		if err != nil && !chain.IsRevert(err) {
			g.logger.Warn("eth_call failed", zap.String("method", method), zap.String("target", target.Hex()), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asUint256(value interface{}) (*uint256.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		out, overflow := uint256.FromBig(v)
		if overflow || v.Sign() < 0 {
			return nil, fmt.Errorf("value out of range: %s", v.String())
		}
		return out, nil
	case uint32:
		return uint256.NewInt(uint64(v)), nil
	case uint64:
		return uint256.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
