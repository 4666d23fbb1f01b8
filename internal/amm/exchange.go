package amm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"lpFarm/internal/token"
)

const (
	// MinimumLiquidity is minted to the pair itself on the first deposit.
	MinimumLiquidity = 1000
	lpDecimals       = 18
)

type pairState struct {
	address  common.Address
	token0   common.Address
	token1   common.Address
	reserve0 *uint256.Int
	reserve1 *uint256.Int
	lp       *token.Ledger
}

func (p *pairState) clone() *pairState {
	cp := *p
	cp.reserve0 = p.reserve0.Clone()
	cp.reserve1 = p.reserve1.Clone()
	return &cp
}

// Exchange is an in-memory constant-product factory and router.
type Exchange struct {
	feeBps uint64
	tokens *token.Registry
	logger *zap.Logger

	mu    sync.RWMutex
	pairs map[common.Address]*pairState
	index map[[2]common.Address]common.Address
}

func NewExchange(tokens *token.Registry, feeBps uint64, logger *zap.Logger) (*Exchange, error) {
	if feeBps >= FeeDenominator {
		return nil, fmt.Errorf("fee %d bps out of range", feeBps)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{
		feeBps: feeBps,
		tokens: tokens,
		logger: logger,
		pairs:  make(map[common.Address]*pairState),
		index:  make(map[[2]common.Address]common.Address),
	}, nil
}

// PairAddress derives the deterministic address of the pair for two tokens.
func PairAddress(tokenA, tokenB common.Address) (common.Address, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	hash := crypto.Keccak256(token0.Bytes(), token1.Bytes())
	return common.BytesToAddress(hash[12:]), nil
}

// CreatePair registers a pair and its LP token ledger.
func (e *Exchange) CreatePair(tokenA, tokenB common.Address) (common.Address, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	ledger0, err := e.tokens.Get(token0)
	if err != nil {
		return common.Address{}, err
	}
	ledger1, err := e.tokens.Get(token1)
	if err != nil {
		return common.Address{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := [2]common.Address{token0, token1}
	if _, ok := e.index[key]; ok {
		return common.Address{}, fmt.Errorf("pair %s/%s already exists", ledger0.Symbol(), ledger1.Symbol())
	}

	address, _ := PairAddress(token0, token1)
	lp := token.NewLedger(address, ledger0.Symbol()+"-"+ledger1.Symbol()+" LP", lpDecimals)
	e.tokens.Add(lp)
	e.pairs[address] = &pairState{
		address:  address,
		token0:   token0,
		token1:   token1,
		reserve0: new(uint256.Int),
		reserve1: new(uint256.Int),
		lp:       lp,
	}
	e.index[key] = address

	e.logger.Debug("pair created", zap.String("pair", address.Hex()), zap.String("token0", token0.Hex()), zap.String("token1", token1.Hex()))
	return address, nil
}

// AddLiquidity moves both amounts from provider into the pair and mints LP tokens.
// The first deposit mints max(99*MinimumLiquidity, amountA, amountB) to the provider
// and MinimumLiquidity to the pair; later deposits mint proportionally to the smaller side.
func (e *Exchange) AddLiquidity(provider, tokenA, tokenB common.Address, amountA, amountB *uint256.Int) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	amount0, amount1 := amountA, amountB
	if tokenA != token0 {
		amount0, amount1 = amountB, amountA
	}

	address, ok := e.index[[2]common.Address{token0, token1}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownPair, token0.Hex(), token1.Hex())
	}
	p := e.pairs[address]

	var liquidity *uint256.Int
	supply := p.lp.TotalSupply()
	if supply.IsZero() {
		liquidity = uint256.NewInt(99 * MinimumLiquidity)
		if liquidity.Lt(amount0) {
			liquidity = amount0.Clone()
		}
		if liquidity.Lt(amount1) {
			liquidity = amount1.Clone()
		}
	} else {
		l0, o0 := new(uint256.Int).MulOverflow(amount0, supply)
		l1, o1 := new(uint256.Int).MulOverflow(amount1, supply)
		if o0 || o1 {
			return nil, fmt.Errorf("mint: %w", ErrOverflow)
		}
		l0.Div(l0, p.reserve0)
		l1.Div(l1, p.reserve1)
		liquidity = l0
		if l1.Lt(l0) {
			liquidity = l1
		}
	}
	if liquidity.IsZero() {
		return nil, fmt.Errorf("mint: %w", ErrInsufficientLiquidity)
	}

	ledger0, err := e.tokens.Get(token0)
	if err != nil {
		return nil, err
	}
	ledger1, err := e.tokens.Get(token1)
	if err != nil {
		return nil, err
	}
	if ledger0.BalanceOf(provider).Lt(amount0) || ledger1.BalanceOf(provider).Lt(amount1) {
		return nil, fmt.Errorf("add liquidity: %w", token.ErrInsufficientBalance)
	}
	if err := ledger0.Transfer(provider, address, amount0); err != nil {
		return nil, err
	}
	if err := ledger1.Transfer(provider, address, amount1); err != nil {
		return nil, err
	}
	if supply.IsZero() {
		if err := p.lp.Mint(address, uint256.NewInt(MinimumLiquidity)); err != nil {
			return nil, err
		}
	}
	if err := p.lp.Mint(provider, liquidity); err != nil {
		return nil, err
	}

	p.reserve0 = new(uint256.Int).Add(p.reserve0, amount0)
	p.reserve1 = new(uint256.Int).Add(p.reserve1, amount1)
	return liquidity, nil
}

// Swap executes a multi-hop swap for trader, moving tokens through every pair on the path.
func (e *Exchange) Swap(trader common.Address, amountIn *uint256.Int, path []common.Address) (*uint256.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: %d hops", ErrInvalidPath, len(path))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	first, err := e.tokens.Get(path[0])
	if err != nil {
		return nil, err
	}
	if first.BalanceOf(trader).Lt(amountIn) {
		return nil, fmt.Errorf("swap: %w", token.ErrInsufficientBalance)
	}

	type hop struct {
		pair      *pairState
		tokenIn   common.Address
		amountIn  *uint256.Int
		amountOut *uint256.Int
	}
	hops := make([]hop, 0, len(path)-1)
	amount := amountIn.Clone()
	for i := 0; i < len(path)-1; i++ {
		p, err := e.pairLocked(path[i], path[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientLiquidity, err)
		}
		reserveIn, reserveOut := p.reserve0, p.reserve1
		if path[i] != p.token0 {
			reserveIn, reserveOut = p.reserve1, p.reserve0
		}
		out, err := GetAmountOut(amount, reserveIn, reserveOut, e.feeBps)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		hops = append(hops, hop{pair: p, tokenIn: path[i], amountIn: amount, amountOut: out})
		amount = out
	}

	sender := trader
	for i, h := range hops {
		in, err := e.tokens.Get(path[i])
		if err != nil {
			return nil, err
		}
		if err := in.Transfer(sender, h.pair.address, h.amountIn); err != nil {
			return nil, err
		}
		if h.tokenIn == h.pair.token0 {
			h.pair.reserve0 = new(uint256.Int).Add(h.pair.reserve0, h.amountIn)
			h.pair.reserve1 = new(uint256.Int).Sub(h.pair.reserve1, h.amountOut)
		} else {
			h.pair.reserve1 = new(uint256.Int).Add(h.pair.reserve1, h.amountIn)
			h.pair.reserve0 = new(uint256.Int).Sub(h.pair.reserve0, h.amountOut)
		}
		sender = h.pair.address
	}

	last, err := e.tokens.Get(path[len(path)-1])
	if err != nil {
		return nil, err
	}
	if err := last.Transfer(sender, trader, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// Pairs lists pair addresses in address order.
func (e *Exchange) Pairs() []common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]common.Address, 0, len(e.pairs))
	for address := range e.pairs {
		out = append(out, address)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

func (e *Exchange) PairTokens(_ context.Context, pair common.Address) (common.Address, common.Address, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pairs[pair]
	if !ok {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %s", ErrUnknownPair, pair.Hex())
	}
	return p.token0, p.token1, nil
}

func (e *Exchange) GetReserves(_ context.Context, pair common.Address) (Reserves, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pairs[pair]
	if !ok {
		return Reserves{}, fmt.Errorf("%w: %s", ErrUnknownPair, pair.Hex())
	}
	return Reserves{
		Pair:        p.address,
		Token0:      p.token0,
		Token1:      p.token1,
		Reserve0:    p.reserve0.Clone(),
		Reserve1:    p.reserve1.Clone(),
		TotalSupply: p.lp.TotalSupply(),
	}, nil
}

func (e *Exchange) GetPair(_ context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, err := e.pairLocked(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	return p.address, nil
}

func (e *Exchange) QuoteMultiHop(ctx context.Context, amountIn *uint256.Int, path []common.Address) (*uint256.Int, error) {
	return quoteOut(ctx, e, e.feeBps, amountIn, path)
}

func (e *Exchange) QuoteMultiHopIn(ctx context.Context, amountOut *uint256.Int, path []common.Address) (*uint256.Int, error) {
	return quoteIn(ctx, e, e.feeBps, amountOut, path)
}

func (e *Exchange) Decimals(_ context.Context, tokenAddr common.Address) (uint8, error) {
	ledger, err := e.tokens.Get(tokenAddr)
	if err != nil {
		return 0, err
	}
	return ledger.Decimals(), nil
}

// Checkpoint captures reserves and the pair index. LP balances are covered by the token registry.
func (e *Exchange) Checkpoint() func() {
	e.mu.RLock()
	pairs := make(map[common.Address]*pairState, len(e.pairs))
	for k, v := range e.pairs {
		pairs[k] = v.clone()
	}
	index := make(map[[2]common.Address]common.Address, len(e.index))
	for k, v := range e.index {
		index[k] = v
	}
	e.mu.RUnlock()

	return func() {
		e.mu.Lock()
		e.pairs = pairs
		e.index = index
		e.mu.Unlock()
	}
}

func (e *Exchange) pairLocked(tokenA, tokenB common.Address) (*pairState, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	address, ok := e.index[[2]common.Address{token0, token1}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownPair, token0.Hex(), token1.Hex())
	}
	return e.pairs[address], nil
}
