// Package simulate deploys a scenario onto the in-memory exchange and replays its
// calls through the runtime, journaling every committed or reverted call.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"lpFarm/internal/amm"
	"lpFarm/internal/auth"
	"lpFarm/internal/config"
	"lpFarm/internal/model"
	"lpFarm/internal/oracle"
	"lpFarm/internal/reward"
	"lpFarm/internal/route"
	"lpFarm/internal/runtime"
	"lpFarm/internal/token"
	"lpFarm/internal/valuation"
)

var (
	defaultDeployer = common.HexToAddress("0xd00000000000000000000000000000000000000d")
	defaultCustody  = common.HexToAddress("0xfa0000000000000000000000000000000000fa00")
)

// ErrUnexpectedSuccess is returned when a step marked expect_error succeeds.
var ErrUnexpectedSuccess = errors.New("step succeeded but an error was expected")

// Engine owns every component of one deployed scenario.
type Engine struct {
	Runtime   *runtime.Runtime
	Clock     *runtime.ManualClock
	Tokens    *token.Registry
	Exchange  *amm.Exchange
	Routes    *route.Registry
	Oracle    *oracle.Oracle
	Converter *valuation.Converter
	Pool      *reward.Pool

	scenario Scenario
	logger   *zap.Logger
	owner    *auth.Capability
	deployer common.Address
	custody  common.Address
	symbols  map[string]common.Address
	pairs    map[string]common.Address
	accounts map[string]common.Address
}

// StepResult records the outcome of one step.
type StepResult struct {
	Index     int               `json:"index"`
	Op        string            `json:"op"`
	Timestamp uint64            `json:"timestamp"`
	Amounts   map[string]string `json:"amounts,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// New deploys the scenario's tokens, pools, routes and accounts. Deployment runs
// through the runtime, so it is journaled like any other call.
func New(ctx context.Context, sc Scenario, logger *zap.Logger, opts ...runtime.Option) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy, err := reward.ParseLockPolicy(sc.LockPolicy)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		scenario: sc,
		logger:   logger,
		deployer: defaultDeployer,
		custody:  defaultCustody,
		symbols:  make(map[string]common.Address),
		pairs:    make(map[string]common.Address),
		accounts: make(map[string]common.Address),
	}
	if sc.Deployer != "" {
		if e.deployer, err = config.ParseAddress(sc.Deployer); err != nil {
			return nil, fmt.Errorf("deployer: %w", err)
		}
	}
	if sc.Custody != "" {
		if e.custody, err = config.ParseAddress(sc.Custody); err != nil {
			return nil, fmt.Errorf("custody: %w", err)
		}
	}
	e.accounts["deployer"] = e.deployer
	e.owner = auth.NewCapability(e.deployer)

	e.Tokens = token.NewRegistry()
	for _, spec := range sc.Tokens {
		addr, err := config.ParseAddress(spec.Address)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", spec.Symbol, err)
		}
		e.Tokens.Add(token.NewLedger(addr, spec.Symbol, spec.Decimals))
		e.symbols[strings.ToUpper(spec.Symbol)] = addr
	}
	stable, err := e.token(sc.Stable)
	if err != nil {
		return nil, fmt.Errorf("stable: %w", err)
	}
	rewardAddr, err := e.token(sc.RewardToken)
	if err != nil {
		return nil, fmt.Errorf("reward token: %w", err)
	}
	rewardLedger, err := e.Tokens.Get(rewardAddr)
	if err != nil {
		return nil, err
	}

	if e.Exchange, err = amm.NewExchange(e.Tokens, sc.FeeBps, logger.Named("amm")); err != nil {
		return nil, err
	}
	e.Routes = route.NewRegistry(e.owner, stable, logger.Named("route"))
	e.Oracle = oracle.New(e.Exchange, e.Routes, logger.Named("oracle"))
	e.Converter = valuation.NewConverter(valuation.NewValuator(e.Exchange, e.Oracle, logger.Named("valuation")), rewardAddr, logger.Named("valuation"))

	e.Clock = runtime.NewManualClock(sc.Start)
	e.Runtime = runtime.New(e.Clock, logger.Named("runtime"), opts...)
	e.Pool = reward.NewPool(logger.Named("reward"))
	e.Runtime.Register(e.Tokens, e.Exchange, e.Routes, e.Pool)

	if err := e.Pool.Initialize(reward.Params{
		Owner:           e.owner,
		Custody:         e.custody,
		RewardToken:     rewardLedger,
		LPTokens:        e.Tokens,
		Valuer:          e.Converter,
		Clock:           e.Clock,
		RewardsDuration: uint64(sc.RewardsDuration),
		LockupDuration:  uint64(sc.Lockup),
		LockPolicy:      policy,
		Events:          e.Runtime,
	}); err != nil {
		return nil, err
	}

	if err := e.deploy(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) deploy(ctx context.Context) error {
	for _, spec := range e.scenario.Pools {
		spec := spec
		err := e.Runtime.Call(ctx, "deploy-pool", e.deployer, func(ctx context.Context) error {
			pair, err := e.seedPool(spec)
			if err != nil {
				return err
			}
			e.pairs[spec.Name] = pair
			return nil
		})
		if err != nil {
			return fmt.Errorf("pool %s: %w", spec.Name, err)
		}
	}

	for _, names := range e.scenario.Routes {
		if err := e.addRoute(ctx, names); err != nil {
			return err
		}
	}

	for _, spec := range e.scenario.Accounts {
		if err := e.fund(ctx, spec); err != nil {
			return fmt.Errorf("account %s: %w", spec.Name, err)
		}
	}

	// the owner funds reward periods through custody
	if len(e.scenario.OwnerMint) > 0 {
		owner := AccountSpec{Name: "deployer", Address: e.deployer.Hex(), Mint: e.scenario.OwnerMint}
		if err := e.fund(ctx, owner); err != nil {
			return fmt.Errorf("owner mint: %w", err)
		}
	}
	return e.approveAll(e.deployer)
}

func (e *Engine) seedPool(spec PoolSpec) (common.Address, error) {
	tokenA, err := e.token(spec.A)
	if err != nil {
		return common.Address{}, err
	}
	tokenB, err := e.token(spec.B)
	if err != nil {
		return common.Address{}, err
	}
	amountA, err := spec.AmountA.Int()
	if err != nil {
		return common.Address{}, err
	}
	amountB, err := spec.AmountB.Int()
	if err != nil {
		return common.Address{}, err
	}
	for _, mint := range []struct {
		token  common.Address
		amount *uint256.Int
	}{{tokenA, amountA}, {tokenB, amountB}} {
		ledger, err := e.Tokens.Get(mint.token)
		if err != nil {
			return common.Address{}, err
		}
		if err := ledger.Mint(e.deployer, mint.amount); err != nil {
			return common.Address{}, err
		}
	}
	pair, err := e.Exchange.CreatePair(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	liquidity, err := e.Exchange.AddLiquidity(e.deployer, tokenA, tokenB, amountA, amountB)
	if err != nil {
		return common.Address{}, err
	}
	e.Runtime.Emit(model.EventLiquidity, model.LiquidityData{
		Provider:  e.deployer.Hex(),
		Pair:      pair.Hex(),
		AmountA:   amountA.Dec(),
		AmountB:   amountB.Dec(),
		Liquidity: liquidity.Dec(),
	})
	return pair, nil
}

func (e *Engine) fund(ctx context.Context, spec AccountSpec) error {
	addr, err := config.ParseAddress(spec.Address)
	if err != nil {
		return err
	}
	e.accounts[spec.Name] = addr

	return e.Runtime.Call(ctx, "fund", addr, func(ctx context.Context) error {
		for sym, amount := range spec.Mint {
			tokenAddr, err := e.token(sym)
			if err != nil {
				return err
			}
			value, err := amount.Int()
			if err != nil {
				return err
			}
			ledger, err := e.Tokens.Get(tokenAddr)
			if err != nil {
				return err
			}
			if err := ledger.Mint(addr, value); err != nil {
				return err
			}
		}
		for name, amount := range spec.LP {
			pair, ok := e.pairs[name]
			if !ok {
				return fmt.Errorf("unknown pool %q", name)
			}
			value, err := amount.Int()
			if err != nil {
				return err
			}
			lp, err := e.Tokens.Get(pair)
			if err != nil {
				return err
			}
			if err := lp.Transfer(e.deployer, addr, value); err != nil {
				return fmt.Errorf("lp %s: %w", name, err)
			}
		}
		return e.approveAll(addr)
	})
}

// approveAll grants custody an unlimited allowance on every known token.
func (e *Engine) approveAll(owner common.Address) error {
	unlimited := new(uint256.Int).SetAllOne()
	for _, addr := range e.tokenAddresses() {
		ledger, err := e.Tokens.Get(addr)
		if err != nil {
			return err
		}
		if err := ledger.Approve(owner, e.custody, unlimited); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) tokenAddresses() []common.Address {
	out := make([]common.Address, 0, len(e.symbols)+len(e.pairs))
	for _, spec := range e.scenario.Tokens {
		out = append(out, e.symbols[strings.ToUpper(spec.Symbol)])
	}
	for _, spec := range e.scenario.Pools {
		if pair, ok := e.pairs[spec.Name]; ok {
			out = append(out, pair)
		}
	}
	return out
}

// Run executes every step in order. A failing step aborts the run unless it
// declares the error it expects.
func (e *Engine) Run(ctx context.Context) ([]StepResult, error) {
	results := make([]StepResult, 0, len(e.scenario.Steps))
	for i, step := range e.scenario.Steps {
		amounts, err := e.Step(ctx, step)
		res := StepResult{Index: i, Op: step.Op, Timestamp: e.Clock.Now(), Amounts: amounts}
		switch {
		case err != nil && step.ExpectError != "" && strings.Contains(err.Error(), step.ExpectError):
			res.Error = err.Error()
		case err != nil:
			return results, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		case step.ExpectError != "":
			return results, fmt.Errorf("step %d (%s): %w: %q", i, step.Op, ErrUnexpectedSuccess, step.ExpectError)
		}
		results = append(results, res)
	}
	e.logger.Info("scenario finished", zap.Int("steps", len(results)), zap.Uint64("seq", e.Runtime.Seq()))
	return results, nil
}

// Step executes one step and returns the amounts it produced.
func (e *Engine) Step(ctx context.Context, step Step) (map[string]string, error) {
	switch step.Op {
	case OpAdvance:
		return nil, e.advance(step)
	case OpAddRoute:
		return nil, e.addRoute(ctx, step.Path)
	case OpSetActive:
		return nil, e.setActive(ctx, step)
	case OpNotify, OpStake, OpWithdraw, OpClaim, OpExit, OpSwap, OpAddLiquidity:
	default:
		return nil, fmt.Errorf("unknown op %q", step.Op)
	}

	user := e.deployer
	if step.User != "" {
		addr, ok := e.accounts[step.User]
		if !ok {
			return nil, fmt.Errorf("unknown account %q", step.User)
		}
		user = addr
	}

	amounts := make(map[string]string)
	err := e.Runtime.Call(ctx, step.Op, user, func(ctx context.Context) error {
		switch step.Op {
		case OpNotify:
			amount, err := step.Amount.Int()
			if err != nil {
				return err
			}
			return e.Pool.NotifyRewardAmount(e.owner, amount)
		case OpStake:
			return e.stake(ctx, user, step, amounts)
		case OpWithdraw:
			lp, err := step.LP.Int()
			if err != nil {
				return err
			}
			collateral, err := e.Pool.Withdraw(ctx, user, lp)
			if err != nil {
				return err
			}
			amounts["collateral"] = collateral.Dec()
			return nil
		case OpClaim:
			paid, err := e.Pool.GetReward(ctx, user)
			if err != nil {
				return err
			}
			amounts["reward"] = paid.Dec()
			return nil
		case OpExit:
			lp, paid, err := e.Pool.Exit(ctx, user)
			if err != nil {
				return err
			}
			amounts["lp"] = lp.Dec()
			amounts["reward"] = paid.Dec()
			return nil
		case OpSwap:
			return e.swap(user, step, amounts)
		default:
			return e.addLiquidity(user, step, amounts)
		}
	})
	if len(amounts) == 0 {
		amounts = nil
	}
	return amounts, err
}

func (e *Engine) stake(ctx context.Context, user common.Address, step Step, amounts map[string]string) error {
	pair, ok := e.pairs[step.Pool]
	if !ok {
		return fmt.Errorf("unknown pool %q", step.Pool)
	}
	lp, err := step.LP.Int()
	if err != nil {
		return err
	}
	// without an explicit collateral the user puts up the full LP value
	var collateral *uint256.Int
	if step.Collateral.IsZero() {
		collateral, err = e.Converter.StakeValueForLP(ctx, pair, lp)
	} else {
		collateral, err = step.Collateral.Int()
	}
	if err != nil {
		return err
	}
	value, err := e.Pool.Stake(ctx, user, pair, lp, collateral)
	if err != nil {
		return err
	}
	amounts["stake_value"] = value.Dec()
	return nil
}

func (e *Engine) swap(user common.Address, step Step, amounts map[string]string) error {
	path, err := e.path(step.Path)
	if err != nil {
		return err
	}
	amountIn, err := step.Amount.Int()
	if err != nil {
		return err
	}
	out, err := e.Exchange.Swap(user, amountIn, path)
	if err != nil {
		return err
	}
	amounts["amount_out"] = out.Dec()
	e.Runtime.Emit(model.EventSwap, model.SwapData{
		Trader:    user.Hex(),
		Path:      hexPath(path),
		AmountIn:  amountIn.Dec(),
		AmountOut: out.Dec(),
	})
	return nil
}

func (e *Engine) addLiquidity(user common.Address, step Step, amounts map[string]string) error {
	spec, ok := e.poolSpec(step.Pool)
	if !ok {
		return fmt.Errorf("unknown pool %q", step.Pool)
	}
	tokenA, err := e.token(spec.A)
	if err != nil {
		return err
	}
	tokenB, err := e.token(spec.B)
	if err != nil {
		return err
	}
	amountA, err := step.Amount.Int()
	if err != nil {
		return err
	}
	amountB, err := step.AmountB.Int()
	if err != nil {
		return err
	}
	liquidity, err := e.Exchange.AddLiquidity(user, tokenA, tokenB, amountA, amountB)
	if err != nil {
		return err
	}
	amounts["liquidity"] = liquidity.Dec()
	e.Runtime.Emit(model.EventLiquidity, model.LiquidityData{
		Provider:  user.Hex(),
		Pair:      e.pairs[step.Pool].Hex(),
		AmountA:   amountA.Dec(),
		AmountB:   amountB.Dec(),
		Liquidity: liquidity.Dec(),
	})
	return nil
}

func (e *Engine) advance(step Step) error {
	if step.Seconds == 0 {
		return fmt.Errorf("advance: seconds must be positive")
	}
	now := e.Clock.Advance(uint64(step.Seconds))
	e.logger.Debug("clock advanced", zap.Uint64("now", now))
	return nil
}

func (e *Engine) addRoute(ctx context.Context, names []string) error {
	path, err := e.path(names)
	if err != nil {
		return err
	}
	return e.Runtime.Call(ctx, OpAddRoute, e.deployer, func(ctx context.Context) error {
		if err := e.Routes.AddRoute(e.owner, path); err != nil {
			return err
		}
		e.Runtime.Emit(model.EventRouteAdded, model.RouteData{Path: hexPath(path), Active: true})
		return nil
	})
}

func (e *Engine) setActive(ctx context.Context, step Step) error {
	if step.Active == nil {
		return fmt.Errorf("set-active: active is required")
	}
	path, err := e.path(step.Path)
	if err != nil {
		return err
	}
	active := *step.Active
	return e.Runtime.Call(ctx, OpSetActive, e.deployer, func(ctx context.Context) error {
		if err := e.Routes.SetActive(e.owner, path, active); err != nil {
			return err
		}
		e.Runtime.Emit(model.EventRouteActivated, model.RouteData{Path: hexPath(path), Active: active})
		return nil
	})
}

// token resolves a symbol or a hex address.
func (e *Engine) token(name string) (common.Address, error) {
	if addr, ok := e.symbols[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return addr, nil
	}
	if common.IsHexAddress(name) {
		return common.HexToAddress(name), nil
	}
	return common.Address{}, fmt.Errorf("%w: %s", token.ErrUnknownToken, name)
}

func (e *Engine) path(names []string) ([]common.Address, error) {
	path := make([]common.Address, 0, len(names))
	for _, name := range names {
		addr, err := e.token(name)
		if err != nil {
			return nil, err
		}
		path = append(path, addr)
	}
	return path, nil
}

func (e *Engine) poolSpec(name string) (PoolSpec, bool) {
	for _, spec := range e.scenario.Pools {
		if spec.Name == name {
			return spec, true
		}
	}
	return PoolSpec{}, false
}

// Account returns the address of a named account.
func (e *Engine) Account(name string) (common.Address, bool) {
	addr, ok := e.accounts[name]
	return addr, ok
}

// Pair returns the pair address of a named pool.
func (e *Engine) Pair(name string) (common.Address, bool) {
	addr, ok := e.pairs[name]
	return addr, ok
}

// Symbol returns the address of a token symbol.
func (e *Engine) Symbol(sym string) (common.Address, bool) {
	addr, ok := e.symbols[strings.ToUpper(sym)]
	return addr, ok
}

func hexPath(path []common.Address) []string {
	out := make([]string, len(path))
	for i, addr := range path {
		out[i] = addr.Hex()
	}
	return out
}
