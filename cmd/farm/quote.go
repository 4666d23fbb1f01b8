package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpFarm/internal/amm"
	"lpFarm/internal/auth"
	"lpFarm/internal/chain"
	"lpFarm/internal/config"
	"lpFarm/internal/oracle"
	"lpFarm/internal/route"
	"lpFarm/internal/runtime"
	"lpFarm/internal/token"
	"lpFarm/internal/valuation"
)

type tokenQuote struct {
	Token  string   `json:"token"`
	Symbol string   `json:"symbol,omitempty"`
	Price  string   `json:"price,omitempty"`
	Route  []string `json:"route,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type lpQuote struct {
	Pair        string `json:"pair"`
	LPAmount    string `json:"lp_amount"`
	Anchor      string `json:"anchor"`
	ValueStable string `json:"value_stable"`
	StakeValue  string `json:"stake_value,omitempty"`
	Stake       string `json:"stake,omitempty"`
	LPForStake  string `json:"lp_for_stake,omitempty"`
}

type quoteOutput struct {
	ChainID   uint64       `json:"chain_id"`
	Timestamp uint64       `json:"timestamp"`
	Stable    string       `json:"stable"`
	Tokens    []tokenQuote `json:"tokens"`
	LP        *lpQuote     `json:"lp,omitempty"`
}

// headSource is the part of chain.Client a quote is stamped from.
type headSource interface {
	runtime.TimestampSource
	ChainID(ctx context.Context) (*big.Int, error)
}

// stampQuote records which chain the quote was read from and the head block time
// the prices are valid at.
func stampQuote(ctx context.Context, src headSource, out *quoteOutput) error {
	chainID, err := src.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	clock, err := runtime.NewChainClock(ctx, src)
	if err != nil {
		return fmt.Errorf("head timestamp: %w", err)
	}
	out.ChainID = chainID.Uint64()
	out.Timestamp = clock.Now()
	return nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	factory, err := config.ParseAddress(cfg.Factory)
	if err != nil {
		return fmt.Errorf("factory: %w", err)
	}
	stable, err := config.ParseAddress(cfg.Stable)
	if err != nil {
		return fmt.Errorf("stable: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	gateway, err := amm.NewChainGateway(amm.ChainConfig{
		Factory:      factory,
		FeeBps:       cfg.FeeBps,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, logger.Named("amm"))
	if err != nil {
		return err
	}

	owner := auth.NewCapability(common.Address{})
	routes := route.NewRegistry(owner, stable, logger.Named("route"))
	for _, raw := range cfg.Routes {
		path, err := config.ParseRoute(raw)
		if err != nil {
			return err
		}
		if err := routes.AddRoute(owner, path); err != nil {
			return fmt.Errorf("route %s: %w", raw, err)
		}
	}
	prices := oracle.New(gateway, routes, logger.Named("oracle"))
	valuator := valuation.NewValuator(gateway, prices, logger.Named("valuation"))

	out := quoteOutput{Stable: stable.Hex()}
	if err := stampQuote(ctx, chainClient, &out); err != nil {
		return err
	}

	logger.Info("quote start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", out.ChainID),
		zap.Uint64("timestamp", out.Timestamp),
		zap.String("factory", factory.Hex()),
		zap.String("stable", stable.Hex()),
		zap.Int("routes", routes.Len()),
	)

	seen := make(map[common.Address]bool)
	for _, r := range routes.Routes() {
		tokenAddr := r.Token()
		if seen[tokenAddr] {
			continue
		}
		seen[tokenAddr] = true
		out.Tokens = append(out.Tokens, quoteToken(ctx, gateway, prices, tokenAddr))
	}

	if cfg.Pair != "" {
		lp, err := quoteLP(ctx, cfg, gateway, valuator)
		if err != nil {
			return err
		}
		out.LP = lp
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func quoteToken(ctx context.Context, gateway *amm.ChainGateway, prices *oracle.Oracle, tokenAddr common.Address) tokenQuote {
	q := tokenQuote{Token: tokenAddr.Hex()}
	meta, err := gateway.TokenMeta(ctx, tokenAddr)
	if err != nil {
		q.Error = err.Error()
		return q
	}
	q.Symbol = meta.Label()
	best, price, err := prices.BestRoute(ctx, tokenAddr, token.Unit(meta.Decimals))
	if err != nil {
		q.Error = err.Error()
		return q
	}
	q.Price = price.Dec()
	for _, hop := range best.Path {
		q.Route = append(q.Route, hop.Hex())
	}
	return q
}

func quoteLP(ctx context.Context, cfg config.QuoteConfig, gateway *amm.ChainGateway, valuator *valuation.Valuator) (*lpQuote, error) {
	pair, err := config.ParseAddress(cfg.Pair)
	if err != nil {
		return nil, fmt.Errorf("pair: %w", err)
	}
	lpAmount, err := uint256.FromDecimal(cfg.LPAmount)
	if err != nil {
		return nil, fmt.Errorf("lp amount: %w", err)
	}
	anchor, err := valuator.Anchor(ctx, pair)
	if err != nil {
		return nil, err
	}
	value, err := valuator.LPValueInStable(ctx, pair, lpAmount)
	if err != nil {
		return nil, err
	}
	q := &lpQuote{Pair: pair.Hex(), LPAmount: lpAmount.Dec(), Anchor: anchor.Hex(), ValueStable: value.Dec()}

	if cfg.RewardToken == "" {
		return q, nil
	}
	rewardToken, err := config.ParseAddress(cfg.RewardToken)
	if err != nil {
		return nil, fmt.Errorf("reward token: %w", err)
	}
	converter := valuation.NewConverter(valuator, rewardToken, nil)
	stakeValue, err := converter.StakeValueForLP(ctx, pair, lpAmount)
	if err != nil {
		return nil, err
	}
	q.StakeValue = stakeValue.Dec()

	if cfg.Stake != "" {
		stake, err := uint256.FromDecimal(cfg.Stake)
		if err != nil {
			return nil, fmt.Errorf("stake: %w", err)
		}
		lp, err := converter.LPValueForStake(ctx, pair, stake)
		if err != nil {
			return nil, err
		}
		q.Stake, q.LPForStake = stake.Dec(), lp.Dec()
	}
	return q, nil
}
