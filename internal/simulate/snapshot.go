package simulate

import (
	"context"
	"fmt"

	"lpFarm/internal/model"
	"lpFarm/internal/report"
)

// Snapshot is the persisted view of an engine after a run.
type Snapshot struct {
	RunID     string              `json:"run_id"`
	Timestamp uint64              `json:"timestamp"`
	Routes    []model.Route       `json:"routes"`
	Pairs     []model.Pair        `json:"pairs"`
	State     model.RewardState   `json:"state"`
	Positions []model.Position    `json:"positions"`
	Events    []model.LedgerEvent `json:"-"`
}

// Store persists snapshots. *postgres.Store satisfies it.
type Store interface {
	UpsertRoutes(ctx context.Context, runID string, routes []model.Route) error
	UpsertPositions(ctx context.Context, runID string, positions []model.Position) error
	UpsertRewardState(ctx context.Context, runID string, st model.RewardState) error
	InsertEvents(ctx context.Context, events []model.LedgerEvent) error
}

// Snapshot captures routes, pairs, pool state and the journal.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	positions, err := e.Pool.Positions()
	if err != nil {
		return Snapshot{}, fmt.Errorf("positions: %w", err)
	}
	pairs, err := e.PairViews(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		RunID:     e.Runtime.RunID(),
		Timestamp: e.Clock.Now(),
		Routes:    e.RouteViews(),
		Pairs:     pairs,
		State:     e.Pool.State(),
		Positions: positions,
		Events:    e.Runtime.Events(),
	}, nil
}

// RouteViews lists stored routes in insertion order.
func (e *Engine) RouteViews() []model.Route {
	routes := e.Routes.Routes()
	out := make([]model.Route, len(routes))
	for i, r := range routes {
		out[i] = model.Route{Index: i, Path: hexPath(r.Path), Active: r.Active}
	}
	return out
}

// PairViews lists every pair with its current reserves.
func (e *Engine) PairViews(ctx context.Context) ([]model.Pair, error) {
	addrs := e.Exchange.Pairs()
	out := make([]model.Pair, 0, len(addrs))
	for _, addr := range addrs {
		res, err := e.Exchange.GetReserves(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("reserves %s: %w", addr.Hex(), err)
		}
		lp, err := e.Tokens.Get(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Pair{
			Address:     addr.Hex(),
			Symbol:      lp.Symbol(),
			Token0:      res.Token0.Hex(),
			Token1:      res.Token1.Hex(),
			Reserve0:    res.Reserve0.Dec(),
			Reserve1:    res.Reserve1.Dec(),
			TotalSupply: res.TotalSupply.Dec(),
		})
	}
	return out, nil
}

// Persist writes the snapshot through store.
func (s Snapshot) Persist(ctx context.Context, store Store) error {
	if err := store.UpsertRoutes(ctx, s.RunID, s.Routes); err != nil {
		return fmt.Errorf("upsert routes: %w", err)
	}
	if err := store.UpsertPositions(ctx, s.RunID, s.Positions); err != nil {
		return fmt.Errorf("upsert positions: %w", err)
	}
	if err := store.UpsertRewardState(ctx, s.RunID, s.State); err != nil {
		return fmt.Errorf("upsert reward state: %w", err)
	}
	if err := store.InsertEvents(ctx, s.Events); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	return nil
}

// Units names the reward and stable assets of the scenario for reports.
func (e *Engine) Units() report.Units {
	var units report.Units
	if addr, err := e.token(e.scenario.RewardToken); err == nil {
		if ledger, err := e.Tokens.Get(addr); err == nil {
			units.RewardSymbol, units.RewardDecimals = ledger.Symbol(), ledger.Decimals()
		}
	}
	if ledger, err := e.Tokens.Get(e.Routes.Stable()); err == nil {
		units.StableSymbol, units.StableDecimals = ledger.Symbol(), ledger.Decimals()
	}
	return units
}
