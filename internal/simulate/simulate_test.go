package simulate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"lpFarm/internal/config"
	"lpFarm/internal/model"
	"lpFarm/internal/oracle"
	"lpFarm/internal/route"
	"lpFarm/internal/runtime"
	"lpFarm/internal/storage"
)

func loadReference(t *testing.T) Scenario {
	t.Helper()
	sc, err := Load(filepath.Join("testdata", "reference.yaml"))
	require.NoError(t, err)
	return sc
}

func TestRunReferenceScenario(t *testing.T) {
	ctx := context.Background()
	journal := filepath.Join(t.TempDir(), "journal.jsonl")
	e, err := New(ctx, loadReference(t), nil,
		runtime.WithRunID("reference"),
		runtime.WithSink(storage.NewJsonlStorage(journal)),
	)
	require.NoError(t, err)

	results, err := e.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 6)

	require.Equal(t, "19998100180500902504512", results[0].Amounts["stake_value"])
	require.Empty(t, results[1].Error)
	require.Contains(t, results[2].Error, "withdraw locked")
	require.Contains(t, results[3].Error, "exceeds balance")
	require.Equal(t, uint64(1_000_000+8*86_400), results[4].Timestamp)
	require.Equal(t, "1000000000000000000", results[5].Amounts["lp"])
	require.Equal(t, "604799999999999999983458", results[5].Amounts["reward"])

	alice, ok := e.Account("alice")
	require.True(t, ok)
	esw, ok := e.Symbol("esw")
	require.True(t, ok)
	ledger, err := e.Tokens.Get(esw)
	require.NoError(t, err)
	require.Equal(t, "1604799999999999999983458", ledger.BalanceOf(alice).Dec())

	events, err := storage.ReadEvents(journal)
	require.NoError(t, err)
	require.Equal(t, e.Runtime.Events(), events)
	require.Equal(t, e.Runtime.Seq(), events[len(events)-1].Seq)

	var reverted, liquidity int
	for _, ev := range events {
		require.Equal(t, "reference", ev.RunID)
		switch ev.EventName {
		case model.EventReverted:
			reverted++
		case model.EventLiquidity:
			liquidity++
		}
	}
	require.Equal(t, 2, reverted)
	require.Equal(t, 5, liquidity)

	tail := events[len(events)-2:]
	require.Equal(t, model.EventRewardPaid, tail[0].EventName)
	require.Equal(t, model.EventWithdrawn, tail[1].EventName)
	require.Equal(t, alice.Hex(), tail[1].Caller)
}

func TestOwnerMintFundsRewards(t *testing.T) {
	ctx := context.Background()
	sc := loadReference(t)
	sc.Steps = sc.Steps[:2]
	e, err := New(ctx, sc, nil)
	require.NoError(t, err)
	results, err := e.Run(ctx)
	require.NoError(t, err)
	require.Empty(t, results[1].Error)

	deployer, ok := e.Account("deployer")
	require.True(t, ok)
	esw, _ := e.Symbol("ESW")
	ledger, err := e.Tokens.Get(esw)
	require.NoError(t, err)
	require.Equal(t, "395200000000000000000000", ledger.BalanceOf(deployer).Dec())

	// seeding the pools spends every ESW minted for them
	sc = loadReference(t)
	sc.OwnerMint = nil
	sc.Steps = sc.Steps[1:2]
	e, err = New(ctx, sc, nil)
	require.NoError(t, err)
	_, err = e.Run(ctx)
	require.ErrorContains(t, err, "transfer amount exceeds balance")
}

func TestStakeStepCollateral(t *testing.T) {
	ctx := context.Background()
	sc := loadReference(t)
	sc.Steps = []Step{
		{Op: OpStake, User: "alice", Pool: "wbtc-weth", LP: "5e17", Collateral: "10e18"},
		{Op: OpStake, User: "alice", Pool: "wbtc-weth", LP: "5e17", Collateral: "1e25", ExpectError: "collateral exceeds lp value"},
	}
	e, err := New(ctx, sc, nil)
	require.NoError(t, err)
	results, err := e.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, "10000000000000000000", results[0].Amounts["stake_value"])
	require.Equal(t, "10000000000000000000", e.Pool.TotalStakeValue().Dec())
}

func TestSnapshotPersist(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, loadReference(t), nil)
	require.NoError(t, err)
	_, err = e.Run(ctx)
	require.NoError(t, err)

	snap, err := e.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Routes, 6)
	require.Len(t, snap.Pairs, 5)
	require.Empty(t, snap.Positions)
	require.Equal(t, 0, snap.State.Stakers)
	require.Equal(t, "604799999999999999983458", snap.State.TotalPaid)
	require.Equal(t, []string{
		"0x3000000000000000000000000000000000000003",
		"0x1000000000000000000000000000000000000001",
		"0x5000000000000000000000000000000000000005",
	}, snap.Routes[3].Path)

	units := e.Units()
	require.Equal(t, "ESW", units.RewardSymbol)
	require.Equal(t, uint8(6), units.StableDecimals)

	store := &memStore{}
	require.NoError(t, snap.Persist(ctx, store))
	require.Equal(t, 6, store.routes)
	require.Equal(t, snap.State, store.state)
	require.Equal(t, len(snap.Events), store.events)

	store.fail = true
	require.Error(t, snap.Persist(ctx, store))
}

func TestSwapAndRouteSteps(t *testing.T) {
	ctx := context.Background()
	sc := loadReference(t)
	active := false
	sc.Steps = []Step{
		{Op: OpSwap, User: "alice", Path: []string{"WETH", "USDT"}, Amount: "1e18"},
		{Op: OpAddRoute, Path: []string{"WETH", "USDT"}, ExpectError: route.ErrDuplicateRoute.Error()},
		{Op: OpSetActive, Path: []string{"WETH", "USDT"}, Active: &active},
	}
	e, err := New(ctx, sc, nil)
	require.NoError(t, err)

	results, err := e.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, "1999800019", results[0].Amounts["amount_out"])

	weth, _ := e.Symbol("WETH")
	_, err = e.Oracle.PriceOf(ctx, weth, uint256.NewInt(1_000_000_000_000_000_000))
	require.ErrorIs(t, err, oracle.ErrNoRouteAvailable)
}

func TestRunStopsOnUnexpectedOutcome(t *testing.T) {
	ctx := context.Background()

	sc := loadReference(t)
	sc.Steps = []Step{{Op: OpClaim, User: "alice", ExpectError: "boom"}}
	e, err := New(ctx, sc, nil)
	require.NoError(t, err)
	_, err = e.Run(ctx)
	require.ErrorIs(t, err, ErrUnexpectedSuccess)

	sc = loadReference(t)
	sc.Steps = []Step{{Op: OpExit, User: "alice"}, {Op: OpClaim, User: "alice"}}
	e, err = New(ctx, sc, nil)
	require.NoError(t, err)
	results, err := e.Run(ctx)
	require.Error(t, err)
	require.Empty(t, results)

	sc = loadReference(t)
	sc.Steps = []Step{{Op: "mint"}}
	e, err = New(ctx, sc, nil)
	require.NoError(t, err)
	seq := e.Runtime.Seq()
	_, err = e.Run(ctx)
	require.Error(t, err)
	require.Equal(t, seq, e.Runtime.Seq())
}

func TestParse(t *testing.T) {
	_, err := Parse([]byte("stable: USDT\nreward_token: ESW\nrewards_duration: 60\nbogus: 1\n"))
	require.Error(t, err)

	_, err = Parse([]byte("stable: USDT\nreward_token: ESW\n"))
	require.Error(t, err)

	_, err = Parse([]byte("stable: USDT\nreward_token: ESW\nrewards_duration: 60\nsteps:\n  - {op: notify, amount: 12x}\n"))
	require.Error(t, err)

	sc, err := Parse([]byte("stable: USDT\nreward_token: ESW\nrewards_duration: 1h\nlockup: 90\n"))
	require.NoError(t, err)
	require.Equal(t, Seconds(3600), sc.RewardsDuration)
	require.Equal(t, Seconds(90), sc.Lockup)

	fee := uint64(30)
	sc.Apply(config.Overrides{RewardsDuration: 604800, LockPolicy: "per-deposit", FeeBps: &fee})
	require.Equal(t, Seconds(604800), sc.RewardsDuration)
	require.Equal(t, Seconds(90), sc.Lockup)
	require.Equal(t, "per-deposit", sc.LockPolicy)
	require.Equal(t, uint64(30), sc.FeeBps)
}

func TestAmountInt(t *testing.T) {
	cases := map[Amount]string{
		"":           "0",
		"42":         "42",
		"1e18":       "1000000000000000000",
		"604_800e18": "604800000000000000000000",
		"100E8":      "10000000000",
	}
	for in, want := range cases {
		got, err := in.Int()
		require.NoError(t, err, in)
		require.Equal(t, want, got.Dec(), in)
	}
	for _, bad := range []Amount{"1.5", "-1", "1e", "1e999", "1e78"} {
		_, err := bad.Int()
		require.Error(t, err, bad)
	}
}

func TestNewRejectsBadScenario(t *testing.T) {
	ctx := context.Background()

	sc := loadReference(t)
	sc.LockPolicy = "forever"
	_, err := New(ctx, sc, nil)
	require.Error(t, err)

	sc = loadReference(t)
	sc.Stable = "DAI"
	_, err = New(ctx, sc, nil)
	require.Error(t, err)

	sc = loadReference(t)
	sc.Pools = append(sc.Pools, PoolSpec{Name: "dup", A: "WETH", B: "WBTC", AmountA: "1", AmountB: "1"})
	_, err = New(ctx, sc, nil)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "dup"))
}

type memStore struct {
	fail   bool
	routes int
	state  model.RewardState
	events int
}

func (m *memStore) UpsertRoutes(_ context.Context, _ string, routes []model.Route) error {
	if m.fail {
		return errors.New("connection refused")
	}
	m.routes = len(routes)
	return nil
}

func (m *memStore) UpsertPositions(context.Context, string, []model.Position) error {
	return nil
}

func (m *memStore) UpsertRewardState(_ context.Context, _ string, st model.RewardState) error {
	m.state = st
	return nil
}

func (m *memStore) InsertEvents(_ context.Context, events []model.LedgerEvent) error {
	m.events = len(events)
	return nil
}
