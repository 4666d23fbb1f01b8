package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"lpFarm/internal/metrics"
	"lpFarm/internal/model"
	"lpFarm/internal/report"
	"lpFarm/internal/runtime"
	"lpFarm/internal/simulate"
)

const (
	weth  = "0x1000000000000000000000000000000000000001"
	dai   = "0x7000000000000000000000000000000000000007"
	alice = "0xa11ce00000000000000000000000000000a11ce0"
)

func setupTestServer(t *testing.T) (*simulate.Engine, *httptest.Server) {
	t.Helper()
	ctx := context.Background()

	sc, err := simulate.Load("../simulate/testdata/reference.yaml")
	require.NoError(t, err)
	sc.Steps = []simulate.Step{
		{Op: simulate.OpStake, User: "alice", Pool: "wbtc-weth", LP: "1e18"},
		{Op: simulate.OpNotify, Amount: "604800e18"},
	}

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	e, err := simulate.New(ctx, sc, nil, runtime.WithRecorder(rec), runtime.WithRunID("api"))
	require.NoError(t, err)
	_, err = e.Run(ctx)
	require.NoError(t, err)

	s := NewServer(Deps{
		Catalog:   e,
		Pricer:    e.Oracle,
		Converter: e.Converter,
		Pool:      e.Pool,
		Journal:   e.Runtime,
		Units:     report.Units{RewardSymbol: "ESW", RewardDecimals: 18, StableSymbol: "USDT", StableDecimals: 6},
		Gatherer:  reg,
		Observer:  rec,
	}, nil)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return e, ts
}

func getJSON(t *testing.T, url string, wantStatus int, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode, url)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)

	var body map[string]interface{}
	getJSON(t, ts.URL+"/health", http.StatusOK, &body)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "api", body["run_id"])
}

func TestRoutesAndPairs(t *testing.T) {
	_, ts := setupTestServer(t)

	var routes []model.Route
	getJSON(t, ts.URL+"/api/v1/routes", http.StatusOK, &routes)
	require.Len(t, routes, 6)
	require.True(t, routes[1].Active)

	var pairs []model.Pair
	getJSON(t, ts.URL+"/api/v1/pairs", http.StatusOK, &pairs)
	require.Len(t, pairs, 5)
}

func TestPriceEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)

	var price priceResponse
	getJSON(t, ts.URL+"/api/v1/price/"+weth+"?amount=1000000000000000000", http.StatusOK, &price)
	require.Equal(t, "1999800019", price.Out)
	require.Len(t, price.Route, 2)

	getJSON(t, ts.URL+"/api/v1/price/"+dai, http.StatusNotFound, nil)
	getJSON(t, ts.URL+"/api/v1/price/not-an-address", http.StatusBadRequest, nil)
	getJSON(t, ts.URL+"/api/v1/price/"+weth+"?amount=1.5", http.StatusBadRequest, nil)
}

func TestLPValuationEndpoints(t *testing.T) {
	e, ts := setupTestServer(t)
	pair, ok := e.Pair("wbtc-weth")
	require.True(t, ok)

	var value lpValueResponse
	getJSON(t, ts.URL+"/api/v1/lp/"+pair.Hex()+"/value", http.StatusOK, &value)
	require.Equal(t, "3999600038", value.ValueStable)
	require.Equal(t, "19998100180500902504512", value.StakeValue)

	var inverse map[string]string
	getJSON(t, ts.URL+"/api/v1/lp/"+pair.Hex()+"/for-stake?stake=19998100180500902504512", http.StatusOK, &inverse)
	require.Equal(t, "999999999750950099", inverse["lp_amount"])

	getJSON(t, ts.URL+"/api/v1/lp/"+pair.Hex()+"/for-stake", http.StatusBadRequest, nil)
	getJSON(t, ts.URL+"/api/v1/lp/"+weth+"/value", http.StatusNotFound, nil)
}

func TestAccountAndPositions(t *testing.T) {
	_, ts := setupTestServer(t)

	var acct accountResponse
	getJSON(t, ts.URL+"/api/v1/accounts/"+alice, http.StatusOK, &acct)
	require.Equal(t, "1000000000000000000", acct.LPAmount)
	require.Equal(t, "19998100180500902504512", acct.StakeValue)
	require.Equal(t, "3999600038", acct.ValueStable)
	require.Equal(t, "3999600038", acct.PoolStable)
	require.Equal(t, "0", acct.Earned)
	require.Equal(t, "0", acct.UnlockedLP)
	require.Equal(t, uint64(1_000_000+86_400), acct.UnlockTime)

	var positions []model.Position
	getJSON(t, ts.URL+"/api/v1/positions", http.StatusOK, &positions)
	require.Len(t, positions, 1)

	var state model.RewardState
	getJSON(t, ts.URL+"/api/v1/state", http.StatusOK, &state)
	require.Equal(t, "1000000000000000000", state.RewardRate)
	require.Equal(t, 1, state.Stakers)

	var rep report.Pool
	getJSON(t, ts.URL+"/api/v1/report", http.StatusOK, &rep)
	require.Equal(t, "api", rep.RunID)
	require.Equal(t, "157694.98%", rep.APR)
}

func TestEventsAndMetrics(t *testing.T) {
	e, ts := setupTestServer(t)

	var events []model.LedgerEvent
	getJSON(t, ts.URL+"/api/v1/events", http.StatusOK, &events)
	require.Len(t, events, len(e.Runtime.Events()))

	getJSON(t, ts.URL+"/api/v1/events?from=1000000", http.StatusOK, &events)
	require.Empty(t, events)
	getJSON(t, ts.URL+"/api/v1/events?from=x", http.StatusBadRequest, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	require.True(t, strings.Contains(text, `lpfarm_calls_total{op="stake"} 1`), text)
	require.True(t, strings.Contains(text, "lpfarm_stakers 1"), text)
}
