// Package api serves read-only views of a running engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lpFarm/internal/amm"
	"lpFarm/internal/model"
	"lpFarm/internal/oracle"
	"lpFarm/internal/report"
	"lpFarm/internal/reward"
	"lpFarm/internal/route"
	"lpFarm/internal/token"
	"lpFarm/internal/valuation"
)

// Catalog lists routes and pairs. *simulate.Engine satisfies it.
type Catalog interface {
	RouteViews() []model.Route
	PairViews(ctx context.Context) ([]model.Pair, error)
}

// Pricer is the oracle surface the API exposes.
type Pricer interface {
	BestRoute(ctx context.Context, tokenAddr common.Address, amountIn *uint256.Int) (route.Route, *uint256.Int, error)
}

// Converter values LP positions. *valuation.Converter satisfies it.
type Converter interface {
	LPValueInStable(ctx context.Context, pair common.Address, lpAmount *uint256.Int) (*uint256.Int, error)
	StakeValueForLP(ctx context.Context, pair common.Address, lpAmount *uint256.Int) (*uint256.Int, error)
	LPValueForStake(ctx context.Context, pair common.Address, stake *uint256.Int) (*uint256.Int, error)
	RewardUnitPrice(ctx context.Context) (*uint256.Int, error)
}

// Pool is the reward pool surface the API exposes. *reward.Pool satisfies it.
type Pool interface {
	report.Source
	Earned(user common.Address) (*uint256.Int, error)
	StakeOf(user common.Address) reward.Position
	UnlockTime(user common.Address) (uint64, error)
	UnlockedLP(user common.Address) *uint256.Int
}

// Journal exposes committed ledger events. *runtime.Runtime satisfies it.
type Journal interface {
	Events() []model.LedgerEvent
	Seq() uint64
	RunID() string
}

// StateObserver receives gauge updates before metrics are scraped.
type StateObserver interface {
	ObserveState(stakers int, events uint64)
}

// Deps are the components the server reads.
type Deps struct {
	Catalog   Catalog
	Pricer    Pricer
	Converter Converter
	Pool      Pool
	Journal   Journal
	Units     report.Units
	Gatherer  prometheus.Gatherer
	Observer  StateObserver
}

// Server provides the HTTP API.
type Server struct {
	deps   Deps
	logger *zap.Logger
	router *mux.Router
}

func NewServer(deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, logger: logger, router: mux.NewRouter()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", s.metricsHandler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/routes", s.handleRoutes).Methods("GET")
	api.HandleFunc("/pairs", s.handlePairs).Methods("GET")
	api.HandleFunc("/price/{token}", s.handlePrice).Methods("GET")
	api.HandleFunc("/lp/{pair}/value", s.handleLPValue).Methods("GET")
	api.HandleFunc("/lp/{pair}/for-stake", s.handleLPForStake).Methods("GET")
	api.HandleFunc("/state", s.handleState).Methods("GET")
	api.HandleFunc("/positions", s.handlePositions).Methods("GET")
	api.HandleFunc("/accounts/{address}", s.handleAccount).Methods("GET")
	api.HandleFunc("/report", s.handleReport).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")
}

// Router returns the HTTP router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("api listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) metricsHandler() http.Handler {
	inner := promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Observer != nil {
			var events uint64
			if s.deps.Journal != nil {
				events = s.deps.Journal.Seq()
			}
			s.deps.Observer.ObserveState(s.deps.Pool.State().Stakers, events)
		}
		inner.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	if s.deps.Journal != nil {
		body["run_id"] = s.deps.Journal.RunID()
		body["seq"] = s.deps.Journal.Seq()
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Catalog.RouteViews())
}

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.deps.Catalog.PairViews(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pairs)
}

type priceResponse struct {
	Token  string   `json:"token"`
	Amount string   `json:"amount"`
	Out    string   `json:"out"`
	Route  []string `json:"route"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	tokenAddr, ok := s.pathAddress(w, r, "token")
	if !ok {
		return
	}
	amount, ok := s.queryAmount(w, r, "amount", true)
	if !ok {
		return
	}
	best, out, err := s.deps.Pricer.BestRoute(r.Context(), tokenAddr, amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := priceResponse{Token: tokenAddr.Hex(), Amount: amount.Dec(), Out: out.Dec(), Route: []string{}}
	for _, hop := range best.Path {
		resp.Route = append(resp.Route, hop.Hex())
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type lpValueResponse struct {
	Pair        string `json:"pair"`
	LPAmount    string `json:"lp_amount"`
	ValueStable string `json:"value_stable"`
	StakeValue  string `json:"stake_value"`
}

func (s *Server) handleLPValue(w http.ResponseWriter, r *http.Request) {
	pair, ok := s.pathAddress(w, r, "pair")
	if !ok {
		return
	}
	lp, ok := s.queryAmount(w, r, "lp", true)
	if !ok {
		return
	}
	value, err := s.deps.Converter.LPValueInStable(r.Context(), pair, lp)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	stake, err := s.deps.Converter.StakeValueForLP(r.Context(), pair, lp)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lpValueResponse{
		Pair:        pair.Hex(),
		LPAmount:    lp.Dec(),
		ValueStable: value.Dec(),
		StakeValue:  stake.Dec(),
	})
}

func (s *Server) handleLPForStake(w http.ResponseWriter, r *http.Request) {
	pair, ok := s.pathAddress(w, r, "pair")
	if !ok {
		return
	}
	stake, ok := s.queryAmount(w, r, "stake", false)
	if !ok {
		return
	}
	lp, err := s.deps.Converter.LPValueForStake(r.Context(), pair, stake)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"pair":      pair.Hex(),
		"stake":     stake.Dec(),
		"lp_amount": lp.Dec(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Pool.State())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.deps.Pool.Positions()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, positions)
}

type accountResponse struct {
	User        string `json:"user"`
	Pair        string `json:"pair,omitempty"`
	LPAmount    string `json:"lp_amount"`
	StakeValue  string `json:"stake_value"`
	Earned      string `json:"earned"`
	UnlockTime  uint64 `json:"unlock_time,omitempty"`
	UnlockedLP  string `json:"unlocked_lp"`
	ValueStable string `json:"value_stable"`
	PoolStable  string `json:"pool_value_stable"`
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := s.pathAddress(w, r, "address")
	if !ok {
		return
	}
	earned, err := s.deps.Pool.Earned(user)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	userValue, poolValue, err := s.deps.Pool.StakedValuesInStable(r.Context(), user)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	pos := s.deps.Pool.StakeOf(user)
	resp := accountResponse{
		User:        user.Hex(),
		LPAmount:    pos.LPAmount.Dec(),
		StakeValue:  pos.StakeValue.Dec(),
		Earned:      earned.Dec(),
		UnlockedLP:  s.deps.Pool.UnlockedLP(user).Dec(),
		ValueStable: userValue.Dec(),
		PoolStable:  poolValue.Dec(),
	}
	if !pos.LPAmount.IsZero() {
		resp.Pair = pos.Pair.Hex()
		if unlock, err := s.deps.Pool.UnlockTime(user); err == nil {
			resp.UnlockTime = unlock
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := report.Build(r.Context(), s.deps.Pool, s.deps.Converter, s.deps.Units)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if s.deps.Journal != nil {
		rep.RunID = s.deps.Journal.RunID()
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var from uint64
	if raw := r.URL.Query().Get("from"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid from: "+raw)
			return
		}
		from = v
	}
	events := make([]model.LedgerEvent, 0)
	for _, ev := range s.deps.Journal.Events() {
		if ev.Seq >= from {
			events = append(events, ev)
		}
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) pathAddress(w http.ResponseWriter, r *http.Request, key string) (common.Address, bool) {
	raw := mux.Vars(r)[key]
	if !common.IsHexAddress(raw) {
		s.writeError(w, http.StatusBadRequest, "invalid address: "+raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// queryAmount parses a decimal amount; it defaults to 10^18 when allowed.
func (s *Server) queryAmount(w http.ResponseWriter, r *http.Request, key string, defaultUnit bool) (*uint256.Int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		if defaultUnit {
			return token.Unit(18), true
		}
		s.writeError(w, http.StatusBadRequest, key+" is required")
		return nil, false
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid "+key+": "+raw)
		return nil, false
	}
	return v, true
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, oracle.ErrNoRouteAvailable),
		errors.Is(err, valuation.ErrTokenNotRecognized),
		errors.Is(err, amm.ErrUnknownPair):
		status = http.StatusNotFound
	case errors.Is(err, amm.ErrInsufficientLiquidity),
		errors.Is(err, amm.ErrOverflow),
		errors.Is(err, valuation.ErrZeroPrice),
		errors.Is(err, reward.ErrNotInitialized):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
