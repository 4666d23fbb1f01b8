package model

import "encoding/json"

// Ledger event names.
const (
	EventRouteAdded     = "RouteAdded"
	EventRouteActivated = "RouteActivated"
	EventRewardAdded    = "RewardAdded"
	EventStaked         = "Staked"
	EventWithdrawn      = "Withdrawn"
	EventRewardPaid     = "RewardPaid"
	EventSwap           = "Swap"
	EventLiquidity      = "LiquidityAdded"
	EventReverted       = "Reverted"
)

// LedgerEvent is one journaled state transition of the engine.
type LedgerEvent struct {
	RunID     string          `json:"run_id"`
	Seq       uint64          `json:"seq"`
	Timestamp uint64          `json:"timestamp"`
	Op        string          `json:"op"`
	EventName string          `json:"event_name"`
	Caller    string          `json:"caller,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON ensures LedgerEvent is encoded with stable field names.
func (e LedgerEvent) MarshalJSON() ([]byte, error) {
	type Alias LedgerEvent
	return json.Marshal(Alias(e))
}

// UnmarshalJSON decodes a LedgerEvent from JSON.
func (e *LedgerEvent) UnmarshalJSON(data []byte) error {
	type Alias LedgerEvent
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = LedgerEvent(a)
	return nil
}

// StakedData is the payload of a Staked event.
type StakedData struct {
	User       string `json:"user"`
	Pair       string `json:"pair"`
	LPAmount   string `json:"lp_amount"`
	StakeValue string `json:"stake_value"`
}

// WithdrawnData is the payload of a Withdrawn event.
type WithdrawnData struct {
	User       string `json:"user"`
	Pair       string `json:"pair"`
	LPAmount   string `json:"lp_amount"`
	StakeValue string `json:"stake_value"`
}

// RewardPaidData is the payload of a RewardPaid event.
type RewardPaidData struct {
	User   string `json:"user"`
	Reward string `json:"reward"`
}

// RewardAddedData is the payload of a RewardAdded event.
type RewardAddedData struct {
	Reward       string `json:"reward"`
	RewardRate   string `json:"reward_rate"`
	PeriodFinish uint64 `json:"period_finish"`
}

// RouteData is the payload of RouteAdded and RouteActivated events.
type RouteData struct {
	Path   []string `json:"path"`
	Active bool     `json:"active"`
}

// SwapData is the payload of a Swap event.
type SwapData struct {
	Trader    string   `json:"trader"`
	Path      []string `json:"path"`
	AmountIn  string   `json:"amount_in"`
	AmountOut string   `json:"amount_out"`
}

// LiquidityData is the payload of a LiquidityAdded event.
type LiquidityData struct {
	Provider  string `json:"provider"`
	Pair      string `json:"pair"`
	AmountA   string `json:"amount_a"`
	AmountB   string `json:"amount_b"`
	Liquidity string `json:"liquidity"`
}
