package simulate

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"lpFarm/internal/config"
)

// Step operations.
const (
	OpNotify       = "notify"
	OpStake        = "stake"
	OpWithdraw     = "withdraw"
	OpClaim        = "claim"
	OpExit         = "exit"
	OpSwap         = "swap"
	OpAddLiquidity = "add-liquidity"
	OpAdvance      = "advance"
	OpAddRoute     = "add-route"
	OpSetActive    = "set-active"
)

// maxExponent is the largest power of ten below 2^256.
const maxExponent = 77

// Scenario describes a deployment and the calls made against it.
type Scenario struct {
	Start           uint64            `yaml:"start"`
	FeeBps          uint64            `yaml:"fee_bps"`
	Stable          string            `yaml:"stable"`
	RewardToken     string            `yaml:"reward_token"`
	RewardsDuration Seconds           `yaml:"rewards_duration"`
	Lockup          Seconds           `yaml:"lockup"`
	LockPolicy      string            `yaml:"lock_policy"`
	Deployer        string            `yaml:"deployer"`
	Custody         string            `yaml:"custody"`
	OwnerMint       map[string]Amount `yaml:"owner_mint"`
	Tokens          []TokenSpec       `yaml:"tokens"`
	Pools           []PoolSpec        `yaml:"pools"`
	Routes          [][]string        `yaml:"routes"`
	Accounts        []AccountSpec     `yaml:"accounts"`
	Steps           []Step            `yaml:"steps"`
}

type TokenSpec struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

// PoolSpec is a pair seeded by the deployer.
type PoolSpec struct {
	Name    string `yaml:"name"`
	A       string `yaml:"a"`
	B       string `yaml:"b"`
	AmountA Amount `yaml:"amount_a"`
	AmountB Amount `yaml:"amount_b"`
}

// AccountSpec funds a named account. LP is transferred out of the deployer's
// seed liquidity, keyed by pool name.
type AccountSpec struct {
	Name    string            `yaml:"name"`
	Address string            `yaml:"address"`
	Mint    map[string]Amount `yaml:"mint"`
	LP      map[string]Amount `yaml:"lp"`
}

type Step struct {
	Op          string   `yaml:"op"`
	User        string   `yaml:"user"`
	Pool        string   `yaml:"pool"`
	LP          Amount   `yaml:"lp"`
	Collateral  Amount   `yaml:"collateral"`
	Amount      Amount   `yaml:"amount"`
	AmountB     Amount   `yaml:"amount_b"`
	Path        []string `yaml:"path"`
	Active      *bool    `yaml:"active"`
	Seconds     Seconds  `yaml:"seconds"`
	ExpectError string   `yaml:"expect_error"`
}

// Seconds is a duration in whole seconds, written as an integer or a Go duration.
type Seconds uint64

func (s *Seconds) UnmarshalYAML(value *yaml.Node) error {
	v, err := config.ParseSeconds(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = Seconds(v)
	return nil
}

// Amount is a raw token amount. Underscores are ignored and a trailing
// exponent is allowed, so "604_800e18" is valid.
type Amount string

func (a *Amount) UnmarshalYAML(value *yaml.Node) error {
	*a = Amount(value.Value)
	if _, err := a.Int(); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	return nil
}

func (a Amount) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}

// Int parses the amount. An empty amount is zero.
func (a Amount) Int() (*uint256.Int, error) {
	s := strings.ReplaceAll(strings.TrimSpace(string(a)), "_", "")
	if s == "" {
		return new(uint256.Int), nil
	}
	mantissa, exp := s, uint64(0)
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		var err error
		mantissa = s[:i]
		exp, err = strconv.ParseUint(s[i+1:], 10, 8)
		if err != nil || exp > maxExponent {
			return nil, fmt.Errorf("amount %q: bad exponent", string(a))
		}
	}
	v, err := uint256.FromDecimal(mantissa)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", string(a), err)
	}
	if exp == 0 {
		return v, nil
	}
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(exp))
	out, overflow := new(uint256.Int).MulOverflow(v, scale)
	if overflow {
		return nil, fmt.Errorf("amount %q overflows", string(a))
	}
	return out, nil
}

// Load reads a scenario file.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario, rejecting unknown fields.
func Parse(data []byte) (Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Stable == "" || sc.RewardToken == "" {
		return Scenario{}, fmt.Errorf("parse scenario: stable and reward_token are required")
	}
	if sc.RewardsDuration == 0 {
		return Scenario{}, fmt.Errorf("parse scenario: rewards_duration is required")
	}
	return sc, nil
}

// Apply replaces scenario parameters with the ones set in o.
func (s *Scenario) Apply(o config.Overrides) {
	if o.RewardsDuration > 0 {
		s.RewardsDuration = Seconds(o.RewardsDuration)
	}
	if o.Lockup > 0 {
		s.Lockup = Seconds(o.Lockup)
	}
	if o.LockPolicy != "" {
		s.LockPolicy = o.LockPolicy
	}
	if o.FeeBps != nil {
		s.FeeBps = *o.FeeBps
	}
}
