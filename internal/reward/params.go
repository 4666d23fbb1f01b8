package reward

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lpFarm/internal/auth"
	"lpFarm/internal/token"
)

var (
	ErrNotInitialized            = errors.New("pool not initialized")
	ErrAlreadyInitialized        = errors.New("pool already initialized")
	ErrInvalidParams             = errors.New("invalid pool params")
	ErrDegenerateRewardRate      = errors.New("reward rate is zero")
	ErrRewardTooHigh             = errors.New("provided reward too high")
	ErrBelowMinimumStake         = errors.New("stake value is zero")
	ErrCollateralExceedsValue    = errors.New("collateral exceeds lp value")
	ErrPairMismatch              = errors.New("position open in another pair")
	ErrWithdrawBlocked           = errors.New("withdraw locked")
	ErrWithdrawExceedsStake      = errors.New("withdraw exceeds stake")
	ErrZeroAmount                = errors.New("cannot withdraw 0")
	ErrNoStake                   = errors.New("no stake")
	ErrOverflow                  = errors.New("arithmetic overflow")
)

// LockPolicy decides how deposit time is tracked for lock-up.
type LockPolicy int

const (
	// LockFromFirstDeposit fixes the deposit time at the first stake; top-ups merge into one lot.
	LockFromFirstDeposit LockPolicy = iota
	// LockPerDeposit keeps every stake as its own lot with its own unlock time.
	LockPerDeposit
)

func (p LockPolicy) String() string {
	switch p {
	case LockFromFirstDeposit:
		return "first-deposit"
	case LockPerDeposit:
		return "per-deposit"
	default:
		return fmt.Sprintf("LockPolicy(%d)", int(p))
	}
}

// ParseLockPolicy accepts the names printed by LockPolicy.String.
func ParseLockPolicy(s string) (LockPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first-deposit", "first":
		return LockFromFirstDeposit, nil
	case "per-deposit", "lots":
		return LockPerDeposit, nil
	default:
		return 0, fmt.Errorf("unknown lock policy %q", s)
	}
}

// Clock supplies the current block time in seconds.
type Clock interface {
	Now() uint64
}

// Tokens resolves LP tokens by pair address.
type Tokens interface {
	Token(address common.Address) (token.Token, error)
}

// Valuer prices LP deposits. *valuation.Converter satisfies it.
type Valuer interface {
	StakeValueForLP(ctx context.Context, pair common.Address, lpAmount *uint256.Int) (*uint256.Int, error)
	LPValueInStable(ctx context.Context, pair common.Address, lpAmount *uint256.Int) (*uint256.Int, error)
}

// Emitter receives ledger events as they happen.
type Emitter interface {
	Emit(eventName string, data interface{})
}

// Params configures a pool at Initialize.
type Params struct {
	Owner           *auth.Capability
	Custody         common.Address
	RewardToken     token.Token
	LPTokens        Tokens
	Valuer          Valuer
	Clock           Clock
	RewardsDuration uint64
	LockupDuration  uint64
	LockPolicy      LockPolicy
	Events          Emitter
}

func (p Params) validate() error {
	switch {
	case p.Owner == nil:
		return fmt.Errorf("%w: owner is nil", ErrInvalidParams)
	case p.Custody == (common.Address{}):
		return fmt.Errorf("%w: custody address is zero", ErrInvalidParams)
	case p.RewardToken == nil:
		return fmt.Errorf("%w: reward token is nil", ErrInvalidParams)
	case p.LPTokens == nil:
		return fmt.Errorf("%w: lp tokens are nil", ErrInvalidParams)
	case p.Valuer == nil:
		return fmt.Errorf("%w: valuer is nil", ErrInvalidParams)
	case p.Clock == nil:
		return fmt.Errorf("%w: clock is nil", ErrInvalidParams)
	case p.RewardsDuration == 0:
		return fmt.Errorf("%w: rewards duration is zero", ErrInvalidParams)
	case p.LockPolicy != LockFromFirstDeposit && p.LockPolicy != LockPerDeposit:
		return fmt.Errorf("%w: %s", ErrInvalidParams, p.LockPolicy)
	}
	return nil
}
