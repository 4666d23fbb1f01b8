package reward

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"lpFarm/internal/auth"
	"lpFarm/internal/model"
	"lpFarm/internal/token"
)

type lot struct {
	lp      *uint256.Int
	value   *uint256.Int
	deposit uint64
}

type account struct {
	pair    common.Address
	lp      *uint256.Int
	value   *uint256.Int
	lots    []lot
	paid    *uint256.Int
	rewards *uint256.Int
}

func newAccount() *account {
	return &account{
		lp:      new(uint256.Int),
		value:   new(uint256.Int),
		paid:    new(uint256.Int),
		rewards: new(uint256.Int),
	}
}

func (a *account) clone() *account {
	cp := &account{
		pair:    a.pair,
		lp:      a.lp.Clone(),
		value:   a.value.Clone(),
		paid:    a.paid.Clone(),
		rewards: a.rewards.Clone(),
		lots:    make([]lot, len(a.lots)),
	}
	for i, l := range a.lots {
		cp.lots[i] = lot{lp: l.lp.Clone(), value: l.value.Clone(), deposit: l.deposit}
	}
	return cp
}

type state struct {
	initialized   bool
	totalValue    *uint256.Int
	rate          *uint256.Int
	finish        uint64
	lastUpdate    uint64
	stored        *uint256.Int
	totalNotified *uint256.Int
	totalPaid     *uint256.Int
	accounts      map[common.Address]*account
}

func (s *state) clone() state {
	cp := *s
	cp.totalValue = s.totalValue.Clone()
	cp.rate = s.rate.Clone()
	cp.stored = s.stored.Clone()
	cp.totalNotified = s.totalNotified.Clone()
	cp.totalPaid = s.totalPaid.Clone()
	cp.accounts = make(map[common.Address]*account, len(s.accounts))
	for k, v := range s.accounts {
		cp.accounts[k] = v.clone()
	}
	return cp
}

// Pool is the dual-sided LP staking ledger. Each stake moves LP tokens and a
// matching amount of reward token into custody; only the reward-token leg
// (the stake value) earns rewards.
type Pool struct {
	logger *zap.Logger

	mu     sync.Mutex
	params Params
	st     state
}

// NewPool returns an uninitialized pool.
func NewPool(logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		logger: logger,
		st: state{
			totalValue:    new(uint256.Int),
			rate:          new(uint256.Int),
			stored:        new(uint256.Int),
			totalNotified: new(uint256.Int),
			totalPaid:     new(uint256.Int),
			accounts:      make(map[common.Address]*account),
		},
	}
}

// Initialize binds the pool to its collaborators. It can run once.
func (p *Pool) Initialize(params Params) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.st.initialized {
		return ErrAlreadyInitialized
	}
	if err := params.validate(); err != nil {
		return err
	}
	p.params = params
	p.st.initialized = true
	p.logger.Info("pool initialized",
		zap.String("custody", params.Custody.Hex()),
		zap.String("reward_token", params.RewardToken.Symbol()),
		zap.Uint64("rewards_duration", params.RewardsDuration),
		zap.Uint64("lockup", params.LockupDuration),
		zap.Stringer("lock_policy", params.LockPolicy),
	)
	return nil
}

// NotifyRewardAmount funds a new reward period from the owner's account. Any
// reward not yet vested in the running period rolls into the new rate.
func (p *Pool) NotifyRewardAmount(caller *auth.Capability, amount *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.st.initialized {
		return ErrNotInitialized
	}
	if err := auth.Check(p.params.Owner, caller); err != nil {
		return fmt.Errorf("notify reward: %w", err)
	}
	if err := p.updateReward(common.Address{}); err != nil {
		return err
	}

	now := p.params.Clock.Now()
	duration := p.params.RewardsDuration
	rate, err := nextRate(amount, now, p.st.finish, duration, p.st.rate)
	if err != nil {
		return err
	}
	if rate.IsZero() {
		return fmt.Errorf("notify reward %s over %ds: %w", amount.Dec(), duration, ErrDegenerateRewardRate)
	}

	funder := p.params.Owner.Account()
	if err := token.CanPull(p.params.RewardToken, p.params.Custody, funder, amount); err != nil {
		return fmt.Errorf("pull reward: %w", err)
	}
	// the collateral leg shares the reward token; only the rest funds rewards
	available := new(uint256.Int).Add(p.params.RewardToken.BalanceOf(p.params.Custody), amount)
	available.Sub(available, p.st.totalValue)
	if rate.Gt(available.Div(available, uint256.NewInt(duration))) {
		return ErrRewardTooHigh
	}
	if err := p.params.RewardToken.TransferFrom(p.params.Custody, funder, p.params.Custody, amount); err != nil {
		return fmt.Errorf("pull reward: %w", err)
	}

	p.st.rate = rate
	p.st.lastUpdate = now
	p.st.finish = now + duration
	p.st.totalNotified = new(uint256.Int).Add(p.st.totalNotified, amount)

	p.logger.Info("reward added",
		zap.String("amount", amount.Dec()),
		zap.String("rate", rate.Dec()),
		zap.Uint64("period_finish", p.st.finish),
	)
	p.emit(model.EventRewardAdded, model.RewardAddedData{
		Reward:       amount.Dec(),
		RewardRate:   rate.Dec(),
		PeriodFinish: p.st.finish,
	})
	return nil
}

// Stake deposits lpAmount of pair together with expectedStakeValue of reward token.
// The reward-token leg is what earns rewards; the LP value bounds it from above.
func (p *Pool) Stake(ctx context.Context, user, pair common.Address, lpAmount, expectedStakeValue *uint256.Int) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.st.initialized {
		return nil, ErrNotInitialized
	}
	value, err := p.params.Valuer.StakeValueForLP(ctx, pair, lpAmount)
	if err != nil {
		return nil, fmt.Errorf("stake: %w", err)
	}
	if value.IsZero() || expectedStakeValue.IsZero() {
		return nil, fmt.Errorf("stake %s lp: %w", lpAmount.Dec(), ErrBelowMinimumStake)
	}
	if expectedStakeValue.Gt(value) {
		return nil, fmt.Errorf("collateral %s above lp value %s: %w", expectedStakeValue.Dec(), value.Dec(), ErrCollateralExceedsValue)
	}
	value = expectedStakeValue.Clone()

	acct := p.st.accounts[user]
	if acct != nil && !acct.lp.IsZero() && acct.pair != pair {
		return nil, fmt.Errorf("stake into %s: %w", pair.Hex(), ErrPairMismatch)
	}

	lpToken, err := p.params.LPTokens.Token(pair)
	if err != nil {
		return nil, fmt.Errorf("stake: %w", err)
	}
	custody := p.params.Custody
	if err := token.CanPull(lpToken, custody, user, lpAmount); err != nil {
		return nil, fmt.Errorf("stake lp: %w", err)
	}
	if err := token.CanPull(p.params.RewardToken, custody, user, value); err != nil {
		return nil, fmt.Errorf("stake collateral: %w", err)
	}

	if err := p.updateReward(user); err != nil {
		return nil, err
	}
	if err := lpToken.TransferFrom(custody, user, custody, lpAmount); err != nil {
		return nil, fmt.Errorf("stake lp: %w", err)
	}
	if err := p.params.RewardToken.TransferFrom(custody, user, custody, value); err != nil {
		return nil, fmt.Errorf("stake collateral: %w", err)
	}

	acct = p.account(user)
	acct.pair = pair
	acct.lp = new(uint256.Int).Add(acct.lp, lpAmount)
	acct.value = new(uint256.Int).Add(acct.value, value)
	now := p.params.Clock.Now()
	if p.params.LockPolicy == LockFromFirstDeposit && len(acct.lots) > 0 {
		acct.lots[0].lp = new(uint256.Int).Add(acct.lots[0].lp, lpAmount)
		acct.lots[0].value = new(uint256.Int).Add(acct.lots[0].value, value)
	} else {
		acct.lots = append(acct.lots, lot{lp: lpAmount.Clone(), value: value.Clone(), deposit: now})
	}
	p.st.totalValue = new(uint256.Int).Add(p.st.totalValue, value)

	p.logger.Info("staked",
		zap.String("user", user.Hex()),
		zap.String("pair", pair.Hex()),
		zap.String("lp_amount", lpAmount.Dec()),
		zap.String("stake_value", value.Dec()),
	)
	p.emit(model.EventStaked, model.StakedData{
		User:       user.Hex(),
		Pair:       pair.Hex(),
		LPAmount:   lpAmount.Dec(),
		StakeValue: value.Dec(),
	})
	return value, nil
}

// Withdraw releases lpAmount of unlocked LP, oldest lots first, together with the
// collateral attached to it.
func (p *Pool) Withdraw(ctx context.Context, user common.Address, lpAmount *uint256.Int) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.st.initialized {
		return nil, ErrNotInitialized
	}
	if acct := p.st.accounts[user]; acct == nil || acct.lp.IsZero() {
		return nil, ErrNoStake
	}
	if err := p.updateReward(user); err != nil {
		return nil, err
	}
	return p.withdraw(user, lpAmount)
}

// GetReward pays out everything the user has earned. Lock-up does not apply.
func (p *Pool) GetReward(ctx context.Context, user common.Address) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.st.initialized {
		return nil, ErrNotInitialized
	}
	if _, ok := p.st.accounts[user]; !ok {
		return new(uint256.Int), nil
	}
	if err := p.updateReward(user); err != nil {
		return nil, err
	}
	return p.payReward(user)
}

// Exit claims rewards and withdraws the whole position once every lot is unlocked.
func (p *Pool) Exit(ctx context.Context, user common.Address) (*uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.st.initialized {
		return nil, nil, ErrNotInitialized
	}
	acct := p.st.accounts[user]
	if acct == nil || acct.lp.IsZero() {
		return nil, nil, ErrNoStake
	}
	if unlock := p.unlockTime(acct); p.params.Clock.Now() < unlock {
		return nil, nil, fmt.Errorf("exit before %d: %w", unlock, ErrWithdrawBlocked)
	}
	if err := p.updateReward(user); err != nil {
		return nil, nil, err
	}
	reward, err := p.payReward(user)
	if err != nil {
		return nil, nil, err
	}
	lp := acct.lp.Clone()
	if _, err := p.withdraw(user, lp); err != nil {
		return nil, nil, err
	}
	return lp, reward, nil
}

func (p *Pool) withdraw(user common.Address, lpAmount *uint256.Int) (*uint256.Int, error) {
	if lpAmount.IsZero() {
		return nil, ErrZeroAmount
	}
	acct := p.st.accounts[user]
	if acct == nil || acct.lp.Lt(lpAmount) {
		return nil, ErrWithdrawExceedsStake
	}
	now := p.params.Clock.Now()
	if unlocked := p.unlockedLP(acct, now); unlocked.Lt(lpAmount) {
		return nil, fmt.Errorf("withdraw %s with %s unlocked: %w", lpAmount.Dec(), unlocked.Dec(), ErrWithdrawBlocked)
	}

	remaining := lpAmount.Clone()
	released := new(uint256.Int)
	lots := make([]lot, 0, len(acct.lots))
	for _, l := range acct.lots {
		switch {
		case remaining.IsZero():
			lots = append(lots, l)
		case !l.lp.Gt(remaining):
			released.Add(released, l.value)
			remaining.Sub(remaining, l.lp)
		default:
			part, overflow := new(uint256.Int).MulOverflow(l.value, remaining)
			if overflow {
				return nil, fmt.Errorf("withdraw: %w", ErrOverflow)
			}
			part.Div(part, l.lp)
			released.Add(released, part)
			lots = append(lots, lot{
				lp:      new(uint256.Int).Sub(l.lp, remaining),
				value:   new(uint256.Int).Sub(l.value, part),
				deposit: l.deposit,
			})
			remaining = new(uint256.Int)
		}
	}

	lpToken, err := p.params.LPTokens.Token(acct.pair)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	if err := lpToken.Transfer(p.params.Custody, user, lpAmount); err != nil {
		return nil, fmt.Errorf("withdraw lp: %w", err)
	}
	if !released.IsZero() {
		if err := p.params.RewardToken.Transfer(p.params.Custody, user, released); err != nil {
			return nil, fmt.Errorf("withdraw collateral: %w", err)
		}
	}

	pair := acct.pair
	acct.lots = lots
	acct.lp = new(uint256.Int).Sub(acct.lp, lpAmount)
	acct.value = new(uint256.Int).Sub(acct.value, released)
	if acct.lp.IsZero() {
		acct.pair = common.Address{}
	}
	p.st.totalValue = new(uint256.Int).Sub(p.st.totalValue, released)

	p.logger.Info("withdrawn",
		zap.String("user", user.Hex()),
		zap.String("pair", pair.Hex()),
		zap.String("lp_amount", lpAmount.Dec()),
		zap.String("stake_value", released.Dec()),
	)
	p.emit(model.EventWithdrawn, model.WithdrawnData{
		User:       user.Hex(),
		Pair:       pair.Hex(),
		LPAmount:   lpAmount.Dec(),
		StakeValue: released.Dec(),
	})
	return released, nil
}

func (p *Pool) payReward(user common.Address) (*uint256.Int, error) {
	acct := p.st.accounts[user]
	if acct == nil || acct.rewards.IsZero() {
		return new(uint256.Int), nil
	}
	reward := acct.rewards.Clone()
	if err := p.params.RewardToken.Transfer(p.params.Custody, user, reward); err != nil {
		return nil, fmt.Errorf("pay reward: %w", err)
	}
	acct.rewards = new(uint256.Int)
	p.st.totalPaid = new(uint256.Int).Add(p.st.totalPaid, reward)

	p.logger.Info("reward paid", zap.String("user", user.Hex()), zap.String("reward", reward.Dec()))
	p.emit(model.EventRewardPaid, model.RewardPaidData{User: user.Hex(), Reward: reward.Dec()})
	return reward, nil
}

// updateReward settles the accumulator up to now and, for a non-zero user,
// checkpoints what they earned so far.
func (p *Pool) updateReward(user common.Address) error {
	now := p.params.Clock.Now()
	stored, err := accrue(p.st.stored, now, p.st.lastUpdate, p.st.finish, p.st.rate, p.st.totalValue)
	if err != nil {
		return err
	}
	p.st.stored = stored
	p.st.lastUpdate = lastTimeApplicable(now, p.st.finish)

	if user == (common.Address{}) {
		return nil
	}
	acct := p.account(user)
	owed, err := earned(acct.value, stored, acct.paid, acct.rewards)
	if err != nil {
		return err
	}
	acct.rewards = owed
	acct.paid = stored.Clone()
	return nil
}

func (p *Pool) account(user common.Address) *account {
	acct, ok := p.st.accounts[user]
	if !ok {
		acct = newAccount()
		p.st.accounts[user] = acct
	}
	return acct
}

func (p *Pool) unlockTime(acct *account) uint64 {
	var latest uint64
	for _, l := range acct.lots {
		if l.deposit > latest {
			latest = l.deposit
		}
	}
	return latest + p.params.LockupDuration
}

func (p *Pool) unlockedLP(acct *account, now uint64) *uint256.Int {
	total := new(uint256.Int)
	for _, l := range acct.lots {
		if l.deposit+p.params.LockupDuration <= now {
			total.Add(total, l.lp)
		}
	}
	return total
}

func (p *Pool) emit(eventName string, data interface{}) {
	if p.params.Events != nil {
		p.params.Events.Emit(eventName, data)
	}
}

// Checkpoint captures the ledger and returns a function that restores it.
func (p *Pool) Checkpoint() func() {
	p.mu.Lock()
	saved := p.st.clone()
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		p.st = saved
		p.mu.Unlock()
	}
}
