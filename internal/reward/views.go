package reward

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lpFarm/internal/model"
)

// Lot is a read-only view of one locked deposit.
type Lot struct {
	LPAmount    *uint256.Int
	StakeValue  *uint256.Int
	DepositTime uint64
	UnlockTime  uint64
}

// Position is a read-only view of a user's stake.
type Position struct {
	User       common.Address
	Pair       common.Address
	LPAmount   *uint256.Int
	StakeValue *uint256.Int
	Lots       []Lot
}

func (p *Pool) Earned(user common.Address) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.st.accounts[user]
	if !ok {
		return new(uint256.Int), nil
	}
	perValue, err := p.rewardPerStakeValue()
	if err != nil {
		return nil, err
	}
	return earned(acct.value, perValue, acct.paid, acct.rewards)
}

// StakeOf returns the user's position; a user without a stake gets zero amounts.
func (p *Pool) StakeOf(user common.Address) Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position(user)
}

func (p *Pool) TotalStakeValue() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.totalValue.Clone()
}

// RewardPerStakeValue is the accumulator as it would be settled now.
func (p *Pool) RewardPerStakeValue() (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rewardPerStakeValue()
}

func (p *Pool) LastTimeRewardApplicable() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.st.initialized {
		return 0
	}
	return lastTimeApplicable(p.params.Clock.Now(), p.st.finish)
}

// RewardForDuration is the amount the current rate distributes over a full period.
func (p *Pool) RewardForDuration() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Mul(p.st.rate, uint256.NewInt(p.params.RewardsDuration))
}

func (p *Pool) RewardRate() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.rate.Clone()
}

func (p *Pool) PeriodFinish() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.finish
}

// UnlockTime is the earliest time Exit succeeds for user.
func (p *Pool) UnlockTime(user common.Address) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.st.accounts[user]
	if !ok || acct.lp.IsZero() {
		return 0, ErrNoStake
	}
	return p.unlockTime(acct), nil
}

// UnlockedLP is the amount Withdraw accepts right now.
func (p *Pool) UnlockedLP(user common.Address) *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.st.accounts[user]
	if !ok || !p.st.initialized {
		return new(uint256.Int)
	}
	return p.unlockedLP(acct, p.params.Clock.Now())
}

// StakedValuesInStable values the user's LP principal and the whole pool's
// principal in the stable asset at current reserves.
func (p *Pool) StakedValuesInStable(ctx context.Context, user common.Address) (*uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.st.initialized {
		return nil, nil, ErrNotInitialized
	}
	userValue := new(uint256.Int)
	poolValue := new(uint256.Int)
	for addr, acct := range p.st.accounts {
		if acct.lp.IsZero() {
			continue
		}
		value, err := p.params.Valuer.LPValueInStable(ctx, acct.pair, acct.lp)
		if err != nil {
			return nil, nil, fmt.Errorf("value %s: %w", addr.Hex(), err)
		}
		poolValue.Add(poolValue, value)
		if addr == user {
			userValue = value
		}
	}
	return userValue, poolValue, nil
}

// State snapshots the global accumulator.
func (p *Pool) State() model.RewardState {
	p.mu.Lock()
	defer p.mu.Unlock()

	stakers := 0
	for _, acct := range p.st.accounts {
		if !acct.lp.IsZero() {
			stakers++
		}
	}
	st := model.RewardState{
		TotalStakeValue:     p.st.totalValue.Dec(),
		RewardRate:          p.st.rate.Dec(),
		PeriodFinish:        p.st.finish,
		LastUpdateTime:      p.st.lastUpdate,
		RewardPerStakeValue: p.st.stored.Dec(),
		RewardsDuration:     p.params.RewardsDuration,
		LockupDuration:      p.params.LockupDuration,
		LockPolicy:          p.params.LockPolicy.String(),
		TotalNotified:       p.st.totalNotified.Dec(),
		TotalPaid:           p.st.totalPaid.Dec(),
		Stakers:             stakers,
	}
	if p.params.RewardToken != nil {
		st.RewardToken = p.params.RewardToken.Address().Hex()
	}
	return st
}

// Positions lists every account with a stake or unclaimed rewards, ordered by address.
func (p *Pool) Positions() ([]model.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	perValue, err := p.rewardPerStakeValue()
	if err != nil {
		return nil, err
	}
	users := make([]common.Address, 0, len(p.st.accounts))
	for addr := range p.st.accounts {
		users = append(users, addr)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Cmp(users[j]) < 0 })

	out := make([]model.Position, 0, len(users))
	for _, addr := range users {
		acct := p.st.accounts[addr]
		owed, err := earned(acct.value, perValue, acct.paid, acct.rewards)
		if err != nil {
			return nil, err
		}
		if acct.lp.IsZero() && owed.IsZero() {
			continue
		}
		pos := model.Position{
			User:           addr.Hex(),
			Pair:           acct.pair.Hex(),
			LPAmount:       acct.lp.Dec(),
			StakeValue:     acct.value.Dec(),
			RewardPerPaid:  acct.paid.Dec(),
			RewardsAccrued: acct.rewards.Dec(),
			Earned:         owed.Dec(),
			Lots:           make([]model.Lot, 0, len(acct.lots)),
		}
		for _, l := range acct.lots {
			pos.Lots = append(pos.Lots, model.Lot{
				LPAmount:    l.lp.Dec(),
				StakeValue:  l.value.Dec(),
				DepositTime: l.deposit,
				UnlockTime:  l.deposit + p.params.LockupDuration,
			})
		}
		out = append(out, pos)
	}
	return out, nil
}

func (p *Pool) rewardPerStakeValue() (*uint256.Int, error) {
	if !p.st.initialized {
		return p.st.stored.Clone(), nil
	}
	return accrue(p.st.stored, p.params.Clock.Now(), p.st.lastUpdate, p.st.finish, p.st.rate, p.st.totalValue)
}

func (p *Pool) position(user common.Address) Position {
	pos := Position{User: user, LPAmount: new(uint256.Int), StakeValue: new(uint256.Int)}
	acct, ok := p.st.accounts[user]
	if !ok {
		return pos
	}
	pos.Pair = acct.pair
	pos.LPAmount = acct.lp.Clone()
	pos.StakeValue = acct.value.Clone()
	for _, l := range acct.lots {
		pos.Lots = append(pos.Lots, Lot{
			LPAmount:    l.lp.Clone(),
			StakeValue:  l.value.Clone(),
			DepositTime: l.deposit,
			UnlockTime:  l.deposit + p.params.LockupDuration,
		})
	}
	return pos
}
