// Package report renders reward pool snapshots for people: amounts scaled by
// token decimals, stable valuations and the current reward APR.
package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lpFarm/internal/model"
)

// lpDecimals is fixed for pair tokens.
const lpDecimals = 18

// Source is the pool surface a report reads. *reward.Pool satisfies it.
type Source interface {
	State() model.RewardState
	RewardRate() *uint256.Int
	Positions() ([]model.Position, error)
	StakedValuesInStable(ctx context.Context, user common.Address) (*uint256.Int, *uint256.Int, error)
}

// Pricer quotes the reward token. *valuation.Converter satisfies it.
type Pricer interface {
	RewardUnitPrice(ctx context.Context) (*uint256.Int, error)
}

// Units names the reward and stable assets for display.
type Units struct {
	RewardSymbol   string
	RewardDecimals uint8
	StableSymbol   string
	StableDecimals uint8
}

type Position struct {
	User        string `json:"user"`
	Pair        string `json:"pair"`
	LP          string `json:"lp"`
	StakeValue  string `json:"stake_value"`
	ValueStable string `json:"value_stable"`
	Earned      string `json:"earned"`
	Share       string `json:"share,omitempty"`
	Lots        int    `json:"lots"`
}

type Pool struct {
	RunID             string     `json:"run_id,omitempty"`
	Timestamp         uint64     `json:"timestamp"`
	RewardToken       string     `json:"reward_token"`
	RewardSymbol      string     `json:"reward_symbol,omitempty"`
	StableSymbol      string     `json:"stable_symbol,omitempty"`
	RewardRate        string     `json:"reward_rate"`
	RewardForDuration string     `json:"reward_for_duration"`
	PeriodFinish      uint64     `json:"period_finish"`
	TotalStakeValue   string     `json:"total_stake_value"`
	PoolValueStable   string     `json:"pool_value_stable"`
	RewardUnitPrice   string     `json:"reward_unit_price"`
	APR               string     `json:"apr,omitempty"`
	TotalNotified     string     `json:"total_notified"`
	TotalPaid         string     `json:"total_paid"`
	Stakers           int        `json:"stakers"`
	Positions         []Position `json:"positions"`
}

// Build snapshots src and prices it through pricer.
func Build(ctx context.Context, src Source, pricer Pricer, units Units) (Pool, error) {
	st := src.State()
	positions, err := src.Positions()
	if err != nil {
		return Pool{}, fmt.Errorf("positions: %w", err)
	}
	_, poolValue, err := src.StakedValuesInStable(ctx, common.Address{})
	if err != nil {
		return Pool{}, fmt.Errorf("pool value: %w", err)
	}
	price, err := pricer.RewardUnitPrice(ctx)
	if err != nil {
		return Pool{}, err
	}

	rate := src.RewardRate()
	forDuration := new(uint256.Int).Mul(rate, uint256.NewInt(st.RewardsDuration))
	out := Pool{
		RewardToken:       st.RewardToken,
		RewardSymbol:      units.RewardSymbol,
		StableSymbol:      units.StableSymbol,
		RewardRate:        FormatAmount(rate, units.RewardDecimals),
		RewardForDuration: FormatAmount(forDuration, units.RewardDecimals),
		PeriodFinish:      st.PeriodFinish,
		TotalStakeValue:   formatDecimalString(st.TotalStakeValue, units.RewardDecimals),
		PoolValueStable:   FormatAmount(poolValue, units.StableDecimals),
		RewardUnitPrice:   FormatAmount(price, units.StableDecimals),
		TotalNotified:     formatDecimalString(st.TotalNotified, units.RewardDecimals),
		TotalPaid:         formatDecimalString(st.TotalPaid, units.RewardDecimals),
		Stakers:           st.Stakers,
		Positions:         make([]Position, 0, len(positions)),
	}
	if apr, ok := APR(rate, price, units.RewardDecimals, poolValue); ok {
		out.APR = apr.Shift(2).StringFixed(2) + "%"
	}

	for _, p := range positions {
		userValue, _, err := src.StakedValuesInStable(ctx, common.HexToAddress(p.User))
		if err != nil {
			return Pool{}, fmt.Errorf("value %s: %w", p.User, err)
		}
		out.Positions = append(out.Positions, Position{
			User:        p.User,
			Pair:        p.Pair,
			LP:          formatDecimalString(p.LPAmount, lpDecimals),
			StakeValue:  formatDecimalString(p.StakeValue, units.RewardDecimals),
			ValueStable: FormatAmount(userValue, units.StableDecimals),
			Earned:      formatDecimalString(p.Earned, units.RewardDecimals),
			Share:       share(userValue, poolValue),
			Lots:        len(p.Lots),
		})
	}
	return out, nil
}

// WriteText prints the report as aligned columns.
func WriteText(w io.Writer, r Pool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "reward rate\t%s %s/s\n", r.RewardRate, r.RewardSymbol)
	fmt.Fprintf(tw, "reward for duration\t%s %s\n", r.RewardForDuration, r.RewardSymbol)
	fmt.Fprintf(tw, "period finish\t%d\n", r.PeriodFinish)
	fmt.Fprintf(tw, "reward price\t%s %s\n", r.RewardUnitPrice, r.StableSymbol)
	fmt.Fprintf(tw, "pool value\t%s %s\n", r.PoolValueStable, r.StableSymbol)
	fmt.Fprintf(tw, "total stake value\t%s %s\n", r.TotalStakeValue, r.RewardSymbol)
	if r.APR != "" {
		fmt.Fprintf(tw, "apr\t%s\n", r.APR)
	}
	fmt.Fprintf(tw, "notified / paid\t%s / %s\n", r.TotalNotified, r.TotalPaid)
	fmt.Fprintf(tw, "stakers\t%d\n", r.Stakers)
	if len(r.Positions) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "user\tlp\tvalue\tshare\tearned")
		for _, p := range r.Positions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.User, p.LP, p.ValueStable, p.Share, p.Earned)
		}
	}
	return tw.Flush()
}
