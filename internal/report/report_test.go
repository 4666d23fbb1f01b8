package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lpFarm/internal/model"
)

var alice = common.HexToAddress("0xa11ce00000000000000000000000000000a11ce0")

type fakeSource struct {
	values map[common.Address]*uint256.Int
	total  *uint256.Int
}

func (f *fakeSource) State() model.RewardState {
	return model.RewardState{
		RewardToken:     "0x3000000000000000000000000000000000000003",
		TotalStakeValue: "19998100180500902504512",
		RewardRate:      "1000000000000000000",
		PeriodFinish:    1_604_800,
		RewardsDuration: 604_800,
		TotalNotified:   "604800000000000000000000",
		TotalPaid:       "0",
		Stakers:         1,
	}
}

func (f *fakeSource) RewardRate() *uint256.Int {
	return uint256.NewInt(1_000_000_000_000_000_000)
}

func (f *fakeSource) Positions() ([]model.Position, error) {
	return []model.Position{{
		User:       alice.Hex(),
		Pair:       "0x0000000000000000000000000000000000000abc",
		LPAmount:   "1000000000000000000",
		StakeValue: "19998100180500902504512",
		Earned:     "5000000000000000000",
		Lots:       []model.Lot{{LPAmount: "1000000000000000000"}},
	}}, nil
}

func (f *fakeSource) StakedValuesInStable(_ context.Context, user common.Address) (*uint256.Int, *uint256.Int, error) {
	v, ok := f.values[user]
	if !ok {
		v = new(uint256.Int)
	}
	return v, f.total, nil
}

type fixedPrice uint64

func (p fixedPrice) RewardUnitPrice(context.Context) (*uint256.Int, error) {
	if p == 0 {
		return nil, errors.New("no route")
	}
	return uint256.NewInt(uint64(p)), nil
}

var units = Units{RewardSymbol: "ESW", RewardDecimals: 18, StableSymbol: "USDT", StableDecimals: 6}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		value    *uint256.Int
		decimals uint8
		want     string
	}{
		{nil, 18, "0"},
		{uint256.NewInt(199999), 6, "0.199999"},
		{uint256.NewInt(3999600038), 6, "3999.600038"},
		{uint256.NewInt(42), 0, "42"},
		{uint256.NewInt(5), 8, "0.00000005"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.value, tc.decimals); got != tc.want {
			t.Fatalf("FormatAmount(%v, %d) = %s, want %s", tc.value, tc.decimals, got, tc.want)
		}
	}
}

func TestAPR(t *testing.T) {
	apr, ok := APR(uint256.NewInt(1_000_000_000_000_000_000), uint256.NewInt(199999), 18, uint256.NewInt(3999600038))
	if !ok {
		t.Fatalf("expected apr")
	}
	if got := apr.Shift(2).StringFixed(2); got != "157694.98" {
		t.Fatalf("unexpected apr %s", got)
	}
	if _, ok := APR(new(uint256.Int), uint256.NewInt(1), 18, uint256.NewInt(1)); ok {
		t.Fatalf("zero rate should have no apr")
	}
	if _, ok := APR(uint256.NewInt(1), uint256.NewInt(1), 18, new(uint256.Int)); ok {
		t.Fatalf("empty pool should have no apr")
	}
}

func TestBuild(t *testing.T) {
	value := uint256.NewInt(3999600038)
	src := &fakeSource{values: map[common.Address]*uint256.Int{alice: value}, total: value}

	r, err := Build(context.Background(), src, fixedPrice(199999), units)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if r.PoolValueStable != "3999.600038" || r.RewardUnitPrice != "0.199999" {
		t.Fatalf("unexpected valuation %s / %s", r.PoolValueStable, r.RewardUnitPrice)
	}
	if r.RewardForDuration != "604800.000000000000000000" {
		t.Fatalf("unexpected reward for duration %s", r.RewardForDuration)
	}
	if r.APR != "157694.98%" {
		t.Fatalf("unexpected apr %s", r.APR)
	}
	if len(r.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(r.Positions))
	}
	p := r.Positions[0]
	if p.LP != "1.000000000000000000" || p.Earned != "5.000000000000000000" || p.Share != "1.0000" || p.Lots != 1 {
		t.Fatalf("unexpected position %+v", p)
	}

	var buf bytes.Buffer
	if err := WriteText(&buf, r); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "157694.98%") || !strings.Contains(buf.String(), alice.Hex()) {
		t.Fatalf("unexpected text report:\n%s", buf.String())
	}
}

func TestBuildPropagatesPriceError(t *testing.T) {
	src := &fakeSource{total: new(uint256.Int)}
	if _, err := Build(context.Background(), src, fixedPrice(0), units); err == nil {
		t.Fatalf("expected price error")
	}
}
