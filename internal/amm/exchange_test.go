package amm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"lpFarm/internal/amm"
	"lpFarm/internal/amm/ammtest"
)

func TestReferenceMint(t *testing.T) {
	ref, err := ammtest.NewReference(nil)
	require.NoError(t, err)

	ctx := context.Background()
	res, err := ref.Exchange.GetReserves(ctx, ref.Pairs["wbtc-weth"])
	require.NoError(t, err)
	require.Equal(t, ammtest.WETH, res.Token0)
	require.Equal(t, ammtest.WBTC, res.Token1)
	require.Equal(t, "10000000000000000001000", res.TotalSupply.Dec())

	lp := ref.Ledger(ref.Pairs["wbtc-weth"])
	require.Equal(t, "10000000000000000000000", lp.BalanceOf(ammtest.Deployer).Dec())
	require.Equal(t, "1000", lp.BalanceOf(ref.Pairs["wbtc-weth"]).Dec())
}

func TestQuoteMultiHop(t *testing.T) {
	ref, err := ammtest.NewReference(nil)
	require.NoError(t, err)
	ctx := context.Background()

	cases := []struct {
		path []common.Address
		in   string
		want string
	}{
		{[]common.Address{ammtest.WETH, ammtest.USDT}, "1000000000000000000", "1999800019"},
		{[]common.Address{ammtest.ESW, ammtest.WETH, ammtest.USDT}, "1000000000000000000", "199999"},
		{[]common.Address{ammtest.WBTC, ammtest.WETH, ammtest.USDT}, "100000000", "196078431372"},
		{[]common.Address{ammtest.UNI, ammtest.WBTC, ammtest.WETH, ammtest.USDT}, "1000000000000000000", "79997360"},
		{[]common.Address{ammtest.WMATIC, ammtest.ESW, ammtest.WETH, ammtest.USDT}, "1000000000000000000", "4999497"},
	}
	for _, tc := range cases {
		got, err := ref.Exchange.QuoteMultiHop(ctx, ammtest.Amount(tc.in), tc.path)
		require.NoError(t, err)
		require.Equal(t, tc.want, got.Dec())

		in, err := ref.Exchange.QuoteMultiHopIn(ctx, got, tc.path)
		require.NoError(t, err)
		require.False(t, in.Gt(ammtest.Amount(tc.in)), "reverse quote exceeds the forward input")
		out, err := ref.Exchange.QuoteMultiHop(ctx, in, tc.path)
		require.NoError(t, err)
		require.False(t, out.Lt(got), "reverse quote does not reach the output")
	}
}

func TestQuoteMissingPair(t *testing.T) {
	ref, err := ammtest.NewReference(nil)
	require.NoError(t, err)

	_, err = ref.Exchange.QuoteMultiHop(context.Background(), uint256.NewInt(1), []common.Address{ammtest.DAI, ammtest.USDT})
	if !errors.Is(err, amm.ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
	_, err = ref.Exchange.QuoteMultiHop(context.Background(), uint256.NewInt(1), []common.Address{ammtest.DAI})
	if !errors.Is(err, amm.ErrInvalidPath) {
		t.Fatalf("expected invalid path, got %v", err)
	}
}

func TestSwapMovesTokensAcrossHops(t *testing.T) {
	ref, err := ammtest.NewReference(nil)
	require.NoError(t, err)
	ctx := context.Background()
	trader := common.HexToAddress("0xabc0000000000000000000000000000000000abc")
	path := []common.Address{ammtest.ESW, ammtest.WETH, ammtest.USDT}

	require.NoError(t, ref.Mint(ammtest.ESW, trader, ammtest.Amount("1000000000000000000")))
	quoted, err := ref.Exchange.QuoteMultiHop(ctx, ammtest.Amount("1000000000000000000"), path)
	require.NoError(t, err)

	got, err := ref.Exchange.Swap(trader, ammtest.Amount("1000000000000000000"), path)
	require.NoError(t, err)
	require.Equal(t, quoted.Dec(), got.Dec())
	require.Equal(t, got.Dec(), ref.Ledger(ammtest.USDT).BalanceOf(trader).Dec())
	require.True(t, ref.Ledger(ammtest.ESW).BalanceOf(trader).IsZero())

	res, err := ref.Exchange.GetReserves(ctx, ref.Pairs["weth-usdt"])
	require.NoError(t, err)
	require.Equal(t, ref.Ledger(ammtest.USDT).BalanceOf(ref.Pairs["weth-usdt"]).Dec(), res.Reserve1.Dec())
	require.Equal(t, ref.Ledger(ammtest.WETH).BalanceOf(ref.Pairs["weth-usdt"]).Dec(), res.Reserve0.Dec())
}

func TestExchangeCheckpointRestores(t *testing.T) {
	ref, err := ammtest.NewReference(nil)
	require.NoError(t, err)
	ctx := context.Background()
	trader := common.HexToAddress("0xabc0000000000000000000000000000000000abc")
	pair := ref.Pairs["weth-usdt"]

	before, err := ref.Exchange.GetReserves(ctx, pair)
	require.NoError(t, err)

	restoreTokens := ref.Tokens.Checkpoint()
	restoreExchange := ref.Exchange.Checkpoint()
	require.NoError(t, ref.Mint(ammtest.WETH, trader, ammtest.Amount("5000000000000000000")))
	_, err = ref.Exchange.Swap(trader, ammtest.Amount("5000000000000000000"), []common.Address{ammtest.WETH, ammtest.USDT})
	require.NoError(t, err)
	restoreExchange()
	restoreTokens()

	after, err := ref.Exchange.GetReserves(ctx, pair)
	require.NoError(t, err)
	require.Equal(t, before.Reserve0.Dec(), after.Reserve0.Dec())
	require.Equal(t, before.Reserve1.Dec(), after.Reserve1.Dec())
	require.True(t, ref.Ledger(ammtest.USDT).BalanceOf(trader).IsZero())
}
