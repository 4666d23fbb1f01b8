package report

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const ratioScale = 18

var yearSeconds = decimal.NewFromInt(int64(365 * 24 * time.Hour / time.Second))

// FormatAmount renders a raw token amount with its decimals.
func FormatAmount(value *uint256.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.Dec()
	}
	return toDecimal(value).Shift(-int32(decimals)).StringFixed(int32(decimals))
}

// formatDecimalString is FormatAmount for amounts already rendered in base 10.
func formatDecimalString(raw string, decimals uint8) string {
	if raw == "" {
		return "0"
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	if decimals == 0 {
		return d.String()
	}
	return d.Shift(-int32(decimals)).StringFixed(int32(decimals))
}

// APR annualises the reward emission against the staked principal, both in the
// stable asset. rate is in reward units per second and unitPrice is the stable
// value of one whole reward token.
func APR(rate, unitPrice *uint256.Int, rewardDecimals uint8, poolValue *uint256.Int) (decimal.Decimal, bool) {
	if rate == nil || unitPrice == nil || poolValue == nil || rate.IsZero() || poolValue.IsZero() {
		return decimal.Zero, false
	}
	yearly := toDecimal(rate).Mul(yearSeconds).Mul(toDecimal(unitPrice)).Shift(-int32(rewardDecimals))
	return yearly.DivRound(toDecimal(poolValue), ratioScale), true
}

func share(part, whole *uint256.Int) string {
	if part == nil || whole == nil || whole.IsZero() {
		return ""
	}
	return toDecimal(part).DivRound(toDecimal(whole), 4).StringFixed(4)
}

func toDecimal(v *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), 0)
}
