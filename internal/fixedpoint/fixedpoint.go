package fixedpoint

import (
	"math/big"
	"sync"
)

// ScaleConfig defines fixed-point precision for one quantity kind.
type ScaleConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

var (
	// PriceConfig scales numeraire-per-asset prices. A stored price of 150
	// means 1.50 numeraire per asset unit.
	PriceConfig = ScaleConfig{DecimalPrecision: 2, Scale: 100}

	// AccrualConfig scales in-range time accumulators. One second in range
	// adds AccrualConfig.Scale to a level's accumulator, so sub-second
	// precision survives integer bookkeeping.
	AccrualConfig = ScaleConfig{DecimalPrecision: 9, Scale: 1_000_000_000}

	// BpsDenominator is the denominator for basis-point shares.
	BpsDenominator int64 = 10_000
)

// RoundingMode selects how division residue is handled.
type RoundingMode int

const (
	// RoundDown truncates toward zero. This is the system-favoring default:
	// incentive payouts and reserve carve-outs always round against the
	// recipient so the pool can never be over-distributed.
	RoundDown RoundingMode = iota
	RoundUp
)

var bigPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigPool.Get().(*big.Int)
}

// PutBig returns an intermediate value to the pool. Callers that receive a
// *big.Int from Mul must release it once they are done.
func PutBig(v *big.Int) {
	v.SetInt64(0)
	bigPool.Put(v)
}

// Mul performs a * b in wide arithmetic so int64 operands can never overflow.
func Mul(a, b int64) *big.Int {
	result := getBig()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// Div performs numerator / denominator with the given rounding, returning an
// int64. The denominator must be positive.
func Div(numerator *big.Int, denominator int64, mode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getBig()
	remainder := getBig()

	quotient.QuoRem(numerator, denom, remainder)
	result := quotient.Int64()

	if mode == RoundUp && remainder.Sign() != 0 {
		result++
	}

	PutBig(quotient)
	PutBig(remainder)

	return result
}

// DivBig performs numerator / denominator with big denominators, rounding
// down. Used for pro-rata payouts where the denominator is itself a wide
// accumulator sum.
func DivBig(numerator, denominator *big.Int) *big.Int {
	result := new(big.Int)
	result.Quo(numerator, denominator)
	return result
}

// ProRata computes amount * share / total rounded down, the payout rule for
// incentive claims. total must be non-zero.
func ProRata(amount int64, share, total *big.Int) int64 {
	numerator := getBig()
	numerator.Mul(big.NewInt(amount), share)

	quotient := new(big.Int).Quo(numerator, total)
	PutBig(numerator)

	return quotient.Int64()
}

// BpsShare computes amount * bps / 10_000 rounded down.
func BpsShare(amount, bps int64) int64 {
	numerator := Mul(amount, bps)
	result := Div(numerator, BpsDenominator, RoundDown)
	PutBig(numerator)
	return result
}

// SecondsToAccrual converts whole seconds to accumulator units.
func SecondsToAccrual(seconds int64) int64 {
	return seconds * AccrualConfig.Scale
}
