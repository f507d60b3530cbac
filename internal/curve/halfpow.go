package curve

import (
	sdkmath "cosmossdk.io/math"
)

var ln2 = sdkmath.LegacyMustNewDecFromStr("0.693147180559945309")

// halfPowZeroCutoff: beyond this exponent 0.5^x underflows 18 decimals.
const halfPowZeroCutoff = 60

// HalfPow computes 0.5^x for x >= 0. The integer part is exact halving; the
// fractional part expands exp(-ln2 * frac) as a Taylor series, which converges
// in a handful of terms for frac in [0, 1).
func HalfPow(x sdkmath.LegacyDec) sdkmath.LegacyDec {
	if x.IsNil() || x.IsNegative() || x.IsZero() {
		return one
	}

	whole := x.TruncateInt64()
	if whole >= halfPowZeroCutoff {
		return sdkmath.LegacyZeroDec()
	}
	frac := x.Sub(sdkmath.LegacyNewDec(whole))

	res := one.Quo(two.Power(uint64(whole)))
	if frac.IsZero() {
		return res
	}

	t := frac.Mul(ln2).Neg()
	term := one
	sum := one
	for k := int64(1); k <= 24; k++ {
		term = term.Mul(t).QuoInt64(k)
		if term.IsZero() {
			break
		}
		sum = sum.Add(term)
	}

	return res.Mul(sum)
}
