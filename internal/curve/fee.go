package curve

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cosmoswap-labs/pclpool/internal/types"
)

// FeeRate returns the dynamic swap fee for internal balances xp. The rate
// blends between MidFee at perfect balance and OutFee at maximal skew:
//
//	K0  = 4*x0*x1 / (x0+x1)^2            // 1 balanced, -> 0 skewed
//	g   = fee_gamma / (fee_gamma + 1 - K0)
//	fee = g*mid_fee + (1-g)*out_fee
func FeeRate(xp [2]sdkmath.LegacyDec, params types.PoolParams) sdkmath.LegacyDec {
	sum := xp[0].Add(xp[1])
	if sum.IsZero() {
		return params.OutFee
	}

	k0 := four.Mul(xp[0]).Mul(xp[1]).Quo(sum.Mul(sum))
	g := params.FeeGamma.Quo(params.FeeGamma.Add(one).Sub(k0))

	return g.Mul(params.MidFee).Add(one.Sub(g).Mul(params.OutFee))
}

// ProvideFee charges the swap fee on the half of a deposit that diverges from
// a perfectly balanced contribution. Balanced deposits pay nothing; a fully
// one-sided deposit pays half the swap fee on its whole size.
func ProvideFee(deposits, xp [2]sdkmath.LegacyDec, params types.PoolParams) sdkmath.LegacyDec {
	sum := deposits[0].Add(deposits[1])
	if sum.IsZero() {
		return sdkmath.LegacyZeroDec()
	}

	imbalance := deposits[0].Sub(deposits[1]).Abs().Quo(two.Mul(sum))
	return FeeRate(xp, params).Mul(imbalance)
}
