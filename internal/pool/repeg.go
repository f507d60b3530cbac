/*

Oracle EMA and price-scale migration.

The oracle price is an exponential moving average of realized trade prices with
half-life MaHalfTime. The price scale follows the oracle only when the pool has
banked enough fee profit to pay for the recentering, so LPs never fund a repeg
out of principal.

*/

package pool

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cosmoswap-labs/pclpool/internal/curve"
	"github.com/cosmoswap-labs/pclpool/internal/types"
)

// updatePrice rolls the EMA oracle forward, records the realized trade price,
// refreshes the profit counters from the post-trade balances, and attempts a
// price-scale step toward the oracle. xp holds the post-operation internal
// balances and lastPrice the realized price of this operation.
func updatePrice(
	params types.PoolParams,
	st *types.PoolState,
	env types.Env,
	totalLP sdkmath.LegacyDec,
	xp [2]sdkmath.LegacyDec,
	lastPrice sdkmath.LegacyDec,
) error {
	ampGamma := AmpGammaAt(*st, env.BlockTime)
	ps := &st.Price

	// The EMA advances at most once per block, folding in the price recorded
	// by the previous block's trades.
	if env.BlockTime > ps.LastPriceUpdate {
		elapsed := sdkmath.LegacyNewDec(env.BlockTime - ps.LastPriceUpdate)
		alpha := curve.HalfPow(elapsed.QuoInt64(params.MaHalfTime))
		ps.OraclePrice = ps.LastPrice.
			Mul(sdkmath.LegacyOneDec().Sub(alpha)).
			Add(ps.OraclePrice.Mul(alpha))
		ps.LastPriceUpdate = env.BlockTime
	}
	ps.LastPrice = lastPrice

	if !totalLP.IsPositive() {
		return nil
	}

	d, err := curve.CalcD(xp, ampGamma)
	if err != nil {
		return err
	}
	xcp, err := curve.GetXcp(d, ps.PriceScale)
	if err != nil {
		return err
	}

	vp := xcp.Quo(totalLP)
	if ps.XcpProfitReal.IsPositive() {
		ps.XcpProfit = ps.XcpProfit.Mul(vp).Quo(ps.XcpProfitReal)
	}
	ps.XcpProfitReal = vp

	return repegPriceScale(params, ps, ampGamma, totalLP, xp)
}

// repegPriceScale moves the price scale one damped step toward the oracle when
// the deviation is large enough and at least half of the accrued profit
// survives the move. No-op otherwise.
func repegPriceScale(
	params types.PoolParams,
	ps *types.PriceState,
	ampGamma types.AmpGamma,
	totalLP sdkmath.LegacyDec,
	xp [2]sdkmath.LegacyDec,
) error {
	one := sdkmath.LegacyOneDec()

	norm := ps.OraclePrice.Quo(ps.PriceScale).Sub(one).Abs()
	step := params.MinPriceScaleDelta
	if norm.LTE(step) {
		return nil
	}

	halfProfit := ps.XcpProfit.Sub(one).QuoInt64(2)
	if !ps.XcpProfitReal.Sub(one).GT(halfProfit.Add(params.RepegProfitThreshold)) {
		return nil
	}

	newScale := ps.PriceScale.Mul(norm.Sub(step)).
		Add(step.Mul(ps.OraclePrice)).
		Quo(norm)

	// Re-value the pool as if the scale had already moved.
	scaled := [2]sdkmath.LegacyDec{
		xp[0],
		xp[1].Mul(newScale).Quo(ps.PriceScale),
	}
	newD, err := curve.CalcD(scaled, ampGamma)
	if err != nil {
		return err
	}
	newXcp, err := curve.GetXcp(newD, newScale)
	if err != nil {
		return err
	}

	newVP := newXcp.Quo(totalLP)
	if newVP.Sub(one).GT(halfProfit) {
		ps.PriceScale = newScale
		ps.XcpProfitReal = newVP
	}
	return nil
}
