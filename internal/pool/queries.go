package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/cosmoswap-labs/pclpool/internal/curve"
	"github.com/cosmoswap-labs/pclpool/internal/types"
	"github.com/cosmoswap-labs/pclpool/internal/utils"
)

// Read-only queries. None of these touch the pool state or the observation
// buffer's write path.

// CurrentD returns the invariant for the current balances.
func (e *Engine) CurrentD(env types.Env, st types.PoolState, balances [2]sdkmath.Int) (sdkmath.LegacyDec, error) {
	bals, err := e.toInternalPair(balances)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	xp := [2]sdkmath.LegacyDec{bals[0], bals[1].Mul(st.Price.PriceScale)}
	return curve.CalcD(xp, AmpGammaAt(st, env.BlockTime))
}

// LPPrice returns the value of one LP share in units of the base asset.
func (e *Engine) LPPrice(
	env types.Env,
	st types.PoolState,
	balances [2]sdkmath.Int,
	totalShare sdkmath.Int,
) (sdkmath.LegacyDec, error) {
	if totalShare.IsNil() || totalShare.IsZero() {
		return sdkmath.LegacyDec{}, types.ErrZeroShares
	}
	d, err := e.CurrentD(env, st, balances)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	xcp, err := curve.GetXcp(d, st.Price.PriceScale)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	shareDec, err := utils.ToInternal(totalShare, LPTokenPrecision)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return xcp.Quo(shareDec), nil
}

// ShareInAssets decomposes an LP share amount into its pro-rata claim on both
// pool balances, rounding down.
func (e *Engine) ShareInAssets(
	balances [2]sdkmath.Int,
	amount, totalShare sdkmath.Int,
) ([2]sdkmath.Int, error) {
	if totalShare.IsNil() || totalShare.IsZero() {
		return [2]sdkmath.Int{}, types.ErrZeroShares
	}
	if amount.IsNil() || amount.IsNegative() {
		return [2]sdkmath.Int{}, fmt.Errorf("%w: share amount", types.ErrZeroAmount)
	}

	var out [2]sdkmath.Int
	for i := 0; i < 2; i++ {
		out[i] = balances[i].Mul(amount).Quo(totalShare)
	}
	return out, nil
}

// Observe returns the oracle price secondsAgo seconds before the current block
// time, interpolated from the observation buffer.
func (e *Engine) Observe(env types.Env, secondsAgo int64) (sdkmath.LegacyDec, error) {
	return e.buffer.Observe(env.BlockTime, secondsAgo)
}

// SimulateSwap prices a swap without executing it: no state transition, no
// oracle update, no observation.
func (e *Engine) SimulateSwap(
	env types.Env,
	st types.PoolState,
	balances [2]sdkmath.Int,
	offerIdx int,
	offerAmount sdkmath.Int,
	feeInfo types.FeeInfo,
) (types.SwapResult, error) {
	q, err := e.quoteSwap(env, st, balances, offerIdx, offerAmount, feeInfo)
	if err != nil {
		return types.SwapResult{}, err
	}
	askIdx := 1 - offerIdx

	returnAmount, err := utils.ToChain(q.dy, e.precisions[askIdx])
	if err != nil {
		return types.SwapResult{}, err
	}
	spreadAmount, err := utils.ToChain(q.spread, e.precisions[askIdx])
	if err != nil {
		return types.SwapResult{}, err
	}
	totalFee, err := utils.ToChain(q.totalFee, e.precisions[askIdx])
	if err != nil {
		return types.SwapResult{}, err
	}
	makerFee, err := utils.ToChain(q.makerFee, e.precisions[askIdx])
	if err != nil {
		return types.SwapResult{}, err
	}

	newBalances := balances
	newBalances[offerIdx] = newBalances[offerIdx].Add(offerAmount)
	newBalances[askIdx] = newBalances[askIdx].Sub(returnAmount).Sub(makerFee)

	return types.SwapResult{
		AmountOut:    returnAmount,
		SpreadAmount: spreadAmount,
		TotalFee:     totalFee,
		MakerFee:     makerFee,
		NewState:     st,
		NewBalances:  newBalances,
	}, nil
}
