/*

Pool engine: provide, withdraw and swap over a two-asset concentrated
liquidity pair.

The engine is a pure state machine. Every operation takes the current pool
state, balances and share supply, validates fully before touching anything,
and returns the successor state plus the balance movements for the caller to
apply atomically. The only internal mutation is the observation buffer, which
is written strictly after all guards have passed.

*/

package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/cosmoswap-labs/pclpool/internal/curve"
	"github.com/cosmoswap-labs/pclpool/internal/logger"
	"github.com/cosmoswap-labs/pclpool/internal/twap"
	"github.com/cosmoswap-labs/pclpool/internal/types"
	"github.com/cosmoswap-labs/pclpool/internal/utils"
)

// LPTokenPrecision is the native precision of pool share tokens.
const LPTokenPrecision uint8 = 6

var (
	// MinimumLiquidityAmount is burned from the first mint and stays locked in
	// the pool forever, so the share supply can never return to zero.
	MinimumLiquidityAmount = sdkmath.NewInt(1000)

	// minTradeSize gates oracle updates: trades below it are executed but do
	// not move the EMA or land in the observation buffer.
	minTradeSize = sdkmath.LegacyNewDecWithPrec(1, 6)

	defaultSlippageTolerance = sdkmath.LegacyNewDecWithPrec(2, 2) // 0.02
	defaultMaxSpread         = sdkmath.LegacyNewDecWithPrec(5, 3) // 0.005
	maxAllowedSlippage       = sdkmath.LegacyNewDecWithPrec(5, 1) // 0.5
)

// Engine executes pool operations for a single pair. It holds the immutable
// pair definition and the observation buffer; all economic state travels in
// and out through types.PoolState.
type Engine struct {
	params     types.PoolParams
	denoms     [2]string
	precisions types.Precisions
	buffer     *twap.Buffer
	log        zerolog.Logger
}

// New builds an engine for the given pair. A nil buffer gets a fresh one at
// the default capacity.
func New(denoms [2]string, precisions types.Precisions, params types.PoolParams, buffer *twap.Buffer) (*Engine, error) {
	if denoms[0] == "" || denoms[1] == "" {
		return nil, fmt.Errorf("%w: empty denom", types.ErrInvalidAssetCount)
	}
	if denoms[0] == denoms[1] {
		return nil, fmt.Errorf("%w: %s", types.ErrDuplicateAsset, denoms[0])
	}
	if err := precisions.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if buffer == nil {
		buffer = twap.NewBuffer(twap.DefaultCapacity)
	}

	return &Engine{
		params:     params,
		denoms:     denoms,
		precisions: precisions,
		buffer:     buffer,
		log:        logger.GetForComponent("pool-engine"),
	}, nil
}

func (e *Engine) Params() types.PoolParams     { return e.params }
func (e *Engine) Denoms() [2]string            { return e.denoms }
func (e *Engine) Precisions() types.Precisions { return e.precisions }
func (e *Engine) Buffer() *twap.Buffer         { return e.buffer }

// UpdateParams replaces the fee and repeg parameters after validation.
func (e *Engine) UpdateParams(params types.PoolParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	e.params = params
	return nil
}

// Provide deposits up to two assets and mints LP shares. The first provide
// must be two-sided and burns MinimumLiquidityAmount into a permanent lock;
// later provides may be one-sided and pay the imbalance fee. A nil
// slippageTolerance uses the default.
func (e *Engine) Provide(
	env types.Env,
	st types.PoolState,
	balances [2]sdkmath.Int,
	totalShare sdkmath.Int,
	deposits [2]sdkmath.Int,
	slippageTolerance *sdkmath.LegacyDec,
) (types.ProvideResult, error) {
	bals, err := e.toInternalPair(balances)
	if err != nil {
		return types.ProvideResult{}, fmt.Errorf("pool balances: %w", err)
	}
	deps, err := e.toInternalPair(deposits)
	if err != nil {
		return types.ProvideResult{}, fmt.Errorf("deposits: %w", err)
	}
	if deps[0].IsZero() && deps[1].IsZero() {
		return types.ProvideResult{}, types.ErrNothingToProvide
	}

	shareDec, err := utils.ToInternal(totalShare, LPTokenPrecision)
	if err != nil {
		return types.ProvideResult{}, fmt.Errorf("total share: %w", err)
	}

	scale := st.Price.PriceScale
	ampGamma := AmpGammaAt(st, env.BlockTime)
	newXp := [2]sdkmath.LegacyDec{
		bals[0].Add(deps[0]),
		bals[1].Add(deps[1]).Mul(scale),
	}
	newD, err := curve.CalcD(newXp, ampGamma)
	if err != nil {
		return types.ProvideResult{}, err
	}

	if shareDec.IsZero() {
		return e.initialProvide(env, st, balances, deposits, newD)
	}

	oldXp := [2]sdkmath.LegacyDec{bals[0], bals[1].Mul(scale)}
	oldD, err := curve.CalcD(oldXp, ampGamma)
	if err != nil {
		return types.ProvideResult{}, err
	}

	// Shares grow with D; the imbalance fee shaves the growth attributable to
	// the one-sided part of the deposit.
	mint := shareDec.Mul(newD).Quo(oldD).Sub(shareDec)
	if !mint.IsPositive() {
		return types.ProvideResult{}, fmt.Errorf("%w: deposit too small to mint shares", types.ErrZeroAmount)
	}
	idep := [2]sdkmath.LegacyDec{deps[0], deps[1].Mul(scale)}
	mint = mint.Mul(sdkmath.LegacyOneDec().Sub(curve.ProvideFee(idep, newXp, e.params)))

	// A deposit counts as an implicit trade only when it deviates from the
	// pro-rata contribution on both assets. Only then does the slippage guard
	// apply and the oracle record a price; pro-rata deposits skip both.
	totalAfter := shareDec.Add(mint)
	ratio := mint.Quo(totalAfter)
	diff0 := deps[0].Sub(newXp[0].Mul(ratio)).Abs()
	diff1 := deps[1].Sub(newXp[1].Mul(ratio).Quo(scale)).Abs()
	imbalanced := diff0.GTE(minTradeSize) && diff1.GTE(minTradeSize)

	slippage := sdkmath.LegacyZeroDec()
	if imbalanced {
		slippage, err = assertSlippageTolerance(deps, mint, st.Price, slippageTolerance)
		if err != nil {
			return types.ProvideResult{}, err
		}
	}

	mintShares, err := utils.ToChain(mint, LPTokenPrecision)
	if err != nil {
		return types.ProvideResult{}, err
	}
	if !mintShares.IsPositive() {
		return types.ProvideResult{}, fmt.Errorf("%w: minted share rounds to zero", types.ErrZeroAmount)
	}

	e.buffer.Commit(env)

	if imbalanced {
		lastPrice := diff0.Quo(diff1)
		if err := updatePrice(e.params, &st, env, totalAfter, newXp, lastPrice); err != nil {
			return types.ProvideResult{}, err
		}
	}

	e.log.Debug().
		Str("mint_shares", mintShares.String()).
		Str("slippage", slippage.String()).
		Msg("liquidity provided")

	return types.ProvideResult{
		MintShares:   mintShares,
		LockedShares: sdkmath.ZeroInt(),
		Slippage:     slippage,
		NewState:     st,
		NewBalances:  addPair(balances, deposits),
	}, nil
}

// initialProvide seeds the pool. Shares are minted at the balanced pool value
// xcp so the very first LP token is worth one unit of balanced liquidity.
func (e *Engine) initialProvide(
	env types.Env,
	st types.PoolState,
	balances, deposits [2]sdkmath.Int,
	d sdkmath.LegacyDec,
) (types.ProvideResult, error) {
	if !deposits[0].IsPositive() || !deposits[1].IsPositive() {
		return types.ProvideResult{}, fmt.Errorf("%w: initial provide must include both assets", types.ErrZeroAmount)
	}

	xcp, err := curve.GetXcp(d, st.Price.PriceScale)
	if err != nil {
		return types.ProvideResult{}, err
	}
	lock, err := utils.ToInternal(MinimumLiquidityAmount, LPTokenPrecision)
	if err != nil {
		return types.ProvideResult{}, err
	}

	mint := xcp.Sub(lock)
	if !mint.IsPositive() {
		return types.ProvideResult{}, types.ErrMinimumLiquidityAmount
	}
	mintShares, err := utils.ToChain(mint, LPTokenPrecision)
	if err != nil {
		return types.ProvideResult{}, err
	}
	if !mintShares.IsPositive() {
		return types.ProvideResult{}, types.ErrMinimumLiquidityAmount
	}

	one := sdkmath.LegacyOneDec()
	st.Price.XcpProfit = one
	st.Price.XcpProfitReal = one

	e.buffer.Commit(env)

	e.log.Info().
		Str("mint_shares", mintShares.String()).
		Str("locked_shares", MinimumLiquidityAmount.String()).
		Msg("pool seeded")

	return types.ProvideResult{
		MintShares:   mintShares,
		LockedShares: MinimumLiquidityAmount,
		Slippage:     sdkmath.LegacyZeroDec(),
		NewState:     st,
		NewBalances:  addPair(balances, deposits),
	}, nil
}

// Withdraw burns lpAmount shares for a pro-rata refund of both assets. The
// assets argument selects an imbalanced withdrawal, which this pool does not
// support; it must be empty.
func (e *Engine) Withdraw(
	env types.Env,
	st types.PoolState,
	balances [2]sdkmath.Int,
	totalShare sdkmath.Int,
	lpAmount sdkmath.Int,
	assets []sdkmath.Int,
) (types.WithdrawResult, error) {
	if len(assets) != 0 {
		return types.WithdrawResult{}, types.ErrUnsupportedOperation
	}
	if lpAmount.IsNil() || !lpAmount.IsPositive() {
		return types.WithdrawResult{}, fmt.Errorf("%w: lp amount", types.ErrZeroAmount)
	}
	if totalShare.IsNil() || totalShare.IsZero() {
		return types.WithdrawResult{}, types.ErrZeroShares
	}
	// The minimum liquidity lock is part of totalShare and is not redeemable,
	// so the supply can never be drained to zero.
	if lpAmount.GTE(totalShare) {
		return types.WithdrawResult{}, types.ErrInsufficientShares
	}

	bals, err := e.toInternalPair(balances)
	if err != nil {
		return types.WithdrawResult{}, fmt.Errorf("pool balances: %w", err)
	}
	shareDec, err := utils.ToInternal(totalShare, LPTokenPrecision)
	if err != nil {
		return types.WithdrawResult{}, err
	}
	lpDec, err := utils.ToInternal(lpAmount, LPTokenPrecision)
	if err != nil {
		return types.WithdrawResult{}, err
	}

	ratio := lpDec.Quo(shareDec)
	var refund [2]sdkmath.Int
	var refundDec [2]sdkmath.LegacyDec
	for i := 0; i < 2; i++ {
		r, err := utils.ToChain(bals[i].Mul(ratio), e.precisions[i])
		if err != nil {
			return types.WithdrawResult{}, err
		}
		refund[i] = r
		refundDec[i], err = utils.ToInternal(r, e.precisions[i])
		if err != nil {
			return types.WithdrawResult{}, err
		}
	}

	// Re-anchor the per-share value to what actually remains after the
	// truncated refunds leave the pool.
	remainingXp := [2]sdkmath.LegacyDec{
		bals[0].Sub(refundDec[0]),
		bals[1].Sub(refundDec[1]).Mul(st.Price.PriceScale),
	}
	d, err := curve.CalcD(remainingXp, AmpGammaAt(st, env.BlockTime))
	if err != nil {
		return types.WithdrawResult{}, err
	}
	xcp, err := curve.GetXcp(d, st.Price.PriceScale)
	if err != nil {
		return types.WithdrawResult{}, err
	}
	st.Price.XcpProfitReal = xcp.Quo(shareDec.Sub(lpDec))

	e.buffer.Commit(env)

	e.log.Debug().
		Str("burn_shares", lpAmount.String()).
		Str("refund_0", refund[0].String()).
		Str("refund_1", refund[1].String()).
		Msg("liquidity withdrawn")

	return types.WithdrawResult{
		Refund:      refund,
		BurnShares:  lpAmount,
		NewState:    st,
		NewBalances: subPair(balances, refund),
	}, nil
}

// Swap trades offerAmount of asset offerIdx for the other asset. beliefPrice
// and maxSpread are the caller's optional price protection; feeInfo routes the
// maker share of the fee out of the pool.
func (e *Engine) Swap(
	env types.Env,
	st types.PoolState,
	balances [2]sdkmath.Int,
	totalShare sdkmath.Int,
	offerIdx int,
	offerAmount sdkmath.Int,
	feeInfo types.FeeInfo,
	beliefPrice, maxSpread *sdkmath.LegacyDec,
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
	if !returnAmount.IsPositive() {
		return types.SwapResult{}, fmt.Errorf("%w: swap output rounds to zero", types.ErrZeroAmount)
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

	if err := assertMaxSpread(beliefPrice, maxSpread, q.offerDec, q.dy, q.spread); err != nil {
		return types.SwapResult{}, err
	}

	e.buffer.Commit(env)

	shareDec, err := utils.ToInternal(totalShare, LPTokenPrecision)
	if err != nil {
		return types.SwapResult{}, err
	}

	// Dust trades execute but are invisible to the oracle.
	grossOut := q.dy.Add(q.makerFee)
	if q.offerDec.GTE(minTradeSize) && grossOut.GTE(minTradeSize) {
		if err := updatePrice(e.params, &st, env, shareDec, q.xpAfter, q.lastPrice); err != nil {
			return types.SwapResult{}, err
		}
		if offerIdx == 0 {
			e.buffer.Accumulate(env, q.offerDec, grossOut)
		} else {
			e.buffer.Accumulate(env, grossOut, q.offerDec)
		}
	}

	newBalances := balances
	newBalances[offerIdx] = newBalances[offerIdx].Add(offerAmount)
	newBalances[askIdx] = newBalances[askIdx].Sub(returnAmount).Sub(makerFee)

	e.log.Debug().
		Str("offer", offerAmount.String()).
		Str("return", returnAmount.String()).
		Str("total_fee", totalFee.String()).
		Msg("swap executed")

	return types.SwapResult{
		AmountOut:    returnAmount,
		SpreadAmount: spreadAmount,
		TotalFee:     totalFee,
		MakerFee:     makerFee,
		NewState:     st,
		NewBalances:  newBalances,
	}, nil
}

// swapQuote is the pure result of pricing a swap, before any state or buffer
// writes.
type swapQuote struct {
	offerDec  sdkmath.LegacyDec
	dy        sdkmath.LegacyDec // after total fee
	spread    sdkmath.LegacyDec
	totalFee  sdkmath.LegacyDec
	makerFee  sdkmath.LegacyDec
	lastPrice sdkmath.LegacyDec
	xpAfter   [2]sdkmath.LegacyDec
}

// quoteSwap prices a swap without side effects. SimulateSwap exposes it for
// read-only queries.
func (e *Engine) quoteSwap(
	env types.Env,
	st types.PoolState,
	balances [2]sdkmath.Int,
	offerIdx int,
	offerAmount sdkmath.Int,
	feeInfo types.FeeInfo,
) (swapQuote, error) {
	if offerIdx != 0 && offerIdx != 1 {
		return swapQuote{}, fmt.Errorf("%w: offer index %d", types.ErrInvalidAssetCount, offerIdx)
	}
	if err := feeInfo.Validate(); err != nil {
		return swapQuote{}, err
	}
	askIdx := 1 - offerIdx

	offerDec, err := utils.ToInternal(offerAmount, e.precisions[offerIdx])
	if err != nil {
		return swapQuote{}, fmt.Errorf("offer amount: %w", err)
	}
	if !offerDec.IsPositive() {
		return swapQuote{}, fmt.Errorf("%w: offer amount", types.ErrZeroAmount)
	}
	bals, err := e.toInternalPair(balances)
	if err != nil {
		return swapQuote{}, fmt.Errorf("pool balances: %w", err)
	}

	scale := st.Price.PriceScale
	ampGamma := AmpGammaAt(st, env.BlockTime)

	xp := [2]sdkmath.LegacyDec{bals[0], bals[1].Mul(scale)}
	d, err := curve.CalcD(xp, ampGamma)
	if err != nil {
		return swapQuote{}, err
	}

	offerInternal := offerDec
	if offerIdx == 1 {
		offerInternal = offerInternal.Mul(scale)
	}
	xp[offerIdx] = xp[offerIdx].Add(offerInternal)

	newY, err := curve.CalcY(d, xp, askIdx, ampGamma)
	if err != nil {
		return swapQuote{}, err
	}
	dyRaw := xp[askIdx].Sub(newY)
	xp[askIdx] = newY
	if askIdx == 1 {
		dyRaw = dyRaw.Quo(scale)
	}
	if !dyRaw.IsPositive() {
		return swapQuote{}, fmt.Errorf("%w: swap output", types.ErrZeroAmount)
	}

	// Spread against the price-scale exchange rate, before fees.
	ideal := offerDec.Quo(scale)
	if offerIdx == 1 {
		ideal = offerDec.Mul(scale)
	}
	spread := sdkmath.LegacyZeroDec()
	if ideal.GT(dyRaw) {
		spread = ideal.Sub(dyRaw)
	}

	totalFee := curve.FeeRate(xp, e.params).Mul(dyRaw)
	makerFee := totalFee.Mul(feeInfo.MakerShare())
	dy := dyRaw.Sub(totalFee)
	if !dy.IsPositive() {
		return swapQuote{}, fmt.Errorf("%w: fee consumes the whole output", types.ErrZeroAmount)
	}

	// Realized price in base per quote, net of the LP-retained fee which
	// stays in the pool.
	grossOut := dy.Add(makerFee)
	lastPrice := offerDec.Quo(grossOut)
	if offerIdx == 1 {
		lastPrice = grossOut.Quo(offerDec)
	}

	after := bals
	after[offerIdx] = after[offerIdx].Add(offerDec)
	after[askIdx] = after[askIdx].Sub(grossOut)
	xpAfter := [2]sdkmath.LegacyDec{after[0], after[1].Mul(scale)}

	return swapQuote{
		offerDec:  offerDec,
		dy:        dy,
		spread:    spread,
		totalFee:  totalFee,
		makerFee:  makerFee,
		lastPrice: lastPrice,
		xpAfter:   xpAfter,
	}, nil
}

// assertSlippageTolerance compares the minted share against the share an
// equal-value balanced deposit would have minted. Returns the realized
// slippage fraction or ErrSlippageExceeded.
func assertSlippageTolerance(
	deposits [2]sdkmath.LegacyDec,
	mint sdkmath.LegacyDec,
	price types.PriceState,
	tolerance *sdkmath.LegacyDec,
) (sdkmath.LegacyDec, error) {
	tol := defaultSlippageTolerance
	if tolerance != nil {
		tol = *tolerance
	}
	if tol.GT(maxAllowedSlippage) {
		tol = maxAllowedSlippage
	}

	sqrtScale, err := price.PriceScale.ApproxSqrt()
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: price scale sqrt: %w", types.ErrConvergence, err)
	}

	depositValue := deposits[0].Add(deposits[1].Mul(price.PriceScale))
	idealShare := depositValue.Quo(sdkmath.LegacyNewDec(2).Mul(sqrtScale))
	if price.XcpProfitReal.IsPositive() {
		idealShare = idealShare.Quo(price.XcpProfitReal)
	}
	if !idealShare.IsPositive() {
		return sdkmath.LegacyZeroDec(), nil
	}

	one := sdkmath.LegacyOneDec()
	if mint.LT(idealShare.Mul(one.Sub(tol))) {
		return sdkmath.LegacyDec{}, fmt.Errorf(
			"%w: minted %s, balanced deposit would mint %s",
			types.ErrSlippageExceeded, mint, idealShare,
		)
	}

	slippage := sdkmath.LegacyZeroDec()
	if idealShare.GT(mint) {
		slippage = idealShare.Sub(mint).Quo(idealShare)
	}
	return slippage, nil
}

// assertMaxSpread enforces the caller's price protection. With a belief price
// the spread is measured against offer/beliefPrice; otherwise against the
// pool's own pre-fee ideal return.
func assertMaxSpread(
	beliefPrice, maxSpread *sdkmath.LegacyDec,
	offerAmount, returnAmount, spreadAmount sdkmath.LegacyDec,
) error {
	ms := defaultMaxSpread
	if maxSpread != nil {
		ms = *maxSpread
	}
	if ms.GT(maxAllowedSlippage) {
		return fmt.Errorf("%w: max spread cannot exceed %s", types.ErrMaxSpreadAssertion, maxAllowedSlippage)
	}

	if beliefPrice != nil {
		if !beliefPrice.IsPositive() {
			return fmt.Errorf("%w: belief price must be positive", types.ErrMaxSpreadAssertion)
		}
		expected := offerAmount.Quo(*beliefPrice)
		if returnAmount.LT(expected) &&
			expected.Sub(returnAmount).Quo(expected).GT(ms) {
			return types.ErrMaxSpreadAssertion
		}
		return nil
	}

	gross := returnAmount.Add(spreadAmount)
	if gross.IsPositive() && spreadAmount.Quo(gross).GT(ms) {
		return types.ErrMaxSpreadAssertion
	}
	return nil
}

func (e *Engine) toInternalPair(amounts [2]sdkmath.Int) ([2]sdkmath.LegacyDec, error) {
	var out [2]sdkmath.LegacyDec
	for i := 0; i < 2; i++ {
		d, err := utils.ToInternal(amounts[i], e.precisions[i])
		if err != nil {
			return out, fmt.Errorf("%s: %w", e.denoms[i], err)
		}
		out[i] = d
	}
	return out, nil
}

func addPair(a, b [2]sdkmath.Int) [2]sdkmath.Int {
	return [2]sdkmath.Int{a[0].Add(b[0]), a[1].Add(b[1])}
}

func subPair(a, b [2]sdkmath.Int) [2]sdkmath.Int {
	return [2]sdkmath.Int{a[0].Sub(b[0]), a[1].Sub(b[1])}
}
