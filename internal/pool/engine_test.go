package pool

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/cosmoswap-labs/pclpool/internal/twap"
	"github.com/cosmoswap-labs/pclpool/internal/types"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

func newInt(v int64) sdkmath.Int {
	return sdkmath.NewInt(v)
}

func testParams() types.PoolParams {
	return types.PoolParams{
		MidFee:               dec("0.0026"),
		OutFee:               dec("0.0045"),
		FeeGamma:             dec("0.00023"),
		RepegProfitThreshold: dec("0.000002"),
		MinPriceScaleDelta:   dec("0.000146"),
		MaHalfTime:           600,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(
		[2]string{"ubase", "uquote"},
		types.Precisions{6, 6},
		testParams(),
		twap.NewBuffer(16),
	)
	require.NoError(t, err)
	return e
}

func freshState(t *testing.T, env types.Env) types.PoolState {
	t.Helper()
	ag, err := types.NewAmpGamma(dec("40"), dec("0.000145"))
	require.NoError(t, err)
	st, err := types.NewPoolState(ag, sdkmath.LegacyOneDec(), env)
	require.NoError(t, err)
	return st
}

// seedPool runs the initial provide with 100000 of each asset and returns the
// resulting state, balances and total share supply.
func seedPool(t *testing.T, e *Engine, env types.Env) (types.PoolState, [2]sdkmath.Int, sdkmath.Int) {
	t.Helper()
	st := freshState(t, env)
	zero := [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}
	deposits := [2]sdkmath.Int{newInt(100_000_000_000), newInt(100_000_000_000)}

	res, err := e.Provide(env, st, zero, sdkmath.ZeroInt(), deposits, nil)
	require.NoError(t, err)

	totalShare := res.MintShares.Add(res.LockedShares)
	return res.NewState, res.NewBalances, totalShare
}

func TestNewEngineValidation(t *testing.T) {
	params := testParams()

	_, err := New([2]string{"ubase", "ubase"}, types.Precisions{6, 6}, params, nil)
	require.ErrorIs(t, err, types.ErrDuplicateAsset)

	_, err = New([2]string{"", "uquote"}, types.Precisions{6, 6}, params, nil)
	require.ErrorIs(t, err, types.ErrInvalidAssetCount)

	bad := params
	bad.OutFee = dec("0.001") // below mid_fee
	_, err = New([2]string{"ubase", "uquote"}, types.Precisions{6, 6}, bad, nil)
	require.ErrorIs(t, err, types.ErrInvalidPoolParams)
}

func TestInitialProvideMintsXcpMinusLock(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st := freshState(t, env)

	zero := [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}
	deposits := [2]sdkmath.Int{newInt(100_000_000_000), newInt(100_000_000_000)}

	res, err := e.Provide(env, st, zero, sdkmath.ZeroInt(), deposits, nil)
	require.NoError(t, err)

	// xcp = D/2 = 100000 at price scale 1, minus the 0.001 lock.
	require.True(t, res.MintShares.Equal(newInt(99_999_999_000)),
		"got %s", res.MintShares)
	require.True(t, res.LockedShares.Equal(MinimumLiquidityAmount))
	require.True(t, res.Slippage.IsZero())

	// Seeding resets the profit counters to exactly one.
	require.True(t, res.NewState.Price.XcpProfit.Equal(sdkmath.LegacyOneDec()))
	require.True(t, res.NewState.Price.XcpProfitReal.Equal(sdkmath.LegacyOneDec()))

	require.True(t, res.NewBalances[0].Equal(deposits[0]))
	require.True(t, res.NewBalances[1].Equal(deposits[1]))
}

func TestInitialProvideMustBeTwoSided(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st := freshState(t, env)

	zero := [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}
	deposits := [2]sdkmath.Int{newInt(100_000_000_000), sdkmath.ZeroInt()}

	_, err := e.Provide(env, st, zero, sdkmath.ZeroInt(), deposits, nil)
	require.ErrorIs(t, err, types.ErrZeroAmount)
}

func TestProvideNothingFails(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st := freshState(t, env)

	zero := [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}
	_, err := e.Provide(env, st, zero, sdkmath.ZeroInt(), zero, nil)
	require.ErrorIs(t, err, types.ErrNothingToProvide)
}

func TestInitialProvideBelowLockFails(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st := freshState(t, env)

	zero := [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}
	// Deposit so small the whole mint is consumed by the minimum lock.
	deposits := [2]sdkmath.Int{newInt(500), newInt(500)}

	_, err := e.Provide(env, st, zero, sdkmath.ZeroInt(), deposits, nil)
	require.ErrorIs(t, err, types.ErrMinimumLiquidityAmount)
}

func TestBalancedProvideMintsProRata(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
	deposits := [2]sdkmath.Int{newInt(10_000_000_000), newInt(10_000_000_000)}

	res, err := e.Provide(env2, st, balances, totalShare, deposits, nil)
	require.NoError(t, err)

	// A 10% balanced deposit mints close to 10% of the supply, fee-free.
	expected := dec("10000")
	minted := sdkmath.LegacyNewDecFromIntWithPrec(res.MintShares, 6)
	require.True(t, minted.Sub(expected).Abs().LTE(dec("0.01")),
		"expected ~%s shares, got %s", expected, minted)
	require.True(t, res.LockedShares.IsZero())
	require.True(t, res.Slippage.LTE(dec("0.001")))
}

func TestOneSidedProvidePaysImbalanceFee(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
	oneSided := [2]sdkmath.Int{newInt(1_000_000_000), sdkmath.ZeroInt()}

	res, err := e.Provide(env2, st, balances, totalShare, oneSided, nil)
	require.NoError(t, err)

	// 1000 of base is worth ~500 shares at scale 1; the imbalance fee and
	// curve slippage shave a little off.
	minted := sdkmath.LegacyNewDecFromIntWithPrec(res.MintShares, 6)
	require.True(t, minted.LT(dec("500")))
	require.True(t, minted.GT(dec("495")))
	require.True(t, res.Slippage.IsPositive())
}

func TestSlippageToleranceRejectsLopsidedProvide(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
	oneSided := [2]sdkmath.Int{newInt(1_000_000_000), sdkmath.ZeroInt()}

	tight := dec("0.000001")
	_, err := e.Provide(env2, st, balances, totalShare, oneSided, &tight)
	require.ErrorIs(t, err, types.ErrSlippageExceeded)
}

func TestSwapReferenceScenario(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	dBefore, err := e.CurrentD(env, st, balances)
	require.NoError(t, err)

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
	res, err := e.Swap(env2, st, balances, totalShare, 0, newInt(100_000_000), types.FeeInfo{}, nil, nil)
	require.NoError(t, err)

	out := sdkmath.LegacyNewDecFromIntWithPrec(res.AmountOut, 6)
	require.True(t, out.Sub(dec("99.737929548")).Abs().LTE(dec("0.001")),
		"expected ~99.737929548 out, got %s", out)

	fee := sdkmath.LegacyNewDecFromIntWithPrec(res.TotalFee, 6)
	require.True(t, fee.Sub(dec("0.26082")).Abs().LTE(dec("0.001")),
		"expected ~0.26082 fee, got %s", fee)

	require.True(t, res.SpreadAmount.IsPositive())
	require.True(t, res.MakerFee.IsZero())

	// Balance conservation: base grows by the offer, quote shrinks by the
	// payout only; the LP fee share stays in the pool.
	require.True(t, res.NewBalances[0].Equal(balances[0].Add(newInt(100_000_000))))
	require.True(t, res.NewBalances[1].Equal(balances[1].Sub(res.AmountOut)))

	// Fees make the invariant and the per-share value grow.
	dAfter, err := e.CurrentD(env2, res.NewState, res.NewBalances)
	require.NoError(t, err)
	require.True(t, dAfter.GTE(dBefore), "D must not decrease: %s -> %s", dBefore, dAfter)
	require.True(t, res.NewState.Price.XcpProfitReal.GTE(st.Price.XcpProfitReal))
}

func TestSwapRoutesMakerFee(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	feeInfo := types.FeeInfo{
		MakerFeeRate: dec("0.5"),
		FeeRecipient: "maker",
	}

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
	res, err := e.Swap(env2, st, balances, totalShare, 0, newInt(100_000_000), feeInfo, nil, nil)
	require.NoError(t, err)

	require.True(t, res.MakerFee.IsPositive())
	// Exactly half of the total fee leaves the pool.
	diff := res.TotalFee.Sub(res.MakerFee.MulRaw(2)).Abs()
	require.True(t, diff.LTE(newInt(1)), "maker fee must be half the total, off by %s", diff)

	require.True(t, res.NewBalances[1].Equal(
		balances[1].Sub(res.AmountOut).Sub(res.MakerFee)))
}

func TestSwapReverseDirection(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
	res, err := e.Swap(env2, st, balances, totalShare, 1, newInt(100_000_000), types.FeeInfo{}, nil, nil)
	require.NoError(t, err)

	out := sdkmath.LegacyNewDecFromIntWithPrec(res.AmountOut, 6)
	require.True(t, out.Sub(dec("99.737929548")).Abs().LTE(dec("0.001")),
		"symmetric pool must price both directions alike, got %s", out)
	require.True(t, res.NewBalances[1].Equal(balances[1].Add(newInt(100_000_000))))
}

func TestSwapBeliefPriceGuard(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}

	// Caller believes 0.9 base per quote, expecting ~111 out; the pool pays
	// under 100, far past the default max spread.
	belief := dec("0.9")
	_, err := e.Swap(env2, st, balances, totalShare, 0, newInt(100_000_000), types.FeeInfo{}, &belief, nil)
	require.ErrorIs(t, err, types.ErrMaxSpreadAssertion)

	// A belief matching the pool passes.
	fair := sdkmath.LegacyOneDec()
	_, err = e.Swap(env2, st, balances, totalShare, 0, newInt(100_000_000), types.FeeInfo{}, &fair, nil)
	require.NoError(t, err)
}

func TestSwapMaxSpreadGuard(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
	tiny := dec("0.000000001")
	_, err := e.Swap(env2, st, balances, totalShare, 0, newInt(100_000_000), types.FeeInfo{}, nil, &tiny)
	require.ErrorIs(t, err, types.ErrMaxSpreadAssertion)
}

func TestSwapRejectsBadInputs(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	_, err := e.Swap(env, st, balances, totalShare, 2, newInt(1), types.FeeInfo{}, nil, nil)
	require.ErrorIs(t, err, types.ErrInvalidAssetCount)

	_, err = e.Swap(env, st, balances, totalShare, 0, sdkmath.ZeroInt(), types.FeeInfo{}, nil, nil)
	require.ErrorIs(t, err, types.ErrZeroAmount)
}

func TestWithdrawProRata(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
	half := totalShare.QuoRaw(2)

	res, err := e.Withdraw(env2, st, balances, totalShare, half, nil)
	require.NoError(t, err)

	require.True(t, res.BurnShares.Equal(half))
	require.True(t, res.Refund[0].Equal(newInt(50_000_000_000)))
	require.True(t, res.Refund[1].Equal(newInt(50_000_000_000)))
	require.True(t, res.NewBalances[0].Equal(balances[0].Sub(res.Refund[0])))
	require.True(t, res.NewBalances[1].Equal(balances[1].Sub(res.Refund[1])))
}

func TestWithdrawGuards(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	_, err := e.Withdraw(env, st, balances, totalShare, sdkmath.ZeroInt(), nil)
	require.ErrorIs(t, err, types.ErrZeroAmount)

	_, err = e.Withdraw(env, st, balances, totalShare, totalShare, nil)
	require.ErrorIs(t, err, types.ErrInsufficientShares)

	_, err = e.Withdraw(env, st, balances, sdkmath.ZeroInt(), newInt(1), nil)
	require.ErrorIs(t, err, types.ErrZeroShares)

	// Imbalanced withdrawal is not supported.
	_, err = e.Withdraw(env, st, balances, totalShare, newInt(1), []sdkmath.Int{newInt(1)})
	require.ErrorIs(t, err, types.ErrUnsupportedOperation)
}

func TestSwapFeedsObservationBuffer(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
	res, err := e.Swap(env2, st, balances, totalShare, 0, newInt(100_000_000), types.FeeInfo{}, nil, nil)
	require.NoError(t, err)

	// The trade sits in the precommit slot, invisible to readers.
	require.NotNil(t, e.Buffer().Pending())
	require.Equal(t, 0, e.Buffer().Count())
	_, err = e.Observe(env2, 0)
	require.ErrorIs(t, err, types.ErrObservationOutOfRange)

	// The next block's operation seals it.
	env3 := types.Env{BlockTime: 1020, BlockHeight: 3}
	_, err = e.Swap(env3, res.NewState, res.NewBalances, totalShare, 0, newInt(100_000_000), types.FeeInfo{}, nil, nil)
	require.NoError(t, err)

	require.Equal(t, 1, e.Buffer().Count())
	price, err := e.Observe(env3, 0)
	require.NoError(t, err)
	// One base in for just under one quote out prices slightly above 1.
	require.True(t, price.GT(sdkmath.LegacyOneDec()))
	require.True(t, price.LT(dec("1.01")))
}

func TestSimulateSwapHasNoSideEffects(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)
	_ = totalShare

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
	res, err := e.SimulateSwap(env2, st, balances, 0, newInt(100_000_000), types.FeeInfo{})
	require.NoError(t, err)
	require.True(t, res.AmountOut.IsPositive())

	// No precommit staged, state returned untouched.
	require.Nil(t, e.Buffer().Pending())
	require.Equal(t, st, res.NewState)
}

func TestXcpProfitRealGrowsOverManySwaps(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)

	prev := st.Price.XcpProfitReal
	for i := 0; i < 6; i++ {
		env = types.Env{BlockTime: env.BlockTime + 10, BlockHeight: env.BlockHeight + 1}
		idx := i % 2
		res, err := e.Swap(env, st, balances, totalShare, idx, newInt(500_000_000), types.FeeInfo{}, nil, nil)
		require.NoError(t, err)

		require.True(t, res.NewState.Price.XcpProfitReal.GTE(prev),
			"per-share value must not decrease on swap %d", i)
		prev = res.NewState.Price.XcpProfitReal
		st = res.NewState
		balances = res.NewBalances
	}

	require.True(t, prev.GT(sdkmath.LegacyOneDec()), "fees must accrue to LPs")
}

// Swaps well beyond routine trade sizes must still price and settle. Each
// offer runs against a fresh balanced pool so the only variable is size.
func TestSwapLargeOffers(t *testing.T) {
	offers := []int64{
		5_000_000_000,  // 5% of the pool
		7_000_000_000,
		8_000_000_000,
		10_000_000_000,
		20_000_000_000,
		40_000_000_000,
		50_000_000_000,
	}
	loose := maxAllowedSlippage

	for _, offer := range offers {
		e := newTestEngine(t)
		env := types.Env{BlockTime: 1000, BlockHeight: 1}
		st, balances, totalShare := seedPool(t, e, env)

		env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
		dBefore, err := e.CurrentD(env2, st, balances)
		require.NoError(t, err)

		res, err := e.Swap(env2, st, balances, totalShare, 0, newInt(offer), types.FeeInfo{}, nil, &loose)
		require.NoError(t, err, "offer %d", offer)
		require.True(t, res.AmountOut.IsPositive(), "offer %d: no output", offer)
		require.True(t, res.AmountOut.LT(newInt(offer)),
			"offer %d: output %s above the ideal return", offer, res.AmountOut)

		dAfter, err := e.CurrentD(env2, res.NewState, res.NewBalances)
		require.NoError(t, err)
		require.True(t, dAfter.GTE(dBefore.Sub(dec("0.000001"))),
			"offer %d: D fell from %s to %s", offer, dBefore, dAfter)
	}
}

// A large trade leaves the pool skewed; follow-up trades in both directions
// must keep settling from that position.
func TestSwapSequenceAfterLargeTrade(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st, balances, totalShare := seedPool(t, e, env)
	loose := maxAllowedSlippage

	trades := []struct {
		offerIdx int
		amount   int64
	}{
		{0, 5_000_000_000}, // 5% of the pool
		{0, 5_000_000_000},
		{0, 10_000_000_000},
		{1, 5_000_000_000},
	}
	for i, tr := range trades {
		env = types.Env{BlockTime: env.BlockTime + 1, BlockHeight: env.BlockHeight + 1}
		res, err := e.Swap(env, st, balances, totalShare, tr.offerIdx, newInt(tr.amount), types.FeeInfo{}, nil, &loose)
		require.NoError(t, err, "trade %d", i)
		require.True(t, res.AmountOut.IsPositive(), "trade %d: no output", i)
		st = res.NewState
		balances = res.NewBalances
	}
}

// A pro-rata deposit mints shares in proportion to the pool no matter how
// skewed the holdings are; it is not an implicit trade and must not trip the
// slippage guard.
func TestProRataProvideIntoSkewedPool(t *testing.T) {
	e := newTestEngine(t)
	env := types.Env{BlockTime: 1000, BlockHeight: 1}
	st := freshState(t, env)
	st.Price.XcpProfit = sdkmath.LegacyOneDec()
	st.Price.XcpProfitReal = dec("0.94")

	balances := [2]sdkmath.Int{newInt(140_000_000_000), newInt(60_000_000_000)}
	totalShare := newInt(100_000_000_000)
	deposits := [2]sdkmath.Int{newInt(700), newInt(300)}

	env2 := types.Env{BlockTime: 1010, BlockHeight: 2}
	res, err := e.Provide(env2, st, balances, totalShare, deposits, nil)
	require.NoError(t, err, "pro-rata deposit must not be slippage-checked")
	require.True(t, res.Slippage.IsZero(), "got slippage %s", res.Slippage)
	require.True(t, res.MintShares.GTE(newInt(400)) && res.MintShares.LTE(newInt(600)),
		"expected a pro-rata mint near 500, got %s", res.MintShares)
}
