package curve

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/cosmoswap-labs/pclpool/internal/types"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

func testAmpGamma(t *testing.T) types.AmpGamma {
	t.Helper()
	ag, err := types.NewAmpGamma(dec("40"), dec("0.000145"))
	require.NoError(t, err)
	return ag
}

// A perfectly balanced pool has D equal to the sum of its balances.
func TestCalcDBalanced(t *testing.T) {
	ag := testAmpGamma(t)
	xp := [2]sdkmath.LegacyDec{dec("100000"), dec("100000")}

	d, err := CalcD(xp, ag)
	require.NoError(t, err)
	require.True(t, d.Sub(dec("200000")).Abs().LTE(dec("0.000000001")),
		"expected D=200000, got %s", d)
}

func TestCalcDImbalanced(t *testing.T) {
	ag := testAmpGamma(t)
	xp := [2]sdkmath.LegacyDec{dec("150000"), dec("50000")}

	d, err := CalcD(xp, ag)
	require.NoError(t, err)

	// D sits between the constant-product bound 2*sqrt(x0*x1) and the
	// constant-sum bound x0+x1.
	lower := dec("173205.08")
	upper := dec("200000")
	require.True(t, d.GT(lower), "D=%s below constant-product bound", d)
	require.True(t, d.LT(upper), "D=%s above constant-sum bound", d)
}

func TestCalcDRejectsZeroBalance(t *testing.T) {
	ag := testAmpGamma(t)
	xp := [2]sdkmath.LegacyDec{sdkmath.LegacyZeroDec(), dec("100000")}

	_, err := CalcD(xp, ag)
	require.ErrorIs(t, err, types.ErrZeroBalance)
}

// CalcY must recover a balance that CalcD was computed from.
func TestCalcYRoundTrip(t *testing.T) {
	ag := testAmpGamma(t)
	xp := [2]sdkmath.LegacyDec{dec("123456.789"), dec("87654.321")}

	d, err := CalcD(xp, ag)
	require.NoError(t, err)

	y, err := CalcY(d, xp, 1, ag)
	require.NoError(t, err)
	require.True(t, y.Sub(xp[1]).Abs().LTE(dec("0.00000001")),
		"expected y=%s, got %s", xp[1], y)

	x, err := CalcY(d, xp, 0, ag)
	require.NoError(t, err)
	require.True(t, x.Sub(xp[0]).Abs().LTE(dec("0.00000001")),
		"expected x=%s, got %s", xp[0], x)
}

// Reference trade: 100 base into a 100000/100000 pool at amp=40,
// gamma=0.000145 returns just under 100 quote before fees.
func TestCalcYReferenceSwap(t *testing.T) {
	ag := testAmpGamma(t)
	xp := [2]sdkmath.LegacyDec{dec("100000"), dec("100000")}

	d, err := CalcD(xp, ag)
	require.NoError(t, err)

	xp[0] = xp[0].Add(dec("100"))
	y, err := CalcY(d, xp, 1, ag)
	require.NoError(t, err)

	dy := dec("100000").Sub(y)
	require.True(t, dy.Sub(dec("99.998748785")).Abs().LTE(dec("0.000001")),
		"expected dy close to 99.998748785, got %s", dy)
	require.True(t, dy.LT(dec("100")), "output cannot exceed the ideal return")
}

// The solver must settle for any offer size, not just small trades. Offers
// between 1% and 50% of a balanced pool all produce a positive, strictly
// increasing output below the ideal return.
func TestCalcYConvergesAcrossOfferSizes(t *testing.T) {
	ag := testAmpGamma(t)
	base := [2]sdkmath.LegacyDec{dec("100000"), dec("100000")}

	d, err := CalcD(base, ag)
	require.NoError(t, err)

	offers := []string{
		"1000", "5000", "6000", "7000", "8000", "9000",
		"10000", "20000", "30000", "40000", "50000",
	}
	prevDy := sdkmath.LegacyZeroDec()
	for _, offer := range offers {
		xp := base
		xp[0] = xp[0].Add(dec(offer))

		y, err := CalcY(d, xp, 1, ag)
		require.NoError(t, err, "offer %s", offer)

		dy := base[1].Sub(y)
		require.True(t, dy.IsPositive(), "offer %s: non-positive output %s", offer, dy)
		require.True(t, dy.LT(dec(offer)), "offer %s: output %s above the ideal return", offer, dy)
		require.True(t, dy.GT(prevDy), "offer %s: output %s did not grow past %s", offer, dy, prevDy)
		prevDy = dy
	}
}

// D must settle for any split of a fixed total, from perfect balance to a
// 99/1 skew, and always land between the constant-product and constant-sum
// bounds.
func TestCalcDConvergesAcrossImbalance(t *testing.T) {
	ag := testAmpGamma(t)
	total := dec("200000")
	tol := dec("0.000000001")

	splits := []string{
		"100000", "105000", "110000", "120000", "140000",
		"160000", "180000", "190000", "198000",
	}
	for _, x0 := range splits {
		xp := [2]sdkmath.LegacyDec{dec(x0), total.Sub(dec(x0))}

		d, err := CalcD(xp, ag)
		require.NoError(t, err, "x0=%s", x0)

		sqrtProd, err := xp[0].Mul(xp[1]).ApproxSqrt()
		require.NoError(t, err)
		lower := dec("2").Mul(sqrtProd)
		require.True(t, d.GTE(lower.Sub(tol)), "x0=%s: D=%s below constant-product bound %s", x0, d, lower)
		require.True(t, d.LTE(total.Add(tol)), "x0=%s: D=%s above constant-sum bound", x0, d)
	}
}

// Round trip through a heavily skewed pool: CalcY must recover the balance
// CalcD was computed from even far away from the price scale.
func TestCalcYRoundTripSkewed(t *testing.T) {
	ag := testAmpGamma(t)
	xp := [2]sdkmath.LegacyDec{dec("110000"), dec("90000")}

	d, err := CalcD(xp, ag)
	require.NoError(t, err)

	y, err := CalcY(d, xp, 1, ag)
	require.NoError(t, err)
	require.True(t, y.Sub(xp[1]).Abs().LTE(dec("0.00000001")),
		"expected y=%s, got %s", xp[1], y)
}

func TestCalcYRejectsBadIndex(t *testing.T) {
	ag := testAmpGamma(t)
	xp := [2]sdkmath.LegacyDec{dec("100"), dec("100")}

	_, err := CalcY(dec("200"), xp, 2, ag)
	require.ErrorIs(t, err, types.ErrInvalidAssetCount)
}

func TestGetXcp(t *testing.T) {
	xcp, err := GetXcp(dec("200000"), sdkmath.LegacyOneDec())
	require.NoError(t, err)
	require.True(t, xcp.Equal(dec("100000")))

	// Price scale 4 halves the balanced value relative to scale 1.
	xcp4, err := GetXcp(dec("200000"), dec("4"))
	require.NoError(t, err)
	require.True(t, xcp4.Equal(dec("50000")))
}
