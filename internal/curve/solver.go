/*

Bracketed Newton solvers for the blended constant-sum/constant-product
invariant.

The pool conserves D in

	K*D*(x0+x1) + x0*x1 = K*D^2 + (D/2)^2

where K = amp * gamma^2 * K0 / (gamma + 1 - K0)^2 and K0 = 4*x0*x1 / D^2.
At perfect balance K0 = 1 and the curve behaves like constant-sum; away from
balance K collapses toward zero and the curve degrades to constant-product.

With small gamma the curvature term K changes violently near K0 = 1, so an
unguarded Newton step can overshoot and oscillate. Both solvers therefore keep
the root bracketed: the residual has a known sign at each bracket end, every
iterate tightens the bracket, and a Newton step that leaves the bracket is
replaced by its midpoint. Bisection alone closes a bracket of any realistic
width well inside the iteration cap; Newton only accelerates the endgame.

All math runs on 18-decimal fixed point (cosmossdk.io/math.LegacyDec) backed by
big.Int, so intermediate products cannot overflow for any realistic balances.

*/

package curve

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/cosmoswap-labs/pclpool/internal/types"
)

// MaxIterations bounds every solver loop. Bisection needs at most ~70 steps to
// exhaust an 18-decimal bracket; hitting the cap is a fatal condition.
const MaxIterations = 255

var (
	one  = sdkmath.LegacyOneDec()
	two  = sdkmath.LegacyNewDec(2)
	four = sdkmath.LegacyNewDec(4)

	// convergenceTol is one order above the representable minimum to absorb
	// last-digit rounding oscillation in Quo.
	convergenceTol = sdkmath.LegacyNewDecWithPrec(1, 14)
)

// CalcD solves the invariant for D given internal balances xp (the quote
// balance pre-multiplied by price scale). The residual F(D) is non-negative at
// the constant-product bound 2*sqrt(x0*x1) and non-positive at the
// constant-sum bound x0+x1, so the root is bracketed between them for every
// positive balance pair.
func CalcD(xp [2]sdkmath.LegacyDec, ampGamma types.AmpGamma) (sdkmath.LegacyDec, error) {
	if !xp[0].IsPositive() || !xp[1].IsPositive() {
		return sdkmath.LegacyDec{}, types.ErrZeroBalance
	}

	prod := xp[0].Mul(xp[1])
	sum := xp[0].Add(xp[1])
	aGamma2 := ampGamma.Amp.Mul(ampGamma.Gamma).Mul(ampGamma.Gamma)

	sqrtProd, err := prod.ApproxSqrt()
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: sqrt of balance product: %w", types.ErrConvergence, err)
	}

	lo := two.Mul(sqrtProd)
	hi := sum
	d := hi

	for i := 0; i < MaxIterations; i++ {
		d2 := d.Mul(d)

		k0 := four.Mul(prod).Quo(d2)
		g := ampGamma.Gamma.Add(one).Sub(k0)
		if g.IsZero() {
			return sdkmath.LegacyDec{}, fmt.Errorf("%w: degenerate curvature term", types.ErrConvergence)
		}
		k := aGamma2.Mul(k0).Quo(g.Mul(g))

		f := k.Mul(d).Mul(sum).
			Add(prod).
			Sub(k.Mul(d2)).
			Sub(d2.Quo(four))

		// F decreases across the bracket.
		if f.IsPositive() {
			lo = d
		} else {
			hi = d
		}

		// K depends on D through K0; chain rule folds into the derivative.
		k0Prime := four.Mul(two).Mul(prod).Quo(d2.Mul(d)).Neg()
		kPrime := aGamma2.Mul(k0Prime).Mul(g.Add(two.Mul(k0))).Quo(g.Mul(g).Mul(g))
		fPrime := kPrime.Mul(d).Mul(sum.Sub(d)).
			Add(k.Mul(sum.Sub(two.Mul(d)))).
			Sub(d.Quo(two))

		next := lo.Add(hi).Quo(two)
		if !fPrime.IsZero() {
			newton := d.Sub(f.Quo(fPrime))
			if newton.Sub(d).Abs().LTE(convergenceTol) {
				if !newton.IsPositive() {
					return sdkmath.LegacyDec{}, fmt.Errorf("%w: non-positive D", types.ErrConvergence)
				}
				return newton, nil
			}
			if newton.GT(lo) && newton.LT(hi) {
				next = newton
			}
		}
		if hi.Sub(lo).LTE(convergenceTol) {
			return next, nil
		}
		d = next
	}

	return sdkmath.LegacyDec{}, fmt.Errorf("%w: D did not settle in %d iterations", types.ErrConvergence, MaxIterations)
}

// CalcY solves the invariant for the balance at askIdx given D and the other
// balance held fixed. On the curve 4*fixed*y <= D^2, so the root is bracketed
// between zero, where the residual is negative, and D^2/(4*fixed), where it is
// non-negative; within that bracket the curvature term stays finite.
func CalcY(d sdkmath.LegacyDec, xp [2]sdkmath.LegacyDec, askIdx int, ampGamma types.AmpGamma) (sdkmath.LegacyDec, error) {
	if askIdx != 0 && askIdx != 1 {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: ask index %d", types.ErrInvalidAssetCount, askIdx)
	}
	fixed := xp[1-askIdx]
	if !fixed.IsPositive() || !d.IsPositive() {
		return sdkmath.LegacyDec{}, types.ErrZeroBalance
	}

	d2 := d.Mul(d)
	aGamma2 := ampGamma.Amp.Mul(ampGamma.Gamma).Mul(ampGamma.Gamma)

	lo := sdkmath.LegacyZeroDec()
	hi := d2.Quo(four.Mul(fixed))
	y := hi

	for i := 0; i < MaxIterations; i++ {
		sum := fixed.Add(y)
		prod := fixed.Mul(y)

		k0 := four.Mul(prod).Quo(d2)
		g := ampGamma.Gamma.Add(one).Sub(k0)
		if g.IsZero() {
			return sdkmath.LegacyDec{}, fmt.Errorf("%w: degenerate curvature term", types.ErrConvergence)
		}
		k := aGamma2.Mul(k0).Quo(g.Mul(g))

		f := k.Mul(d).Mul(sum).
			Add(prod).
			Sub(k.Mul(d2)).
			Sub(d2.Quo(four))

		// G increases across the bracket.
		if f.IsNegative() {
			lo = y
		} else {
			hi = y
		}

		k0Prime := four.Mul(fixed).Quo(d2)
		kPrime := aGamma2.Mul(k0Prime).Mul(g.Add(two.Mul(k0))).Quo(g.Mul(g).Mul(g))
		fPrime := kPrime.Mul(d).Mul(sum.Sub(d)).
			Add(k.Mul(d)).
			Add(fixed)

		next := lo.Add(hi).Quo(two)
		if !fPrime.IsZero() {
			newton := y.Sub(f.Quo(fPrime))
			if newton.Sub(y).Abs().LTE(convergenceTol) {
				if !newton.IsPositive() {
					return sdkmath.LegacyDec{}, fmt.Errorf("%w: non-positive balance", types.ErrConvergence)
				}
				return newton, nil
			}
			if newton.GT(lo) && newton.LT(hi) {
				next = newton
			}
		}
		if hi.Sub(lo).LTE(convergenceTol) {
			if !next.IsPositive() {
				return sdkmath.LegacyDec{}, fmt.Errorf("%w: non-positive balance", types.ErrConvergence)
			}
			return next, nil
		}
		y = next
	}

	return sdkmath.LegacyDec{}, fmt.Errorf("%w: y did not settle in %d iterations", types.ErrConvergence, MaxIterations)
}

// GetXcp returns the balanced pool value D / (2*sqrt(priceScale)): the
// geometric mean of the internal balances a perfectly balanced pool with the
// same D would hold. Sizes the very first mint and feeds the profit ratio.
func GetXcp(d, priceScale sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	sqrtScale, err := priceScale.ApproxSqrt()
	if err != nil || sqrtScale.IsZero() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: price scale %s", types.ErrConvergence, priceScale)
	}
	return d.Quo(two.Mul(sqrtScale)), nil
}
