/*

Amp/gamma promotion schedule. The pair of curve parameters moves linearly from
an initial snapshot to a future target over governance-chosen time; reads are a
pure interpolation, never mutation.

*/

package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/cosmoswap-labs/pclpool/internal/types"
)

// AmpGammaAt returns the curve parameters in effect at block time t.
func AmpGammaAt(st types.PoolState, t int64) types.AmpGamma {
	if t >= st.FutureTime || st.FutureTime <= st.InitialTime {
		return st.Future
	}
	if t <= st.InitialTime {
		return st.Initial
	}

	ratio := sdkmath.LegacyNewDec(t - st.InitialTime).
		Quo(sdkmath.LegacyNewDec(st.FutureTime - st.InitialTime))

	return types.AmpGamma{
		Amp:   st.Initial.Amp.Add(st.Future.Amp.Sub(st.Initial.Amp).Mul(ratio)),
		Gamma: st.Initial.Gamma.Add(st.Future.Gamma.Sub(st.Initial.Gamma).Mul(ratio)),
	}
}

// Promote schedules a move to new amp/gamma values finishing at futureTime.
// The currently interpolated value is snapshotted as the new starting point, so
// an in-flight promotion is superseded without a jump.
func Promote(st types.PoolState, env types.Env, next types.AmpGamma, futureTime int64) (types.PoolState, error) {
	if err := next.Validate(); err != nil {
		return types.PoolState{}, err
	}
	if futureTime-env.BlockTime < types.MinAmpGammaChangingTime {
		return types.PoolState{}, fmt.Errorf(
			"%w: promotion must run at least %d seconds",
			types.ErrInvalidPoolParams, types.MinAmpGammaChangingTime,
		)
	}

	st.Initial = AmpGammaAt(st, env.BlockTime)
	st.InitialTime = env.BlockTime
	st.Future = next
	st.FutureTime = futureTime
	return st, nil
}

// StopPromotion freezes the schedule at the currently interpolated value.
func StopPromotion(st types.PoolState, env types.Env) types.PoolState {
	current := AmpGammaAt(st, env.BlockTime)
	st.Initial = current
	st.Future = current
	st.InitialTime = env.BlockTime
	st.FutureTime = env.BlockTime
	return st
}
