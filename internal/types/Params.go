/*

Curve shape and fee parameters for a concentrated liquidity pair.

*/

package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Bounds enforced on pool parameters. Values outside these ranges either make
// the invariant solver unstable or let governance set economically absurd fees.
var (
	MinAmp   = sdkmath.LegacyNewDec(1)
	MaxAmp   = sdkmath.LegacyNewDec(100_000)
	MinGamma = sdkmath.LegacyNewDecWithPrec(1, 8)  // 0.00000001
	MaxGamma = sdkmath.LegacyNewDecWithPrec(2, 2)  // 0.02
)

const (
	// MinAmpGammaChangingTime is the minimum duration of an amp/gamma promotion.
	MinAmpGammaChangingTime int64 = 86_400
	// MaxMaHalfTime caps the oracle EMA half-life at one week.
	MaxMaHalfTime int64 = 7 * 86_400
)

// AmpGamma is the pair of curve shape parameters: amplification pushes the
// curve toward constant-sum, gamma controls how fast it decays back to
// constant-product away from balance.
type AmpGamma struct {
	Amp   sdkmath.LegacyDec `json:"amp"`
	Gamma sdkmath.LegacyDec `json:"gamma"`
}

func NewAmpGamma(amp, gamma sdkmath.LegacyDec) (AmpGamma, error) {
	ag := AmpGamma{Amp: amp, Gamma: gamma}
	if err := ag.Validate(); err != nil {
		return AmpGamma{}, err
	}
	return ag, nil
}

func (ag AmpGamma) Validate() error {
	if ag.Amp.IsNil() || ag.Gamma.IsNil() {
		return fmt.Errorf("%w: amp/gamma is nil", ErrInvalidPoolParams)
	}
	if ag.Amp.LT(MinAmp) || ag.Amp.GT(MaxAmp) {
		return fmt.Errorf("%w: amp %s not in [%s, %s]", ErrInvalidPoolParams, ag.Amp, MinAmp, MaxAmp)
	}
	if ag.Gamma.LT(MinGamma) || ag.Gamma.GT(MaxGamma) {
		return fmt.Errorf("%w: gamma %s not in [%s, %s]", ErrInvalidPoolParams, ag.Gamma, MinGamma, MaxGamma)
	}
	return nil
}

// PoolParams holds the fee curve and repeg tuning of a pool. Immutable except
// through a governance update.
type PoolParams struct {
	MidFee               sdkmath.LegacyDec `json:"mid_fee"`
	OutFee               sdkmath.LegacyDec `json:"out_fee"`
	FeeGamma             sdkmath.LegacyDec `json:"fee_gamma"`
	RepegProfitThreshold sdkmath.LegacyDec `json:"repeg_profit_threshold"`
	MinPriceScaleDelta   sdkmath.LegacyDec `json:"min_price_scale_delta"`
	// MaHalfTime is the oracle EMA half-life in seconds.
	MaHalfTime int64 `json:"ma_half_time"`
}

func (p PoolParams) Validate() error {
	one := sdkmath.LegacyOneDec()

	if p.MidFee.IsNil() || p.MidFee.IsNegative() || p.MidFee.GT(one) {
		return fmt.Errorf("%w: mid_fee %s must be within [0, 1]", ErrInvalidPoolParams, p.MidFee)
	}
	if p.OutFee.IsNil() || p.OutFee.LT(p.MidFee) || p.OutFee.GT(one) {
		return fmt.Errorf("%w: out_fee %s must be within [mid_fee, 1]", ErrInvalidPoolParams, p.OutFee)
	}
	if p.FeeGamma.IsNil() || !p.FeeGamma.IsPositive() || p.FeeGamma.GT(one) {
		return fmt.Errorf("%w: fee_gamma %s must be within (0, 1]", ErrInvalidPoolParams, p.FeeGamma)
	}
	if p.RepegProfitThreshold.IsNil() || p.RepegProfitThreshold.IsNegative() || p.RepegProfitThreshold.GTE(one) {
		return fmt.Errorf("%w: repeg_profit_threshold %s must be within [0, 1)", ErrInvalidPoolParams, p.RepegProfitThreshold)
	}
	if p.MinPriceScaleDelta.IsNil() || p.MinPriceScaleDelta.IsNegative() || p.MinPriceScaleDelta.GTE(one) {
		return fmt.Errorf("%w: min_price_scale_delta %s must be within [0, 1)", ErrInvalidPoolParams, p.MinPriceScaleDelta)
	}
	if p.MaHalfTime <= 0 || p.MaHalfTime > MaxMaHalfTime {
		return fmt.Errorf("%w: ma_half_time %d must be within (0, %d]", ErrInvalidPoolParams, p.MaHalfTime, MaxMaHalfTime)
	}
	return nil
}

// FeeInfo is the protocol-level fee routing supplied by the surrounding system.
// An empty recipient disables the maker share entirely.
type FeeInfo struct {
	MakerFeeRate sdkmath.LegacyDec `json:"maker_fee_rate"`
	FeeRecipient string            `json:"fee_recipient"`
}

func (f FeeInfo) MakerShare() sdkmath.LegacyDec {
	if f.FeeRecipient == "" || f.MakerFeeRate.IsNil() {
		return sdkmath.LegacyZeroDec()
	}
	return f.MakerFeeRate
}

func (f FeeInfo) Validate() error {
	if f.FeeRecipient == "" {
		return nil
	}
	if f.MakerFeeRate.IsNil() || f.MakerFeeRate.IsNegative() || f.MakerFeeRate.GT(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("%w: maker_fee_rate %s must be within [0, 1]", ErrInvalidPoolParams, f.MakerFeeRate)
	}
	return nil
}
