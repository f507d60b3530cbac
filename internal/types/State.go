/*

Mutable pool state: the amp/gamma promotion schedule and the price/profit
tracking block. State is passed by value through engine operations; the caller
persists whatever comes back.

*/

package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Env carries the block context an operation executes in.
type Env struct {
	BlockTime   int64 `json:"block_time"`
	BlockHeight int64 `json:"block_height"`
}

// PriceState tracks the internal reference price, its EMA oracle and the LP
// profit ratios used to gate repegs.
type PriceState struct {
	OraclePrice     sdkmath.LegacyDec `json:"oracle_price"`
	LastPrice       sdkmath.LegacyDec `json:"last_price"`
	PriceScale      sdkmath.LegacyDec `json:"price_scale"`
	LastPriceUpdate int64             `json:"last_price_update"`
	XcpProfit       sdkmath.LegacyDec `json:"xcp_profit"`
	XcpProfitReal   sdkmath.LegacyDec `json:"xcp_profit_real"`
}

// PoolState is the full mutable state of a pair: the amp/gamma interpolation
// endpoints and the price block.
type PoolState struct {
	Initial     AmpGamma   `json:"initial"`
	Future      AmpGamma   `json:"future"`
	InitialTime int64      `json:"initial_time"`
	FutureTime  int64      `json:"future_time"`
	Price       PriceState `json:"price_state"`
}

// NewPoolState builds the state of a freshly instantiated pool. Amp/gamma start
// flat (no promotion in flight) and all prices sit at the initial price scale.
// Profit ratios stay zero until the first liquidity arrives.
func NewPoolState(ampGamma AmpGamma, priceScale sdkmath.LegacyDec, env Env) (PoolState, error) {
	if err := ampGamma.Validate(); err != nil {
		return PoolState{}, err
	}
	if priceScale.IsNil() || !priceScale.IsPositive() {
		return PoolState{}, fmt.Errorf("%w: initial price scale must be positive", ErrInvalidPoolParams)
	}

	return PoolState{
		Initial:     ampGamma,
		Future:      ampGamma,
		InitialTime: 0,
		FutureTime:  env.BlockTime,
		Price: PriceState{
			OraclePrice:     priceScale,
			LastPrice:       priceScale,
			PriceScale:      priceScale,
			LastPriceUpdate: env.BlockTime,
			XcpProfit:       sdkmath.LegacyZeroDec(),
			XcpProfitReal:   sdkmath.LegacyZeroDec(),
		},
	}, nil
}

// Precisions is the immutable per-asset decimal precision pair, fixed at pool
// creation. Index 0 is the base asset, index 1 the quote asset.
type Precisions [2]uint8

func (p Precisions) Validate() error {
	for i, prec := range p {
		if prec > 18 {
			return fmt.Errorf("%w: asset %d precision %d exceeds 18", ErrInvalidPoolParams, i, prec)
		}
	}
	return nil
}
