/*

This file contains the default pool parameters.

The values mirror battle-tested mainnet deployments of concentrated liquidity
pairs for volatile assets. They are used when no pool record exists in the
database at startup.

*/

package config

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cosmoswap-labs/pclpool/internal/types"
)

// DefaultPoolParams provides a baseline fee and repeg configuration.
var DefaultPoolParams = types.PoolParams{
	MidFee: sdkmath.LegacyMustNewDecFromStr("0.0026"), // 26 bps near balance.

	OutFee: sdkmath.LegacyMustNewDecFromStr("0.0045"), // 45 bps at maximal skew.

	FeeGamma: sdkmath.LegacyMustNewDecFromStr("0.00023"),
	// Small fee_gamma makes the fee ramp toward OutFee quickly once the pool
	// leaves balance.

	RepegProfitThreshold: sdkmath.LegacyMustNewDecFromStr("0.000002"),
	// Minimum banked profit above the half-profit floor before a repeg is
	// even considered.

	MinPriceScaleDelta: sdkmath.LegacyMustNewDecFromStr("0.000146"),
	// Oracle deviations below ~1.5 bps are noise and never move the scale.

	MaHalfTime: 600, // 10 minute EMA half-life.
}
