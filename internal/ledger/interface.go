package ledger

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// Ledger abstracts where the pool's asset balances and LP share supply live.
// This allows for different backends (live chain bank module, in-memory for
// simulation and tests).
type Ledger interface {
	// Balance returns the amount of denom held by the pool account.
	Balance(ctx context.Context, denom string) (sdkmath.Int, error)

	// TotalSupply returns the circulating supply of the LP share denom,
	// including the permanently locked minimum liquidity.
	TotalSupply(ctx context.Context, denom string) (sdkmath.Int, error)

	// DenomExists reports whether the denom is known to the backend.
	DenomExists(ctx context.Context, denom string) (bool, error)

	// Close cleans up any resources used by the ledger.
	Close() error
}
