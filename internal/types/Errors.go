package types

import "errors"

// All engine failures are synchronous and abort the whole operation with no
// persisted side effects. Callers may resubmit with different parameters; the
// engine never retries internally.

// Validation errors: malformed requests or init parameters.
var (
	ErrInvalidPoolParams  = errors.New("pool parameters are invalid")
	ErrInvalidAssetCount  = errors.New("pool operations accept exactly two assets")
	ErrDuplicateAsset     = errors.New("pool assets must be distinct")
	ErrNothingToProvide   = errors.New("nothing to provide")
	ErrInsufficientShares = errors.New("withdraw amount exceeds redeemable share supply")
)

// Arithmetic errors: fatal, non-retryable numeric failures.
var (
	ErrConvergence = errors.New("invariant solver did not converge")
	ErrZeroBalance = errors.New("pool balance is zero")
	ErrZeroShares  = errors.New("total share supply is zero")
)

// Guard violations: the operation was well-formed but tripped a protective
// limit before any state was written.
var (
	ErrZeroAmount             = errors.New("amount must be positive")
	ErrSlippageExceeded       = errors.New("operation exceeds allowed slippage tolerance")
	ErrMaxSpreadAssertion     = errors.New("operation exceeds max spread limit")
	ErrMinimumLiquidityAmount = errors.New("initial share amount cannot cover the minimum liquidity lock")
	ErrObservationOutOfRange  = errors.New("requested observation predates the retained buffer span")
)

// State errors: operation attempted before required setup completed.
var (
	ErrPoolNotReady = errors.New("pool is not initialized")
)

// Unsupported operations.
var (
	ErrUnsupportedOperation = errors.New("imbalanced withdraw is disabled")
)
