/*
This file contains the precision adapter between integer chain amounts at
heterogeneous native decimals and the engine's normalized 18-decimal internal
representation.
*/

package utils

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
)

// ToInternal converts an integer chain amount with the given native precision
// into the internal 18-decimal representation.
func ToInternal(amount sdkmath.Int, precision uint8) (sdkmath.LegacyDec, error) {
	if precision > 18 {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return sdkmath.LegacyDec{}, ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.LegacyDec{}, ErrAmountNegative
	}

	return sdkmath.LegacyNewDecFromIntWithPrec(amount, int64(precision)), nil
}

// ToChain converts an internal 18-decimal amount back to an integer chain
// amount at the given native precision, truncating any dust below one smallest
// unit.
func ToChain(amount sdkmath.LegacyDec, precision uint8) (sdkmath.Int, error) {
	if precision > 18 {
		return sdkmath.Int{}, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return sdkmath.Int{}, ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.Int{}, ErrAmountNegative
	}

	factor := sdkmath.LegacyNewDec(10).Power(uint64(precision))
	return amount.Mul(factor).TruncateInt(), nil
}
