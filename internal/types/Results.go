package types

import (
	sdkmath "cosmossdk.io/math"
)

// Operation results carry both the computed effects and the successor state.
// The engine never persists anything itself; the calling layer applies the
// balance movements atomically and stores NewState.

// ProvideResult is the outcome of a liquidity provision.
type ProvideResult struct {
	// MintShares is the LP share amount to issue to the depositor, in
	// micro-share units.
	MintShares sdkmath.Int `json:"mint_shares"`
	// LockedShares is the permanently unmintable first-deposit lock. Zero on
	// every provide after the first.
	LockedShares sdkmath.Int `json:"locked_shares"`
	// Slippage realized against a perfectly balanced contribution.
	Slippage    sdkmath.LegacyDec `json:"slippage"`
	NewState    PoolState         `json:"new_state"`
	NewBalances [2]sdkmath.Int    `json:"new_balances"`
}

// WithdrawResult is the outcome of a pro-rata withdrawal.
type WithdrawResult struct {
	Refund      [2]sdkmath.Int `json:"refund"`
	BurnShares  sdkmath.Int    `json:"burn_shares"`
	NewState    PoolState      `json:"new_state"`
	NewBalances [2]sdkmath.Int `json:"new_balances"`
}

// SwapResult is the outcome of a swap. The ask-side pool balance decreases by
// exactly AmountOut + MakerFee; the LP-retained fee portion stays in the pool.
type SwapResult struct {
	AmountOut    sdkmath.Int    `json:"amount_out"`
	SpreadAmount sdkmath.Int    `json:"spread_amount"`
	TotalFee     sdkmath.Int    `json:"total_fee"`
	MakerFee     sdkmath.Int    `json:"maker_fee"`
	NewState     PoolState      `json:"new_state"`
	NewBalances  [2]sdkmath.Int `json:"new_balances"`
}

// SwapReceipt is the persisted trail of an executed swap, kept for the
// dashboard and offline analysis.
type SwapReceipt struct {
	Height       int64  `json:"height"`
	Timestamp    int64  `json:"timestamp"`
	OfferAsset   string `json:"offer_asset"`
	AskAsset     string `json:"ask_asset"`
	OfferAmount  string `json:"offer_amount"`
	ReturnAmount string `json:"return_amount"`
	SpreadAmount string `json:"spread_amount"`
	TotalFee     string `json:"total_fee"`
	MakerFee     string `json:"maker_fee"`
}
