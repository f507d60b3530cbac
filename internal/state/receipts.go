// ./internal/state/receipts.go
package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cosmoswap-labs/pclpool/internal/types"
)

// SaveSwapReceipt appends an executed swap to the audit trail.
func SaveSwapReceipt(receipt types.SwapReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	stmt := `
		INSERT INTO swap_receipts (
			height, ts, offer_asset, ask_asset,
			offer_amount, return_amount, spread_amount, total_fee, maker_fee
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING receipt_id;`

	var receiptID int64
	err := DB.QueryRow(stmt,
		receipt.Height, receipt.Timestamp, receipt.OfferAsset, receipt.AskAsset,
		receipt.OfferAmount, receipt.ReturnAmount, receipt.SpreadAmount,
		receipt.TotalFee, receipt.MakerFee,
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert swap receipt: %w", err)
	}

	log.Debug().
		Int64("receipt_id", receiptID).
		Str("offer_asset", receipt.OfferAsset).
		Msg("Saved swap receipt")
	return receiptID, nil
}

// GetRecentSwapReceipts returns up to limit receipts, newest first.
func GetRecentSwapReceipts(limit int) ([]types.SwapReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := DB.Query(`
		SELECT height, ts, offer_asset, ask_asset,
		       offer_amount, return_amount, spread_amount, total_fee, maker_fee
		FROM swap_receipts
		ORDER BY receipt_id DESC
		LIMIT $1;`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query swap receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.SwapReceipt
	for rows.Next() {
		var r types.SwapReceipt
		if err := rows.Scan(
			&r.Height, &r.Timestamp, &r.OfferAsset, &r.AskAsset,
			&r.OfferAmount, &r.ReturnAmount, &r.SpreadAmount, &r.TotalFee, &r.MakerFee,
		); err != nil {
			return nil, fmt.Errorf("failed to scan swap receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}
