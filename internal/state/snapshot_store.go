// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// BalanceSnapshot is the pool's balances and share supply sealed at a block
// height. Snapshots back historical balance queries.
type BalanceSnapshot struct {
	Height     int64          `json:"height"`
	Balances   [2]sdkmath.Int `json:"balances"`
	TotalShare sdkmath.Int    `json:"total_share"`
}

// SaveBalanceSnapshot records the balances at a height. Re-saving the same
// height overwrites, so intra-block updates collapse into the final value.
func SaveBalanceSnapshot(snap BalanceSnapshot) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
		INSERT INTO balance_snapshots (height, balance_0, balance_1, total_share)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (height) DO UPDATE SET
			snapshot_timestamp = CURRENT_TIMESTAMP,
			balance_0 = EXCLUDED.balance_0,
			balance_1 = EXCLUDED.balance_1,
			total_share = EXCLUDED.total_share;`

	_, err := DB.Exec(stmt, snap.Height,
		snap.Balances[0].String(), snap.Balances[1].String(), snap.TotalShare.String())
	if err != nil {
		return fmt.Errorf("failed to save balance snapshot at height %d: %w", snap.Height, err)
	}

	log.Debug().Int64("height", snap.Height).Msg("Saved balance snapshot")
	return nil
}

// GetBalancesAtHeight returns the last snapshot at or before the given height,
// which is the balance state that was live at that height.
func GetBalancesAtHeight(height int64) (*BalanceSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT height, balance_0, balance_1, total_share
		FROM balance_snapshots
		WHERE height <= $1
		ORDER BY height DESC
		LIMIT 1;`

	var (
		snap                           BalanceSnapshot
		balance0, balance1, totalShare string
	)
	err := DB.QueryRow(query, height).Scan(&snap.Height, &balance0, &balance1, &totalShare)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no balance snapshot at or before height %d: %w", height, err)
		}
		return nil, fmt.Errorf("failed to load balance snapshot: %w", err)
	}

	if snap.Balances[0], err = parseInt(balance0); err != nil {
		return nil, err
	}
	if snap.Balances[1], err = parseInt(balance1); err != nil {
		return nil, err
	}
	if snap.TotalShare, err = parseInt(totalShare); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetRecentBalanceSnapshots returns up to limit snapshots, newest first.
func GetRecentBalanceSnapshots(limit int) ([]BalanceSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := DB.Query(`
		SELECT height, balance_0, balance_1, total_share
		FROM balance_snapshots
		ORDER BY height DESC
		LIMIT $1;`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []BalanceSnapshot
	for rows.Next() {
		var (
			snap                           BalanceSnapshot
			balance0, balance1, totalShare string
		)
		if err := rows.Scan(&snap.Height, &balance0, &balance1, &totalShare); err != nil {
			return nil, fmt.Errorf("failed to scan balance snapshot: %w", err)
		}
		if snap.Balances[0], err = parseInt(balance0); err != nil {
			return nil, err
		}
		if snap.Balances[1], err = parseInt(balance1); err != nil {
			return nil, err
		}
		if snap.TotalShare, err = parseInt(totalShare); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
