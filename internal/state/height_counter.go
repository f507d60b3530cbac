/*

This file manages the persistent block height tracker. The last applied
height is stored in the database so the daemon resumes where it left off
after a restart.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// GetCurrentHeight retrieves the last applied block height from the database.
func GetCurrentHeight() (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT current_height FROM height_counter WHERE id = 1;`

	var currentHeight int64
	row := DB.QueryRow(query)
	err := row.Scan(&currentHeight)

	if err != nil {
		if err == sql.ErrNoRows {
			// Should not happen: EnsureSchema inserts the initial row.
			log.Warn().Msg("No height counter row found, initializing to 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current height: %w", err)
	}

	log.Debug().Int64("currentHeight", currentHeight).Msg("Retrieved current height")
	return currentHeight, nil
}

// SetCurrentHeight records the last applied block height. Rejects moves
// backwards, which would indicate the daemon replaying old blocks.
func SetCurrentHeight(height int64) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if height < 0 {
		return fmt.Errorf("height cannot be negative: %d", height)
	}

	updateQuery := `
		UPDATE height_counter
		SET current_height = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1 AND current_height <= $1;`

	result, err := DB.Exec(updateQuery, height)
	if err != nil {
		return fmt.Errorf("failed to set current height to %d: %w", height, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("height %d is behind the recorded height", height)
	}

	return nil
}
