// ./internal/state/observation_store.go
package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cosmoswap-labs/pclpool/internal/twap"
)

// SaveObservations replaces the persisted observation buffer with the given
// chronological entries and optional pending precommit. Runs in a single
// transaction so readers never see a half-written buffer.
func SaveObservations(entries []twap.Observation, pending *twap.PrecommitObservation) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM observations;`); err != nil {
		return fmt.Errorf("failed to clear observations: %w", err)
	}

	stmt := `
		INSERT INTO observations (position, ts, price, cumulative_price, cumulative_volume)
		VALUES ($1, $2, $3, $4, $5);`
	for i, obs := range entries {
		if _, err = tx.Exec(stmt, i, obs.Timestamp,
			obs.Price.String(), obs.CumulativePrice.String(), obs.CumulativeVolume.String()); err != nil {
			return fmt.Errorf("failed to insert observation %d: %w", i, err)
		}
	}

	if _, err = tx.Exec(`DELETE FROM observation_pending;`); err != nil {
		return fmt.Errorf("failed to clear pending observation: %w", err)
	}
	if pending != nil {
		pendingStmt := `
			INSERT INTO observation_pending (id, ts, base_amount, quote_amount)
			VALUES (1, $1, $2, $3);`
		if _, err = tx.Exec(pendingStmt, pending.Timestamp,
			pending.BaseAmount.String(), pending.QuoteAmount.String()); err != nil {
			return fmt.Errorf("failed to insert pending observation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit observations: %w", err)
	}

	log.Debug().Int("entries", len(entries)).Msg("Saved observation buffer")
	return nil
}

// LoadObservations rebuilds the observation buffer from the database.
func LoadObservations(capacity int) (*twap.Buffer, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.Query(`
		SELECT ts, price, cumulative_price, cumulative_volume
		FROM observations ORDER BY position ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var entries []twap.Observation
	for rows.Next() {
		var (
			obs                         twap.Observation
			price, cumPrice, cumVolume string
		)
		if err := rows.Scan(&obs.Timestamp, &price, &cumPrice, &cumVolume); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if obs.Price, err = parseDec(price); err != nil {
			return nil, err
		}
		if obs.CumulativePrice, err = parseDec(cumPrice); err != nil {
			return nil, err
		}
		if obs.CumulativeVolume, err = parseDec(cumVolume); err != nil {
			return nil, err
		}
		entries = append(entries, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating observations: %w", err)
	}

	var pending *twap.PrecommitObservation
	var baseAmount, quoteAmount string
	var pc twap.PrecommitObservation
	err = DB.QueryRow(`SELECT ts, base_amount, quote_amount FROM observation_pending WHERE id = 1;`).
		Scan(&pc.Timestamp, &baseAmount, &quoteAmount)
	switch err {
	case nil:
		if pc.BaseAmount, err = parseDec(baseAmount); err != nil {
			return nil, err
		}
		if pc.QuoteAmount, err = parseDec(quoteAmount); err != nil {
			return nil, err
		}
		pending = &pc
	case sql.ErrNoRows:
		// no pending precommit
	default:
		return nil, fmt.Errorf("failed to load pending observation: %w", err)
	}

	log.Debug().Int("entries", len(entries)).Msg("Loaded observation buffer")
	return twap.Restore(capacity, entries, pending), nil
}
