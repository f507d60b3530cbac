// ./internal/state/pool_store.go
package state

import (
	"database/sql"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/cosmoswap-labs/pclpool/internal/types"
)

// PoolRecord is the full persisted pool: economic state plus the balances and
// share supply the engine was last applied against.
type PoolRecord struct {
	State      types.PoolState
	Balances   [2]sdkmath.Int
	TotalShare sdkmath.Int
}

// SavePoolRecord upserts the single pool row. The record is written as one
// statement so a crash can never leave state and balances from different
// operations.
func SavePoolRecord(rec PoolRecord) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
		INSERT INTO pool_record (
			id, updated_at,
			initial_amp, initial_gamma, future_amp, future_gamma,
			initial_time, future_time,
			oracle_price, last_price, price_scale, last_price_update,
			xcp_profit, xcp_profit_real,
			balance_0, balance_1, total_share
		) VALUES (
			1, CURRENT_TIMESTAMP,
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9, $10,
			$11, $12,
			$13, $14, $15
		)
		ON CONFLICT (id) DO UPDATE SET
			updated_at = CURRENT_TIMESTAMP,
			initial_amp = EXCLUDED.initial_amp, initial_gamma = EXCLUDED.initial_gamma,
			future_amp = EXCLUDED.future_amp, future_gamma = EXCLUDED.future_gamma,
			initial_time = EXCLUDED.initial_time, future_time = EXCLUDED.future_time,
			oracle_price = EXCLUDED.oracle_price, last_price = EXCLUDED.last_price,
			price_scale = EXCLUDED.price_scale, last_price_update = EXCLUDED.last_price_update,
			xcp_profit = EXCLUDED.xcp_profit, xcp_profit_real = EXCLUDED.xcp_profit_real,
			balance_0 = EXCLUDED.balance_0, balance_1 = EXCLUDED.balance_1,
			total_share = EXCLUDED.total_share;`

	st := rec.State
	_, err := DB.Exec(stmt,
		st.Initial.Amp.String(), st.Initial.Gamma.String(),
		st.Future.Amp.String(), st.Future.Gamma.String(),
		st.InitialTime, st.FutureTime,
		st.Price.OraclePrice.String(), st.Price.LastPrice.String(),
		st.Price.PriceScale.String(), st.Price.LastPriceUpdate,
		st.Price.XcpProfit.String(), st.Price.XcpProfitReal.String(),
		rec.Balances[0].String(), rec.Balances[1].String(),
		rec.TotalShare.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save pool record: %w", err)
	}

	log.Debug().
		Str("price_scale", st.Price.PriceScale.String()).
		Str("total_share", rec.TotalShare.String()).
		Msg("Saved pool record")
	return nil
}

// LoadPoolRecord reads the single pool row. Returns sql.ErrNoRows wrapped if
// the pool has not been initialized yet.
func LoadPoolRecord() (*PoolRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT initial_amp, initial_gamma, future_amp, future_gamma,
		       initial_time, future_time,
		       oracle_price, last_price, price_scale, last_price_update,
		       xcp_profit, xcp_profit_real,
		       balance_0, balance_1, total_share
		FROM pool_record WHERE id = 1;`

	var (
		initialAmp, initialGamma, futureAmp, futureGamma string
		oraclePrice, lastPrice, priceScale               string
		xcpProfit, xcpProfitReal                         string
		balance0, balance1, totalShare                   string
		rec                                              PoolRecord
	)
	err := DB.QueryRow(query).Scan(
		&initialAmp, &initialGamma, &futureAmp, &futureGamma,
		&rec.State.InitialTime, &rec.State.FutureTime,
		&oraclePrice, &lastPrice, &priceScale, &rec.State.Price.LastPriceUpdate,
		&xcpProfit, &xcpProfitReal,
		&balance0, &balance1, &totalShare,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no pool record found: %w", err)
		}
		return nil, fmt.Errorf("failed to load pool record: %w", err)
	}

	if rec.State.Initial.Amp, err = parseDec(initialAmp); err != nil {
		return nil, err
	}
	if rec.State.Initial.Gamma, err = parseDec(initialGamma); err != nil {
		return nil, err
	}
	if rec.State.Future.Amp, err = parseDec(futureAmp); err != nil {
		return nil, err
	}
	if rec.State.Future.Gamma, err = parseDec(futureGamma); err != nil {
		return nil, err
	}
	if rec.State.Price.OraclePrice, err = parseDec(oraclePrice); err != nil {
		return nil, err
	}
	if rec.State.Price.LastPrice, err = parseDec(lastPrice); err != nil {
		return nil, err
	}
	if rec.State.Price.PriceScale, err = parseDec(priceScale); err != nil {
		return nil, err
	}
	if rec.State.Price.XcpProfit, err = parseDec(xcpProfit); err != nil {
		return nil, err
	}
	if rec.State.Price.XcpProfitReal, err = parseDec(xcpProfitReal); err != nil {
		return nil, err
	}
	if rec.Balances[0], err = parseInt(balance0); err != nil {
		return nil, err
	}
	if rec.Balances[1], err = parseInt(balance1); err != nil {
		return nil, err
	}
	if rec.TotalShare, err = parseInt(totalShare); err != nil {
		return nil, err
	}

	return &rec, nil
}

func parseDec(s string) (sdkmath.LegacyDec, error) {
	d, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("corrupt decimal column %q: %w", s, err)
	}
	return d, nil
}

func parseInt(s string) (sdkmath.Int, error) {
	i, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("corrupt integer column %q", s)
	}
	return i, nil
}
