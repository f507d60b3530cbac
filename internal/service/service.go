package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/cosmoswap-labs/pclpool/internal/ledger"
	"github.com/cosmoswap-labs/pclpool/internal/logger"
	"github.com/cosmoswap-labs/pclpool/internal/pool"
	"github.com/cosmoswap-labs/pclpool/internal/state"
	"github.com/cosmoswap-labs/pclpool/internal/types"
)

// PoolService owns the live pool: it serializes operations, feeds them through
// the engine, and persists every successor state before acknowledging. It is
// the only writer of the pool record.
type PoolService struct {
	logger zerolog.Logger
	engine *pool.Engine
	ledger ledger.Ledger

	feeInfo       types.FeeInfo
	shareDenom    string
	trackBalances bool

	mu         sync.RWMutex
	poolState  types.PoolState
	balances   [2]sdkmath.Int
	totalShare sdkmath.Int
	height     int64
	lastTime   int64
}

// Config holds the dependencies for creating a new PoolService instance.
type Config struct {
	Engine        *pool.Engine
	Ledger        ledger.Ledger
	Record        *state.PoolRecord
	FeeInfo       types.FeeInfo
	ShareDenom    string
	StartHeight   int64
	TrackBalances bool
}

// NewPoolService creates a pool service with dependency injection.
func NewPoolService(cfg Config) (*PoolService, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Record == nil {
		return nil, fmt.Errorf("pool record cannot be nil")
	}
	if cfg.ShareDenom == "" {
		return nil, fmt.Errorf("share denom cannot be empty")
	}
	if err := cfg.FeeInfo.Validate(); err != nil {
		return nil, err
	}

	return &PoolService{
		logger:        logger.GetForComponent("pool-service"),
		engine:        cfg.Engine,
		ledger:        cfg.Ledger,
		feeInfo:       cfg.FeeInfo,
		shareDenom:    cfg.ShareDenom,
		trackBalances: cfg.TrackBalances,
		poolState:     cfg.Record.State,
		balances:      cfg.Record.Balances,
		totalShare:    cfg.Record.TotalShare,
		height:        cfg.StartHeight,
	}, nil
}

// Snapshot returns a consistent copy of the live pool for read paths.
func (s *PoolService) Snapshot() (types.PoolState, [2]sdkmath.Int, sdkmath.Int, types.Env) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poolState, s.balances, s.totalShare, types.Env{
		BlockTime:   time.Now().Unix(),
		BlockHeight: s.height,
	}
}

func (s *PoolService) Engine() *pool.Engine { return s.engine }

// nextEnv seals a new block for a mutating operation. Operations landing in
// the same second share a block, which is what lets the observation precommit
// merge them.
func (s *PoolService) nextEnv() types.Env {
	now := time.Now().Unix()
	if now > s.lastTime {
		s.height++
		s.lastTime = now
	}
	return types.Env{BlockTime: s.lastTime, BlockHeight: s.height}
}

// Provide executes a liquidity provision and persists the result.
func (s *PoolService) Provide(
	deposits [2]sdkmath.Int,
	slippageTolerance *sdkmath.LegacyDec,
) (types.ProvideResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := s.nextEnv()
	res, err := s.engine.Provide(env, s.poolState, s.balances, s.totalShare, deposits, slippageTolerance)
	if err != nil {
		return types.ProvideResult{}, err
	}

	newShare := s.totalShare.Add(res.MintShares).Add(res.LockedShares)
	if err := s.persist(env, res.NewState, res.NewBalances, newShare); err != nil {
		return types.ProvideResult{}, err
	}

	s.logger.Info().
		Str("mint_shares", res.MintShares.String()).
		Int64("height", env.BlockHeight).
		Msg("provide applied")
	return res, nil
}

// Withdraw executes a pro-rata withdrawal and persists the result.
func (s *PoolService) Withdraw(lpAmount sdkmath.Int) (types.WithdrawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := s.nextEnv()
	res, err := s.engine.Withdraw(env, s.poolState, s.balances, s.totalShare, lpAmount, nil)
	if err != nil {
		return types.WithdrawResult{}, err
	}

	newShare := s.totalShare.Sub(res.BurnShares)
	if err := s.persist(env, res.NewState, res.NewBalances, newShare); err != nil {
		return types.WithdrawResult{}, err
	}

	s.logger.Info().
		Str("burn_shares", res.BurnShares.String()).
		Int64("height", env.BlockHeight).
		Msg("withdraw applied")
	return res, nil
}

// Swap executes a swap, persists the result and records a receipt.
func (s *PoolService) Swap(
	offerIdx int,
	offerAmount sdkmath.Int,
	beliefPrice, maxSpread *sdkmath.LegacyDec,
) (types.SwapResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := s.nextEnv()
	res, err := s.engine.Swap(env, s.poolState, s.balances, s.totalShare,
		offerIdx, offerAmount, s.feeInfo, beliefPrice, maxSpread)
	if err != nil {
		return types.SwapResult{}, err
	}

	if err := s.persist(env, res.NewState, res.NewBalances, s.totalShare); err != nil {
		return types.SwapResult{}, err
	}

	denoms := s.engine.Denoms()
	receipt := types.SwapReceipt{
		Height:       env.BlockHeight,
		Timestamp:    env.BlockTime,
		OfferAsset:   denoms[offerIdx],
		AskAsset:     denoms[1-offerIdx],
		OfferAmount:  offerAmount.String(),
		ReturnAmount: res.AmountOut.String(),
		SpreadAmount: res.SpreadAmount.String(),
		TotalFee:     res.TotalFee.String(),
		MakerFee:     res.MakerFee.String(),
	}
	if _, err := state.SaveSwapReceipt(receipt); err != nil {
		// The swap itself is already durable; a lost receipt is log-worthy
		// but not fatal.
		s.logger.Error().Err(err).Msg("failed to save swap receipt")
	}

	return res, nil
}

// PromoteAmpGamma schedules an amp/gamma promotion.
func (s *PoolService) PromoteAmpGamma(next types.AmpGamma, futureTime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := s.nextEnv()
	newState, err := pool.Promote(s.poolState, env, next, futureTime)
	if err != nil {
		return err
	}
	return s.persist(env, newState, s.balances, s.totalShare)
}

// StopPromotion freezes the amp/gamma schedule at the interpolated value.
func (s *PoolService) StopPromotion() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := s.nextEnv()
	newState := pool.StopPromotion(s.poolState, env)
	return s.persist(env, newState, s.balances, s.totalShare)
}

// persist writes the successor state, balances and observation buffer, then
// swaps them in. Caller holds the write lock.
func (s *PoolService) persist(env types.Env, newState types.PoolState, newBalances [2]sdkmath.Int, newShare sdkmath.Int) error {
	rec := state.PoolRecord{
		State:      newState,
		Balances:   newBalances,
		TotalShare: newShare,
	}
	if err := state.SavePoolRecord(rec); err != nil {
		return fmt.Errorf("persist pool record: %w", err)
	}
	buf := s.engine.Buffer()
	if err := state.SaveObservations(buf.Entries(), buf.Pending()); err != nil {
		return fmt.Errorf("persist observations: %w", err)
	}
	if s.trackBalances {
		snap := state.BalanceSnapshot{
			Height:     env.BlockHeight,
			Balances:   newBalances,
			TotalShare: newShare,
		}
		if err := state.SaveBalanceSnapshot(snap); err != nil {
			return fmt.Errorf("persist balance snapshot: %w", err)
		}
	}
	if err := state.SetCurrentHeight(env.BlockHeight); err != nil {
		return fmt.Errorf("persist height: %w", err)
	}

	s.poolState = newState
	s.balances = newBalances
	s.totalShare = newShare
	return nil
}

// Reconcile compares the tracked balances against the ledger and adopts the
// ledger's view. Donations sent directly to the pool account show up here and
// accrue to LPs through the profit counters on the next trade.
func (s *PoolService) Reconcile(ctx context.Context) error {
	denoms := s.engine.Denoms()

	var ledgerBalances [2]sdkmath.Int
	for i := 0; i < 2; i++ {
		amount, err := s.ledger.Balance(ctx, denoms[i])
		if err != nil {
			return fmt.Errorf("reconcile balance of %s: %w", denoms[i], err)
		}
		ledgerBalances[i] = amount
	}
	ledgerShare, err := s.ledger.TotalSupply(ctx, s.shareDenom)
	if err != nil {
		return fmt.Errorf("reconcile share supply: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ledgerBalances[0].Equal(s.balances[0]) &&
		ledgerBalances[1].Equal(s.balances[1]) &&
		ledgerShare.Equal(s.totalShare) {
		return nil
	}

	s.logger.Warn().
		Str("tracked_0", s.balances[0].String()).
		Str("ledger_0", ledgerBalances[0].String()).
		Str("tracked_1", s.balances[1].String()).
		Str("ledger_1", ledgerBalances[1].String()).
		Msg("tracked balances diverged from ledger, adopting ledger view")

	env := s.nextEnv()
	return s.persist(env, s.poolState, ledgerBalances, ledgerShare)
}

// RunLoop reconciles against the ledger on a fixed interval until the context
// is cancelled.
func (s *PoolService) RunLoop(ctx context.Context, interval time.Duration) {
	s.logger.Info().Dur("interval", interval).Msg("Starting reconcile loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Reconcile loop stopped due to context cancellation")
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Reconcile failed")
			}
		}
	}
}
