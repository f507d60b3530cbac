package ledger

import (
	"context"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
)

// MemoryLedger is an in-process Ledger used for simulation and tests. Safe
// for concurrent use.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]sdkmath.Int
	supplies map[string]sdkmath.Int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]sdkmath.Int),
		supplies: make(map[string]sdkmath.Int),
	}
}

func (l *MemoryLedger) Balance(_ context.Context, denom string) (sdkmath.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if amount, ok := l.balances[denom]; ok {
		return amount, nil
	}
	return sdkmath.ZeroInt(), nil
}

func (l *MemoryLedger) TotalSupply(_ context.Context, denom string) (sdkmath.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if amount, ok := l.supplies[denom]; ok {
		return amount, nil
	}
	return sdkmath.ZeroInt(), nil
}

func (l *MemoryLedger) DenomExists(_ context.Context, denom string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, inBalances := l.balances[denom]
	_, inSupplies := l.supplies[denom]
	return inBalances || inSupplies, nil
}

func (l *MemoryLedger) Close() error { return nil }

// SetBalance overwrites the pool's balance of denom.
func (l *MemoryLedger) SetBalance(denom string, amount sdkmath.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[denom] = amount
}

// AdjustBalance applies a signed delta to the pool's balance of denom.
func (l *MemoryLedger) AdjustBalance(denom string, delta sdkmath.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.balances[denom]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	next := current.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("balance of %s would go negative", denom)
	}
	l.balances[denom] = next
	return nil
}

// SetSupply overwrites the circulating supply of denom.
func (l *MemoryLedger) SetSupply(denom string, amount sdkmath.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.supplies[denom] = amount
}

// AdjustSupply applies a signed delta to the circulating supply of denom.
func (l *MemoryLedger) AdjustSupply(denom string, delta sdkmath.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.supplies[denom]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	next := current.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("supply of %s would go negative", denom)
	}
	l.supplies[denom] = next
	return nil
}
