/*

Circular log of per-block trade observations backing the TWAP oracle.

Trades never land in the ring directly. They accumulate in a single pending
precommit slot keyed by the block timestamp; the first write of a later block
flushes the slot into the ring. A block's trades therefore become visible to
readers only once the block is sealed, which is what makes the oracle resistant
to intra-block manipulation, and the ring holds at most one entry per block.

*/

package twap

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cosmoswap-labs/pclpool/internal/types"
)

// DefaultCapacity of the observation ring.
const DefaultCapacity = 3000

// Observation is one committed per-block data point. Price is the average
// trade price of the block (base amount per quote amount, same orientation as
// the pool's price scale). CumulativePrice accumulates price-seconds and
// CumulativeVolume the base-side volume across the buffer's lifetime.
type Observation struct {
	Timestamp        int64             `json:"timestamp"`
	Price            sdkmath.LegacyDec `json:"price"`
	CumulativePrice  sdkmath.LegacyDec `json:"cumulative_price"`
	CumulativeVolume sdkmath.LegacyDec `json:"cumulative_volume"`
}

// PrecommitObservation accumulates the current block's trade sizes until the
// next block commits them. At most one exists at a time.
type PrecommitObservation struct {
	Timestamp   int64             `json:"timestamp"`
	BaseAmount  sdkmath.LegacyDec `json:"base_amount"`
	QuoteAmount sdkmath.LegacyDec `json:"quote_amount"`
}

// Buffer is the fixed-capacity ring plus the pending precommit slot. It is not
// safe for concurrent use; the surrounding ledger serializes operations.
type Buffer struct {
	capacity int
	entries  []Observation
	cursor   int // next write position
	count    int
	pending  *PrecommitObservation
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		entries:  make([]Observation, capacity),
	}
}

func (b *Buffer) Capacity() int { return b.capacity }
func (b *Buffer) Count() int    { return b.count }

// Pending returns the uncommitted precommit slot, or nil.
func (b *Buffer) Pending() *PrecommitObservation {
	if b.pending == nil {
		return nil
	}
	cp := *b.pending
	return &cp
}

// Accumulate merges a trade into the pending slot for the current block.
func (b *Buffer) Accumulate(env types.Env, baseAmount, quoteAmount sdkmath.LegacyDec) {
	if b.pending != nil && b.pending.Timestamp == env.BlockTime {
		b.pending.BaseAmount = b.pending.BaseAmount.Add(baseAmount)
		b.pending.QuoteAmount = b.pending.QuoteAmount.Add(quoteAmount)
		return
	}
	b.pending = &PrecommitObservation{
		Timestamp:   env.BlockTime,
		BaseAmount:  baseAmount,
		QuoteAmount: quoteAmount,
	}
}

// Commit flushes the previous block's pending observation into the ring. Must
// be called at the start of every state-mutating operation; it is a no-op
// within the block that produced the pending data.
func (b *Buffer) Commit(env types.Env) {
	if b.pending == nil || b.pending.Timestamp >= env.BlockTime {
		return
	}
	pc := *b.pending
	b.pending = nil

	if pc.QuoteAmount.IsZero() {
		return
	}
	price := pc.BaseAmount.Quo(pc.QuoteAmount)

	cumPrice := sdkmath.LegacyZeroDec()
	cumVolume := pc.BaseAmount
	if last := b.newest(); last != nil {
		elapsed := pc.Timestamp - last.Timestamp
		cumPrice = last.CumulativePrice.Add(price.MulInt64(elapsed))
		cumVolume = last.CumulativeVolume.Add(pc.BaseAmount)
	}

	b.entries[b.cursor] = Observation{
		Timestamp:        pc.Timestamp,
		Price:            price,
		CumulativePrice:  cumPrice,
		CumulativeVolume: cumVolume,
	}
	b.cursor = (b.cursor + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// Observe returns the trade price secondsAgo seconds before now. Zero returns
// the newest committed price; older targets are linearly interpolated between
// the two bracketing entries. Targets beyond the oldest retained entry fail
// with ErrObservationOutOfRange.
func (b *Buffer) Observe(now, secondsAgo int64) (sdkmath.LegacyDec, error) {
	newest := b.newest()
	if newest == nil {
		return sdkmath.LegacyDec{}, types.ErrObservationOutOfRange
	}
	if secondsAgo <= 0 {
		return newest.Price, nil
	}

	target := now - secondsAgo
	oldest := b.at(0)
	if target < oldest.Timestamp {
		return sdkmath.LegacyDec{}, types.ErrObservationOutOfRange
	}
	if target >= newest.Timestamp {
		return newest.Price, nil
	}

	for i := b.count - 1; i > 0; i-- {
		right := b.at(i)
		left := b.at(i - 1)
		if left.Timestamp <= target && target <= right.Timestamp {
			if target == left.Timestamp {
				return left.Price, nil
			}
			span := right.Timestamp - left.Timestamp
			offset := target - left.Timestamp
			delta := right.Price.Sub(left.Price).MulInt64(offset).QuoInt64(span)
			return left.Price.Add(delta), nil
		}
	}

	return sdkmath.LegacyDec{}, types.ErrObservationOutOfRange
}

// Entries returns the committed observations in chronological order.
func (b *Buffer) Entries() []Observation {
	out := make([]Observation, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = *b.at(i)
	}
	return out
}

// Restore rebuilds a buffer from persisted entries (chronological) and an
// optional pending precommit.
func Restore(capacity int, entries []Observation, pending *PrecommitObservation) *Buffer {
	b := NewBuffer(capacity)
	if len(entries) > b.capacity {
		entries = entries[len(entries)-b.capacity:]
	}
	copy(b.entries, entries)
	b.count = len(entries)
	b.cursor = b.count % b.capacity
	if pending != nil {
		cp := *pending
		b.pending = &cp
	}
	return b
}

// at returns the i-th committed entry in chronological order.
func (b *Buffer) at(i int) *Observation {
	idx := (b.cursor + b.capacity - b.count + i) % b.capacity
	return &b.entries[idx]
}

func (b *Buffer) newest() *Observation {
	if b.count == 0 {
		return nil
	}
	return b.at(b.count - 1)
}
