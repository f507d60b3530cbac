package twap

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/cosmoswap-labs/pclpool/internal/types"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

func env(ts int64) types.Env {
	return types.Env{BlockTime: ts, BlockHeight: ts}
}

func TestAccumulateMergesSameBlock(t *testing.T) {
	b := NewBuffer(5)

	b.Accumulate(env(100), dec("10"), dec("5"))
	b.Accumulate(env(100), dec("10"), dec("5"))

	pending := b.Pending()
	require.NotNil(t, pending)
	require.Equal(t, int64(100), pending.Timestamp)
	require.True(t, pending.BaseAmount.Equal(dec("20")))
	require.True(t, pending.QuoteAmount.Equal(dec("10")))
	require.Equal(t, 0, b.Count(), "nothing committed yet")
}

func TestCommitIsNoOpWithinSameBlock(t *testing.T) {
	b := NewBuffer(5)

	b.Accumulate(env(100), dec("10"), dec("5"))
	b.Commit(env(100))

	require.Equal(t, 0, b.Count())
	require.NotNil(t, b.Pending())
}

func TestCommitFlushesOnLaterBlock(t *testing.T) {
	b := NewBuffer(5)

	b.Accumulate(env(100), dec("20"), dec("10"))
	b.Commit(env(110))

	require.Equal(t, 1, b.Count())
	require.Nil(t, b.Pending())

	price, err := b.Observe(110, 0)
	require.NoError(t, err)
	require.True(t, price.Equal(dec("2")))
}

func TestObserveInterpolates(t *testing.T) {
	b := NewBuffer(5)

	b.Accumulate(env(100), dec("20"), dec("10")) // price 2 at t=100
	b.Commit(env(110))
	b.Accumulate(env(110), dec("30"), dec("10")) // price 3 at t=110
	b.Commit(env(120))

	// Newest committed price.
	price, err := b.Observe(120, 0)
	require.NoError(t, err)
	require.True(t, price.Equal(dec("3")))

	// Exact hit on an entry timestamp.
	price, err = b.Observe(120, 10)
	require.NoError(t, err)
	require.True(t, price.Equal(dec("3")))

	// Midpoint between the two entries.
	price, err = b.Observe(120, 15)
	require.NoError(t, err)
	require.True(t, price.Equal(dec("2.5")), "expected 2.5, got %s", price)

	// Older than the oldest retained entry.
	_, err = b.Observe(120, 25)
	require.ErrorIs(t, err, types.ErrObservationOutOfRange)
}

func TestObserveEmptyBuffer(t *testing.T) {
	b := NewBuffer(5)
	_, err := b.Observe(100, 0)
	require.ErrorIs(t, err, types.ErrObservationOutOfRange)
}

func TestRingEvictsOldest(t *testing.T) {
	b := NewBuffer(3)

	for i := int64(0); i < 4; i++ {
		ts := 100 + i*10
		b.Accumulate(env(ts), dec("10"), dec("10"))
		b.Commit(env(ts + 10))
	}

	require.Equal(t, 3, b.Count())
	entries := b.Entries()
	require.Equal(t, int64(110), entries[0].Timestamp, "t=100 must have been evicted")
	require.Equal(t, int64(130), entries[2].Timestamp)

	_, err := b.Observe(140, 35)
	require.ErrorIs(t, err, types.ErrObservationOutOfRange)
}

func TestCumulativeAccounting(t *testing.T) {
	b := NewBuffer(5)

	b.Accumulate(env(100), dec("20"), dec("10"))
	b.Commit(env(110))
	b.Accumulate(env(110), dec("30"), dec("10"))
	b.Commit(env(120))

	entries := b.Entries()
	require.Len(t, entries, 2)

	// First entry anchors the accumulators.
	require.True(t, entries[0].CumulativePrice.IsZero())
	require.True(t, entries[0].CumulativeVolume.Equal(dec("20")))

	// Second entry adds price*elapsed and the block's base volume.
	require.True(t, entries[1].CumulativePrice.Equal(dec("30")), // 3 * 10s
		"got %s", entries[1].CumulativePrice)
	require.True(t, entries[1].CumulativeVolume.Equal(dec("50")))
}

func TestZeroQuoteBlockIsDropped(t *testing.T) {
	b := NewBuffer(5)

	b.Accumulate(env(100), dec("20"), sdkmath.LegacyZeroDec())
	b.Commit(env(110))

	require.Equal(t, 0, b.Count())
	require.Nil(t, b.Pending())
}

func TestRestoreRoundTrip(t *testing.T) {
	b := NewBuffer(4)
	b.Accumulate(env(100), dec("20"), dec("10"))
	b.Commit(env(110))
	b.Accumulate(env(110), dec("30"), dec("10"))
	b.Commit(env(120))
	b.Accumulate(env(120), dec("5"), dec("1"))

	restored := Restore(4, b.Entries(), b.Pending())

	require.Equal(t, b.Count(), restored.Count())
	require.Equal(t, b.Entries(), restored.Entries())
	require.Equal(t, b.Pending(), restored.Pending())

	// The restored buffer keeps committing where the original left off.
	restored.Commit(env(130))
	price, err := restored.Observe(130, 0)
	require.NoError(t, err)
	require.True(t, price.Equal(dec("5")))
}
