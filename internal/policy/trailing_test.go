package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrailingBuyActivateAndFire(t *testing.T) {
	// 5% activation below the peak, 2% rebound off the low.
	tb := NewTrailingBuy(dec(0.05), dec(0.02), dec(100))

	assert.False(t, tb.Observe(dec(98)), "2% drop is not enough to arm")
	assert.False(t, tb.Active())

	assert.False(t, tb.Observe(dec(95)), "arming bar itself does not fire")
	assert.True(t, tb.Active())

	assert.False(t, tb.Observe(dec(92)), "new low while armed")
	assert.False(t, tb.Observe(dec(93)), "rebound below 2% threshold")

	assert.True(t, tb.Observe(dec(93.84)), "2% rebound off 92 fires")
}

func TestTrailingBuyPeakTracksUpward(t *testing.T) {
	tb := NewTrailingBuy(dec(0.10), dec(0.02), dec(100))

	assert.False(t, tb.Observe(dec(120)))
	// 10% below the new peak of 120 is 108.
	assert.False(t, tb.Observe(dec(108)))
	assert.True(t, tb.Active())
}

func TestTrailingBuyCancelKeepsPeak(t *testing.T) {
	tb := NewTrailingBuy(dec(0.05), dec(0.02), dec(100))

	tb.Observe(dec(95))
	assert.True(t, tb.Active())

	tb.Cancel()
	assert.False(t, tb.Active())

	// Still 5% below the retained peak, so it re-arms.
	tb.Observe(dec(94))
	assert.True(t, tb.Active())
}

func TestTrailingBuyReset(t *testing.T) {
	tb := NewTrailingBuy(dec(0.05), dec(0.02), dec(100))
	tb.Observe(dec(95))
	tb.Reset(dec(80))

	assert.False(t, tb.Active())
	// New peak is 80; 77 is not 5% below it... 76 is.
	assert.False(t, tb.Observe(dec(77)))
	assert.False(t, tb.Active())
	tb.Observe(dec(76))
	assert.True(t, tb.Active())
}

func TestTrailingSellActivateAndFire(t *testing.T) {
	// 10% activation above average cost, 3% pullback off the high.
	ts := NewTrailingSell(dec(0.10), dec(0.03))
	avgCost := dec(100)

	assert.False(t, ts.Observe(dec(105), avgCost))
	assert.False(t, ts.Active())

	assert.False(t, ts.Observe(dec(110), avgCost))
	assert.True(t, ts.Active())

	assert.False(t, ts.Observe(dec(115), avgCost), "new high while armed")
	assert.False(t, ts.Observe(dec(112.5), avgCost), "pullback below 3%")
	assert.True(t, ts.Observe(dec(111.5), avgCost), "3% pullback off 115 fires")
}

func TestTrailingSellNoReference(t *testing.T) {
	ts := NewTrailingSell(dec(0.10), dec(0.03))
	assert.False(t, ts.Observe(dec(200), dec(0)))
	assert.False(t, ts.Active())
}

func TestTrailingShortEntryMirror(t *testing.T) {
	// 5% rise above the trough arms; 2% pulldown off the high fires.
	te := NewTrailingShortEntry(dec(0.05), dec(0.02), dec(100))

	assert.False(t, te.Observe(dec(102)))
	assert.False(t, te.Active())

	assert.False(t, te.Observe(dec(105)))
	assert.True(t, te.Active())

	assert.False(t, te.Observe(dec(110)), "new high while armed")
	assert.True(t, te.Observe(dec(107.8)), "2% pulldown off 110 fires")
}

func TestTrailingShortEntryTroughTracksDownward(t *testing.T) {
	te := NewTrailingShortEntry(dec(0.10), dec(0.02), dec(100))

	assert.False(t, te.Observe(dec(80)))
	// 10% above the new trough of 80 is 88.
	assert.False(t, te.Observe(dec(88)))
	assert.True(t, te.Active())
}

func TestTrailingCoverMirror(t *testing.T) {
	// 10% drop below average entry arms; 3% rebound off the low fires.
	tc := NewTrailingCover(dec(0.10), dec(0.03))
	avgEntry := dec(100)

	assert.False(t, tc.Observe(dec(95), avgEntry))
	assert.False(t, tc.Active())

	assert.False(t, tc.Observe(dec(90), avgEntry))
	assert.True(t, tc.Active())

	assert.False(t, tc.Observe(dec(85), avgEntry), "new low while armed")
	assert.True(t, tc.Observe(dec(87.55), avgEntry), "3% rebound off 85 fires")
}
