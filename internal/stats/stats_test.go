package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordTickComputesRollingAverage(t *testing.T) {
	s := New()
	s.RecordTick(10 * time.Millisecond)
	s.RecordTick(20 * time.Millisecond)

	snap := s.Snapshot()
	assert.InDelta(t, 15.0, snap.TickAvgMS, 0.001)
	assert.InDelta(t, 20.0, snap.TickMaxMS, 0.001)
	assert.InDelta(t, 20.0, snap.TickLastMS, 0.001)
}

func TestRecordTickDropsOldSamplesPastWindow(t *testing.T) {
	s := New()
	for i := 0; i < tickHistoryCap; i++ {
		s.RecordTick(10 * time.Millisecond)
	}
	s.RecordTick(110 * time.Millisecond) // pushes the 101st sample, evicting one 10ms sample

	snap := s.Snapshot()
	expectedAvg := (float64(tickHistoryCap-1)*10 + 110) / float64(tickHistoryCap)
	assert.InDelta(t, expectedAvg, snap.TickAvgMS, 0.01)
}

func TestResetMaxTickClearsPeakOnly(t *testing.T) {
	s := New()
	s.RecordTick(50 * time.Millisecond)
	s.ResetMaxTick()

	snap := s.Snapshot()
	assert.Zero(t, snap.TickMaxMS)
	assert.InDelta(t, 50.0, snap.TickLastMS, 0.001)
}

func TestSnapshotReflectsConnectionAndBandwidthFields(t *testing.T) {
	s := New()
	s.SetConnectionCounts(3, 7, 10)
	s.SetVisibilityCount(9)
	s.SetBandwidth(1000, 900, 50000, 30)

	snap := s.Snapshot()
	assert.EqualValues(t, 3, snap.RealClients)
	assert.EqualValues(t, 7, snap.FakeClients)
	assert.EqualValues(t, 10, snap.TotalPlayers)
	assert.EqualValues(t, 9, snap.VisibilityCount)
	assert.EqualValues(t, 1000, snap.BytesOutPerSec)
	assert.EqualValues(t, 30, snap.PacketsOutPerSec)
}

func TestSnapshotReflectsBroadcastBreakdown(t *testing.T) {
	s := New()
	s.RecordBroadcastBreakdown(1.5, 2.5, 3.5, 12, 4)

	snap := s.Snapshot()
	assert.EqualValues(t, 12, snap.BroadcastViewers)
	assert.EqualValues(t, 4, snap.BroadcastDirty)
}

func TestTicksPerSecondDefaultsWhenNoSamples(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	assert.Equal(t, 20.0, snap.TicksPerSecond)
}

func TestTickBandwidthRollsWindowOncePerSecond(t *testing.T) {
	s := New()
	s.RecordBytesOut(100)
	s.RecordBytesOut(50)

	s.TickBandwidth() // first call only establishes lastBandwidthTick
	snap := s.Snapshot()
	assert.Zero(t, snap.BytesOutPerSec)

	s.lastBandwidthTick = time.Now().Add(-2 * time.Second)
	s.TickBandwidth()

	snap = s.Snapshot()
	assert.EqualValues(t, 150, snap.BytesOutPerSec)
	assert.EqualValues(t, 150, snap.BytesOutAvg)
	assert.EqualValues(t, 150, snap.BytesOutTotal)
	assert.EqualValues(t, 2, snap.PacketsOutPerSec)

	// window resets after roll
	s.lastBandwidthTick = time.Now().Add(-2 * time.Second)
	s.TickBandwidth()
	snap = s.Snapshot()
	assert.Zero(t, snap.BytesOutPerSec)
	assert.EqualValues(t, 150, snap.BytesOutTotal)
}
