// Package stats collects server statistics for the debug dashboard:
// tick timing, connection counts, and bandwidth, all lock-light enough
// to update every tick without perturbing the tick budget itself.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

const tickHistoryCap = 100

// Sink is the single process-wide stats collector. Tick timing uses a
// small mutex-guarded rolling window (matching the low contention of
// "one writer, any number of dashboard readers"); everything else is a
// plain atomic so a hot field write never blocks on the tick-history
// lock.
type Sink struct {
	mu           sync.Mutex
	tickHistory  []float64
	tickTotalMS  float64
	tickMaxMS    float64
	lastTickMS   float64

	dirtyPlayers      int64
	spatialMS         int64 // stored as float64 bits via atomic store pattern below
	visibilityMS      int64
	departureMS       int64
	broadcastMS       int64

	broadcastViewerMS   int64
	broadcastLookupMS   int64
	broadcastSendMS     int64
	broadcastViewers    int64
	broadcastDirty      int64

	vqSpatialMS  int64
	vqAddKnownMS int64
	vqNearby     int64

	realClients      int64
	fakeClients      int64
	totalPlayers     int64
	visibilityCount  int64

	bytesOutPerSec   int64
	bytesOutAvg      int64
	bytesOutTotal    int64
	packetsOutPerSec int64

	// bandwidth window accumulators: written from any session's writer
	// goroutine via RecordBytesOut, drained once a second by TickBandwidth.
	bytesThisSecond    int64
	packetsThisSecond  int64
	bandwidthAvgBits   int64 // float64 bits, smoothed 80/20 like the original
	lastBandwidthTick  time.Time
}

// New creates an empty Sink.
func New() *Sink {
	return &Sink{tickHistory: make([]float64, 0, tickHistoryCap)}
}

// RecordTick appends one tick's duration to the rolling 100-sample
// window, maintaining a running sum so Snapshot's average is O(1).
func (s *Sink) RecordTick(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastTickMS = ms
	if ms > s.tickMaxMS {
		s.tickMaxMS = ms
	}

	s.tickHistory = append(s.tickHistory, ms)
	s.tickTotalMS += ms
	if len(s.tickHistory) > tickHistoryCap {
		s.tickTotalMS -= s.tickHistory[0]
		s.tickHistory = s.tickHistory[1:]
	}
}

// ResetMaxTick clears the peak tick duration, so a single past spike
// stops dominating the display. Nothing in the server calls it on a
// schedule; the peak holds until a caller resets it.
func (s *Sink) ResetMaxTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickMaxMS = 0
}

func (s *Sink) SetDirtyPlayerCount(n int)   { storeInt(&s.dirtyPlayers, int64(n)) }
func (s *Sink) RecordSpatialMS(ms float64)   { storeFloat(&s.spatialMS, ms) }
func (s *Sink) RecordVisibilityMS(ms float64) { storeFloat(&s.visibilityMS, ms) }
func (s *Sink) RecordDepartureMS(ms float64) { storeFloat(&s.departureMS, ms) }
func (s *Sink) RecordBroadcastMS(ms float64) { storeFloat(&s.broadcastMS, ms) }

// RecordBroadcastBreakdown records the per-phase cost of one tick's
// dispatch-to-clients pass.
func (s *Sink) RecordBroadcastBreakdown(viewerMS, lookupMS, sendMS float64, viewerCount, dirtyCount int) {
	storeFloat(&s.broadcastViewerMS, viewerMS)
	storeFloat(&s.broadcastLookupMS, lookupMS)
	storeFloat(&s.broadcastSendMS, sendMS)
	storeInt(&s.broadcastViewers, int64(viewerCount))
	storeInt(&s.broadcastDirty, int64(dirtyCount))
}

// RecordViewerQueryBreakdown records the cost of the visibility refresh
// sub-phase within broadcast.
func (s *Sink) RecordViewerQueryBreakdown(spatialMS, addKnownMS float64, nearbyCount int) {
	storeFloat(&s.vqSpatialMS, spatialMS)
	storeFloat(&s.vqAddKnownMS, addKnownMS)
	storeInt(&s.vqNearby, int64(nearbyCount))
}

// SetConnectionCounts records the current connection/player population.
func (s *Sink) SetConnectionCounts(real, fake, players int) {
	storeInt(&s.realClients, int64(real))
	storeInt(&s.fakeClients, int64(fake))
	storeInt(&s.totalPlayers, int64(players))
}

func (s *Sink) SetVisibilityCount(n int) { storeInt(&s.visibilityCount, int64(n)) }

// SetBandwidth records the current outbound bandwidth figures.
func (s *Sink) SetBandwidth(bytesPerSec, bytesAvg, bytesTotal uint64, packetsPerSec uint64) {
	storeInt(&s.bytesOutPerSec, int64(bytesPerSec))
	storeInt(&s.bytesOutAvg, int64(bytesAvg))
	storeInt(&s.bytesOutTotal, int64(bytesTotal))
	storeInt(&s.packetsOutPerSec, int64(packetsPerSec))
}

// RecordBytesOut accumulates one outbound frame's size into the current
// one-second bandwidth window. Called from each session's writer
// goroutine after every successful wire write; cheap and contention-free
// since it's a pair of atomic adds.
func (s *Sink) RecordBytesOut(n int) {
	atomic.AddInt64(&s.bytesThisSecond, int64(n))
	atomic.AddInt64(&s.packetsThisSecond, 1)
}

// TickBandwidth rolls the current window into the published bandwidth
// figures once a second. Safe to call every tick (or more often); it is
// a no-op until a full second has elapsed since the last roll, matching
// the once-a-second cadence the original BandwidthMonitor::Tick() used.
func (s *Sink) TickBandwidth() {
	s.mu.Lock()
	now := time.Now()
	if s.lastBandwidthTick.IsZero() {
		s.lastBandwidthTick = now
	}
	elapsed := now.Sub(s.lastBandwidthTick)
	if elapsed < time.Second {
		s.mu.Unlock()
		return
	}
	s.lastBandwidthTick = now
	s.mu.Unlock()

	bytes := atomic.SwapInt64(&s.bytesThisSecond, 0)
	packets := atomic.SwapInt64(&s.packetsThisSecond, 0)
	total := loadInt(&s.bytesOutTotal) + bytes

	avg := loadFloat(&s.bandwidthAvgBits)
	if avg == 0 {
		avg = float64(bytes)
	} else {
		avg = avg*0.8 + float64(bytes)*0.2
	}
	storeFloat(&s.bandwidthAvgBits, avg)

	s.SetBandwidth(uint64(bytes), uint64(avg), uint64(total), uint64(packets))
}

// Snapshot is a point-in-time copy of every tracked stat, ready for JSON
// serialization by the dashboard.
type Snapshot struct {
	TickAvgMS  float64 `json:"tick_avg_ms"`
	TickMaxMS  float64 `json:"tick_max_ms"`
	TickLastMS float64 `json:"tick_last_ms"`
	TicksPerSecond float64 `json:"tps"`

	DirtyPlayers int64 `json:"dirty_players"`

	SpatialMS     float64 `json:"spatial_time_ms"`
	VisibilityMS  float64 `json:"visibility_time_ms"`
	DepartureMS   float64 `json:"departure_time_ms"`
	BroadcastMS   float64 `json:"broadcast_time_ms"`

	RealClients     int64 `json:"real_clients"`
	FakeClients     int64 `json:"fake_clients"`
	TotalPlayers    int64 `json:"total_players"`
	VisibilityCount int64 `json:"visibility_tracked"`

	BytesOutPerSec   int64 `json:"bytes_out_per_sec"`
	BytesOutAvg      int64 `json:"bytes_out_avg"`
	BytesOutTotal    int64 `json:"bytes_out_total"`
	PacketsOutPerSec int64 `json:"packets_out_per_sec"`

	BroadcastViewerMS float64 `json:"broadcast_viewer_ms"`
	BroadcastLookupMS float64 `json:"broadcast_lookup_ms"`
	BroadcastSendMS   float64 `json:"broadcast_send_ms"`
	BroadcastViewers  int64   `json:"broadcast_viewer_count"`
	BroadcastDirty    int64   `json:"broadcast_dirty_count"`

	VQSpatialMS  float64 `json:"vq_spatial_ms"`
	VQAddKnownMS float64 `json:"vq_addknown_ms"`
	VQNearby     int64   `json:"vq_nearby_count"`
}

// Snapshot captures every tracked field. Matches ServerStats::ToJson's
// field set field-for-field.
func (s *Sink) Snapshot() Snapshot {
	s.mu.Lock()
	avgMS := 0.0
	if len(s.tickHistory) > 0 {
		avgMS = s.tickTotalMS / float64(len(s.tickHistory))
	}
	tps := 20.0
	if avgMS > 0 {
		tps = 1000.0 / avgMS
	}
	snap := Snapshot{
		TickAvgMS:      avgMS,
		TickMaxMS:      s.tickMaxMS,
		TickLastMS:     s.lastTickMS,
		TicksPerSecond: tps,
	}
	s.mu.Unlock()

	snap.DirtyPlayers = loadInt(&s.dirtyPlayers)
	snap.SpatialMS = loadFloat(&s.spatialMS)
	snap.VisibilityMS = loadFloat(&s.visibilityMS)
	snap.DepartureMS = loadFloat(&s.departureMS)
	snap.BroadcastMS = loadFloat(&s.broadcastMS)

	snap.RealClients = loadInt(&s.realClients)
	snap.FakeClients = loadInt(&s.fakeClients)
	snap.TotalPlayers = loadInt(&s.totalPlayers)
	snap.VisibilityCount = loadInt(&s.visibilityCount)

	snap.BytesOutPerSec = loadInt(&s.bytesOutPerSec)
	snap.BytesOutAvg = loadInt(&s.bytesOutAvg)
	snap.BytesOutTotal = loadInt(&s.bytesOutTotal)
	snap.PacketsOutPerSec = loadInt(&s.packetsOutPerSec)

	snap.BroadcastViewerMS = loadFloat(&s.broadcastViewerMS)
	snap.BroadcastLookupMS = loadFloat(&s.broadcastLookupMS)
	snap.BroadcastSendMS = loadFloat(&s.broadcastSendMS)
	snap.BroadcastViewers = loadInt(&s.broadcastViewers)
	snap.BroadcastDirty = loadInt(&s.broadcastDirty)

	snap.VQSpatialMS = loadFloat(&s.vqSpatialMS)
	snap.VQAddKnownMS = loadFloat(&s.vqAddKnownMS)
	snap.VQNearby = loadInt(&s.vqNearby)

	return snap
}
