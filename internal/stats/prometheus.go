package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromCollector adapts a Sink to the prometheus.Collector interface, so
// the dashboard's /metrics endpoint and the JSON /stats endpoint read
// from the same underlying numbers without duplicating bookkeeping.
type PromCollector struct {
	sink *Sink

	tickAvg  *prometheus.Desc
	tickMax  *prometheus.Desc
	tickLast *prometheus.Desc
	tps      *prometheus.Desc

	realClients  *prometheus.Desc
	fakeClients  *prometheus.Desc
	totalPlayers *prometheus.Desc
	visibility   *prometheus.Desc

	bytesOutPerSec *prometheus.Desc
	packetsOutPerSec *prometheus.Desc
}

// NewPromCollector wraps sink for registration with a
// prometheus.Registry.
func NewPromCollector(sink *Sink) *PromCollector {
	ns := "dyewars"
	return &PromCollector{
		sink:     sink,
		tickAvg:  prometheus.NewDesc(ns+"_tick_avg_ms", "Rolling average tick duration in milliseconds", nil, nil),
		tickMax:  prometheus.NewDesc(ns+"_tick_max_ms", "Peak tick duration since last reset", nil, nil),
		tickLast: prometheus.NewDesc(ns+"_tick_last_ms", "Most recent tick duration", nil, nil),
		tps:      prometheus.NewDesc(ns+"_ticks_per_second", "Derived ticks per second", nil, nil),

		realClients:  prometheus.NewDesc(ns+"_real_clients", "Connected human clients", nil, nil),
		fakeClients:  prometheus.NewDesc(ns+"_fake_clients", "Simulated bot clients", nil, nil),
		totalPlayers: prometheus.NewDesc(ns+"_total_players", "Total player entities in the world", nil, nil),
		visibility:   prometheus.NewDesc(ns+"_visibility_tracked", "Players currently tracked by the visibility system", nil, nil),

		bytesOutPerSec:   prometheus.NewDesc(ns+"_bytes_out_per_second", "Outbound bandwidth", nil, nil),
		packetsOutPerSec: prometheus.NewDesc(ns+"_packets_out_per_second", "Outbound packet rate", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tickAvg
	ch <- c.tickMax
	ch <- c.tickLast
	ch <- c.tps
	ch <- c.realClients
	ch <- c.fakeClients
	ch <- c.totalPlayers
	ch <- c.visibility
	ch <- c.bytesOutPerSec
	ch <- c.packetsOutPerSec
}

// Collect implements prometheus.Collector, taking one Snapshot per scrape.
func (c *PromCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.sink.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.tickAvg, prometheus.GaugeValue, snap.TickAvgMS)
	ch <- prometheus.MustNewConstMetric(c.tickMax, prometheus.GaugeValue, snap.TickMaxMS)
	ch <- prometheus.MustNewConstMetric(c.tickLast, prometheus.GaugeValue, snap.TickLastMS)
	ch <- prometheus.MustNewConstMetric(c.tps, prometheus.GaugeValue, snap.TicksPerSecond)

	ch <- prometheus.MustNewConstMetric(c.realClients, prometheus.GaugeValue, float64(snap.RealClients))
	ch <- prometheus.MustNewConstMetric(c.fakeClients, prometheus.GaugeValue, float64(snap.FakeClients))
	ch <- prometheus.MustNewConstMetric(c.totalPlayers, prometheus.GaugeValue, float64(snap.TotalPlayers))
	ch <- prometheus.MustNewConstMetric(c.visibility, prometheus.GaugeValue, float64(snap.VisibilityCount))

	ch <- prometheus.MustNewConstMetric(c.bytesOutPerSec, prometheus.GaugeValue, float64(snap.BytesOutPerSec))
	ch <- prometheus.MustNewConstMetric(c.packetsOutPerSec, prometheus.GaugeValue, float64(snap.PacketsOutPerSec))
}
