// Package admission gates TCP accept with per-IP concurrency, rate, and
// ban checks, grounded on the original server's ConnectionLimiter: at most
// MaxConnectionsPerIP concurrent sockets, a sliding attempt window, and an
// auto-ban after repeated failures.
//
// The per-IP bookkeeping is sharded across N buckets (each with its own
// mutex) keyed by xxhash.Sum64String(ip) % N, so admission checks under
// load don't all serialize on one lock the way the original's single
// mutex did.
package admission

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Config carries the limiter's tunables (see internal/config.AdmissionConfig).
type Config struct {
	MaxConnectionsPerIP  int
	MaxAttemptsPerWindow int
	RateWindow           time.Duration
	MaxFailuresBeforeBan int
	ShardCount           int
}

type ipState struct {
	connections int
	attempts    []time.Time
	failures    int
	banned      bool
}

type shard struct {
	mu    sync.Mutex
	byIP  map[string]*ipState
}

// Gate is the per-IP admission control described in spec.md 4.9.
type Gate struct {
	cfg    Config
	shards []*shard
}

// New creates a Gate with cfg's tunables. ShardCount is clamped to at
// least 1.
func New(cfg Config) *Gate {
	if cfg.ShardCount < 1 {
		cfg.ShardCount = 1
	}
	g := &Gate{cfg: cfg, shards: make([]*shard, cfg.ShardCount)}
	for i := range g.shards {
		g.shards[i] = &shard{byIP: make(map[string]*ipState)}
	}
	return g
}

func (g *Gate) shardFor(ip string) *shard {
	h := xxhash.Sum64String(ip)
	return g.shards[h%uint64(len(g.shards))]
}

func (g *Gate) stateFor(sh *shard, ip string) *ipState {
	st, ok := sh.byIP[ip]
	if !ok {
		st = &ipState{}
		sh.byIP[ip] = st
	}
	return st
}

// CanConnect conjoins not-banned, under-rate-limit, and under-concurrency
// checks. It also records this attempt in the rate-limit window, matching
// the original's "checking counts as attempting" semantics.
func (g *Gate) CanConnect(ip string) bool {
	sh := g.shardFor(ip)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st := g.stateFor(sh, ip)

	if st.banned {
		return false
	}
	if !g.checkRateLimitLocked(st) {
		return false
	}
	if st.connections >= g.cfg.MaxConnectionsPerIP {
		return false
	}
	return true
}

func (g *Gate) checkRateLimitLocked(st *ipState) bool {
	now := time.Now()
	cutoff := now.Add(-g.cfg.RateWindow)

	kept := st.attempts[:0]
	for _, t := range st.attempts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	st.attempts = kept
	st.attempts = append(st.attempts, now)

	return len(st.attempts) <= g.cfg.MaxAttemptsPerWindow
}

// AddConnection records one more concurrent connection from ip.
func (g *Gate) AddConnection(ip string) {
	sh := g.shardFor(ip)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	g.stateFor(sh, ip).connections++
}

// RemoveConnection records a connection from ip closing.
func (g *Gate) RemoveConnection(ip string) {
	sh := g.shardFor(ip)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st := g.stateFor(sh, ip)
	if st.connections > 0 {
		st.connections--
	}
}

// RecordFailure increments ip's failure counter, auto-banning it once the
// threshold is reached.
func (g *Gate) RecordFailure(ip string) {
	sh := g.shardFor(ip)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st := g.stateFor(sh, ip)
	st.failures++
	if st.failures >= g.cfg.MaxFailuresBeforeBan {
		st.banned = true
	}
}

// IsBanned reports whether ip is currently banned.
func (g *Gate) IsBanned(ip string) bool {
	sh := g.shardFor(ip)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return g.stateFor(sh, ip).banned
}

// Unban clears ip's ban and failure count.
func (g *Gate) Unban(ip string) {
	sh := g.shardFor(ip)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st := g.stateFor(sh, ip)
	st.banned = false
	st.failures = 0
}

// ConnectionCount returns ip's current concurrent connection count.
func (g *Gate) ConnectionCount(ip string) int {
	sh := g.shardFor(ip)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return g.stateFor(sh, ip).connections
}

// BanCount returns the total number of currently banned IPs across all
// shards — a stats/diagnostic query, not on any hot path.
func (g *Gate) BanCount() int {
	count := 0
	for _, sh := range g.shards {
		sh.mu.Lock()
		for _, st := range sh.byIP {
			if st.banned {
				count++
			}
		}
		sh.mu.Unlock()
	}
	return count
}
