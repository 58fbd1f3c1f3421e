// Package world composes the static terrain grid, the dynamic spatial
// index, and the visibility tracker into the single authoritative view of
// "where is everyone and who can see whom" that the tick scheduler drives.
//
// World itself holds no player identity or movement logic — that is
// playerstate's job. World only answers spatial questions on behalf of the
// tick scheduler.
package world

import (
	"github.com/dyewars/server/internal/playerstate"
	"github.com/dyewars/server/internal/spatial"
	"github.com/dyewars/server/internal/tilemap"
	"github.com/dyewars/server/internal/visibility"
)

// ViewRange is the Chebyshev radius within which a player perceives
// another (spec.md 4.4 numeric defaults).
const ViewRange = 10

// World composes TileMap, SpatialHash, and VisibilityTracker.
type World struct {
	Map        *tilemap.TileMap
	hash       *spatial.SpatialHash[*playerstate.Player]
	visibility *visibility.Tracker[*playerstate.Player]
}

// New creates a World over the given map.
func New(m *tilemap.TileMap) *World {
	hash := spatial.New[*playerstate.Player]()
	hash.InitFlatGrid(m.Width(), m.Height())
	return &World{
		Map:        m,
		hash:       hash,
		visibility: visibility.New[*playerstate.Player](),
	}
}

// Visibility exposes the tracker so the tick scheduler can drive it
// directly (Update, NotifyObserversOfDeparture, RemovePlayer).
func (w *World) Visibility() *visibility.Tracker[*playerstate.Player] {
	return w.visibility
}

// AddPlayer inserts a newly logged-in player into the spatial index.
func (w *World) AddPlayer(p *playerstate.Player) {
	x, y := p.Pos()
	w.hash.Add(p.ID(), x, y, p)
}

// RemovePlayer takes a player out of both the spatial index and the
// visibility tracker (disconnect/logout).
func (w *World) RemovePlayer(id uint64) {
	w.hash.Remove(id)
	w.visibility.RemovePlayer(id)
}

// IsTileBlocked delegates collision checks to the map.
func (w *World) IsTileBlocked(x, y int16) bool {
	return w.Map.Blocked(x, y)
}

// IsOccupied reports whether any player other than excludeID sits at (x,y).
func (w *World) IsOccupied(x, y int16, excludeID uint64) bool {
	return w.hash.IsPlayerAt(x, y, excludeID)
}

// UpdatePosition forwards a position change to the spatial hash, returning
// whether the cell key changed. The caller must still run interest diffs
// regardless of the return value — a within-cell move can still cross a
// view boundary.
func (w *World) UpdatePosition(id uint64, x, y int16) bool {
	return w.hash.Update(id, x, y)
}

// GetPos resolves a player id to its current position via the spatial
// index — a convenience so callers can build a visibility.GetPosFunc
// without reaching into PlayerRegistry directly.
func (w *World) GetPos(id uint64) (x, y int16) {
	p, ok := w.hash.Get(id)
	if !ok {
		return 0, 0
	}
	return p.Pos()
}

// IsInView reports whether b is within ViewRange of a, Chebyshev distance.
func IsInView(ax, ay, bx, by int16) bool {
	dx := ax - bx
	if dx < 0 {
		dx = -dx
	}
	dy := ay - by
	if dy < 0 {
		dy = -dy
	}
	return dx <= ViewRange && dy <= ViewRange
}

// PlayersInRange returns players within exact Chebyshev distance r of
// (x,y), applying the spatial hash's coarse cell filter first and then an
// exact distance check (the hash only guarantees a cell-granularity
// bound).
func (w *World) PlayersInRange(x, y, r int16) []*playerstate.Player {
	var out []*playerstate.Player
	w.hash.ForEachNearby(x, y, r, func(_ uint64, p *playerstate.Player) {
		px, py := p.Pos()
		dx := x - px
		if dx < 0 {
			dx = -dx
		}
		dy := y - py
		if dy < 0 {
			dy = -dy
		}
		if dx <= r && dy <= r {
			out = append(out, p)
		}
	})
	return out
}
