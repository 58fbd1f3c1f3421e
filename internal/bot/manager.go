// Package bot drives fake players for load-testing the tick loop: random
// spawn placement, one random movement per tick, and bulk despawn.
package bot

import (
	"math/rand"

	"github.com/dyewars/server/internal/playerstate"
	"github.com/dyewars/server/internal/world"
)

// Manager tracks the set of bot-controlled player IDs so
// ProcessMovement and RemoveAll only ever touch bots, never real
// players.
type Manager struct {
	botIDs []uint64
	rng    *rand.Rand
}

// New creates an empty bot manager.
func New() *Manager {
	return &Manager{rng: rand.New(rand.NewSource(1))}
}

// Count returns the number of active bots.
func (m *Manager) Count() int { return len(m.botIDs) }

// Spawn creates count bot players through registry, placing them at
// random unoccupied tiles. If clustered, spawns are biased to within
// view range of originX/originY (stress-testing one hot region);
// otherwise spawns are scattered across the whole map.
func (m *Manager) Spawn(reg *playerstate.Registry, w *world.World, count int, clustered bool, originX, originY int16) int {
	spawned := 0
	for i := 0; i < count; i++ {
		x, y, ok := m.pickSpawnTile(w, clustered, originX, originY)
		if !ok {
			continue
		}
		p, err := reg.CreatePlayer(m.nextFakeClientID(), x, y, playerstate.DirSouth)
		if err != nil {
			continue
		}
		w.AddPlayer(p)
		m.botIDs = append(m.botIDs, p.ID())
		spawned++
	}
	return spawned
}

// nextFakeClientID draws a random 64-bit synthetic client ID for a bot
// from the manager's PRNG. A draw that collides with an existing client
// ID is rejected by the registry, and Spawn skips that bot.
func (m *Manager) nextFakeClientID() uint64 {
	return m.rng.Uint64()
}

func (m *Manager) pickSpawnTile(w *world.World, clustered bool, originX, originY int16) (int16, int16, bool) {
	const maxAttempts = 32
	for i := 0; i < maxAttempts; i++ {
		var x, y int16
		if clustered {
			x = originX + int16(m.rng.Intn(21)-10)
			y = originY + int16(m.rng.Intn(21)-10)
		} else {
			x = int16(m.rng.Intn(int(w.Map.Width())))
			y = int16(m.rng.Intn(int(w.Map.Height())))
		}
		if w.IsTileBlocked(x, y) || w.IsOccupied(x, y, 0) {
			continue
		}
		return x, y, true
	}
	return 0, 0, false
}

// RemoveAll despawns every bot from the registry and world.
func (m *Manager) RemoveAll(reg *playerstate.Registry, w *world.World) int {
	removed := 0
	for _, id := range m.botIDs {
		w.RemovePlayer(id)
		reg.RemovePlayer(id)
		removed++
	}
	m.botIDs = m.botIDs[:0]
	return removed
}

// ProcessMovement drives exactly one random bot per call, matching the
// original's "one bot per tick" stress pattern (spreading movement cost
// evenly rather than moving every bot every tick). Since movement only
// succeeds in the direction a player already faces, each call picks at
// random between turning the bot to a random heading and stepping it
// forward.
func (m *Manager) ProcessMovement(reg *playerstate.Registry, w *world.World) {
	if len(m.botIDs) == 0 {
		return
	}
	id := m.botIDs[m.rng.Intn(len(m.botIDs))]
	p, ok := reg.GetByID(id)
	if !ok {
		return
	}

	if m.rng.Intn(2) == 0 {
		p.AttemptTurn(playerstate.Direction(m.rng.Intn(4)))
		return
	}

	tileBlocked := func(x, y int16) bool { return w.IsTileBlocked(x, y) }
	occupied := func(x, y int16) bool { return w.IsOccupied(x, y, p.ID()) }

	result := p.AttemptMove(p.Facing(), p.Facing(), 0, tileBlocked, occupied)
	if result == playerstate.MoveSuccess {
		w.UpdatePosition(p.ID(), p.X(), p.Y())
		reg.MarkDirty(p)
	}
}
