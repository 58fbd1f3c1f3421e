package playerstate

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Registry owns player lifecycle, client<->player id mapping, and
// dirty-broadcast tracking. It does not own spatial data (internal/world
// does) or networking (internal/netio does).
//
// Like Player, Registry is tick-goroutine-only. The original server
// guarded this with a mutex because its network threads could reach it
// directly; here network goroutines only ever reach the registry by
// enqueuing an action.Action, so no lock is needed.
type Registry struct {
	players       map[uint64]*Player
	clientToPlayer map[uint64]uint64
	playerToClient map[uint64]uint64
	dirty         map[uint64]*Player

	nextFallbackID uint64
}

// NewRegistry creates an empty player registry.
func NewRegistry() *Registry {
	return &Registry{
		players:        make(map[uint64]*Player),
		clientToPlayer: make(map[uint64]uint64),
		playerToClient: make(map[uint64]uint64),
		dirty:          make(map[uint64]*Player),
		nextFallbackID: 1,
	}
}

// CreatePlayer creates and registers a new player for clientID. Returns an
// error if clientID already owns a player — overwriting the mapping would
// orphan the old player in memory and break lookups for it.
func (r *Registry) CreatePlayer(clientID uint64, startX, startY int16, facing Direction) (*Player, error) {
	if _, exists := r.clientToPlayer[clientID]; exists {
		return nil, fmt.Errorf("playerstate: client %d already has a player", clientID)
	}

	id, err := r.generateUniqueID()
	if err != nil {
		return nil, err
	}

	p := NewPlayer(id, startX, startY, facing)
	p.SetClientID(clientID)

	r.players[id] = p
	r.clientToPlayer[clientID] = id
	r.playerToClient[id] = clientID
	return p, nil
}

// RemovePlayer removes a player and both of its client mappings.
func (r *Registry) RemovePlayer(playerID uint64) {
	if clientID, ok := r.playerToClient[playerID]; ok {
		delete(r.clientToPlayer, clientID)
		delete(r.playerToClient, playerID)
	}
	delete(r.players, playerID)
	delete(r.dirty, playerID)
}

// RemoveByClientID removes the player owned by clientID, if any.
func (r *Registry) RemoveByClientID(clientID uint64) {
	playerID, ok := r.clientToPlayer[clientID]
	if !ok {
		return
	}
	r.RemovePlayer(playerID)
}

// GetByID looks up a player by player id.
func (r *Registry) GetByID(playerID uint64) (*Player, bool) {
	p, ok := r.players[playerID]
	return p, ok
}

// GetByClientID looks up a player by the client connection that owns it.
func (r *Registry) GetByClientID(clientID uint64) (*Player, bool) {
	playerID, ok := r.clientToPlayer[clientID]
	if !ok {
		return nil, false
	}
	return r.GetByID(playerID)
}

// GetPlayerIDForClient returns the player id owned by clientID, or 0.
func (r *Registry) GetPlayerIDForClient(clientID uint64) uint64 {
	return r.clientToPlayer[clientID]
}

// MarkDirty flags a player as needing a broadcast this tick.
func (r *Registry) MarkDirty(p *Player) {
	r.dirty[p.ID()] = p
}

// MarkDirtyByID flags a player as dirty by id, if it exists.
func (r *Registry) MarkDirtyByID(playerID uint64) {
	if p, ok := r.players[playerID]; ok {
		r.dirty[playerID] = p
	}
}

// ConsumeDirtyPlayers returns and clears the set of dirty players.
func (r *Registry) ConsumeDirtyPlayers() []*Player {
	if len(r.dirty) == 0 {
		return nil
	}
	out := make([]*Player, 0, len(r.dirty))
	for _, p := range r.dirty {
		out = append(out, p)
	}
	r.dirty = make(map[uint64]*Player)
	return out
}

// HasDirtyPlayers reports whether any player needs a broadcast this tick.
func (r *Registry) HasDirtyPlayers() bool {
	return len(r.dirty) > 0
}

// GetAllPlayers returns every registered player.
func (r *Registry) GetAllPlayers() []*Player {
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}

// Count returns the number of registered players.
func (r *Registry) Count() int { return len(r.players) }

// ForEachPlayer iterates a snapshot of all players, so fn is free to
// trigger further registry mutations (e.g. a disconnect mid-broadcast)
// without corrupting the iteration.
func (r *Registry) ForEachPlayer(fn func(*Player)) {
	snapshot := r.GetAllPlayers()
	for _, p := range snapshot {
		fn(p)
	}
}

// generateUniqueID mirrors the original allocator: try random ids first,
// fall back to a sequential counter if the ID space is somehow saturated
// with collisions, and give up after both are exhausted (which in practice
// cannot happen short of a id-space exhaustion bug).
func (r *Registry) generateUniqueID() (uint64, error) {
	var buf [8]byte
	for attempts := 0; attempts < 100; attempts++ {
		if _, err := rand.Read(buf[:]); err != nil {
			break
		}
		id := binary.BigEndian.Uint64(buf[:])
		if id == 0 {
			continue
		}
		if _, exists := r.players[id]; !exists {
			return id, nil
		}
	}

	for attempts := 0; attempts < 100; attempts++ {
		id := r.nextFallbackID
		r.nextFallbackID++
		if id == 0 {
			continue
		}
		if _, exists := r.players[id]; !exists {
			return id, nil
		}
	}

	return 0, fmt.Errorf("playerstate: failed to generate a unique player id")
}
