// Package visibility tracks, per player, which other players they currently
// know about — i.e. have already been told entered their view. It is the
// single source of truth for enter/leave view notifications.
//
// The tracker keeps two maps instead of one: known_players (who I see) and
// known_by (who sees me). The reverse map is what makes disconnect cleanup
// and departure notification O(K) in the number of players actually
// involved, instead of a full O(N) scan of everyone online.
//
// Game-tick-goroutine only, like the rest of world state.
package visibility

// Identified is implemented by anything the tracker can report as "entered
// view" — callers pass the richer value in so recipients can build a spawn
// packet without a second lookup.
type Identified interface {
	ID() uint64
}

// Diff is the result of one Update call: who newly entered player's view
// and the ids of who left it.
type Diff[P Identified] struct {
	Entered []P
	Left    []uint64
}

// Tracker holds bidirectional visibility relationships between players.
type Tracker[P Identified] struct {
	known   map[uint64]map[uint64]struct{} // player_id -> set of ids it knows about
	knownBy map[uint64]map[uint64]struct{} // player_id -> set of ids that know about it

	// scratch buffers reused across Update calls to avoid per-tick
	// allocation; cleared (not reallocated) between uses.
	scratchVisible map[uint64]struct{}
	scratchRemove  []uint64
}

// New creates an empty Tracker.
func New[P Identified]() *Tracker[P] {
	return &Tracker[P]{
		known:          make(map[uint64]map[uint64]struct{}),
		knownBy:        make(map[uint64]map[uint64]struct{}),
		scratchVisible: make(map[uint64]struct{}),
	}
}

func (t *Tracker[P]) knownSetFor(playerID uint64) map[uint64]struct{} {
	known := t.known[playerID]
	if known == nil {
		known = make(map[uint64]struct{})
		t.known[playerID] = known
	}
	return known
}

// Update compares visibleNow against what playerID already knows, updates
// internal state, and reports who entered and who left.
func (t *Tracker[P]) Update(playerID uint64, visibleNow []P) Diff[P] {
	var diff Diff[P]
	known := t.knownSetFor(playerID)

	for k := range t.scratchVisible {
		delete(t.scratchVisible, k)
	}
	t.scratchRemove = t.scratchRemove[:0]

	for _, p := range visibleNow {
		pid := p.ID()
		if pid == playerID {
			continue
		}
		t.scratchVisible[pid] = struct{}{}

		if _, ok := known[pid]; !ok {
			diff.Entered = append(diff.Entered, p)
			known[pid] = struct{}{}
			t.addKnownBy(pid, playerID)
		}
	}

	for knownID := range known {
		if _, ok := t.scratchVisible[knownID]; !ok {
			diff.Left = append(diff.Left, knownID)
			t.scratchRemove = append(t.scratchRemove, knownID)
		}
	}

	for _, id := range t.scratchRemove {
		delete(known, id)
		t.removeKnownBy(id, playerID)
	}

	return diff
}

func (t *Tracker[P]) addKnownBy(id, observerID uint64) {
	set := t.knownBy[id]
	if set == nil {
		set = make(map[uint64]struct{})
		t.knownBy[id] = set
	}
	set[observerID] = struct{}{}
}

func (t *Tracker[P]) removeKnownBy(id, observerID uint64) {
	set, ok := t.knownBy[id]
	if !ok {
		return
	}
	delete(set, observerID)
	if len(set) == 0 {
		delete(t.knownBy, id)
	}
}

// Initialize sets playerID's known set directly from a snapshot, replacing
// whatever it held, for seeding a viewer after an initial batched spawn
// packet has been sent. The scheduler's login path does not call it; a new
// player's known set is built by its first Update.
func (t *Tracker[P]) Initialize(playerID uint64, initialVisible []uint64) {
	known := t.knownSetFor(playerID)
	for id := range known {
		t.removeKnownBy(id, playerID)
	}
	for k := range known {
		delete(known, k)
	}
	for _, id := range initialVisible {
		if id == playerID {
			continue
		}
		known[id] = struct{}{}
		t.addKnownBy(id, playerID)
	}
}

// AddKnown records a single player as known to another, without going
// through a full Update diff.
func (t *Tracker[P]) AddKnown(playerID, knownID uint64) {
	if playerID == knownID {
		return
	}
	t.knownSetFor(playerID)[knownID] = struct{}{}
	t.addKnownBy(knownID, playerID)
}

// GetPosFunc resolves a player id to its current world position.
type GetPosFunc func(id uint64) (x, y int16)

// NotifyObserversOfDeparture is called after mover moves. It walks only the
// observers who knew about mover (via knownBy), drops the ones who can no
// longer see it at its new position, and returns their ids so the caller
// can send them a departure packet. This is what lets a single move
// invalidate visibility for distant observers without scanning every
// connected player.
func (t *Tracker[P]) NotifyObserversOfDeparture(moverID uint64, moverX, moverY, viewRange int16, getPos GetPosFunc) []uint64 {
	observers, ok := t.knownBy[moverID]
	if !ok {
		return nil
	}

	var lostSight []uint64
	for observerID := range observers {
		obsX, obsY := getPos(observerID)
		dx := moverX - obsX
		if dx < 0 {
			dx = -dx
		}
		dy := moverY - obsY
		if dy < 0 {
			dy = -dy
		}
		if dx > viewRange || dy > viewRange {
			lostSight = append(lostSight, observerID)
		}
	}

	for _, observerID := range lostSight {
		if known, ok := t.known[observerID]; ok {
			delete(known, moverID)
		}
		delete(observers, observerID)
	}
	if len(observers) == 0 {
		delete(t.knownBy, moverID)
	}

	return lostSight
}

// RemovePlayer tears down every visibility relationship involving playerID,
// in both directions, in O(K) where K is the number of players that knew
// about it or that it knew about.
func (t *Tracker[P]) RemovePlayer(playerID uint64) {
	if observers, ok := t.knownBy[playerID]; ok {
		for observerID := range observers {
			if known, ok := t.known[observerID]; ok {
				delete(known, playerID)
			}
		}
		delete(t.knownBy, playerID)
	}

	if known, ok := t.known[playerID]; ok {
		for knownID := range known {
			t.removeKnownBy(knownID, playerID)
		}
		delete(t.known, playerID)
	}
}

// KnownPlayers returns the set of ids playerID currently knows about.
func (t *Tracker[P]) KnownPlayers(playerID uint64) map[uint64]struct{} {
	return t.known[playerID]
}

// KnownBy returns the set of ids that currently know about playerID.
func (t *Tracker[P]) KnownBy(playerID uint64) map[uint64]struct{} {
	return t.knownBy[playerID]
}

// TrackedPlayerCount returns how many players have a known-set entry.
func (t *Tracker[P]) TrackedPlayerCount() int { return len(t.known) }

// Clear drops all tracked state.
func (t *Tracker[P]) Clear() {
	t.known = make(map[uint64]map[uint64]struct{})
	t.knownBy = make(map[uint64]map[uint64]struct{})
}
