// Package spatial implements a grid-bucketed spatial index for dynamic
// entities (players, NPCs, ...). It answers "who is near (x,y)?" in
// sub-linear time by only scanning the handful of cells that overlap a
// query radius, instead of every tracked entity.
//
// Like the rest of the world state, a SpatialHash is only ever touched from
// the tick worker — no internal locking.
package spatial

// CellSize is the edge length, in tiles, of one spatial bucket. Chosen so a
// 3x3 cell neighbourhood always covers a VIEW_RANGE=10 query: CellSize=11.
const CellSize = 11

// Positioned is implemented by anything a SpatialHash can track.
type Positioned interface {
	Pos() (x, y int16)
}

// cellKey identifies one spatial bucket by its cell coordinates. Kept as a
// plain comparable struct (not a hash of the coordinates) so it can always
// be inverted back to (cx, cy) for flat-grid bookkeeping on remove/update.
type cellKey struct {
	cx, cy int32
}

// cellIndex converts a single world coordinate to its cell index.
func cellIndex(v int16) int32 {
	if v < 0 {
		return (int32(v) - CellSize + 1) / CellSize
	}
	return int32(v) / CellSize
}

func keyFor(x, y int16) cellKey {
	return cellKey{cellIndex(x), cellIndex(y)}
}

type entityRef[T Positioned] struct {
	id  uint64
	ent T
}

// SpatialHash tracks the cell membership of entities of type T, which must
// report their own position via Pos().
type SpatialHash[T Positioned] struct {
	ids      map[cellKey]map[uint64]struct{}
	entities map[cellKey][]entityRef[T]
	cellOf   map[uint64]cellKey
	refs     map[uint64]T

	// Optional dense fast path: a flat 2D array of bucket slices, indexed
	// directly by cell coordinate once world bounds are known. Queries
	// prefer it for O(1) bucket access and fall back to the sparse maps
	// above for cells outside its bounds.
	flat    [][]entityRef[T]
	gridW   int32
	gridH   int32
	useFlat bool
}

// New creates an empty SpatialHash.
func New[T Positioned]() *SpatialHash[T] {
	return &SpatialHash[T]{
		ids:      make(map[cellKey]map[uint64]struct{}),
		entities: make(map[cellKey][]entityRef[T]),
		cellOf:   make(map[uint64]cellKey),
		refs:     make(map[uint64]T),
	}
}

// InitFlatGrid enables the dense fast path for a world of the given tile
// dimensions. Call once at startup, after world bounds are known.
func (h *SpatialHash[T]) InitFlatGrid(worldWidth, worldHeight int16) {
	h.gridW = int32(worldWidth)/CellSize + 1
	h.gridH = int32(worldHeight)/CellSize + 1
	h.flat = make([][]entityRef[T], h.gridW*h.gridH)
	h.useFlat = true
}

func (h *SpatialHash[T]) flatIndex(cx, cy int32) (int, bool) {
	if !h.useFlat || cx < 0 || cy < 0 || cx >= h.gridW || cy >= h.gridH {
		return 0, false
	}
	return int(cy*h.gridW + cx), true
}

// Add inserts entity id (positioned at x,y) into the hash.
func (h *SpatialHash[T]) Add(id uint64, x, y int16, ent T) {
	key := keyFor(x, y)

	set := h.ids[key]
	if set == nil {
		set = make(map[uint64]struct{})
		h.ids[key] = set
	}
	set[id] = struct{}{}
	h.cellOf[id] = key
	h.refs[id] = ent
	h.entities[key] = append(h.entities[key], entityRef[T]{id: id, ent: ent})

	if idx, ok := h.flatIndex(key.cx, key.cy); ok {
		h.flat[idx] = append(h.flat[idx], entityRef[T]{id: id, ent: ent})
	}
}

// Remove takes an entity out of the hash entirely. The old cell comes from
// the stored mapping, never from the entity's current position — by the
// time Remove is called that position may already have changed.
func (h *SpatialHash[T]) Remove(id uint64) {
	key, ok := h.cellOf[id]
	if !ok {
		return
	}
	h.removeFromCell(key, id)
	delete(h.cellOf, id)
	delete(h.refs, id)
}

func (h *SpatialHash[T]) removeFromCell(key cellKey, id uint64) {
	if set := h.ids[key]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(h.ids, key)
		}
	}
	if refs := removeByID(h.entities[key], id); len(refs) == 0 {
		delete(h.entities, key)
	} else {
		h.entities[key] = refs
	}

	if idx, ok := h.flatIndex(key.cx, key.cy); ok {
		h.flat[idx] = removeByID(h.flat[idx], id)
	}
}

func removeByID[T Positioned](refs []entityRef[T], id uint64) []entityRef[T] {
	out := refs[:0]
	for _, r := range refs {
		if r.id != id {
			out = append(out, r)
		}
	}
	return out
}

// Update moves an entity to (newX, newY). Returns true iff the cell key
// changed; a same-cell update is a no-op and must not touch any map.
func (h *SpatialHash[T]) Update(id uint64, newX, newY int16) bool {
	oldKey, ok := h.cellOf[id]
	if !ok {
		return false
	}
	newKey := keyFor(newX, newY)
	if oldKey == newKey {
		return false
	}

	ent := h.refs[id]
	h.removeFromCell(oldKey, id)

	set := h.ids[newKey]
	if set == nil {
		set = make(map[uint64]struct{})
		h.ids[newKey] = set
	}
	set[id] = struct{}{}
	h.entities[newKey] = append(h.entities[newKey], entityRef[T]{id: id, ent: ent})
	h.cellOf[id] = newKey
	h.refs[id] = ent

	if idx, ok := h.flatIndex(newKey.cx, newKey.cy); ok {
		h.flat[idx] = append(h.flat[idx], entityRef[T]{id: id, ent: ent})
	}
	return true
}

func cellsRadius(r int16) int32 {
	return int32(r)/CellSize + 1
}

// NearbyIDs returns the (coarse) set of entity ids in cells overlapping a
// radius-r square around (x, y). Callers needing an exact Chebyshev
// distance must filter the result themselves.
func (h *SpatialHash[T]) NearbyIDs(x, y, r int16) []uint64 {
	var out []uint64
	h.forEachCellKey(x, y, r, func(key cellKey) {
		for id := range h.ids[key] {
			out = append(out, id)
		}
	})
	return out
}

// NearbyEntities returns entity references in cells overlapping the query
// square, preferring the dense flat grid when available.
func (h *SpatialHash[T]) NearbyEntities(x, y, r int16) []T {
	var out []T
	h.ForEachNearby(x, y, r, func(_ uint64, ent T) {
		out = append(out, ent)
	})
	return out
}

// ForEachNearby is a zero-allocation iteration for hot paths: it never
// builds an intermediate slice.
func (h *SpatialHash[T]) ForEachNearby(x, y, r int16, fn func(id uint64, ent T)) {
	cx, cy := cellIndex(x), cellIndex(y)
	radius := cellsRadius(r)
	for dcx := -radius; dcx <= radius; dcx++ {
		for dcy := -radius; dcy <= radius; dcy++ {
			ccx, ccy := cx+dcx, cy+dcy
			if idx, ok := h.flatIndex(ccx, ccy); ok {
				for _, ref := range h.flat[idx] {
					fn(ref.id, ref.ent)
				}
				continue
			}
			for _, ref := range h.entities[cellKey{ccx, ccy}] {
				fn(ref.id, ref.ent)
			}
		}
	}
}

func (h *SpatialHash[T]) forEachCellKey(x, y, r int16, fn func(key cellKey)) {
	cx, cy := cellIndex(x), cellIndex(y)
	radius := cellsRadius(r)
	for dcx := -radius; dcx <= radius; dcx++ {
		for dcy := -radius; dcy <= radius; dcy++ {
			fn(cellKey{cx + dcx, cy + dcy})
		}
	}
}

// IsPlayerAt reports whether any tracked entity other than excludeID sits
// exactly at (x, y).
func (h *SpatialHash[T]) IsPlayerAt(x, y int16, excludeID uint64) bool {
	key := keyFor(x, y)
	for id := range h.ids[key] {
		if id == excludeID {
			continue
		}
		ent, ok := h.refs[id]
		if !ok {
			continue
		}
		ex, ey := ent.Pos()
		if ex == x && ey == y {
			return true
		}
	}
	return false
}

// CellOf exposes the current cell key of a tracked entity, as cell
// indices (cx, cy), not world coordinates, for invariant checks (spec property 1:
// cell_of(p) == CellKey(p.x, p.y)).
func (h *SpatialHash[T]) CellOf(id uint64) (cx, cy int32, ok bool) {
	key, ok := h.cellOf[id]
	if !ok {
		return 0, 0, false
	}
	return key.cx, key.cy, true
}

// Get returns the tracked entity for id, if any.
func (h *SpatialHash[T]) Get(id uint64) (T, bool) {
	ent, ok := h.refs[id]
	return ent, ok
}

// Contains reports whether id is currently tracked.
func (h *SpatialHash[T]) Contains(id uint64) bool {
	_, ok := h.cellOf[id]
	return ok
}

// Count returns the number of tracked entities.
func (h *SpatialHash[T]) Count() int { return len(h.cellOf) }
