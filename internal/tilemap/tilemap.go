// Package tilemap holds the static terrain grid for a single map.
//
// A TileMap is pure data: tile kind per cell plus a parallel blocking array
// derived from it. It is immutable after load except through the explicit
// bulk-edit operations below, and is read-only during a tick's query phase —
// the tick worker is the only goroutine that calls the mutating methods.
package tilemap

import "fmt"

// Kind is a single tile's terrain type. Values are shared with the client
// wire format, so they must stay a single byte.
type Kind byte

const (
	KindVoid  Kind = 0x00 // out of bounds / unloaded
	KindFloor Kind = 0x01
	KindWall  Kind = 0x02
	KindGrass Kind = 0x03
)

// Blocking reports whether a tile kind blocks movement by default.
func Blocking(k Kind) bool {
	switch k {
	case KindVoid, KindWall:
		return true
	default:
		return false
	}
}

// TileMap is a row-major grid of tile kinds with a parallel blocking array.
type TileMap struct {
	id       uint32
	name     string
	width    int16
	height   int16
	tiles    []Kind
	blocking []bool
}

// New creates a width x height map filled with defaultKind.
func New(width, height int16, defaultKind Kind) *TileMap {
	size := int(width) * int(height)
	m := &TileMap{
		width:    width,
		height:   height,
		tiles:    make([]Kind, size),
		blocking: make([]bool, size),
	}
	for i := range m.tiles {
		m.tiles[i] = defaultKind
	}
	m.recalculateBlocking()
	return m
}

// FromBytes builds a map from row-major tile data, e.g. loaded from a YAML
// fixture (see LoadYAML) or a client-sync buffer.
func FromBytes(width, height int16, data []byte) (*TileMap, error) {
	size := int(width) * int(height)
	if len(data) != size {
		return nil, fmt.Errorf("tilemap: data length %d does not match %dx%d", len(data), width, height)
	}
	m := &TileMap{
		width:    width,
		height:   height,
		tiles:    make([]Kind, size),
		blocking: make([]bool, size),
	}
	for i, b := range data {
		m.tiles[i] = Kind(b)
	}
	m.recalculateBlocking()
	return m, nil
}

func (m *TileMap) SetID(id uint32)     { m.id = id }
func (m *TileMap) ID() uint32          { return m.id }
func (m *TileMap) SetName(name string) { m.name = name }
func (m *TileMap) Name() string        { return m.name }

func (m *TileMap) Width() int16  { return m.width }
func (m *TileMap) Height() int16 { return m.height }

func (m *TileMap) InBounds(x, y int16) bool {
	return x >= 0 && x < m.width && y >= 0 && y < m.height
}

func (m *TileMap) index(x, y int16) int {
	return int(y)*int(m.width) + int(x)
}

// Tile returns the tile kind at (x, y), or KindVoid when out of bounds.
func (m *TileMap) Tile(x, y int16) Kind {
	if !m.InBounds(x, y) {
		return KindVoid
	}
	return m.tiles[m.index(x, y)]
}

// SetTile sets the tile kind at (x, y) and recomputes its blocking bit.
// Out-of-bounds coordinates are ignored.
func (m *TileMap) SetTile(x, y int16, k Kind) {
	if !m.InBounds(x, y) {
		return
	}
	idx := m.index(x, y)
	m.tiles[idx] = k
	m.blocking[idx] = Blocking(k)
}

// Blocked reports whether (x, y) blocks movement. Out-of-bounds coordinates
// are always blocked.
func (m *TileMap) Blocked(x, y int16) bool {
	if !m.InBounds(x, y) {
		return true
	}
	return m.blocking[m.index(x, y)]
}

// SetBlocked overrides the blocking state at (x, y) independent of tile
// kind — used for dynamic obstacles such as closed doors.
func (m *TileMap) SetBlocked(x, y int16, blocked bool) {
	if !m.InBounds(x, y) {
		return
	}
	m.blocking[m.index(x, y)] = blocked
}

func (m *TileMap) recalculateBlocking() {
	for i, k := range m.tiles {
		m.blocking[i] = Blocking(k)
	}
}

// FillRegion sets every tile in the rectangle [x, x+w) x [y, y+h) to k.
func (m *TileMap) FillRegion(x, y, w, h int16, k Kind) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			m.SetTile(xx, yy, k)
		}
	}
}

// CreateBorder walls off the four edges of the map.
func (m *TileMap) CreateBorder() {
	for x := int16(0); x < m.width; x++ {
		m.SetTile(x, 0, KindWall)
		m.SetTile(x, m.height-1, KindWall)
	}
	for y := int16(0); y < m.height; y++ {
		m.SetTile(0, y, KindWall)
		m.SetTile(m.width-1, y, KindWall)
	}
}

// RegionTiles returns the row-major tile bytes of the rectangle
// [x, x+w) x [y, y+h), out-of-bounds cells reading as KindVoid.
func (m *TileMap) RegionTiles(x, y, w, h int16) []byte {
	out := make([]byte, 0, int(w)*int(h))
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			out = append(out, byte(m.Tile(xx, yy)))
		}
	}
	return out
}

// ViewTiles returns the (2*radius+1)^2 tile bytes centered on (cx, cy), for
// syncing a client's initial view of the map.
func (m *TileMap) ViewTiles(cx, cy, radius int16) []byte {
	size := radius*2 + 1
	return m.RegionTiles(cx-radius, cy-radius, size, size)
}
