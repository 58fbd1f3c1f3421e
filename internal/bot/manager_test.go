package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyewars/server/internal/playerstate"
	"github.com/dyewars/server/internal/tilemap"
	"github.com/dyewars/server/internal/world"
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	m := tilemap.New(20, 20, tilemap.KindFloor)
	return world.New(m)
}

func TestSpawnCreatesRequestedBotCount(t *testing.T) {
	w := newTestWorld(t)
	reg := playerstate.NewRegistry()
	m := New()

	spawned := m.Spawn(reg, w, 5, false, 10, 10)
	assert.Equal(t, 5, spawned)
	assert.Equal(t, 5, m.Count())
	assert.Equal(t, 5, reg.Count())
}

func TestRemoveAllClearsBotsFromRegistryAndWorld(t *testing.T) {
	w := newTestWorld(t)
	reg := playerstate.NewRegistry()
	m := New()

	m.Spawn(reg, w, 4, true, 5, 5)
	removed := m.RemoveAll(reg, w)

	assert.Equal(t, 4, removed)
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, 0, reg.Count())
}

func TestProcessMovementNeverPanicsOnEmptyManager(t *testing.T) {
	w := newTestWorld(t)
	reg := playerstate.NewRegistry()
	m := New()
	require.NotPanics(t, func() { m.ProcessMovement(reg, w) })
}

func TestProcessMovementOnlyTouchesBotPlayers(t *testing.T) {
	w := newTestWorld(t)
	reg := playerstate.NewRegistry()
	m := New()

	realPlayer, err := reg.CreatePlayer(999, 2, 2, playerstate.DirSouth)
	require.NoError(t, err)
	w.AddPlayer(realPlayer)

	m.Spawn(reg, w, 1, true, 10, 10)

	for i := 0; i < 20; i++ {
		m.ProcessMovement(reg, w)
	}

	x, y := realPlayer.Pos()
	assert.Equal(t, int16(2), x)
	assert.Equal(t, int16(2), y)
}
