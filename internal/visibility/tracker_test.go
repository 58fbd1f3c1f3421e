package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	id uint64
}

func (p fakePlayer) ID() uint64 { return p.id }

func TestUpdateReportsEnteredAndLeft(t *testing.T) {
	tr := New[fakePlayer]()

	diff := tr.Update(1, []fakePlayer{{2}, {3}})
	assert.ElementsMatch(t, []fakePlayer{{2}, {3}}, diff.Entered)
	assert.Empty(t, diff.Left)

	diff = tr.Update(1, []fakePlayer{{3}, {4}})
	assert.ElementsMatch(t, []fakePlayer{{4}}, diff.Entered)
	assert.ElementsMatch(t, []uint64{2}, diff.Left)
}

func TestUpdateExcludesSelf(t *testing.T) {
	tr := New[fakePlayer]()
	diff := tr.Update(1, []fakePlayer{{1}, {2}})
	assert.ElementsMatch(t, []fakePlayer{{2}}, diff.Entered)
}

func TestUpdateIsIdempotentWithoutChange(t *testing.T) {
	tr := New[fakePlayer]()
	tr.Update(1, []fakePlayer{{2}})

	diff := tr.Update(1, []fakePlayer{{2}})
	assert.Empty(t, diff.Entered)
	assert.Empty(t, diff.Left)
}

func TestBidirectionalMapsStayConsistent(t *testing.T) {
	tr := New[fakePlayer]()
	tr.Update(1, []fakePlayer{{2}})

	_, knownBy2 := tr.KnownBy(2)[1]
	assert.True(t, knownBy2)
	_, known1 := tr.KnownPlayers(1)[2]
	assert.True(t, known1)
}

func TestRemovePlayerCleansBothDirections(t *testing.T) {
	tr := New[fakePlayer]()
	tr.Update(1, []fakePlayer{{2}})
	tr.Update(2, []fakePlayer{{1}})

	tr.RemovePlayer(1)

	assert.NotContains(t, tr.KnownPlayers(2), uint64(1))
	assert.Nil(t, tr.KnownBy(1))
	assert.Nil(t, tr.KnownPlayers(1))
}

func TestNotifyObserversOfDepartureOnlyDropsOutOfRange(t *testing.T) {
	tr := New[fakePlayer]()
	// observer 10 and 20 both know about mover 1
	tr.AddKnown(10, 1)
	tr.AddKnown(20, 1)

	positions := map[uint64][2]int16{
		10: {0, 0},  // stays in range after mover moves to (5,5), view range 10
		20: {50, 50}, // far away, loses sight
	}
	getPos := func(id uint64) (int16, int16) {
		p := positions[id]
		return p[0], p[1]
	}

	lost := tr.NotifyObserversOfDeparture(1, 5, 5, 10, getPos)
	assert.ElementsMatch(t, []uint64{20}, lost)

	assert.Contains(t, tr.KnownPlayers(10), uint64(1))
	assert.NotContains(t, tr.KnownPlayers(20), uint64(1))
}

func TestInitializeReplacesExistingKnownSet(t *testing.T) {
	tr := New[fakePlayer]()
	tr.AddKnown(1, 99)

	tr.Initialize(1, []uint64{2, 3})

	assert.NotContains(t, tr.KnownPlayers(1), uint64(99))
	assert.Contains(t, tr.KnownPlayers(1), uint64(2))
	assert.Contains(t, tr.KnownPlayers(1), uint64(3))
	assert.NotContains(t, tr.KnownBy(99), uint64(1))
}

func TestTrackedPlayerCount(t *testing.T) {
	tr := New[fakePlayer]()
	require.Equal(t, 0, tr.TrackedPlayerCount())
	tr.Update(1, []fakePlayer{{2}})
	assert.Equal(t, 1, tr.TrackedPlayerCount())
}
