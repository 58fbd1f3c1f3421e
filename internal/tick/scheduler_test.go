package tick

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dyewars/server/internal/action"
	"github.com/dyewars/server/internal/bot"
	"github.com/dyewars/server/internal/netio"
	"github.com/dyewars/server/internal/playerstate"
	"github.com/dyewars/server/internal/stats"
	"github.com/dyewars/server/internal/tilemap"
	"github.com/dyewars/server/internal/wire"
	"github.com/dyewars/server/internal/world"
)

type harness struct {
	t        *testing.T
	sched    *Scheduler
	sessions *netio.SessionRegistry
	players  *playerstate.Registry
	world    *world.World
	actions  *action.Queue
	clients  map[uint64]net.Conn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	m := tilemap.New(40, 40, tilemap.KindFloor)
	w := world.New(m)
	players := playerstate.NewRegistry()
	sessions := netio.NewSessionRegistry()
	actions := action.NewQueue()
	bots := bot.New()
	sink := stats.New()

	cfg := Config{TickRate: 50 * time.Millisecond, ViewRange: 10, SpawnX: 5, SpawnY: 5}
	sched := New(cfg, w, players, sessions, actions, bots, sink, nil, nil, zap.NewNop())

	return &harness{
		t: t, sched: sched, sessions: sessions, players: players,
		world: w, actions: actions, clients: make(map[uint64]net.Conn),
	}
}

// connect registers a new raw session under id and returns the client end
// of the pipe for reading server-sent frames.
func (h *harness) connect(id uint64) net.Conn {
	server, client := net.Pipe()
	h.t.Cleanup(func() { client.Close() })
	sess := netio.NewSession(server, id, 8, 8, nil, zap.NewNop())
	sess.Start()
	h.sessions.Register(sess)
	h.clients[id] = client
	return client
}

func (h *harness) readFrame(t *testing.T, conn net.Conn, timeout time.Duration) []byte {
	t.Helper()
	type result struct {
		payload []byte
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := wire.ReadFrame(conn)
		ch <- result{p, err}
	}()
	select {
	case r := <-ch:
		require.NoError(t, r.err)
		return r.payload
	case <-time.After(timeout):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestLoginCreatesPlayerAndSendsWelcome(t *testing.T) {
	h := newHarness(t)
	client := h.connect(1)

	h.actions.Push(action.Login(1, "alice"))
	h.sched.tick()

	p, ok := h.players.GetByClientID(1)
	require.True(t, ok)
	assert.Equal(t, "alice", p.Name())

	frame := h.readFrame(t, client, 2*time.Second)
	r := wire.NewReader(frame)
	assert.Equal(t, byte(wire.OpWelcome), r.Opcode())
}

func TestMoveSuccessUpdatesPositionAndBroadcasts(t *testing.T) {
	h := newHarness(t)
	client := h.connect(1)

	h.actions.Push(action.Login(1, "alice"))
	h.sched.tick()
	h.readFrame(t, client, 2*time.Second) // welcome

	p, _ := h.players.GetByClientID(1)
	p.SetFacing(playerstate.DirSouth)

	h.actions.Push(action.Move(1, uint8(playerstate.DirSouth), uint8(playerstate.DirSouth), 0))
	h.sched.tick()

	x, y := p.Pos()
	assert.Equal(t, int16(5), x)
	assert.Equal(t, int16(4), y)

	frame := h.readFrame(t, client, 2*time.Second)
	r := wire.NewReader(frame)
	assert.Equal(t, byte(wire.OpPlayerSpatialBatch), r.Opcode())
}

func TestMoveRejectedByCooldownLeavesPositionUnchanged(t *testing.T) {
	h := newHarness(t)
	h.connect(1)
	h.actions.Push(action.Login(1, "alice"))
	h.sched.tick()

	p, _ := h.players.GetByClientID(1)
	p.SetFacing(playerstate.DirSouth)

	h.actions.Push(action.Move(1, uint8(playerstate.DirSouth), uint8(playerstate.DirSouth), 0))
	h.sched.tick()
	x1, y1 := p.Pos()

	h.actions.Push(action.Move(1, uint8(playerstate.DirSouth), uint8(playerstate.DirSouth), 0))
	h.sched.tick()
	x2, y2 := p.Pos()

	assert.Equal(t, x1, x2)
	assert.Equal(t, y1, y2)
}

func TestMoverEnteringRangeIsRecordedInBothVisibilityMaps(t *testing.T) {
	h := newHarness(t)

	pa, err := h.players.CreatePlayer(100, 0, 0, playerstate.DirSouth)
	require.NoError(t, err)
	h.world.AddPlayer(pa)
	pb, err := h.players.CreatePlayer(200, 30, 30, playerstate.DirSouth)
	require.NoError(t, err)
	h.world.AddPlayer(pb)

	h.players.MarkDirty(pa)
	h.players.MarkDirty(pb)
	h.sched.tick()

	// far apart: neither should know about the other yet
	assert.NotContains(t, h.world.Visibility().KnownPlayers(pa.ID()), pb.ID())

	// B moves within A's view range (Chebyshev distance 1 from A)
	pb.SetPosition(1, 0)
	h.players.MarkDirty(pb)
	h.sched.tick()

	assert.Contains(t, h.world.Visibility().KnownPlayers(pb.ID()), pa.ID())
	assert.Contains(t, h.world.Visibility().KnownBy(pa.ID()), pb.ID())
}

func TestDepartureNotifiesObserversOutsideRange(t *testing.T) {
	h := newHarness(t)

	pa, err := h.players.CreatePlayer(100, 0, 0, playerstate.DirSouth)
	require.NoError(t, err)
	h.world.AddPlayer(pa)
	pb, err := h.players.CreatePlayer(200, 5, 0, playerstate.DirSouth)
	require.NoError(t, err)
	h.world.AddPlayer(pb)

	h.players.MarkDirty(pa)
	h.players.MarkDirty(pb)
	h.sched.tick()
	require.Contains(t, h.world.Visibility().KnownBy(pb.ID()), pa.ID())

	pb.SetPosition(20, 0) // leaves A's view range
	h.players.MarkDirty(pb)
	h.sched.tick()

	assert.NotContains(t, h.world.Visibility().KnownBy(pb.ID()), pa.ID())
	assert.NotContains(t, h.world.Visibility().KnownPlayers(pa.ID()), pb.ID())
}

func TestLogoutRemovesPlayerFromWorldAndRegistry(t *testing.T) {
	h := newHarness(t)
	h.connect(1)
	h.actions.Push(action.Login(1, "alice"))
	h.sched.tick()

	p, _ := h.players.GetByClientID(1)
	id := p.ID()

	h.actions.Push(action.Logout(1))
	h.sched.tick()

	_, ok := h.players.GetByID(id)
	assert.False(t, ok)
	assert.Empty(t, h.world.PlayersInRange(5, 5, 1))
}

func TestSpawnBotsActionPopulatesBotManager(t *testing.T) {
	h := newHarness(t)
	h.actions.Push(action.SpawnBots(5, false))
	h.sched.tick()

	assert.Equal(t, 5, h.sched.bots.Count())
}

func TestPersistHookFiresOnLogoutAndPeriodically(t *testing.T) {
	var saved []string
	cfg := Config{TickRate: 50 * time.Millisecond, ViewRange: 10, SpawnX: 5, SpawnY: 5, PersistIntervalTicks: 2}
	m := tilemap.New(40, 40, tilemap.KindFloor)
	w := world.New(m)
	players := playerstate.NewRegistry()
	sessions := netio.NewSessionRegistry()
	actions := action.NewQueue()
	bots := bot.New()
	sink := stats.New()
	hook := func(name string, x, y int16, facing uint8) { saved = append(saved, name) }
	sched := New(cfg, w, players, sessions, actions, bots, sink, nil, hook, zap.NewNop())

	actions.Push(action.Login(1, "alice"))
	sched.tick() // tick 1: login, tickCount=1

	assert.Empty(t, saved)

	sched.tick() // tick 2: tickCount reaches interval, periodic save fires
	assert.Equal(t, []string{"alice"}, saved)

	saved = nil
	actions.Push(action.Logout(1))
	sched.tick()
	assert.Equal(t, []string{"alice"}, saved)
}
