// Package tick drives the single 20 Hz authoritative loop: drain queued
// actions, apply them to world state, recompute per-player visibility
// diffs, and dispatch the resulting frames — the one place every other
// package's mutable state is touched from.
package tick

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dyewars/server/internal/action"
	"github.com/dyewars/server/internal/bot"
	"github.com/dyewars/server/internal/netio"
	"github.com/dyewars/server/internal/playerstate"
	"github.com/dyewars/server/internal/stats"
	"github.com/dyewars/server/internal/wire"
	"github.com/dyewars/server/internal/world"
)

// ScriptHook is invoked once per dirty player, each tick, right after that
// player's spatial and visibility update; players processed later in the
// same tick have not been updated yet. A nil hook is valid and simply
// skipped.
type ScriptHook func(playerID uint64, x, y int16, facing uint8)

// PersistHook hands one player's current state to the async persistence
// write queue. It must return immediately without doing I/O itself —
// the tick goroutine is the only caller, and the spec's persistence
// layer is an external collaborator the tick loop never blocks on.
type PersistHook func(name string, x, y int16, facing uint8)

// Config carries the scheduler's tunables, lifted from
// internal/config.NetworkConfig/WorldConfig so this package doesn't
// import config directly (it only needs the handful of fields it uses).
type Config struct {
	TickRate  time.Duration
	ViewRange int16
	SpawnX    int16
	SpawnY    int16

	// PersistIntervalTicks is how often (in ticks) every connected
	// player's state is hooked out to PersistHook. Zero disables
	// periodic persistence entirely.
	PersistIntervalTicks int
}

// Scheduler owns the tick loop. It holds references to, but does not own
// the lifecycle of, every package whose state only the tick goroutine may
// mutate.
type Scheduler struct {
	cfg Config

	world    *world.World
	players  *playerstate.Registry
	sessions *netio.SessionRegistry
	actions  *action.Queue
	bots     *bot.Manager
	stats    *stats.Sink
	script   ScriptHook
	persist  PersistHook

	log *zap.Logger

	actionBuf  []action.Action
	dirtyBuf   []*playerstate.Player
	tickCount  int
}

// New constructs a Scheduler. script and persist may both be nil.
func New(cfg Config, w *world.World, players *playerstate.Registry, sessions *netio.SessionRegistry, actions *action.Queue, bots *bot.Manager, sink *stats.Sink, script ScriptHook, persist PersistHook, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		world:    w,
		players:  players,
		sessions: sessions,
		actions:  actions,
		bots:     bots,
		stats:    sink,
		script:   script,
		persist:  persist,
		log:      log,
	}
}

// Run blocks, ticking at cfg.TickRate until ctx is canceled. A tick that
// overruns its budget skips the following sleep rather than compounding
// delay, and is logged as an overrun.
func (s *Scheduler) Run(ctx context.Context) {
	next := time.Now().Add(s.cfg.TickRate)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		s.tick()
		elapsed := time.Since(start)
		s.stats.RecordTick(elapsed)

		now := time.Now()
		if now.After(next) {
			s.log.Warn("tick overran budget",
				zap.Duration("budget", s.cfg.TickRate),
				zap.Duration("elapsed", elapsed),
			)
			next = now.Add(s.cfg.TickRate)
			continue
		}

		sleepFor := next.Sub(now)
		next = next.Add(s.cfg.TickRate)

		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// tick runs exactly one pass of the algorithm: drain actions, apply them,
// recompute visibility for every dirty player, tick the script hook.
func (s *Scheduler) tick() {
	s.actionBuf = s.actions.DrainInto(s.actionBuf[:0])
	for _, a := range s.actionBuf {
		s.applyAction(a)
	}
	s.bots.ProcessMovement(s.players, s.world)

	s.dirtyBuf = s.players.ConsumeDirtyPlayers()
	for _, p := range s.dirtyBuf {
		s.processDirtyPlayer(p)
	}

	s.stats.SetDirtyPlayerCount(len(s.dirtyBuf))
	s.stats.SetConnectionCounts(s.sessions.Count(), s.bots.Count(), s.players.Count())
	s.stats.TickBandwidth()

	if s.persist != nil && s.cfg.PersistIntervalTicks > 0 {
		s.tickCount++
		if s.tickCount >= s.cfg.PersistIntervalTicks {
			s.tickCount = 0
			s.persistAll()
		}
	}
}

// persistAll hooks every connected player's current state out to the
// async write queue. Bot-driven synthetic players have no name and are
// skipped — there is no account row to reconcile them against.
func (s *Scheduler) persistAll() {
	for _, p := range s.players.GetAllPlayers() {
		if p.Name() == "" {
			continue
		}
		x, y := p.Pos()
		s.persist(p.Name(), x, y, uint8(p.Facing()))
	}
}

func (s *Scheduler) applyAction(a action.Action) {
	switch a.Kind {
	case action.KindLogin:
		s.applyLogin(a)
	case action.KindLogout:
		s.applyLogout(a)
	case action.KindMove:
		s.applyMove(a)
	case action.KindTurn:
		s.applyTurn(a)
	case action.KindChat:
		s.applyChat(a)
	case action.KindSpawnBots:
		n := s.bots.Spawn(s.players, s.world, a.Count, a.Clustered, s.cfg.SpawnX, s.cfg.SpawnY)
		s.log.Info("spawned bots", zap.Int("requested", a.Count), zap.Int("spawned", n))
	case action.KindRemoveBots:
		n := s.bots.RemoveAll(s.players, s.world)
		s.log.Info("removed bots", zap.Int("count", n))
	}
}

func (s *Scheduler) applyLogin(a action.Action) {
	if _, exists := s.players.GetByClientID(a.ClientID); exists {
		return
	}
	p, err := s.players.CreatePlayer(a.ClientID, s.cfg.SpawnX, s.cfg.SpawnY, playerstate.DirSouth)
	if err != nil {
		s.log.Error("login failed", zap.Uint64("client", a.ClientID), zap.Error(err))
		return
	}
	p.SetName(a.Name)
	s.world.AddPlayer(p)
	s.players.MarkDirty(p)

	sess, ok := s.sessions.GetBySessionID(a.ClientID)
	if !ok {
		return
	}
	s.sessions.AssociatePlayer(p.ID(), sess)
	x, y := p.Pos()
	sess.QueuePacket(wire.EncodeWelcome(p.ID(), x, y, uint8(p.Facing())))
}

func (s *Scheduler) applyLogout(a action.Action) {
	p, ok := s.players.GetByClientID(a.ClientID)
	if !ok {
		return
	}
	lost := s.world.Visibility().KnownBy(p.ID())
	leftPayload := wire.EncodeLeftGame(p.ID())
	for observerID := range lost {
		if sess, ok := s.sessions.Get(observerID); ok {
			sess.QueuePacket(leftPayload)
		}
	}

	if s.persist != nil && p.Name() != "" {
		x, y := p.Pos()
		s.persist(p.Name(), x, y, uint8(p.Facing()))
	}

	s.world.RemovePlayer(p.ID())
	s.players.RemovePlayer(p.ID())
}

func (s *Scheduler) applyMove(a action.Action) {
	p, ok := s.players.GetByClientID(a.ClientID)
	if !ok {
		return
	}
	direction := playerstate.Direction(a.Direction)
	facing := playerstate.Direction(a.Facing)

	result := p.AttemptMove(direction, facing, a.PingMS,
		func(x, y int16) bool { return s.world.IsTileBlocked(x, y) },
		func(x, y int16) bool { return s.world.IsOccupied(x, y, p.ID()) },
	)
	if result != playerstate.MoveSuccess {
		if sess, ok := s.sessions.Get(p.ID()); ok {
			x, y := p.Pos()
			sess.QueuePacket(wire.EncodePositionCorrection(x, y, uint8(p.Facing())))
		}
		return
	}
	s.players.MarkDirty(p)
}

func (s *Scheduler) applyTurn(a action.Action) {
	p, ok := s.players.GetByClientID(a.ClientID)
	if !ok {
		return
	}
	if p.AttemptTurn(playerstate.Direction(a.Facing)) {
		s.players.MarkDirty(p)
		return
	}
	if sess, ok := s.sessions.Get(p.ID()); ok {
		sess.QueuePacket(wire.EncodeFacingCorrection(uint8(p.Facing())))
	}
}

func (s *Scheduler) applyChat(a action.Action) {
	p, ok := s.players.GetByClientID(a.ClientID)
	if !ok {
		return
	}
	payload := wire.EncodeChatBroadcast(a.Channel, p.ID(), a.Text)
	s.sessions.BroadcastAll(func(sess *netio.Session) {
		sess.QueuePacket(payload)
	})
}

// processDirtyPlayer implements spec.md 4.11 step 2: resettle one dirty
// player's position in the spatial index, recompute its visibility diff,
// notify observers it has left their range, and broadcast its new state
// to everyone who can currently see it.
func (s *Scheduler) processDirtyPlayer(p *playerstate.Player) {
	id := p.ID()
	x, y := p.Pos()

	s.world.UpdatePosition(id, x, y)

	visible := s.world.PlayersInRange(x, y, s.cfg.ViewRange)
	diff := s.world.Visibility().Update(id, visible)

	if sess, ok := s.sessions.Get(id); ok {
		if len(diff.Entered) > 0 {
			sess.QueuePacket(wire.EncodePlayerSpatialBatch(toSpatialEntries(diff.Entered)))
		}
		for _, leftID := range diff.Left {
			sess.QueuePacket(wire.EncodeLeftGame(leftID))
		}
	}

	lost := s.world.Visibility().NotifyObserversOfDeparture(id, x, y, s.cfg.ViewRange, s.world.GetPos)
	departed := wire.EncodeLeftGame(id)
	for _, observerID := range lost {
		if sess, ok := s.sessions.Get(observerID); ok {
			sess.QueuePacket(departed)
		}
	}

	selfUpdate := wire.EncodePlayerSpatialBatch([]wire.SpatialEntry{{
		PlayerID: id, X: x, Y: y, Facing: uint8(p.Facing()),
	}})
	for observerID := range s.world.Visibility().KnownBy(id) {
		if sess, ok := s.sessions.Get(observerID); ok {
			sess.QueuePacket(selfUpdate)
		}
	}
	if sess, ok := s.sessions.Get(id); ok {
		sess.QueuePacket(selfUpdate)
	}

	if s.script != nil {
		s.script(id, x, y, uint8(p.Facing()))
	}
}

func toSpatialEntries(players []*playerstate.Player) []wire.SpatialEntry {
	out := make([]wire.SpatialEntry, len(players))
	for i, p := range players {
		x, y := p.Pos()
		out[i] = wire.SpatialEntry{PlayerID: p.ID(), X: x, Y: y, Facing: uint8(p.Facing())}
	}
	return out
}
