package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/dyewars/server/internal/action"
	"github.com/dyewars/server/internal/admission"
	"github.com/dyewars/server/internal/bot"
	"github.com/dyewars/server/internal/config"
	"github.com/dyewars/server/internal/dashboard"
	"github.com/dyewars/server/internal/ingest"
	"github.com/dyewars/server/internal/netio"
	"github.com/dyewars/server/internal/persist"
	"github.com/dyewars/server/internal/playerstate"
	"github.com/dyewars/server/internal/scripting"
	"github.com/dyewars/server/internal/stats"
	"github.com/dyewars/server/internal/tick"
	"github.com/dyewars/server/internal/tilemap"
	"github.com/dyewars/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, shardID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              DyeWars Server               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mshard:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, shardID)
}

func printSection(title string) {
	fmt.Printf("  \033[33m── %s ──────────────────────────────────\033[0m\n", title)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// env holds every long-lived resource built once at startup and shared
// across start/stop/restart cycles driven from the console.
type env struct {
	cfg *config.Config
	log *zap.Logger

	db           *persist.DB
	accounts     *persist.AccountRepo
	playerStates *persist.PlayerStateRepo
	saver        *persist.BatchSaver

	scripts *scripting.Engine

	world    *world.World
	players  *playerstate.Registry
	sessions *netio.SessionRegistry
	bots     *bot.Manager
	sink     *stats.Sink
	gate     *admission.Gate
}

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("DYEWARS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ShardID)

	printSection("database")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("postgres connected")

	if err := persist.RunMigrations(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")
	fmt.Println()

	printSection("world")
	m, err := tilemap.LoadYAML(cfg.World.MapPath)
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	printOK(fmt.Sprintf("map loaded (%dx%d)", m.Width(), m.Height()))

	scriptsEngine, err := scripting.NewEngine(cfg.Scripts.Dir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer scriptsEngine.Close()
	printOK("lua scripts loaded")
	fmt.Println()

	accountRepo := persist.NewAccountRepo(db)
	playerStateRepo := persist.NewPlayerStateRepo(db)
	saver := persist.NewBatchSaver(playerStateRepo, cfg.Persistence.QueueSize, log)

	e := &env{
		cfg:          cfg,
		log:          log,
		db:           db,
		accounts:     accountRepo,
		playerStates: playerStateRepo,
		saver:        saver,
		scripts:      scriptsEngine,
		world:        world.New(m),
		players:      playerstate.NewRegistry(),
		sessions:     netio.NewSessionRegistry(),
		bots:         bot.New(),
		sink:         stats.New(),
		gate: admission.New(admission.Config{
			MaxConnectionsPerIP:  cfg.Admission.MaxConnectionsPerIP,
			MaxAttemptsPerWindow: cfg.Admission.MaxAttemptsPerWindow,
			RateWindow:           cfg.Admission.RateWindow,
			MaxFailuresBeforeBan: cfg.Admission.MaxFailuresBeforeBan,
			ShardCount:           cfg.Admission.ShardCount,
		}),
	}

	ctrl := newController(e)
	ctrl.start()

	printSection("ready")
	printReady(fmt.Sprintf("listening (tick rate: %s)", cfg.Network.TickRate))
	fmt.Println("  commands: start, stop, restart, r (reload scripts), stats, status, exit")
	fmt.Println()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	stdin := bufio.NewScanner(os.Stdin)
	lineCh := make(chan string)
	go func() {
		for stdin.Scan() {
			lineCh <- stdin.Text()
		}
		close(lineCh)
	}()

	for {
		select {
		case sig := <-shutdownCh:
			log.Info("received shutdown signal", zap.String("signal", sig.String()))
			ctrl.stop()
			return nil

		case line, ok := <-lineCh:
			if !ok {
				ctrl.stop()
				return nil
			}
			if done := handleCommand(ctrl, line); done {
				return nil
			}
		}
	}
}

func handleCommand(ctrl *controller, cmd string) (exit bool) {
	switch cmd {
	case "start":
		ctrl.start()
	case "stop", "q":
		ctrl.stop()
	case "restart":
		ctrl.stop()
		ctrl.start()
	case "r":
		ctrl.reloadScripts()
	case "stats":
		snap := ctrl.env.sink.Snapshot()
		fmt.Printf("  tick avg=%.2fms max=%.2fms tps=%.1f players=%d bots=%d\n",
			snap.TickAvgMS, snap.TickMaxMS, snap.TicksPerSecond, snap.TotalPlayers, snap.FakeClients)
	case "status":
		if ctrl.running() {
			fmt.Println("  server is running")
		} else {
			fmt.Println("  server is stopped")
		}
	case "exit", "quit":
		ctrl.stop()
		return true
	case "help":
		fmt.Println("  commands: start, stop, restart, r (reload), stats, status, exit")
	default:
		if cmd != "" {
			fmt.Printf("  unknown command %q (try 'help')\n", cmd)
		}
	}
	return false
}

// controller start/stops the network, tick, and dashboard goroutines
// while leaving world/player/script/database state alive across
// restarts — mirroring the original server's start/stop console loop,
// generalized so "stop" pauses the game rather than tearing down every
// loaded resource.
type controller struct {
	env *env

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     *errgroup.Group
}

func newController(e *env) *controller {
	return &controller{env: e}
}

func (c *controller) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *controller) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.env.log.Warn("server already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	e := c.env

	netServer, err := netio.NewServer(e.cfg.Network.BindAddress, e.cfg.Network.InQueueSize, e.cfg.Network.OutQueueSize, e.gate, e.sink, e.log)
	if err != nil {
		e.log.Error("failed to start network server", zap.Error(err))
		cancel()
		return
	}

	actions := action.NewQueue()
	ingestWorker := ingest.New(ingest.Config{
		ServerVersion:    uint16(e.cfg.Server.ServerVersion),
		ServerMagic:      e.cfg.Server.ServerMagic,
		HandshakeTimeout: e.cfg.Network.HandshakeTimeout,
		PacketsPerSecond: e.cfg.Admission.MaxPacketsPerSecond,
		PacketBurst:      e.cfg.Admission.PacketBurst,
	}, actions, e.gate, e.accounts, e.log)

	sched := tick.New(
		tick.Config{
			TickRate:             e.cfg.Network.TickRate,
			ViewRange:            int16(e.cfg.World.ViewRange),
			SpawnX:               e.cfg.World.SpawnX,
			SpawnY:               e.cfg.World.SpawnY,
			PersistIntervalTicks: e.cfg.Persistence.BatchIntervalTicks,
		},
		e.world, e.players, e.sessions, actions, e.bots, e.sink,
		e.scripts.OnPlayerMove,
		func(name string, x, y int16, facing uint8) {
			e.saver.Enqueue(persist.PlayerStateRow{AccountName: name, DisplayName: name, X: x, Y: y, Facing: facing})
		},
		e.log,
	)

	dash := dashboard.New(e.cfg.Dashboard.BindAddress, e.sink, e.log)

	g.Go(func() error { e.saver.Run(gctx); return nil })
	g.Go(func() error { netServer.AcceptLoop(); return nil })
	g.Go(func() error { sched.Run(gctx); return nil })
	g.Go(func() error { return dash.Run(gctx) })
	g.Go(func() error { acceptSessions(gctx, e, netServer, ingestWorker, actions); return nil })
	g.Go(func() error { reapIdleSessions(gctx, e, netServer.NotifyDead); return nil })

	go func() {
		<-gctx.Done()
		netServer.Shutdown()
	}()

	c.cancel = cancel
	c.wg = g
	e.log.Info("server started")
}

func (c *controller) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		c.env.log.Warn("server not running")
		return
	}
	c.cancel()
	_ = c.wg.Wait()
	c.cancel = nil
	c.wg = nil
	c.env.log.Info("server stopped")
}

func (c *controller) reloadScripts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.env.scripts.Reload(); err != nil {
		c.env.log.Error("script reload failed", zap.Error(err))
		return
	}
	c.env.log.Info("scripts reloaded")
}

// acceptSessions registers every accepted connection and spawns its
// dedicated ingest worker goroutine.
func acceptSessions(ctx context.Context, e *env, netServer *netio.Server, w *ingest.Worker, actions *action.Queue) {
	for {
		select {
		case <-ctx.Done():
			return
		case sess, ok := <-netServer.NewSessions():
			if !ok {
				return
			}
			e.sessions.Register(sess)
			go func() {
				w.Run(sess)
				// playerstate.Registry and tick.applyLogout key off the
				// connection id (sess.ID), not the player id — Logout
				// must carry the same id Login used or the player is
				// never resolved and never removed.
				actions.Push(action.Logout(sess.ID))
				netServer.NotifyDead(sess.ID, sess.IP)
				e.sessions.RemoveBySessionID(sess.ID)
			}()
		}
	}
}

// reapIdleSessions periodically closes sessions that have gone quiet
// for twice the configured ping interval.
func reapIdleSessions(ctx context.Context, e *env, _ func(uint64, string)) {
	interval := e.cfg.Network.PingInterval
	if interval <= 0 {
		return
	}
	threshold := interval * time.Duration(max(1, e.cfg.Network.MissedPingsLimit))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.sessions.ReapIdle(threshold); n > 0 {
				e.log.Debug("reaped idle sessions", zap.Int("count", n))
			}
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
