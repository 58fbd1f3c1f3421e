// Package scripting wraps a single gopher-lua VM exposing the one
// gameplay hook this core's spec treats as an external collaborator:
// a per-move notification scripts can use for custom behavior (auras,
// scripted NPC reactions, zone triggers) without reaching back into
// tick-owned state themselves.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for game logic execution.
// Single VM, guarded by a mutex: the tick goroutine is the only caller in
// practice, but a mutex keeps the contract explicit rather than relying on
// caller discipline.
type Engine struct {
	mu         sync.Mutex
	vm         *lua.LState
	scriptsDir string
	log        *zap.Logger
}

// NewEngine creates a Lua engine and loads every .lua file under
// scriptsDir/hooks. A missing directory is not an error — scripting is
// optional, and an Engine with no loaded hook functions simply no-ops.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, scriptsDir: scriptsDir, log: log}

	hooksPath := filepath.Join(scriptsDir, "hooks")
	if err := e.loadDir(hooksPath); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load hook scripts: %w", err)
	}

	return e, nil
}

// Reload discards the running Lua VM and boots a fresh one from
// scriptsDir/hooks, so operators can push script changes without
// restarting the server — mirrors the console "r" command against the
// original server's ReloadScripts.
func (e *Engine) Reload() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	old := e.vm
	e.vm = vm
	if err := e.loadDir(filepath.Join(e.scriptsDir, "hooks")); err != nil {
		vm.Close()
		e.vm = old
		return fmt.Errorf("reload hook scripts: %w", err)
	}
	old.Close()
	return nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// OnPlayerMove invokes the Lua global on_player_move(player_id, x, y,
// facing) if one is defined; absence is not an error, since most
// deployments run with no scripts loaded at all. Matches
// tick.ScriptHook's signature so an Engine can be passed directly as a
// Scheduler's hook.
func (e *Engine) OnPlayerMove(playerID uint64, x, y int16, facing uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("on_player_move")
	if fn == lua.LNil {
		return
	}

	err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	},
		lua.LNumber(playerID),
		lua.LNumber(x),
		lua.LNumber(y),
		lua.LNumber(facing),
	)
	if err != nil {
		e.log.Error("lua hook error", zap.String("func", "on_player_move"), zap.Error(err))
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
