package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOnPlayerMoveInvokesLoadedHook(t *testing.T) {
	dir := t.TempDir()
	hooksDir := filepath.Join(dir, "hooks")
	require.NoError(t, os.MkdirAll(hooksDir, 0o755))

	script := `
last_player_id = nil
function on_player_move(player_id, x, y, facing)
  last_player_id = player_id
end
`
	require.NoError(t, os.WriteFile(filepath.Join(hooksDir, "move.lua"), []byte(script), 0o644))

	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	e.OnPlayerMove(42, 1, 2, 0)

	got := e.vm.GetGlobal("last_player_id")
	require.Equal(t, "42", got.String())
}

func TestOnPlayerMoveWithNoHookIsANoop(t *testing.T) {
	e, err := NewEngine(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	require.NotPanics(t, func() { e.OnPlayerMove(1, 0, 0, 0) })
}
