package playerstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysOpen(int16, int16) bool { return false }

func TestAttemptMoveSucceedsWhenFacingMatchesAndPathClear(t *testing.T) {
	p := NewPlayer(1, 5, 5, DirSouth)

	result := p.AttemptMove(DirSouth, DirSouth, 0, alwaysOpen, nil)
	assert.Equal(t, MoveSuccess, result)
	assert.Equal(t, int16(5), p.X())
	assert.Equal(t, int16(4), p.Y()) // South decrements Y
}

func TestAttemptMoveRejectsWrongFacing(t *testing.T) {
	p := NewPlayer(1, 5, 5, DirNorth)
	result := p.AttemptMove(DirSouth, DirNorth, 0, alwaysOpen, nil)
	assert.Equal(t, MoveWrongFacing, result)
}

func TestAttemptMoveRejectsOnCooldown(t *testing.T) {
	p := NewPlayer(1, 5, 5, DirSouth)
	first := p.AttemptMove(DirSouth, DirSouth, 0, alwaysOpen, nil)
	require.Equal(t, MoveSuccess, first)

	second := p.AttemptMove(DirSouth, DirSouth, 0, alwaysOpen, nil)
	assert.Equal(t, MoveOnCooldown, second)
}

func TestAttemptMoveRespectsBlockedTile(t *testing.T) {
	p := NewPlayer(1, 5, 5, DirEast)
	blocked := func(x, y int16) bool { return true }

	result := p.AttemptMove(DirEast, DirEast, 0, blocked, nil)
	assert.Equal(t, MoveBlocked, result)
	assert.Equal(t, int16(5), p.X()) // unchanged
}

func TestAttemptMoveRespectsPlayerOccupancy(t *testing.T) {
	p := NewPlayer(1, 5, 5, DirEast)
	occupied := func(x, y int16) bool { return true }

	result := p.AttemptMove(DirEast, DirEast, 0, alwaysOpen, occupied)
	assert.Equal(t, MoveOccupiedByPlayer, result)
}

func TestAttemptMoveRejectsInvalidDirection(t *testing.T) {
	p := NewPlayer(1, 5, 5, Direction(9))
	result := p.AttemptMove(Direction(9), Direction(9), 0, alwaysOpen, nil)
	assert.Equal(t, MoveInvalidDirection, result)
}

func TestAdjustedCooldownFloorsAtMinimum(t *testing.T) {
	assert.Equal(t, minMoveCooldown, adjustedCooldown(10_000))
}

func TestAdjustedCooldownUsesHalfPing(t *testing.T) {
	got := adjustedCooldown(40) // 20ms one-way
	assert.Equal(t, baseMoveCooldown-20*time.Millisecond, got)
}

func TestAttemptTurnRespectsCooldownAndValidity(t *testing.T) {
	p := NewPlayer(1, 0, 0, DirNorth)

	assert.True(t, p.AttemptTurn(DirEast))
	assert.Equal(t, DirEast, p.Facing())

	assert.False(t, p.AttemptTurn(DirSouth)) // still on turn cooldown
	assert.False(t, p.AttemptTurn(Direction(9)))
	assert.False(t, p.AttemptTurn(DirEast)) // no-op, same facing
}
