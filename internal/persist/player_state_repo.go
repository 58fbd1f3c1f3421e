package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// PlayerStateRow is the durable half of a Player: just enough to resume
// where an account left off across logins (spec.md's Player type itself
// is in-memory/tick-owned only; see spec.md section 1's Non-goals —
// durable world state beyond this account store is explicitly excluded).
type PlayerStateRow struct {
	AccountName string
	DisplayName string
	X, Y        int16
	Facing      uint8
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type PlayerStateRepo struct {
	db *DB
}

func NewPlayerStateRepo(db *DB) *PlayerStateRepo {
	return &PlayerStateRepo{db: db}
}

// Load returns the saved state for accountName, or nil if the account has
// never completed a session (a fresh login should use the world's default
// spawn point instead).
func (r *PlayerStateRepo) Load(ctx context.Context, accountName string) (*PlayerStateRow, error) {
	row := &PlayerStateRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT account_name, display_name, x, y, facing, created_at, updated_at
		 FROM player_state WHERE account_name = $1`, accountName,
	).Scan(&row.AccountName, &row.DisplayName, &row.X, &row.Y, &row.Facing, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Save upserts accountName's current position/facing. Called on logout
// and periodically (not per-tick — the tick worker never blocks on I/O),
// matching spec.md's async-write-queue treatment of the persistence
// collaborator: this repo's Save calls are themselves queued by the
// caller, not issued synchronously from the tick goroutine.
func (r *PlayerStateRepo) Save(ctx context.Context, row PlayerStateRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO player_state (account_name, display_name, x, y, facing, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (account_name) DO UPDATE
		   SET display_name = EXCLUDED.display_name,
		       x = EXCLUDED.x, y = EXCLUDED.y, facing = EXCLUDED.facing,
		       updated_at = NOW()`,
		row.AccountName, row.DisplayName, row.X, row.Y, row.Facing,
	)
	return err
}
