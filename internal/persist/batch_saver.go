package persist

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BatchSaver is the async write queue spec.md describes as sitting in
// front of the account/player store: callers enqueue a snapshot and
// return immediately, a single background worker drains the queue and
// writes to Postgres, so neither the tick goroutine nor a network
// goroutine ever blocks on a database round trip.
type BatchSaver struct {
	repo  *PlayerStateRepo
	queue chan PlayerStateRow
	log   *zap.Logger
}

// NewBatchSaver creates a saver with the given queue depth. A full
// queue drops the newly submitted write rather than blocking the
// caller; rows already queued are kept.
func NewBatchSaver(repo *PlayerStateRepo, queueSize int, log *zap.Logger) *BatchSaver {
	return &BatchSaver{
		repo:  repo,
		queue: make(chan PlayerStateRow, queueSize),
		log:   log,
	}
}

// Enqueue submits row for eventual persistence. Never blocks.
func (b *BatchSaver) Enqueue(row PlayerStateRow) {
	select {
	case b.queue <- row:
	default:
		b.log.Warn("persistence queue full, dropping snapshot", zap.String("account", row.AccountName))
	}
}

// Run drains the queue until ctx is canceled.
func (b *BatchSaver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case row := <-b.queue:
			b.save(row)
		}
	}
}

func (b *BatchSaver) save(row PlayerStateRow) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.repo.Save(ctx, row); err != nil {
		b.log.Warn("failed to persist player state", zap.String("account", row.AccountName), zap.Error(err))
	}
}
