// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package cleanup implements the periodic stale-resource reaper. It culls
// pending uploads whose confirmation never arrived, cooperating with other
// deployments through row-level skip-locked acquisition.
package cleanup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"ouroboros.dev/ouroboros/control/objectstore"
	"ouroboros.dev/ouroboros/internal/errs2"
	"ouroboros.dev/ouroboros/internal/sync2"
)

var (
	// Error is the cleanup chore error class.
	Error = errs.Class("resource cleanup chore")

	mon = monkit.Package()
)

// Config contains configurable values for the stale resource cleanup.
type Config struct {
	Enabled   bool          `help:"whether the stale resource cleanup chore runs" default:"true"`
	Interval  time.Duration `help:"how often to sweep for stale pending resources" releaseDefault:"1h" devDefault:"10s"`
	MaxAge    time.Duration `help:"how long a pending upload may stay unconfirmed before it is reaped" releaseDefault:"24h" devDefault:"1m"`
	ListLimit int           `help:"maximum stale resources processed per sweep" default:"100"`
}

// DB is the persistence surface the chore needs.
type DB interface {
	// SelectStaleIDs lists pending resources created before cutoff. The
	// selection takes no locks.
	SelectStaleIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	// WithPendingLocked opens a transaction, locks the row with
	// FOR UPDATE SKIP LOCKED and, when the row is still pending, runs fn
	// and deletes the row before committing. It reports processed=false
	// without error when the row is gone, already uploaded or locked
	// elsewhere. An fn error rolls the transaction back.
	WithPendingLocked(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) (processed bool, err error)
}

// Chore periodically reaps stale pending resources.
//
// architecture: Chore
type Chore struct {
	log    *zap.Logger
	config Config
	db     DB
	store  objectstore.Client

	nowFn func() time.Time
	Loop  *sync2.Cycle
}

// NewChore creates the stale resource cleanup chore.
func NewChore(log *zap.Logger, config Config, db DB, store objectstore.Client) *Chore {
	return &Chore{
		log:    log,
		config: config,
		db:     db,
		store:  store,

		nowFn: time.Now,
		Loop:  sync2.NewCycle(config.Interval),
	}
}

// Run starts the cleanup loop.
func (chore *Chore) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if !chore.config.Enabled {
		return nil
	}
	return chore.Loop.Run(ctx, func(ctx context.Context) error {
		_, _, err := chore.RunOnce(ctx)
		if errs2.IsCanceled(err) {
			return err
		}
		if err != nil {
			chore.log.Error("cleanup sweep failed", zap.Error(err))
		}
		// per-row failures are counted, never abort the loop
		return nil
	})
}

// Close stops the cleanup chore.
func (chore *Chore) Close() error {
	chore.Loop.Close()
	return nil
}

// TestingSetNow allows tests to pick the chore's idea of the current time.
func (chore *Chore) TestingSetNow(nowFn func() time.Time) {
	chore.nowFn = nowFn
}

// RunOnce performs a single sweep and reports how many rows were deleted and
// how many errored. Rows are processed one at a time, each in its own
// transaction, so locks are held briefly.
func (chore *Chore) RunOnce(ctx context.Context) (deleted, errored int, err error) {
	defer mon.Task()(&ctx)(&err)

	cutoff := chore.nowFn().Add(-chore.config.MaxAge)
	ids, err := chore.db.SelectStaleIDs(ctx, cutoff, chore.config.ListLimit)
	if err != nil {
		return 0, 0, Error.Wrap(err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return deleted, errored, err
		}

		id := id
		processed, err := chore.db.WithPendingLocked(ctx, id, func(ctx context.Context) error {
			err := chore.store.RemoveObject(ctx, id.String())
			if err != nil && !objectstore.ErrNotFound.Has(err) {
				return err
			}
			return nil
		})
		if err != nil {
			errored++
			chore.log.Warn("could not reap stale resource",
				zap.Stringer("resource", id), zap.Error(err))
			continue
		}
		if processed {
			deleted++
		}
	}

	chore.log.Info("stale resource sweep finished",
		zap.Int("deleted", deleted), zap.Int("errors", errored))
	return deleted, errored, nil
}
