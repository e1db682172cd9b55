// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package controldb implements the control plane repositories over Postgres.
package controldb

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	// registers the postgres driver.
	_ "github.com/lib/pq"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/agents"
	"ouroboros.dev/ouroboros/control/attacks"
	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/hashlists"
	"ouroboros.dev/ouroboros/control/resources"
	"ouroboros.dev/ouroboros/control/resources/cleanup"
	"ouroboros.dev/ouroboros/control/systemstats"
	"ouroboros.dev/ouroboros/control/tasks"
)

var (
	// Error is the controldb error class.
	Error = errs.Class("controldb")

	mon = monkit.Package()
)

// DB is the Postgres-backed control plane database.
type DB struct {
	log *zap.Logger
	db  *sql.DB
}

// Open connects to the database at databaseURL and verifies the connection.
// Only postgres URLs are supported.
func Open(ctx context.Context, log *zap.Logger, databaseURL string) (_ *DB, err error) {
	defer mon.Task()(&ctx)(&err)

	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !strings.EqualFold(parsed.Scheme, "postgres") && !strings.EqualFold(parsed.Scheme, "postgresql") {
		return nil, Error.New("unsupported database scheme %q", parsed.Scheme)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, Error.Wrap(errs.Combine(err, db.Close()))
	}

	return &DB{log: log, db: db}, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return Error.Wrap(db.db.Close())
}

// Accounts returns the account repositories.
func (db *DB) Accounts() accounts.DB { return &accountsDB{db: db.db} }

// Campaigns returns the campaign repository.
func (db *DB) Campaigns() campaigns.DB { return &campaignsDB{db: db.db} }

// Attacks returns the attack repository.
func (db *DB) Attacks() attacks.DB { return &attacksDB{db: db.db} }

// HashLists returns the hash list repository.
func (db *DB) HashLists() hashlists.DB { return &hashListsDB{db: db.db} }

// Resources returns the resource repository.
func (db *DB) Resources() resources.DB { return &ResourcesDB{db: db.db} }

// StaleResources returns the stale-row surface used by the cleanup chore.
func (db *DB) StaleResources() cleanup.DB { return &ResourcesDB{db: db.db} }

// Tasks returns the task repository.
func (db *DB) Tasks() tasks.DB { return &tasksDB{db: db.db} }

// Agents returns the agent repository.
func (db *DB) Agents() agents.DB { return &agentsDB{db: db.db} }

// Stats returns the statistics repository.
func (db *DB) Stats() systemstats.DB { return &statsDB{db: db.db} }

var (
	_ resources.DB = (*ResourcesDB)(nil)
	_ cleanup.DB   = (*ResourcesDB)(nil)
)
