// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"context"
	"database/sql"
	"time"

	"ouroboros.dev/ouroboros/control/systemstats"
)

type statsDB struct {
	db *sql.DB
}

func (sdb *statsDB) AgentCounts(ctx context.Context) (counts systemstats.Counts, err error) {
	defer mon.Task()(&ctx)(&err)

	err = sdb.db.QueryRowContext(ctx, `
		SELECT count(*), count(*) FILTER (WHERE enabled AND state = 'active')
		FROM agents`).Scan(&counts.Total, &counts.Active)
	return counts, Error.Wrap(err)
}

func (sdb *statsDB) CampaignCounts(ctx context.Context) (counts systemstats.Counts, err error) {
	defer mon.Task()(&ctx)(&err)

	err = sdb.db.QueryRowContext(ctx, `
		SELECT count(*), count(*) FILTER (WHERE state = 'active')
		FROM campaigns`).Scan(&counts.Total, &counts.Active)
	return counts, Error.Wrap(err)
}

func (sdb *statsDB) TaskCounts(ctx context.Context) (counts systemstats.TaskCounts, err error) {
	defer mon.Task()(&ctx)(&err)

	err = sdb.db.QueryRowContext(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'running'),
			count(*) FILTER (WHERE status = 'failed')
		FROM tasks`).Scan(&counts.Total, &counts.Pending, &counts.Running, &counts.Failed)
	return counts, Error.Wrap(err)
}

func (sdb *statsDB) TasksCreatedSince(ctx context.Context, since time.Time) (count int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = sdb.db.QueryRowContext(ctx,
		`SELECT count(*) FROM tasks WHERE created_at >= $1`, since).Scan(&count)
	return count, Error.Wrap(err)
}

func (sdb *statsDB) PendingResourceCount(ctx context.Context) (count int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = sdb.db.QueryRowContext(ctx,
		`SELECT count(*) FROM resources WHERE NOT is_uploaded`).Scan(&count)
	return count, Error.Wrap(err)
}
