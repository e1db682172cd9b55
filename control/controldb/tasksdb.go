// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/zeebo/errs"

	"ouroboros.dev/ouroboros/control/tasks"
)

type tasksDB struct {
	db *sql.DB
}

const taskColumns = `id, attack_id, agent_id, status, progress, keyspace_total, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*tasks.Task, error) {
	var task tasks.Task
	err := row.Scan(&task.ID, &task.AttackID, &task.AgentID, &task.Status,
		&task.Progress, &task.KeyspaceTotal, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tasks.ErrNotFound.New("not found")
		}
		return nil, Error.Wrap(err)
	}
	return &task, nil
}

func (tdb *tasksDB) Get(ctx context.Context, id int64) (_ *tasks.Task, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanTask(tdb.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

func (tdb *tasksDB) Update(ctx context.Context, task *tasks.Task) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := tdb.db.ExecContext(ctx, `
		UPDATE tasks SET agent_id = $2, status = $3, progress = $4, updated_at = now()
		WHERE id = $1`,
		task.ID, task.AgentID, task.Status, task.Progress)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return tasks.ErrNotFound.New("%d", task.ID)
	}
	return nil
}

func (tdb *tasksDB) List(ctx context.Context, opts tasks.ListOptions) (_ []tasks.Task, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	filter := `JOIN attacks ON attacks.id = tasks.attack_id
		JOIN campaigns ON campaigns.id = attacks.campaign_id
		WHERE campaigns.project_id = ANY($1)`
	args := []any{pq.Array(opts.ProjectIDs)}
	if opts.Status != nil {
		args = append(args, *opts.Status)
		filter += fmt.Sprintf(` AND tasks.status = $%d`, len(args))
	}
	if opts.AttackID != nil {
		args = append(args, *opts.AttackID)
		filter += fmt.Sprintf(` AND tasks.attack_id = $%d`, len(args))
	}
	if opts.CampaignID != nil {
		args = append(args, *opts.CampaignID)
		filter += fmt.Sprintf(` AND attacks.campaign_id = $%d`, len(args))
	}
	if opts.AgentID != nil {
		args = append(args, *opts.AgentID)
		filter += fmt.Sprintf(` AND tasks.agent_id = $%d`, len(args))
	}

	err = tdb.db.QueryRowContext(ctx, `SELECT count(*) FROM tasks `+filter, args...).Scan(&total)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}

	columns := `tasks.id, tasks.attack_id, tasks.agent_id, tasks.status,
		tasks.progress, tasks.keyspace_total, tasks.created_at, tasks.updated_at`

	args = append(args, opts.Limit, opts.Offset)
	rows, err := tdb.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM tasks %s ORDER BY tasks.id DESC LIMIT $%d OFFSET $%d`,
		columns, filter, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	list := []tasks.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *task)
	}
	return list, total, Error.Wrap(rows.Err())
}

func (tdb *tasksDB) ProjectID(ctx context.Context, taskID int64) (projectID int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = tdb.db.QueryRowContext(ctx, `
		SELECT campaigns.project_id FROM tasks
		JOIN attacks ON attacks.id = tasks.attack_id
		JOIN campaigns ON campaigns.id = attacks.campaign_id
		WHERE tasks.id = $1`, taskID).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, tasks.ErrNotFound.New("%d", taskID)
	}
	return projectID, Error.Wrap(err)
}

func (tdb *tasksDB) StatusUpdates(ctx context.Context, taskID int64, limit int) (_ []tasks.StatusUpdate, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := tdb.db.QueryContext(ctx, `
		SELECT id, task_id, status, session_name, progress, timestamp
		FROM task_status_updates
		WHERE task_id = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`, taskID, limit)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	updates := []tasks.StatusUpdate{}
	for rows.Next() {
		var update tasks.StatusUpdate
		err := rows.Scan(&update.ID, &update.TaskID, &update.Status,
			&update.SessionName, &update.Progress, &update.Timestamp)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		updates = append(updates, update)
	}
	return updates, Error.Wrap(rows.Err())
}
