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

	"ouroboros.dev/ouroboros/control/agents"
)

type agentsDB struct {
	db *sql.DB
}

const agentColumns = `id, host_name, client_signature, enabled, state,
	update_interval, use_native_hashcat, backend_devices, project_ids,
	last_seen_at, created_at, updated_at`

func scanAgent(row interface{ Scan(...any) error }) (*agents.Agent, error) {
	var agent agents.Agent
	err := row.Scan(&agent.ID, &agent.HostName, &agent.ClientSignature,
		&agent.Enabled, &agent.State, &agent.UpdateInterval, &agent.UseNativeHashcat,
		&agent.BackendDevices, pq.Array(&agent.ProjectIDs),
		&agent.LastSeenAt, &agent.CreatedAt, &agent.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, agents.ErrNotFound.New("not found")
		}
		return nil, Error.Wrap(err)
	}
	return &agent, nil
}

func (adb *agentsDB) Get(ctx context.Context, id int64) (_ *agents.Agent, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanAgent(adb.db.QueryRowContext(ctx, `
		SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
}

func (adb *agentsDB) Update(ctx context.Context, agent *agents.Agent) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := adb.db.ExecContext(ctx, `
		UPDATE agents SET enabled = $2, update_interval = $3,
			use_native_hashcat = $4, backend_devices = $5, updated_at = now()
		WHERE id = $1`,
		agent.ID, agent.Enabled, agent.UpdateInterval,
		agent.UseNativeHashcat, agent.BackendDevices)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return agents.ErrNotFound.New("%d", agent.ID)
	}
	return nil
}

func (adb *agentsDB) List(ctx context.Context, opts agents.ListOptions) (_ []agents.Agent, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	filter := `WHERE true`
	args := []any{}
	if !opts.All {
		args = append(args, pq.Array(opts.ProjectIDs))
		filter += fmt.Sprintf(` AND project_ids && $%d`, len(args))
	}
	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		filter += fmt.Sprintf(` AND host_name ILIKE $%d`, len(args))
	}
	if opts.State != nil {
		args = append(args, *opts.State)
		filter += fmt.Sprintf(` AND state = $%d`, len(args))
	}

	err = adb.db.QueryRowContext(ctx, `SELECT count(*) FROM agents `+filter, args...).Scan(&total)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}

	args = append(args, opts.Limit, opts.Offset)
	rows, err := adb.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM agents %s ORDER BY id LIMIT $%d OFFSET $%d`,
		agentColumns, filter, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	list := []agents.Agent{}
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *agent)
	}
	return list, total, Error.Wrap(rows.Err())
}

func (adb *agentsDB) Benchmarks(ctx context.Context, agentID int64) (_ []agents.Benchmark, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := adb.db.QueryContext(ctx, `
		SELECT hash_type_id, hash_speed, device, runtime_ms, created_at
		FROM agent_benchmarks
		WHERE agent_id = $1 ORDER BY created_at DESC, id DESC`, agentID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	benchmarks := []agents.Benchmark{}
	for rows.Next() {
		var benchmark agents.Benchmark
		err := rows.Scan(&benchmark.HashTypeID, &benchmark.HashSpeed,
			&benchmark.Device, &benchmark.RuntimeMs, &benchmark.CreatedAt)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		benchmarks = append(benchmarks, benchmark)
	}
	return benchmarks, Error.Wrap(rows.Err())
}

func (adb *agentsDB) Capabilities(ctx context.Context, agentID int64) (_ []agents.Capability, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := adb.db.QueryContext(ctx, `
		SELECT device_id, device_name, device_type, enabled
		FROM agent_capabilities
		WHERE agent_id = $1 ORDER BY device_id`, agentID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	capabilities := []agents.Capability{}
	for rows.Next() {
		var capability agents.Capability
		err := rows.Scan(&capability.DeviceID, &capability.DeviceName,
			&capability.DeviceType, &capability.Enabled)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		capabilities = append(capabilities, capability)
	}
	return capabilities, Error.Wrap(rows.Err())
}

func (adb *agentsDB) Errors(ctx context.Context, agentID int64, limit, offset int) (_ []agents.ErrorEntry, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = adb.db.QueryRowContext(ctx,
		`SELECT count(*) FROM agent_errors WHERE agent_id = $1`, agentID).Scan(&total)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}

	rows, err := adb.db.QueryContext(ctx, `
		SELECT id, message, severity, task_id, created_at
		FROM agent_errors
		WHERE agent_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		agentID, limit, offset)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	entries := []agents.ErrorEntry{}
	for rows.Next() {
		var entry agents.ErrorEntry
		err := rows.Scan(&entry.ID, &entry.Message, &entry.Severity,
			&entry.TaskID, &entry.CreatedAt)
		if err != nil {
			return nil, 0, Error.Wrap(err)
		}
		entries = append(entries, entry)
	}
	return entries, total, Error.Wrap(rows.Err())
}
