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

	"ouroboros.dev/ouroboros/control/attacks"
)

type attacksDB struct {
	db *sql.DB
}

const attackColumns = `id, campaign_id, name, attack_mode, position, state, mask,
	word_list_id, rule_list_id, mask_list_id, left_rule,
	hash_list_url, hash_list_checksum, created_at, updated_at`

func scanAttack(row interface{ Scan(...any) error }) (*attacks.Attack, error) {
	var attack attacks.Attack
	err := row.Scan(&attack.ID, &attack.CampaignID, &attack.Name, &attack.Mode,
		&attack.Position, &attack.State, &attack.Mask,
		&attack.WordListID, &attack.RuleListID, &attack.MaskListID, &attack.LeftRule,
		&attack.HashListURL, &attack.HashListChecksum, &attack.CreatedAt, &attack.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, attacks.ErrNotFound.New("not found")
		}
		return nil, Error.Wrap(err)
	}
	return &attack, nil
}

func (adb *attacksDB) Insert(ctx context.Context, attack *attacks.Attack) (_ *attacks.Attack, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanAttack(adb.db.QueryRowContext(ctx, `
		INSERT INTO attacks (campaign_id, name, attack_mode, position, state, mask,
			word_list_id, rule_list_id, mask_list_id, left_rule,
			hash_list_url, hash_list_checksum)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+attackColumns,
		attack.CampaignID, attack.Name, attack.Mode, attack.Position, attack.State,
		attack.Mask, attack.WordListID, attack.RuleListID, attack.MaskListID,
		attack.LeftRule, attack.HashListURL, attack.HashListChecksum))
}

func (adb *attacksDB) Update(ctx context.Context, attack *attacks.Attack) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := adb.db.ExecContext(ctx, `
		UPDATE attacks SET name = $2, attack_mode = $3, mask = $4,
			word_list_id = $5, rule_list_id = $6, mask_list_id = $7, left_rule = $8,
			updated_at = now()
		WHERE id = $1`,
		attack.ID, attack.Name, attack.Mode, attack.Mask,
		attack.WordListID, attack.RuleListID, attack.MaskListID, attack.LeftRule)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return attacks.ErrNotFound.New("%d", attack.ID)
	}
	return nil
}

func (adb *attacksDB) UpdateState(ctx context.Context, id int64, state attacks.State) (_ *attacks.Attack, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanAttack(adb.db.QueryRowContext(ctx, `
		UPDATE attacks SET state = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+attackColumns, id, state))
}

func (adb *attacksDB) Get(ctx context.Context, id int64) (_ *attacks.Attack, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanAttack(adb.db.QueryRowContext(ctx, `
		SELECT `+attackColumns+` FROM attacks WHERE id = $1`, id))
}

func (adb *attacksDB) Delete(ctx context.Context, id int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := adb.db.ExecContext(ctx, `DELETE FROM attacks WHERE id = $1`, id)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return attacks.ErrNotFound.New("%d", id)
	}
	return nil
}

func (adb *attacksDB) List(ctx context.Context, opts attacks.ListOptions) (_ []attacks.Attack, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	filter := `JOIN campaigns ON campaigns.id = attacks.campaign_id
		WHERE campaigns.project_id = ANY($1)`
	args := []any{pq.Array(opts.ProjectIDs)}
	if opts.CampaignID != nil {
		args = append(args, *opts.CampaignID)
		filter += fmt.Sprintf(` AND attacks.campaign_id = $%d`, len(args))
	}
	if opts.State != nil {
		args = append(args, *opts.State)
		filter += fmt.Sprintf(` AND attacks.state = $%d`, len(args))
	}

	err = adb.db.QueryRowContext(ctx, `SELECT count(*) FROM attacks `+filter, args...).Scan(&total)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}

	columns := `attacks.id, attacks.campaign_id, attacks.name, attacks.attack_mode,
		attacks.position, attacks.state, attacks.mask,
		attacks.word_list_id, attacks.rule_list_id, attacks.mask_list_id, attacks.left_rule,
		attacks.hash_list_url, attacks.hash_list_checksum, attacks.created_at, attacks.updated_at`

	args = append(args, opts.Limit, opts.Offset)
	rows, err := adb.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM attacks %s
		ORDER BY attacks.position, attacks.id LIMIT $%d OFFSET $%d`,
		columns, filter, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	list := []attacks.Attack{}
	for rows.Next() {
		attack, err := scanAttack(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *attack)
	}
	return list, total, Error.Wrap(rows.Err())
}

func (adb *attacksDB) MaxPosition(ctx context.Context, campaignID int64) (position int, err error) {
	defer mon.Task()(&ctx)(&err)

	err = adb.db.QueryRowContext(ctx,
		`SELECT coalesce(max(position), -1) FROM attacks WHERE campaign_id = $1`,
		campaignID).Scan(&position)
	return position, Error.Wrap(err)
}

func (adb *attacksDB) Metrics(ctx context.Context, attackID int64) (metrics attacks.Metrics, err error) {
	defer mon.Task()(&ctx)(&err)

	err = adb.db.QueryRowContext(ctx, `
		SELECT
			count(DISTINCT tasks.agent_id) FILTER (WHERE tasks.status = 'running'),
			coalesce(avg(tasks.progress), 0)
		FROM tasks WHERE tasks.attack_id = $1`, attackID).
		Scan(&metrics.AgentCount, &metrics.ProgressPercent)
	if err != nil {
		return attacks.Metrics{}, Error.Wrap(err)
	}

	err = adb.db.QueryRowContext(ctx, `
		SELECT count(hash_items.id)
		FROM hash_items
		JOIN campaigns ON campaigns.hash_list_id = hash_items.hash_list_id
		JOIN attacks ON attacks.campaign_id = campaigns.id
		WHERE attacks.id = $1`, attackID).Scan(&metrics.TotalHashes)
	if err != nil {
		return attacks.Metrics{}, Error.Wrap(err)
	}

	// Aggregate speed is the sum of the latest benchmark for the target hash
	// type across agents with a running task on this attack.
	err = adb.db.QueryRowContext(ctx, `
		SELECT coalesce(sum(speed), 0) FROM (
			SELECT DISTINCT ON (benchmarks.agent_id) benchmarks.hash_speed AS speed
			FROM agent_benchmarks benchmarks
			JOIN tasks ON tasks.agent_id = benchmarks.agent_id
				AND tasks.status = 'running' AND tasks.attack_id = $1
			JOIN attacks ON attacks.id = tasks.attack_id
			JOIN campaigns ON campaigns.id = attacks.campaign_id
			JOIN hash_lists ON hash_lists.id = campaigns.hash_list_id
			WHERE benchmarks.hash_type_id = hash_lists.hash_type_id
			ORDER BY benchmarks.agent_id, benchmarks.created_at DESC
		) speeds`, attackID).Scan(&metrics.HashesPerSec)
	return metrics, Error.Wrap(err)
}
