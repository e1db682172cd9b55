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

	"ouroboros.dev/ouroboros/control/campaigns"
)

type campaignsDB struct {
	db *sql.DB
}

const campaignColumns = `id, project_id, hash_list_id, name, description, priority, state, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*campaigns.Campaign, error) {
	var campaign campaigns.Campaign
	err := row.Scan(&campaign.ID, &campaign.ProjectID, &campaign.HashListID,
		&campaign.Name, &campaign.Description, &campaign.Priority, &campaign.State,
		&campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, campaigns.ErrNotFound.New("not found")
		}
		return nil, Error.Wrap(err)
	}
	return &campaign, nil
}

func (cdb *campaignsDB) Insert(ctx context.Context, campaign *campaigns.Campaign) (_ *campaigns.Campaign, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanCampaign(cdb.db.QueryRowContext(ctx, `
		INSERT INTO campaigns (project_id, hash_list_id, name, description, priority, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+campaignColumns,
		campaign.ProjectID, campaign.HashListID, campaign.Name,
		campaign.Description, campaign.Priority, campaign.State))
}

func (cdb *campaignsDB) Update(ctx context.Context, campaign *campaigns.Campaign) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := cdb.db.ExecContext(ctx, `
		UPDATE campaigns SET name = $2, description = $3, priority = $4, updated_at = now()
		WHERE id = $1`,
		campaign.ID, campaign.Name, campaign.Description, campaign.Priority)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return campaigns.ErrNotFound.New("%d", campaign.ID)
	}
	return nil
}

func (cdb *campaignsDB) UpdateState(ctx context.Context, id int64, state campaigns.State) (_ *campaigns.Campaign, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanCampaign(cdb.db.QueryRowContext(ctx, `
		UPDATE campaigns SET state = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+campaignColumns, id, state))
}

func (cdb *campaignsDB) Get(ctx context.Context, id int64) (_ *campaigns.Campaign, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanCampaign(cdb.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
}

func (cdb *campaignsDB) Delete(ctx context.Context, id int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := cdb.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return campaigns.ErrNotFound.New("%d", id)
	}
	return nil
}

func (cdb *campaignsDB) List(ctx context.Context, opts campaigns.ListOptions) (_ []campaigns.Campaign, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	filter := `WHERE project_id = ANY($1)`
	args := []any{pq.Array(opts.ProjectIDs)}
	if opts.Name != "" {
		args = append(args, "%"+opts.Name+"%")
		filter += fmt.Sprintf(` AND name ILIKE $%d`, len(args))
	}
	if opts.ProjectID != nil {
		args = append(args, *opts.ProjectID)
		filter += fmt.Sprintf(` AND project_id = $%d`, len(args))
	}

	err = cdb.db.QueryRowContext(ctx, `SELECT count(*) FROM campaigns `+filter, args...).Scan(&total)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}

	args = append(args, opts.Limit, opts.Offset)
	rows, err := cdb.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM campaigns %s
		ORDER BY project_id, updated_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		campaignColumns, filter, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	list := []campaigns.Campaign{}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *campaign)
	}
	return list, total, Error.Wrap(rows.Err())
}

func (cdb *campaignsDB) CountAttacks(ctx context.Context, campaignID int64) (count int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = cdb.db.QueryRowContext(ctx,
		`SELECT count(*) FROM attacks WHERE campaign_id = $1`, campaignID).Scan(&count)
	return count, Error.Wrap(err)
}

func (cdb *campaignsDB) AttackIDs(ctx context.Context, campaignID int64) (_ []int64, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := cdb.db.QueryContext(ctx,
		`SELECT id FROM attacks WHERE campaign_id = $1 ORDER BY position, id`, campaignID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, Error.Wrap(err)
		}
		ids = append(ids, id)
	}
	return ids, Error.Wrap(rows.Err())
}

func (cdb *campaignsDB) ReorderAttacks(ctx context.Context, campaignID int64, order []campaigns.AttackPosition) (err error) {
	defer mon.Task()(&ctx)(&err)

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, Error.Wrap(tx.Rollback()))
		}
	}()

	for _, position := range order {
		_, err = tx.ExecContext(ctx, `
			UPDATE attacks SET position = $3, updated_at = now()
			WHERE id = $1 AND campaign_id = $2`,
			position.AttackID, campaignID, position.Position)
		if err != nil {
			return Error.Wrap(err)
		}
	}
	err = Error.Wrap(tx.Commit())
	return err
}

func (cdb *campaignsDB) Progress(ctx context.Context, campaignID int64) (stats campaigns.ProgressStats, err error) {
	defer mon.Task()(&ctx)(&err)

	err = cdb.db.QueryRowContext(ctx, `
		SELECT
			count(DISTINCT tasks.agent_id) FILTER (WHERE tasks.status = 'running'),
			count(tasks.id),
			count(tasks.id) FILTER (WHERE tasks.status = 'pending'),
			count(tasks.id) FILTER (WHERE tasks.status = 'running'),
			count(tasks.id) FILTER (WHERE tasks.status = 'completed'),
			count(tasks.id) FILTER (WHERE tasks.status = 'failed')
		FROM tasks
		JOIN attacks ON attacks.id = tasks.attack_id
		WHERE attacks.campaign_id = $1`, campaignID).
		Scan(&stats.ActiveAgents, &stats.TotalTasks, &stats.PendingTasks,
			&stats.RunningTasks, &stats.CompletedTasks, &stats.FailedTasks)
	return stats, Error.Wrap(err)
}

func (cdb *campaignsDB) CrackCounts(ctx context.Context, campaignID int64) (counts campaigns.CrackStats, err error) {
	defer mon.Task()(&ctx)(&err)

	err = cdb.db.QueryRowContext(ctx, `
		SELECT count(hash_items.id), count(hash_items.plain_text)
		FROM hash_items
		JOIN campaigns ON campaigns.hash_list_id = hash_items.hash_list_id
		WHERE campaigns.id = $1`, campaignID).
		Scan(&counts.TotalHashes, &counts.CrackedHashes)
	return counts, Error.Wrap(err)
}

func (cdb *campaignsDB) ActiveAgentCount(ctx context.Context) (count int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = cdb.db.QueryRowContext(ctx,
		`SELECT count(*) FROM agents WHERE enabled AND state = 'active'`).Scan(&count)
	return count, Error.Wrap(err)
}
