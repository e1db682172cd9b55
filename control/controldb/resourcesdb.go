// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zeebo/errs"

	"ouroboros.dev/ouroboros/control/resources"
)

// ResourcesDB implements the resource repository plus the stale-upload
// selection used by the cleanup chore.
type ResourcesDB struct {
	db *sql.DB
}

const resourceColumns = `id, project_id, file_name, file_label, resource_type,
	line_format, line_encoding, used_for_modes, source, line_count, byte_size,
	checksum, guid, is_uploaded, tags, content_lines, created_at, updated_at`

func scanResource(row interface{ Scan(...any) error }) (*resources.Resource, error) {
	var resource resources.Resource
	err := row.Scan(&resource.ID, &resource.ProjectID, &resource.FileName,
		&resource.FileLabel, &resource.Type, &resource.LineFormat, &resource.LineEncoding,
		pq.Array(&resource.UsedForModes), &resource.Source, &resource.LineCount,
		&resource.ByteSize, &resource.Checksum, &resource.GUID, &resource.IsUploaded,
		pq.Array(&resource.Tags), pq.Array(&resource.ContentLines),
		&resource.CreatedAt, &resource.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resources.ErrNotFound.New("not found")
		}
		return nil, Error.Wrap(err)
	}
	return &resource, nil
}

// Insert stores a new resource row.
func (rdb *ResourcesDB) Insert(ctx context.Context, resource *resources.Resource) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = rdb.db.ExecContext(ctx, `
		INSERT INTO resources (id, project_id, file_name, file_label, resource_type,
			line_format, line_encoding, used_for_modes, source, line_count, byte_size,
			checksum, guid, is_uploaded, tags, content_lines)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		resource.ID, resource.ProjectID, resource.FileName, resource.FileLabel,
		resource.Type, resource.LineFormat, resource.LineEncoding,
		pq.Array(resource.UsedForModes), resource.Source, resource.LineCount,
		resource.ByteSize, resource.Checksum, resource.GUID, resource.IsUploaded,
		pq.Array(resource.Tags), pq.Array(resource.ContentLines))
	return Error.Wrap(err)
}

// Update rewrites the mutable resource fields.
func (rdb *ResourcesDB) Update(ctx context.Context, resource *resources.Resource) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := rdb.db.ExecContext(ctx, `
		UPDATE resources SET project_id = $2, file_name = $3, file_label = $4,
			line_format = $5, line_encoding = $6, used_for_modes = $7,
			line_count = $8, byte_size = $9, checksum = $10, is_uploaded = $11,
			tags = $12, content_lines = $13, updated_at = now()
		WHERE id = $1`,
		resource.ID, resource.ProjectID, resource.FileName, resource.FileLabel,
		resource.LineFormat, resource.LineEncoding, pq.Array(resource.UsedForModes),
		resource.LineCount, resource.ByteSize, resource.Checksum, resource.IsUploaded,
		pq.Array(resource.Tags), pq.Array(resource.ContentLines))
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return resources.ErrNotFound.New("%s", resource.ID)
	}
	return nil
}

// Get fetches a resource by ID.
func (rdb *ResourcesDB) Get(ctx context.Context, id uuid.UUID) (_ *resources.Resource, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanResource(rdb.db.QueryRowContext(ctx, `
		SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id))
}

// Delete removes a resource row.
func (rdb *ResourcesDB) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := rdb.db.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return resources.ErrNotFound.New("%s", id)
	}
	return nil
}

// List returns non-ephemeral resources visible to the caller with their usage
// counts. Global resources (no project) are always included.
func (rdb *ResourcesDB) List(ctx context.Context, opts resources.ListOptions) (_ []resources.ListItem, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	filter := `WHERE resource_type NOT LIKE 'ephemeral_%'`
	args := []any{}
	if !opts.All {
		args = append(args, pq.Array(opts.ProjectIDs))
		filter += fmt.Sprintf(` AND (project_id IS NULL OR project_id = ANY($%d))`, len(args))
	}
	if opts.Type != nil {
		args = append(args, *opts.Type)
		filter += fmt.Sprintf(` AND resource_type = $%d`, len(args))
	}
	if opts.ProjectID != nil {
		args = append(args, *opts.ProjectID)
		filter += fmt.Sprintf(` AND project_id = $%d`, len(args))
	}
	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		filter += fmt.Sprintf(` AND (file_name ILIKE $%d OR file_label ILIKE $%d)`, len(args), len(args))
	}

	err = rdb.db.QueryRowContext(ctx, `SELECT count(*) FROM resources `+filter, args...).Scan(&total)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}

	args = append(args, opts.Limit, opts.Offset)
	rows, err := rdb.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s,
			(SELECT count(*) FROM attacks
				WHERE attacks.word_list_id = resources.id
				OR attacks.left_rule = resources.guid::text) AS usage_count
		FROM resources %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		resourceColumns, filter, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	list := []resources.ListItem{}
	for rows.Next() {
		var item resources.ListItem
		err := rows.Scan(&item.ID, &item.ProjectID, &item.FileName,
			&item.FileLabel, &item.Type, &item.LineFormat, &item.LineEncoding,
			pq.Array(&item.UsedForModes), &item.Source, &item.LineCount,
			&item.ByteSize, &item.Checksum, &item.GUID, &item.IsUploaded,
			pq.Array(&item.Tags), pq.Array(&item.ContentLines),
			&item.CreatedAt, &item.UpdatedAt, &item.UsageCount)
		if err != nil {
			return nil, 0, Error.Wrap(err)
		}
		list = append(list, item)
	}
	return list, total, Error.Wrap(rows.Err())
}

// UsageCount counts attacks referencing the resource either by word list ID
// or by left_rule matching the resource GUID text.
func (rdb *ResourcesDB) UsageCount(ctx context.Context, resource *resources.Resource) (count int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = rdb.db.QueryRowContext(ctx, `
		SELECT count(*) FROM attacks
		WHERE word_list_id = $1 OR left_rule = $2`,
		resource.ID, resource.GUID.String()).Scan(&count)
	return count, Error.Wrap(err)
}

// ReferencingAttacks returns the attacks using the resource, deduplicated.
func (rdb *ResourcesDB) ReferencingAttacks(ctx context.Context, resource *resources.Resource) (_ []resources.AttackRef, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := rdb.db.QueryContext(ctx, `
		SELECT DISTINCT id, name FROM attacks
		WHERE word_list_id = $1 OR left_rule = $2
		ORDER BY id`,
		resource.ID, resource.GUID.String())
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	refs := []resources.AttackRef{}
	for rows.Next() {
		var ref resources.AttackRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, Error.Wrap(err)
		}
		refs = append(refs, ref)
	}
	return refs, Error.Wrap(rows.Err())
}

// SelectStaleIDs lists pending resources created before cutoff, oldest first.
func (rdb *ResourcesDB) SelectStaleIDs(ctx context.Context, cutoff time.Time, limit int) (_ []uuid.UUID, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := rdb.db.QueryContext(ctx, `
		SELECT id FROM resources
		WHERE NOT is_uploaded AND created_at < $1
		ORDER BY created_at LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, Error.Wrap(err)
		}
		ids = append(ids, id)
	}
	return ids, Error.Wrap(rows.Err())
}

// WithPendingLocked locks the resource row with FOR UPDATE SKIP LOCKED and,
// when it is still pending, runs fn and deletes the row before committing.
// It reports processed=false without error when the row is gone, already
// uploaded or locked by another deployment.
func (rdb *ResourcesDB) WithPendingLocked(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) (processed bool, err error) {
	defer mon.Task()(&ctx)(&err)

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return false, Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, Error.Wrap(tx.Rollback()))
		}
	}()

	var locked uuid.UUID
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM resources
		WHERE id = $1 AND NOT is_uploaded
		FOR UPDATE SKIP LOCKED`, id).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		err = Error.Wrap(tx.Rollback())
		return false, err
	}
	if err != nil {
		return false, Error.Wrap(err)
	}

	if err := fn(ctx); err != nil {
		return false, Error.Wrap(err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id); err != nil {
		return false, Error.Wrap(err)
	}
	err = Error.Wrap(tx.Commit())
	return err == nil, err
}
