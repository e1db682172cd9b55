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

	"ouroboros.dev/ouroboros/control/hashlists"
)

type hashListsDB struct {
	db *sql.DB
}

const hashListColumns = `id, project_id, name, description, hash_type_id, is_unavailable, created_at, updated_at`

func scanHashList(row interface{ Scan(...any) error }) (*hashlists.HashList, error) {
	var list hashlists.HashList
	err := row.Scan(&list.ID, &list.ProjectID, &list.Name, &list.Description,
		&list.HashTypeID, &list.IsUnavailable, &list.CreatedAt, &list.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hashlists.ErrNotFound.New("not found")
		}
		return nil, Error.Wrap(err)
	}
	return &list, nil
}

func (hdb *hashListsDB) Insert(ctx context.Context, list *hashlists.HashList) (_ *hashlists.HashList, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanHashList(hdb.db.QueryRowContext(ctx, `
		INSERT INTO hash_lists (project_id, name, description, hash_type_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+hashListColumns,
		list.ProjectID, list.Name, list.Description, list.HashTypeID))
}

func (hdb *hashListsDB) Update(ctx context.Context, list *hashlists.HashList) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := hdb.db.ExecContext(ctx, `
		UPDATE hash_lists SET name = $2, description = $3, hash_type_id = $4,
			is_unavailable = $5, updated_at = now()
		WHERE id = $1`,
		list.ID, list.Name, list.Description, list.HashTypeID, list.IsUnavailable)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return hashlists.ErrNotFound.New("%d", list.ID)
	}
	return nil
}

func (hdb *hashListsDB) Get(ctx context.Context, id int64) (_ *hashlists.HashList, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanHashList(hdb.db.QueryRowContext(ctx, `
		SELECT `+hashListColumns+` FROM hash_lists WHERE id = $1`, id))
}

func (hdb *hashListsDB) Delete(ctx context.Context, id int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := hdb.db.ExecContext(ctx, `DELETE FROM hash_lists WHERE id = $1`, id)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return hashlists.ErrNotFound.New("%d", id)
	}
	return nil
}

func (hdb *hashListsDB) List(ctx context.Context, opts hashlists.ListOptions) (_ []hashlists.HashList, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	// Global lists (no project) are visible to everyone.
	filter := `WHERE (project_id IS NULL OR project_id = ANY($1))`
	args := []any{pq.Array(opts.ProjectIDs)}
	if opts.Name != "" {
		args = append(args, "%"+opts.Name+"%")
		filter += fmt.Sprintf(` AND name ILIKE $%d`, len(args))
	}
	if opts.ProjectID != nil {
		args = append(args, *opts.ProjectID)
		filter += fmt.Sprintf(` AND project_id = $%d`, len(args))
	}

	err = hdb.db.QueryRowContext(ctx, `SELECT count(*) FROM hash_lists `+filter, args...).Scan(&total)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}

	args = append(args, opts.Limit, opts.Offset)
	rows, err := hdb.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM hash_lists %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		hashListColumns, filter, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	list := []hashlists.HashList{}
	for rows.Next() {
		item, err := scanHashList(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *item)
	}
	return list, total, Error.Wrap(rows.Err())
}

func (hdb *hashListsDB) Items(ctx context.Context, hashListID int64, opts hashlists.ItemsOptions) (_ []hashlists.HashItem, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	filter := `WHERE hash_list_id = $1`
	args := []any{hashListID}
	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		filter += fmt.Sprintf(` AND (hash ILIKE $%d OR plain_text ILIKE $%d)`, len(args), len(args))
	}
	switch opts.Status {
	case hashlists.StatusCracked:
		filter += ` AND plain_text IS NOT NULL`
	case hashlists.StatusUncracked:
		filter += ` AND plain_text IS NULL`
	}

	err = hdb.db.QueryRowContext(ctx, `SELECT count(*) FROM hash_items `+filter, args...).Scan(&total)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}

	args = append(args, opts.Limit, opts.Offset)
	rows, err := hdb.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, hash, salt, plain_text FROM hash_items %s
		ORDER BY id LIMIT $%d OFFSET $%d`, filter, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	items := []hashlists.HashItem{}
	for rows.Next() {
		var item hashlists.HashItem
		if err := rows.Scan(&item.ID, &item.Hash, &item.Salt, &item.PlainText); err != nil {
			return nil, 0, Error.Wrap(err)
		}
		items = append(items, item)
	}
	return items, total, Error.Wrap(rows.Err())
}

func (hdb *hashListsDB) CrackedItems(ctx context.Context, hashListID int64) (_ []hashlists.HashItem, err error) {
	defer mon.Task()(&ctx)(&err)

	return hdb.queryItems(ctx, `
		SELECT id, hash, salt, plain_text FROM hash_items
		WHERE hash_list_id = $1 AND plain_text IS NOT NULL ORDER BY id`, hashListID)
}

func (hdb *hashListsDB) AllItems(ctx context.Context, hashListID int64) (_ []hashlists.HashItem, err error) {
	defer mon.Task()(&ctx)(&err)

	return hdb.queryItems(ctx, `
		SELECT id, hash, salt, plain_text FROM hash_items
		WHERE hash_list_id = $1 ORDER BY id`, hashListID)
}

func (hdb *hashListsDB) queryItems(ctx context.Context, query string, args ...any) (_ []hashlists.HashItem, err error) {
	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	items := []hashlists.HashItem{}
	for rows.Next() {
		var item hashlists.HashItem
		if err := rows.Scan(&item.ID, &item.Hash, &item.Salt, &item.PlainText); err != nil {
			return nil, Error.Wrap(err)
		}
		items = append(items, item)
	}
	return items, Error.Wrap(rows.Err())
}

func (hdb *hashListsDB) ItemCounts(ctx context.Context, hashListID int64) (counts hashlists.ItemCounts, err error) {
	defer mon.Task()(&ctx)(&err)

	err = hdb.db.QueryRowContext(ctx, `
		SELECT count(id), count(plain_text) FROM hash_items WHERE hash_list_id = $1`,
		hashListID).Scan(&counts.Total, &counts.Cracked)
	return counts, Error.Wrap(err)
}

func (hdb *hashListsDB) ReferencingCampaign(ctx context.Context, hashListID int64) (ref hashlists.CampaignRef, found bool, err error) {
	defer mon.Task()(&ctx)(&err)

	err = hdb.db.QueryRowContext(ctx, `
		SELECT id, name FROM campaigns WHERE hash_list_id = $1 ORDER BY id LIMIT 1`,
		hashListID).Scan(&ref.ID, &ref.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return hashlists.CampaignRef{}, false, nil
	}
	if err != nil {
		return hashlists.CampaignRef{}, false, Error.Wrap(err)
	}
	return ref, true, nil
}
