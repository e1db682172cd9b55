// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/zeebo/errs"

	"ouroboros.dev/ouroboros/control/accounts"
)

// uniqueViolation is the postgres error code for unique constraint failures.
const uniqueViolation = "23505"

type accountsDB struct {
	db *sql.DB
}

func (adb *accountsDB) Users() accounts.Users             { return &usersDB{db: adb.db} }
func (adb *accountsDB) Projects() accounts.Projects       { return &projectsDB{db: adb.db} }
func (adb *accountsDB) Memberships() accounts.Memberships { return &membershipsDB{db: adb.db} }

type usersDB struct {
	db *sql.DB
}

func (udb *usersDB) Insert(ctx context.Context, user *accounts.User) (_ *accounts.User, err error) {
	defer mon.Task()(&ctx)(&err)

	row := udb.db.QueryRowContext(ctx, `
		INSERT INTO users (email, name, password_hash, api_key_hash, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		user.Email, user.Name, user.PasswordHash, user.APIKeyHash, user.IsActive, user.IsSuperuser)

	created := *user
	if err := row.Scan(&created.ID, &created.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, accounts.ErrEmailTaken.New("%s", user.Email)
		}
		return nil, Error.Wrap(err)
	}
	return &created, nil
}

func (udb *usersDB) Update(ctx context.Context, user *accounts.User) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := udb.db.ExecContext(ctx, `
		UPDATE users SET name = $2, password_hash = $3, is_active = $4
		WHERE id = $1`,
		user.ID, user.Name, user.PasswordHash, user.IsActive)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return accounts.ErrNoUser.New("%d", user.ID)
	}
	return nil
}

func (udb *usersDB) Get(ctx context.Context, id int64) (_ *accounts.User, err error) {
	defer mon.Task()(&ctx)(&err)

	return udb.scanUser(ctx, udb.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, api_key_hash, is_active, is_superuser, created_at
		FROM users WHERE id = $1`, id))
}

func (udb *usersDB) GetByEmail(ctx context.Context, email string) (_ *accounts.User, err error) {
	defer mon.Task()(&ctx)(&err)

	return udb.scanUser(ctx, udb.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, api_key_hash, is_active, is_superuser, created_at
		FROM users WHERE email = $1`, email))
}

func (udb *usersDB) GetByAPIKeyHash(ctx context.Context, hash []byte) (_ *accounts.User, err error) {
	defer mon.Task()(&ctx)(&err)

	return udb.scanUser(ctx, udb.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, api_key_hash, is_active, is_superuser, created_at
		FROM users WHERE api_key_hash = $1`, hash))
}

func (udb *usersDB) scanUser(ctx context.Context, row *sql.Row) (*accounts.User, error) {
	var user accounts.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.APIKeyHash, &user.IsActive, &user.IsSuperuser, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accounts.ErrNoUser.New("not found")
		}
		return nil, Error.Wrap(err)
	}
	if err := udb.loadMemberships(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (udb *usersDB) loadMemberships(ctx context.Context, user *accounts.User) (err error) {
	rows, err := udb.db.QueryContext(ctx, `
		SELECT project_id, user_id, role FROM project_memberships
		WHERE user_id = $1 ORDER BY project_id`, user.ID)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	for rows.Next() {
		var membership accounts.Membership
		if err := rows.Scan(&membership.ProjectID, &membership.UserID, &membership.Role); err != nil {
			return Error.Wrap(err)
		}
		user.Memberships = append(user.Memberships, membership)
	}
	return Error.Wrap(rows.Err())
}

func (udb *usersDB) List(ctx context.Context, limit, offset int) (_ []accounts.User, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := udb.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, Error.Wrap(err)
	}

	rows, err := udb.db.QueryContext(ctx, `
		SELECT id, email, name, password_hash, api_key_hash, is_active, is_superuser, created_at
		FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	users := []accounts.User{}
	for rows.Next() {
		var user accounts.User
		err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash,
			&user.APIKeyHash, &user.IsActive, &user.IsSuperuser, &user.CreatedAt)
		if err != nil {
			return nil, 0, Error.Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, Error.Wrap(err)
	}

	for i := range users {
		if err := udb.loadMemberships(ctx, &users[i]); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

type projectsDB struct {
	db *sql.DB
}

func (pdb *projectsDB) Insert(ctx context.Context, project *accounts.Project) (_ *accounts.Project, err error) {
	defer mon.Task()(&ctx)(&err)

	created := *project
	err = pdb.db.QueryRowContext(ctx, `
		INSERT INTO projects (name, description) VALUES ($1, $2)
		RETURNING id, created_at`,
		project.Name, project.Description).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &created, nil
}

func (pdb *projectsDB) Update(ctx context.Context, project *accounts.Project) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := pdb.db.ExecContext(ctx, `
		UPDATE projects SET name = $2, description = $3 WHERE id = $1`,
		project.ID, project.Name, project.Description)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return accounts.ErrNoProject.New("%d", project.ID)
	}
	return nil
}

func (pdb *projectsDB) Get(ctx context.Context, id int64) (_ *accounts.Project, err error) {
	defer mon.Task()(&ctx)(&err)

	var project accounts.Project
	err = pdb.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM projects WHERE id = $1`, id).
		Scan(&project.ID, &project.Name, &project.Description, &project.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accounts.ErrNoProject.New("%d", id)
		}
		return nil, Error.Wrap(err)
	}
	return &project, nil
}

func (pdb *projectsDB) List(ctx context.Context, ids []int64, limit, offset int) (_ []accounts.Project, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	countQuery := `SELECT count(*) FROM projects`
	pageQuery := `SELECT id, name, description, created_at FROM projects
		ORDER BY id LIMIT $1 OFFSET $2`
	countArgs := []any{}
	pageArgs := []any{limit, offset}
	if ids != nil {
		countQuery = `SELECT count(*) FROM projects WHERE id = ANY($1)`
		pageQuery = `SELECT id, name, description, created_at FROM projects
			WHERE id = ANY($1) ORDER BY id LIMIT $2 OFFSET $3`
		countArgs = []any{pq.Array(ids)}
		pageArgs = []any{pq.Array(ids), limit, offset}
	}

	if err := pdb.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, Error.Wrap(err)
	}

	rows, err := pdb.db.QueryContext(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	projects := []accounts.Project{}
	for rows.Next() {
		var project accounts.Project
		if err := rows.Scan(&project.ID, &project.Name, &project.Description, &project.CreatedAt); err != nil {
			return nil, 0, Error.Wrap(err)
		}
		projects = append(projects, project)
	}
	return projects, total, Error.Wrap(rows.Err())
}

type membershipsDB struct {
	db *sql.DB
}

func (mdb *membershipsDB) Add(ctx context.Context, membership accounts.Membership) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = mdb.db.ExecContext(ctx, `
		INSERT INTO project_memberships (project_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		membership.ProjectID, membership.UserID, membership.Role)
	return Error.Wrap(err)
}

func (mdb *membershipsDB) Remove(ctx context.Context, projectID, userID int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = mdb.db.ExecContext(ctx, `
		DELETE FROM project_memberships WHERE project_id = $1 AND user_id = $2`,
		projectID, userID)
	return Error.Wrap(err)
}
