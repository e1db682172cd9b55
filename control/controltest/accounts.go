// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controltest

import (
	"bytes"
	"context"
	"sort"
	"time"

	"ouroboros.dev/ouroboros/control/accounts"
)

type accountsDB struct{ db *DB }

func (adb *accountsDB) Users() accounts.Users             { return (*usersDB)(adb) }
func (adb *accountsDB) Projects() accounts.Projects       { return (*projectsDB)(adb) }
func (adb *accountsDB) Memberships() accounts.Memberships { return (*membershipsDB)(adb) }

type usersDB accountsDB

func (udb *usersDB) Insert(ctx context.Context, user *accounts.User) (*accounts.User, error) {
	udb.db.mu.Lock()
	defer udb.db.mu.Unlock()

	for _, existing := range udb.db.users {
		if existing.Email == user.Email {
			return nil, accounts.ErrEmailTaken.New("%s", user.Email)
		}
	}
	created := cloneUser(user)
	created.ID = udb.db.id()
	created.CreatedAt = time.Now().UTC()
	udb.db.users[created.ID] = &created
	result := cloneUser(&created)
	return &result, nil
}

func (udb *usersDB) Update(ctx context.Context, user *accounts.User) error {
	udb.db.mu.Lock()
	defer udb.db.mu.Unlock()

	existing, ok := udb.db.users[user.ID]
	if !ok {
		return accounts.ErrNoUser.New("%d", user.ID)
	}
	existing.Name = user.Name
	existing.PasswordHash = user.PasswordHash
	existing.IsActive = user.IsActive
	return nil
}

func (udb *usersDB) withMemberships(user *accounts.User) *accounts.User {
	clone := *user
	clone.Memberships = nil
	for _, membership := range udb.db.memberships {
		if membership.UserID == user.ID {
			clone.Memberships = append(clone.Memberships, membership)
		}
	}
	sort.Slice(clone.Memberships, func(i, j int) bool {
		return clone.Memberships[i].ProjectID < clone.Memberships[j].ProjectID
	})
	return &clone
}

func (udb *usersDB) Get(ctx context.Context, id int64) (*accounts.User, error) {
	udb.db.mu.Lock()
	defer udb.db.mu.Unlock()

	user, ok := udb.db.users[id]
	if !ok {
		return nil, accounts.ErrNoUser.New("%d", id)
	}
	return udb.withMemberships(user), nil
}

func (udb *usersDB) GetByEmail(ctx context.Context, email string) (*accounts.User, error) {
	udb.db.mu.Lock()
	defer udb.db.mu.Unlock()

	for _, user := range udb.db.users {
		if user.Email == email {
			return udb.withMemberships(user), nil
		}
	}
	return nil, accounts.ErrNoUser.New("%s", email)
}

func (udb *usersDB) GetByAPIKeyHash(ctx context.Context, hash []byte) (*accounts.User, error) {
	udb.db.mu.Lock()
	defer udb.db.mu.Unlock()

	for _, user := range udb.db.users {
		if bytes.Equal(user.APIKeyHash, hash) {
			return udb.withMemberships(user), nil
		}
	}
	return nil, accounts.ErrNoUser.New("unknown key")
}

func (udb *usersDB) List(ctx context.Context, limit, offset int) ([]accounts.User, int64, error) {
	udb.db.mu.Lock()
	defer udb.db.mu.Unlock()

	all := []accounts.User{}
	for _, user := range udb.db.users {
		all = append(all, *udb.withMemberships(user))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, limit, offset), int64(len(all)), nil
}

type projectsDB accountsDB

func (pdb *projectsDB) Insert(ctx context.Context, project *accounts.Project) (*accounts.Project, error) {
	pdb.db.mu.Lock()
	defer pdb.db.mu.Unlock()

	created := *project
	created.ID = pdb.db.id()
	created.CreatedAt = time.Now().UTC()
	pdb.db.projects[created.ID] = &created
	clone := created
	return &clone, nil
}

func (pdb *projectsDB) Update(ctx context.Context, project *accounts.Project) error {
	pdb.db.mu.Lock()
	defer pdb.db.mu.Unlock()

	existing, ok := pdb.db.projects[project.ID]
	if !ok {
		return accounts.ErrNoProject.New("%d", project.ID)
	}
	existing.Name = project.Name
	existing.Description = project.Description
	return nil
}

func (pdb *projectsDB) Get(ctx context.Context, id int64) (*accounts.Project, error) {
	pdb.db.mu.Lock()
	defer pdb.db.mu.Unlock()

	project, ok := pdb.db.projects[id]
	if !ok {
		return nil, accounts.ErrNoProject.New("%d", id)
	}
	clone := *project
	return &clone, nil
}

func (pdb *projectsDB) List(ctx context.Context, ids []int64, limit, offset int) ([]accounts.Project, int64, error) {
	pdb.db.mu.Lock()
	defer pdb.db.mu.Unlock()

	all := []accounts.Project{}
	for _, project := range pdb.db.projects {
		if ids != nil && !containsID(ids, project.ID) {
			continue
		}
		all = append(all, *project)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, limit, offset), int64(len(all)), nil
}

type membershipsDB accountsDB

func (mdb *membershipsDB) Add(ctx context.Context, membership accounts.Membership) error {
	mdb.db.mu.Lock()
	defer mdb.db.mu.Unlock()

	for i, existing := range mdb.db.memberships {
		if existing.ProjectID == membership.ProjectID && existing.UserID == membership.UserID {
			mdb.db.memberships[i].Role = membership.Role
			return nil
		}
	}
	mdb.db.memberships = append(mdb.db.memberships, membership)
	return nil
}

func (mdb *membershipsDB) Remove(ctx context.Context, projectID, userID int64) error {
	mdb.db.mu.Lock()
	defer mdb.db.mu.Unlock()

	for i, existing := range mdb.db.memberships {
		if existing.ProjectID == projectID && existing.UserID == userID {
			mdb.db.memberships = append(mdb.db.memberships[:i], mdb.db.memberships[i+1:]...)
			return nil
		}
	}
	return nil
}
