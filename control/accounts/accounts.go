// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package accounts holds users, projects and memberships, and implements the
// project-scoped authorization primitives every control API operation uses.
package accounts

import (
	"context"
	"time"
)

// RoleMember is the default membership role.
const RoleMember = "member"

// User is an operator account. API keys are stored as SHA-256 digests.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash []byte
	APIKeyHash   []byte
	IsActive     bool
	IsSuperuser  bool
	CreatedAt    time.Time

	Memberships []Membership
}

// Project is the tenancy and access-control boundary.
type Project struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// Membership associates a user with a project.
type Membership struct {
	ProjectID int64
	UserID    int64
	Role      string
}

// Users is the user repository.
type Users interface {
	Insert(ctx context.Context, user *User) (*User, error)
	Update(ctx context.Context, user *User) error
	Get(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByAPIKeyHash(ctx context.Context, hash []byte) (*User, error)
	List(ctx context.Context, limit, offset int) ([]User, int64, error)
}

// Projects is the project repository.
type Projects interface {
	Insert(ctx context.Context, project *Project) (*Project, error)
	Update(ctx context.Context, project *Project) error
	Get(ctx context.Context, id int64) (*Project, error)
	// List returns projects restricted to ids; a nil ids slice means all.
	List(ctx context.Context, ids []int64, limit, offset int) ([]Project, int64, error)
}

// Memberships is the membership repository.
type Memberships interface {
	Add(ctx context.Context, membership Membership) error
	Remove(ctx context.Context, projectID, userID int64) error
}

// DB aggregates the account repositories.
type DB interface {
	Users() Users
	Projects() Projects
	Memberships() Memberships
}
