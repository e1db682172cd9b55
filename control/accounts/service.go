// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package accounts

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ouroboros.dev/ouroboros/control/problems"
)

var (
	// Error is the accounts service error class.
	Error = errs.Class("accounts service")
	// ErrUnauthorized means the presented credentials identify no active user.
	ErrUnauthorized = errs.Class("unauthorized")
	// ErrNoUser means the requested user does not exist.
	ErrNoUser = errs.Class("no such user")
	// ErrNoProject means the requested project does not exist.
	ErrNoProject = errs.Class("no such project")
	// ErrEmailTaken means the email is already registered.
	ErrEmailTaken = errs.Class("email taken")

	mon = monkit.Package()
)

const apiKeyPrefix = "ouro_"

// Service implements account management and the authorization primitives.
type Service struct {
	log *zap.Logger
	db  DB
}

// NewService creates an accounts service.
func NewService(log *zap.Logger, db DB) *Service {
	return &Service{log: log, db: db}
}

// UserByAPIKey resolves the bearer API key to an active user.
func (service *Service) UserByAPIKey(ctx context.Context, rawKey string) (_ *User, err error) {
	defer mon.Task()(&ctx)(&err)

	if rawKey == "" {
		return nil, ErrUnauthorized.New("missing API key")
	}
	digest := HashAPIKey(rawKey)
	user, err := service.db.Users().GetByAPIKeyHash(ctx, digest)
	if err != nil {
		if ErrNoUser.Has(err) {
			return nil, ErrUnauthorized.New("unknown API key")
		}
		return nil, Error.Wrap(err)
	}
	if !user.IsActive {
		return nil, ErrUnauthorized.New("user is deactivated")
	}
	return user, nil
}

// AccessibleProjects returns the project IDs the user belongs to.
func (service *Service) AccessibleProjects(user *User) []int64 {
	ids := make([]int64, 0, len(user.Memberships))
	for _, membership := range user.Memberships {
		ids = append(ids, membership.ProjectID)
	}
	return ids
}

// ValidateProjectAccess fails with a project-access-denied problem unless the
// user is a member of the project.
func (service *Service) ValidateProjectAccess(user *User, projectID int64) error {
	for _, membership := range user.Memberships {
		if membership.ProjectID == projectID {
			return nil
		}
	}
	return problems.ProjectAccessDenied(
		fmt.Sprintf("User does not have access to project %d", projectID))
}

// CreateUserParams are the attributes of a new user.
type CreateUserParams struct {
	Email       string
	Name        string
	Password    string
	IsSuperuser bool
	ProjectIDs  []int64
}

// CreateUser creates a user and issues its API key. The raw key is returned
// exactly once; only its digest is stored. Superuser only.
func (service *Service) CreateUser(ctx context.Context, actor *User, params CreateUserParams) (_ *User, rawKey string, err error) {
	defer mon.Task()(&ctx)(&err)

	if !actor.IsSuperuser {
		return nil, "", problems.InsufficientPermissions("Only superusers may create users")
	}

	rawKey, digest, err := generateAPIKey()
	if err != nil {
		return nil, "", Error.Wrap(err)
	}

	user := &User{
		Email:       params.Email,
		Name:        params.Name,
		APIKeyHash:  digest,
		IsActive:    true,
		IsSuperuser: params.IsSuperuser,
	}
	if params.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", Error.Wrap(err)
		}
		user.PasswordHash = hash
	}

	created, err := service.db.Users().Insert(ctx, user)
	if err != nil {
		if ErrEmailTaken.Has(err) {
			return nil, "", problems.UserConflict(
				fmt.Sprintf("User with email %s already exists", params.Email))
		}
		return nil, "", Error.Wrap(err)
	}

	for _, projectID := range params.ProjectIDs {
		err := service.db.Memberships().Add(ctx, Membership{
			ProjectID: projectID,
			UserID:    created.ID,
			Role:      RoleMember,
		})
		if err != nil {
			return nil, "", Error.Wrap(err)
		}
	}

	service.log.Info("user created",
		zap.Int64("id", created.ID), zap.String("email", created.Email))
	return created, rawKey, nil
}

// UpdateUserParams are the mutable attributes of a user.
type UpdateUserParams struct {
	Name     *string
	Password *string
	IsActive *bool
}

// UpdateUser updates a user. Users may update themselves; superusers may
// update anyone. Changing is_active requires superuser.
func (service *Service) UpdateUser(ctx context.Context, actor *User, id int64, params UpdateUserParams) (_ *User, err error) {
	defer mon.Task()(&ctx)(&err)

	if actor.ID != id && !actor.IsSuperuser {
		return nil, problems.InsufficientPermissions("Cannot update another user")
	}
	if params.IsActive != nil && !actor.IsSuperuser {
		return nil, problems.InsufficientPermissions("Only superusers may activate or deactivate users")
	}

	user, err := service.db.Users().Get(ctx, id)
	if err != nil {
		if ErrNoUser.Has(err) {
			return nil, problems.UserNotFound(fmt.Sprintf("User with ID %d not found", id))
		}
		return nil, Error.Wrap(err)
	}

	if params.Name != nil {
		user.Name = *params.Name
	}
	if params.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*params.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		user.PasswordHash = hash
	}
	if params.IsActive != nil {
		user.IsActive = *params.IsActive
	}

	if err := service.db.Users().Update(ctx, user); err != nil {
		return nil, Error.Wrap(err)
	}
	return user, nil
}

// GetUser returns a user. Users may fetch themselves; superusers anyone.
func (service *Service) GetUser(ctx context.Context, actor *User, id int64) (_ *User, err error) {
	defer mon.Task()(&ctx)(&err)

	if actor.ID != id && !actor.IsSuperuser {
		return nil, problems.InsufficientPermissions("Cannot view another user")
	}
	user, err := service.db.Users().Get(ctx, id)
	if err != nil {
		if ErrNoUser.Has(err) {
			return nil, problems.UserNotFound(fmt.Sprintf("User with ID %d not found", id))
		}
		return nil, Error.Wrap(err)
	}
	return user, nil
}

// ListUsers returns all users, paginated. Superuser only.
func (service *Service) ListUsers(ctx context.Context, actor *User, limit, offset int) (_ []User, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if !actor.IsSuperuser {
		return nil, 0, problems.InsufficientPermissions("Only superusers may list users")
	}
	users, total, err := service.db.Users().List(ctx, limit, offset)
	return users, total, Error.Wrap(err)
}

// CreateProject creates a project. Superuser only.
func (service *Service) CreateProject(ctx context.Context, actor *User, name, description string) (_ *Project, err error) {
	defer mon.Task()(&ctx)(&err)

	if !actor.IsSuperuser {
		return nil, problems.InsufficientPermissions("Only superusers may create projects")
	}
	project, err := service.db.Projects().Insert(ctx, &Project{
		Name:        name,
		Description: description,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	service.log.Info("project created",
		zap.Int64("id", project.ID), zap.String("name", project.Name))
	return project, nil
}

// UpdateProject updates a project. Superuser only.
func (service *Service) UpdateProject(ctx context.Context, actor *User, id int64, name, description *string) (_ *Project, err error) {
	defer mon.Task()(&ctx)(&err)

	if !actor.IsSuperuser {
		return nil, problems.InsufficientPermissions("Only superusers may update projects")
	}
	project, err := service.db.Projects().Get(ctx, id)
	if err != nil {
		if ErrNoProject.Has(err) {
			return nil, problems.ProjectNotFound(id)
		}
		return nil, Error.Wrap(err)
	}
	if name != nil {
		project.Name = *name
	}
	if description != nil {
		project.Description = *description
	}
	if err := service.db.Projects().Update(ctx, project); err != nil {
		return nil, Error.Wrap(err)
	}
	return project, nil
}

// GetProject returns a project visible to the actor.
func (service *Service) GetProject(ctx context.Context, actor *User, id int64) (_ *Project, err error) {
	defer mon.Task()(&ctx)(&err)

	if !actor.IsSuperuser {
		if err := service.ValidateProjectAccess(actor, id); err != nil {
			return nil, err
		}
	}
	project, err := service.db.Projects().Get(ctx, id)
	if err != nil {
		if ErrNoProject.Has(err) {
			return nil, problems.ProjectNotFound(id)
		}
		return nil, Error.Wrap(err)
	}
	return project, nil
}

// ListProjects returns the projects visible to the actor, paginated.
func (service *Service) ListProjects(ctx context.Context, actor *User, limit, offset int) (_ []Project, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	var ids []int64
	if !actor.IsSuperuser {
		ids = service.AccessibleProjects(actor)
		if len(ids) == 0 {
			return []Project{}, 0, nil
		}
	}
	projects, total, err := service.db.Projects().List(ctx, ids, limit, offset)
	return projects, total, Error.Wrap(err)
}

// AddMember adds a user to a project. Superuser only.
func (service *Service) AddMember(ctx context.Context, actor *User, projectID, userID int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	if !actor.IsSuperuser {
		return problems.InsufficientPermissions("Only superusers may manage memberships")
	}
	return Error.Wrap(service.db.Memberships().Add(ctx, Membership{
		ProjectID: projectID,
		UserID:    userID,
		Role:      RoleMember,
	}))
}

// RemoveMember removes a user from a project. Superuser only.
func (service *Service) RemoveMember(ctx context.Context, actor *User, projectID, userID int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	if !actor.IsSuperuser {
		return problems.InsufficientPermissions("Only superusers may manage memberships")
	}
	return Error.Wrap(service.db.Memberships().Remove(ctx, projectID, userID))
}

// HashAPIKey digests a raw API key for storage and lookup.
func HashAPIKey(rawKey string) []byte {
	digest := sha256.Sum256([]byte(rawKey))
	return digest[:]
}

func generateAPIKey() (rawKey string, digest []byte, err error) {
	var buf [24]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", nil, err
	}
	rawKey = apiKeyPrefix + hex.EncodeToString(buf[:])
	return rawKey, HashAPIKey(rawKey), nil
}
