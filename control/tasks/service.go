// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package tasks

import (
	"context"
	"fmt"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/control/problems"
)

var (
	// Error is the tasks service error class.
	Error = errs.Class("tasks service")

	mon = monkit.Package()
)

// Service implements task monitoring operations.
type Service struct {
	log  *zap.Logger
	db   DB
	auth *accounts.Service
	bus  *events.Bus
}

// NewService creates a tasks service.
func NewService(log *zap.Logger, db DB, auth *accounts.Service, bus *events.Bus) *Service {
	return &Service{log: log, db: db, auth: auth, bus: bus}
}

// List returns tasks visible to the user. Invalid status filter values are
// silently ignored.
func (service *Service) List(ctx context.Context, user *accounts.User, opts ListOptions) (_ []Task, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	accessible := service.auth.AccessibleProjects(user)
	if len(accessible) == 0 {
		return nil, 0, problems.ProjectAccessDenied("User has no project memberships")
	}
	opts.ProjectIDs = accessible
	if opts.Status != nil && !ValidStatus(*opts.Status) {
		opts.Status = nil
	}

	tasks, total, err := service.db.List(ctx, opts)
	return tasks, total, Error.Wrap(err)
}

// Get returns a task the user can access, walking task→attack→campaign to
// the governing project.
func (service *Service) Get(ctx context.Context, user *accounts.User, id int64) (_ *Task, err error) {
	defer mon.Task()(&ctx)(&err)

	task, err := service.db.Get(ctx, id)
	if err != nil {
		if ErrNotFound.Has(err) {
			return nil, problems.TaskNotFound(id)
		}
		return nil, Error.Wrap(err)
	}
	projectID, err := service.db.ProjectID(ctx, id)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := service.auth.ValidateProjectAccess(user, projectID); err != nil {
		return nil, err
	}
	return task, nil
}

// Requeue resets a failed or abandoned task to pending so agents can pick it
// up again.
func (service *Service) Requeue(ctx context.Context, user *accounts.User, id int64) (_ *Task, err error) {
	defer mon.Task()(&ctx)(&err)

	task, err := service.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusFailed && task.Status != StatusAbandoned {
		return nil, problems.InvalidResourceState(fmt.Sprintf(
			"Cannot requeue task in status '%s'. Only failed or abandoned tasks can be requeued.",
			task.Status))
	}

	task.Status = StatusPending
	task.AgentID = nil
	task.Progress = 0
	if err := service.db.Update(ctx, task); err != nil {
		return nil, Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.TaskCreated, map[string]any{
		"task_id":   task.ID,
		"attack_id": task.AttackID,
		"requeued":  true,
	})
	return task, nil
}

// Cancel abandons a pending or running task.
func (service *Service) Cancel(ctx context.Context, user *accounts.User, id int64) (_ *Task, err error) {
	defer mon.Task()(&ctx)(&err)

	task, err := service.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusPending && task.Status != StatusRunning {
		return nil, problems.InvalidResourceState(fmt.Sprintf(
			"Cannot cancel task in status '%s'. Only pending or running tasks can be canceled.",
			task.Status))
	}

	task.Status = StatusAbandoned
	if err := service.db.Update(ctx, task); err != nil {
		return nil, Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.TaskFailed, map[string]any{
		"task_id":   task.ID,
		"attack_id": task.AttackID,
		"canceled":  true,
	})
	return task, nil
}

// Logs returns human-readable entries derived from the status history.
func (service *Service) Logs(ctx context.Context, user *accounts.User, id int64, limit int) (_ []string, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.Get(ctx, user, id); err != nil {
		return nil, err
	}
	updates, err := service.db.StatusUpdates(ctx, id, limit)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	logs := make([]string, 0, len(updates))
	for _, update := range updates {
		logs = append(logs, fmt.Sprintf("Status: %s, Session: %s", update.Status, update.SessionName))
	}
	return logs, nil
}
