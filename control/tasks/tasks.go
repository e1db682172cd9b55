// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package tasks implements task monitoring, requeue and cancel operations on
// the keyspace slices the agents execute.
package tasks

import (
	"context"
	"math"
	"time"

	"github.com/zeebo/errs"
)

// ErrNotFound is returned by the repository when the task is missing.
var ErrNotFound = errs.Class("task not found")

// Status is a task execution status.
type Status string

// Task statuses.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// ValidStatus reports whether s is a known task status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// Task is a keyspace slice of an attack, assigned to an agent.
type Task struct {
	ID            int64
	AttackID      int64
	AgentID       *int64
	Status        Status
	Progress      float64
	KeyspaceTotal int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// KeyspaceProcessed derives the processed candidate count from progress.
func (task Task) KeyspaceProcessed() int64 {
	return int64(math.Floor(float64(task.KeyspaceTotal) * task.Progress / 100))
}

// StatusUpdate is one entry of a task's status-update history.
type StatusUpdate struct {
	ID          int64
	TaskID      int64
	Status      Status
	SessionName string
	Progress    float64
	Timestamp   time.Time
}

// ListOptions filter and paginate task listings, ordered by id descending.
type ListOptions struct {
	Status     *Status
	AttackID   *int64
	CampaignID *int64
	AgentID    *int64
	ProjectIDs []int64
	Limit      int
	Offset     int
}

// DB is the task repository.
type DB interface {
	Get(ctx context.Context, id int64) (*Task, error)
	Update(ctx context.Context, task *Task) error
	List(ctx context.Context, opts ListOptions) ([]Task, int64, error)
	// ProjectID walks task→attack→campaign to the governing project.
	ProjectID(ctx context.Context, taskID int64) (int64, error)
	StatusUpdates(ctx context.Context, taskID int64, limit int) ([]StatusUpdate, error)
}
