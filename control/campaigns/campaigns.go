// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package campaigns implements campaign management: CRUD, the user-facing
// lifecycle, pre-flight validation and progress reporting.
package campaigns

import (
	"context"
	"time"

	"ouroboros.dev/ouroboros/control/statemachine"
)

// State is a campaign lifecycle state.
type State = statemachine.State

// Campaign lifecycle states.
const (
	StateDraft     State = "draft"
	StateActive    State = "active"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateArchived  State = "archived"
	StateError     State = "error"
)

// Campaign is an ordered set of attacks sharing a hash list and a project.
type Campaign struct {
	ID          int64
	ProjectID   int64
	HashListID  int64
	Name        string
	Description string
	Priority    int
	State       State
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeletableStates are the states a campaign may be deleted from.
var DeletableStates = []State{StateDraft, StateCompleted, StateArchived, StateError}

// ListOptions filter and paginate campaign listings. ProjectIDs restricts
// results to the caller's accessible projects.
type ListOptions struct {
	Name       string
	ProjectID  *int64
	ProjectIDs []int64
	Limit      int
	Offset     int
}

// AttackPosition assigns a position to an attack during reorder.
type AttackPosition struct {
	AttackID int64
	Position int
}

// ProgressStats summarizes task execution across a campaign.
type ProgressStats struct {
	ActiveAgents   int64
	TotalTasks     int64
	PendingTasks   int64
	RunningTasks   int64
	CompletedTasks int64
	FailedTasks    int64
}

// CrackStats counts cracked hash items of the campaign's hash list.
type CrackStats struct {
	TotalHashes   int64
	CrackedHashes int64
}

// DB is the campaign repository. Cross-entity reads needed by the campaign
// service (attack ordering, task progress, agent counts) live here as well,
// implemented with joins by the persistence layer.
type DB interface {
	Insert(ctx context.Context, campaign *Campaign) (*Campaign, error)
	Update(ctx context.Context, campaign *Campaign) error
	UpdateState(ctx context.Context, id int64, state State) (*Campaign, error)
	Get(ctx context.Context, id int64) (*Campaign, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, opts ListOptions) ([]Campaign, int64, error)

	CountAttacks(ctx context.Context, campaignID int64) (int64, error)
	AttackIDs(ctx context.Context, campaignID int64) ([]int64, error)
	// ReorderAttacks writes all positions atomically in one transaction.
	ReorderAttacks(ctx context.Context, campaignID int64, order []AttackPosition) error

	Progress(ctx context.Context, campaignID int64) (ProgressStats, error)
	CrackCounts(ctx context.Context, campaignID int64) (CrackStats, error)
	ActiveAgentCount(ctx context.Context) (int64, error)
}
