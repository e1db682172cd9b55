// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package attacks implements attack management: CRUD, the strict lifecycle,
// keyspace estimation and resource-availability validation.
package attacks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"ouroboros.dev/ouroboros/control/statemachine"
)

// ErrNotFound is returned by the repository when the attack is missing.
var ErrNotFound = errs.Class("attack not found")

// State is an attack lifecycle state.
type State = statemachine.State

// Attack lifecycle states.
const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateAbandoned State = "abandoned"
)

// Mode selects the hashcat attack strategy.
type Mode string

// Attack modes.
const (
	ModeDictionary     Mode = "dictionary"
	ModeMask           Mode = "mask"
	ModeHybridDictMask Mode = "hybrid_dict_mask"
	ModeHybridMaskDict Mode = "hybrid_mask_dict"
)

// Attack is one configured step of a campaign.
type Attack struct {
	ID               int64
	CampaignID       int64
	Name             string
	Mode             Mode
	Position         int
	State            State
	Mask             string
	WordListID       *uuid.UUID
	RuleListID       *uuid.UUID
	MaskListID       *uuid.UUID
	LeftRule         string
	HashListURL      string
	HashListChecksum string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ListOptions filter and paginate attack listings. Results are ordered by
// (position, id) and join-scoped to the caller's projects.
type ListOptions struct {
	CampaignID *int64
	State      *State
	ProjectIDs []int64
	Limit      int
	Offset     int
}

// Metrics is the performance summary of an attack.
type Metrics struct {
	HashesPerSec    float64
	TotalHashes     int64
	AgentCount      int64
	ProgressPercent float64
}

// DB is the attack repository.
type DB interface {
	Insert(ctx context.Context, attack *Attack) (*Attack, error)
	Update(ctx context.Context, attack *Attack) error
	UpdateState(ctx context.Context, id int64, state State) (*Attack, error)
	Get(ctx context.Context, id int64) (*Attack, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, opts ListOptions) ([]Attack, int64, error)
	MaxPosition(ctx context.Context, campaignID int64) (int, error)

	Metrics(ctx context.Context, attackID int64) (Metrics, error)
}
