// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package agents implements administration of the remote compute agents.
// Registration and heartbeats belong to the agent protocol and live outside
// the control plane.
package agents

import (
	"context"
	"time"

	"github.com/zeebo/errs"
)

// ErrNotFound is returned by the repository when the agent is missing.
var ErrNotFound = errs.Class("agent not found")

// Agent states.
const (
	StateActive  = "active"
	StateIdle    = "idle"
	StateOffline = "offline"
	StateError   = "error"
)

// Agent is a remote worker that pulls tasks and reports progress.
type Agent struct {
	ID               int64
	HostName         string
	ClientSignature  string
	Enabled          bool
	State            string
	UpdateInterval   int
	UseNativeHashcat bool
	BackendDevices   string
	ProjectIDs       []int64
	LastSeenAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Benchmark is one hashcat benchmark result reported by an agent.
type Benchmark struct {
	HashTypeID int
	HashSpeed  float64
	Device     string
	RuntimeMs  int64
	CreatedAt  time.Time
}

// Capability is one compute device an agent advertises.
type Capability struct {
	DeviceID   int
	DeviceName string
	DeviceType string
	Enabled    bool
}

// ErrorEntry is one entry of an agent's error log.
type ErrorEntry struct {
	ID        int64
	Message   string
	Severity  string
	TaskID    *int64
	CreatedAt time.Time
}

// ListOptions filter and paginate agent listings.
type ListOptions struct {
	Search     string
	State      *string
	ProjectIDs []int64
	All        bool
	Limit      int
	Offset     int
}

// DB is the agent repository.
type DB interface {
	Get(ctx context.Context, id int64) (*Agent, error)
	Update(ctx context.Context, agent *Agent) error
	List(ctx context.Context, opts ListOptions) ([]Agent, int64, error)
	Benchmarks(ctx context.Context, agentID int64) ([]Benchmark, error)
	Capabilities(ctx context.Context, agentID int64) ([]Capability, error)
	Errors(ctx context.Context, agentID int64, limit, offset int) ([]ErrorEntry, int64, error)
}
