// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package controltest implements an in-memory control.DB for tests.
package controltest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ouroboros.dev/ouroboros/control"
	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/agents"
	"ouroboros.dev/ouroboros/control/attacks"
	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/hashlists"
	"ouroboros.dev/ouroboros/control/resources"
	"ouroboros.dev/ouroboros/control/resources/cleanup"
	"ouroboros.dev/ouroboros/control/systemstats"
	"ouroboros.dev/ouroboros/control/tasks"
)

// DB keeps the entire control plane state in maps. Every repository method
// takes the same lock, so it is safe for concurrent use.
type DB struct {
	mu sync.Mutex

	nextID        int64
	users         map[int64]*accounts.User
	projects      map[int64]*accounts.Project
	memberships   []accounts.Membership
	campaignRows  map[int64]*campaigns.Campaign
	attackRows    map[int64]*attacks.Attack
	hashListRows  map[int64]*hashlists.HashList
	hashItemRows  map[int64][]hashlists.HashItem
	resourceRows  map[uuid.UUID]*resources.Resource
	taskRows      map[int64]*tasks.Task
	statusUpdates map[int64][]tasks.StatusUpdate
	agentRows     map[int64]*agents.Agent
	benchmarks    map[int64][]agents.Benchmark
	capabilities  map[int64][]agents.Capability
	agentErrors   map[int64][]agents.ErrorEntry
}

var _ control.DB = (*DB)(nil)

// New creates an empty in-memory database.
func New() *DB {
	return &DB{
		users:         map[int64]*accounts.User{},
		projects:      map[int64]*accounts.Project{},
		campaignRows:  map[int64]*campaigns.Campaign{},
		attackRows:    map[int64]*attacks.Attack{},
		hashListRows:  map[int64]*hashlists.HashList{},
		hashItemRows:  map[int64][]hashlists.HashItem{},
		resourceRows:  map[uuid.UUID]*resources.Resource{},
		taskRows:      map[int64]*tasks.Task{},
		statusUpdates: map[int64][]tasks.StatusUpdate{},
		agentRows:     map[int64]*agents.Agent{},
		benchmarks:    map[int64][]agents.Benchmark{},
		capabilities:  map[int64][]agents.Capability{},
		agentErrors:   map[int64][]agents.ErrorEntry{},
	}
}

// Accounts implements control.DB.
func (db *DB) Accounts() accounts.DB { return &accountsDB{db} }

// Campaigns implements control.DB.
func (db *DB) Campaigns() campaigns.DB { return &campaignsDB{db} }

// Attacks implements control.DB.
func (db *DB) Attacks() attacks.DB { return &attacksDB{db} }

// HashLists implements control.DB.
func (db *DB) HashLists() hashlists.DB { return &hashListsDB{db} }

// Resources implements control.DB.
func (db *DB) Resources() resources.DB { return &resourcesDB{db} }

// StaleResources implements control.DB.
func (db *DB) StaleResources() cleanup.DB { return &resourcesDB{db} }

// Tasks implements control.DB.
func (db *DB) Tasks() tasks.DB { return &tasksDB{db} }

// Agents implements control.DB.
func (db *DB) Agents() agents.DB { return &agentsDB{db} }

// Stats implements control.DB.
func (db *DB) Stats() systemstats.DB { return &statsDB{db} }

// CreateSchema implements control.DB as a no-op.
func (db *DB) CreateSchema(ctx context.Context) error { return nil }

// Close implements control.DB as a no-op.
func (db *DB) Close() error { return nil }

func (db *DB) id() int64 {
	db.nextID++
	return db.nextID
}

// AddUser seeds a user whose API key digest matches rawKey.
func (db *DB) AddUser(email, rawKey string, superuser bool, projectIDs ...int64) *accounts.User {
	db.mu.Lock()
	defer db.mu.Unlock()

	user := &accounts.User{
		ID:          db.id(),
		Email:       email,
		APIKeyHash:  accounts.HashAPIKey(rawKey),
		IsActive:    true,
		IsSuperuser: superuser,
		CreatedAt:   time.Now().UTC(),
	}
	for _, projectID := range projectIDs {
		membership := accounts.Membership{
			ProjectID: projectID,
			UserID:    user.ID,
			Role:      accounts.RoleMember,
		}
		user.Memberships = append(user.Memberships, membership)
		db.memberships = append(db.memberships, membership)
	}
	db.users[user.ID] = user
	clone := cloneUser(user)
	return &clone
}

// AddProject seeds a project.
func (db *DB) AddProject(name string) *accounts.Project {
	db.mu.Lock()
	defer db.mu.Unlock()

	project := &accounts.Project{ID: db.id(), Name: name, CreatedAt: time.Now().UTC()}
	db.projects[project.ID] = project
	clone := *project
	return &clone
}

// AddAgent seeds an agent.
func (db *DB) AddAgent(agent agents.Agent) *agents.Agent {
	db.mu.Lock()
	defer db.mu.Unlock()

	agent.ID = db.id()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
		agent.UpdatedAt = agent.CreatedAt
	}
	db.agentRows[agent.ID] = &agent
	clone := agent
	return &clone
}

// AddBenchmark seeds a benchmark result for an agent.
func (db *DB) AddBenchmark(agentID int64, benchmark agents.Benchmark) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if benchmark.CreatedAt.IsZero() {
		benchmark.CreatedAt = time.Now().UTC()
	}
	db.benchmarks[agentID] = append(db.benchmarks[agentID], benchmark)
}

// AddCapability seeds a device capability for an agent.
func (db *DB) AddCapability(agentID int64, capability agents.Capability) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.capabilities[agentID] = append(db.capabilities[agentID], capability)
}

// AddAgentError seeds an error log entry for an agent.
func (db *DB) AddAgentError(agentID int64, entry agents.ErrorEntry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	entry.ID = db.id()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	db.agentErrors[agentID] = append(db.agentErrors[agentID], entry)
}

// AddTask seeds a task.
func (db *DB) AddTask(task tasks.Task) *tasks.Task {
	db.mu.Lock()
	defer db.mu.Unlock()

	task.ID = db.id()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
		task.UpdatedAt = task.CreatedAt
	}
	db.taskRows[task.ID] = &task
	clone := task
	return &clone
}

// AddStatusUpdate seeds a status update for a task.
func (db *DB) AddStatusUpdate(update tasks.StatusUpdate) {
	db.mu.Lock()
	defer db.mu.Unlock()
	update.ID = db.id()
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}
	db.statusUpdates[update.TaskID] = append(db.statusUpdates[update.TaskID], update)
}

// AddHashItem seeds a hash item into a hash list.
func (db *DB) AddHashItem(hashListID int64, item hashlists.HashItem) {
	db.mu.Lock()
	defer db.mu.Unlock()
	item.ID = db.id()
	db.hashItemRows[hashListID] = append(db.hashItemRows[hashListID], item)
}

func cloneUser(user *accounts.User) accounts.User {
	clone := *user
	clone.Memberships = append([]accounts.Membership(nil), user.Memberships...)
	return clone
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func page[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return []T{}
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]T{}, list[offset:end]...)
}
