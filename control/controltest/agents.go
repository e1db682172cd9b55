// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controltest

import (
	"context"
	"sort"
	"time"

	"ouroboros.dev/ouroboros/control/agents"
)

type agentsDB struct{ db *DB }

func (adb *agentsDB) Get(ctx context.Context, id int64) (*agents.Agent, error) {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	existing, ok := adb.db.agentRows[id]
	if !ok {
		return nil, agents.ErrNotFound.New("%d", id)
	}
	clone := *existing
	clone.ProjectIDs = append([]int64(nil), existing.ProjectIDs...)
	return &clone, nil
}

func (adb *agentsDB) Update(ctx context.Context, agent *agents.Agent) error {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	existing, ok := adb.db.agentRows[agent.ID]
	if !ok {
		return agents.ErrNotFound.New("%d", agent.ID)
	}
	existing.Enabled = agent.Enabled
	existing.UpdateInterval = agent.UpdateInterval
	existing.UseNativeHashcat = agent.UseNativeHashcat
	existing.BackendDevices = agent.BackendDevices
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (adb *agentsDB) List(ctx context.Context, opts agents.ListOptions) ([]agents.Agent, int64, error) {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	all := []agents.Agent{}
	for _, agent := range adb.db.agentRows {
		if !opts.All {
			overlap := false
			for _, projectID := range agent.ProjectIDs {
				if containsID(opts.ProjectIDs, projectID) {
					overlap = true
					break
				}
			}
			if !overlap {
				continue
			}
		}
		if opts.Search != "" && !containsFold(agent.HostName, opts.Search) {
			continue
		}
		if opts.State != nil && agent.State != *opts.State {
			continue
		}
		clone := *agent
		clone.ProjectIDs = append([]int64(nil), agent.ProjectIDs...)
		all = append(all, clone)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, opts.Limit, opts.Offset), int64(len(all)), nil
}

func (adb *agentsDB) Benchmarks(ctx context.Context, agentID int64) ([]agents.Benchmark, error) {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	benchmarks := append([]agents.Benchmark{}, adb.db.benchmarks[agentID]...)
	sort.Slice(benchmarks, func(i, j int) bool {
		return benchmarks[i].CreatedAt.After(benchmarks[j].CreatedAt)
	})
	return benchmarks, nil
}

func (adb *agentsDB) Capabilities(ctx context.Context, agentID int64) ([]agents.Capability, error) {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	capabilities := append([]agents.Capability{}, adb.db.capabilities[agentID]...)
	sort.Slice(capabilities, func(i, j int) bool {
		return capabilities[i].DeviceID < capabilities[j].DeviceID
	})
	return capabilities, nil
}

func (adb *agentsDB) Errors(ctx context.Context, agentID int64, limit, offset int) ([]agents.ErrorEntry, int64, error) {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	entries := append([]agents.ErrorEntry{}, adb.db.agentErrors[agentID]...)
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return page(entries, limit, offset), int64(len(entries)), nil
}
