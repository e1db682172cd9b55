// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controltest

import (
	"context"
	"time"

	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/systemstats"
	"ouroboros.dev/ouroboros/control/tasks"
)

type statsDB struct{ db *DB }

func (sdb *statsDB) AgentCounts(ctx context.Context) (systemstats.Counts, error) {
	sdb.db.mu.Lock()
	defer sdb.db.mu.Unlock()

	var counts systemstats.Counts
	for _, agent := range sdb.db.agentRows {
		counts.Total++
		if agent.Enabled && agent.State == "active" {
			counts.Active++
		}
	}
	return counts, nil
}

func (sdb *statsDB) CampaignCounts(ctx context.Context) (systemstats.Counts, error) {
	sdb.db.mu.Lock()
	defer sdb.db.mu.Unlock()

	var counts systemstats.Counts
	for _, campaign := range sdb.db.campaignRows {
		counts.Total++
		if campaign.State == campaigns.StateActive {
			counts.Active++
		}
	}
	return counts, nil
}

func (sdb *statsDB) TaskCounts(ctx context.Context) (systemstats.TaskCounts, error) {
	sdb.db.mu.Lock()
	defer sdb.db.mu.Unlock()

	var counts systemstats.TaskCounts
	for _, task := range sdb.db.taskRows {
		counts.Total++
		switch task.Status {
		case tasks.StatusPending:
			counts.Pending++
		case tasks.StatusRunning:
			counts.Running++
		case tasks.StatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

func (sdb *statsDB) TasksCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	sdb.db.mu.Lock()
	defer sdb.db.mu.Unlock()

	var count int64
	for _, task := range sdb.db.taskRows {
		if !task.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (sdb *statsDB) PendingResourceCount(ctx context.Context) (int64, error) {
	sdb.db.mu.Lock()
	defer sdb.db.mu.Unlock()

	var count int64
	for _, resource := range sdb.db.resourceRows {
		if !resource.IsUploaded {
			count++
		}
	}
	return count, nil
}
