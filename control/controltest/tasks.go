// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controltest

import (
	"context"
	"sort"
	"time"

	"ouroboros.dev/ouroboros/control/tasks"
)

type tasksDB struct{ db *DB }

func (tdb *tasksDB) Get(ctx context.Context, id int64) (*tasks.Task, error) {
	tdb.db.mu.Lock()
	defer tdb.db.mu.Unlock()

	existing, ok := tdb.db.taskRows[id]
	if !ok {
		return nil, tasks.ErrNotFound.New("%d", id)
	}
	clone := *existing
	return &clone, nil
}

func (tdb *tasksDB) Update(ctx context.Context, task *tasks.Task) error {
	tdb.db.mu.Lock()
	defer tdb.db.mu.Unlock()

	existing, ok := tdb.db.taskRows[task.ID]
	if !ok {
		return tasks.ErrNotFound.New("%d", task.ID)
	}
	existing.AgentID = task.AgentID
	existing.Status = task.Status
	existing.Progress = task.Progress
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (tdb *tasksDB) List(ctx context.Context, opts tasks.ListOptions) ([]tasks.Task, int64, error) {
	tdb.db.mu.Lock()
	defer tdb.db.mu.Unlock()

	all := []tasks.Task{}
	for _, task := range tdb.db.taskRows {
		attack, ok := tdb.db.attackRows[task.AttackID]
		if !ok {
			continue
		}
		campaign, ok := tdb.db.campaignRows[attack.CampaignID]
		if !ok || !containsID(opts.ProjectIDs, campaign.ProjectID) {
			continue
		}
		if opts.Status != nil && task.Status != *opts.Status {
			continue
		}
		if opts.AttackID != nil && task.AttackID != *opts.AttackID {
			continue
		}
		if opts.CampaignID != nil && attack.CampaignID != *opts.CampaignID {
			continue
		}
		if opts.AgentID != nil && (task.AgentID == nil || *task.AgentID != *opts.AgentID) {
			continue
		}
		all = append(all, *task)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return page(all, opts.Limit, opts.Offset), int64(len(all)), nil
}

func (tdb *tasksDB) ProjectID(ctx context.Context, taskID int64) (int64, error) {
	tdb.db.mu.Lock()
	defer tdb.db.mu.Unlock()

	task, ok := tdb.db.taskRows[taskID]
	if !ok {
		return 0, tasks.ErrNotFound.New("%d", taskID)
	}
	attack, ok := tdb.db.attackRows[task.AttackID]
	if !ok {
		return 0, tasks.ErrNotFound.New("%d", taskID)
	}
	campaign, ok := tdb.db.campaignRows[attack.CampaignID]
	if !ok {
		return 0, tasks.ErrNotFound.New("%d", taskID)
	}
	return campaign.ProjectID, nil
}

func (tdb *tasksDB) StatusUpdates(ctx context.Context, taskID int64, limit int) ([]tasks.StatusUpdate, error) {
	tdb.db.mu.Lock()
	defer tdb.db.mu.Unlock()

	updates := append([]tasks.StatusUpdate{}, tdb.db.statusUpdates[taskID]...)
	sort.Slice(updates, func(i, j int) bool {
		if !updates[i].Timestamp.Equal(updates[j].Timestamp) {
			return updates[i].Timestamp.After(updates[j].Timestamp)
		}
		return updates[i].ID > updates[j].ID
	})
	if limit > 0 && len(updates) > limit {
		updates = updates[:limit]
	}
	return updates, nil
}
