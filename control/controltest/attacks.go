// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controltest

import (
	"context"
	"sort"
	"time"

	"ouroboros.dev/ouroboros/control/attacks"
	"ouroboros.dev/ouroboros/control/tasks"
)

type attacksDB struct{ db *DB }

func (adb *attacksDB) Insert(ctx context.Context, attack *attacks.Attack) (*attacks.Attack, error) {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	created := *attack
	created.ID = adb.db.id()
	created.CreatedAt = time.Now().UTC()
	created.UpdatedAt = created.CreatedAt
	adb.db.attackRows[created.ID] = &created
	clone := created
	return &clone, nil
}

func (adb *attacksDB) Update(ctx context.Context, attack *attacks.Attack) error {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	existing, ok := adb.db.attackRows[attack.ID]
	if !ok {
		return attacks.ErrNotFound.New("%d", attack.ID)
	}
	existing.Name = attack.Name
	existing.Mode = attack.Mode
	existing.Mask = attack.Mask
	existing.WordListID = attack.WordListID
	existing.RuleListID = attack.RuleListID
	existing.MaskListID = attack.MaskListID
	existing.LeftRule = attack.LeftRule
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (adb *attacksDB) UpdateState(ctx context.Context, id int64, state attacks.State) (*attacks.Attack, error) {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	existing, ok := adb.db.attackRows[id]
	if !ok {
		return nil, attacks.ErrNotFound.New("%d", id)
	}
	existing.State = state
	existing.UpdatedAt = time.Now().UTC()
	clone := *existing
	return &clone, nil
}

func (adb *attacksDB) Get(ctx context.Context, id int64) (*attacks.Attack, error) {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	existing, ok := adb.db.attackRows[id]
	if !ok {
		return nil, attacks.ErrNotFound.New("%d", id)
	}
	clone := *existing
	return &clone, nil
}

func (adb *attacksDB) Delete(ctx context.Context, id int64) error {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	if _, ok := adb.db.attackRows[id]; !ok {
		return attacks.ErrNotFound.New("%d", id)
	}
	delete(adb.db.attackRows, id)
	return nil
}

func (adb *attacksDB) List(ctx context.Context, opts attacks.ListOptions) ([]attacks.Attack, int64, error) {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	all := []attacks.Attack{}
	for _, attack := range adb.db.attackRows {
		campaign, ok := adb.db.campaignRows[attack.CampaignID]
		if !ok || !containsID(opts.ProjectIDs, campaign.ProjectID) {
			continue
		}
		if opts.CampaignID != nil && attack.CampaignID != *opts.CampaignID {
			continue
		}
		if opts.State != nil && attack.State != *opts.State {
			continue
		}
		all = append(all, *attack)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Position != all[j].Position {
			return all[i].Position < all[j].Position
		}
		return all[i].ID < all[j].ID
	})
	return page(all, opts.Limit, opts.Offset), int64(len(all)), nil
}

func (adb *attacksDB) MaxPosition(ctx context.Context, campaignID int64) (int, error) {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	max := -1
	for _, attack := range adb.db.attackRows {
		if attack.CampaignID == campaignID && attack.Position > max {
			max = attack.Position
		}
	}
	return max, nil
}

func (adb *attacksDB) Metrics(ctx context.Context, attackID int64) (attacks.Metrics, error) {
	adb.db.mu.Lock()
	defer adb.db.mu.Unlock()

	var metrics attacks.Metrics
	agentIDs := map[int64]bool{}
	var progressSum float64
	var taskCount int64
	for _, task := range adb.db.taskRows {
		if task.AttackID != attackID {
			continue
		}
		taskCount++
		progressSum += task.Progress
		if task.Status == tasks.StatusRunning && task.AgentID != nil {
			agentIDs[*task.AgentID] = true
		}
	}
	metrics.AgentCount = int64(len(agentIDs))
	if taskCount > 0 {
		metrics.ProgressPercent = progressSum / float64(taskCount)
	}

	attack, ok := adb.db.attackRows[attackID]
	if !ok {
		return metrics, nil
	}
	campaign, ok := adb.db.campaignRows[attack.CampaignID]
	if !ok {
		return metrics, nil
	}
	metrics.TotalHashes = int64(len(adb.db.hashItemRows[campaign.HashListID]))

	hashList, ok := adb.db.hashListRows[campaign.HashListID]
	if !ok {
		return metrics, nil
	}
	for agentID := range agentIDs {
		benchmarks := adb.db.benchmarks[agentID]
		for i := len(benchmarks) - 1; i >= 0; i-- {
			if benchmarks[i].HashTypeID == hashList.HashTypeID {
				metrics.HashesPerSec += benchmarks[i].HashSpeed
				break
			}
		}
	}
	return metrics, nil
}
