// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controltest

import (
	"context"
	"sort"
	"time"

	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/tasks"
)

type campaignsDB struct{ db *DB }

func (cdb *campaignsDB) Insert(ctx context.Context, campaign *campaigns.Campaign) (*campaigns.Campaign, error) {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	created := *campaign
	created.ID = cdb.db.id()
	created.CreatedAt = time.Now().UTC()
	created.UpdatedAt = created.CreatedAt
	cdb.db.campaignRows[created.ID] = &created
	clone := created
	return &clone, nil
}

func (cdb *campaignsDB) Update(ctx context.Context, campaign *campaigns.Campaign) error {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	existing, ok := cdb.db.campaignRows[campaign.ID]
	if !ok {
		return campaigns.ErrNotFound.New("%d", campaign.ID)
	}
	existing.Name = campaign.Name
	existing.Description = campaign.Description
	existing.Priority = campaign.Priority
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (cdb *campaignsDB) UpdateState(ctx context.Context, id int64, state campaigns.State) (*campaigns.Campaign, error) {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	existing, ok := cdb.db.campaignRows[id]
	if !ok {
		return nil, campaigns.ErrNotFound.New("%d", id)
	}
	existing.State = state
	existing.UpdatedAt = time.Now().UTC()
	clone := *existing
	return &clone, nil
}

func (cdb *campaignsDB) Get(ctx context.Context, id int64) (*campaigns.Campaign, error) {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	existing, ok := cdb.db.campaignRows[id]
	if !ok {
		return nil, campaigns.ErrNotFound.New("%d", id)
	}
	clone := *existing
	return &clone, nil
}

func (cdb *campaignsDB) Delete(ctx context.Context, id int64) error {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	if _, ok := cdb.db.campaignRows[id]; !ok {
		return campaigns.ErrNotFound.New("%d", id)
	}
	delete(cdb.db.campaignRows, id)
	return nil
}

func (cdb *campaignsDB) List(ctx context.Context, opts campaigns.ListOptions) ([]campaigns.Campaign, int64, error) {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	all := []campaigns.Campaign{}
	for _, campaign := range cdb.db.campaignRows {
		if !containsID(opts.ProjectIDs, campaign.ProjectID) {
			continue
		}
		if opts.Name != "" && !containsFold(campaign.Name, opts.Name) {
			continue
		}
		if opts.ProjectID != nil && campaign.ProjectID != *opts.ProjectID {
			continue
		}
		all = append(all, *campaign)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ProjectID != all[j].ProjectID {
			return all[i].ProjectID < all[j].ProjectID
		}
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return page(all, opts.Limit, opts.Offset), int64(len(all)), nil
}

func (cdb *campaignsDB) CountAttacks(ctx context.Context, campaignID int64) (int64, error) {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	var count int64
	for _, attack := range cdb.db.attackRows {
		if attack.CampaignID == campaignID {
			count++
		}
	}
	return count, nil
}

func (cdb *campaignsDB) AttackIDs(ctx context.Context, campaignID int64) ([]int64, error) {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	type entry struct {
		id       int64
		position int
	}
	var entries []entry
	for _, attack := range cdb.db.attackRows {
		if attack.CampaignID == campaignID {
			entries = append(entries, entry{id: attack.ID, position: attack.Position})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].position != entries[j].position {
			return entries[i].position < entries[j].position
		}
		return entries[i].id < entries[j].id
	})
	var ids []int64
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids, nil
}

func (cdb *campaignsDB) ReorderAttacks(ctx context.Context, campaignID int64, order []campaigns.AttackPosition) error {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	for _, position := range order {
		attack, ok := cdb.db.attackRows[position.AttackID]
		if !ok || attack.CampaignID != campaignID {
			continue
		}
		attack.Position = position.Position
		attack.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (cdb *campaignsDB) Progress(ctx context.Context, campaignID int64) (campaigns.ProgressStats, error) {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	var stats campaigns.ProgressStats
	activeAgents := map[int64]bool{}
	for _, task := range cdb.db.taskRows {
		attack, ok := cdb.db.attackRows[task.AttackID]
		if !ok || attack.CampaignID != campaignID {
			continue
		}
		stats.TotalTasks++
		switch task.Status {
		case tasks.StatusPending:
			stats.PendingTasks++
		case tasks.StatusRunning:
			stats.RunningTasks++
			if task.AgentID != nil {
				activeAgents[*task.AgentID] = true
			}
		case tasks.StatusCompleted:
			stats.CompletedTasks++
		case tasks.StatusFailed:
			stats.FailedTasks++
		}
	}
	stats.ActiveAgents = int64(len(activeAgents))
	return stats, nil
}

func (cdb *campaignsDB) CrackCounts(ctx context.Context, campaignID int64) (campaigns.CrackStats, error) {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	var counts campaigns.CrackStats
	campaign, ok := cdb.db.campaignRows[campaignID]
	if !ok {
		return counts, nil
	}
	for _, item := range cdb.db.hashItemRows[campaign.HashListID] {
		counts.TotalHashes++
		if item.PlainText != nil {
			counts.CrackedHashes++
		}
	}
	return counts, nil
}

func (cdb *campaignsDB) ActiveAgentCount(ctx context.Context) (int64, error) {
	cdb.db.mu.Lock()
	defer cdb.db.mu.Unlock()

	var count int64
	for _, agent := range cdb.db.agentRows {
		if agent.Enabled && agent.State == "active" {
			count++
		}
	}
	return count, nil
}
