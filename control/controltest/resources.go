// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controltest

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"ouroboros.dev/ouroboros/control/attacks"
	"ouroboros.dev/ouroboros/control/resources"
)

// Resource usage is matched on exactly two predicates: word list ID equality
// and left_rule equality with the resource GUID text.
func resourceMatch(attack *attacks.Attack, id uuid.UUID, guid string) bool {
	if attack.WordListID != nil && *attack.WordListID == id {
		return true
	}
	return attack.LeftRule == guid
}

type resourcesDB struct{ db *DB }

func (rdb *resourcesDB) Insert(ctx context.Context, resource *resources.Resource) error {
	rdb.db.mu.Lock()
	defer rdb.db.mu.Unlock()

	created := *resource
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
		created.UpdatedAt = created.CreatedAt
	}
	rdb.db.resourceRows[created.ID] = &created
	return nil
}

func (rdb *resourcesDB) Update(ctx context.Context, resource *resources.Resource) error {
	rdb.db.mu.Lock()
	defer rdb.db.mu.Unlock()

	if _, ok := rdb.db.resourceRows[resource.ID]; !ok {
		return resources.ErrNotFound.New("%s", resource.ID)
	}
	updated := *resource
	updated.UpdatedAt = time.Now().UTC()
	rdb.db.resourceRows[updated.ID] = &updated
	return nil
}

func (rdb *resourcesDB) Get(ctx context.Context, id uuid.UUID) (*resources.Resource, error) {
	rdb.db.mu.Lock()
	defer rdb.db.mu.Unlock()

	existing, ok := rdb.db.resourceRows[id]
	if !ok {
		return nil, resources.ErrNotFound.New("%s", id)
	}
	clone := *existing
	return &clone, nil
}

func (rdb *resourcesDB) Delete(ctx context.Context, id uuid.UUID) error {
	rdb.db.mu.Lock()
	defer rdb.db.mu.Unlock()

	if _, ok := rdb.db.resourceRows[id]; !ok {
		return resources.ErrNotFound.New("%s", id)
	}
	delete(rdb.db.resourceRows, id)
	return nil
}

func (rdb *resourcesDB) usageCount(resource *resources.Resource) int64 {
	var count int64
	guid := resource.GUID.String()
	for _, attack := range rdb.db.attackRows {
		if resourceMatch(attack, resource.ID, guid) {
			count++
		}
	}
	return count
}

func (rdb *resourcesDB) List(ctx context.Context, opts resources.ListOptions) ([]resources.ListItem, int64, error) {
	rdb.db.mu.Lock()
	defer rdb.db.mu.Unlock()

	all := []resources.ListItem{}
	for _, resource := range rdb.db.resourceRows {
		if resource.Type.Ephemeral() {
			continue
		}
		if !opts.All && resource.ProjectID != nil && !containsID(opts.ProjectIDs, *resource.ProjectID) {
			continue
		}
		if opts.Type != nil && resource.Type != *opts.Type {
			continue
		}
		if opts.ProjectID != nil && (resource.ProjectID == nil || *resource.ProjectID != *opts.ProjectID) {
			continue
		}
		if opts.Search != "" {
			matched := containsFold(resource.FileName, opts.Search)
			if !matched && resource.FileLabel != nil {
				matched = containsFold(*resource.FileLabel, opts.Search)
			}
			if !matched {
				continue
			}
		}
		all = append(all, resources.ListItem{
			Resource:   *resource,
			UsageCount: rdb.usageCount(resource),
		})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, opts.Limit, opts.Offset), int64(len(all)), nil
}

func (rdb *resourcesDB) UsageCount(ctx context.Context, resource *resources.Resource) (int64, error) {
	rdb.db.mu.Lock()
	defer rdb.db.mu.Unlock()
	return rdb.usageCount(resource), nil
}

func (rdb *resourcesDB) ReferencingAttacks(ctx context.Context, resource *resources.Resource) ([]resources.AttackRef, error) {
	rdb.db.mu.Lock()
	defer rdb.db.mu.Unlock()

	guid := resource.GUID.String()
	refs := []resources.AttackRef{}
	for _, attack := range rdb.db.attackRows {
		if resourceMatch(attack, resource.ID, guid) {
			refs = append(refs, resources.AttackRef{ID: attack.ID, Name: attack.Name})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

func (rdb *resourcesDB) SelectStaleIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rdb.db.mu.Lock()
	defer rdb.db.mu.Unlock()

	var stale []*resources.Resource
	for _, resource := range rdb.db.resourceRows {
		if !resource.IsUploaded && resource.CreatedAt.Before(cutoff) {
			stale = append(stale, resource)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	var ids []uuid.UUID
	for _, resource := range stale {
		ids = append(ids, resource.ID)
	}
	return ids, nil
}

func (rdb *resourcesDB) WithPendingLocked(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) (bool, error) {
	rdb.db.mu.Lock()
	resource, ok := rdb.db.resourceRows[id]
	if !ok || resource.IsUploaded {
		rdb.db.mu.Unlock()
		return false, nil
	}
	rdb.db.mu.Unlock()

	if err := fn(ctx); err != nil {
		return false, err
	}

	rdb.db.mu.Lock()
	delete(rdb.db.resourceRows, id)
	rdb.db.mu.Unlock()
	return true, nil
}
