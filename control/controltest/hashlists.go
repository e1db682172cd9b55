// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controltest

import (
	"context"
	"sort"
	"time"

	"ouroboros.dev/ouroboros/control/hashlists"
)

type hashListsDB struct{ db *DB }

func (hdb *hashListsDB) Insert(ctx context.Context, list *hashlists.HashList) (*hashlists.HashList, error) {
	hdb.db.mu.Lock()
	defer hdb.db.mu.Unlock()

	created := *list
	created.ID = hdb.db.id()
	created.CreatedAt = time.Now().UTC()
	created.UpdatedAt = created.CreatedAt
	hdb.db.hashListRows[created.ID] = &created
	clone := created
	return &clone, nil
}

func (hdb *hashListsDB) Update(ctx context.Context, list *hashlists.HashList) error {
	hdb.db.mu.Lock()
	defer hdb.db.mu.Unlock()

	existing, ok := hdb.db.hashListRows[list.ID]
	if !ok {
		return hashlists.ErrNotFound.New("%d", list.ID)
	}
	existing.Name = list.Name
	existing.Description = list.Description
	existing.HashTypeID = list.HashTypeID
	existing.IsUnavailable = list.IsUnavailable
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (hdb *hashListsDB) Get(ctx context.Context, id int64) (*hashlists.HashList, error) {
	hdb.db.mu.Lock()
	defer hdb.db.mu.Unlock()

	existing, ok := hdb.db.hashListRows[id]
	if !ok {
		return nil, hashlists.ErrNotFound.New("%d", id)
	}
	clone := *existing
	return &clone, nil
}

func (hdb *hashListsDB) Delete(ctx context.Context, id int64) error {
	hdb.db.mu.Lock()
	defer hdb.db.mu.Unlock()

	if _, ok := hdb.db.hashListRows[id]; !ok {
		return hashlists.ErrNotFound.New("%d", id)
	}
	delete(hdb.db.hashListRows, id)
	delete(hdb.db.hashItemRows, id)
	return nil
}

func (hdb *hashListsDB) List(ctx context.Context, opts hashlists.ListOptions) ([]hashlists.HashList, int64, error) {
	hdb.db.mu.Lock()
	defer hdb.db.mu.Unlock()

	all := []hashlists.HashList{}
	for _, list := range hdb.db.hashListRows {
		if list.ProjectID != nil && !containsID(opts.ProjectIDs, *list.ProjectID) {
			continue
		}
		if opts.Name != "" && !containsFold(list.Name, opts.Name) {
			continue
		}
		if opts.ProjectID != nil && (list.ProjectID == nil || *list.ProjectID != *opts.ProjectID) {
			continue
		}
		all = append(all, *list)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return page(all, opts.Limit, opts.Offset), int64(len(all)), nil
}

func (hdb *hashListsDB) Items(ctx context.Context, hashListID int64, opts hashlists.ItemsOptions) ([]hashlists.HashItem, int64, error) {
	hdb.db.mu.Lock()
	defer hdb.db.mu.Unlock()

	all := []hashlists.HashItem{}
	for _, item := range hdb.db.hashItemRows[hashListID] {
		if opts.Search != "" {
			matched := containsFold(item.Hash, opts.Search)
			if !matched && item.PlainText != nil {
				matched = containsFold(*item.PlainText, opts.Search)
			}
			if !matched {
				continue
			}
		}
		switch opts.Status {
		case hashlists.StatusCracked:
			if item.PlainText == nil {
				continue
			}
		case hashlists.StatusUncracked:
			if item.PlainText != nil {
				continue
			}
		}
		all = append(all, item)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, opts.Limit, opts.Offset), int64(len(all)), nil
}

func (hdb *hashListsDB) CrackedItems(ctx context.Context, hashListID int64) ([]hashlists.HashItem, error) {
	hdb.db.mu.Lock()
	defer hdb.db.mu.Unlock()

	items := []hashlists.HashItem{}
	for _, item := range hdb.db.hashItemRows[hashListID] {
		if item.PlainText != nil {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (hdb *hashListsDB) AllItems(ctx context.Context, hashListID int64) ([]hashlists.HashItem, error) {
	hdb.db.mu.Lock()
	defer hdb.db.mu.Unlock()

	items := append([]hashlists.HashItem{}, hdb.db.hashItemRows[hashListID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (hdb *hashListsDB) ItemCounts(ctx context.Context, hashListID int64) (hashlists.ItemCounts, error) {
	hdb.db.mu.Lock()
	defer hdb.db.mu.Unlock()

	var counts hashlists.ItemCounts
	for _, item := range hdb.db.hashItemRows[hashListID] {
		counts.Total++
		if item.PlainText != nil {
			counts.Cracked++
		}
	}
	return counts, nil
}

func (hdb *hashListsDB) ReferencingCampaign(ctx context.Context, hashListID int64) (hashlists.CampaignRef, bool, error) {
	hdb.db.mu.Lock()
	defer hdb.db.mu.Unlock()

	ref := hashlists.CampaignRef{}
	found := false
	for _, campaign := range hdb.db.campaignRows {
		if campaign.HashListID != hashListID {
			continue
		}
		if !found || campaign.ID < ref.ID {
			ref = hashlists.CampaignRef{ID: campaign.ID, Name: campaign.Name}
			found = true
		}
	}
	return ref, found, nil
}
