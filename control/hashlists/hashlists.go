// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package hashlists implements hash list management and cracked-hash exports.
package hashlists

import (
	"context"
	"time"

	"github.com/zeebo/errs"
)

// ErrNotFound is returned by the repository when the hash list is missing.
var ErrNotFound = errs.Class("hash list not found")

// ErrItemNotFound is returned by the repository when the hash item is missing.
var ErrItemNotFound = errs.Class("hash item not found")

// HashList is a named collection of password hashes. A nil ProjectID makes
// the list global, usable by any campaign.
type HashList struct {
	ID            int64
	ProjectID     *int64
	Name          string
	Description   string
	HashTypeID    int
	IsUnavailable bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HashItem is a single hash with optional salt. A non-nil PlainText means
// the hash is cracked.
type HashItem struct {
	ID        int64
	Hash      string
	Salt      *string
	PlainText *string
}

// Cracked reports whether the item has a recovered plaintext.
func (item HashItem) Cracked() bool { return item.PlainText != nil }

// Item status filter values.
const (
	StatusCracked   = "cracked"
	StatusUncracked = "uncracked"
)

// ListOptions filter and paginate hash list listings.
type ListOptions struct {
	Name       string
	ProjectID  *int64
	ProjectIDs []int64
	Limit      int
	Offset     int
}

// ItemsOptions filter and paginate hash item listings.
type ItemsOptions struct {
	Search string
	Status string
	Limit  int
	Offset int
}

// ItemCounts are the totals used by exports and metrics.
type ItemCounts struct {
	Total   int64
	Cracked int64
}

// CampaignRef identifies a campaign referencing a hash list.
type CampaignRef struct {
	ID   int64
	Name string
}

// DB is the hash list repository.
type DB interface {
	Insert(ctx context.Context, list *HashList) (*HashList, error)
	Update(ctx context.Context, list *HashList) error
	Get(ctx context.Context, id int64) (*HashList, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, opts ListOptions) ([]HashList, int64, error)

	Items(ctx context.Context, hashListID int64, opts ItemsOptions) ([]HashItem, int64, error)
	// CrackedItems returns every cracked item, for exports.
	CrackedItems(ctx context.Context, hashListID int64) ([]HashItem, error)
	// AllItems returns every item, for exports that include uncracked rows.
	AllItems(ctx context.Context, hashListID int64) ([]HashItem, error)
	ItemCounts(ctx context.Context, hashListID int64) (ItemCounts, error)

	// ReferencingCampaign reports one campaign still using the hash list.
	ReferencingCampaign(ctx context.Context, hashListID int64) (ref CampaignRef, found bool, err error)
}
