// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package resources implements attack resource files: the two-phase upload
// protocol, previews, metadata updates and the per-upload verifier.
package resources

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
)

// ErrNotFound is returned by the repository when the resource is missing.
var ErrNotFound = errs.Class("resource not found")

// Type classifies a resource file.
type Type string

// Resource types. Ephemeral variants keep their content inline in the
// database instead of object storage and never show up in listings.
const (
	TypeWordList Type = "word_list"
	TypeRuleList Type = "rule_list"
	TypeMaskList Type = "mask_list"
	TypeCharset  Type = "charset"

	TypeEphemeralWordList Type = "ephemeral_word_list"
	TypeEphemeralRuleList Type = "ephemeral_rule_list"
	TypeEphemeralMaskList Type = "ephemeral_mask_list"
)

// Ephemeral reports whether the type stores its content inline.
func (t Type) Ephemeral() bool {
	switch t {
	case TypeEphemeralWordList, TypeEphemeralRuleList, TypeEphemeralMaskList:
		return true
	}
	return false
}

// Resource is an uploaded (or pending) attack resource file. A nil ProjectID
// makes the resource globally accessible.
type Resource struct {
	ID           uuid.UUID
	ProjectID    *int64
	FileName     string
	FileLabel    *string
	Type         Type
	LineFormat   string
	LineEncoding string
	UsedForModes []string
	Source       string
	LineCount    int64
	ByteSize     int64
	Checksum     string
	GUID         uuid.UUID
	IsUploaded   bool
	Tags         []string
	ContentLines []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ListOptions filter and paginate resource listings. A nil ProjectIDs slice
// means unrestricted (superuser); otherwise results are limited to the given
// projects plus global resources.
type ListOptions struct {
	Type       *Type
	ProjectID  *int64
	Search     string
	ProjectIDs []int64
	All        bool
	Limit      int
	Offset     int
}

// ListItem is a listed resource with its computed usage count.
type ListItem struct {
	Resource
	UsageCount int64
}

// AttackRef identifies an attack referencing a resource.
type AttackRef struct {
	ID   int64
	Name string
}

// DB is the resource repository.
type DB interface {
	Insert(ctx context.Context, resource *Resource) error
	Update(ctx context.Context, resource *Resource) error
	Get(ctx context.Context, id uuid.UUID) (*Resource, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, opts ListOptions) ([]ListItem, int64, error)

	// UsageCount counts attacks referencing the resource, by word list ID
	// equality and by left_rule textual GUID match.
	UsageCount(ctx context.Context, resource *Resource) (int64, error)
	// ReferencingAttacks returns the attacks matching either predicate,
	// deduplicated.
	ReferencingAttacks(ctx context.Context, resource *Resource) ([]AttackRef, error)
}
