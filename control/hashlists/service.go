// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package hashlists

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/control/problems"
)

var (
	// Error is the hashlists service error class.
	Error = errs.Class("hashlists service")

	mon = monkit.Package()
)

// Service implements hash list operations.
type Service struct {
	log  *zap.Logger
	db   DB
	auth *accounts.Service
	bus  *events.Bus
}

// NewService creates a hashlists service.
func NewService(log *zap.Logger, db DB, auth *accounts.Service, bus *events.Bus) *Service {
	return &Service{log: log, db: db, auth: auth, bus: bus}
}

func (service *Service) access(user *accounts.User, list *HashList) error {
	if list.ProjectID == nil {
		return nil
	}
	return service.auth.ValidateProjectAccess(user, *list.ProjectID)
}

// List returns hash lists visible to the user: project lists the user is a
// member of, plus global lists.
func (service *Service) List(ctx context.Context, user *accounts.User, opts ListOptions) (_ []HashList, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if opts.ProjectID != nil {
		if err := service.auth.ValidateProjectAccess(user, *opts.ProjectID); err != nil {
			return nil, 0, err
		}
	}
	opts.ProjectIDs = service.auth.AccessibleProjects(user)

	lists, total, err := service.db.List(ctx, opts)
	return lists, total, Error.Wrap(err)
}

// CreateParams are the attributes of a new hash list.
type CreateParams struct {
	ProjectID   *int64
	Name        string
	Description string
	HashTypeID  int
}

// Create makes a new hash list. A nil project makes it global.
func (service *Service) Create(ctx context.Context, user *accounts.User, params CreateParams) (_ *HashList, err error) {
	defer mon.Task()(&ctx)(&err)

	if params.ProjectID != nil {
		if err := service.auth.ValidateProjectAccess(user, *params.ProjectID); err != nil {
			return nil, err
		}
	}

	list, err := service.db.Insert(ctx, &HashList{
		ProjectID:   params.ProjectID,
		Name:        params.Name,
		Description: params.Description,
		HashTypeID:  params.HashTypeID,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.HashListCreated, map[string]any{
		"hash_list_id": list.ID,
		"name":         list.Name,
	})
	return list, nil
}

// Get returns a hash list the user can access.
func (service *Service) Get(ctx context.Context, user *accounts.User, id int64) (_ *HashList, err error) {
	defer mon.Task()(&ctx)(&err)

	list, err := service.db.Get(ctx, id)
	if err != nil {
		if ErrNotFound.Has(err) {
			return nil, problems.HashListNotFound(id)
		}
		return nil, Error.Wrap(err)
	}
	if err := service.access(user, list); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateParams are the mutable hash list attributes.
type UpdateParams struct {
	Name          *string
	Description   *string
	IsUnavailable *bool
}

// Update changes name, description or availability.
func (service *Service) Update(ctx context.Context, user *accounts.User, id int64, params UpdateParams) (_ *HashList, err error) {
	defer mon.Task()(&ctx)(&err)

	list, err := service.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		list.Name = *params.Name
	}
	if params.Description != nil {
		list.Description = *params.Description
	}
	if params.IsUnavailable != nil {
		list.IsUnavailable = *params.IsUnavailable
	}

	if err := service.db.Update(ctx, list); err != nil {
		return nil, Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.HashListUpdated, map[string]any{
		"hash_list_id": list.ID,
	})
	return list, nil
}

// Delete removes a hash list no campaign references.
func (service *Service) Delete(ctx context.Context, user *accounts.User, id int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.Get(ctx, user, id); err != nil {
		return err
	}

	ref, found, err := service.db.ReferencingCampaign(ctx, id)
	if err != nil {
		return Error.Wrap(err)
	}
	if found {
		return problems.InvalidResourceState(fmt.Sprintf(
			"Cannot delete hash list: it is used by campaign '%s' (ID: %d)", ref.Name, ref.ID))
	}

	return Error.Wrap(service.db.Delete(ctx, id))
}

// Items returns the hash items of a list, filtered and paginated.
func (service *Service) Items(ctx context.Context, user *accounts.User, id int64, opts ItemsOptions) (_ []HashItem, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.Get(ctx, user, id); err != nil {
		return nil, 0, err
	}
	items, total, err := service.db.Items(ctx, id, opts)
	return items, total, Error.Wrap(err)
}

// Export is a rendered hash list export.
type Export struct {
	HashListID   int64
	HashListName string
	Format       string
	TotalItems   int64
	CrackedCount int64
	Content      string
}

// ExportPlaintext renders the plaintexts of cracked items, newline joined.
func (service *Service) ExportPlaintext(ctx context.Context, user *accounts.User, id int64) (_ Export, err error) {
	defer mon.Task()(&ctx)(&err)

	list, cracked, counts, err := service.exportData(ctx, user, id)
	if err != nil {
		return Export{}, err
	}

	lines := make([]string, 0, len(cracked))
	for _, item := range cracked {
		lines = append(lines, *item.PlainText)
	}
	return Export{
		HashListID:   list.ID,
		HashListName: list.Name,
		Format:       "plaintext",
		TotalItems:   counts.Total,
		CrackedCount: counts.Cracked,
		Content:      strings.Join(lines, "\n"),
	}, nil
}

// ExportPotfile renders cracked items in hashcat potfile format:
// hash:plain, or hash:salt:plain when a salt is present.
func (service *Service) ExportPotfile(ctx context.Context, user *accounts.User, id int64) (_ Export, err error) {
	defer mon.Task()(&ctx)(&err)

	list, cracked, counts, err := service.exportData(ctx, user, id)
	if err != nil {
		return Export{}, err
	}

	lines := make([]string, 0, len(cracked))
	for _, item := range cracked {
		if item.Salt != nil {
			lines = append(lines, fmt.Sprintf("%s:%s:%s", item.Hash, *item.Salt, *item.PlainText))
		} else {
			lines = append(lines, fmt.Sprintf("%s:%s", item.Hash, *item.PlainText))
		}
	}
	return Export{
		HashListID:   list.ID,
		HashListName: list.Name,
		Format:       "potfile",
		TotalItems:   counts.Total,
		CrackedCount: counts.Cracked,
		Content:      strings.Join(lines, "\n"),
	}, nil
}

// ExportCSV renders items as CSV with an id,hash,salt,plaintext,status
// header. Uncracked rows are included unless includeUncracked is false.
func (service *Service) ExportCSV(ctx context.Context, user *accounts.User, id int64, includeUncracked bool) (_ Export, err error) {
	defer mon.Task()(&ctx)(&err)

	list, err := service.Get(ctx, user, id)
	if err != nil {
		return Export{}, err
	}
	counts, err := service.db.ItemCounts(ctx, id)
	if err != nil {
		return Export{}, Error.Wrap(err)
	}

	var items []HashItem
	if includeUncracked {
		items, err = service.db.AllItems(ctx, id)
	} else {
		items, err = service.db.CrackedItems(ctx, id)
	}
	if err != nil {
		return Export{}, Error.Wrap(err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"id", "hash", "salt", "plaintext", "status"}); err != nil {
		return Export{}, Error.Wrap(err)
	}
	for _, item := range items {
		salt, plain, status := "", "", StatusUncracked
		if item.Salt != nil {
			salt = *item.Salt
		}
		if item.PlainText != nil {
			plain = *item.PlainText
			status = StatusCracked
		}
		record := []string{strconv.FormatInt(item.ID, 10), item.Hash, salt, plain, status}
		if err := writer.Write(record); err != nil {
			return Export{}, Error.Wrap(err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return Export{}, Error.Wrap(err)
	}

	return Export{
		HashListID:   list.ID,
		HashListName: list.Name,
		Format:       "csv",
		TotalItems:   counts.Total,
		CrackedCount: counts.Cracked,
		Content:      buf.String(),
	}, nil
}

func (service *Service) exportData(ctx context.Context, user *accounts.User, id int64) (*HashList, []HashItem, ItemCounts, error) {
	list, err := service.Get(ctx, user, id)
	if err != nil {
		return nil, nil, ItemCounts{}, err
	}
	counts, err := service.db.ItemCounts(ctx, id)
	if err != nil {
		return nil, nil, ItemCounts{}, Error.Wrap(err)
	}
	cracked, err := service.db.CrackedItems(ctx, id)
	if err != nil {
		return nil, nil, ItemCounts{}, Error.Wrap(err)
	}
	return list, cracked, counts, nil
}
