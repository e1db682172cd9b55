// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package campaigns

import (
	"context"
	"fmt"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/control/hashlists"
	"ouroboros.dev/ouroboros/control/problems"
	"ouroboros.dev/ouroboros/control/statemachine"
)

var (
	// Error is the campaigns service error class.
	Error = errs.Class("campaigns service")
	// ErrNotFound is returned by the repository when the campaign is missing.
	ErrNotFound = errs.Class("campaign not found")

	mon = monkit.Package()
)

// Service implements campaign operations, scoped to the caller's projects.
type Service struct {
	log       *zap.Logger
	db        DB
	hashLists hashlists.DB
	auth      *accounts.Service
	bus       *events.Bus
}

// NewService creates a campaigns service.
func NewService(log *zap.Logger, db DB, hashLists hashlists.DB, auth *accounts.Service, bus *events.Bus) *Service {
	return &Service{
		log:       log,
		db:        db,
		hashLists: hashLists,
		auth:      auth,
		bus:       bus,
	}
}

// List returns the campaigns visible to the user.
func (service *Service) List(ctx context.Context, user *accounts.User, opts ListOptions) (_ []Campaign, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	accessible := service.auth.AccessibleProjects(user)
	if len(accessible) == 0 {
		return nil, 0, problems.ProjectAccessDenied("User has no project memberships")
	}
	if opts.ProjectID != nil {
		if err := service.auth.ValidateProjectAccess(user, *opts.ProjectID); err != nil {
			return nil, 0, err
		}
	}
	opts.ProjectIDs = accessible

	campaigns, total, err := service.db.List(ctx, opts)
	return campaigns, total, Error.Wrap(err)
}

// CreateParams are the attributes of a new campaign.
type CreateParams struct {
	ProjectID   int64
	HashListID  int64
	Name        string
	Description string
	Priority    int
}

// Create makes a new campaign in draft state.
func (service *Service) Create(ctx context.Context, user *accounts.User, params CreateParams) (_ *Campaign, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := service.auth.ValidateProjectAccess(user, params.ProjectID); err != nil {
		return nil, err
	}

	hashList, err := service.hashLists.Get(ctx, params.HashListID)
	if err != nil {
		if hashlists.ErrNotFound.Has(err) {
			return nil, problems.HashListNotFound(params.HashListID)
		}
		return nil, Error.Wrap(err)
	}
	if hashList.ProjectID != nil && *hashList.ProjectID != params.ProjectID {
		return nil, problems.ProjectAccessDenied(fmt.Sprintf(
			"Hash list %d belongs to a different project", params.HashListID))
	}

	campaign, err := service.db.Insert(ctx, &Campaign{
		ProjectID:   params.ProjectID,
		HashListID:  params.HashListID,
		Name:        params.Name,
		Description: params.Description,
		Priority:    params.Priority,
		State:       StateDraft,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.CampaignCreated, map[string]any{
		"campaign_id": campaign.ID,
		"project_id":  campaign.ProjectID,
		"name":        campaign.Name,
	})
	return campaign, nil
}

// Get returns a campaign the user can access.
func (service *Service) Get(ctx context.Context, user *accounts.User, id int64) (_ *Campaign, err error) {
	defer mon.Task()(&ctx)(&err)

	campaign, err := service.db.Get(ctx, id)
	if err != nil {
		if ErrNotFound.Has(err) {
			return nil, problems.CampaignNotFound(id)
		}
		return nil, Error.Wrap(err)
	}
	if err := service.auth.ValidateProjectAccess(user, campaign.ProjectID); err != nil {
		return nil, err
	}
	return campaign, nil
}

// UpdateParams are the mutable campaign attributes.
type UpdateParams struct {
	Name        *string
	Description *string
	Priority    *int
}

// Update changes name, description or priority.
func (service *Service) Update(ctx context.Context, user *accounts.User, id int64, params UpdateParams) (_ *Campaign, err error) {
	defer mon.Task()(&ctx)(&err)

	campaign, err := service.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		campaign.Name = *params.Name
	}
	if params.Description != nil {
		campaign.Description = *params.Description
	}
	if params.Priority != nil {
		campaign.Priority = *params.Priority
	}

	if err := service.db.Update(ctx, campaign); err != nil {
		return nil, Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.CampaignUpdated, map[string]any{
		"campaign_id": campaign.ID,
		"project_id":  campaign.ProjectID,
	})
	return campaign, nil
}

// Delete removes a campaign. Only draft, completed, archived and error
// campaigns may be deleted.
func (service *Service) Delete(ctx context.Context, user *accounts.User, id int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	campaign, err := service.Get(ctx, user, id)
	if err != nil {
		return err
	}

	deletable := false
	for _, state := range DeletableStates {
		if campaign.State == state {
			deletable = true
			break
		}
	}
	if !deletable {
		return problems.InvalidResourceState(fmt.Sprintf(
			"Cannot delete campaign in state '%s'. Only draft, completed, archived or error campaigns can be deleted.",
			campaign.State))
	}

	if err := service.db.Delete(ctx, id); err != nil {
		return Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.CampaignDeleted, map[string]any{
		"campaign_id": id,
		"project_id":  campaign.ProjectID,
	})
	return nil
}

// RunAction applies a lifecycle action (start, stop, pause, resume, archive,
// unarchive). Campaign lifecycle is idempotent: a campaign already in the
// action's target state is returned unchanged with no event.
func (service *Service) RunAction(ctx context.Context, user *accounts.User, id int64, action string) (_ *Campaign, err error) {
	defer mon.Task()(&ctx)(&err)

	campaign, err := service.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	if statemachine.Campaigns.ActionLeadsTo(action, campaign.State) {
		return campaign, nil
	}

	target, err := statemachine.Campaigns.ValidateAction(campaign.State, action)
	if err != nil {
		return nil, err
	}

	updated, err := service.db.UpdateState(ctx, id, target)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	service.log.Info("campaign lifecycle action",
		zap.Int64("id", id),
		zap.String("action", action),
		zap.String("state", string(target)))

	switch action {
	case "start", "resume":
		service.bus.Publish(ctx, events.CampaignStarted, map[string]any{
			"campaign_id": id,
			"project_id":  updated.ProjectID,
		})
	case "pause":
		service.bus.Publish(ctx, events.CampaignPaused, map[string]any{
			"campaign_id": id,
			"project_id":  updated.ProjectID,
		})
	default:
		service.bus.Publish(ctx, events.CampaignUpdated, map[string]any{
			"campaign_id": id,
			"project_id":  updated.ProjectID,
			"state":       string(target),
		})
	}
	return updated, nil
}

// MarkCompleted applies the system-driven active→completed transition. It is
// called when the last attack of a campaign finishes; there is no user action
// for this edge.
func (service *Service) MarkCompleted(ctx context.Context, id int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	campaign, err := service.db.Get(ctx, id)
	if err != nil {
		if ErrNotFound.Has(err) {
			return problems.CampaignNotFound(id)
		}
		return Error.Wrap(err)
	}
	if err := statemachine.Campaigns.ValidateTransition(campaign.State, StateCompleted, ""); err != nil {
		return err
	}
	if _, err := service.db.UpdateState(ctx, id, StateCompleted); err != nil {
		return Error.Wrap(err)
	}
	service.bus.Publish(ctx, events.CampaignCompleted, map[string]any{
		"campaign_id": id,
		"project_id":  campaign.ProjectID,
	})
	return nil
}

// Issue is a single validation error or warning.
type Issue struct {
	Type   string
	Detail string
}

// ValidationResult is the pre-flight readiness report of a campaign.
type ValidationResult struct {
	Valid    bool
	Errors   []Issue
	Warnings []Issue
}

// Validate reports whether the campaign is ready to start. Readiness issues
// are returned in the body; they never fail the request.
func (service *Service) Validate(ctx context.Context, user *accounts.User, id int64) (_ ValidationResult, err error) {
	defer mon.Task()(&ctx)(&err)

	campaign, err := service.Get(ctx, user, id)
	if err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{Errors: []Issue{}, Warnings: []Issue{}}

	hashList, err := service.hashLists.Get(ctx, campaign.HashListID)
	switch {
	case hashlists.ErrNotFound.Has(err):
		result.Errors = append(result.Errors, Issue{
			Type:   "missing_hash_list",
			Detail: fmt.Sprintf("Hash list %d does not exist", campaign.HashListID),
		})
	case err != nil:
		return ValidationResult{}, Error.Wrap(err)
	case hashList.IsUnavailable:
		result.Errors = append(result.Errors, Issue{
			Type:   "unavailable_hash_list",
			Detail: fmt.Sprintf("Hash list '%s' is unavailable", hashList.Name),
		})
	}

	attackCount, err := service.db.CountAttacks(ctx, id)
	if err != nil {
		return ValidationResult{}, Error.Wrap(err)
	}
	if attackCount == 0 {
		result.Errors = append(result.Errors, Issue{
			Type:   "no_attacks",
			Detail: "Campaign has no attacks configured",
		})
	}

	switch campaign.State {
	case StateArchived, StateError:
		result.Errors = append(result.Errors, Issue{
			Type:   "invalid_state",
			Detail: fmt.Sprintf("Campaign in state '%s' cannot be started", campaign.State),
		})
	case StateActive:
		result.Warnings = append(result.Warnings, Issue{
			Type:   "already_active",
			Detail: "Campaign is already active",
		})
	case StatePaused:
		result.Warnings = append(result.Warnings, Issue{
			Type:   "paused",
			Detail: "Campaign is paused and can be resumed",
		})
	}

	agents, err := service.db.ActiveAgentCount(ctx)
	if err != nil {
		return ValidationResult{}, Error.Wrap(err)
	}
	if agents == 0 {
		result.Warnings = append(result.Warnings, Issue{
			Type:   "no_agents",
			Detail: "No active agents are available to run tasks",
		})
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

// ReorderAttacks writes new attack positions atomically. Every attack in the
// order must belong to the campaign.
func (service *Service) ReorderAttacks(ctx context.Context, user *accounts.User, id int64, order []AttackPosition) (err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.Get(ctx, user, id); err != nil {
		return err
	}

	known, err := service.db.AttackIDs(ctx, id)
	if err != nil {
		return Error.Wrap(err)
	}
	belongs := make(map[int64]bool, len(known))
	for _, attackID := range known {
		belongs[attackID] = true
	}
	for _, position := range order {
		if !belongs[position.AttackID] {
			return problems.AttackNotFound(position.AttackID)
		}
	}

	if err := service.db.ReorderAttacks(ctx, id, order); err != nil {
		return Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.CampaignUpdated, map[string]any{
		"campaign_id": id,
		"reordered":   len(order),
	})
	return nil
}

// Progress returns the task execution summary of a campaign.
type Progress struct {
	ActiveAgents    int64
	TotalTasks      int64
	PendingTasks    int64
	RunningTasks    int64
	CompletedTasks  int64
	FailedTasks     int64
	PercentComplete float64
}

// Progress returns the campaign's task progress.
func (service *Service) Progress(ctx context.Context, user *accounts.User, id int64) (_ Progress, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.Get(ctx, user, id); err != nil {
		return Progress{}, err
	}
	stats, err := service.db.Progress(ctx, id)
	if err != nil {
		return Progress{}, Error.Wrap(err)
	}

	progress := Progress{
		ActiveAgents:   stats.ActiveAgents,
		TotalTasks:     stats.TotalTasks,
		PendingTasks:   stats.PendingTasks,
		RunningTasks:   stats.RunningTasks,
		CompletedTasks: stats.CompletedTasks,
		FailedTasks:    stats.FailedTasks,
	}
	if stats.TotalTasks > 0 {
		progress.PercentComplete = float64(stats.CompletedTasks) / float64(stats.TotalTasks) * 100
	}
	return progress, nil
}

// Metrics summarizes cracking results for a campaign.
type Metrics struct {
	TotalHashes     int64
	CrackedHashes   int64
	UncrackedHashes int64
	PercentCracked  float64
	ProgressPercent float64
}

// Metrics returns the campaign's cracking metrics.
func (service *Service) Metrics(ctx context.Context, user *accounts.User, id int64) (_ Metrics, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.Get(ctx, user, id); err != nil {
		return Metrics{}, err
	}

	counts, err := service.db.CrackCounts(ctx, id)
	if err != nil {
		return Metrics{}, Error.Wrap(err)
	}
	stats, err := service.db.Progress(ctx, id)
	if err != nil {
		return Metrics{}, Error.Wrap(err)
	}

	metrics := Metrics{
		TotalHashes:     counts.TotalHashes,
		CrackedHashes:   counts.CrackedHashes,
		UncrackedHashes: counts.TotalHashes - counts.CrackedHashes,
	}
	if counts.TotalHashes > 0 {
		metrics.PercentCracked = float64(counts.CrackedHashes) / float64(counts.TotalHashes) * 100
	}
	if stats.TotalTasks > 0 {
		metrics.ProgressPercent = float64(stats.CompletedTasks) / float64(stats.TotalTasks) * 100
	}
	return metrics, nil
}
