// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package attacks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/control/problems"
	"ouroboros.dev/ouroboros/control/resources"
	"ouroboros.dev/ouroboros/control/statemachine"
)

var (
	// Error is the attacks service error class.
	Error = errs.Class("attacks service")

	mon = monkit.Package()
)

// Service implements attack operations, scoped through the owning campaign's
// project.
type Service struct {
	log       *zap.Logger
	db        DB
	campaigns campaigns.DB
	resources resources.DB
	auth      *accounts.Service
	bus       *events.Bus
}

// NewService creates an attacks service.
func NewService(log *zap.Logger, db DB, campaignsDB campaigns.DB, resourcesDB resources.DB, auth *accounts.Service, bus *events.Bus) *Service {
	return &Service{
		log:       log,
		db:        db,
		campaigns: campaignsDB,
		resources: resourcesDB,
		auth:      auth,
		bus:       bus,
	}
}

func (service *Service) campaignAccess(ctx context.Context, user *accounts.User, campaignID int64) (*campaigns.Campaign, error) {
	campaign, err := service.campaigns.Get(ctx, campaignID)
	if err != nil {
		if campaigns.ErrNotFound.Has(err) {
			return nil, problems.CampaignNotFound(campaignID)
		}
		return nil, Error.Wrap(err)
	}
	if err := service.auth.ValidateProjectAccess(user, campaign.ProjectID); err != nil {
		return nil, err
	}
	return campaign, nil
}

// List returns attacks visible to the user, ordered by (position, id).
func (service *Service) List(ctx context.Context, user *accounts.User, opts ListOptions) (_ []Attack, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	accessible := service.auth.AccessibleProjects(user)
	if len(accessible) == 0 {
		return nil, 0, problems.ProjectAccessDenied("User has no project memberships")
	}
	if opts.CampaignID != nil {
		if _, err := service.campaignAccess(ctx, user, *opts.CampaignID); err != nil {
			return nil, 0, err
		}
	}
	opts.ProjectIDs = accessible

	attacks, total, err := service.db.List(ctx, opts)
	return attacks, total, Error.Wrap(err)
}

// CreateParams are the attributes of a new attack.
type CreateParams struct {
	CampaignID int64
	Name       string
	Mode       Mode
	Mask       string
	WordListID *uuid.UUID
	RuleListID *uuid.UUID
	MaskListID *uuid.UUID
	LeftRule   string
	Position   *int
}

// Create adds an attack to a campaign in pending state. Position defaults to
// the end of the campaign's attack order.
func (service *Service) Create(ctx context.Context, user *accounts.User, params CreateParams) (_ *Attack, err error) {
	defer mon.Task()(&ctx)(&err)

	campaign, err := service.campaignAccess(ctx, user, params.CampaignID)
	if err != nil {
		return nil, err
	}
	if err := service.checkConfig(params.Mode, params.Mask, params.WordListID); err != nil {
		return nil, err
	}
	if err := service.checkResourceRefs(ctx, params.WordListID, params.RuleListID, params.MaskListID); err != nil {
		return nil, err
	}

	position := 0
	if params.Position != nil {
		position = *params.Position
	} else {
		max, err := service.db.MaxPosition(ctx, params.CampaignID)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		position = max + 1
	}

	attack, err := service.db.Insert(ctx, &Attack{
		CampaignID: params.CampaignID,
		Name:       params.Name,
		Mode:       params.Mode,
		Position:   position,
		State:      StatePending,
		Mask:       params.Mask,
		WordListID: params.WordListID,
		RuleListID: params.RuleListID,
		MaskListID: params.MaskListID,
		LeftRule:   params.LeftRule,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.AttackCreated, map[string]any{
		"attack_id":   attack.ID,
		"campaign_id": attack.CampaignID,
		"project_id":  campaign.ProjectID,
	})
	return attack, nil
}

func (service *Service) checkConfig(mode Mode, mask string, wordList *uuid.UUID) error {
	switch mode {
	case ModeDictionary:
		if wordList == nil {
			return problems.InvalidAttackConfig("Dictionary attacks require a word list")
		}
	case ModeMask:
		if mask == "" {
			return problems.InvalidAttackConfig("Mask attacks require a mask")
		}
	case ModeHybridDictMask, ModeHybridMaskDict:
		if wordList == nil || mask == "" {
			return problems.InvalidAttackConfig("Hybrid attacks require both a word list and a mask")
		}
	default:
		return problems.InvalidAttackConfig(fmt.Sprintf("Unknown attack mode '%s'", mode))
	}
	return nil
}

func (service *Service) checkResourceRefs(ctx context.Context, ids ...*uuid.UUID) error {
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, err := service.resources.Get(ctx, *id); err != nil {
			if resources.ErrNotFound.Has(err) {
				return problems.ResourceNotFound(*id)
			}
			return Error.Wrap(err)
		}
	}
	return nil
}

// Get returns an attack the user can access.
func (service *Service) Get(ctx context.Context, user *accounts.User, id int64) (_ *Attack, err error) {
	defer mon.Task()(&ctx)(&err)

	attack, err := service.db.Get(ctx, id)
	if err != nil {
		if ErrNotFound.Has(err) {
			return nil, problems.AttackNotFound(id)
		}
		return nil, Error.Wrap(err)
	}
	if _, err := service.campaignAccess(ctx, user, attack.CampaignID); err != nil {
		return nil, err
	}
	return attack, nil
}

// UpdateParams are the mutable attack attributes.
type UpdateParams struct {
	Name       *string
	Mask       *string
	WordListID *uuid.UUID
	RuleListID *uuid.UUID
	MaskListID *uuid.UUID
	LeftRule   *string
}

// Update changes an attack's configuration. Running attacks must be stopped
// first.
func (service *Service) Update(ctx context.Context, user *accounts.User, id int64, params UpdateParams) (_ *Attack, err error) {
	defer mon.Task()(&ctx)(&err)

	attack, err := service.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if attack.State == StateRunning {
		return nil, problems.InvalidResourceState(
			"Cannot update attack while it is running. Stop the attack first.")
	}

	if params.Name != nil {
		attack.Name = *params.Name
	}
	if params.Mask != nil {
		attack.Mask = *params.Mask
	}
	if params.WordListID != nil {
		attack.WordListID = params.WordListID
	}
	if params.RuleListID != nil {
		attack.RuleListID = params.RuleListID
	}
	if params.MaskListID != nil {
		attack.MaskListID = params.MaskListID
	}
	if params.LeftRule != nil {
		attack.LeftRule = *params.LeftRule
	}
	if err := service.checkResourceRefs(ctx, attack.WordListID, attack.RuleListID, attack.MaskListID); err != nil {
		return nil, err
	}

	if err := service.db.Update(ctx, attack); err != nil {
		return nil, Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.AttackUpdated, map[string]any{
		"attack_id":   attack.ID,
		"campaign_id": attack.CampaignID,
	})
	return attack, nil
}

// Delete removes an attack. Running attacks must be stopped first.
func (service *Service) Delete(ctx context.Context, user *accounts.User, id int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	attack, err := service.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if attack.State == StateRunning {
		return problems.InvalidResourceState(
			"Cannot delete attack while it is running. Stop the attack first.")
	}

	if err := service.db.Delete(ctx, id); err != nil {
		return Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.AttackDeleted, map[string]any{
		"attack_id":   id,
		"campaign_id": attack.CampaignID,
	})
	return nil
}

// RunAction applies a lifecycle action. The attack lifecycle is strict:
// already-in-target transitions fail with a conflict.
func (service *Service) RunAction(ctx context.Context, user *accounts.User, id int64, action string) (_ *Attack, err error) {
	defer mon.Task()(&ctx)(&err)

	attack, err := service.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	// start requires the attack's resources to be uploaded
	if action == "start" {
		if err := service.checkResourcesUploaded(ctx, attack); err != nil {
			return nil, err
		}
	}

	target, err := statemachine.Attacks.ValidateAction(attack.State, action)
	if err != nil {
		return nil, err
	}

	updated, err := service.db.UpdateState(ctx, id, target)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	service.log.Info("attack lifecycle action",
		zap.Int64("id", id),
		zap.String("action", action),
		zap.String("state", string(target)))

	switch action {
	case "start", "resume":
		service.bus.Publish(ctx, events.AttackStarted, map[string]any{
			"attack_id":   id,
			"campaign_id": updated.CampaignID,
		})
	default:
		service.bus.Publish(ctx, events.AttackUpdated, map[string]any{
			"attack_id":   id,
			"campaign_id": updated.CampaignID,
			"state":       string(target),
		})
	}
	return updated, nil
}

func (service *Service) checkResourcesUploaded(ctx context.Context, attack *Attack) error {
	for _, ref := range []struct {
		kind string
		id   *uuid.UUID
	}{
		{"Wordlist", attack.WordListID},
		{"Rule list", attack.RuleListID},
		{"Mask list", attack.MaskListID},
	} {
		if ref.id == nil {
			continue
		}
		resource, err := service.resources.Get(ctx, *ref.id)
		if err != nil {
			if resources.ErrNotFound.Has(err) {
				return problems.ResourceNotFound(*ref.id)
			}
			return Error.Wrap(err)
		}
		if !resource.IsUploaded && !resource.Type.Ephemeral() {
			return problems.InvalidResourceState(fmt.Sprintf(
				"%s '%s' is not yet uploaded", ref.kind, resource.FileName))
		}
	}
	return nil
}

// MarkCompleted applies the system-driven running→completed transition.
func (service *Service) MarkCompleted(ctx context.Context, id int64) (err error) {
	defer mon.Task()(&ctx)(&err)
	return service.systemTransition(ctx, id, StateCompleted, events.AttackCompleted)
}

// MarkFailed applies the system-driven running→failed transition.
func (service *Service) MarkFailed(ctx context.Context, id int64) (err error) {
	defer mon.Task()(&ctx)(&err)
	return service.systemTransition(ctx, id, StateFailed, events.AttackUpdated)
}

func (service *Service) systemTransition(ctx context.Context, id int64, target State, topic string) error {
	attack, err := service.db.Get(ctx, id)
	if err != nil {
		if ErrNotFound.Has(err) {
			return problems.AttackNotFound(id)
		}
		return Error.Wrap(err)
	}
	if err := statemachine.Attacks.ValidateTransition(attack.State, target, ""); err != nil {
		return err
	}
	if _, err := service.db.UpdateState(ctx, id, target); err != nil {
		return Error.Wrap(err)
	}
	service.bus.Publish(ctx, topic, map[string]any{
		"attack_id":   id,
		"campaign_id": attack.CampaignID,
		"state":       string(target),
	})
	return nil
}

// ResourceAvailability classifies one referenced resource.
type ResourceAvailability struct {
	ResourceID uuid.UUID
	Status     string // available, not_found, unavailable
	Name       string
}

// ValidationResult is the outcome of attack pre-flight validation.
type ValidationResult struct {
	Valid                bool
	Errors               []string
	Warnings             []string
	ResourceAvailability []ResourceAvailability
}

// ValidateParams are the attack configuration under validation.
type ValidateParams struct {
	CampaignID int64
	Mode       Mode
	Mask       string
	WordListID *uuid.UUID
	RuleListID *uuid.UUID
	MaskListID *uuid.UUID
}

// Validate classifies the referenced resources of an attack configuration.
// Missing resources are errors; present but not yet uploaded resources are
// warnings. The request itself never fails over readiness.
func (service *Service) Validate(ctx context.Context, user *accounts.User, params ValidateParams) (_ ValidationResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.campaignAccess(ctx, user, params.CampaignID); err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{
		Errors:               []string{},
		Warnings:             []string{},
		ResourceAvailability: []ResourceAvailability{},
	}

	for _, ref := range []struct {
		kind string
		id   *uuid.UUID
	}{
		{"Wordlist", params.WordListID},
		{"Rule list", params.RuleListID},
		{"Mask list", params.MaskListID},
	} {
		if ref.id == nil {
			continue
		}
		availability := ResourceAvailability{ResourceID: *ref.id}

		resource, err := service.resources.Get(ctx, *ref.id)
		switch {
		case resources.ErrNotFound.Has(err):
			availability.Status = "not_found"
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s %s not found", ref.kind, ref.id))
		case err != nil:
			return ValidationResult{}, Error.Wrap(err)
		case !resource.IsUploaded && !resource.Type.Ephemeral():
			availability.Status = "unavailable"
			availability.Name = resource.FileName
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s '%s' is not yet uploaded", ref.kind, resource.FileName))
		default:
			availability.Status = "available"
			availability.Name = resource.FileName
		}
		result.ResourceAvailability = append(result.ResourceAvailability, availability)
	}

	if err := service.checkConfig(params.Mode, params.Mask, params.WordListID); err != nil {
		if problem, ok := problems.Is(err); ok {
			result.Errors = append(result.Errors, problem.Detail)
		} else {
			return ValidationResult{}, err
		}
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

// EstimateParamsRequest is an estimate request with resource references to
// resolve.
type EstimateParamsRequest struct {
	Mode           Mode
	Mask           string
	CustomCharsets []string
	WordListID     *uuid.UUID
	RuleListID     *uuid.UUID
}

// Estimate resolves resource line counts and computes the keyspace estimate.
func (service *Service) Estimate(ctx context.Context, user *accounts.User, params EstimateParamsRequest) (_ Estimate, err error) {
	defer mon.Task()(&ctx)(&err)

	pure := EstimateParams{
		Mode:           params.Mode,
		Mask:           params.Mask,
		CustomCharsets: params.CustomCharsets,
	}
	if params.WordListID != nil {
		resource, err := service.resources.Get(ctx, *params.WordListID)
		if err != nil {
			if resources.ErrNotFound.Has(err) {
				return Estimate{}, problems.ResourceNotFound(*params.WordListID)
			}
			return Estimate{}, Error.Wrap(err)
		}
		pure.WordListLines = resource.LineCount
	}
	if params.RuleListID != nil {
		resource, err := service.resources.Get(ctx, *params.RuleListID)
		if err != nil {
			if resources.ErrNotFound.Has(err) {
				return Estimate{}, problems.ResourceNotFound(*params.RuleListID)
			}
			return Estimate{}, Error.Wrap(err)
		}
		pure.RuleListLines = resource.LineCount
	}

	return EstimateKeyspace(pure)
}

// Metrics returns the attack's performance summary.
func (service *Service) Metrics(ctx context.Context, user *accounts.User, id int64) (_ Metrics, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.Get(ctx, user, id); err != nil {
		return Metrics{}, err
	}
	metrics, err := service.db.Metrics(ctx, id)
	return metrics, Error.Wrap(err)
}
