// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package agents

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/problems"
)

var (
	// Error is the agents service error class.
	Error = errs.Class("agents service")

	mon = monkit.Package()
)

// presignedProbeTimeout bounds the HEAD request of TestPresigned.
const presignedProbeTimeout = 5 * time.Second

// Service implements agent administration.
type Service struct {
	log    *zap.Logger
	db     DB
	auth   *accounts.Service
	client *http.Client
}

// NewService creates an agents service.
func NewService(log *zap.Logger, db DB, auth *accounts.Service) *Service {
	return &Service{
		log:    log,
		db:     db,
		auth:   auth,
		client: &http.Client{Timeout: presignedProbeTimeout},
	}
}

// List returns agents visible to the user: agents associated with at least
// one accessible project. Superusers see every agent.
func (service *Service) List(ctx context.Context, user *accounts.User, opts ListOptions) (_ []Agent, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if user.IsSuperuser {
		opts.All = true
	} else {
		opts.ProjectIDs = service.auth.AccessibleProjects(user)
		if len(opts.ProjectIDs) == 0 {
			return []Agent{}, 0, nil
		}
	}

	agents, total, err := service.db.List(ctx, opts)
	return agents, total, Error.Wrap(err)
}

// Get returns an agent visible to the user.
func (service *Service) Get(ctx context.Context, user *accounts.User, id int64) (_ *Agent, err error) {
	defer mon.Task()(&ctx)(&err)

	agent, err := service.db.Get(ctx, id)
	if err != nil {
		if ErrNotFound.Has(err) {
			return nil, problems.AgentNotFound(id)
		}
		return nil, Error.Wrap(err)
	}
	if !user.IsSuperuser && !service.visible(user, agent) {
		return nil, problems.AgentNotFound(id)
	}
	return agent, nil
}

func (service *Service) visible(user *accounts.User, agent *Agent) bool {
	accessible := map[int64]bool{}
	for _, membership := range user.Memberships {
		accessible[membership.ProjectID] = true
	}
	for _, projectID := range agent.ProjectIDs {
		if accessible[projectID] {
			return true
		}
	}
	return false
}

// Toggle flips the agent's enabled flag.
func (service *Service) Toggle(ctx context.Context, user *accounts.User, id int64) (_ *Agent, err error) {
	defer mon.Task()(&ctx)(&err)

	agent, err := service.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	agent.Enabled = !agent.Enabled
	if err := service.db.Update(ctx, agent); err != nil {
		return nil, Error.Wrap(err)
	}
	service.log.Info("agent toggled",
		zap.Int64("id", id), zap.Bool("enabled", agent.Enabled))
	return agent, nil
}

// ConfigParams are the agent settings operators may change.
type ConfigParams struct {
	UpdateInterval   *int
	UseNativeHashcat *bool
	BackendDevices   *string
}

// UpdateConfig changes the agent's operational settings.
func (service *Service) UpdateConfig(ctx context.Context, user *accounts.User, id int64, params ConfigParams) (_ *Agent, err error) {
	defer mon.Task()(&ctx)(&err)

	agent, err := service.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if params.UpdateInterval != nil {
		agent.UpdateInterval = *params.UpdateInterval
	}
	if params.UseNativeHashcat != nil {
		agent.UseNativeHashcat = *params.UseNativeHashcat
	}
	if params.BackendDevices != nil {
		agent.BackendDevices = *params.BackendDevices
	}
	if err := service.db.Update(ctx, agent); err != nil {
		return nil, Error.Wrap(err)
	}
	return agent, nil
}

// Benchmarks returns the agent's benchmark speeds keyed by stringified hash
// type ID.
func (service *Service) Benchmarks(ctx context.Context, user *accounts.User, id int64) (_ map[string]float64, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.Get(ctx, user, id); err != nil {
		return nil, err
	}
	benchmarks, err := service.db.Benchmarks(ctx, id)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	speeds := map[string]float64{}
	for _, benchmark := range benchmarks {
		key := strconv.Itoa(benchmark.HashTypeID)
		speeds[key] += benchmark.HashSpeed
	}
	return speeds, nil
}

// Capabilities returns the devices the agent advertises.
func (service *Service) Capabilities(ctx context.Context, user *accounts.User, id int64) (_ []Capability, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.Get(ctx, user, id); err != nil {
		return nil, err
	}
	capabilities, err := service.db.Capabilities(ctx, id)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if capabilities == nil {
		capabilities = []Capability{}
	}
	return capabilities, nil
}

// Errors returns the agent's error log, newest first.
func (service *Service) Errors(ctx context.Context, user *accounts.User, id int64, limit, offset int) (_ []ErrorEntry, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.Get(ctx, user, id); err != nil {
		return nil, 0, err
	}
	entries, total, err := service.db.Errors(ctx, id, limit, offset)
	return entries, total, Error.Wrap(err)
}

// ProbeResult is the outcome of a presigned URL probe.
type ProbeResult struct {
	Valid   bool
	Message string
}

// TestPresigned checks whether a presigned URL an agent complained about is
// reachable, with a short HEAD probe.
func (service *Service) TestPresigned(ctx context.Context, user *accounts.User, id int64, url string) (_ ProbeResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.Get(ctx, user, id); err != nil {
		return ProbeResult{}, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return ProbeResult{Valid: false, Message: fmt.Sprintf("invalid url: %v", err)}, nil
	}
	response, err := service.client.Do(request)
	if err != nil {
		return ProbeResult{Valid: false, Message: fmt.Sprintf("probe failed: %v", err)}, nil
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode >= 400 {
		return ProbeResult{
			Valid:   false,
			Message: fmt.Sprintf("url responded with status %d", response.StatusCode),
		}, nil
	}
	return ProbeResult{Valid: true, Message: "url is reachable"}, nil
}
