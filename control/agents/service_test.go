// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package agents_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/agents"
	"ouroboros.dev/ouroboros/control/controltest"
	"ouroboros.dev/ouroboros/control/problems"
	"ouroboros.dev/ouroboros/internal/testcontext"
)

func newService(t *testing.T) (*agents.Service, *controltest.DB, *accounts.User, *accounts.Project) {
	log := zaptest.NewLogger(t)
	db := controltest.New()
	auth := accounts.NewService(log.Named("accounts"), db.Accounts())

	project := db.AddProject("cracking")
	user := db.AddUser("operator@example.test", "ouro_testkey", false, project.ID)

	service := agents.NewService(log.Named("agents"), db.Agents(), auth)
	return service, db, user, project
}

func TestListVisibility(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	mine := db.AddAgent(agents.Agent{
		HostName:   "rig-1",
		Enabled:    true,
		State:      "active",
		ProjectIDs: []int64{project.ID},
	})
	db.AddAgent(agents.Agent{
		HostName:   "rig-2",
		Enabled:    true,
		State:      "active",
		ProjectIDs: []int64{project.ID + 100},
	})

	list, total, err := service.List(ctx, user, agents.ListOptions{Limit: 20})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, mine.ID, list[0].ID)

	// superusers see every agent
	admin := db.AddUser("admin@example.test", "ouro_adminkey", true)
	_, total, err = service.List(ctx, admin, agents.ListOptions{Limit: 20})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
}

func TestGetHidesForeignAgents(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	foreign := db.AddAgent(agents.Agent{
		HostName:   "rig-2",
		State:      "active",
		ProjectIDs: []int64{project.ID + 100},
	})

	// foreign agents are indistinguishable from missing ones
	_, err := service.Get(ctx, user, foreign.ID)
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 404, problem.Status)
}

func TestToggle(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	agent := db.AddAgent(agents.Agent{
		HostName:   "rig-1",
		Enabled:    true,
		State:      "active",
		ProjectIDs: []int64{project.ID},
	})

	toggled, err := service.Toggle(ctx, user, agent.ID)
	require.NoError(t, err)
	require.False(t, toggled.Enabled)

	toggled, err = service.Toggle(ctx, user, agent.ID)
	require.NoError(t, err)
	require.True(t, toggled.Enabled)
}

func TestUpdateConfig(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	agent := db.AddAgent(agents.Agent{
		HostName:   "rig-1",
		State:      "active",
		ProjectIDs: []int64{project.ID},
	})

	interval := 30
	native := true
	devices := "1,3"
	updated, err := service.UpdateConfig(ctx, user, agent.ID, agents.ConfigParams{
		UpdateInterval:   &interval,
		UseNativeHashcat: &native,
		BackendDevices:   &devices,
	})
	require.NoError(t, err)
	require.Equal(t, 30, updated.UpdateInterval)
	require.True(t, updated.UseNativeHashcat)
	require.Equal(t, "1,3", updated.BackendDevices)
}

func TestBenchmarksAggregated(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	agent := db.AddAgent(agents.Agent{
		HostName:   "rig-1",
		State:      "active",
		ProjectIDs: []int64{project.ID},
	})
	db.AddBenchmark(agent.ID, agents.Benchmark{HashTypeID: 0, HashSpeed: 1000, Device: "gpu0"})
	db.AddBenchmark(agent.ID, agents.Benchmark{HashTypeID: 0, HashSpeed: 500, Device: "gpu1"})
	db.AddBenchmark(agent.ID, agents.Benchmark{HashTypeID: 1000, HashSpeed: 250, Device: "gpu0"})

	speeds, err := service.Benchmarks(ctx, user, agent.ID)
	require.NoError(t, err)

	// speeds are summed across devices per hash type
	require.Equal(t, map[string]float64{"0": 1500, "1000": 250}, speeds)
}

func TestErrorsPaged(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	agent := db.AddAgent(agents.Agent{
		HostName:   "rig-1",
		State:      "active",
		ProjectIDs: []int64{project.ID},
	})
	for i := 0; i < 5; i++ {
		db.AddAgentError(agent.ID, agents.ErrorEntry{
			Message:  "device lost",
			Severity: "fatal",
		})
	}

	entries, total, err := service.Errors(ctx, user, agent.ID, 2, 0)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, entries, 2)
}
