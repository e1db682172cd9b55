// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package tasks_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/agents"
	"ouroboros.dev/ouroboros/control/attacks"
	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/controltest"
	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/control/hashlists"
	"ouroboros.dev/ouroboros/control/problems"
	"ouroboros.dev/ouroboros/control/tasks"
	"ouroboros.dev/ouroboros/internal/testcontext"
)

func newService(t *testing.T) (*tasks.Service, *controltest.DB, *accounts.User, int64) {
	log := zaptest.NewLogger(t)
	db := controltest.New()
	auth := accounts.NewService(log.Named("accounts"), db.Accounts())
	bus := events.NewBus(log.Named("events"))

	project := db.AddProject("cracking")
	user := db.AddUser("operator@example.test", "ouro_testkey", false, project.ID)

	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	list, err := db.HashLists().Insert(ctx, &hashlists.HashList{ProjectID: &project.ID, Name: "dump", HashTypeID: 0})
	require.NoError(t, err)
	campaign, err := db.Campaigns().Insert(ctx, &campaigns.Campaign{
		ProjectID:  project.ID,
		HashListID: list.ID,
		Name:       "audit",
		State:      campaigns.StateActive,
	})
	require.NoError(t, err)
	attack, err := db.Attacks().Insert(ctx, &attacks.Attack{
		CampaignID: campaign.ID,
		Name:       "mask sweep",
		Mode:       attacks.ModeMask,
		Mask:       "?d?d?d?d",
		State:      attacks.StateRunning,
	})
	require.NoError(t, err)

	service := tasks.NewService(log.Named("tasks"), db.Tasks(), auth, bus)
	return service, db, user, attack.ID
}

func TestRequeue(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, attackID := newService(t)

	agent := db.AddAgent(agents.Agent{HostName: "rig-1", Enabled: true, State: "active"})
	failed := db.AddTask(tasks.Task{
		AttackID: attackID,
		AgentID:  &agent.ID,
		Status:   tasks.StatusFailed,
		Progress: 42.5,
	})

	requeued, err := service.Requeue(ctx, user, failed.ID)
	require.NoError(t, err)
	require.Equal(t, tasks.StatusPending, requeued.Status)
	require.Nil(t, requeued.AgentID)
	require.Zero(t, requeued.Progress)

	// running tasks cannot be requeued
	running := db.AddTask(tasks.Task{AttackID: attackID, Status: tasks.StatusRunning})
	_, err = service.Requeue(ctx, user, running.ID)
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 400, problem.Status)
}

func TestCancel(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, attackID := newService(t)

	running := db.AddTask(tasks.Task{AttackID: attackID, Status: tasks.StatusRunning})
	canceled, err := service.Cancel(ctx, user, running.ID)
	require.NoError(t, err)
	require.Equal(t, tasks.StatusAbandoned, canceled.Status)

	// completed tasks cannot be canceled
	done := db.AddTask(tasks.Task{AttackID: attackID, Status: tasks.StatusCompleted})
	_, err = service.Cancel(ctx, user, done.ID)
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 400, problem.Status)
}

func TestGetScopedToProject(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, _, attackID := newService(t)

	task := db.AddTask(tasks.Task{AttackID: attackID, Status: tasks.StatusPending})

	outsider := db.AddUser("outsider@example.test", "ouro_otherkey", false)
	_, err := service.Get(ctx, outsider, task.ID)
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 403, problem.Status)

	_, err = service.Get(ctx, outsider, 99999)
	require.Error(t, err)
	problem, ok = problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 404, problem.Status)
}

func TestListIgnoresInvalidStatus(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, attackID := newService(t)

	db.AddTask(tasks.Task{AttackID: attackID, Status: tasks.StatusPending})
	db.AddTask(tasks.Task{AttackID: attackID, Status: tasks.StatusRunning})

	bogus := tasks.Status("bogus")
	list, total, err := service.List(ctx, user, tasks.ListOptions{Status: &bogus, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, list, 2)
}

func TestLogs(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, attackID := newService(t)

	task := db.AddTask(tasks.Task{AttackID: attackID, Status: tasks.StatusRunning})
	db.AddStatusUpdate(tasks.StatusUpdate{
		TaskID:      task.ID,
		Status:      tasks.StatusRunning,
		SessionName: "session-1",
		Progress:    10,
	})

	logs, err := service.Logs(ctx, user, task.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Contains(t, logs[0], "session-1")
}
