// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package problems_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"

	"ouroboros.dev/ouroboros/control/problems"
	"ouroboros.dev/ouroboros/internal/testrand"
)

func TestNotFoundConstructors(t *testing.T) {
	tests := []struct {
		problem *problems.Problem
		tag     string
		title   string
	}{
		{problems.CampaignNotFound(7), "campaign-not-found", "Campaign Not Found"},
		{problems.AttackNotFound(7), "attack-not-found", "Attack Not Found"},
		{problems.AgentNotFound(7), "agent-not-found", "Agent Not Found"},
		{problems.HashListNotFound(7), "hash-list-not-found", "Hash List Not Found"},
		{problems.HashItemNotFound(7), "hash-item-not-found", "Hash Item Not Found"},
		{problems.ResourceNotFound(testrand.UUID()), "resource-not-found", "Resource Not Found"},
		{problems.TaskNotFound(7), "task-not-found", "Task Not Found"},
		{problems.ProjectNotFound(7), "project-not-found", "Project Not Found"},
		{problems.UserNotFound("User 7 not found"), "user-not-found", "User Not Found"},
	}
	for _, tt := range tests {
		require.Equal(t, http.StatusNotFound, tt.problem.Status)
		require.Equal(t, tt.tag, tt.problem.Type)
		require.Equal(t, tt.title, tt.problem.Title)
		require.NotEmpty(t, tt.problem.Detail)
	}
}

func TestStatusMapping(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, problems.InvalidAttackConfig("x").Status)
	require.Equal(t, http.StatusBadRequest, problems.InvalidHashFormat("x").Status)
	require.Equal(t, http.StatusBadRequest, problems.InvalidResourceFormat("x").Status)
	require.Equal(t, http.StatusBadRequest, problems.InvalidResourceState("x").Status)
	require.Equal(t, http.StatusForbidden, problems.InsufficientPermissions("x").Status)
	require.Equal(t, http.StatusForbidden, problems.ProjectAccessDenied("x").Status)
	require.Equal(t, http.StatusConflict, problems.UserConflict("x").Status)
	require.Equal(t, "User Already Exists", problems.UserConflict("x").Title)
	require.Equal(t, http.StatusInternalServerError, problems.Internal("x").Status)
	require.Equal(t, "Internal Server Error", problems.Internal("x").Title)
}

func TestStateTransition(t *testing.T) {
	p := problems.StateTransition("campaign", "start", "archived", "active", []string{"draft"})

	require.Equal(t, "invalid-state-transition", p.Type)
	require.Equal(t, "Invalid State Transition", p.Title)
	require.Equal(t, http.StatusConflict, p.Status)
	require.Equal(t,
		"Cannot perform action 'start' on campaign: transition from 'archived' to 'active' is not allowed.",
		p.Detail)

	require.Equal(t, "archived", p.Extensions["current_state"])
	require.Equal(t, "active", p.Extensions["attempted_state"])
	require.Equal(t, "start", p.Extensions["action"])
	require.Equal(t, "campaign", p.Extensions["entity_type"])
	require.Equal(t, []string{"draft"}, p.Extensions["valid_transitions"])
}

func TestStateTransitionWithoutAction(t *testing.T) {
	p := problems.StateTransition("attack", "", "completed", "running", nil)

	require.Equal(t, "Invalid attack state transition from 'completed' to 'running'.", p.Detail)
	require.Nil(t, p.Extensions["action"])
	require.Equal(t, []string{}, p.Extensions["valid_transitions"])
}

func TestIs(t *testing.T) {
	problem := problems.CampaignNotFound(3)
	wrapped := errs.Wrap(problem)

	found, ok := problems.Is(wrapped)
	require.True(t, ok)
	require.Equal(t, problem, found)

	_, ok = problems.Is(errs.New("plain"))
	require.False(t, ok)
}
