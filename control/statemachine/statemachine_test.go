// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package statemachine_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"ouroboros.dev/ouroboros/control/problems"
	"ouroboros.dev/ouroboros/control/statemachine"
)

func TestCampaignTransitions(t *testing.T) {
	m := statemachine.Campaigns

	allowed := []struct{ from, to statemachine.State }{
		{"draft", "active"}, {"draft", "archived"},
		{"active", "paused"}, {"active", "draft"}, {"active", "archived"}, {"active", "completed"},
		{"paused", "active"}, {"paused", "archived"},
		{"completed", "archived"},
		{"archived", "draft"},
		{"error", "draft"},
	}
	for _, tt := range allowed {
		require.True(t, m.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
		require.NoError(t, m.ValidateTransition(tt.from, tt.to, ""))
	}

	denied := []struct{ from, to statemachine.State }{
		{"draft", "paused"}, {"draft", "completed"},
		{"completed", "active"}, {"completed", "draft"},
		{"archived", "active"}, {"archived", "archived"},
		{"error", "active"},
	}
	for _, tt := range denied {
		require.False(t, m.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
		require.Error(t, m.ValidateTransition(tt.from, tt.to, ""))
	}
}

func TestCampaignActions(t *testing.T) {
	m := statemachine.Campaigns

	tests := []struct {
		action string
		from   statemachine.State
		to     statemachine.State
	}{
		{"start", "draft", "active"},
		{"stop", "active", "draft"},
		{"pause", "active", "paused"},
		{"resume", "paused", "active"},
		{"archive", "draft", "archived"},
		{"archive", "active", "archived"},
		{"archive", "paused", "archived"},
		{"archive", "completed", "archived"},
		{"unarchive", "archived", "draft"},
		{"reset", "error", "draft"},
	}
	for _, tt := range tests {
		to, err := m.ValidateAction(tt.from, tt.action)
		require.NoError(t, err, "%s from %s", tt.action, tt.from)
		require.Equal(t, tt.to, to)
		require.True(t, m.CanTransition(tt.from, to))
	}
}

func TestCampaignActionDiagnostics(t *testing.T) {
	m := statemachine.Campaigns

	// starting an archived campaign reports the action's target and the
	// states actually reachable from archived
	_, err := m.ValidateAction("archived", "start")
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, "invalid-state-transition", problem.Type)
	require.Equal(t, "Invalid State Transition", problem.Title)
	require.Equal(t, http.StatusConflict, problem.Status)
	require.Equal(t,
		"Cannot perform action 'start' on campaign: transition from 'archived' to 'active' is not allowed.",
		problem.Detail)
	require.Equal(t, "archived", problem.Extensions["current_state"])
	require.Equal(t, "active", problem.Extensions["attempted_state"])
	require.Equal(t, "start", problem.Extensions["action"])
	require.Equal(t, "campaign", problem.Extensions["entity_type"])
	require.Equal(t, []string{"draft"}, problem.Extensions["valid_transitions"])

	// unknown actions report the current state as the attempted state
	_, err = m.ValidateAction("draft", "detonate")
	problem, ok = problems.Is(err)
	require.True(t, ok)
	require.Equal(t, "detonate", problem.Extensions["action"])
	require.Equal(t, "draft", problem.Extensions["attempted_state"])
}

func TestAttackTransitions(t *testing.T) {
	m := statemachine.Attacks

	require.True(t, m.CanTransition("pending", "running"))
	require.True(t, m.CanTransition("pending", "abandoned"))
	require.True(t, m.CanTransition("running", "paused"))
	require.True(t, m.CanTransition("running", "completed"))
	require.True(t, m.CanTransition("running", "failed"))
	require.True(t, m.CanTransition("running", "abandoned"))
	require.True(t, m.CanTransition("paused", "running"))
	require.True(t, m.CanTransition("failed", "pending"))
	require.True(t, m.CanTransition("abandoned", "pending"))

	require.False(t, m.CanTransition("completed", "running"))
	require.False(t, m.CanTransition("completed", "pending"))
	require.False(t, m.CanTransition("pending", "completed"))
	require.False(t, m.CanTransition("running", "running"))
}

func TestAttackActions(t *testing.T) {
	m := statemachine.Attacks

	tests := []struct {
		action string
		from   statemachine.State
		to     statemachine.State
	}{
		{"start", "pending", "running"},
		{"pause", "running", "paused"},
		{"resume", "paused", "running"},
		{"retry", "failed", "pending"},
		{"abandon", "pending", "abandoned"},
		{"abort", "running", "abandoned"},
		{"abort", "paused", "abandoned"},
		{"reactivate", "abandoned", "pending"},
	}
	for _, tt := range tests {
		to, err := m.ValidateAction(tt.from, tt.action)
		require.NoError(t, err, "%s from %s", tt.action, tt.from)
		require.Equal(t, tt.to, to)
	}

	// no-op transitions are strict for attacks
	_, err := m.ValidateAction("running", "start")
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, problem.Status)
	require.Equal(t, "attack", problem.Extensions["entity_type"])
}

func TestAttackTerminality(t *testing.T) {
	m := statemachine.Attacks

	states := []statemachine.State{"pending", "running", "paused", "completed", "failed", "abandoned"}
	for _, s := range states {
		require.Equal(t, s == "completed", m.IsTerminal(s), "state %s", s)
		require.Equal(t, len(m.Transitions[s]) == 0, m.IsTerminal(s))
	}
}

func TestActionTargetsBelongToTransitions(t *testing.T) {
	for _, m := range []statemachine.Machine{statemachine.Campaigns, statemachine.Attacks} {
		for action, edges := range m.Actions {
			for _, edge := range edges {
				require.True(t, m.CanTransition(edge.From, edge.To),
					"%s action %s: %s -> %s", m.Entity, action, edge.From, edge.To)

				to, err := m.ValidateAction(edge.From, action)
				require.NoError(t, err)
				require.Equal(t, edge.To, to)
			}
		}
	}
}

func TestValidTransitionsOrder(t *testing.T) {
	require.Equal(t,
		[]statemachine.State{"paused", "draft", "archived", "completed"},
		statemachine.Campaigns.ValidTransitions("active"))
	require.Empty(t, statemachine.Attacks.ValidTransitions("completed"))
}
