// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package statemachine declares the campaign and attack lifecycle graphs and
// validates transitions against them.
package statemachine

import (
	"ouroboros.dev/ouroboros/control/problems"
)

// State is a lifecycle state name as stored and serialized.
type State string

// Edge is a single allowed from/to pair of an action.
type Edge struct {
	From State
	To   State
}

// Machine is a declarative transition graph. Transition and edge slices keep
// declaration order; diagnostics depend on it.
type Machine struct {
	Entity      string
	Transitions map[State][]State
	Actions     map[string][]Edge
}

const (
	draft     State = "draft"
	active    State = "active"
	paused    State = "paused"
	completed State = "completed"
	archived  State = "archived"
	errored   State = "error"

	pending   State = "pending"
	running   State = "running"
	failed    State = "failed"
	abandoned State = "abandoned"
)

// Campaigns is the campaign lifecycle machine. The active→completed edge is
// system-driven and has no user action.
var Campaigns = Machine{
	Entity: "campaign",
	Transitions: map[State][]State{
		draft:     {active, archived},
		active:    {paused, draft, archived, completed},
		paused:    {active, archived},
		completed: {archived},
		archived:  {draft},
		errored:   {draft},
	},
	Actions: map[string][]Edge{
		"start":     {{draft, active}},
		"stop":      {{active, draft}},
		"pause":     {{active, paused}},
		"resume":    {{paused, active}},
		"archive":   {{draft, archived}, {active, archived}, {paused, archived}, {completed, archived}},
		"unarchive": {{archived, draft}},
		"reset":     {{errored, draft}},
	},
}

// Attacks is the attack lifecycle machine. running→completed and
// running→failed are system-driven; completed is terminal.
var Attacks = Machine{
	Entity: "attack",
	Transitions: map[State][]State{
		pending:   {running, abandoned},
		running:   {paused, completed, failed, abandoned},
		paused:    {running, abandoned},
		completed: {},
		failed:    {pending},
		abandoned: {pending},
	},
	Actions: map[string][]Edge{
		"start":      {{pending, running}},
		"pause":      {{running, paused}},
		"resume":     {{paused, running}},
		"retry":      {{failed, pending}},
		"abandon":    {{pending, abandoned}},
		"abort":      {{running, abandoned}, {paused, abandoned}},
		"reactivate": {{abandoned, pending}},
	},
}

// CanTransition reports whether the graph has an edge from one state to
// another.
func (m Machine) CanTransition(from, to State) bool {
	for _, next := range m.Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition fails with an invalid-state-transition problem when the
// graph has no edge from one state to another. The action name, when known,
// is included in diagnostics.
func (m Machine) ValidateTransition(from, to State, action string) error {
	if m.CanTransition(from, to) {
		return nil
	}
	return problems.StateTransition(m.Entity, action, string(from), string(to), m.validStrings(from))
}

// ValidateAction resolves the target state of an action from the current
// state. Unknown actions and actions undefined for the current state fail
// with an invalid-state-transition problem carrying the action name.
func (m Machine) ValidateAction(current State, action string) (State, error) {
	edges, ok := m.Actions[action]
	if !ok {
		return "", problems.StateTransition(m.Entity, action, string(current), string(current), m.validStrings(current))
	}
	for _, edge := range edges {
		if edge.From == current {
			return edge.To, nil
		}
	}
	// report the action's first declared target as the attempted state
	return "", problems.StateTransition(m.Entity, action, string(current), string(edges[0].To), m.validStrings(current))
}

// ValidTransitions returns the successor states of a state in declaration
// order.
func (m Machine) ValidTransitions(from State) []State {
	out := make([]State, len(m.Transitions[from]))
	copy(out, m.Transitions[from])
	return out
}

// ActionLeadsTo reports whether state is a target of any edge of the action.
// Lifecycle layers use it to detect already-in-target no-ops.
func (m Machine) ActionLeadsTo(action string, state State) bool {
	for _, edge := range m.Actions[action] {
		if edge.To == state {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state has no successors.
func (m Machine) IsTerminal(s State) bool {
	return len(m.Transitions[s]) == 0
}

func (m Machine) validStrings(from State) []string {
	valid := make([]string, 0, len(m.Transitions[from]))
	for _, s := range m.Transitions[from] {
		valid = append(valid, string(s))
	}
	return valid
}
