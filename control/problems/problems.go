// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package problems defines the closed set of client-visible API errors and
// their RFC 9457 problem-details representation.
package problems

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Reserved problem-details member names. Extensions never overwrite these.
var Reserved = []string{"type", "title", "status", "detail", "instance"}

// Problem is a client-visible API error. It renders as an RFC 9457
// application/problem+json document on the control API.
type Problem struct {
	Type       string
	Title      string
	Status     int
	Detail     string
	Extensions map[string]any
}

// Error implements the error interface.
func (p *Problem) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// Is reports whether err is a *Problem and returns it.
func Is(err error) (*Problem, bool) {
	var p *Problem
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}

func notFound(entity, tag, detail string) *Problem {
	return &Problem{
		Type:   tag,
		Title:  entity + " Not Found",
		Status: http.StatusNotFound,
		Detail: detail,
	}
}

// CampaignNotFound reports a missing campaign.
func CampaignNotFound(id int64) *Problem {
	return notFound("Campaign", "campaign-not-found", fmt.Sprintf("Campaign with ID %d not found", id))
}

// AttackNotFound reports a missing attack.
func AttackNotFound(id int64) *Problem {
	return notFound("Attack", "attack-not-found", fmt.Sprintf("Attack with ID %d not found", id))
}

// AgentNotFound reports a missing agent.
func AgentNotFound(id int64) *Problem {
	return notFound("Agent", "agent-not-found", fmt.Sprintf("Agent with ID %d not found", id))
}

// HashListNotFound reports a missing hash list.
func HashListNotFound(id int64) *Problem {
	return notFound("Hash List", "hash-list-not-found", fmt.Sprintf("Hash list with ID %d not found", id))
}

// HashItemNotFound reports a missing hash item.
func HashItemNotFound(id int64) *Problem {
	return notFound("Hash Item", "hash-item-not-found", fmt.Sprintf("Hash item with ID %d not found", id))
}

// ResourceNotFound reports a missing attack resource file.
func ResourceNotFound(id uuid.UUID) *Problem {
	return notFound("Resource", "resource-not-found", fmt.Sprintf("Resource with ID %s not found", id))
}

// TaskNotFound reports a missing task.
func TaskNotFound(id int64) *Problem {
	return notFound("Task", "task-not-found", fmt.Sprintf("Task with ID %d not found", id))
}

// ProjectNotFound reports a missing project.
func ProjectNotFound(id int64) *Problem {
	return notFound("Project", "project-not-found", fmt.Sprintf("Project with ID %d not found", id))
}

// UserNotFound reports a missing user.
func UserNotFound(detail string) *Problem {
	return notFound("User", "user-not-found", detail)
}

// InvalidAttackConfig reports a malformed attack configuration.
func InvalidAttackConfig(detail string) *Problem {
	return &Problem{
		Type:   "invalid-attack-config",
		Title:  "Invalid Attack Configuration",
		Status: http.StatusBadRequest,
		Detail: detail,
	}
}

// InvalidHashFormat reports unparseable hash material.
func InvalidHashFormat(detail string) *Problem {
	return &Problem{
		Type:   "invalid-hash-format",
		Title:  "Invalid Hash Format",
		Status: http.StatusBadRequest,
		Detail: detail,
	}
}

// InvalidResourceFormat reports a malformed resource file.
func InvalidResourceFormat(detail string) *Problem {
	return &Problem{
		Type:   "invalid-resource-format",
		Title:  "Invalid Resource Format",
		Status: http.StatusBadRequest,
		Detail: detail,
	}
}

// InvalidResourceState reports an operation attempted against an entity whose
// current state forbids it.
func InvalidResourceState(detail string) *Problem {
	return &Problem{
		Type:   "invalid-resource-state",
		Title:  "Invalid Resource State",
		Status: http.StatusBadRequest,
		Detail: detail,
	}
}

// InsufficientPermissions reports a caller lacking the required role.
func InsufficientPermissions(detail string) *Problem {
	return &Problem{
		Type:   "insufficient-permissions",
		Title:  "Insufficient Permissions",
		Status: http.StatusForbidden,
		Detail: detail,
	}
}

// ProjectAccessDenied reports a caller outside the project's membership.
func ProjectAccessDenied(detail string) *Problem {
	return &Problem{
		Type:   "project-access-denied",
		Title:  "Project Access Denied",
		Status: http.StatusForbidden,
		Detail: detail,
	}
}

// UserConflict reports a duplicate user.
func UserConflict(detail string) *Problem {
	return &Problem{
		Type:   "user-conflict",
		Title:  "User Already Exists",
		Status: http.StatusConflict,
		Detail: detail,
	}
}

// Internal reports an unexpected server-side failure.
func Internal(detail string) *Problem {
	return &Problem{
		Type:   "internal-server-error",
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
		Detail: detail,
	}
}

// StateTransition reports an invalid lifecycle transition. The five extension
// members are always serialized for this problem type, null when unknown.
func StateTransition(entityType, action, from, to string, valid []string) *Problem {
	var detail string
	if action != "" {
		detail = fmt.Sprintf("Cannot perform action '%s' on %s: transition from '%s' to '%s' is not allowed.",
			action, entityType, from, to)
	} else {
		detail = fmt.Sprintf("Invalid %s state transition from '%s' to '%s'.", entityType, from, to)
	}
	if valid == nil {
		valid = []string{}
	}

	extensions := map[string]any{
		"current_state":     from,
		"attempted_state":   to,
		"entity_type":       entityType,
		"valid_transitions": valid,
	}
	if action != "" {
		extensions["action"] = action
	} else {
		extensions["action"] = nil
	}

	return &Problem{
		Type:       "invalid-state-transition",
		Title:      "Invalid State Transition",
		Status:     http.StatusConflict,
		Detail:     detail,
		Extensions: extensions,
	}
}
