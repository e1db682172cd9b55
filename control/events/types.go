// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package events

// Topic names published by the control plane.
const (
	CampaignCreated   = "campaign.created"
	CampaignUpdated   = "campaign.updated"
	CampaignDeleted   = "campaign.deleted"
	CampaignStarted   = "campaign.started"
	CampaignPaused    = "campaign.paused"
	CampaignCompleted = "campaign.completed"

	AttackCreated   = "attack.created"
	AttackUpdated   = "attack.updated"
	AttackDeleted   = "attack.deleted"
	AttackStarted   = "attack.started"
	AttackCompleted = "attack.completed"

	TaskCreated   = "task.created"
	TaskAssigned  = "task.assigned"
	TaskProgress  = "task.progress"
	TaskCompleted = "task.completed"
	TaskFailed    = "task.failed"

	AgentRegistered = "agent.registered"
	AgentHeartbeat  = "agent.heartbeat"
	AgentOffline    = "agent.offline"
	AgentError      = "agent.error"

	HashCracked = "hash.cracked"

	HashListCreated = "hash_list.created"
	HashListUpdated = "hash_list.updated"

	ResourceUploaded = "resource.uploaded"
	ResourceDeleted  = "resource.deleted"
)

// Topics lists every topic the control plane publishes, for consumers that
// subscribe to the full stream.
var Topics = []string{
	CampaignCreated, CampaignUpdated, CampaignDeleted,
	CampaignStarted, CampaignPaused, CampaignCompleted,
	AttackCreated, AttackUpdated, AttackDeleted, AttackStarted, AttackCompleted,
	TaskCreated, TaskAssigned, TaskProgress, TaskCompleted, TaskFailed,
	AgentRegistered, AgentHeartbeat, AgentOffline, AgentError,
	HashCracked,
	HashListCreated, HashListUpdated,
	ResourceUploaded, ResourceDeleted,
}
