// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controlapi

import (
	"net/http"

	"ouroboros.dev/ouroboros/control/hashguess"
)

func (server *Server) guessHashType(w http.ResponseWriter, r *http.Request) {
	var input struct {
		HashMaterial string `json:"hash_material"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}

	candidates, err := hashguess.Guess(input.HashMaterial)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	type candidateJSON struct {
		HashTypeID int     `json:"hash_type_id"`
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	}
	body := make([]candidateJSON, 0, len(candidates))
	for _, candidate := range candidates {
		body = append(body, candidateJSON{
			HashTypeID: candidate.HashTypeID,
			Name:       candidate.Name,
			Confidence: candidate.Confidence,
		})
	}
	server.sendJSON(w, http.StatusOK, struct {
		Candidates []candidateJSON `json:"candidates"`
	}{Candidates: body})
}

func (server *Server) systemStatus(w http.ResponseWriter, r *http.Request) {
	status, err := server.services.Stats.Status(r.Context())
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	type counts struct {
		Total  int64 `json:"total"`
		Active int64 `json:"active"`
	}
	server.sendJSON(w, http.StatusOK, struct {
		Version   string `json:"version"`
		StartedAt string `json:"started_at"`
		Agents    counts `json:"agents"`
		Campaigns counts `json:"campaigns"`
		Tasks     struct {
			Total   int64 `json:"total"`
			Pending int64 `json:"pending"`
			Running int64 `json:"running"`
			Failed  int64 `json:"failed"`
		} `json:"tasks"`
	}{
		Version:   status.Version,
		StartedAt: timestamp(status.StartedAt),
		Agents:    counts{Total: status.Agents.Total, Active: status.Agents.Active},
		Campaigns: counts{Total: status.Campaigns.Total, Active: status.Campaigns.Active},
		Tasks: struct {
			Total   int64 `json:"total"`
			Pending int64 `json:"pending"`
			Running int64 `json:"running"`
			Failed  int64 `json:"failed"`
		}{
			Total:   status.Tasks.Total,
			Pending: status.Tasks.Pending,
			Running: status.Tasks.Running,
			Failed:  status.Tasks.Failed,
		},
	})
}

func (server *Server) systemQueues(w http.ResponseWriter, r *http.Request) {
	health, err := server.services.Stats.Queues(r.Context())
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	type queueJSON struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		PendingJobs int64  `json:"pending_jobs"`
		RunningJobs int64  `json:"running_jobs"`
		FailedJobs  int64  `json:"failed_jobs"`
		Status      string `json:"status"`
		Error       string `json:"error,omitempty"`
	}
	queues := make([]queueJSON, 0, len(health.Queues))
	for _, queue := range health.Queues {
		queues = append(queues, queueJSON{
			Name:        queue.Name,
			Type:        queue.Type,
			PendingJobs: queue.PendingJobs,
			RunningJobs: queue.RunningJobs,
			FailedJobs:  queue.FailedJobs,
			Status:      queue.Status,
			Error:       queue.Error,
		})
	}
	server.sendJSON(w, http.StatusOK, struct {
		OverallStatus    string      `json:"overall_status"`
		RedisAvailable   bool        `json:"redis_available"`
		RedisMemoryUsage string      `json:"redis_memory_usage"`
		RedisConnections int64       `json:"redis_connections"`
		Queues           []queueJSON `json:"queues"`
		TotalPendingJobs int64       `json:"total_pending_jobs"`
		TotalRunningJobs int64       `json:"total_running_jobs"`
		RecentActivity   struct {
			TasksLastHour int64 `json:"tasks_last_hour"`
		} `json:"recent_activity"`
	}{
		OverallStatus:    health.OverallStatus,
		RedisAvailable:   health.RedisAvailable,
		RedisMemoryUsage: health.RedisMemoryUsage,
		RedisConnections: health.RedisConnections,
		Queues:           queues,
		TotalPendingJobs: health.TotalPendingJobs,
		TotalRunningJobs: health.TotalRunningJobs,
		RecentActivity: struct {
			TasksLastHour int64 `json:"tasks_last_hour"`
		}{TasksLastHour: health.TasksLastHour},
	})
}
