// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controlapi

import (
	"net/http"

	"ouroboros.dev/ouroboros/control/tasks"
)

type taskJSON struct {
	ID            int64   `json:"id"`
	AttackID      int64   `json:"attack_id"`
	AgentID       *int64  `json:"agent_id"`
	Status        string  `json:"status"`
	Progress      float64 `json:"progress"`
	KeyspaceTotal int64   `json:"keyspace_total"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func toTaskJSON(task *tasks.Task) taskJSON {
	return taskJSON{
		ID:            task.ID,
		AttackID:      task.AttackID,
		AgentID:       task.AgentID,
		Status:        string(task.Status),
		Progress:      task.Progress,
		KeyspaceTotal: task.KeyspaceTotal,
		CreatedAt:     timestamp(task.CreatedAt),
		UpdatedAt:     timestamp(task.UpdatedAt),
	}
}

func (server *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, 10)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	attackID, err := queryInt64(r, "attack_id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	campaignID, err := queryInt64(r, "campaign_id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	agentID, err := queryInt64(r, "agent_id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var status *tasks.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		value := tasks.Status(raw)
		status = &value
	}

	list, total, err := server.services.Tasks.List(r.Context(), userFromContext(r.Context()),
		tasks.ListOptions{
			Status:     status,
			AttackID:   attackID,
			CampaignID: campaignID,
			AgentID:    agentID,
			Limit:      limit,
			Offset:     offset,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	items := make([]taskJSON, 0, len(list))
	for i := range list {
		items = append(items, toTaskJSON(&list[i]))
	}
	server.sendJSON(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (server *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	task, err := server.services.Tasks.Get(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toTaskJSON(task))
}

func (server *Server) requeueTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	task, err := server.services.Tasks.Requeue(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toTaskJSON(task))
}

func (server *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	task, err := server.services.Tasks.Cancel(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toTaskJSON(task))
}

func (server *Server) taskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	task, err := server.services.Tasks.Get(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, struct {
		TaskID          int64   `json:"task_id"`
		Status          string  `json:"status"`
		ProgressPercent float64 `json:"progress_percent"`
		AgentID         *int64  `json:"agent_id"`
	}{
		TaskID:          task.ID,
		Status:          string(task.Status),
		ProgressPercent: task.Progress,
		AgentID:         task.AgentID,
	})
}

func (server *Server) taskPerformance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	task, err := server.services.Tasks.Get(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	// speed and estimated_completion come from live agent telemetry, which
	// the control plane does not collect; they are reported as null
	server.sendJSON(w, http.StatusOK, struct {
		TaskID              int64    `json:"task_id"`
		ProgressPercent     float64  `json:"progress_percent"`
		KeyspaceTotal       int64    `json:"keyspace_total"`
		KeyspaceProcessed   int64    `json:"keyspace_processed"`
		Speed               *float64 `json:"speed"`
		EstimatedCompletion *string  `json:"estimated_completion"`
	}{
		TaskID:            task.ID,
		ProgressPercent:   task.Progress,
		KeyspaceTotal:     task.KeyspaceTotal,
		KeyspaceProcessed: task.KeyspaceProcessed(),
	})
}

func (server *Server) taskLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	limit, _, err := parsePagination(r, 50)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	logs, err := server.services.Tasks.Logs(r.Context(), userFromContext(r.Context()), id, limit)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	if logs == nil {
		logs = []string{}
	}
	server.sendJSON(w, http.StatusOK, struct {
		TaskID int64    `json:"task_id"`
		Logs   []string `json:"logs"`
	}{TaskID: id, Logs: logs})
}
