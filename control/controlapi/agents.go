// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controlapi

import (
	"net/http"

	"ouroboros.dev/ouroboros/control/agents"
)

type agentJSON struct {
	ID               int64   `json:"id"`
	HostName         string  `json:"host_name"`
	ClientSignature  string  `json:"client_signature"`
	Enabled          bool    `json:"enabled"`
	State            string  `json:"state"`
	UpdateInterval   int     `json:"update_interval"`
	UseNativeHashcat bool    `json:"use_native_hashcat"`
	BackendDevices   string  `json:"backend_devices"`
	ProjectIDs       []int64 `json:"project_ids"`
	LastSeenAt       *string `json:"last_seen_at"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func toAgentJSON(agent *agents.Agent) agentJSON {
	projectIDs := agent.ProjectIDs
	if projectIDs == nil {
		projectIDs = []int64{}
	}
	var lastSeen *string
	if agent.LastSeenAt != nil {
		value := timestamp(*agent.LastSeenAt)
		lastSeen = &value
	}
	return agentJSON{
		ID:               agent.ID,
		HostName:         agent.HostName,
		ClientSignature:  agent.ClientSignature,
		Enabled:          agent.Enabled,
		State:            agent.State,
		UpdateInterval:   agent.UpdateInterval,
		UseNativeHashcat: agent.UseNativeHashcat,
		BackendDevices:   agent.BackendDevices,
		ProjectIDs:       projectIDs,
		LastSeenAt:       lastSeen,
		CreatedAt:        timestamp(agent.CreatedAt),
		UpdatedAt:        timestamp(agent.UpdatedAt),
	}
}

func (server *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, 10)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var state *string
	if raw := r.URL.Query().Get("state"); raw != "" {
		state = &raw
	}

	list, total, err := server.services.Agents.List(r.Context(), userFromContext(r.Context()),
		agents.ListOptions{
			Search: r.URL.Query().Get("search"),
			State:  state,
			Limit:  limit,
			Offset: offset,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	items := make([]agentJSON, 0, len(list))
	for i := range list {
		items = append(items, toAgentJSON(&list[i]))
	}
	server.sendJSON(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (server *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	agent, err := server.services.Agents.Get(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toAgentJSON(agent))
}

func (server *Server) toggleAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	agent, err := server.services.Agents.Toggle(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toAgentJSON(agent))
}

func (server *Server) configureAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var input struct {
		UpdateInterval   *int    `json:"update_interval"`
		UseNativeHashcat *bool   `json:"use_native_hashcat"`
		BackendDevices   *string `json:"backend_devices"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}

	agent, err := server.services.Agents.UpdateConfig(r.Context(), userFromContext(r.Context()), id,
		agents.ConfigParams{
			UpdateInterval:   input.UpdateInterval,
			UseNativeHashcat: input.UseNativeHashcat,
			BackendDevices:   input.BackendDevices,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toAgentJSON(agent))
}

func (server *Server) agentBenchmarks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	speeds, err := server.services.Agents.Benchmarks(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, struct {
		AgentID    int64              `json:"agent_id"`
		Benchmarks map[string]float64 `json:"benchmarks"`
	}{AgentID: id, Benchmarks: speeds})
}

func (server *Server) agentCapabilities(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	capabilities, err := server.services.Agents.Capabilities(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	type capabilityJSON struct {
		DeviceID   int    `json:"device_id"`
		DeviceName string `json:"device_name"`
		DeviceType string `json:"device_type"`
		Enabled    bool   `json:"enabled"`
	}
	body := make([]capabilityJSON, 0, len(capabilities))
	for _, capability := range capabilities {
		body = append(body, capabilityJSON{
			DeviceID:   capability.DeviceID,
			DeviceName: capability.DeviceName,
			DeviceType: capability.DeviceType,
			Enabled:    capability.Enabled,
		})
	}
	server.sendJSON(w, http.StatusOK, struct {
		AgentID      int64            `json:"agent_id"`
		Capabilities []capabilityJSON `json:"capabilities"`
	}{AgentID: id, Capabilities: body})
}

func (server *Server) agentErrors(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	limit, offset, err := parsePagination(r, 50)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	entries, total, err := server.services.Agents.Errors(r.Context(), userFromContext(r.Context()), id, limit, offset)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	type errorJSON struct {
		ID        int64  `json:"id"`
		Message   string `json:"message"`
		Severity  string `json:"severity"`
		TaskID    *int64 `json:"task_id"`
		CreatedAt string `json:"created_at"`
	}
	items := make([]errorJSON, 0, len(entries))
	for _, entry := range entries {
		items = append(items, errorJSON{
			ID:        entry.ID,
			Message:   entry.Message,
			Severity:  entry.Severity,
			TaskID:    entry.TaskID,
			CreatedAt: timestamp(entry.CreatedAt),
		})
	}
	server.sendJSON(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (server *Server) testPresigned(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var input struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}
	if input.URL == "" {
		server.serveError(w, r, errUnprocessable("url is required"))
		return
	}

	result, err := server.services.Agents.TestPresigned(r.Context(), userFromContext(r.Context()), id, input.URL)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
	}{Valid: result.Valid, Message: result.Message})
}
