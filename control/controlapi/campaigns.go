// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controlapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"ouroboros.dev/ouroboros/control/attacks"
	"ouroboros.dev/ouroboros/control/campaigns"
)

// maxAttacksPerCampaign bounds the unpaginated attack listing returned by the
// reorder endpoint.
const maxAttacksPerCampaign = 1000

type campaignJSON struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	HashListID  int64  `json:"hash_list_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	State       string `json:"state"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toCampaignJSON(campaign *campaigns.Campaign) campaignJSON {
	return campaignJSON{
		ID:          campaign.ID,
		ProjectID:   campaign.ProjectID,
		HashListID:  campaign.HashListID,
		Name:        campaign.Name,
		Description: campaign.Description,
		Priority:    campaign.Priority,
		State:       string(campaign.State),
		CreatedAt:   timestamp(campaign.CreatedAt),
		UpdatedAt:   timestamp(campaign.UpdatedAt),
	}
}

func (server *Server) listCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, 10)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	projectID, err := queryInt64(r, "project_id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	list, total, err := server.services.Campaigns.List(r.Context(), userFromContext(r.Context()),
		campaigns.ListOptions{
			Name:      r.URL.Query().Get("name"),
			ProjectID: projectID,
			Limit:     limit,
			Offset:    offset,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	items := make([]campaignJSON, 0, len(list))
	for i := range list {
		items = append(items, toCampaignJSON(&list[i]))
	}
	server.sendJSON(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (server *Server) createCampaign(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ProjectID   int64  `json:"project_id"`
		HashListID  int64  `json:"hash_list_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Priority    int    `json:"priority"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}
	if input.Name == "" {
		server.serveError(w, r, errUnprocessable("name is required"))
		return
	}

	campaign, err := server.services.Campaigns.Create(r.Context(), userFromContext(r.Context()),
		campaigns.CreateParams{
			ProjectID:   input.ProjectID,
			HashListID:  input.HashListID,
			Name:        input.Name,
			Description: input.Description,
			Priority:    input.Priority,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusCreated, toCampaignJSON(campaign))
}

func (server *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	campaign, err := server.services.Campaigns.Get(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toCampaignJSON(campaign))
}

func (server *Server) updateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var input struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Priority    *int    `json:"priority"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}

	campaign, err := server.services.Campaigns.Update(r.Context(), userFromContext(r.Context()), id,
		campaigns.UpdateParams{
			Name:        input.Name,
			Description: input.Description,
			Priority:    input.Priority,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toCampaignJSON(campaign))
}

func (server *Server) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	if err := server.services.Campaigns.Delete(r.Context(), userFromContext(r.Context()), id); err != nil {
		server.serveError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) validateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	result, err := server.services.Campaigns.Validate(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	type issueJSON struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	}
	body := struct {
		Valid    bool        `json:"valid"`
		Errors   []issueJSON `json:"errors"`
		Warnings []issueJSON `json:"warnings"`
	}{Valid: result.Valid, Errors: []issueJSON{}, Warnings: []issueJSON{}}
	for _, issue := range result.Errors {
		body.Errors = append(body.Errors, issueJSON{Type: issue.Type, Detail: issue.Detail})
	}
	for _, issue := range result.Warnings {
		body.Warnings = append(body.Warnings, issueJSON{Type: issue.Type, Detail: issue.Detail})
	}
	server.sendJSON(w, http.StatusOK, body)
}

func (server *Server) campaignAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	action := mux.Vars(r)["action"]

	campaign, err := server.services.Campaigns.RunAction(r.Context(), userFromContext(r.Context()), id, action)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toCampaignJSON(campaign))
}

func (server *Server) reorderAttacks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var input struct {
		AttackOrder []struct {
			AttackID int64 `json:"attack_id"`
			Priority int   `json:"priority"`
		} `json:"attack_order"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}

	order := make([]campaigns.AttackPosition, 0, len(input.AttackOrder))
	for _, entry := range input.AttackOrder {
		order = append(order, campaigns.AttackPosition{
			AttackID: entry.AttackID,
			Position: entry.Priority,
		})
	}
	user := userFromContext(r.Context())
	if err := server.services.Campaigns.ReorderAttacks(r.Context(), user, id, order); err != nil {
		server.serveError(w, r, err)
		return
	}

	// respond with the campaign's attacks in their new position order
	list, _, err := server.services.Attacks.List(r.Context(), user, attacks.ListOptions{
		CampaignID: &id,
		Limit:      maxAttacksPerCampaign,
	})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	items := make([]attackJSON, 0, len(list))
	for i := range list {
		items = append(items, toAttackJSON(&list[i]))
	}
	server.sendJSON(w, http.StatusOK, items)
}

func (server *Server) campaignProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	progress, err := server.services.Campaigns.Progress(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, struct {
		ActiveAgents    int64   `json:"active_agents"`
		TotalTasks      int64   `json:"total_tasks"`
		PendingTasks    int64   `json:"pending_tasks"`
		RunningTasks    int64   `json:"running_tasks"`
		CompletedTasks  int64   `json:"completed_tasks"`
		FailedTasks     int64   `json:"failed_tasks"`
		PercentComplete float64 `json:"percent_complete"`
	}{
		ActiveAgents:    progress.ActiveAgents,
		TotalTasks:      progress.TotalTasks,
		PendingTasks:    progress.PendingTasks,
		RunningTasks:    progress.RunningTasks,
		CompletedTasks:  progress.CompletedTasks,
		FailedTasks:     progress.FailedTasks,
		PercentComplete: progress.PercentComplete,
	})
}

func (server *Server) campaignMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	metrics, err := server.services.Campaigns.Metrics(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, struct {
		TotalHashes     int64   `json:"total_hashes"`
		CrackedHashes   int64   `json:"cracked_hashes"`
		UncrackedHashes int64   `json:"uncracked_hashes"`
		PercentCracked  float64 `json:"percent_cracked"`
		ProgressPercent float64 `json:"progress_percent"`
	}{
		TotalHashes:     metrics.TotalHashes,
		CrackedHashes:   metrics.CrackedHashes,
		UncrackedHashes: metrics.UncrackedHashes,
		PercentCracked:  metrics.PercentCracked,
		ProgressPercent: metrics.ProgressPercent,
	})
}
