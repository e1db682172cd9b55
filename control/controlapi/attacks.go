// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controlapi

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ouroboros.dev/ouroboros/control/attacks"
)

type attackJSON struct {
	ID         int64   `json:"id"`
	CampaignID int64   `json:"campaign_id"`
	Name       string  `json:"name"`
	AttackMode string  `json:"attack_mode"`
	Position   int     `json:"position"`
	State      string  `json:"state"`
	Mask       string  `json:"mask,omitempty"`
	WordListID *string `json:"word_list_id"`
	RuleListID *string `json:"rule_list_id"`
	MaskListID *string `json:"mask_list_id"`
	LeftRule   string  `json:"left_rule,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

func toAttackJSON(attack *attacks.Attack) attackJSON {
	uuidString := func(id *uuid.UUID) *string {
		if id == nil {
			return nil
		}
		s := id.String()
		return &s
	}
	return attackJSON{
		ID:         attack.ID,
		CampaignID: attack.CampaignID,
		Name:       attack.Name,
		AttackMode: string(attack.Mode),
		Position:   attack.Position,
		State:      string(attack.State),
		Mask:       attack.Mask,
		WordListID: uuidString(attack.WordListID),
		RuleListID: uuidString(attack.RuleListID),
		MaskListID: uuidString(attack.MaskListID),
		LeftRule:   attack.LeftRule,
		CreatedAt:  timestamp(attack.CreatedAt),
		UpdatedAt:  timestamp(attack.UpdatedAt),
	}
}

// parseUUIDField parses an optional UUID out of a request body field.
func parseUUIDField(name string, raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, errUnprocessable(fmt.Sprintf("Invalid %s %q", name, *raw))
	}
	return &id, nil
}

func (server *Server) listAttacks(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, 20)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	campaignID, err := queryInt64(r, "campaign_id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var state *attacks.State
	if raw := r.URL.Query().Get("state"); raw != "" {
		value := attacks.State(raw)
		state = &value
	}

	list, total, err := server.services.Attacks.List(r.Context(), userFromContext(r.Context()),
		attacks.ListOptions{
			CampaignID: campaignID,
			State:      state,
			Limit:      limit,
			Offset:     offset,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	items := make([]attackJSON, 0, len(list))
	for i := range list {
		items = append(items, toAttackJSON(&list[i]))
	}
	server.sendJSON(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

type attackInput struct {
	CampaignID int64   `json:"campaign_id"`
	Name       string  `json:"name"`
	AttackMode string  `json:"attack_mode"`
	Mask       string  `json:"mask"`
	WordListID *string `json:"word_list_id"`
	RuleListID *string `json:"rule_list_id"`
	MaskListID *string `json:"mask_list_id"`
	LeftRule   string  `json:"left_rule"`
	Position   *int    `json:"position"`
}

func (input attackInput) resourceIDs() (wordList, ruleList, maskList *uuid.UUID, err error) {
	if wordList, err = parseUUIDField("word_list_id", input.WordListID); err != nil {
		return nil, nil, nil, err
	}
	if ruleList, err = parseUUIDField("rule_list_id", input.RuleListID); err != nil {
		return nil, nil, nil, err
	}
	if maskList, err = parseUUIDField("mask_list_id", input.MaskListID); err != nil {
		return nil, nil, nil, err
	}
	return wordList, ruleList, maskList, nil
}

func (server *Server) createAttack(w http.ResponseWriter, r *http.Request) {
	var input attackInput
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}
	wordList, ruleList, maskList, err := input.resourceIDs()
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	attack, err := server.services.Attacks.Create(r.Context(), userFromContext(r.Context()),
		attacks.CreateParams{
			CampaignID: input.CampaignID,
			Name:       input.Name,
			Mode:       attacks.Mode(input.AttackMode),
			Mask:       input.Mask,
			WordListID: wordList,
			RuleListID: ruleList,
			MaskListID: maskList,
			LeftRule:   input.LeftRule,
			Position:   input.Position,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusCreated, toAttackJSON(attack))
}

func (server *Server) getAttack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	attack, err := server.services.Attacks.Get(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toAttackJSON(attack))
}

func (server *Server) updateAttack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var input struct {
		Name       *string `json:"name"`
		Mask       *string `json:"mask"`
		WordListID *string `json:"word_list_id"`
		RuleListID *string `json:"rule_list_id"`
		MaskListID *string `json:"mask_list_id"`
		LeftRule   *string `json:"left_rule"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}
	wordList, err := parseUUIDField("word_list_id", input.WordListID)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	ruleList, err := parseUUIDField("rule_list_id", input.RuleListID)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	maskList, err := parseUUIDField("mask_list_id", input.MaskListID)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	attack, err := server.services.Attacks.Update(r.Context(), userFromContext(r.Context()), id,
		attacks.UpdateParams{
			Name:       input.Name,
			Mask:       input.Mask,
			WordListID: wordList,
			RuleListID: ruleList,
			MaskListID: maskList,
			LeftRule:   input.LeftRule,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toAttackJSON(attack))
}

func (server *Server) deleteAttack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	if err := server.services.Attacks.Delete(r.Context(), userFromContext(r.Context()), id); err != nil {
		server.serveError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) attackAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	action := mux.Vars(r)["action"]
	// the API's "stop" is the machine's abort edge
	if action == "stop" {
		action = "abort"
	}

	attack, err := server.services.Attacks.RunAction(r.Context(), userFromContext(r.Context()), id, action)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toAttackJSON(attack))
}

func (server *Server) validateAttack(w http.ResponseWriter, r *http.Request) {
	var input attackInput
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}
	wordList, ruleList, maskList, err := input.resourceIDs()
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	result, err := server.services.Attacks.Validate(r.Context(), userFromContext(r.Context()),
		attacks.ValidateParams{
			CampaignID: input.CampaignID,
			Mode:       attacks.Mode(input.AttackMode),
			Mask:       input.Mask,
			WordListID: wordList,
			RuleListID: ruleList,
			MaskListID: maskList,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	type availabilityJSON struct {
		ResourceID string `json:"resource_id"`
		Status     string `json:"status"`
		Name       string `json:"name,omitempty"`
	}
	body := struct {
		Valid                bool               `json:"valid"`
		Errors               []string           `json:"errors"`
		Warnings             []string           `json:"warnings"`
		ResourceAvailability []availabilityJSON `json:"resource_availability"`
	}{
		Valid:                result.Valid,
		Errors:               result.Errors,
		Warnings:             result.Warnings,
		ResourceAvailability: []availabilityJSON{},
	}
	for _, availability := range result.ResourceAvailability {
		body.ResourceAvailability = append(body.ResourceAvailability, availabilityJSON{
			ResourceID: availability.ResourceID.String(),
			Status:     availability.Status,
			Name:       availability.Name,
		})
	}
	server.sendJSON(w, http.StatusOK, body)
}

func (server *Server) estimateAttack(w http.ResponseWriter, r *http.Request) {
	var input struct {
		AttackMode     string   `json:"attack_mode"`
		Mask           string   `json:"mask"`
		CustomCharsets []string `json:"custom_charsets"`
		WordListID     *string  `json:"word_list_id"`
		RuleListID     *string  `json:"rule_list_id"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}
	wordList, err := parseUUIDField("word_list_id", input.WordListID)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	ruleList, err := parseUUIDField("rule_list_id", input.RuleListID)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	estimate, err := server.services.Attacks.Estimate(r.Context(), userFromContext(r.Context()),
		attacks.EstimateParamsRequest{
			Mode:           attacks.Mode(input.AttackMode),
			Mask:           input.Mask,
			CustomCharsets: input.CustomCharsets,
			WordListID:     wordList,
			RuleListID:     ruleList,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, struct {
		Keyspace        int64   `json:"keyspace"`
		ComplexityScore float64 `json:"complexity_score"`
	}{Keyspace: estimate.Keyspace, ComplexityScore: estimate.ComplexityScore})
}

func (server *Server) attackMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	metrics, err := server.services.Attacks.Metrics(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, struct {
		HashesPerSec    float64 `json:"hashes_per_sec"`
		TotalHashes     int64   `json:"total_hashes"`
		AgentCount      int64   `json:"agent_count"`
		ProgressPercent float64 `json:"progress_percent"`
	}{
		HashesPerSec:    metrics.HashesPerSec,
		TotalHashes:     metrics.TotalHashes,
		AgentCount:      metrics.AgentCount,
		ProgressPercent: metrics.ProgressPercent,
	})
}
