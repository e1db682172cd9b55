// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controlapi

import (
	"net/http"

	"ouroboros.dev/ouroboros/control/hashlists"
)

type hashListJSON struct {
	ID            int64  `json:"id"`
	ProjectID     *int64 `json:"project_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	HashTypeID    int    `json:"hash_type_id"`
	IsUnavailable bool   `json:"is_unavailable"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toHashListJSON(list *hashlists.HashList) hashListJSON {
	return hashListJSON{
		ID:            list.ID,
		ProjectID:     list.ProjectID,
		Name:          list.Name,
		Description:   list.Description,
		HashTypeID:    list.HashTypeID,
		IsUnavailable: list.IsUnavailable,
		CreatedAt:     timestamp(list.CreatedAt),
		UpdatedAt:     timestamp(list.UpdatedAt),
	}
}

func (server *Server) listHashLists(w http.ResponseWriter, r *http.Request) {
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

	lists, total, err := server.services.HashLists.List(r.Context(), userFromContext(r.Context()),
		hashlists.ListOptions{
			Name:      r.URL.Query().Get("name"),
			ProjectID: projectID,
			Limit:     limit,
			Offset:    offset,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	items := make([]hashListJSON, 0, len(lists))
	for i := range lists {
		items = append(items, toHashListJSON(&lists[i]))
	}
	server.sendJSON(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (server *Server) createHashList(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ProjectID   *int64 `json:"project_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		HashTypeID  int    `json:"hash_type_id"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}
	if input.Name == "" {
		server.serveError(w, r, errUnprocessable("name is required"))
		return
	}

	list, err := server.services.HashLists.Create(r.Context(), userFromContext(r.Context()),
		hashlists.CreateParams{
			ProjectID:   input.ProjectID,
			Name:        input.Name,
			Description: input.Description,
			HashTypeID:  input.HashTypeID,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusCreated, toHashListJSON(list))
}

func (server *Server) getHashList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	list, err := server.services.HashLists.Get(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toHashListJSON(list))
}

func (server *Server) updateHashList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var input struct {
		Name          *string `json:"name"`
		Description   *string `json:"description"`
		IsUnavailable *bool   `json:"is_unavailable"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}

	list, err := server.services.HashLists.Update(r.Context(), userFromContext(r.Context()), id,
		hashlists.UpdateParams{
			Name:          input.Name,
			Description:   input.Description,
			IsUnavailable: input.IsUnavailable,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toHashListJSON(list))
}

func (server *Server) deleteHashList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	if err := server.services.HashLists.Delete(r.Context(), userFromContext(r.Context()), id); err != nil {
		server.serveError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) listHashItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	limit, offset, err := parsePagination(r, 20)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	items, total, err := server.services.HashLists.Items(r.Context(), userFromContext(r.Context()), id,
		hashlists.ItemsOptions{
			Search: r.URL.Query().Get("search"),
			Status: r.URL.Query().Get("status"),
			Limit:  limit,
			Offset: offset,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	type itemJSON struct {
		ID        int64   `json:"id"`
		Hash      string  `json:"hash"`
		Salt      *string `json:"salt"`
		PlainText *string `json:"plain_text"`
		Cracked   bool    `json:"cracked"`
	}
	body := make([]itemJSON, 0, len(items))
	for _, item := range items {
		body = append(body, itemJSON{
			ID:        item.ID,
			Hash:      item.Hash,
			Salt:      item.Salt,
			PlainText: item.PlainText,
			Cracked:   item.Cracked(),
		})
	}
	server.sendJSON(w, http.StatusOK, page{Items: body, Total: total, Limit: limit, Offset: offset})
}

type exportJSON struct {
	HashListID   int64  `json:"hash_list_id"`
	HashListName string `json:"hash_list_name"`
	Format       string `json:"format"`
	TotalItems   int64  `json:"total_items"`
	CrackedCount int64  `json:"cracked_count"`
	Content      string `json:"content"`
}

func toExportJSON(export hashlists.Export) exportJSON {
	return exportJSON{
		HashListID:   export.HashListID,
		HashListName: export.HashListName,
		Format:       export.Format,
		TotalItems:   export.TotalItems,
		CrackedCount: export.CrackedCount,
		Content:      export.Content,
	}
}

func (server *Server) exportPlaintext(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	export, err := server.services.HashLists.ExportPlaintext(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toExportJSON(export))
}

func (server *Server) exportPotfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	export, err := server.services.HashLists.ExportPotfile(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toExportJSON(export))
}

func (server *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	includeUncracked := true
	if raw := r.URL.Query().Get("include_uncracked"); raw != "" {
		includeUncracked = raw == "true" || raw == "1"
	}

	export, err := server.services.HashLists.ExportCSV(r.Context(), userFromContext(r.Context()), id, includeUncracked)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toExportJSON(export))
}
