// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controlapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ouroboros.dev/ouroboros/control/resources"
)

type resourceJSON struct {
	ID           string   `json:"id"`
	ProjectID    *int64   `json:"project_id"`
	FileName     string   `json:"file_name"`
	FileLabel    *string  `json:"file_label"`
	ResourceType string   `json:"resource_type"`
	LineFormat   string   `json:"line_format,omitempty"`
	LineEncoding string   `json:"line_encoding,omitempty"`
	UsedForModes []string `json:"used_for_modes"`
	Source       string   `json:"source"`
	LineCount    int64    `json:"line_count"`
	ByteSize     int64    `json:"byte_size"`
	Checksum     string   `json:"checksum"`
	IsUploaded   bool     `json:"is_uploaded"`
	Tags         []string `json:"tags"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func toResourceJSON(resource *resources.Resource) resourceJSON {
	usedForModes := resource.UsedForModes
	if usedForModes == nil {
		usedForModes = []string{}
	}
	tags := resource.Tags
	if tags == nil {
		tags = []string{}
	}
	return resourceJSON{
		ID:           resource.ID.String(),
		ProjectID:    resource.ProjectID,
		FileName:     resource.FileName,
		FileLabel:    resource.FileLabel,
		ResourceType: string(resource.Type),
		LineFormat:   resource.LineFormat,
		LineEncoding: resource.LineEncoding,
		UsedForModes: usedForModes,
		Source:       resource.Source,
		LineCount:    resource.LineCount,
		ByteSize:     resource.ByteSize,
		Checksum:     resource.Checksum,
		IsUploaded:   resource.IsUploaded,
		Tags:         tags,
		CreatedAt:    timestamp(resource.CreatedAt),
		UpdatedAt:    timestamp(resource.UpdatedAt),
	}
}

func resourcePathID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errUnprocessable(fmt.Sprintf("Invalid resource id %q", raw))
	}
	return id, nil
}

func (server *Server) initiateUpload(w http.ResponseWriter, r *http.Request) {
	var input struct {
		FileName     string   `json:"file_name"`
		ResourceType string   `json:"resource_type"`
		ProjectID    *int64   `json:"project_id"`
		FileLabel    *string  `json:"file_label"`
		Tags         []string `json:"tags"`
		LineFormat   string   `json:"line_format"`
		LineEncoding string   `json:"line_encoding"`
		UsedForModes []string `json:"used_for_modes"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}
	if input.FileName == "" {
		server.serveError(w, r, errUnprocessable("file_name is required"))
		return
	}

	upload, err := server.services.Resources.InitiateUpload(r.Context(), userFromContext(r.Context()),
		resources.InitiateUploadParams{
			FileName:     input.FileName,
			Type:         resources.Type(input.ResourceType),
			ProjectID:    input.ProjectID,
			FileLabel:    input.FileLabel,
			Tags:         input.Tags,
			LineFormat:   input.LineFormat,
			LineEncoding: input.LineEncoding,
			UsedForModes: input.UsedForModes,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusCreated, struct {
		ResourceID       string `json:"resource_id"`
		UploadURL        string `json:"upload_url"`
		ExpiresInSeconds int64  `json:"expires_in_seconds"`
	}{
		ResourceID:       upload.ResourceID.String(),
		UploadURL:        upload.UploadURL,
		ExpiresInSeconds: upload.ExpiresInSeconds,
	})
}

func (server *Server) confirmUpload(w http.ResponseWriter, r *http.Request) {
	id, err := resourcePathID(r)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	resource, err := server.services.Resources.ConfirmUpload(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toResourceJSON(resource))
}

func (server *Server) listResources(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, 20)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	projectID, err := queryInt64(r, "project_id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var resourceType *resources.Type
	if raw := r.URL.Query().Get("resource_type"); raw != "" {
		value := resources.Type(raw)
		resourceType = &value
	}

	list, total, err := server.services.Resources.List(r.Context(), userFromContext(r.Context()),
		resources.ListOptions{
			Type:      resourceType,
			ProjectID: projectID,
			Search:    r.URL.Query().Get("search"),
			Limit:     limit,
			Offset:    offset,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	type listItemJSON struct {
		resourceJSON
		UsageCount int64 `json:"usage_count"`
	}
	items := make([]listItemJSON, 0, len(list))
	for i := range list {
		items = append(items, listItemJSON{
			resourceJSON: toResourceJSON(&list[i].Resource),
			UsageCount:   list[i].UsageCount,
		})
	}
	server.sendJSON(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (server *Server) getResource(w http.ResponseWriter, r *http.Request) {
	id, err := resourcePathID(r)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	detail, err := server.services.Resources.Get(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	type attackRefJSON struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	attackRefs := make([]attackRefJSON, 0, len(detail.Attacks))
	for _, ref := range detail.Attacks {
		attackRefs = append(attackRefs, attackRefJSON{ID: ref.ID, Name: ref.Name})
	}
	server.sendJSON(w, http.StatusOK, struct {
		resourceJSON
		UsageCount int64           `json:"usage_count"`
		Attacks    []attackRefJSON `json:"attacks"`
	}{
		resourceJSON: toResourceJSON(&detail.Resource),
		UsageCount:   detail.UsageCount,
		Attacks:      attackRefs,
	})
}

func (server *Server) previewResource(w http.ResponseWriter, r *http.Request) {
	id, err := resourcePathID(r)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	lines := 20
	if raw := r.URL.Query().Get("lines"); raw != "" {
		lines, err = strconv.Atoi(raw)
		if err != nil {
			server.serveError(w, r, errUnprocessable(fmt.Sprintf("Invalid lines %q", raw)))
			return
		}
	}
	if lines < 1 || lines > 500 {
		server.serveError(w, r, errUnprocessable("lines must be between 1 and 500"))
		return
	}

	preview, err := server.services.Resources.GetPreview(r.Context(), userFromContext(r.Context()), id, lines)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, struct {
		ResourceID   string   `json:"resource_id"`
		FileName     string   `json:"file_name"`
		PreviewLines []string `json:"preview_lines"`
		PreviewError *string  `json:"preview_error"`
	}{
		ResourceID:   preview.ResourceID.String(),
		FileName:     preview.FileName,
		PreviewLines: preview.PreviewLines,
		PreviewError: preview.PreviewError,
	})
}

func (server *Server) updateResource(w http.ResponseWriter, r *http.Request) {
	id, err := resourcePathID(r)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var input struct {
		FileName     *string        `json:"file_name"`
		FileLabel    *string        `json:"file_label"`
		LineFormat   *string        `json:"line_format"`
		LineEncoding *string        `json:"line_encoding"`
		UsedForModes []string       `json:"used_for_modes"`
		Tags         []string       `json:"tags"`
		ProjectID    jsonOptionalID `json:"project_id"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}

	resource, err := server.services.Resources.Update(r.Context(), userFromContext(r.Context()), id,
		resources.UpdateParams{
			FileName:     input.FileName,
			FileLabel:    input.FileLabel,
			LineFormat:   input.LineFormat,
			LineEncoding: input.LineEncoding,
			UsedForModes: input.UsedForModes,
			Tags:         input.Tags,
			ProjectID:    input.ProjectID.Value,
			SetProject:   input.ProjectID.Set,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toResourceJSON(resource))
}

func (server *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	id, err := resourcePathID(r)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	if err := server.services.Resources.Delete(r.Context(), userFromContext(r.Context()), id); err != nil {
		server.serveError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) cancelUpload(w http.ResponseWriter, r *http.Request) {
	id, err := resourcePathID(r)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	if err := server.services.Resources.Cancel(r.Context(), userFromContext(r.Context()), id); err != nil {
		server.serveError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
