// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package controlapi implements the administrative control API: routing,
// bearer authentication and the RFC 9457 problem-details boundary.
package controlapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"ouroboros.dev/ouroboros/control/problems"
)

// Error is the controlapi error class.
var Error = errs.Class("controlapi")

// reasonPhrases maps status codes to problem titles for untyped HTTP errors.
var reasonPhrases = map[int]string{
	http.StatusBadRequest:          "Bad Request",
	http.StatusUnauthorized:        "Unauthorized",
	http.StatusForbidden:           "Forbidden",
	http.StatusNotFound:            "Not Found",
	http.StatusConflict:            "Conflict",
	http.StatusUnprocessableEntity: "Unprocessable Entity",
	http.StatusInternalServerError: "Internal Server Error",
}

// httpError is an untyped HTTP failure, the counterpart of framework
// exceptions: it renders as an about:blank problem. Detail is either a
// string or a map whose extra keys become problem extensions.
type httpError struct {
	status int
	detail any
}

func (e httpError) Error() string {
	return fmt.Sprintf("http error %d: %v", e.status, e.detail)
}

func errBadRequest(detail any) error {
	return httpError{status: http.StatusBadRequest, detail: detail}
}

func errUnauthorized(detail any) error {
	return httpError{status: http.StatusUnauthorized, detail: detail}
}

func errUnprocessable(detail any) error {
	return httpError{status: http.StatusUnprocessableEntity, detail: detail}
}

// serveError renders any error as application/problem+json. Typed problems
// keep their tag; untyped HTTP errors become about:blank; everything else is
// an internal server error.
func (server *Server) serveError(w http.ResponseWriter, r *http.Request, err error) {
	if problem, ok := problems.Is(err); ok {
		server.sendProblem(w, r, problem)
		return
	}

	var httpErr httpError
	if errors.As(err, &httpErr) {
		title, ok := reasonPhrases[httpErr.status]
		if !ok {
			title = "HTTP Error"
		}
		problem := &problems.Problem{
			Type:   "about:blank",
			Title:  title,
			Status: httpErr.status,
		}
		switch detail := httpErr.detail.(type) {
		case string:
			problem.Detail = detail
		case map[string]any:
			if value, ok := detail["detail"].(string); ok {
				problem.Detail = value
			} else {
				problem.Detail = title
			}
			for key, value := range detail {
				if isReserved(key) {
					continue
				}
				if problem.Extensions == nil {
					problem.Extensions = map[string]any{}
				}
				problem.Extensions[key] = value
			}
		default:
			problem.Detail = title
		}
		server.sendProblem(w, r, problem)
		return
	}

	server.log.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
	server.sendProblem(w, r, problems.Internal(err.Error()))
}

func isReserved(key string) bool {
	for _, reserved := range problems.Reserved {
		if key == reserved {
			return true
		}
	}
	return false
}

func (server *Server) sendProblem(w http.ResponseWriter, r *http.Request, problem *problems.Problem) {
	body := map[string]any{
		"type":     problem.Type,
		"title":    problem.Title,
		"status":   problem.Status,
		"detail":   problem.Detail,
		"instance": r.URL.Path,
	}
	for key, value := range problem.Extensions {
		if isReserved(key) {
			continue
		}
		body[key] = value
	}

	data, err := json.Marshal(body)
	if err != nil {
		server.log.Error("problem serialization failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_, _ = w.Write(data)
}

func (server *Server) sendJSON(w http.ResponseWriter, status int, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		server.log.Error("response serialization failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// page is the offset-paginated response envelope.
type page struct {
	Items  any   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// decodeJSON parses the request body into input, rejecting unknown fields.
func decodeJSON(r *http.Request, input any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(input); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			return errUnprocessable(fmt.Sprintf("Request validation failed: %v", err))
		}
		return errBadRequest(fmt.Sprintf("Malformed JSON body: %v", err))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errBadRequest("Request body must contain a single JSON object")
	}
	return nil
}

// parsePagination enforces limit ∈ [1,100] and offset ≥ 0.
func parsePagination(r *http.Request, defaultLimit int) (limit, offset int, err error) {
	limit = defaultLimit
	query := r.URL.Query()

	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, errUnprocessable(fmt.Sprintf("Invalid limit %q", raw))
		}
	}
	if limit < 1 || limit > 100 {
		return 0, 0, errUnprocessable("limit must be between 1 and 100")
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, errUnprocessable(fmt.Sprintf("Invalid offset %q", raw))
		}
	}
	if offset < 0 {
		return 0, 0, errUnprocessable("offset must not be negative")
	}
	return limit, offset, nil
}

// jsonOptionalID is a nullable ID field that remembers whether it was present
// in the request body, so "set to null" and "leave unchanged" stay distinct.
type jsonOptionalID struct {
	Set   bool
	Value *int64
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *jsonOptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// timestamp renders a time in the wire format used by all responses.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errUnprocessable(fmt.Sprintf("Invalid %s %q", name, raw))
	}
	return id, nil
}

func queryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errUnprocessable(fmt.Sprintf("Invalid %s %q", name, raw))
	}
	return &value, nil
}
