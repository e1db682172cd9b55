// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controlapi

import (
	"net/http"

	"ouroboros.dev/ouroboros/control/accounts"
)

type userJSON struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	IsActive    bool    `json:"is_active"`
	IsSuperuser bool    `json:"is_superuser"`
	ProjectIDs  []int64 `json:"project_ids"`
	CreatedAt   string  `json:"created_at"`
}

func toUserJSON(user *accounts.User) userJSON {
	projectIDs := make([]int64, 0, len(user.Memberships))
	for _, membership := range user.Memberships {
		projectIDs = append(projectIDs, membership.ProjectID)
	}
	return userJSON{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		ProjectIDs:  projectIDs,
		CreatedAt:   timestamp(user.CreatedAt),
	}
}

type projectJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

func toProjectJSON(project *accounts.Project) projectJSON {
	return projectJSON{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		CreatedAt:   timestamp(project.CreatedAt),
	}
}

func (server *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, 10)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	projects, total, err := server.services.Accounts.ListProjects(r.Context(), userFromContext(r.Context()), limit, offset)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	items := make([]projectJSON, 0, len(projects))
	for i := range projects {
		items = append(items, toProjectJSON(&projects[i]))
	}
	server.sendJSON(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (server *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}
	if input.Name == "" {
		server.serveError(w, r, errUnprocessable("name is required"))
		return
	}

	project, err := server.services.Accounts.CreateProject(r.Context(), userFromContext(r.Context()),
		input.Name, input.Description)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusCreated, toProjectJSON(project))
}

func (server *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	project, err := server.services.Accounts.GetProject(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toProjectJSON(project))
}

func (server *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var input struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}

	project, err := server.services.Accounts.UpdateProject(r.Context(), userFromContext(r.Context()), id,
		input.Name, input.Description)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toProjectJSON(project))
}

func (server *Server) addProjectMember(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var input struct {
		UserID int64 `json:"user_id"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}

	err = server.services.Accounts.AddMember(r.Context(), userFromContext(r.Context()), projectID, input.UserID)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) removeProjectMember(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	err = server.services.Accounts.RemoveMember(r.Context(), userFromContext(r.Context()), projectID, userID)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, 10)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	users, total, err := server.services.Accounts.ListUsers(r.Context(), userFromContext(r.Context()), limit, offset)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	items := make([]userJSON, 0, len(users))
	for i := range users {
		items = append(items, toUserJSON(&users[i]))
	}
	server.sendJSON(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (server *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email       string  `json:"email"`
		Name        string  `json:"name"`
		Password    string  `json:"password"`
		IsSuperuser bool    `json:"is_superuser"`
		ProjectIDs  []int64 `json:"project_ids"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}
	if input.Email == "" {
		server.serveError(w, r, errUnprocessable("email is required"))
		return
	}

	user, rawKey, err := server.services.Accounts.CreateUser(r.Context(), userFromContext(r.Context()),
		accounts.CreateUserParams{
			Email:       input.Email,
			Name:        input.Name,
			Password:    input.Password,
			IsSuperuser: input.IsSuperuser,
			ProjectIDs:  input.ProjectIDs,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	// the raw API key is shown exactly once, on creation
	server.sendJSON(w, http.StatusCreated, struct {
		userJSON
		APIKey string `json:"api_key"`
	}{userJSON: toUserJSON(user), APIKey: rawKey})
}

func (server *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	server.sendJSON(w, http.StatusOK, toUserJSON(userFromContext(r.Context())))
}

func (server *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	user, err := server.services.Accounts.GetUser(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toUserJSON(user))
}

func (server *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	var input struct {
		Name     *string `json:"name"`
		Password *string `json:"password"`
		IsActive *bool   `json:"is_active"`
	}
	if err := decodeJSON(r, &input); err != nil {
		server.serveError(w, r, err)
		return
	}

	user, err := server.services.Accounts.UpdateUser(r.Context(), userFromContext(r.Context()), id,
		accounts.UpdateUserParams{
			Name:     input.Name,
			Password: input.Password,
			IsActive: input.IsActive,
		})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.sendJSON(w, http.StatusOK, toUserJSON(user))
}
