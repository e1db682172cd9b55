// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controlapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/agents"
	"ouroboros.dev/ouroboros/control/attacks"
	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/hashlists"
	"ouroboros.dev/ouroboros/control/resources"
	"ouroboros.dev/ouroboros/control/systemstats"
	"ouroboros.dev/ouroboros/control/tasks"
	"ouroboros.dev/ouroboros/control/problems"
	"ouroboros.dev/ouroboros/internal/defence"
	"ouroboros.dev/ouroboros/internal/errs2"
)

// Config defines the configuration for the control API server.
type Config struct {
	Address          string        `help:"control api address" default:":8090"`
	AuthAttempts     int           `help:"number of failed auth attempts allowed per client before throttling" default:"10"`
	AuthAttemptsSpan time.Duration `help:"period over which failed auth attempts are counted" default:"1m"`
	AuthLockDuration time.Duration `help:"how long a throttled client stays locked out" default:"5m"`
}

// Services groups the domain services the API dispatches to.
type Services struct {
	Accounts  *accounts.Service
	Campaigns *campaigns.Service
	Attacks   *attacks.Service
	HashLists *hashlists.Service
	Resources *resources.Service
	Tasks     *tasks.Service
	Agents    *agents.Service
	Stats     *systemstats.Service
}

// Server is the control API server.
type Server struct {
	log      *zap.Logger
	listener net.Listener
	server   http.Server
	limiter  *defence.Limiter
	services Services
}

type contextKey int

const userContextKey contextKey = iota

// userFromContext returns the authenticated user placed by withAuth.
func userFromContext(ctx context.Context) *accounts.User {
	user, _ := ctx.Value(userContextKey).(*accounts.User)
	return user
}

// NewServer creates the control API server and wires the route table.
func NewServer(log *zap.Logger, listener net.Listener, services Services, config Config) *Server {
	server := &Server{
		log:      log,
		listener: listener,
		limiter: defence.NewLimiter(
			config.AuthAttempts, config.AuthAttemptsSpan, config.AuthLockDuration, time.Hour),
		services: services,
	}

	root := mux.NewRouter()
	server.server.Handler = root

	api := root.PathPrefix("/api/v1/control").Subrouter()
	api.Use(server.withAuth)

	api.HandleFunc("/campaigns", server.listCampaigns).Methods("GET")
	api.HandleFunc("/campaigns", server.createCampaign).Methods("POST")
	api.HandleFunc("/campaigns/{id}", server.getCampaign).Methods("GET")
	api.HandleFunc("/campaigns/{id}", server.updateCampaign).Methods("PATCH")
	api.HandleFunc("/campaigns/{id}", server.deleteCampaign).Methods("DELETE")
	api.HandleFunc("/campaigns/{id}/validate", server.validateCampaign).Methods("POST")
	api.HandleFunc("/campaigns/{id}/{action:start|stop|pause|resume|archive|unarchive}",
		server.campaignAction).Methods("POST")
	api.HandleFunc("/campaigns/{id}/attacks/reorder", server.reorderAttacks).Methods("POST")
	api.HandleFunc("/campaigns/{id}/progress", server.campaignProgress).Methods("GET")
	api.HandleFunc("/campaigns/{id}/metrics", server.campaignMetrics).Methods("GET")

	api.HandleFunc("/attacks", server.listAttacks).Methods("GET")
	api.HandleFunc("/attacks", server.createAttack).Methods("POST")
	api.HandleFunc("/attacks/validate", server.validateAttack).Methods("POST")
	api.HandleFunc("/attacks/estimate", server.estimateAttack).Methods("POST")
	api.HandleFunc("/attacks/{id}", server.getAttack).Methods("GET")
	api.HandleFunc("/attacks/{id}", server.updateAttack).Methods("PATCH")
	api.HandleFunc("/attacks/{id}", server.deleteAttack).Methods("DELETE")
	api.HandleFunc("/attacks/{id}/{action:start|stop|pause|resume}",
		server.attackAction).Methods("POST")
	api.HandleFunc("/attacks/{id}/metrics", server.attackMetrics).Methods("GET")

	api.HandleFunc("/hash-lists", server.listHashLists).Methods("GET")
	api.HandleFunc("/hash-lists", server.createHashList).Methods("POST")
	api.HandleFunc("/hash-lists/{id}", server.getHashList).Methods("GET")
	api.HandleFunc("/hash-lists/{id}", server.updateHashList).Methods("PATCH")
	api.HandleFunc("/hash-lists/{id}", server.deleteHashList).Methods("DELETE")
	api.HandleFunc("/hash-lists/{id}/items", server.listHashItems).Methods("GET")
	api.HandleFunc("/hash-lists/{id}/export/plaintext", server.exportPlaintext).Methods("GET")
	api.HandleFunc("/hash-lists/{id}/export/potfile", server.exportPotfile).Methods("GET")
	api.HandleFunc("/hash-lists/{id}/export/csv", server.exportCSV).Methods("GET")

	api.HandleFunc("/resources", server.listResources).Methods("GET")
	api.HandleFunc("/resources/initiate-upload", server.initiateUpload).Methods("POST")
	api.HandleFunc("/resources/{id}/confirm-upload", server.confirmUpload).Methods("POST")
	api.HandleFunc("/resources/{id}", server.getResource).Methods("GET")
	api.HandleFunc("/resources/{id}", server.updateResource).Methods("PATCH")
	api.HandleFunc("/resources/{id}", server.deleteResource).Methods("DELETE")
	api.HandleFunc("/resources/{id}/preview", server.previewResource).Methods("GET")
	api.HandleFunc("/resources/{id}/cancel", server.cancelUpload).Methods("DELETE")

	api.HandleFunc("/tasks", server.listTasks).Methods("GET")
	api.HandleFunc("/tasks/{id}", server.getTask).Methods("GET")
	api.HandleFunc("/tasks/{id}/requeue", server.requeueTask).Methods("POST")
	api.HandleFunc("/tasks/{id}/cancel", server.cancelTask).Methods("POST")
	api.HandleFunc("/tasks/{id}/status", server.taskStatus).Methods("GET")
	api.HandleFunc("/tasks/{id}/performance", server.taskPerformance).Methods("GET")
	api.HandleFunc("/tasks/{id}/logs", server.taskLogs).Methods("GET")

	api.HandleFunc("/agents", server.listAgents).Methods("GET")
	api.HandleFunc("/agents/{id}", server.getAgent).Methods("GET")
	api.HandleFunc("/agents/{id}/toggle", server.toggleAgent).Methods("PATCH")
	api.HandleFunc("/agents/{id}/config", server.configureAgent).Methods("PATCH")
	api.HandleFunc("/agents/{id}/benchmarks", server.agentBenchmarks).Methods("GET")
	api.HandleFunc("/agents/{id}/capabilities", server.agentCapabilities).Methods("GET")
	api.HandleFunc("/agents/{id}/errors", server.agentErrors).Methods("GET")
	api.HandleFunc("/agents/{id}/test_presigned", server.testPresigned).Methods("POST")

	api.HandleFunc("/projects", server.listProjects).Methods("GET")
	api.HandleFunc("/projects", server.createProject).Methods("POST")
	api.HandleFunc("/projects/{id}", server.getProject).Methods("GET")
	api.HandleFunc("/projects/{id}", server.updateProject).Methods("PATCH")
	api.HandleFunc("/projects/{id}/members", server.addProjectMember).Methods("POST")
	api.HandleFunc("/projects/{id}/members/{userID}", server.removeProjectMember).Methods("DELETE")

	api.HandleFunc("/users", server.listUsers).Methods("GET")
	api.HandleFunc("/users", server.createUser).Methods("POST")
	api.HandleFunc("/users/me", server.currentUser).Methods("GET")
	api.HandleFunc("/users/{id}", server.getUser).Methods("GET")
	api.HandleFunc("/users/{id}", server.updateUser).Methods("PATCH")

	api.HandleFunc("/hash-guess", server.guessHashType).Methods("POST")

	api.HandleFunc("/system/status", server.systemStatus).Methods("GET")
	api.HandleFunc("/system/queues", server.systemQueues).Methods("GET")

	return server
}

// Run starts the control API server, shutting down gracefully when ctx is
// canceled.
func (server *Server) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	var group errgroup.Group
	group.Go(func() error {
		<-ctx.Done()
		return Error.Wrap(server.server.Shutdown(context.Background()))
	})
	group.Go(func() error {
		defer cancel()
		err := server.server.Serve(server.listener)
		if errs2.IsCanceled(err) || err == http.ErrServerClosed {
			err = nil
		}
		return Error.Wrap(err)
	})
	group.Go(func() error {
		err := server.limiter.Run(ctx)
		if errs2.IsCanceled(err) {
			err = nil
		}
		return Error.Wrap(err)
	})
	return group.Wait()
}

// Close closes the server and the underlying listener.
func (server *Server) Close() error {
	server.limiter.Close()
	return Error.Wrap(server.server.Close())
}

// Router exposes the route table for tests.
func (server *Server) Router() http.Handler {
	return server.server.Handler
}

// withAuth resolves the bearer API key to a user, throttling clients that
// keep failing. Failures count against the per-IP budget; a client over
// budget gets 429 until its lock expires.
func (server *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			clientIP = r.RemoteAddr
		}

		header := r.Header.Get("Authorization")
		rawKey, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || rawKey == "" {
			server.failAuth(w, r, clientIP, "Missing or malformed Authorization header")
			return
		}

		user, err := server.services.Accounts.UserByAPIKey(r.Context(), rawKey)
		if err != nil {
			if accounts.ErrUnauthorized.Has(err) {
				server.failAuth(w, r, clientIP, "Invalid API key")
				return
			}
			server.serveError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (server *Server) failAuth(w http.ResponseWriter, r *http.Request, clientIP, detail string) {
	if !server.limiter.Limit(clientIP) {
		server.sendProblem(w, r, &problems.Problem{
			Type:   "about:blank",
			Title:  "Too Many Requests",
			Status: http.StatusTooManyRequests,
			Detail: "Too many failed authentication attempts. Try again later.",
		})
		return
	}
	server.serveError(w, r, errUnauthorized(detail))
}
