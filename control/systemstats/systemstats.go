// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package systemstats reports control plane health: entity counts, queue
// depths and an optional redis probe.
package systemstats

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	// Error is the systemstats error class.
	Error = errs.Class("systemstats")

	mon = monkit.Package()
)

// Config holds system stats settings.
type Config struct {
	RedisAddress  string `help:"optional redis address probed for queue statistics; empty disables the probe" default:""`
	RedisPassword string `help:"redis password" default:""`
}

// Counts pairs a total with its active subset.
type Counts struct {
	Total  int64
	Active int64
}

// TaskCounts breaks tasks down by status.
type TaskCounts struct {
	Total   int64
	Pending int64
	Running int64
	Failed  int64
}

// DB is the read-only statistics surface of the persistence layer.
type DB interface {
	AgentCounts(ctx context.Context) (Counts, error)
	CampaignCounts(ctx context.Context) (Counts, error)
	TaskCounts(ctx context.Context) (TaskCounts, error)
	TasksCreatedSince(ctx context.Context, since time.Time) (int64, error)
	PendingResourceCount(ctx context.Context) (int64, error)
}

// Service reports system status and queue health.
type Service struct {
	log       *zap.Logger
	db        DB
	redis     *redis.Client
	version   string
	startedAt time.Time
}

// NewService creates the systemstats service. A redis client is only dialed
// when an address is configured.
func NewService(log *zap.Logger, db DB, config Config, version string) *Service {
	service := &Service{
		log:       log,
		db:        db,
		version:   version,
		startedAt: time.Now().UTC(),
	}
	if config.RedisAddress != "" {
		service.redis = redis.NewClient(&redis.Options{
			Addr:     config.RedisAddress,
			Password: config.RedisPassword,
		})
	}
	return service
}

// Close releases the redis client, when present.
func (service *Service) Close() error {
	if service.redis == nil {
		return nil
	}
	return Error.Wrap(service.redis.Close())
}

// Status is the overall system summary.
type Status struct {
	Version   string
	StartedAt time.Time
	Agents    Counts
	Campaigns Counts
	Tasks     TaskCounts
}

// Status reports entity counts and process identity.
func (service *Service) Status(ctx context.Context) (_ Status, err error) {
	defer mon.Task()(&ctx)(&err)

	agents, err := service.db.AgentCounts(ctx)
	if err != nil {
		return Status{}, Error.Wrap(err)
	}
	campaigns, err := service.db.CampaignCounts(ctx)
	if err != nil {
		return Status{}, Error.Wrap(err)
	}
	tasks, err := service.db.TaskCounts(ctx)
	if err != nil {
		return Status{}, Error.Wrap(err)
	}

	return Status{
		Version:   service.version,
		StartedAt: service.startedAt,
		Agents:    agents,
		Campaigns: campaigns,
		Tasks:     tasks,
	}, nil
}

// Queue describes one logical work queue.
type Queue struct {
	Name        string
	Type        string
	PendingJobs int64
	RunningJobs int64
	FailedJobs  int64
	Status      string
	Error       string
}

// QueueHealth is the queue health envelope.
type QueueHealth struct {
	OverallStatus    string
	RedisAvailable   bool
	RedisMemoryUsage string
	RedisConnections int64
	Queues           []Queue
	TotalPendingJobs int64
	TotalRunningJobs int64
	TasksLastHour    int64
}

// Queues reports the health of the cracking and upload-verification queues,
// plus redis statistics when a probe is configured.
func (service *Service) Queues(ctx context.Context) (_ QueueHealth, err error) {
	defer mon.Task()(&ctx)(&err)

	health := QueueHealth{OverallStatus: "healthy", Queues: []Queue{}}

	tasks, err := service.db.TaskCounts(ctx)
	if err != nil {
		return QueueHealth{}, Error.Wrap(err)
	}
	cracking := Queue{
		Name:        "cracking_tasks",
		Type:        "database",
		PendingJobs: tasks.Pending,
		RunningJobs: tasks.Running,
		FailedJobs:  tasks.Failed,
		Status:      "healthy",
	}
	if tasks.Failed > 0 {
		cracking.Status = "degraded"
		health.OverallStatus = "degraded"
	}
	health.Queues = append(health.Queues, cracking)

	pendingUploads, err := service.db.PendingResourceCount(ctx)
	if err != nil {
		return QueueHealth{}, Error.Wrap(err)
	}
	health.Queues = append(health.Queues, Queue{
		Name:        "upload_verification",
		Type:        "background",
		PendingJobs: pendingUploads,
		Status:      "healthy",
	})

	for _, queue := range health.Queues {
		health.TotalPendingJobs += queue.PendingJobs
		health.TotalRunningJobs += queue.RunningJobs
	}

	lastHour, err := service.db.TasksCreatedSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		return QueueHealth{}, Error.Wrap(err)
	}
	health.TasksLastHour = lastHour

	service.probeRedis(ctx, &health)
	return health, nil
}

func (service *Service) probeRedis(ctx context.Context, health *QueueHealth) {
	if service.redis == nil {
		return
	}
	if err := service.redis.Ping(ctx).Err(); err != nil {
		service.log.Warn("redis probe failed", zap.Error(err))
		health.RedisAvailable = false
		if health.OverallStatus == "healthy" {
			health.OverallStatus = "degraded"
		}
		return
	}
	health.RedisAvailable = true

	if info, err := service.redis.Info(ctx, "memory").Result(); err == nil {
		health.RedisMemoryUsage = parseInfoField(info, "used_memory_human")
	}
	stats := service.redis.PoolStats()
	health.RedisConnections = int64(stats.TotalConns)
}

func parseInfoField(info, field string) string {
	prefix := field + ":"
	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}
