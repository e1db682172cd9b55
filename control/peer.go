// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package control is the password-cracking control plane: campaign and
// attack orchestration, resource uploads, and the HTTP API the operators
// drive it with.
package control

import (
	"context"
	"net"

	hw "github.com/jtolds/monkit-hw/v2"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/agents"
	"ouroboros.dev/ouroboros/control/attacks"
	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/controlapi"
	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/control/hashlists"
	"ouroboros.dev/ouroboros/control/objectstore"
	"ouroboros.dev/ouroboros/control/resources"
	"ouroboros.dev/ouroboros/control/resources/cleanup"
	"ouroboros.dev/ouroboros/control/systemstats"
	"ouroboros.dev/ouroboros/control/tasks"
	"ouroboros.dev/ouroboros/internal/lifecycle"
)

var (
	// Error is the control peer error class.
	Error = errs.Class("control")

	mon = monkit.Package()
)

func init() {
	hw.Register(monkit.Default)
}

// DB is the master database the control plane runs against.
type DB interface {
	Accounts() accounts.DB
	Campaigns() campaigns.DB
	Attacks() attacks.DB
	HashLists() hashlists.DB
	Resources() resources.DB
	// StaleResources is the stale-row surface of the cleanup chore, backed
	// by the same rows as Resources.
	StaleResources() cleanup.DB
	Tasks() tasks.DB
	Agents() agents.DB
	Stats() systemstats.DB

	// CreateSchema creates the tables, types and indexes.
	CreateSchema(ctx context.Context) error
	// Close closes the database.
	Close() error
}

// Config is the control peer configuration.
type Config struct {
	API         controlapi.Config
	ObjectStore objectstore.Config
	Uploads     resources.Config
	Cleanup     cleanup.Config
	Stats       systemstats.Config
}

// Peer is the control plane process.
//
// architecture: Peer
type Peer struct {
	Log *zap.Logger
	DB  DB

	Servers  *lifecycle.Group
	Services *lifecycle.Group

	Events *events.Bus
	Store  objectstore.Client

	Accounts  *accounts.Service
	Campaigns *campaigns.Service
	Attacks   *attacks.Service
	HashLists *hashlists.Service
	Resources *resources.Service
	Tasks     *tasks.Service
	Agents    *agents.Service
	Stats     *systemstats.Service

	ResourceCleanup *cleanup.Chore

	API struct {
		Listener net.Listener
		Server   *controlapi.Server
	}
}

// New creates a control peer with all subsystems wired together.
func New(log *zap.Logger, db DB, config Config, version string) (_ *Peer, err error) {
	peer := &Peer{
		Log: log,
		DB:  db,

		Servers:  lifecycle.NewGroup(log.Named("servers")),
		Services: lifecycle.NewGroup(log.Named("services")),
	}

	peer.Events = events.Default()
	subscribeActivityLog(log.Named("activity"), peer.Events)

	peer.Store, err = objectstore.NewMinioClient(config.ObjectStore)
	if err != nil {
		return nil, errs.Combine(err, peer.Close())
	}

	peer.Accounts = accounts.NewService(log.Named("accounts"), db.Accounts())
	peer.HashLists = hashlists.NewService(log.Named("hashlists"), db.HashLists(), peer.Accounts, peer.Events)
	peer.Campaigns = campaigns.NewService(log.Named("campaigns"), db.Campaigns(), db.HashLists(), peer.Accounts, peer.Events)
	peer.Attacks = attacks.NewService(log.Named("attacks"), db.Attacks(), db.Campaigns(), db.Resources(), peer.Accounts, peer.Events)
	peer.Resources = resources.NewService(log.Named("resources"), db.Resources(), peer.Store, peer.Accounts, peer.Events, config.Uploads)
	peer.Tasks = tasks.NewService(log.Named("tasks"), db.Tasks(), peer.Accounts, peer.Events)
	peer.Agents = agents.NewService(log.Named("agents"), db.Agents(), peer.Accounts)
	peer.Stats = systemstats.NewService(log.Named("systemstats"), db.Stats(), config.Stats, version)

	peer.Services.Add(lifecycle.Item{
		Name:  "resources",
		Run:   peer.Resources.Run,
		Close: peer.Resources.Close,
	})
	peer.Services.Add(lifecycle.Item{
		Name:  "systemstats",
		Close: peer.Stats.Close,
	})

	peer.ResourceCleanup = cleanup.NewChore(log.Named("cleanup"), config.Cleanup, db.StaleResources(), peer.Store)
	peer.Services.Add(lifecycle.Item{
		Name:  "resource-cleanup",
		Run:   peer.ResourceCleanup.Run,
		Close: peer.ResourceCleanup.Close,
	})

	peer.API.Listener, err = net.Listen("tcp", config.API.Address)
	if err != nil {
		return nil, errs.Combine(err, peer.Close())
	}
	peer.API.Server = controlapi.NewServer(log.Named("api"), peer.API.Listener, controlapi.Services{
		Accounts:  peer.Accounts,
		Campaigns: peer.Campaigns,
		Attacks:   peer.Attacks,
		HashLists: peer.HashLists,
		Resources: peer.Resources,
		Tasks:     peer.Tasks,
		Agents:    peer.Agents,
		Stats:     peer.Stats,
	}, config.API)
	peer.Servers.Add(lifecycle.Item{
		Name:  "api",
		Run:   peer.API.Server.Run,
		Close: peer.API.Server.Close,
	})

	return peer, nil
}

// subscribeActivityLog mirrors every published event into the debug log.
func subscribeActivityLog(log *zap.Logger, bus *events.Bus) {
	for _, topic := range events.Topics {
		topic := topic
		bus.Subscribe(topic, "activity-log", func(ctx context.Context, payload map[string]any) error {
			log.Debug("event", zap.String("type", topic), zap.Any("payload", payload))
			return nil
		})
	}
}

// Run runs the control peer until the context is canceled.
func (peer *Peer) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	group, ctx := errgroup.WithContext(ctx)
	peer.Servers.Run(ctx, group)
	peer.Services.Run(ctx, group)
	return group.Wait()
}

// Close closes all the resources.
func (peer *Peer) Close() error {
	return errs.Combine(
		peer.Servers.Close(),
		peer.Services.Close(),
	)
}
