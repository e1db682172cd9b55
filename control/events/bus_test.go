// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"
	"go.uber.org/zap/zaptest"

	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/internal/testcontext"
)

func TestPublishInSubscriptionOrder(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	bus := events.NewBus(zaptest.NewLogger(t))

	var order []string
	record := func(name string) events.Handler {
		return func(ctx context.Context, payload map[string]any) error {
			order = append(order, name)
			return nil
		}
	}

	bus.Subscribe(events.CampaignCreated, "first", record("first"))
	bus.Subscribe(events.CampaignCreated, "second", record("second"))
	bus.Subscribe(events.CampaignCreated, "third", record("third"))

	failures := bus.Publish(ctx, events.CampaignCreated, map[string]any{"campaign_id": 1})
	require.Empty(t, failures)
	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	bus := events.NewBus(zaptest.NewLogger(t))
	require.Empty(t, bus.Publish(ctx, events.HashCracked, map[string]any{"hash": "abc"}))
}

func TestHandlerFailureIsolation(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	bus := events.NewBus(zaptest.NewLogger(t))

	var called []string
	bus.Subscribe(events.TaskFailed, "boom", func(ctx context.Context, payload map[string]any) error {
		called = append(called, "boom")
		return errs.New("handler exploded")
	})
	bus.Subscribe(events.TaskFailed, "panics", func(ctx context.Context, payload map[string]any) error {
		called = append(called, "panics")
		panic("oh no")
	})
	bus.Subscribe(events.TaskFailed, "survivor", func(ctx context.Context, payload map[string]any) error {
		called = append(called, "survivor")
		return nil
	})

	failures := bus.Publish(ctx, events.TaskFailed, map[string]any{"task_id": 9})

	require.Equal(t, []string{"boom", "panics", "survivor"}, called)
	require.Len(t, failures, 2)
	require.Equal(t, "boom", failures[0].HandlerName)
	require.Equal(t, events.TaskFailed, failures[0].EventType)
	require.Error(t, failures[0].Err)
	require.Equal(t, "panics", failures[1].HandlerName)
	require.Contains(t, failures[1].Err.Error(), "handler panic")
}

func TestUnsubscribe(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	bus := events.NewBus(zaptest.NewLogger(t))

	calls := 0
	bus.Subscribe(events.AgentOffline, "counter", func(ctx context.Context, payload map[string]any) error {
		calls++
		return nil
	})

	bus.Publish(ctx, events.AgentOffline, nil)
	require.Equal(t, 1, calls)

	bus.Unsubscribe(events.AgentOffline, "counter")
	bus.Publish(ctx, events.AgentOffline, nil)
	require.Equal(t, 1, calls)

	// unsubscribing a handler that is not registered only logs
	bus.Unsubscribe(events.AgentOffline, "counter")
	bus.Unsubscribe("no.such.topic", "ghost")
}

func TestTopicsAreIndependent(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	bus := events.NewBus(zaptest.NewLogger(t))

	var got []string
	bus.Subscribe(events.AttackStarted, "a", func(ctx context.Context, payload map[string]any) error {
		got = append(got, events.AttackStarted)
		return nil
	})
	bus.Subscribe(events.AttackCompleted, "b", func(ctx context.Context, payload map[string]any) error {
		got = append(got, events.AttackCompleted)
		return nil
	})

	bus.Publish(ctx, events.AttackStarted, nil)
	require.Equal(t, []string{events.AttackStarted}, got)
}

func TestClear(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	bus := events.NewBus(zaptest.NewLogger(t))

	calls := 0
	bus.Subscribe(events.ResourceUploaded, "counter", func(ctx context.Context, payload map[string]any) error {
		calls++
		return nil
	})

	bus.Clear()
	require.Empty(t, bus.Publish(ctx, events.ResourceUploaded, nil))
	require.Zero(t, calls)
}

func TestDefaultIsSingleton(t *testing.T) {
	require.Same(t, events.Default(), events.Default())
}
