// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package sync2_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"ouroboros.dev/ouroboros/internal/sync2"
)

func TestCycle_Basic(t *testing.T) {
	t.Parallel()

	var count int64
	cycle := sync2.NewCycle(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var group errgroup.Group
	group.Go(func() error {
		return cycle.Run(ctx, func(ctx context.Context) error {
			atomic.AddInt64(&count, 1)
			return nil
		})
	})

	cycle.Pause()
	cycle.TriggerWait()
	cycle.TriggerWait()
	cycle.Stop()

	require.NoError(t, group.Wait())
	// one run on start plus two explicit triggers
	require.GreaterOrEqual(t, atomic.LoadInt64(&count), int64(3))
}

func TestCycle_RunError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	cycle := sync2.NewCycle(time.Second)

	err := cycle.Run(context.Background(), func(ctx context.Context) error {
		return boom
	})
	require.True(t, errors.Is(err, boom))

	// closing after a failed run must not block
	cycle.Close()
}

func TestCycle_ContextCancel(t *testing.T) {
	t.Parallel()

	cycle := sync2.NewCycle(time.Second)

	ctx, cancel := context.WithCancel(context.Background())

	var group errgroup.Group
	group.Go(func() error {
		return cycle.Run(ctx, func(ctx context.Context) error {
			return nil
		})
	})

	cancel()
	err := group.Wait()
	require.True(t, errors.Is(err, context.Canceled))

	cycle.Close()
}
