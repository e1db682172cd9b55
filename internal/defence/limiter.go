// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package defence protects authenticated endpoints against brute force
// attacks by tracking failures per client.
package defence

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ouroboros.dev/ouroboros/internal/sync2"
)

// attacker stores the failure rate of a single client.
type attacker struct {
	limiter *rate.Limiter
	expire  time.Time
}

// Limiter tracks authentication failures per client key and reports when
// a client should be locked out.
type Limiter struct {
	mu        sync.Mutex
	attackers map[string]*attacker

	attempts       int
	attemptsPeriod time.Duration
	lockDuration   time.Duration

	loop *sync2.Cycle
}

// NewLimiter creates a limiter that allows at most attempts failures per
// attemptsPeriod, forgets clients lockDuration after their last failure
// and sweeps stale entries every clearPeriod.
func NewLimiter(attempts int, attemptsPeriod, lockDuration, clearPeriod time.Duration) *Limiter {
	return &Limiter{
		attackers:      map[string]*attacker{},
		attempts:       attempts,
		attemptsPeriod: attemptsPeriod,
		lockDuration:   lockDuration,
		loop:           sync2.NewCycle(clearPeriod),
	}
}

// Limit records a failed attempt for key and reports whether the client is
// still allowed to retry.
func (limiter *Limiter) Limit(key string) bool {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := time.Now()

	client, found := limiter.attackers[key]
	if !found {
		client = &attacker{
			limiter: rate.NewLimiter(rate.Every(limiter.attemptsPeriod), limiter.attempts),
		}
		limiter.attackers[key] = client
	}
	client.expire = now.Add(limiter.lockDuration)

	return client.limiter.AllowN(now, 1)
}

// Run periodically drops clients whose lock has expired.
func (limiter *Limiter) Run(ctx context.Context) error {
	return limiter.loop.Run(ctx, func(ctx context.Context) error {
		return limiter.cleanUp(ctx, time.Now())
	})
}

func (limiter *Limiter) cleanUp(ctx context.Context, now time.Time) error {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	for key, client := range limiter.attackers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if now.After(client.expire) {
			delete(limiter.attackers, key)
		}
	}

	return nil
}

// Close should be used when the limiter is no longer needed.
func (limiter *Limiter) Close() {
	limiter.loop.Close()
}
