// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package defence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	key1           = "10.88.0.1"
	key2           = "10.88.0.2"
	maxAttempts    = 3
	attemptsPeriod = time.Minute
	lockDuration   = time.Minute
	clearPeriod    = 3 * time.Minute
)

func TestLimiter(t *testing.T) {
	limiter := NewLimiter(maxAttempts, attemptsPeriod, lockDuration, clearPeriod)

	t.Run("constructor", func(t *testing.T) {
		assert.Equal(t, maxAttempts, limiter.attempts)
		assert.Equal(t, attemptsPeriod, limiter.attemptsPeriod)
		assert.Equal(t, lockDuration, limiter.lockDuration)
	})

	t.Run("not banned below the attempts budget", func(t *testing.T) {
		result := false
		for i := 0; i < maxAttempts; i++ {
			result = limiter.Limit(key1)
		}
		assert.True(t, result)
	})

	t.Run("banned once the budget is exceeded", func(t *testing.T) {
		result := true
		for i := 0; i <= maxAttempts; i++ {
			result = limiter.Limit(key2)
		}
		assert.False(t, result)
	})

	t.Run("cleanup drops expired clients", func(t *testing.T) {
		require.NotEmpty(t, limiter.attackers)

		err := limiter.cleanUp(context.Background(), time.Now().Add(2*lockDuration))
		require.NoError(t, err)
		assert.Empty(t, limiter.attackers)
	})
}

func TestLimiterIndependentKeys(t *testing.T) {
	limiter := NewLimiter(maxAttempts, attemptsPeriod, lockDuration, clearPeriod)

	for i := 0; i <= maxAttempts; i++ {
		limiter.Limit(key1)
	}

	// key2 has its own budget even while key1 is locked
	assert.False(t, limiter.Limit(key1))
	assert.True(t, limiter.Limit(key2))
}
