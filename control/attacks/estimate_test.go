// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package attacks_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ouroboros.dev/ouroboros/control/attacks"
)

func TestMaskKeyspace(t *testing.T) {
	tests := []struct {
		mask     string
		custom   []string
		expected int64
	}{
		{"?d?d?d?d", nil, 10000},
		{"?l?l?l", nil, 26 * 26 * 26},
		{"?u?d", nil, 260},
		{"?a", nil, 95},
		{"?b?b", nil, 256 * 256},
		{"?h?H", nil, 256},
		{"abc", nil, 1},
		{"pass?d", nil, 10},
		{"???d", nil, 10}, // ?? is an escaped literal
		{"?1?1", []string{"abc"}, 9},
		{"?1?2", []string{"ab", "xyz"}, 6},
	}
	for _, tt := range tests {
		keyspace, err := attacks.MaskKeyspace(tt.mask, tt.custom)
		require.NoError(t, err, tt.mask)
		require.Equal(t, tt.expected, keyspace, tt.mask)
	}
}

func TestMaskKeyspaceErrors(t *testing.T) {
	_, err := attacks.MaskKeyspace("", nil)
	require.Error(t, err)

	_, err = attacks.MaskKeyspace("?d?", nil)
	require.Error(t, err)

	_, err = attacks.MaskKeyspace("?z", nil)
	require.Error(t, err)

	// referenced custom charset is not defined
	_, err = attacks.MaskKeyspace("?1", nil)
	require.Error(t, err)
	_, err = attacks.MaskKeyspace("?2", []string{"abc"})
	require.Error(t, err)
}

func TestEstimateKeyspace(t *testing.T) {
	estimate, err := attacks.EstimateKeyspace(attacks.EstimateParams{
		Mode: attacks.ModeMask,
		Mask: "?d?d?d?d",
	})
	require.NoError(t, err)
	require.Equal(t, int64(10000), estimate.Keyspace)
	require.Equal(t, 4.0, estimate.ComplexityScore)

	estimate, err = attacks.EstimateKeyspace(attacks.EstimateParams{
		Mode:          attacks.ModeDictionary,
		WordListLines: 1000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1000), estimate.Keyspace)

	estimate, err = attacks.EstimateKeyspace(attacks.EstimateParams{
		Mode:          attacks.ModeDictionary,
		WordListLines: 1000,
		RuleListLines: 64,
	})
	require.NoError(t, err)
	require.Equal(t, int64(64000), estimate.Keyspace)

	estimate, err = attacks.EstimateKeyspace(attacks.EstimateParams{
		Mode:          attacks.ModeHybridDictMask,
		Mask:          "?d?d",
		WordListLines: 500,
	})
	require.NoError(t, err)
	require.Equal(t, int64(50000), estimate.Keyspace)

	_, err = attacks.EstimateKeyspace(attacks.EstimateParams{Mode: "bogus"})
	require.Error(t, err)
}

func TestEstimateComplexityMonotonic(t *testing.T) {
	small, err := attacks.EstimateKeyspace(attacks.EstimateParams{
		Mode: attacks.ModeMask, Mask: "?d?d",
	})
	require.NoError(t, err)
	large, err := attacks.EstimateKeyspace(attacks.EstimateParams{
		Mode: attacks.ModeMask, Mask: "?a?a?a?a?a?a",
	})
	require.NoError(t, err)
	require.Greater(t, large.ComplexityScore, small.ComplexityScore)
}
