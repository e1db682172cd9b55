// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package hashguess_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ouroboros.dev/ouroboros/control/hashguess"
	"ouroboros.dev/ouroboros/control/problems"
)

func TestGuess(t *testing.T) {
	tests := []struct {
		material string
		top      string
		topID    int
	}{
		{"5f4dcc3b5aa765d61d8327deb882cf99", "MD5", 0},
		{"5baa61e4c9b93f3f0682250b6cf8331b7ee68fd8", "SHA-1", 100},
		{"5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8", "SHA2-256", 1400},
		{"$2b$12$KIXQdEGmIsqqXsJqz8G3XeJ9Sz9gW2hE9kqQYm0HnW0fXxW3h8PMG", "bcrypt", 3200},
		{"$1$abcdefgh$0123456789abcdefghijk", "md5crypt", 500},
		{"$6$rounds=5000$salt$hashhashhash", "sha512crypt", 1800},
		{"$P$B0123456789abcdefghijklmnopqrs", "phpass", 400},
		{"*94BDCEBE19083CE2A1F959FD02F964C7AF4CFC29", "MySQL4.1/MySQL5", 300},
		{"$krb5tgs$23$*user$REALM$spn*$0123456789abcdef", "Kerberos 5 TGS-REP", 13100},
	}
	for _, tt := range tests {
		candidates, err := hashguess.Guess(tt.material)
		require.NoError(t, err, tt.material)
		require.NotEmpty(t, candidates, tt.material)
		require.Equal(t, tt.top, candidates[0].Name, tt.material)
		require.Equal(t, tt.topID, candidates[0].HashTypeID, tt.material)
	}
}

func TestGuessAmbiguous(t *testing.T) {
	// a 32-digit hex string matches both MD5 and NTLM; MD5 wins on confidence
	candidates, err := hashguess.Guess("5f4dcc3b5aa765d61d8327deb882cf99")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, "MD5", candidates[0].Name)
	require.Equal(t, "NTLM", candidates[1].Name)
	require.Greater(t, candidates[0].Confidence, candidates[1].Confidence)
}

func TestGuessUsesFirstLine(t *testing.T) {
	material := "\n\n5baa61e4c9b93f3f0682250b6cf8331b7ee68fd8\nnot-a-hash\n"
	candidates, err := hashguess.Guess(material)
	require.NoError(t, err)
	require.Equal(t, "SHA-1", candidates[0].Name)
}

func TestGuessNoMatch(t *testing.T) {
	candidates, err := hashguess.Guess("definitely not a hash")
	require.NoError(t, err)
	require.Empty(t, candidates)
	require.NotNil(t, candidates)
}

func TestGuessEmpty(t *testing.T) {
	_, err := hashguess.Guess("   \n \n")
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 400, problem.Status)
}
