// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package hashguess detects likely hash algorithms from hash material with a
// table of format patterns.
package hashguess

import (
	"regexp"
	"sort"
	"strings"

	"ouroboros.dev/ouroboros/control/problems"
)

// Candidate is one possible hash algorithm, with a 0..1 confidence.
type Candidate struct {
	HashTypeID int
	Name       string
	Confidence float64
}

type pattern struct {
	hashTypeID int
	name       string
	confidence float64
	match      func(string) bool
}

var (
	hex32  = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	hex40  = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
	hex64  = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	hex128 = regexp.MustCompile(`^[0-9a-fA-F]{128}$`)
	hex16  = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)
	mysql  = regexp.MustCompile(`^\*[0-9A-F]{40}$`)
	netNT  = regexp.MustCompile(`^[^:]+::[^:]*:[0-9a-fA-F]{16}:[0-9a-fA-F]{32}:[0-9a-fA-F]+$`)
)

// hashcat mode numbers for the detected algorithms
var patterns = []pattern{
	{0, "MD5", 0.7, hex32.MatchString},
	{1000, "NTLM", 0.6, hex32.MatchString},
	{100, "SHA-1", 0.9, hex40.MatchString},
	{1400, "SHA2-256", 0.9, hex64.MatchString},
	{1700, "SHA2-512", 0.9, hex128.MatchString},
	{3000, "LM", 0.4, hex16.MatchString},
	{3200, "bcrypt", 0.98, func(s string) bool {
		return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
	}},
	{500, "md5crypt", 0.95, func(s string) bool { return strings.HasPrefix(s, "$1$") }},
	{1800, "sha512crypt", 0.95, func(s string) bool { return strings.HasPrefix(s, "$6$") }},
	{400, "phpass", 0.9, func(s string) bool {
		return strings.HasPrefix(s, "$P$") || strings.HasPrefix(s, "$H$")
	}},
	{300, "MySQL4.1/MySQL5", 0.95, mysql.MatchString},
	{5600, "NetNTLMv2", 0.9, netNT.MatchString},
	{13100, "Kerberos 5 TGS-REP", 0.98, func(s string) bool { return strings.HasPrefix(s, "$krb5tgs$") }},
}

// Guess returns candidate algorithms for the first non-empty line of the
// hash material, ordered by descending confidence.
func Guess(material string) ([]Candidate, error) {
	var sample string
	for _, line := range strings.Split(material, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			sample = line
			break
		}
	}
	if sample == "" {
		return nil, problems.InvalidHashFormat("No hash material provided")
	}

	candidates := []Candidate{}
	for _, p := range patterns {
		if p.match(sample) {
			candidates = append(candidates, Candidate{
				HashTypeID: p.hashTypeID,
				Name:       p.name,
				Confidence: p.confidence,
			})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates, nil
}
