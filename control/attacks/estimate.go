// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package attacks

import (
	"fmt"
	"math"

	"ouroboros.dev/ouroboros/control/problems"
)

// builtinCharsets maps hashcat charset tokens to their sizes.
var builtinCharsets = map[byte]int64{
	'l': 26,  // lowercase
	'u': 26,  // uppercase
	'd': 10,  // digits
	's': 33,  // specials
	'a': 95,  // all printable
	'b': 256, // all bytes
	'h': 16,  // lowercase hex
	'H': 16,  // uppercase hex
}

// EstimateParams describe the attack configuration to estimate.
type EstimateParams struct {
	Mode Mode
	Mask string
	// Custom charsets bind to ?1 through ?4 in mask order.
	CustomCharsets []string
	// Line counts of the referenced resources, zero when unknown.
	WordListLines int64
	RuleListLines int64
}

// Estimate is the keyspace and complexity of an attack configuration.
type Estimate struct {
	Keyspace        int64
	ComplexityScore float64
}

// MaskKeyspace computes the keyspace of a mask as the product of per-position
// charset sizes. Literal characters contribute a factor of one.
func MaskKeyspace(mask string, custom []string) (int64, error) {
	if mask == "" {
		return 0, problems.InvalidAttackConfig("Mask attacks require a mask")
	}

	keyspace := int64(1)
	for i := 0; i < len(mask); i++ {
		if mask[i] != '?' {
			continue
		}
		if i+1 >= len(mask) {
			return 0, problems.InvalidAttackConfig("Mask ends with a dangling '?'")
		}
		i++
		token := mask[i]
		switch {
		case token == '?':
			// escaped literal question mark
		case token >= '1' && token <= '4':
			idx := int(token - '1')
			if idx >= len(custom) || custom[idx] == "" {
				return 0, problems.InvalidAttackConfig(fmt.Sprintf(
					"Mask references custom charset ?%c which is not defined", token))
			}
			keyspace *= int64(len([]rune(custom[idx])))
		default:
			size, ok := builtinCharsets[token]
			if !ok {
				return 0, problems.InvalidAttackConfig(fmt.Sprintf(
					"Unknown charset token '?%c' in mask", token))
			}
			keyspace *= size
		}
	}
	return keyspace, nil
}

// EstimateKeyspace computes the keyspace and complexity score of an attack
// configuration. It is a pure function over the parameters.
func EstimateKeyspace(params EstimateParams) (Estimate, error) {
	var keyspace int64
	switch params.Mode {
	case ModeMask:
		var err error
		keyspace, err = MaskKeyspace(params.Mask, params.CustomCharsets)
		if err != nil {
			return Estimate{}, err
		}

	case ModeDictionary:
		keyspace = params.WordListLines
		if params.RuleListLines > 0 {
			keyspace *= params.RuleListLines
		}

	case ModeHybridDictMask, ModeHybridMaskDict:
		maskSide, err := MaskKeyspace(params.Mask, params.CustomCharsets)
		if err != nil {
			return Estimate{}, err
		}
		keyspace = params.WordListLines * maskSide

	default:
		return Estimate{}, problems.InvalidAttackConfig(fmt.Sprintf(
			"Unknown attack mode '%s'", params.Mode))
	}

	if keyspace < 0 {
		keyspace = 0
	}
	return Estimate{
		Keyspace:        keyspace,
		ComplexityScore: math.Round(math.Log10(float64(keyspace)+1)*100) / 100,
	}, nil
}
