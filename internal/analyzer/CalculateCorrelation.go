/*

This file contains the token correlation estimator. It is a deterministic
classification lookup over static token sets, not a Pearson correlation
measured from price history; treat the score as a heuristic proxy for how
closely the pair's prices move together.

*/

package analyzer

import (
	"github.com/dexlens/poolscout/internal/config"
	"github.com/dexlens/poolscout/internal/types"
)

// Correlation scores per pair classification. First match wins: both
// stable, one stable, any major, exotic.
const (
	CORRELATION_BOTH_STABLE           = 0.95
	CORRELATION_BOTH_STABLE_PREFERRED = 1.0
	CORRELATION_ONE_STABLE            = 0.8
	CORRELATION_ONE_STABLE_PREFERRED  = 0.9
	CORRELATION_MAJOR                 = 0.6
	CORRELATION_EXOTIC                = 0.3
	CORRELATION_EXOTIC_AVOIDED        = 0.1
)

// EstimateTokenCorrelation classifies the pool's token pair against the
// static stable and major sets and returns a score in [0,1]. Preference
// flags shift the score at the classification edges.
func EstimateTokenCorrelation(token0 types.Token, token1 types.Token, prefs types.CorrelationPreferences) float64 {
	symbol0 := token0.NormalizedSymbol()
	symbol1 := token1.NormalizedSymbol()

	stable0 := config.IsStableSymbol(symbol0)
	stable1 := config.IsStableSymbol(symbol1)

	switch {
	case stable0 && stable1:
		if prefs.PreferStableCorrelation {
			return CORRELATION_BOTH_STABLE_PREFERRED
		}
		return CORRELATION_BOTH_STABLE
	case stable0 || stable1:
		if prefs.PreferStableBase {
			return CORRELATION_ONE_STABLE_PREFERRED
		}
		return CORRELATION_ONE_STABLE
	case config.IsMajorSymbol(symbol0) || config.IsMajorSymbol(symbol1):
		return CORRELATION_MAJOR
	default:
		if prefs.AvoidExoticPairs {
			return CORRELATION_EXOTIC_AVOIDED
		}
		return CORRELATION_EXOTIC
	}
}

// MeetsCorrelationCriteria reports whether a correlation score falls inside
// the inclusive [minCorrelation, maxCorrelation] band.
func MeetsCorrelationCriteria(correlation float64, minCorrelation float64, maxCorrelation float64) bool {
	return correlation >= minCorrelation && correlation <= maxCorrelation
}
