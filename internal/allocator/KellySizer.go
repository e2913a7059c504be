/*

This file contains the Kelly-criterion position sizer. It stands apart from
the main sizing pipeline: callers feed it one pool's APR and volatility and
get back a conservative half-Kelly percentage of capital.

*/

package allocator

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// KellyPositionPercent estimates the fraction of capital to commit to a
// single pool from its APR and APR volatility, as a percentage in [0,50].
//
// The win probability is a normal-approximation heuristic: W = Phi(apr/std),
// the chance the realized return lands above zero if returns are normally
// distributed around the observed APR. The payoff ratio R reuses apr/std.
// The simplified Kelly fraction W - (1-W)/R is clamped to [0,100] and then
// halved; full Kelly overbets badly when the inputs are as rough as these.
// Missing or non-positive inputs yield 0.
func KellyPositionPercent(apr float64, aprStdDev float64) float64 {
	if math.IsNaN(apr) || math.IsInf(apr, 0) || apr <= 0 {
		return 0
	}
	if math.IsNaN(aprStdDev) || math.IsInf(aprStdDev, 0) || aprStdDev <= 0 {
		return 0
	}

	zScore := apr / aprStdDev
	winProbability := distuv.Normal{Mu: 0, Sigma: 1}.CDF(zScore)
	payoffRatio := zScore

	kellyFraction := winProbability - (1-winProbability)/payoffRatio

	percent := kellyFraction * 100
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	return percent / 2
}
