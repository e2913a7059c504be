package planner

import "math"

// EstimateImpermanentLoss returns the impermanent loss percentage for a
// constant-product position given the relative price change of one token
// against the other (0 = unchanged, 1 = doubled, -0.5 = halved). The result
// is zero or negative. A ratio at or below -1 means the price went to zero,
// which is a total loss of that side; non-finite input degrades to zero.
func EstimateImpermanentLoss(priceChangeRatio float64) float64 {
	if math.IsNaN(priceChangeRatio) || math.IsInf(priceChangeRatio, 0) {
		return 0
	}
	if priceChangeRatio <= -1 {
		return -100
	}

	return (2*math.Sqrt(1+priceChangeRatio)/(2+priceChangeRatio) - 1) * 100
}

// FeeVsImpermanentLoss nets accumulated fee yield against an impermanent
// loss estimate: (apr/365)*daysHeld + estimatedIL. The IL term is negative,
// so a positive result means fees have outrun the loss.
func FeeVsImpermanentLoss(apr float64, daysHeld float64, estimatedIL float64) float64 {
	if math.IsNaN(apr) || math.IsInf(apr, 0) || math.IsNaN(daysHeld) || math.IsInf(daysHeld, 0) {
		return estimatedIL
	}

	return apr/365*daysHeld + estimatedIL
}
