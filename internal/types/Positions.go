/*

This file contains the types for user-held positions and the rebalancing
recommendations produced for them. Positions arrive as caller input on the
rebalance API; nothing here is read from chain state.

*/

package types

import "time"

// PriceRange bounds a concentrated-liquidity position.
type PriceRange struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func (r PriceRange) Width() float64 {
	return r.Upper - r.Lower
}

func (r PriceRange) Midpoint() float64 {
	return (r.Lower + r.Upper) / 2
}

// Valid reports whether the range is a usable interval.
func (r PriceRange) Valid() bool {
	return r.Lower >= 0 && r.Upper > r.Lower
}

// Position is an LP position as supplied by the caller. PriceRange and
// CurrentPrice are optional; without either, range analysis is skipped for
// the position.
type Position struct {
	PoolID       string      `json:"poolId"`
	SizeUSD      float64     `json:"sizeUsd"`
	PriceRange   *PriceRange `json:"priceRange,omitempty"`
	CurrentPrice *float64    `json:"currentPrice,omitempty"`
	EntryDate    *time.Time  `json:"entryDate,omitempty"`
}

// ActionType classifies a rebalancing recommendation.
type ActionType string

const (
	ActionMaintain    ActionType = "MAINTAIN"
	ActionAdjustRange ActionType = "ADJUST_RANGE"
	ActionIncrease    ActionType = "INCREASE_POSITION"
	ActionDecrease    ActionType = "DECREASE_POSITION"
	ActionExit        ActionType = "EXIT_POSITION"
	ActionEnter       ActionType = "ENTER_POSITION"
)

// Reason codes attached to rebalance actions. Stable identifiers for
// programmatic consumers; the Reasons strings carry the human wording.
const (
	ReasonPoolDataUnavailable = "POOL_DATA_UNAVAILABLE"
	ReasonRangeDrift          = "RANGE_DRIFT"
	ReasonPriceNearBoundary   = "PRICE_NEAR_BOUNDARY"
	ReasonAprDeclining        = "APR_DECLINING"
	ReasonAprRising           = "APR_RISING"
	ReasonCorrelationBelowMin = "CORRELATION_BELOW_MINIMUM"
	ReasonAprBelowFloor       = "APR_BELOW_FLOOR"
	ReasonNewOpportunity      = "NEW_OPPORTUNITY"
)

// RebalanceAction is one prioritized recommendation for a position (or a
// proposed new entry). Priority runs 1 (routine) to 10 (urgent).
type RebalanceAction struct {
	ActionType            ActionType  `json:"actionType"`
	PoolID                string      `json:"poolId"`
	CurrentSizeUSD        *float64    `json:"currentSizeUsd,omitempty"`
	TargetSizeUSD         *float64    `json:"targetSizeUsd,omitempty"`
	CurrentPriceRange     *PriceRange `json:"currentPriceRange,omitempty"`
	RecommendedPriceRange *PriceRange `json:"recommendedPriceRange,omitempty"`
	ReasonCodes           []string    `json:"reasonCodes"`
	Reasons               []string    `json:"reasons"`
	Priority              int         `json:"priority"`
}

// PositionSizeRecommendation is one target allocation from the sizing module.
type PositionSizeRecommendation struct {
	PoolID         string  `json:"poolId"`
	Percentage     float64 `json:"percentage"`
	TargetValueUSD float64 `json:"targetValueUsd"`
}
