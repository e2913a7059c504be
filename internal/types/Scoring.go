/*

This file contains the strategy tiers, the per-tier preset records, and the
request-scoped options consumed by the scoring pipeline. Different presets
encode different risk appetites; the preset table itself lives in config.

*/

package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput marks caller-supplied values that fail validation. The web
// layer maps it to a 400 response; required fields are never silently
// coerced to defaults.
var ErrInvalidInput = errors.New("invalid input")

type StrategyTier string

const (
	TierLow    StrategyTier = "low"
	TierMedium StrategyTier = "medium"
	TierHigh   StrategyTier = "high"
)

// AllStrategyTiers returns the tiers in fixed low-to-high order.
func AllStrategyTiers() []StrategyTier {
	return []StrategyTier{TierLow, TierMedium, TierHigh}
}

// ParseStrategyTier validates a caller-supplied tier string.
func ParseStrategyTier(raw string) (StrategyTier, error) {
	switch StrategyTier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierLow:
		return TierLow, nil
	case TierMedium:
		return TierMedium, nil
	case TierHigh:
		return TierHigh, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy tier %q (expected low, medium or high)", ErrInvalidInput, raw)
	}
}

// CorrelationPreferences is the slice of a preset the correlation estimator
// needs to resolve pair classifications into scores.
type CorrelationPreferences struct {
	PreferStableCorrelation bool `json:"prefer_stable_correlation"`
	PreferStableBase        bool `json:"prefer_stable_base"`
	AvoidExoticPairs        bool `json:"avoid_exotic_pairs"`
}

// StrategyPreset holds all tunable thresholds, weights, and sizing knobs for
// one risk tier. Presets are built once at process start and never mutated
// at runtime; per-request overrides are expressed through ScoreOptions.
type StrategyPreset struct {
	Tier        StrategyTier `json:"tier"`
	Name        string       `json:"name"`
	Description string       `json:"description"`

	// --- Filter thresholds ---
	MinTVLUSD         float64 `json:"min_tvl_usd"`         // Pools under this TVL are excluded before scoring.
	MinAprPercent     float64 `json:"min_apr_percent"`     // Pools under this latest APR are excluded before scoring.
	MaxPoolAgeDays    int     `json:"max_pool_age_days"`   // Keep pools at most this old; 0 disables the age filter.
	PreferredFeeTiers []int   `json:"preferred_fee_tiers"` // Basis-point fee tiers to accept; empty means no preference.

	// --- Correlation preferences ---
	MinTokenCorrelation     float64 `json:"min_token_correlation"` // Inclusive lower bound on the pair correlation score.
	MaxTokenCorrelation     float64 `json:"max_token_correlation"` // Inclusive upper bound on the pair correlation score.
	PreferStableCorrelation bool    `json:"prefer_stable_correlation"`
	PreferStableBase        bool    `json:"prefer_stable_base"`
	AvoidExoticPairs        bool    `json:"avoid_exotic_pairs"`

	// --- Scoring weights ---
	// Weights need not sum to 1; they are only renormalized when a non-zero
	// correlation weight is present.
	AprWeight         float64 `json:"apr_weight"`
	TvlWeight         float64 `json:"tvl_weight"`
	VolatilityWeight  float64 `json:"volatility_weight"`
	TvlTrendWeight    float64 `json:"tvl_trend_weight"`
	VolumeTrendWeight float64 `json:"volume_trend_weight"`
	CorrelationWeight float64 `json:"correlation_weight"` // Negative rewards low-correlation (exotic) pairs.

	// --- Position sizing ---
	TargetPositions       int     `json:"target_positions"`        // Pools selected in score-weighted sizing.
	ConcentrationFactor   float64 `json:"concentration_factor"`    // Skews capital toward higher-ranked pools.
	MaxPositionPercentage float64 `json:"max_position_percentage"` // Per-position cap; excess is redistributed.
	MinPositionUSD        float64 `json:"min_position_usd"`        // Positions below this dollar size are dropped.

	// --- Data window and rebalancing ---
	HistoryDays          int     `json:"history_days"`           // Daily snapshots fetched and analyzed per pool.
	RangeWidthMultiplier float64 `json:"range_width_multiplier"` // Volatility multiple for the recommended price range half-width.
}

// CorrelationPrefs extracts the estimator-facing preference flags.
func (p StrategyPreset) CorrelationPrefs() CorrelationPreferences {
	return CorrelationPreferences{
		PreferStableCorrelation: p.PreferStableCorrelation,
		PreferStableBase:        p.PreferStableBase,
		AvoidExoticPairs:        p.AvoidExoticPairs,
	}
}

// ScoreOptions are the knobs for one scoring pass: a preset flattened down,
// with any caller overrides already applied. TopN <= 0 means no truncation.
type ScoreOptions struct {
	MinTVLUSD         float64
	MinAprPercent     float64
	MaxPoolAgeDays    int
	PreferredFeeTiers []int

	MinTokenCorrelation float64
	MaxTokenCorrelation float64
	CorrelationPrefs    CorrelationPreferences

	AprWeight         float64
	TvlWeight         float64
	VolatilityWeight  float64
	TvlTrendWeight    float64
	VolumeTrendWeight float64
	CorrelationWeight float64

	TopN        int
	HistoryDays int
}

// ScoreOptions flattens the preset into pipeline options. TopN is left 0
// (no truncation) for the caller to set.
func (p StrategyPreset) ScoreOptions() ScoreOptions {
	return ScoreOptions{
		MinTVLUSD:           p.MinTVLUSD,
		MinAprPercent:       p.MinAprPercent,
		MaxPoolAgeDays:      p.MaxPoolAgeDays,
		PreferredFeeTiers:   append([]int(nil), p.PreferredFeeTiers...),
		MinTokenCorrelation: p.MinTokenCorrelation,
		MaxTokenCorrelation: p.MaxTokenCorrelation,
		CorrelationPrefs:    p.CorrelationPrefs(),
		AprWeight:           p.AprWeight,
		TvlWeight:           p.TvlWeight,
		VolatilityWeight:    p.VolatilityWeight,
		TvlTrendWeight:      p.TvlTrendWeight,
		VolumeTrendWeight:   p.VolumeTrendWeight,
		CorrelationWeight:   p.CorrelationWeight,
		HistoryDays:         p.HistoryDays,
	}
}
