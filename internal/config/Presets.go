/*

This file contains the strategy preset table: one preset per risk tier.

The threshold, weight, and history values are the serving contract for the
scoring API and must not drift between deployments. Correlation, sizing, and
rebalancing knobs complete each tier's risk posture.

*/

package config

import (
	"fmt"
	"math"

	"github.com/dexlens/poolscout/internal/types"
)

// DefaultTopN bounds the pool list returned by the strategy endpoints when
// the caller does not ask for a specific count.
const DefaultTopN = 10

// DefaultHistoryDays is the snapshot window used when neither the caller nor
// a preset specifies one.
const DefaultHistoryDays = 7

// DefaultMinActionThreshold is the percentage drift between a position's
// current and optimal price range below which no range action is proposed.
const DefaultMinActionThreshold = 10.0

// StrategyPresets returns the full preset table keyed by tier. Built fresh
// on each call so callers can never mutate the canonical values.
func StrategyPresets() map[types.StrategyTier]types.StrategyPreset {
	return map[types.StrategyTier]types.StrategyPreset{
		types.TierLow:    lowRiskPreset(),
		types.TierMedium: mediumRiskPreset(),
		types.TierHigh:   highRiskPreset(),
	}
}

// PresetForTier resolves a single tier.
func PresetForTier(tier types.StrategyTier) (types.StrategyPreset, error) {
	preset, ok := StrategyPresets()[tier]
	if !ok {
		return types.StrategyPreset{}, fmt.Errorf("%w: no preset for strategy tier %q", types.ErrInvalidInput, tier)
	}
	return preset, nil
}

func lowRiskPreset() types.StrategyPreset {
	return types.StrategyPreset{
		Tier:        types.TierLow,
		Name:        "Conservative",
		Description: "Deep, established pools with stable pairs. Prioritizes capital preservation over yield.",

		// Only pools deep enough that a single LP cannot dominate them, and
		// yielding enough to cover gas and IL in calm markets. No age
		// ceiling; older pools are the point at this tier. Fee tiers 0.01%
		// and 0.05% are where stable pairs live.
		MinTVLUSD:         500000,
		MinAprPercent:     5,
		MaxPoolAgeDays:    0,
		PreferredFeeTiers: []int{100, 500},

		// Stable-leaning correlation posture: both-stable pairs are pinned
		// to a perfect score, exotic pairs are pushed to the floor, and
		// anything scoring under 0.6 is filtered outright.
		MinTokenCorrelation:     0.6,
		MaxTokenCorrelation:     1.0,
		PreferStableCorrelation: true,
		PreferStableBase:        true,
		AvoidExoticPairs:        true,
		CorrelationWeight:       0.15,

		// TVL carries the largest weight: at this tier liquidity depth is
		// the risk signal, not the yield.
		AprWeight:         0.2,
		TvlWeight:         0.3,
		VolatilityWeight:  0.2,
		TvlTrendWeight:    0.1,
		VolumeTrendWeight: 0.05,

		// Widest diversification of the three tiers; the per-position cap
		// bounds single-pool failure exposure. Positions under $100 cost
		// more in gas than they earn.
		TargetPositions:       4,
		ConcentrationFactor:   0.5,
		MaxPositionPercentage: 35,
		MinPositionUSD:        100,

		// Two weeks of snapshots smooths weekend volume dips. Wide price
		// ranges trade fee capture for fewer rebalances.
		HistoryDays:          14,
		RangeWidthMultiplier: 4.0,
	}
}

func mediumRiskPreset() types.StrategyPreset {
	return types.StrategyPreset{
		Tier:        types.TierMedium,
		Name:        "Balanced",
		Description: "Mid-size pools balancing yield against volatility and depth.",

		MinTVLUSD:         100000,
		MinAprPercent:     10,
		MaxPoolAgeDays:    0,
		PreferredFeeTiers: []int{500, 3000},

		MinTokenCorrelation:     0.3,
		MaxTokenCorrelation:     1.0,
		PreferStableCorrelation: false,
		PreferStableBase:        true,
		AvoidExoticPairs:        false,
		CorrelationWeight:       0.1,

		AprWeight:         0.3,
		TvlWeight:         0.2,
		VolatilityWeight:  0.15,
		TvlTrendWeight:    0.15,
		VolumeTrendWeight: 0.1,

		TargetPositions:       3,
		ConcentrationFactor:   0.5,
		MaxPositionPercentage: 40,
		MinPositionUSD:        100,

		HistoryDays:          7,
		RangeWidthMultiplier: 2.5,
	}
}

func highRiskPreset() types.StrategyPreset {
	return types.StrategyPreset{
		Tier:        types.TierHigh,
		Name:        "Aggressive",
		Description: "Small and young pools chased for momentum. Trend weights dominate; expect churn.",

		// Age ceiling keeps only young pools; aged pools have already been
		// farmed out at this size. No fee-tier preference.
		MinTVLUSD:         5000,
		MinAprPercent:     10,
		MaxPoolAgeDays:    90,
		PreferredFeeTiers: nil,

		// Negative correlation weight rewards exotic pairs instead of
		// penalizing them; no correlation floor.
		MinTokenCorrelation:     0.0,
		MaxTokenCorrelation:     1.0,
		PreferStableCorrelation: false,
		PreferStableBase:        false,
		AvoidExoticPairs:        false,
		CorrelationWeight:       -0.1,

		AprWeight:         0.45,
		TvlWeight:         0.1,
		VolatilityWeight:  0.05,
		TvlTrendWeight:    0.2,
		VolumeTrendWeight: 0.25,

		// Concentrated bets: two positions, half the capital allowed in one.
		TargetPositions:       2,
		ConcentrationFactor:   0.5,
		MaxPositionPercentage: 50,
		MinPositionUSD:        100,

		// Momentum decays too fast for a longer window here. Tight ranges
		// maximize fee capture while the trend holds.
		HistoryDays:          3,
		RangeWidthMultiplier: 1.5,
	}
}

// ValidatePreset rejects presets that would poison the scoring pipeline.
// Called once at startup; a failure here is a configuration error and fatal.
func ValidatePreset(p types.StrategyPreset) error {
	if p.Tier != types.TierLow && p.Tier != types.TierMedium && p.Tier != types.TierHigh {
		return fmt.Errorf("preset has unknown tier %q", p.Tier)
	}

	for name, v := range map[string]float64{
		"min_tvl_usd":           p.MinTVLUSD,
		"min_apr_percent":       p.MinAprPercent,
		"min_token_correlation": p.MinTokenCorrelation,
		"max_token_correlation": p.MaxTokenCorrelation,
		"apr_weight":            p.AprWeight,
		"tvl_weight":            p.TvlWeight,
		"volatility_weight":     p.VolatilityWeight,
		"tvl_trend_weight":      p.TvlTrendWeight,
		"volume_trend_weight":   p.VolumeTrendWeight,
		"correlation_weight":    p.CorrelationWeight,
		"concentration_factor":  p.ConcentrationFactor,
		"max_position_pct":      p.MaxPositionPercentage,
		"min_position_usd":      p.MinPositionUSD,
		"range_width_mult":      p.RangeWidthMultiplier,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("preset %s: %s is not finite", p.Tier, name)
		}
	}

	if p.MinTVLUSD < 0 || p.MinAprPercent < 0 {
		return fmt.Errorf("preset %s: thresholds must be non-negative", p.Tier)
	}
	if p.MinTokenCorrelation < 0 || p.MaxTokenCorrelation > 1 || p.MinTokenCorrelation > p.MaxTokenCorrelation {
		return fmt.Errorf("preset %s: correlation bounds must satisfy 0 <= min <= max <= 1", p.Tier)
	}
	if p.AprWeight < 0 || p.TvlWeight < 0 || p.VolatilityWeight < 0 || p.TvlTrendWeight < 0 || p.VolumeTrendWeight < 0 {
		return fmt.Errorf("preset %s: metric weights must be non-negative (only correlation_weight may be negative)", p.Tier)
	}
	if math.Abs(p.CorrelationWeight) >= 1 {
		return fmt.Errorf("preset %s: |correlation_weight| must be below 1, got %f", p.Tier, p.CorrelationWeight)
	}
	if p.TargetPositions < 1 {
		return fmt.Errorf("preset %s: target_positions must be at least 1", p.Tier)
	}
	if p.MaxPositionPercentage <= 0 || p.MaxPositionPercentage > 100 {
		return fmt.Errorf("preset %s: max_position_percentage must be in (0, 100]", p.Tier)
	}
	if p.HistoryDays < 1 {
		return fmt.Errorf("preset %s: history_days must be at least 1", p.Tier)
	}
	if p.RangeWidthMultiplier <= 0 {
		return fmt.Errorf("preset %s: range_width_multiplier must be positive", p.Tier)
	}
	if p.MaxPoolAgeDays < 0 {
		return fmt.Errorf("preset %s: max_pool_age_days must not be negative", p.Tier)
	}

	return nil
}

// ValidatePresets checks the whole table, including that every tier is
// present exactly once.
func ValidatePresets(presets map[types.StrategyTier]types.StrategyPreset) error {
	for _, tier := range types.AllStrategyTiers() {
		preset, ok := presets[tier]
		if !ok {
			return fmt.Errorf("preset table is missing tier %q", tier)
		}
		if preset.Tier != tier {
			return fmt.Errorf("preset table entry %q carries tier %q", tier, preset.Tier)
		}
		if err := ValidatePreset(preset); err != nil {
			return err
		}
	}
	return nil
}
