/*

This file contains the position sizing module. It converts a scored pool
list and a capital amount into concrete per-pool dollar allocations, either
equal-weight or score-weighted with a concentration skew toward the
top-ranked pools.

*/

package allocator

import (
	"fmt"
	"math"
	"sort"

	"github.com/dexlens/poolscout/internal/logger"
	"github.com/dexlens/poolscout/internal/types"
)

var allocLogger = logger.GetForComponent("position_allocator")

// maxRedistributeIterations bounds the cap-and-redistribute loop; capping
// one position can push another over the cap, so the pass repeats until
// stable.
const maxRedistributeIterations = 20

// SizingOptions are the per-request knobs on top of the preset.
type SizingOptions struct {
	EqualWeight  bool
	MaxPositions int // overrides the preset's TargetPositions when > 0
}

// CalculatePositionSizes turns scored pools plus total capital into sized
// position recommendations. Pools are ranked by score internally, so the
// input order does not matter. Positions whose dollar size would fall below
// the preset minimum are dropped rather than rounded up.
func CalculatePositionSizes(pools []types.ScoredPool, totalUSD float64, preset types.StrategyPreset, opts SizingOptions) ([]types.PositionSizeRecommendation, error) {
	if math.IsNaN(totalUSD) || math.IsInf(totalUSD, 0) || totalUSD <= 0 {
		return nil, fmt.Errorf("%w: total investment must be a positive amount, got %f", types.ErrInvalidInput, totalUSD)
	}
	if len(pools) == 0 {
		return nil, fmt.Errorf("%w: no pools available for sizing", types.ErrInvalidInput)
	}

	ranked := rankByScore(pools)

	targetCount := preset.TargetPositions
	if opts.MaxPositions > 0 {
		targetCount = opts.MaxPositions
	}

	if opts.EqualWeight {
		return sizeEqualWeight(ranked, totalUSD, preset, targetCount), nil
	}
	return sizeScoreWeighted(ranked, totalUSD, preset, targetCount), nil
}

// rankByScore sorts descending by score without mutating the caller's
// slice. Pools with no score rank below every scored pool.
func rankByScore(pools []types.ScoredPool) []types.ScoredPool {
	ranked := append([]types.ScoredPool(nil), pools...)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := ranked[i].Score, ranked[j].Score
		if si == nil {
			return false
		}
		if sj == nil {
			return true
		}
		return *si > *sj
	})
	return ranked
}

// sizeEqualWeight spreads capital evenly: as many positions as the minimum
// position size affords, each capped at the preset's per-position maximum.
func sizeEqualWeight(ranked []types.ScoredPool, totalUSD float64, preset types.StrategyPreset, targetCount int) []types.PositionSizeRecommendation {
	count := len(ranked)
	if preset.MinPositionUSD > 0 {
		affordable := int(math.Floor(totalUSD / preset.MinPositionUSD))
		if affordable < count {
			count = affordable
		}
	}
	if targetCount > 0 && count > targetCount {
		count = targetCount
	}

	if count == 0 {
		allocLogger.Info().
			Float64("totalUSD", totalUSD).
			Float64("minPositionUSD", preset.MinPositionUSD).
			Msg("Capital too small for even one position")
		return []types.PositionSizeRecommendation{}
	}

	percentage := 100.0 / float64(count)
	if preset.MaxPositionPercentage > 0 && percentage > preset.MaxPositionPercentage {
		percentage = preset.MaxPositionPercentage
	}

	recommendations := make([]types.PositionSizeRecommendation, 0, count)
	for i := 0; i < count; i++ {
		recommendations = append(recommendations, types.PositionSizeRecommendation{
			PoolID:         ranked[i].ID,
			Percentage:     percentage,
			TargetValueUSD: totalUSD * percentage / 100,
		})
	}

	allocLogger.Debug().
		Int("positions", count).
		Float64("percentageEach", percentage).
		Msg("Equal-weight sizing computed")

	return recommendations
}

// sizeScoreWeighted allocates by score with a concentration multiplier that
// skews capital toward the top of the ranking, then enforces the
// per-position cap by redistributing the excess among uncapped positions.
func sizeScoreWeighted(ranked []types.ScoredPool, totalUSD float64, preset types.StrategyPreset, targetCount int) []types.PositionSizeRecommendation {
	n := targetCount
	if n <= 0 || n > len(ranked) {
		n = len(ranked)
	}
	selected := ranked[:n]

	weights := make([]float64, n)
	totalWeight := 0.0
	for i, pool := range selected {
		score := 0.0
		if pool.Score != nil && !math.IsNaN(*pool.Score) && !math.IsInf(*pool.Score, 0) {
			score = *pool.Score
		}

		multiplier := 1.0
		if n > 1 {
			multiplier = 1 + preset.ConcentrationFactor*float64(n-i-1)/float64(n-1)
		}

		weights[i] = score * multiplier
		totalWeight += weights[i]
	}

	percentages := make([]float64, n)
	if totalWeight > 0 {
		for i := range weights {
			percentages[i] = weights[i] / totalWeight * 100
		}
	} else {
		// Scores are all zero or negative, so score-proportional weighting
		// has nothing to work with. Fall back to an even spread.
		allocLogger.Warn().
			Int("positions", n).
			Msg("No positive score mass, falling back to even spread")
		for i := range percentages {
			percentages[i] = 100.0 / float64(n)
		}
	}

	percentages = enforcePositionCap(percentages, weights, preset.MaxPositionPercentage)

	recommendations := make([]types.PositionSizeRecommendation, 0, n)
	for i, pool := range selected {
		valueUSD := totalUSD * percentages[i] / 100
		if preset.MinPositionUSD > 0 && valueUSD < preset.MinPositionUSD {
			allocLogger.Debug().
				Str("poolID", pool.ID).
				Float64("valueUSD", valueUSD).
				Float64("minPositionUSD", preset.MinPositionUSD).
				Msg("Dropping position below minimum dollar size")
			continue
		}
		recommendations = append(recommendations, types.PositionSizeRecommendation{
			PoolID:         pool.ID,
			Percentage:     percentages[i],
			TargetValueUSD: valueUSD,
		})
	}

	allocLogger.Debug().
		Int("selected", n).
		Int("recommended", len(recommendations)).
		Float64("totalUSD", totalUSD).
		Msg("Score-weighted sizing computed")

	return recommendations
}

// enforcePositionCap caps single positions at maxPercentage and hands the
// clipped excess to the uncapped positions in proportion to their weights.
// When every position ends up capped the excess stays unallocated; the sum
// of percentages may then be under 100.
func enforcePositionCap(percentages []float64, weights []float64, maxPercentage float64) []float64 {
	if maxPercentage <= 0 {
		return percentages
	}

	capped := make([]bool, len(percentages))
	for iteration := 0; iteration < maxRedistributeIterations; iteration++ {
		excess := 0.0
		uncappedWeight := 0.0
		for i := range percentages {
			if capped[i] {
				continue
			}
			if percentages[i] > maxPercentage {
				excess += percentages[i] - maxPercentage
				percentages[i] = maxPercentage
				capped[i] = true
			} else {
				uncappedWeight += weights[i]
			}
		}

		if excess == 0 {
			break
		}
		if uncappedWeight <= 0 {
			allocLogger.Debug().
				Float64("unallocatedPercent", excess).
				Msg("All positions capped, leaving excess unallocated")
			break
		}

		for i := range percentages {
			if !capped[i] {
				percentages[i] += excess * weights[i] / uncappedWeight
			}
		}
	}

	return percentages
}
