/*

This file contains the scoring and filtering pipeline. It turns a raw pool
set into a ranked, truncated list of scored pools for one strategy: metrics,
correlation, threshold filters, min-max normalization, weighted composite
score.

*/

package analyzer

import (
	"math"
	"sort"
	"time"

	"github.com/dexlens/poolscout/internal/logger"
	"github.com/dexlens/poolscout/internal/types"
	"github.com/dexlens/poolscout/internal/utils"
)

var scoreLogger = logger.GetForComponent("pool_scorer")

// candidateMetrics is a pool's scoring inputs with every missing metric
// already defaulted to zero. One null metric must never sink a whole pool.
type candidateMetrics struct {
	apr         float64
	tvl         float64
	stdDev      float64
	tvlTrend    float64
	volumeTrend float64
	correlation float64
}

type metricBounds struct {
	min float64
	max float64
}

// pipelineBounds holds per-metric min/max over the entire candidate set.
// Bounds are taken before threshold filtering so normalization is stable
// against the whole universe, not just the survivors.
type pipelineBounds struct {
	apr         metricBounds
	tvl         metricBounds
	stdDev      metricBounds
	tvlTrend    metricBounds
	volumeTrend metricBounds
	correlation metricBounds
}

type scoringWeights struct {
	apr         float64
	tvl         float64
	volatility  float64
	tvlTrend    float64
	volumeTrend float64
	correlation float64
}

// ScorePools runs the full pipeline over the candidate pools and returns
// them scored, ranked descending, and truncated to opts.TopN (no truncation
// when TopN <= 0). An empty candidate set short-circuits to an empty result
// before any bounds computation.
func ScorePools(pools []types.Pool, opts types.ScoreOptions) []types.ScoredPool {
	if len(pools) == 0 {
		scoreLogger.Debug().Msg("No candidate pools to score")
		return []types.ScoredPool{}
	}

	// Metrics and the correlation heuristic for every candidate, before
	// any filtering.
	candidates := make([]types.ScoredPool, 0, len(pools))
	inputs := make([]candidateMetrics, 0, len(pools))
	for _, pool := range pools {
		scored := ComputePoolMetrics(pool, opts.HistoryDays)
		correlation := EstimateTokenCorrelation(scored.Token0, scored.Token1, opts.CorrelationPrefs)
		scored.Correlation = types.FloatPtr(correlation)

		candidates = append(candidates, scored)
		inputs = append(inputs, candidateInputs(scored))
	}

	bounds := computeBounds(inputs)

	// Threshold filter.
	now := time.Now()
	filtered := make([]types.ScoredPool, 0, len(candidates))
	filteredInputs := make([]candidateMetrics, 0, len(candidates))
	for i, candidate := range candidates {
		keep, reason := passesFilters(candidate, inputs[i], opts, now)
		if !keep {
			scoreLogger.Debug().
				Str("poolID", candidate.ID).
				Str("pair", candidate.PairLabel()).
				Str("reason", reason).
				Msg("Pool filtered out")
			continue
		}
		filtered = append(filtered, candidate)
		filteredInputs = append(filteredInputs, inputs[i])
	}

	if len(filtered) == 0 {
		scoreLogger.Info().
			Int("candidateCount", len(candidates)).
			Msg("No pools passed strategy filters")
		return []types.ScoredPool{}
	}

	// Normalize and combine.
	weights := resolveWeights(opts)
	for i := range filtered {
		filtered[i].Score = types.FloatPtr(compositeScore(filtered[i].ID, filteredInputs[i], bounds, weights))
	}

	// Rank. The stable sort keeps input order for equal scores.
	sort.SliceStable(filtered, func(i, j int) bool {
		return *filtered[i].Score > *filtered[j].Score
	})

	if opts.TopN > 0 && len(filtered) > opts.TopN {
		filtered = filtered[:opts.TopN]
	}

	scoreLogger.Info().
		Int("candidateCount", len(candidates)).
		Int("scoredCount", len(filtered)).
		Msg("Pools scored and ranked")

	return filtered
}

// AverageApr is the mean latest APR over pools that have one; 0 when none
// do.
func AverageApr(pools []types.ScoredPool) float64 {
	var sum float64
	count := 0
	for _, pool := range pools {
		if pool.Apr != nil {
			sum += *pool.Apr
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func candidateInputs(candidate types.ScoredPool) candidateMetrics {
	tvl, err := utils.ParseNonNegativeDecimal(candidate.TotalValueLockedUSD)
	if err != nil {
		tvl = 0
	}
	return candidateMetrics{
		apr:         scoringValue(candidate.Apr),
		tvl:         tvl,
		stdDev:      scoringValue(candidate.AprStdDev),
		tvlTrend:    scoringValue(candidate.TvlTrendPct),
		volumeTrend: scoringValue(candidate.VolumeTrendPct),
		correlation: scoringValue(candidate.Correlation),
	}
}

func scoringValue(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func computeBounds(inputs []candidateMetrics) pipelineBounds {
	var b pipelineBounds
	for i, in := range inputs {
		if i == 0 {
			b = pipelineBounds{
				apr:         metricBounds{in.apr, in.apr},
				tvl:         metricBounds{in.tvl, in.tvl},
				stdDev:      metricBounds{in.stdDev, in.stdDev},
				tvlTrend:    metricBounds{in.tvlTrend, in.tvlTrend},
				volumeTrend: metricBounds{in.volumeTrend, in.volumeTrend},
				correlation: metricBounds{in.correlation, in.correlation},
			}
			continue
		}
		b.apr.extend(in.apr)
		b.tvl.extend(in.tvl)
		b.stdDev.extend(in.stdDev)
		b.tvlTrend.extend(in.tvlTrend)
		b.volumeTrend.extend(in.volumeTrend)
		b.correlation.extend(in.correlation)
	}
	return b
}

func (b *metricBounds) extend(v float64) {
	if v < b.min {
		b.min = v
	}
	if v > b.max {
		b.max = v
	}
}

// normalize min-max scales v into [0,1]. A constant metric contributes
// zero for every pool rather than dividing by zero.
func (b metricBounds) normalize(v float64) float64 {
	if b.max == b.min {
		return 0
	}
	return (v - b.min) / (b.max - b.min)
}

func passesFilters(candidate types.ScoredPool, in candidateMetrics, opts types.ScoreOptions, now time.Time) (bool, string) {
	if in.apr < opts.MinAprPercent {
		return false, "apr below minimum"
	}
	if in.tvl < opts.MinTVLUSD {
		return false, "tvl below minimum"
	}

	if opts.MaxPoolAgeDays > 0 && candidate.CreatedAtTimestamp != "" {
		createdAt, err := utils.ParseUnixTimestamp(candidate.CreatedAtTimestamp)
		if err == nil {
			ageDays := now.Sub(time.Unix(createdAt, 0)).Hours() / 24
			if ageDays > float64(opts.MaxPoolAgeDays) {
				return false, "pool older than maximum age"
			}
		}
	}

	if len(opts.PreferredFeeTiers) > 0 {
		feeTier, err := utils.ParseFeeTier(candidate.FeeTier)
		if err != nil || !containsFeeTier(opts.PreferredFeeTiers, feeTier) {
			return false, "fee tier not preferred"
		}
	}

	if !MeetsCorrelationCriteria(in.correlation, opts.MinTokenCorrelation, opts.MaxTokenCorrelation) {
		return false, "correlation outside bounds"
	}

	return true, ""
}

func containsFeeTier(tiers []int, tier int) bool {
	for _, t := range tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// resolveWeights applies the correlation weight-adjustment rule: when a
// non-zero correlation weight is present, every other weight is scaled by
// (1 - |cw|) / (sum of all weights including |cw|) so the total influence
// stays bounded. The correlation weight itself keeps its sign; a negative
// weight rewards low-correlation pairs.
func resolveWeights(opts types.ScoreOptions) scoringWeights {
	w := scoringWeights{
		apr:         sanitizeWeight(opts.AprWeight, "aprWeight"),
		tvl:         sanitizeWeight(opts.TvlWeight, "tvlWeight"),
		volatility:  sanitizeWeight(opts.VolatilityWeight, "volatilityWeight"),
		tvlTrend:    sanitizeWeight(opts.TvlTrendWeight, "tvlTrendWeight"),
		volumeTrend: sanitizeWeight(opts.VolumeTrendWeight, "volumeTrendWeight"),
	}

	cw := sanitizeWeight(opts.CorrelationWeight, "correlationWeight")
	if cw == 0 {
		return w
	}

	absCW := math.Abs(cw)
	total := w.apr + w.tvl + w.volatility + w.tvlTrend + w.volumeTrend + absCW
	if total <= 0 {
		w.correlation = cw
		return w
	}

	scale := (1 - absCW) / total
	w.apr *= scale
	w.tvl *= scale
	w.volatility *= scale
	w.tvlTrend *= scale
	w.volumeTrend *= scale
	w.correlation = cw
	return w
}

func sanitizeWeight(v float64, name string) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		scoreLogger.Warn().
			Str("weight", name).
			Msg("Non-finite weight treated as zero")
		return 0
	}
	return v
}

// compositeScore is the weighted sum of the normalized metrics. Volatility
// enters inverted: lower volatility is better.
func compositeScore(poolID string, in candidateMetrics, bounds pipelineBounds, weights scoringWeights) float64 {
	score := weights.apr*bounds.apr.normalize(in.apr) +
		weights.tvl*bounds.tvl.normalize(in.tvl) +
		weights.volatility*(1-bounds.stdDev.normalize(in.stdDev)) +
		weights.tvlTrend*bounds.tvlTrend.normalize(in.tvlTrend) +
		weights.volumeTrend*bounds.volumeTrend.normalize(in.volumeTrend) +
		weights.correlation*bounds.correlation.normalize(in.correlation)

	if math.IsNaN(score) || math.IsInf(score, 0) {
		scoreLogger.Warn().
			Str("poolID", poolID).
			Msg("Composite score came out non-finite, treated as zero")
		return 0
	}
	return score
}
