/*

This file contains the metrics engine. It derives APR, volatility, trend,
and regression metrics for a single pool from its daily snapshot window.

*/

package analyzer

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/dexlens/poolscout/internal/logger"
	"github.com/dexlens/poolscout/internal/types"
	"github.com/dexlens/poolscout/internal/utils"
)

var metricsLogger = logger.GetForComponent("pool_metrics")

const daysPerYear = 365.0

// daySample is one snapshot that passed the valid-day filter.
type daySample struct {
	fees   float64
	volume float64
	tvl    float64
}

// ComputePoolMetrics derives the per-pool metric set from up to historyDays
// of daily snapshots (newest first). Metrics that cannot be computed from
// the available data stay nil; malformed per-day values are skipped with a
// diagnostic. This function never fails: a pool with garbage history comes
// back with nil metrics, not an error.
func ComputePoolMetrics(pool types.Pool, historyDays int) types.ScoredPool {
	scored := types.ScoredPool{Pool: pool}

	window := pool.PoolDayData
	if historyDays >= 1 && len(window) > historyDays {
		window = window[:historyDays]
	}

	samples := collectValidDays(pool.ID, window)

	// The latest APR uses the newest snapshot's fees over the pool's
	// *current* TVL, not that day's TVL: the instant annualized yield at
	// current liquidity. This asymmetry is intentional.
	currentTVL, tvlErr := utils.ParseNonNegativeDecimal(pool.TotalValueLockedUSD)
	if tvlErr != nil {
		metricsLogger.Debug().
			Err(tvlErr).
			Str("poolID", pool.ID).
			Msg("Current TVL is unparseable, latest APR unavailable")
	} else if currentTVL > 0 && len(window) > 0 {
		day0Fees, feesErr := utils.ParseNonNegativeDecimal(window[0].FeesUSD)
		if feesErr != nil {
			metricsLogger.Debug().
				Err(feesErr).
				Str("poolID", pool.ID).
				Msg("Newest snapshot fees are unparseable, latest APR unavailable")
		} else {
			scored.Apr = finitePtr(day0Fees / currentTVL * daysPerYear * 100)
		}
	}

	if len(samples) > 0 {
		aprSeries := make([]float64, len(samples))
		volumes := make([]float64, len(samples))
		tvls := make([]float64, len(samples))
		for i, s := range samples {
			aprSeries[i] = s.fees / s.tvl * daysPerYear * 100
			volumes[i] = s.volume
			tvls[i] = s.tvl
		}

		scored.AverageAprWindow = finitePtr(stat.Mean(aprSeries, nil))
		scored.AverageVolumeWindow = finitePtr(stat.Mean(volumes, nil))

		stdDev := populationStdDev(aprSeries)
		scored.AprStdDev = finitePtr(stdDev)
		if scored.AverageAprWindow != nil && stdDev > 0 {
			scored.SharpeRatio = finitePtr(*scored.AverageAprWindow / stdDev)
		}

		if len(samples) >= 2 {
			newest := samples[0]
			oldest := samples[len(samples)-1]
			if oldest.tvl > 0 {
				scored.TvlTrendPct = finitePtr((newest.tvl - oldest.tvl) / oldest.tvl * 100)
			}
			if oldest.volume > 0 {
				scored.VolumeTrendPct = finitePtr((newest.volume - oldest.volume) / oldest.volume * 100)
			}
			scored.TvlSlope = regressionSlope(tvls)
			scored.VolumeSlope = regressionSlope(volumes)
		}
	}

	metricsLogger.Debug().
		Str("poolID", pool.ID).
		Str("pair", pool.PairLabel()).
		Int("snapshotCount", len(window)).
		Int("validDays", len(samples)).
		Msg("Pool metrics computed")

	return scored
}

// collectValidDays applies the valid-day filter: fees and TVL must parse
// to non-negative numbers and TVL must be positive. Volume rides along and
// defaults to zero when unparseable, so every series shares one
// subsequence and the regression day indexes line up.
func collectValidDays(poolID string, window []types.DailySnapshot) []daySample {
	samples := make([]daySample, 0, len(window))
	for i, day := range window {
		fees, feesErr := utils.ParseNonNegativeDecimal(day.FeesUSD)
		tvl, tvlErr := utils.ParseNonNegativeDecimal(day.TVLUSD)
		if feesErr != nil || tvlErr != nil || tvl <= 0 {
			metricsLogger.Debug().
				Str("poolID", poolID).
				Int("dayIndex", i).
				Int64("date", day.Date).
				Msg("Skipping snapshot that failed the valid-day filter")
			continue
		}

		volume, volumeErr := utils.ParseNonNegativeDecimal(day.VolumeUSD)
		if volumeErr != nil {
			metricsLogger.Warn().
				Err(volumeErr).
				Str("poolID", poolID).
				Int("dayIndex", i).
				Msg("Snapshot volume is unparseable, treating as zero")
			volume = 0
		}

		samples = append(samples, daySample{fees: fees, volume: volume, tvl: tvl})
	}
	return samples
}

// populationStdDev divides by N, not N-1. Windows here are a handful of
// days and the per-day APR series is the full population of interest; the
// small-window accuracy trade-off against sample stddev is accepted.
func populationStdDev(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	mean := stat.Mean(values, nil)

	var sumSqDiff float64
	for _, v := range values {
		sumSqDiff += (v - mean) * (v - mean)
	}

	return math.Sqrt(sumSqDiff / float64(n))
}

// regressionSlope fits the metric against its subsequence index (0 =
// newest) and returns the OLS slope, nil when the fit is degenerate. Note
// the index runs newest to oldest, so a growing metric has a negative
// slope.
func regressionSlope(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	indexes := make([]float64, len(values))
	for i := range indexes {
		indexes[i] = float64(i)
	}

	_, slope := stat.LinearRegression(indexes, values, nil, false)
	return finitePtr(slope)
}

// finitePtr degrades NaN and Inf to nil so they never leak into scoring or
// JSON output.
func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return types.FloatPtr(v)
}
