package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexlens/poolscout/internal/types"
)

func metricsTestPool(currentTVL string, days []types.DailySnapshot) types.Pool {
	return types.Pool{
		ID:                  "0xpool",
		Token0:              types.Token{ID: "0xa", Symbol: "WETH", Name: "Wrapped Ether"},
		Token1:              types.Token{ID: "0xb", Symbol: "USDC", Name: "USD Coin"},
		FeeTier:             "3000",
		TotalValueLockedUSD: currentTVL,
		PoolDayData:         days,
	}
}

func TestComputePoolMetricsFullWindow(t *testing.T) {
	// Three valid days, newest first. Per-day APR series:
	//   day0: 10/1000*365*100 = 365.0
	//   day1: 8/950*365*100  ~= 307.3684
	//   day2: 12/1100*365*100 ~= 398.1818
	pool := metricsTestPool("1000", []types.DailySnapshot{
		{Date: 1700265600, FeesUSD: "10", VolumeUSD: "500", TVLUSD: "1000"},
		{Date: 1700179200, FeesUSD: "8", VolumeUSD: "450", TVLUSD: "950"},
		{Date: 1700092800, FeesUSD: "12", VolumeUSD: "400", TVLUSD: "1100"},
	})

	m := ComputePoolMetrics(pool, 7)

	require.NotNil(t, m.Apr)
	assert.InDelta(t, 365.0, *m.Apr, 1e-9)

	require.NotNil(t, m.AverageAprWindow)
	assert.InDelta(t, 356.8501, *m.AverageAprWindow, 0.001)

	require.NotNil(t, m.AverageVolumeWindow)
	assert.InDelta(t, 450.0, *m.AverageVolumeWindow, 1e-9)

	// Population standard deviation (divides by N, not N-1).
	require.NotNil(t, m.AprStdDev)
	assert.InDelta(t, 37.5199, *m.AprStdDev, 0.001)

	require.NotNil(t, m.SharpeRatio)
	assert.InDelta(t, *m.AverageAprWindow / *m.AprStdDev, *m.SharpeRatio, 1e-9)

	// Trends compare the newest valid day against the oldest.
	require.NotNil(t, m.TvlTrendPct)
	assert.InDelta(t, (1000.0-1100.0)/1100.0*100, *m.TvlTrendPct, 1e-9)

	require.NotNil(t, m.VolumeTrendPct)
	assert.InDelta(t, 25.0, *m.VolumeTrendPct, 1e-9)

	// Slopes regress against the day index with 0 = newest, so a series
	// that rises over real time comes out negative.
	require.NotNil(t, m.TvlSlope)
	assert.InDelta(t, 50.0, *m.TvlSlope, 1e-9)

	require.NotNil(t, m.VolumeSlope)
	assert.InDelta(t, -50.0, *m.VolumeSlope, 1e-9)

	// Correlation and score are attached later in the pipeline.
	assert.Nil(t, m.Correlation)
	assert.Nil(t, m.Score)
}

func TestComputePoolMetricsGarbageHistory(t *testing.T) {
	pool := metricsTestPool("not-a-number", []types.DailySnapshot{
		{Date: 1700265600, FeesUSD: "abc", VolumeUSD: "", TVLUSD: "-5"},
		{Date: 1700179200, FeesUSD: "", VolumeUSD: "x", TVLUSD: ""},
	})

	m := ComputePoolMetrics(pool, 7)

	assert.Nil(t, m.Apr)
	assert.Nil(t, m.AverageAprWindow)
	assert.Nil(t, m.AverageVolumeWindow)
	assert.Nil(t, m.AprStdDev)
	assert.Nil(t, m.SharpeRatio)
	assert.Nil(t, m.TvlTrendPct)
	assert.Nil(t, m.VolumeTrendPct)
	assert.Nil(t, m.TvlSlope)
	assert.Nil(t, m.VolumeSlope)

	// The input pool rides through untouched.
	assert.Equal(t, pool.ID, m.ID)
	assert.Equal(t, pool.PairLabel(), m.PairLabel())
}

func TestComputePoolMetricsLatestApr(t *testing.T) {
	day := types.DailySnapshot{Date: 1700265600, FeesUSD: "10", VolumeUSD: "100", TVLUSD: "1000"}

	tests := []struct {
		name       string
		currentTVL string
		days       []types.DailySnapshot
		wantApr    bool
	}{
		{"unparseable current tvl", "garbage", []types.DailySnapshot{day}, false},
		{"zero current tvl", "0", []types.DailySnapshot{day}, false},
		{"empty window", "1000", nil, false},
		{"unparseable newest fees", "1000", []types.DailySnapshot{{Date: 1, FeesUSD: "bad", VolumeUSD: "1", TVLUSD: "1000"}}, false},
		{"valid", "2000", []types.DailySnapshot{day}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := ComputePoolMetrics(metricsTestPool(tc.currentTVL, tc.days), 7)
			if !tc.wantApr {
				assert.Nil(t, m.Apr)
				return
			}
			require.NotNil(t, m.Apr)
			// Latest APR uses the pool's current TVL, not the day's own.
			assert.InDelta(t, 10.0/2000.0*365*100, *m.Apr, 1e-9)
		})
	}
}

func TestComputePoolMetricsSingleValidDay(t *testing.T) {
	pool := metricsTestPool("1000", []types.DailySnapshot{
		{Date: 1700265600, FeesUSD: "10", VolumeUSD: "500", TVLUSD: "1000"},
	})

	m := ComputePoolMetrics(pool, 7)

	require.NotNil(t, m.AverageAprWindow)
	assert.InDelta(t, 365.0, *m.AverageAprWindow, 1e-9)

	// A singleton series has zero spread, and a Sharpe ratio needs spread.
	require.NotNil(t, m.AprStdDev)
	assert.Zero(t, *m.AprStdDev)
	assert.Nil(t, m.SharpeRatio)

	// Trends and slopes need at least two valid days.
	assert.Nil(t, m.TvlTrendPct)
	assert.Nil(t, m.VolumeTrendPct)
	assert.Nil(t, m.TvlSlope)
	assert.Nil(t, m.VolumeSlope)
}

func TestComputePoolMetricsWindowTruncation(t *testing.T) {
	pool := metricsTestPool("1000", []types.DailySnapshot{
		{Date: 1700265600, FeesUSD: "10", VolumeUSD: "500", TVLUSD: "1000"},
		{Date: 1700179200, FeesUSD: "8", VolumeUSD: "450", TVLUSD: "950"},
		{Date: 1700092800, FeesUSD: "12", VolumeUSD: "400", TVLUSD: "1100"},
	})

	m := ComputePoolMetrics(pool, 2)

	// Only the two newest days enter the window mean.
	require.NotNil(t, m.AverageAprWindow)
	assert.InDelta(t, (365.0+8.0/950.0*365*100)/2, *m.AverageAprWindow, 1e-9)

	require.NotNil(t, m.TvlTrendPct)
	assert.InDelta(t, (1000.0-950.0)/950.0*100, *m.TvlTrendPct, 1e-9)

	// historyDays <= 0 disables truncation.
	full := ComputePoolMetrics(pool, 0)
	require.NotNil(t, full.AverageAprWindow)
	assert.InDelta(t, 356.8501, *full.AverageAprWindow, 0.001)
}

func TestComputePoolMetricsInvalidDaySkipped(t *testing.T) {
	// Middle day fails the valid-day filter (zero TVL); trends span the
	// remaining valid subsequence.
	pool := metricsTestPool("1000", []types.DailySnapshot{
		{Date: 1700265600, FeesUSD: "10", VolumeUSD: "500", TVLUSD: "1000"},
		{Date: 1700179200, FeesUSD: "8", VolumeUSD: "450", TVLUSD: "0"},
		{Date: 1700092800, FeesUSD: "12", VolumeUSD: "400", TVLUSD: "1100"},
	})

	m := ComputePoolMetrics(pool, 7)

	require.NotNil(t, m.AverageAprWindow)
	assert.InDelta(t, (365.0+12.0/1100.0*365*100)/2, *m.AverageAprWindow, 1e-9)

	require.NotNil(t, m.TvlTrendPct)
	assert.InDelta(t, (1000.0-1100.0)/1100.0*100, *m.TvlTrendPct, 1e-9)
}

func TestComputePoolMetricsUnparseableVolumeKept(t *testing.T) {
	// A bad volume figure downgrades to zero but keeps the day, so the APR
	// and TVL series still see it.
	pool := metricsTestPool("1000", []types.DailySnapshot{
		{Date: 1700265600, FeesUSD: "10", VolumeUSD: "500", TVLUSD: "1000"},
		{Date: 1700179200, FeesUSD: "10", VolumeUSD: "junk", TVLUSD: "1000"},
	})

	m := ComputePoolMetrics(pool, 7)

	require.NotNil(t, m.AverageVolumeWindow)
	assert.InDelta(t, 250.0, *m.AverageVolumeWindow, 1e-9)

	// Oldest volume is zero, so the percentage trend is undefined.
	assert.Nil(t, m.VolumeTrendPct)

	// The slope still exists: [500, 0] against indexes [0, 1].
	require.NotNil(t, m.VolumeSlope)
	assert.InDelta(t, -500.0, *m.VolumeSlope, 1e-9)

	require.NotNil(t, m.TvlTrendPct)
	assert.Zero(t, *m.TvlTrendPct)
}
