/*

Custom types for liquidity pools as delivered by the DEX subgraphs, plus the
derived metrics attached during scoring. Field tags are camelCase because
these structs decode subgraph responses directly and feed the API unchanged.

*/

package types

import (
	"time"
)

// DailySnapshot is one day of a pool's activity. Monetary fields stay raw
// decimal strings so a malformed day degrades a single metric during
// analysis instead of failing the whole pool at decode time.
type DailySnapshot struct {
	Date      int64  `json:"date"` // unix seconds at the day boundary
	FeesUSD   string `json:"feesUSD"`
	VolumeUSD string `json:"volumeUSD"`
	TVLUSD    string `json:"tvlUSD"`
}

type Pool struct {
	ID                  string          `json:"id"` // on-chain address, case-sensitive
	Token0              Token           `json:"token0"`
	Token1              Token           `json:"token1"`
	FeeTier             string          `json:"feeTier"` // integer basis points as string
	TotalValueLockedUSD string          `json:"totalValueLockedUSD"`
	CreatedAtTimestamp  string          `json:"createdAtTimestamp,omitempty"` // unix seconds as string
	PoolDayData         []DailySnapshot `json:"poolDayData"`                  // newest first
}

// PairLabel renders "SYMBOL0/SYMBOL1" for logs and reasons.
func (p Pool) PairLabel() string {
	return p.Token0.Symbol + "/" + p.Token1.Symbol
}

// ScoredPool is a Pool enriched with derived metrics. Metric pointers are nil
// when insufficient valid data exists; nil marshals to JSON null.
type ScoredPool struct {
	Pool
	Apr                 *float64 `json:"apr"`
	AverageAprWindow    *float64 `json:"averageAprWindow"`
	AverageVolumeWindow *float64 `json:"averageVolumeWindow"`
	AprStdDev           *float64 `json:"aprStdDev"`
	TvlTrendPct         *float64 `json:"tvlTrendPct"`
	VolumeTrendPct      *float64 `json:"volumeTrendPct"`
	TvlSlope            *float64 `json:"tvlSlope"`
	VolumeSlope         *float64 `json:"volumeSlope"`
	SharpeRatio         *float64 `json:"sharpeRatio"`
	Correlation         *float64 `json:"correlation"`
	Score               *float64 `json:"score,omitempty"` // 0-1 composite, present only after scoring
}

// CacheEntry is one strategy tier's scored snapshot. Entries are replaced
// wholesale on refresh and never mutated after publication, so holding a
// pointer to one is always safe for readers.
type CacheEntry struct {
	Tier       StrategyTier `json:"tier"`
	Pools      []ScoredPool `json:"pools"`
	AverageApr float64      `json:"averageApr"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Age reports how old the entry is at the given instant.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// FloatPtr returns a pointer to v. Metric fields are pointers so that
// "not computable" survives into JSON as null.
func FloatPtr(v float64) *float64 {
	return &v
}
