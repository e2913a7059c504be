/*

Persistent records describing cache refresh outcomes. These rows back the
/api/refreshes endpoints and the operational queries; they are bookkeeping,
never an input to scoring (the cache is rebuilt from the raw feed alone).

*/

package types

import "time"

// TopPoolRecord is the compact per-pool digest embedded in a refresh snapshot.
type TopPoolRecord struct {
	PoolID string   `json:"pool_id"`
	Pair   string   `json:"pair"`
	Score  *float64 `json:"score,omitempty"`
	Apr    *float64 `json:"apr,omitempty"`
}

// RefreshSnapshot captures one tier's refresh cycle.
type RefreshSnapshot struct {
	ID               int64           `json:"id,omitempty"` // assigned by the database
	RefreshID        string          `json:"refresh_id"`   // uuid shared by all tiers of one cycle
	RefreshNumber    int             `json:"refresh_number"`
	Tier             StrategyTier    `json:"tier"`
	StartedAt        time.Time       `json:"started_at"`
	DurationMS       int64           `json:"duration_ms"`
	PoolCount        int             `json:"pool_count"`
	AverageApr       float64         `json:"average_apr"`
	SourcesSucceeded []string        `json:"sources_succeeded"`
	SourcesFailed    []string        `json:"sources_failed"`
	TopPools         []TopPoolRecord `json:"top_pools"`
}

// RefreshSummary aggregates refresh history for one tier.
type RefreshSummary struct {
	Tier             StrategyTier `json:"tier"`
	RefreshCount     int          `json:"refresh_count"`
	AvgDurationMS    float64      `json:"avg_duration_ms"`
	AvgPoolCount     float64      `json:"avg_pool_count"`
	LatestAverageApr float64      `json:"latest_average_apr"`
	LastRefreshedAt  time.Time    `json:"last_refreshed_at"`
}
