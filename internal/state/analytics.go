package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dexlens/poolscout/internal/types"
)

// GetRefreshSummary retrieves per-tier aggregates over the stored refresh
// history: how many refreshes ran, how long they take, how many pools they
// produce, and the latest average APR.
func GetRefreshSummary() ([]types.RefreshSummary, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT
			r.tier,
			COUNT(*) AS refresh_count,
			COALESCE(AVG(r.duration_ms), 0) AS avg_duration_ms,
			COALESCE(AVG(r.pool_count), 0) AS avg_pool_count,
			COALESCE((
				SELECT average_apr FROM refresh_snapshots
				WHERE tier = r.tier
				ORDER BY started_at DESC LIMIT 1
			), 0) AS latest_average_apr,
			MAX(r.started_at) AS last_refreshed_at
		FROM refresh_snapshots r
		GROUP BY r.tier
		ORDER BY r.tier
	`

	rows, err := DB.Query(query)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query refresh summary")
		return nil, fmt.Errorf("failed to query refresh summary: %w", err)
	}
	defer rows.Close()

	var summaries []types.RefreshSummary
	for rows.Next() {
		var summary types.RefreshSummary
		var tier string

		err := rows.Scan(
			&tier,
			&summary.RefreshCount,
			&summary.AvgDurationMS,
			&summary.AvgPoolCount,
			&summary.LatestAverageApr,
			&summary.LastRefreshedAt,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan refresh summary row")
			continue // Skip this row and continue with others
		}
		summary.Tier = types.StrategyTier(tier)

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Error occurred during row iteration")
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Debug().Int("tiers", len(summaries)).Msg("Retrieved refresh summary")
	return summaries, nil
}
