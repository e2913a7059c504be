// ./internal/state/refresh_store.go
package state

import (
	"encoding/json"
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/dexlens/poolscout/internal/types"
)

// Store adapts the package-level persistence functions to the small
// interfaces consumers inject (poolcache.RefreshStore). It carries no state
// of its own; everything goes through the global DB pool.
type Store struct{}

func (Store) SaveRefreshSnapshot(snapshot types.RefreshSnapshot) (int64, error) {
	return SaveRefreshSnapshot(snapshot)
}

func (Store) NextRefreshNumber() (int, error) {
	return IncrementRefreshNumber()
}

func (Store) Ping() error {
	return TestDBConnection()
}

func (Store) GetRecentRefreshes(limit int) ([]types.RefreshSnapshot, error) {
	return GetRecentRefreshes(limit)
}

func (Store) GetRefreshSummary() ([]types.RefreshSummary, error) {
	return GetRefreshSummary()
}

// SaveRefreshSnapshot saves one tier's refresh outcome to the database.
func SaveRefreshSnapshot(snapshot types.RefreshSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	topPoolsJSON, err := json.Marshal(snapshot.TopPools)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal top_pools: %w", err)
	}

	query := `
		INSERT INTO refresh_snapshots (
			refresh_id, refresh_number, tier, started_at, duration_ms,
			pool_count, average_apr, sources_succeeded, sources_failed, top_pools
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.RefreshID, snapshot.RefreshNumber, string(snapshot.Tier), snapshot.StartedAt, snapshot.DurationMS,
		snapshot.PoolCount, snapshot.AverageApr,
		pq.Array(snapshot.SourcesSucceeded), pq.Array(snapshot.SourcesFailed), topPoolsJSON,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save refresh snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Str("refresh_id", snapshot.RefreshID).
		Str("tier", string(snapshot.Tier)).
		Int("pool_count", snapshot.PoolCount).
		Msg("Refresh snapshot saved to database")

	return snapshotID, nil
}

// GetRecentRefreshes retrieves recent refresh snapshots across all tiers,
// newest first.
func GetRecentRefreshes(limit int) ([]types.RefreshSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT
			snapshot_id, refresh_id, refresh_number, tier, started_at, duration_ms,
			pool_count, average_apr, sources_succeeded, sources_failed, top_pools
		FROM refresh_snapshots
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent refreshes")
		return nil, fmt.Errorf("failed to query recent refreshes: %w", err)
	}
	defer rows.Close()

	var snapshots []types.RefreshSnapshot
	for rows.Next() {
		var snapshot types.RefreshSnapshot
		var tier string
		var topPoolsJSON []byte

		err := rows.Scan(
			&snapshot.ID, &snapshot.RefreshID, &snapshot.RefreshNumber, &tier, &snapshot.StartedAt, &snapshot.DurationMS,
			&snapshot.PoolCount, &snapshot.AverageApr,
			pq.Array(&snapshot.SourcesSucceeded), pq.Array(&snapshot.SourcesFailed), &topPoolsJSON,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan refresh snapshot row")
			continue // Skip this row and continue with others
		}
		snapshot.Tier = types.StrategyTier(tier)

		if len(topPoolsJSON) > 0 {
			if err := json.Unmarshal(topPoolsJSON, &snapshot.TopPools); err != nil {
				log.Error().Err(err).Int64("snapshot_id", snapshot.ID).Msg("Failed to unmarshal top_pools for snapshot")
				continue
			}
		}

		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Error occurred during row iteration")
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Debug().Int("count", len(snapshots)).Int("limit", limit).Msg("Retrieved recent refreshes")
	return snapshots, nil
}
