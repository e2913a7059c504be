// ./internal/state/presets_store.go
package state

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dexlens/poolscout/internal/types"
)

// PresetVersion is one stored strategy preset revision.
type PresetVersion struct {
	PresetID  int64                `json:"preset_id"`
	Version   int                  `json:"version"`
	Tier      types.StrategyTier   `json:"tier"`
	IsActive  bool                 `json:"is_active"`
	Params    types.StrategyPreset `json:"params"`
	CreatedAt time.Time            `json:"created_at"`
}

// SavePresetVersions records the preset table the process is running with.
// Per tier, a new version row is inserted only when the serialized params
// differ from the latest stored version; the new row becomes active and the
// previous one is deactivated. Unchanged tiers keep their current row.
func SavePresetVersions(presets map[types.StrategyTier]types.StrategyPreset) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	for _, tier := range types.AllStrategyTiers() {
		preset, ok := presets[tier]
		if !ok {
			continue
		}
		if err := savePresetVersion(tier, preset); err != nil {
			return err
		}
	}
	return nil
}

func savePresetVersion(tier types.StrategyTier, preset types.StrategyPreset) error {
	paramsJSON, err := json.Marshal(preset)
	if err != nil {
		return fmt.Errorf("failed to marshal preset for tier %s: %w", tier, err)
	}

	latestVersion, latestParams, err := latestPresetVersion(tier)
	if err != nil {
		return err
	}

	// JSONB storage normalizes key order, so the stored params are
	// round-tripped through the struct before comparing.
	if latestVersion > 0 && bytes.Equal(normalizePresetJSON(latestParams), paramsJSON) {
		log.Debug().
			Str("tier", string(tier)).
			Int("version", latestVersion).
			Msg("Preset unchanged, keeping stored version")
		return nil
	}

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	stmtDeactivate := `UPDATE strategy_preset_versions SET is_active = FALSE WHERE tier = $1 AND is_active = TRUE;`
	if _, err = tx.Exec(stmtDeactivate, string(tier)); err != nil {
		return fmt.Errorf("failed to deactivate existing preset versions for %s: %w", tier, err)
	}

	stmt := `
		INSERT INTO strategy_preset_versions (version, tier, is_active, params, created_at)
		VALUES ($1, $2, TRUE, $3, $4)
		RETURNING preset_id;`

	var presetID int64
	err = tx.QueryRow(stmt, latestVersion+1, string(tier), paramsJSON, time.Now()).Scan(&presetID)
	if err != nil {
		return fmt.Errorf("failed to insert preset version for %s: %w", tier, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Str("tier", string(tier)).
		Int("version", latestVersion+1).
		Int64("preset_id", presetID).
		Msg("Saved new strategy preset version")
	return nil
}

// latestPresetVersion returns the newest stored version number and raw
// params for a tier; version 0 with nil params means none stored yet.
func latestPresetVersion(tier types.StrategyTier) (int, []byte, error) {
	query := `
		SELECT version, params
		FROM strategy_preset_versions
		WHERE tier = $1
		ORDER BY version DESC
		LIMIT 1;`

	var version int
	var params []byte
	err := DB.QueryRow(query, string(tier)).Scan(&version, &params)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("failed to load latest preset version for %s: %w", tier, err)
	}
	return version, params, nil
}

// normalizePresetJSON round-trips stored JSONB through the preset struct so
// both sides of a comparison share one serialization.
func normalizePresetJSON(stored []byte) []byte {
	if len(stored) == 0 {
		return nil
	}
	var preset types.StrategyPreset
	if err := json.Unmarshal(stored, &preset); err != nil {
		log.Warn().Err(err).Msg("Stored preset params failed to parse, treating as changed")
		return nil
	}
	normalized, err := json.Marshal(preset)
	if err != nil {
		return nil
	}
	return normalized
}

// GetActivePresetVersions loads the active preset row per tier.
func GetActivePresetVersions() (map[types.StrategyTier]PresetVersion, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT preset_id, version, tier, is_active, params, created_at
		FROM strategy_preset_versions
		WHERE is_active = TRUE
		ORDER BY tier;`

	rows, err := DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active preset versions: %w", err)
	}
	defer rows.Close()

	active := make(map[types.StrategyTier]PresetVersion)
	for rows.Next() {
		var row PresetVersion
		var tier string
		var params []byte

		if err := rows.Scan(&row.PresetID, &row.Version, &tier, &row.IsActive, &params, &row.CreatedAt); err != nil {
			log.Error().Err(err).Msg("Failed to scan preset version row")
			continue
		}
		row.Tier = types.StrategyTier(tier)

		if err := json.Unmarshal(params, &row.Params); err != nil {
			log.Error().Err(err).Str("tier", tier).Msg("Failed to unmarshal stored preset params")
			continue
		}

		active[row.Tier] = row
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Debug().Int("tiers", len(active)).Msg("Loaded active preset versions")
	return active, nil
}
