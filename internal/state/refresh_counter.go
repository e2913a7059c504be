/*

This file manages the persistent global refresh counter. The counter is
stored in the database so refresh numbering stays continuous across process
restarts; the number itself is bookkeeping for the refresh history, never an
input to scoring.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ensureRefreshCounterTable creates the refresh_counter table if it doesn't exist
func ensureRefreshCounterTable() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS refresh_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_refresh INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO refresh_counter (id, current_refresh)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`

	_, err := DB.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create refresh_counter table: %w", err)
	}

	log.Debug().Msg("Ensured refresh_counter table exists")
	return nil
}

// GetCurrentRefreshNumber retrieves the current refresh number from the database
func GetCurrentRefreshNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	// Ensure the table exists
	if err := ensureRefreshCounterTable(); err != nil {
		return 0, err
	}

	query := `SELECT current_refresh FROM refresh_counter WHERE id = 1;`

	var currentRefresh int
	row := DB.QueryRow(query)
	err := row.Scan(&currentRefresh)

	if err != nil {
		if err == sql.ErrNoRows {
			// This should not happen due to the INSERT in ensureRefreshCounterTable
			log.Warn().Msg("No refresh counter row found, initializing to 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current refresh number: %w", err)
	}

	log.Debug().Int("currentRefresh", currentRefresh).Msg("Retrieved current refresh number")
	return currentRefresh, nil
}

// IncrementRefreshNumber increments the refresh counter and returns the new value
func IncrementRefreshNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	// Ensure the table exists
	if err := ensureRefreshCounterTable(); err != nil {
		return 0, err
	}

	updateQuery := `
		UPDATE refresh_counter
		SET current_refresh = current_refresh + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_refresh;`

	var newRefresh int
	row := DB.QueryRow(updateQuery)
	err := row.Scan(&newRefresh)

	if err != nil {
		return 0, fmt.Errorf("failed to increment refresh number: %w", err)
	}

	log.Debug().Int("newRefresh", newRefresh).Msg("Incremented refresh counter")
	return newRefresh, nil
}

// ResetRefreshNumber resets the refresh counter to a specific value (for testing/maintenance)
func ResetRefreshNumber(refreshNumber int) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// Ensure the table exists
	if err := ensureRefreshCounterTable(); err != nil {
		return err
	}

	if refreshNumber < 0 {
		return fmt.Errorf("refresh number cannot be negative: %d", refreshNumber)
	}

	updateQuery := `
		UPDATE refresh_counter
		SET current_refresh = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	result, err := DB.Exec(updateQuery, refreshNumber)
	if err != nil {
		return fmt.Errorf("failed to reset refresh number to %d: %w", refreshNumber, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when resetting refresh number")
	}

	log.Warn().Int("refreshNumber", refreshNumber).Msg("Reset refresh counter")
	return nil
}
