package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexlens/poolscout/internal/config"
	"github.com/dexlens/poolscout/internal/types"
)

func TestNormalizePresetJSON(t *testing.T) {
	t.Run("key order does not matter", func(t *testing.T) {
		// JSONB storage reorders keys; normalization must make both spellings
		// of the same preset compare equal.
		a := []byte(`{"tier": "medium", "name": "Balanced", "history_days": 7}`)
		b := []byte(`{"history_days": 7, "name": "Balanced", "tier": "medium"}`)

		normalizedA := normalizePresetJSON(a)
		normalizedB := normalizePresetJSON(b)
		require.NotNil(t, normalizedA)
		assert.Equal(t, normalizedA, normalizedB)
	})

	t.Run("differing params normalize differently", func(t *testing.T) {
		a := []byte(`{"tier": "medium", "history_days": 7}`)
		b := []byte(`{"tier": "medium", "history_days": 14}`)
		assert.NotEqual(t, normalizePresetJSON(a), normalizePresetJSON(b))
	})

	t.Run("empty and unparseable treated as changed", func(t *testing.T) {
		assert.Nil(t, normalizePresetJSON(nil))
		assert.Nil(t, normalizePresetJSON([]byte{}))
		assert.Nil(t, normalizePresetJSON([]byte(`{not json`)))
	})
}

// Every persistence entry point must fail cleanly, not panic, when the
// process runs without a database. The web layer leans on this for its
// degraded mode.
func TestUninitializedDatabaseGuards(t *testing.T) {
	require.Nil(t, DB)

	store := Store{}
	assert.Error(t, store.Ping())

	_, err := store.SaveRefreshSnapshot(types.RefreshSnapshot{Tier: types.TierMedium})
	assert.Error(t, err)

	_, err = store.NextRefreshNumber()
	assert.Error(t, err)

	_, err = store.GetRecentRefreshes(10)
	assert.Error(t, err)

	_, err = store.GetRefreshSummary()
	assert.Error(t, err)

	_, err = GetCurrentRefreshNumber()
	assert.Error(t, err)

	_, err = GetActivePresetVersions()
	assert.Error(t, err)

	assert.Error(t, SavePresetVersions(config.StrategyPresets()))
	assert.Error(t, EnsureSchema())
}
