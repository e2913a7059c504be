package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexlens/poolscout/internal/types"
)

// The preset table is the serving contract for the strategy endpoints. These
// assertions pin the values so an accidental edit shows up as a test failure
// instead of a production behavior change.
func TestStrategyPresetsContract(t *testing.T) {
	presets := StrategyPresets()
	require.Len(t, presets, 3)

	t.Run("low", func(t *testing.T) {
		p := presets[types.TierLow]
		assert.Equal(t, types.TierLow, p.Tier)
		assert.Equal(t, "Conservative", p.Name)
		assert.Equal(t, float64(500000), p.MinTVLUSD)
		assert.Equal(t, float64(5), p.MinAprPercent)
		assert.Zero(t, p.MaxPoolAgeDays)
		assert.Equal(t, []int{100, 500}, p.PreferredFeeTiers)
		assert.Equal(t, 0.6, p.MinTokenCorrelation)
		assert.Equal(t, 1.0, p.MaxTokenCorrelation)
		assert.True(t, p.PreferStableCorrelation)
		assert.True(t, p.PreferStableBase)
		assert.True(t, p.AvoidExoticPairs)
		assert.Equal(t, 0.15, p.CorrelationWeight)
		assert.Equal(t, 0.3, p.TvlWeight)
		assert.Equal(t, 4, p.TargetPositions)
		assert.Equal(t, float64(35), p.MaxPositionPercentage)
		assert.Equal(t, 14, p.HistoryDays)
		assert.Equal(t, 4.0, p.RangeWidthMultiplier)
	})

	t.Run("medium", func(t *testing.T) {
		p := presets[types.TierMedium]
		assert.Equal(t, types.TierMedium, p.Tier)
		assert.Equal(t, "Balanced", p.Name)
		assert.Equal(t, float64(100000), p.MinTVLUSD)
		assert.Equal(t, float64(10), p.MinAprPercent)
		assert.Equal(t, []int{500, 3000}, p.PreferredFeeTiers)
		assert.Equal(t, 0.3, p.MinTokenCorrelation)
		assert.False(t, p.PreferStableCorrelation)
		assert.True(t, p.PreferStableBase)
		assert.Equal(t, 0.1, p.CorrelationWeight)
		assert.Equal(t, 0.3, p.AprWeight)
		assert.Equal(t, 3, p.TargetPositions)
		assert.Equal(t, float64(40), p.MaxPositionPercentage)
		assert.Equal(t, 7, p.HistoryDays)
		assert.Equal(t, 2.5, p.RangeWidthMultiplier)
	})

	t.Run("high", func(t *testing.T) {
		p := presets[types.TierHigh]
		assert.Equal(t, types.TierHigh, p.Tier)
		assert.Equal(t, "Aggressive", p.Name)
		assert.Equal(t, float64(5000), p.MinTVLUSD)
		assert.Equal(t, 90, p.MaxPoolAgeDays)
		assert.Nil(t, p.PreferredFeeTiers)
		assert.Equal(t, 0.0, p.MinTokenCorrelation)
		assert.False(t, p.PreferStableBase)
		assert.Equal(t, -0.1, p.CorrelationWeight)
		assert.Equal(t, 0.45, p.AprWeight)
		assert.Equal(t, 0.25, p.VolumeTrendWeight)
		assert.Equal(t, 2, p.TargetPositions)
		assert.Equal(t, float64(50), p.MaxPositionPercentage)
		assert.Equal(t, 3, p.HistoryDays)
		assert.Equal(t, 1.5, p.RangeWidthMultiplier)
	})

	t.Run("table validates", func(t *testing.T) {
		assert.NoError(t, ValidatePresets(presets))
	})
}

func TestStrategyPresetsReturnsFreshCopies(t *testing.T) {
	first := StrategyPresets()

	mutated := first[types.TierLow]
	mutated.MinTVLUSD = 1
	mutated.PreferredFeeTiers[0] = 9999
	first[types.TierLow] = mutated
	delete(first, types.TierHigh)

	second := StrategyPresets()
	require.Contains(t, second, types.TierHigh)
	assert.Equal(t, float64(500000), second[types.TierLow].MinTVLUSD)
	assert.Equal(t, []int{100, 500}, second[types.TierLow].PreferredFeeTiers)
}

func TestPresetForTier(t *testing.T) {
	preset, err := PresetForTier(types.TierMedium)
	require.NoError(t, err)
	assert.Equal(t, types.TierMedium, preset.Tier)

	_, err = PresetForTier("turbo")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestValidatePreset(t *testing.T) {
	valid := func() types.StrategyPreset { return StrategyPresets()[types.TierMedium] }

	tests := []struct {
		name   string
		mutate func(*types.StrategyPreset)
	}{
		{"unknown tier", func(p *types.StrategyPreset) { p.Tier = "turbo" }},
		{"nan weight", func(p *types.StrategyPreset) { p.AprWeight = math.NaN() }},
		{"infinite threshold", func(p *types.StrategyPreset) { p.MinTVLUSD = math.Inf(1) }},
		{"negative tvl threshold", func(p *types.StrategyPreset) { p.MinTVLUSD = -1 }},
		{"negative apr threshold", func(p *types.StrategyPreset) { p.MinAprPercent = -5 }},
		{"correlation min above max", func(p *types.StrategyPreset) {
			p.MinTokenCorrelation = 0.9
			p.MaxTokenCorrelation = 0.5
		}},
		{"correlation max above one", func(p *types.StrategyPreset) { p.MaxTokenCorrelation = 1.5 }},
		{"negative metric weight", func(p *types.StrategyPreset) { p.VolatilityWeight = -0.1 }},
		{"correlation weight at one", func(p *types.StrategyPreset) { p.CorrelationWeight = 1.0 }},
		{"correlation weight below minus one", func(p *types.StrategyPreset) { p.CorrelationWeight = -1.2 }},
		{"zero target positions", func(p *types.StrategyPreset) { p.TargetPositions = 0 }},
		{"zero position cap", func(p *types.StrategyPreset) { p.MaxPositionPercentage = 0 }},
		{"position cap above 100", func(p *types.StrategyPreset) { p.MaxPositionPercentage = 101 }},
		{"zero history days", func(p *types.StrategyPreset) { p.HistoryDays = 0 }},
		{"zero range width", func(p *types.StrategyPreset) { p.RangeWidthMultiplier = 0 }},
		{"negative pool age", func(p *types.StrategyPreset) { p.MaxPoolAgeDays = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			preset := valid()
			tc.mutate(&preset)
			assert.Error(t, ValidatePreset(preset))
		})
	}

	t.Run("negative correlation weight allowed", func(t *testing.T) {
		preset := valid()
		preset.CorrelationWeight = -0.3
		assert.NoError(t, ValidatePreset(preset))
	})
}

func TestValidatePresets(t *testing.T) {
	t.Run("missing tier", func(t *testing.T) {
		presets := StrategyPresets()
		delete(presets, types.TierHigh)
		assert.Error(t, ValidatePresets(presets))
	})

	t.Run("key and tier disagree", func(t *testing.T) {
		presets := StrategyPresets()
		swapped := presets[types.TierLow]
		presets[types.TierHigh] = swapped
		assert.Error(t, ValidatePresets(presets))
	})

	t.Run("invalid entry", func(t *testing.T) {
		presets := StrategyPresets()
		broken := presets[types.TierMedium]
		broken.HistoryDays = 0
		presets[types.TierMedium] = broken
		assert.Error(t, ValidatePresets(presets))
	})
}
