package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexlens/poolscout/internal/types"
)

func plannerPreset() types.StrategyPreset {
	return types.StrategyPreset{
		Tier:                 types.TierMedium,
		MinTokenCorrelation:  0.3,
		TargetPositions:      3,
		RangeWidthMultiplier: 2.5,
	}
}

// universePool builds a scored pool with the signals the planner reads. A
// flat APR (apr == window average) produces no drift signal.
func universePool(id string, apr, avgApr, correlation, score float64) types.ScoredPool {
	return types.ScoredPool{
		Pool: types.Pool{
			ID:     id,
			Token0: types.Token{Symbol: "WETH"},
			Token1: types.Token{Symbol: "USDC"},
		},
		Apr:              types.FloatPtr(apr),
		AverageAprWindow: types.FloatPtr(avgApr),
		AprStdDev:        types.FloatPtr(10),
		Correlation:      types.FloatPtr(correlation),
		Score:            types.FloatPtr(score),
	}
}

func TestBuildRebalancePlanValidation(t *testing.T) {
	healthy := []types.Position{{PoolID: "0xa", SizeUSD: 1000}}

	tests := []struct {
		name      string
		positions []types.Position
		opts      RebalanceOptions
	}{
		{"negative liquidity", healthy, RebalanceOptions{AvailableLiquidityUSD: -1}},
		{"nan liquidity", healthy, RebalanceOptions{AvailableLiquidityUSD: math.NaN()}},
		{"nothing to rebalance", nil, RebalanceOptions{}},
		{"empty pool id", []types.Position{{PoolID: "", SizeUSD: 100}}, RebalanceOptions{}},
		{"negative position size", []types.Position{{PoolID: "0xa", SizeUSD: -5}}, RebalanceOptions{}},
		{"nan position size", []types.Position{{PoolID: "0xa", SizeUSD: math.NaN()}}, RebalanceOptions{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildRebalancePlan(tc.positions, nil, plannerPreset(), tc.opts)
			assert.ErrorIs(t, err, types.ErrInvalidInput)
		})
	}
}

func TestBuildRebalancePlanExitSignals(t *testing.T) {
	t.Run("pool absent from universe", func(t *testing.T) {
		positions := []types.Position{{PoolID: "0xgone", SizeUSD: 1000}}

		actions, err := BuildRebalancePlan(positions, nil, plannerPreset(), RebalanceOptions{})
		require.NoError(t, err)
		require.Len(t, actions, 1)

		action := actions[0]
		assert.Equal(t, types.ActionExit, action.ActionType)
		assert.Equal(t, "0xgone", action.PoolID)
		assert.Equal(t, PRIORITY_CRITICAL, action.Priority)
		assert.Equal(t, []string{types.ReasonPoolDataUnavailable}, action.ReasonCodes)
		require.NotNil(t, action.CurrentSizeUSD)
		assert.InDelta(t, 1000, *action.CurrentSizeUSD, 1e-9)
		require.NotNil(t, action.TargetSizeUSD)
		assert.Zero(t, *action.TargetSizeUSD)
	})

	t.Run("apr under the floor", func(t *testing.T) {
		positions := []types.Position{{PoolID: "0xa", SizeUSD: 1000}}
		universe := []types.ScoredPool{universePool("0xa", 3, 3, 0.9, 0.5)}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{})
		require.NoError(t, err)
		require.Len(t, actions, 1)

		action := actions[0]
		assert.Equal(t, types.ActionExit, action.ActionType)
		assert.Equal(t, PRIORITY_CRITICAL, action.Priority)
		assert.Contains(t, action.ReasonCodes, types.ReasonAprBelowFloor)
		require.NotNil(t, action.TargetSizeUSD)
		assert.Zero(t, *action.TargetSizeUSD)
	})

	t.Run("floor overrides a mere decline", func(t *testing.T) {
		// APR collapsed 80% against its average and sits under the floor:
		// one full exit, not a stacked series of cuts.
		positions := []types.Position{{PoolID: "0xa", SizeUSD: 1000}}
		universe := []types.ScoredPool{universePool("0xa", 2, 10, 0.9, 0.5)}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{})
		require.NoError(t, err)
		require.Len(t, actions, 1)

		action := actions[0]
		assert.Equal(t, types.ActionExit, action.ActionType)
		assert.Equal(t, PRIORITY_CRITICAL, action.Priority)
		assert.Contains(t, action.ReasonCodes, types.ReasonAprDeclining)
		assert.Contains(t, action.ReasonCodes, types.ReasonAprBelowFloor)
		require.NotNil(t, action.TargetSizeUSD)
		assert.Zero(t, *action.TargetSizeUSD)
	})
}

func TestBuildRebalancePlanSizeSignals(t *testing.T) {
	t.Run("correlation below minimum halves the position", func(t *testing.T) {
		positions := []types.Position{{PoolID: "0xa", SizeUSD: 1000}}
		universe := []types.ScoredPool{universePool("0xa", 20, 20, 0.1, 0.5)}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{})
		require.NoError(t, err)
		require.Len(t, actions, 1)

		action := actions[0]
		assert.Equal(t, types.ActionDecrease, action.ActionType)
		assert.Equal(t, PRIORITY_CORRELATION, action.Priority)
		assert.Equal(t, []string{types.ReasonCorrelationBelowMin}, action.ReasonCodes)
		require.NotNil(t, action.TargetSizeUSD)
		assert.InDelta(t, 500, *action.TargetSizeUSD, 1e-9)
	})

	t.Run("apr decline cuts a quarter", func(t *testing.T) {
		positions := []types.Position{{PoolID: "0xa", SizeUSD: 1000}}
		universe := []types.ScoredPool{universePool("0xa", 10, 20, 0.9, 0.5)}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{})
		require.NoError(t, err)
		require.Len(t, actions, 1)

		action := actions[0]
		assert.Equal(t, types.ActionDecrease, action.ActionType)
		assert.Equal(t, PRIORITY_APR_DECLINE, action.Priority)
		assert.Equal(t, []string{types.ReasonAprDeclining}, action.ReasonCodes)
		require.NotNil(t, action.TargetSizeUSD)
		assert.InDelta(t, 750, *action.TargetSizeUSD, 1e-9)
	})

	t.Run("apr rise adds a quarter", func(t *testing.T) {
		positions := []types.Position{{PoolID: "0xa", SizeUSD: 1000}}
		universe := []types.ScoredPool{universePool("0xa", 30, 20, 0.9, 0.5)}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{})
		require.NoError(t, err)
		require.Len(t, actions, 1)

		action := actions[0]
		assert.Equal(t, types.ActionIncrease, action.ActionType)
		assert.Equal(t, PRIORITY_APR_RISE, action.Priority)
		assert.Equal(t, []string{types.ReasonAprRising}, action.ReasonCodes)
		require.NotNil(t, action.TargetSizeUSD)
		assert.InDelta(t, 1250, *action.TargetSizeUSD, 1e-9)
	})

	t.Run("decline and low correlation stack", func(t *testing.T) {
		positions := []types.Position{{PoolID: "0xa", SizeUSD: 1000}}
		universe := []types.ScoredPool{universePool("0xa", 10, 20, 0.1, 0.5)}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{})
		require.NoError(t, err)
		require.Len(t, actions, 1)

		// -25 for the decline, -50 for correlation: a 75% cut at the
		// correlation signal's priority.
		action := actions[0]
		assert.Equal(t, types.ActionDecrease, action.ActionType)
		assert.Equal(t, PRIORITY_CORRELATION, action.Priority)
		require.NotNil(t, action.TargetSizeUSD)
		assert.InDelta(t, 250, *action.TargetSizeUSD, 1e-9)
	})

	t.Run("healthy position yields no action", func(t *testing.T) {
		positions := []types.Position{{PoolID: "0xa", SizeUSD: 1000}}
		universe := []types.ScoredPool{universePool("0xa", 20, 20, 0.9, 0.5)}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{})
		require.NoError(t, err)
		assert.Empty(t, actions)
	})
}

func TestBuildRebalancePlanRangeSignals(t *testing.T) {
	t.Run("range drift", func(t *testing.T) {
		// AprStdDev 10 x multiplier 2.5 = 25% half-width around price 100:
		// optimal [75, 125]. The held range is far off.
		positions := []types.Position{{
			PoolID:       "0xa",
			SizeUSD:      1000,
			PriceRange:   &types.PriceRange{Lower: 40, Upper: 60},
			CurrentPrice: types.FloatPtr(100),
		}}
		universe := []types.ScoredPool{universePool("0xa", 20, 20, 0.9, 0.5)}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{})
		require.NoError(t, err)
		require.Len(t, actions, 1)

		action := actions[0]
		assert.Equal(t, types.ActionAdjustRange, action.ActionType)
		assert.Equal(t, PRIORITY_RANGE, action.Priority)
		assert.Equal(t, []string{types.ReasonRangeDrift}, action.ReasonCodes)
		assert.Nil(t, action.TargetSizeUSD)
		require.NotNil(t, action.RecommendedPriceRange)
		assert.InDelta(t, 75, action.RecommendedPriceRange.Lower, 1e-9)
		assert.InDelta(t, 125, action.RecommendedPriceRange.Upper, 1e-9)
	})

	t.Run("price near a boundary", func(t *testing.T) {
		// Drift stays inside a generous threshold, but the price sits 5
		// away from the upper bound of a width-50 range.
		positions := []types.Position{{
			PoolID:       "0xa",
			SizeUSD:      1000,
			PriceRange:   &types.PriceRange{Lower: 75, Upper: 125},
			CurrentPrice: types.FloatPtr(120),
		}}
		universe := []types.ScoredPool{universePool("0xa", 20, 20, 0.9, 0.5)}
		opts := RebalanceOptions{MinActionThreshold: 30}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), opts)
		require.NoError(t, err)
		require.Len(t, actions, 1)

		action := actions[0]
		assert.Equal(t, types.ActionAdjustRange, action.ActionType)
		assert.Equal(t, []string{types.ReasonPriceNearBoundary}, action.ReasonCodes)
	})

	t.Run("aligned range stays quiet", func(t *testing.T) {
		positions := []types.Position{{
			PoolID:       "0xa",
			SizeUSD:      1000,
			PriceRange:   &types.PriceRange{Lower: 75, Upper: 125},
			CurrentPrice: types.FloatPtr(100),
		}}
		universe := []types.ScoredPool{universePool("0xa", 20, 20, 0.9, 0.5)}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{})
		require.NoError(t, err)
		assert.Empty(t, actions)
	})
}

func TestBuildRebalancePlanEntries(t *testing.T) {
	t.Run("deploys into the best unheld pools", func(t *testing.T) {
		universe := []types.ScoredPool{
			universePool("0xbest", 50, 50, 0.9, 0.9),
			universePool("0xfloor", 3, 3, 0.9, 0.8),     // APR under the floor
			universePool("0xuncorr", 40, 40, 0.1, 0.7),  // correlation under the minimum
			universePool("0xsecond", 40, 40, 0.8, 0.5),
		}

		actions, err := BuildRebalancePlan(nil, universe, plannerPreset(), RebalanceOptions{AvailableLiquidityUSD: 10000})
		require.NoError(t, err)
		require.Len(t, actions, 2)

		// 80% of capital over three open slots, regardless of how many
		// candidates actually qualified.
		for _, action := range actions {
			assert.Equal(t, types.ActionEnter, action.ActionType)
			assert.Equal(t, PRIORITY_ENTER, action.Priority)
			assert.Equal(t, []string{types.ReasonNewOpportunity}, action.ReasonCodes)
			require.NotNil(t, action.TargetSizeUSD)
			assert.InDelta(t, 0.8*10000/3, *action.TargetSizeUSD, 1e-9)
		}
		assert.Equal(t, "0xbest", actions[0].PoolID)
		assert.Equal(t, "0xsecond", actions[1].PoolID)
	})

	t.Run("held pools are not re-entered", func(t *testing.T) {
		positions := []types.Position{{PoolID: "0xheld", SizeUSD: 1000}}
		universe := []types.ScoredPool{
			universePool("0xheld", 20, 20, 0.9, 0.9),
			universePool("0xnew", 40, 40, 0.8, 0.5),
		}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{AvailableLiquidityUSD: 10000})
		require.NoError(t, err)
		require.Len(t, actions, 1)

		action := actions[0]
		assert.Equal(t, types.ActionEnter, action.ActionType)
		assert.Equal(t, "0xnew", action.PoolID)
		// One slot is taken, so capital splits over the remaining two.
		require.NotNil(t, action.TargetSizeUSD)
		assert.InDelta(t, 0.8*10000/2, *action.TargetSizeUSD, 1e-9)
	})

	t.Run("no open slots", func(t *testing.T) {
		positions := []types.Position{{PoolID: "0xheld", SizeUSD: 1000}}
		universe := []types.ScoredPool{
			universePool("0xheld", 20, 20, 0.9, 0.9),
			universePool("0xnew", 40, 40, 0.8, 0.5),
		}
		opts := RebalanceOptions{AvailableLiquidityUSD: 10000, MaxPositions: 1}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), opts)
		require.NoError(t, err)
		assert.Empty(t, actions)
	})

	t.Run("no liquidity proposes nothing", func(t *testing.T) {
		positions := []types.Position{{PoolID: "0xheld", SizeUSD: 1000}}
		universe := []types.ScoredPool{
			universePool("0xheld", 20, 20, 0.9, 0.9),
			universePool("0xnew", 40, 40, 0.8, 0.5),
		}

		actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{})
		require.NoError(t, err)
		assert.Empty(t, actions)
	})
}

func TestBuildRebalancePlanPriorityOrder(t *testing.T) {
	positions := []types.Position{
		{PoolID: "0xrising", SizeUSD: 1000},
		{PoolID: "0xgone", SizeUSD: 500},
	}
	universe := []types.ScoredPool{
		universePool("0xrising", 30, 20, 0.9, 0.5),
		universePool("0xentry", 40, 40, 0.8, 0.9),
	}

	actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{AvailableLiquidityUSD: 1000})
	require.NoError(t, err)
	require.Len(t, actions, 3)

	// Exit (9) before entry (6) before opportunistic increase (4).
	assert.Equal(t, types.ActionExit, actions[0].ActionType)
	assert.Equal(t, "0xgone", actions[0].PoolID)
	assert.Equal(t, types.ActionEnter, actions[1].ActionType)
	assert.Equal(t, "0xentry", actions[1].PoolID)
	assert.Equal(t, types.ActionIncrease, actions[2].ActionType)
	assert.Equal(t, "0xrising", actions[2].PoolID)
}

func TestBuildRebalancePlanDuplicateUniverseEntries(t *testing.T) {
	// Sources are unioned without de-duplication; the first occurrence of a
	// pool ID wins for position analysis and entries are proposed once.
	positions := []types.Position{{PoolID: "0xa", SizeUSD: 1000}}
	universe := []types.ScoredPool{
		universePool("0xa", 20, 20, 0.9, 0.9),
		universePool("0xa", 2, 2, 0.9, 0.9), // stale duplicate, ignored
		universePool("0xnew", 40, 40, 0.8, 0.5),
		universePool("0xnew", 40, 40, 0.8, 0.5),
	}

	actions, err := BuildRebalancePlan(positions, universe, plannerPreset(), RebalanceOptions{AvailableLiquidityUSD: 1000})
	require.NoError(t, err)

	// The healthy first record keeps the held position quiet, and the
	// duplicate candidate enters only once.
	require.Len(t, actions, 1)
	assert.Equal(t, types.ActionEnter, actions[0].ActionType)
	assert.Equal(t, "0xnew", actions[0].PoolID)
}
