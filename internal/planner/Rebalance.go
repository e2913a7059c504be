package planner

import (
	"fmt"
	"math"
	"sort"

	"github.com/dexlens/poolscout/internal/config"
	"github.com/dexlens/poolscout/internal/logger"
	"github.com/dexlens/poolscout/internal/types"
)

var planLogger = logger.GetForComponent("rebalance_planner")

// Action priorities, higher is more urgent. Exits driven by missing data or
// the APR floor outrank everything; opportunistic increases rank last.
const (
	PRIORITY_CRITICAL    = 9
	PRIORITY_CORRELATION = 8
	PRIORITY_APR_DECLINE = 7
	PRIORITY_ENTER       = 6
	PRIORITY_RANGE       = 5
	PRIORITY_APR_RISE    = 4
)

const (
	// APR_FLOOR_PERCENT is the absolute floor under which a position is
	// fully exited regardless of other signals.
	APR_FLOOR_PERCENT = 5.0

	// APR_DRIFT_THRESHOLD_PCT is the relative change versus the pool's own
	// window average that counts as a decline or rise.
	APR_DRIFT_THRESHOLD_PCT = 20.0

	// BOUNDARY_PROXIMITY_RATIO triggers a range adjustment when the price
	// sits within this fraction of the range width of either boundary.
	BOUNDARY_PROXIMITY_RATIO = 0.2

	// ENTRY_CAPITAL_FRACTION of available liquidity is deployed into new
	// positions; the rest stays liquid as a buffer.
	ENTRY_CAPITAL_FRACTION = 0.8

	CORRELATION_SIZE_CUT = -50.0
	APR_DECLINE_SIZE_CUT = -25.0
	APR_RISE_SIZE_ADD    = 25.0
	FULL_EXIT_SIZE       = -100.0

	// Volatility proxy and half-width clamps for the recommended range.
	MIN_VOLATILITY_PROXY_PCT = 1.0
	MAX_VOLATILITY_PROXY_PCT = 50.0
	MIN_HALF_WIDTH_PCT       = 1.0
	MAX_HALF_WIDTH_PCT       = 95.0
)

// RebalanceOptions carries the per-request inputs alongside the preset.
type RebalanceOptions struct {
	AvailableLiquidityUSD float64
	MaxPositions          int     // 0 falls back to the preset's TargetPositions
	MinActionThreshold    float64 // percent; <= 0 falls back to the default
}

// BuildRebalancePlan analyzes each held position against the current scored
// universe and proposes prioritized actions: exits, size changes, range
// adjustments, and entries for uncommitted capital. MAINTAIN outcomes are
// dropped; only actionable recommendations are returned, sorted by
// descending priority.
func BuildRebalancePlan(positions []types.Position, universe []types.ScoredPool, preset types.StrategyPreset, opts RebalanceOptions) ([]types.RebalanceAction, error) {
	if err := validatePlanInputs(positions, opts); err != nil {
		planLogger.Error().Err(err).Msg("Rebalance input validation failed")
		return nil, err
	}

	threshold := opts.MinActionThreshold
	if threshold <= 0 {
		threshold = config.DefaultMinActionThreshold
	}

	poolIndex := indexUniverse(universe)

	planLogger.Info().
		Int("positions", len(positions)).
		Int("universeSize", len(universe)).
		Str("tier", string(preset.Tier)).
		Float64("availableLiquidityUSD", opts.AvailableLiquidityUSD).
		Msg("Building rebalance plan")

	actions := make([]types.RebalanceAction, 0, len(positions))
	for _, position := range positions {
		pool, known := poolIndex[position.PoolID]
		if !known {
			actions = append(actions, types.RebalanceAction{
				ActionType:     types.ActionExit,
				PoolID:         position.PoolID,
				CurrentSizeUSD: types.FloatPtr(position.SizeUSD),
				TargetSizeUSD:  types.FloatPtr(0),
				ReasonCodes:    []string{types.ReasonPoolDataUnavailable},
				Reasons:        []string{"pool is absent from the current data universe"},
				Priority:       PRIORITY_CRITICAL,
			})
			continue
		}

		if action, actionable := analyzePosition(position, pool, preset, threshold); actionable {
			actions = append(actions, action)
		}
	}

	actions = append(actions, proposeEntries(positions, universe, preset, opts)...)

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority > actions[j].Priority
	})

	planLogger.Info().
		Int("actions", len(actions)).
		Msg("Rebalance plan built")

	return actions, nil
}

func validatePlanInputs(positions []types.Position, opts RebalanceOptions) error {
	if math.IsNaN(opts.AvailableLiquidityUSD) || math.IsInf(opts.AvailableLiquidityUSD, 0) || opts.AvailableLiquidityUSD < 0 {
		return fmt.Errorf("%w: available liquidity must be a non-negative amount, got %f", types.ErrInvalidInput, opts.AvailableLiquidityUSD)
	}
	if len(positions) == 0 && opts.AvailableLiquidityUSD == 0 {
		return fmt.Errorf("%w: nothing to rebalance, no positions and no available liquidity", types.ErrInvalidInput)
	}
	for i, position := range positions {
		if position.PoolID == "" {
			return fmt.Errorf("%w: position %d has an empty pool ID", types.ErrInvalidInput, i)
		}
		if math.IsNaN(position.SizeUSD) || math.IsInf(position.SizeUSD, 0) || position.SizeUSD < 0 {
			return fmt.Errorf("%w: position %s has invalid size %f", types.ErrInvalidInput, position.PoolID, position.SizeUSD)
		}
	}
	return nil
}

// indexUniverse keys the scored universe by pool ID. Sources are unioned
// without de-duplication upstream, so the same ID can appear twice; the
// first (higher-ranked) occurrence wins.
func indexUniverse(universe []types.ScoredPool) map[string]types.ScoredPool {
	index := make(map[string]types.ScoredPool, len(universe))
	for _, pool := range universe {
		if _, exists := index[pool.ID]; !exists {
			index[pool.ID] = pool
		}
	}
	return index
}

// analyzePosition runs the per-position signal tests and resolves them into
// at most one action. The second return is false for MAINTAIN.
func analyzePosition(position types.Position, pool types.ScoredPool, preset types.StrategyPreset, threshold float64) (types.RebalanceAction, bool) {
	var reasonCodes []string
	var reasons []string
	sizeAdjustmentPct := 0.0
	priority := 0
	rangeFlagged := false

	recommendedRange := recommendPriceRange(position, pool, preset)
	if recommendedRange != nil && position.PriceRange != nil && position.PriceRange.Valid() {
		if flagged, code, reason := rangeNeedsAdjustment(position, *recommendedRange, threshold); flagged {
			rangeFlagged = true
			reasonCodes = append(reasonCodes, code)
			reasons = append(reasons, reason)
			if priority < PRIORITY_RANGE {
				priority = PRIORITY_RANGE
			}
		}
	}

	// APR drift against the pool's own window average.
	if pool.Apr != nil && pool.AverageAprWindow != nil && *pool.AverageAprWindow > 0 {
		relativeChangePct := (*pool.Apr - *pool.AverageAprWindow) / *pool.AverageAprWindow * 100
		if relativeChangePct < -APR_DRIFT_THRESHOLD_PCT {
			sizeAdjustmentPct += APR_DECLINE_SIZE_CUT
			reasonCodes = append(reasonCodes, types.ReasonAprDeclining)
			reasons = append(reasons, fmt.Sprintf("APR fell %.1f%% versus its window average", -relativeChangePct))
			if priority < PRIORITY_APR_DECLINE {
				priority = PRIORITY_APR_DECLINE
			}
		} else if relativeChangePct > APR_DRIFT_THRESHOLD_PCT {
			sizeAdjustmentPct += APR_RISE_SIZE_ADD
			reasonCodes = append(reasonCodes, types.ReasonAprRising)
			reasons = append(reasons, fmt.Sprintf("APR rose %.1f%% versus its window average", relativeChangePct))
			if priority < PRIORITY_APR_RISE {
				priority = PRIORITY_APR_RISE
			}
		}
	}

	// Correlation below the tier minimum cuts the position in half, never
	// to zero on its own.
	if pool.Correlation != nil && *pool.Correlation < preset.MinTokenCorrelation {
		sizeAdjustmentPct += CORRELATION_SIZE_CUT
		reasonCodes = append(reasonCodes, types.ReasonCorrelationBelowMin)
		reasons = append(reasons, fmt.Sprintf("pair correlation %.2f is below the strategy minimum %.2f", *pool.Correlation, preset.MinTokenCorrelation))
		if priority < PRIORITY_CORRELATION {
			priority = PRIORITY_CORRELATION
		}
	}

	// The absolute APR floor dominates every lesser size signal.
	apr := 0.0
	if pool.Apr != nil {
		apr = *pool.Apr
	}
	if apr < APR_FLOOR_PERCENT {
		sizeAdjustmentPct = FULL_EXIT_SIZE
		reasonCodes = append(reasonCodes, types.ReasonAprBelowFloor)
		reasons = append(reasons, fmt.Sprintf("APR %.2f%% is under the %.0f%% floor", apr, APR_FLOOR_PERCENT))
		priority = PRIORITY_CRITICAL
	}

	action := types.RebalanceAction{
		PoolID:                position.PoolID,
		CurrentSizeUSD:        types.FloatPtr(position.SizeUSD),
		CurrentPriceRange:     position.PriceRange,
		RecommendedPriceRange: recommendedRange,
		ReasonCodes:           reasonCodes,
		Reasons:               reasons,
		Priority:              priority,
	}

	switch {
	case sizeAdjustmentPct <= FULL_EXIT_SIZE:
		action.ActionType = types.ActionExit
		action.TargetSizeUSD = types.FloatPtr(0)
	case sizeAdjustmentPct < 0:
		action.ActionType = types.ActionDecrease
		action.TargetSizeUSD = types.FloatPtr(position.SizeUSD * (1 + sizeAdjustmentPct/100))
	case sizeAdjustmentPct > 0:
		action.ActionType = types.ActionIncrease
		action.TargetSizeUSD = types.FloatPtr(position.SizeUSD * (1 + sizeAdjustmentPct/100))
	case rangeFlagged:
		action.ActionType = types.ActionAdjustRange
	default:
		planLogger.Debug().
			Str("poolID", position.PoolID).
			Msg("Position is healthy, maintaining")
		return types.RebalanceAction{}, false
	}

	return action, true
}

// recommendPriceRange derives the optimal range for a position: centered on
// the current price (or the current range midpoint when no price is given)
// with a half-width of the pool's APR volatility, clamped, times the tier's
// width multiplier. Returns nil when the position carries neither a price
// nor a usable range.
func recommendPriceRange(position types.Position, pool types.ScoredPool, preset types.StrategyPreset) *types.PriceRange {
	var center float64
	switch {
	case position.CurrentPrice != nil && *position.CurrentPrice > 0:
		center = *position.CurrentPrice
	case position.PriceRange != nil && position.PriceRange.Valid():
		center = position.PriceRange.Midpoint()
	default:
		return nil
	}
	if center <= 0 {
		return nil
	}

	volatilityProxy := MIN_VOLATILITY_PROXY_PCT
	if pool.AprStdDev != nil {
		volatilityProxy = clamp(*pool.AprStdDev, MIN_VOLATILITY_PROXY_PCT, MAX_VOLATILITY_PROXY_PCT)
	}

	halfWidthPct := clamp(volatilityProxy*preset.RangeWidthMultiplier, MIN_HALF_WIDTH_PCT, MAX_HALF_WIDTH_PCT)

	return &types.PriceRange{
		Lower: center * (1 - halfWidthPct/100),
		Upper: center * (1 + halfWidthPct/100),
	}
}

// rangeNeedsAdjustment compares the held range against the recommendation:
// drift of lower bound, upper bound, or width beyond the threshold percent,
// or the price sitting too close to a boundary.
func rangeNeedsAdjustment(position types.Position, optimal types.PriceRange, threshold float64) (bool, string, string) {
	current := *position.PriceRange

	lowerDrift := percentDifference(current.Lower, optimal.Lower)
	upperDrift := percentDifference(current.Upper, optimal.Upper)
	widthDrift := percentDifference(current.Width(), optimal.Width())
	if lowerDrift > threshold || upperDrift > threshold || widthDrift > threshold {
		return true, types.ReasonRangeDrift,
			fmt.Sprintf("price range drifted from optimal by up to %.1f%%", math.Max(lowerDrift, math.Max(upperDrift, widthDrift)))
	}

	if position.CurrentPrice != nil {
		price := *position.CurrentPrice
		boundaryDistance := math.Min(price-current.Lower, current.Upper-price)
		if boundaryDistance < BOUNDARY_PROXIMITY_RATIO*current.Width() {
			return true, types.ReasonPriceNearBoundary,
				"current price is within 20% of a range boundary"
		}
	}

	return false, "", ""
}

// proposeEntries sizes new positions from uncommitted capital into the best
// pools not already held, while open slots remain.
func proposeEntries(positions []types.Position, universe []types.ScoredPool, preset types.StrategyPreset, opts RebalanceOptions) []types.RebalanceAction {
	if opts.AvailableLiquidityUSD <= 0 {
		return nil
	}

	maxPositions := preset.TargetPositions
	if opts.MaxPositions > 0 {
		maxPositions = opts.MaxPositions
	}
	openSlots := maxPositions - len(positions)
	if openSlots <= 0 {
		planLogger.Debug().
			Int("maxPositions", maxPositions).
			Int("held", len(positions)).
			Msg("No open slots for new positions")
		return nil
	}

	held := make(map[string]bool, len(positions))
	for _, position := range positions {
		held[position.PoolID] = true
	}

	candidates := make([]types.ScoredPool, 0, len(universe))
	seen := make(map[string]bool, len(universe))
	for _, pool := range universe {
		if held[pool.ID] || seen[pool.ID] {
			continue
		}
		seen[pool.ID] = true
		if pool.Apr == nil || *pool.Apr < APR_FLOOR_PERCENT {
			continue
		}
		if pool.Correlation == nil || *pool.Correlation < preset.MinTokenCorrelation {
			continue
		}
		candidates = append(candidates, pool)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].Score, candidates[j].Score
		if si == nil {
			return false
		}
		if sj == nil {
			return true
		}
		return *si > *sj
	})

	if len(candidates) > openSlots {
		candidates = candidates[:openSlots]
	}

	// Deployable capital splits evenly across the open slots, not across
	// however many candidates qualified.
	entrySizeUSD := ENTRY_CAPITAL_FRACTION * opts.AvailableLiquidityUSD / float64(openSlots)

	actions := make([]types.RebalanceAction, 0, len(candidates))
	for _, pool := range candidates {
		actions = append(actions, types.RebalanceAction{
			ActionType:    types.ActionEnter,
			PoolID:        pool.ID,
			TargetSizeUSD: types.FloatPtr(entrySizeUSD),
			ReasonCodes:   []string{types.ReasonNewOpportunity},
			Reasons:       []string{fmt.Sprintf("high-scoring pool %s not currently held", pool.PairLabel())},
			Priority:      PRIORITY_ENTER,
		})
	}

	planLogger.Debug().
		Int("openSlots", openSlots).
		Int("entries", len(actions)).
		Float64("entrySizeUSD", entrySizeUSD).
		Msg("New position entries proposed")

	return actions
}

func percentDifference(current float64, optimal float64) float64 {
	if optimal == 0 {
		return 0
	}
	return math.Abs(current-optimal) / math.Abs(optimal) * 100
}

func clamp(v float64, lower float64, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
