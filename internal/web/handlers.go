/*

This file contains the /api route handlers: the on-demand analytics paths
(fetch, score, size, rebalance), the cache-backed reads, the refresh history
endpoints, and the intent adapter endpoint. Handlers validate input and
translate query or body parameters into core options; all domain work happens
in the analyzer, allocator, planner and poolcache packages.

*/

package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dexlens/poolscout/internal/allocator"
	"github.com/dexlens/poolscout/internal/analyzer"
	"github.com/dexlens/poolscout/internal/config"
	"github.com/dexlens/poolscout/internal/datafetcher"
	"github.com/dexlens/poolscout/internal/intent"
	"github.com/dexlens/poolscout/internal/planner"
	"github.com/dexlens/poolscout/internal/types"
	"github.com/gorilla/mux"
)

// queryReader reads optional query parameters over preset-seeded values with
// a sticky error, so handlers can apply a run of overrides and check once.
type queryReader struct {
	query url.Values
	err   error
}

func (q *queryReader) float(name string, target *float64) {
	if q.err != nil {
		return
	}
	raw := q.query.Get(name)
	if raw == "" {
		return
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		q.err = fmt.Errorf("%w: parameter %q must be a number, got %q", types.ErrInvalidInput, name, raw)
		return
	}
	*target = value
}

func (q *queryReader) integer(name string, target *int) {
	if q.err != nil {
		return
	}
	raw := q.query.Get(name)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		q.err = fmt.Errorf("%w: parameter %q must be an integer, got %q", types.ErrInvalidInput, name, raw)
		return
	}
	*target = value
}

// validateNetwork checks a caller-supplied network name against the
// configured deployment. Empty selects the configured network.
func (ws *WebServer) validateNetwork(network string) error {
	if network == "" || strings.EqualFold(network, ws.network) {
		return nil
	}
	return fmt.Errorf("%w: network %q is not served by this deployment (configured: %s)",
		types.ErrInvalidInput, network, ws.network)
}

func validateHistoryDays(days int) error {
	if days < 1 || days > 365 {
		return fmt.Errorf("%w: days must be between 1 and 365, got %d", types.ErrInvalidInput, days)
	}
	return nil
}

// handleGetPools returns every pool from the live sources with metrics
// computed but no scoring, filtering or ordering applied.
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	if err := ws.validateNetwork(r.URL.Query().Get("network")); err != nil {
		ws.writeDomainError(w, err)
		return
	}

	days := config.DefaultHistoryDays
	reader := &queryReader{query: r.URL.Query()}
	reader.integer("days", &days)
	if reader.err != nil {
		ws.writeDomainError(w, reader.err)
		return
	}
	if err := validateHistoryDays(days); err != nil {
		ws.writeDomainError(w, err)
		return
	}

	pools, _, err := datafetcher.FetchPoolsAllSources(r.Context(), ws.sources, days)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	scored := make([]types.ScoredPool, 0, len(pools))
	for _, pool := range pools {
		scored = append(scored, analyzer.ComputePoolMetrics(pool, days))
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"network":     ws.network,
		"historyDays": days,
		"count":       len(scored),
		"pools":       scored,
	})
}

// handleGetBestPools runs the full scoring pipeline over the live sources.
// The balanced preset seeds the options; an explicit strategy parameter
// replaces the seed, and explicit parameters override either.
func (ws *WebServer) handleGetBestPools(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if err := ws.validateNetwork(query.Get("network")); err != nil {
		ws.writeDomainError(w, err)
		return
	}

	preset := ws.presets[types.TierMedium]
	if raw := query.Get("strategy"); raw != "" {
		tier, err := types.ParseStrategyTier(raw)
		if err != nil {
			ws.writeDomainError(w, err)
			return
		}
		preset = ws.presets[tier]
	}

	opts := preset.ScoreOptions()
	opts.TopN = config.DefaultTopN

	reader := &queryReader{query: query}
	reader.float("minTvl", &opts.MinTVLUSD)
	reader.float("minApr", &opts.MinAprPercent)
	reader.float("aprWeight", &opts.AprWeight)
	reader.float("tvlWeight", &opts.TvlWeight)
	reader.float("volatilityWeight", &opts.VolatilityWeight)
	reader.float("tvlTrendWeight", &opts.TvlTrendWeight)
	reader.float("volumeTrendWeight", &opts.VolumeTrendWeight)
	reader.float("correlationWeight", &opts.CorrelationWeight)
	reader.integer("topN", &opts.TopN)
	reader.integer("days", &opts.HistoryDays)
	if reader.err != nil {
		ws.writeDomainError(w, reader.err)
		return
	}
	if err := validateHistoryDays(opts.HistoryDays); err != nil {
		ws.writeDomainError(w, err)
		return
	}

	pools, _, err := datafetcher.FetchPoolsAllSources(r.Context(), ws.sources, opts.HistoryDays)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	scored := analyzer.ScorePools(pools, opts)

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"network":     ws.network,
		"historyDays": opts.HistoryDays,
		"count":       len(scored),
		"pools":       scored,
	})
}

// handleGetPoolsByStrategy runs the scoring pipeline with a named preset
// against the live sources.
func (ws *WebServer) handleGetPoolsByStrategy(w http.ResponseWriter, r *http.Request) {
	tier, err := types.ParseStrategyTier(mux.Vars(r)["tier"])
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}
	if err := ws.validateNetwork(r.URL.Query().Get("network")); err != nil {
		ws.writeDomainError(w, err)
		return
	}

	preset := ws.presets[tier]
	opts := preset.ScoreOptions()
	opts.TopN = config.DefaultTopN

	reader := &queryReader{query: r.URL.Query()}
	reader.integer("topN", &opts.TopN)
	reader.integer("days", &opts.HistoryDays)
	if reader.err != nil {
		ws.writeDomainError(w, reader.err)
		return
	}
	if err := validateHistoryDays(opts.HistoryDays); err != nil {
		ws.writeDomainError(w, err)
		return
	}

	pools, _, err := datafetcher.FetchPoolsAllSources(r.Context(), ws.sources, opts.HistoryDays)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	scored := analyzer.ScorePools(pools, opts)

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"network":     ws.network,
		"tier":        tier,
		"strategy":    preset.Name,
		"historyDays": opts.HistoryDays,
		"count":       len(scored),
		"pools":       scored,
	})
}

// strategySummary is the compact preset DTO served by /api/strategies.
type strategySummary struct {
	Tier              types.StrategyTier `json:"tier"`
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	MinTvlUSD         float64            `json:"minTvlUsd"`
	MinAprPercent     float64            `json:"minAprPercent"`
	MaxPoolAgeDays    int                `json:"maxPoolAgeDays"`
	PreferredFeeTiers []int              `json:"preferredFeeTiers"`
	TargetPositions   int                `json:"targetPositions"`
	Weights           map[string]float64 `json:"weights"`
}

// handleGetStrategies returns the preset summaries for all tiers.
func (ws *WebServer) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	summaries := make([]strategySummary, 0, len(ws.presets))
	for _, tier := range types.AllStrategyTiers() {
		preset, ok := ws.presets[tier]
		if !ok {
			continue
		}
		summaries = append(summaries, strategySummary{
			Tier:              preset.Tier,
			Name:              preset.Name,
			Description:       preset.Description,
			MinTvlUSD:         preset.MinTVLUSD,
			MinAprPercent:     preset.MinAprPercent,
			MaxPoolAgeDays:    preset.MaxPoolAgeDays,
			PreferredFeeTiers: preset.PreferredFeeTiers,
			TargetPositions:   preset.TargetPositions,
			Weights: map[string]float64{
				"apr":         preset.AprWeight,
				"tvl":         preset.TvlWeight,
				"volatility":  preset.VolatilityWeight,
				"tvlTrend":    preset.TvlTrendWeight,
				"volumeTrend": preset.VolumeTrendWeight,
				"correlation": preset.CorrelationWeight,
			},
		})
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"strategies": summaries,
		"count":      len(summaries),
	})
}

type positionSizingRequest struct {
	Strategy           string  `json:"strategy"`
	TotalInvestmentUSD float64 `json:"totalInvestmentUSD"`
	MaxPositions       int     `json:"maxPositions,omitempty"`
	EqualWeight        bool    `json:"equalWeight,omitempty"`
	Network            string  `json:"network,omitempty"`
}

// handlePositionSizing sizes positions for a strategy tier out of the cached
// scored pools.
func (ws *WebServer) handlePositionSizing(w http.ResponseWriter, r *http.Request) {
	var req positionSizingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	tier, err := types.ParseStrategyTier(req.Strategy)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}
	if err := ws.validateNetwork(req.Network); err != nil {
		ws.writeDomainError(w, err)
		return
	}

	pools, err := ws.cache.GetPools(r.Context(), tier)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	recommendations, err := allocator.CalculatePositionSizes(pools, req.TotalInvestmentUSD, ws.presets[tier], allocator.SizingOptions{
		EqualWeight:  req.EqualWeight,
		MaxPositions: req.MaxPositions,
	})
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"strategy":           tier,
		"totalInvestmentUSD": req.TotalInvestmentUSD,
		"count":              len(recommendations),
		"positions":          recommendations,
	})
}

type rebalanceRequest struct {
	Strategy           string           `json:"strategy"`
	CurrentPositions   []types.Position `json:"currentPositions"`
	AvailableLiquidity float64          `json:"availableLiquidity,omitempty"`
	MinActionThreshold float64          `json:"minActionThreshold,omitempty"`
	MaxPositions       int              `json:"maxPositions,omitempty"`
	Network            string           `json:"network,omitempty"`
}

// handleRebalanceRecommendations analyzes held positions against the cached
// scored pools for the tier.
func (ws *WebServer) handleRebalanceRecommendations(w http.ResponseWriter, r *http.Request) {
	var req rebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	tier, err := types.ParseStrategyTier(req.Strategy)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}
	if err := ws.validateNetwork(req.Network); err != nil {
		ws.writeDomainError(w, err)
		return
	}

	pools, err := ws.cache.GetPools(r.Context(), tier)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	actions, err := planner.BuildRebalancePlan(req.CurrentPositions, pools, ws.presets[tier], planner.RebalanceOptions{
		AvailableLiquidityUSD: req.AvailableLiquidity,
		MaxPositions:          req.MaxPositions,
		MinActionThreshold:    req.MinActionThreshold,
	})
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"strategy":        tier,
		"count":           len(actions),
		"recommendations": actions,
	})
}

// handleGetCachedPools serves the cached scored pools for a tier.
func (ws *WebServer) handleGetCachedPools(w http.ResponseWriter, r *http.Request) {
	tier, err := types.ParseStrategyTier(mux.Vars(r)["tier"])
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	pools, err := ws.cache.GetPools(r.Context(), tier)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"tier":  tier,
		"count": len(pools),
		"pools": pools,
	})
}

// handleGetCachedApr serves the cached average APR for a tier.
func (ws *WebServer) handleGetCachedApr(w http.ResponseWriter, r *http.Request) {
	tier, err := types.ParseStrategyTier(mux.Vars(r)["tier"])
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	apr, err := ws.cache.GetAverageApr(r.Context(), tier)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"tier":       tier,
		"averageApr": apr,
	})
}

// handleRefreshCache kicks off a refresh of every tier and returns
// immediately; progress is observable through /health and /api/refreshes.
func (ws *WebServer) handleRefreshCache(w http.ResponseWriter, r *http.Request) {
	// Detached context: the refresh must outlive this request.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := ws.cache.RefreshAll(ctx); err != nil {
			webLogger.Error().Err(err).Msg("Manual cache refresh failed")
		}
	}()

	ws.writeJSONResponse(w, http.StatusAccepted, map[string]interface{}{
		"status":    "refresh started",
		"timestamp": time.Now().UTC(),
	})
}

// handleGetRefreshes returns recent refresh snapshots from the database.
func (ws *WebServer) handleGetRefreshes(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Refresh history persistence is disabled")
		return
	}

	limit := 10
	reader := &queryReader{query: r.URL.Query()}
	reader.integer("limit", &limit)
	if reader.err != nil {
		ws.writeDomainError(w, reader.err)
		return
	}

	refreshes, err := ws.history.GetRecentRefreshes(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent refreshes")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve refresh history")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"refreshes": refreshes,
		"count":     len(refreshes),
		"limit":     limit,
	})
}

// handleGetRefreshSummary returns per-tier refresh aggregates.
func (ws *WebServer) handleGetRefreshSummary(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Refresh history persistence is disabled")
		return
	}

	summary, err := ws.history.GetRefreshSummary()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get refresh summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve refresh summary")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"count":   len(summary),
	})
}

type intentRequest struct {
	Message string `json:"message"`
}

// handleParseIntent maps a free-text message to a typed strategy intent.
func (ws *WebServer) handleParseIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		ws.writeDomainError(w, fmt.Errorf("%w: message is required", types.ErrInvalidInput))
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, intent.Parse(req.Message))
}
