/*

This file contains the pool cache service. It owns the per-tier scored pool
entries, refreshes them from the upstream sources on a schedule and on
demand, and serves reads with read-through refresh when an entry has gone
stale. Per tier the entry moves EMPTY -> REFRESHING -> FRESH -> STALE and
back; a fully failed refresh leaves the previous entry in place because a
stale answer beats no answer.

*/

package poolcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dexlens/poolscout/internal/analyzer"
	"github.com/dexlens/poolscout/internal/config"
	"github.com/dexlens/poolscout/internal/datafetcher"
	"github.com/dexlens/poolscout/internal/logger"
	"github.com/dexlens/poolscout/internal/metrics"
	"github.com/dexlens/poolscout/internal/types"
)

const (
	// FRESHNESS_WINDOW is how long a cache entry serves without triggering
	// a refresh.
	FRESHNESS_WINDOW = 6 * time.Hour

	// TOP_POOLS_RECORDED caps how many ranked pools each refresh snapshot
	// keeps for later inspection.
	TOP_POOLS_RECORDED = 5
)

// Cache entry states as reported by Status.
const (
	StateEmpty      = "EMPTY"
	StateRefreshing = "REFRESHING"
	StateFresh      = "FRESH"
	StateStale      = "STALE"
)

// PoolSource is one upstream pool provider; datafetcher.Client implements
// it and tests provide fakes.
type PoolSource = datafetcher.Source

// RefreshStore persists refresh outcomes. Implementations must tolerate
// concurrent calls; refreshes for different tiers run in parallel.
type RefreshStore interface {
	SaveRefreshSnapshot(snapshot types.RefreshSnapshot) (int64, error)
	NextRefreshNumber() (int, error)
}

// Config holds the dependencies for creating a cache service.
type Config struct {
	Sources []PoolSource
	Presets map[types.StrategyTier]types.StrategyPreset

	// Store and Metrics are optional. A nil store disables refresh history,
	// a nil registry disables instrumentation; both are useful in tests.
	Store   RefreshStore
	Metrics *metrics.Registry

	DemoMode     bool
	DemoBaseApr  float64
	DemoAprDecay float64
}

// Service is the cache. All exported methods are safe for concurrent use.
type Service struct {
	logger  zerolog.Logger
	sources []PoolSource
	presets map[types.StrategyTier]types.StrategyPreset
	store   RefreshStore
	metrics *metrics.Registry

	demoMode     bool
	demoBaseApr  float64
	demoAprDecay float64

	mu         sync.RWMutex
	entries    map[types.StrategyTier]*types.CacheEntry
	refreshing map[types.StrategyTier]bool

	// refreshLocks serialize refreshes per tier so concurrent stale readers
	// coalesce onto one upstream fetch instead of storming the sources.
	refreshLocks map[types.StrategyTier]*sync.Mutex
}

// TierStatus is one tier's cache condition for health reporting.
type TierStatus struct {
	State       string     `json:"state"`
	PoolCount   int        `json:"poolCount"`
	AverageApr  float64    `json:"averageApr"`
	AgeSeconds  *float64   `json:"ageSeconds,omitempty"`
	RefreshedAt *time.Time `json:"refreshedAt,omitempty"`
}

// New creates a cache service with dependency injection.
func New(cfg Config) (*Service, error) {
	if err := validateServiceConfig(cfg); err != nil {
		return nil, fmt.Errorf("pool cache configuration validation failed: %w", err)
	}

	refreshLocks := make(map[types.StrategyTier]*sync.Mutex, len(cfg.Presets))
	for tier := range cfg.Presets {
		refreshLocks[tier] = &sync.Mutex{}
	}

	service := &Service{
		logger:       logger.GetForComponent("pool_cache"),
		sources:      cfg.Sources,
		presets:      cfg.Presets,
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		demoMode:     cfg.DemoMode,
		demoBaseApr:  cfg.DemoBaseApr,
		demoAprDecay: cfg.DemoAprDecay,
		entries:      make(map[types.StrategyTier]*types.CacheEntry, len(cfg.Presets)),
		refreshing:   make(map[types.StrategyTier]bool, len(cfg.Presets)),
		refreshLocks: refreshLocks,
	}

	service.logger.Info().
		Int("sources", len(cfg.Sources)).
		Int("tiers", len(cfg.Presets)).
		Bool("demoMode", cfg.DemoMode).
		Bool("persistenceEnabled", cfg.Store != nil).
		Msg("Pool cache service created")

	return service, nil
}

func validateServiceConfig(cfg Config) error {
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one pool source is required")
	}
	for i, source := range cfg.Sources {
		if source == nil {
			return fmt.Errorf("pool source %d is nil", i)
		}
	}
	if len(cfg.Presets) == 0 {
		return fmt.Errorf("at least one strategy preset is required")
	}
	for tier, preset := range cfg.Presets {
		if _, err := types.ParseStrategyTier(string(tier)); err != nil {
			return fmt.Errorf("unknown preset tier %q", tier)
		}
		if preset.Tier != tier {
			return fmt.Errorf("preset stored under tier %q declares tier %q", tier, preset.Tier)
		}
		if preset.HistoryDays < 1 {
			return fmt.Errorf("preset %q must have at least one history day", tier)
		}
	}
	if cfg.DemoMode {
		if cfg.DemoBaseApr <= 0 {
			return fmt.Errorf("demo base APR must be positive, got %f", cfg.DemoBaseApr)
		}
		if cfg.DemoAprDecay < 0 {
			return fmt.Errorf("demo APR decay cannot be negative, got %f", cfg.DemoAprDecay)
		}
	}
	return nil
}

// Name implements scheduler.Job.
func (s *Service) Name() string {
	return "pool_cache_refresh"
}

// Run implements scheduler.Job by refreshing every tier.
func (s *Service) Run(ctx context.Context) error {
	return s.RefreshAll(ctx)
}

// WarmUp refreshes every tier before the process starts serving. Failures
// are reported but are not fatal to the caller: a tier that could not warm
// stays EMPTY and recovers on the next scheduled or read-through refresh.
func (s *Service) WarmUp(ctx context.Context) error {
	s.logger.Info().Msg("Warming pool cache for all tiers before serving")
	startTime := time.Now()

	if err := s.RefreshAll(ctx); err != nil {
		s.logger.Warn().
			Err(err).
			Dur("elapsed", time.Since(startTime)).
			Msg("Cache warm-up finished with failures, serving degraded until sources recover")
		return err
	}

	s.logger.Info().
		Dur("elapsed", time.Since(startTime)).
		Msg("Pool cache warmed")
	return nil
}

// RefreshAll refreshes every configured tier concurrently. One tier failing
// never aborts the others; the joined error reports whichever did.
func (s *Service) RefreshAll(ctx context.Context) error {
	tiers := s.tiers()

	var wg sync.WaitGroup
	errCh := make(chan error, len(tiers))
	for _, tier := range tiers {
		wg.Add(1)
		go func(t types.StrategyTier) {
			defer wg.Done()
			if _, err := s.RefreshTier(ctx, t); err != nil {
				errCh <- fmt.Errorf("tier %s: %w", t, err)
			}
		}(tier)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RefreshTier rebuilds one tier's cache entry from the upstream sources.
// On total source failure the previous entry, if any, is retained untouched
// and returned; only a tier with no previous entry surfaces the error.
func (s *Service) RefreshTier(ctx context.Context, tier types.StrategyTier) (*types.CacheEntry, error) {
	lock, ok := s.refreshLocks[tier]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy tier %q", types.ErrInvalidInput, tier)
	}

	lock.Lock()
	defer lock.Unlock()
	return s.refreshTierLocked(ctx, tier)
}

// refreshTierLocked does the actual refresh. The caller must hold the
// tier's refresh lock.
func (s *Service) refreshTierLocked(ctx context.Context, tier types.StrategyTier) (*types.CacheEntry, error) {
	preset := s.presets[tier]

	refreshID := uuid.New().String()
	refreshLogger := s.logger.With().
		Str("refresh_id", refreshID).
		Str("tier", string(tier)).
		Logger()

	startTime := time.Now()
	refreshLogger.Info().Msg("--- Starting cache refresh ---")

	s.setRefreshing(tier, true)
	defer s.setRefreshing(tier, false)

	refreshNumber := s.nextRefreshNumber(refreshLogger)

	refreshLogger.Info().Int("historyDays", preset.HistoryDays).Msg("Step 1: Fetching pools from all sources...")
	pools, outcome, err := datafetcher.FetchPoolsAllSources(ctx, s.sources, preset.HistoryDays)
	for _, failed := range outcome.Failed {
		s.metrics.RecordSourceFailure(failed)
	}
	if err != nil {
		s.metrics.RecordRefresh(string(tier), "failure")
		s.metrics.ObserveRefreshDuration(string(tier), time.Since(startTime).Seconds())
		s.persistSnapshot(refreshLogger, refreshID, refreshNumber, tier, startTime, nil, outcome)

		refreshLogger.Error().Err(err).Msg("Cache refresh failed: every source failed")
		if previous := s.entry(tier); previous != nil {
			refreshLogger.Warn().
				Time("previousTimestamp", previous.Timestamp).
				Msg("Retaining previous cache entry, stale data beats none")
			return previous, nil
		}
		return nil, fmt.Errorf("refreshing tier %s: %w", tier, err)
	}
	refreshLogger.Info().
		Int("poolCount", len(pools)).
		Strs("sourcesSucceeded", outcome.Succeeded).
		Strs("sourcesFailed", outcome.Failed).
		Msg("Step 1: Data fetching complete.")

	refreshLogger.Info().Msg("Step 2: Scoring and ranking pools...")
	scoreOptions := preset.ScoreOptions()
	scoreOptions.TopN = config.DefaultTopN
	scored := analyzer.ScorePools(pools, scoreOptions)
	refreshLogger.Info().Int("scoredCount", len(scored)).Msg("Step 2: Scoring complete.")

	if s.demoMode {
		refreshLogger.Warn().
			Float64("baseApr", s.demoBaseApr).
			Float64("decay", s.demoAprDecay).
			Msg("DEMO MODE ACTIVE: replacing real APRs with synthetic values")
		analyzer.ApplyDemoAprOverride(scored, s.demoBaseApr, s.demoAprDecay)
	}

	entry := &types.CacheEntry{
		Tier:       tier,
		Pools:      scored,
		AverageApr: analyzer.AverageApr(scored),
		Timestamp:  time.Now(),
	}

	s.mu.Lock()
	s.entries[tier] = entry
	s.mu.Unlock()

	s.metrics.RecordRefresh(string(tier), "success")
	s.metrics.ObserveRefreshDuration(string(tier), time.Since(startTime).Seconds())
	s.metrics.SetCachedPools(string(tier), float64(len(entry.Pools)))
	s.metrics.SetCacheAverageApr(string(tier), entry.AverageApr)

	s.persistSnapshot(refreshLogger, refreshID, refreshNumber, tier, startTime, entry, outcome)

	refreshLogger.Info().
		Int("pools", len(entry.Pools)).
		Float64("averageApr", entry.AverageApr).
		Dur("elapsed", time.Since(startTime)).
		Msg("--- Cache refresh complete ---")

	return entry, nil
}

// GetPools serves the tier's scored pools, refreshing first when the entry
// is stale or missing. A warm read is cheap; a cold one pays for a full
// upstream fetch.
func (s *Service) GetPools(ctx context.Context, tier types.StrategyTier) ([]types.ScoredPool, error) {
	entry, err := s.currentEntry(ctx, tier)
	if err != nil {
		return nil, err
	}
	return entry.Pools, nil
}

// GetAverageApr serves the tier's mean APR under the same read-through
// semantics as GetPools.
func (s *Service) GetAverageApr(ctx context.Context, tier types.StrategyTier) (float64, error) {
	entry, err := s.currentEntry(ctx, tier)
	if err != nil {
		return 0, err
	}
	return entry.AverageApr, nil
}

// Status reports every tier's cache state for health checks.
func (s *Service) Status() map[types.StrategyTier]TierStatus {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make(map[types.StrategyTier]TierStatus, len(s.presets))
	for tier := range s.presets {
		status := TierStatus{State: StateEmpty}
		if s.refreshing[tier] {
			status.State = StateRefreshing
		}

		if entry := s.entries[tier]; entry != nil {
			age := entry.Age(now)
			ageSeconds := age.Seconds()
			refreshedAt := entry.Timestamp

			status.PoolCount = len(entry.Pools)
			status.AverageApr = entry.AverageApr
			status.AgeSeconds = &ageSeconds
			status.RefreshedAt = &refreshedAt

			if !s.refreshing[tier] {
				if age <= FRESHNESS_WINDOW {
					status.State = StateFresh
				} else {
					status.State = StateStale
				}
			}
		}
		statuses[tier] = status
	}
	return statuses
}

func (s *Service) currentEntry(ctx context.Context, tier types.StrategyTier) (*types.CacheEntry, error) {
	lock, ok := s.refreshLocks[tier]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy tier %q", types.ErrInvalidInput, tier)
	}

	if entry := s.entry(tier); entry != nil && entry.Age(time.Now()) <= FRESHNESS_WINDOW {
		return entry, nil
	}

	// Slow path. Whoever wins the lock refreshes; everyone queued behind
	// finds the fresh entry in the double-check and returns immediately.
	lock.Lock()
	defer lock.Unlock()

	if entry := s.entry(tier); entry != nil && entry.Age(time.Now()) <= FRESHNESS_WINDOW {
		return entry, nil
	}

	return s.refreshTierLocked(ctx, tier)
}

func (s *Service) entry(tier types.StrategyTier) *types.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[tier]
}

func (s *Service) setRefreshing(tier types.StrategyTier, refreshing bool) {
	s.mu.Lock()
	s.refreshing[tier] = refreshing
	s.mu.Unlock()
}

// tiers returns the configured tiers in fixed low-to-high order.
func (s *Service) tiers() []types.StrategyTier {
	tiers := make([]types.StrategyTier, 0, len(s.presets))
	for _, tier := range types.AllStrategyTiers() {
		if _, ok := s.presets[tier]; ok {
			tiers = append(tiers, tier)
		}
	}
	return tiers
}

func (s *Service) nextRefreshNumber(refreshLogger zerolog.Logger) int {
	if s.store == nil {
		return 0
	}
	number, err := s.store.NextRefreshNumber()
	if err != nil {
		refreshLogger.Error().Err(err).Msg("Failed to increment refresh number, using timestamp fallback")
		return int(time.Now().Unix() % 1000000)
	}
	return number
}

// persistSnapshot records the refresh outcome. Best effort: a database
// problem is logged and the refresh result stands.
func (s *Service) persistSnapshot(refreshLogger zerolog.Logger, refreshID string, refreshNumber int, tier types.StrategyTier, startTime time.Time, entry *types.CacheEntry, outcome datafetcher.SourceOutcome) {
	if s.store == nil {
		return
	}

	snapshot := types.RefreshSnapshot{
		RefreshID:        refreshID,
		RefreshNumber:    refreshNumber,
		Tier:             tier,
		StartedAt:        startTime,
		DurationMS:       time.Since(startTime).Milliseconds(),
		SourcesSucceeded: outcome.Succeeded,
		SourcesFailed:    outcome.Failed,
	}
	if entry != nil {
		snapshot.PoolCount = len(entry.Pools)
		snapshot.AverageApr = entry.AverageApr
		for i, pool := range entry.Pools {
			if i >= TOP_POOLS_RECORDED {
				break
			}
			snapshot.TopPools = append(snapshot.TopPools, types.TopPoolRecord{
				PoolID: pool.ID,
				Pair:   pool.PairLabel(),
				Score:  pool.Score,
				Apr:    pool.Apr,
			})
		}
	}

	snapshotID, err := s.store.SaveRefreshSnapshot(snapshot)
	if err != nil {
		refreshLogger.Error().Err(err).Msg("Failed to save refresh snapshot to database")
		return
	}
	refreshLogger.Info().Int64("snapshot_id", snapshotID).Msg("Refresh snapshot saved")
}
