package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dexlens/poolscout/internal/logger"
	"github.com/dexlens/poolscout/internal/types"
)

var poolLogger = logger.GetForComponent("pool_retriever")
var ErrAllSourcesFailed = errors.New("all pool sources failed")

// Source is one upstream pool provider. Client implements it; tests swap in
// fakes.
type Source interface {
	Name() string
	FetchPools(ctx context.Context, historyDays int) ([]types.Pool, error)
}

// SourceOutcome records which sources contributed to a fetch and which did
// not, for refresh snapshots and health reporting.
type SourceOutcome struct {
	Succeeded []string
	Failed    []string
}

type sourceResult struct {
	name  string
	pools []types.Pool
	err   error
}

// FetchPoolsAllSources queries every source concurrently, each under its own
// timeout, and unions the results. A failed source degrades the result set
// rather than failing the fetch; only all sources failing is an error. Pools
// listed by more than one source are intentionally kept per occurrence: the
// sources index different protocol deployments, so identical IDs do not mean
// identical markets.
func FetchPoolsAllSources(ctx context.Context, sources []Source, historyDays int) ([]types.Pool, SourceOutcome, error) {
	outcome := SourceOutcome{}

	if len(sources) == 0 {
		return nil, outcome, fmt.Errorf("%w: no sources configured", ErrAllSourcesFailed)
	}
	if historyDays < 1 {
		return nil, outcome, fmt.Errorf("%w: historyDays must be at least 1, got %d", types.ErrInvalidInput, historyDays)
	}

	startTime := time.Now()
	poolLogger.Info().
		Int("sourceCount", len(sources)).
		Int("historyDays", historyDays).
		Msg("Fetching pools from all sources")

	results := make(chan sourceResult, len(sources))
	for _, src := range sources {
		go func(s Source) {
			sourceCtx, cancel := context.WithTimeout(ctx, SOURCE_TIMEOUT)
			defer cancel()

			pools, err := s.FetchPools(sourceCtx, historyDays)
			results <- sourceResult{name: s.Name(), pools: pools, err: err}
		}(src)
	}

	var pools []types.Pool
	var failures []string
	for range sources {
		result := <-results
		if result.err != nil {
			poolLogger.Warn().
				Err(result.err).
				Str("source", result.name).
				Msg("Pool source failed, continuing with remaining sources")
			outcome.Failed = append(outcome.Failed, result.name)
			failures = append(failures, fmt.Sprintf("%s: %v", result.name, result.err))
			continue
		}

		poolLogger.Debug().
			Str("source", result.name).
			Int("poolCount", len(result.pools)).
			Msg("Pool source succeeded")
		outcome.Succeeded = append(outcome.Succeeded, result.name)
		pools = append(pools, result.pools...)
	}

	if len(outcome.Succeeded) == 0 {
		poolLogger.Error().
			Int("sourceCount", len(sources)).
			Msg("Every pool source failed")
		return nil, outcome, fmt.Errorf("%w: %s", ErrAllSourcesFailed, strings.Join(failures, "; "))
	}

	poolLogger.Info().
		Int("poolCount", len(pools)).
		Int("sourcesSucceeded", len(outcome.Succeeded)).
		Int("sourcesFailed", len(outcome.Failed)).
		Dur("elapsed", time.Since(startTime)).
		Msg("Fetched pools from sources")

	return pools, outcome, nil
}
