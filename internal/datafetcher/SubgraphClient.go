package datafetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/dexlens/poolscout/internal/config"
	"github.com/dexlens/poolscout/internal/logger"
	"github.com/dexlens/poolscout/internal/types"
)

var subgraphLogger = logger.GetForComponent("subgraph_client")
var ErrSourceQuery = errors.New("subgraph query failed")
var ErrResponseInvalid = errors.New("subgraph response validation failed")

const (
	// SOURCE_TIMEOUT bounds every upstream query. A slow source degrades to
	// an empty contribution; it never stalls a refresh.
	SOURCE_TIMEOUT = 15 * time.Second

	// POOLS_PAGE_SIZE is how many top-TVL pools each source is asked for.
	POOLS_PAGE_SIZE = 50

	// Circuit breaker: open after this many consecutive failures, retry
	// after the cooldown.
	BREAKER_CONSECUTIVE_FAILURES = 5
	BREAKER_COOLDOWN             = 30 * time.Second
)

// poolsQueryTemplate is the query contract both protocol-version subgraphs
// serve. The two %d verbs are the page size and the per-pool snapshot count.
const poolsQueryTemplate = `{
  pools(orderBy: totalValueLockedUSD, orderDirection: desc, first: %d) {
    id
    token0 { id symbol name }
    token1 { id symbol name }
    feeTier
    totalValueLockedUSD
    createdAtTimestamp
    poolDayData(orderBy: date, orderDirection: desc, first: %d) {
      date
      feesUSD
      volumeUSD
      tvlUSD
    }
  }
}`

// graphQLRequest is the POST body shape The Graph expects.
type graphQLRequest struct {
	Query string `json:"query"`
}

// graphQLResponse is the envelope; Errors being present means the query
// failed regardless of HTTP status.
type graphQLResponse struct {
	Data struct {
		Pools []types.Pool `json:"pools"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Client queries one subgraph endpoint. Each client carries its own rate
// limiter and circuit breaker so a misbehaving source cannot starve or
// hammer the other.
type Client struct {
	name       string
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewClient builds a client for one configured source.
func NewClient(source config.SubgraphSource, ratePerSecond float64, burst int) (*Client, error) {
	if strings.TrimSpace(source.Name) == "" {
		return nil, errors.New("subgraph source name cannot be empty")
	}
	if strings.TrimSpace(source.URL) == "" {
		return nil, errors.New("subgraph source URL cannot be empty for " + source.Name)
	}
	if ratePerSecond <= 0 {
		return nil, fmt.Errorf("rate limit for %s must be positive, got %f", source.Name, ratePerSecond)
	}
	if burst < 1 {
		return nil, fmt.Errorf("rate limit burst for %s must be at least 1, got %d", source.Name, burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source.Name,
		MaxRequests: 1,
		Timeout:     BREAKER_COOLDOWN,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= BREAKER_CONSECUTIVE_FAILURES
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			subgraphLogger.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Subgraph circuit breaker state changed")
		},
	})

	return &Client{
		name:       source.Name,
		url:        source.URL,
		httpClient: &http.Client{Timeout: SOURCE_TIMEOUT},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		breaker:    breaker,
	}, nil
}

// Name identifies the source in logs, metrics, and refresh snapshots.
func (c *Client) Name() string {
	return c.name
}

// FetchPools queries the source for the top pools by TVL, each with up to
// historyDays of daily snapshots, newest first. Pools that fail structural
// validation are skipped, not fatal; transport and query errors are.
func (c *Client) FetchPools(ctx context.Context, historyDays int) ([]types.Pool, error) {
	if historyDays < 1 {
		return nil, fmt.Errorf("%w: historyDays must be at least 1, got %d", types.ErrInvalidInput, historyDays)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter wait on %s: %w", ErrSourceQuery, c.name, err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.queryPools(ctx, historyDays)
	})
	if err != nil {
		return nil, err
	}

	pools, ok := result.([]types.Pool)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected breaker result type from %s", ErrSourceQuery, c.name)
	}
	return pools, nil
}

func (c *Client) queryPools(ctx context.Context, historyDays int) ([]types.Pool, error) {
	query := fmt.Sprintf(poolsQueryTemplate, POOLS_PAGE_SIZE, historyDays)

	body, err := json.Marshal(graphQLRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling query for %s: %w", ErrSourceQuery, c.name, err)
	}

	subgraphLogger.Debug().
		Str("source", c.name).
		Int("historyDays", historyDays).
		Int("pageSize", POOLS_PAGE_SIZE).
		Msg("Querying subgraph for pools")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %w", ErrSourceQuery, c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		subgraphLogger.Error().Err(err).Str("source", c.name).Msg("Subgraph HTTP request failed")
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceQuery, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		subgraphLogger.Error().
			Str("source", c.name).
			Int("statusCode", resp.StatusCode).
			Msg("Subgraph returned non-200 status")
		return nil, fmt.Errorf("%w: %s returned status %d", ErrSourceQuery, c.name, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response from %s: %w", ErrSourceQuery, c.name, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty response body from %s", ErrResponseInvalid, c.name)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		subgraphLogger.Error().
			Err(err).
			Str("source", c.name).
			Int("bodyLength", len(raw)).
			Msg("Failed to parse subgraph JSON response")
		return nil, fmt.Errorf("%w: parsing response from %s: %w", ErrResponseInvalid, c.name, err)
	}

	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			messages = append(messages, e.Message)
		}
		subgraphLogger.Error().
			Str("source", c.name).
			Strs("graphqlErrors", messages).
			Msg("Subgraph returned GraphQL errors")
		return nil, fmt.Errorf("%w: %s reported errors: %s", ErrSourceQuery, c.name, strings.Join(messages, "; "))
	}

	valid := make([]types.Pool, 0, len(envelope.Data.Pools))
	skipped := 0
	for i, pool := range envelope.Data.Pools {
		if err := validatePoolEntry(pool); err != nil {
			subgraphLogger.Warn().
				Err(err).
				Str("source", c.name).
				Int("entryIndex", i).
				Str("poolID", pool.ID).
				Msg("Skipping invalid pool entry")
			skipped++
			continue
		}
		valid = append(valid, pool)
	}

	subgraphLogger.Debug().
		Str("source", c.name).
		Int("totalEntries", len(envelope.Data.Pools)).
		Int("validEntries", len(valid)).
		Int("skippedEntries", skipped).
		Msg("Fetched pools from subgraph")

	return valid, nil
}

// validatePoolEntry checks the structural fields scoring cannot work
// without. Snapshot values are deliberately not parsed here; the metrics
// engine degrades per-day problems on its own.
func validatePoolEntry(pool types.Pool) error {
	if strings.TrimSpace(pool.ID) == "" {
		return errors.New("pool ID cannot be empty")
	}
	if strings.TrimSpace(pool.Token0.Symbol) == "" {
		return fmt.Errorf("pool %s: token0 symbol cannot be empty", pool.ID)
	}
	if strings.TrimSpace(pool.Token1.Symbol) == "" {
		return fmt.Errorf("pool %s: token1 symbol cannot be empty", pool.ID)
	}
	if pool.Token0.ID == pool.Token1.ID {
		return fmt.Errorf("pool %s: token0 and token1 are the same contract", pool.ID)
	}
	return nil
}
