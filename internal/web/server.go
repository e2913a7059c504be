/*

This file contains the HTTP server for the pool analytics API. It wires the
gorilla/mux router, the CORS and request-logging middleware, the health and
Prometheus endpoints, and the JSON response helpers. Handler bodies for the
/api routes live in handlers.go; everything reaches the core through the
dependencies injected via Config, never through package globals.

*/

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/dexlens/poolscout/internal/datafetcher"
	"github.com/dexlens/poolscout/internal/logger"
	"github.com/dexlens/poolscout/internal/metrics"
	"github.com/dexlens/poolscout/internal/poolcache"
	"github.com/dexlens/poolscout/internal/types"
	"github.com/gorilla/mux"
)

var webLogger = logger.GetForComponent("web_server")

// RefreshHistory is the slice of the persistence layer the read-only history
// endpoints need. A nil history disables those endpoints (503) without
// affecting the rest of the API.
type RefreshHistory interface {
	Ping() error
	GetRecentRefreshes(limit int) ([]types.RefreshSnapshot, error)
	GetRefreshSummary() ([]types.RefreshSummary, error)
}

// Config carries everything the server needs. Port, Network, Sources, Cache
// and Presets are required; Metrics and History may be nil (metrics become
// no-ops, history endpoints return 503).
type Config struct {
	Port    string
	Network string
	Sources []datafetcher.Source
	Cache   *poolcache.Service
	Presets map[types.StrategyTier]types.StrategyPreset
	Metrics *metrics.Registry
	History RefreshHistory
}

func validateServerConfig(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port is required")
	}
	if cfg.Network == "" {
		return errors.New("network name is required")
	}
	if len(cfg.Sources) == 0 {
		return errors.New("at least one pool source is required")
	}
	if cfg.Cache == nil {
		return errors.New("pool cache service is required")
	}
	if len(cfg.Presets) == 0 {
		return errors.New("strategy presets are required")
	}
	for _, tier := range types.AllStrategyTiers() {
		if _, ok := cfg.Presets[tier]; !ok {
			return fmt.Errorf("missing preset for tier %s", tier)
		}
	}
	return nil
}

// WebServer handles HTTP requests for pool analytics data
type WebServer struct {
	router     *mux.Router
	httpServer *http.Server
	startedAt  time.Time

	port    string
	network string
	sources []datafetcher.Source
	cache   *poolcache.Service
	presets map[types.StrategyTier]types.StrategyPreset
	metrics *metrics.Registry
	history RefreshHistory
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) (*WebServer, error) {
	if err := validateServerConfig(cfg); err != nil {
		return nil, fmt.Errorf("web server configuration validation failed: %w", err)
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		startedAt: time.Now(),
		port:      cfg.Port,
		network:   cfg.Network,
		sources:   cfg.Sources,
		cache:     cfg.Cache,
		presets:   cfg.Presets,
		metrics:   cfg.Metrics,
		history:   cfg.History,
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health and Prometheus endpoints (direct routes)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", ws.metrics.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools/best", ws.handleGetBestPools).Methods("GET")
	api.HandleFunc("/pools/strategy/{tier}", ws.handleGetPoolsByStrategy).Methods("GET")
	api.HandleFunc("/strategies", ws.handleGetStrategies).Methods("GET")
	api.HandleFunc("/positions/size", ws.handlePositionSizing).Methods("POST")
	api.HandleFunc("/positions/rebalance", ws.handleRebalanceRecommendations).Methods("POST")
	api.HandleFunc("/cache/pools/{tier}", ws.handleGetCachedPools).Methods("GET")
	api.HandleFunc("/cache/apr/{tier}", ws.handleGetCachedApr).Methods("GET")
	api.HandleFunc("/cache/refresh", ws.handleRefreshCache).Methods("POST")
	api.HandleFunc("/refreshes", ws.handleGetRefreshes).Methods("GET")
	api.HandleFunc("/refreshes/summary", ws.handleGetRefreshSummary).Methods("GET")
	api.HandleFunc("/intent", ws.handleParseIntent).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Router exposes the configured handler, mainly for tests.
func (ws *WebServer) Router() http.Handler {
	return ws.router
}

// Start starts the web server and blocks until it stops
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	ws.httpServer = &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return ws.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	if ws.httpServer == nil {
		return nil
	}
	webLogger.Info().Msg("Shutting down web server")
	return ws.httpServer.Shutdown(ctx)
}

// handleHealth returns comprehensive server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Get runtime memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	// Per-tier cache status; an EMPTY tier means reads on it will block or
	// fail, which counts as degraded.
	cacheStatus := ws.cache.Status()
	for _, status := range cacheStatus {
		if status.State == poolcache.StateEmpty {
			hasErrors = true
		}
	}

	// Database connection status (persistence is optional)
	database := map[string]interface{}{
		"enabled": ws.history != nil,
		"healthy": false,
	}
	if ws.history != nil {
		if err := ws.history.Ping(); err != nil {
			hasErrors = true
		} else {
			database["healthy"] = true
		}
	}

	// Determine overall status
	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"network":   ws.network,
		"system": map[string]interface{}{
			"version":            runtime.Version(),
			"goroutines_count":   runtime.NumGoroutine(),
			"total_alloc_bytes":  memStats.TotalAlloc,
			"heap_objects_count": memStats.HeapObjects,
			"alloc_bytes":        memStats.Alloc,
			"sys_bytes":          memStats.Sys,
			"gc_cycles":          memStats.NumGC,
			"uptime_seconds":     int64(time.Since(ws.startedAt).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "poolscout",
			"version": "1.0.0",
		},
		"cache":    cacheStatus,
		"database": database,
	}

	// Set appropriate HTTP status code
	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// writeDomainError maps core errors onto HTTP statuses: invalid input is the
// caller's fault (400), every upstream source failing is a bad gateway (502),
// anything else is internal (500).
func (ws *WebServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, datafetcher.ErrAllSourcesFailed):
		ws.writeErrorResponse(w, http.StatusBadGateway, err.Error())
	default:
		webLogger.Error().Err(err).Msg("Request failed")
		ws.writeErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests and feeds the request counter
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		// Label the metric with the route template so pool IDs and tiers
		// don't explode the cardinality.
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}
		ws.metrics.RecordHTTPRequest(path, r.Method, wrapper.statusCode)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
