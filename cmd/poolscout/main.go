package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dexlens/poolscout/internal/config"
	"github.com/dexlens/poolscout/internal/datafetcher"
	"github.com/dexlens/poolscout/internal/logger"
	"github.com/dexlens/poolscout/internal/metrics"
	"github.com/dexlens/poolscout/internal/poolcache"
	"github.com/dexlens/poolscout/internal/scheduler"
	"github.com/dexlens/poolscout/internal/state"
	"github.com/dexlens/poolscout/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	WARMUP_TIMEOUT   = 5 * time.Minute
	SHUTDOWN_TIMEOUT = 30 * time.Second
)

// main is the entry point for the poolscout service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Info().Msg(".env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel, config.LogFile)
	log.Info().Str("network", config.NetworkName).Msg("Poolscout starting...")

	// Initialize Database Connection (refresh history and preset versioning)
	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: config.DBPort,
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Strategy Presets ---
	// The compiled table is canonical; the database keeps a version history
	// of it for auditing, so failing to write there is not fatal.
	presets := config.StrategyPresets()
	if err := config.ValidatePresets(presets); err != nil {
		log.Fatal().Err(err).Msg("Strategy preset table is invalid")
	}
	if err := state.SavePresetVersions(presets); err != nil {
		log.Warn().Err(err).Msg("Failed to version strategy presets in the database, continuing with compiled table")
	}
	log.Info().Int("tiers", len(presets)).Msg("Strategy presets loaded")

	// --- 3. Upstream Sources, Metrics and Cache ---
	var sources []datafetcher.Source
	for _, sourceCfg := range config.SubgraphSources() {
		client, err := datafetcher.NewClient(sourceCfg, config.SourceRateLimitRPS, config.SourceRateLimitBurst)
		if err != nil {
			log.Fatal().Err(err).Str("source", sourceCfg.Name).Msg("Failed to create subgraph client")
		}
		sources = append(sources, client)
	}

	registry := metrics.NewRegistry()

	cache, err := poolcache.New(poolcache.Config{
		Sources:      sources,
		Presets:      presets,
		Store:        state.Store{},
		Metrics:      registry,
		DemoMode:     config.DemoMode,
		DemoBaseApr:  config.DemoBaseApr,
		DemoAprDecay: config.DemoAprDecay,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pool cache service")
	}

	// Warm the cache so the first requests don't all pay the upstream
	// round trip. Partial failure is fine; tiers recover on later refreshes.
	warmCtx, cancelWarm := context.WithTimeout(context.Background(), WARMUP_TIMEOUT)
	if err := cache.WarmUp(warmCtx); err != nil {
		log.Warn().Err(err).Msg("Cache warm-up incomplete, serving degraded until sources recover")
	}
	cancelWarm()

	// --- 4. Scheduled Refresh ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(ctx)
	if err := sched.Register(config.CacheRefreshSchedule, cache); err != nil {
		log.Fatal().Err(err).Str("schedule", config.CacheRefreshSchedule).Msg("Failed to register cache refresh job")
	}
	sched.Start()
	defer sched.Stop()

	// --- 5. Web Server ---
	webServer, err := web.NewWebServer(web.Config{
		Port:    config.WebServerPort,
		Network: config.NetworkName,
		Sources: sources,
		Cache:   cache,
		Presets: presets,
		Metrics: registry,
		History: state.Store{},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}

	go func() {
		if err := webServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Web server failed")
			stop()
		}
	}()
	log.Info().Str("port", config.WebServerPort).Str("url", "http://localhost:"+config.WebServerPort).Msg("Poolscout serving")

	// --- 6. Shutdown ---
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, draining")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
	defer cancelShutdown()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
}
