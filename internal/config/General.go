package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// LogLevel controls zerolog verbosity ("debug", "info", "warn", "error").
	LogLevel string
	// LogFile optionally tees log output to a file alongside the console.
	LogFile string

	// WebServerPort is the port the REST API listens on.
	WebServerPort string

	// NetworkName identifies the network this deployment serves. Callers may
	// pass it on requests; anything else is rejected.
	NetworkName string

	// DBHost is the PostgreSQL host.
	DBHost string
	// DBPort is the PostgreSQL port.
	DBPort int
	// DBUser is the PostgreSQL user.
	DBUser string
	// DBPassword is the PostgreSQL password.
	DBPassword string
	// DBName is the PostgreSQL database name.
	DBName string
	// DBSSLMode is the PostgreSQL sslmode ("disable", "require", ...).
	DBSSLMode string

	// CacheRefreshSchedule is the cron expression for the periodic cache
	// refresh. The freshness window itself is fixed (see poolcache).
	CacheRefreshSchedule string

	// SourceRateLimitRPS caps sustained queries per second per subgraph source.
	SourceRateLimitRPS float64
	// SourceRateLimitBurst is the per-source token-bucket burst size.
	SourceRateLimitBurst int

	// DemoMode replaces computed APRs with synthetic exponential-decay values.
	// Presentation only; never enable against real consumers.
	DemoMode bool
	// DemoBaseApr is the APR assigned to the top-ranked pool in demo mode.
	DemoBaseApr float64
	// DemoAprDecay is the per-rank exponential decay rate in demo mode.
	DemoAprDecay float64
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. Database, subgraph endpoint, port, and log settings
// are required; tunables fall back to defaults.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	LogLevel, err = getEnv("LOG_LEVEL")
	if err != nil {
		return err
	}
	LogFile = getEnvOrDefault("LOG_FILE", "")

	WebServerPort, err = getEnv("WEB_SERVER_PORT")
	if err != nil {
		return err
	}
	if _, convErr := strconv.Atoi(WebServerPort); convErr != nil {
		return errors.New("environment variable WEB_SERVER_PORT must be a valid port number, got: " + WebServerPort)
	}

	NetworkName = strings.ToLower(getEnvOrDefault("NETWORK_NAME", "mainnet"))

	DBHost, err = getEnv("DB_HOST")
	if err != nil {
		return err
	}
	DBPort, err = getEnvAsInt("DB_PORT")
	if err != nil {
		return err
	}
	DBUser, err = getEnv("DB_USER")
	if err != nil {
		return err
	}
	DBPassword, err = getEnv("DB_PASSWORD")
	if err != nil {
		return err
	}
	DBName, err = getEnv("DB_NAME")
	if err != nil {
		return err
	}
	DBSSLMode, err = getEnv("DB_SSLMODE")
	if err != nil {
		return err
	}

	CacheRefreshSchedule = getEnvOrDefault("CACHE_REFRESH_SCHEDULE", "0 */6 * * *")

	SourceRateLimitRPS, err = getEnvAsFloat64OrDefault("SOURCE_RATE_LIMIT_RPS", 5)
	if err != nil {
		return err
	}
	SourceRateLimitBurst, err = getEnvAsIntOrDefault("SOURCE_RATE_LIMIT_BURST", 10)
	if err != nil {
		return err
	}

	DemoMode, err = getEnvAsBoolOrDefault("DEMO_MODE", false)
	if err != nil {
		return err
	}
	DemoBaseApr, err = getEnvAsFloat64OrDefault("DEMO_BASE_APR", 120)
	if err != nil {
		return err
	}
	DemoAprDecay, err = getEnvAsFloat64OrDefault("DEMO_APR_DECAY", 0.35)
	if err != nil {
		return err
	}

	// Load subgraph endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("NetworkName", NetworkName).
		Str("WebServerPort", WebServerPort).
		Str("CacheRefreshSchedule", CacheRefreshSchedule).
		Bool("DemoMode", DemoMode).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back to a
// default when unset. Only for genuinely optional settings.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsIntOrDefault is getEnvAsInt with a fallback for unset keys. A set
// but malformed value is still an error, never silently defaulted.
func getEnvAsIntOrDefault(key string, fallback int) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64OrDefault retrieves an environment variable as a float64
// with a fallback for unset keys.
func getEnvAsFloat64OrDefault(key string, fallback float64) (float64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBoolOrDefault retrieves an environment variable as a bool with a
// fallback for unset keys.
func getEnvAsBoolOrDefault(key string, fallback bool) (bool, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}
