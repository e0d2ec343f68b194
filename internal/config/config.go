package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/volleystats/parser/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the parser process.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	LogLevel       logging.Level

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DBEnabled bool
	DBURL     string

	SiteBaseURL             string
	FetchTimeout            time.Duration
	FetchMaxAttempts        int
	FetchCircuitEnabled     bool
	FetchCircuitFailures    int
	FetchCircuitOpenTimeout time.Duration
	FetchCircuitHalfOpenReq int

	LiveURL            string
	LiveSocketPath     string
	LiveToken          string
	LiveOrigin         string
	LiveRequestTimeout time.Duration

	Workers            int
	JobRetryAttempts   int
	JobRetryDelay      time.Duration
	ProbeMaxID         int
	ProbeFetchAttempts int

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled       bool
	PyroscopeServerAddress string
	PyroscopeAppName       string
	PyroscopeAuthToken     string
	PyroscopeUploadRate    time.Duration

	PprofEnabled bool
	PprofAddr    string
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("PARSER_APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("PARSER_SERVICE_NAME", "volleystats-parser"),
		ServiceVersion: getEnv("PARSER_SERVICE_VERSION", "dev"),
		LogLevel:       parseLogLevel(getEnv("PARSER_LOG_LEVEL", "info")),
	}

	cfg.RedisAddr = strings.TrimSpace(getEnv("PARSER_REDIS_ADDR", "localhost:6379"))
	cfg.RedisPassword = getEnv("PARSER_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvAsInt("PARSER_REDIS_DB", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_REDIS_DB: %w", err)
	}

	cfg.DBEnabled, err = strconv.ParseBool(getEnv("PARSER_DB_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_DB_ENABLED: %w", err)
	}
	cfg.DBURL = strings.TrimSpace(getEnv("PARSER_DB_URL", ""))
	if cfg.DBEnabled && cfg.DBURL == "" {
		return Config{}, fmt.Errorf("PARSER_DB_URL is required when PARSER_DB_ENABLED=true")
	}

	cfg.SiteBaseURL = strings.TrimSpace(getEnv("PARSER_SITE_BASE_URL", "https://panel.volleystation.com/website"))
	cfg.FetchTimeout, err = time.ParseDuration(getEnv("PARSER_FETCH_TIMEOUT", "20s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_FETCH_TIMEOUT: %w", err)
	}
	// Zero means retry until the context gives up.
	cfg.FetchMaxAttempts, err = getEnvAsInt("PARSER_FETCH_MAX_ATTEMPTS", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_FETCH_MAX_ATTEMPTS: %w", err)
	}

	cfg.FetchCircuitEnabled, err = strconv.ParseBool(getEnv("PARSER_FETCH_CIRCUIT_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_FETCH_CIRCUIT_ENABLED: %w", err)
	}
	cfg.FetchCircuitFailures, err = getEnvAsInt("PARSER_FETCH_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_FETCH_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if cfg.FetchCircuitFailures < 1 {
		return Config{}, fmt.Errorf("PARSER_FETCH_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	cfg.FetchCircuitOpenTimeout, err = time.ParseDuration(getEnv("PARSER_FETCH_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_FETCH_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if cfg.FetchCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("PARSER_FETCH_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	cfg.FetchCircuitHalfOpenReq, err = getEnvAsInt("PARSER_FETCH_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_FETCH_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if cfg.FetchCircuitHalfOpenReq < 1 {
		return Config{}, fmt.Errorf("PARSER_FETCH_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	cfg.LiveURL = strings.TrimSpace(getEnv("PARSER_LIVE_URL", "wss://api.widgets.volleystation.com"))
	cfg.LiveSocketPath = strings.TrimSpace(getEnv("PARSER_LIVE_SOCKET_PATH", "/socket.io/"))
	cfg.LiveToken = strings.TrimSpace(getEnv("PARSER_LIVE_TOKEN", ""))
	cfg.LiveOrigin = strings.TrimSpace(getEnv("PARSER_LIVE_ORIGIN", "https://widgets.volleystation.com"))
	cfg.LiveRequestTimeout, err = time.ParseDuration(getEnv("PARSER_LIVE_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_LIVE_REQUEST_TIMEOUT: %w", err)
	}
	if cfg.LiveRequestTimeout <= 0 {
		return Config{}, fmt.Errorf("PARSER_LIVE_REQUEST_TIMEOUT must be > 0")
	}

	cfg.Workers, err = getEnvAsInt("PARSER_WORKERS", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_WORKERS: %w", err)
	}
	if cfg.Workers < 1 {
		return Config{}, fmt.Errorf("PARSER_WORKERS must be >= 1")
	}
	cfg.JobRetryAttempts, err = getEnvAsInt("PARSER_JOB_RETRY_ATTEMPTS", 30)
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_JOB_RETRY_ATTEMPTS: %w", err)
	}
	if cfg.JobRetryAttempts < 1 {
		return Config{}, fmt.Errorf("PARSER_JOB_RETRY_ATTEMPTS must be >= 1")
	}
	cfg.JobRetryDelay, err = time.ParseDuration(getEnv("PARSER_JOB_RETRY_DELAY", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_JOB_RETRY_DELAY: %w", err)
	}
	if cfg.JobRetryDelay <= 0 {
		return Config{}, fmt.Errorf("PARSER_JOB_RETRY_DELAY must be > 0")
	}
	cfg.ProbeMaxID, err = getEnvAsInt("PARSER_PROBE_MAX_ID", 50)
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_PROBE_MAX_ID: %w", err)
	}
	if cfg.ProbeMaxID < 1 {
		return Config{}, fmt.Errorf("PARSER_PROBE_MAX_ID must be >= 1")
	}
	cfg.ProbeFetchAttempts, err = getEnvAsInt("PARSER_PROBE_FETCH_ATTEMPTS", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_PROBE_FETCH_ATTEMPTS: %w", err)
	}
	if cfg.ProbeFetchAttempts < 1 {
		return Config{}, fmt.Errorf("PARSER_PROBE_FETCH_ATTEMPTS must be >= 1")
	}

	cfg.UptraceEnabled, err = strconv.ParseBool(getEnv("PARSER_UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_UPTRACE_ENABLED: %w", err)
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("PARSER_UPTRACE_DSN", ""))
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return Config{}, fmt.Errorf("PARSER_UPTRACE_DSN is required when PARSER_UPTRACE_ENABLED=true")
	}

	cfg.PyroscopeEnabled, err = strconv.ParseBool(getEnv("PARSER_PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_PYROSCOPE_ENABLED: %w", err)
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PARSER_PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PARSER_PYROSCOPE_SERVER_ADDRESS is required when PARSER_PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PARSER_PYROSCOPE_APP_NAME", cfg.ServiceName))
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PARSER_PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeUploadRate, err = time.ParseDuration(getEnv("PARSER_PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_PYROSCOPE_UPLOAD_RATE: %w", err)
	}

	cfg.PprofEnabled, err = strconv.ParseBool(getEnv("PARSER_PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_PPROF_ENABLED: %w", err)
	}
	cfg.PprofAddr = strings.TrimSpace(getEnv("PARSER_PPROF_ADDR", ":6060"))

	return cfg, nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid PARSER_APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}
