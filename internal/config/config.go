package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"qk-sims/internal/simulation"
)

// Defaults for configuration values.
const (
	DefaultPort                  = "8000"
	DefaultDBPath                = "/data/qk-sims.db"
	DefaultCacheTTL              = 60 * time.Minute
	DefaultKellyFraction         = 0.25
	DefaultNumSimulations        = simulation.DefaultNumSimulations
	DefaultMaxNumSimulations     = 200000
	DefaultRuinThresholdPct      = 1.0
	DefaultRequestTimeout        = 30 * time.Second
	DefaultHistoryRetention      = 7 * 24 * time.Hour
	DefaultHistoryCleanupEvery   = time.Hour
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "json"
	DefaultAllowedOriginsSetting = "http://localhost:3000,https://*.vercel.app"
)

// Config holds all application configuration.
type Config struct {
	Port   string
	DBPath string // empty disables run history

	// Redis result cache; empty RedisAddr disables it
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Engine defaults
	KellyFraction     float64
	NumSimulations    int
	MaxNumSimulations int
	SimWorkers        int
	RuinThresholdPct  float64

	AllowedOrigins   []string
	RequestTimeout   time.Duration
	HistoryRetention time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables (and .env file if present).
func Load() Config {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := Config{
		Port:              DefaultPort,
		DBPath:            DefaultDBPath,
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		CacheTTL:          DefaultCacheTTL,
		KellyFraction:     DefaultKellyFraction,
		NumSimulations:    DefaultNumSimulations,
		MaxNumSimulations: DefaultMaxNumSimulations,
		SimWorkers:        runtime.NumCPU(),
		RuinThresholdPct:  DefaultRuinThresholdPct,
		AllowedOrigins:    splitList(DefaultAllowedOriginsSetting),
		RequestTimeout:    DefaultRequestTimeout,
		HistoryRetention:  DefaultHistoryRetention,
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}

	// DB_PATH=off turns history off entirely
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		if v == "off" {
			v = ""
		}
		cfg.DBPath = v
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}

	if v := os.Getenv("CACHE_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheTTL = time.Duration(n) * time.Minute
		}
	}

	if v := os.Getenv("KELLY_FRACTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.KellyFraction = f
		}
	}

	if v := os.Getenv("DEFAULT_NUM_SIMULATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumSimulations = n
		}
	}

	if v := os.Getenv("MAX_NUM_SIMULATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxNumSimulations = n
		}
	}

	if v := os.Getenv("SIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SimWorkers = n
		}
	}

	if v := os.Getenv("RUIN_THRESHOLD_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RuinThresholdPct = f
		}
	}

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestTimeout = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("HISTORY_RETENTION_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryRetention = time.Duration(n) * time.Hour
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that configuration values are within acceptable ranges.
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if cfg.KellyFraction <= 0 || cfg.KellyFraction > 1 {
		return fmt.Errorf("KELLY_FRACTION must be between 0 and 1, got %f", cfg.KellyFraction)
	}
	if cfg.NumSimulations < 1 {
		return fmt.Errorf("DEFAULT_NUM_SIMULATIONS must be positive, got %d", cfg.NumSimulations)
	}
	if cfg.MaxNumSimulations < cfg.NumSimulations {
		return fmt.Errorf("MAX_NUM_SIMULATIONS (%d) must be at least DEFAULT_NUM_SIMULATIONS (%d)",
			cfg.MaxNumSimulations, cfg.NumSimulations)
	}
	if cfg.MaxNumSimulations > simulation.MaxNumSimulations {
		return fmt.Errorf("MAX_NUM_SIMULATIONS must not exceed %d, got %d", simulation.MaxNumSimulations, cfg.MaxNumSimulations)
	}
	if cfg.SimWorkers < 1 {
		return fmt.Errorf("SIM_WORKERS must be at least 1, got %d", cfg.SimWorkers)
	}
	if cfg.RuinThresholdPct <= 0 || cfg.RuinThresholdPct >= 100 {
		return fmt.Errorf("RUIN_THRESHOLD_PCT must be between 0 and 100, got %f", cfg.RuinThresholdPct)
	}
	if cfg.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must be non-negative, got %d", cfg.RedisDB)
	}
	if cfg.RedisAddr != "" && cfg.CacheTTL < time.Minute {
		return fmt.Errorf("CACHE_TTL_MINUTES must be at least 1, got %v", cfg.CacheTTL)
	}
	if cfg.RequestTimeout < time.Second {
		return fmt.Errorf("REQUEST_TIMEOUT_SEC must be at least 1, got %v", cfg.RequestTimeout)
	}
	if cfg.DBPath != "" && cfg.HistoryRetention < time.Hour {
		return fmt.Errorf("HISTORY_RETENTION_HOURS must be at least 1, got %v", cfg.HistoryRetention)
	}
	return nil
}

// FormatOptional renders an optional backend setting for startup logs.
func FormatOptional(v string) string {
	if v == "" {
		return "disabled"
	}
	return v
}
