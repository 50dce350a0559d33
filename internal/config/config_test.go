package config

import (
	"os"
	"testing"
	"time"
)

var envKeys = []string{
	"PORT", "DB_PATH", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL_MINUTES",
	"KELLY_FRACTION", "DEFAULT_NUM_SIMULATIONS", "MAX_NUM_SIMULATIONS", "SIM_WORKERS",
	"RUIN_THRESHOLD_PCT", "ALLOWED_ORIGINS", "REQUEST_TIMEOUT_SEC", "HISTORY_RETENTION_HOURS",
	"LOG_LEVEL", "LOG_FORMAT",
}

func TestLoadDefaults(t *testing.T) {
	// Clear env vars that could affect defaults
	for _, key := range envKeys {
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %q, want %q", cfg.Port, DefaultPort)
	}
	if cfg.DBPath != DefaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, DefaultDBPath)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
	if cfg.CacheTTL != DefaultCacheTTL {
		t.Errorf("CacheTTL = %v, want %v", cfg.CacheTTL, DefaultCacheTTL)
	}
	if cfg.KellyFraction != DefaultKellyFraction {
		t.Errorf("KellyFraction = %f, want %f", cfg.KellyFraction, DefaultKellyFraction)
	}
	if cfg.NumSimulations != DefaultNumSimulations {
		t.Errorf("NumSimulations = %d, want %d", cfg.NumSimulations, DefaultNumSimulations)
	}
	if cfg.SimWorkers < 1 {
		t.Errorf("SimWorkers = %d, want at least 1", cfg.SimWorkers)
	}
	if cfg.RuinThresholdPct != DefaultRuinThresholdPct {
		t.Errorf("RuinThresholdPct = %f, want %f", cfg.RuinThresholdPct, DefaultRuinThresholdPct)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.LogLevel != DefaultLogLevel || cfg.LogFormat != DefaultLogFormat {
		t.Errorf("LogLevel/LogFormat = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("KELLY_FRACTION", "0.5")
	os.Setenv("REDIS_ADDR", "localhost:6379")
	os.Setenv("REDIS_DB", "2")
	os.Setenv("CACHE_TTL_MINUTES", "15")
	os.Setenv("SIM_WORKERS", "3")
	os.Setenv("ALLOWED_ORIGINS", " https://a.example , https://b.example,")
	os.Setenv("REQUEST_TIMEOUT_SEC", "5")
	os.Setenv("DB_PATH", "off")
	defer func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
	}()

	cfg := Load()

	if cfg.KellyFraction != 0.5 {
		t.Errorf("KellyFraction = %f, want 0.5", cfg.KellyFraction)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
		t.Errorf("Redis = %q db %d", cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("CacheTTL = %v, want 15m", cfg.CacheTTL)
	}
	if cfg.SimWorkers != 3 {
		t.Errorf("SimWorkers = %d, want 3", cfg.SimWorkers)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %q", cfg.AllowedOrigins)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.DBPath != "" {
		t.Errorf("DB_PATH=off should disable history, got %q", cfg.DBPath)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	os.Setenv("KELLY_FRACTION", "quarter")
	os.Setenv("SIM_WORKERS", "many")
	defer func() {
		os.Unsetenv("KELLY_FRACTION")
		os.Unsetenv("SIM_WORKERS")
	}()

	cfg := Load()
	if cfg.KellyFraction != DefaultKellyFraction {
		t.Errorf("KellyFraction = %f, want default", cfg.KellyFraction)
	}
	if cfg.SimWorkers < 1 {
		t.Errorf("SimWorkers = %d, want default", cfg.SimWorkers)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:              "8000",
		DBPath:            "runs.db",
		RedisAddr:         "localhost:6379",
		CacheTTL:          time.Hour,
		KellyFraction:     0.25,
		NumSimulations:    10000,
		MaxNumSimulations: 100000,
		SimWorkers:        4,
		RuinThresholdPct:  1,
		RequestTimeout:    30 * time.Second,
		HistoryRetention:  24 * time.Hour,
	}

	if err := Validate(valid); err != nil {
		t.Errorf("valid config should pass: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"zero Kelly", func(c *Config) { c.KellyFraction = 0 }},
		{"Kelly > 1", func(c *Config) { c.KellyFraction = 1.5 }},
		{"zero simulations", func(c *Config) { c.NumSimulations = 0 }},
		{"max below default", func(c *Config) { c.MaxNumSimulations = 100 }},
		{"max above engine limit", func(c *Config) { c.MaxNumSimulations = 5_000_000 }},
		{"no workers", func(c *Config) { c.SimWorkers = 0 }},
		{"ruin threshold 0", func(c *Config) { c.RuinThresholdPct = 0 }},
		{"ruin threshold 100", func(c *Config) { c.RuinThresholdPct = 100 }},
		{"negative redis db", func(c *Config) { c.RedisDB = -1 }},
		{"cache ttl too short", func(c *Config) { c.CacheTTL = time.Second }},
		{"timeout too short", func(c *Config) { c.RequestTimeout = time.Millisecond }},
		{"retention too short", func(c *Config) { c.HistoryRetention = time.Minute }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.modify(&c)
			if err := Validate(c); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestFormatOptional(t *testing.T) {
	if got := FormatOptional(""); got != "disabled" {
		t.Errorf("FormatOptional(\"\") = %q, want %q", got, "disabled")
	}
	if got := FormatOptional("localhost:6379"); got != "localhost:6379" {
		t.Errorf("FormatOptional = %q", got)
	}
}
