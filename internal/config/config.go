package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/zetafill/internal/packing"
	"github.com/eugenenazirov/zetafill/internal/spatial"
	"github.com/eugenenazirov/zetafill/internal/storage"
)

const (
	defaultPort               = "8080"
	defaultLogLevel           = "info"
	defaultRateLimitRPS       = 25.0
	defaultRateLimitBurst     = 50
	defaultMaxStepsPerRequest = 10_000
	defaultMaxRuns            = 256
	defaultLevelDBPath        = "data/snapshots"
	defaultRedisAddr          = "localhost:6379"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > config file > Environment variables > Defaults
type Config struct {
	Port                 string
	LogLevel             string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int

	Storage StorageConfig
	Runs    RunConfig
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	Backend     string
	LevelDBPath string
	RedisAddr   string
	RedisPrefix string
}

// RunConfig holds defaults applied to every new run and per-request limits.
type RunConfig struct {
	GridSize           int
	MaxAttempts        int
	MaxDisks           int
	MinDiskArea        float64
	MaxStepsPerRequest int
	MaxRuns            int
}

// fileConfig is the on-disk layout shared by YAML and TOML files.
type fileConfig struct {
	Port                 string          `yaml:"port" toml:"port"`
	LogLevel             string          `yaml:"log_level" toml:"log_level"`
	ShutdownGracePeriod  string          `yaml:"shutdown_grace_period" toml:"shutdown_grace_period"`
	ReadHeaderTimeout    string          `yaml:"read_header_timeout" toml:"read_header_timeout"`
	WriteTimeout         string          `yaml:"write_timeout" toml:"write_timeout"`
	IdleTimeout          string          `yaml:"idle_timeout" toml:"idle_timeout"`
	EnableRequestLogging *bool           `yaml:"enable_request_logging" toml:"enable_request_logging"`
	RateLimit            fileRateLimit   `yaml:"rate_limit" toml:"rate_limit"`
	Storage              fileStorage     `yaml:"storage" toml:"storage"`
	Runs                 fileRunDefaults `yaml:"runs" toml:"runs"`
}

type fileRateLimit struct {
	RPS   *float64 `yaml:"rps" toml:"rps"`
	Burst *int     `yaml:"burst" toml:"burst"`
}

type fileStorage struct {
	Backend     string `yaml:"backend" toml:"backend"`
	LevelDBPath string `yaml:"leveldb_path" toml:"leveldb_path"`
	RedisAddr   string `yaml:"redis_addr" toml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix" toml:"redis_prefix"`
}

type fileRunDefaults struct {
	GridSize           int     `yaml:"grid_size" toml:"grid_size"`
	MaxAttempts        int     `yaml:"max_attempts" toml:"max_attempts"`
	MaxDisks           int     `yaml:"max_disks" toml:"max_disks"`
	MinDiskArea        float64 `yaml:"min_disk_area" toml:"min_disk_area"`
	MaxStepsPerRequest int     `yaml:"max_steps_per_request" toml:"max_steps_per_request"`
	MaxRuns            int     `yaml:"max_runs" toml:"max_runs"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	LogLevel       *string
	StorageBackend *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > config file > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	applyEnvConfig(&cfg)

	if overrides != nil && overrides.ConfigFile != "" {
		fileCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
		if err := applyFileConfig(&cfg, fileCfg); err != nil {
			return Config{}, fmt.Errorf("apply config file: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		LogLevel:             defaultLogLevel,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         60 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		Storage: StorageConfig{
			Backend:     storage.BackendMemory,
			LevelDBPath: defaultLevelDBPath,
			RedisAddr:   defaultRedisAddr,
			RedisPrefix: storage.DefaultRedisPrefix,
		},
		Runs: RunConfig{
			GridSize:           spatial.DefaultResolution,
			MaxAttempts:        packing.DefaultMaxAttempts,
			MaxDisks:           packing.DefaultMaxDisks,
			MinDiskArea:        packing.DefaultMinDiskArea,
			MaxStepsPerRequest: defaultMaxStepsPerRequest,
			MaxRuns:            defaultMaxRuns,
		},
	}
}

// loadFromFile decodes a YAML or TOML file, chosen by extension.
func loadFromFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse TOML: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}

	return &fileCfg, nil
}

// applyFileConfig applies file configuration to the Config struct.
func applyFileConfig(cfg *Config, fileCfg *fileConfig) error {
	if fileCfg.Port != "" {
		cfg.Port = fileCfg.Port
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"shutdown_grace_period", fileCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", fileCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", fileCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", fileCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = value
	}

	if fileCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *fileCfg.EnableRequestLogging
	}
	if fileCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *fileCfg.RateLimit.RPS
	}
	if fileCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *fileCfg.RateLimit.Burst
	}

	if fileCfg.Storage.Backend != "" {
		cfg.Storage.Backend = fileCfg.Storage.Backend
	}
	if fileCfg.Storage.LevelDBPath != "" {
		cfg.Storage.LevelDBPath = fileCfg.Storage.LevelDBPath
	}
	if fileCfg.Storage.RedisAddr != "" {
		cfg.Storage.RedisAddr = fileCfg.Storage.RedisAddr
	}
	if fileCfg.Storage.RedisPrefix != "" {
		cfg.Storage.RedisPrefix = fileCfg.Storage.RedisPrefix
	}

	runs := fileCfg.Runs
	if runs.GridSize != 0 {
		cfg.Runs.GridSize = runs.GridSize
	}
	if runs.MaxAttempts != 0 {
		cfg.Runs.MaxAttempts = runs.MaxAttempts
	}
	if runs.MaxDisks != 0 {
		cfg.Runs.MaxDisks = runs.MaxDisks
	}
	if runs.MinDiskArea != 0 {
		cfg.Runs.MinDiskArea = runs.MinDiskArea
	}
	if runs.MaxStepsPerRequest != 0 {
		cfg.Runs.MaxStepsPerRequest = runs.MaxStepsPerRequest
	}
	if runs.MaxRuns != 0 {
		cfg.Runs.MaxRuns = runs.MaxRuns
	}
	return nil
}

// applyEnvConfig applies environment variable configuration. Malformed
// numbers are ignored, as are negative ones.
func applyEnvConfig(cfg *Config) {
	if port := env("PORT"); port != "" {
		cfg.Port = port
	}
	if level := env("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}
	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if backend := env("STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if path := env("LEVELDB_PATH"); path != "" {
		cfg.Storage.LevelDBPath = path
	}
	if addr := env("REDIS_ADDR"); addr != "" {
		cfg.Storage.RedisAddr = addr
	}

	if attempts := env("MAX_ATTEMPTS"); attempts != "" {
		if value, err := strconv.Atoi(attempts); err == nil && value > 0 {
			cfg.Runs.MaxAttempts = value
		}
	}
	if grid := env("GRID_SIZE"); grid != "" {
		if value, err := strconv.Atoi(grid); err == nil && value > 0 {
			cfg.Runs.GridSize = value
		}
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
	if overrides.StorageBackend != nil && *overrides.StorageBackend != "" {
		cfg.Storage.Backend = *overrides.StorageBackend
	}
	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}
	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	switch cfg.Storage.Backend {
	case storage.BackendMemory:
	case storage.BackendLevelDB:
		if cfg.Storage.LevelDBPath == "" {
			return fmt.Errorf("leveldb backend requires a path")
		}
	case storage.BackendRedis:
		if cfg.Storage.RedisAddr == "" {
			return fmt.Errorf("redis backend requires an address")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	r := cfg.Runs
	if r.GridSize < 1 || r.MaxAttempts < 1 || r.MaxDisks < 1 {
		return fmt.Errorf("grid_size, max_attempts and max_disks must be positive")
	}
	if r.GridSize > spatial.MaxResolution {
		return fmt.Errorf("grid_size must be <= %d", spatial.MaxResolution)
	}
	if r.MinDiskArea < 0 {
		return fmt.Errorf("min_disk_area must be >= 0")
	}
	if r.MaxStepsPerRequest < 1 {
		return fmt.Errorf("max_steps_per_request must be positive")
	}
	if r.MaxRuns < 0 {
		return fmt.Errorf("max_runs must be >= 0")
	}
	return nil
}
