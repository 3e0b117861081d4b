package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eugenenazirov/zetafill/internal/packing"
	"github.com/eugenenazirov/zetafill/internal/storage"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "STORAGE_BACKEND",
		"LEVELDB_PATH", "REDIS_ADDR", "MAX_ATTEMPTS", "GRID_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info log level, got %s", cfg.LogLevel)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
	if cfg.Storage.Backend != storage.BackendMemory {
		t.Fatalf("expected memory storage, got %s", cfg.Storage.Backend)
	}
	if cfg.Runs.MaxAttempts != packing.DefaultMaxAttempts || cfg.Runs.MaxStepsPerRequest != defaultMaxStepsPerRequest {
		t.Fatalf("unexpected run defaults: %+v", cfg.Runs)
	}
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_BACKEND", "leveldb")
	t.Setenv("LEVELDB_PATH", "/tmp/zetafill")
	t.Setenv("MAX_ATTEMPTS", "5000")
	t.Setenv("GRID_SIZE", "64")
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "9000" {
		t.Fatalf("expected overridden port, got %s", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug, got %s", cfg.LogLevel)
	}
	if cfg.Storage.Backend != storage.BackendLevelDB || cfg.Storage.LevelDBPath != "/tmp/zetafill" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Runs.MaxAttempts != 5000 || cfg.Runs.GridSize != 64 {
		t.Fatalf("unexpected run defaults: %+v", cfg.Runs)
	}
	if cfg.RateLimitRPS != defaultRateLimitRPS {
		t.Fatalf("expected malformed RATE_LIMIT_RPS to be ignored, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")

	path := writeFile(t, "config.yaml", `
port: "7000"
log_level: warn
write_timeout: 2m
enable_request_logging: false
rate_limit:
  rps: 0
storage:
  backend: redis
  redis_addr: cache:6379
runs:
  grid_size: 16
  max_disks: 500
  min_disk_area: 0.001
  max_steps_per_request: 250
`)

	cfg, err := Load(&CLIOverrides{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "7000" {
		t.Fatalf("expected file to override environment, got %s", cfg.Port)
	}
	if cfg.LogLevel != "warn" || cfg.WriteTimeout != 2*time.Minute || cfg.EnableRequestLogging {
		t.Fatalf("unexpected server settings: %+v", cfg)
	}
	if cfg.RateLimitRPS != 0 || cfg.RateLimitBurst != defaultRateLimitBurst {
		t.Fatalf("expected rps 0 and default burst, got %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.Storage.Backend != storage.BackendRedis || cfg.Storage.RedisAddr != "cache:6379" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	want := RunConfig{
		GridSize:           16,
		MaxAttempts:        packing.DefaultMaxAttempts,
		MaxDisks:           500,
		MinDiskArea:        0.001,
		MaxStepsPerRequest: 250,
		MaxRuns:            defaultMaxRuns,
	}
	if cfg.Runs != want {
		t.Fatalf("expected %+v, got %+v", want, cfg.Runs)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "config.toml", `
port = "7100"
shutdown_grace_period = "3s"

[rate_limit]
rps = 5.5
burst = 10

[storage]
backend = "leveldb"
leveldb_path = "snapshots.db"

[runs]
max_attempts = 20000
`)

	cfg, err := Load(&CLIOverrides{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "7100" || cfg.ShutdownGracePeriod != 3*time.Second {
		t.Fatalf("unexpected server settings: %+v", cfg)
	}
	if cfg.RateLimitRPS != 5.5 || cfg.RateLimitBurst != 10 {
		t.Fatalf("unexpected rate limit %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.Storage.LevelDBPath != "snapshots.db" || cfg.Runs.MaxAttempts != 20000 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestCLIOverridesWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")

	path := writeFile(t, "config.yml", "port: \"7000\"\nlog_level: warn\n")
	port := "6000"
	level := "error"
	backend := "memory"
	rps := 3.0
	burst := 4

	cfg, err := Load(&CLIOverrides{
		ConfigFile:     path,
		Port:           &port,
		LogLevel:       &level,
		StorageBackend: &backend,
		RateLimitRPS:   &rps,
		RateLimitBurst: &burst,
	})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "6000" || cfg.LogLevel != "error" {
		t.Fatalf("expected CLI values, got port %s level %s", cfg.Port, cfg.LogLevel)
	}
	if cfg.RateLimitRPS != 3 || cfg.RateLimitBurst != 4 {
		t.Fatalf("unexpected rate limit %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		contents string
	}{
		{name: "unknown backend", file: "c.yaml", contents: "storage:\n  backend: mongo\n"},
		{name: "unknown log level", file: "c.yaml", contents: "log_level: loud\n"},
		{name: "bad duration", file: "c.yaml", contents: "idle_timeout: soon\n"},
		{name: "negative burst", file: "c.yaml", contents: "rate_limit:\n  burst: -1\n"},
		{name: "negative grid", file: "c.toml", contents: "[runs]\ngrid_size = -4\n"},
		{name: "oversized grid", file: "c.toml", contents: "[runs]\ngrid_size = 100000\n"},
		{name: "malformed toml", file: "c.toml", contents: "port = \n"},
		{name: "unsupported extension", file: "c.json", contents: "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := writeFile(t, tt.file, tt.contents)
			if _, err := Load(&CLIOverrides{ConfigFile: path}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		if _, err := Load(&CLIOverrides{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")}); err == nil {
			t.Fatalf("expected error")
		}
	})
}
