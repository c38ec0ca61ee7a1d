package config

import (
	"os"
	"testing"
)

func writeTempConfig(t *testing.T, yamlContent string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "backsim-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_DATA_URL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"DATA_DIR", "SQLITE_PATH", "STORAGE_BACKEND",
		"LOG_LEVEL", "OPENROUTER_API_KEY", "OPENROUTER_MODEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
storage:
  backend: "sqlite"
  data_dir: "/tmp/backsim/data"
  sqlite_path: "/tmp/backsim/bars.db"
  cache_ttl_hours: 12
server:
  host: "127.0.0.1"
  port: 8080
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
  rate_limit_per_min: 100
logging:
  level: "debug"
  format: "json"
backtest:
  initial_capital: 50000
  commission: 0.002
  bar_delay_ms: 25
  snapshot_trades: 20
translate:
  base_url: "https://openrouter.ai/api/v1"
  model: "test-model"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "sqlite")
	}
	if cfg.Storage.DataDir != "/tmp/backsim/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/backsim/data")
	}
	if cfg.Storage.CacheTTLHours != 12 {
		t.Errorf("Storage.CacheTTLHours = %d, want 12", cfg.Storage.CacheTTLHours)
	}

	// -- Server --
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.RateLimitPerMin != 100 {
		t.Errorf("Alpaca.RateLimitPerMin = %d, want 100", cfg.Alpaca.RateLimitPerMin)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	// -- Backtest --
	if cfg.Backtest.InitialCapital != 50000 {
		t.Errorf("Backtest.InitialCapital = %v, want 50000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.Commission != 0.002 {
		t.Errorf("Backtest.Commission = %v, want 0.002", cfg.Backtest.Commission)
	}
	if cfg.Backtest.SnapshotTrades != 20 {
		t.Errorf("Backtest.SnapshotTrades = %d, want 20", cfg.Backtest.SnapshotTrades)
	}

	// -- Translate --
	if cfg.Translate.Model != "test-model" {
		t.Errorf("Translate.Model = %q, want %q", cfg.Translate.Model, "test-model")
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg.Storage.Backend != "parquet" {
		t.Errorf("default Storage.Backend = %q, want %q", cfg.Storage.Backend, "parquet")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("default Backtest.InitialCapital = %v, want 100000", cfg.Backtest.InitialCapital)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("OPENROUTER_API_KEY", "env-router-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Translate.APIKey != "env-router-key" {
		t.Errorf("Translate.APIKey = %q, want %q (env override)", cfg.Translate.APIKey, "env-router-key")
	}
}

func TestLoadCanonicalAlpacaEnvWins(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
alpaca:
  api_key: "yaml-key"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("APCA_API_KEY_ID", "canonical-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "canonical-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (canonical env wins)", cfg.Alpaca.APIKey, "canonical-key")
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
storage:
  backend: "postgres"
`)

	if _, err := Load(path); err == nil {
		t.Error("Load accepted an unsupported storage backend")
	}
}

func TestLoadRejectsBadBacktestParams(t *testing.T) {
	clearEnv(t)

	path := writeTempConfig(t, `
backtest:
  initial_capital: -5
`)
	if _, err := Load(path); err == nil {
		t.Error("Load accepted a negative initial capital")
	}

	path = writeTempConfig(t, `
backtest:
  commission: -0.5
`)
	if _, err := Load(path); err == nil {
		t.Error("Load accepted a negative commission rate")
	}
}
