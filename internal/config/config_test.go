package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-watcher
endpoint:
  url: http://masternode:8000
  timeout: 2s
stores:
  accounts:
    interval: 2s
  blocks:
    method: getBlocks
    interval: 50ms
    discard_stale: true
database:
  enabled: true
  host: localhost
  port: 5432
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-watcher" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-watcher")
	}
	if cfg.Endpoint.URL != "http://masternode:8000" {
		t.Errorf("Endpoint.URL = %q, want %q", cfg.Endpoint.URL, "http://masternode:8000")
	}
	if cfg.Endpoint.Timeout != 2*time.Second {
		t.Errorf("Endpoint.Timeout = %v, want 2s", cfg.Endpoint.Timeout)
	}
	if cfg.Stores.Accounts.Interval != 2*time.Second {
		t.Errorf("Stores.Accounts.Interval = %v, want 2s", cfg.Stores.Accounts.Interval)
	}
	if cfg.Stores.Blocks.Interval != 50*time.Millisecond {
		t.Errorf("Stores.Blocks.Interval = %v, want 50ms", cfg.Stores.Blocks.Interval)
	}
	if !cfg.Stores.Blocks.DiscardStale {
		t.Error("Stores.Blocks.DiscardStale = false, want true")
	}
	if cfg.Stores.Accounts.Method != "" {
		t.Errorf("Stores.Accounts.Method = %q, want empty before defaults", cfg.Stores.Accounts.Method)
	}
	if !cfg.Database.Enabled || cfg.Database.Host != "localhost" {
		t.Errorf("Database = %+v, want enabled on localhost", cfg.Database)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_RPC_URL", "http://10.0.0.5:8000")

	yaml := `
endpoint:
  url: ${TEST_RPC_URL}
database:
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
	if cfg.Endpoint.URL != "http://10.0.0.5:8000" {
		t.Errorf("Endpoint.URL = %q, want %q", cfg.Endpoint.URL, "http://10.0.0.5:8000")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeTempFile(t, "stores: [not, a, map")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("Load error = %v, want parse error", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: test-watcher\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Endpoint.URL != DefaultEndpointURL {
		t.Errorf("Endpoint.URL = %q, want default %q", cfg.Endpoint.URL, DefaultEndpointURL)
	}
	if cfg.Endpoint.Timeout != DefaultEndpointTimeout {
		t.Errorf("Endpoint.Timeout = %v, want default %v", cfg.Endpoint.Timeout, DefaultEndpointTimeout)
	}
	if cfg.Stores.Accounts.Method != "getAccounts" || cfg.Stores.Accounts.Interval != time.Second {
		t.Errorf("Stores.Accounts = %+v, want getAccounts every 1s", cfg.Stores.Accounts)
	}
	if cfg.Stores.Blocks.Method != "getBlocks" || cfg.Stores.Blocks.Interval != 100*time.Millisecond {
		t.Errorf("Stores.Blocks = %+v, want getBlocks every 100ms", cfg.Stores.Blocks)
	}
	if cfg.Stores.Blocks.DiscardStale {
		t.Error("Stores.Blocks.DiscardStale should default to false")
	}
	if cfg.Database.Enabled {
		t.Error("Database.Enabled should default to false")
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Recorder.BatchSize != DefaultBatchSize {
		t.Errorf("Recorder.BatchSize = %d, want default %d", cfg.Recorder.BatchSize, DefaultBatchSize)
	}
	if cfg.Feed.Path != DefaultFeedPath {
		t.Errorf("Feed.Path = %q, want default %q", cfg.Feed.Path, DefaultFeedPath)
	}
	if cfg.HTTP.Port != DefaultHTTPPort {
		t.Errorf("HTTP.Port = %d, want default %d", cfg.HTTP.Port, DefaultHTTPPort)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, DefaultLogLevel)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "stores:\n  blocks:\n    interval: -1s\n")

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "stores.blocks.interval must be > 0") {
		t.Errorf("error = %q, want it to name stores.blocks.interval", err.Error())
	}

	path = writeTempFile(t, "")
	if _, err := LoadAndValidate(path); err != nil {
		t.Errorf("empty config should be valid after defaults: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *WatcherConfig)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *WatcherConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *WatcherConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "non-http endpoint",
			mutate:  func(c *WatcherConfig) { c.Endpoint.URL = "ftp://node:21" },
			wantErr: `endpoint.url must be an http(s) URL, got "ftp://node:21"`,
		},
		{
			name:    "missing store method",
			mutate:  func(c *WatcherConfig) { c.Stores.Accounts.Method = "" },
			wantErr: "stores.accounts.method is required",
		},
		{
			name:    "zero blocks interval",
			mutate:  func(c *WatcherConfig) { c.Stores.Blocks.Interval = 0 },
			wantErr: "stores.blocks.interval must be > 0",
		},
		{
			name: "database enabled without host",
			mutate: func(c *WatcherConfig) {
				c.Database.Enabled = true
			},
			wantErr: "database.host is required",
		},
		{
			name: "database disabled skips checks",
			mutate: func(c *WatcherConfig) {
				c.Database.Enabled = false
				c.Recorder.BatchSize = -1
			},
			wantErr: "",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *WatcherConfig) {
				c.Database = DBConfig{Enabled: true, Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "recorder batch size",
			mutate: func(c *WatcherConfig) {
				c.Database = DBConfig{Enabled: true, Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5}
				c.Recorder.BatchSize = 0
			},
			wantErr: "recorder.batch_size must be >= 1",
		},
		{
			name:    "feed path",
			mutate:  func(c *WatcherConfig) { c.Feed.Enabled = true; c.Feed.Path = "ws" },
			wantErr: `feed.path must start with /, got "ws"`,
		},
		{
			name:    "http port",
			mutate:  func(c *WatcherConfig) { c.HTTP.Port = 70000 },
			wantErr: "http.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "log level",
			mutate:  func(c *WatcherConfig) { c.Log.Level = "loud" },
			wantErr: `log.level "loud" is not one of debug, info, warn, error`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := LogConfig{Level: tt.in}.SlogLevel()
		if err != nil {
			t.Errorf("SlogLevel(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
