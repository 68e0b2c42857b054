package config

import "time"

// WatcherConfig is the root configuration for a watcher instance.
type WatcherConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Endpoint EndpointConfig `yaml:"endpoint"`
	Stores   StoresConfig   `yaml:"stores"`
	Database DBConfig       `yaml:"database"`
	Recorder RecorderConfig `yaml:"recorder"`
	Feed     FeedConfig     `yaml:"feed"`
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this watcher.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// EndpointConfig holds the JSON-RPC endpoint settings.
type EndpointConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"` // Per request
}

// StoresConfig holds one entry per polling store.
type StoresConfig struct {
	Accounts StoreConfig `yaml:"accounts"`
	Blocks   StoreConfig `yaml:"blocks"`
}

// StoreConfig holds the settings of a single polling store.
type StoreConfig struct {
	Method       string        `yaml:"method"`
	Interval     time.Duration `yaml:"interval"`
	DiscardStale bool          `yaml:"discard_stale"`
}

// DBConfig holds the snapshot database connection.
type DBConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds snapshot recorder batching settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// FeedConfig holds WebSocket feed settings.
type FeedConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Path         string        `yaml:"path"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	SendBuffer   int           `yaml:"send_buffer"`
}

// HTTPConfig holds the listener shared by health, feed and metrics.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level   string `yaml:"level"`   // debug, info, warn, error
	Updates bool   `yaml:"updates"` // Log every store update; keeps the stores polling
}
