package config

import (
	"time"

	"github.com/rickgao/bitaek-watch/internal/model"
)

// Default values for optional configuration fields.
const (
	DefaultInstanceID       = "watcher"
	DefaultEndpointURL      = "http://0.0.0.0:8000"
	DefaultEndpointTimeout  = 5 * time.Second
	DefaultAccountsInterval = 1000 * time.Millisecond
	DefaultBlocksInterval   = 100 * time.Millisecond
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultBatchSize        = 100
	DefaultFlushInterval    = 1 * time.Second
	DefaultBufferSize       = 1000
	DefaultFeedPath         = "/ws"
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultSendBuffer       = 64
	DefaultHTTPPort         = 8080
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
)

func (c *WatcherConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Endpoint defaults
	if c.Endpoint.URL == "" {
		c.Endpoint.URL = DefaultEndpointURL
	}
	if c.Endpoint.Timeout == 0 {
		c.Endpoint.Timeout = DefaultEndpointTimeout
	}

	// Store defaults
	applyStoreDefaults(&c.Stores.Accounts, model.MethodGetAccounts, DefaultAccountsInterval)
	applyStoreDefaults(&c.Stores.Blocks, model.MethodGetBlocks, DefaultBlocksInterval)

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}

	// Feed defaults
	if c.Feed.Path == "" {
		c.Feed.Path = DefaultFeedPath
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultWriteTimeout
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.SendBuffer == 0 {
		c.Feed.SendBuffer = DefaultSendBuffer
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyStoreDefaults(s *StoreConfig, method string, interval time.Duration) {
	if s.Method == "" {
		s.Method = method
	}
	if s.Interval == 0 {
		s.Interval = interval
	}
}
