package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/bitaek-watch/internal/model"
)

// Default per-store settings.
const (
	DefaultAccountInterval = 1000 * time.Millisecond
	DefaultBlockInterval   = 100 * time.Millisecond
	DefaultTimeout         = 5 * time.Second
)

// Config holds polling store configuration.
type Config struct {
	Method   string        // JSON-RPC method to call
	Interval time.Duration // Tick period
	Timeout  time.Duration // Per-request timeout (default: 5s)

	// DiscardStale drops a response when a newer request has already been
	// applied. Off by default: the last response to arrive wins.
	DiscardStale bool
}

// DefaultConfig returns defaults for method. Known methods get their
// established intervals; anything else polls once per second.
func DefaultConfig(method string) Config {
	interval := DefaultAccountInterval
	if method == model.MethodGetBlocks {
		interval = DefaultBlockInterval
	}
	return Config{
		Method:   method,
		Interval: interval,
		Timeout:  DefaultTimeout,
	}
}

// Validate checks that the configuration can drive a ticker.
func (c Config) Validate() error {
	if c.Method == "" {
		return errors.New("method is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %v", c.Interval)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}
	return nil
}
