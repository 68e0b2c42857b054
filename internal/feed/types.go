package feed

import (
	"errors"
	"time"

	"github.com/rickgao/bitaek-watch/internal/model"
	"github.com/rickgao/bitaek-watch/internal/observable"
)

// Errors
var (
	ErrClosed = errors.New("feed closed")
)

// Config holds hub settings.
type Config struct {
	WriteTimeout time.Duration // Deadline for a single write
	PingInterval time.Duration // Keepalive ping period
	SendBuffer   int           // Messages queued per client
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		SendBuffer:   64,
	}
}

// Source is a store the hub can stream.
type Source interface {
	Method() string
	Subscribe(fn func(model.Records)) observable.Unsubscriber
}

// Message is what clients receive for every store value.
type Message struct {
	Method     string        `json:"method"`
	ReceivedAt time.Time     `json:"received_at"`
	Records    model.Records `json:"records"`
}

// Stats tracks hub activity.
type Stats struct {
	Clients   int   `json:"clients"`
	Connected int64 `json:"connected"` // Total since start
	Sent      int64 `json:"sent"`
	Dropped   int64 `json:"dropped"` // Client queue full
}
