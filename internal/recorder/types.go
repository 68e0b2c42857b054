package recorder

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/bitaek-watch/internal/model"
	"github.com/rickgao/bitaek-watch/internal/observable"
)

// Config holds batching settings.
type Config struct {
	// BatchSize is the number of snapshots to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize bounds the queue between subscribers and the writer.
	BufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    1000,
	}
}

// Source is a store whose values can be recorded.
type Source interface {
	Method() string
	Subscribe(fn func(model.Records)) observable.Unsubscriber
}

// BatchSender sends a batch of queued statements. Satisfied by *pgxpool.Pool.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Stats tracks recorder activity.
type Stats struct {
	Received  int64
	Dropped   int64 // Queue full
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

// snapshotRow is one row of store_snapshots.
type snapshotRow struct {
	ID          string
	Method      string
	ReceivedAt  time.Time
	RecordCount int
	Records     []byte // JSONB
}
