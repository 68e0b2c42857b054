package recorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/bitaek-watch/internal/model"
	"github.com/rickgao/bitaek-watch/internal/observable"
)

const insertSQL = `
	INSERT INTO store_snapshots (id, method, received_at, record_count, records)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING
`

// Recorder writes store snapshots to the store_snapshots table.
type Recorder struct {
	cfg    Config
	logger *slog.Logger

	// Input from store subscriptions
	input chan model.Snapshot

	// Database
	db BatchSender

	// Batching
	batch   []snapshotRow
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats Stats
}

// New creates a Recorder writing through db.
func New(cfg Config, db BatchSender, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	return &Recorder{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  make(chan model.Snapshot, cfg.BufferSize),
		batch:  make([]snapshotRow, 0, cfg.BatchSize),
	}
}

// Attach subscribes to src and queues a snapshot for every value it
// publishes, including the one held at subscription time.
func (r *Recorder) Attach(src Source) observable.Unsubscriber {
	method := src.Method()
	return src.Subscribe(func(records model.Records) {
		r.enqueue(model.NewSnapshot(method, records))
	})
}

// enqueue never blocks; a full queue drops the snapshot.
func (r *Recorder) enqueue(s model.Snapshot) {
	select {
	case r.input <- s:
		r.batchMu.Lock()
		r.stats.Received++
		r.batchMu.Unlock()
	default:
		r.batchMu.Lock()
		r.stats.Dropped++
		r.batchMu.Unlock()
		r.logger.Warn("recorder queue full, dropping snapshot",
			"method", s.Method,
			"records", s.Records.Len(),
		)
	}
}

// Start begins consuming snapshots and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("snapshot recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts the recorder down, draining queued snapshots into a final flush.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping snapshot recorder")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("snapshot recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("snapshot recorder stop timed out")
		return ctx.Err()
	}

	r.drain()
	r.flush(ctx)

	return nil
}

// Stats returns current counters.
func (r *Recorder) Stats() Stats {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.stats
}

// consumeLoop moves snapshots from the queue into the batch.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case s := <-r.input:
			r.handleSnapshot(s)
		}
	}
}

// flushLoop periodically flushes the batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.flush(r.ctx)
		}
	}
}

// drain moves whatever is still queued into the batch.
func (r *Recorder) drain() {
	for {
		select {
		case s := <-r.input:
			r.appendRow(r.transform(s))
		default:
			return
		}
	}
}

// handleSnapshot adds a snapshot to the batch, flushing when it is full.
func (r *Recorder) handleSnapshot(s model.Snapshot) {
	if r.appendRow(r.transform(s)) {
		r.flush(r.ctx)
	}
}

func (r *Recorder) appendRow(row snapshotRow) (full bool) {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	r.batch = append(r.batch, row)
	return len(r.batch) >= r.cfg.BatchSize
}

// transform converts a Snapshot to a snapshotRow.
func (r *Recorder) transform(s model.Snapshot) snapshotRow {
	records := s.Records
	if records == nil {
		records = model.EmptyRecords()
	}
	data, err := json.Marshal(records)
	if err != nil {
		// Only reachable when a record is not valid JSON.
		r.logger.Warn("encode snapshot records", "method", s.Method, "error", err)
		data = []byte("[]")
	}
	return snapshotRow{
		ID:          s.ID.String(),
		Method:      s.Method,
		ReceivedAt:  s.ReceivedAt,
		RecordCount: records.Len(),
		Records:     data,
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]snapshotRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(ctx, batch)
	if err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.stats.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.stats.Inserts += int64(len(batch) - conflicts)
	r.stats.Conflicts += int64(conflicts)
	r.stats.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed snapshots",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(ctx context.Context, rows []snapshotRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertSQL, row.ID, row.Method, row.ReceivedAt, row.RecordCount, row.Records)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
