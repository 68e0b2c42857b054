// Package recorder persists store values to PostgreSQL.
//
// A Recorder subscribes to one or more polling stores. Each notification
// becomes a model.Snapshot queued on a bounded channel; a consumer goroutine
// batches them and inserts through pgx.Batch, flushing when the batch fills
// or the flush interval passes. When the queue is full new snapshots are
// dropped and counted, so a slow database never blocks a store's
// notification path.
package recorder
