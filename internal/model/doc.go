// Package model defines shared data types used across the watcher.
//
// Conventions:
//   - Records: opaque JSON values returned by the masternode, kept byte-for-byte
//   - Timestamps: time.Time in UTC, set locally when a value is observed
//   - IDs: uuid.UUID for snapshots
package model
