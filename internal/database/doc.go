// Package database manages the PostgreSQL pool the snapshot recorder writes to.
//
// A single table, store_snapshots, holds one row per store value that was
// recorded, with the records themselves kept as JSONB.
package database
