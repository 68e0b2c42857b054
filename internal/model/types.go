package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JSON-RPC methods served by the masternode.
const (
	MethodGetAccounts = "getAccounts"
	MethodGetBlocks   = "getBlocks"
)

// -----------------------------------------------------------------------------
// Store Values
// -----------------------------------------------------------------------------

// Records is an ordered sequence of account or block records exactly as the
// endpoint returned them. Record shape is never validated.
type Records []json.RawMessage

// EmptyRecords returns the initial value of a store: empty, but not nil, so it
// encodes as [] rather than null.
func EmptyRecords() Records {
	return Records{}
}

// Len returns the number of records.
func (r Records) Len() int {
	return len(r)
}

// Clone returns a deep copy of r.
func (r Records) Clone() Records {
	if r == nil {
		return nil
	}
	out := make(Records, len(r))
	for i, rec := range r {
		out[i] = append(json.RawMessage(nil), rec...)
	}
	return out
}

// -----------------------------------------------------------------------------
// Snapshots
// -----------------------------------------------------------------------------

// Snapshot is a held value captured by a consumer at the moment it was
// delivered.
type Snapshot struct {
	ID         uuid.UUID `json:"id"`          // Primary key in store_snapshots
	Method     string    `json:"method"`      // Store method (e.g., "getBlocks")
	ReceivedAt time.Time `json:"received_at"` // When the consumer saw the value
	Records    Records   `json:"records"`     // The held value
}

// NewSnapshot captures records delivered by the store polling method.
func NewSnapshot(method string, records Records) Snapshot {
	if records == nil {
		records = EmptyRecords()
	}
	return Snapshot{
		ID:         uuid.New(),
		Method:     method,
		ReceivedAt: time.Now().UTC(),
		Records:    records,
	}
}
