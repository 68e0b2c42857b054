// Package poller implements the Polling Store component.
//
// The Polling Store:
//   - Polls one JSON-RPC method at a fixed interval while it has subscribers
//   - Replaces its held value with each successful result and notifies subscribers
//   - Logs error envelopes and transport failures, keeping the last good value
//   - Stops its ticker when the last subscriber leaves
//   - Fires every tick even if earlier requests are still in flight
package poller
