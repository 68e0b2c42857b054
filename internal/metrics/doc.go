// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics, all labelled by JSON-RPC method:
//   - Poll ticks and their latency
//   - Failures split into rpc (error envelope) and transport (HTTP, decode)
//   - Held-value updates delivered to subscribers
//   - Responses dropped as late (store idle) or stale (out of order)
//   - Requests currently in flight
package metrics
