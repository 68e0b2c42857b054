// Package rpc provides the JSON-RPC 2.0 client for the masternode endpoint.
//
// Wire format:
//   - Transport: HTTP POST to the endpoint URL, no path segment
//   - Request: {"id":1,"jsonrpc":"2.0","method":"getBlocks"}
//   - Response: {"result":...} or {"error":{"code":...,"message":"..."}}
//
// Default endpoint: http://0.0.0.0:8000
package rpc
