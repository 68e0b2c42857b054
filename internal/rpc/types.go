package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version sent in every request.
const Version = "2.0"

// DefaultRequestID is the id sent with every request. Requests are not
// multiplexed over HTTP, so a constant id is enough.
const DefaultRequestID uint64 = 1

// ErrNoResult is returned when a response carries neither result nor error.
var ErrNoResult = errors.New("rpc response has neither result nor error")

// Request is the JSON-RPC request envelope.
type Request struct {
	ID      uint64 `json:"id"`
	Version string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is the JSON-RPC response envelope. Exactly one of Result and Error
// is expected to be present.
type Response struct {
	ID      uint64          `json:"id"`
	Version string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the error object of a JSON-RPC response.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPError is returned when the endpoint answers with a failing status and
// a body that is not a JSON-RPC envelope.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("rpc http error %d: %s", e.StatusCode, e.Status)
}

// IsRPCError reports whether err carries an error envelope from the endpoint.
func IsRPCError(err error) (*Error, bool) {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}
