// Package rpctest provides an in-process JSON-RPC endpoint for tests.
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Reply is one scripted answer. Exactly one of Result, Error and Raw is used,
// checked in reverse order.
type Reply struct {
	Result any
	Error  *ErrorObject
	Raw    []byte        // Written verbatim when set
	Status int           // HTTP status, 200 when zero
	Delay  time.Duration // Wait before answering
}

// ErrorObject is the error member of a scripted response.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ReceivedRequest records one request seen by the server.
type ReceivedRequest struct {
	ID          uint64          `json:"id"`
	Version     string          `json:"jsonrpc"`
	Method      string          `json:"method"`
	Params      json.RawMessage `json:"params,omitempty"`
	ContentType string          `json:"-"`
	HTTPMethod  string          `json:"-"`
	At          time.Time       `json:"-"`
}

// Server is a scripted JSON-RPC endpoint backed by httptest.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	replies  map[string][]Reply // Queued one-shot replies per method
	fallback map[string]Reply   // Reply used once the queue is empty
	requests []ReceivedRequest
}

// NewServer starts a server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		replies:  make(map[string][]Reply),
		fallback: make(map[string]Reply),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Handle sets the reply returned for method whenever no queued reply exists.
func (s *Server) Handle(method string, r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback[method] = r
}

// Enqueue appends one-shot replies for method, used in order.
func (s *Server) Enqueue(method string, rs ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[method] = append(s.replies[method], rs...)
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []ReceivedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReceivedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests for method were received.
func (s *Server) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method {
			n++
		}
	}
	return n
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var req ReceivedRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	req.ContentType = r.Header.Get("Content-Type")
	req.HTTPMethod = r.Method
	req.At = time.Now()

	s.mu.Lock()
	s.requests = append(s.requests, req)
	reply, ok := s.next(req.Method)
	s.mu.Unlock()

	if !ok {
		reply = Reply{Error: &ErrorObject{
			Code:    -32601,
			Message: "Method not found",
		}}
	}

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if reply.Status != 0 {
		w.WriteHeader(reply.Status)
	}

	if reply.Raw != nil {
		_, _ = w.Write(reply.Raw)
		return
	}

	resp := map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
	}
	if reply.Error != nil {
		resp["error"] = reply.Error
	} else {
		resp["result"] = reply.Result
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// next pops a queued reply or falls back. Caller holds s.mu.
func (s *Server) next(method string) (Reply, bool) {
	if q := s.replies[method]; len(q) > 0 {
		s.replies[method] = q[1:]
		return q[0], true
	}
	r, ok := s.fallback[method]
	return r, ok
}
