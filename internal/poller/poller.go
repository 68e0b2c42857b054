package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/bitaek-watch/internal/metrics"
	"github.com/rickgao/bitaek-watch/internal/observable"
	"github.com/rickgao/bitaek-watch/internal/rpc"
)

// Caller performs one JSON-RPC call and decodes its result.
type Caller interface {
	Call(ctx context.Context, method string, result any, params ...any) error
}

// Status reports how a store's polling has been going. It is the only place
// failures are surfaced; subscribers only ever see good values.
type Status struct {
	Method      string    `json:"method"`
	Polling     bool      `json:"polling"`
	Subscribers int       `json:"subscribers"`
	Polls       uint64    `json:"polls"`
	Successes   uint64    `json:"successes"`
	Failures    uint64    `json:"failures"`
	Dropped     uint64    `json:"dropped"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at"`
}

// Option configures a Store.
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
}

// WithMetrics records poll activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Store holds the latest result of a JSON-RPC method and polls for a new one
// while anyone is subscribed.
type Store[T any] struct {
	cfg     Config
	caller  Caller
	logger  *slog.Logger
	metrics *metrics.Metrics

	obs *observable.Observable[T]

	// Lifetime of the store. Requests run under this context, not the
	// polling session's, so stopping the ticker leaves them in flight.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	session uint64 // Incremented every time polling starts
	polling bool
	closed  bool
	seq     uint64 // Last request sequence number issued
	applied uint64 // Sequence number of the value currently held
	status  Status

	// applyMu makes the stale check and the notification one step.
	applyMu sync.Mutex
}

// New creates an idle store holding initial. No request is made until the
// first Subscribe.
func New[T any](cfg Config, caller Caller, initial T, logger *slog.Logger, opts ...Option) (*Store[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %q store config: %w", cfg.Method, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[T]{
		cfg:     cfg,
		caller:  caller,
		logger:  logger.With("method", cfg.Method),
		metrics: o.metrics,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.obs = observable.New(initial, s.start)

	return s, nil
}

// Subscribe registers fn. It is called immediately with the held value and
// again after every successful poll. The first subscription starts polling;
// removing the last one stops it.
func (s *Store[T]) Subscribe(fn func(T)) observable.Unsubscriber {
	return s.obs.Subscribe(fn)
}

// Get returns the held value.
func (s *Store[T]) Get() T {
	return s.obs.Get()
}

// Method returns the JSON-RPC method this store polls.
func (s *Store[T]) Method() string {
	return s.cfg.Method
}

// Polling reports whether the ticker is running.
func (s *Store[T]) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polling
}

// Status returns a snapshot of the store's counters.
func (s *Store[T]) Status() Status {
	s.mu.Lock()
	st := s.status
	st.Polling = s.polling
	s.mu.Unlock()

	st.Method = s.cfg.Method
	st.Subscribers = s.obs.Subscribers()
	return st
}

// Close stops polling for good, cancels in-flight requests and waits for
// every goroutine to exit. Subscribers keep the last value.
func (s *Store[T]) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.polling = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("polling store closed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start is the observable's StartFunc: it opens a polling session.
func (s *Store[T]) start(set func(T)) func() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.session++
	session := s.session
	s.polling = true
	ctx, cancel := context.WithCancel(s.ctx)
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, session, set)

	s.logger.Info("polling store started", "interval", s.cfg.Interval)

	return func() {
		cancel()

		s.mu.Lock()
		if s.session == session {
			s.polling = false
		}
		s.mu.Unlock()

		s.logger.Info("polling store stopped")
	}
}

// run fires one request per tick until the session ends.
func (s *Store[T]) run(ctx context.Context, session uint64, set func(T)) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Earlier requests may still be outstanding; they are not waited on.
			s.wg.Add(1)
			go s.poll(session, set)
		}
	}
}

// poll issues a single request and applies its result.
func (s *Store[T]) poll(session uint64, set func(T)) {
	defer s.wg.Done()

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.status.Polls++
	s.mu.Unlock()

	ctx, cancel := s.ctx, context.CancelFunc(func() {})
	if s.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.cfg.Timeout)
	}
	defer cancel()

	s.metrics.PollStarted(s.cfg.Method)
	start := time.Now()

	var result T
	err := s.caller.Call(ctx, s.cfg.Method, &result)

	s.metrics.PollFinished(s.cfg.Method, time.Since(start))

	if err != nil {
		s.fail(seq, err)
		return
	}

	s.apply(session, seq, result, set)
}

// fail logs a failed poll. The held value is left alone.
func (s *Store[T]) fail(seq uint64, err error) {
	if s.ctx.Err() != nil {
		// Closed while the request was out.
		return
	}

	kind := metrics.FailureTransport
	if rpcErr, ok := rpc.IsRPCError(err); ok {
		kind = metrics.FailureRPC
		s.logger.Warn("rpc error",
			"message", rpcErr.Message,
			"code", rpcErr.Code,
			"seq", seq,
		)
	} else {
		s.logger.Warn("poll failed",
			"err", err,
			"seq", seq,
		)
	}

	s.mu.Lock()
	s.status.Failures++
	s.status.LastError = err.Error()
	s.status.LastErrorAt = time.Now()
	s.mu.Unlock()

	s.metrics.Failure(s.cfg.Method, kind)
}

// apply replaces the held value unless the response is late or stale.
func (s *Store[T]) apply(session, seq uint64, result T, set func(T)) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if !s.polling || session != s.session {
		s.status.Dropped++
		s.mu.Unlock()

		s.logger.Debug("dropping late response", "seq", seq)
		s.metrics.Dropped(s.cfg.Method, metrics.DropLate)
		return
	}
	if s.cfg.DiscardStale && seq < s.applied {
		applied := s.applied
		s.status.Dropped++
		s.mu.Unlock()

		s.logger.Debug("dropping stale response", "seq", seq, "applied", applied)
		s.metrics.Dropped(s.cfg.Method, metrics.DropStale)
		return
	}
	if seq > s.applied {
		s.applied = seq
	}
	s.status.Successes++
	s.status.LastSuccess = time.Now()
	s.mu.Unlock()

	set(result)

	s.metrics.Updated(s.cfg.Method)
}
