package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/bitaek-watch/internal/model"
	"github.com/rickgao/bitaek-watch/internal/observable"
)

// Hub serves the feed over WebSocket.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// subMu serializes subscribing and unsubscribing the sources.
	subMu   sync.Mutex
	sources []Source
	unsubs  []observable.Unsubscriber

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  map[string][]byte // Last encoded message per method
	closed  bool

	connected atomic.Int64
	sent      atomic.Int64
	dropped   atomic.Int64
}

// NewHub creates a hub with no sources.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 1
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The UI is served from a different origin than the watcher.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		latest:  make(map[string][]byte),
	}
}

// Register adds a source. If clients are connected it is subscribed to
// right away.
func (h *Hub) Register(src Source) error {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrClosed
	}

	h.sources = append(h.sources, src)
	if h.unsubs != nil {
		h.unsubs = append(h.unsubs, h.subscribe(src))
	}
	return nil
}

// ServeHTTP upgrades the request and streams to the new client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.logger.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := newClient(h, conn, r.RemoteAddr)
	if !h.add(c) {
		c.close()
		return
	}

	h.logger.Info("feed client connected", "remote", r.RemoteAddr, "clients", h.Clients())

	go c.writeLoop()
	c.readLoop()

	h.remove(c)
	h.logger.Info("feed client disconnected", "remote", r.RemoteAddr, "clients", h.Clients())
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Subscribed reports whether the hub currently holds source subscriptions.
func (h *Hub) Subscribed() bool {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	return h.unsubs != nil
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Clients:   h.Clients(),
		Connected: h.connected.Load(),
		Sent:      h.sent.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// Close disconnects every client and releases the sources.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	h.reconcile()
	h.logger.Info("feed closed", "clients", len(clients))
	return nil
}

// add registers c and sends it the latest value of every source.
func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	initial := make([][]byte, 0, len(h.latest))
	for _, msg := range h.latest {
		initial = append(initial, msg)
	}
	h.mu.Unlock()

	h.connected.Add(1)

	for _, msg := range initial {
		c.enqueue(msg)
	}

	// The first client subscribes; Subscribe delivers current values.
	h.reconcile()
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.close()
	h.reconcile()
}

// reconcile holds source subscriptions exactly while clients are connected.
func (h *Hub) reconcile() {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	h.mu.Lock()
	want := !h.closed && len(h.clients) > 0
	h.mu.Unlock()

	switch {
	case want && h.unsubs == nil:
		h.unsubs = make([]observable.Unsubscriber, 0, len(h.sources))
		for _, src := range h.sources {
			h.unsubs = append(h.unsubs, h.subscribe(src))
		}
		h.logger.Debug("feed subscribed to sources", "sources", len(h.sources))

	case !want && h.unsubs != nil:
		for _, unsub := range h.unsubs {
			unsub()
		}
		h.unsubs = nil

		// Subscribing again delivers fresh current values.
		h.mu.Lock()
		h.latest = make(map[string][]byte)
		h.mu.Unlock()
		h.logger.Debug("feed unsubscribed from sources")
	}
}

func (h *Hub) subscribe(src Source) observable.Unsubscriber {
	method := src.Method()
	return src.Subscribe(func(records model.Records) {
		h.broadcast(method, records)
	})
}

// broadcast encodes one store value and queues it for every client.
func (h *Hub) broadcast(method string, records model.Records) {
	if records == nil {
		records = model.EmptyRecords()
	}
	data, err := json.Marshal(Message{
		Method:     method,
		ReceivedAt: time.Now().UTC(),
		Records:    records,
	})
	if err != nil {
		h.logger.Warn("encode feed message", "method", method, "error", err)
		return
	}

	h.mu.Lock()
	h.latest[method] = data
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.enqueue(data)
	}
}
