package feed

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/bitaek-watch/internal/model"
	"github.com/rickgao/bitaek-watch/internal/observable"
)

// fakeSource is a store stand-in backed by a plain observable.
type fakeSource struct {
	method string
	obs    *observable.Observable[model.Records]
}

func newFakeSource(method string, initial ...string) *fakeSource {
	records := model.EmptyRecords()
	for _, r := range initial {
		records = append(records, json.RawMessage(r))
	}
	return &fakeSource{method: method, obs: observable.New(records, nil)}
}

func (s *fakeSource) Method() string { return s.method }

func (s *fakeSource) Subscribe(fn func(model.Records)) observable.Unsubscriber {
	return s.obs.Subscribe(fn)
}

// newTestHub serves a hub from an httptest server.
func newTestHub(t *testing.T, cfg Config, sources ...Source) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(cfg, nil)
	for _, src := range sources {
		if err := h.Register(src); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, srv
}

// wsURL converts an HTTP test server URL to WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return msg
}

// readMessages reads n messages and indexes them by method.
func readMessages(t *testing.T, conn *websocket.Conn, n int) map[string]Message {
	t.Helper()
	out := make(map[string]Message, n)
	for i := 0; i < n; i++ {
		msg := readMessage(t, conn)
		out[msg.Method] = msg
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestHub_NoSubscriptionWithoutClients(t *testing.T) {
	accounts := newFakeSource(model.MethodGetAccounts)
	h, _ := newTestHub(t, DefaultConfig(), accounts)

	if h.Subscribed() {
		t.Error("hub subscribed with no clients")
	}
	if got := accounts.obs.Subscribers(); got != 0 {
		t.Errorf("source subscribers = %d, want 0", got)
	}
}

func TestHub_InitialValuesOnConnect(t *testing.T) {
	accounts := newFakeSource(model.MethodGetAccounts, `{"id":"a1","balance":100}`)
	blocks := newFakeSource(model.MethodGetBlocks)
	h, srv := newTestHub(t, DefaultConfig(), accounts, blocks)

	conn := dial(t, srv)
	msgs := readMessages(t, conn, 2)

	acc, ok := msgs["getAccounts"]
	if !ok {
		t.Fatalf("no getAccounts message in %v", msgs)
	}
	if acc.Records.Len() != 1 || string(acc.Records[0]) != `{"id":"a1","balance":100}` {
		t.Errorf("accounts records = %s, want the held account", acc.Records)
	}
	if acc.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not set")
	}

	blk, ok := msgs["getBlocks"]
	if !ok {
		t.Fatalf("no getBlocks message in %v", msgs)
	}
	if blk.Records == nil || blk.Records.Len() != 0 {
		t.Errorf("blocks records = %v, want empty array", blk.Records)
	}

	if !h.Subscribed() {
		t.Error("hub should be subscribed while a client is connected")
	}
	if got := accounts.obs.Subscribers(); got != 1 {
		t.Errorf("source subscribers = %d, want 1", got)
	}
}

func TestHub_BroadcastsUpdates(t *testing.T) {
	blocks := newFakeSource(model.MethodGetBlocks)
	h, srv := newTestHub(t, DefaultConfig(), blocks)

	c1 := dial(t, srv)
	readMessage(t, c1)

	c2 := dial(t, srv)
	// Second client gets the latest value without a new subscription.
	if msg := readMessage(t, c2); msg.Method != "getBlocks" {
		t.Errorf("initial method = %q, want getBlocks", msg.Method)
	}
	waitFor(t, func() bool { return h.Clients() == 2 })
	if got := blocks.obs.Subscribers(); got != 1 {
		t.Errorf("source subscribers = %d, want 1 shared subscription", got)
	}

	blocks.obs.Set(model.Records{json.RawMessage(`{"height":42}`)})

	for i, conn := range []*websocket.Conn{c1, c2} {
		msg := readMessage(t, conn)
		if msg.Records.Len() != 1 || string(msg.Records[0]) != `{"height":42}` {
			t.Errorf("client %d got %s, want the new block", i+1, msg.Records)
		}
	}

	waitFor(t, func() bool { return h.Stats().Sent >= 4 })
}

func TestHub_LastClientUnsubscribes(t *testing.T) {
	blocks := newFakeSource(model.MethodGetBlocks)
	h, srv := newTestHub(t, DefaultConfig(), blocks)

	conn := dial(t, srv)
	readMessage(t, conn)

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, func() bool { return h.Clients() == 0 })
	waitFor(t, func() bool { return !h.Subscribed() })

	if got := blocks.obs.Subscribers(); got != 0 {
		t.Errorf("source subscribers = %d, want 0", got)
	}

	// A new client subscribes again and still gets the held value.
	blocks.obs.Set(model.Records{json.RawMessage(`{"height":7}`)})
	conn = dial(t, srv)
	msg := readMessage(t, conn)
	if msg.Records.Len() != 1 {
		t.Errorf("records = %s, want held block", msg.Records)
	}
}

func TestHub_RegisterWhileConnected(t *testing.T) {
	h, srv := newTestHub(t, DefaultConfig())

	conn := dial(t, srv)
	waitFor(t, func() bool { return h.Subscribed() })

	accounts := newFakeSource(model.MethodGetAccounts, `{"id":"a9"}`)
	if err := h.Register(accounts); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Method != "getAccounts" {
		t.Errorf("method = %q, want getAccounts", msg.Method)
	}
	if got := accounts.obs.Subscribers(); got != 1 {
		t.Errorf("source subscribers = %d, want 1", got)
	}
}

func TestHub_Close(t *testing.T) {
	blocks := newFakeSource(model.MethodGetBlocks)
	h, srv := newTestHub(t, DefaultConfig(), blocks)

	conn := dial(t, srv)
	readMessage(t, conn)

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after Close")
	}

	if h.Subscribed() {
		t.Error("hub still subscribed after Close")
	}
	if got := blocks.obs.Subscribers(); got != 0 {
		t.Errorf("source subscribers = %d, want 0", got)
	}

	if err := h.Register(newFakeSource("getThings")); !errors.Is(err, ErrClosed) {
		t.Errorf("Register after Close = %v, want ErrClosed", err)
	}

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}

	// Idempotent
	if err := h.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestHub_RejectsPlainHTTP(t *testing.T) {
	_, srv := newTestHub(t, DefaultConfig())

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHub_PingKeepsClientAlive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingInterval = 20 * time.Millisecond
	h, srv := newTestHub(t, cfg, newFakeSource(model.MethodGetBlocks))

	conn := dial(t, srv)

	pings := make(chan struct{}, 10)
	conn.SetPingHandler(func(data string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	// Reading drives the ping handler.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}

	time.Sleep(5 * cfg.PingInterval)
	if got := h.Clients(); got != 1 {
		t.Errorf("clients = %d, want 1 while pongs flow", got)
	}
}

func TestClient_DropsWhenBufferFull(t *testing.T) {
	h := NewHub(Config{SendBuffer: 1}, nil)
	c := newClient(h, nil, "test")

	c.enqueue([]byte("one"))
	c.enqueue([]byte("two"))

	if got := h.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
	if got := string(<-c.send); got != "one" {
		t.Errorf("queued = %q, want the first message", got)
	}
}
