package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rickgao/bitaek-watch/internal/feed"
	"github.com/rickgao/bitaek-watch/internal/poller"
	"github.com/rickgao/bitaek-watch/internal/recorder"
	"github.com/rickgao/bitaek-watch/internal/version"
)

// Health status values
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

type statusReporter interface {
	Status() poller.Status
}

type pinger interface {
	Ping(ctx context.Context) error
}

type feedStats interface {
	Stats() feed.Stats
}

type recorderStats interface {
	Stats() recorder.Stats
}

// healthHandler serves /health. Optional components are nil when disabled.
type healthHandler struct {
	instanceID string
	stores     []statusReporter
	db         pinger
	recorder   recorderStats
	feed       feedStats
}

type healthResponse struct {
	Status     string                 `json:"status"`
	Instance   string                 `json:"instance"`
	Build      version.BuildInfo      `json:"build"`
	Stores     []poller.Status        `json:"stores"`
	Components map[string]interface{} `json:"components"`
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := healthResponse{
		Status:     statusHealthy,
		Instance:   h.instanceID,
		Build:      version.Info(),
		Stores:     make([]poller.Status, 0, len(h.stores)),
		Components: make(map[string]interface{}),
	}

	for _, s := range h.stores {
		st := s.Status()
		health.Stores = append(health.Stores, st)
		if failing(st) {
			health.Status = statusDegraded
		}
	}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			health.Status = statusUnhealthy
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}
	}
	if h.recorder != nil {
		health.Components["recorder"] = h.recorder.Stats()
	}
	if h.feed != nil {
		health.Components["feed"] = h.feed.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status == statusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}

// failing reports whether a polling store's latest outcome was an error.
func failing(st poller.Status) bool {
	return st.Polling && !st.LastErrorAt.IsZero() && st.LastErrorAt.After(st.LastSuccess)
}
