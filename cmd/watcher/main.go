package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/bitaek-watch/internal/config"
	"github.com/rickgao/bitaek-watch/internal/database"
	"github.com/rickgao/bitaek-watch/internal/feed"
	"github.com/rickgao/bitaek-watch/internal/metrics"
	"github.com/rickgao/bitaek-watch/internal/model"
	"github.com/rickgao/bitaek-watch/internal/observable"
	"github.com/rickgao/bitaek-watch/internal/poller"
	"github.com/rickgao/bitaek-watch/internal/recorder"
	"github.com/rickgao/bitaek-watch/internal/rpc"
	"github.com/rickgao/bitaek-watch/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/watcher.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("watcher failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Validate already checked the level name.
	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting watcher",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
		"instance_id", cfg.Instance.ID,
		"endpoint", cfg.Endpoint.URL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Stores
	client := rpc.NewClient(cfg.Endpoint.URL,
		rpc.WithLogger(logger),
		rpc.WithTimeout(cfg.Endpoint.Timeout),
	)

	accounts, err := poller.NewRecordsStore(storeConfig(cfg.Stores.Accounts, cfg.Endpoint.Timeout), client, logger, poller.WithMetrics(m))
	if err != nil {
		return err
	}
	blocks, err := poller.NewRecordsStore(storeConfig(cfg.Stores.Blocks, cfg.Endpoint.Timeout), client, logger, poller.WithMetrics(m))
	if err != nil {
		return err
	}
	stores := []*poller.RecordsStore{accounts, blocks}

	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		for _, s := range stores {
			if err := s.Close(closeCtx); err != nil {
				logger.Warn("store close timed out", "method", s.Method(), "error", err)
			}
		}
	}()

	health := &healthHandler{
		instanceID: cfg.Instance.ID,
		stores:     []statusReporter{accounts, blocks},
	}

	var unsubs []observable.Unsubscriber
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	if cfg.Log.Updates {
		for _, s := range stores {
			unsubs = append(unsubs, logUpdates(logger, s))
		}
	}

	// Snapshot recorder
	var rec *recorder.Recorder
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		logger.Info("database connected")

		rec = recorder.New(recorder.Config{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
			BufferSize:    cfg.Recorder.BufferSize,
		}, pool, logger)
		if err := rec.Start(ctx); err != nil {
			return fmt.Errorf("start recorder: %w", err)
		}
		for _, s := range stores {
			unsubs = append(unsubs, rec.Attach(s))
		}

		health.db = pool
		health.recorder = rec
	}

	mux := http.NewServeMux()
	mux.Handle("/health", health)
	mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))

	// WebSocket feed
	var hub *feed.Hub
	if cfg.Feed.Enabled {
		hub = feed.NewHub(feed.Config{
			WriteTimeout: cfg.Feed.WriteTimeout,
			PingInterval: cfg.Feed.PingInterval,
			SendBuffer:   cfg.Feed.SendBuffer,
		}, logger)
		for _, s := range stores {
			if err := hub.Register(s); err != nil {
				return fmt.Errorf("register %s feed: %w", s.Method(), err)
			}
		}
		mux.Handle(cfg.Feed.Path, hub)
		health.feed = hub
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"port", cfg.HTTP.Port,
			"feed", cfg.Feed.Enabled,
			"metrics_path", cfg.Metrics.Path,
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		// Hijacked feed connections are not closed by Shutdown.
		if hub != nil {
			hub.Close()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", "error", err)
		}
		if rec != nil {
			if err := rec.Stop(shutdownCtx); err != nil {
				logger.Warn("recorder stop", "error", err)
			}
		}
		return nil
	})

	logger.Info("watcher running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.HTTP.Port),
	)

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("watcher stopped")
	return nil
}

// storeConfig maps a config file entry to a store config.
func storeConfig(sc config.StoreConfig, timeout time.Duration) poller.Config {
	return poller.Config{
		Method:       sc.Method,
		Interval:     sc.Interval,
		Timeout:      timeout,
		DiscardStale: sc.DiscardStale,
	}
}

// logUpdates logs the size of every value s publishes.
func logUpdates(logger *slog.Logger, s *poller.RecordsStore) observable.Unsubscriber {
	method := s.Method()
	return s.Subscribe(func(records model.Records) {
		logger.Info("store updated", "method", method, "records", records.Len())
	})
}
