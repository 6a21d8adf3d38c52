// Package main runs the autopilot engine: three provider stream
// connections feed normalized events through the matcher, eligible
// decisions flow into the dispatcher, and runtime state is exposed
// over HTTP for metrics and operators.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"solana-autopilot/internal/config"
	"solana-autopilot/internal/dispatch"
	"solana-autopilot/internal/engine"
	"solana-autopilot/internal/logging"
	"solana-autopilot/internal/notify"
	"solana-autopilot/internal/observability"
	"solana-autopilot/internal/storage"
	chstore "solana-autopilot/internal/storage/clickhouse"
	"solana-autopilot/internal/storage/memory"
	"solana-autopilot/internal/storage/migrations"
	pgstore "solana-autopilot/internal/storage/postgres"
	"solana-autopilot/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file (empty: configure from environment only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.Default()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	logger := log.WithComponent("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("storage setup failed")
		os.Exit(1)
	}
	defer cleanup()
	logger.WithFields(logging.Fields{
		"backend": cfg.Storage.Backend,
		"archive": cfg.Storage.Clickhouse.Enabled,
	}).Info("storage ready")

	var notifier dispatch.Notifier
	if cfg.Telegram.Enabled {
		notifier = notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
	}

	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherOptions{
		Executor:     &dispatch.DryRunExecutor{Latency: cfg.Dispatch.DryRunDelay()},
		Balances:     dispatch.StaticBalances(cfg.Dispatch.WalletBalances),
		ProfileStore: stores.profiles,
		LogStore:     stores.executions,
		Archive:      stores.executionArchive,
		Notifier:     notifier,
		Limiter:      rate.NewLimiter(rate.Limit(cfg.Dispatch.RatePerSecond), cfg.Dispatch.RateBurst),
		Logger:       log,
	})

	eng, err := engine.NewEngine(engine.EngineOptions{
		Config: engine.Config{
			BaseURL:         cfg.Provider.BaseURL,
			APIKey:          cfg.Provider.APIKey,
			SolPriceHint:    cfg.Provider.SolPriceHint,
			TokenSupplyHint: cfg.Provider.TokenSupplyHint,
			RefreshInterval: cfg.Engine.RefreshInterval(),
			Workers:         cfg.Engine.Workers,
			RecentEventsCap: cfg.Engine.RecentEventsCap,
			Supervisor: stream.SupervisorConfig{
				ReconnectDelay:       cfg.Stream.ReconnectDelay(),
				MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
				PingInterval:         cfg.Stream.PingInterval(),
				WriteTimeout:         cfg.Stream.WriteTimeout(),
			},
			Transport: stream.TransportConfig{
				HandshakeTimeout: cfg.Stream.HandshakeTimeout(),
				ReadTimeout:      cfg.Stream.ReadTimeout(),
			},
		},
		Profiles:   stores.profiles,
		Dispatcher: dispatcher,
		Archive:    stores.eventArchive,
		Notifier:   notifier,
		Logger:     log,
	})
	if err != nil {
		logger.WithError(err).Error("engine setup failed")
		os.Exit(1)
	}

	startedAt := time.Now()
	if cfg.Metrics.Enabled {
		go serveHTTP(cfg.Metrics.Listen, eng, startedAt, log)
	}

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = eng.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("engine exited with error")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// engineStores groups the storage implementations behind their
// interfaces so the wiring below stays backend-agnostic.
type engineStores struct {
	profiles         storage.ProfileStore
	executions       storage.ExecutionLogStore
	eventArchive     storage.EventArchive
	executionArchive storage.ExecutionArchive // nil when clickhouse is disabled
}

// buildStores selects the backend from config: in-memory for dry runs,
// postgres for durable profiles and execution logs. The clickhouse
// archive is independent of the backend choice and attaches to either.
func buildStores(ctx context.Context, cfg *config.Config) (*engineStores, func(), error) {
	stores := &engineStores{
		profiles:   memory.NewProfileStore(),
		executions: memory.NewExecutionLogStore(),
	}
	cleanup := func() {}

	if cfg.Storage.Backend == config.BackendPostgres {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		stores.profiles = pgstore.NewProfileStore(pool)
		stores.executions = pgstore.NewExecutionLogStore(pool)
		cleanup = pool.Close
	}

	if cfg.Storage.Clickhouse.Enabled {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.Clickhouse.DSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		stores.eventArchive = chstore.NewEventArchive(conn)
		stores.executionArchive = chstore.NewExecutionArchive(conn)

		prev := cleanup
		cleanup = func() {
			conn.Close()
			prev()
		}
	} else {
		stores.eventArchive = memory.NewEventArchive(0)
	}

	return stores, cleanup, nil
}

// serveHTTP exposes prometheus metrics plus small status and recents
// endpoints for operators.
func serveHTTP(addr string, eng *engine.Engine, startedAt time.Time, log *logging.Log) {
	logger := log.WithComponent("http")

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, eng, startedAt)
	})
	mux.HandleFunc("/recent", func(w http.ResponseWriter, r *http.Request) {
		writeRecent(w, r, eng)
	})

	logger.WithField("addr", addr).Info("http server listening")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("http server failed")
	}
}

// StatusResponse is the JSON body of the /status endpoint.
type StatusResponse struct {
	Status         string         `json:"status"`
	Uptime         string         `json:"uptime"`
	EventsSeen     int64          `json:"events_seen"`
	Matched        int64          `json:"matched"`
	Dispatched     int64          `json:"dispatched"`
	Duplicates     int64          `json:"duplicates"`
	ProfilesLoaded int            `json:"profiles_loaded"`
	Streams        []StreamStatus `json:"streams"`
}

// StreamStatus reports one provider connection.
type StreamStatus struct {
	Name            string `json:"name"`
	State           string `json:"state"`
	Attempts        int    `json:"attempts"`
	FramesIn        int64  `json:"frames_in"`
	EventsOut       int64  `json:"events_out"`
	LastCloseCode   int    `json:"last_close_code,omitempty"`
	LastCloseReason string `json:"last_close_reason,omitempty"`
}

func writeStatus(w http.ResponseWriter, eng *engine.Engine, startedAt time.Time) {
	stats := eng.Stats()

	resp := StatusResponse{
		Status:         "running",
		Uptime:         time.Since(startedAt).String(),
		EventsSeen:     stats.EventsSeen,
		Matched:        stats.Matched,
		Dispatched:     stats.Dispatched,
		Duplicates:     stats.Duplicates,
		ProfilesLoaded: stats.ProfilesLoaded,
	}
	for _, s := range stats.Streams {
		if s.State == stream.StateClosedFatal {
			resp.Status = "degraded"
		}
		resp.Streams = append(resp.Streams, StreamStatus{
			Name:            s.Name,
			State:           s.State.String(),
			Attempts:        s.Attempts,
			FramesIn:        s.FramesIn,
			EventsOut:       s.EventsOut,
			LastCloseCode:   s.LastCloseCode,
			LastCloseReason: s.LastCloseReason,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// RecentEvent is the JSON shape of one observed stream event.
type RecentEvent struct {
	Kind       string  `json:"kind"`
	TokenMint  string  `json:"token_mint,omitempty"`
	Signer     string  `json:"signer,omitempty"`
	Platform   string  `json:"platform,omitempty"`
	Direction  string  `json:"direction,omitempty"`
	SolAmount  float64 `json:"sol_amount,omitempty"`
	Signature  string  `json:"signature,omitempty"`
	Slot       int64   `json:"slot,omitempty"`
	ObservedAt int64   `json:"observed_at"`
}

func writeRecent(w http.ResponseWriter, r *http.Request, eng *engine.Engine) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events := eng.RecentEvents(limit)
	out := make([]RecentEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, RecentEvent{
			Kind:       string(ev.Kind),
			TokenMint:  ev.TokenMint,
			Signer:     ev.Signer,
			Platform:   ev.Platform,
			Direction:  string(ev.Direction),
			SolAmount:  ev.SolAmount,
			Signature:  ev.Signature,
			Slot:       ev.Slot,
			ObservedAt: ev.ObservedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
