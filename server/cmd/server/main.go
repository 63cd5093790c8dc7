package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/statuspulse/statuspulse/pkg/logger"
	"github.com/statuspulse/statuspulse/server/internal/alerts"
	"github.com/statuspulse/statuspulse/server/internal/api"
	"github.com/statuspulse/statuspulse/server/internal/auth"
	"github.com/statuspulse/statuspulse/server/internal/config"
	"github.com/statuspulse/statuspulse/server/internal/metrics"
	"github.com/statuspulse/statuspulse/server/internal/probe"
	"github.com/statuspulse/statuspulse/server/internal/receiver"
	"github.com/statuspulse/statuspulse/server/internal/series"
	"github.com/statuspulse/statuspulse/server/internal/store"
	"github.com/statuspulse/statuspulse/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory; leave empty to disable")
	flag.Parse()

	// Bootstrap at info; the configured level is applied once the file is read.
	var level slog.LevelVar
	slog.SetDefault(logger.New("statuspulse-server", slog.LevelInfo))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "config", *configPath, "err", err)
		os.Exit(1)
	}
	lvl, _ := logger.ParseLevel(cfg.Server.LogLevel) // validated by Load
	level.Set(lvl)
	slog.SetDefault(logger.New("statuspulse-server", &level))

	slog.Info("config loaded",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"retention", cfg.Server.Store.Retention,
		"broadcast_profile", cfg.Server.Broadcast.Profile,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	profile := series.MustProfile(cfg.Server.Broadcast.Profile)

	// Row store with background retention eviction.
	st := store.New(cfg.Server.Store.Retention, cfg.Server.Store.MaxRowsPerService)
	go st.Run(ctx)

	m := metrics.New(st.Count)

	// Alerts engine: evaluates rules after every ingest. Rules reload with the file.
	alertEngine := alerts.New(cfg.Server.Alerts)
	go watchConfig(ctx, *configPath, alertEngine, &level)

	rec := receiver.New(st, alertEngine, m, profile)

	guard := auth.New(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)
	if cfg.Server.Auth.Mode == auth.ModeAPIKey && !guard.Enabled() {
		slog.Warn("auth mode is apikey but the key variable is empty; requests are not authenticated",
			"key_env", cfg.Server.Auth.KeyEnv)
	}

	// gRPC health service with optional API key authentication.
	prober := probe.New(st, profile, cfg.Server.Broadcast.Interval)
	go prober.Run(ctx)

	grpcSrv := grpc.NewServer(
		grpc.UnaryInterceptor(guard.UnaryInterceptor()),
		grpc.StreamInterceptor(guard.StreamInterceptor()),
	)
	prober.Register(grpcSrv)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port",
			"port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("gRPC health service listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	// WebSocket hub: pushes snapshots to dashboard clients.
	hub := ws.New(st, profile, cfg.Server.Broadcast.Interval, m)
	go hub.Run(ctx)

	// Combined HTTP server: REST API, WebSocket hub, and /metrics on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(api.Deps{
		Store:     st,
		Receiver:  rec,
		Alerts:    alertEngine,
		Metrics:   m,
		Guard:     guard,
		Limiter:   api.NewLimiter(cfg.Server.Ingest.RateLimit, cfg.Server.Ingest.Burst),
		Broadcast: profile,
	}))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", m.Handler())

	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("statuspulse-server shutting down")
	prober.Shutdown()
	grpcSrv.GracefulStop()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	alertEngine.Wait()
}

// watchConfig applies alert rules and log level from config reloads. Ports,
// auth, and retention need a restart.
func watchConfig(ctx context.Context, path string, engine *alerts.Engine, level *slog.LevelVar) {
	err := config.Watch(ctx, path, func(cfg *config.Config) {
		engine.Reload(cfg.Server.Alerts)
		if lvl, err := logger.ParseLevel(cfg.Server.LogLevel); err == nil {
			level.Set(lvl)
		}
		slog.Info("config reloaded", "rules", len(cfg.Server.Alerts.Rules))
	})
	if err != nil {
		slog.Error("config watcher stopped", "path", path, "err", err)
	}
}
