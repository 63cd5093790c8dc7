package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/statuspulse/statuspulse/agent/internal/compute"
	"github.com/statuspulse/statuspulse/agent/internal/config"
	"github.com/statuspulse/statuspulse/agent/internal/scraper"
	"github.com/statuspulse/statuspulse/agent/internal/security"
	"github.com/statuspulse/statuspulse/agent/internal/shipper"
	"github.com/statuspulse/statuspulse/pkg/logger"
)

const certCheckInterval = 24 * time.Hour

// pipeline is one configured source and its scraper.
type pipeline struct {
	src config.Source
	s   scraper.Scraper
}

// sources is the hot-reloadable set of pipelines.
type sources struct {
	mu        sync.RWMutex
	pipelines []pipeline
}

func (ss *sources) snapshot() []pipeline {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return append([]pipeline(nil), ss.pipelines...)
}

func (ss *sources) configs() []config.Source {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make([]config.Source, len(ss.pipelines))
	for i, p := range ss.pipelines {
		out[i] = p.src
	}
	return out
}

// replace swaps in pipelines built from srcs and returns the IDs that were
// dropped so their baselines can be forgotten.
func (ss *sources) replace(srcs []config.Source) []string {
	next := buildPipelines(srcs)
	keep := make(map[string]bool, len(next))
	for _, p := range next {
		keep[p.src.ID] = true
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	var removed []string
	for _, p := range ss.pipelines {
		if !keep[p.src.ID] {
			removed = append(removed, p.src.ID)
		}
	}
	ss.pipelines = next
	return removed
}

func buildPipelines(srcs []config.Source) []pipeline {
	out := make([]pipeline, 0, len(srcs))
	for _, src := range srcs {
		s, err := scraper.New(src)
		if err != nil {
			slog.Error("skipping source, could not build scraper", "source", src.ID, "err", err)
			continue
		}
		out = append(out, pipeline{src: src, s: s})
		slog.Info("registered source",
			"id", src.ID, "endpoint", src.Endpoint, "metric", src.Metric, "classify", src.Classify)
	}
	return out
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	var level slog.LevelVar
	slog.SetDefault(logger.New("statuspulse-agent", &level))

	slog.Info("statuspulse-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	lvl, _ := logger.ParseLevel(cfg.Agent.LogLevel) // validated by Load
	level.Set(lvl)

	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"sources", len(cfg.Agent.Sources),
		"scrape_interval", cfg.Agent.ScrapeInterval,
		"ship_interval", cfg.Agent.ShipInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srcs := &sources{pipelines: buildPipelines(cfg.Agent.Sources)}
	if len(srcs.pipelines) == 0 {
		slog.Warn("no sources configured, agent will idle")
	}

	engine := compute.NewEngine()

	// Sources and log level reload with the file; intervals and the server
	// endpoint need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			if l, err := logger.ParseLevel(updated.Agent.LogLevel); err == nil {
				level.Set(l)
			}
			for _, id := range srcs.replace(updated.Agent.Sources) {
				engine.Forget(id)
				slog.Info("source removed", "id", id)
			}
			slog.Info("config hot-reloaded", "sources", len(updated.Agent.Sources))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ship := shipper.New(cfg.Agent)
	shipDone := make(chan struct{})
	go func() {
		ship.Run(ctx)
		close(shipDone)
	}()

	go checkCerts(ctx, srcs)

	// Scrape loop: poll once immediately to set baselines, then every
	// ScrapeInterval, turning counter deltas into rows for the shipper.
	go func() {
		ticker := time.NewTicker(cfg.Agent.ScrapeInterval)
		defer ticker.Stop()
		scrapeAll(ctx, srcs.snapshot(), engine, ship, time.Now())
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				scrapeAll(ctx, srcs.snapshot(), engine, ship, t)
			}
		}
	}()

	<-ctx.Done()
	slog.Info("statuspulse-agent shutting down")
	<-shipDone
}

func scrapeAll(ctx context.Context, ps []pipeline, engine *compute.Engine, ship *shipper.Shipper, now time.Time) {
	for _, p := range ps {
		res, err := p.s.Scrape(ctx)
		if err != nil {
			slog.Warn("scrape error", "source", p.src.ID, "err", err)
			continue
		}
		if row, ok := engine.Process(res, now.UTC()); ok {
			ship.Ship(p.src.ID, row)
			slog.Debug("queued row",
				"source", p.src.ID,
				"ok", row.OK, "warning", row.Warning, "error", row.Error)
		}
	}
}

// checkCerts logs HTTPS sources whose certificate needs attention, at startup
// and then daily.
func checkCerts(ctx context.Context, srcs *sources) {
	t := time.NewTicker(certCheckInterval)
	defer t.Stop()
	for {
		for _, cs := range security.CheckAll(ctx, srcs.configs(), time.Now()) {
			if cs.Status == security.StatusValid {
				slog.Debug("certificate ok", "source", cs.SourceID, "days_left", cs.DaysLeft)
				continue
			}
			slog.Warn("certificate needs attention",
				"source", cs.SourceID,
				"status", cs.Status,
				"issuer", cs.Issuer,
				"days_left", cs.DaysLeft,
				"not_after", cs.NotAfter)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
