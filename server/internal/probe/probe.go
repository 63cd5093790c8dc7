package probe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/statuspulse/statuspulse/server/internal/compute"
	"github.com/statuspulse/statuspulse/server/internal/report"
	"github.com/statuspulse/statuspulse/server/internal/series"
)

// Prober keeps a grpc health.Server in step with service reports.
type Prober struct {
	src      report.Source
	profile  series.Profile
	interval time.Duration
	health   *health.Server
	now      func() time.Time

	mu    sync.Mutex
	known map[string]healthpb.HealthCheckResponse_ServingStatus
}

// New creates a Prober over src. Call Register to attach it to a gRPC server
// and Run to keep it current.
func New(src report.Source, p series.Profile, interval time.Duration) *Prober {
	return &Prober{
		src:      src,
		profile:  p,
		interval: interval,
		health:   health.NewServer(),
		now:      time.Now,
		known:    make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
}

// Register adds the health service to s.
func (p *Prober) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, p.health)
}

// ServingStatus maps a report status to a gRPC serving status.
func ServingStatus(status string) healthpb.HealthCheckResponse_ServingStatus {
	switch status {
	case compute.StatusHealthy:
		return healthpb.HealthCheckResponse_SERVING
	case compute.StatusError:
		return healthpb.HealthCheckResponse_NOT_SERVING
	default:
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	}
}

// Sync recomputes every service's status at now. Services that have left the
// store are reset to SERVICE_UNKNOWN so watchers see them go away.
func (p *Prober) Sync(now time.Time) {
	reports := report.BuildAll(p.src, p.profile, now)

	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(reports))
	for _, r := range reports {
		seen[r.ServiceID] = true
		st := ServingStatus(r.Health.Status)
		if prev, ok := p.known[r.ServiceID]; ok && prev == st {
			continue
		}
		p.known[r.ServiceID] = st
		p.health.SetServingStatus(r.ServiceID, st)
		slog.Debug("probe: serving status changed", "service", r.ServiceID, "status", st.String())
	}
	for id := range p.known {
		if seen[id] {
			continue
		}
		delete(p.known, id)
		p.health.SetServingStatus(id, healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
	}
}

// Run syncs immediately and then every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	p.Sync(p.now())

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			p.Sync(now)
		}
	}
}

// Shutdown marks every service, the server included, NOT_SERVING.
func (p *Prober) Shutdown() {
	p.health.Shutdown()
}
