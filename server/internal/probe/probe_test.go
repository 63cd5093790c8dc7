package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/statuspulse/statuspulse/pkg/types"
	"github.com/statuspulse/statuspulse/server/internal/series"
	"github.com/statuspulse/statuspulse/server/internal/store"
)

var baseTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeSource is an in-memory report.Source.
type fakeSource map[string][]types.Datum

func (f fakeSource) Services() []string {
	out := make([]string, 0, len(f))
	for id := range f {
		out = append(out, id)
	}
	return out
}

func (f fakeSource) Rows(id string) ([]types.Datum, error) {
	rows, ok := f[id]
	if !ok {
		return nil, store.ErrUnknownService
	}
	return rows, nil
}

func rows(ok, errs int64) []types.Datum {
	return []types.Datum{{Timestamp: baseTime.Add(-time.Minute), OK: ok, Error: errs}}
}

// dial starts an in-memory gRPC server with p registered and returns a client.
func dial(t *testing.T, p *Prober) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	p.Register(srv)
	go srv.Serve(lis) //nolint:errcheck
	t.Cleanup(srv.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return 0, err
	}
	return resp.Status, nil
}

func TestServingStatus(t *testing.T) {
	tests := map[string]healthpb.HealthCheckResponse_ServingStatus{
		"healthy": healthpb.HealthCheckResponse_SERVING,
		"error":   healthpb.HealthCheckResponse_NOT_SERVING,
		"unknown": healthpb.HealthCheckResponse_SERVICE_UNKNOWN,
		"":        healthpb.HealthCheckResponse_SERVICE_UNKNOWN,
	}
	for in, want := range tests {
		if got := ServingStatus(in); got != want {
			t.Errorf("ServingStatus(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSync_OverGRPC(t *testing.T) {
	src := fakeSource{
		"checkout": rows(500, 0),
		"payments": rows(100, 100),
		"tiny":     rows(5, 0),
	}
	p := New(src, series.MustProfile(series.Profile1Hour), time.Minute)
	p.Sync(baseTime)
	c := dial(t, p)

	want := map[string]healthpb.HealthCheckResponse_ServingStatus{
		"":         healthpb.HealthCheckResponse_SERVING,
		"checkout": healthpb.HealthCheckResponse_SERVING,
		"payments": healthpb.HealthCheckResponse_NOT_SERVING,
		"tiny":     healthpb.HealthCheckResponse_SERVICE_UNKNOWN,
	}
	for svc, ws := range want {
		got, err := check(t, c, svc)
		if err != nil {
			t.Fatalf("Check(%q): %v", svc, err)
		}
		if got != ws {
			t.Errorf("Check(%q) = %v, want %v", svc, got, ws)
		}
	}

	// Never-seen services are NotFound per the health protocol.
	if _, err := check(t, c, "ghost"); status.Code(err) != codes.NotFound {
		t.Errorf("Check(ghost) err = %v, want NotFound", err)
	}
}

func TestSync_TracksChangesAndRemovals(t *testing.T) {
	src := fakeSource{"svc": rows(500, 0)}
	p := New(src, series.MustProfile(series.Profile1Hour), time.Minute)
	p.Sync(baseTime)
	c := dial(t, p)

	src["svc"] = rows(100, 400)
	p.Sync(baseTime)
	if got, _ := check(t, c, "svc"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("after failures: %v, want NOT_SERVING", got)
	}

	delete(src, "svc")
	p.Sync(baseTime)
	if got, _ := check(t, c, "svc"); got != healthpb.HealthCheckResponse_SERVICE_UNKNOWN {
		t.Errorf("after removal: %v, want SERVICE_UNKNOWN", got)
	}
}

func TestShutdown(t *testing.T) {
	p := New(fakeSource{}, series.MustProfile(series.Profile1Hour), time.Minute)
	c := dial(t, p)
	p.Shutdown()
	if got, _ := check(t, c, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("after Shutdown: %v, want NOT_SERVING", got)
	}
}

func TestRun_SyncsImmediately(t *testing.T) {
	p := New(fakeSource{"svc": rows(500, 0)}, series.MustProfile(series.Profile1Hour), time.Hour)
	p.now = func() time.Time { return baseTime }
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	c := dial(t, p)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if got, err := check(t, c, "svc"); err == nil && got == healthpb.HealthCheckResponse_SERVING {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Run did not sync on start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}
