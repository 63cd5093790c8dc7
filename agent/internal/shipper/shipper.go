package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/statuspulse/statuspulse/agent/internal/config"
	"github.com/statuspulse/statuspulse/pkg/types"
)

const (
	ingestPath = "/api/v1/ingest"

	backoffInitial = 1 * time.Second
	backoffMax     = 60 * time.Second
	// retryBudget bounds one flush; rows still unsent are re-queued for the
	// next tick.
	retryBudget = 5 * time.Minute
	sendTimeout = 10 * time.Second

	finalFlushTimeout = 5 * time.Second
)

// rejectedError is a response the server will keep returning for the same
// batch, so retrying it is pointless.
type rejectedError struct {
	status int
	body   string
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("server rejected batch: %d %s", e.status, e.body)
}

// Shipper buffers rows per source and ships them to statuspulse-server as
// JSON ingest requests. Ship is non-blocking; when a source's buffer is full
// the oldest row is evicted. Run must be called in a goroutine to flush the
// buffers every ShipInterval.
type Shipper struct {
	cfg    config.AgentConfig
	url    string
	client *http.Client

	mu     sync.Mutex
	queues map[string][]types.RawDatum

	newBackOff func() backoff.BackOff // injectable for tests
}

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	return &Shipper{
		cfg:        cfg,
		url:        strings.TrimRight(cfg.ServerEndpoint, "/") + ingestPath,
		client:     &http.Client{Timeout: sendTimeout},
		queues:     make(map[string][]types.RawDatum),
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = backoffInitial
	bo.MaxInterval = backoffMax
	bo.MaxElapsedTime = retryBudget
	return bo
}

// Ship enqueues one row for sourceID. If the source's buffer is full the
// oldest row is evicted to make room.
func (s *Shipper) Ship(sourceID string, row types.RawDatum) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := append(s.queues[sourceID], row)
	if over := len(q) - s.cfg.BufferSize; over > 0 {
		q = q[over:]
		slog.Warn("shipper: buffer full, evicted oldest rows",
			"source", sourceID, "evicted", over, "buffer_cap", s.cfg.BufferSize)
	}
	s.queues[sourceID] = q
}

// Pending returns the number of rows buffered for sourceID.
func (s *Shipper) Pending(sourceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[sourceID])
}

// Run flushes the buffers every ShipInterval until ctx is cancelled, then
// makes one last bounded attempt to deliver what is left.
func (s *Shipper) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.ShipInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
			s.Flush(final)
			cancel()
			return
		case <-t.C:
			s.Flush(ctx)
		}
	}
}

// Flush sends every non-empty buffer to the server, one request per source.
// Batches that fail transiently are re-queued ahead of newer rows; batches
// the server rejects outright are discarded.
func (s *Shipper) Flush(ctx context.Context) {
	for id, batch := range s.takeAll() {
		err := s.sendWithRetry(ctx, id, batch)
		var rej *rejectedError
		switch {
		case err == nil:
		case errors.As(err, &rej):
			slog.Error("shipper: permanent send error, discarding batch",
				"source", id, "rows", len(batch), "err", err)
		default:
			slog.Warn("shipper: send failed, re-queued batch",
				"source", id, "rows", len(batch), "err", err)
			s.requeue(id, batch)
		}
	}
}

// takeAll swaps out every non-empty queue.
func (s *Shipper) takeAll() map[string][]types.RawDatum {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]types.RawDatum, len(s.queues))
	for id, q := range s.queues {
		if len(q) > 0 {
			out[id] = q
		}
	}
	s.queues = make(map[string][]types.RawDatum, len(out))
	return out
}

// requeue puts batch back in front of anything shipped since it was taken,
// keeping only the newest BufferSize rows.
func (s *Shipper) requeue(sourceID string, batch []types.RawDatum) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := append(append([]types.RawDatum(nil), batch...), s.queues[sourceID]...)
	if over := len(q) - s.cfg.BufferSize; over > 0 {
		q = q[over:]
	}
	s.queues[sourceID] = q
}

func (s *Shipper) sendWithRetry(ctx context.Context, sourceID string, batch []types.RawDatum) error {
	op := func() error {
		err := s.send(ctx, sourceID, batch)
		var rej *rejectedError
		if errors.As(err, &rej) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("shipper: send failed, will retry",
			"source", sourceID, "err", err, "retry_in", wait)
	}
	return backoff.RetryNotify(op, backoff.WithContext(s.newBackOff(), ctx), notify)
}

// send POSTs one batch. 4xx other than 429 is a rejectedError; 429, 5xx and
// transport failures are plain errors.
func (s *Shipper) send(ctx context.Context, sourceID string, batch []types.RawDatum) error {
	body, err := json.Marshal(types.IngestRequest{ServiceID: sourceID, Rows: batch})
	if err != nil {
		return &rejectedError{status: 0, body: err.Error()}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ServerAuth.Mode == "apikey" {
		req.Header.Set(s.cfg.ServerAuth.EffectiveHeader(), s.cfg.ServerAuth.Key())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		var ir types.IngestResponse
		if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
			slog.Debug("shipper: unreadable ingest response", "source", sourceID, "err", err)
		}
		slog.Debug("shipper: batch delivered",
			"source", sourceID, "accepted", ir.Accepted, "dropped", ir.Dropped)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(msg))
	if resp.StatusCode/100 == 4 && resp.StatusCode != http.StatusTooManyRequests {
		return &rejectedError{status: resp.StatusCode, body: text}
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, text)
}
