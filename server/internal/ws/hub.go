package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/statuspulse/statuspulse/server/internal/api"
	"github.com/statuspulse/statuspulse/server/internal/metrics"
	"github.com/statuspulse/statuspulse/server/internal/series"
	"github.com/statuspulse/statuspulse/server/internal/store"
)

const eventSnapshot = "snapshot"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is the envelope pushed to subscribers.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// Hub pushes the rendered snapshot of every service to all subscribers on a
// fixed interval.
type Hub struct {
	store    *store.Store
	profile  series.Profile
	interval time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time

	// mu guards subs. A subscriber's queue is closed only while mu is held
	// for writing, so sends under the read lock are safe.
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// New returns a Hub over st rendered with profile p. m may be nil.
func New(st *store.Store, p series.Profile, interval time.Duration, m *metrics.Metrics) *Hub {
	return &Hub{
		store:    st,
		profile:  p,
		interval: interval,
		metrics:  m,
		now:      time.Now,
		subs:     make(map[*subscriber]struct{}),
	}
}

// Run publishes a snapshot every interval until ctx is done, then
// disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	tick := time.NewTicker(h.interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			h.publish()
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// ServeHTTP upgrades the request and serves the subscriber until it
// disconnects. The current snapshot is sent right away rather than on the
// next tick.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s := newSubscriber(conn)
	// Queued before add: once s is in subs, publish or shutdown may close
	// its queue.
	if msg, err := h.encode(); err == nil {
		s.queue <- msg
	}
	h.add(s)
	defer h.remove(s)

	go s.writeLoop()
	s.readLoop()
}

// Count reports how many subscribers are connected.
func (h *Hub) Count() int {
	h.mu.RLock()
	n := len(h.subs)
	h.mu.RUnlock()
	return n
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.gauge(n)
}

// remove is idempotent; the queue is closed only by whoever deletes s.
func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	if ok {
		delete(h.subs, s)
		close(s.queue)
	}
	n := len(h.subs)
	h.mu.Unlock()
	if ok {
		h.gauge(n)
	}
}

func (h *Hub) publish() {
	if h.Count() == 0 {
		return
	}
	msg, err := h.encode()
	if err != nil {
		slog.Error("ws: encode snapshot", "err", err)
		return
	}

	var lagging []*subscriber
	h.mu.RLock()
	for s := range h.subs {
		if !s.offer(msg) {
			lagging = append(lagging, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range lagging {
		slog.Warn("ws: subscriber queue full, disconnecting", "remote", s.remote)
		h.remove(s)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	for s := range h.subs {
		close(s.queue)
	}
	clear(h.subs)
	h.mu.Unlock()
	h.gauge(0)
}

func (h *Hub) encode() ([]byte, error) {
	return json.Marshal(Message{
		Event: eventSnapshot,
		Data:  api.BuildSnapshot(h.store, h.profile, h.now()),
	})
}

func (h *Hub) gauge(n int) {
	if h.metrics != nil {
		h.metrics.SetWSClients(n)
	}
}
