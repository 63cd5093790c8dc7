package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/statuspulse/statuspulse/pkg/types"
)

// ErrUnknownService is returned when no rows have been stored for a service.
var ErrUnknownService = errors.New("store: unknown service")

// entry is the row history of one service.
type entry struct {
	rows      []types.Datum
	updatedAt time.Time
}

// Store is a thread-safe in-memory row history keyed by service ID.
// Rows older than the retention period are evicted by a background goroutine
// (Run); each service keeps at most maxRows rows, oldest appended first out.
type Store struct {
	mu        sync.RWMutex
	data      map[string]*entry
	retention time.Duration
	maxRows   int
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Store. maxRows <= 0 disables the per-service cap.
func New(retention time.Duration, maxRows int) *Store {
	return &Store{
		data:      make(map[string]*entry),
		retention: retention,
		maxRows:   maxRows,
		now:       time.Now,
	}
}

// Retention returns the configured retention period.
func (s *Store) Retention() time.Duration {
	return s.retention
}

// Append adds rows to serviceID's history and returns how many of them are
// held once it returns. Rows already older than the retention period are not
// stored, and rows of this batch trimmed by the per-service cap do not count.
// Appending an empty batch still marks the service as seen.
func (s *Store) Append(serviceID string, rows []types.Datum) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.retention)

	e, ok := s.data[serviceID]
	if !ok {
		e = &entry{}
		s.data[serviceID] = e
	}
	e.updatedAt = now

	held := len(e.rows)
	kept := 0
	for _, r := range rows {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		e.rows = append(e.rows, r)
		kept++
	}

	if s.maxRows > 0 && len(e.rows) > s.maxRows {
		trimmed := len(e.rows) - s.maxRows
		e.rows = append(e.rows[:0:0], e.rows[trimmed:]...)
		// Rows held before this call go first.
		if lost := trimmed - held; lost > 0 {
			kept -= lost
			slog.Warn("store: batch exceeds row cap",
				"service", serviceID, "lost", lost, "cap", s.maxRows)
		}
		slog.Debug("store: trimmed rows over cap",
			"service", serviceID, "trimmed", trimmed, "cap", s.maxRows)
	}
	return kept
}

// Rows returns a copy of serviceID's row history.
func (s *Store) Rows(serviceID string) ([]types.Datum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[serviceID]
	if !ok {
		return nil, ErrUnknownService
	}
	out := make([]types.Datum, len(e.rows))
	copy(out, e.rows)
	return out, nil
}

// LastSeen returns when serviceID last received an Append.
func (s *Store) LastSeen(serviceID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[serviceID]
	if !ok {
		return time.Time{}, false
	}
	return e.updatedAt, true
}

// Services returns the IDs of all known services, sorted.
func (s *Store) Services() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for id := range s.data {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of services currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes rows older than now minus retention, and services that have
// neither rows left nor an Append within the retention period.
// It returns the number of rows removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.retention)
	removed := 0
	for id, e := range s.data {
		kept := e.rows[:0]
		for _, r := range e.rows {
			if r.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		e.rows = kept
		if len(e.rows) == 0 && !e.updatedAt.After(cutoff) {
			delete(s.data, id)
		}
	}
	return removed
}

// Run starts the background eviction loop. It ticks every minute, or at half
// the retention if that is shorter (minimum 1 second). Run blocks until ctx is
// cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.retention / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted expired rows", "count", n)
			}
		}
	}
}
