package compute

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/statuspulse/statuspulse/agent/internal/scraper"
	"github.com/statuspulse/statuspulse/pkg/types"
)

// Engine maintains per-source counter baselines across scrape cycles and
// turns consecutive cumulative totals into per-interval rows.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	states map[string]*sourceState
}

// sourceState is the last successful scrape of one source.
type sourceState struct {
	ok, warning, errs float64
	at                time.Time
}

// NewEngine returns a ready-to-use Engine.
func NewEngine() *Engine {
	return &Engine{states: make(map[string]*sourceState)}
}

// Process ingests a ScrapeResult and returns the row covering the interval
// since the previous successful scrape of the same source.
//
// now is passed explicitly so callers (and tests) control the clock without
// sleeping. Use time.Now() in production.
//
// The first successful scrape only records the baseline and returns false.
// A failed scrape returns false and leaves the baseline untouched, so the next
// successful scrape covers the whole gap. The row is stamped with the previous
// scrape time, the start of the interval it counts.
func (e *Engine) Process(res *scraper.ScrapeResult, now time.Time) (types.RawDatum, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if res.Err != nil {
		slog.Warn("compute: scrape failed, no row emitted",
			"source", res.SourceID, "err", res.Err)
		return types.RawDatum{}, false
	}

	prev, ok := e.states[res.SourceID]
	e.states[res.SourceID] = &sourceState{ok: res.OK, warning: res.Warning, errs: res.Error, at: now}
	if !ok {
		slog.Debug("compute: baseline recorded", "source", res.SourceID)
		return types.RawDatum{}, false
	}

	row := types.RawDatum{
		Timestamp: types.Timestamp{Time: prev.at},
		OK:        toCount(deltaOf(res.OK, prev.ok)),
		Warning:   toCount(deltaOf(res.Warning, prev.warning)),
		Error:     toCount(deltaOf(res.Error, prev.errs)),
	}
	return row, true
}

// Forget drops the baseline for sourceID. It is called when a source is
// removed from the config so a later re-add starts from a fresh baseline.
func (e *Engine) Forget(sourceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, sourceID)
}

// deltaOf returns the positive counter delta between current and previous.
// If current < previous (counter reset after restart), returns 0.
func deltaOf(current, previous float64) float64 {
	d := current - previous
	if d < 0 {
		return 0
	}
	return d
}

// toCount rounds a counter delta to the nearest whole event.
func toCount(v float64) types.Count {
	return types.Count(math.Round(v))
}
