package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/statuspulse/statuspulse/agent/internal/config"
)

// Outcome is the classification of one label value.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeWarning
	OutcomeError
)

// classifierFunc maps a label value to an Outcome.
type classifierFunc func(string) Outcome

// classifier returns the classification function for the named scheme.
func classifier(scheme string) (classifierFunc, error) {
	switch scheme {
	case config.ClassifyStatusCode, "":
		return ClassifyStatusCode, nil
	case config.ClassifyOutcome:
		return ClassifyOutcome, nil
	default:
		return nil, fmt.Errorf("unknown classify scheme %q", scheme)
	}
}

// ClassifyStatusCode maps an HTTP status code label: 1xx, 2xx and 3xx are ok,
// 4xx is a warning, 5xx and anything unparseable is an error.
// Values like "2xx" are accepted.
func ClassifyStatusCode(v string) Outcome {
	if v == "" {
		return OutcomeError
	}
	switch v[0] {
	case '1', '2', '3':
		return OutcomeOK
	case '4':
		return OutcomeWarning
	default:
		return OutcomeError
	}
}

// ClassifyOutcome maps a free-form outcome label.
func ClassifyOutcome(v string) Outcome {
	switch strings.ToLower(v) {
	case "ok", "success":
		return OutcomeOK
	case "warning", "warn":
		return OutcomeWarning
	default:
		return OutcomeError
	}
}

// requestScraper reads one request counter family from a Prometheus endpoint
// and sums its samples by outcome.
type requestScraper struct {
	src      config.Source
	client   *http.Client
	classify classifierFunc
	now      func() time.Time
}

// Scrape fetches the source's metrics endpoint and totals the configured
// counter family by the outcome of its label. A failed scrape is reported in
// res.Err; the returned error is reserved for programming errors.
func (s *requestScraper) Scrape(ctx context.Context) (*ScrapeResult, error) {
	res := &ScrapeResult{SourceID: s.src.ID, ScrapedAt: s.now().UTC()}

	mfs, err := fetchMetrics(ctx, s.client, s.src.Endpoint)
	if err != nil {
		res.Err = fmt.Errorf("scrape %q: %w", s.src.ID, err)
		slog.Warn("scraper: fetch failed", "source", s.src.ID, "err", err)
		return res, nil
	}

	mf, ok := mfs[s.src.Metric]
	if !ok {
		res.Err = fmt.Errorf("scrape %q: metric %q not exposed", s.src.ID, s.src.Metric)
		slog.Warn("scraper: metric missing", "source", s.src.ID, "metric", s.src.Metric)
		return res, nil
	}

	for _, m := range mf.GetMetric() {
		v := sampleValue(m)
		switch s.classify(labelValue(m, s.src.Label)) {
		case OutcomeOK:
			res.OK += v
		case OutcomeWarning:
			res.Warning += v
		default:
			res.Error += v
		}
		res.Series++
	}
	return res, nil
}
