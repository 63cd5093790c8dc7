package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/statuspulse/statuspulse/pkg/types"
	"github.com/statuspulse/statuspulse/server/internal/alerts"
	"github.com/statuspulse/statuspulse/server/internal/auth"
	"github.com/statuspulse/statuspulse/server/internal/metrics"
	"github.com/statuspulse/statuspulse/server/internal/receiver"
	"github.com/statuspulse/statuspulse/server/internal/report"
	"github.com/statuspulse/statuspulse/server/internal/series"
	"github.com/statuspulse/statuspulse/server/internal/store"
)

// maxIngestBytes caps the body of POST /api/v1/ingest.
const maxIngestBytes = 4 << 20

// Deps are the collaborators the Handler reads from and writes to.
type Deps struct {
	Store    *store.Store
	Receiver *receiver.Receiver
	Alerts   *alerts.Engine
	Metrics  *metrics.Metrics
	Guard    auth.Guard

	// Limiter throttles ingest; nil disables throttling.
	Limiter *rate.Limiter

	// Broadcast is the profile used by /health and /snapshot.
	Broadcast series.Profile

	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	Deps
	mux *http.ServeMux
}

// NewLimiter returns a token bucket admitting perSecond requests with the
// given burst, or nil when perSecond is zero.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// New creates a Handler wired to d and registers all routes.
func New(d Deps) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &Handler{Deps: d, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/services", h.listServices)
	h.mux.HandleFunc("/api/v1/services/{id}", h.getService)
	h.mux.HandleFunc("/api/v1/services/{id}/series", h.getSeries)
	h.mux.HandleFunc("/api/v1/profiles", h.profiles)
	h.mux.Handle("/api/v1/ingest", d.Guard.Middleware(http.HandlerFunc(h.ingest)))
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	if d.Metrics == nil {
		return h
	}
	return instrument(h, d.Metrics)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: per-status service counts over the
// broadcast profile.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reports := report.BuildAll(h.Store, h.Broadcast, h.Now())
	resp := HealthResponse{
		Overview: report.Summarize(reports),
		Interval: h.Broadcast.Name,
	}
	if h.Alerts != nil {
		for _, a := range h.Alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listServices returns GET /api/v1/services: every service's summary.
func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	p, err := profileParam(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.Now()
	reports := report.BuildAll(h.Store, p, now)
	out := make([]ServiceResponse, 0, len(reports))
	for _, rep := range reports {
		resp := toServiceResponse(h.Store, rep, now)
		resp.Report = rep.Summary()
		out = append(out, resp)
	}
	jsonResp(w, http.StatusOK, out)
}

// getService returns GET /api/v1/services/{id}: one service's summary.
func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.serviceReport(w, r, false)
	if !ok {
		return
	}
	resp.Report = resp.Report.Summary()
	jsonResp(w, http.StatusOK, resp)
}

// getSeries returns GET /api/v1/services/{id}/series: the full bucketed report.
func (h *Handler) getSeries(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.serviceReport(w, r, true)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// serviceReport resolves {id}, ?interval= and (when allowEnd) ?end= into a
// full report. It writes the error response itself and reports false on failure.
func (h *Handler) serviceReport(w http.ResponseWriter, r *http.Request, allowEnd bool) (ServiceResponse, bool) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return ServiceResponse{}, false
	}
	p, err := profileParam(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return ServiceResponse{}, false
	}
	now := h.Now()
	end := now
	if allowEnd {
		if end, err = endParam(r, now); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return ServiceResponse{}, false
		}
	}

	id := r.PathValue("id")
	rows, err := h.Store.Rows(id)
	if errors.Is(err, store.ErrUnknownService) {
		jsonErr(w, http.StatusNotFound, "service not found")
		return ServiceResponse{}, false
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return ServiceResponse{}, false
	}
	return toServiceResponse(h.Store, report.Build(id, rows, p, end), now), true
}

// profiles returns GET /api/v1/profiles: the interval profile table.
func (h *Handler) profiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ps := series.Profiles()
	out := make([]ProfileResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, ProfileResponse{
			Name:               p.Name,
			BucketWidthMinutes: int(p.Width / time.Minute),
			BucketCount:        p.Count,
			WindowMinutes:      int(p.Window() / time.Minute),
			Default:            p.Name == series.DefaultProfile,
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// ingest handles POST /api/v1/ingest. The API key is checked by the Guard
// middleware before this runs.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.Limiter != nil && !h.Limiter.Allow() {
		h.ingestResult(metrics.ResultThrottled)
		w.Header().Set("Retry-After", "1")
		jsonErr(w, http.StatusTooManyRequests, "ingest rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBytes)
	var req types.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.ingestResult(metrics.ResultInvalid)
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonErr(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooBig.Limit))
			return
		}
		jsonErr(w, http.StatusBadRequest, "malformed JSON: "+err.Error())
		return
	}

	resp, err := h.Receiver.Ingest(req)
	if err != nil {
		h.ingestResult(metrics.ResultInvalid)
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	h.ingestResult(metrics.ResultAccepted)
	jsonResp(w, http.StatusOK, resp)
}

// alerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := AlertsResponse{Alerts: []*alerts.Alert{}}
	if h.Alerts != nil {
		resp.Alerts = h.Alerts.Active()
	}
	jsonResp(w, http.StatusOK, resp)
}

// snapshot returns GET /api/v1/snapshot: every service with buckets over the
// broadcast profile.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.Store, h.Broadcast, h.Now()))
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) ingestResult(result string) {
	if h.Metrics != nil {
		h.Metrics.IngestResult(result)
	}
}

// profileParam reads ?interval=, defaulting to the 1day profile.
func profileParam(r *http.Request) (series.Profile, error) {
	name := r.URL.Query().Get("interval")
	if name == "" {
		name = series.DefaultProfile
	}
	return series.ParseProfile(name)
}

// endParam reads ?end= as RFC3339, defaulting to now.
func endParam(r *http.Request, now time.Time) (time.Time, error) {
	v := r.URL.Query().Get("end")
	if v == "" {
		return now, nil
	}
	// An unencoded "+" in a positive offset arrives as a space.
	t, err := time.Parse(time.RFC3339, strings.Replace(v, " ", "+", 1))
	if err != nil {
		return time.Time{}, fmt.Errorf("end must be RFC3339 (encode a + offset as %%2B): %q", v)
	}
	return t, nil
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
