package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/statuspulse/statuspulse/server/internal/alerts/condition"
	"github.com/statuspulse/statuspulse/server/internal/config"
	"github.com/statuspulse/statuspulse/server/internal/report"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	ServiceID  string     `json:"service_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

// rule is a config.AlertRule with its condition parsed.
type rule struct {
	config.AlertRule
	cond condition.Expr
}

// Engine evaluates alert rules against service reports and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []rule
	gen      uint64 // bumped by Reload
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: "ruleName:serviceID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts

	client   *http.Client
	inflight sync.WaitGroup
	now      func() time.Time // injectable for deterministic tests
}

// New creates an Engine from the server alert configuration.
// An Engine with no rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	e.Reload(cfg)
	return e
}

// Reload swaps the rule set and webhook targets. Rules whose condition does
// not parse are logged and skipped. Firing alerts for rules that no longer
// exist are dropped without a resolve notification.
func (e *Engine) Reload(cfg config.AlertsConfig) {
	rules := make([]rule, 0, len(cfg.Rules))
	names := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		c, err := condition.Parse(r.Condition)
		if err != nil {
			slog.Error("alerts: skipping rule", "rule", r.Name, "err", err)
			continue
		}
		rules = append(rules, rule{AlertRule: r, cond: c})
		names[r.Name] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
	e.gen++
	e.webhooks = append([]config.WebhookConfig(nil), cfg.Webhooks...)
	for key, a := range e.active {
		if !names[a.RuleName] {
			delete(e.active, key)
			delete(e.lastFire, key)
		}
	}
}

// Evaluate tests all configured rules against r.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(r report.Report) {
	e.mu.Lock()
	rules, gen := e.rules, e.gen
	e.mu.Unlock()

	if len(rules) == 0 {
		return
	}

	now := e.now()
	for _, rl := range rules {
		key := rl.Name + ":" + r.ServiceID
		fires, value := rl.cond.Eval(r)

		var notify *Alert
		e.mu.Lock()
		if e.gen != gen {
			// Rules were reloaded mid-evaluation; rl may no longer exist.
			e.mu.Unlock()
			return
		}
		if fires {
			notify = e.fire(key, rl, r.ServiceID, value, now)
		} else {
			notify = e.resolve(key, now)
		}
		e.mu.Unlock()

		if notify == nil {
			continue
		}
		if notify.State == StateFiring {
			slog.Warn("alert fired",
				"rule", rl.Name,
				"service", r.ServiceID,
				"value", value,
				"severity", notify.Severity,
			)
		} else {
			slog.Info("alert resolved",
				"rule", rl.Name,
				"service", r.ServiceID,
			)
		}
		e.inflight.Add(1)
		go func(a *Alert) {
			defer e.inflight.Done()
			e.deliver(a)
		}(notify)
	}
}

// fire records a firing alert unless key is inside its cooldown or already
// firing. It returns a copy to deliver, or nil. Callers hold e.mu.
func (e *Engine) fire(key string, rl rule, serviceID string, value float64, now time.Time) *Alert {
	if _, ok := e.active[key]; ok {
		return nil
	}
	cooldown := rl.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if last, ok := e.lastFire[key]; ok && now.Sub(last) < cooldown {
		return nil
	}

	sev := rl.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:        uuid.NewString(),
		RuleName:  rl.Name,
		ServiceID: serviceID,
		Severity:  sev,
		Value:     value,
		Message: fmt.Sprintf("[%s] %s fired on %s: %s (value %.2f)",
			sev, rl.Name, serviceID, rl.Condition, value),
		FiredAt: now,
		State:   StateFiring,
	}
	e.active[key] = a
	e.lastFire[key] = now
	cp := *a
	return &cp
}

// resolve moves a firing alert for key into history. Callers hold e.mu.
func (e *Engine) resolve(key string, now time.Time) *Alert {
	a, ok := e.active[key]
	if !ok {
		return nil
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	cp := *a
	return &cp
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Wait blocks until every in-flight webhook delivery has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}
