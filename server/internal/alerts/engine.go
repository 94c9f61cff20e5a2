package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/config"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

const (
	defaultCooldown   = 15 * time.Minute
	defaultSeverity   = "warning"
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID          string     `json:"id"`
	RuleName    string     `json:"rule_name"`
	MachineID   int64      `json:"machine_id"`
	MachineName string     `json:"machine_name"`
	Severity    string     `json:"severity"`
	Message     string     `json:"message"`
	Value       float64    `json:"value"`
	FiredAt     time.Time  `json:"fired_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	State       string     `json:"state"`
}

type rule struct {
	config.AlertRule
	cond Condition
}

// Engine evaluates alert rules against machine evaluations and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []rule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:machineID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time
}

// New creates an Engine from the server alert configuration. Every rule
// condition is parsed up front; an Engine with no rules is valid and
// Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) (*Engine, error) {
	rules := make([]rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		cond, err := ParseCondition(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		if r.Severity == "" {
			r.Severity = defaultSeverity
		}
		if r.Cooldown <= 0 {
			r.Cooldown = defaultCooldown
		}
		rules = append(rules, rule{AlertRule: r, cond: cond})
	}
	return &Engine{
		rules:    rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}, nil
}

func alertKey(ruleName string, machineID int64) string {
	return ruleName + ":" + strconv.FormatInt(machineID, 10)
}

// Evaluate tests all configured rules against one machine evaluation.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(m types.Machine, ev fuzzy.Evaluation) {
	if len(e.rules) == 0 {
		return
	}

	subj := Subject{Machine: m, Evaluation: ev}
	for _, r := range e.rules {
		fires, value := r.cond.Eval(subj)
		if fires {
			e.fire(r, m, value)
		} else {
			e.resolve(alertKey(r.Name, m.ID))
		}
	}
}

func (e *Engine) fire(r rule, m types.Machine, value float64) {
	key := alertKey(r.Name, m.ID)

	e.mu.Lock()
	now := e.now()
	if now.Sub(e.lastFire[key]) <= r.Cooldown {
		e.mu.Unlock()
		return
	}
	a := &Alert{
		ID:          xid.NewWithTime(now).String(),
		RuleName:    r.Name,
		MachineID:   m.ID,
		MachineName: m.Name,
		Severity:    r.Severity,
		Value:       value,
		Message: fmt.Sprintf("%s on %s (#%d): %s, value %.2f",
			r.Name, m.Name, m.ID, r.cond, value),
		FiredAt: now,
		State:   StateFiring,
	}
	e.active[key] = a
	e.lastFire[key] = now
	alertCopy := *a
	e.mu.Unlock()

	slog.Warn("alerts: fired",
		"rule", r.Name,
		"machine_id", m.ID,
		"value", value,
		"severity", r.Severity,
	)
	go e.deliver(&alertCopy)
}

func (e *Engine) resolve(key string) {
	e.mu.Lock()
	a, ok := e.active[key]
	if !ok || a.State != StateFiring {
		e.mu.Unlock()
		return
	}
	resolved := e.now()
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	alertCopy := *a
	e.mu.Unlock()

	slog.Info("alerts: resolved",
		"rule", a.RuleName,
		"machine_id", a.MachineID,
	)
	go e.deliver(&alertCopy)
}

// Forget resolves every firing alert for a machine, e.g. after it is deleted.
func (e *Engine) Forget(machineID int64) {
	for _, r := range e.rules {
		e.resolve(alertKey(r.Name, machineID))
	}
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
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
	slices.SortFunc(out, func(a, b *Alert) int {
		if c := b.FiredAt.Compare(a.FiredAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out
}
