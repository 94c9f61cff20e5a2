package alerts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/config"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

func subject(score float64, st types.Status, errMargin float64) Subject {
	return Subject{
		Machine: types.Machine{ID: 7, Name: "press", Measurement: types.Measurement{
			DailyProduction: 400, ErrorMargin: errMargin, EnergyConsumption: 90,
		}},
		Evaluation: fuzzy.Evaluation{Score: score, Status: st},
	}
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		cond    string
		wantErr bool
	}{
		{"efficiency_score < 50", false},
		{"error_margin >= 10.5", false},
		{"energy_consumption != 0", false},
		{"status == very_bad", false},
		{"status != GOOD", false},
		{"status > bad", true},
		{"status == awful", true},
		{"uptime < 99", true},
		{"efficiency_score ~ 50", true},
		{"efficiency_score < fifty", true},
		{"efficiency_score<50", true},
	}
	for _, tt := range tests {
		_, err := ParseCondition(tt.cond)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCondition(%q) err = %v; wantErr %v", tt.cond, err, tt.wantErr)
		}
	}
}

func TestCondition_Eval(t *testing.T) {
	tests := []struct {
		cond      string
		subj      Subject
		wantFire  bool
		wantValue float64
	}{
		{"efficiency_score < 50", subject(42, types.StatusBad, 3), true, 42},
		{"efficiency_score < 50", subject(50, types.StatusMedium, 3), false, 50},
		{"error_margin > 10", subject(80, types.StatusGood, 12), true, 12},
		{"daily_production <= 400", subject(80, types.StatusGood, 1), true, 400},
		{"energy_consumption == 90", subject(80, types.StatusGood, 1), true, 90},
		{"status == bad", subject(42, types.StatusBad, 3), true, 42},
		{"status != bad", subject(42, types.StatusBad, 3), false, 42},
	}
	for _, tt := range tests {
		c, err := ParseCondition(tt.cond)
		if err != nil {
			t.Fatalf("ParseCondition(%q): %v", tt.cond, err)
		}
		fires, v := c.Eval(tt.subj)
		if fires != tt.wantFire || v != tt.wantValue {
			t.Errorf("%q: got (%v, %v), want (%v, %v)", tt.cond, fires, v, tt.wantFire, tt.wantValue)
		}
	}
}

func TestNew_RejectsBadCondition(t *testing.T) {
	_, err := New(config.AlertsConfig{Rules: []config.AlertRule{{Name: "x", Condition: "nope < 1"}}})
	if err == nil || !strings.Contains(err.Error(), `rule "x"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestEngine_FireCooldownResolve(t *testing.T) {
	e, err := New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "low", Condition: "efficiency_score < 50", Cooldown: 10 * time.Minute},
	}})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	s := subject(30, types.StatusBad, 3)
	e.Evaluate(s.Machine, s.Evaluation)

	active := e.Active()
	if len(active) != 1 {
		t.Fatalf("active = %d; want 1", len(active))
	}
	first := active[0]
	if first.State != StateFiring || first.Severity != "warning" || first.MachineID != 7 || first.Value != 30 {
		t.Errorf("alert = %+v", first)
	}
	if first.ID == "" {
		t.Error("alert id is empty")
	}

	// Within the cooldown the alert is not re-fired.
	now = now.Add(5 * time.Minute)
	e.Evaluate(s.Machine, s.Evaluation)
	if got := e.Active(); len(got) != 1 || got[0].ID != first.ID {
		t.Errorf("re-fired within cooldown: %+v", got)
	}

	// Condition clears: the alert moves to history.
	now = now.Add(time.Minute)
	ok := subject(80, types.StatusGood, 3)
	e.Evaluate(ok.Machine, ok.Evaluation)
	got := e.Active()
	if len(got) != 1 || got[0].State != StateResolved || got[0].ResolvedAt == nil {
		t.Fatalf("after resolve: %+v", got)
	}

	// Resolved alerts drop out after an hour.
	now = now.Add(2 * time.Hour)
	if got := e.Active(); len(got) != 0 {
		t.Errorf("stale history still active: %+v", got)
	}
}

func TestEngine_Forget(t *testing.T) {
	e, err := New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "bad", Condition: "status == very_bad", Severity: "critical"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	s := subject(5, types.StatusVeryBad, 3)
	e.Evaluate(s.Machine, s.Evaluation)
	e.Forget(7)

	got := e.Active()
	if len(got) != 1 || got[0].State != StateResolved {
		t.Fatalf("after Forget: %+v", got)
	}
}

func TestEngine_NoRules(t *testing.T) {
	e, err := New(config.AlertsConfig{})
	if err != nil {
		t.Fatal(err)
	}
	s := subject(0, types.StatusVeryBad, 50)
	e.Evaluate(s.Machine, s.Evaluation)
	if got := e.Active(); len(got) != 0 {
		t.Errorf("active = %+v", got)
	}
}

func TestEngine_DeliversWebhook(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
	}))
	defer srv.Close()

	t.Setenv("TEST_ALERT_HOOK", srv.URL)
	e, err := New(config.AlertsConfig{
		Rules:    []config.AlertRule{{Name: "errors", Condition: "error_margin > 10"}},
		Webhooks: []config.WebhookConfig{{Type: "slack", URLEnv: "TEST_ALERT_HOOK"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := subject(60, types.StatusMedium, 15)
	e.Evaluate(s.Machine, s.Evaluation)

	select {
	case body := <-received:
		text, _ := body["text"].(string)
		if !strings.Contains(text, "[WARNING]") || !strings.Contains(text, "press") {
			t.Errorf("slack text = %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered")
	}
}
