package api

import (
	"fmt"
	"sort"

	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

// DiagnosticHint is one human-readable insight about a machine's measurement.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical".
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is the membership degree that triggered the hint, if any.
	Value *float64 `json:"value,omitempty"`
}

// hintThreshold is the membership degree at which a term counts as present.
const hintThreshold = 0.5

type hintRule struct {
	variable, term string
	key, title     string
	detail         string
}

var hintRules = []hintRule{
	{
		variable: fuzzy.VarErrorMargin, term: "high",
		key: "high_error_margin", title: "High defect rate",
		detail: "A large share of output is defective. Every defective unit still costs energy and machine time, " +
			"so reducing the error margin raises effective production without touching the schedule.",
	},
	{
		variable: fuzzy.VarStandbyTime, term: "high",
		key: "high_standby", title: "Long idle time",
		detail: "The machine spends a long time on standby each day. Check for upstream starvation, " +
			"long changeovers or operators waiting on material.",
	},
	{
		variable: fuzzy.VarMaintenanceInterval, term: "frequent",
		key: "frequent_maintenance", title: "Frequent maintenance",
		detail: "Maintenance sessions are close together. Each session takes the machine offline; " +
			"a predictive schedule can usually stretch the interval.",
	},
	{
		variable: fuzzy.VarEnergyConsumption, term: "high",
		key: "high_energy", title: "High energy draw",
		detail: "Energy consumption is in the high range for this model. Look at idle power draw and motor efficiency.",
	},
	{
		variable: fuzzy.VarDailyProduction, term: "low",
		key: "low_production", title: "Low output",
		detail: "Daily production is low. Output is the strongest driver of the efficiency score.",
	},
}

// computeDiagnostics derives hints from the fuzzified measurement and its
// evaluation. Hints are ordered critical first, then warnings, then info.
func computeDiagnostics(d fuzzy.Degrees, ev fuzzy.Evaluation) []DiagnosticHint {
	var hints []DiagnosticHint

	if ev.Fallback {
		hints = append(hints, DiagnosticHint{
			Key:   "no_rule_fired",
			Level: "critical",
			Title: "No rule fired",
			Detail: fmt.Sprintf(
				"None of the model's rules matched this measurement, so the score fell back to %.2f. "+
					"The readings are probably outside the ranges the rule base was written for.",
				ev.Score,
			),
		})
	}

	for _, hr := range hintRules {
		deg, ok := d[hr.variable][hr.term]
		if !ok || deg < hintThreshold {
			continue
		}
		level := "warning"
		if deg >= 1 {
			level = "critical"
		}
		v := fuzzy.Round2(deg)
		hints = append(hints, DiagnosticHint{
			Key:    hr.key,
			Level:  level,
			Title:  hr.title,
			Detail: hr.detail,
			Value:  &v,
		})
	}

	if len(hints) == 0 {
		score := ev.Score
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: fmt.Sprintf("No reading is in a problem range. The machine scores %.2f (%s).", score, ev.Status),
			Value:  &score,
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}
