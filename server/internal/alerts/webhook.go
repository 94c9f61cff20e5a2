package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lmittmann/tint"
)

// renderer builds the request body for one webhook flavour.
type renderer func(a *Alert) ([]byte, error)

var renderers = map[string]renderer{
	"slack": slackBody,
	"teams": teamsBody,
	"http":  genericBody,
}

// deliver posts a to every configured webhook. Failures are logged only.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		render, ok := renderers[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		log := slog.With("type", wh.Type, "rule", a.RuleName, "machine", a.MachineName, "state", a.State)
		body, err := render(a)
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			log.Error("alerts: webhook delivery failed", tint.Err(err))
			continue
		}
		log.Debug("alerts: webhook delivered")
	}
}

// headline is the one-line summary shared by the chat formats, e.g.
// "[WARNING] press-1: error_margin > 10 (value 15.00)".
func headline(a *Alert) string {
	var b strings.Builder
	b.WriteString(severityLabel(a.Severity))
	if a.State == StateResolved {
		b.WriteString(" [RESOLVED]")
	}
	fmt.Fprintf(&b, " %s", a.Message)
	return b.String()
}

func slackBody(a *Alert) ([]byte, error) {
	return json.Marshal(map[string]string{"text": headline(a)})
}

func teamsBody(a *Alert) ([]byte, error) {
	facts := []map[string]string{
		{"name": "Machine", "value": fmt.Sprintf("%s (#%d)", a.MachineName, a.MachineID)},
		{"name": "Value", "value": fmt.Sprintf("%.2f", a.Value)},
		{"name": "State", "value": a.State},
	}
	return json.Marshal(map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity, a.State),
		"summary":    a.RuleName,
		"title":      "Machine efficiency alert: " + a.RuleName,
		"text":       headline(a),
		"sections":   []map[string]any{{"facts": facts}},
	})
}

func genericBody(a *Alert) ([]byte, error) {
	return json.Marshal(map[string]any{"alert": a})
}

func (e *Engine) post(url string, body []byte) error {
	resp, err := e.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical", "warning":
		return "[" + strings.ToUpper(s) + "]"
	}
	return "[INFO]"
}

// severityColor picks the Teams card accent. Resolved alerts are always green.
func severityColor(severity, state string) string {
	if state == StateResolved {
		return "2EB67D"
	}
	switch severity {
	case "critical":
		return "E01E5A"
	case "warning":
		return "ECB22E"
	}
	return "36C5F0"
}
