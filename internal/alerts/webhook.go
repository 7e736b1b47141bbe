package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// deliver sends webhook notifications for a to all configured targets.
// Errors are logged but do not affect the caller.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = e.sendSlack(url, a)
		case "teams":
			err = e.sendTeams(url, a)
		case "pagerduty", "http":
			err = e.sendHTTP(url, a)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"err", err,
			)
		} else {
			slog.Debug("alerts: webhook delivered",
				"type", wh.Type,
				"rule", a.RuleName,
				"state", a.State,
			)
		}
	}
}

// sendSlack posts an attachment whose fields spell out the snapshot that
// tripped the rule, so the channel message is readable without the API.
func (e *Engine) sendSlack(url string, a *Alert) error {
	payload := map[string]interface{}{
		"text": fmt.Sprintf("%s %s %s", severityLabel(a.Severity), a.RuleName, a.State),
		"attachments": []map[string]interface{}{{
			"color": "#" + severityColor(a.Severity),
			"text":  a.Message,
			"fields": []map[string]interface{}{
				{"title": "Health score", "value": fmt.Sprintf("%d (%s)", a.Score, a.Category), "short": true},
				{"title": "Latency", "value": fmt.Sprintf("%.1f ms", a.LatencyMs), "short": true},
				{"title": "Packet loss", "value": fmt.Sprintf("%.1f%%", a.PacketLossPct), "short": true},
				{"title": "Observed value", "value": fmt.Sprintf("%.2f", a.Value), "short": true},
			},
		}},
	}
	body, _ := json.Marshal(payload)
	return e.post(url, body)
}

// sendTeams posts a MessageCard with the snapshot context as facts.
func (e *Engine) sendTeams(url string, a *Alert) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity),
		"summary":    fmt.Sprintf("%s %s", a.RuleName, a.State),
		"title":      fmt.Sprintf("Network health alert %s: %s", a.State, a.RuleName),
		"text":       a.Message,
		"sections": []map[string]interface{}{{
			"facts": []map[string]string{
				{"name": "Severity", "value": a.Severity},
				{"name": "Health score", "value": fmt.Sprintf("%d (%s)", a.Score, a.Category)},
				{"name": "Latency", "value": fmt.Sprintf("%.1f ms", a.LatencyMs)},
				{"name": "Packet loss", "value": fmt.Sprintf("%.1f%%", a.PacketLossPct)},
				{"name": "Observed value", "value": fmt.Sprintf("%.2f", a.Value)},
			},
		}},
	}
	body, _ := json.Marshal(payload)
	return e.post(url, body)
}

// sendHTTP posts the alert as-is for generic receivers; the snapshot context
// rides along inside the alert object itself.
func (e *Engine) sendHTTP(url string, a *Alert) error {
	body, _ := json.Marshal(map[string]interface{}{
		"source": "netsentry",
		"event":  fmt.Sprintf("alert.%s", a.State),
		"alert":  a,
	})
	return e.post(url, body)
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

// severityColor maps a severity to the card accent color.
func severityColor(s string) string {
	switch s {
	case "critical":
		return "D93025"
	case "warning":
		return "F9AB00"
	default:
		return "1A73E8"
	}
}
