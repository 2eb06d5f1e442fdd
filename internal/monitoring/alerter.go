package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/exam-engine/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertDegradedRate    AlertType = "degraded_rate"
	AlertLowConfidence   AlertType = "low_confidence"
	AlertProviderFailure AlertType = "provider_failure"
	AlertCostOverrun     AlertType = "cost_overrun"
)

// Thresholds below this many samples stay quiet so a single bad run does not
// page anyone.
const minSamples = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.RunsTotal >= minSamples && snap.DegradedRate > a.cfg.MaxDegradedRate {
		alerts = append(alerts, Alert{
			Type:     AlertDegradedRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Degraded run rate %.1f%% exceeds threshold %.1f%% (%d degraded / %d runs in last %dh)",
				snap.DegradedRate*100, a.cfg.MaxDegradedRate*100,
				snap.RunsDegraded, snap.RunsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"degraded_rate": snap.DegradedRate,
				"threshold":     a.cfg.MaxDegradedRate,
				"degraded":      snap.RunsDegraded,
				"total":         snap.RunsTotal,
			},
			Timestamp: now,
		})
	}

	if snap.RunsTotal >= minSamples && snap.AvgConfidence < a.cfg.MinAvgConfidence {
		alerts = append(alerts, Alert{
			Type:     AlertLowConfidence,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average consensus confidence %.2f is below floor %.2f over %d runs in last %dh",
				snap.AvgConfidence, a.cfg.MinAvgConfidence,
				snap.RunsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"avg_confidence": snap.AvgConfidence,
				"floor":          a.cfg.MinAvgConfidence,
				"total":          snap.RunsTotal,
			},
			Timestamp: now,
		})
	}

	// Stable provider order keeps webhook payloads diffable.
	providers := make([]string, 0, len(snap.Providers))
	for name := range snap.Providers {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	for _, name := range providers {
		stats := snap.Providers[name]
		total := stats.Successes + stats.Failures + stats.Timeouts
		if total < minSamples || stats.FailureRate <= a.cfg.MaxFailureRate {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertProviderFailure,
			Severity: "high",
			Message: fmt.Sprintf(
				"Provider %s failure rate %.1f%% exceeds threshold %.1f%% (%d failures, %d timeouts / %d calls)",
				name, stats.FailureRate*100, a.cfg.MaxFailureRate*100,
				stats.Failures, stats.Timeouts, total,
			),
			Details: map[string]any{
				"provider":     name,
				"failure_rate": stats.FailureRate,
				"threshold":    a.cfg.MaxFailureRate,
				"calls":        total,
			},
			Timestamp: now,
		})
	}

	if a.cfg.DailyCostLimit > 0 && snap.TodayCostUSD > a.cfg.DailyCostLimit {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"Provider spend $%.2f today exceeds daily limit $%.2f",
				snap.TodayCostUSD, a.cfg.DailyCostLimit,
			),
			Details: map[string]any{
				"cost_usd":  snap.TodayCostUSD,
				"limit_usd": a.cfg.DailyCostLimit,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
