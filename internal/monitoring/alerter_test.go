package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/exam-engine/internal/config"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		IntervalMinutes:  5,
		LookbackHours:    24,
		MaxDegradedRate:  0.2,
		MinAvgConfidence: 0.5,
		MaxFailureRate:   0.5,
		DailyCostLimit:   50,
	}
}

func healthySnapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		RunsTotal:     20,
		RunsDegraded:  1,
		DegradedRate:  0.05,
		AvgConfidence: 0.85,
		TodayCostUSD:  1.50,
		Providers: map[string]ProviderStats{
			"anthropic": {Successes: 20},
		},
		LookbackHours: 24,
		CollectedAt:   time.Now().UTC(),
	}
}

func TestEvaluate_HealthySnapshot(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	assert.Empty(t, a.Evaluate(healthySnapshot()))
}

func TestEvaluate_DegradedRate(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	snap := healthySnapshot()
	snap.RunsDegraded = 6
	snap.DegradedRate = 0.3

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDegradedRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "30.0%")
}

func TestEvaluate_DegradedRateNeedsSamples(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	// One degraded run out of two is above threshold but under the sample
	// floor, so it stays quiet.
	snap := healthySnapshot()
	snap.RunsTotal = 2
	snap.RunsDegraded = 1
	snap.DegradedRate = 0.5

	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluate_LowConfidence(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	snap := healthySnapshot()
	snap.AvgConfidence = 0.4

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLowConfidence, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
}

func TestEvaluate_ProviderFailureRate(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	snap := healthySnapshot()
	snap.Providers["gemini"] = ProviderStats{
		Successes: 2, Failures: 5, Timeouts: 1, FailureRate: 0.75,
	}
	// Under the sample floor, must not alert.
	snap.Providers["openai"] = ProviderStats{
		Failures: 2, FailureRate: 1.0,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertProviderFailure, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "gemini")
	assert.Equal(t, "gemini", alerts[0].Details["provider"])
}

func TestEvaluate_CostOverrun(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	snap := healthySnapshot()
	snap.TodayCostUSD = 62.10

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCostOverrun, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "$62.10")
}

func TestEvaluate_CostLimitDisabled(t *testing.T) {
	cfg := testMonitoringConfig()
	cfg.DailyCostLimit = 0
	a := NewAlerter(cfg)

	snap := healthySnapshot()
	snap.TodayCostUSD = 9999

	assert.Empty(t, a.Evaluate(snap))
}

func TestSendAlerts_PostsToWebhook(t *testing.T) {
	var mu sync.Mutex
	var received []Alert

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		mu.Lock()
		received = append(received, alert)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	alerts := []Alert{
		{Type: AlertDegradedRate, Severity: "high", Message: "degraded", Timestamp: time.Now().UTC()},
		{Type: AlertCostOverrun, Severity: "high", Message: "cost", Timestamp: time.Now().UTC()},
	}
	sent := a.SendAlerts(context.Background(), alerts)

	assert.Equal(t, 2, sent)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, AlertDegradedRate, received[0].Type)
}

func TestSendAlerts_WebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertDegradedRate}})
	assert.Zero(t, sent)
}

func TestSendAlerts_NoWebhookConfigured(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertDegradedRate}})
	assert.Zero(t, sent)
}
