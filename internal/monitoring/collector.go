package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/internal/store"
)

// ProviderStats aggregates one provider's call counters over the lookback
// window.
type ProviderStats struct {
	Successes   int     `json:"successes"`
	Failures    int     `json:"failures"`
	Timeouts    int     `json:"timeouts"`
	FailureRate float64 `json:"failure_rate"`
	CostUSD     float64 `json:"cost_usd"`
}

// MetricsSnapshot holds a point-in-time view of engine health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal     int     `json:"runs_total"`
	RunsDegraded  int     `json:"runs_degraded"`
	DegradedRate  float64 `json:"degraded_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
	AvgAgreement  float64 `json:"avg_agreement"`
	AvgElapsedMS  int64   `json:"avg_elapsed_ms"`
	WindowCostUSD float64 `json:"window_cost_usd"`

	// Spend for the current UTC day, against the daily limit.
	TodayCostUSD float64 `json:"today_cost_usd"`

	// Per-provider counters from the usage ledger.
	Providers map[string]ProviderStats `json:"providers"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the run store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of engine metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		Providers:     map[string]ProviderStats{},
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var totalConfidence, totalAgreement float64
	var totalElapsed int64
	for _, r := range runs {
		if r.PrimaryProvider == model.PrimaryNone {
			snap.RunsDegraded++
		}
		totalConfidence += r.Confidence
		totalAgreement += r.AgreementScore
		totalElapsed += r.ElapsedMS
		snap.WindowCostUSD += r.CostUSD
	}
	if snap.RunsTotal > 0 {
		snap.DegradedRate = float64(snap.RunsDegraded) / float64(snap.RunsTotal)
		snap.AvgConfidence = totalConfidence / float64(snap.RunsTotal)
		snap.AvgAgreement = totalAgreement / float64(snap.RunsTotal)
		snap.AvgElapsedMS = totalElapsed / int64(snap.RunsTotal)
	}

	// Usage rows are keyed by UTC day, so widen the window to whole days.
	usage, err := c.store.ListUsage(ctx, cutoff.Format("2006-01-02"))
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list usage")
	}

	today := now.Format("2006-01-02")
	for _, u := range usage {
		stats := snap.Providers[u.Provider]
		stats.Successes += u.Successes
		stats.Failures += u.Failures
		stats.Timeouts += u.Timeouts
		stats.CostUSD += u.CostUSD
		snap.Providers[u.Provider] = stats

		if u.Day == today {
			snap.TodayCostUSD += u.CostUSD
		}
	}
	for name, stats := range snap.Providers {
		total := stats.Successes + stats.Failures + stats.Timeouts
		if total > 0 {
			stats.FailureRate = float64(stats.Failures+stats.Timeouts) / float64(total)
			snap.Providers[name] = stats
		}
	}

	return snap, nil
}
