package monitoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "monitoring.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))
	return st
}

func saveRun(t *testing.T, st store.Store, id, primary string, confidence, cost float64, age time.Duration) {
	t.Helper()
	run := model.ConsensusRun{
		ID:              id,
		Kind:            model.TaskEvaluation,
		Subject:         "Biology",
		Confidence:      confidence,
		AgreementScore:  confidence,
		PrimaryProvider: primary,
		CostUSD:         cost,
		ElapsedMS:       1200,
		CreatedAt:       time.Now().UTC().Add(-age),
	}
	require.NoError(t, st.SaveRun(context.Background(), &run))
}

func TestCollect_RunMetrics(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	saveRun(t, st, "r1", "anthropic", 0.9, 0.02, time.Hour)
	saveRun(t, st, "r2", "openai", 0.7, 0.01, 2*time.Hour)
	saveRun(t, st, "r3", model.PrimaryNone, 0.0, 0.0, 3*time.Hour)
	// Outside the 24h window, must not count.
	saveRun(t, st, "r4", model.PrimaryNone, 0.0, 0.0, 48*time.Hour)

	snap, err := NewCollector(st).Collect(ctx, 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsDegraded)
	assert.InDelta(t, 1.0/3.0, snap.DegradedRate, 0.001)
	assert.InDelta(t, (0.9+0.7)/3.0, snap.AvgConfidence, 0.001)
	assert.InDelta(t, 0.03, snap.WindowCostUSD, 0.0001)
	assert.Equal(t, int64(1200), snap.AvgElapsedMS)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollect_ProviderStats(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	today := time.Now().UTC().Format("2006-01-02")
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")

	require.NoError(t, st.IncrementUsage(ctx, model.ProviderUsage{
		Provider: "anthropic", Day: today, Successes: 8, CostUSD: 0.40,
	}))
	require.NoError(t, st.IncrementUsage(ctx, model.ProviderUsage{
		Provider: "anthropic", Day: yesterday, Successes: 2, Failures: 1, CostUSD: 0.10,
	}))
	require.NoError(t, st.IncrementUsage(ctx, model.ProviderUsage{
		Provider: "gemini", Day: today, Successes: 2, Failures: 3, Timeouts: 1, CostUSD: 0.05,
	}))

	snap, err := NewCollector(st).Collect(ctx, 48)
	require.NoError(t, err)

	anthropic := snap.Providers["anthropic"]
	assert.Equal(t, 10, anthropic.Successes)
	assert.Equal(t, 1, anthropic.Failures)
	assert.InDelta(t, 1.0/11.0, anthropic.FailureRate, 0.001)
	assert.InDelta(t, 0.50, anthropic.CostUSD, 0.0001)

	gemini := snap.Providers["gemini"]
	assert.Equal(t, 1, gemini.Timeouts)
	assert.InDelta(t, 4.0/6.0, gemini.FailureRate, 0.001)

	// Only today's rows count against the daily limit.
	assert.InDelta(t, 0.45, snap.TodayCostUSD, 0.0001)
}

func TestCollect_EmptyStore(t *testing.T) {
	st := newTestStore(t)

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.DegradedRate)
	assert.Zero(t, snap.AvgConfidence)
	assert.Empty(t, snap.Providers)
}
