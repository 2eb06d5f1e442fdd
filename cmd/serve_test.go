package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/internal/monitoring"
	"github.com/sells-group/exam-engine/internal/store"
)

type fakeRunner struct {
	extractFn  func(ctx context.Context, imageBytes []byte, pageNumber int) (model.ConsensusResult, error)
	evaluateFn func(ctx context.Context, task model.EvaluationTask) (model.ConsensusResult, error)
}

func (f *fakeRunner) ExtractConsensus(ctx context.Context, imageBytes []byte, pageNumber int) (model.ConsensusResult, error) {
	return f.extractFn(ctx, imageBytes, pageNumber)
}

func (f *fakeRunner) EvaluateConsensus(ctx context.Context, task model.EvaluationTask) (model.ConsensusResult, error) {
	return f.evaluateFn(ctx, task)
}

func newTestServer(t *testing.T, runner consensusRunner) (*httptest.Server, store.Store) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "serve.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	srv := &server{
		runner:    runner,
		store:     st,
		collector: monitoring.NewCollector(st),
		lookback:  24,
	}
	ts := httptest.NewServer(newRouter(srv, []string{"*"}))
	t.Cleanup(ts.Close)
	return ts, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServeHealth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeRunner{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestServeEvaluate(t *testing.T) {
	runner := &fakeRunner{
		evaluateFn: func(ctx context.Context, task model.EvaluationTask) (model.ConsensusResult, error) {
			return model.ConsensusResult{
				Evaluation:      &model.AnswerEvaluation{AwardedMarks: 4, Percentage: 80, Grade: "B+"},
				Confidence:      0.9,
				AgreementScore:  1.0,
				PrimaryProvider: "anthropic",
			}, nil
		},
	}
	ts, _ := newTestServer(t, runner)

	resp := postJSON(t, ts.URL+"/v1/evaluate", model.EvaluationTask{
		QuestionText:      "Define osmosis",
		StudentAnswerText: "Water moves through a membrane",
		Subject:           "Biology",
		MaxMarks:          5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "anthropic", body["primaryProvider"])
	assert.Equal(t, false, body["needsReview"])
}

func TestServeEvaluate_FlagsLowMarksForReview(t *testing.T) {
	runner := &fakeRunner{
		evaluateFn: func(ctx context.Context, task model.EvaluationTask) (model.ConsensusResult, error) {
			return model.ConsensusResult{
				Evaluation:      &model.AnswerEvaluation{AwardedMarks: 1, Percentage: 20, Grade: "F"},
				Confidence:      0.9,
				PrimaryProvider: "anthropic",
			}, nil
		},
	}
	ts, _ := newTestServer(t, runner)

	resp := postJSON(t, ts.URL+"/v1/evaluate", model.EvaluationTask{
		QuestionText:      "q",
		StudentAnswerText: "a",
		MaxMarks:          5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, true, body["needsReview"])
}

func TestServeEvaluate_Validation(t *testing.T) {
	ts, _ := newTestServer(t, &fakeRunner{})

	tests := []struct {
		name string
		body any
	}{
		{"missing question", model.EvaluationTask{StudentAnswerText: "a", MaxMarks: 5}},
		{"missing answer", model.EvaluationTask{QuestionText: "q", MaxMarks: 5}},
		{"zero max marks", model.EvaluationTask{QuestionText: "q", StudentAnswerText: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/v1/evaluate", tt.body)
			defer resp.Body.Close() //nolint:errcheck
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestServeEvaluate_BadBody(t *testing.T) {
	ts, _ := newTestServer(t, &fakeRunner{})

	resp, err := http.Post(ts.URL+"/v1/evaluate", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeEvaluate_EngineError(t *testing.T) {
	runner := &fakeRunner{
		evaluateFn: func(ctx context.Context, task model.EvaluationTask) (model.ConsensusResult, error) {
			return model.ConsensusResult{}, assert.AnError
		},
	}
	ts, _ := newTestServer(t, runner)

	resp := postJSON(t, ts.URL+"/v1/evaluate", model.EvaluationTask{
		QuestionText: "q", StudentAnswerText: "a", MaxMarks: 5,
	})
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestServeExtract(t *testing.T) {
	runner := &fakeRunner{
		extractFn: func(ctx context.Context, imageBytes []byte, pageNumber int) (model.ConsensusResult, error) {
			assert.Equal(t, []byte("image-bytes"), imageBytes)
			assert.Equal(t, 3, pageNumber)
			return model.ConsensusResult{
				Extraction:      &model.QuestionConsensus{Questions: []model.MergedQuestion{}},
				Confidence:      0.8,
				PrimaryProvider: "gemini",
			}, nil
		},
	}
	ts, _ := newTestServer(t, runner)

	resp := postJSON(t, ts.URL+"/v1/extract", map[string]any{
		"imageBase64": base64.StdEncoding.EncodeToString([]byte("image-bytes")),
		"pageNumber":  3,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "gemini", body["primaryProvider"])
}

func TestServeExtract_Validation(t *testing.T) {
	ts, _ := newTestServer(t, &fakeRunner{})

	resp := postJSON(t, ts.URL+"/v1/extract", map[string]any{"pageNumber": 1})
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/v1/extract", map[string]any{"imageBase64": "!!not-base64!!"})
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeRuns(t *testing.T) {
	ts, st := newTestServer(t, &fakeRunner{})
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, &model.ConsensusRun{
		ID: "r1", Kind: model.TaskEvaluation, Confidence: 0.9,
		PrimaryProvider: "anthropic", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.SaveRun(ctx, &model.ConsensusRun{
		ID: "r2", Kind: model.TaskEvaluation,
		PrimaryProvider: model.PrimaryNone, CreatedAt: time.Now().UTC(),
	}))

	resp, err := http.Get(ts.URL + "/v1/runs")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs := decodeBody[[]model.ConsensusRun](t, resp)
	assert.Len(t, runs, 2)

	resp, err = http.Get(ts.URL + "/v1/runs?degraded=true")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs = decodeBody[[]model.ConsensusRun](t, resp)
	require.Len(t, runs, 1)
	assert.Equal(t, "r2", runs[0].ID)

	resp, err = http.Get(ts.URL + "/v1/runs?limit=abc")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeUsage(t *testing.T) {
	ts, st := newTestServer(t, &fakeRunner{})
	ctx := context.Background()

	today := time.Now().UTC().Format("2006-01-02")
	require.NoError(t, st.IncrementUsage(ctx, model.ProviderUsage{
		Provider: "openai", Day: today, Successes: 3, CostUSD: 0.12,
	}))

	resp, err := http.Get(ts.URL + "/v1/usage?since=" + today)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	usage := decodeBody[[]model.ProviderUsage](t, resp)
	require.Len(t, usage, 1)
	assert.Equal(t, "openai", usage[0].Provider)
	assert.Equal(t, 3, usage[0].Successes)
}

func TestServeMetrics(t *testing.T) {
	ts, st := newTestServer(t, &fakeRunner{})
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, &model.ConsensusRun{
		ID: "r1", Kind: model.TaskEvaluation, Confidence: 0.8,
		PrimaryProvider: "anthropic", CreatedAt: time.Now().UTC(),
	}))

	resp, err := http.Get(ts.URL + "/v1/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap := decodeBody[monitoring.MetricsSnapshot](t, resp)
	assert.Equal(t, 1, snap.RunsTotal)
	assert.Equal(t, 24, snap.LookbackHours)
}
