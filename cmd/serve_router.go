package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/internal/monitoring"
	"github.com/sells-group/exam-engine/internal/report"
	"github.com/sells-group/exam-engine/internal/store"
)

// consensusRunner is the slice of the engine the HTTP surface needs.
type consensusRunner interface {
	ExtractConsensus(ctx context.Context, imageBytes []byte, pageNumber int) (model.ConsensusResult, error)
	EvaluateConsensus(ctx context.Context, task model.EvaluationTask) (model.ConsensusResult, error)
}

type server struct {
	runner    consensusRunner
	store     store.Store
	collector *monitoring.Collector
	lookback  int
}

func newRouter(s *server, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/evaluate", s.handleEvaluate)
		r.Get("/runs", s.handleRuns)
		r.Get("/usage", s.handleUsage)
		r.Get("/metrics", s.handleMetrics)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("serve: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("serve: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageBase64 string `json:"imageBase64"`
		PageNumber  int    `json:"pageNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ImageBase64 == "" {
		writeError(w, http.StatusBadRequest, "imageBase64 is required")
		return
	}
	imageBytes, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "imageBase64 is not valid base64")
		return
	}
	page := req.PageNumber
	if page <= 0 {
		page = 1
	}

	result, err := s.runner.ExtractConsensus(r.Context(), imageBytes, page)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var task model.EvaluationTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if task.QuestionText == "" || task.StudentAnswerText == "" {
		writeError(w, http.StatusBadRequest, "questionText and studentAnswerText are required")
		return
	}
	if task.MaxMarks <= 0 {
		writeError(w, http.StatusBadRequest, "maxMarks must be positive")
		return
	}

	result, err := s.runner.EvaluateConsensus(r.Context(), task)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	needsReview := result.Degraded()
	if ev := result.Evaluation; ev != nil {
		needsReview = report.NeedsReview(result.Confidence, ev.AwardedMarks, task.MaxMarks)
	}

	out := struct {
		model.ConsensusResult
		NeedsReview bool `json:"needsReview"`
	}{result, needsReview}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Kind:         model.TaskKind(q.Get("kind")),
		DegradedOnly: q.Get("degraded") == "true",
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		filter.Offset = n
	}
	if v := q.Get("since_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since_hours must be an integer")
			return
		}
		filter.CreatedAfter = time.Now().UTC().Add(-time.Duration(n) * time.Hour)
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.ConsensusRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.store.ListUsage(r.Context(), r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list usage failed")
		return
	}
	if usage == nil {
		usage = []model.ProviderUsage{}
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context(), s.lookback)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "collect metrics failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
