// Package engine orchestrates the provider fan-out: it dispatches one task
// to every available capability-matching provider in parallel, settles each
// reply into an outcome, and hands the outcomes to the consensus layer.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/exam-engine/internal/consensus"
	"github.com/sells-group/exam-engine/internal/cost"
	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/internal/normalize"
	"github.com/sells-group/exam-engine/internal/provider"
	"github.com/sells-group/exam-engine/internal/store"
)

// DefaultDeadline bounds one full fan-out when the caller sets none.
const DefaultDeadline = 90 * time.Second

// Options configures an Engine. Registry and Adapters are required; Store
// and Costs are optional (no persistence / zero cost attribution).
type Options struct {
	Registry   *provider.Registry
	Adapters   map[string]provider.Adapter
	Policy     consensus.Policy
	Deadline   time.Duration
	RateLimits map[string]float64 // requests per second per provider; 0 = unlimited
	Store      store.Store
	Costs      *cost.Calculator
}

// Engine fans tasks out to providers and reconciles their replies. It holds
// no per-task state and is safe for concurrent use.
type Engine struct {
	registry *provider.Registry
	adapters map[string]provider.Adapter
	policy   consensus.Policy
	deadline time.Duration
	limiters map[string]*rate.Limiter
	store    store.Store
	costs    *cost.Calculator
}

// New builds an Engine from the given options.
func New(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, eris.New("engine: registry is required")
	}
	if len(opts.Adapters) == 0 {
		return nil, eris.New("engine: at least one adapter is required")
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}

	limiters := make(map[string]*rate.Limiter, len(opts.RateLimits))
	for name, rps := range opts.RateLimits {
		if rps > 0 {
			limiters[name] = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}

	return &Engine{
		registry: opts.Registry,
		adapters: opts.Adapters,
		policy:   opts.Policy,
		deadline: deadline,
		limiters: limiters,
		store:    opts.Store,
		costs:    opts.Costs,
	}, nil
}

// ExtractConsensus reads questions off one exam page image through every
// available vision provider and merges the replies. All-provider failure is
// not an error: the degraded result carries zero confidence and primary
// provider "none".
func (e *Engine) ExtractConsensus(ctx context.Context, imageBytes []byte, pageNumber int) (model.ConsensusResult, error) {
	if len(imageBytes) == 0 {
		return model.ConsensusResult{}, eris.New("engine: empty page image")
	}
	if mt := mimetype.Detect(imageBytes); !strings.HasPrefix(mt.String(), "image/") {
		return model.ConsensusResult{}, eris.Errorf("engine: page payload is %s, not an image", mt.String())
	}

	descriptors := e.registry.ForKind(model.TaskExtraction)
	if len(descriptors) == 0 {
		return model.ConsensusResult{}, eris.New("engine: no providers configured for extraction")
	}

	task := model.ExtractionTask{ImageBytes: imageBytes, PageNumber: pageNumber}
	started := time.Now()
	outcomes := e.run(ctx, task, descriptors)

	result := model.ConsensusResult{
		Extraction: consensus.MergeExtraction(outcomes, e.policy),
	}
	e.finish(ctx, &result, model.TaskExtraction, outcomes, descriptors, runMeta{
		pageNumber: pageNumber,
		started:    started,
	})
	return result, nil
}

// EvaluateConsensus grades one student answer through every available text
// provider and merges the replies.
func (e *Engine) EvaluateConsensus(ctx context.Context, task model.EvaluationTask) (model.ConsensusResult, error) {
	if task.MaxMarks <= 0 {
		return model.ConsensusResult{}, eris.Errorf("engine: max marks must be positive, got %v", task.MaxMarks)
	}

	descriptors := e.registry.ForKind(model.TaskEvaluation)
	if len(descriptors) == 0 {
		return model.ConsensusResult{}, eris.New("engine: no providers configured for evaluation")
	}

	started := time.Now()
	outcomes := e.run(ctx, task, descriptors)

	result := model.ConsensusResult{
		Evaluation: consensus.MergeEvaluation(outcomes, e.policy),
	}
	e.finish(ctx, &result, model.TaskEvaluation, outcomes, descriptors, runMeta{
		subject: task.Subject,
		started: started,
	})
	return result, nil
}

// run dispatches one goroutine per descriptor and collects settled outcomes.
// When the fan-out deadline expires, every still-pending provider is
// recorded as a timeout outcome and run returns without waiting further.
// Outcome order is unspecified.
func (e *Engine) run(ctx context.Context, task model.TaskRequest, descriptors []provider.Descriptor) []model.ProviderOutcome {
	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	// Buffered so abandoned workers can still settle and exit.
	results := make(chan model.ProviderOutcome, len(descriptors))
	for _, d := range descriptors {
		go e.invoke(ctx, task, d, results)
	}

	pending := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		pending[d.Name] = true
	}

	outcomes := make([]model.ProviderOutcome, 0, len(descriptors))
	for range descriptors {
		select {
		case o := <-results:
			delete(pending, o.Provider)
			outcomes = append(outcomes, o)
		case <-ctx.Done():
			for name := range pending {
				outcomes = append(outcomes, model.ProviderOutcome{
					Provider:  name,
					Failure:   &model.Failure{Kind: model.FailureTimeout, Message: "task deadline exceeded"},
					ElapsedMS: e.deadline.Milliseconds(),
				})
			}
			return outcomes
		}
	}
	return outcomes
}

// invoke runs one provider end to end: rate limit, adapter call, and
// normalization. Every path settles exactly one outcome on out.
func (e *Engine) invoke(ctx context.Context, task model.TaskRequest, d provider.Descriptor, out chan<- model.ProviderOutcome) {
	started := time.Now()
	outcome := model.ProviderOutcome{Provider: d.Name}

	defer func() {
		outcome.ElapsedMS = time.Since(started).Milliseconds()
		logOutcome(d, task.Kind(), outcome)
		out <- outcome
	}()

	if lim := e.limiters[d.Name]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			outcome.Failure = &model.Failure{Kind: model.FailureTimeout, Message: "rate limiter wait cut short by deadline"}
			return
		}
	}

	adapter := e.adapters[d.Name]
	if adapter == nil {
		outcome.Failure = &model.Failure{Kind: model.FailureNetwork, Message: "no adapter registered for provider"}
		return
	}

	raw, err := adapter.Invoke(ctx, task, d)
	if err != nil {
		ae := provider.AsAdapterError(err)
		outcome.Failure = &model.Failure{Kind: ae.Kind, Message: ae.Message}
		return
	}
	outcome.Usage = raw.Usage

	switch task.Kind() {
	case model.TaskExtraction:
		set, err := normalize.Extraction(raw.Body)
		if err != nil {
			outcome.Failure = &model.Failure{Kind: model.FailureParse, Message: err.Error()}
			return
		}
		outcome.Extraction = set
	case model.TaskEvaluation:
		ev, err := normalize.Evaluation(raw.Body)
		if err != nil {
			outcome.Failure = &model.Failure{Kind: model.FailureParse, Message: err.Error()}
			return
		}
		outcome.Evaluation = ev
	}
}

type runMeta struct {
	subject    string
	pageNumber int
	started    time.Time
}

// finish scores the outcomes, fills the shared result fields, and records
// the run. Persistence is best-effort audit: failures are logged, never
// surfaced to the caller.
func (e *Engine) finish(ctx context.Context, result *model.ConsensusResult, kind model.TaskKind, outcomes []model.ProviderOutcome, descriptors []provider.Descriptor, meta runMeta) {
	scores := consensus.Score(kind, len(descriptors), outcomes, e.policy)
	result.Confidence = scores.Confidence
	result.AgreementScore = scores.AgreementScore
	result.PrimaryProvider = scores.PrimaryProvider

	result.PerProvider = make(map[string]model.ProviderOutcome, len(outcomes))
	for _, o := range outcomes {
		result.PerProvider[o.Provider] = o
	}

	models := make(map[string]string, len(descriptors))
	for _, d := range descriptors {
		models[d.Name] = d.Model
	}

	var usage model.TokenUsage
	var costUSD float64
	for _, o := range outcomes {
		usage.Add(o.Usage)
		if e.costs != nil {
			costUSD += e.costs.Completion(o.Provider, models[o.Provider], o.Usage)
		}
	}

	elapsed := time.Since(meta.started)
	zap.L().Info("engine: task settled",
		zap.String("kind", string(kind)),
		zap.Int("providers", len(descriptors)),
		zap.Int("succeeded", result.SuccessCount()),
		zap.Float64("confidence", result.Confidence),
		zap.Float64("agreement", result.AgreementScore),
		zap.String("primary", result.PrimaryProvider),
		zap.Int64("tokens", usage.Total()),
		zap.Duration("elapsed", elapsed),
	)

	if e.store == nil {
		return
	}

	run := &model.ConsensusRun{
		ID:              uuid.New().String(),
		Kind:            kind,
		Subject:         meta.subject,
		PageNumber:      meta.pageNumber,
		Confidence:      result.Confidence,
		AgreementScore:  result.AgreementScore,
		PrimaryProvider: result.PrimaryProvider,
		Result:          result,
		Usage:           usage,
		CostUSD:         costUSD,
		ElapsedMS:       elapsed.Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	}
	if err := e.store.SaveRun(ctx, run); err != nil {
		zap.L().Warn("engine: save run failed", zap.Error(err))
	}

	day := time.Now().UTC().Format("2006-01-02")
	for _, o := range outcomes {
		u := model.ProviderUsage{
			Provider: o.Provider,
			Day:      day,
			Tokens:   o.Usage.Total(),
		}
		switch {
		case o.Succeeded():
			u.Successes = 1
		case o.TimedOut():
			u.Timeouts = 1
		default:
			u.Failures = 1
		}
		if e.costs != nil {
			u.CostUSD = e.costs.Completion(o.Provider, models[o.Provider], o.Usage)
		}
		if err := e.store.IncrementUsage(ctx, u); err != nil {
			zap.L().Warn("engine: increment usage failed", zap.String("provider", o.Provider), zap.Error(err))
		}
	}
}

func logOutcome(d provider.Descriptor, kind model.TaskKind, o model.ProviderOutcome) {
	fields := []zap.Field{
		zap.String("provider", d.Name),
		zap.String("model", d.Model),
		zap.String("kind", string(kind)),
		zap.Int64("elapsed_ms", o.ElapsedMS),
		zap.Int64("tokens", o.Usage.Total()),
	}
	if o.Failure != nil {
		fields = append(fields, zap.String("failure", string(o.Failure.Kind)), zap.String("reason", o.Failure.Message))
		zap.L().Warn("engine: provider failed", fields...)
		return
	}
	zap.L().Debug("engine: provider settled", fields...)
}
