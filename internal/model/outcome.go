package model

import "fmt"

// FailureKind classifies why a provider contributed nothing to consensus.
type FailureKind string

const (
	FailureNetwork     FailureKind = "network"
	FailureAuth        FailureKind = "auth"
	FailureRateLimited FailureKind = "rate_limited"
	FailureTimeout     FailureKind = "timeout"
	FailureParse       FailureKind = "parse"
)

// AdapterError is the typed failure returned by provider adapters. It is
// recoverable at the engine level: the provider is excluded from consensus
// and the task continues.
type AdapterError struct {
	Kind    FailureKind
	Message string
}

// Error implements error.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Failure records a failed provider contribution on an outcome.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// ProviderOutcome is the settled result of one adapter invocation after
// normalization. Exactly one of Extraction, Evaluation, or Failure is set.
// Outcomes are created once per fan-out and never mutated.
type ProviderOutcome struct {
	Provider   string                `json:"provider"`
	Extraction *ExtractedQuestionSet `json:"extraction,omitempty"`
	Evaluation *AnswerEvaluation     `json:"evaluation,omitempty"`
	Failure    *Failure              `json:"failure,omitempty"`
	ElapsedMS  int64                 `json:"elapsedMs"`
	Usage      TokenUsage            `json:"usage"`
}

// Succeeded reports whether the outcome carries a normalized result.
func (o ProviderOutcome) Succeeded() bool {
	return o.Failure == nil && (o.Extraction != nil || o.Evaluation != nil)
}

// TimedOut reports whether the provider was cut off by the task deadline.
func (o ProviderOutcome) TimedOut() bool {
	return o.Failure != nil && o.Failure.Kind == FailureTimeout
}
