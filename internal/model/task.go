// Package model defines the canonical data shapes shared across the engine:
// tasks, per-provider results, outcomes, and the consensus output.
package model

// TaskKind discriminates the two kinds of work the engine accepts.
type TaskKind string

const (
	TaskExtraction TaskKind = "extraction"
	TaskEvaluation TaskKind = "evaluation"
)

// TaskRequest is the unit of work submitted to the engine. Implementations
// are value types owned by the caller and never mutated after submission.
type TaskRequest interface {
	Kind() TaskKind
}

// ExtractionTask asks the vision providers to read questions off one exam
// page image.
type ExtractionTask struct {
	ImageBytes []byte
	PageNumber int
}

// Kind implements TaskRequest.
func (ExtractionTask) Kind() TaskKind { return TaskExtraction }

// EvaluationTask asks the text providers to grade one student answer.
type EvaluationTask struct {
	QuestionText      string  `json:"questionText"`
	StudentAnswerText string  `json:"studentAnswerText"`
	ModelAnswer       string  `json:"modelAnswer,omitempty"`
	Subject           string  `json:"subject"`
	MaxMarks          float64 `json:"maxMarks"`
}

// Kind implements TaskRequest.
func (EvaluationTask) Kind() TaskKind { return TaskEvaluation }

// RawResponse is one provider's reply before normalization.
type RawResponse struct {
	Provider string
	Model    string
	Body     string
	Usage    TokenUsage
}

// TokenUsage tracks token consumption for cost attribution.
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
}

// Add accumulates usage from another call into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns combined input and output tokens.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}
