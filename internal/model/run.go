package model

import "time"

// ConsensusRun is the persisted audit record of one engine invocation.
type ConsensusRun struct {
	ID              string           `json:"id"`
	Kind            TaskKind         `json:"kind"`
	Subject         string           `json:"subject,omitempty"`
	PageNumber      int              `json:"pageNumber,omitempty"`
	Confidence      float64          `json:"confidence"`
	AgreementScore  float64          `json:"agreementScore"`
	PrimaryProvider string           `json:"primaryProvider"`
	Result          *ConsensusResult `json:"result,omitempty"`
	Usage           TokenUsage       `json:"usage"`
	CostUSD         float64          `json:"costUsd"`
	ElapsedMS       int64            `json:"elapsedMs"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// ProviderUsage aggregates one provider's call counters for one day.
type ProviderUsage struct {
	Provider  string  `json:"provider"`
	Day       string  `json:"day"` // YYYY-MM-DD (UTC)
	Successes int     `json:"successes"`
	Failures  int     `json:"failures"`
	Timeouts  int     `json:"timeouts"`
	Tokens    int64   `json:"tokens"`
	CostUSD   float64 `json:"costUsd"`
}

// MarkRecord is one graded answer row produced by a batch run. Records are
// keyed (BatchID, StudentID, Question) so re-running a batch updates marks
// in place.
type MarkRecord struct {
	BatchID     string    `json:"batchId"`
	StudentID   string    `json:"studentId"`
	Subject     string    `json:"subject"`
	Question    string    `json:"question"`
	MaxMarks    float64   `json:"maxMarks"`
	Awarded     float64   `json:"awarded"`
	Percentage  float64   `json:"percentage"`
	Grade       string    `json:"grade"`
	Confidence  float64   `json:"confidence"`
	Agreement   float64   `json:"agreement"`
	NeedsReview bool      `json:"needsReview"`
	CreatedAt   time.Time `json:"createdAt"`
}
