package model

// PrimaryNone is the PrimaryProvider value when no provider succeeded.
const PrimaryNone = "none"

// ConsensusResult is the engine's public output for one task. It is built
// once per invocation and returned by value; it holds no reference back
// into the adapters that produced it.
type ConsensusResult struct {
	Extraction      *QuestionConsensus         `json:"extraction,omitempty"`
	Evaluation      *AnswerEvaluation          `json:"evaluation,omitempty"`
	PerProvider     map[string]ProviderOutcome `json:"perProvider"`
	Confidence      float64                    `json:"confidence"`
	AgreementScore  float64                    `json:"agreementScore"`
	PrimaryProvider string                     `json:"primaryProvider"`
}

// Degraded reports whether every provider failed. A degraded result is a
// defined terminal state (empty consensus, zero confidence), not an error.
func (r ConsensusResult) Degraded() bool {
	return r.PrimaryProvider == PrimaryNone
}

// SuccessCount returns the number of providers that contributed a
// normalized result.
func (r ConsensusResult) SuccessCount() int {
	n := 0
	for _, o := range r.PerProvider {
		if o.Succeeded() {
			n++
		}
	}
	return n
}
