package model

// Question is one exam question as reported by a single provider.
// Confidence is provider-reported and normalized into [0,1] before the
// question enters consensus.
type Question struct {
	Number            int      `json:"questionNumber"`
	Text              string   `json:"questionText"`
	Options           []string `json:"options,omitempty"`
	Subject           string   `json:"subject"`
	Topic             string   `json:"topic"`
	Difficulty        string   `json:"difficulty"`
	QuestionType      string   `json:"questionType"`
	Language          string   `json:"language"`
	Confidence        float64  `json:"confidence"`
	HasVisualElements bool     `json:"hasVisualElements"`
}

// ExtractedQuestionSet is the canonical extraction result from one
// provider: an ordered list of questions found on a page.
type ExtractedQuestionSet struct {
	Questions []Question `json:"questions"`
}

// Agreement levels attached to merged question groups.
const (
	AgreementHigh   = "high"
	AgreementSingle = "single"
)

// MergedQuestion is one consensus question group: the representative
// question plus the providers that proposed a member of the group.
type MergedQuestion struct {
	Question
	SourceProviders []string `json:"sourceProviders"`
	AgreementLevel  string   `json:"agreementLevel"`
}

// QuestionConsensus is the merged extraction payload of a ConsensusResult.
type QuestionConsensus struct {
	Questions []MergedQuestion `json:"questions"`
}
