package model

// AnswerEvaluation is the canonical grading result. It is produced
// per-provider by the normalizer and reused as the merged consensus shape.
type AnswerEvaluation struct {
	AwardedMarks    float64     `json:"awardedMarks"`
	TotalMarks      float64     `json:"totalMarks"`
	Percentage      float64     `json:"percentage"`
	Grade           string      `json:"grade"`
	Confidence      float64     `json:"confidence"`
	Strengths       []string    `json:"strengths"`
	Weaknesses      []string    `json:"weaknesses"`
	MissingPoints   []string    `json:"missingPoints"`
	IncorrectPoints []string    `json:"incorrectPoints"`
	Suggestions     Suggestions `json:"suggestions"`
}

// Suggestions groups improvement advice by horizon.
type Suggestions struct {
	Immediate []string `json:"immediate"`
	LongTerm  []string `json:"longTerm"`
	Resources []string `json:"resources"`
}
