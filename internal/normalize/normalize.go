package normalize

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/exam-engine/internal/model"
)

// Defaults for optional question labels the providers frequently omit.
const (
	defaultSubject      = "General"
	defaultTopic        = "general"
	defaultDifficulty   = "medium"
	defaultQuestionType = "descriptive"
	defaultLanguage     = "English"
)

type questionWire struct {
	QuestionNumber    float64  `json:"questionNumber"`
	QuestionText      string   `json:"questionText"`
	Options           []string `json:"options"`
	Subject           string   `json:"subject"`
	Topic             string   `json:"topic"`
	Difficulty        string   `json:"difficulty"`
	QuestionType      string   `json:"questionType"`
	Language          string   `json:"language"`
	Confidence        *float64 `json:"confidence"`
	HasVisualElements bool     `json:"hasVisualElements"`
}

type extractionWire struct {
	Questions []questionWire `json:"questions"`
}

type evaluationWire struct {
	Evaluation struct {
		TotalMarks   float64  `json:"totalMarks"`
		AwardedMarks float64  `json:"awardedMarks"`
		Percentage   *float64 `json:"percentage"`
		Grade        string   `json:"grade"`
		Confidence   *float64 `json:"confidence"`
	} `json:"evaluation"`
	Analysis struct {
		Strengths       []string `json:"strengths"`
		Weaknesses      []string `json:"weaknesses"`
		MissingPoints   []string `json:"missingPoints"`
		IncorrectPoints []string `json:"incorrectPoints"`
	} `json:"analysis"`
	Suggestions struct {
		Immediate []string `json:"immediate"`
		LongTerm  []string `json:"longTerm"`
		Resources []string `json:"resources"`
	} `json:"suggestions"`
}

// Extraction decodes a raw extraction reply into the canonical question set.
func Extraction(body string) (*model.ExtractedQuestionSet, error) {
	doc, err := validated(body, extractionSchema, "extraction")
	if err != nil {
		return nil, err
	}

	var wire extractionWire
	if err := json.Unmarshal(doc, &wire); err != nil {
		return nil, eris.Wrap(err, "normalize: decode extraction")
	}

	set := &model.ExtractedQuestionSet{Questions: make([]model.Question, 0, len(wire.Questions))}
	for _, q := range wire.Questions {
		set.Questions = append(set.Questions, model.Question{
			Number:            int(q.QuestionNumber),
			Text:              strings.TrimSpace(q.QuestionText),
			Options:           cleanList(q.Options),
			Subject:           titleLabel(q.Subject, defaultSubject),
			Topic:             lowerLabel(q.Topic, defaultTopic),
			Difficulty:        lowerLabel(q.Difficulty, defaultDifficulty),
			QuestionType:      lowerLabel(q.QuestionType, defaultQuestionType),
			Language:          titleLabel(q.Language, defaultLanguage),
			Confidence:        confidenceOrNeutral(q.Confidence),
			HasVisualElements: q.HasVisualElements,
		})
	}
	return set, nil
}

// Evaluation decodes a raw evaluation reply into the canonical grading
// shape. Percentage is recomputed from marks when the provider omitted it.
func Evaluation(body string) (*model.AnswerEvaluation, error) {
	doc, err := validated(body, evaluationSchema, "evaluation")
	if err != nil {
		return nil, err
	}

	var wire evaluationWire
	if err := json.Unmarshal(doc, &wire); err != nil {
		return nil, eris.Wrap(err, "normalize: decode evaluation")
	}

	ev := &model.AnswerEvaluation{
		AwardedMarks:    wire.Evaluation.AwardedMarks,
		TotalMarks:      wire.Evaluation.TotalMarks,
		Grade:           strings.ToUpper(strings.TrimSpace(wire.Evaluation.Grade)),
		Confidence:      confidenceOrNeutral(wire.Evaluation.Confidence),
		Strengths:       cleanList(wire.Analysis.Strengths),
		Weaknesses:      cleanList(wire.Analysis.Weaknesses),
		MissingPoints:   cleanList(wire.Analysis.MissingPoints),
		IncorrectPoints: cleanList(wire.Analysis.IncorrectPoints),
		Suggestions: model.Suggestions{
			Immediate: cleanList(wire.Suggestions.Immediate),
			LongTerm:  cleanList(wire.Suggestions.LongTerm),
			Resources: cleanList(wire.Suggestions.Resources),
		},
	}

	switch {
	case wire.Evaluation.Percentage != nil:
		ev.Percentage = *wire.Evaluation.Percentage
	case ev.TotalMarks > 0:
		ev.Percentage = ev.AwardedMarks / ev.TotalMarks * 100
	}

	return ev, nil
}

// validated cleans the body, checks it against the wire contract, and
// returns the cleaned JSON bytes ready for struct decoding.
func validated(body string, schema *jsonschema.Schema, kind string) ([]byte, error) {
	cleaned := CleanJSON(body)
	if cleaned == "" {
		return nil, eris.Errorf("normalize: empty %s reply", kind)
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, eris.Wrapf(err, "normalize: %s reply is not json", kind)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, eris.Wrapf(err, "normalize: %s contract violation", kind)
	}
	return []byte(cleaned), nil
}
