package consensus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/exam-engine/internal/model"
)

func extractionOutcome(provider string, questions ...model.Question) model.ProviderOutcome {
	return model.ProviderOutcome{
		Provider:   provider,
		Extraction: &model.ExtractedQuestionSet{Questions: questions},
	}
}

func evaluationOutcome(provider string, ev model.AnswerEvaluation) model.ProviderOutcome {
	return model.ProviderOutcome{Provider: provider, Evaluation: &ev}
}

func failedOutcome(provider string, kind model.FailureKind) model.ProviderOutcome {
	return model.ProviderOutcome{Provider: provider, Failure: &model.Failure{Kind: kind, Message: "boom"}}
}

func TestMergeExtraction_ZeroSuccesses(t *testing.T) {
	merged := MergeExtraction([]model.ProviderOutcome{
		failedOutcome("gemini", model.FailureTimeout),
		failedOutcome("openai", model.FailureNetwork),
	}, DefaultPolicy())

	require.NotNil(t, merged)
	assert.Empty(t, merged.Questions)
}

func TestMergeExtraction_SingleSuccess(t *testing.T) {
	q := model.Question{
		Number: 1, Text: "What is photosynthesis?",
		Subject: "Biology", Topic: "plants", Difficulty: "easy",
		QuestionType: "descriptive", Language: "English", Confidence: 0.9,
	}
	merged := MergeExtraction([]model.ProviderOutcome{
		extractionOutcome("gemini", q),
		failedOutcome("openai", model.FailureRateLimited),
	}, DefaultPolicy())

	require.Len(t, merged.Questions, 1)
	assert.Equal(t, q, merged.Questions[0].Question)
	assert.Equal(t, []string{"gemini"}, merged.Questions[0].SourceProviders)
	assert.Equal(t, model.AgreementSingle, merged.Questions[0].AgreementLevel)
}

func TestMergeExtraction_GroupsByQuestionNumber(t *testing.T) {
	merged := MergeExtraction([]model.ProviderOutcome{
		extractionOutcome("gemini",
			model.Question{Number: 3, Text: "Define osmosis", Confidence: 0.9},
		),
		extractionOutcome("openai",
			model.Question{Number: 3, Text: "Define osmosis.", Confidence: 0.8},
		),
	}, DefaultPolicy())

	require.Len(t, merged.Questions, 1)
	got := merged.Questions[0]
	assert.Equal(t, 3, got.Number)
	assert.Equal(t, []string{"gemini", "openai"}, got.SourceProviders)
	assert.Equal(t, model.AgreementHigh, got.AgreementLevel)
}

func TestMergeExtraction_RepresentativeHasLowestConfidence(t *testing.T) {
	merged := MergeExtraction([]model.ProviderOutcome{
		extractionOutcome("anthropic", model.Question{Number: 1, Text: "high-confidence reading", Confidence: 0.95}),
		extractionOutcome("gemini", model.Question{Number: 1, Text: "low-confidence reading", Confidence: 0.4}),
		extractionOutcome("openai", model.Question{Number: 1, Text: "mid-confidence reading", Confidence: 0.7}),
	}, DefaultPolicy())

	require.Len(t, merged.Questions, 1)
	assert.Equal(t, "low-confidence reading", merged.Questions[0].Text)
	assert.Equal(t, 0.4, merged.Questions[0].Confidence)
	assert.Equal(t, []string{"anthropic", "gemini", "openai"}, merged.Questions[0].SourceProviders)
}

func TestMergeExtraction_OutputOrderedByNumber(t *testing.T) {
	merged := MergeExtraction([]model.ProviderOutcome{
		extractionOutcome("gemini",
			model.Question{Number: 5, Text: "five", Confidence: 0.8},
			model.Question{Number: 1, Text: "one", Confidence: 0.8},
		),
		extractionOutcome("openai",
			model.Question{Number: 3, Text: "three", Confidence: 0.8},
		),
	}, DefaultPolicy())

	require.Len(t, merged.Questions, 3)
	assert.Equal(t, 1, merged.Questions[0].Number)
	assert.Equal(t, 3, merged.Questions[1].Number)
	assert.Equal(t, 5, merged.Questions[2].Number)
}

func TestMergeExtraction_Deterministic(t *testing.T) {
	a := extractionOutcome("anthropic",
		model.Question{Number: 1, Text: "alpha", Confidence: 0.6},
		model.Question{Number: 2, Text: "beta", Confidence: 0.9},
	)
	b := extractionOutcome("gemini",
		model.Question{Number: 2, Text: "beta prime", Confidence: 0.9},
	)
	c := extractionOutcome("openai",
		model.Question{Number: 1, Text: "alpha prime", Confidence: 0.6},
	)

	orderings := [][]model.ProviderOutcome{
		{a, b, c},
		{c, b, a},
		{b, a, c},
		{c, a, b},
	}

	var baseline []byte
	for i, outcomes := range orderings {
		got, err := json.Marshal(MergeExtraction(outcomes, DefaultPolicy()))
		require.NoError(t, err)
		if i == 0 {
			baseline = got
			continue
		}
		assert.Equal(t, string(baseline), string(got), "ordering %d diverged", i)
	}

	// Equal-confidence tie at number 1 resolves by provider name.
	merged := MergeExtraction([]model.ProviderOutcome{a, b, c}, DefaultPolicy())
	assert.Equal(t, "alpha", merged.Questions[0].Text)
}

func TestMergeEvaluation_ZeroSuccesses(t *testing.T) {
	merged := MergeEvaluation([]model.ProviderOutcome{
		failedOutcome("anthropic", model.FailureParse),
	}, DefaultPolicy())
	assert.Nil(t, merged)
}

func TestMergeEvaluation_SingleSuccessVerbatim(t *testing.T) {
	ev := model.AnswerEvaluation{
		AwardedMarks: 7.5, TotalMarks: 10, Percentage: 75, Grade: "B+",
		Confidence:      0.85,
		Strengths:       []string{"clear definitions"},
		Weaknesses:      []string{"missing diagram"},
		MissingPoints:   []string{"turgor pressure"},
		IncorrectPoints: []string{},
		Suggestions: model.Suggestions{
			Immediate: []string{"revise chapter 4"},
			LongTerm:  []string{"practice diagrams"},
			Resources: []string{},
		},
	}
	merged := MergeEvaluation([]model.ProviderOutcome{evaluationOutcome("anthropic", ev)}, DefaultPolicy())

	require.NotNil(t, merged)
	assert.Equal(t, ev, *merged)
}

func TestMergeEvaluation_AveragesMarksAndPercentage(t *testing.T) {
	merged := MergeEvaluation([]model.ProviderOutcome{
		evaluationOutcome("anthropic", model.AnswerEvaluation{AwardedMarks: 8, TotalMarks: 10, Percentage: 80, Grade: "A", Confidence: 0.9}),
		evaluationOutcome("openai", model.AnswerEvaluation{AwardedMarks: 6, TotalMarks: 10, Percentage: 60, Grade: "A", Confidence: 0.7}),
	}, DefaultPolicy())

	require.NotNil(t, merged)
	assert.InDelta(t, 7.0, merged.AwardedMarks, 1e-9)
	assert.InDelta(t, 70.0, merged.Percentage, 1e-9)
	assert.Equal(t, 10.0, merged.TotalMarks)
	assert.Equal(t, "A", merged.Grade)
	assert.InDelta(t, 0.8, merged.Confidence, 1e-9)
}

func TestMergeEvaluation_GradeFallbackOnAveragedPercentage(t *testing.T) {
	// Percentages [90, 92] average to 91; disagreeing grades fall back to
	// the table, which maps 91 to "A".
	merged := MergeEvaluation([]model.ProviderOutcome{
		evaluationOutcome("anthropic", model.AnswerEvaluation{AwardedMarks: 9, TotalMarks: 10, Percentage: 90, Grade: "A", Confidence: 0.9}),
		evaluationOutcome("openai", model.AnswerEvaluation{AwardedMarks: 9.2, TotalMarks: 10, Percentage: 92, Grade: "A+", Confidence: 0.9}),
	}, DefaultPolicy())

	require.NotNil(t, merged)
	assert.InDelta(t, 91.0, merged.Percentage, 1e-9)
	assert.Equal(t, "A", merged.Grade)
}

func TestMergeEvaluation_UnionCappedLists(t *testing.T) {
	merged := MergeEvaluation([]model.ProviderOutcome{
		evaluationOutcome("anthropic", model.AnswerEvaluation{
			AwardedMarks: 5, TotalMarks: 10, Percentage: 50, Grade: "C",
			Strengths: []string{"s1", "s2", "s3", "shared"},
		}),
		evaluationOutcome("openai", model.AnswerEvaluation{
			AwardedMarks: 5, TotalMarks: 10, Percentage: 50, Grade: "C",
			Strengths: []string{"shared", "s4", "s5", "s6"},
		}),
	}, DefaultPolicy())

	require.NotNil(t, merged)
	// Deduplicated union capped at 5, first-seen order over providers
	// sorted by name.
	assert.Equal(t, []string{"s1", "s2", "s3", "shared", "s4"}, merged.Strengths)
}

func TestMergeEvaluation_TotalMarksMajority(t *testing.T) {
	merged := MergeEvaluation([]model.ProviderOutcome{
		evaluationOutcome("anthropic", model.AnswerEvaluation{AwardedMarks: 4, TotalMarks: 10, Percentage: 40, Grade: "C"}),
		evaluationOutcome("gemini", model.AnswerEvaluation{AwardedMarks: 4, TotalMarks: 10, Percentage: 40, Grade: "C"}),
		evaluationOutcome("openai", model.AnswerEvaluation{AwardedMarks: 4, TotalMarks: 5, Percentage: 80, Grade: "A"}),
	}, DefaultPolicy())

	require.NotNil(t, merged)
	assert.Equal(t, 10.0, merged.TotalMarks)
}

func TestMergeEvaluation_Deterministic(t *testing.T) {
	a := evaluationOutcome("anthropic", model.AnswerEvaluation{
		AwardedMarks: 8, TotalMarks: 10, Percentage: 80, Grade: "A",
		Strengths: []string{"x", "y"},
	})
	b := evaluationOutcome("openai", model.AnswerEvaluation{
		AwardedMarks: 7, TotalMarks: 10, Percentage: 70, Grade: "B+",
		Strengths: []string{"z"},
	})

	first, err := json.Marshal(MergeEvaluation([]model.ProviderOutcome{a, b}, DefaultPolicy()))
	require.NoError(t, err)
	second, err := json.Marshal(MergeEvaluation([]model.ProviderOutcome{b, a}, DefaultPolicy()))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}
