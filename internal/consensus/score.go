package consensus

import (
	"math"
	"sort"

	"github.com/sells-group/exam-engine/internal/model"
)

// Scores holds the task-level quality metrics attached to a ConsensusResult.
type Scores struct {
	Confidence      float64
	AgreementScore  float64
	PrimaryProvider string
}

// Score computes confidence, agreement, and the primary provider for one
// settled fan-out. totalConfigured is the number of available descriptors
// the task was dispatched to. Confidence falls both when fewer providers
// succeed and when explicit errors occurred; timeouts count as simple
// unavailability and carry no extra penalty.
func Score(kind model.TaskKind, totalConfigured int, outcomes []model.ProviderOutcome, policy Policy) Scores {
	var successes []model.ProviderOutcome
	errorCount := 0
	for _, o := range outcomes {
		switch {
		case o.Succeeded():
			successes = append(successes, o)
		case o.Failure != nil && o.Failure.Kind != model.FailureTimeout:
			errorCount++
		}
	}

	s := Scores{PrimaryProvider: model.PrimaryNone}

	if totalConfigured > 0 {
		c := float64(len(successes))/float64(totalConfigured) - policy.ErrorPenalty*float64(errorCount)
		s.Confidence = clamp01(c)
	}
	if len(successes) == 1 && s.Confidence > policy.SingleProviderCeiling {
		s.Confidence = policy.SingleProviderCeiling
	}
	if len(successes) == 0 {
		s.Confidence = 0
	}

	s.AgreementScore = agreement(kind, successes)
	if p, ok := primary(kind, successes, policy); ok {
		s.PrimaryProvider = p
	}

	return s
}

// agreement measures how much the successful providers overlapped. With
// fewer than two successes agreement is trivially 1.0.
func agreement(kind model.TaskKind, successes []model.ProviderOutcome) float64 {
	if len(successes) < 2 {
		return 1.0
	}
	if kind == model.TaskExtraction {
		return extractionAgreement(successes)
	}
	return evaluationAgreement(successes)
}

// extractionAgreement is the fraction of question groups that drew
// contributions from more than one provider.
func extractionAgreement(successes []model.ProviderOutcome) float64 {
	groups := make(map[int]map[string]bool)
	for _, o := range successes {
		if o.Extraction == nil {
			continue
		}
		for _, q := range o.Extraction.Questions {
			if groups[q.Number] == nil {
				groups[q.Number] = make(map[string]bool)
			}
			groups[q.Number][o.Provider] = true
		}
	}
	if len(groups) == 0 {
		return 1.0
	}

	shared := 0
	for _, providers := range groups {
		if len(providers) >= 2 {
			shared++
		}
	}
	return float64(shared) / float64(len(groups))
}

// evaluationAgreement scores three criteria: grade (exact), awarded marks
// (0.1 precision), and percentage (integer precision). Each counts when at
// least two providers reported the same value.
func evaluationAgreement(successes []model.ProviderOutcome) float64 {
	grades := make(map[string]int)
	marks := make(map[int64]int)
	pcts := make(map[int64]int)
	for _, o := range successes {
		if o.Evaluation == nil {
			continue
		}
		grades[o.Evaluation.Grade]++
		marks[int64(math.Round(o.Evaluation.AwardedMarks*10))]++
		pcts[int64(math.Round(o.Evaluation.Percentage))]++
	}

	agreed := 0
	if hasShared(grades) {
		agreed++
	}
	if hasShared(marks) {
		agreed++
	}
	if hasShared(pcts) {
		agreed++
	}
	return float64(agreed) / 3
}

// hasShared reports whether any value was reported by at least two providers.
func hasShared[K comparable](counts map[K]int) bool {
	for _, n := range counts {
		if n >= 2 {
			return true
		}
	}
	return false
}

// primary picks the highest-priority successful provider for the task kind.
// Providers absent from the priority list rank after listed ones, in name
// order, so an unlisted backend still surfaces when it is the only success.
func primary(kind model.TaskKind, successes []model.ProviderOutcome, policy Policy) (string, bool) {
	if len(successes) == 0 {
		return "", false
	}

	succeeded := make(map[string]bool, len(successes))
	for _, o := range successes {
		succeeded[o.Provider] = true
	}

	listed := make(map[string]bool)
	for _, name := range policy.PriorityFor(kind) {
		listed[name] = true
		if succeeded[name] {
			return name, true
		}
	}

	rest := make([]string, 0, len(succeeded))
	for name := range succeeded {
		if !listed[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return rest[0], true
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
