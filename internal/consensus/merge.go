package consensus

import (
	"sort"

	"github.com/sells-group/exam-engine/internal/model"
)

// MergeExtraction reconciles the successful extraction outcomes into one
// question set. Candidate questions are grouped by question number; each
// group's representative is the member with the lowest confidence so the
// reported confidence is never higher than any contributor's. The merge is
// deterministic: outcome order never affects the result.
func MergeExtraction(outcomes []model.ProviderOutcome, policy Policy) *model.QuestionConsensus {
	succ := successfulOutcomes(outcomes, func(o model.ProviderOutcome) bool { return o.Extraction != nil })

	merged := &model.QuestionConsensus{Questions: []model.MergedQuestion{}}
	if len(succ) == 0 {
		return merged
	}

	type candidate struct {
		question model.Question
		provider string
	}
	groups := make(map[int][]candidate)
	for _, o := range succ {
		for _, q := range o.Extraction.Questions {
			groups[q.Number] = append(groups[q.Number], candidate{question: q, provider: o.Provider})
		}
	}

	numbers := make([]int, 0, len(groups))
	for n := range groups {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		members := groups[n]

		// Representative: lowest confidence, ties broken by provider name.
		// Members were appended in provider-name order, so the first
		// strictly-lower confidence wins.
		rep := members[0]
		for _, m := range members[1:] {
			if m.question.Confidence < rep.question.Confidence {
				rep = m
			}
		}

		providerSet := make(map[string]bool, len(members))
		for _, m := range members {
			providerSet[m.provider] = true
		}
		providers := make([]string, 0, len(providerSet))
		for p := range providerSet {
			providers = append(providers, p)
		}
		sort.Strings(providers)

		level := model.AgreementSingle
		if len(providers) >= 2 {
			level = model.AgreementHigh
		}

		merged.Questions = append(merged.Questions, model.MergedQuestion{
			Question:        cloneQuestion(rep.question),
			SourceProviders: providers,
			AgreementLevel:  level,
		})
	}

	return merged
}

// MergeEvaluation reconciles the successful evaluation outcomes into one
// grading result. Marks and percentage are averaged; the grade follows the
// providers' majority vote, else the percentage table applied to the
// averaged percentage; feedback lists are union-deduplicated and capped.
// Nil is the defined empty value when nothing succeeded.
func MergeEvaluation(outcomes []model.ProviderOutcome, policy Policy) *model.AnswerEvaluation {
	succ := successfulOutcomes(outcomes, func(o model.ProviderOutcome) bool { return o.Evaluation != nil })

	switch len(succ) {
	case 0:
		return nil
	case 1:
		ev := cloneEvaluation(*succ[0].Evaluation)
		return &ev
	}

	evals := make([]model.AnswerEvaluation, 0, len(succ))
	grades := make([]string, 0, len(succ))
	var awardedSum, pctSum, confSum float64
	for _, o := range succ {
		ev := *o.Evaluation
		evals = append(evals, ev)
		grades = append(grades, ev.Grade)
		awardedSum += ev.AwardedMarks
		pctSum += ev.Percentage
		confSum += ev.Confidence
	}
	n := float64(len(evals))

	merged := &model.AnswerEvaluation{
		AwardedMarks: awardedSum / n,
		TotalMarks:   majorityTotalMarks(evals),
		Percentage:   pctSum / n,
		Confidence:   confSum / n,
	}

	if g, ok := majorityGrade(grades); ok {
		merged.Grade = g
	} else {
		merged.Grade = GradeForPercentage(merged.Percentage)
	}

	cap := policy.MaxListItems
	merged.Strengths = unionCapped(evals, cap, func(e model.AnswerEvaluation) []string { return e.Strengths })
	merged.Weaknesses = unionCapped(evals, cap, func(e model.AnswerEvaluation) []string { return e.Weaknesses })
	merged.MissingPoints = unionCapped(evals, cap, func(e model.AnswerEvaluation) []string { return e.MissingPoints })
	merged.IncorrectPoints = unionCapped(evals, cap, func(e model.AnswerEvaluation) []string { return e.IncorrectPoints })
	merged.Suggestions = model.Suggestions{
		Immediate: unionCapped(evals, cap, func(e model.AnswerEvaluation) []string { return e.Suggestions.Immediate }),
		LongTerm:  unionCapped(evals, cap, func(e model.AnswerEvaluation) []string { return e.Suggestions.LongTerm }),
		Resources: unionCapped(evals, cap, func(e model.AnswerEvaluation) []string { return e.Suggestions.Resources }),
	}

	return merged
}

// successfulOutcomes filters and orders outcomes by provider name so every
// downstream step sees a deterministic sequence regardless of arrival order.
func successfulOutcomes(outcomes []model.ProviderOutcome, has func(model.ProviderOutcome) bool) []model.ProviderOutcome {
	succ := make([]model.ProviderOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Succeeded() && has(o) {
			succ = append(succ, o)
		}
	}
	sort.Slice(succ, func(i, j int) bool { return succ[i].Provider < succ[j].Provider })
	return succ
}

// majorityTotalMarks picks the most commonly reported total; ties resolve
// to the highest value.
func majorityTotalMarks(evals []model.AnswerEvaluation) float64 {
	counts := make(map[float64]int, len(evals))
	for _, e := range evals {
		counts[e.TotalMarks]++
	}
	best, bestN := 0.0, 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v > best) {
			best, bestN = v, n
		}
	}
	return best
}

// unionCapped deduplicates list items across providers in first-seen order
// (providers already sorted by name) up to the cap.
func unionCapped(evals []model.AnswerEvaluation, cap int, pick func(model.AnswerEvaluation) []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, e := range evals {
		for _, item := range pick(e) {
			if seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
			if len(out) == cap {
				return out
			}
		}
	}
	return out
}

func cloneQuestion(q model.Question) model.Question {
	out := q
	if q.Options != nil {
		out.Options = append([]string(nil), q.Options...)
	}
	return out
}

func cloneEvaluation(e model.AnswerEvaluation) model.AnswerEvaluation {
	out := e
	out.Strengths = append([]string{}, e.Strengths...)
	out.Weaknesses = append([]string{}, e.Weaknesses...)
	out.MissingPoints = append([]string{}, e.MissingPoints...)
	out.IncorrectPoints = append([]string{}, e.IncorrectPoints...)
	out.Suggestions = model.Suggestions{
		Immediate: append([]string{}, e.Suggestions.Immediate...),
		LongTerm:  append([]string{}, e.Suggestions.LongTerm...),
		Resources: append([]string{}, e.Suggestions.Resources...),
	}
	return out
}
