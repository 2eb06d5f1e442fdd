package consensus

import "sort"

// gradeBands maps percentage floors to letter grades, checked top down.
var gradeBands = []struct {
	min   float64
	grade string
}{
	{95, "A+"},
	{85, "A"},
	{75, "B+"},
	{65, "B"},
	{55, "C+"},
	{45, "C"},
	{35, "D"},
}

// GradeForPercentage maps a percentage to its letter grade.
func GradeForPercentage(pct float64) string {
	for _, b := range gradeBands {
		if pct >= b.min {
			return b.grade
		}
	}
	return "F"
}

// majorityGrade returns the grade reported by a strict majority of
// providers. It reports false on ties or when every provider disagrees,
// signalling the caller to fall back to the percentage table.
func majorityGrade(grades []string) (string, bool) {
	counts := make(map[string]int, len(grades))
	for _, g := range grades {
		counts[g]++
	}

	keys := make([]string, 0, len(counts))
	for g := range counts {
		keys = append(keys, g)
	}
	sort.Strings(keys)

	best, bestN, secondN := "", 0, 0
	for _, g := range keys {
		n := counts[g]
		switch {
		case n > bestN:
			secondN = bestN
			best, bestN = g, n
		case n > secondN:
			secondN = n
		}
	}

	if bestN >= 2 && bestN > secondN {
		return best, true
	}
	return "", false
}
