// Package normalize turns raw provider replies into the canonical result
// shapes. Decoding is strict: a reply that fails the wire contract becomes
// a parse failure, never a partial object.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// neutralConfidence replaces missing or out-of-range confidence values.
const neutralConfidence = 0.5

var titleCaser = cases.Title(language.English)

// CleanJSON extracts a JSON object from text that may contain markdown code
// fences or surrounding prose.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// confidenceOrNeutral applies the confidence policy: absent or out-of-range
// values are neutral (0.5), in-range values pass through unchanged. After
// this, 0 <= confidence <= 1 always holds.
func confidenceOrNeutral(v *float64) float64 {
	if v == nil || *v < 0 || *v > 1 {
		return neutralConfidence
	}
	return *v
}

// titleLabel canonicalizes display labels such as subject and language
// ("ENGLISH" -> "English"), falling back when the provider omitted one.
func titleLabel(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return titleCaser.String(strings.ToLower(s))
}

// lowerLabel canonicalizes category labels such as topic and difficulty.
func lowerLabel(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return strings.ToLower(s)
}

// cleanList trims items and drops empties, keeping order.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			out = append(out, it)
		}
	}
	return out
}
