package schema

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ceilingNone    = "None"
	ceilingUnknown = "Unknown"
)

// classificationLevels is ordered from most to least severe, with the
// abbreviations each level is commonly written as.
var classificationLevels = []string{
	"top secret", "top_secret", "ts",
	"secret", "s",
	"confidential", "c",
	"restricted", "r",
	"unclassified", "u", "cui",
	"public", "p",
}

// Ceiling resolves the most severe label among values. values holds raw
// distinct values from every classification-style column in scan order.
//
// No values yields "None"; values that match nothing in the hierarchy
// yield the first value, title-cased.
func Ceiling(values []string) string {
	seen := make(map[string]bool, len(values))
	var normalized []string
	for _, v := range values {
		n := strings.ToLower(strings.TrimSpace(v))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		normalized = append(normalized, n)
	}

	if len(normalized) == 0 {
		return ceilingNone
	}

	// Casers are stateful; build one per call.
	title := cases.Title(language.English)
	for _, level := range classificationLevels {
		if seen[level] {
			return title.String(level)
		}
	}
	return title.String(normalized[0])
}
