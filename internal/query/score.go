package query

import (
	"math"
	"strings"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/schema"
)

// MinScore is the floor every scored row gets.
const MinScore = 0.1

// ExtractText returns the free text of n when n is a match, multi_match,
// query_string or simple_query_string clause. Bool trees are not
// decomposed.
func ExtractText(n Node) (string, bool) {
	text, _, ok := scoringText(n)
	return text, ok
}

// Score is the plain term frequency of the query's tokens across the
// row's searchable fields: no inverse document frequency and no length
// normalization. Only multi_match field weights apply. A query with no
// extractable text scores 1.
func Score(row map[string]any, n Node, t *schema.Table) float64 {
	text, mm, ok := scoringText(n)
	if !ok {
		return 1
	}
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return 1
	}

	weights := fieldWeights(mm, t)

	var score float64
	for _, name := range t.SearchableFields {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		value := strings.ToLower(database.Text(v))
		if value == "" {
			continue
		}

		w := 1.0
		if fw, ok := weights[name]; ok {
			w = fw
		}
		for _, tok := range tokens {
			score += float64(strings.Count(value, tok)) * w
		}
	}
	return math.Max(score, MinScore)
}

// scoringText returns the text of a top-level text clause. A multi_match
// also supplies its field weights.
func scoringText(n Node) (string, *MultiMatch, bool) {
	switch q := n.(type) {
	case *Match:
		return q.Query, nil, strings.TrimSpace(q.Query) != ""
	case *MultiMatch:
		return q.Query, q, strings.TrimSpace(q.Query) != ""
	case *QueryString:
		text := queryStringText(q.Query)
		return text, nil, text != ""
	}
	return "", nil, false
}

func fieldWeights(mm *MultiMatch, t *schema.Table) map[string]float64 {
	if mm == nil {
		return nil
	}
	weights := make(map[string]float64, len(mm.Fields))
	for _, fb := range mm.Fields {
		if name, ok := t.Resolve(fb.Field); ok {
			weights[name] = fb.Boost
		}
	}
	return weights
}
