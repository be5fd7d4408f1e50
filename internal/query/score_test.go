package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	table := docsTable()
	row := map[string]any{
		"id":             int64(1),
		"title":          "Laptop laptop",
		"body":           "Fast laptop",
		"price":          999.5,
		"classification": "laptop laptop laptop",
	}

	tests := []struct {
		name string
		node Node
		want float64
	}{
		{"term frequency across fields", &Match{Query: "laptop fast"}, 4},
		{"no occurrences hits the floor", &Match{Query: "tablet"}, MinScore},
		{"numeric values are text", &Match{Query: "999"}, 1},
		{"multi match weights", &MultiMatch{Query: "laptop", Fields: []FieldBoost{{Field: "title", Boost: 3}}}, 7},
		{"query string skips excluded terms", &QueryString{Query: "laptop -fast"}, 3},
		{"no text scores one", &Term{Field: "f", Value: "x"}, 1},
		{"bool wrapped match scores one", &Bool{
			Must: []Node{&Match{Query: "laptop"}},
		}, 1},
		{"bool with should text scores one", &Bool{
			Filter: []Node{&Term{Field: "f", Value: "x"}},
			Should: []Node{&Match{Query: "laptop fast"}},
		}, 1},
		{"nested bool is not decomposed", &Bool{
			Must: []Node{&Bool{Must: []Node{&Match{Query: "tablet"}}}},
		}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(row, tt.node, table), 1e-9)
		})
	}
}

func TestExtractText(t *testing.T) {
	text, ok := ExtractText(&QueryString{Query: `title:lap* "big screen" -old`})
	assert.True(t, ok)
	assert.Equal(t, "lap big screen", text)

	_, ok = ExtractText(&Range{Field: "price"})
	assert.False(t, ok)

	_, ok = ExtractText(&Bool{Must: []Node{&Match{Query: "laptop"}}})
	assert.False(t, ok)
}
