package search

import (
	"strings"
	"unicode/utf8"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/schema"
)

// contextWords is how many words of context surround a match.
const contextWords = 8

// fullTextFields get a windowed context instead of the whole value.
var fullTextFields = map[string]bool{"full_text": true, "content": true}

// Match explains where a hit contains the query text. Positions and
// lengths count characters, not bytes.
type Match struct {
	Field      string `json:"field"`
	Value      string `json:"value"`
	Position   int    `json:"match_position"`
	Length     int    `json:"match_length"`
	Context    string `json:"context"`
	HasContext bool   `json:"has_context"`
	FullText   bool   `json:"is_full_text"`
	Highlight  bool   `json:"should_highlight"`
}

// FindMatches reports every column of row, in columns order, whose value
// contains text case-insensitively. Sensitive columns are never reported,
// even when they are what matched.
func FindMatches(columns []string, row map[string]any, text string) []Match {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil
	}
	needleLen := utf8.RuneCountInString(needle)

	var matches []Match
	for _, col := range columns {
		v, ok := row[col]
		if !ok || v == nil || schema.IsSensitive(col) {
			continue
		}

		value := database.Text(v)
		lower := strings.ToLower(value)
		at := strings.Index(lower, needle)
		if at < 0 {
			continue
		}
		pos := utf8.RuneCountInString(lower[:at])

		m := Match{
			Field:     col,
			Value:     value,
			Position:  pos,
			Length:    needleLen,
			Context:   value,
			Highlight: true,
		}
		if fullTextFields[col] {
			m.Context = Context(value, needle, pos)
			m.HasContext = m.Context != value
			m.FullText = true
		}
		matches = append(matches, m)
	}
	return matches
}

// Context returns up to eight words either side of the match at character
// offset pos, with "..." marking truncation. Short values and multi-word
// queries come back unchanged.
func Context(text, needle string, pos int) string {
	words := strings.Fields(text)
	needleWords := strings.Fields(needle)
	if len(words) <= 2*contextWords || len(needleWords) > 1 {
		return text
	}

	at, seen := 0, 0
	for i, w := range words {
		n := utf8.RuneCountInString(w)
		if seen+n > pos {
			at = i
			break
		}
		seen += n + 1
	}

	start := max(0, at-contextWords)
	end := min(len(words), at+len(needleWords)+contextWords)

	out := strings.Join(words[start:end], " ")
	if start > 0 {
		out = "... " + out
	}
	if end < len(words) {
		out += " ..."
	}
	return out
}
