package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/koustreak/scout/internal/schema"
)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// qsToken is one classified query_string token.
type qsToken struct {
	field   string // set for field:value tokens
	text    string // unquoted value or phrase
	exclude bool
}

// parseQueryText classifies free text into field:value, phrase, +term,
// -term and bare-term tokens. Boolean operator words are skipped; NOT
// excludes the token that follows it.
func parseQueryText(s string) []qsToken {
	var (
		out    []qsToken
		negate bool
	)
	for _, raw := range splitQueryString(s) {
		switch raw {
		case "AND", "OR", "&&", "||":
			continue
		case "NOT":
			negate = true
			continue
		}

		tok := qsToken{exclude: negate}
		negate = false

		switch {
		case len(raw) > 1 && raw[0] == '-':
			tok.exclude = true
			raw = raw[1:]
		case len(raw) > 1 && raw[0] == '+':
			raw = raw[1:]
		}

		if name, value, ok := strings.Cut(raw, ":"); ok && value != "" && fieldName.MatchString(name) {
			tok.field = name
			tok.text = unquote(value)
		} else {
			tok.text = unquote(raw)
		}

		if tok.text != "" {
			out = append(out, tok)
		}
	}
	return out
}

// queryString conjoins every token: field:value is equality (or a LIKE
// pattern when the value starts or ends with '*'), anything else is
// substring containment across the default fields.
func (l *lowering) queryString(q *QueryString) string {
	defaults := l.defaultFields(q)

	var parts []string
	for _, tok := range parseQueryText(q.Query) {
		var pred string
		if tok.field != "" {
			pred = l.fieldValue(tok.field, tok.text)
		} else {
			pred = l.contains(defaults, tok.text)
		}
		if pred == "" {
			continue
		}
		if tok.exclude {
			pred = "NOT (" + pred + ")"
		}
		parts = append(parts, pred)
	}
	return group(parts, " AND ")
}

func (l *lowering) fieldValue(name, value string) string {
	f, ok := l.resolve(name, filterable)
	if !ok {
		return ""
	}
	if strings.HasPrefix(value, "*") || strings.HasSuffix(value, "*") {
		l.bind(wildcardPattern(value))
		return l.like(f)
	}
	l.bind(coerce(f, value))
	return l.col(f) + " = ?"
}

// defaultFields picks default_field, then fields, then every searchable
// field.
func (l *lowering) defaultFields(q *QueryString) []*schema.Field {
	if q.DefaultField != "" && q.DefaultField != "*" {
		if f, ok := l.resolve(q.DefaultField, searchable); ok {
			return []*schema.Field{f}
		}
	}

	if len(q.Fields) > 0 {
		fields := make([]*schema.Field, 0, len(q.Fields))
		for _, name := range q.Fields {
			if f, ok := l.resolve(name, searchable); ok {
				fields = append(fields, f)
			}
		}
		if len(fields) > 0 {
			return fields
		}
	}

	return l.searchable()
}

// coerce binds numeric columns with numeric values.
func coerce(f *schema.Field, value string) any {
	switch f.Type {
	case schema.TypeInteger:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	case schema.TypeReal:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return value
}

// queryStringText is the positive free text of a query string, used for
// scoring and highlighting.
func queryStringText(s string) string {
	var words []string
	for _, tok := range parseQueryText(s) {
		if !tok.exclude {
			words = append(words, strings.Trim(tok.text, "*"))
		}
	}
	return strings.Join(words, " ")
}
