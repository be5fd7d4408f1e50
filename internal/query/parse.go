package query

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
)

// leafOptions are keys allowed next to the field key in a leaf body.
var leafOptions = map[string]bool{"boost": true, "_name": true}

// Parse turns a query into a clause tree. A string is a match over every
// searchable field. An object is dispatched on its recognized key, and an
// object without one fails with ErrKindUnsupportedQuery. Malformed clause
// bodies degrade to a field-less match over their raw text.
func Parse(q any) (Node, error) {
	switch v := q.(type) {
	case nil:
		return nil, errs.New(errs.ErrKindInvalidInput, "query is required")
	case string:
		return &Match{Query: v, Operator: OperatorOr, Boost: 1}, nil
	case map[string]any:
		return parseObject(v)
	default:
		return degrade(v), nil
	}
}

func parseObject(obj map[string]any) (Node, error) {
	// {"query": {...}} is the request envelope, not a clause.
	if inner, ok := obj["query"].(map[string]any); ok && len(obj) == 1 {
		return parseObject(inner)
	}

	keys := sortedKeys(obj)
	for _, k := range keys {
		if kind, ok := kinds[k]; ok {
			return parseClause(kind, obj[k])
		}
	}
	return nil, errs.Newf(errs.ErrKindUnsupportedQuery, "unsupported query: no recognized clause in %v", keys)
}

func parseClause(kind Kind, body any) (Node, error) {
	switch kind {
	case KindBool:
		return parseBool(body)
	case KindMultiMatch:
		return parseMultiMatch(body), nil
	case KindQueryString, KindSimpleQueryString:
		return parseQueryString(body, kind == KindSimpleQueryString), nil
	}

	field, params, ok := leaf(body)
	if !ok {
		return degrade(body), nil
	}
	boost := boostOf(params)

	switch kind {
	case KindMatch:
		q, ok := firstText(params, "query", "value", "text")
		if !ok {
			return degrade(body), nil
		}
		return &Match{Field: field, Query: q, Operator: parseOperator(params["operator"]), Boost: boost}, nil

	case KindMatchPhrase:
		q, ok := firstText(params, "query", "value", "text")
		if !ok {
			return degrade(body), nil
		}
		return &MatchPhrase{Field: field, Query: q, Boost: boost}, nil

	case KindTerm:
		v, ok := first(params, "value", "query", "term")
		if !ok || !isScalar(v) {
			return degrade(body), nil
		}
		return &Term{Field: field, Value: NormalizeValue(v), Boost: boost}, nil

	case KindTerms:
		v, _ := first(params, "value", "values", "query", "terms")
		list, ok := v.([]any)
		if !ok {
			return degrade(body), nil
		}
		values := make([]any, 0, len(list))
		for _, item := range list {
			if isScalar(item) {
				values = append(values, NormalizeValue(item))
			}
		}
		return &Terms{Field: field, Values: values, Boost: boost}, nil

	case KindRange:
		r := &Range{Field: field, Boost: boost}
		for _, op := range rangeOps {
			if v, ok := params[op.name]; ok && v != nil && isScalar(v) {
				r.Bounds = append(r.Bounds, Bound{Op: op.name, Value: NormalizeValue(v)})
			}
		}
		return r, nil

	case KindWildcard:
		p, ok := firstText(params, "value", "wildcard", "query")
		if !ok {
			return degrade(body), nil
		}
		return &Wildcard{Field: field, Pattern: p, Boost: boost}, nil

	case KindRegexp:
		p, ok := firstText(params, "value", "regexp", "query")
		if !ok {
			return degrade(body), nil
		}
		return &Regexp{Field: field, Pattern: p, Boost: boost}, nil
	}

	return degrade(body), nil
}

// leaf accepts {"f": v}, {"f": {"query": v, ...}} and
// {"field": "f", "query": v, ...}.
func leaf(body any) (string, map[string]any, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return "", nil, false
	}
	if f, ok := obj["field"].(string); ok && f != "" {
		return f, obj, true
	}

	field := ""
	for _, k := range sortedKeys(obj) {
		if leafOptions[k] {
			continue
		}
		if field != "" {
			return "", nil, false
		}
		field = k
	}
	if field == "" {
		return "", nil, false
	}

	if params, ok := obj[field].(map[string]any); ok {
		return field, params, true
	}
	v := obj[field]
	return field, map[string]any{"query": v, "value": v, "boost": obj["boost"]}, true
}

func parseMultiMatch(body any) Node {
	obj, ok := body.(map[string]any)
	if !ok {
		return degrade(body)
	}
	q, ok := firstText(obj, "query")
	if !ok {
		return degrade(body)
	}

	mm := &MultiMatch{Query: q, Operator: parseOperator(obj["operator"]), Boost: boostOf(obj)}
	for _, f := range stringList(obj["fields"]) {
		mm.Fields = append(mm.Fields, parseFieldBoost(f))
	}
	return mm
}

// parseFieldBoost splits "title^2" into its field and weight.
func parseFieldBoost(s string) FieldBoost {
	name, weight, found := strings.Cut(s, "^")
	fb := FieldBoost{Field: strings.TrimSpace(name), Boost: 1}
	if found {
		if w, err := strconv.ParseFloat(weight, 64); err == nil && w > 0 {
			fb.Boost = w
		}
	}
	return fb
}

func parseQueryString(body any, simple bool) Node {
	if s, ok := body.(string); ok {
		return &QueryString{Query: s, Simple: simple}
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return degrade(body)
	}
	q, ok := firstText(obj, "query")
	if !ok {
		return degrade(body)
	}

	qs := &QueryString{Query: q, Simple: simple}
	qs.DefaultField, _ = obj["default_field"].(string)
	for _, f := range stringList(obj["fields"]) {
		qs.Fields = append(qs.Fields, parseFieldBoost(f).Field)
	}
	return qs
}

func parseBool(body any) (Node, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return degrade(body), nil
	}

	b := &Bool{MinimumShouldMatch: obj["minimum_should_match"], Boost: boostOf(obj)}
	var err error
	if b.Must, err = children(obj["must"]); err != nil {
		return nil, err
	}
	if b.Should, err = children(obj["should"]); err != nil {
		return nil, err
	}
	if b.MustNot, err = children(obj["must_not"]); err != nil {
		return nil, err
	}
	if b.Filter, err = children(obj["filter"]); err != nil {
		return nil, err
	}
	return b, nil
}

// children parses a bool occurrence, written either as a list or as a
// single clause.
func children(v any) ([]Node, error) {
	switch c := v.(type) {
	case nil:
		return nil, nil
	case []any:
		nodes := make([]Node, 0, len(c))
		for _, item := range c {
			if item == nil {
				continue
			}
			n, err := Parse(item)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
		return nodes, nil
	default:
		n, err := Parse(c)
		if err != nil {
			return nil, err
		}
		return []Node{n}, nil
	}
}

func degrade(body any) Node {
	return &Match{Query: rawText(body), Operator: OperatorOr, Boost: 1}
}

// rawText flattens whatever the client sent into searchable text.
func rawText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case map[string]any:
		if s, ok := firstText(t, "query", "value", "text"); ok {
			return s
		}
		parts := make([]string, 0, len(t))
		for _, k := range sortedKeys(t) {
			if s := rawText(t[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := rawText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return database.Text(NormalizeValue(v))
	}
}

func first(params map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := params[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// firstText returns the first scalar under keys, rendered as text.
func firstText(params map[string]any, keys ...string) (string, bool) {
	v, ok := first(params, keys...)
	if !ok || !isScalar(v) {
		return "", false
	}
	return database.Text(NormalizeValue(v)), true
}

func boostOf(params map[string]any) float64 {
	switch b := params["boost"].(type) {
	case float64:
		return b
	case int:
		return float64(b)
	case json.Number:
		if f, err := b.Float64(); err == nil {
			return f
		}
	}
	return 1
}

func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any, nil:
		return false
	default:
		return true
	}
}

// NormalizeValue turns integral JSON numbers into int64 so they bind as
// integers.
func NormalizeValue(v any) any {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	default:
		return v
	}
}

func stringList(v any) []string {
	switch l := v.(type) {
	case string:
		return []string{l}
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
