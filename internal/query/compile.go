package query

import (
	"strings"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/schema"
)

// matchNothing is emitted when text must match but the table offers no
// column to search it in.
const matchNothing = "1 = 0"

// Filter is a compiled predicate. SQL is empty when the query puts no
// constraint on rows; Args bind its '?' placeholders in order. Ignored
// lists referenced fields that were dropped because the table does not
// have them, or does not allow them in that clause.
type Filter struct {
	SQL     string
	Args    []any
	Ignored []string
}

// Empty reports whether the filter matches every row.
func (f Filter) Empty() bool {
	return f.SQL == ""
}

// Compiler lowers queries into SQL for one dialect.
type Compiler struct {
	Dialect database.Dialect
}

// Compile parses q and lowers it against t.
func (c Compiler) Compile(q any, t *schema.Table) (Filter, error) {
	n, err := Parse(q)
	if err != nil {
		return Filter{}, err
	}
	return c.Lower(n, t), nil
}

// Lower turns a parsed clause tree into a Filter. Identifiers come only
// from t's catalog entry; every literal travels as a bound argument.
func (c Compiler) Lower(n Node, t *schema.Table) Filter {
	l := &lowering{d: c.Dialect, t: t}
	sql := l.node(n)
	return Filter{SQL: sql, Args: l.args, Ignored: l.ignored}
}

type lowering struct {
	d       database.Dialect
	t       *schema.Table
	args    []any
	ignored []string
}

func (l *lowering) node(n Node) string {
	switch q := n.(type) {
	case *Match:
		return l.match(q.Field, q.Query, q.Operator)

	case *MatchPhrase:
		fields, ok := l.targets(q.Field)
		if !ok {
			return ""
		}
		return l.contains(fields, strings.TrimSpace(q.Query))

	case *MultiMatch:
		return l.multiMatch(q)

	case *Term:
		f, ok := l.resolve(q.Field, filterable)
		if !ok {
			return ""
		}
		l.bind(q.Value)
		return l.col(f) + " = ?"

	case *Terms:
		f, ok := l.resolve(q.Field, filterable)
		if !ok {
			return ""
		}
		if len(q.Values) == 0 {
			return ""
		}
		l.bind(q.Values...)
		return l.col(f) + " IN (" + database.Placeholders(len(q.Values)) + ")"

	case *Range:
		f, ok := l.resolve(q.Field, filterable)
		if !ok || len(q.Bounds) == 0 {
			return ""
		}
		preds := make([]string, 0, len(q.Bounds))
		for _, b := range q.Bounds {
			preds = append(preds, l.col(f)+" "+rangeSQL(b.Op)+" ?")
			l.bind(b.Value)
		}
		return group(preds, " AND ")

	case *Wildcard:
		f, ok := l.resolve(q.Field, filterable)
		if !ok {
			return ""
		}
		l.bind(wildcardPattern(q.Pattern))
		return l.like(f)

	case *Regexp:
		f, ok := l.resolve(q.Field, filterable)
		if !ok {
			return ""
		}
		l.bind(q.Pattern)
		return l.d.Regexp(l.col(f))

	case *QueryString:
		return l.queryString(q)

	case *Bool:
		return l.boolean(q)
	}
	return ""
}

func (l *lowering) match(field, text string, op Operator) string {
	fields, ok := l.targets(field)
	if !ok {
		return ""
	}
	return l.tokens(fields, Tokenize(text), op)
}

func (l *lowering) multiMatch(q *MultiMatch) string {
	if len(q.Fields) == 0 {
		return l.tokens(l.searchable(), Tokenize(q.Query), q.Operator)
	}

	fields := make([]*schema.Field, 0, len(q.Fields))
	for _, fb := range q.Fields {
		if f, ok := l.resolve(fb.Field, searchable); ok {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return ""
	}
	return l.tokens(fields, Tokenize(q.Query), q.Operator)
}

// tokens requires each token in any of fields, combining the per-token
// predicates with op.
func (l *lowering) tokens(fields []*schema.Field, tokens []string, op Operator) string {
	if len(tokens) == 0 {
		return ""
	}
	if len(fields) == 0 {
		return matchNothing
	}

	perToken := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		preds := make([]string, 0, len(fields))
		for _, f := range fields {
			preds = append(preds, l.like(f))
			l.bind("%" + tok + "%")
		}
		perToken = append(perToken, group(preds, " OR "))
	}

	sep := " OR "
	if op == OperatorAnd {
		sep = " AND "
	}
	return group(perToken, sep)
}

// contains is case-insensitive substring containment of text in any of
// fields.
func (l *lowering) contains(fields []*schema.Field, text string) string {
	if text == "" {
		return ""
	}
	if len(fields) == 0 {
		return matchNothing
	}
	preds := make([]string, 0, len(fields))
	for _, f := range fields {
		preds = append(preds, l.like(f))
		l.bind("%" + text + "%")
	}
	return group(preds, " OR ")
}

func (l *lowering) boolean(b *Bool) string {
	var parts []string

	for _, c := range b.Must {
		if s := l.node(c); s != "" {
			parts = append(parts, "("+s+")")
		}
	}

	var alts []string
	for _, c := range b.Should {
		if s := l.node(c); s != "" {
			alts = append(alts, "("+s+")")
		}
	}
	switch {
	case len(alts) == 1:
		parts = append(parts, alts[0])
	case len(alts) > 1:
		parts = append(parts, "("+strings.Join(alts, " OR ")+")")
	}

	for _, c := range b.MustNot {
		if s := l.node(c); s != "" {
			parts = append(parts, "NOT ("+s+")")
		}
	}

	for _, c := range b.Filter {
		if s := l.node(c); s != "" {
			parts = append(parts, "("+s+")")
		}
	}

	return strings.Join(parts, " AND ")
}

// targets resolves an optional searchable field. An empty name means every
// searchable field; an unusable name is ignored and reported as !ok.
func (l *lowering) targets(field string) ([]*schema.Field, bool) {
	if field == "" {
		return l.searchable(), true
	}
	f, ok := l.resolve(field, searchable)
	if !ok {
		return nil, false
	}
	return []*schema.Field{f}, true
}

func (l *lowering) searchable() []*schema.Field {
	fields := make([]*schema.Field, 0, len(l.t.SearchableFields))
	for _, name := range l.t.SearchableFields {
		if f, ok := l.t.Field(name); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

func searchable(f *schema.Field) bool { return f.Searchable }
func filterable(f *schema.Field) bool { return f.Filterable }

// resolve validates name against the table and the clause's capability.
func (l *lowering) resolve(name string, allowed func(*schema.Field) bool) (*schema.Field, bool) {
	f, ok := l.t.Field(name)
	if !ok || !allowed(f) {
		l.ignore(name)
		return nil, false
	}
	return f, true
}

func (l *lowering) ignore(name string) {
	for _, n := range l.ignored {
		if n == name {
			return
		}
	}
	l.ignored = append(l.ignored, name)
}

func (l *lowering) bind(values ...any) {
	l.args = append(l.args, values...)
}

func (l *lowering) col(f *schema.Field) string {
	return l.d.QuoteIdent(f.Name)
}

// like renders a LIKE predicate, casting non-text columns first.
func (l *lowering) like(f *schema.Field) string {
	if f.Type == schema.TypeText {
		return l.d.Like(l.col(f))
	}
	return l.d.CastLike(l.col(f))
}

func rangeSQL(op string) string {
	for _, r := range rangeOps {
		if r.name == op {
			return r.sql
		}
	}
	return "="
}

var wildcards = strings.NewReplacer("*", "%", "?", "_")

// wildcardPattern translates '*' and '?' into LIKE wildcards.
func wildcardPattern(p string) string {
	return wildcards.Replace(p)
}

// group joins parts with sep, parenthesizing only when there is more than
// one part.
func group(parts []string, sep string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return "(" + strings.Join(parts, sep) + ")"
	}
}
