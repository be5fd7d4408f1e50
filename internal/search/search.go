package search

import (
	"context"
	"strings"
	"time"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
	"github.com/koustreak/scout/internal/query"
	"github.com/koustreak/scout/internal/schema"
)

// DefaultSize is the page size used when a request asks for none.
const DefaultSize = 10

// SortField orders results by one sortable column.
type SortField struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// Request is one search call.
type Request struct {
	Table string

	// Query is free text (string) or a query object (map[string]any).
	// Nil, "" and "*" match every row.
	Query any

	// Fields narrows the columns free text is matched against.
	Fields []string

	Filters      map[string]any
	Sort         []SortField
	Size         int
	From         int
	Aggregations map[string]AggSpec

	// FacetFields overrides the facet candidates, which default to the
	// table's filterable fields.
	FacetFields []string
}

// Hit is one returned row.
type Hit struct {
	ID      string         `json:"_id"`
	Source  map[string]any `json:"_source"`
	Score   *float64       `json:"_score,omitempty"`
	Matches []Match        `json:"_matches,omitempty"`
}

// Result is the answer to one search call. Total comes from its own
// statement and may disagree with Hits if rows change in between.
type Result struct {
	Total        int64                    `json:"total"`
	Hits         []Hit                    `json:"hits"`
	Aggregations map[string]any           `json:"aggregations"`
	Facets       map[string][]FacetBucket `json:"facets"`
	MaxScore     *float64                 `json:"max_score"`
	Took         time.Duration            `json:"-"`

	// Ignored lists request fields that were dropped because the table
	// does not have them or does not allow them where they were used.
	Ignored []string `json:"ignored_fields,omitempty"`
}

// plan is a request resolved against one table.
type plan struct {
	where   query.Filter
	dsl     bool
	node    query.Node
	text    string // what match annotations look for
	filters Filters
	ignored []string
}

// Search runs the fetch, the count, the aggregations and the facets of req
// as separate statements over the current database.
func (e *Engine) Search(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	st, err := e.current()
	if err != nil {
		return nil, err
	}
	t, err := st.catalog.Table(req.Table)
	if err != nil {
		return nil, err
	}
	conn := st.handle

	p, err := e.plan(req, t, conn.Dialect())
	if err != nil {
		return nil, err
	}

	size, from := req.Size, req.From
	if size <= 0 {
		size = DefaultSize
	}
	if from < 0 {
		from = 0
	}

	rs, err := e.fetch(ctx, conn, t, p, req.Sort, size, from)
	if err != nil {
		return nil, err
	}

	total, err := e.count(ctx, conn, t, p)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Total:        total,
		Hits:         make([]Hit, 0, rs.Len()),
		Aggregations: map[string]any{},
		Ignored:      p.ignored,
	}

	var maxScore float64
	for _, row := range rs.Maps() {
		hit := Hit{ID: hitID(row, t), Source: row}
		if p.dsl {
			s := query.Score(row, p.node, t)
			hit.Score = &s
			maxScore = max(maxScore, s)
		}
		if p.text != "" {
			hit.Matches = FindMatches(rs.Columns, row, p.text)
		}
		res.Hits = append(res.Hits, hit)
	}
	if p.dsl {
		res.MaxScore = &maxScore
	}

	if len(req.Aggregations) > 0 {
		res.Aggregations, err = Aggregate(ctx, conn, t, req.Aggregations, p.filters)
		if err != nil {
			return nil, err
		}
	}

	candidates := req.FacetFields
	if len(candidates) == 0 {
		candidates = t.FilterableFields
	}
	res.Facets, err = Facets(ctx, conn, t, candidates, p.filters)
	if err != nil {
		return nil, err
	}

	res.Took = time.Since(start)

	e.log.DebugWith("search", map[string]any{
		"table":   t.Name,
		"dsl":     p.dsl,
		"total":   total,
		"hits":    len(res.Hits),
		"ignored": p.ignored,
		"took_ms": res.Took.Milliseconds(),
	})
	return res, nil
}

// plan picks DSL or plain mode and resolves filters. A query object the
// compiler does not support falls back to plain text when it carries a
// "query" string.
func (e *Engine) plan(req Request, t *schema.Table, d database.Dialect) (*plan, error) {
	p := &plan{filters: ResolveFilters(t, req.Filters)}

	switch q := req.Query.(type) {
	case nil:
	case string:
		e.plainText(p, t, d, q, req.Fields)
	case map[string]any:
		n, err := query.Parse(q)
		if err != nil {
			text, ok := q["query"].(string)
			if !errs.IsUnsupportedQuery(err) || !ok {
				return nil, err
			}
			e.log.DebugWith("unsupported query, falling back to plain text", map[string]any{"error": err.Error()})
			e.plainText(p, t, d, text, req.Fields)
			break
		}
		p.dsl = true
		p.node = n
		p.where = query.Compiler{Dialect: d}.Lower(n, t)
		p.ignored = append(p.ignored, p.where.Ignored...)
		if text, ok := query.ExtractText(n); ok {
			p.text = text
		}
	default:
		e.plainText(p, t, d, database.Text(q), req.Fields)
	}

	p.ignored = append(p.ignored, p.filters.Ignored...)
	return p, nil
}

// plainText matches text as a substring of every requested field, or of
// every field, leaving out the sensitive deny-list. With no column left the
// text puts no constraint on rows.
func (e *Engine) plainText(p *plan, t *schema.Table, d database.Dialect, text string, fields []string) {
	text = strings.TrimSpace(text)
	if text == "" || text == "*" {
		return
	}
	p.text = text

	var cols []string
	if len(fields) > 0 {
		for _, name := range fields {
			col, ok := t.Resolve(name)
			if !ok {
				p.ignored = append(p.ignored, name)
				continue
			}
			if !schema.IsSensitive(col) {
				cols = append(cols, col)
			}
		}
	} else {
		for _, col := range t.FieldNames() {
			if !schema.IsSensitive(col) {
				cols = append(cols, col)
			}
		}
	}

	if len(cols) == 0 {
		return
	}

	preds := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		preds = append(preds, d.CastLike(d.QuoteIdent(col)))
		args = append(args, "%"+text+"%")
	}
	p.where = query.Filter{SQL: strings.Join(preds, " OR "), Args: args}
}

func (e *Engine) fetch(ctx context.Context, conn database.Conn, t *schema.Table, p *plan, sorts []SortField, size, from int) (*database.ResultSet, error) {
	b := database.Select(t.Name, conn.Dialect()).WhereExpr(p.where.SQL, p.where.Args...)
	p.filters.apply(b, "")

	for _, s := range sorts {
		col, ok := t.Sortable(s.Field)
		if !ok {
			p.ignored = append(p.ignored, s.Field)
			continue
		}
		b.OrderBy(col, database.ParseDirection(s.Order))
	}

	sql, args, err := b.Limit(size).Offset(from).Build()
	if err != nil {
		return nil, err
	}
	e.log.DebugWith("fetch", map[string]any{"sql": sql})
	return conn.Query(ctx, sql, args...)
}

func (e *Engine) count(ctx context.Context, conn database.Conn, t *schema.Table, p *plan) (int64, error) {
	b := database.Select(t.Name, conn.Dialect()).
		Expr("COUNT(*)").
		WhereExpr(p.where.SQL, p.where.Args...)
	sql, args, err := p.filters.apply(b, "").Build()
	if err != nil {
		return 0, err
	}

	rs, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	n, ok := database.AsInt64(rs.Scalar())
	if !ok {
		return 0, errs.Newf(errs.ErrKindQueryFailed, "unexpected count value %v", rs.Scalar())
	}
	return n, nil
}

// hitID renders the row's first identifier column.
func hitID(row map[string]any, t *schema.Table) string {
	for _, f := range t.IDFields {
		if v, ok := row[f]; ok && v != nil {
			return database.Text(v)
		}
	}
	if v, ok := row["id"]; ok && v != nil {
		return database.Text(v)
	}
	return ""
}
