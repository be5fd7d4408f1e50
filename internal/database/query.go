package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/scout/internal/errs"
)

// validOps is the allowlist of comparison operators for Where.
// The operator position cannot be parameterized, so anything else is
// rejected.
var validOps = map[string]bool{
	"=":     true,
	"!=":    true,
	"<>":    true,
	"<":     true,
	">":     true,
	"<=":    true,
	">=":    true,
	"LIKE":  true,
	"ILIKE": true,
}

// SelectBuilder constructs a parameterized SELECT using a fluent API.
// Values are never interpolated into the SQL string, they always travel
// as args. Identifiers passed to Columns/Where/In/GroupBy/OrderBy must
// already be validated against the catalog; the builder only quotes them.
//
// Usage:
//
//	sql, args, err := database.Select("products", database.DialectSQLite).
//	    Columns("category").
//	    Expr("COUNT(*) AS count").
//	    WhereExpr(filter.SQL, filter.Args...).
//	    GroupBy("category").
//	    OrderByExpr("count", database.Desc).
//	    Limit(10).
//	    Build()
type SelectBuilder struct {
	table    string
	dialect  Dialect
	distinct bool
	columns  []string
	where    []whereClause
	groupBy  []string
	orderBy  []orderClause
	limit    *int
	offset   *int
}

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

// ParseDirection maps "desc" (any case) to Desc and everything else to Asc.
func ParseDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return Desc
	}
	return Asc
}

func (s SortDirection) String() string {
	if s == Desc {
		return "DESC"
	}
	return "ASC"
}

type whereClause struct {
	sql  string
	args []any
	err  error
}

type orderClause struct {
	expr string
	dir  SortDirection
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

// Distinct emits SELECT DISTINCT.
func (b *SelectBuilder) Distinct() *SelectBuilder {
	b.distinct = true
	return b
}

// Columns appends quoted column names to the select list.
// If neither Columns nor Expr is called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	for _, c := range cols {
		b.columns = append(b.columns, b.dialect.QuoteIdent(c))
	}
	return b
}

// Expr appends a raw select-list expression such as "COUNT(*) AS count".
func (b *SelectBuilder) Expr(exprs ...string) *SelectBuilder {
	b.columns = append(b.columns, exprs...)
	return b
}

// Where adds "column op ?". op must be in the operator allowlist.
// Multiple conditions are combined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	op = strings.ToUpper(strings.TrimSpace(op))
	if !validOps[op] {
		b.where = append(b.where, whereClause{
			err: errs.Newf(errs.ErrKindInvalidInput, "unsupported WHERE operator: %q", op),
		})
		return b
	}
	b.where = append(b.where, whereClause{
		sql:  fmt.Sprintf("%s %s ?", b.dialect.QuoteIdent(column), op),
		args: []any{value},
	})
	return b
}

// In adds "column IN (?, …)". An empty value list matches nothing.
func (b *SelectBuilder) In(column string, values []any) *SelectBuilder {
	if len(values) == 0 {
		b.where = append(b.where, whereClause{sql: "1 = 0"})
		return b
	}
	b.where = append(b.where, whereClause{
		sql:  fmt.Sprintf("%s IN (%s)", b.dialect.QuoteIdent(column), Placeholders(len(values))),
		args: values,
	})
	return b
}

// WhereExpr adds a pre-compiled predicate with its bound args. An empty
// expression is ignored.
func (b *SelectBuilder) WhereExpr(sql string, args ...any) *SelectBuilder {
	if strings.TrimSpace(sql) == "" {
		return b
	}
	b.where = append(b.where, whereClause{sql: sql, args: args})
	return b
}

// NotNull adds "column IS NOT NULL".
func (b *SelectBuilder) NotNull(column string) *SelectBuilder {
	b.where = append(b.where, whereClause{sql: b.dialect.QuoteIdent(column) + " IS NOT NULL"})
	return b
}

// GroupBy appends quoted GROUP BY columns.
func (b *SelectBuilder) GroupBy(cols ...string) *SelectBuilder {
	for _, c := range cols {
		b.groupBy = append(b.groupBy, b.dialect.QuoteIdent(c))
	}
	return b
}

// OrderBy appends an ORDER BY clause for the given column and direction.
func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.orderBy = append(b.orderBy, orderClause{b.dialect.QuoteIdent(column), dir})
	return b
}

// OrderByExpr orders by a raw expression or select-list alias.
func (b *SelectBuilder) OrderByExpr(expr string, dir SortDirection) *SelectBuilder {
	b.orderBy = append(b.orderBy, orderClause{expr, dir})
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Offset sets the number of rows to skip (for pagination).
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

// Build produces the final SQL string and argument slice, in clause order.
func (b *SelectBuilder) Build() (string, []any, error) {
	cols := "*"
	if len(b.columns) > 0 {
		cols = strings.Join(b.columns, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.dialect.QuoteIdent(b.table))

	var args []any

	if len(b.where) > 0 {
		parts := make([]string, 0, len(b.where))
		for _, w := range b.where {
			if w.err != nil {
				return "", nil, w.err
			}
			parts = append(parts, w.sql)
			args = append(args, w.args...)
		}
		sb.WriteString(" WHERE ")
		if len(parts) == 1 {
			sb.WriteString(parts[0])
		} else {
			sb.WriteString("(" + strings.Join(parts, ") AND (") + ")")
		}
	}

	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBy, ", "))
	}

	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			parts[i] = o.expr + " " + o.dir.String()
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if b.limit != nil {
		sb.WriteString(" LIMIT ?")
		args = append(args, *b.limit)
	}

	if b.offset != nil {
		if b.limit == nil {
			return "", nil, errs.New(errs.ErrKindInvalidInput, "offset requires a limit")
		}
		sb.WriteString(" OFFSET ?")
		args = append(args, *b.offset)
	}

	return sb.String(), args, nil
}
