package database

import (
	"regexp"
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour emitted by the query builder and the
// query compiler. All generated SQL uses '?' placeholders; Postgres
// drivers call Rebind before executing.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
	DialectMySQL
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

var bareIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reserved holds keywords that must be quoted when used as identifiers in
// any of the supported dialects.
var reserved = map[string]bool{
	"all": true, "and": true, "as": true, "asc": true, "between": true,
	"by": true, "case": true, "check": true, "column": true, "create": true,
	"cross": true, "default": true, "delete": true, "desc": true,
	"distinct": true, "drop": true, "else": true, "end": true,
	"exists": true, "from": true, "full": true, "group": true,
	"having": true, "in": true, "index": true, "inner": true,
	"insert": true, "into": true, "is": true, "join": true, "key": true,
	"left": true, "like": true, "limit": true, "match": true, "not": true,
	"null": true, "offset": true, "on": true, "or": true, "order": true,
	"outer": true, "primary": true, "range": true, "references": true,
	"right": true, "select": true, "set": true, "table": true,
	"then": true, "to": true, "union": true, "unique": true,
	"update": true, "user": true, "using": true, "values": true,
	"when": true, "where": true, "with": true,
}

// QuoteIdent renders an identifier that was already validated against the
// live catalog. Simple non-reserved names stay bare so generated SQL stays
// readable; anything else is quoted for the dialect. Postgres folds bare
// names to lower case, so mixed-case names are always quoted there.
func (d Dialect) QuoteIdent(name string) string {
	if bareIdent.MatchString(name) && !reserved[strings.ToLower(name)] {
		if d != DialectPostgres || name == strings.ToLower(name) {
			return name
		}
	}
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CastText renders expr converted to the dialect's text type.
func (d Dialect) CastText(expr string) string {
	if d == DialectMySQL {
		return "CAST(" + expr + " AS CHAR)"
	}
	return "CAST(" + expr + " AS TEXT)"
}

// Like renders a case-insensitive substring/pattern predicate on column
// with one placeholder. SQLite and MySQL LIKE are already case-insensitive
// for the default collations; Postgres needs ILIKE over a text cast.
func (d Dialect) Like(column string) string {
	if d == DialectPostgres {
		return d.CastText(column) + " ILIKE ?"
	}
	return column + " LIKE ?"
}

// CastLike is Like applied to the text rendering of column, used where
// the column type is not known to be textual.
func (d Dialect) CastLike(column string) string {
	if d == DialectPostgres {
		return d.CastText(column) + " ILIKE ?"
	}
	return d.CastText(column) + " LIKE ?"
}

// Regexp renders the dialect's regular-expression match on column.
func (d Dialect) Regexp(column string) string {
	if d == DialectPostgres {
		return d.CastText(column) + " ~ ?"
	}
	return column + " REGEXP ?"
}

// Rebind rewrites '?' placeholders into the dialect's native style.
// Question marks inside quoted literals or identifiers are left alone.
func (d Dialect) Rebind(sql string) string {
	if d != DialectPostgres || !strings.Contains(sql, "?") {
		return sql
	}

	var sb strings.Builder
	sb.Grow(len(sql) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Placeholders returns n comma-separated '?' placeholders.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
