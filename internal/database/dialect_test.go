package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		in      string
		want    string
	}{
		{"simple sqlite", DialectSQLite, "category", "category"},
		{"reserved sqlite", DialectSQLite, "order", `"order"`},
		{"space sqlite", DialectSQLite, "unit price", `"unit price"`},
		{"quote escaped", DialectSQLite, `we"ird`, `"we""ird"`},
		{"mixed case sqlite stays bare", DialectSQLite, "Category", "Category"},
		{"mixed case postgres quoted", DialectPostgres, "Category", `"Category"`},
		{"lower postgres bare", DialectPostgres, "category", "category"},
		{"reserved mysql", DialectMySQL, "key", "`key`"},
		{"backtick escaped mysql", DialectMySQL, "a`b", "`a``b`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.QuoteIdent(tt.in))
		})
	}
}

func TestDialect_Predicates(t *testing.T) {
	assert.Equal(t, "title LIKE ?", DialectSQLite.Like("title"))
	assert.Equal(t, "CAST(title AS TEXT) ILIKE ?", DialectPostgres.Like("title"))
	assert.Equal(t, "title LIKE ?", DialectMySQL.Like("title"))

	assert.Equal(t, "CAST(price AS TEXT) LIKE ?", DialectSQLite.CastLike("price"))
	assert.Equal(t, "CAST(price AS CHAR) LIKE ?", DialectMySQL.CastLike("price"))

	assert.Equal(t, "code REGEXP ?", DialectSQLite.Regexp("code"))
	assert.Equal(t, "CAST(code AS TEXT) ~ ?", DialectPostgres.Regexp("code"))
}

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		in      string
		want    string
	}{
		{"sqlite untouched", DialectSQLite, "a = ? AND b = ?", "a = ? AND b = ?"},
		{"postgres numbered", DialectPostgres, "a = ? AND b IN (?,?)", "a = $1 AND b IN ($2,$3)"},
		{"literal kept", DialectPostgres, "a = '?' AND b = ?", "a = '?' AND b = $1"},
		{"doubled quote", DialectPostgres, "a = 'it''s?' AND b = ?", "a = 'it''s?' AND b = $1"},
		{"quoted ident kept", DialectPostgres, `"what?" = ?`, `"what?" = $1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.Rebind(tt.in))
		})
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?,?,?", Placeholders(3))
}

func TestDriverDialect(t *testing.T) {
	assert.Equal(t, DialectSQLite, DriverSQLite.Dialect())
	assert.Equal(t, DialectPostgres, DriverPostgres.Dialect())
	assert.Equal(t, DialectMySQL, DriverMySQL.Dialect())
	assert.Equal(t, "postgres", DialectPostgres.String())
}
