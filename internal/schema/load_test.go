package schema

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/database/sqlite/sqlitetest"
	"github.com/koustreak/scout/internal/errs"
	"github.com/koustreak/scout/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyConn fails selected probes on top of a real connection.
type flakyConn struct {
	database.Conn
	failTables  bool
	failIndexes bool
	failQuery   string // fail statements containing this fragment
}

var errFlaky = errors.New("flaky backend")

func (c *flakyConn) ListTables(ctx context.Context) ([]string, error) {
	if c.failTables {
		return nil, errFlaky
	}
	return c.Conn.ListTables(ctx)
}

func (c *flakyConn) IndexedColumns(ctx context.Context, table string) (map[string]bool, error) {
	if c.failIndexes {
		return nil, errFlaky
	}
	return c.Conn.IndexedColumns(ctx, table)
}

func (c *flakyConn) Query(ctx context.Context, sql string, args ...any) (*database.ResultSet, error) {
	if c.failQuery != "" && strings.Contains(sql, c.failQuery) {
		return nil, errFlaky
	}
	return c.Conn.Query(ctx, sql, args...)
}

func TestLoad_Products(t *testing.T) {
	h := sqlitetest.Open(t, append(sqlitetest.Products,
		`CREATE INDEX idx_products_category ON products(category)`,
		`CREATE TABLE notes (body TEXT)`,
	)...)

	cat, err := Load(context.Background(), h, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"notes", "products"}, cat.Names)

	products, err := cat.Table("products")
	require.NoError(t, err)
	assert.Equal(t, int64(5), products.RowCount)
	assert.Equal(t, []string{"id", "name", "description", "category", "color", "price", "classification"}, products.FieldNames())
	assert.Equal(t, []string{"name", "description", "category", "color", "price"}, products.SearchableFields)
	assert.Contains(t, products.FilterableFields, "classification")
	assert.Contains(t, products.IDFields, "id")
	assert.Equal(t, "Secret", products.Classification)
	assert.Empty(t, products.Degraded)

	category, ok := products.Field("CATEGORY")
	require.True(t, ok)
	assert.Equal(t, "category", category.Name)
	assert.True(t, category.Indexed)
	assert.ElementsMatch(t, []string{"Electronics", "Furniture"}, category.SampleValues)

	name, _ := products.Field("name")
	assert.Len(t, name.SampleValues, MaxSamples)
	assert.False(t, name.Indexed)

	notes, err := cat.Table("notes")
	require.NoError(t, err)
	assert.Equal(t, int64(0), notes.RowCount)
	assert.Equal(t, "None", notes.Classification)
	body, _ := notes.Field("body")
	assert.Empty(t, body.SampleValues)

	assert.Equal(t, int64(5), cat.TotalRows())

	_, err = cat.Table("missing")
	assert.True(t, errs.IsNotFound(err))
}

func TestLoad_Idempotent(t *testing.T) {
	h := sqlitetest.Open(t, sqlitetest.Products...)
	ctx := context.Background()

	first, err := Load(ctx, h, nil)
	require.NoError(t, err)
	second, err := Load(ctx, h, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Names, second.Names)
	assert.Equal(t, first.Tables, second.Tables)
	assert.NotSame(t, first.Tables["products"], second.Tables["products"])
}

func TestLoad_DegradedProbes(t *testing.T) {
	h := sqlitetest.Open(t, sqlitetest.Products...)
	conn := &flakyConn{Conn: h, failIndexes: true, failQuery: "DISTINCT classification"}

	cat, err := Load(context.Background(), conn, nil)
	require.NoError(t, err)

	products, err := cat.Table("products")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", products.Classification)
	require.Len(t, products.Degraded, 3)
	assert.True(t, strings.HasPrefix(products.Degraded[0], "indexes:"))
	assert.Contains(t, products.Degraded[1], "samples(classification)")
	assert.True(t, strings.HasPrefix(products.Degraded[2], "classification:"))

	// The rest of the table is still described.
	assert.Equal(t, int64(5), products.RowCount)
	assert.Contains(t, products.SearchableFields, "name")
}

func TestLoad_ListTablesFailure(t *testing.T) {
	h := sqlitetest.Open(t)
	_, err := Load(context.Background(), &flakyConn{Conn: h, failTables: true}, nil)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestLoad_ClosedHandle(t *testing.T) {
	h := sqlitetest.Open(t)
	require.NoError(t, h.Close())

	_, err := Load(context.Background(), h, nil)
	assert.True(t, errs.IsClosed(err))
}
