package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/koustreak/scout/internal/config"
	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/database/sqlite"
	"github.com/koustreak/scout/internal/database/sqlite/sqlitetest"
	"github.com/koustreak/scout/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// productsDB writes the products fixture to a SQLite file and returns a
// config pointing at it.
func productsDB(t *testing.T) *config.Config {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "products.db")

	backend, err := sqlite.New(ctx, database.DefaultConfig(database.DriverSQLite, path))
	require.NoError(t, err)
	h := database.NewHandle(backend)
	for _, s := range sqlitetest.Products {
		require.NoError(t, h.Exec(ctx, s))
	}
	require.NoError(t, h.Close())

	cfg := config.Default()
	cfg.Database.DSN = path
	cfg.Log.Level = "error"
	return cfg
}

func TestRunSchema(t *testing.T) {
	cfg := productsDB(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runSchema(ctx, &out, cfg, ""))
	var cat map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &cat))
	assert.Equal(t, []any{"products"}, cat["table_names"])

	out.Reset()
	require.NoError(t, runSchema(ctx, &out, cfg, "products"))
	var table map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &table))
	assert.Equal(t, "products", table["name"])
	assert.Equal(t, float64(5), table["row_count"])

	err := runSchema(ctx, &out, cfg, "nope")
	assert.True(t, errs.IsNotFound(err))
}

func TestRunSearch(t *testing.T) {
	cfg := productsDB(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runSearch(ctx, &out, cfg, "products", searchOptions{
		query:   "desk",
		fields:  "name, description",
		filters: `{"category": "Furniture"}`,
		size:    10,
	}))
	var res map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, float64(1), res["total"])

	out.Reset()
	require.NoError(t, runSearch(ctx, &out, cfg, "products", searchOptions{
		dsl:  `{"term": {"color": "blue"}}`,
		size: 1,
	}))
	res = nil
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, float64(2), res["total"])
	assert.Len(t, res["hits"], 1)

	err := runSearch(ctx, &out, cfg, "products", searchOptions{dsl: "{", size: 1})
	assert.True(t, errs.IsInvalidInput(err))

	err = runSearch(ctx, &out, cfg, "products", searchOptions{filters: "[", size: 1})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Cleanup(func() { configPath, driverFlag, dsnFlag, logLevel = "", "", "", "" })

	driverFlag, dsnFlag, logLevel = "MySQL", "user:pass@tcp(localhost:3306)/intel", "debug"
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/intel", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)

	driverFlag = "oracle"
	_, err = loadConfig()
	assert.True(t, errs.IsInvalidInput(err))
}
