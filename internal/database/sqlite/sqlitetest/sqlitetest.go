// Package sqlitetest opens throwaway in-memory SQLite handles for tests.
package sqlitetest

import (
	"context"
	"testing"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/database/sqlite"
	"github.com/stretchr/testify/require"
)

// Open returns a Handle over a fresh in-memory database after running
// stmts. The handle is closed when the test ends.
func Open(t testing.TB, stmts ...string) *database.Handle {
	t.Helper()

	ctx := context.Background()
	backend, err := sqlite.New(ctx, database.DefaultConfig(database.DriverSQLite, ":memory:"))
	require.NoError(t, err)

	h := database.NewHandle(backend)
	t.Cleanup(func() { _ = h.Close() })

	for _, s := range stmts {
		require.NoError(t, h.Exec(ctx, s), s)
	}
	return h
}

// Products is a small catalog table used across package tests:
// five rows, three of them Electronics.
var Products = []string{
	`CREATE TABLE products (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		category TEXT,
		color TEXT,
		price REAL,
		classification TEXT
	)`,
	`INSERT INTO products (name, description, category, color, price, classification) VALUES
		('Laptop', 'Fast laptop with a bright screen', 'Electronics', 'red', 999.5, 'unclassified'),
		('Phone', 'Compact phone with great battery', 'Electronics', 'blue', 599, 'Secret'),
		('Headphones', 'Noise cancelling headphones', 'Electronics', 'red', 199, 'unclassified'),
		('Desk', 'Solid oak desk', 'Furniture', 'red', 350, NULL),
		('Chair', 'Ergonomic office chair', 'Furniture', 'blue', 150, 'public')`,
}
