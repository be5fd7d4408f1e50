package database

import "context"

// Backend is the contract every driver implements. It is NOT safe for
// concurrent use: callers go through a Handle, which serializes every
// statement over the backend's single connection.
type Backend interface {
	// Dialect reports the SQL dialect the backend speaks.
	Dialect() Dialect

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error

	// Query executes a statement that returns rows. The statement uses '?'
	// placeholders; drivers rebind them to their native style.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...any) error

	Introspector
}

// Introspector is the catalog-facing half of a backend.
type Introspector interface {
	// ListTables returns user table names in a stable order. System and
	// internal tables are excluded.
	ListTables(ctx context.Context) ([]string, error)

	// Columns returns column metadata for table in declaration order.
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)

	// IndexedColumns returns the set of columns covered by any index on table.
	IndexedColumns(ctx context.Context, table string) (map[string]bool, error)

	// FullTextAvailable reports whether the backend can build full-text
	// structures at all.
	FullTextAvailable(ctx context.Context) bool

	// FullTextTables returns the base tables that already own a full-text
	// structure named "<table>_fts".
	FullTextTables(ctx context.Context) ([]string, error)

	// CreateFullText (re)builds the content-linked full-text structure for
	// table over fields. Identifiers are pre-validated by the caller.
	CreateFullText(ctx context.Context, table string, fields []string) error
}

// Conn is what the schema loader and the search engine talk to: a
// serialized, materializing view over one Backend.
type Conn interface {
	Dialect() Dialect
	Query(ctx context.Context, sql string, args ...any) (*ResultSet, error)
	Exec(ctx context.Context, sql string, args ...any) error
	Introspector
}

// Rows is an abstraction over a driver result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// ColumnInfo is the raw metadata a driver reports for one column.
type ColumnInfo struct {
	Name       string
	DataType   string // declared storage type, as reported by the backend
	Nullable   bool
	PrimaryKey bool
}

// FullTextTableName is the naming convention for full-text structures.
func FullTextTableName(table string) string {
	return table + "_fts"
}
