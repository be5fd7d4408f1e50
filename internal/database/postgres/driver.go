// Package postgres provides the PostgreSQL implementation of
// database.Backend over a single pgx connection.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
)

// Driver is the PostgreSQL backend. It holds one *pgx.Conn, which is not
// safe for concurrent use; wrap the driver in a database.Handle.
type Driver struct {
	conn *pgx.Conn
}

var _ database.Backend = (*Driver)(nil)

// New connects to PostgreSQL using cfg and pings the server.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	connCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, mapError(err, "failed to connect")
	}

	d := &Driver{conn: conn}

	if err := d.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	return d, nil
}

// --- database.Backend implementation ---

func (d *Driver) Dialect() database.Dialect {
	return database.DialectPostgres
}

// Ping verifies the server is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.conn.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close terminates the connection.
func (d *Driver) Close() error {
	if err := d.conn.Close(context.Background()); err != nil {
		return mapError(err, "close failed")
	}
	return nil
}

// Query rebinds '?' placeholders to $n and executes sql.
func (d *Driver) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := d.conn.Query(ctx, database.DialectPostgres.Rebind(sql), args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgxRows{rows: rows}, nil
}

func (d *Driver) Exec(ctx context.Context, sql string, args ...any) error {
	if _, err := d.conn.Exec(ctx, database.DialectPostgres.Rebind(sql), args...); err != nil {
		return mapError(err, "exec failed")
	}
	return nil
}

// ListTables returns base tables in the current schema.
func (d *Driver) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	return d.fetchStrings(ctx, "failed to list tables", q)
}

func (d *Driver) Columns(ctx context.Context, table string) ([]database.ColumnInfo, error) {
	const q = `
		SELECT c.column_name,
		       c.data_type,
		       c.is_nullable = 'YES',
		       EXISTS (
		           SELECT 1
		           FROM information_schema.table_constraints tc
		           JOIN information_schema.key_column_usage kcu
		             ON tc.constraint_name = kcu.constraint_name
		            AND tc.table_schema    = kcu.table_schema
		           WHERE tc.constraint_type = 'PRIMARY KEY'
		             AND tc.table_schema    = c.table_schema
		             AND tc.table_name      = c.table_name
		             AND kcu.column_name    = c.column_name
		       )
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema()
		  AND c.table_name   = $1
		ORDER BY c.ordinal_position`

	rows, err := d.conn.Query(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	var cols []database.ColumnInfo
	for rows.Next() {
		var c database.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &c.PrimaryKey); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}
	if len(cols) == 0 {
		return nil, errs.TableNotFound(table)
	}
	return cols, nil
}

func (d *Driver) IndexedColumns(ctx context.Context, table string) (map[string]bool, error) {
	const q = `
		SELECT DISTINCT a.attname
		FROM pg_index i
		JOIN pg_class c      ON c.oid = i.indrelid
		JOIN pg_namespace n  ON n.oid = c.relnamespace
		JOIN pg_attribute a  ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
		WHERE n.nspname = current_schema()
		  AND c.relname = $1`

	names, err := d.fetchStrings(ctx, "failed to list indexes", q, table)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

// FullTextAvailable is always true: tsvector and GIN ship with the server.
func (d *Driver) FullTextAvailable(context.Context) bool {
	return true
}

func (d *Driver) FullTextTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT DISTINCT tablename
		FROM pg_indexes
		WHERE schemaname = current_schema()
		  AND indexname  = tablename || '_fts'
		ORDER BY tablename`

	return d.fetchStrings(ctx, "failed to detect full-text indexes", q)
}

// CreateFullText (re)builds a GIN index over the tsvector of fields. The
// index references the table's own columns, so nothing is copied.
func (d *Driver) CreateFullText(ctx context.Context, table string, fields []string) error {
	dialect := database.DialectPostgres
	idx := dialect.QuoteIdent(database.FullTextTableName(table))

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("coalesce(%s::text, '')", dialect.QuoteIdent(f))
	}
	doc := strings.Join(parts, " || ' ' || ")

	stmts := []string{
		"DROP INDEX IF EXISTS " + idx,
		fmt.Sprintf("CREATE INDEX %s ON %s USING GIN (to_tsvector('simple', %s))",
			idx, dialect.QuoteIdent(table), doc),
	}

	tx, err := d.conn.Begin(ctx)
	if err != nil {
		return mapError(err, "failed to begin full-text build")
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return mapError(err, "failed to build full-text index")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "failed to commit full-text build")
	}
	return nil
}

// fetchStrings runs a query returning a single text column.
func (d *Driver) fetchStrings(ctx context.Context, errMsg, q string, args ...any) ([]string, error) {
	rows, err := d.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, mapError(err, errMsg)
	}
	defer rows.Close()

	var list []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, mapError(err, errMsg)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, errMsg)
	}
	return list, nil
}

// --- pgx type wrappers ---

// pgxRows wraps pgx.Rows to satisfy database.Rows. Values are decoded
// with pgx's default type map and normalized to plain Go types.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool { return r.rows.Next() }
func (r *pgxRows) Close()     { r.rows.Close() }
func (r *pgxRows) Err() error { return r.rows.Err() }

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}

func (r *pgxRows) Scan(dest ...any) error {
	vals, err := r.rows.Values()
	if err != nil {
		return err
	}
	if len(vals) != len(dest) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(vals))
	}
	for i, v := range vals {
		p, ok := dest[i].(*any)
		if !ok {
			return fmt.Errorf("scan: destination %d must be *any", i)
		}
		*p = normalize(v)
	}
	return nil
}

// normalize converts pgx value types that do not serialize naturally.
func normalize(v any) any {
	switch t := v.(type) {
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(t).String()
	default:
		return v
	}
}

// --- error mapping ---

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := errs.ErrKindQueryFailed
		switch {
		// Class 08: connection exceptions
		case strings.HasPrefix(pgErr.Code, "08"):
			kind = errs.ErrKindConnectionFailed
		// Class 28: invalid authorization
		case strings.HasPrefix(pgErr.Code, "28"):
			kind = errs.ErrKindPermissionDenied
		// 42P01: undefined_table
		case pgErr.Code == "42P01":
			kind = errs.ErrKindNotFound
		}
		return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	// Fallthrough: connection-level errors (TLS, network, auth)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
