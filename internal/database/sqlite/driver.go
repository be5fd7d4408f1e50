// Package sqlite provides the SQLite implementation of database.Backend on
// top of mattn/go-sqlite3. Connections opened through it carry a REGEXP
// function so regexp queries compile to the same SQL on every backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver name registered by this package.
const DriverName = "sqlite3_scout"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", regexpMatch, true)
		},
	})
}

var patterns sync.Map // string -> *regexp.Regexp

// regexpMatch backs "value REGEXP pattern", which SQLite calls as
// regexp(pattern, value).
func regexpMatch(pattern string, value any) (bool, error) {
	var s string
	switch v := value.(type) {
	case nil:
		return false, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}

	re, ok := patterns.Load(pattern)
	if !ok {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return false, err
		}
		re, _ = patterns.LoadOrStore(pattern, compiled)
	}
	return re.(*regexp.Regexp).MatchString(s), nil
}

// Driver is the SQLite backend. It owns exactly one connection and is not
// safe for concurrent use on its own; wrap it in a database.Handle.
type Driver struct {
	db *sql.DB
}

var _ database.Backend = (*Driver)(nil)

// New opens the database file named by cfg.DSN and pings it.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := sql.Open(DriverName, cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	// One connection, kept for the lifetime of the handle, so in-memory
	// databases survive between statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	d := &Driver{db: db}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := d.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Opening an arbitrary file succeeds lazily; reading the catalog is the
	// first statement that notices a corrupt or non-database file.
	if _, err := d.ListTables(pingCtx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "cannot read sqlite catalog", err)
	}

	return d, nil
}

// --- database.Backend implementation ---

func (d *Driver) Dialect() database.Dialect {
	return database.DialectSQLite
}

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() error {
	if err := d.db.Close(); err != nil {
		return mapError(err, "close failed")
	}
	return nil
}

func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return database.SQLRows(rows), nil
}

func (d *Driver) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "exec failed")
	}
	return nil
}

// ListTables returns user tables, excluding sqlite internals and the
// shadow tables that back full-text structures.
func (d *Driver) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return nil, mapError(err, "failed to list tables")
	}
	names, err := database.CollectStrings(rows)
	if err != nil {
		return nil, mapError(err, "failed to scan table names")
	}

	tables := make([]string, 0, len(names))
	for _, n := range names {
		if isFullTextShadow(n) {
			continue
		}
		tables = append(tables, n)
	}
	return tables, nil
}

func isFullTextShadow(name string) bool {
	return strings.HasSuffix(name, "_fts") || strings.Contains(name, "_fts_")
}

func (d *Driver) Columns(ctx context.Context, table string) ([]database.ColumnInfo, error) {
	const q = `
		SELECT name, type, "notnull", pk
		FROM pragma_table_info(?)
		ORDER BY cid`

	rows, err := d.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	var cols []database.ColumnInfo
	for rows.Next() {
		var (
			c       database.ColumnInfo
			notNull int
			pk      int
		)
		if err := rows.Scan(&c.Name, &c.DataType, &notNull, &pk); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		c.Nullable = notNull == 0
		c.PrimaryKey = pk > 0
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
		SELECT DISTINCT ii.name
		FROM pragma_index_list(?) AS il,
		     pragma_index_info(il.name) AS ii
		WHERE ii.name IS NOT NULL`

	rows, err := d.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to list indexes")
	}
	names, err := database.CollectStrings(rows)
	if err != nil {
		return nil, mapError(err, "failed to scan index columns")
	}

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

// FullTextAvailable reports whether this build of SQLite has FTS5.
func (d *Driver) FullTextAvailable(ctx context.Context) bool {
	var used int
	err := d.db.QueryRowContext(ctx, `SELECT sqlite_compileoption_used('ENABLE_FTS5')`).Scan(&used)
	return err == nil && used == 1
}

func (d *Driver) FullTextTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name LIKE '%\_fts' ESCAPE '\'`

	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return nil, mapError(err, "failed to detect full-text tables")
	}
	names, err := database.CollectStrings(rows)
	if err != nil {
		return nil, mapError(err, "failed to scan full-text tables")
	}

	tables := make([]string, 0, len(names))
	for _, n := range names {
		tables = append(tables, strings.TrimSuffix(n, "_fts"))
	}
	sort.Strings(tables)
	return tables, nil
}

// CreateFullText builds an external-content FTS5 table over fields and
// populates it from the base table. The FTS table stores only the index,
// never a copy of the rows.
func (d *Driver) CreateFullText(ctx context.Context, table string, fields []string) error {
	if !d.FullTextAvailable(ctx) {
		return errs.New(errs.ErrKindBackendUnavailable, "sqlite was built without FTS5")
	}

	dialect := database.DialectSQLite
	fts := dialect.QuoteIdent(database.FullTextTableName(table))

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = dialect.QuoteIdent(f)
	}

	stmts := []string{
		"DROP TABLE IF EXISTS " + fts,
		fmt.Sprintf("CREATE VIRTUAL TABLE %s USING fts5(%s, content=%s, content_rowid='rowid')",
			fts, strings.Join(cols, ", "), quoteLiteral(table)),
		fmt.Sprintf("INSERT INTO %s(%s) VALUES('rebuild')", fts, fts),
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "failed to begin full-text build")
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return mapError(err, "failed to build full-text table")
		}
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "failed to commit full-text build")
	}
	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// --- error mapping ---

// mapError translates go-sqlite3 errors into *errs.Error. A missing,
// corrupt or locked database file is a connection failure.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrCorrupt,
			sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrPerm, sqlite3.ErrAuth:
			return errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("%s: %s", msg, sqliteErr.Error()), err)
		default:
			return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("%s: %s", msg, sqliteErr.Error()), err)
		}
	}

	if errors.Is(err, sql.ErrConnDone) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
