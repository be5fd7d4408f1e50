// Package mysql provides the MySQL implementation of database.Backend on
// top of go-sql-driver/mysql, restricted to a single connection.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
)

// Driver is the MySQL backend. It is not safe for concurrent use on its
// own; wrap it in a database.Handle.
type Driver struct {
	db *sql.DB
}

var _ database.Backend = (*Driver)(nil)

// New opens one MySQL connection using cfg and pings it.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	mcfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	mcfg.ParseTime = true
	if cfg.ConnectTimeout > 0 {
		mcfg.Timeout = cfg.ConnectTimeout
	}

	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

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

	return d, nil
}

// --- database.Backend implementation ---

func (d *Driver) Dialect() database.Dialect {
	return database.DialectMySQL
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

func (d *Driver) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	return d.fetchStrings(ctx, "failed to list tables", q)
}

func (d *Driver) Columns(ctx context.Context, table string) ([]database.ColumnInfo, error) {
	const q = `
		SELECT column_name,
		       data_type,
		       is_nullable = 'YES',
		       column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name   = ?
		ORDER BY ordinal_position`

	rows, err := d.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	var cols []database.ColumnInfo
	for rows.Next() {
		var (
			c         database.ColumnInfo
			columnKey string
		)
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &columnKey); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		c.PrimaryKey = columnKey == "PRI"
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
		SELECT DISTINCT column_name
		FROM information_schema.statistics
		WHERE table_schema = DATABASE()
		  AND table_name   = ?`

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

// FullTextAvailable is true: InnoDB supports FULLTEXT indexes.
func (d *Driver) FullTextAvailable(context.Context) bool {
	return true
}

func (d *Driver) FullTextTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT DISTINCT table_name
		FROM information_schema.statistics
		WHERE table_schema = DATABASE()
		  AND index_type   = 'FULLTEXT'
		  AND index_name   = CONCAT(table_name, '_fts')
		ORDER BY table_name`

	return d.fetchStrings(ctx, "failed to detect full-text indexes", q)
}

// CreateFullText (re)builds a FULLTEXT index named "<table>_fts".
func (d *Driver) CreateFullText(ctx context.Context, table string, fields []string) error {
	dialect := database.DialectMySQL
	name := database.FullTextTableName(table)

	var exists int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.statistics
		WHERE table_schema = DATABASE()
		  AND table_name   = ?
		  AND index_name   = ?`, table, name).Scan(&exists)
	if err != nil {
		return mapError(err, "failed to inspect full-text index")
	}

	if exists > 0 {
		stmt := fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", dialect.QuoteIdent(table), dialect.QuoteIdent(name))
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return mapError(err, "failed to drop full-text index")
		}
	}

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = dialect.QuoteIdent(f)
	}
	stmt := fmt.Sprintf("CREATE FULLTEXT INDEX %s ON %s (%s)",
		dialect.QuoteIdent(name), dialect.QuoteIdent(table), strings.Join(cols, ", "))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return mapError(err, "failed to build full-text index")
	}
	return nil
}

func (d *Driver) fetchStrings(ctx context.Context, errMsg, q string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError(err, errMsg)
	}
	list, err := database.CollectStrings(rows)
	if err != nil {
		return nil, mapError(err, errMsg)
	}
	return list, nil
}

// --- error mapping ---

// mapError translates go-sql-driver/mysql errors into *errs.Error.
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

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case 1044, 1045, 1142, 1143:
		return errs.ErrKindPermissionDenied
	case 1040, 1046, 1049, 1203, 2002, 2003, 2006, 2013:
		return errs.ErrKindConnectionFailed
	case 1146:
		return errs.ErrKindNotFound
	case 1205, 3024:
		return errs.ErrKindTimeout
	default:
		return errs.ErrKindQueryFailed
	}
}
