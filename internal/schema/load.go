package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
	"github.com/koustreak/scout/internal/logger"
)

// MaxSamples caps the sampled values kept per field.
const MaxSamples = 5

// Load introspects every user table reachable through conn and returns a
// fresh Catalog. Only failing to enumerate tables is fatal; everything
// per table degrades and is recorded in Table.Degraded. Load has no side
// effects on the database, so two loads over unchanged data yield equal
// tables.
func Load(ctx context.Context, conn database.Conn, log *logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("schema")
	start := time.Now()

	names, err := conn.ListTables(ctx)
	if err != nil {
		if errs.IsClosed(err) || errs.IsTimeout(err) {
			return nil, err
		}
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to list tables", err)
	}

	cat := &Catalog{
		Names:          make([]string, 0, len(names)),
		Tables:         make(map[string]*Table, len(names)),
		FullTextTables: []string{},
		LoadedAt:       start.UTC(),
	}

	fts := fullTextTables(ctx, conn)
	if fts.Degraded() {
		cat.Degraded = append(cat.Degraded, "fts_tables: "+fts.Err.Error())
	}
	ftsSet := make(map[string]bool, len(fts.Value))
	for _, n := range fts.Value {
		ftsSet[n] = true
	}
	cat.FullTextTables = fts.Value
	cat.FullTextAvailable = conn.FullTextAvailable(ctx)

	for _, name := range names {
		t := describeTable(ctx, conn, name)
		t.FullText = ftsSet[name]
		for _, note := range t.Degraded {
			log.With().Str("table", name).Logger().Warn("probe degraded: " + note)
		}
		cat.Names = append(cat.Names, name)
		cat.Tables[name] = t
	}

	log.InfoWith("catalog loaded", map[string]any{
		"tables":  len(cat.Names),
		"fts":     cat.FullTextAvailable,
		"took_ms": time.Since(start).Milliseconds(),
	})
	return cat, nil
}

// describeTable builds one Table, degrading instead of failing.
func describeTable(ctx context.Context, conn database.Conn, name string) *Table {
	cols, err := conn.Columns(ctx, name)
	if err != nil {
		t := NewTable(name, 0, []Field{})
		t.Degraded = []string{"columns: " + err.Error()}
		return t
	}

	var notes []string

	count := rowCount(ctx, conn, name)
	if count.Degraded() {
		notes = append(notes, "row_count: "+count.Err.Error())
	}

	indexed := indexedColumns(ctx, conn, name)
	if indexed.Degraded() {
		notes = append(notes, "indexes: "+indexed.Err.Error())
	}

	limit := int(min(int64(MaxSamples), count.Value))

	fields := make([]Field, 0, len(cols))
	for _, col := range cols {
		samples := sampleValues(ctx, conn, name, col.Name, limit)
		if samples.Degraded() {
			notes = append(notes, fmt.Sprintf("samples(%s): %v", col.Name, samples.Err))
		}
		fields = append(fields, Classify(col, samples, Ok(indexed.Value[col.Name])))
	}

	t := NewTable(name, count.Value, fields)

	ceiling := classificationCeiling(ctx, conn, t)
	if ceiling.Degraded() {
		notes = append(notes, "classification: "+ceiling.Err.Error())
	}
	t.Classification = ceiling.Value
	t.Degraded = notes
	return t
}

func rowCount(ctx context.Context, conn database.Conn, table string) Probe[int64] {
	sql, args, err := database.Select(table, conn.Dialect()).Expr("COUNT(*)").Build()
	if err != nil {
		return Failed[int64](0, err)
	}
	rs, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return Failed[int64](0, err)
	}
	n, ok := database.AsInt64(rs.Scalar())
	if !ok {
		return Failed[int64](0, fmt.Errorf("unexpected count value %v", rs.Scalar()))
	}
	return Ok(n)
}

func indexedColumns(ctx context.Context, conn database.Conn, table string) Probe[map[string]bool] {
	set, err := conn.IndexedColumns(ctx, table)
	if err != nil {
		return Failed(map[string]bool{}, err)
	}
	return Ok(set)
}

func fullTextTables(ctx context.Context, conn database.Conn) Probe[[]string] {
	names, err := conn.FullTextTables(ctx)
	if err != nil {
		return Failed([]string{}, err)
	}
	if names == nil {
		names = []string{}
	}
	return Ok(names)
}

// sampleValues fetches up to limit distinct, non-null, non-empty values.
func sampleValues(ctx context.Context, conn database.Conn, table, column string, limit int) Probe[[]string] {
	if limit <= 0 {
		return Ok([]string{})
	}

	d := conn.Dialect()
	sql, args, err := database.Select(table, d).
		Distinct().
		Columns(column).
		NotNull(column).
		WhereExpr(d.CastText(d.QuoteIdent(column)) + " <> ''").
		Limit(limit).
		Build()
	if err != nil {
		return Failed([]string{}, err)
	}

	rs, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return Failed([]string{}, err)
	}

	values := make([]string, 0, rs.Len())
	for _, row := range rs.Values {
		values = append(values, database.Text(row[0]))
	}
	return Ok(values)
}

// classificationCeiling scans DISTINCT values of every classification
// column. No such column yields "None"; a failed scan yields "Unknown".
func classificationCeiling(ctx context.Context, conn database.Conn, t *Table) Probe[string] {
	var values []string
	scanned := false

	for _, f := range t.Fields {
		if !IsClassificationColumn(f.Name) {
			continue
		}
		scanned = true

		sql, args, err := database.Select(t.Name, conn.Dialect()).
			Distinct().
			Columns(f.Name).
			NotNull(f.Name).
			Build()
		if err != nil {
			return Failed(ceilingUnknown, err)
		}
		rs, err := conn.Query(ctx, sql, args...)
		if err != nil {
			return Failed(ceilingUnknown, err)
		}
		for _, row := range rs.Values {
			values = append(values, database.Text(row[0]))
		}
	}

	if !scanned {
		return Ok(ceilingNone)
	}
	return Ok(Ceiling(values))
}
