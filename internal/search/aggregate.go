package search

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/schema"
)

const (
	AggTerms = "terms"
	AggStats = "stats"
)

// maxTermsBuckets caps a terms aggregation.
const maxTermsBuckets = 100

// AggSpec requests one named aggregation. It decodes from either
// {"type": "terms", "field": "f"} or {"terms": {"field": "f"}}.
type AggSpec struct {
	Type  string `json:"type"`
	Field string `json:"field"`
}

func (s *AggSpec) UnmarshalJSON(data []byte) error {
	var flat struct {
		Type  string                  `json:"type"`
		Field string                  `json:"field"`
		Terms *struct{ Field string } `json:"terms"`
		Stats *struct{ Field string } `json:"stats"`
	}
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	*s = AggSpec{Type: flat.Type, Field: flat.Field}
	switch {
	case flat.Terms != nil:
		s.Type, s.Field = AggTerms, flat.Terms.Field
	case flat.Stats != nil:
		s.Type, s.Field = AggStats, flat.Stats.Field
	}
	return nil
}

// TermsBucket is one group of a terms aggregation.
type TermsBucket struct {
	Key      any   `json:"key"`
	DocCount int64 `json:"doc_count"`
}

// TermsResult is a terms aggregation.
type TermsResult struct {
	Buckets          []TermsBucket `json:"buckets"`
	SumOtherDocCount int64         `json:"sum_other_doc_count"`
}

// StatsResult is a stats aggregation. Min, max, avg and sum are whatever
// the backend returns for the column and are nil when no row matched.
type StatsResult struct {
	Count int64 `json:"count"`
	Min   any   `json:"min"`
	Max   any   `json:"max"`
	Avg   any   `json:"avg"`
	Sum   any   `json:"sum"`
}

// Aggregate runs every requested aggregation under the full declared filter
// set. Requests on unknown or non-filterable fields are skipped, as are
// stats on fields that are not numeric or temporal; an unrecognized type is
// a terms aggregation. Each aggregation is its own statement.
func Aggregate(ctx context.Context, conn database.Conn, t *schema.Table, specs map[string]AggSpec, filters Filters) (map[string]any, error) {
	results := make(map[string]any, len(specs))

	for _, name := range sortedNames(specs) {
		spec := specs[name]
		field, ok := t.Filterable(spec.Field)
		if !ok {
			continue
		}

		var (
			res any
			err error
		)
		if spec.Type == AggStats {
			if !statsCapable(t, field) {
				continue
			}
			res, err = statsAggregation(ctx, conn, t, field, filters)
		} else {
			res, err = termsAggregation(ctx, conn, t, field, filters)
		}
		if err != nil {
			return nil, err
		}
		results[name] = res
	}
	return results, nil
}

func termsAggregation(ctx context.Context, conn database.Conn, t *schema.Table, field string, filters Filters) (*TermsResult, error) {
	buckets, err := groupCounts(ctx, conn, t, field, filters, "", maxTermsBuckets)
	if err != nil {
		return nil, err
	}

	res := &TermsResult{Buckets: make([]TermsBucket, 0, len(buckets))}
	for _, b := range buckets {
		res.Buckets = append(res.Buckets, TermsBucket{Key: b.value, DocCount: b.count})
	}
	return res, nil
}

func statsAggregation(ctx context.Context, conn database.Conn, t *schema.Table, field string, filters Filters) (*StatsResult, error) {
	d := conn.Dialect()
	col := d.QuoteIdent(field)

	b := database.Select(t.Name, d).Expr(
		"COUNT(*)",
		"MIN("+col+")",
		"MAX("+col+")",
		"AVG("+col+")",
		"SUM("+col+")",
	)
	sql, args, err := filters.apply(b, "").Build()
	if err != nil {
		return nil, err
	}

	rs, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	res := &StatsResult{}
	if rs.Len() == 0 {
		return res, nil
	}
	row := rs.Values[0]
	res.Count, _ = database.AsInt64(row[0])
	res.Min, res.Max, res.Avg, res.Sum = row[1], row[2], row[3], row[4]
	return res, nil
}

func statsCapable(t *schema.Table, name string) bool {
	f, ok := t.Field(name)
	if !ok {
		return false
	}
	switch f.Type {
	case schema.TypeInteger, schema.TypeReal, schema.TypeDate, schema.TypeDateTime:
		return true
	}
	return false
}

type groupCount struct {
	value any
	count int64
}

// groupCounts returns the most frequent values of field, applying every
// filter except the one on except.
func groupCounts(ctx context.Context, conn database.Conn, t *schema.Table, field string, filters Filters, except string, limit int) ([]groupCount, error) {
	d := conn.Dialect()
	b := database.Select(t.Name, d).
		Columns(field).
		Expr("COUNT(*) AS doc_count")
	sql, args, err := filters.apply(b, except).
		GroupBy(field).
		OrderByExpr("doc_count", database.Desc).
		OrderBy(field, database.Asc).
		Limit(limit).
		Build()
	if err != nil {
		return nil, err
	}

	rs, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	out := make([]groupCount, 0, rs.Len())
	for _, row := range rs.Values {
		n, _ := database.AsInt64(row[1])
		out = append(out, groupCount{value: row[0], count: n})
	}
	return out, nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
