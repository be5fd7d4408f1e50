package search

import (
	"sort"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/query"
	"github.com/koustreak/scout/internal/schema"
)

// filterClause is one declared filter on a filterable column.
type filterClause struct {
	field  string
	values []any
	list   bool
}

// Filters are declared equality and membership filters resolved against a
// table. Keys that are unknown or not filterable land in Ignored.
type Filters struct {
	clauses []filterClause
	Ignored []string
}

// ResolveFilters validates raw filters against t. A list value becomes set
// membership, anything else equality. Keys are processed in sorted order so
// the generated SQL is stable.
func ResolveFilters(t *schema.Table, raw map[string]any) Filters {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var f Filters
	for _, k := range keys {
		name, ok := t.Filterable(k)
		if !ok {
			f.Ignored = append(f.Ignored, k)
			continue
		}

		switch v := raw[k].(type) {
		case []any:
			values := make([]any, 0, len(v))
			for _, item := range v {
				values = append(values, query.NormalizeValue(item))
			}
			f.clauses = append(f.clauses, filterClause{field: name, values: values, list: true})
		case map[string]any:
			f.Ignored = append(f.Ignored, k)
		default:
			f.clauses = append(f.clauses, filterClause{field: name, values: []any{query.NormalizeValue(v)}})
		}
	}
	return f
}

// Fields returns the filtered column names in application order.
func (f Filters) Fields() []string {
	names := make([]string, len(f.clauses))
	for i, c := range f.clauses {
		names[i] = c.field
	}
	return names
}

// apply adds every filter except the one on column except.
func (f Filters) apply(b *database.SelectBuilder, except string) *database.SelectBuilder {
	for _, c := range f.clauses {
		if c.field == except {
			continue
		}
		if c.list {
			b.In(c.field, c.values)
		} else {
			b.Where(c.field, "=", c.values[0])
		}
	}
	return b
}
