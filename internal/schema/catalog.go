package schema

import (
	"strings"
	"time"

	"github.com/koustreak/scout/internal/errs"
)

// Table describes one table as the search engine sees it. Tables are
// rebuilt wholesale on every load and never mutated afterwards.
type Table struct {
	Name             string   `json:"name"`
	RowCount         int64    `json:"row_count"`
	Fields           []Field  `json:"fields"`
	SearchableFields []string `json:"searchable_fields"`
	SortableFields   []string `json:"sortable_fields"`
	FilterableFields []string `json:"filterable_fields"`
	GeoFields        []string `json:"geo_fields"`
	IDFields         []string `json:"id_fields"`
	Classification   string   `json:"highest_classification"`
	FullText         bool     `json:"has_fts"`

	// Degraded lists the best-effort probes that fell back to defaults
	// while this table was described.
	Degraded []string `json:"degraded,omitempty"`

	byName map[string]int
	byFold map[string]int
}

// NewTable builds a table descriptor, deriving the capability sets from
// fields.
func NewTable(name string, rowCount int64, fields []Field) *Table {
	t := &Table{
		Name:             name,
		RowCount:         rowCount,
		Fields:           fields,
		SearchableFields: []string{},
		SortableFields:   []string{},
		FilterableFields: []string{},
		GeoFields:        []string{},
		IDFields:         []string{},
		Classification:   ceilingNone,
		byName:           make(map[string]int, len(fields)),
		byFold:           make(map[string]int, len(fields)),
	}

	for i, f := range fields {
		t.byName[f.Name] = i
		if _, dup := t.byFold[strings.ToLower(f.Name)]; !dup {
			t.byFold[strings.ToLower(f.Name)] = i
		}
		if f.Searchable {
			t.SearchableFields = append(t.SearchableFields, f.Name)
		}
		if f.Sortable {
			t.SortableFields = append(t.SortableFields, f.Name)
		}
		if f.Filterable {
			t.FilterableFields = append(t.FilterableFields, f.Name)
		}
		if f.Type == TypeGeoGrid {
			t.GeoFields = append(t.GeoFields, f.Name)
		}
		if f.PrimaryKey || IsIDField(f.Name) {
			t.IDFields = append(t.IDFields, f.Name)
		}
	}
	return t
}

// Field looks a column up by exact name, then case-insensitively.
func (t *Table) Field(name string) (*Field, bool) {
	if i, ok := t.byName[name]; ok {
		return &t.Fields[i], true
	}
	if i, ok := t.byFold[strings.ToLower(name)]; ok {
		return &t.Fields[i], true
	}
	return nil, false
}

// Resolve returns the catalog spelling of a column name.
func (t *Table) Resolve(name string) (string, bool) {
	f, ok := t.Field(name)
	if !ok {
		return "", false
	}
	return f.Name, true
}

// Searchable resolves name if it is a searchable column.
func (t *Table) Searchable(name string) (string, bool) {
	f, ok := t.Field(name)
	if !ok || !f.Searchable {
		return "", false
	}
	return f.Name, true
}

// Sortable resolves name if it is a sortable column.
func (t *Table) Sortable(name string) (string, bool) {
	f, ok := t.Field(name)
	if !ok || !f.Sortable {
		return "", false
	}
	return f.Name, true
}

// Filterable resolves name if it is a filterable column.
func (t *Table) Filterable(name string) (string, bool) {
	f, ok := t.Field(name)
	if !ok || !f.Filterable {
		return "", false
	}
	return f.Name, true
}

// FieldNames returns every column name in declaration order.
func (t *Table) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// Catalog is an immutable snapshot of a database's searchable surface.
type Catalog struct {
	Names             []string          `json:"table_names"`
	Tables            map[string]*Table `json:"tables"`
	FullTextAvailable bool              `json:"fts_available"`
	FullTextTables    []string          `json:"fts_tables"`
	Degraded          []string          `json:"degraded,omitempty"`
	LoadedAt          time.Time         `json:"loaded_at"`
}

// Table returns the named table or a not-found error.
func (c *Catalog) Table(name string) (*Table, error) {
	if c != nil {
		if t, ok := c.Tables[name]; ok {
			return t, nil
		}
	}
	return nil, errs.TableNotFound(name)
}

// TotalRows sums the row-count snapshots of every table.
func (c *Catalog) TotalRows() int64 {
	var n int64
	for _, t := range c.Tables {
		n += t.RowCount
	}
	return n
}
