// Package schema turns a live database into a Catalog of search-ready
// table descriptors: it classifies every column's semantic type and its
// search capabilities, samples values, and computes each table's
// classification ceiling.
package schema

// FieldType is the semantic type inferred for a column.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeInteger  FieldType = "integer"
	TypeReal     FieldType = "real"
	TypeBlob     FieldType = "blob"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
	TypeBoolean  FieldType = "boolean"
	TypeJSON     FieldType = "json"
	TypeGeoGrid  FieldType = "geo_grid"
	TypeUnknown  FieldType = "unknown"
)

// Field describes one column. It is immutable once the catalog that owns
// it has been published.
type Field struct {
	Name         string    `json:"name"`
	Type         FieldType `json:"type"`
	Nullable     bool      `json:"nullable"`
	PrimaryKey   bool      `json:"is_primary_key"`
	Indexed      bool      `json:"is_indexed"`
	SampleValues []string  `json:"sample_values"`
	Searchable   bool      `json:"searchable"`
	Sortable     bool      `json:"sortable"`
	Filterable   bool      `json:"filterable"`
}

// Probe is the outcome of a best-effort sub-query. A degraded probe
// carries the zero/default value plus the error that caused it, so the
// loader can keep going and callers can still tell the two paths apart.
type Probe[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful probe value.
func Ok[T any](v T) Probe[T] {
	return Probe[T]{Value: v}
}

// Failed wraps a probe that degraded to its default value.
func Failed[T any](def T, err error) Probe[T] {
	return Probe[T]{Value: def, Err: err}
}

// Degraded reports whether the probe fell back to its default.
func (p Probe[T]) Degraded() bool {
	return p.Err != nil
}
