package schema

import (
	"errors"
	"testing"

	"github.com/koustreak/scout/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		name        string
		column      string
		storageType string
		want        FieldType
	}{
		{"geo grid by name", "mgrs_primary", "TEXT", TypeGeoGrid},
		{"geo wins over json", "geo_data", "JSON", TypeGeoGrid},
		{"lat lon pair", "lat_lon", "TEXT", TypeGeoGrid},
		{"json storage", "payload", "jsonb", TypeJSON},
		{"json by name", "metadata", "TEXT", TypeJSON},
		{"datetime hint", "created_at", "DATETIME", TypeDateTime},
		{"timestamp hint", "updated", "timestamp with time zone", TypeDateTime},
		{"date hint", "report_date", "DATE", TypeDate},
		{"temporal name without hint", "created_by", "TEXT", TypeText},
		{"varchar with size", "title", "VARCHAR(255)", TypeText},
		{"numeric with precision", "price", "NUMERIC(8, 2)", TypeReal},
		{"bigint", "count", "BIGINT", TypeInteger},
		{"blob", "thumbnail", "BLOB", TypeBlob},
		{"bool", "active", "BOOL", TypeBoolean},
		{"unmapped", "shape", "GEOMETRY", TypeUnknown},
		{"empty storage type", "anything", "", TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferType(tt.column, tt.storageType))
		})
	}
}

func TestClassify_SensitiveNeverSearchable(t *testing.T) {
	for name := range sensitiveNames {
		for _, storage := range []string{"TEXT", "INTEGER", "REAL", "VARCHAR(20)"} {
			f := Classify(database.ColumnInfo{Name: name, DataType: storage}, Ok([]string{}), Ok(false))
			assert.False(t, f.Searchable, "%s %s", name, storage)
		}

		f := Classify(database.ColumnInfo{Name: name, DataType: "TEXT"}, Ok([]string{}), Ok(false))
		assert.True(t, f.Filterable, name)
	}

	assert.False(t, Classify(database.ColumnInfo{Name: "Classification", DataType: "TEXT"}, Ok([]string{}), Ok(false)).Searchable)
}

func TestClassify_Capabilities(t *testing.T) {
	tests := []struct {
		name       string
		col        database.ColumnInfo
		searchable bool
		sortable   bool
		filterable bool
	}{
		{"text", database.ColumnInfo{Name: "title", DataType: "TEXT"}, true, true, true},
		{"primary key", database.ColumnInfo{Name: "product_no", DataType: "INTEGER", PrimaryKey: true}, false, true, true},
		{"blob", database.ColumnInfo{Name: "image", DataType: "BLOB"}, false, false, false},
		{"unknown", database.ColumnInfo{Name: "shape", DataType: "GEOMETRY"}, false, false, true},
		{"boolean", database.ColumnInfo{Name: "active", DataType: "BOOLEAN"}, true, false, true},
		{"json", database.ColumnInfo{Name: "settings", DataType: "TEXT"}, true, false, true},
		{"geo grid", database.ColumnInfo{Name: "grid_ref", DataType: "TEXT"}, true, false, true},
		{"datetime", database.ColumnInfo{Name: "created_at", DataType: "TIMESTAMP"}, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify(tt.col, Ok([]string{"a"}), Ok(true))
			assert.Equal(t, tt.searchable, f.Searchable, "searchable")
			assert.Equal(t, tt.sortable, f.Sortable, "sortable")
			assert.Equal(t, tt.filterable, f.Filterable, "filterable")
			assert.True(t, f.Indexed)
			assert.Equal(t, []string{"a"}, f.SampleValues)
		})
	}
}

func TestClassify_DegradedProbes(t *testing.T) {
	boom := errors.New("boom")
	samples := Failed([]string(nil), boom)
	indexed := Failed(false, boom)

	assert.True(t, samples.Degraded())
	assert.False(t, Ok(1).Degraded())

	f := Classify(database.ColumnInfo{Name: "title", DataType: "TEXT"}, samples, indexed)
	assert.NotNil(t, f.SampleValues)
	assert.Empty(t, f.SampleValues)
	assert.False(t, f.Indexed)
	assert.True(t, f.Searchable)
}

func TestIsIDField(t *testing.T) {
	for _, name := range []string{"id", "ID", "pk", "uuid", "sha256", "user_id", "api_key"} {
		assert.True(t, IsIDField(name), name)
	}
	for _, name := range []string{"idea", "keyboard", "width", "hashtag"} {
		assert.False(t, IsIDField(name), name)
	}
}
