package schema

import (
	"regexp"
	"strings"

	"github.com/koustreak/scout/internal/database"
)

// sensitiveNames are never searchable and never reported as matches,
// whatever their type. Compared case-insensitively.
var sensitiveNames = map[string]bool{
	"classification": true, "class": true,
	"security_classification": true, "security_class": true,
	"clearance": true, "clearance_level": true,
	"sensitivity": true, "sensitivity_level": true,
	"mgrs": true, "mgrs_primary": true, "mgrs_secondary": true,
	"coordinates": true, "lat": true, "lon": true,
	"latitude": true, "longitude": true,
	"id": true, "record_id": true, "primary_key": true,
}

// classificationNames are the columns scanned for the classification
// ceiling.
var classificationNames = map[string]bool{
	"classification": true, "class": true,
	"security_classification": true, "security_class": true,
	"clearance": true, "clearance_level": true,
	"sensitivity": true, "sensitivity_level": true,
}

var (
	geoGridPattern = regexp.MustCompile(`mgrs|grid|coord|location|lat.*lon|geo`)
	idPattern      = regexp.MustCompile(`^(id|pk|key|uuid|hash|sha\d+)$|_id$|_key$`)
)

var jsonNames = map[string]bool{
	"metadata": true, "data": true, "config": true, "settings": true,
}

var temporalFragments = []string{"date", "time", "created", "updated", "modified"}

// storageTypes maps a lower-cased base storage type to its semantic type.
var storageTypes = map[string]FieldType{
	"text":              TypeText,
	"varchar":           TypeText,
	"char":              TypeText,
	"clob":              TypeText,
	"string":            TypeText,
	"character":         TypeText,
	"character varying": TypeText,
	"nvarchar":          TypeText,
	"nchar":             TypeText,
	"tinytext":          TypeText,
	"mediumtext":        TypeText,
	"longtext":          TypeText,
	"uuid":              TypeText,
	"citext":            TypeText,

	"integer":   TypeInteger,
	"int":       TypeInteger,
	"bigint":    TypeInteger,
	"smallint":  TypeInteger,
	"tinyint":   TypeInteger,
	"mediumint": TypeInteger,
	"serial":    TypeInteger,
	"bigserial": TypeInteger,

	"real":             TypeReal,
	"float":            TypeReal,
	"double":           TypeReal,
	"double precision": TypeReal,
	"numeric":          TypeReal,
	"decimal":          TypeReal,

	"blob":       TypeBlob,
	"bytea":      TypeBlob,
	"longblob":   TypeBlob,
	"mediumblob": TypeBlob,
	"varbinary":  TypeBlob,

	"date":                        TypeDate,
	"datetime":                    TypeDateTime,
	"timestamp":                   TypeDateTime,
	"timestamptz":                 TypeDateTime,
	"timestamp with time zone":    TypeDateTime,
	"timestamp without time zone": TypeDateTime,

	"boolean": TypeBoolean,
	"bool":    TypeBoolean,

	"json":  TypeJSON,
	"jsonb": TypeJSON,
}

// IsSensitive reports whether name is on the sensitive deny-list.
func IsSensitive(name string) bool {
	return sensitiveNames[strings.ToLower(name)]
}

// IsClassificationColumn reports whether name holds classification labels.
func IsClassificationColumn(name string) bool {
	return classificationNames[strings.ToLower(name)]
}

// IsIDField reports whether name looks like an identifier column.
func IsIDField(name string) bool {
	return idPattern.MatchString(strings.ToLower(name))
}

// InferType resolves a column's semantic type from its name and declared
// storage type. The first matching rule wins.
func InferType(name, storageType string) FieldType {
	lname := strings.ToLower(name)
	ltype := strings.ToLower(strings.TrimSpace(storageType))

	if geoGridPattern.MatchString(lname) {
		return TypeGeoGrid
	}

	if strings.Contains(ltype, "json") || jsonNames[lname] {
		return TypeJSON
	}

	for _, frag := range temporalFragments {
		if !strings.Contains(lname, frag) {
			continue
		}
		switch {
		case strings.Contains(ltype, "datetime"), strings.Contains(ltype, "timestamp"):
			return TypeDateTime
		case strings.Contains(ltype, "date"):
			return TypeDate
		}
		break
	}

	if t, ok := storageTypes[baseType(ltype)]; ok {
		return t
	}
	return TypeUnknown
}

// baseType strips size/precision suffixes: "varchar(255)" -> "varchar",
// "numeric(8, 2)" -> "numeric".
func baseType(t string) string {
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// Classify builds the Field for one column. Sample and index probes are
// best-effort: a degraded probe contributes its default value.
func Classify(col database.ColumnInfo, samples Probe[[]string], indexed Probe[bool]) Field {
	t := InferType(col.Name, col.DataType)

	values := samples.Value
	if values == nil {
		values = []string{}
	}

	return Field{
		Name:         col.Name,
		Type:         t,
		Nullable:     col.Nullable,
		PrimaryKey:   col.PrimaryKey,
		Indexed:      indexed.Value,
		SampleValues: values,
		Searchable:   t != TypeBlob && t != TypeUnknown && !col.PrimaryKey && !IsSensitive(col.Name),
		Sortable:     t == TypeText || t == TypeInteger || t == TypeReal || t == TypeDate || t == TypeDateTime,
		Filterable:   t != TypeBlob,
	}
}
