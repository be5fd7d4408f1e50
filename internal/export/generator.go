package export

import (
	"context"
	"encoding/json"
	"time"
)

// Point is one exported row, located by the raw grid reference string
// found in its geo field.
type Point struct {
	Grid   string         `json:"grid"`
	Record map[string]any `json:"record"`
}

// Generator turns located rows into a geospatial artifact. Converting grid
// references into coordinates is the generator's business.
type Generator interface {
	// Generate renders points taken from field of table.
	Generate(ctx context.Context, table, field string, points []Point) ([]byte, error)

	// ContentType is the MIME type of what Generate produces.
	ContentType() string

	// Extension is the file suffix for the artifact, dot included.
	Extension() string
}

// ManifestGenerator writes points as a JSON document, grouped by grid
// reference. It is the generator used when no geospatial one is plugged in.
type ManifestGenerator struct {
	// Indent pretty-prints the manifest when set.
	Indent bool

	now func() time.Time
}

type manifest struct {
	Table       string         `json:"table"`
	Field       string         `json:"geo_field"`
	GeneratedAt time.Time      `json:"generated_at"`
	Count       int            `json:"count"`
	Grids       map[string]int `json:"grids"`
	Points      []Point        `json:"points"`
}

func (g ManifestGenerator) Generate(ctx context.Context, table, field string, points []Point) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now
	if g.now != nil {
		now = g.now
	}

	m := manifest{
		Table:       table,
		Field:       field,
		GeneratedAt: now().UTC(),
		Count:       len(points),
		Grids:       make(map[string]int),
		Points:      points,
	}
	for _, p := range points {
		m.Grids[p.Grid]++
	}

	if g.Indent {
		return json.MarshalIndent(m, "", "  ")
	}
	return json.Marshal(m)
}

func (ManifestGenerator) ContentType() string { return "application/json" }

func (ManifestGenerator) Extension() string { return ".json" }
