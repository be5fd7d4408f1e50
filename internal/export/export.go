// Package export hands the hits of a search to a geospatial generator and
// optionally publishes the result to an object store.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
	"github.com/koustreak/scout/internal/filestore"
	"github.com/koustreak/scout/internal/logger"
	"github.com/koustreak/scout/internal/schema"
	"github.com/koustreak/scout/internal/search"
)

const (
	// DefaultLimit is how many rows an export reads when none is asked for.
	DefaultLimit = 10000

	// MaxLimit caps the rows of one export.
	MaxLimit = 50000
)

// Searcher is the part of the search engine an export needs.
type Searcher interface {
	Table(name string) (*schema.Table, error)
	Search(ctx context.Context, req search.Request) (*search.Result, error)
}

// Request selects the rows to export.
type Request struct {
	Table string

	// Query is a free-text query; "" and "*" export every row.
	Query string

	// GeoField names the grid column. Empty picks the table's first geo field.
	GeoField string

	Limit int
}

// Metadata summarizes one export.
type Metadata struct {
	Table      string `json:"table"`
	GeoField   string `json:"geo_field"`
	TotalRows  int    `json:"total_rows"`
	Points     int    `json:"points"`
	Query      string `json:"query"`
	ExportSize int    `json:"export_size"`
}

// Result is a generated export. Object and URL are set only when the
// export was published.
type Result struct {
	Data        []byte                `json:"-"`
	ContentType string                `json:"content_type"`
	Filename    string                `json:"filename"`
	Metadata    Metadata              `json:"metadata"`
	Object      *filestore.ObjectInfo `json:"object,omitempty"`
	URL         string                `json:"url,omitempty"`
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithStore publishes every export to bucket on store.
func WithStore(store filestore.Store, bucket string, ttl time.Duration) Option {
	return func(e *Exporter) {
		e.store = store
		e.bucket = bucket
		e.ttl = ttl
	}
}

// WithLogger sets the exporter's logger.
func WithLogger(log *logger.Logger) Option {
	return func(e *Exporter) {
		e.log = log.Component("export")
	}
}

// Exporter runs exports against a search engine.
type Exporter struct {
	search Searcher
	gen    Generator
	store  filestore.Store
	bucket string
	ttl    time.Duration
	log    *logger.Logger
}

// New returns an Exporter rendering with gen, or with a ManifestGenerator
// when gen is nil.
func New(s Searcher, gen Generator, opts ...Option) *Exporter {
	if gen == nil {
		gen = ManifestGenerator{}
	}
	e := &Exporter{
		search: s,
		gen:    gen,
		ttl:    filestore.DefaultPresignTTL,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export searches req.Table and renders the hits that carry a grid
// reference. A search with no hits is an InvalidInput error.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	t, err := e.search.Table(req.Table)
	if err != nil {
		return nil, err
	}
	field, err := geoField(t, req.GeoField)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	q := strings.TrimSpace(req.Query)
	if q == "" {
		q = "*"
	}

	res, err := e.search.Search(ctx, search.Request{Table: t.Name, Query: q, Size: limit})
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "no data found for export from %q", t.Name)
	}

	points := Points(res.Hits, field)
	data, err := e.gen.Generate(ctx, t.Name, field, points)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "export generation failed", err)
	}

	out := &Result{
		Data:        data,
		ContentType: e.gen.ContentType(),
		Filename:    t.Name + e.gen.Extension(),
		Metadata: Metadata{
			Table:      t.Name,
			GeoField:   field,
			TotalRows:  len(res.Hits),
			Points:     len(points),
			Query:      q,
			ExportSize: len(data),
		},
	}

	if e.store != nil {
		if err := e.publish(ctx, out); err != nil {
			return nil, err
		}
	}

	e.log.InfoWith("export generated", map[string]any{
		"table":     t.Name,
		"geo_field": field,
		"rows":      out.Metadata.TotalRows,
		"points":    out.Metadata.Points,
		"bytes":     out.Metadata.ExportSize,
		"published": out.URL != "",
	})
	return out, nil
}

// Points keeps the hits whose field holds a non-empty grid reference,
// passed through unchanged.
func Points(hits []search.Hit, field string) []Point {
	points := make([]Point, 0, len(hits))
	for _, h := range hits {
		v, ok := h.Source[field]
		if !ok || v == nil {
			continue
		}
		grid := database.Text(v)
		if grid == "" {
			continue
		}
		points = append(points, Point{Grid: grid, Record: h.Source})
	}
	return points
}

func (e *Exporter) publish(ctx context.Context, out *Result) error {
	if err := e.store.EnsureBucket(ctx, e.bucket); err != nil {
		return err
	}

	key := fmt.Sprintf("exports/%s/%s%s", out.Metadata.Table, uuid.NewString(), e.gen.Extension())
	info, err := e.store.PutObject(ctx, e.bucket, key, bytes.NewReader(out.Data), int64(len(out.Data)), out.ContentType)
	if err != nil {
		return err
	}

	url, err := e.store.PresignGetURL(ctx, e.bucket, key, e.ttl)
	if err != nil {
		return err
	}
	out.Object = info
	out.URL = url
	return nil
}

// geoField resolves the explicit field against t, or picks its first geo
// field.
func geoField(t *schema.Table, name string) (string, error) {
	if name != "" {
		f, ok := t.Field(name)
		if !ok {
			return "", errs.Newf(errs.ErrKindInvalidInput, "field %q not found in table %q", name, t.Name)
		}
		return f.Name, nil
	}
	if len(t.GeoFields) == 0 {
		return "", errs.Newf(errs.ErrKindInvalidInput, "no geo fields found in table %q", t.Name)
	}
	return t.GeoFields[0], nil
}
