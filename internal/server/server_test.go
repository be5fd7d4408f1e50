package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/database/sqlite"
	"github.com/koustreak/scout/internal/database/sqlite/sqlitetest"
	"github.com/koustreak/scout/internal/errs"
	"github.com/koustreak/scout/internal/logger"
	"github.com/koustreak/scout/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reports = []string{
	`CREATE TABLE reports (id INTEGER PRIMARY KEY, title TEXT, mgrs TEXT)`,
	`INSERT INTO reports (id, title, mgrs) VALUES
		(1, 'Bridge survey', '18SUJ2337106519'),
		(2, 'Road block', '33UXP04')`,
}

func newServer(t *testing.T, opts Options) (*Server, *search.Engine) {
	t.Helper()
	stmts := append(append([]string{}, sqlitetest.Products...), reports...)
	h := sqlitetest.Open(t, stmts...)

	e, err := search.New(context.Background(), h, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	return New(e, opts), e
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRoot(t *testing.T) {
	s, _ := newServer(t, Options{Version: "1.2.3"})

	rec := do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "scout", body["name"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "sqlite", body["dialect"])
	assert.Equal(t, float64(2), body["total_tables"])
}

func TestSchemaAndTables(t *testing.T) {
	s, _ := newServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["total_tables"])
	assert.Equal(t, []any{"products", "reports"}, body["table_names"])
	assert.Contains(t, body["tables"], "products")

	rec = do(t, s, http.MethodGet, "/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tables []tableSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tables))
	require.Len(t, tables, 2)
	assert.Equal(t, "products", tables[0].Name)
	assert.Equal(t, int64(5), tables[0].RowCount)
	assert.Equal(t, 7, tables[0].FieldCount)
	assert.Equal(t, "Secret", tables[0].Classification)
	assert.Equal(t, []string{"mgrs"}, tables[1].GeoFields)

	rec = do(t, s, http.MethodGet, "/tables/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "products", decode(t, rec)["name"])

	rec = do(t, s, http.MethodGet, "/tables/products/fields", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["searchable_fields"], "name")

	rec = do(t, s, http.MethodGet, "/tables/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error"])
}

func TestSearch_Envelope(t *testing.T) {
	s, _ := newServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/search/products", `{"query": {"match": {"name": "laptop"}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res esResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.TimedOut)
	assert.Equal(t, esTotal{Value: 1, Relation: "eq"}, res.Hits.Total)
	require.NotNil(t, res.Hits.MaxScore)
	assert.Equal(t, 2.0, *res.Hits.MaxScore)
	require.Len(t, res.Hits.Hits, 1)

	hit := res.Hits.Hits[0]
	assert.Equal(t, "products", hit.Index)
	assert.Equal(t, "_doc", hit.Type)
	assert.Equal(t, "1", hit.ID)
	assert.Equal(t, 2.0, hit.Score)
	assert.Equal(t, "Laptop", hit.Source["name"])
	assert.NotEmpty(t, hit.Matches)
}

func TestSearch_PlainAndAggregations(t *testing.T) {
	s, _ := newServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/search/products", `{
		"query": "e",
		"filters": {"category": "Electronics"},
		"sort": [{"field": "price", "order": "asc"}],
		"aggs": {"colors": {"terms": {"field": "color"}}}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res esResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(3), res.Hits.Total.Value)
	assert.Nil(t, res.Hits.MaxScore)
	require.Len(t, res.Hits.Hits, 3)
	assert.Equal(t, "Headphones", res.Hits.Hits[0].Source["name"])
	assert.Equal(t, 1.0, res.Hits.Hits[0].Score)

	colors, ok := res.Aggregations["colors"].(map[string]any)
	require.True(t, ok)
	buckets := colors["buckets"].([]any)
	require.Len(t, buckets, 2)
	assert.Equal(t, "red", buckets[0].(map[string]any)["key"])
	assert.Equal(t, float64(2), buckets[0].(map[string]any)["doc_count"])
}

func TestSearch_SizeClamp(t *testing.T) {
	s, _ := newServer(t, Options{MaxSize: 2})

	rec := do(t, s, http.MethodPost, "/search/products", `{"size": 50}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res esResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(5), res.Hits.Total.Value)
	assert.Len(t, res.Hits.Hits, 2)
}

func TestSearch_Errors(t *testing.T) {
	s, _ := newServer(t, Options{})

	tests := []struct {
		name   string
		target string
		body   string
		status int
		kind   string
	}{
		{"malformed body", "/search/products", `{"query":`, http.StatusBadRequest, "invalid_input"},
		{"unsupported query", "/search/products", `{"query": {"percolate": {}}}`, http.StatusBadRequest, "unsupported_query"},
		{"unknown table", "/search/nope", `{}`, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, decode(t, rec)["error"])
		})
	}
}

func TestSimpleSearch(t *testing.T) {
	s, _ := newServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/search/products?q=desk&fields=name,%20nope", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, []any{"nope"}, body["ignored_fields"])

	params := url.Values{}
	params.Set("filters", `{"category": "Furniture"}`)
	params.Set("sort", `[{"field": "price", "order": "desc"}]`)
	rec = do(t, s, http.MethodGet, "/search/products?"+params.Encode(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Total int64        `json:"total"`
		Hits  []search.Hit `json:"hits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(2), res.Total)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "Desk", res.Hits[0].Source["name"])
	assert.Equal(t, "Chair", res.Hits[1].Source["name"])

	for _, bad := range []string{"size=abc", "from=x", "filters=%7Bnope", "sort=%5B"} {
		rec = do(t, s, http.MethodGet, "/search/products?"+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestCreateIndex(t *testing.T) {
	s, _ := newServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/tables/products/fts", `{"fields": ["name"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var st search.IndexStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "products", st.Table)
	assert.Equal(t, []string{"name"}, st.Fields)
	assert.Equal(t, st.Created, st.Available)

	rec = do(t, s, http.MethodPost, "/tables/products/fts", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/tables/products/fts", `{"fields": ["nope"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport(t *testing.T) {
	s, _ := newServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/export/reports?q=*", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="reports.json"`, rec.Header().Get("Content-Disposition"))

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("X-Export-Metadata")), &meta))
	assert.Equal(t, "mgrs", meta["geo_field"])
	assert.Equal(t, float64(2), meta["points"])

	manifest := decode(t, rec)
	assert.Equal(t, float64(2), manifest["count"])

	rec = do(t, s, http.MethodGet, "/export/reports?mgrs_field=title&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "title", decode(t, rec)["geo_field"])

	rec = do(t, s, http.MethodGet, "/export/products", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/export/reports?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwitchDatabase(t *testing.T) {
	s, e := newServer(t, Options{})
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "intel.db")
	backend, err := sqlite.New(ctx, database.DefaultConfig(database.DriverSQLite, path))
	require.NoError(t, err)
	h := database.NewHandle(backend)
	require.NoError(t, h.Exec(ctx, `CREATE TABLE sightings (id INTEGER PRIMARY KEY, note TEXT)`))
	require.NoError(t, h.Close())

	rec := do(t, s, http.MethodPost, "/switch-database", `{"db_path": "`+filepath.Join(t.TempDir(), "missing.db")+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/switch-database", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/switch-database", `{"driver": "oracle", "dsn": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/switch-database", `{"db_path": "`+path+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "switched to sqlite database intel.db", body["message"])
	assert.Equal(t, float64(1), body["total_tables"])

	assert.Equal(t, []string{"sightings"}, e.Catalog().Names)
	rec = do(t, s, http.MethodGet, "/tables/products", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndStats(t *testing.T) {
	s, e := newServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["tables_accessible"])

	rec = do(t, s, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, float64(2), body["total_tables"])
	assert.Equal(t, float64(7), body["total_rows"])

	require.NoError(t, e.Close())

	rec = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode(t, rec)["status"])

	rec = do(t, s, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "closed", decode(t, rec)["error"])

	rec = do(t, s, http.MethodGet, "/schema", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddleware(t *testing.T) {
	s, _ := newServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))

	rec = do(t, s, http.MethodGet, "/health", "")
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scout_http_requests_total")

	rec = do(t, s, http.MethodGet, "/no/such/route", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind errs.ErrKind
		want int
	}{
		{errs.ErrKindNotFound, http.StatusNotFound},
		{errs.ErrKindInvalidInput, http.StatusBadRequest},
		{errs.ErrKindUnsupportedQuery, http.StatusBadRequest},
		{errs.ErrKindPermissionDenied, http.StatusForbidden},
		{errs.ErrKindTimeout, http.StatusGatewayTimeout},
		{errs.ErrKindConnectionFailed, http.StatusBadGateway},
		{errs.ErrKindClosed, http.StatusServiceUnavailable},
		{errs.ErrKindBackendUnavailable, http.StatusNotImplemented},
		{errs.ErrKindQueryFailed, http.StatusInternalServerError},
		{errs.ErrKindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(errs.New(tt.kind, "x")), tt.kind.String())
	}
}
