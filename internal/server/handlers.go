package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
	"github.com/koustreak/scout/internal/export"
	"github.com/koustreak/scout/internal/schema"
	"github.com/koustreak/scout/internal/search"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":          "scout",
		"version":       s.version,
		"dialect":       st.Dialect,
		"total_tables":  st.Tables,
		"fts_available": st.FullTextAvailable,
		"description":   "Schema-agnostic search over relational databases",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":             "unhealthy",
			"database_connected": false,
			"error":              err.Error(),
		})
		return
	}

	st, err := s.engine.Stats()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"database_connected": true,
		"tables_accessible":  st.Tables > 0,
		"fts_available":      st.FullTextAvailable,
		"total_tables":       st.Tables,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type schemaResponse struct {
	*schema.Catalog
	TotalTables int `json:"total_tables"`
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	cat := s.engine.Catalog()
	if cat == nil {
		writeError(w, r, errs.New(errs.ErrKindClosed, "search engine is closed"))
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{Catalog: cat, TotalTables: len(cat.Names)})
}

type tableSummary struct {
	Name             string   `json:"name"`
	RowCount         int64    `json:"row_count"`
	FieldCount       int      `json:"field_count"`
	SearchableFields []string `json:"searchable_fields"`
	GeoFields        []string `json:"geo_fields"`
	IDFields         []string `json:"id_fields"`
	Classification   string   `json:"highest_classification"`
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	cat := s.engine.Catalog()
	if cat == nil {
		writeError(w, r, errs.New(errs.ErrKindClosed, "search engine is closed"))
		return
	}

	tables := make([]tableSummary, 0, len(cat.Names))
	for _, name := range cat.Names {
		t := cat.Tables[name]
		tables = append(tables, tableSummary{
			Name:             t.Name,
			RowCount:         t.RowCount,
			FieldCount:       len(t.Fields),
			SearchableFields: t.SearchableFields,
			GeoFields:        t.GeoFields,
			IDFields:         t.IDFields,
			Classification:   t.Classification,
		})
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Table(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Table(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fields":            t.Fields,
		"searchable_fields": t.SearchableFields,
		"sortable_fields":   t.SortableFields,
		"filterable_fields": t.FilterableFields,
	})
}

func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Fields []string `json:"fields"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	status, err := s.engine.CreateIndex(r.Context(), chi.URLParam(r, "table"), body.Fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// searchBody is the POST /search request.
type searchBody struct {
	Query        any                       `json:"query"`
	Fields       []string                  `json:"fields"`
	Filters      map[string]any            `json:"filters"`
	Sort         []search.SortField        `json:"sort"`
	Size         *int                      `json:"size"`
	From         int                       `json:"from"`
	Aggregations map[string]search.AggSpec `json:"aggregations"`
	Aggs         map[string]search.AggSpec `json:"aggs"`
	FacetFields  []string                  `json:"facet_fields"`
}

type esTotal struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

type esHit struct {
	Index   string         `json:"_index"`
	Type    string         `json:"_type"`
	ID      string         `json:"_id"`
	Score   float64        `json:"_score"`
	Source  map[string]any `json:"_source"`
	Matches []search.Match `json:"_matches,omitempty"`
}

type esHits struct {
	Total    esTotal  `json:"total"`
	MaxScore *float64 `json:"max_score"`
	Hits     []esHit  `json:"hits"`
}

// esResponse is the document-search style envelope of POST /search.
type esResponse struct {
	Took         int64                           `json:"took"`
	TimedOut     bool                            `json:"timed_out"`
	Hits         esHits                          `json:"hits"`
	Aggregations map[string]any                  `json:"aggregations"`
	Facets       map[string][]search.FacetBucket `json:"facets"`
	Ignored      []string                        `json:"ignored_fields,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	req := search.Request{
		Table:        chi.URLParam(r, "table"),
		Query:        body.Query,
		Fields:       body.Fields,
		Filters:      body.Filters,
		Sort:         body.Sort,
		Size:         search.DefaultSize,
		From:         body.From,
		Aggregations: body.Aggregations,
		FacetFields:  body.FacetFields,
	}
	if req.Aggregations == nil {
		req.Aggregations = body.Aggs
	}
	if body.Size != nil {
		req.Size = *body.Size
	}

	res, err := s.search(r, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	hits := make([]esHit, 0, len(res.Hits))
	for i, h := range res.Hits {
		hit := esHit{
			Index:   req.Table,
			Type:    "_doc",
			ID:      h.ID,
			Score:   1,
			Source:  h.Source,
			Matches: h.Matches,
		}
		if hit.ID == "" {
			hit.ID = strconv.Itoa(req.From + i)
		}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		hits = append(hits, hit)
	}

	writeJSON(w, http.StatusOK, esResponse{
		Took: res.Took.Milliseconds(),
		Hits: esHits{
			Total:    esTotal{Value: res.Total, Relation: "eq"},
			MaxScore: res.MaxScore,
			Hits:     hits,
		},
		Aggregations: res.Aggregations,
		Facets:       res.Facets,
		Ignored:      res.Ignored,
	})
}

func (s *Server) handleSimpleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := search.Request{
		Table: chi.URLParam(r, "table"),
		Query: q.Get("q"),
		Size:  search.DefaultSize,
	}
	if req.Query == "" {
		req.Query = "*"
	}

	for _, f := range strings.Split(q.Get("fields"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			req.Fields = append(req.Fields, f)
		}
	}

	var err error
	if req.Size, err = intParam(q.Get("size"), search.DefaultSize); err != nil {
		writeError(w, r, err)
		return
	}
	if req.From, err = intParam(q.Get("from"), 0); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := q.Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Filters); err != nil {
			writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "invalid JSON in filters", err))
			return
		}
	}
	if raw := q.Get("sort"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Sort); err != nil {
			writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "invalid JSON in sort", err))
			return
		}
	}

	res, err := s.search(r, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":          res.Total,
		"hits":           res.Hits,
		"took":           res.Took.Milliseconds(),
		"facets":         res.Facets,
		"ignored_fields": res.Ignored,
	})
}

// search clamps the window and records the search metrics.
func (s *Server) search(r *http.Request, req search.Request) (*search.Result, error) {
	req.Size = min(req.Size, s.maxSize)
	req.From = max(req.From, 0)

	mode := "plain"
	if _, ok := req.Query.(map[string]any); ok {
		mode = "dsl"
	}

	res, err := s.engine.Search(r.Context(), req)
	searchTotal.WithLabelValues(mode, outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	searchHits.Observe(float64(res.Total))
	return res, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), export.DefaultLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	field := q.Get("geo_field")
	if field == "" {
		field = q.Get("mgrs_field")
	}

	res, err := s.exporter.Export(r.Context(), export.Request{
		Table:    chi.URLParam(r, "table"),
		Query:    q.Get("q"),
		GeoField: field,
		Limit:    limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if res.URL != "" {
		writeJSON(w, http.StatusOK, res)
		return
	}

	meta, _ := json.Marshal(res.Metadata)
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	w.Header().Set("X-Export-Metadata", string(meta))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

type switchBody struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
	DBPath string `json:"db_path"`
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var body switchBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	driver := database.Driver(strings.ToLower(body.Driver))
	if driver == "" {
		driver = database.DriverSQLite
	}
	dsn := body.DSN
	if dsn == "" {
		dsn = body.DBPath
	}
	if dsn == "" {
		writeError(w, r, errs.New(errs.ErrKindInvalidInput, "dsn or db_path is required"))
		return
	}
	if driver == database.DriverSQLite && isFilePath(dsn) {
		if _, err := os.Stat(dsn); err != nil {
			writeError(w, r, errs.Newf(errs.ErrKindNotFound, "database file not found: %s", dsn))
			return
		}
	}

	err := s.engine.SwitchTo(r.Context(), database.DefaultConfig(driver, dsn))
	switchTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		writeError(w, r, err)
		return
	}

	st, err := s.engine.Stats()
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "switched to " + string(driver) + " database"
	if driver == database.DriverSQLite && isFilePath(dsn) {
		msg += " " + filepath.Base(dsn)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      msg,
		"driver":       driver,
		"total_tables": st.Tables,
	})
}

// isFilePath reports whether a SQLite DSN names a plain file.
func isFilePath(dsn string) bool {
	return dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.Newf(errs.ErrKindInvalidInput, "invalid integer %q", raw)
	}
	return n, nil
}
