// Package search is the orchestrator: it owns the live database handle and
// the catalog loaded from it, and answers search, aggregation, facet and
// full-text index requests against them.
package search

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/database/connect"
	"github.com/koustreak/scout/internal/errs"
	"github.com/koustreak/scout/internal/logger"
	"github.com/koustreak/scout/internal/schema"
)

// state pairs a handle with the catalog loaded through it. A state is
// never mutated; switching databases publishes a new one.
type state struct {
	handle  *database.Handle
	catalog *schema.Catalog
}

// Engine serves searches over one database at a time.
//
// Readers take a snapshot of the current state and run every statement of
// their request against it. Switch publishes the new state first and then
// closes the old handle, which waits for the statement in flight; any
// later statement on the stale snapshot fails with ErrKindClosed.
type Engine struct {
	mu    sync.Mutex // serializes Switch, Reload and Close
	state atomic.Pointer[state]
	log   *logger.Logger
}

// New loads the catalog through h and returns an Engine that owns h.
func New(ctx context.Context, h *database.Handle, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Nop()
	}
	cat, err := schema.Load(ctx, h, log)
	if err != nil {
		return nil, err
	}

	e := &Engine{log: log.Component("search")}
	e.state.Store(&state{handle: h, catalog: cat})
	return e, nil
}

// Open connects to the database described by cfg and loads its catalog.
func Open(ctx context.Context, cfg *database.Config, log *logger.Logger) (*Engine, error) {
	h, err := connect.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e, err := New(ctx, h, log)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) current() (*state, error) {
	st := e.state.Load()
	if st == nil {
		return nil, errs.New(errs.ErrKindClosed, "search engine is closed")
	}
	return st, nil
}

// Catalog returns the current catalog, or nil once the engine is closed.
func (e *Engine) Catalog() *schema.Catalog {
	st := e.state.Load()
	if st == nil {
		return nil
	}
	return st.catalog
}

// Table returns the current descriptor for name.
func (e *Engine) Table(name string) (*schema.Table, error) {
	st, err := e.current()
	if err != nil {
		return nil, err
	}
	return st.catalog.Table(name)
}

// Ping checks the live connection.
func (e *Engine) Ping(ctx context.Context) error {
	st, err := e.current()
	if err != nil {
		return err
	}
	return st.handle.Ping(ctx)
}

// Switch loads a catalog through h and makes it the live database,
// closing the previous handle. The engine takes ownership of h; if the
// load fails h is closed and the current database stays live.
func (e *Engine) Switch(ctx context.Context, h *database.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Load() == nil {
		_ = h.Close()
		return errs.New(errs.ErrKindClosed, "search engine is closed")
	}

	cat, err := schema.Load(ctx, h, e.log)
	if err != nil {
		_ = h.Close()
		return err
	}

	old := e.state.Swap(&state{handle: h, catalog: cat})
	if err := old.handle.Close(); err != nil {
		e.log.WarnWith("failed to close previous database", err, nil)
	}

	e.log.InfoWith("database switched", map[string]any{
		"dialect": h.Dialect().String(),
		"tables":  len(cat.Names),
	})
	return nil
}

// SwitchTo opens the database described by cfg and switches to it.
func (e *Engine) SwitchTo(ctx context.Context, cfg *database.Config) error {
	h, err := connect.Open(ctx, cfg)
	if err != nil {
		return err
	}
	return e.Switch(ctx, h)
}

// Reload rebuilds the catalog of the live database.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.current()
	if err != nil {
		return err
	}
	cat, err := schema.Load(ctx, st.handle, e.log)
	if err != nil {
		return err
	}
	e.state.Store(&state{handle: st.handle, catalog: cat})
	return nil
}

// Close closes the live handle. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state.Swap(nil)
	if st == nil {
		return nil
	}
	return st.handle.Close()
}

// Stats summarizes the live catalog.
type Stats struct {
	Dialect           string    `json:"dialect"`
	Tables            int       `json:"total_tables"`
	TotalRows         int64     `json:"total_rows"`
	TableNames        []string  `json:"tables"`
	FullTextAvailable bool      `json:"fts_available"`
	FullTextTables    []string  `json:"fts_tables"`
	LoadedAt          time.Time `json:"loaded_at"`
}

// Stats reports table and row totals from the catalog snapshot.
func (e *Engine) Stats() (*Stats, error) {
	st, err := e.current()
	if err != nil {
		return nil, err
	}
	cat := st.catalog
	return &Stats{
		Dialect:           st.handle.Dialect().String(),
		Tables:            len(cat.Names),
		TotalRows:         cat.TotalRows(),
		TableNames:        cat.Names,
		FullTextAvailable: cat.FullTextAvailable,
		FullTextTables:    cat.FullTextTables,
		LoadedAt:          cat.LoadedAt,
	}, nil
}
