package database

import (
	"context"
	"sync"

	"github.com/koustreak/scout/internal/errs"
)

// Handle serializes every statement over one Backend. The lock is held for
// a single statement, including reading its rows to completion, and never
// across statements: unrelated callers interleave at statement granularity.
//
// Close waits for the in-flight statement, closes the backend, and marks
// the handle closed. Any later call fails with ErrKindClosed, which is how
// a search racing a database switch fails cleanly.
type Handle struct {
	mu      sync.Mutex
	backend Backend
	closed  bool
}

var _ Conn = (*Handle)(nil)

// NewHandle takes ownership of backend.
func NewHandle(backend Backend) *Handle {
	return &Handle{backend: backend}
}

func errClosed() error {
	return errs.New(errs.ErrKindClosed, "database handle is closed")
}

// Dialect reports the backend's SQL dialect.
func (h *Handle) Dialect() Dialect {
	return h.backend.Dialect()
}

// Ping verifies the backend is reachable.
func (h *Handle) Ping(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errClosed()
	}
	return h.backend.Ping(ctx)
}

// Query runs sql and materializes the full result under the lock.
func (h *Handle) Query(ctx context.Context, sql string, args ...any) (*ResultSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errClosed()
	}
	rows, err := h.backend.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return ScanRows(rows)
}

// Exec runs a statement that returns no rows.
func (h *Handle) Exec(ctx context.Context, sql string, args ...any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errClosed()
	}
	return h.backend.Exec(ctx, sql, args...)
}

func (h *Handle) ListTables(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errClosed()
	}
	return h.backend.ListTables(ctx)
}

func (h *Handle) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errClosed()
	}
	return h.backend.Columns(ctx, table)
}

func (h *Handle) IndexedColumns(ctx context.Context, table string) (map[string]bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errClosed()
	}
	return h.backend.IndexedColumns(ctx, table)
}

func (h *Handle) FullTextAvailable(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	return h.backend.FullTextAvailable(ctx)
}

func (h *Handle) FullTextTables(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errClosed()
	}
	return h.backend.FullTextTables(ctx)
}

func (h *Handle) CreateFullText(ctx context.Context, table string, fields []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errClosed()
	}
	return h.backend.CreateFullText(ctx, table, fields)
}

// Close waits for the in-flight statement, then closes the backend.
// Closing twice is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.backend.Close()
}
