package search

import (
	"context"

	"github.com/koustreak/scout/internal/errs"
)

// maxIndexFields caps the columns of a full-text structure.
const maxIndexFields = 3

// IndexStatus reports the outcome of CreateIndex.
type IndexStatus struct {
	Table     string   `json:"table"`
	Fields    []string `json:"fields"`
	Created   bool     `json:"created"`
	Available bool     `json:"fts_available"`
}

// CreateIndex builds the content-linked full-text structure for table over
// up to three fields, defaulting to the first searchable ones. A backend
// without full-text support is reported through Available, not as an
// error. The catalog is reloaded afterwards so the table shows as indexed.
func (e *Engine) CreateIndex(ctx context.Context, table string, fields []string) (*IndexStatus, error) {
	st, err := e.current()
	if err != nil {
		return nil, err
	}
	t, err := st.catalog.Table(table)
	if err != nil {
		return nil, err
	}

	candidates := fields
	if len(candidates) == 0 {
		candidates = t.SearchableFields
	}

	cols := make([]string, 0, maxIndexFields)
	seen := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		if len(cols) == maxIndexFields {
			break
		}
		col, ok := t.Resolve(name)
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "table %q has no fields to index", t.Name)
	}

	status := &IndexStatus{Table: t.Name, Fields: cols}

	if err := st.handle.CreateFullText(ctx, t.Name, cols); err != nil {
		if errs.IsBackendUnavailable(err) {
			e.log.WarnWith("full-text index unavailable", err, map[string]any{"table": t.Name})
			return status, nil
		}
		return nil, err
	}
	status.Created = true
	status.Available = true

	e.log.InfoWith("full-text index created", map[string]any{"table": t.Name, "fields": cols})

	if err := e.Reload(ctx); err != nil {
		e.log.WarnWith("catalog reload after index build failed", err, nil)
	}
	return status, nil
}
