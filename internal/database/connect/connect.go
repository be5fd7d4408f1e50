// Package connect opens a database.Handle for any supported driver.
package connect

import (
	"context"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/database/mysql"
	"github.com/koustreak/scout/internal/database/postgres"
	"github.com/koustreak/scout/internal/database/sqlite"
	"github.com/koustreak/scout/internal/errs"
)

// Open connects the backend named by cfg.Driver and wraps it in a Handle.
func Open(ctx context.Context, cfg *database.Config) (*database.Handle, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "database DSN is required")
	}

	var (
		backend database.Backend
		err     error
	)
	switch cfg.Driver {
	case database.DriverSQLite, "":
		backend, err = sqlite.New(ctx, cfg)
	case database.DriverPostgres:
		backend, err = postgres.New(ctx, cfg)
	case database.DriverMySQL:
		backend, err = mysql.New(ctx, cfg)
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return database.NewHandle(backend), nil
}
