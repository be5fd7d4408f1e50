package connect

import (
	"context"
	"testing"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLite(t *testing.T) {
	h, err := Open(context.Background(), database.DefaultConfig(database.DriverSQLite, ":memory:"))
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, database.DialectSQLite, h.Dialect())
	require.NoError(t, h.Ping(context.Background()))
}

func TestOpen_Rejects(t *testing.T) {
	_, err := Open(context.Background(), nil)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = Open(context.Background(), database.DefaultConfig("oracle", "x"))
	assert.True(t, errs.IsInvalidInput(err))
}
