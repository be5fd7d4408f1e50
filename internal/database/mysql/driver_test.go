package mysql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyMySQLCode(t *testing.T) {
	tests := []struct {
		code uint16
		kind errs.ErrKind
	}{
		{1045, errs.ErrKindPermissionDenied},
		{1049, errs.ErrKindConnectionFailed},
		{1146, errs.ErrKindNotFound},
		{1205, errs.ErrKindTimeout},
		{1064, errs.ErrKindQueryFailed},
		{1054, errs.ErrKindQueryFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, classifyMySQLCode(tt.code), "code %d", tt.code)
	}
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil, "x"))
	assert.True(t, errs.IsTimeout(mapError(context.Canceled, "q")))
	assert.True(t, errs.IsNotFound(mapError(sql.ErrNoRows, "q")))
	assert.True(t, errs.IsConnectionFailed(mapError(errors.New("broken pipe"), "q")))

	got := mapError(&mysql.MySQLError{Number: 1054, Message: "Unknown column 'x'"}, "query failed")
	assert.True(t, errs.IsQueryFailed(got))
	assert.Contains(t, got.Error(), "Unknown column 'x'")
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(context.Background(), database.DefaultConfig(database.DriverMySQL, "not a dsn"))
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}
