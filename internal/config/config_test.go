package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "127.0.0.1:8000", cfg.Addr())
	assert.Nil(t, cfg.FileStoreConfig())

	db := cfg.DatabaseConfig()
	assert.Equal(t, database.DriverSQLite, db.Driver)
	assert.Equal(t, "scout.db", db.DSN)
	assert.Equal(t, 10*time.Second, db.ConnectTimeout)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9200
  max_size: 500
database:
  driver: Postgres
  dsn: postgres://scout@localhost:5432/intel
  connect_timeout: 3s
log:
  level: debug
  format: console
export:
  enabled: true
  endpoint: localhost:9000
  access_key: minioadmin
  secret_key: minioadmin
  presign_ttl: 1h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.BindAddr, "unset keys keep defaults")
	assert.Equal(t, 500, cfg.Server.MaxSize)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "console", cfg.LoggerConfig(nil).Format)

	fs := cfg.FileStoreConfig()
	require.NotNil(t, fs)
	assert.Equal(t, "localhost:9000", fs.Endpoint)
	assert.Equal(t, "scout-exports", fs.Bucket)
	assert.Equal(t, time.Hour, fs.PresignTTL)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9200
database:
  dsn: from-yaml.db
`)
	t.Setenv("SCOUT_PORT", "9300")
	t.Setenv("SCOUT_DB_DSN", "from-env.db")
	t.Setenv("SCOUT_EXPORT_SECRET_KEY", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9300, cfg.Server.Port)
	assert.Equal(t, "from-env.db", cfg.Database.DSN)
	assert.Equal(t, "s3cret", cfg.Export.SecretKey)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "server:\n  prot: 80\n"},
		{"bad yaml", "server: [\n"},
		{"bad driver", "database:\n  driver: oracle\n"},
		{"empty dsn", "database:\n  dsn: \"\"\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"export without endpoint", "export:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, errs.IsInvalidInput(err), "got %v", err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errs.IsInvalidInput(err))
}

func TestValidate_ClampsMaxSize(t *testing.T) {
	cfg := Default()
	cfg.Server.MaxSize = 1_000_000
	require.NoError(t, cfg.Validate())
	assert.Equal(t, MaxSearchSize, cfg.Server.MaxSize)

	cfg.Server.MaxSize = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, MaxSearchSize, cfg.Server.MaxSize)
}
