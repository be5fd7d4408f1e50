// Package config loads Scout's settings: defaults in code, then an
// optional YAML file, then environment overrides, then validation.
//
// Secrets (the database DSN may carry a password, the object store secret
// key) can come from either source, but the environment always wins.
package config

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/errs"
	"github.com/koustreak/scout/internal/filestore"
	"github.com/koustreak/scout/internal/logger"
	"go.yaml.in/yaml/v3"
)

// MaxSearchSize is the hard ceiling on hits per search request.
const MaxSearchSize = 10000

// Config holds all configuration for Scout.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Export   ExportConfig   `yaml:"export"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	BindAddr        string        `yaml:"bind_addr" env:"SCOUT_BIND_ADDR"`
	Port            int           `yaml:"port" env:"SCOUT_PORT"`
	MaxSize         int           `yaml:"max_size" env:"SCOUT_MAX_SIZE"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SCOUT_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SCOUT_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SCOUT_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig names the database searched at startup.
type DatabaseConfig struct {
	Driver         string        `yaml:"driver" env:"SCOUT_DB_DRIVER"`
	DSN            string        `yaml:"dsn" env:"SCOUT_DB_DSN"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"SCOUT_DB_CONNECT_TIMEOUT"`
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Level  string `yaml:"level" env:"SCOUT_LOG_LEVEL"`
	Format string `yaml:"format" env:"SCOUT_LOG_FORMAT"`
}

// ExportConfig controls where exports are published. Exports are still
// served inline when Enabled is false.
type ExportConfig struct {
	Enabled    bool          `yaml:"enabled" env:"SCOUT_EXPORT_ENABLED"`
	Endpoint   string        `yaml:"endpoint" env:"SCOUT_EXPORT_ENDPOINT"`
	AccessKey  string        `yaml:"access_key" env:"SCOUT_EXPORT_ACCESS_KEY"`
	SecretKey  string        `yaml:"secret_key" env:"SCOUT_EXPORT_SECRET_KEY"`
	UseSSL     bool          `yaml:"use_ssl" env:"SCOUT_EXPORT_USE_SSL"`
	Region     string        `yaml:"region" env:"SCOUT_EXPORT_REGION"`
	Bucket     string        `yaml:"bucket" env:"SCOUT_EXPORT_BUCKET"`
	PresignTTL time.Duration `yaml:"presign_ttl" env:"SCOUT_EXPORT_PRESIGN_TTL"`
}

// Default returns the built-in configuration: a local SQLite file served
// on 127.0.0.1:8000.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddr:        "127.0.0.1",
			Port:            8000,
			MaxSize:         MaxSearchSize,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         string(database.DriverSQLite),
			DSN:            "scout.db",
			ConnectTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Export: ExportConfig{
			Bucket:     "scout-exports",
			PresignTTL: filestore.DefaultPresignTTL,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file", err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return nil, err
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read environment", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML overlays data on cfg. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func (c *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to parse config file", err)
	}
	return nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch database.Driver(c.Database.Driver) {
	case database.DriverSQLite, database.DriverPostgres, database.DriverMySQL:
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errs.New(errs.ErrKindInvalidInput, "database dsn is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errs.Newf(errs.ErrKindInvalidInput, "invalid server port %d", c.Server.Port)
	}
	if c.Server.MaxSize <= 0 || c.Server.MaxSize > MaxSearchSize {
		c.Server.MaxSize = MaxSearchSize
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported log format %q", c.Log.Format)
	}

	if c.Export.Enabled {
		if c.Export.Endpoint == "" {
			return errs.New(errs.ErrKindInvalidInput, "export endpoint is required when export publishing is enabled")
		}
		if c.Export.Bucket == "" {
			return errs.New(errs.ErrKindInvalidInput, "export bucket is required when export publishing is enabled")
		}
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.BindAddr, strconv.Itoa(c.Server.Port))
}

// DatabaseConfig converts the database section for connect.Open.
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:         database.Driver(c.Database.Driver),
		DSN:            c.Database.DSN,
		ConnectTimeout: c.Database.ConnectTimeout,
	}
}

// FileStoreConfig converts the export section, or returns nil when
// publishing is disabled.
func (c *Config) FileStoreConfig() *filestore.Config {
	if !c.Export.Enabled {
		return nil
	}
	return &filestore.Config{
		Provider:   filestore.ProviderMinIO,
		Endpoint:   c.Export.Endpoint,
		AccessKey:  c.Export.AccessKey,
		SecretKey:  c.Export.SecretKey,
		UseSSL:     c.Export.UseSSL,
		Region:     c.Export.Region,
		Bucket:     c.Export.Bucket,
		PresignTTL: c.Export.PresignTTL,
	}
}

// LoggerConfig converts the log section, writing to out.
func (c *Config) LoggerConfig(out io.Writer) *logger.Config {
	return &logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: "rfc3339",
		Output:     out,
	}
}
