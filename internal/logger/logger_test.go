package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json config", config: &Config{Level: "debug", Format: "json", Output: io.Discard}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
		{name: "nil output", config: &Config{Level: "warn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.Info("catalog loaded")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "catalog loaded", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.With().
		Str("table", "products").
		Int("rows", 42).
		Bool("degraded", false).
		Logger().
		Info("table described")

	entry := decode(t, buf)
	assert.Equal(t, "products", entry["table"])
	assert.Equal(t, float64(42), entry["rows"])
	assert.Equal(t, false, entry["degraded"])
}

func TestLogger_Component(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Output: buf}).Component("search")

	log.Info("ready")

	assert.Equal(t, "search", decode(t, buf)["component"])
}

func TestLogger_ErrorWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "error", Format: "json", Output: buf})

	log.ErrorWith("search failed", errors.New("no such table: x"), map[string]any{
		"table": "x",
	})

	entry := decode(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "no such table: x", entry["error"])
	assert.Equal(t, "x", entry["table"])
}

func TestLogger_Request(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Output: buf})

	log.Request("GET", "/health", 200, 3*time.Millisecond)

	entry := decode(t, buf)
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/health", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := log.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	assert.Equal(t, "from context", decode(t, buf)["message"])
}

func TestFromContext_Empty(t *testing.T) {
	assert.NotPanics(t, func() {
		FromContext(context.Background()).Info("dropped")
	})
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{"debug level logs debug", "debug", func(l *Logger) { l.Debug("d") }, true},
		{"info level skips debug", "info", func(l *Logger) { l.Debug("d") }, false},
		{"warn level logs warn", "warn", func(l *Logger) { l.Warn("w") }, true},
		{"error level skips info", "error", func(l *Logger) { l.Info("i") }, false},
		{"disabled skips error", "disabled", func(l *Logger) { l.Error("e") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := New(&Config{Level: tt.level, Format: "json", Output: buf})

			tt.logFunc(log)

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func BenchmarkLogger_WithFields(b *testing.B) {
	log := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.With().
			Str("table", "products").
			Int("hits", i).
			Logger().
			Info("search")
	}
}
