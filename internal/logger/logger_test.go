package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type fileConfig struct {
	level, output, file string
}

func (c fileConfig) GetLevel() string  { return c.level }
func (c fileConfig) GetOutput() string { return c.output }
func (c fileConfig) GetFile() string   { return c.file }

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLogLevel("warning"))
	assert.Equal(t, ERROR, ParseLogLevel("error"))
	assert.Equal(t, INFO, ParseLogLevel("verbose"))
	assert.Equal(t, zapcore.FatalLevel, zapLevelFromLogLevel(FATAL))
}

func TestInit_FileOutput(t *testing.T) {
	prev := defaultLogger
	t.Cleanup(func() { SetDefaultLogger(prev) })

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Init(fileConfig{level: "info", output: "file", file: path}))

	Info("listing %d created", 3)
	Debug("not written at info level")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "listing 3 created")
	assert.NotContains(t, string(data), "not written")
}

func TestInit_FileOutputRequiresPath(t *testing.T) {
	require.Error(t, Init(fileConfig{level: "info", output: "file"}))
}

func TestWith_AddsFields(t *testing.T) {
	prev := defaultLogger
	t.Cleanup(func() { SetDefaultLogger(prev) })

	path := filepath.Join(t.TempDir(), "fields.log")
	require.NoError(t, Init(fileConfig{level: "info", output: "file", file: path}))

	With(zap.String("operation", "buyListing")).Warn("operation failed: %s", "busy")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation":"buyListing"`)
	assert.Contains(t, string(data), "operation failed: busy")
}
