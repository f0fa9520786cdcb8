package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/najoast/lproc/config"
)

func jsonConfig(level config.LogLevel) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Log.Format = "json"
	cfg.Log.Level = level
	cfg.Log.Fields = map[string]string{"node": "n1"}
	return cfg
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(jsonConfig(config.LogLevelInfo), &buf)
	require.NoError(t, err)

	l.Info("process failed", zap.String("proc", "proc-1"))
	require.NoError(t, l.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "process failed", entry["msg"])
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "proc-1", entry["proc"])
	require.Equal(t, "lproc", entry["app"])
	require.Equal(t, "n1", entry["node"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(jsonConfig(config.LogLevelWarn), &buf)
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestSetLevelAffectsDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(jsonConfig(config.LogLevelError), &buf)
	require.NoError(t, err)

	child := l.With(zap.String("component", "supervisor"))
	child.Debug("before")
	require.NoError(t, l.SetLevel(config.LogLevelDebug))
	child.Debug("after")

	require.Equal(t, zapcore.DebugLevel, l.Level())
	require.NotContains(t, buf.String(), "before")
	require.Contains(t, buf.String(), "after")

	require.ErrorIs(t, l.SetLevel("loud"), config.ErrInvalidLogLevel)
}

func TestOnConfigChange(t *testing.T) {
	var buf bytes.Buffer
	oldCfg := jsonConfig(config.LogLevelWarn)
	l, err := NewWithWriter(oldCfg, &buf)
	require.NoError(t, err)

	newCfg := oldCfg.Clone()
	newCfg.Log.Level = config.LogLevelInfo
	l.OnConfigChange(oldCfg, newCfg)
	require.Equal(t, zapcore.InfoLevel, l.Level())
	require.Contains(t, buf.String(), "log level changed")

	// Debug mode forces debug regardless of the level field
	debugCfg := newCfg.Clone()
	debugCfg.App.Debug = true
	l.OnConfigChange(newCfg, debugCfg)
	require.Equal(t, zapcore.DebugLevel, l.Level())
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.Log.Level = config.LogLevelInfo
	l, err := NewWithWriter(cfg, &buf)
	require.NoError(t, err)

	l.Info("hello", zap.Int("n", 3))
	line := buf.String()
	require.Contains(t, line, "INFO")
	require.Contains(t, line, "hello")
	require.Contains(t, line, `"n": 3`)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lproc.log")
	cfg := jsonConfig(config.LogLevelInfo)
	cfg.Log.Output = path

	l, err := New(cfg)
	require.NoError(t, err)
	l.Error("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "to file"))
}

func TestInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.Format = "xml"
	_, err := NewWithWriter(cfg, &bytes.Buffer{})
	require.ErrorIs(t, err, config.ErrInvalidLogFormat)

	_, err = ParseLevel("verbose")
	require.ErrorIs(t, err, config.ErrInvalidLogLevel)
}
