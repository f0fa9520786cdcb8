// Package logging builds the zap loggers used across lproc from the log
// section of the configuration.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/najoast/lproc/config"
)

// Logger is a zap logger whose level can change at runtime.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
	close func()
}

// New builds a logger writing to cfg.Log.Output.
func New(cfg *config.Config) (*Logger, error) {
	var (
		ws      zapcore.WriteSyncer
		closeFn = func() {}
	)
	switch cfg.Log.Output {
	case "stdout":
		ws = zapcore.Lock(os.Stdout)
	case "stderr":
		ws = zapcore.Lock(os.Stderr)
	default:
		sink, closeSink, err := zap.Open(cfg.Log.Output)
		if err != nil {
			return nil, fmt.Errorf("open log output %s: %w", cfg.Log.Output, err)
		}
		ws, closeFn = sink, closeSink
	}

	l, err := build(cfg, ws)
	if err != nil {
		closeFn()
		return nil, err
	}
	l.close = closeFn
	return l, nil
}

// NewWithWriter builds a logger writing to w instead of cfg.Log.Output.
func NewWithWriter(cfg *config.Config, w io.Writer) (*Logger, error) {
	return build(cfg, zapcore.Lock(zapcore.AddSync(w)))
}

func build(cfg *config.Config, ws zapcore.WriteSyncer) (*Logger, error) {
	lvl, err := ParseLevel(cfg.GetLogLevel())
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	var enc zapcore.Encoder
	switch cfg.Log.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "text", "":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidLogFormat, cfg.Log.Format)
	}

	fields := []zap.Field{zap.String("app", cfg.App.Name)}
	for k, v := range cfg.Log.Fields {
		fields = append(fields, zap.String(k, v))
	}

	core := zapcore.NewCore(enc, ws, level)
	return &Logger{
		Logger: zap.New(core, zap.AddCaller(), zap.ErrorOutput(ws)).With(fields...),
		level:  level,
		close:  func() {},
	}, nil
}

// ParseLevel maps a configured level onto zap.
func ParseLevel(level config.LogLevel) (zapcore.Level, error) {
	switch level {
	case config.LogLevelDebug:
		return zapcore.DebugLevel, nil
	case config.LogLevelInfo:
		return zapcore.InfoLevel, nil
	case config.LogLevelWarn:
		return zapcore.WarnLevel, nil
	case config.LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("%w: %q", config.ErrInvalidLogLevel, level)
	}
}

// Level returns the current level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// SetLevel changes the level of this logger and every logger derived
// from it.
func (l *Logger) SetLevel(level config.LogLevel) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

// OnConfigChange follows level changes from a config watcher. Format and
// output changes need a restart.
func (l *Logger) OnConfigChange(oldConfig, newConfig *config.Config) {
	if oldConfig.GetLogLevel() == newConfig.GetLogLevel() {
		return
	}
	if err := l.SetLevel(newConfig.GetLogLevel()); err != nil {
		l.Warn("ignoring log level change", zap.Error(err))
		return
	}
	l.Info("log level changed",
		zap.Stringer("from", oldConfig.GetLogLevel()), zap.Stringer("to", newConfig.GetLogLevel()))
}

// Close flushes buffered entries and closes a file output.
func (l *Logger) Close() error {
	err := l.Sync()
	l.close()
	return err
}
