// Package config provides configuration management for lproc
package config

import (
	"fmt"
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Duration is a time.Duration written as "250ms" or "1m30s" in every
// config format.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the duration in time.Duration notation
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config represents the complete lproc configuration
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app" toml:"app"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log" toml:"log"`

	// Process supervisor configuration
	Proc ProcConfig `yaml:"proc" json:"proc" toml:"proc"`

	// Rendezvous coordinator configuration
	Coordinator CoordinatorConfig `yaml:"coordinator" json:"coordinator" toml:"coordinator"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	// Application name
	Name string `yaml:"name" json:"name" toml:"name"`

	// Application version
	Version string `yaml:"version" json:"version" toml:"version"`

	// Deployment environment
	Environment Environment `yaml:"environment" json:"environment" toml:"environment"`

	// Debug mode
	Debug bool `yaml:"debug" json:"debug" toml:"debug"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level
	Level LogLevel `yaml:"level" json:"level" toml:"level"`

	// Log format (json, text)
	Format string `yaml:"format" json:"format" toml:"format"`

	// Output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output" toml:"output"`

	// Fields added to every log entry
	Fields map[string]string `yaml:"fields,omitempty" json:"fields,omitempty" toml:"fields,omitempty"`
}

// ProcConfig contains process supervisor settings
type ProcConfig struct {
	// Maximum concurrently running processes, 0 for no limit
	MaxProcs int64 `yaml:"max_procs" json:"max_procs" toml:"max_procs"`

	// Pin every process to its own OS thread
	LockOSThread bool `yaml:"lock_os_thread" json:"lock_os_thread" toml:"lock_os_thread"`

	// Prefix for generated process names
	NamePrefix string `yaml:"name_prefix" json:"name_prefix" toml:"name_prefix"`
}

// CoordinatorConfig contains rendezvous settings
type CoordinatorConfig struct {
	// Upper bound on a single send or receive, 0 to block forever
	DefaultDeadline Duration `yaml:"default_deadline" json:"default_deadline" toml:"default_deadline"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "lproc",
			Version:     "1.0.0",
			Environment: EnvDevelopment,
		},
		Log: LogConfig{
			Level:  LogLevelWarn,
			Format: "text",
			Output: "stderr",
		},
		Proc: ProcConfig{
			MaxProcs:     0,
			LockOSThread: true,
			NamePrefix:   "proc",
		},
		Coordinator: CoordinatorConfig{
			DefaultDeadline: 0,
		},
	}
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	if c.Log.Fields != nil {
		clone.Log.Fields = make(map[string]string, len(c.Log.Fields))
		for k, v := range c.Log.Fields {
			clone.Log.Fields[k] = v
		}
	}
	return &clone
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate app config
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Environment.IsValid() {
		return ErrInvalidEnvironment
	}

	// Validate log config
	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return ErrInvalidLogFormat
	}
	if c.Log.Output == "" {
		return ErrInvalidLogOutput
	}

	// Validate proc config
	if c.Proc.MaxProcs < 0 {
		return ErrInvalidMaxProcs
	}
	if c.Proc.NamePrefix == "" {
		return ErrInvalidNamePrefix
	}

	// Validate coordinator config
	if c.Coordinator.DefaultDeadline < 0 {
		return ErrInvalidDeadline
	}

	return nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// GetLogLevel returns the log level, forced to debug in debug mode
func (c *Config) GetLogLevel() LogLevel {
	if c.App.Debug {
		return LogLevelDebug
	}
	return c.Log.Level
}
