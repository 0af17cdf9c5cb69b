package types

import (
	"strings"
	"time"
)

// Config holds the engine settings loaded by the CLI and passed to the
// registry, history and store constructors.
type Config struct {
	DataDir           string        `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	BasePath          string        `json:"base_path" yaml:"base_path,omitempty" mapstructure:"base_path"`
	MaxHistory        int           `json:"max_history" yaml:"max_history" mapstructure:"max_history"`
	ValidationTimeout time.Duration `json:"validation_timeout" yaml:"validation_timeout" mapstructure:"validation_timeout"`
	LogLevel          string        `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogFormat         string        `json:"log_format" yaml:"log_format" mapstructure:"log_format"`
}

// Defaults applied by DefaultConfig and by the CLI config loader.
const (
	DefaultMaxHistory        = 100
	DefaultValidationTimeout = 2 * time.Second
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
)

// Supported log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

var knownLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// DefaultConfig returns a Config with every default filled in. DataDir is
// left empty; callers resolve it through internal/paths.
func DefaultConfig() Config {
	return Config{
		MaxHistory:        DefaultMaxHistory,
		ValidationTimeout: DefaultValidationTimeout,
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.MaxHistory <= 0 {
		return ErrMaxHistoryInvalid
	}
	if c.ValidationTimeout <= 0 {
		return ErrTimeoutInvalid
	}
	if !knownLogLevels[strings.ToLower(c.LogLevel)] {
		return ErrLogLevelUnknown
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		return ErrLogFormatUnknown
	}
	return nil
}

// ResolvedBasePath returns BasePath, falling back to DataDir.
func (c Config) ResolvedBasePath() string {
	if c.BasePath != "" {
		return c.BasePath
	}
	return c.DataDir
}
