// Package config loads the service configuration from a TOML file.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "config.toml"

// EnvPrefix scopes environment overrides, e.g. HOSTPULSE_HTTP_PORT.
const EnvPrefix = "HOSTPULSE"

// LogOutput selects the log sinks.
type LogOutput string

const (
	LogConsole LogOutput = "console"
	LogFile    LogOutput = "file"
	LogBoth    LogOutput = "both"
)

// ParseLogOutput maps unrecognized values to LogBoth.
func ParseLogOutput(s string) LogOutput {
	switch LogOutput(strings.ToLower(strings.TrimSpace(s))) {
	case LogConsole:
		return LogConsole
	case LogFile:
		return LogFile
	default:
		return LogBoth
	}
}

// Config is the validated service configuration.
type Config struct {
	// DatabaseDSN is reserved; nothing connects to it yet.
	DatabaseDSN string
	HTTPHost    string
	HTTPPort    uint16
	LogOutput   LogOutput
	LogDir      string
}

// ConfigurationError is returned for a missing or malformed config file.
// The process must not start when it occurs.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

var keys = []string{"database_dsn", "http_host", "http_port", "log_output", "log_dir"}

type fileConfig struct {
	DatabaseDSN string `mapstructure:"database_dsn"`
	HTTPHost    string `mapstructure:"http_host"`
	LogOutput   string `mapstructure:"log_output"`
	LogDir      string `mapstructure:"log_dir"`
}

// Load reads path and validates it. http_port is required.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("binding env for %s: %w", key, err)}
		}
	}

	v.SetDefault("database_dsn", "")
	v.SetDefault("http_host", "127.0.0.1")
	v.SetDefault("log_output", string(LogBoth))
	v.SetDefault("log_dir", "logs")

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("reading: %w", err)}
	}
	if !v.IsSet("http_port") {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("http_port is required")}
	}

	port, err := parsePort(v.Get("http_port"))
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("decoding: %w", err)}
	}

	return &Config{
		DatabaseDSN: fc.DatabaseDSN,
		HTTPHost:    fc.HTTPHost,
		HTTPPort:    port,
		LogOutput:   ParseLogOutput(fc.LogOutput),
		LogDir:      fc.LogDir,
	}, nil
}

// parsePort accepts TOML integers and decimal strings from the environment.
// Floats are rejected rather than truncated.
func parsePort(raw any) (uint16, error) {
	var n int64
	switch p := raw.(type) {
	case int:
		n = int64(p)
	case int32:
		n = int64(p)
	case int64:
		n = p
	case uint64:
		if p > math.MaxUint16 {
			return 0, fmt.Errorf("http_port %d out of range 1-%d", p, math.MaxUint16)
		}
		n = int64(p)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("http_port %q is not an integer", p)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("http_port must be an integer, got %T", raw)
	}
	if n < 1 || n > math.MaxUint16 {
		return 0, fmt.Errorf("http_port %d out of range 1-%d", n, math.MaxUint16)
	}
	return uint16(n), nil
}
