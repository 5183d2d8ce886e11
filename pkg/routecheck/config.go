package routecheck

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/routecheck/internal/codec"
	"github.com/PentesterFlow/routecheck/internal/logger"
	"github.com/PentesterFlow/routecheck/internal/output"
	"github.com/PentesterFlow/routecheck/internal/scope"
)

// Config holds all routecheck configuration.
type Config struct {
	// Server is the base URL probed after validation. Empty disables probing.
	Server string `json:"server" yaml:"server"`

	Auth       AuthConfig       `json:"auth" yaml:"auth"`
	Probe      ProbeConfig      `json:"probe" yaml:"probe"`
	Validation ValidationConfig `json:"validation" yaml:"validation"`
	Output     output.Config    `json:"output" yaml:"output"`
	State      StateConfig      `json:"state" yaml:"state"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// AuthConfig configures login before probing.
type AuthConfig struct {
	// Credentials is "endpoint;name=value;name=value".
	Credentials string `json:"credentials" yaml:"credentials"`

	// ReuseSession loads a stored session instead of logging in again.
	ReuseSession bool `json:"reuse_session" yaml:"reuse_session"`

	// SessionMaxAge limits how old a reused session may be. Zero means no limit.
	SessionMaxAge time.Duration `json:"session_max_age" yaml:"session_max_age"`
}

// ProbeConfig configures the HTTP probe.
type ProbeConfig struct {
	Timeout           time.Duration     `json:"timeout" yaml:"timeout"`
	RequestsPerSecond float64           `json:"rate" yaml:"rate"`
	Burst             int               `json:"burst" yaml:"burst"`
	FollowRedirects   bool              `json:"follow_redirects" yaml:"follow_redirects"`
	UserAgent         string            `json:"user_agent" yaml:"user_agent"`
	Headers           map[string]string `json:"headers" yaml:"headers"`
	Proxy             string            `json:"proxy" yaml:"proxy"`
	NoProxy           string            `json:"no_proxy" yaml:"no_proxy"`
	SkipTLSVerify     bool              `json:"skip_tls_verify" yaml:"skip_tls_verify"`
	Scope             scope.Rules       `json:"scope" yaml:"scope"`
	// Progress draws a progress bar on stderr while probing.
	Progress bool `json:"progress" yaml:"progress"`
}

// ValidationConfig selects the codec used for round-trip checks.
type ValidationConfig struct {
	Codec string `json:"codec" yaml:"codec"`
}

// StateConfig configures the persisted state store.
type StateConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string             `json:"level" yaml:"level"`
	Format string             `json:"format" yaml:"format"`
	File   *logger.FileConfig `json:"file,omitempty" yaml:"file,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Probe: ProbeConfig{
			Timeout:           30 * time.Second,
			RequestsPerSecond: 0,
			Burst:             1,
			FollowRedirects:   false,
			UserAgent:         "routecheck/1.0",
			SkipTLSVerify:     true,
			Scope: scope.Rules{
				ExcludePatterns: append([]string(nil), scope.DefaultExcludePatterns...),
			},
		},
		Validation: ValidationConfig{
			Codec: "json",
		},
		Output: output.Config{
			Format: "json",
			Pretty: true,
		},
		State: StateConfig{
			Enabled: true,
			Path:    ".routecheck/state.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server != "" {
		u, err := url.Parse(c.Server)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server must be an absolute URL: %q", c.Server)
		}
	}

	if c.Auth.Credentials != "" && c.Server == "" {
		return fmt.Errorf("credentials require a server")
	}

	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}

	if c.Probe.RequestsPerSecond < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}

	if _, err := codec.ByName(c.Validation.Codec); err != nil {
		return err
	}

	if _, err := scope.NewChecker(c.Probe.Scope); err != nil {
		return fmt.Errorf("invalid scope: %w", err)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", c.Log.Format)
	}

	if c.State.Enabled && c.State.Path == "" {
		return fmt.Errorf("state path is required when state is enabled")
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}
