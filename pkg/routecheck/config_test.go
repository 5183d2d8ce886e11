package routecheck

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// DefaultConfig Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if config.Probe.Timeout != 30*time.Second {
		t.Errorf("Probe.Timeout = %v, want 30s", config.Probe.Timeout)
	}
	if config.Probe.FollowRedirects {
		t.Error("Probe.FollowRedirects should default to false")
	}
	if config.Validation.Codec != "json" {
		t.Errorf("Validation.Codec = %s, want json", config.Validation.Codec)
	}
	if !config.State.Enabled || config.State.Path == "" {
		t.Error("state should be enabled with a default path")
	}
	if len(config.Probe.Scope.ExcludePatterns) == 0 {
		t.Error("default scope should exclude logout paths")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v", err)
	}
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid server", func(c *Config) { c.Server = "http://localhost:8080" }, ""},
		{"relative server", func(c *Config) { c.Server = "localhost:8080/app" }, "absolute URL"},
		{"credentials without server", func(c *Config) { c.Auth.Credentials = "/login;u=a" }, "require a server"},
		{"zero timeout", func(c *Config) { c.Probe.Timeout = 0 }, "timeout"},
		{"negative rate", func(c *Config) { c.Probe.RequestsPerSecond = -1 }, "rate limit"},
		{"unknown codec", func(c *Config) { c.Validation.Codec = "xml" }, "unknown codec"},
		{"bad glob", func(c *Config) { c.Probe.Scope.IncludePatterns = []string{"api/[a"} }, "invalid scope"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"state without path", func(c *Config) { c.State.Path = "" }, "state path"},
		{"state disabled without path", func(c *Config) { c.State.Enabled = false; c.State.Path = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)

			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// File Tests
// =============================================================================

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routecheck.yaml")
	content := `server: http://localhost:8080
auth:
  credentials: /login;username=admin;password=secret
  reuse_session: true
  session_max_age: 1h
probe:
  timeout: 5s
  rate: 20
  burst: 5
  follow_redirects: true
  scope:
    include:
      - api/**
validation:
  codec: yaml
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if config.Server != "http://localhost:8080" {
		t.Errorf("Server = %s", config.Server)
	}
	if !config.Auth.ReuseSession || config.Auth.SessionMaxAge != time.Hour {
		t.Errorf("Auth = %+v", config.Auth)
	}
	if config.Probe.Timeout != 5*time.Second || config.Probe.RequestsPerSecond != 20 || config.Probe.Burst != 5 {
		t.Errorf("Probe = %+v", config.Probe)
	}
	if !config.Probe.FollowRedirects {
		t.Error("FollowRedirects should be true")
	}
	if len(config.Probe.Scope.IncludePatterns) != 1 || config.Probe.Scope.IncludePatterns[0] != "api/**" {
		t.Errorf("IncludePatterns = %v", config.Probe.Scope.IncludePatterns)
	}
	if config.Validation.Codec != "yaml" || config.Log.Level != "debug" {
		t.Errorf("Validation = %+v, Log = %+v", config.Validation, config.Log)
	}
	// Unset sections keep their defaults.
	if config.Probe.UserAgent != "routecheck/1.0" {
		t.Errorf("UserAgent = %s, want default", config.Probe.UserAgent)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routecheck.json")
	if err := os.WriteFile(path, []byte(`{"server": "https://app.test", "probe": {"burst": 3}}`), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if config.Server != "https://app.test" || config.Probe.Burst != 3 {
		t.Errorf("config = %+v", config)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFromFile() should fail for a missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("server: [unclosed"), 0644)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("LoadFromFile() should fail for malformed content")
	}
}

func TestConfig_SaveToFile(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			config := DefaultConfig()
			config.Server = "http://localhost:9000"
			config.Probe.Scope.Methods = []string{"GET"}

			if err := config.SaveToFile(path); err != nil {
				t.Fatalf("SaveToFile() error = %v", err)
			}

			loaded, err := LoadFromFile(path)
			if err != nil {
				t.Fatalf("LoadFromFile() error = %v", err)
			}
			if loaded.Server != config.Server {
				t.Errorf("Server = %s, want %s", loaded.Server, config.Server)
			}
			if len(loaded.Probe.Scope.Methods) != 1 {
				t.Errorf("Methods = %v", loaded.Probe.Scope.Methods)
			}
		})
	}
}

func TestConfig_Clone(t *testing.T) {
	config := DefaultConfig()
	config.Probe.Headers = map[string]string{"X-Test": "1"}

	clone := config.Clone()
	clone.Probe.Headers["X-Test"] = "2"
	clone.Server = "http://other"

	if config.Probe.Headers["X-Test"] != "1" || config.Server != "" {
		t.Error("Clone() should not share state with the original")
	}
}
