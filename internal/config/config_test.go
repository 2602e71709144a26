package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Daemon.Backend != "auto" {
		t.Errorf("expected backend 'auto', got %q", cfg.Daemon.Backend)
	}
	if cfg.Daemon.KeepFinishedTimeout.Std() != 5*time.Second {
		t.Errorf("expected 5s keep_finished_timeout, got %s", cfg.Daemon.KeepFinishedTimeout)
	}
	if cfg.Daemon.CommitTimeout.Std() != 300*time.Second {
		t.Errorf("expected 300s commit_timeout, got %s", cfg.Daemon.CommitTimeout)
	}
	if cfg.Daemon.MaxLockRetries != 4 {
		t.Errorf("expected 4 lock retries, got %d", cfg.Daemon.MaxLockRetries)
	}
	if cfg.Limits.MaximumPackagesToProcess != 5200 {
		t.Errorf("expected 5200 packages, got %d", cfg.Limits.MaximumPackagesToProcess)
	}
	if cfg.Authorization.Default != "challenge" {
		t.Errorf("expected challenge authorization, got %q", cfg.Authorization.Default)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "Log.Level"},
		{"bad auth default", func(c *Config) { c.Authorization.Default = "maybe" }, "Authorization.Default"},
		{"bad auth override", func(c *Config) { c.Authorization.Actions["io.pkgd.package-install"] = "sure" }, "Authorization.Actions"},
		{"zero commit timeout", func(c *Config) { c.Daemon.CommitTimeout = 0 }, "Daemon.CommitTimeout"},
		{"no backend", func(c *Config) { c.Daemon.Backend = "" }, "Daemon.Backend is required"},
		{"metrics without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Address = ""
		}, "Metrics.Address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestAuthorizationFor(t *testing.T) {
	cfg := Default()
	cfg.Authorization.Actions["io.pkgd.package-remove"] = "deny"

	if got := cfg.AuthorizationFor("io.pkgd.package-remove"); got != "deny" {
		t.Errorf("AuthorizationFor(override) = %s, want deny", got)
	}
	if got := cfg.AuthorizationFor("io.pkgd.package-install"); got != "challenge" {
		t.Errorf("AuthorizationFor(default) = %s, want challenge", got)
	}
}

func TestShouldUseColor(t *testing.T) {
	cfg := &Config{
		Output: OutputConfig{Color: true},
	}

	t.Setenv("NO_COLOR", "")
	if !cfg.ShouldUseColor() {
		t.Error("expected ShouldUseColor() to return true")
	}

	t.Setenv("NO_COLOR", "1")
	if cfg.ShouldUseColor() {
		t.Error("expected ShouldUseColor() to return false when NO_COLOR is set")
	}
}

func TestLoadSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.Daemon.Backend = "dummy"
	cfg.Daemon.KeepFinishedTimeout = Duration(2 * time.Second)
	cfg.Authorization.Actions["io.pkgd.system-sources-refresh"] = "allow"

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("SaveTo() error: %v", err)
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if loaded.Daemon.Backend != "dummy" {
		t.Errorf("loaded backend = %q, want dummy", loaded.Daemon.Backend)
	}
	if loaded.Daemon.KeepFinishedTimeout.Std() != 2*time.Second {
		t.Errorf("loaded keep_finished_timeout = %s, want 2s", loaded.Daemon.KeepFinishedTimeout)
	}
	if loaded.AuthorizationFor("io.pkgd.system-sources-refresh") != "allow" {
		t.Error("loaded config doesn't have the authorization override")
	}
}

func TestLoadPartialConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	data := "[daemon]\nbackend = \"dummy\"\ncommit_timeout = \"1m\"\n\n[log]\nformat = \"json\"\n"
	if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if cfg.Daemon.CommitTimeout.Std() != time.Minute {
		t.Errorf("commit_timeout = %s, want 1m", cfg.Daemon.CommitTimeout)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("log = %+v, want json format and default level", cfg.Log)
	}
	if cfg.Daemon.MaxLockRetries != 4 {
		t.Error("unset values should keep their defaults")
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	data := "[daemon]\nkeep_finished_timeout = \"soon\"\n"
	if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(configPath); err == nil {
		t.Error("LoadFrom() should reject an invalid duration")
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	cfg, err := LoadFrom("/non/existent/path/config.toml")
	if err != nil {
		t.Fatalf("LoadFrom() should not error for non-existent file: %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadFrom() should return default config for non-existent file")
	}

	if !cfg.Output.Color {
		t.Error("expected default Color to be true")
	}
}
