package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func asUser(t *testing.T) {
	t.Helper()
	orig := geteuid
	geteuid = func() int { return 1000 }
	t.Cleanup(func() { geteuid = orig })
}

func asRoot(t *testing.T) {
	t.Helper()
	orig := geteuid
	geteuid = func() int { return 0 }
	t.Cleanup(func() { geteuid = orig })
}

func TestConfigDir(t *testing.T) {
	asUser(t)
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir() returned empty string")
	}
	if !strings.Contains(dir, "pkgd") {
		t.Errorf("ConfigDir() should contain 'pkgd': %s", dir)
	}
	if !strings.Contains(dir, ".config") && os.Getenv("XDG_CONFIG_HOME") == "" {
		t.Errorf("ConfigDir() should be in .config: %s", dir)
	}
}

func TestSystemPaths(t *testing.T) {
	asRoot(t)
	t.Setenv("PKGD_CONFIG", "")

	if got := ConfigPath(); got != "/etc/pkgd/pkgd.toml" {
		t.Errorf("ConfigPath() = %s, want /etc/pkgd/pkgd.toml", got)
	}
	if got := HistoryPath(); got != "/var/lib/pkgd/transactions.db" {
		t.Errorf("HistoryPath() = %s", got)
	}
	if got := ProxyPath(); got != "/var/lib/pkgd/proxy.db" {
		t.Errorf("ProxyPath() = %s", got)
	}
}

func TestConfigPathOverride(t *testing.T) {
	asRoot(t)
	t.Setenv("PKGD_CONFIG", "/tmp/custom.toml")

	if got := ConfigPath(); got != "/tmp/custom.toml" {
		t.Errorf("ConfigPath() = %s, want the PKGD_CONFIG value", got)
	}
}

func TestConfigPath(t *testing.T) {
	asUser(t)
	t.Setenv("PKGD_CONFIG", "")

	if path := ConfigPath(); !strings.HasSuffix(path, "config.toml") {
		t.Errorf("ConfigPath() should end with 'config.toml': %s", path)
	}
	if path := HistoryPath(); !strings.HasSuffix(path, "transactions.db") {
		t.Errorf("HistoryPath() should end with 'transactions.db': %s", path)
	}
}

func TestEnsureDirs(t *testing.T) {
	asUser(t)
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() error: %v", err)
	}
	if err := EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir() error: %v", err)
	}

	for _, dir := range []string{ConfigDir(), DataDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestXDGOverride(t *testing.T) {
	asUser(t)
	tmpDir := t.TempDir()
	customConfig := filepath.Join(tmpDir, "custom_config")
	customData := filepath.Join(tmpDir, "custom_data")
	t.Setenv("XDG_CONFIG_HOME", customConfig)
	t.Setenv("XDG_DATA_HOME", customData)

	if dir := ConfigDir(); !strings.HasPrefix(dir, customConfig) {
		t.Errorf("ConfigDir should use XDG_CONFIG_HOME: %s", dir)
	}
	if dir := DataDir(); !strings.HasPrefix(dir, customData) {
		t.Errorf("DataDir should use XDG_DATA_HOME: %s", dir)
	}
}
