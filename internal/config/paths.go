package config

import (
	"os"
	"path/filepath"
)

const (
	appName     = "pkgd"
	configFile  = "config.toml"
	historyFile = "transactions.db"
	proxyFile   = "proxy.db"

	systemConfigDir = "/etc/pkgd"
	systemConfig    = "pkgd.toml"
	systemDataDir   = "/var/lib/pkgd"
)

// geteuid is swapped in tests.
var geteuid = os.Geteuid

// ConfigDir returns the configuration directory for pkgd.
func ConfigDir() string {
	if geteuid() == 0 {
		return systemConfigDir
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir() //nolint:errcheck
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the directory holding the transaction and proxy databases.
func DataDir() string {
	if geteuid() == 0 {
		return systemDataDir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir() //nolint:errcheck
	return filepath.Join(home, ".local", "share", appName)
}

// ConfigPath returns the full path to the config file.
// PKGD_CONFIG overrides the default location.
func ConfigPath() string {
	if p := os.Getenv("PKGD_CONFIG"); p != "" {
		return p
	}
	if geteuid() == 0 {
		return filepath.Join(systemConfigDir, systemConfig)
	}
	return filepath.Join(ConfigDir(), configFile)
}

// HistoryPath returns the full path to the transaction database.
func HistoryPath() string {
	return filepath.Join(DataDir(), historyFile)
}

// ProxyPath returns the full path to the proxy settings database.
func ProxyPath() string {
	return filepath.Join(DataDir(), proxyFile)
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0755)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0755)
}
