package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config represents the complete pkgd configuration.
type Config struct {
	Daemon        DaemonConfig        `toml:"daemon"`
	Limits        LimitsConfig        `toml:"limits"`
	Authorization AuthorizationConfig `toml:"authorization"`
	Log           LogConfig           `toml:"log"`
	Metrics       MetricsConfig       `toml:"metrics"`
	History       HistoryConfig       `toml:"history"`
	Output        OutputConfig        `toml:"output"`
}

// DaemonConfig contains scheduler and backend settings.
type DaemonConfig struct {
	// Backend names the backend to load, or "auto" to pick the native one.
	Backend string `toml:"backend" validate:"required"`

	// KeepFinishedTimeout is how long a finished transaction stays queryable.
	KeepFinishedTimeout Duration `toml:"keep_finished_timeout" validate:"gte=0"`

	// CommitTimeout discards transactions that were created but never committed.
	CommitTimeout Duration `toml:"commit_timeout" validate:"gt=0"`

	// WedgeCheckInterval is the period of the scheduler consistency check.
	WedgeCheckInterval Duration `toml:"wedge_check_interval" validate:"gt=0"`

	// WedgeRecheckDelay is the delay before re-checking a failed consistency check.
	WedgeRecheckDelay Duration `toml:"wedge_recheck_delay" validate:"gt=0"`

	// MaxTransactionsPerUID caps the outstanding transactions of one caller.
	MaxTransactionsPerUID int `toml:"max_transactions_per_uid" validate:"gt=0"`

	// MaxLockRetries bounds how often a transaction is requeued on lock contention.
	MaxLockRetries int `toml:"max_lock_retries" validate:"gte=0,lte=100"`

	// RefreshInterval schedules background cache refreshes. Zero disables them.
	RefreshInterval Duration `toml:"refresh_interval" validate:"gte=0"`

	// SelfTest skips authorization, for use with the dummy backend.
	SelfTest bool `toml:"self_test"`
}

// LimitsConfig bounds the size of transaction requests.
type LimitsConfig struct {
	MaximumPackagesToProcess int `toml:"maximum_packages_to_process" validate:"gt=0"`
	MaximumItemsToResolve    int `toml:"maximum_items_to_resolve" validate:"gt=0"`
	MaximumSearchLength      int `toml:"maximum_search_length" validate:"gt=2"`
}

// AuthorizationConfig holds the local authorization policy.
type AuthorizationConfig struct {
	// Default is the result for actions without an override: allow, deny or challenge.
	Default string `toml:"default" validate:"oneof=allow deny challenge"`

	// Actions overrides the result for specific action ids.
	Actions map[string]string `toml:"actions" validate:"dive,oneof=allow deny challenge"`
}

// LogConfig contains daemon logging settings.
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// MetricsConfig controls the Prometheus endpoint of the daemon.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address" validate:"required_if=Enabled true"`
}

// HistoryConfig controls the transaction database.
type HistoryConfig struct {
	// KeepDays prunes entries older than this many days. Zero keeps everything.
	KeepDays int `toml:"keep_days" validate:"gte=0"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	// Color enables colored output (respects NO_COLOR env var).
	Color bool `toml:"color"`

	// Unicode enables unicode symbols in output.
	Unicode bool `toml:"unicode"`

	// Verbose enables detailed output.
	Verbose bool `toml:"verbose"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			Backend:               "auto",
			KeepFinishedTimeout:   Duration(5 * time.Second),
			CommitTimeout:         Duration(300 * time.Second),
			WedgeCheckInterval:    Duration(10 * time.Second),
			WedgeRecheckDelay:     Duration(500 * time.Millisecond),
			MaxTransactionsPerUID: 500,
			MaxLockRetries:        4,
		},
		Limits: LimitsConfig{
			MaximumPackagesToProcess: 5200,
			MaximumItemsToResolve:    10000,
			MaximumSearchLength:      1024,
		},
		Authorization: AuthorizationConfig{
			Default: "challenge",
			Actions: map[string]string{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Address: "127.0.0.1:9419",
		},
		History: HistoryConfig{
			KeepDays: 90,
		},
		Output: OutputConfig{
			Color:   true,
			Unicode: true,
		},
	}
}

// Load loads the configuration from the default path.
// If the config file doesn't exist, it returns the default configuration.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads the configuration from a specific path.
// If the config file doesn't exist, it returns the default configuration.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}

var validate = validator.New()

// Validate checks the configuration values and reports every invalid field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
}

// AuthorizationFor returns the configured result for an action id.
func (c *Config) AuthorizationFor(action string) string {
	if r, ok := c.Authorization.Actions[action]; ok {
		return r
	}
	return c.Authorization.Default
}

// ShouldUseColor returns true if colored output should be used.
// Respects the NO_COLOR environment variable.
func (c *Config) ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return c.Output.Color
}
