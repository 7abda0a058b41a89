package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings for the export service. Values come
// from environment variables with the EXPORTD_ prefix, falling back to the
// defaults below.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	DBPath     string `mapstructure:"db_path"`

	// OutputDir is the archive root for invoice exports, laid out as
	// {tenant}/invoices/{country}. BasicDataDir is the root for
	// reference data exports (codes/, global/).
	OutputDir    string `mapstructure:"output_dir"`
	BasicDataDir string `mapstructure:"basic_data_dir"`

	// StateDir holds the watermark ledger and the process lock files.
	StateDir string `mapstructure:"state_dir"`

	// LegacyContextDir is the source root of the one-off tenant directory
	// migration (old context/invoices and context/pending-invoices
	// layouts).
	LegacyContextDir string `mapstructure:"legacy_context_dir"`

	Workers           int           `mapstructure:"workers"`
	SafetyBuffer      time.Duration `mapstructure:"safety_buffer"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("db_path", "exportd.db")
	v.SetDefault("output_dir", "tenant-data")
	v.SetDefault("basic_data_dir", "context/basic-data")
	v.SetDefault("state_dir", "context/.export_state")
	v.SetDefault("legacy_context_dir", "context")
	v.SetDefault("workers", 4)
	v.SetDefault("safety_buffer", 5*time.Minute)
	v.SetDefault("heartbeat_interval", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetEnvPrefix("EXPORTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
