// Package config provides configuration management for lockhinter with Viper integration.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete configuration for lockhinter.
type Config struct {
	Locker  LockerConfig  `mapstructure:"locker"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LockerConfig holds the locker defaults.
type LockerConfig struct {
	// Command is the locker argv used when none is given on the command
	// line, e.g. ["swaylock", "-f"].
	Command []string `mapstructure:"command"`
}

// LoggingConfig controls the stderr diagnostics.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads config.toml from the XDG config directory and applies
// environment overrides with the LOCKHINTER_ prefix. A missing config file
// is not an error; the defaults apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")

	configDir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine config directory: %w\nCheck XDG_CONFIG_HOME environment variable or HOME directory", err)
	}
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("LOCKHINTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("logging.level", "LOCKHINTER_LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind LOCKHINTER_LOG_LEVEL: %w", err)
	}
	if err := v.BindEnv("logging.format", "LOCKHINTER_LOG_FORMAT"); err != nil {
		return nil, fmt.Errorf("failed to bind LOCKHINTER_LOG_FORMAT: %w", err)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file at %s: %w\nCheck the file format (must be valid TOML) and permissions", v.ConfigFileUsed(), err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w\nCheck for syntax errors, invalid values, or type mismatches", err)
	}
	normalizeConfig(config)

	return config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("locker.command", defaults.Locker.Command)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
}

func normalizeConfig(config *Config) {
	switch strings.ToLower(config.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
		config.Logging.Level = strings.ToLower(config.Logging.Level)
	default:
		config.Logging.Level = "info"
	}

	switch strings.ToLower(config.Logging.Format) {
	case "console", "json":
		config.Logging.Format = strings.ToLower(config.Logging.Format)
	default:
		config.Logging.Format = "console"
	}
}
