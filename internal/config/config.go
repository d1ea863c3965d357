package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Database     string   `mapstructure:"database"`
	Output       string   `mapstructure:"output"`
	MixNames     []string `mapstructure:"mix_names"`
	MixNamesFile string   `mapstructure:"mix_names_file"`
	LogLevel     string   `mapstructure:"log_level"`
	LogFormat    string   `mapstructure:"log_format"`
	LogFile      string   `mapstructure:"log_file"`
}

// Load initializes and loads configuration from file
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("database", "assets.db")
	v.SetDefault("output", "extracted")
	v.SetDefault("mix_names", []string{})
	v.SetDefault("mix_names_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("ORAASSETS")
	v.AutomaticEnv()

	// Config file handling
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName("oraassets")
		v.SetConfigType("yaml")
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values that can also be overridden from flags.
func (c *Config) Validate() error {
	if err := validateLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log configuration: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log configuration: unknown format '%s', expected text or json", c.LogFormat)
	}
	if err := validateNames(c.MixNames); err != nil {
		return fmt.Errorf("invalid mix name configuration: %w", err)
	}
	return nil
}
