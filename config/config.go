package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Source struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		UserAgent      string `yaml:"user_agent"`
		UseBrowser     bool   `yaml:"use_browser"`
		LooseParse     bool   `yaml:"loose_parse"`
	} `yaml:"source"`

	Monitor struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"monitor"`

	Currency struct {
		Default string `yaml:"default"`
	} `yaml:"currency"`

	Telegram struct {
		AllowedUsers []int64 `yaml:"allowed_users"`
		AdminID      int64   `yaml:"admin_id"`
	} `yaml:"telegram"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Source.URL == "" {
		return nil, fmt.Errorf("source.url is required")
	}

	return cfg, nil
}

// GetDefaultConfig returns a configuration with sane defaults
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Source.TimeoutSeconds = 15
	cfg.Source.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	cfg.Monitor.IntervalSeconds = 60
	cfg.Currency.Default = "₪"
	return cfg
}

// FetchTimeout returns the fetch timeout as a duration
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// Interval returns the monitor interval as a duration
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}
