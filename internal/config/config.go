// Package config loads the settings of the agenda tool from an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// GitHubToken is read from GITHUB_TOKEN when not set in the file.
	GitHubToken string `yaml:"github_token"`
	// Concurrency is the number of GitHub fetches allowed in flight.
	Concurrency int `yaml:"concurrency"`
	// ReportsDir replaces the built-in report definitions when set.
	ReportsDir string `yaml:"reports_dir"`
	// TemplatesDir replaces the built-in templates when set.
	TemplatesDir string `yaml:"templates_dir"`

	Calendar Calendar `yaml:"calendar"`
	Serve    Serve    `yaml:"serve"`
}

// Calendar configures the meetings shown on agendas.
type Calendar struct {
	APIKey     string `yaml:"api_key"`
	ID         string `yaml:"id"`
	WindowDays int    `yaml:"window_days"`
}

// Serve configures the HTTP server.
type Serve struct {
	Addr string `yaml:"addr"`
}

// Defaults returns a Config with all default values set.
func Defaults() Config {
	return Config{
		Concurrency: 5,
		Calendar: Calendar{
			WindowDays: 7,
		},
		Serve: Serve{
			Addr: ":8080",
		},
	}
}

// Load reads an optional YAML config file and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("GITHUB_TOKEN"); v != "" {
		c.GitHubToken = v
	}
	if v := getenv("GOOGLE_API_KEY"); v != "" {
		c.Calendar.APIKey = v
	}
	if v := getenv("AGENDA_CALENDAR_ID"); v != "" {
		c.Calendar.ID = v
	}
}

// Validate checks that required fields are present and values are valid.
func (c *Config) Validate() error {
	if c.GitHubToken == "" {
		return errors.New("GITHUB_TOKEN environment variable is not set")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.Calendar.WindowDays < 1 {
		return fmt.Errorf("calendar.window_days must be >= 1, got %d", c.Calendar.WindowDays)
	}
	return nil
}
