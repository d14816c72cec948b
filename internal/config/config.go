package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Backend       Backend        `yaml:"backend"`
	Server        Server         `yaml:"server"`
	Auth          Auth           `yaml:"auth"`
	Categories    []string       `yaml:"categories"`
	Polling       Polling        `yaml:"polling"`
	FallbackFeeds []FallbackFeed `yaml:"fallback_feeds"`
	Output        Output         `yaml:"output"`
	Logging       Logging        `yaml:"logging"`
}

type Backend struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Server struct {
	Port int `yaml:"port"`
}

// Auth configures the session gate. When disabled, all pages render without
// a session; when enabled, tokens are verified against the provider URL.
type Auth struct {
	Enabled     bool   `yaml:"enabled"`
	ProviderURL string `yaml:"provider_url"`
}

// Polling tunes the analysis polling loop: a fixed interval and a fixed
// attempt budget, no backoff.
type Polling struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	Attempts        int `yaml:"attempts"`
}

// FallbackFeed is an RSS source used for headlines when the backend's
// trends endpoint is unreachable.
type FallbackFeed struct {
	Category string `yaml:"category"`
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for trendsage.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "trendsage")
}

// DataDir returns the XDG data directory for trendsage.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "trendsage")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/trendsage/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'trendsage init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the built-in configuration, used when no config file
// exists yet.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded default config: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Backend: Backend{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Server:  Server{Port: 3000},
		Polling: Polling{IntervalSeconds: 3, Attempts: 10},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories()
	}
	return cfg, nil
}

// DefaultCategories is the canonical navigation category list, "All" first.
// Pages treat this as injected configuration, never a per-view constant.
func DefaultCategories() []string {
	return []string{"All", "Tech", "Business", "Health", "Science", "Sports", "Entertainment", "Politics", "Miscellaneous"}
}

// BackendBaseURL returns the backend base URL, with the TRENDSAGE_API_URL
// environment variable taking precedence over the config file.
func (c *Config) BackendBaseURL() string {
	if env := os.Getenv("TRENDSAGE_API_URL"); env != "" {
		return env
	}
	return c.Backend.BaseURL
}

// BackendTimeout returns the HTTP timeout for backend calls.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// PollInterval returns the polling tick spacing.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
