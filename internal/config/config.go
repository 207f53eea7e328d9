package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvSearchToken   = "X_BEARER_TOKEN"
	EnvSearchBaseURL = "X_API_BASE_URL"
	EnvClassifierKey = "XAI_API_KEY"
	EnvModel         = "XAI_MODEL"
	EnvDataDir       = "RABBITBRAIN_DATA_DIR"
	EnvAddr          = "RABBITBRAIN_ADDR"
	EnvRateLimit     = "RABBITBRAIN_RATE_LIMIT"
)

// ErrMissingSearchToken is returned by Validate when no X bearer token is set.
var ErrMissingSearchToken = errors.New("missing " + EnvSearchToken)

// Config is the application configuration
type Config struct {
	// X API
	SearchAPIToken string        `yaml:"search_api_token"`
	SearchBaseURL  string        `yaml:"search_base_url,omitempty"`
	PageDelay      time.Duration `yaml:"page_delay"`

	// Topic classifier. An empty key is valid and selects the local heuristic.
	ClassifierAPIKey    string `yaml:"classifier_api_key,omitempty"`
	ClassifierModelName string `yaml:"classifier_model"`
	ClassifierEndpoint  string `yaml:"classifier_endpoint,omitempty"`

	// Local state (history database, logs)
	DataDir string `yaml:"data_dir"`

	// HTTP API
	HTTPAddr  string          `yaml:"http_addr"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds requests per caller on the HTTP API
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SearchBaseURL:       "https://api.x.com/2",
		PageDelay:           350 * time.Millisecond,
		ClassifierModelName: "grok-4-fast",
		DataDir:             defaultDataDir(),
		HTTPAddr:            ":8080",
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 20,
			Window:            time.Minute,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rabbitbrain"
	}
	return filepath.Join(home, ".rabbitbrain")
}

// ConfigPath returns the default path to the config file
func ConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load builds the configuration from defaults, the YAML file at path, any
// .env files in the working directory and finally the process environment.
// A missing file is not an error; an empty path uses ConfigPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	LoadEnvFiles()
	cfg.AutoPopulateFromEnv()
	return cfg, nil
}

// LoadEnvFiles loads .env style files without overriding variables that
// are already set. Returns the files that were loaded.
func LoadEnvFiles(files ...string) []string {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	var loaded []string
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			continue
		}
		loaded = append(loaded, file)
	}
	return loaded
}

// AutoPopulateFromEnv overlays environment variables onto c.
func (c *Config) AutoPopulateFromEnv() {
	if v := os.Getenv(EnvSearchToken); v != "" {
		c.SearchAPIToken = v
	}
	if v := os.Getenv(EnvSearchBaseURL); v != "" {
		c.SearchBaseURL = v
	}
	if v := os.Getenv(EnvClassifierKey); v != "" {
		c.ClassifierAPIKey = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.ClassifierModelName = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv(EnvRateLimit); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.RateLimit.RequestsPerWindow = n
		}
	}
}

// Validate checks what commands that reach the X API need.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SearchAPIToken) == "" {
		return ErrMissingSearchToken
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d per %s", c.RateLimit.RequestsPerWindow, c.RateLimit.Window)
	}
	return nil
}

// Save writes the config as YAML to path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// DatabasePath is the history database inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "rabbitbrain.db")
}
