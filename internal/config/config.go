package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source kinds
const (
	SourceAuto     = "auto"
	SourceGoogle   = "google"
	SourceWorkbook = "workbook"
)

// Environment variables that override file configuration
const (
	EnvSource          = "SHEETS_SOURCE"
	EnvCredentialsFile = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvAccessToken     = "GOOGLE_SHEETS_ACCESS_TOKEN"
	EnvEndpoint        = "GOOGLE_SHEETS_ENDPOINT"
	EnvHTTPTimeout     = "SHEETS_HTTP_TIMEOUT"
	EnvWorkbookDir     = "SHEETS_WORKBOOK_DIR"
	EnvAllowedDirs     = "SHEETS_ALLOWED_DIRS"
)

const defaultHTTPTimeout = 30 * time.Second

// Config holds the grid source settings
type Config struct {
	Source          string        `yaml:"source"`
	CredentialsFile string        `yaml:"credentials_file"`
	AccessToken     string        `yaml:"access_token"`
	Endpoint        string        `yaml:"endpoint"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	WorkbookDir     string        `yaml:"workbook_dir"`
	// AllowedDirs are extra directories absolute workbook paths may point into
	AllowedDirs []string `yaml:"allowed_dirs"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Source:      SourceAuto,
		HTTPTimeout: defaultHTTPTimeout,
		WorkbookDir: filepath.Join(HomeDir(), "workbooks"),
	}
}

// HomeDir is the per-user state directory, ~/.mcp-sheets
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".mcp-sheets")
}

// DefaultPath is the config file read when no path is given
func DefaultPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// Load builds the configuration from defaults, the YAML file at path (or
// DefaultPath when empty), a .env file in the working directory, then the
// environment. A missing default file is not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// .env never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvSource); v != "" {
		c.Source = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvCredentialsFile); v != "" {
		c.CredentialsFile = v
	}
	if v := os.Getenv(EnvAccessToken); v != "" {
		c.AccessToken = v
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvWorkbookDir); v != "" {
		c.WorkbookDir = v
	}
	if v := os.Getenv(EnvAllowedDirs); v != "" {
		c.AllowedDirs = nil
		for dir := range strings.SplitSeq(v, ",") {
			if dir = strings.TrimSpace(dir); dir != "" {
				c.AllowedDirs = append(c.AllowedDirs, dir)
			}
		}
	}
	if v := os.Getenv(EnvHTTPTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvHTTPTimeout, v, err)
		}
		c.HTTPTimeout = d
	}
	return nil
}

// Validate checks the source kind and timeout
func (c *Config) Validate() error {
	switch c.Source {
	case SourceAuto, SourceGoogle, SourceWorkbook:
	default:
		return fmt.Errorf("invalid source %q: must be one of auto, google, workbook", c.Source)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}
