package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"invasoras/pkg/models"
)

// DefaultOccurrences is the list of GBIF occurrence pages crawled when no
// other list is configured
var DefaultOccurrences = []string{
	"https://www.gbif.org/occurrence/1270744105",
	"https://www.gbif.org/occurrence/1270744166",
	"https://www.gbif.org/occurrence/1270744127",
}

// Config holds all configuration options for a crawl run
type Config struct {
	// Source pages to crawl
	Occurrences []string `yaml:"occurrences" json:"occurrences"`

	// Scraping relay settings
	Relay RelayConfig `yaml:"relay" json:"relay"`

	// Markup of the crawled site
	Site SiteConfig `yaml:"site" json:"site"`

	// Image download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// RelayConfig holds the third-party scraping relay configuration
type RelayConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	APIKey   string        `yaml:"api_key" json:"api_key"`
	KeyName  string        `yaml:"key_name" json:"key_name"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// SiteConfig describes where image links live in the crawled pages
type SiteConfig struct {
	Origin         string `yaml:"origin" json:"origin"`
	MediaSectionID string `yaml:"media_section_id" json:"media_section_id"`
	ImageClass     string `yaml:"image_class" json:"image_class"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	MaxConnections int           `yaml:"max_connections" json:"max_connections"`
	VerifyContent  bool          `yaml:"verify_content" json:"verify_content"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	occurrences := make([]string, len(DefaultOccurrences))
	copy(occurrences, DefaultOccurrences)

	return &Config{
		Occurrences: occurrences,
		Relay: RelayConfig{
			Endpoint: "http://api.scraperapi.com",
			KeyName:  "scraperapi",
			Timeout:  15 * time.Second,
		},
		Site: SiteConfig{
			Origin:         "https://www.gbif.org",
			MediaSectionID: "occurrencePage_media",
			ImageClass:     "imgContainer",
		},
		Download: DownloadConfig{
			Timeout:        15 * time.Second,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko)",
			MaxConnections: 100,
			VerifyContent:  false,
		},
		Output: OutputConfig{
			Directory: "./images_invasoras",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if apiKey := os.Getenv("INVASORAS_API_KEY"); apiKey != "" {
		c.Relay.APIKey = apiKey
	}
	if endpoint := os.Getenv("INVASORAS_RELAY_ENDPOINT"); endpoint != "" {
		c.Relay.Endpoint = endpoint
	}

	if outputDir := os.Getenv("INVASORAS_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}

	if maxConns := os.Getenv("INVASORAS_MAX_CONNECTIONS"); maxConns != "" {
		var val int
		if _, err := fmt.Sscanf(maxConns, "%d", &val); err != nil {
			return fmt.Errorf("invalid INVASORAS_MAX_CONNECTIONS %q: %w", maxConns, err)
		}
		if val > 0 {
			c.Download.MaxConnections = val
		}
	}

	if logLevel := os.Getenv("INVASORAS_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".invasoras.yaml",
		".invasoras.yml",
		filepath.Join(home, ".config", "invasoras", "config.yaml"),
		filepath.Join(home, ".config", "invasoras", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. The relay API key is not
// checked here because it may still be resolved from the key store.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Occurrences) == 0 {
		errs = append(errs, errors.New("at least one occurrence URL is required"))
	}
	seen := make(map[string]bool, len(c.Occurrences))
	for _, raw := range c.Occurrences {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid occurrence URL: %q", raw))
			continue
		}
		id := models.OccurrenceID(raw)
		if seen[id] {
			errs = append(errs, fmt.Errorf("duplicate occurrence id %q", id))
		}
		seen[id] = true
	}

	if c.Relay.Endpoint == "" {
		errs = append(errs, errors.New("relay endpoint is required"))
	}
	if c.Relay.Timeout <= 0 {
		errs = append(errs, errors.New("relay timeout must be positive"))
	}

	if c.Site.Origin == "" {
		errs = append(errs, errors.New("site origin is required"))
	}
	if c.Site.MediaSectionID == "" || c.Site.ImageClass == "" {
		errs = append(errs, errors.New("media section id and image class are required"))
	}

	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.MaxConnections <= 0 {
		errs = append(errs, errors.New("max connections must be positive"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if occurrences, ok := flags["occurrences"].([]string); ok && len(occurrences) > 0 {
		c.Occurrences = occurrences
	}
	if apiKey, ok := flags["api-key"].(string); ok && apiKey != "" {
		c.Relay.APIKey = apiKey
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if maxConns, ok := flags["max-connections"].(int); ok && maxConns > 0 {
		c.Download.MaxConnections = maxConns
	}
	if verify, ok := flags["verify-content"].(bool); ok {
		c.Download.VerifyContent = verify
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".invasoras.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
