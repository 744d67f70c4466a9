// Package config loads postforge configuration from postforge.yaml with
// environment overrides. Missing files fall back to defaults so the CLI
// works out of the box with nothing but GEMINI_API_KEY set.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all postforge configuration.
type Config struct {
	Name string `yaml:"name"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Retry behavior for image generation
	Retry RetryConfig `yaml:"retry"`

	// Filesystem layout
	Paths PathsConfig `yaml:"paths"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the Gemini models.
type LLMConfig struct {
	APIKey     string `yaml:"api_key"`
	TextModel  string `yaml:"text_model"`
	ImageModel string `yaml:"image_model"`
	Timeout    string `yaml:"timeout"`
}

// RetryConfig configures the image-generation retry loop.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelay   string  `yaml:"base_delay"`
	MaxDelay    string  `yaml:"max_delay"`
	Multiplier  float64 `yaml:"multiplier"`
	Jitter      bool    `yaml:"jitter"`
}

// PathsConfig configures where data lives and where output goes.
type PathsConfig struct {
	DataDir        string `yaml:"data_dir"`
	ProductsDir    string `yaml:"products_dir"`
	CollectionsDir string `yaml:"collections_dir"`
	IndexPath      string `yaml:"index_path"`
	OutputDir      string `yaml:"output_dir"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"` // debug, info, warn, error
	LogDir    string `yaml:"log_dir"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "postforge",
		LLM: LLMConfig{
			TextModel:  "gemini-2.5-flash",
			ImageModel: "gemini-2.5-flash-image",
			Timeout:    "2m",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   "2s",
			MaxDelay:    "30s",
			Multiplier:  2.0,
			Jitter:      false,
		},
		Paths: PathsConfig{
			DataDir:        "data",
			ProductsDir:    filepath.Join("data", "products"),
			CollectionsDir: filepath.Join("data", "collections"),
			IndexPath:      filepath.Join("data", "catalog.db"),
			OutputDir:      "output",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
			LogDir:    filepath.Join("output", "logs"),
		},
	}
}

// Load reads configuration from path, merging over defaults.
// A missing file is not an error; env overrides always apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variables on top of file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("POSTFORGE_TEXT_MODEL"); v != "" {
		c.LLM.TextModel = v
	}
	// IMAGE_GENERATION_MODEL predates POSTFORGE_IMAGE_MODEL; both are honored
	if v := os.Getenv("IMAGE_GENERATION_MODEL"); v != "" {
		c.LLM.ImageModel = v
	}
	if v := os.Getenv("POSTFORGE_IMAGE_MODEL"); v != "" {
		c.LLM.ImageModel = v
	}
	if v := os.Getenv("POSTFORGE_OUTPUT_DIR"); v != "" {
		c.Paths.OutputDir = v
	}
	if v := os.Getenv("POSTFORGE_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
		c.Paths.ProductsDir = filepath.Join(v, "products")
		c.Paths.CollectionsDir = filepath.Join(v, "collections")
		c.Paths.IndexPath = filepath.Join(v, "catalog.db")
	}
	if v := os.Getenv("POSTFORGE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
}

// Validate checks internal consistency. The API key is deliberately not
// required here: index/search/preview work offline.
func (c *Config) Validate() error {
	if c.LLM.TextModel == "" {
		return fmt.Errorf("llm.text_model must not be empty")
	}
	if c.LLM.ImageModel == "" {
		return fmt.Errorf("llm.image_model must not be empty")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1, got %v", c.Retry.Multiplier)
	}
	if _, err := c.LLMTimeout(); err != nil {
		return err
	}
	if _, err := c.RetryBaseDelay(); err != nil {
		return err
	}
	if _, err := c.RetryMaxDelay(); err != nil {
		return err
	}
	return nil
}

// LLMTimeout parses the configured API timeout.
func (c *Config) LLMTimeout() (time.Duration, error) {
	return parseDuration("llm.timeout", c.LLM.Timeout, 2*time.Minute)
}

// RetryBaseDelay parses the configured base retry delay.
func (c *Config) RetryBaseDelay() (time.Duration, error) {
	return parseDuration("retry.base_delay", c.Retry.BaseDelay, 2*time.Second)
}

// RetryMaxDelay parses the configured retry delay cap.
func (c *Config) RetryMaxDelay() (time.Duration, error) {
	return parseDuration("retry.max_delay", c.Retry.MaxDelay, 30*time.Second)
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return d, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
