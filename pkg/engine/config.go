package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ronwebb/pixtell/pkg/hub"
	"github.com/ronwebb/pixtell/pkg/hub/caption"
	"github.com/ronwebb/pixtell/pkg/hub/vqa"
)

// Config is the top-level engine configuration.
type Config struct {
	Hub    HubConfig    `yaml:"hub"`
	Models ModelsConfig `yaml:"models"`
	Retry  RetryConfig  `yaml:"retry"`
	Image  ImageConfig  `yaml:"image"`
}

// HubConfig holds the inference hub connection settings.
type HubConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"` //nolint:gosec // configuration field, not a hardcoded secret
	Timeout string `yaml:"timeout"` // HTTP timeout as a duration string (e.g. "2m", "30s").
}

// ModelsConfig names the hub models used for each task.
type ModelsConfig struct {
	Caption string `yaml:"caption"`
	VQA     string `yaml:"vqa"`
}

// RetryConfig controls retry of transient hub errors (429, 503).
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries"` // Max retries (default 3).
	BaseDelay  string `yaml:"base_delay"`  // Initial backoff delay as a duration string (e.g. "1s", "500ms").
}

// ImageConfig holds image loading settings.
type ImageConfig struct {
	MaxBytes int64 `yaml:"max_bytes"` // Maximum image size in bytes (0 = default).
}

// DefaultConfig returns a Config with the token sourced from HF_TOKEN and all
// other fields at their defaults.
func DefaultConfig() Config {
	return Config{
		Hub: HubConfig{
			BaseURL: hub.DefaultBaseURL,
			Token:   "${HF_TOKEN}",
		},
		Models: ModelsConfig{
			Caption: caption.DefaultModel,
			VQA:     vqa.DefaultModel,
		},
	}
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing. This allows the hub token to be kept in the HF_TOKEN
// environment variable (e.g. loaded from a .env file) rather than committed
// in the config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// LoadConfigOrDefault loads the config file when it exists and falls back to
// DefaultConfig (with env expansion applied to the token) when it does not.
func LoadConfigOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Hub.Token = os.ExpandEnv(cfg.Hub.Token)
		return cfg, nil
	}

	return LoadConfig(path)
}

// Validate checks that the configuration is internally consistent. A missing
// token fails here, before any hub call is attempted.
func (c Config) Validate() error {
	if c.Hub.Token == "" {
		return fmt.Errorf("engine: config: hub token is required (set HF_TOKEN or hub.token)")
	}

	if _, err := c.retryBaseDelay(); err != nil {
		return fmt.Errorf("engine: config: retry.base_delay: %w", err)
	}

	if _, err := c.hubTimeout(); err != nil {
		return fmt.Errorf("engine: config: hub.timeout: %w", err)
	}

	return nil
}

// retryBaseDelay parses the retry base delay, defaulting to zero (which the
// retrier replaces with its own default).
func (c Config) retryBaseDelay() (time.Duration, error) {
	if c.Retry.BaseDelay == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Retry.BaseDelay)
}

// hubTimeout parses the hub HTTP timeout, defaulting to zero (which the
// adapter replaces with its own default).
func (c Config) hubTimeout() (time.Duration, error) {
	if c.Hub.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Hub.Timeout)
}
