// Package config provides configuration loading and management for semdraft.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semdraft/model"
	"github.com/c360studio/semdraft/scoring"
)

// Config represents the complete semdraft configuration
type Config struct {
	NATS  NATSConfig  `yaml:"nats"`
	LLM   LLMConfig   `yaml:"llm"`
	Build BuildConfig `yaml:"build"`
	Watch WatchConfig `yaml:"watch"`
	Log   LogConfig   `yaml:"log"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = archive and event bridge disabled)
	URL string `yaml:"url"`
}

// LLMConfig configures model selection. An empty section falls back to the
// built-in registry defaults.
type LLMConfig struct {
	// Providers maps a model name to its endpoint settings
	Providers map[string]ProviderConfig `yaml:"providers"`
	// Capabilities maps a capability to its model preference chain
	Capabilities map[string]CapabilityConfig `yaml:"capabilities"`
	// Default is the model used when no capability matches
	Default string `yaml:"default"`
}

// ProviderConfig defines one model endpoint
type ProviderConfig struct {
	// Provider is the backing API (anthropic, openai, ollama)
	Provider string `yaml:"provider"`
	// URL is the API endpoint URL (for non-Anthropic providers)
	URL string `yaml:"url,omitempty"`
	// Model is the identifier sent to the provider
	Model string `yaml:"model"`
	// MaxTokens is the generation budget for this endpoint
	MaxTokens int `yaml:"max_tokens,omitempty"`
}

// CapabilityConfig defines model preferences for a capability
type CapabilityConfig struct {
	Description string   `yaml:"description,omitempty"`
	Preferred   []string `yaml:"preferred"`
	Fallback    []string `yaml:"fallback,omitempty"`
}

// BuildConfig configures the chapter build pipeline
type BuildConfig struct {
	// DepthMode is the default depth for new projects
	DepthMode string `yaml:"depth_mode"`
	// MaxAttempts is the per-unit generation attempt budget
	MaxAttempts int `yaml:"max_attempts"`
}

// WatchConfig configures the watch command
type WatchConfig struct {
	// Addr is the metrics listen address
	Addr string `yaml:"addr"`
	// Debounce collapses bursts of file events
	Debounce time.Duration `yaml:"debounce"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL: "", // Optional
		},
		LLM: LLMConfig{}, // Built-in registry defaults
		Build: BuildConfig{
			DepthMode:   scoring.DepthStandard.String(),
			MaxAttempts: 2,
		},
		Watch: WatchConfig{
			Addr:     ":9090",
			Debounce: 250 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if !scoring.DepthMode(c.Build.DepthMode).IsValid() {
		return fmt.Errorf("build.depth_mode %q is not one of light, standard, professional, enterprise", c.Build.DepthMode)
	}
	if c.Build.MaxAttempts < 1 {
		return fmt.Errorf("build.max_attempts must be at least 1")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce cannot be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	for name, p := range c.LLM.Providers {
		switch p.Provider {
		case "anthropic", "openai", "ollama":
		default:
			return fmt.Errorf("llm.providers.%s: unknown provider %q", name, p.Provider)
		}
		if p.Model == "" {
			return fmt.Errorf("llm.providers.%s: model is required", name)
		}
	}
	for name, cc := range c.LLM.Capabilities {
		for _, m := range cc.Preferred {
			if _, ok := c.LLM.Providers[m]; !ok {
				return fmt.Errorf("llm.capabilities.%s: preferred model %q has no provider entry", name, m)
			}
		}
		for _, m := range cc.Fallback {
			if _, ok := c.LLM.Providers[m]; !ok {
				return fmt.Errorf("llm.capabilities.%s: fallback model %q has no provider entry", name, m)
			}
		}
	}
	if c.LLM.Default != "" {
		if _, ok := c.LLM.Providers[c.LLM.Default]; !ok {
			return fmt.Errorf("llm.default model %q has no provider entry", c.LLM.Default)
		}
	}
	return nil
}

// RegistryConfig converts the LLM section into a model registry config.
// Returns nil when the section is empty so callers fall back to
// model.NewDefaultRegistry.
func (l LLMConfig) RegistryConfig() *model.RegistryConfig {
	if len(l.Providers) == 0 && len(l.Capabilities) == 0 && l.Default == "" {
		return nil
	}

	cfg := &model.RegistryConfig{
		Capabilities: make(map[string]*model.CapabilityConfig, len(l.Capabilities)),
		Endpoints:    make(map[string]*model.EndpointConfig, len(l.Providers)),
	}
	for name, p := range l.Providers {
		cfg.Endpoints[name] = &model.EndpointConfig{
			Provider:  p.Provider,
			URL:       p.URL,
			Model:     p.Model,
			MaxTokens: p.MaxTokens,
		}
	}
	for name, cc := range l.Capabilities {
		cfg.Capabilities[name] = &model.CapabilityConfig{
			Description: cc.Description,
			Preferred:   cc.Preferred,
			Fallback:    cc.Fallback,
		}
	}
	if l.Default != "" {
		cfg.Defaults = &model.DefaultsConfig{Model: l.Default}
	}
	return cfg
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// loadOverlay parses a config file without filling defaults, so merging it
// into a lower layer only carries the keys the file actually sets.
func loadOverlay(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values). Provider and capability maps merge per entry, matching
// the model registry's merge semantics.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// LLM
	if len(other.LLM.Providers) > 0 {
		if c.LLM.Providers == nil {
			c.LLM.Providers = make(map[string]ProviderConfig, len(other.LLM.Providers))
		}
		for k, v := range other.LLM.Providers {
			c.LLM.Providers[k] = v
		}
	}
	if len(other.LLM.Capabilities) > 0 {
		if c.LLM.Capabilities == nil {
			c.LLM.Capabilities = make(map[string]CapabilityConfig, len(other.LLM.Capabilities))
		}
		for k, v := range other.LLM.Capabilities {
			c.LLM.Capabilities[k] = v
		}
	}
	if other.LLM.Default != "" {
		c.LLM.Default = other.LLM.Default
	}

	// Build
	if other.Build.DepthMode != "" {
		c.Build.DepthMode = other.Build.DepthMode
	}
	if other.Build.MaxAttempts != 0 {
		c.Build.MaxAttempts = other.Build.MaxAttempts
	}

	// Watch
	if other.Watch.Addr != "" {
		c.Watch.Addr = other.Watch.Addr
	}
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}
