package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"afkari/internal/prompt"
)

// Config models afkari.yml.
type Config struct {
	Model struct {
		Provider       string `yaml:"provider"`
		Name           string `yaml:"name"`
		APIBase        string `yaml:"api_base"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"model"`
	Generation struct {
		Temperature     float64 `yaml:"temperature"`
		TopP            float64 `yaml:"top_p"`
		TopK            int     `yaml:"top_k"`
		MaxOutputTokens int     `yaml:"max_output_tokens"`
	} `yaml:"generation"`
	Prompt struct {
		Version string `yaml:"version"`
		Locale  string `yaml:"locale"`
	} `yaml:"prompt"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.Model.Provider = "gemini"
	c.Model.Name = "gemini-2.5-flash"
	c.Model.APIBase = "https://generativelanguage.googleapis.com/v1beta"
	c.Model.TimeoutSeconds = 120
	c.Generation.Temperature = 0.4
	c.Generation.TopP = 0.9
	c.Generation.TopK = 40
	// MaxOutputTokens 0 lets the model choose.
	c.Generation.MaxOutputTokens = 0
	c.Prompt.Version = prompt.VersionV2
	c.Prompt.Locale = "en"
	return c
}

// Path returns the config file path for the workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".afkari", "afkari.yml")
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config bytes. Unset fields keep defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config file into the workspace.
func (c *Config) Save(workspace string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	path := Path(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Model.Provider != "gemini" {
		return fmt.Errorf("config.model.provider must be 'gemini'")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("config.model.name is required")
	}
	if c.Model.APIBase == "" {
		return fmt.Errorf("config.model.api_base is required")
	}
	if c.Model.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.model.timeout_seconds must be positive")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("config.generation.temperature must be in [0,2]")
	}
	if c.Generation.TopP < 0 || c.Generation.TopP > 1 {
		return fmt.Errorf("config.generation.top_p must be in [0,1]")
	}
	if c.Generation.TopK < 0 {
		return fmt.Errorf("config.generation.top_k must be non-negative")
	}
	if c.Generation.MaxOutputTokens < 0 {
		return fmt.Errorf("config.generation.max_output_tokens must be non-negative")
	}
	if c.Prompt.Version != prompt.VersionV1 && c.Prompt.Version != prompt.VersionV2 {
		return fmt.Errorf("config.prompt.version must be %q or %q", prompt.VersionV1, prompt.VersionV2)
	}
	if c.Prompt.Locale == "" {
		return fmt.Errorf("config.prompt.locale is required")
	}
	return nil
}
