// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	DefaultProvider string                    `toml:"default_provider"`
	Providers       map[string]ProviderConfig `toml:"providers"`
	Tools           ToolsConfig               `toml:"tools"`
	Session         SessionConfig             `toml:"session"`
}

// ToolsConfig holds tool-execution settings.
type ToolsConfig struct {
	// Approvals is either "readonly" (mutation tools refuse to run) or
	// "all" (every registered tool may run). Defaults to "all".
	Approvals string `toml:"approvals"`
}

// ReadOnly reports whether mutation tools should refuse to run.
func (t ToolsConfig) ReadOnly() bool {
	return t.Approvals == "readonly"
}

// SessionConfig holds session-store settings.
type SessionConfig struct {
	// ListLimit bounds how many sessions `session list` returns.
	// Missing (zero value, field absent from the file) means 20;
	// an explicit 0 in the file means unlimited, which Load records as
	// -1 so the field stays pointer-free: a negative value means
	// "unlimited", 0/unset means the default of 20.
	ListLimit int `toml:"list_limit"`
}

// ListLimitOrDefault resolves the documented SessionListLimit semantics:
// 0 (missing) is treated as 20, a negative value as unlimited.
func (s SessionConfig) ListLimitOrDefault() int {
	if s.ListLimit == 0 {
		return 20
	}
	if s.ListLimit < 0 {
		return 0 // unlimited
	}
	return s.ListLimit
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	// Kind selects the transport adapter: "ollama" (default), "opencode"
	// (generic OpenAI-compatible chat completions), or "vllm" (OpenAI-
	// compatible plus vLLM's extra sampling knobs).
	Kind        string  `toml:"kind"`
	Endpoint    string  `toml:"endpoint"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
}

// KindOrDefault returns the configured transport kind, defaulting to
// "ollama" when unset.
func (p ProviderConfig) KindOrDefault() string {
	if p.Kind == "" {
		return "ollama"
	}
	return p.Kind
}

// Default returns the built-in configuration used when no config.toml
// exists: a single local Ollama provider.
func Default() *Config {
	cfg := &Config{
		DefaultProvider: "ollama",
		Providers: map[string]ProviderConfig{
			"ollama": {
				Kind:        "ollama",
				Endpoint:    "http://localhost:11434",
				Model:       "qwen3:8b",
				Temperature: 0.7,
			},
		},
	}
	applyEnvOverrides(cfg)
	return cfg
}

// Load reads configuration from a TOML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Providers: make(map[string]ProviderConfig),
	}

	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if md.IsDefined("session", "list_limit") && cfg.Session.ListLimit == 0 {
		cfg.Session.ListLimit = -1
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("providers: at least one provider must be configured"))
	} else {
		for name, providerCfg := range c.Providers {
			errs = append(errs, validateProviderConfig(name, providerCfg)...)
		}
	}

	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			errs = append(errs, fmt.Errorf("default_provider=%q does not exist in providers", c.DefaultProvider))
		}
	}

	if c.Tools.Approvals != "" && c.Tools.Approvals != "readonly" && c.Tools.Approvals != "all" {
		errs = append(errs, fmt.Errorf("tools.approvals=%q must be %q or %q", c.Tools.Approvals, "readonly", "all"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func validateProviderConfig(name string, cfg ProviderConfig) []error {
	var errs []error
	switch cfg.KindOrDefault() {
	case "ollama", "opencode", "vllm":
	default:
		errs = append(errs, fmt.Errorf("providers.%s.kind=%q must be one of %q, %q, %q", name, cfg.Kind, "ollama", "opencode", "vllm"))
	}
	if cfg.Endpoint == "" {
		errs = append(errs, fmt.Errorf("providers.%s.endpoint is required", name))
	} else if err := validateEndpoint(cfg.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("providers.%s.endpoint=%q is invalid: %v", name, cfg.Endpoint, err))
	}

	if cfg.Model == "" {
		errs = append(errs, fmt.Errorf("providers.%s.model is required", name))
	}

	if cfg.Temperature < 0.0 || cfg.Temperature > 2.0 {
		errs = append(errs, fmt.Errorf("providers.%s.temperature=%v must be between 0.0 and 2.0", name, cfg.Temperature))
	}

	return errs
}

func validateEndpoint(value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("missing scheme or host")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	for _, setter := range []struct {
		env   string
		apply func(string)
	}{
		{"MOGZI_DEFAULT_PROVIDER", func(v string) {
			if v != "" {
				cfg.DefaultProvider = v
			}
		}},
		{"MOGZI_TOOL_APPROVALS", func(v string) {
			if v != "" {
				cfg.Tools.Approvals = v
			}
		}},
	} {
		setter.apply(os.Getenv(setter.env))
	}
}

// DataDir returns the path to mogzi's data directory (~/.config/mogzi).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mogzi"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	return dir, nil
}

// HomeChatsRoot returns `~/.mogzi/chats`, the session-store root mandated
// by the external interface contract (kept separate from the config/cache
// directory under ~/.config).
func HomeChatsRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mogzi", "chats"), nil
}
