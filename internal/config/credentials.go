package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Credentials holds API keys for LLM providers, kept out of the main
// config file so config.toml can be shared or committed freely.
type Credentials struct {
	Providers map[string]ProviderCredentials `toml:"providers"`
}

// ProviderCredentials holds authentication for a single provider.
type ProviderCredentials struct {
	APIKey string `toml:"api_key"`
}

// LoadCredentials reads ~/.config/mogzi/credentials.toml. A missing
// file yields empty credentials, not an error.
func LoadCredentials() (*Credentials, error) {
	path, err := credentialsPath()
	if err != nil {
		return nil, err
	}

	creds := &Credentials{
		Providers: make(map[string]ProviderCredentials),
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return creds, nil
	}
	if _, err := toml.DecodeFile(path, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// SaveCredentials writes credentials with 0600 permissions.
func SaveCredentials(creds *Credentials) error {
	dir, err := EnsureDataDir()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(creds); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "credentials.toml"), buf.Bytes(), 0600)
}

// GetAPIKey returns the API key for a provider, or "" when not set.
func (c *Credentials) GetAPIKey(provider string) string {
	if c == nil || c.Providers == nil {
		return ""
	}
	return c.Providers[provider].APIKey
}

// SetAPIKey records the API key for a provider.
func (c *Credentials) SetAPIKey(provider, apiKey string) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderCredentials)
	}
	c.Providers[provider] = ProviderCredentials{APIKey: apiKey}
}

func credentialsPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.toml"), nil
}
