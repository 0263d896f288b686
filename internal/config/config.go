package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultBaseURL is the fallback backend host when neither config nor
// environment provide one.
const DefaultBaseURL = "https://crmbackend.lifeinternationalministries.com"

// Config represents the global ~/.crmterm/config.toml.
type Config struct {
	BaseURL        string `toml:"base_url"`
	DefaultProfile string `toml:"default_profile"`
}

// Load reads config from the given path. A missing file is not an error:
// first runs work with the zero config until Save writes one.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ResolveBaseURL picks the backend base URL using precedence:
// 1. CRM_BASE_URL environment variable (set directly or via .env)
// 2. base_url from config.toml
// 3. DefaultBaseURL
func ResolveBaseURL(cfg *Config) string {
	if v := os.Getenv("CRM_BASE_URL"); v != "" {
		return v
	}
	if cfg != nil && cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return DefaultBaseURL
}
