package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".chronoscribe"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// envPrefix is prepended to every envconfig variable name.
	envPrefix = "CHRONOSCRIBE"
)

// ConfigPath returns the path to the config file. CHRONOSCRIBE_CONFIG
// overrides the default ~/.chronoscribe/config.json.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("CHRONOSCRIBE_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load reads the config file (if present), overlays environment variables,
// and fills defaults. A missing file is not an error; a malformed one is.
func Load() (*Config, error) {
	cfg := &Config{}

	path, err := ConfigPath()
	if err == nil {
		data, readErr := os.ReadFile(path)
		switch {
		case readErr == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(readErr):
			return nil, fmt.Errorf("read %s: %w", path, readErr)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}
