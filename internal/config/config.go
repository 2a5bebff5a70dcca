// Package config provides configuration types and loading for chronoscribe.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Provider ProviderConfig `json:"provider"`
	Agent    AgentConfig    `json:"agent"`
	Server   ServerConfig   `json:"server"`
	Tools    ToolsConfig    `json:"tools"`
	Log      LogConfig      `json:"log"`
}

// ProviderConfig contains completion endpoint settings.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
	Model   string `json:"model" envconfig:"MODEL"`
}

// AgentConfig groups agent-loop behaviour.
type AgentConfig struct {
	MaxRounds    int     `json:"maxRounds" envconfig:"MAX_ROUNDS"`
	MaxTokens    int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature  float64 `json:"temperature" envconfig:"TEMPERATURE"`
	ToolsEnabled *bool   `json:"toolsEnabled" envconfig:"TOOLS_ENABLED"`
	// ReferenceYear pins T+0 for deterministic anchor labeling in tests and
	// demos. Zero means "use the current year".
	ReferenceYear  int `json:"referenceYear" envconfig:"REFERENCE_YEAR"`
	DefaultHorizon int `json:"defaultHorizon" envconfig:"DEFAULT_HORIZON"`
}

// ServerConfig groups the HTTP boundary settings.
type ServerConfig struct {
	Host            string        `json:"host" envconfig:"HOST"`
	Port            int           `json:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `json:"readTimeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `json:"writeTimeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// ToolsConfig groups helper tool settings.
type ToolsConfig struct {
	WikiTimeout  time.Duration `json:"wikiTimeout" envconfig:"WIKI_TIMEOUT"`
	WikiCacheTTL time.Duration `json:"wikiCacheTtl" envconfig:"WIKI_CACHE_TTL"`
	WikiBaseURL  string        `json:"wikiBaseUrl,omitempty" envconfig:"WIKI_BASE_URL"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level string `json:"level" envconfig:"LOG_LEVEL"`
}

// ToolsEnabled returns the global tool switch, defaulting to on.
func (c *Config) ToolsEnabled() bool {
	if c.Agent.ToolsEnabled == nil {
		return true
	}
	return *c.Agent.ToolsEnabled
}

// applyDefaults fills zero values with working defaults.
func (c *Config) applyDefaults() {
	if c.Provider.Model == "" {
		c.Provider.Model = "gpt-4o-mini"
	}
	if c.Agent.MaxRounds == 0 {
		c.Agent.MaxRounds = 4
	}
	if c.Agent.MaxTokens == 0 {
		c.Agent.MaxTokens = 4096
	}
	if c.Agent.Temperature == 0 {
		c.Agent.Temperature = 0.7
	}
	if c.Agent.DefaultHorizon == 0 {
		c.Agent.DefaultHorizon = 3
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// simulate runs several LLM round-trips; give writes headroom
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Tools.WikiTimeout == 0 {
		c.Tools.WikiTimeout = 5 * time.Second
	}
	if c.Tools.WikiCacheTTL == 0 {
		c.Tools.WikiCacheTTL = 30 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
