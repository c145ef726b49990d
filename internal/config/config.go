package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultUpstreamBase = "https://yuanbao.tencent.com"
	DefaultIdleTimeout  = 2 * time.Minute
	DefaultEventBuffer  = 64
	DefaultLogLevel     = "info"
)

// Config is the static process configuration, loaded once at startup
type Config struct {
	// Key protects the OpenAI-compatible endpoint when non-empty
	Key            string `yaml:"key"`
	AgentID        string `yaml:"agent_id"`
	HyUser         string `yaml:"hy_user"`
	HyToken        string `yaml:"hy_token"`
	Port           int    `yaml:"port"`
	ConversationID string `yaml:"conversation_id"`

	UpstreamBase string        `yaml:"upstream_base,omitempty"`
	IdleTimeout  time.Duration `yaml:"idle_timeout,omitempty"`
	EventBuffer  int           `yaml:"event_buffer,omitempty"`
	LogLevel     string        `yaml:"log_level,omitempty"`
}

// envOverrides maps environment variables onto string fields
var envOverrides = map[string]func(*Config) *string{
	"YUANBAO_KEY":             func(c *Config) *string { return &c.Key },
	"YUANBAO_AGENT_ID":        func(c *Config) *string { return &c.AgentID },
	"YUANBAO_HY_USER":         func(c *Config) *string { return &c.HyUser },
	"YUANBAO_HY_TOKEN":        func(c *Config) *string { return &c.HyToken },
	"YUANBAO_CONVERSATION_ID": func(c *Config) *string { return &c.ConversationID },
	"YUANBAO_UPSTREAM_BASE":   func(c *Config) *string { return &c.UpstreamBase },
	"YUANBAO_LOG_LEVEL":       func(c *Config) *string { return &c.LogLevel },
}

// LoadConfig loads configuration from a YAML file, applies environment
// overrides and defaults, then validates the result
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	for name, field := range envOverrides {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*field(c) = v
		}
	}
	if v := os.Getenv("YUANBAO_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse YUANBAO_PORT: %w", err)
		}
		c.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.UpstreamBase == "" {
		c.UpstreamBase = DefaultUpstreamBase
	}
	c.UpstreamBase = strings.TrimRight(c.UpstreamBase, "/")
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate reports every missing or malformed field at once
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		name, value string
	}{
		{"agent_id", c.AgentID},
		{"hy_user", c.HyUser},
		{"hy_token", c.HyToken},
		{"conversation_id", c.ConversationID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle_timeout must not be negative"))
	}
	if c.EventBuffer < 0 {
		errs = append(errs, fmt.Errorf("event_buffer must not be negative"))
	}
	if !strings.HasPrefix(c.UpstreamBase, "http://") && !strings.HasPrefix(c.UpstreamBase, "https://") {
		errs = append(errs, fmt.Errorf("upstream_base %q must be an http(s) URL", c.UpstreamBase))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}
