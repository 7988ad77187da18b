// Package config loads the protocol-wide configuration for a run: timeouts,
// redirect policy, TLS validation, HTTP/2 negotiation and request caching.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the protocol configuration shared by every request of a run.
type Config struct {
	// Timeout is the default request timeout in milliseconds; individual
	// requests may override it.
	Timeout int `yaml:"timeout,omitempty"`
	// HTTP2 enables HTTP/2 negotiation, including prior-knowledge
	// shortcuts once a remote's support is confirmed.
	HTTP2 bool `yaml:"http2,omitempty"`
	// RequestCaching enables conditional revalidation headers drawn from
	// the response cache.
	RequestCaching  bool              `yaml:"requestCaching,omitempty"`
	FollowRedirects *bool             `yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `yaml:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `yaml:"validateSSL,omitempty"`
	Proxy           string            `yaml:"proxy,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      30000,
		HTTP2:        true,
		MaxRedirects: 10,
	}
}

// Load reads configuration from a YAML file, applying defaults for absent
// fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads the file when it exists and falls back to defaults
// otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// RequestTimeout returns the default timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetFollowRedirects returns the redirect setting, defaulting to true.
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the TLS validation setting, defaulting to true.
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// BoolPtr returns a pointer to a bool value, for building configs in code.
func BoolPtr(b bool) *bool {
	return &b
}
