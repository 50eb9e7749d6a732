package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultServer       = "http://localhost:8000"
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 5 * time.Second
)

// Config is the optional YAML file in the state directory. Flags override
// any value set here.
type Config struct {
	Server       string        `yaml:"server"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// Messages overrides the user facing text shown for HTTP statuses.
	Messages map[int]string `yaml:"messages"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server:       DefaultServer,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
	}
}

// Load reads path, a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server: scheme must be http or https, got %q", u.Scheme)
	}

	for status := range c.Messages {
		if status < 400 || status > 599 {
			return fmt.Errorf("messages: %d is not an error status", status)
		}
	}

	return nil
}
