// Package config holds the kiln daemon configuration: factory sizing,
// introspection server address, and logging. Values come from defaults, an
// optional YAML file, and CLI flag overrides, in that order.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Factory FactoryConfig `yaml:"factory"`
	Admin   AdminConfig   `yaml:"admin"`
	Log     LogConfig     `yaml:"log"`
}

type FactoryConfig struct {
	// URI roots the factory: "file:///path" or "http://host:port/path".
	URI string `yaml:"uri" validate:"required"`

	MaxResources     int `yaml:"maxResources" validate:"gt=0"`
	StreamBufferSize int `yaml:"streamBufferSize" validate:"gt=0"`

	// ReloadSupport keeps the filename table needed for live reload.
	// Enabled implicitly when the admin server is on.
	ReloadSupport bool `yaml:"reloadSupport"`
}

type AdminConfig struct {
	// Enabled starts the embedded introspection server.
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port" validate:"gte=0,lte=65535"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Factory: FactoryConfig{
			MaxResources:     1024,
			StreamBufferSize: 4 * 1024 * 1024,
		},
		Admin: AdminConfig{
			Enabled: true,
			Port:    8001,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config file over the defaults and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
