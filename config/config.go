// Package config loads server settings from defaults, an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything main needs to start the server.
type Config struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Debug          bool     `yaml:"debug"`
	LogFormat      string   `yaml:"log_format"`
	Backend        string   `yaml:"store_backend"`
	DataDir        string   `yaml:"data_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Seed           bool     `yaml:"seed"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		LogFormat:      "text",
		Backend:        "memory",
		DataDir:        "./data",
		AllowedOrigins: []string{"*"},
		Seed:           true,
	}
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (supported: text, json)", c.LogFormat)
	}
	return nil
}

// Load builds a Config from defaults, then the YAML file named by CONFIG_FILE
// (if set), then environment variables. lookup is usually os.LookupEnv.
func Load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("HOST", &c.Host)
	str("LOG_FORMAT", &c.LogFormat)
	str("STORE_BACKEND", &c.Backend)
	str("DATA_DIR", &c.DataDir)
	boolean("DEBUG", &c.Debug)
	boolean("SEED", &c.Seed)

	if v, ok := lookup("PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		} else {
			c.Port = p
		}
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	}
	return errors.Join(errs...)
}
