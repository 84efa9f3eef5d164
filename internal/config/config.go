// Package config loads server configuration in three layers: built-in
// defaults, an optional YAML file, then environment variables on top.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds everything the server and CLI need at startup.
type Config struct {
	Server struct {
		Addr            string        `envconfig:"SERVER_ADDR" yaml:"addr"`
		ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" yaml:"readTimeout"`
		WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Data struct {
		// Dir holds one CSV file per symbol (AAPL.csv, ...).
		Dir string `envconfig:"DATA_DIR" yaml:"dir"`
	} `yaml:"data"`

	Batch struct {
		Workers int           `envconfig:"BATCH_WORKERS" yaml:"workers"`
		Budget  time.Duration `envconfig:"BATCH_BUDGET" yaml:"budget"`
	} `yaml:"batch"`

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" yaml:"level"`
		Format string `envconfig:"LOG_FORMAT" yaml:"format"`
	} `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 120 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Data.Dir = "./data"
	cfg.Batch.Workers = 4
	cfg.Batch.Budget = 60 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load reads the optional YAML file at path (skipped when empty or missing),
// then applies environment variables on top of it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	// Fields without a matching environment variable keep their value.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	if cfg.Batch.Workers < 1 {
		return fmt.Errorf("batch workers must be at least 1")
	}
	if cfg.Batch.Budget < time.Second {
		return fmt.Errorf("batch budget must be at least 1s")
	}
	return nil
}
