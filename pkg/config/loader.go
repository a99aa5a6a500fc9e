package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point used by cmd/shift.
//
// Steps:
//  1. Read the YAML file at path (if it exists — an absent file is not an
//     error, since every field has a usable default).
//  2. Expand ${VAR}/$VAR references against the process environment.
//  3. Parse YAML into Config.
//  4. Merge in built-in defaults for anything left unset.
//  5. Validate.
func Initialize(ctx context.Context, path string) (*Config, error) {
	log := slog.With("config_path", path)
	log.InfoContext(ctx, "loading configuration")

	cfg, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := mergeDefaults(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("failed to validate configuration: %w", err)
	}

	log.InfoContext(ctx, "configuration ready", "http_addr", cfg.HTTP.Addr, "database", cfg.Database.Database)
	return cfg, nil
}

func load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigNotFound, err)
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return cfg, nil
}

// mergeDefaults fills every zero-valued field of cfg from the package
// defaults, without overwriting anything the YAML file set explicitly.
func mergeDefaults(cfg *Config) error {
	d := defaults
	return mergo.Merge(cfg, d)
}
