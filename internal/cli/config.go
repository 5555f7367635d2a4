// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the farmsync configuration file.
type Config struct {
	// BaseURL is the farm-track backend API root.
	BaseURL string `yaml:"base_url"`
	// Database is the path to the local SQLite file.
	Database string `yaml:"db"`
	// Token is an optional static bearer token. When empty the stored
	// session from `farmsync login` is used.
	Token string `yaml:"token"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("config is missing base_url")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("config is missing db")
	}
	return &cfg, nil
}
