/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// config is assembled from an optional YAML file (CONFIG_FILE) with
// environment variables taking precedence, then built-in defaults filling
// whatever remains unset.
type config struct {
	Port        int    `env:"PORT" yaml:"port"`
	MetricsPort int    `env:"METRICS_PORT" yaml:"metricsPort"`
	DataDir     string `env:"DATA_DIR" yaml:"dataDir"`

	CommitAuthorName  string `env:"COMMIT_AUTHOR_NAME" yaml:"commitAuthorName"`
	CommitAuthorEmail string `env:"COMMIT_AUTHOR_EMAIL" yaml:"commitAuthorEmail"`

	Sandbox sandboxConfig `yaml:"sandbox"`
}

// sandboxConfig describes the external SSH boundary. An empty Host disables
// account management and ownership sync entirely.
type sandboxConfig struct {
	Host         string `env:"SANDBOX_HOST" yaml:"host"`
	Port         int    `env:"SANDBOX_PORT" yaml:"port"`
	AdminUser    string `env:"SANDBOX_ADMIN_USER" yaml:"adminUser"`
	AdminKeyFile string `env:"SANDBOX_ADMIN_KEY_FILE" yaml:"adminKeyFile"`
	SSHPort      int    `env:"SANDBOX_SSH_PORT" yaml:"sshPort"`
	HomeBase     string `env:"SANDBOX_HOME_BASE" yaml:"homeBase"`
}

func loadConfig(ctx context.Context) (*config, error) {
	cfg := &config{}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 2112
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "/users/apps"
	}
	if cfg.CommitAuthorName == "" {
		cfg.CommitAuthorName = "Forgespace"
	}
	if cfg.CommitAuthorEmail == "" {
		cfg.CommitAuthorEmail = "forgespace@localhost"
	}
	if cfg.Sandbox.Port == 0 {
		cfg.Sandbox.Port = 22
	}
	if cfg.Sandbox.SSHPort == 0 {
		cfg.Sandbox.SSHPort = cfg.Sandbox.Port
	}
	if cfg.Sandbox.AdminUser == "" {
		cfg.Sandbox.AdminUser = "root"
	}

	return cfg, nil
}
