// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the application configuration for the data CLI
// and embedding callers.
//
// Configuration comes from a single YAML file named by the
// NANODATA_CONFIG environment variable or the --config flag. There is
// no automatic discovery chain: when neither is set, built-in defaults
// apply (cache under ~/.cache/nanodata, local backend only, unlimited
// budget). The only expansion performed on file values is ${VAR} and
// ${VAR:-default} substitution in paths and credentials, for
// portability.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable pointing at the config file.
const EnvVar = "NANODATA_CONFIG"

// Config is the application configuration.
type Config struct {
	// Cache configures the local artifact cache.
	Cache CacheConfig `yaml:"cache"`

	// Backends configures the storage backends.
	Backends BackendsConfig `yaml:"backends"`
}

// CacheConfig configures the local cache and its coordination.
type CacheConfig struct {
	// Root is the cache directory.
	// Default: ~/.cache/nanodata
	Root string `yaml:"root"`

	// ByteBudget bounds total cached bytes, in humanized form
	// ("10 GB", "512MiB"). Empty or "0" means unlimited.
	ByteBudget string `yaml:"byte_budget"`

	// LockTimeout bounds waiting on another process's build, as a Go
	// duration string. Default: 10m.
	LockTimeout string `yaml:"lock_timeout"`

	// MaxBuilds caps concurrent materializations. Zero means
	// GOMAXPROCS.
	MaxBuilds int `yaml:"max_builds"`
}

// BackendsConfig configures the storage backends the resolver can
// reach. The local backend is always registered.
type BackendsConfig struct {
	// LocalRoot confines local:// paths beneath a directory. Empty
	// means paths are used as-is.
	LocalRoot string `yaml:"local_root"`

	// S3 enables the s3:// backend when non-nil.
	S3 *S3Config `yaml:"s3,omitempty"`

	// Hub enables the hub:// backend when non-nil. An empty struct is
	// valid: the public Hugging Face endpoint needs no settings.
	Hub *HubConfig `yaml:"hub,omitempty"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	// Region is the AWS region. Empty defers to the SDK's default
	// resolution (env vars, shared config).
	Region string `yaml:"region"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores
	// (MinIO, Ceph).
	Endpoint string `yaml:"endpoint"`

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible stores.
	UsePathStyle bool `yaml:"use_path_style"`
}

// HubConfig configures the Hugging Face hub backend.
type HubConfig struct {
	// URL overrides the hub endpoint. Default: https://huggingface.co
	URL string `yaml:"url"`

	// Token authenticates requests for gated or private datasets.
	// ${VAR} expansion applies, so "${HF_TOKEN}" works.
	Token string `yaml:"token"`
}

// Default returns the built-in defaults, usable without any config
// file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Cache: CacheConfig{
			Root:        filepath.Join(homeDir, ".cache", "nanodata"),
			LockTimeout: "10m",
		},
	}
}

// Load loads configuration from NANODATA_CONFIG, or returns defaults
// when it is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific path, layered over the
// defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ByteBudgetBytes parses the humanized byte budget. Zero means
// unlimited.
func (c *Config) ByteBudgetBytes() (int64, error) {
	if c.Cache.ByteBudget == "" || c.Cache.ByteBudget == "0" {
		return 0, nil
	}
	bytes, err := humanize.ParseBytes(c.Cache.ByteBudget)
	if err != nil {
		return 0, fmt.Errorf("cache.byte_budget %q: %w", c.Cache.ByteBudget, err)
	}
	return int64(bytes), nil
}

// LockTimeoutDuration parses the lock timeout. Zero means the
// coordination default.
func (c *Config) LockTimeoutDuration() (time.Duration, error) {
	if c.Cache.LockTimeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.Cache.LockTimeout)
	if err != nil {
		return 0, fmt.Errorf("cache.lock_timeout %q: %w", c.Cache.LockTimeout, err)
	}
	return timeout, nil
}

// Validate checks the configuration for errors a typo would cause.
func (c *Config) Validate() error {
	if c.Cache.Root == "" {
		return fmt.Errorf("cache.root is required")
	}
	if _, err := c.ByteBudgetBytes(); err != nil {
		return err
	}
	if _, err := c.LockTimeoutDuration(); err != nil {
		return err
	}
	if c.Cache.MaxBuilds < 0 {
		return fmt.Errorf("cache.max_builds must not be negative")
	}
	return nil
}

// expandVariables expands ${VAR} patterns in path and credential
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Cache.Root = expandVars(c.Cache.Root, vars)
	c.Backends.LocalRoot = expandVars(c.Backends.LocalRoot, vars)
	if c.Backends.Hub != nil {
		c.Backends.Hub.Token = expandVars(c.Backends.Hub.Token, vars)
	}
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}
