// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nanodata.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadWithoutEnvVarReturnsDefaults(t *testing.T) {
	t.Setenv(EnvVar, "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.Root == "" {
		t.Error("default cache root empty")
	}
	if cfg.Backends.S3 != nil || cfg.Backends.Hub != nil {
		t.Error("remote backends enabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
cache:
  root: /var/cache/nanodata
  byte_budget: 10 GB
  lock_timeout: 2m30s
  max_builds: 4
backends:
  s3:
    region: eu-west-1
    endpoint: http://minio:9000
    use_path_style: true
  hub: {}
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Cache.Root != "/var/cache/nanodata" {
		t.Errorf("root = %q", cfg.Cache.Root)
	}
	budget, err := cfg.ByteBudgetBytes()
	if err != nil {
		t.Fatal(err)
	}
	if budget != 10_000_000_000 {
		t.Errorf("budget = %d, want 10 GB", budget)
	}
	timeout, err := cfg.LockTimeoutDuration()
	if err != nil {
		t.Fatal(err)
	}
	if timeout != 2*time.Minute+30*time.Second {
		t.Errorf("timeout = %s", timeout)
	}
	if cfg.Cache.MaxBuilds != 4 {
		t.Errorf("max_builds = %d", cfg.Cache.MaxBuilds)
	}
	if cfg.Backends.S3 == nil || !cfg.Backends.S3.UsePathStyle {
		t.Errorf("s3 = %+v", cfg.Backends.S3)
	}
	if cfg.Backends.Hub == nil {
		t.Error("hub backend not enabled")
	}
}

func TestVariableExpansion(t *testing.T) {
	t.Setenv("NANODATA_TEST_TOKEN", "hf_secret")
	path := writeConfig(t, `
cache:
  root: ${HOME}/.cache/elsewhere
backends:
  hub:
    token: ${NANODATA_TEST_TOKEN}
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.Root != filepath.Join(os.Getenv("HOME"), ".cache/elsewhere") {
		t.Errorf("root = %q", cfg.Cache.Root)
	}
	if cfg.Backends.Hub.Token != "hf_secret" {
		t.Errorf("token = %q", cfg.Backends.Hub.Token)
	}
}

func TestVariableDefault(t *testing.T) {
	path := writeConfig(t, `
cache:
  root: ${NANODATA_UNSET_VAR:-/tmp/fallback}
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.Root != "/tmp/fallback" {
		t.Errorf("root = %q, want expansion default", cfg.Cache.Root)
	}
}

func TestBadBudgetRejected(t *testing.T) {
	path := writeConfig(t, `
cache:
  root: /tmp/cache
  byte_budget: a few gigs
`)
	if _, err := LoadFile(path); err == nil {
		t.Error("unparseable byte budget accepted")
	}
}

func TestBadTimeoutRejected(t *testing.T) {
	path := writeConfig(t, `
cache:
  root: /tmp/cache
  lock_timeout: whenever
`)
	if _, err := LoadFile(path); err == nil {
		t.Error("unparseable lock timeout accepted")
	}
}

func TestUnlimitedBudget(t *testing.T) {
	cfg := Default()
	budget, err := cfg.ByteBudgetBytes()
	if err != nil {
		t.Fatal(err)
	}
	if budget != 0 {
		t.Errorf("budget = %d, want 0 (unlimited)", budget)
	}
}
