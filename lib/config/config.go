// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the configuration file.
const EnvironmentVariable = "UPTY_CONFIG"

// environmentPrefix prefixes every environment override.
const environmentPrefix = "UPTY"

// IdentityStoreKind selects where descriptor identities are kept.
type IdentityStoreKind string

const (
	// EnvironmentIdentityStore keeps identities in the process
	// environment so they survive exec.
	EnvironmentIdentityStore IdentityStoreKind = "environment"

	// MemoryIdentityStore keeps identities in process memory only.
	MemoryIdentityStore IdentityStoreKind = "memory"
)

// Config is the configuration shared by upty clients and the session
// manager.
type Config struct {
	// Socket is the rendezvous socket. Empty selects
	// ~/.upty/upty.sock, or /tmp/upty-<uid>/upty.sock without a home
	// directory.
	Socket string `yaml:"socket"`

	// DialTimeout bounds each handshake and control exchange with the
	// session manager. Zero waits indefinitely.
	DialTimeout time.Duration `yaml:"dial_timeout" split_words:"true"`

	// IdentityStore selects the identity store implementation.
	// Default: environment.
	IdentityStore IdentityStoreKind `yaml:"identity_store" split_words:"true"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug"`

	// Manager configures the reference session manager.
	Manager ManagerConfig `yaml:"manager"`
}

// ManagerConfig configures the reference session manager.
type ManagerConfig struct {
	// AdminSocket is the unix socket serving status queries. Empty
	// places admin.sock next to the rendezvous socket.
	AdminSocket string `yaml:"admin_socket" split_words:"true"`

	// MetricsListen is the TCP address serving Prometheus metrics at
	// /metrics. Empty disables the endpoint.
	MetricsListen string `yaml:"metrics_listen" split_words:"true"`

	// Shell is started on the slave of every allocated instance when
	// non-empty. Used for interactive checks of the manager; clients
	// normally attach their own programs.
	Shell string `yaml:"shell"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		IdentityStore: EnvironmentIdentityStore,
	}
}

// Load loads the file named by UPTY_CONFIG, if set, and applies
// environment overrides.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvironmentVariable))
}

// LoadFile loads configuration from path and applies environment
// overrides. An empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := envconfig.Process(environmentPrefix, cfg); err != nil {
		return nil, fmt.Errorf("applying %s_* environment overrides: %w", environmentPrefix, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current
// config. Files ending in .json or .jsonc may carry comments and
// trailing commas; the stripped JSON is a YAML document.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch filepath.Ext(path) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	return yaml.Unmarshal(data, c)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	c.Socket = expandVars(c.Socket)
	c.Manager.AdminSocket = expandVars(c.Manager.AdminSocket)
	c.Manager.Shell = expandVars(c.Manager.Shell)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.IdentityStore {
	case EnvironmentIdentityStore, MemoryIdentityStore:
	default:
		errs = append(errs, fmt.Errorf("identity_store must be %q or %q, got %q",
			EnvironmentIdentityStore, MemoryIdentityStore, c.IdentityStore))
	}

	if c.DialTimeout < 0 {
		errs = append(errs, fmt.Errorf("dial_timeout must not be negative, got %v", c.DialTimeout))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
