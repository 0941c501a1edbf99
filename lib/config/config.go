// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the complete spool configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment" json:"environment"`

	// Endpoint is the absolute http(s) URL batches are POSTed to.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Storage configures the durable queue folder.
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Senders is the number of concurrent delivery workers once this
	// process holds the transmission lock.
	// Default: 1
	Senders int `yaml:"senders" json:"senders"`

	// SendingInterval is the wait between successful sends.
	// Default: 30s
	SendingInterval Duration `yaml:"sending_interval" json:"sending_interval"`

	// FlushInterval is the wait between periodic buffer flushes.
	// Default: 30s
	FlushInterval Duration `yaml:"flush_interval" json:"flush_interval"`

	// BufferCapacity is the item count that forces an immediate flush.
	// Default: 500
	BufferCapacity int `yaml:"buffer_capacity" json:"buffer_capacity"`

	// DeveloperMode collapses BufferCapacity to 1 so every item is
	// flushed through as soon as it is sent.
	DeveloperMode bool `yaml:"developer_mode" json:"developer_mode"`

	// RequestTimeout bounds each POST.
	// Default: 100s
	RequestTimeout Duration `yaml:"request_timeout" json:"request_timeout"`

	// Serializer is "json" (newline-delimited JSON) or "cbor".
	Serializer string `yaml:"serializer" json:"serializer"`

	// Compression is "gzip", "zstd", "lz4" or "none".
	Compression string `yaml:"compression" json:"compression"`

	// LockPrefix prefixes the cross-process lock name derived from the
	// storage folder.
	LockPrefix string `yaml:"lock_prefix" json:"lock_prefix"`

	// MetricsListen, if set, is the address the CLI serves Prometheus
	// metrics on (e.g. "127.0.0.1:9464").
	MetricsListen string `yaml:"metrics_listen" json:"metrics_listen"`

	// Per-environment overrides, applied after the base config.
	Development *Overrides `yaml:"development,omitempty" json:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty" json:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty" json:"production,omitempty"`
}

// StorageConfig configures the durable queue.
type StorageConfig struct {
	// Path is an explicit queue directory. When empty, FolderName is
	// created under the platform cache directory.
	Path string `yaml:"path" json:"path"`

	// FolderName names the queue directory under the platform cache
	// directory.
	// Default: spool
	FolderName string `yaml:"folder_name" json:"folder_name"`

	// MaxFiles caps the number of queued files.
	// Default: 5000
	MaxFiles int `yaml:"max_files" json:"max_files"`

	// CapacityBytes caps the total size of queued files.
	// Default: 10485760 (10 MiB)
	CapacityBytes int64 `yaml:"capacity_bytes" json:"capacity_bytes"`
}

// Overrides contains the fields an environment section may change.
// Zero values leave the base untouched.
type Overrides struct {
	Endpoint        string         `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Senders         int            `yaml:"senders,omitempty" json:"senders,omitempty"`
	SendingInterval Duration       `yaml:"sending_interval,omitempty" json:"sending_interval,omitempty"`
	FlushInterval   Duration       `yaml:"flush_interval,omitempty" json:"flush_interval,omitempty"`
	DeveloperMode   *bool          `yaml:"developer_mode,omitempty" json:"developer_mode,omitempty"`
	Storage         *StorageConfig `yaml:"storage,omitempty" json:"storage,omitempty"`
}

// Duration is a time.Duration written as a string.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML parses "30s"-style strings.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes d in ParseDuration syntax.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON parses "30s"-style strings.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON writes d in ParseDuration syntax.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Default returns the configuration every file is layered onto. It has
// no endpoint; one must come from the file or a flag.
func Default() *Config {
	return &Config{
		Environment: Development,
		Storage: StorageConfig{
			FolderName:    "spool",
			MaxFiles:      5000,
			CapacityBytes: 10 * 1024 * 1024,
		},
		Senders:         1,
		SendingInterval: Duration(30 * time.Second),
		FlushInterval:   Duration(30 * time.Second),
		BufferCapacity:  500,
		RequestTimeout:  Duration(100 * time.Second),
		Serializer:      "json",
		Compression:     "gzip",
		LockPrefix:      "spool-",
	}
}

// Load loads configuration from the file named by SPOOL_CONFIG. It
// fails if the variable is not set; there is no discovery.
func Load() (*Config, error) {
	configPath := os.Getenv("SPOOL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SPOOL_CONFIG environment variable not set; " +
			"set it to the path of your spool.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path on top of Default, applies
// the matching environment section, and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile decodes path into c, choosing the format by extension.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Endpoint != "" {
		c.Endpoint = overrides.Endpoint
	}
	if overrides.Senders != 0 {
		c.Senders = overrides.Senders
	}
	if overrides.SendingInterval != 0 {
		c.SendingInterval = overrides.SendingInterval
	}
	if overrides.FlushInterval != 0 {
		c.FlushInterval = overrides.FlushInterval
	}
	if overrides.DeveloperMode != nil {
		c.DeveloperMode = *overrides.DeveloperMode
	}
	if overrides.Storage != nil {
		if overrides.Storage.Path != "" {
			c.Storage.Path = overrides.Storage.Path
		}
		if overrides.Storage.FolderName != "" {
			c.Storage.FolderName = overrides.Storage.FolderName
		}
		if overrides.Storage.MaxFiles != 0 {
			c.Storage.MaxFiles = overrides.Storage.MaxFiles
		}
		if overrides.Storage.CapacityBytes != 0 {
			c.Storage.CapacityBytes = overrides.Storage.CapacityBytes
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// storage path.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Storage.Path = expandVars(c.Storage.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the environment.
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

// BufferSize returns the effective buffer capacity, honoring
// DeveloperMode.
func (c *Config) BufferSize() int {
	if c.DeveloperMode {
		return 1
	}
	return c.BufferCapacity
}

// Validate checks the configuration for errors. Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	} else if err := validateEndpoint(c.Endpoint); err != nil {
		errs = append(errs, err)
	}

	if c.Senders < 1 {
		errs = append(errs, fmt.Errorf("senders must be at least 1, got %d", c.Senders))
	}
	if c.Storage.MaxFiles < 0 {
		errs = append(errs, fmt.Errorf("storage.max_files must not be negative, got %d", c.Storage.MaxFiles))
	}
	if c.Storage.CapacityBytes < 0 {
		errs = append(errs, fmt.Errorf("storage.capacity_bytes must not be negative, got %d", c.Storage.CapacityBytes))
	}
	if c.BufferCapacity < 0 {
		errs = append(errs, fmt.Errorf("buffer_capacity must not be negative, got %d", c.BufferCapacity))
	}
	for name, value := range map[string]Duration{
		"sending_interval": c.SendingInterval,
		"flush_interval":   c.FlushInterval,
		"request_timeout":  c.RequestTimeout,
	} {
		if value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", name, value))
		}
	}

	serializers := []string{"json", "cbor"}
	if !contains(serializers, c.Serializer) {
		errs = append(errs, fmt.Errorf("serializer must be one of: %v", serializers))
	}
	compressions := []string{"gzip", "zstd", "lz4", "none"}
	if !contains(compressions, c.Compression) {
		errs = append(errs, fmt.Errorf("compression must be one of: %v", compressions))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateEndpoint(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint must be an http or https URL, got %q", endpoint)
	}
	if parsed.Host == "" {
		return fmt.Errorf("endpoint has no host: %q", endpoint)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
