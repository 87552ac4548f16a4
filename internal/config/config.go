// Package config provides configuration management for bulkpush.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/fieldline/bulkpush/internal/constants"
)

// Config is the runtime configuration for an upload run.
//
// Config file location: ~/.config/bulkpush/config
//
// INI format:
//
//	[remote]
//	api_url = https://api.example.com
//	repository = acme/datasets
//	branch = main
//	commit_message = bulkpush sync
//
//	[credentials]
//	tokens = ghp_aaaa,ghp_bbbb,ghp_cccc
//
//	[scheduler]
//	low_water_mark = 10
//	retry_budget = 3
//	probe_backoff_seconds = 30
//	workers = 0
//	max_payload_bytes = 104857600
//
//	[exclude]
//	patterns = .git/**,node_modules/**,*.log,**/__pycache__/**
//
//	[proxy]
//	mode = system
type Config struct {
	// Remote connection settings
	APIBaseURL    string
	Repository    string
	Branch        string
	CommitMessage string

	// Tokens is one secret per credential, in pool order.
	Tokens []string

	// Scheduler tuning
	LowWaterMark    int
	RetryBudget     int
	ProbeBackoff    time.Duration
	Workers         int // 0 = one per credential
	MaxPayloadBytes int64

	// ExcludePatterns are glob patterns applied to relative paths during
	// enumeration. Supports ** for multi-directory matching.
	ExcludePatterns []string

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyURL      string
	ProxyUser     string
	ProxyPassword string
}

// Validation errors
var (
	ErrMissingAPIBaseURL = errors.New("api_url is required")
	ErrMissingRepository = errors.New("repository is required")
	ErrNoTokens          = errors.New("at least one credential token is required")
	ErrInvalidLowWater   = errors.New("low_water_mark must be >= 0")
	ErrInvalidRetries    = errors.New("retry_budget must be >= 1")
	ErrInvalidPayloadCap = errors.New("max_payload_bytes must be positive")
)

// Default returns a config populated with package defaults. The caller
// still has to supply tokens, repository and API URL.
func Default() *Config {
	return &Config{
		Branch:          "main",
		CommitMessage:   "bulkpush sync",
		LowWaterMark:    constants.DefaultLowWaterMark,
		RetryBudget:     constants.DefaultRetryBudget,
		ProbeBackoff:    constants.DefaultProbeBackoff,
		MaxPayloadBytes: constants.MaxPayloadSize,
		ProxyMode:       "system",
	}
}

// DefaultPath returns the default path for the config file
// (~/.config/bulkpush/config).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "bulkpush", "config"), nil
}

// Load reads a config file and applies environment overrides. A missing
// file is not an error when path is empty and the default location does
// not exist: the zero-value defaults are returned and the caller relies
// on flags/env.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		defaultPath, err := DefaultPath()
		if err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				path = defaultPath
			}
		}
	}

	if path != "" {
		file, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		applyFile(cfg, file)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyFile(cfg *Config, file *ini.File) {
	remote := file.Section("remote")
	if v := remote.Key("api_url").String(); v != "" {
		cfg.APIBaseURL = v
	}
	if v := remote.Key("repository").String(); v != "" {
		cfg.Repository = v
	}
	if v := remote.Key("branch").String(); v != "" {
		cfg.Branch = v
	}
	if v := remote.Key("commit_message").String(); v != "" {
		cfg.CommitMessage = v
	}

	creds := file.Section("credentials")
	if v := creds.Key("tokens").String(); v != "" {
		cfg.Tokens = splitList(v)
	}

	sched := file.Section("scheduler")
	if k := sched.Key("low_water_mark"); k.String() != "" {
		cfg.LowWaterMark = k.MustInt(cfg.LowWaterMark)
	}
	if k := sched.Key("retry_budget"); k.String() != "" {
		cfg.RetryBudget = k.MustInt(cfg.RetryBudget)
	}
	if k := sched.Key("probe_backoff_seconds"); k.String() != "" {
		cfg.ProbeBackoff = time.Duration(k.MustInt(int(cfg.ProbeBackoff/time.Second))) * time.Second
	}
	if k := sched.Key("workers"); k.String() != "" {
		cfg.Workers = k.MustInt(cfg.Workers)
	}
	if k := sched.Key("max_payload_bytes"); k.String() != "" {
		cfg.MaxPayloadBytes = k.MustInt64(cfg.MaxPayloadBytes)
	}

	excl := file.Section("exclude")
	if v := excl.Key("patterns").String(); v != "" {
		cfg.ExcludePatterns = splitList(v)
	}

	proxy := file.Section("proxy")
	if v := proxy.Key("mode").String(); v != "" {
		cfg.ProxyMode = v
	}
	if v := proxy.Key("url").String(); v != "" {
		cfg.ProxyURL = v
	}
	if v := proxy.Key("user").String(); v != "" {
		cfg.ProxyUser = v
	}
	if v := proxy.Key("password").String(); v != "" {
		cfg.ProxyPassword = v
	}
}

// applyEnv applies environment variable overrides. Secrets in
// particular are usually injected via environment in CI.
func applyEnv(cfg *Config) {
	if v := os.Getenv("BULKPUSH_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("BULKPUSH_REPOSITORY"); v != "" {
		cfg.Repository = v
	}
	if v := os.Getenv("BULKPUSH_BRANCH"); v != "" {
		cfg.Branch = v
	}
	if v := os.Getenv("BULKPUSH_TOKENS"); v != "" {
		cfg.Tokens = splitList(v)
	}
}

// Save writes the configuration to an INI file. Tokens are written
// verbatim; the file is created with owner-only permissions.
func Save(cfg *Config, path string) error {
	file := ini.Empty()

	remote := file.Section("remote")
	remote.Key("api_url").SetValue(cfg.APIBaseURL)
	remote.Key("repository").SetValue(cfg.Repository)
	remote.Key("branch").SetValue(cfg.Branch)
	remote.Key("commit_message").SetValue(cfg.CommitMessage)

	file.Section("credentials").Key("tokens").SetValue(strings.Join(cfg.Tokens, ","))

	sched := file.Section("scheduler")
	sched.Key("low_water_mark").SetValue(fmt.Sprintf("%d", cfg.LowWaterMark))
	sched.Key("retry_budget").SetValue(fmt.Sprintf("%d", cfg.RetryBudget))
	sched.Key("probe_backoff_seconds").SetValue(fmt.Sprintf("%d", int(cfg.ProbeBackoff/time.Second)))
	sched.Key("workers").SetValue(fmt.Sprintf("%d", cfg.Workers))
	sched.Key("max_payload_bytes").SetValue(fmt.Sprintf("%d", cfg.MaxPayloadBytes))

	file.Section("exclude").Key("patterns").SetValue(strings.Join(cfg.ExcludePatterns, ","))

	proxy := file.Section("proxy")
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	if cfg.ProxyURL != "" {
		proxy.Key("url").SetValue(cfg.ProxyURL)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	// Config contains secrets - restrict to owner
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	return nil
}

// Validate checks that the configuration is complete enough to run.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return ErrMissingAPIBaseURL
	}
	if c.Repository == "" {
		return ErrMissingRepository
	}
	if len(c.Tokens) == 0 {
		return ErrNoTokens
	}
	if c.LowWaterMark < 0 {
		return ErrInvalidLowWater
	}
	if c.RetryBudget < 1 {
		return ErrInvalidRetries
	}
	if c.MaxPayloadBytes <= 0 {
		return ErrInvalidPayloadCap
	}
	return nil
}

// splitList parses a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
