package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	cfg := Default()
	cfg.APIBaseURL = "https://api.example.com"
	cfg.Repository = "acme/datasets"
	cfg.Branch = "release"
	cfg.Tokens = []string{"tok_a", "tok_b"}
	cfg.LowWaterMark = 25
	cfg.RetryBudget = 5
	cfg.ProbeBackoff = 45 * time.Second
	cfg.ExcludePatterns = []string{".git/**", "*.log"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.APIBaseURL != cfg.APIBaseURL {
		t.Errorf("APIBaseURL = %q, want %q", loaded.APIBaseURL, cfg.APIBaseURL)
	}
	if loaded.Repository != cfg.Repository {
		t.Errorf("Repository = %q, want %q", loaded.Repository, cfg.Repository)
	}
	if loaded.Branch != "release" {
		t.Errorf("Branch = %q, want release", loaded.Branch)
	}
	if len(loaded.Tokens) != 2 || loaded.Tokens[0] != "tok_a" || loaded.Tokens[1] != "tok_b" {
		t.Errorf("Tokens = %v, want [tok_a tok_b]", loaded.Tokens)
	}
	if loaded.LowWaterMark != 25 {
		t.Errorf("LowWaterMark = %d, want 25", loaded.LowWaterMark)
	}
	if loaded.RetryBudget != 5 {
		t.Errorf("RetryBudget = %d, want 5", loaded.RetryBudget)
	}
	if loaded.ProbeBackoff != 45*time.Second {
		t.Errorf("ProbeBackoff = %v, want 45s", loaded.ProbeBackoff)
	}
	if len(loaded.ExcludePatterns) != 2 {
		t.Errorf("ExcludePatterns = %v, want 2 entries", loaded.ExcludePatterns)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BULKPUSH_TOKENS", "env_tok_1, env_tok_2 ,env_tok_3")
	t.Setenv("BULKPUSH_REPOSITORY", "env/repo")

	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	if err := os.WriteFile(path, []byte("[credentials]\ntokens = file_tok\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Environment wins over file
	if len(cfg.Tokens) != 3 || cfg.Tokens[0] != "env_tok_1" || cfg.Tokens[2] != "env_tok_3" {
		t.Errorf("Tokens = %v, want env tokens", cfg.Tokens)
	}
	if cfg.Repository != "env/repo" {
		t.Errorf("Repository = %q, want env/repo", cfg.Repository)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"missing url", func(c *Config) { c.APIBaseURL = "" }, ErrMissingAPIBaseURL},
		{"missing repo", func(c *Config) { c.Repository = "" }, ErrMissingRepository},
		{"no tokens", func(c *Config) { c.Tokens = nil }, ErrNoTokens},
		{"negative low water", func(c *Config) { c.LowWaterMark = -1 }, ErrInvalidLowWater},
		{"zero retries", func(c *Config) { c.RetryBudget = 0 }, ErrInvalidRetries},
		{"zero payload cap", func(c *Config) { c.MaxPayloadBytes = 0 }, ErrInvalidPayloadCap},
		{"valid", func(c *Config) {}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.APIBaseURL = "https://api.example.com"
			cfg.Repository = "acme/datasets"
			cfg.Tokens = []string{"tok"}
			tt.mutate(cfg)

			err := cfg.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, b ,,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("splitList = %v, want [a b c]", got)
	}
	if len(splitList("")) != 0 {
		t.Errorf("splitList(\"\") should be empty")
	}
}
