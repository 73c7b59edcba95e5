package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Preview.StoredChars != DefaultStoredChars {
		t.Fatalf("unexpected stored chars: %d", cfg.Preview.StoredChars)
	}
	if cfg.Resolve.Attempts != DefaultResolveAttempts {
		t.Fatalf("unexpected resolve attempts: %d", cfg.Resolve.Attempts)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[server]
addr = ":9090"

[slack]
bot_token = "xoxb-test"
signing_secret = "shhh"
allowed_channels = ["C123", "C456"]
dm_copy_enabled = true

[preview]
stored_chars = 500

[redis]
host = "redis.internal"
port = 6380
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Slack.BotToken != "xoxb-test" {
		t.Fatalf("unexpected token: %s", cfg.Slack.BotToken)
	}
	if len(cfg.Slack.AllowedChannels) != 2 {
		t.Fatalf("unexpected allow-list: %v", cfg.Slack.AllowedChannels)
	}
	if !cfg.Slack.DMCopyEnabled {
		t.Fatal("expected dm_copy_enabled=true")
	}
	if cfg.Preview.StoredChars != 500 {
		t.Fatalf("unexpected stored chars: %d", cfg.Preview.StoredChars)
	}
	if got := cfg.Redis.Addr(); got != "redis.internal:6380" {
		t.Fatalf("unexpected redis addr: %s", got)
	}
	// Untouched sections keep defaults.
	if cfg.Preview.ExcerptChars != DefaultExcerptChars {
		t.Fatalf("unexpected excerpt chars: %d", cfg.Preview.ExcerptChars)
	}
}

func TestValidateRequiresCredentials(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty credentials")
	}
	cfg.Slack.BotToken = "xoxb-test"
	cfg.Slack.SigningSecret = "shhh"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
