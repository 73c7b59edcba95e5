package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultRedisHost        = "127.0.0.1"
	DefaultRedisPort        = 6379
	DefaultStoredChars      = 200000
	DefaultExcerptChars     = 120
	DefaultBlockChars       = 2900
	DefaultMaxDownloadBytes = 20 * 1024 * 1024
	DefaultContentTTLHours  = 72
	DefaultResolveAttempts  = 6
	DefaultResolveDelayMS   = 800
)

type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Slack   SlackConfig   `toml:"slack"`
	Redis   RedisConfig   `toml:"redis"`
	Preview PreviewConfig `toml:"preview"`
	Resolve ResolveConfig `toml:"resolve"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type SlackConfig struct {
	BotToken      string `toml:"bot_token" validate:"required"`
	SigningSecret string `toml:"signing_secret" validate:"required"`
	// AllowedChannels restricts processing to the listed channel IDs.
	// Empty means every channel is accepted.
	AllowedChannels []string `toml:"allowed_channels"`
	DMCopyEnabled   bool     `toml:"dm_copy_enabled"`
	Diagnostics     bool     `toml:"diagnostics"`
}

type RedisConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type PreviewConfig struct {
	// StoredChars caps the extracted body kept in the content store.
	StoredChars int `toml:"stored_chars"`
	// ExcerptChars caps the one-line preview excerpt.
	ExcerptChars int `toml:"excerpt_chars"`
	// BlockChars caps a single rendered message block in the full view.
	BlockChars int `toml:"block_chars"`
	// MaxDownloadBytes rejects attachments larger than this before download.
	MaxDownloadBytes int64 `toml:"max_download_bytes"`
	ContentTTLHours  int   `toml:"content_ttl_hours"`
}

type ResolveConfig struct {
	// Attempts bounds the files.info polling loop while waiting for
	// share metadata to appear upstream.
	Attempts int `toml:"attempts"`
	DelayMS  int `toml:"delay_ms"`
	// LockTTLMinutes, when positive, expires abandoned processing locks so
	// a crashed attempt does not strand a file forever. 0 disables expiry.
	LockTTLMinutes int `toml:"lock_ttl_minutes"`
}

func (r RedisConfig) Addr() string {
	host := r.Host
	if host == "" {
		host = DefaultRedisHost
	}
	port := r.Port
	if port == 0 {
		port = DefaultRedisPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Redis: RedisConfig{
			Host: DefaultRedisHost,
			Port: DefaultRedisPort,
		},
		Preview: PreviewConfig{
			StoredChars:      DefaultStoredChars,
			ExcerptChars:     DefaultExcerptChars,
			BlockChars:       DefaultBlockChars,
			MaxDownloadBytes: DefaultMaxDownloadBytes,
			ContentTTLHours:  DefaultContentTTLHours,
		},
		Resolve: ResolveConfig{
			Attempts: DefaultResolveAttempts,
			DelayMS:  DefaultResolveDelayMS,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks that the credentials required to talk to Slack are present.
// Load itself stays permissive so commands like `version` work without a
// config file.
func (c Config) Validate() error {
	if err := validator.New().Struct(c.Slack); err != nil {
		return fmt.Errorf("slack config: %w", err)
	}
	return nil
}
