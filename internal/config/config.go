// Package config holds runtime settings of the web gateway, loaded from a YAML file and overridden by flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Addr    string `yaml:"addr"`
	OpsAddr string `yaml:"ops_addr"`
	Dev     bool   `yaml:"dev"`

	// Secret is the master key material for the cookie signature and sealed session tokens.
	Secret      string `yaml:"secret"`
	DatabaseDSN string `yaml:"database_dsn"`

	Session SessionConfig `yaml:"session"`
	Gateway GatewayConfig `yaml:"gateway"`
	Upload  UploadConfig  `yaml:"upload"`
	Files   FilesConfig   `yaml:"files"`
	Limiter LimiterConfig `yaml:"limiter"`
}

// SessionConfig controls session lifetime and the cookie.
type SessionConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	CookieName   string        `yaml:"cookie_name"`
	CookieSecure bool          `yaml:"cookie_secure"`
	JanitorEvery time.Duration `yaml:"janitor_every"`
}

// GatewayConfig describes how the external backend is invoked.
type GatewayConfig struct {
	Interpreter string        `yaml:"interpreter"`
	Script      string        `yaml:"script"`
	WorkDir     string        `yaml:"work_dir"`
	Env         []string      `yaml:"env"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxOutput   int64         `yaml:"max_output"`
	LogPath     string        `yaml:"log_path"`
}

// UploadConfig limits attachment uploads.
type UploadConfig struct {
	MaxSize int64  `yaml:"max_size"`
	TempDir string `yaml:"temp_dir"`
}

// FilesConfig points at the attachment tree written by the backend.
type FilesConfig struct {
	Root string `yaml:"root"`
}

// LimiterConfig tunes login throttling.
type LimiterConfig struct {
	Window   time.Duration `yaml:"window"`
	MaxFails int           `yaml:"max_fails"`
	BlockFor time.Duration `yaml:"block_for"`
}

// Default returns a configuration with every field set to its default.
func Default() Config {
	return Config{
		Addr:    ":8080",
		OpsAddr: ":9090",
		Session: SessionConfig{
			TTL:          24 * time.Hour,
			CookieName:   "nk_session",
			JanitorEvery: time.Minute,
		},
		Gateway: GatewayConfig{
			Interpreter: "python3",
			Script:      "backend/main.py",
			Timeout:     30 * time.Second,
			MaxOutput:   4 << 20,
			LogPath:     "logs/commands.log",
		},
		Upload: UploadConfig{
			MaxSize: 10 << 20,
		},
		Files: FilesConfig{
			Root: "uploads",
		},
		Limiter: LimiterConfig{
			Window:   15 * time.Minute,
			MaxFails: 5,
			BlockFor: 15 * time.Minute,
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr is required")
	case len(c.Secret) < 16:
		return errors.New("secret must be at least 16 bytes")
	case c.Session.TTL <= 0:
		return errors.New("session.ttl must be positive")
	case c.Session.JanitorEvery <= 0:
		return errors.New("session.janitor_every must be positive")
	case c.Session.CookieName == "":
		return errors.New("session.cookie_name is required")
	case c.Gateway.Interpreter == "" || c.Gateway.Script == "":
		return errors.New("gateway.interpreter and gateway.script are required")
	case c.Gateway.Timeout <= 0:
		return errors.New("gateway.timeout must be positive")
	case c.Gateway.MaxOutput <= 0:
		return errors.New("gateway.max_output must be positive")
	case c.Upload.MaxSize <= 0:
		return errors.New("upload.max_size must be positive")
	case c.Files.Root == "":
		return errors.New("files.root is required")
	case c.Limiter.MaxFails <= 0:
		return errors.New("limiter.max_fails must be positive")
	case c.Limiter.Window <= 0 || c.Limiter.BlockFor <= 0:
		return errors.New("limiter.window and limiter.block_for must be positive")
	}
	return nil
}
