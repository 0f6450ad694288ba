package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.tiendo/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	// UndoWindowSeconds is the countdown length for undoing a conversation
	// deletion. 0 means the built-in default. Product has floated both 5
	// and 10 here; whatever ships, this is the only place it lives.
	UndoWindowSeconds int `toml:"undo_window_seconds"`
}

// UndoWindow returns the configured undo window as a duration, or 0 when
// unset so callers fall back to their default.
func (c *Config) UndoWindow() time.Duration {
	if c == nil || c.UndoWindowSeconds <= 0 {
		return 0
	}
	return time.Duration(c.UndoWindowSeconds) * time.Second
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
