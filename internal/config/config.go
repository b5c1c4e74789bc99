package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all configurable ilovelie settings.
type Config struct {
	Backend       string `json:"backend"`         // "file" | "sqlite" | "memory"
	DataDir       string `json:"data_dir"`        // overrides the XDG data directory
	LogLevel      string `json:"log_level"`       // zerolog level name
	LogFormat     string `json:"log_format"`      // "console" | "json"
	CleanupMaxAge string `json:"cleanup_max_age"` // Go duration, e.g. "720h"
	HistoryFormat string `json:"history_format"`  // "text" | "json" | "yaml"
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		Backend:       "file",
		LogLevel:      "warn",
		LogFormat:     "console",
		CleanupMaxAge: "720h",
		HistoryFormat: "text",
	}
}

// MaxAge parses CleanupMaxAge.
func (c Config) MaxAge() (time.Duration, error) {
	d, err := time.ParseDuration(c.CleanupMaxAge)
	if err != nil {
		return 0, fmt.Errorf("cleanup_max_age: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("cleanup_max_age: negative duration %s", d)
	}
	return d, nil
}

// LoadGlobal reads ~/.config/ilovelie/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "ilovelie", "config.json")
	return loadFile(path, true)
}

// LoadProject reads .ilovelierc in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".ilovelierc", false)
}

// Load merges the global and project files.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, err
	}
	project, err := LoadProject()
	if err != nil {
		return Config{}, err
	}
	return Merge(global, project), nil
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, src := range []*Config{global, project} {
		if src == nil {
			continue
		}
		override(&result.Backend, src.Backend)
		override(&result.DataDir, src.DataDir)
		override(&result.LogLevel, src.LogLevel)
		override(&result.LogFormat, src.LogFormat)
		override(&result.CleanupMaxAge, src.CleanupMaxAge)
		override(&result.HistoryFormat, src.HistoryFormat)
	}
	return result
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
