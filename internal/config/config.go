// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/xonecas/outline/internal/highlight"
	"github.com/xonecas/outline/internal/lsp"
	"github.com/xonecas/outline/internal/provider"
)

// FileName is the config file looked up in the data directory.
const FileName = "outline.toml"

// Config is the root configuration structure.
type Config struct {
	Provider string      `toml:"provider"`
	LSP      LSPConfig   `toml:"lsp"`
	Store    StoreConfig `toml:"store"`
	Log      LogConfig   `toml:"log"`
	UI       UIConfig    `toml:"ui"`
}

// LSPConfig holds language server settings.
type LSPConfig struct {
	RequestTimeoutMS int                     `toml:"request_timeout_ms"`
	InitTimeoutMS    int                     `toml:"init_timeout_ms"`
	Servers          map[string]ServerConfig `toml:"servers"`
}

// ServerConfig overrides or adds one language server.
type ServerConfig struct {
	Command     string            `toml:"command"`
	Args        []string          `toml:"args"`
	FileTypes   []string          `toml:"file_types"`
	RootMarkers []string          `toml:"root_markers"`
	Env         map[string]string `toml:"env"`
}

// StoreConfig holds snapshot store settings.
type StoreConfig struct {
	// Path is the SQLite database. Defaults to <datadir>/snapshots.db.
	Path          string `toml:"path"`
	RetentionDays int    `toml:"retention_days"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// UIConfig holds terminal output settings.
type UIConfig struct {
	// SyntaxTheme is the Chroma theme for revealed snippets. Outline colors
	// are derived from it via highlight.ThemePalette.
	SyntaxTheme string `toml:"syntax_theme"`
	// Color enables ANSI styling. Nil means on.
	Color *bool `toml:"color"`
}

// SyntaxThemeOrDefault returns the configured syntax theme or the highlight default.
func (u UIConfig) SyntaxThemeOrDefault() string {
	if u.SyntaxTheme == "" {
		return highlight.DefaultTheme
	}
	return u.SyntaxTheme
}

// ColorEnabled reports whether styled output is on.
func (u UIConfig) ColorEnabled() bool {
	return u.Color == nil || *u.Color
}

// RequestTimeout returns the per-request timeout, 10s if unset.
func (c LSPConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// InitTimeout returns the server initialize timeout, 15s if unset.
func (c LSPConfig) InitTimeout() time.Duration {
	if c.InitTimeoutMS <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.InitTimeoutMS) * time.Millisecond
}

// ManagerOptions converts the section into lsp.Options.
func (c LSPConfig) ManagerOptions() lsp.Options {
	servers := make(map[string]lsp.ServerConfig, len(c.Servers))
	for name, s := range c.Servers {
		servers[name] = lsp.ServerConfig{
			Command:     s.Command,
			Args:        s.Args,
			FileTypes:   s.FileTypes,
			RootMarkers: s.RootMarkers,
			Env:         s.Env,
		}
	}
	return lsp.Options{
		Servers:        servers,
		InitTimeout:    c.InitTimeout(),
		RequestTimeout: c.RequestTimeout(),
	}
}

// Retention returns how long snapshots are kept. Zero keeps everything.
func (s StoreConfig) Retention() time.Duration {
	if s.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// PathOrDefault returns the configured database path or <datadir>/snapshots.db.
func (s StoreConfig) PathOrDefault() (string, error) {
	if s.Path != "" {
		return expandHome(s.Path)
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "snapshots.db"), nil
}

// LevelOrDefault parses the log level, "warn" if unset.
func (l LogConfig) LevelOrDefault() zerolog.Level {
	if l.Level == "" {
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil {
		return zerolog.WarnLevel
	}
	return lvl
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Provider: provider.Auto,
		LSP:      LSPConfig{Servers: make(map[string]ServerConfig)},
	}
}

// Load reads configuration from a TOML file and applies environment variable
// overrides. An empty path means <datadir>/outline.toml. A missing file
// yields the defaults unless the path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		dir, err := DataDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, FileName)
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if cfg.Provider == "" {
		cfg.Provider = provider.Auto
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var providerNames = []string{
	provider.Auto, provider.File, provider.TreeSitter,
	provider.Shell, provider.LSP, provider.Snapshot,
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(providerNames, c.Provider) {
		errs = append(errs, fmt.Errorf("provider=%q must be one of %s", c.Provider, strings.Join(providerNames, ", ")))
	}
	if c.LSP.RequestTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("lsp.request_timeout_ms=%d must not be negative", c.LSP.RequestTimeoutMS))
	}
	if c.LSP.InitTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("lsp.init_timeout_ms=%d must not be negative", c.LSP.InitTimeoutMS))
	}
	for name, s := range c.LSP.Servers {
		if s.Command == "" {
			errs = append(errs, fmt.Errorf("lsp.servers.%s.command is required", name))
		}
		if len(s.FileTypes) == 0 {
			errs = append(errs, fmt.Errorf("lsp.servers.%s.file_types is required", name))
		}
	}
	if c.Store.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("store.retention_days=%d must not be negative", c.Store.RetentionDays))
	}
	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
			errs = append(errs, fmt.Errorf("log.level=%q is invalid: %v", c.Log.Level, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	for _, setter := range []struct {
		env   string
		apply func(string)
	}{
		{"OUTLINE_PROVIDER", func(v string) {
			if v != "" {
				cfg.Provider = v
			}
		}},
		{"OUTLINE_LOG_LEVEL", func(v string) {
			if v != "" {
				cfg.Log.Level = v
			}
		}},
		{"OUTLINE_STORE_PATH", func(v string) {
			if v != "" {
				cfg.Store.Path = v
			}
		}},
	} {
		setter.apply(os.Getenv(setter.env))
	}
}

// DataDir returns the path to the outline data directory (~/.config/outline).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "outline"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	return dir, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
