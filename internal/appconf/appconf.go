// Package appconf loads codexmate's own settings (not codex's config.toml).
//
// Sources, later overriding earlier: defaults, YAML file, CODEXMATE_*
// environment variables, command-line flags.
package appconf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"codexmate/internal/paths"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "CODEXMATE_"

// Config is the tool configuration.
type Config struct {
	// Home is the codex base directory holding config.toml and auth.json.
	Home string `koanf:"home"`
	Log  struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
	// Backup copies config.toml aside before raw overwrites.
	Backup bool `koanf:"backup"`
}

// Layout resolves the file layout for the configured home.
func (c *Config) Layout() paths.Layout { return paths.For(c.Home) }

func defaults() map[string]any {
	return map[string]any{
		"home": "",
		"log": map[string]any{
			"level":  "warn",
			"format": "text",
		},
		"backup": false,
	}
}

// Options controls one Load call.
type Options struct {
	// File is an explicit config file; it must exist when set.
	File string
	// Overrides are flag values keyed like "log.level"; empty strings are skipped.
	Overrides map[string]string
}

// Load resolves the configuration. Without an explicit file the default
// location under the resolved home is read when present.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	envK := koanf.New(".")
	if err := envK.Load(env.Provider(EnvPrefix, ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	path := opts.File
	if path == "" {
		home := opts.Overrides["home"]
		if home == "" {
			home = envK.String("home")
		}
		candidate := paths.For(home).ToolConfig
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Merge(envK); err != nil {
		return nil, fmt.Errorf("merge env: %w", err)
	}
	for key, v := range opts.Overrides {
		if v == "" {
			continue
		}
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CODEXMATE_LOG_LEVEL -> log.level
func transformEnv(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "_", ".")
}

// Validate rejects unknown log levels and formats.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}
	return nil
}

var errReadBytes = errors.New("appconf: map provider only supports Read")

// mapProvider feeds an in-memory map to koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error)     { return nil, errReadBytes }
func (m mapProvider) Read() (map[string]any, error) { return m, nil }
