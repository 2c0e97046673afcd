// Package config loads knolstudy's settings from defaults, a YAML file, a
// .env file, KNOLSTUDY_* environment variables and command-line flags, in
// that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "KNOLSTUDY_"

	DefaultConfigFile = "knolstudy.yaml"
	DefaultEnvFile    = ".env"
)

// ErrNoUser is returned by RequireUser when no user id is configured.
var ErrNoUser = errors.New("no user configured: set user.id, KNOLSTUDY_USER_ID or --user")

type Config struct {
	API    APIConfig    `koanf:"api"`
	User   UserConfig   `koanf:"user"`
	Cache  CacheConfig  `koanf:"cache"`
	Log    LogConfig    `koanf:"log"`
	Import ImportConfig `koanf:"import"`
}

type APIConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

type UserConfig struct {
	ID int64 `koanf:"id" validate:"gte=0"`
}

// CacheConfig points at the local SQLite progress cache. An empty path
// disables it.
type CacheConfig struct {
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type ImportConfig struct {
	Workers int     `koanf:"workers" validate:"gte=1,lte=32"`
	Rate    float64 `koanf:"rate" validate:"gt=0"`
	RepoDir string  `koanf:"repo_dir" validate:"required"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		API:    APIConfig{BaseURL: "http://127.0.0.1:8000", Timeout: 15 * time.Second},
		Cache:  CacheConfig{Path: "knolstudy.db"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Import: ImportConfig{Workers: 4, Rate: 10, RepoDir: "repos"},
	}
}

// RequireUser fails unless a user id has been configured.
func (c *Config) RequireUser() error {
	if c.User.ID <= 0 {
		return ErrNoUser
	}
	return nil
}

// flagKeys maps flag names to config keys. Commands may register any of the
// flags beyond those added by RegisterFlags.
var flagKeys = map[string]string{
	"base-url":   "api.base_url",
	"timeout":    "api.timeout",
	"user":       "user.id",
	"cache":      "cache.path",
	"log-level":  "log.level",
	"log-format": "log.format",
	"workers":    "import.workers",
	"rate":       "import.rate",
	"repo-dir":   "import.repo_dir",
}

// RegisterFlags adds the global flags understood by Load to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("config", DefaultConfigFile, "path to a YAML config file")
	flags.String("env-file", DefaultEnvFile, "path to a .env file")
	flags.String("base-url", d.API.BaseURL, "backend base URL")
	flags.Duration("timeout", d.API.Timeout, "backend request timeout")
	flags.Int64("user", 0, "id of the user to study as")
	flags.String("cache", d.Cache.Path, "path to the local progress cache; empty disables it")
	flags.String("log-level", d.Log.Level, "log level: debug, info, warn or error")
	flags.String("log-format", d.Log.Format, "log format: text or json")
}

// Load builds the configuration. flags must already be parsed and carry the
// flags from RegisterFlags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, ok := optionalFile(flags, "config", DefaultConfigFile); ok {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// godotenv never overrides variables that are already set, so the real
	// environment wins over the .env file.
	if path, ok := optionalFile(flags, "env-file", DefaultEnvFile); ok {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envKey turns KNOLSTUDY_API_BASE_URL into api.base_url. The first
// underscore separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// flagKey only passes flags the user actually set, so flag defaults never
// mask values from the file or environment.
func flagKey(f *pflag.Flag) (string, interface{}) {
	key, ok := flagKeys[f.Name]
	if !ok || !f.Changed {
		return "", nil
	}
	return key, f.Value.String()
}

// optionalFile resolves a file flag. A file named on the command line must be
// loaded; the default is only loaded when it exists.
func optionalFile(flags *pflag.FlagSet, name, fallback string) (string, bool) {
	path, changed := fallback, false
	if f := flags.Lookup(name); f != nil {
		path, changed = f.Value.String(), f.Changed
	}
	if path == "" {
		return "", false
	}
	if changed {
		return path, true
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", false
	}
	return path, true
}
