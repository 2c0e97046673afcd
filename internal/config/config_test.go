package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// newFlags returns a parsed flag set rooted in an empty temp directory so the
// default config and .env files are never picked up from the working tree.
func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	dir := t.TempDir()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	// Value.Set leaves Changed false, so these still act as optional defaults.
	for name, file := range map[string]string{"config": "absent.yaml", "env-file": "absent.env"} {
		if f := fs.Lookup(name); !f.Changed {
			f.Value.Set(filepath.Join(dir, file))
		}
	}
	return fs
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	want := Default()
	if cfg.API != want.API || cfg.Cache != want.Cache || cfg.Log != want.Log || cfg.Import != want.Import {
		t.Errorf("Expected defaults %+v, but got %+v", want, *cfg)
	}
	if !errors.Is(cfg.RequireUser(), ErrNoUser) {
		t.Error("Expected RequireUser to fail without a user id")
	}
}

func TestLoadPrecedence(t *testing.T) {
	yamlPath := writeFile(t, "knolstudy.yaml", `
api:
  base_url: http://file.example:8000
  timeout: 5s
user:
  id: 3
log:
  level: debug
import:
  workers: 2
`)
	envPath := writeFile(t, ".env", "KNOLSTUDY_USER_ID=4\nKNOLSTUDY_LOG_FORMAT=json\n")
	t.Setenv("KNOLSTUDY_API_TIMEOUT", "30s")
	t.Setenv("KNOLSTUDY_LOG_FORMAT", "text")
	t.Cleanup(func() { os.Unsetenv("KNOLSTUDY_USER_ID") })

	cfg, err := Load(newFlags(t, "--config", yamlPath, "--env-file", envPath, "--base-url", "http://flag.example:9000"))
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	testCases := []struct {
		name string
		got  any
		want any
	}{
		{"flag beats file", cfg.API.BaseURL, "http://flag.example:9000"},
		{"env beats file", cfg.API.Timeout, 30 * time.Second},
		{".env beats file", cfg.User.ID, int64(4)},
		{"env beats .env", cfg.Log.Format, "text"},
		{"file beats default", cfg.Log.Level, "debug"},
		{"file sets workers", cfg.Import.Workers, 2},
		{"default kept", cfg.Cache.Path, "knolstudy.db"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("Expected %v, but got %v", tc.want, tc.got)
			}
		})
	}
	if err := cfg.RequireUser(); err != nil {
		t.Errorf("RequireUser() returned an unexpected error: %v", err)
	}
}

func TestLoadUnchangedFlagsDoNotOverrideEnv(t *testing.T) {
	t.Setenv("KNOLSTUDY_CACHE_PATH", "/tmp/other.db")
	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cfg.Cache.Path != "/tmp/other.db" {
		t.Errorf("Expected cache path from env, but got %q", cfg.Cache.Path)
	}
}

func TestLoadEmptyCacheDisablesIt(t *testing.T) {
	cfg, err := Load(newFlags(t, "--cache="))
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cfg.Cache.Path != "" {
		t.Errorf("Expected an empty cache path, but got %q", cfg.Cache.Path)
	}
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"bad url", []string{"--base-url", "not a url"}},
		{"negative user", []string{"--user=-1"}},
		{"bad log level", []string{"--log-level", "loud"}},
		{"bad log format", []string{"--log-format", "xml"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(newFlags(t, tc.args...)); err == nil {
				t.Error("Expected an error, but got nil")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	if err == nil {
		t.Error("Expected an error for a missing config file named on the command line")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "card_id", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, but got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", lines[0], err)
	}
	if entry["msg"] != "shown" || entry["card_id"] != float64(7) {
		t.Errorf("Unexpected log entry: %v", entry)
	}

	buf.Reset()
	NewLogger(LogConfig{Level: "bogus", Format: "text"}, &buf).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected an unknown level to fall back to info, got %q", buf.String())
	}
}
