package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OUTLINE_PROVIDER", "")
	t.Setenv("OUTLINE_LOG_LEVEL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "auto" {
		t.Errorf("Provider = %q, want auto", cfg.Provider)
	}
	if !cfg.UI.ColorEnabled() {
		t.Error("color should default on")
	}
	if cfg.UI.SyntaxThemeOrDefault() != "monokai" {
		t.Errorf("theme = %q", cfg.UI.SyntaxThemeOrDefault())
	}
	if cfg.Log.LevelOrDefault() != zerolog.WarnLevel {
		t.Errorf("level = %v", cfg.Log.LevelOrDefault())
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("OUTLINE_PROVIDER", "")
	t.Setenv("OUTLINE_LOG_LEVEL", "")
	path := writeConfig(t, `
provider = "treesitter"

[lsp]
request_timeout_ms = 2500

[lsp.servers.gopls]
command = "gopls"
args = ["serve"]
file_types = ["go"]
root_markers = ["go.mod"]

[store]
path = "/tmp/outline/snap.db"
retention_days = 7

[log]
level = "debug"

[ui]
syntax_theme = "dracula"
color = false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "treesitter" {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.LSP.RequestTimeout() != 2500*time.Millisecond {
		t.Errorf("RequestTimeout = %v", cfg.LSP.RequestTimeout())
	}
	if cfg.LSP.InitTimeout() != 15*time.Second {
		t.Errorf("InitTimeout = %v", cfg.LSP.InitTimeout())
	}
	opts := cfg.LSP.ManagerOptions()
	gopls, ok := opts.Servers["gopls"]
	if !ok || gopls.Command != "gopls" || gopls.RootMarkers[0] != "go.mod" {
		t.Errorf("gopls server = %+v", gopls)
	}
	if cfg.Store.Retention() != 7*24*time.Hour {
		t.Errorf("Retention = %v", cfg.Store.Retention())
	}
	if p, _ := cfg.Store.PathOrDefault(); p != "/tmp/outline/snap.db" {
		t.Errorf("store path = %q", p)
	}
	if cfg.Log.LevelOrDefault() != zerolog.DebugLevel {
		t.Errorf("level = %v", cfg.Log.LevelOrDefault())
	}
	if cfg.UI.ColorEnabled() {
		t.Error("color = false not honored")
	}
	if cfg.UI.SyntaxThemeOrDefault() != "dracula" {
		t.Errorf("theme = %q", cfg.UI.SyntaxThemeOrDefault())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OUTLINE_PROVIDER", "shell")
	t.Setenv("OUTLINE_LOG_LEVEL", "info")
	path := writeConfig(t, `provider = "lsp"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "shell" {
		t.Errorf("Provider = %q, want env override", cfg.Provider)
	}
	if cfg.Log.LevelOrDefault() != zerolog.InfoLevel {
		t.Errorf("level = %v", cfg.Log.LevelOrDefault())
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	t.Setenv("OUTLINE_PROVIDER", "")
	t.Setenv("OUTLINE_LOG_LEVEL", "")
	path := writeConfig(t, `
provider = "magic"

[lsp.servers.broken]
args = ["x"]

[store]
retention_days = -1

[log]
level = "loud"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		`provider="magic"`,
		"lsp.servers.broken.command is required",
		"lsp.servers.broken.file_types is required",
		"store.retention_days=-1",
		`log.level="loud"`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestUnknownKeys(t *testing.T) {
	path := writeConfig(t, "[ui]\ntheme = \"x\"\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ui.theme") {
		t.Fatalf("err = %v, want unknown key ui.theme", err)
	}
}

func TestBadTOML(t *testing.T) {
	path := writeConfig(t, "provider = \n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Fatalf("err = %v", err)
	}
}

func TestStorePathDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := StoreConfig{}.PathOrDefault()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".config", "outline", "snapshots.db"); p != want {
		t.Errorf("path = %q, want %q", p, want)
	}

	p, err = StoreConfig{Path: "~/snaps.db"}.PathOrDefault()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, "snaps.db"); p != want {
		t.Errorf("path = %q, want %q", p, want)
	}
}
