package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evcraddock/immo/internal/config"
)

func TestConfigInit(t *testing.T) {
	home := isolate(t)

	out, err := executeCommand("config", "init", "--url", "https://abc.supabase.co", "--key", "secret-key")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	path := filepath.Join(home, ".config", "immo", "config.yaml")
	if !strings.Contains(out, path) {
		t.Errorf("output should name %s: %q", path, out)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %o, want 600", perm)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Remote.URL != "https://abc.supabase.co" || cfg.Remote.Key != "secret-key" {
		t.Errorf("remote = %+v", cfg.Remote)
	}
	if cfg.Schema.JoinColumn != "code_postal" {
		t.Errorf("join column = %q", cfg.Schema.JoinColumn)
	}
}

func TestConfigInitPlaceholders(t *testing.T) {
	home := isolate(t)

	out, err := executeCommand("config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "SUPABASE_URL") {
		t.Errorf("output should flag the placeholders: %q", out)
	}

	cfg, err := config.Load(filepath.Join(home, ".config", "immo", "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !errors.Is(cfg.CheckCredentials(), config.ErrMissingCredentials) {
		t.Error("placeholder credentials should be rejected")
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	isolate(t)

	if _, err := executeCommand("config", "init"); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if _, err := executeCommand("config", "init"); err == nil {
		t.Fatal("expected error when the file exists")
	}
	if _, err := executeCommand("config", "init", "--force", "--key", "k"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestConfigPathHonoursFlag(t *testing.T) {
	isolate(t)
	custom := filepath.Join(t.TempDir(), "immo.yaml")

	out, err := executeCommand("config", "path", "--config", custom)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out) != custom {
		t.Errorf("path = %q, want %q", out, custom)
	}
}
