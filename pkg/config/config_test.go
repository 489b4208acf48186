package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseEnvDefaults(t *testing.T) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "localhost:8080" || cfg.BackupInterval != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseEnvNested(t *testing.T) {
	t.Setenv("ROOMS_BACKEND_URL", "http://rooms:9000")
	t.Setenv("ROOMS_SECRET_KEY", "sk_test")
	var cfg App
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Backend.BaseURL != "http://rooms:9000" || cfg.Backend.Secret != "sk_test" {
		t.Fatalf("backend = %+v", cfg.Backend)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("ROOMS_BACKUP_INTERVAL", "soon")
	var cfg Server
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPresetsMissingFileUsesDefaults(t *testing.T) {
	p, err := LoadPresets(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if p.DefaultFontSize() != "12px" || p.DefaultFontFamily() != "Arial" {
		t.Fatalf("defaults = %s %s", p.DefaultFontSize(), p.DefaultFontFamily())
	}
}

func TestLoadPresetsOverrides(t *testing.T) {
	path := writeFile(t, `
font_sizes = ["10px", "20px"]
default_font_size = "20px"
default_font_family = "Georgia"
`)
	p, err := LoadPresets(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.FontSizes) != 2 || p.DefaultFontSize() != "20px" {
		t.Fatalf("sizes = %v default %s", p.FontSizes, p.DefaultFontSize())
	}
	if len(p.FontFamilies) != 15 || p.DefaultFontFamily() != "Georgia" {
		t.Fatalf("families = %v default %s", p.FontFamilies, p.DefaultFontFamily())
	}
}

func TestLoadPresetsRejectsUnknownDefault(t *testing.T) {
	path := writeFile(t, `default_font_size = "13px"`)
	if _, err := LoadPresets(path); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadPresetsRejectsBadToml(t *testing.T) {
	path := writeFile(t, `font_sizes = [`)
	if _, err := LoadPresets(path); err == nil || !strings.Contains(err.Error(), "parse presets") {
		t.Fatalf("error = %v", err)
	}
}
