package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "Polling"}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Storage.Backend != StorageFile || cfg.Storage.Dir != "." {
		t.Fatalf("storage defaults = %+v", cfg.Storage)
	}
}

func TestNormalizeRejectsUnknownBackend(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t"}, Storage: StorageConfig{Backend: "redis"}}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNormalizeWebhookRequiresURL(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected webhook validation error")
	}
}

func TestLoadIntoEmbeddedCore(t *testing.T) {
	type botConfig struct {
		Core  Config `yaml:",inline"`
		Extra string `yaml:"extra"`
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "telegram:\n  token: abc\nstorage:\n  backend: POSTGRES\nextra: hello\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var cfg botConfig
	if err := LoadInto(path, &cfg, &cfg.Core); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Extra != "hello" {
		t.Fatalf("extra = %q", cfg.Extra)
	}
	if cfg.Core.Storage.Backend != StoragePostgres {
		t.Fatalf("backend = %q", cfg.Core.Storage.Backend)
	}
}
