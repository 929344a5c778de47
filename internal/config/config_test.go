package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		if cfg.Backend.BaseURL != "http://localhost:8080" {
			t.Errorf("base_url = %q", cfg.Backend.BaseURL)
		}
		if cfg.Backend.ChatURL != "/chat" || cfg.Backend.AskURL != "/ask" {
			t.Errorf("endpoint paths = %q, %q", cfg.Backend.ChatURL, cfg.Backend.AskURL)
		}
		if cfg.Chat.Mode != "chat" {
			t.Errorf("mode = %q, want chat", cfg.Chat.Mode)
		}
		if !cfg.Chat.Stream {
			t.Error("stream default = false, want true")
		}
		if cfg.Stub.Port != 8080 {
			t.Errorf("stub port = %d, want 8080", cfg.Stub.Port)
		}
	})

	t.Run("env var override", func(t *testing.T) {
		t.Setenv("RAGCHAT_BACKEND__BASE_URL", "https://rag.example.com")
		t.Setenv("RAGCHAT_CHAT__MODE", "ask")
		t.Setenv("RAGCHAT_STUB__PORT", "9000")

		cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		if cfg.Backend.BaseURL != "https://rag.example.com" {
			t.Errorf("base_url = %q", cfg.Backend.BaseURL)
		}
		if cfg.Chat.Mode != "ask" {
			t.Errorf("mode = %q, want ask", cfg.Chat.Mode)
		}
		if cfg.Stub.Port != 9000 {
			t.Errorf("stub port = %d, want 9000", cfg.Stub.Port)
		}
	})

	t.Run("yaml file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		data := `backend:
  base_url: https://file.example.com
chat:
  mode: ask
  stream: false
  top: 5
history:
  enabled: true
  path: /tmp/history.db
`
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		if cfg.Backend.BaseURL != "https://file.example.com" {
			t.Errorf("base_url = %q", cfg.Backend.BaseURL)
		}
		if cfg.Chat.Stream {
			t.Error("stream = true, want false from file")
		}
		if cfg.Chat.Top != 5 {
			t.Errorf("top = %d, want 5", cfg.Chat.Top)
		}
		if !cfg.History.Enabled || cfg.History.Path != "/tmp/history.db" {
			t.Errorf("history = %+v", cfg.History)
		}
	})

	t.Run("env overrides file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(path, []byte("backend:\n  base_url: https://file.example.com\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("RAGCHAT_BACKEND__BASE_URL", "https://env.example.com")

		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if cfg.Backend.BaseURL != "https://env.example.com" {
			t.Errorf("base_url = %q, want env value", cfg.Backend.BaseURL)
		}
	})

	t.Run("invalid mode rejected", func(t *testing.T) {
		t.Setenv("RAGCHAT_CHAT__MODE", "broadcast")

		if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("LoadFile() accepted invalid mode")
		}
	})
}
