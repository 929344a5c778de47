// Package config loads the client configuration from an optional YAML file
// and RAGCHAT_-prefixed environment variables. Environment variables override
// the file; double underscores in variable names become key separators, so
// RAGCHAT_BACKEND__BASE_URL maps to backend.base_url.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Backend Backend `koanf:"backend"`
	Chat    Chat    `koanf:"chat"`
	History History `koanf:"history"`
	Stub    Stub    `koanf:"stub"`
}

// Backend locates the RAG chat backend.
type Backend struct {
	BaseURL string `koanf:"base_url"`
	ChatURL string `koanf:"chat_url"`
	AskURL  string `koanf:"ask_url"`
}

// Chat configures the exchange mode and retrieval overrides.
type Chat struct {
	Mode   string `koanf:"mode"` // chat or ask
	Stream bool   `koanf:"stream"`

	RetrievalMode    string   `koanf:"retrieval_mode"`
	Top              int      `koanf:"top"`
	Temperature      *float32 `koanf:"temperature"`
	PromptTemplate   string   `koanf:"prompt_template"`
	ExcludeCategory  string   `koanf:"exclude_category"`
	SemanticRanker   bool     `koanf:"semantic_ranker"`
	SemanticCaptions bool     `koanf:"semantic_captions"`
	SuggestFollowup  bool     `koanf:"suggest_followup_questions"`
}

// History configures the local exchange archive.
type History struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Stub configures the development stub server.
type Stub struct {
	Port int `koanf:"port"`
}

// Load reads config.yaml when present, then layers RAGCHAT_ environment
// variables on top, then fills defaults.
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit file path. A missing file is not an
// error; the configuration then comes from the environment and defaults.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("RAGCHAT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "RAGCHAT_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("backend.base_url") {
		k.Set("backend.base_url", "http://localhost:8080")
	}
	if !k.Exists("backend.chat_url") {
		k.Set("backend.chat_url", "/chat")
	}
	if !k.Exists("backend.ask_url") {
		k.Set("backend.ask_url", "/ask")
	}
	if !k.Exists("chat.mode") {
		k.Set("chat.mode", "chat")
	}
	if !k.Exists("chat.stream") {
		k.Set("chat.stream", true)
	}
	if !k.Exists("history.path") {
		k.Set("history.path", "ragchat-history.db")
	}
	if !k.Exists("stub.port") {
		k.Set("stub.port", 8080)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.Chat.Mode != "chat" && cfg.Chat.Mode != "ask" {
		return nil, fmt.Errorf("chat.mode must be %q or %q, got %q", "chat", "ask", cfg.Chat.Mode)
	}

	return &cfg, nil
}
