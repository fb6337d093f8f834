package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
	}
}

func TestDefaults(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "config.json") // does not exist

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Server.MCPPort != 4001 {
		t.Errorf("Server.MCPPort = %d, want 4001", cfg.Server.MCPPort)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.ChatModel != "qwen2.5" {
		t.Errorf("Ollama.ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("Ollama.EmbedModel = %q", cfg.Ollama.EmbedModel)
	}
	if cfg.Groq.Model != "llama-3.3-70b-versatile" {
		t.Errorf("Groq.Model = %q", cfg.Groq.Model)
	}
	if cfg.Provider.Default != "ollama" {
		t.Errorf("Provider.Default = %q", cfg.Provider.Default)
	}
	if !cfg.Provider.FallbackEnabled {
		t.Error("Provider.FallbackEnabled = false, want true")
	}
	if cfg.Vector.Backend != "sqlite" {
		t.Errorf("Vector.Backend = %q", cfg.Vector.Backend)
	}
	if cfg.Vector.Dim != 768 {
		t.Errorf("Vector.Dim = %d, want 768", cfg.Vector.Dim)
	}
	if cfg.Retrieval.AccountLimit != 5 || cfg.Retrieval.EntryLimit != 3 {
		t.Errorf("Retrieval limits = %d/%d, want 5/3", cfg.Retrieval.AccountLimit, cfg.Retrieval.EntryLimit)
	}
	if cfg.Sync.Concurrency != 4 {
		t.Errorf("Sync.Concurrency = %d, want 4", cfg.Sync.Concurrency)
	}
	if cfg.Intent.Threshold != 0.55 {
		t.Errorf("Intent.Threshold = %v, want 0.55", cfg.Intent.Threshold)
	}
}

func TestFileParsing(t *testing.T) {
	clearEnvOverrides(t)
	path := writeTempConfig(t, `{
  "server.port": 5000,
  "server.mcp_port": 5001,
  "ollama.base_url": "http://custom:11434",
  "ollama.chat_model": "custom-chat",
  "ollama.embed_model": "custom-embed",
  "groq.model": "llama-3.1-8b-instant",
  "provider.default": "groq",
  "provider.fallback_enabled": "false",
  "vector.backend": "pgvector",
  "vector.dim": 1024,
  "retrieval.account_limit": 8,
  "sync.auto": "true",
  "intent.threshold": "0.7",
  "storage.data_dir": "/tmp/asiento-test"
}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Server.MCPPort != 5001 {
		t.Errorf("Server.MCPPort = %d, want 5001", cfg.Server.MCPPort)
	}
	if cfg.Ollama.BaseURL != "http://custom:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.ChatModel != "custom-chat" {
		t.Errorf("Ollama.ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Groq.Model != "llama-3.1-8b-instant" {
		t.Errorf("Groq.Model = %q", cfg.Groq.Model)
	}
	if cfg.Provider.Default != "groq" {
		t.Errorf("Provider.Default = %q", cfg.Provider.Default)
	}
	if cfg.Provider.FallbackEnabled {
		t.Error("Provider.FallbackEnabled = true, want false")
	}
	if cfg.Vector.Backend != "pgvector" {
		t.Errorf("Vector.Backend = %q", cfg.Vector.Backend)
	}
	if cfg.Vector.Dim != 1024 {
		t.Errorf("Vector.Dim = %d, want 1024", cfg.Vector.Dim)
	}
	if cfg.Retrieval.AccountLimit != 8 {
		t.Errorf("Retrieval.AccountLimit = %d, want 8", cfg.Retrieval.AccountLimit)
	}
	if !cfg.Sync.Auto {
		t.Error("Sync.Auto = false, want true")
	}
	if cfg.Intent.Threshold != 0.7 {
		t.Errorf("Intent.Threshold = %v, want 0.7", cfg.Intent.Threshold)
	}
	if cfg.Storage.DataDir != "/tmp/asiento-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnvOverrides(t)
	path := writeTempConfig(t, `{"ollama.chat_model": "file-model"}`)

	t.Setenv("ASIENTO_OLLAMA_CHAT_MODEL", "env-model")
	t.Setenv("ASIENTO_GROQ_API_KEY", "gsk_test")
	t.Setenv("ASIENTO_VECTOR_DIM", "384")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ollama.ChatModel != "env-model" {
		t.Errorf("Ollama.ChatModel = %q, want %q", cfg.Ollama.ChatModel, "env-model")
	}
	if cfg.Groq.APIKey != "gsk_test" {
		t.Errorf("Groq.APIKey = %q, want %q", cfg.Groq.APIKey, "gsk_test")
	}
	if cfg.Vector.Dim != 384 {
		t.Errorf("Vector.Dim = %d, want 384", cfg.Vector.Dim)
	}
}

func TestSecretsNotReadFromFile(t *testing.T) {
	clearEnvOverrides(t)
	path := writeTempConfig(t, `{"groq.api_key": "leaked", "server.token": "leaked"}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Groq.APIKey != "" {
		t.Errorf("Groq.APIKey = %q, want empty (secrets are env-only)", cfg.Groq.APIKey)
	}
	if cfg.Server.Token != "" {
		t.Errorf("Server.Token = %q, want empty (secrets are env-only)", cfg.Server.Token)
	}
}

func TestSetKey(t *testing.T) {
	if err := SetKey("no.such.key", "x"); err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("SetKey unknown key error = %v", err)
	}
	if err := SetKey("groq.api_key", "x"); err == nil || !strings.Contains(err.Error(), "cannot set secret") {
		t.Errorf("SetKey secret error = %v", err)
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	b := newFileBackend(path)

	if err := b.SetInt("server.port", 9000); err != nil {
		t.Fatal(err)
	}
	if err := b.SetString("provider.default", "groq"); err != nil {
		t.Fatal(err)
	}

	// Re-open from disk.
	b2 := newFileBackend(path)
	port, ok, err := b2.GetInt("server.port")
	if err != nil || !ok || port != 9000 {
		t.Errorf("GetInt = %d, %v, %v; want 9000, true, nil", port, ok, err)
	}
	name, ok, err := b2.GetString("provider.default")
	if err != nil || !ok || name != "groq" {
		t.Errorf("GetString = %q, %v, %v; want groq, true, nil", name, ok, err)
	}

	if err := b2.Delete("server.port"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := b2.GetInt("server.port"); ok {
		t.Error("Delete did not remove server.port")
	}
}

func TestValidKeysExcludesSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "groq.api_key" || k == "server.token" || k == "vector.postgres_dsn" {
			t.Errorf("ValidKeys includes secret %q", k)
		}
	}
	cfg := defaults()
	for _, info := range ShowAll(cfg) {
		if info.Key == "groq.api_key" {
			t.Error("ShowAll includes secret groq.api_key")
		}
	}
}
