package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ASIENTO_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "ASIENTO_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "server.token", typ: kString, env: "ASIENTO_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "ollama.base_url", typ: kString, env: "ASIENTO_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "ASIENTO_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "ASIENTO_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "groq.base_url", typ: kString, env: "ASIENTO_GROQ_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Groq.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Groq.BaseURL },
	},
	{
		key: "groq.api_key", typ: kString, env: "ASIENTO_GROQ_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Groq.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Groq.APIKey },
	},
	{
		key: "groq.model", typ: kString, env: "ASIENTO_GROQ_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Groq.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Groq.Model },
	},
	{
		key: "provider.default", typ: kString, env: "ASIENTO_PROVIDER_DEFAULT",
		apply:   func(cfg *Config, v any) { cfg.Provider.Default = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Default },
	},
	{
		key: "provider.fallback_enabled", typ: kBool, env: "ASIENTO_PROVIDER_FALLBACK_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Provider.FallbackEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Provider.FallbackEnabled },
	},
	{
		key: "vector.backend", typ: kString, env: "ASIENTO_VECTOR_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Vector.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Vector.Backend },
	},
	{
		key: "vector.postgres_dsn", typ: kString, env: "ASIENTO_VECTOR_POSTGRES_DSN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Vector.PostgresDSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Vector.PostgresDSN },
	},
	{
		key: "vector.dim", typ: kInt, env: "ASIENTO_VECTOR_DIM",
		apply:   func(cfg *Config, v any) { cfg.Vector.Dim = v.(int) },
		extract: func(cfg Config) any { return cfg.Vector.Dim },
	},
	{
		key: "retrieval.account_limit", typ: kInt, env: "ASIENTO_RETRIEVAL_ACCOUNT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.AccountLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.AccountLimit },
	},
	{
		key: "retrieval.entry_limit", typ: kInt, env: "ASIENTO_RETRIEVAL_ENTRY_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.EntryLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.EntryLimit },
	},
	{
		key: "sync.concurrency", typ: kInt, env: "ASIENTO_SYNC_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Sync.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Sync.Concurrency },
	},
	{
		key: "sync.auto", typ: kBool, env: "ASIENTO_SYNC_AUTO",
		apply:   func(cfg *Config, v any) { cfg.Sync.Auto = v.(bool) },
		extract: func(cfg Config) any { return cfg.Sync.Auto },
	},
	{
		key: "intent.path", typ: kString, env: "ASIENTO_INTENT_PATH",
		apply:   func(cfg *Config, v any) { cfg.Intent.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Intent.Path },
	},
	{
		key: "intent.threshold", typ: kFloat, env: "ASIENTO_INTENT_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Intent.Threshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Intent.Threshold },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ASIENTO_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "ASIENTO_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
