package config

type Config struct {
	Server    ServerConfig
	Ollama    OllamaConfig
	Groq      GroqConfig
	Provider  ProviderConfig
	Vector    VectorConfig
	Retrieval RetrievalConfig
	Sync      SyncConfig
	Intent    IntentConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
	// Token protects the HTTP API. Empty disables auth (local use only).
	Token string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type GroqConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type ProviderConfig struct {
	// Default names the provider used when a request does not pick one.
	Default string
	// FallbackEnabled lets the suggestion flow retry on the other provider.
	FallbackEnabled bool
}

type VectorConfig struct {
	// Backend selects the chunk index: "sqlite" (default) or "pgvector".
	Backend     string
	PostgresDSN string
	Dim         int
}

type RetrievalConfig struct {
	AccountLimit int
	EntryLimit   int
}

type SyncConfig struct {
	Concurrency int
	Auto        bool
}

type IntentConfig struct {
	// Path to a YAML intents file; empty uses the built-in definitions.
	Path      string
	Threshold float64
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4000,
			MCPPort: 4001,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "qwen2.5",
			EmbedModel: "nomic-embed-text",
		},
		Groq: GroqConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
		},
		Provider: ProviderConfig{
			Default:         "ollama",
			FallbackEnabled: true,
		},
		Vector: VectorConfig{
			Backend: "sqlite",
			Dim:     768,
		},
		Retrieval: RetrievalConfig{
			AccountLimit: 5,
			EntryLimit:   3,
		},
		Sync: SyncConfig{
			Concurrency: 4,
		},
		Intent: IntentConfig{
			Threshold: 0.55,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/asiento/config.json, then applies ASIENTO_* environment
// overrides. Secrets (the groq API key) are env-only and never written to
// the config file.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
