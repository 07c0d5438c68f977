package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Ollama    OllamaConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Assistant AssistantConfig
	Corpus    CorpusConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port       int
	AdminToken string
}

type OllamaConfig struct {
	BaseURL    string
	GenModel   string
	EmbedModel string
	// TimeoutSeconds bounds one generation attempt.
	TimeoutSeconds int
}

type StorageConfig struct {
	DataDir string
	// Backend selects the vector store: "sqlite" or "postgres".
	Backend       string
	PostgresURL   string
	EmbeddingDims int
}

type RetrievalConfig struct {
	TopK int
	// MinScore drops hits below this cosine similarity; 0 disables the floor.
	MinScore float64
}

type AssistantConfig struct {
	// Persona overrides the built-in persona text when non-empty.
	Persona string
	// Format is "plain" or "markdown"; empty means plain.
	Format string
	// DeniedLinks is a comma-separated list of URLs the assistant must never
	// mention; empty means the built-in default.
	DeniedLinks   string
	AlertEndpoint string
	MaxTurns      int
}

type CorpusConfig struct {
	// Path points at the corpus source, a JSON or PDF file.
	Path string
	// BaseLink is the official site articles are linked to.
	BaseLink string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Ollama: OllamaConfig{
			BaseURL:        "http://localhost:11434",
			GenModel:       "mistral-nemo",
			EmbedModel:     "nomic-embed-text",
			TimeoutSeconds: 60,
		},
		Storage: StorageConfig{
			DataDir:       defaultDataDir(),
			Backend:       "sqlite",
			EmbeddingDims: 768,
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
		Assistant: AssistantConfig{
			Format:   "plain",
			MaxTurns: 8,
		},
		Corpus: CorpusConfig{
			BaseLink: "https://actpanama.org",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a .env file (if present), the JSON config
// file at $XDG_CONFIG_HOME/guillermo/config.json, and GUILLERMO_* environment
// variables. Environment variables win over the config file.
func Load() (Config, error) {
	// Missing .env is the normal case; only real read failures matter.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.backend is postgres but storage.postgres_url is empty")
		}
	default:
		return fmt.Errorf("unknown storage backend %q (want sqlite or postgres)", c.Storage.Backend)
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval.min_score must be within [0, 1], got %g", c.Retrieval.MinScore)
	}

	if f := c.Assistant.Format; f != "plain" && f != "markdown" {
		return fmt.Errorf("unknown assistant format %q (want plain or markdown)", f)
	}

	return nil
}

// DeniedLinkList splits the comma-separated denied links setting.
func (c AssistantConfig) DeniedLinkList() []string {
	if c.DeniedLinks == "" {
		return nil
	}
	parts := strings.Split(c.DeniedLinks, ",")
	links := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			links = append(links, p)
		}
	}
	return links
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "guillermo-data"
		}
	}
	return filepath.Join(dir, "guillermo")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "guillermo", "config.json")
}
