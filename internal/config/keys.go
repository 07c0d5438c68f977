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
		key: "server.port", typ: kInt, env: "GUILLERMO_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.admin_token", typ: kString, env: "GUILLERMO_ADMIN_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.AdminToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AdminToken },
	},
	{
		key: "ollama.base_url", typ: kString, env: "GUILLERMO_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.gen_model", typ: kString, env: "GUILLERMO_OLLAMA_GEN_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.GenModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.GenModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "GUILLERMO_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "ollama.timeout_seconds", typ: kInt, env: "GUILLERMO_OLLAMA_TIMEOUT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Ollama.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Ollama.TimeoutSeconds },
	},
	{
		key: "storage.data_dir", typ: kString, env: "GUILLERMO_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.backend", typ: kString, env: "GUILLERMO_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.postgres_url", typ: kString, env: "GUILLERMO_STORAGE_POSTGRES_URL",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Storage.PostgresURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.PostgresURL },
	},
	{
		key: "storage.embedding_dims", typ: kInt, env: "GUILLERMO_STORAGE_EMBEDDING_DIMS",
		apply:   func(cfg *Config, v any) { cfg.Storage.EmbeddingDims = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.EmbeddingDims },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "GUILLERMO_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.min_score", typ: kFloat, env: "GUILLERMO_RETRIEVAL_MIN_SCORE",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.MinScore = v.(float64) },
		extract: func(cfg Config) any { return cfg.Retrieval.MinScore },
	},
	{
		key: "assistant.persona", typ: kString, env: "GUILLERMO_ASSISTANT_PERSONA",
		apply:   func(cfg *Config, v any) { cfg.Assistant.Persona = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.Persona },
	},
	{
		key: "assistant.format", typ: kString, env: "GUILLERMO_ASSISTANT_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Assistant.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.Format },
	},
	{
		key: "assistant.denied_links", typ: kString, env: "GUILLERMO_ASSISTANT_DENIED_LINKS",
		apply:   func(cfg *Config, v any) { cfg.Assistant.DeniedLinks = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.DeniedLinks },
	},
	{
		key: "assistant.alert_endpoint", typ: kString, env: "GUILLERMO_ASSISTANT_ALERT_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Assistant.AlertEndpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.AlertEndpoint },
	},
	{
		key: "assistant.max_turns", typ: kInt, env: "GUILLERMO_ASSISTANT_MAX_TURNS",
		apply:   func(cfg *Config, v any) { cfg.Assistant.MaxTurns = v.(int) },
		extract: func(cfg Config) any { return cfg.Assistant.MaxTurns },
	},
	{
		key: "corpus.path", typ: kString, env: "GUILLERMO_CORPUS_PATH",
		apply:   func(cfg *Config, v any) { cfg.Corpus.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Corpus.Path },
	},
	{
		key: "corpus.base_link", typ: kString, env: "GUILLERMO_CORPUS_BASE_LINK",
		apply:   func(cfg *Config, v any) { cfg.Corpus.BaseLink = v.(string) },
		extract: func(cfg Config) any { return cfg.Corpus.BaseLink },
	},
	{
		key: "log.level", typ: kString, env: "GUILLERMO_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
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
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
