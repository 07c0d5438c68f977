package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/actpanama/guillermo/internal/config"
	"github.com/actpanama/guillermo/internal/corpus"
	"github.com/actpanama/guillermo/internal/indexer"
	"github.com/actpanama/guillermo/internal/ollama"
	"github.com/actpanama/guillermo/internal/retrieval"
	"github.com/actpanama/guillermo/internal/storage"
)

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index [corpus file]",
	Short: "Build the article index from a corpus file",
	Long: `Build the article index from a constitution corpus file (JSON or PDF).

Examples:
  guillermo index constitucion.json
  guillermo index --base-link https://actpanama.org constitucion.pdf`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		path := cfg.Corpus.Path
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no corpus file given and corpus.path is not configured")
		}
		baseLink := cfg.Corpus.BaseLink
		if flagLink, _ := cmd.Flags().GetString("base-link"); flagLink != "" {
			baseLink = flagLink
		}

		ctx := cmd.Context()

		printStep("Loading corpus from %s", path)
		articles, err := corpus.Load(path, baseLink)
		if err != nil {
			return fmt.Errorf("loading corpus: %w", err)
		}
		printStatus("Articles", "%d", len(articles))

		ollamaClient := ollama.New(cfg.Ollama.BaseURL)
		if err := ollama.EnsureReady(ctx, ollamaClient, cfg.Ollama.EmbedModel); err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		vectorStore, err := openVectorStore(ctx, cfg, store)
		if err != nil {
			return err
		}

		embedder := retrieval.NewEmbedder(ollamaClient, cfg.Ollama.EmbedModel)

		printStep("Indexing %d articles with %s", len(articles), cfg.Ollama.EmbedModel)
		report, err := indexer.New(embedder, vectorStore).Index(ctx, articles)
		if err != nil {
			return err
		}

		printSuccess("Indexed %d articles", report.Indexed)
		for _, f := range report.Failures {
			printError("%s: %v", f.ID, f.Err)
		}
		return report.Err()
	},
}

func init() {
	indexCmd.Flags().String("base-link", "", "base URL for official article links")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the constitution",
	Long: `Ask a question about the constitution through the running server.

Examples:
  guillermo ask "¿Qué dice la Constitución sobre el debido proceso?"
  guillermo ask --session 4f1c... "¿Y sobre la detención preventiva?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		sessionID, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/ask", map[string]string{
			"question":   question,
			"session_id": sessionID,
		})
		if err != nil {
			return err
		}

		var result struct {
			Answer    string `json:"answer"`
			SessionID string `json:"session_id"`
			Context   []struct {
				ID         string  `json:"id"`
				Article    int     `json:"article"`
				Score      float32 `json:"score"`
				Rank       int     `json:"rank"`
				SourceLink string  `json:"source_link"`
			} `json:"context"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)
		if len(result.Context) > 0 {
			fmt.Println()
			for _, c := range result.Context {
				fmt.Printf("  %s [%.2f] %s\n",
					styled(ansiCyan, fmt.Sprintf("Artículo %d", c.Article)),
					c.Score,
					c.SourceLink,
				)
			}
		}
		printStatus("Session", "%s", result.SessionID)
		return nil
	},
}

func init() {
	askCmd.Flags().String("session", "", "session ID to continue a conversation")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", styled(ansiBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
