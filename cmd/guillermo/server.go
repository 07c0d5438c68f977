package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/actpanama/guillermo/internal/alert"
	"github.com/actpanama/guillermo/internal/api"
	"github.com/actpanama/guillermo/internal/composer"
	"github.com/actpanama/guillermo/internal/config"
	"github.com/actpanama/guillermo/internal/corpus"
	"github.com/actpanama/guillermo/internal/generation"
	"github.com/actpanama/guillermo/internal/guard"
	"github.com/actpanama/guillermo/internal/indexer"
	"github.com/actpanama/guillermo/internal/ollama"
	"github.com/actpanama/guillermo/internal/pipeline"
	"github.com/actpanama/guillermo/internal/retrieval"
	"github.com/actpanama/guillermo/internal/session"
	"github.com/actpanama/guillermo/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the guillermo server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running guillermo server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show guillermo system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "guillermo.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "guillermo version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to start twice. The health probe catches a live server even when
	// the PID file is stale.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("guillermo is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("guillermo is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	if err := ollama.EnsureReady(ctx, ollamaClient, cfg.Ollama.GenModel, cfg.Ollama.EmbedModel); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	vectorStore, err := openVectorStore(ctx, cfg, store)
	if err != nil {
		return err
	}

	embedder := retrieval.NewEmbedder(ollamaClient, cfg.Ollama.EmbedModel)
	retriever := retrieval.NewRetriever(embedder, vectorStore, float32(cfg.Retrieval.MinScore))
	if err := retriever.VerifyScheme(ctx); err != nil {
		return err
	}

	comp := composer.New(profileFromConfig(cfg.Assistant))
	sanitizer := guard.NewSanitizer(comp.Profile().DeniedLinks)
	sessions := session.NewStore(cfg.Assistant.MaxTurns)
	gateway := generation.NewGateway(ollamaClient, cfg.Ollama.GenModel, time.Duration(cfg.Ollama.TimeoutSeconds)*time.Second)
	notifier := alert.NewWebhook(cfg.Assistant.AlertEndpoint)

	answerer := pipeline.NewAnswerer(retriever, comp, gateway, sanitizer, sessions, store, notifier, cfg.Retrieval.TopK)

	var reindex api.Reindexer
	if cfg.Corpus.Path != "" {
		corpusPath, baseLink := cfg.Corpus.Path, cfg.Corpus.BaseLink
		ix := indexer.New(embedder, vectorStore)
		reindex = func(rctx context.Context) (indexer.Report, error) {
			articles, err := corpus.Load(corpusPath, baseLink)
			if err != nil {
				return indexer.Report{}, fmt.Errorf("loading corpus: %w", err)
			}
			return ix.Index(rctx, articles)
		}
	}

	adminToken := cfg.Server.AdminToken
	if adminToken == "" {
		adminToken = uuid.NewString()
		slog.Warn("no admin token configured, generated a one-off token", "token", adminToken)
	}

	handler := api.NewHandler(api.Deps{
		Answerer: answerer,
		Vectors:  vectorStore,
		Store:    store,
		Reindex:  reindex,
		Token:    adminToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP over stdio, so agent hosts can drive the assistant directly.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Answerer:  answerer,
		Retriever: retriever,
		TopK:      cfg.Retrieval.TopK,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "guillermo listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openVectorStore(ctx context.Context, cfg config.Config, store *storage.Store) (retrieval.VectorStore, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		vs, err := retrieval.NewPgStore(ctx, cfg.Storage.PostgresURL, cfg.Storage.EmbeddingDims)
		if err != nil {
			return nil, fmt.Errorf("opening pgvector store: %w", err)
		}
		return vs, nil
	default:
		return retrieval.NewSQLiteStore(store.DB()), nil
	}
}

func profileFromConfig(a config.AssistantConfig) composer.Profile {
	p := composer.DefaultProfile()
	if a.Persona != "" {
		p.PersonaText = a.Persona
	}
	if f := composer.OutputFormat(a.Format); f.Valid() {
		p.Format = f
	}
	if links := a.DeniedLinkList(); links != nil {
		p.DeniedLinks = links
	}
	return p
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("guillermo is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop guillermo (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to guillermo (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Gen model", "%s", cfg.Ollama.GenModel)
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Vector backend", "%s", cfg.Storage.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
