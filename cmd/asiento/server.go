package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/asiento-ai/asiento/internal/api"
	"github.com/asiento-ai/asiento/internal/chat"
	"github.com/asiento-ai/asiento/internal/config"
	"github.com/asiento-ai/asiento/internal/embedding"
	"github.com/asiento-ai/asiento/internal/engine"
	"github.com/asiento-ai/asiento/internal/intent"
	"github.com/asiento-ai/asiento/internal/ledger"
	"github.com/asiento-ai/asiento/internal/retrieval"
	"github.com/asiento-ai/asiento/internal/scheduler"
	"github.com/asiento-ai/asiento/internal/storage"
	"github.com/asiento-ai/asiento/internal/suggest"
	"github.com/asiento-ai/asiento/internal/syncer"
	"github.com/asiento-ai/asiento/internal/vector"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the asiento server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "asiento version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if cfg.Server.Token == "" {
		printWarning("ASIENTO_SERVER_TOKEN is not set; the API is unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Inference providers. Ollama is always present (it also serves
	// embeddings); groq joins the registry only when an API key is set.
	ollamaEng := engine.NewOllamaEngine(cfg.Ollama.BaseURL)
	providers := []engine.Provider{
		{Name: "ollama", Engine: ollamaEng, ChatModel: cfg.Ollama.ChatModel},
	}
	if cfg.Groq.APIKey != "" {
		providers = append(providers, engine.Provider{
			Name:      "groq",
			Engine:    engine.NewGroqEngine(cfg.Groq.BaseURL, cfg.Groq.APIKey),
			ChatModel: cfg.Groq.Model,
		})
	}
	// The registry default is the first provider; honor the configured one.
	for i, p := range providers {
		if i > 0 && p.Name == cfg.Provider.Default {
			providers[0], providers[i] = providers[i], providers[0]
		}
	}
	registry := engine.NewRegistry(providers...)

	if err := engine.EnsureReady(ctx, ollamaEng, cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
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

	var vectors vector.Store
	switch cfg.Vector.Backend {
	case "pgvector":
		pg, err := vector.NewPgStore(ctx, cfg.Vector.PostgresDSN, cfg.Vector.Dim)
		if err != nil {
			return fmt.Errorf("opening pgvector store: %w", err)
		}
		defer pg.Close()
		vectors = pg
	case "", "sqlite":
		vectors = vector.NewSQLiteStore(store.DB(), cfg.Vector.Dim)
	default:
		return fmt.Errorf("unknown vector backend %q (want sqlite or pgvector)", cfg.Vector.Backend)
	}

	embedder := embedding.NewEngine(embedding.ProviderFunc(func(ctx context.Context, text string) ([]float32, error) {
		return ollamaEng.Embed(ctx, cfg.Ollama.EmbedModel, text)
	}), cfg.Sync.Concurrency)

	// All source-of-truth writes run on the reactor goroutine.
	reactor := scheduler.New(0)
	go reactor.Run(ctx)

	sync := syncer.New(store, vectors, embedder, reactor, cfg.Sync.Concurrency)
	sync.SetAutoSync(cfg.Sync.Auto)

	retriever := retrieval.NewCoordinator(embedder, vectors, cfg.Retrieval.AccountLimit, cfg.Retrieval.EntryLimit)
	suggester := suggest.NewOrchestrator(registry, retriever).WithFallback(cfg.Provider.FallbackEnabled)

	matcher := intent.NewMatcher(embedder, cfg.Intent.Threshold)
	defs, err := intent.LoadDefinitionsFile(cfg.Intent.Path)
	if err != nil {
		return fmt.Errorf("loading intent definitions: %w", err)
	}
	if err := matcher.Index(ctx, defs); err != nil {
		// Chat degrades to free-form answers without the index.
		slog.Warn("intent index unavailable", "error", err)
	} else {
		slog.Info("intent index ready", "intents", matcher.Len())
	}

	chatter := chat.NewOrchestrator(matcher, registry, retriever, chatTools(suggester, retriever, sync))

	deps := api.Deps{
		Store:     store,
		Reactor:   reactor,
		Vectors:   vectors,
		Syncer:    sync,
		Suggester: suggester,
		Chat:      chatter,
		Token:     cfg.Server.Token,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	// MCP server on stdio, so editor/agent clients can drive the same tools.
	mcpSrv := api.NewMCPServer(api.MCPDeps{Deps: deps, Retriever: retriever})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "asiento listening on %s\n", addr)
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

// chatTools binds intent tool names to their executors for the chat flow.
func chatTools(suggester *suggest.Orchestrator, retriever *retrieval.Coordinator, sync *syncer.Syncer) chat.ToolExecutor {
	return chat.ToolExecutorFunc(func(ctx context.Context, tool, message string) (string, error) {
		switch tool {
		case "suggest_entry":
			doc := ledger.DocumentAnalysis{RawText: message}
			sug, err := suggester.Suggest(ctx, doc, ledger.BookGeneral, suggest.Options{})
			if err != nil {
				return "", err
			}
			data, err := json.MarshalIndent(sug, "", "  ")
			if err != nil {
				return "", err
			}
			return string(data), nil
		case "search_accounts":
			rc, err := retriever.Retrieve(ctx, message)
			if err != nil {
				return "", err
			}
			if len(rc.Accounts) == 0 {
				return "No matching accounts found.", nil
			}
			var b strings.Builder
			for _, a := range rc.Accounts {
				fmt.Fprintf(&b, "- %s (score %.3f)\n", a.Text, a.Score)
			}
			return b.String(), nil
		case "sync_status":
			if sync.AutoSync() {
				return "Automatic sync is on; saved entries are indexed as they arrive.", nil
			}
			return "Automatic sync is off; run `asiento sync` to index pending records.", nil
		default:
			return "", fmt.Errorf("unknown tool %q", tool)
		}
	})
}
