package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/asiento-ai/asiento/internal/config"
	"github.com/asiento-ai/asiento/internal/docext"
	"github.com/asiento-ai/asiento/internal/embedding"
	"github.com/asiento-ai/asiento/internal/engine"
	"github.com/asiento-ai/asiento/internal/intent"
)

// --- sync ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index unsynced accounts and entries into the vector store",
	Long: `Index unsynced accounts and journal entries into the vector store.

Examples:
  asiento sync
  asiento sync --accounts
  asiento sync --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		accountsOnly, _ := cmd.Flags().GetBool("accounts")
		entriesOnly, _ := cmd.Flags().GetBool("entries")
		force, _ := cmd.Flags().GetBool("force")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		type syncResult struct {
			Processed int              `json:"processed"`
			Succeeded int              `json:"succeeded"`
			Failed    int              `json:"failed"`
			Errors    map[int64]string `json:"errors"`
		}

		runOne := func(label, path string) error {
			printStep("Syncing %s...", label)
			resp, err := client.post(ctx, path, nil)
			if err != nil {
				return err
			}
			var result syncResult
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			if result.Failed > 0 {
				printWarning("%s: %d synced, %d failed", label, result.Succeeded, result.Failed)
				for id, msg := range result.Errors {
					printError("  %s %d: %s", strings.TrimSuffix(label, "s"), id, msg)
				}
			} else {
				printSuccess("%s: %d synced", label, result.Succeeded)
			}
			return nil
		}

		accountsPath := "/v1/sync/accounts"
		entriesPath := "/v1/sync/entries"
		if force {
			accountsPath += "/resync"
			entriesPath += "/resync"
		}

		if !entriesOnly {
			if err := runOne("accounts", accountsPath); err != nil {
				return err
			}
		}
		if !accountsOnly {
			if err := runOne("entries", entriesPath); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("accounts", false, "sync only accounts")
	syncCmd.Flags().Bool("entries", false, "sync only journal entries")
	syncCmd.Flags().Bool("force", false, "re-embed everything, including already-synced records")
}

// --- suggest ---

var suggestCmd = &cobra.Command{
	Use:   "suggest [file]",
	Short: "Suggest a journal entry for an invoice document",
	Long: `Suggest a double-entry journal entry for an invoice.

The document can be a PDF or plain-text file, or inline text via --text.
Vendor, amount, currency and date are derived from the text when not
given explicitly.

Examples:
  asiento suggest factura-0425.pdf
  asiento suggest --text "Compra de utiles de oficina S/ 413.59" --book PURCHASES
  asiento suggest invoice.txt --provider groq`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		book, _ := cmd.Flags().GetString("book")
		provider, _ := cmd.Flags().GetString("provider")
		query, _ := cmd.Flags().GetString("query")

		if text == "" && len(args) == 0 {
			return fmt.Errorf("a document file or --text is required")
		}
		if len(args) == 1 {
			extracted, err := docext.ExtractFile(args[0])
			if err != nil {
				return fmt.Errorf("reading document: %w", err)
			}
			text = extracted
		}

		req := map[string]any{
			"document": map[string]any{"rawText": text},
			"book":     book,
			"provider": provider,
			"query":    query,
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/suggestions", req)
		if err != nil {
			return err
		}

		var sug struct {
			Description string `json:"description"`
			Lines       []struct {
				AccountID   int64  `json:"accountId"`
				AccountCode string `json:"accountCode"`
				AccountName string `json:"accountName"`
				Debit       string `json:"debit"`
				Credit      string `json:"credit"`
				Description string `json:"description"`
			} `json:"lines"`
			TotalDebit  string  `json:"totalDebit"`
			TotalCredit string  `json:"totalCredit"`
			Balanced    bool    `json:"balanced"`
			Explanation string  `json:"explanation"`
			Confidence  float64 `json:"confidence"`
			Provider    string  `json:"provider"`
		}
		if err := decodeJSON(resp, &sug); err != nil {
			return err
		}

		fmt.Printf("\n%s\n", colorize(colorBold, sug.Description))
		for _, l := range sug.Lines {
			side := fmt.Sprintf("debit  %s", l.Debit)
			if l.Debit == "0" || l.Debit == "" {
				side = fmt.Sprintf("credit %s", l.Credit)
			}
			name := l.AccountName
			if name != "" {
				name = " " + name
			}
			account := l.AccountCode
			if account == "" && l.AccountID > 0 {
				account = fmt.Sprintf("#%d", l.AccountID)
			}
			fmt.Printf("  %s%s  %s\n", colorize(colorCyan, account), name, side)
		}
		fmt.Printf("  totals: %s / %s\n", sug.TotalDebit, sug.TotalCredit)
		if sug.Explanation != "" {
			fmt.Printf("  why: %s (confidence %.2f)\n", sug.Explanation, sug.Confidence)
		}
		if sug.Balanced {
			printSuccess("Balanced (provider: %s)", sug.Provider)
		} else {
			printWarning("NOT balanced — review before posting (provider: %s)", sug.Provider)
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().String("text", "", "inline document text instead of a file")
	suggestCmd.Flags().String("book", "", "accounting book (PURCHASES, SALES, GENERAL)")
	suggestCmd.Flags().String("provider", "", "inference provider (ollama, groq)")
	suggestCmd.Flags().String("query", "", "override the derived retrieval query")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Ask the accounting assistant a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		provider, _ := cmd.Flags().GetString("provider")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/chat", map[string]string{
			"message":  message,
			"provider": provider,
		})
		if err != nil {
			return err
		}

		var answer struct {
			Text   string `json:"text"`
			Intent string `json:"intent"`
			Tool   string `json:"tool"`
		}
		if err := decodeJSON(resp, &answer); err != nil {
			return err
		}

		if answer.Intent != "" {
			printStep("intent: %s", answer.Intent)
		}
		fmt.Println(answer.Text)
		return nil
	},
}

func init() {
	askCmd.Flags().String("provider", "", "inference provider (ollama, groq)")
}

// --- intents ---

var intentsCmd = &cobra.Command{
	Use:   "intents",
	Short: "List or test the configured chat intents",
}

var intentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured intents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		defs, err := intent.LoadDefinitionsFile(cfg.Intent.Path)
		if err != nil {
			return err
		}
		for _, d := range defs {
			fmt.Printf("%s\n", colorize(colorBold, d.Name))
			if d.Description != "" {
				fmt.Printf("  %s\n", d.Description)
			}
			if d.Tool != "" {
				fmt.Printf("  tool: %s\n", d.Tool)
			}
			fmt.Printf("  examples: %d\n", len(d.Examples))
		}
		return nil
	},
}

var intentsTestCmd = &cobra.Command{
	Use:   "test <message>",
	Short: "Show which intent a message matches",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		defs, err := intent.LoadDefinitionsFile(cfg.Intent.Path)
		if err != nil {
			return err
		}

		ollamaEng := engine.NewOllamaEngine(cfg.Ollama.BaseURL)
		embedder := embedding.NewEngine(embedding.ProviderFunc(func(ctx context.Context, text string) ([]float32, error) {
			return ollamaEng.Embed(ctx, cfg.Ollama.EmbedModel, text)
		}), cfg.Sync.Concurrency)

		matcher := intent.NewMatcher(embedder, cfg.Intent.Threshold)
		if err := matcher.Index(cmd.Context(), defs); err != nil {
			return fmt.Errorf("indexing intents: %w", err)
		}

		match, err := matcher.Match(cmd.Context(), message)
		if err != nil {
			return err
		}
		if match == nil {
			printWarning("no intent above threshold %.2f — message would go to free-form chat", cfg.Intent.Threshold)
			return nil
		}
		printSuccess("matched %s (score %.3f)", match.Definition.Name, match.Score)
		if match.Definition.Tool != "" {
			printStatus("Tool", "%s", match.Definition.Tool)
		}
		return nil
	},
}

func init() {
	intentsCmd.AddCommand(intentsListCmd)
	intentsCmd.AddCommand(intentsTestCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show asiento system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	httpClient := &http.Client{Timeout: 2 * time.Second}

	running := false
	if resp, err := httpClient.Get(serverURL + "/v1/health"); err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if resp, err := httpClient.Get(cfg.Ollama.BaseURL + "/api/version"); err != nil {
		printStatus("Ollama", "not running")
	} else {
		resp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	if cfg.Groq.APIKey != "" {
		printStatus("Groq", "configured (model %s)", cfg.Groq.Model)
	} else {
		printStatus("Groq", "not configured")
	}

	printStatus("Chat model", "%s", cfg.Ollama.ChatModel)
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Vector backend", "%s (dim %d)", cfg.Vector.Backend, cfg.Vector.Dim)

	if running {
		client := &apiClient{
			baseURL:    serverURL,
			token:      cfg.Server.Token,
			httpClient: httpClient,
		}
		if resp, err := client.get(ctx, "/v1/sync/status"); err == nil {
			var status struct {
				IndexedChunks    int  `json:"indexedChunks"`
				UnsyncedAccounts int  `json:"unsyncedAccounts"`
				UnsyncedEntries  int  `json:"unsyncedEntries"`
				AutoSync         bool `json:"autoSync"`
			}
			if decodeJSON(resp, &status) == nil {
				printStatus("Indexed chunks", "%d", status.IndexedChunks)
				printStatus("Pending sync", "%d accounts, %d entries", status.UnsyncedAccounts, status.UnsyncedEntries)
				printStatus("Auto-sync", "%v", status.AutoSync)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
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
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
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
