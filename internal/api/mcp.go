package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/asiento-ai/asiento/internal/ledger"
	"github.com/asiento-ai/asiento/internal/retrieval"
	"github.com/asiento-ai/asiento/internal/suggest"
)

// MCPRetriever abstracts retrieval for the MCP layer.
type MCPRetriever interface {
	Retrieve(ctx context.Context, query string) (retrieval.RetrievedContext, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Deps
	Retriever MCPRetriever
}

// NewMCPServer creates an MCP server exposing the suggestion engine as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"asiento",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("asiento — journal-entry suggestions grounded in the local chart of accounts and past entries."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("suggest_entry",
			mcp.WithDescription("Propose a balanced journal entry for a document described by raw text."),
			mcp.WithString("text", mcp.Description("Raw document text (invoice, receipt)"), mcp.Required()),
			mcp.WithString("book", mcp.Description("Operation book: PURCHASES, SALES or GENERAL (default PURCHASES)")),
			mcp.WithString("provider", mcp.Description("Inference provider name; empty uses the default")),
		),
		mcpSuggestEntry(deps),
	)

	s.AddTool(
		mcp.NewTool("search_accounts",
			mcp.WithDescription("Semantically search the chart of accounts."),
			mcp.WithString("query", mcp.Description("What the account is for"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchAccounts(deps),
	)

	s.AddTool(
		mcp.NewTool("sync_status",
			mcp.WithDescription("Report how many chunks are indexed and how many records await syncing."),
		),
		mcpSyncStatus(deps),
	)

	return s
}

func mcpSuggestEntry(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		book := ledger.BookType(req.GetString("book", string(ledger.BookPurchases)))

		sug, err := deps.Suggester.Suggest(ctx, ledger.DocumentAnalysis{RawText: text}, book, suggest.Options{
			Provider: req.GetString("provider", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("suggestion failed: %v", err)), nil
		}

		b, err := json.Marshal(sug)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal suggestion: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchAccounts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		retrieved, err := deps.Retriever.Retrieve(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		accounts := retrieved.Accounts
		if len(accounts) > limit {
			accounts = accounts[:limit]
		}
		if len(accounts) == 0 {
			return mcpText("[]"), nil
		}

		type accountResult struct {
			SourceID string  `json:"source_id"`
			Text     string  `json:"text"`
			Score    float32 `json:"score"`
		}
		results := make([]accountResult, len(accounts))
		for i, a := range accounts {
			results[i] = accountResult{SourceID: a.SourceID, Text: a.Text, Score: a.Score}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSyncStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		indexed, err := deps.Vectors.Count(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("counting chunks: %v", err)), nil
		}

		var pendingAccounts, pendingEntries int
		err = deps.Reactor.Resume(ctx, func() error {
			accounts, err := deps.Store.FindUnsyncedAccounts()
			if err != nil {
				return err
			}
			entries, err := deps.Store.FindUnsyncedEntries()
			if err != nil {
				return err
			}
			pendingAccounts, pendingEntries = len(accounts), len(entries)
			return nil
		})
		if err != nil {
			return mcpError(fmt.Sprintf("reading sync state: %v", err)), nil
		}

		return mcpText(fmt.Sprintf(
			"%d chunks indexed, %d accounts and %d entries pending sync, auto-sync %v",
			indexed, pendingAccounts, pendingEntries, deps.Syncer.AutoSync())), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
