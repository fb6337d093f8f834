// Package api exposes the suggestion engine over HTTP and MCP. The HTTP
// surface is a small JSON API behind bearer auth; the MCP server offers the
// same capabilities as tools for editor and agent integrations.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asiento-ai/asiento/internal/chat"
	"github.com/asiento-ai/asiento/internal/ledger"
	"github.com/asiento-ai/asiento/internal/storage"
	"github.com/asiento-ai/asiento/internal/suggest"
	"github.com/asiento-ai/asiento/internal/syncer"
	"github.com/asiento-ai/asiento/internal/vector"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Resumer schedules a closure onto the ledger goroutine and waits for it.
type Resumer interface {
	Resume(ctx context.Context, fn func() error) error
}

// Suggester produces entry suggestions; implemented by suggest.Orchestrator.
type Suggester interface {
	Suggest(ctx context.Context, doc ledger.DocumentAnalysis, book ledger.BookType, opts suggest.Options) (suggest.Suggestion, error)
}

// Chatter answers free-form questions; implemented by chat.Orchestrator.
type Chatter interface {
	Respond(ctx context.Context, message, provider string) (chat.Answer, error)
}

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Store     *storage.Store
	Reactor   Resumer
	Vectors   vector.Store
	Syncer    *syncer.Syncer
	Suggester Suggester
	Chat      Chatter
	Token     string
}

// NewHandler builds the authenticated HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/v1/accounts", handleSaveAccount(deps))
		r.Post("/v1/entries", handleSaveEntry(deps))

		r.Post("/v1/suggestions", handleSuggest(deps))
		r.Post("/v1/chat", handleChat(deps))

		r.Post("/v1/sync/accounts", handleSyncAccounts(deps))
		r.Post("/v1/sync/accounts/resync", handleResyncAccounts(deps))
		r.Delete("/v1/sync/accounts/{id}", handleRemoveAccount(deps))
		r.Post("/v1/sync/entries", handleSyncEntries(deps))
		r.Post("/v1/sync/entries/resync", handleResyncEntries(deps))
		r.Get("/v1/sync/status", handleSyncStatus(deps))
		r.Put("/v1/sync/auto", handleAutoSync(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if deps.Vectors != nil {
			if _, err := deps.Vectors.Count(r.Context()); err != nil {
				status = "degraded"
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

func handleSyncStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		indexed, err := deps.Vectors.Count(r.Context())
		if err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "counting chunks: %v", err)
			return
		}

		var pendingAccounts, pendingEntries int
		err = deps.Reactor.Resume(r.Context(), func() error {
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
			httpError(w, http.StatusInternalServerError, "api_error", "reading sync state: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"indexedChunks":    indexed,
			"unsyncedAccounts": pendingAccounts,
			"unsyncedEntries":  pendingEntries,
			"autoSync":         deps.Syncer.AutoSync(),
		})
	}
}

func handleAutoSync(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			return
		}
		deps.Syncer.SetAutoSync(req.Enabled)
		writeJSON(w, http.StatusOK, map[string]bool{"autoSync": req.Enabled})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
