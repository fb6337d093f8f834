package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/asiento-ai/asiento/internal/docext"
	"github.com/asiento-ai/asiento/internal/engine"
	"github.com/asiento-ai/asiento/internal/ledger"
	"github.com/asiento-ai/asiento/internal/suggest"
)

type documentRequest struct {
	VendorName string          `json:"vendorName"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Date       string          `json:"date"`
	RawText    string          `json:"rawText"`
}

type suggestRequest struct {
	Document documentRequest `json:"document"`
	Book     string          `json:"book"`
	Provider string          `json:"provider"`
	Query    string          `json:"query"`
}

func handleSuggest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req suggestRequest
		if err := decodeBody(w, r, &req); err != nil {
			return
		}

		doc := ledger.DocumentAnalysis{
			VendorName: req.Document.VendorName,
			Amount:     req.Document.Amount,
			Currency:   req.Document.Currency,
			RawText:    req.Document.RawText,
		}
		if req.Document.Date != "" {
			date, err := time.Parse("2006-01-02", req.Document.Date)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid date %q, want YYYY-MM-DD", req.Document.Date)
				return
			}
			doc.Date = date
		}

		// Raw text only: derive structured fields the same way the CLI does.
		if doc.VendorName == "" && doc.Amount.IsZero() && doc.RawText != "" {
			derived := docext.Analyze(doc.RawText)
			derived.RawText = doc.RawText
			if !doc.Date.IsZero() {
				derived.Date = doc.Date
			}
			doc = derived
		}

		book := ledger.BookType(req.Book)
		if book == "" {
			book = ledger.BookPurchases
		}

		sug, err := deps.Suggester.Suggest(r.Context(), doc, book, suggest.Options{
			Provider:      req.Provider,
			QueryOverride: req.Query,
		})
		if err != nil {
			writeSuggestError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, sug)
	}
}

func writeSuggestError(w http.ResponseWriter, err error) {
	var notFound *engine.ProviderNotFoundError
	if errors.As(err, &notFound) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}
	var malformed *suggest.MalformedResponseError
	if errors.As(err, &malformed) {
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
}

type chatRequest struct {
	Message  string `json:"message"`
	Provider string `json:"provider"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := decodeBody(w, r, &req); err != nil {
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		answer, err := deps.Chat.Respond(r.Context(), req.Message, req.Provider)
		if err != nil {
			var notFound *engine.ProviderNotFoundError
			if errors.As(err, &notFound) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}

		writeJSON(w, http.StatusOK, answer)
	}
}
