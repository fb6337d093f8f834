package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/asiento-ai/asiento/internal/embedding"
	"github.com/asiento-ai/asiento/internal/ledger"
	"github.com/asiento-ai/asiento/internal/syncer"
)

type accountRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	NormalSide string `json:"normalSide"`
	Active     *bool  `json:"active"`
}

func handleSaveAccount(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req accountRequest
		if err := decodeBody(w, r, &req); err != nil {
			return
		}
		if req.Code == "" || req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "code and name are required")
			return
		}

		account := ledger.Account{
			Code:       req.Code,
			Name:       req.Name,
			Type:       req.Type,
			NormalSide: ledger.Side(req.NormalSide),
			Active:     req.Active == nil || *req.Active,
		}

		var id int64
		err := deps.Reactor.Resume(r.Context(), func() error {
			var err error
			id, err = deps.Store.SaveAccount(account)
			return err
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving account: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]int64{"id": id})
	}
}

type entryLineRequest struct {
	AccountID   int64           `json:"accountId"`
	AccountCode string          `json:"accountCode"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type entryRequest struct {
	Date        string             `json:"date"`
	BookType    string             `json:"bookType"`
	Description string             `json:"description"`
	Lines       []entryLineRequest `json:"lines"`
}

func handleSaveEntry(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req entryRequest
		if err := decodeBody(w, r, &req); err != nil {
			return
		}
		if len(req.Lines) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "lines are required")
			return
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid date %q, want YYYY-MM-DD", req.Date)
			return
		}

		entry := ledger.JournalEntry{
			Date:        date,
			BookType:    ledger.BookType(req.BookType),
			Description: req.Description,
		}
		var totalDebit, totalCredit decimal.Decimal
		for _, l := range req.Lines {
			entry.Lines = append(entry.Lines, ledger.JournalLine{
				AccountID:   l.AccountID,
				AccountCode: l.AccountCode,
				Debit:       l.Debit,
				Credit:      l.Credit,
				Description: l.Description,
			})
			totalDebit = totalDebit.Add(l.Debit)
			totalCredit = totalCredit.Add(l.Credit)
		}
		if !totalDebit.Equal(totalCredit) {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"entry is unbalanced: debits %s, credits %s", totalDebit, totalCredit)
			return
		}

		var id int64
		err = deps.Reactor.Resume(r.Context(), func() error {
			var err error
			id, err = deps.Store.SaveEntry(entry)
			return err
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving entry: %v", err)
			return
		}

		deps.Syncer.OnEntrySaved(r.Context(), id)

		writeJSON(w, http.StatusOK, map[string]int64{"id": id})
	}
}

// syncResponse is the JSON shape of a syncer.Result.
type syncResponse struct {
	Processed int              `json:"processed"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    map[int64]string `json:"errors,omitempty"`
	Success   bool             `json:"success"`
}

func toSyncResponse(res syncer.Result) syncResponse {
	out := syncResponse{
		Processed: res.Processed,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Success:   res.Success(),
	}
	if len(res.Errors) > 0 {
		out.Errors = make(map[int64]string, len(res.Errors))
		for id, err := range res.Errors {
			out.Errors[id] = err.Error()
		}
	}
	return out
}

// writeSyncResult maps a batch outcome to a response: per-record failures
// are still a 200 with details, a configuration fault is a server error.
func writeSyncResult(w http.ResponseWriter, res syncer.Result, err error) {
	if err != nil {
		var dimErr *embedding.DimensionError
		if errors.As(err, &dimErr) {
			httpError(w, http.StatusConflict, "config_error", "%v", err)
			return
		}
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, toSyncResponse(res))
}

func handleSyncAccounts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Syncer.SyncUnsyncedAccounts(r.Context())
		writeSyncResult(w, res, err)
	}
}

func handleResyncAccounts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Syncer.ForceResyncAllAccounts(r.Context())
		writeSyncResult(w, res, err)
	}
}

func handleSyncEntries(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Syncer.SyncUnsyncedEntries(r.Context())
		writeSyncResult(w, res, err)
	}
}

func handleResyncEntries(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Syncer.ForceResyncAllEntries(r.Context())
		writeSyncResult(w, res, err)
	}
}

func handleRemoveAccount(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid account id")
			return
		}

		if err := deps.Syncer.RemoveSyncedAccount(r.Context(), id); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "removing account: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	}
}
