// Package suggest turns a document analysis into a journal-entry suggestion:
// it builds the grounded prompt, calls the configured inference provider,
// and parses the structured response into validated, balanced lines.
package suggest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/asiento-ai/asiento/internal/ledger"
	"github.com/asiento-ai/asiento/internal/retrieval"
)

// RAGContext is the full grounding for one suggestion: the analyzed
// document, the target book, and what retrieval found for it.
type RAGContext struct {
	Document  ledger.DocumentAnalysis
	Book      ledger.BookType
	Retrieved retrieval.RetrievedContext
}

// SuggestedLine is one proposed debit or credit. The model may identify
// the account by numeric id, by code, or both.
type SuggestedLine struct {
	AccountID   int64           `json:"accountId,omitempty"`
	AccountCode string          `json:"accountCode,omitempty"`
	AccountName string          `json:"accountName,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

// Suggestion is a parsed and validated entry proposal. Balanced and the
// totals are recomputed from the lines, never trusted from the model;
// Date, Book and Retrieved carry the request context the suggestion was
// grounded on.
type Suggestion struct {
	Date        time.Time                  `json:"date,omitzero"`
	Description string                     `json:"description"`
	Book        ledger.BookType            `json:"book,omitempty"`
	Lines       []SuggestedLine            `json:"lines"`
	TotalDebit  decimal.Decimal            `json:"totalDebit"`
	TotalCredit decimal.Decimal            `json:"totalCredit"`
	Balanced    bool                       `json:"balanced"`
	Explanation string                     `json:"explanation"`
	Confidence  float64                    `json:"confidence"`
	Provider    string                     `json:"provider,omitempty"`
	Retrieved   retrieval.RetrievedContext `json:"-"`
	Raw         string                     `json:"-"`
}

// MalformedResponseError reports a model response that could not be turned
// into a usable suggestion. Raw carries the original response for logging.
type MalformedResponseError struct {
	Reason string
	Raw    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}
