// Package retrieval turns a document analysis into a search query, embeds
// it, and gathers the account and entry context the suggestion prompt needs.
package retrieval

import (
	"fmt"
	"strings"

	"github.com/asiento-ai/asiento/internal/ledger"
)

// queryExcerptLimit caps how much raw document text goes into the query,
// in runes.
const queryExcerptLimit = 200

// BuildQuery composes the retrieval query for a document. An explicit
// override wins outright. Otherwise the query concatenates the structured
// fields (vendor, amount, book) with an excerpt of the raw text, and a
// book-appropriate generic query is the last resort so retrieval always
// has something to work with.
func BuildQuery(doc ledger.DocumentAnalysis, book ledger.BookType, override string) string {
	if o := strings.TrimSpace(override); o != "" {
		return o
	}

	var parts []string
	if doc.VendorName != "" {
		parts = append(parts, fmt.Sprintf("operation with %s", doc.VendorName))
	}
	if !doc.Amount.IsZero() {
		currency := doc.Currency
		if currency == "" {
			currency = "PEN"
		}
		parts = append(parts, fmt.Sprintf("amount %s %s", currency, doc.Amount.StringFixed(2)))
	}
	if len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("book %s", book))
	}

	if raw := excerpt(doc.RawText, queryExcerptLimit); raw != "" {
		parts = append(parts, raw)
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}

	switch book {
	case ledger.BookSales:
		return "Sales invoice"
	case ledger.BookGeneral:
		return "General journal operation"
	default:
		return "Purchase invoice"
	}
}

// excerpt trims text and truncates it to limit runes without splitting a
// multi-byte character.
func excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}
