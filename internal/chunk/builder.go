// Package chunk renders domain entities into the natural-language text
// that gets embedded and indexed. Rendering is deterministic, does no
// I/O, and never fails: missing fields degrade to placeholders.
package chunk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/asiento-ai/asiento/internal/ledger"
)

// missingValue is rendered in place of absent account metadata.
const missingValue = "N/A"

// rawExcerptLimit caps the raw-text fallback in Document.
const rawExcerptLimit = 200

// Account renders a chart-of-accounts record as descriptive text.
func Account(a ledger.Account) string {
	accountType := a.Type
	if accountType == "" {
		accountType = missingValue
	}
	nature := string(a.NormalSide)
	if nature == "" {
		nature = missingValue
	}

	return fmt.Sprintf(
		"Code: %s. Account: %s. Type: %s. Nature: %s. Description: this account is used to record %s of nature %s.",
		a.Code, a.Name, accountType, nature, a.Name, nature,
	)
}

// Entry renders a historical journal entry: header line plus one
// bracketed fragment per journal line.
func Entry(e ledger.JournalEntry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Date: %s. Book: %s. Description: %s.", e.Date.Format("2006-01-02"), e.BookType, e.Description)

	for _, line := range e.Lines {
		account := line.AccountCode
		if account == "" {
			account = fmt.Sprintf("%d", line.AccountID)
		}
		if line.Debit.IsPositive() {
			fmt.Fprintf(&sb, " [debit of %s to account %s: %s]", line.Debit.String(), account, line.Description)
		} else {
			fmt.Fprintf(&sb, " [credit of %s to account %s: %s]", line.Credit.String(), account, line.Description)
		}
	}

	return sb.String()
}

// Patterns for key-phrase extraction from raw exchange-receipt text.
var (
	// Asset symbols stay case-sensitive so prose words don't match.
	tradePattern    = regexp.MustCompile(`\b(?i:(buy|bought|purchased?|sell|sold))\b[^\n]{0,40}?\b([A-Z]{2,6})\b`)
	quantityPattern = regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s*([A-Z]{2,6})\b`)
	fiatPattern     = regexp.MustCompile(`(?i)(?:USD|PEN|EUR|S/\.?|\$)\s*([\d,]+(?:\.\d+)?)`)
	paymentPattern  = regexp.MustCompile(`(?i)\b(bank transfer|wire|card|credit card|debit card|yape|plin|paypal)\b`)
)

// Document renders an OCR-derived analysis as a semantic chunk for
// query-side matching. Structured invoice fields win over raw text;
// raw text is mined for trade key phrases; as a last resort the first
// 200 characters of the raw text are used verbatim.
func Document(doc ledger.DocumentAnalysis, book ledger.BookType) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Operation book: %s.", book)

	if doc.VendorName != "" || doc.Amount.IsPositive() || !doc.Date.IsZero() {
		if doc.VendorName != "" {
			fmt.Fprintf(&sb, " Vendor: %s.", doc.VendorName)
		}
		if doc.Amount.IsPositive() {
			currency := doc.Currency
			if currency == "" {
				currency = missingValue
			}
			fmt.Fprintf(&sb, " Amount: %s %s.", doc.Amount.String(), currency)
		}
		if !doc.Date.IsZero() {
			fmt.Fprintf(&sb, " Date: %s.", doc.Date.Format("2006-01-02"))
		}
		return sb.String()
	}

	if phrases := extractKeyPhrases(doc.RawText); phrases != "" {
		sb.WriteString(" ")
		sb.WriteString(phrases)
		return sb.String()
	}

	if excerpt := strings.TrimSpace(doc.RawText); excerpt != "" {
		if runes := []rune(excerpt); len(runes) > rawExcerptLimit {
			excerpt = string(runes[:rawExcerptLimit])
		}
		sb.WriteString(" ")
		sb.WriteString(excerpt)
	}

	return sb.String()
}

// extractKeyPhrases mines raw receipt text for trade facts. Returns ""
// when no pattern matches.
func extractKeyPhrases(raw string) string {
	if raw == "" {
		return ""
	}

	var parts []string

	if m := tradePattern.FindStringSubmatch(raw); m != nil {
		verb := strings.ToLower(m[1])
		switch verb {
		case "bought", "purchased", "purchase":
			verb = "buy"
		case "sold":
			verb = "sell"
		}
		parts = append(parts, fmt.Sprintf("Trade: %s %s.", verb, m[2]))
	}
	if m := quantityPattern.FindStringSubmatch(raw); m != nil {
		parts = append(parts, fmt.Sprintf("Quantity: %s %s.", m[1], m[2]))
	}
	if m := fiatPattern.FindStringSubmatch(raw); m != nil {
		parts = append(parts, fmt.Sprintf("Fiat amount: %s.", m[1]))
	}
	if m := paymentPattern.FindStringSubmatch(raw); m != nil {
		parts = append(parts, fmt.Sprintf("Payment method: %s.", strings.ToLower(m[1])))
	}

	return strings.Join(parts, " ")
}
