package suggest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

// responsePayload mirrors the JSON the model is asked to produce.
// Confidence is a pointer so a missing field is distinguishable from 0.
type responsePayload struct {
	Description string          `json:"description"`
	Lines       []SuggestedLine `json:"lines"`
	Explanation string          `json:"explanation"`
	Confidence  *float64        `json:"confidence"`
}

// Parse validates a raw model response and recomputes the totals.
// Markdown code fences around the JSON are tolerated. Lines that fail
// validation are skipped with a warning rather than failing the whole
// suggestion; a response with no usable lines at all is malformed.
func Parse(raw string) (Suggestion, error) {
	cleaned := stripFences(raw)

	var payload responsePayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return Suggestion{}, &MalformedResponseError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: raw}
	}

	if strings.TrimSpace(payload.Description) == "" {
		return Suggestion{}, &MalformedResponseError{Reason: "missing description", Raw: raw}
	}
	if len(payload.Lines) == 0 {
		return Suggestion{}, &MalformedResponseError{Reason: "no lines", Raw: raw}
	}
	if strings.TrimSpace(payload.Explanation) == "" {
		return Suggestion{}, &MalformedResponseError{Reason: "missing explanation", Raw: raw}
	}
	if payload.Confidence == nil {
		return Suggestion{}, &MalformedResponseError{Reason: "missing confidence", Raw: raw}
	}
	if *payload.Confidence < 0 || *payload.Confidence > 1 {
		return Suggestion{}, &MalformedResponseError{
			Reason: fmt.Sprintf("confidence %v outside [0, 1]", *payload.Confidence),
			Raw:    raw,
		}
	}

	lines := make([]SuggestedLine, 0, len(payload.Lines))
	for i, l := range payload.Lines {
		if reason := validateLine(l); reason != "" {
			slog.Warn("skipping invalid suggested line", "index", i, "reason", reason)
			continue
		}
		lines = append(lines, l)
	}
	if len(lines) == 0 {
		return Suggestion{}, &MalformedResponseError{Reason: "no valid lines", Raw: raw}
	}

	var totalDebit, totalCredit decimal.Decimal
	for _, l := range lines {
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
	}

	return Suggestion{
		Description: payload.Description,
		Lines:       lines,
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		Balanced:    totalDebit.Equal(totalCredit),
		Explanation: payload.Explanation,
		Confidence:  *payload.Confidence,
		Raw:         raw,
	}, nil
}

// validateLine returns a non-empty reason when the line is unusable: it
// needs an account reference (id or code) and exactly one positive side.
func validateLine(l SuggestedLine) string {
	if l.AccountID <= 0 && strings.TrimSpace(l.AccountCode) == "" {
		return "missing account reference"
	}
	debitSet := l.Debit.IsPositive()
	creditSet := l.Credit.IsPositive()
	switch {
	case l.Debit.IsNegative() || l.Credit.IsNegative():
		return "negative amount"
	case debitSet && creditSet:
		return "both debit and credit set"
	case !debitSet && !creditSet:
		return "neither debit nor credit set"
	}
	return ""
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, and any prose before the first brace inside it.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// Drop the language tag line ("json", "JSON", ...).
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first != "" && !strings.HasPrefix(first, "{") {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
