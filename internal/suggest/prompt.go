package suggest

import (
	"fmt"
	"strings"

	"github.com/asiento-ai/asiento/internal/engine"
)

const systemPrompt = `You are an accounting assistant for Peruvian double-entry bookkeeping.
Given a source document and the chart-of-accounts context below, propose one journal entry.
Respond with JSON only: {"description": string, "lines": [{"accountId": number, "accountCode": string, "accountName": string, "debit": number, "credit": number, "description": string}], "explanation": string, "confidence": number}.
Each line must set exactly one of debit or credit to a positive amount, and total debits must equal total credits.
Use only accounts present in the provided context. Explain your reasoning in "explanation" and rate your confidence from 0 to 1 in "confidence".`

// BuildPrompt assembles the chat messages for one suggestion: a fixed
// system instruction followed by a user message carrying the document
// details and the retrieved context sections.
func BuildPrompt(rag RAGContext) []engine.Message {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Operation book: %s.\n", rag.Book)
	doc := rag.Document
	if doc.VendorName != "" {
		fmt.Fprintf(&sb, "Vendor: %s.\n", doc.VendorName)
	}
	if !doc.Amount.IsZero() {
		currency := doc.Currency
		if currency == "" {
			currency = "PEN"
		}
		fmt.Fprintf(&sb, "Amount: %s %s.\n", currency, doc.Amount.StringFixed(2))
	}
	if !doc.Date.IsZero() {
		fmt.Fprintf(&sb, "Date: %s.\n", doc.Date.Format("2006-01-02"))
	}
	if raw := strings.TrimSpace(doc.RawText); raw != "" {
		fmt.Fprintf(&sb, "\nDocument text:\n%s\n", raw)
	}

	if len(rag.Retrieved.Accounts) > 0 {
		sb.WriteString("\n[Relevant Accounts]\n")
		for _, a := range rag.Retrieved.Accounts {
			fmt.Fprintf(&sb, "- %s\n", a.Text)
		}
	}
	if len(rag.Retrieved.Entries) > 0 {
		sb.WriteString("\n[Similar Past Entries]\n")
		for _, e := range rag.Retrieved.Entries {
			fmt.Fprintf(&sb, "- %s\n", e.Text)
		}
	}

	return []engine.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

// responseSchema describes the structured output for backends that support
// schema-constrained generation.
func responseSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"description": {Type: "string", Description: "One-line description of the journal entry"},
			"lines":       {Type: "array", Description: "Debit and credit lines of the entry"},
			"explanation": {Type: "string", Description: "Reasoning behind the proposed lines"},
			"confidence":  {Type: "number", Description: "Model confidence between 0 and 1"},
		},
		Required: []string{"description", "lines", "explanation", "confidence"},
	}
}
