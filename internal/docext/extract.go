// Package docext extracts text from source documents (PDF invoices,
// receipts) and derives a best-effort DocumentAnalysis from it. It stands in
// for the external document-intelligence service when working with local
// files; all derived fields are optional hints, never authoritative.
package docext

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"github.com/asiento-ai/asiento/internal/ledger"
)

// ExtractFile reads a document from disk and returns its plain text.
// PDF files are parsed; anything else is treated as UTF-8 text.
func ExtractFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractPDF(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

var (
	// \b keeps "Subtotal" lines from matching.
	totalPattern = regexp.MustCompile(`(?i)\b(?:importe\s+total|total)\b\s*:?\s*(?:S/\.?|USD|PEN|EUR|\$)?\s*([\d,]+\.\d{2})`)
	rucPattern   = regexp.MustCompile(`(?i)R\.?U\.?C\.?\s*:?\s*(\d{11})`)
	datePattern  = regexp.MustCompile(`\b(\d{2})[/-](\d{2})[/-](\d{4})\b`)
	fiatPattern  = regexp.MustCompile(`(?i)(USD|PEN|EUR|S/\.?|\$)\s*[\d,]+\.\d{2}`)
)

// Analyze derives structured fields from raw document text. The first
// non-empty line is taken as the vendor, the amount comes from a total
// line when present, and dates in dd/mm/yyyy or dd-mm-yyyy form are
// recognized. Missing fields stay zero.
func Analyze(raw string) ledger.DocumentAnalysis {
	doc := ledger.DocumentAnalysis{RawText: raw}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		doc.VendorName = line
		break
	}

	if m := totalPattern.FindStringSubmatch(raw); m != nil {
		if amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil {
			doc.Amount = amount
		}
	}
	if m := fiatPattern.FindStringSubmatch(raw); m != nil {
		doc.Currency = normalizeCurrency(m[1])
	}
	if m := datePattern.FindStringSubmatch(raw); m != nil {
		if t, err := time.Parse("02/01/2006", m[1]+"/"+m[2]+"/"+m[3]); err == nil {
			doc.Date = t
		}
	}

	// A RUC line identifies the vendor better than the first text line.
	if m := rucPattern.FindStringSubmatch(raw); m != nil && doc.VendorName == "" {
		doc.VendorName = "RUC " + m[1]
	}

	return doc
}

func normalizeCurrency(symbol string) string {
	switch strings.ToUpper(strings.TrimSuffix(symbol, ".")) {
	case "S/", "PEN":
		return "PEN"
	case "$", "USD":
		return "USD"
	case "EUR":
		return "EUR"
	default:
		return symbol
	}
}

// AnalyzeFile extracts and analyzes a document in one step.
func AnalyzeFile(path string) (ledger.DocumentAnalysis, error) {
	text, err := ExtractFile(path)
	if err != nil {
		return ledger.DocumentAnalysis{}, err
	}
	return Analyze(text), nil
}
