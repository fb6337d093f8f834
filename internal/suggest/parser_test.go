package suggest

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const balancedResponse = `{
	"description": "Compra de utiles de oficina",
	"lines": [
		{"accountCode": "60", "accountName": "Compras", "debit": 350.50, "credit": 0, "description": "office supplies"},
		{"accountCode": "40", "accountName": "Tributos", "debit": 63.09, "credit": 0, "description": "IGV 18%"},
		{"accountCode": "42", "accountName": "Proveedores", "debit": 0, "credit": 413.59, "description": "payable"}
	],
	"explanation": "Purchase with 18% IGV split between expense and tax accounts.",
	"confidence": 0.92
}`

func TestParse_Balanced(t *testing.T) {
	sug, err := Parse(balancedResponse)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if sug.Description != "Compra de utiles de oficina" {
		t.Errorf("Description = %q", sug.Description)
	}
	if len(sug.Lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(sug.Lines))
	}
	if !sug.TotalDebit.Equal(decimal.RequireFromString("413.59")) {
		t.Errorf("TotalDebit = %s, want 413.59", sug.TotalDebit)
	}
	if !sug.TotalCredit.Equal(decimal.RequireFromString("413.59")) {
		t.Errorf("TotalCredit = %s, want 413.59", sug.TotalCredit)
	}
	if !sug.Balanced {
		t.Error("Balanced = false, want true")
	}
	if !strings.Contains(sug.Explanation, "IGV") {
		t.Errorf("Explanation = %q", sug.Explanation)
	}
	if sug.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", sug.Confidence)
	}
}

func TestParse_MarkdownFences(t *testing.T) {
	fenced := "```json\n" + balancedResponse + "\n```"
	sug, err := Parse(fenced)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sug.Lines) != 3 {
		t.Errorf("got %d lines, want 3", len(sug.Lines))
	}
	if sug.Raw != fenced {
		t.Error("Raw should keep the original fenced response")
	}
}

func TestParse_BareFences(t *testing.T) {
	fenced := "```\n" + balancedResponse + "\n```"
	if _, err := Parse(fenced); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestParse_LinesKeyedByAccountID(t *testing.T) {
	fenced := "```json\n" + `{"description":"x","lines":[{"accountId":1,"debit":"100.00","credit":"0","description":"d"}],"explanation":"e","confidence":0.9}` + "\n```"
	sug, err := Parse(fenced)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sug.Lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(sug.Lines))
	}
	if sug.Lines[0].AccountID != 1 {
		t.Errorf("AccountID = %d, want 1", sug.Lines[0].AccountID)
	}
	if !sug.TotalDebit.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("TotalDebit = %s, want 100.00", sug.TotalDebit)
	}
	if sug.Balanced {
		t.Error("Balanced = true for a one-sided entry, want false")
	}
	if sug.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", sug.Confidence)
	}
}

func TestParse_Unbalanced(t *testing.T) {
	raw := `{
		"description": "Venta al contado",
		"lines": [
			{"accountCode": "10", "debit": 100, "credit": 0, "description": "cash in"},
			{"accountCode": "70", "debit": 0, "credit": 90, "description": "sale"}
		],
		"explanation": "Cash sale",
		"confidence": 0.8
	}`
	sug, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sug.Balanced {
		t.Error("Balanced = true for unequal totals, want false")
	}
}

func TestParse_SkipsInvalidLines(t *testing.T) {
	raw := `{
		"description": "Mixed quality",
		"lines": [
			{"accountCode": "", "debit": 10, "credit": 0, "description": "no account"},
			{"accountCode": "60", "debit": 10, "credit": 10, "description": "both sides"},
			{"accountCode": "61", "debit": 0, "credit": 0, "description": "no sides"},
			{"accountCode": "62", "debit": -5, "credit": 0, "description": "negative"},
			{"accountCode": "10", "debit": 25, "credit": 0, "description": "valid"}
		],
		"explanation": "Only one line holds up",
		"confidence": 0.4
	}`
	sug, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sug.Lines) != 1 {
		t.Fatalf("got %d lines, want only the valid one", len(sug.Lines))
	}
	if sug.Lines[0].AccountCode != "10" {
		t.Errorf("kept line = %+v", sug.Lines[0])
	}
	if !sug.TotalDebit.Equal(decimal.NewFromInt(25)) {
		t.Errorf("TotalDebit = %s, want 25", sug.TotalDebit)
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "the entry should debit Compras"},
		{"missing description", `{"lines":[{"accountCode":"60","debit":10,"credit":0}],"explanation":"e","confidence":0.5}`},
		{"no lines", `{"description":"empty","explanation":"e","confidence":0.5}`},
		{"all lines invalid", `{"description":"bad","lines":[{"accountCode":"","debit":1,"credit":0}],"explanation":"e","confidence":0.5}`},
		{"missing explanation", `{"description":"x","lines":[{"accountId":1,"debit":10,"credit":0}],"confidence":0.5}`},
		{"missing confidence", `{"description":"x","lines":[{"accountId":1,"debit":10,"credit":0}],"explanation":"e"}`},
		{"confidence above one", `{"description":"x","lines":[{"accountId":1,"debit":10,"credit":0}],"explanation":"e","confidence":1.2}`},
		{"confidence negative", `{"description":"x","lines":[{"accountId":1,"debit":10,"credit":0}],"explanation":"e","confidence":-0.1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			var malformed *MalformedResponseError
			if !errors.As(err, &malformed) {
				t.Fatalf("error type = %T, want *MalformedResponseError", err)
			}
			if malformed.Raw != tc.raw {
				t.Error("Raw should carry the original response")
			}
		})
	}
}

func TestParse_StringAmounts(t *testing.T) {
	raw := `{
		"description": "String amounts",
		"lines": [
			{"accountCode": "10", "debit": "150.25", "credit": "0", "description": "cash"},
			{"accountCode": "70", "debit": "0", "credit": "150.25", "description": "sale"}
		],
		"explanation": "Amounts quoted as strings",
		"confidence": 0.7
	}`
	sug, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !sug.Balanced {
		t.Error("Balanced = false, want true")
	}
	if !sug.TotalDebit.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("TotalDebit = %s", sug.TotalDebit)
	}
}
