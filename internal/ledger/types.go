// Package ledger holds the accounting domain types shared across the
// retrieval pipeline: chart-of-accounts records, journal entries, and
// document-analysis results coming from the external OCR service.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookType identifies the accounting book an operation belongs to.
type BookType string

const (
	BookPurchases BookType = "PURCHASES"
	BookSales     BookType = "SALES"
	BookGeneral   BookType = "GENERAL"
)

// Side is the normal balance side of an account.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Account is one chart-of-accounts record. Type and NormalSide may be
// empty for imported charts; consumers must tolerate missing values.
type Account struct {
	ID         int64
	Code       string
	Name       string
	Type       string // ASSET, LIABILITY, EQUITY, INCOME, EXPENSE
	NormalSide Side
	Active     bool
	Synced     bool
}

// JournalLine is a single debit or credit within a journal entry.
// At most one of Debit/Credit is nonzero.
type JournalLine struct {
	AccountID   int64           `json:"accountId"`
	AccountCode string          `json:"accountCode,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

// JournalEntry is a posted double-entry record.
type JournalEntry struct {
	ID          int64
	Date        time.Time
	BookType    BookType
	Description string
	Lines       []JournalLine
	Synced      bool
}

// DocumentAnalysis is the read-only result produced by the external
// document-intelligence service for a source document (invoice,
// crypto-exchange receipt). All fields are optional; a zero value means
// the extractor found nothing for that field.
type DocumentAnalysis struct {
	VendorName string
	Amount     decimal.Decimal
	Currency   string
	Date       time.Time
	RawText    string
}
