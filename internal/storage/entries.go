package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/asiento-ai/asiento/internal/ledger"
)

const entryColumns = "id, entry_date, book_type, description, lines, synced"

// SaveEntry inserts a posted journal entry and returns its id. New
// entries start unsynced; the posting flow triggers a single-entry
// resync when historical auto-sync is enabled.
func (s *Store) SaveEntry(e ledger.JournalEntry) (int64, error) {
	lines, err := json.Marshal(e.Lines)
	if err != nil {
		return 0, fmt.Errorf("marshalling lines: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO journal_entries (entry_date, book_type, description, lines, synced)
		VALUES (?, ?, ?, ?, 0)`,
		e.Date.UTC().Format("2006-01-02"), string(e.BookType), e.Description, string(lines))
	if err != nil {
		return 0, fmt.Errorf("saving journal entry: %w", err)
	}
	return res.LastInsertId()
}

// FindEntryByID returns a single journal entry or ErrNotFound.
func (s *Store) FindEntryByID(id int64) (ledger.JournalEntry, error) {
	row := s.db.QueryRow("SELECT "+entryColumns+" FROM journal_entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return ledger.JournalEntry{}, ErrNotFound
	}
	if err != nil {
		return ledger.JournalEntry{}, fmt.Errorf("finding entry %d: %w", id, err)
	}
	return e, nil
}

// FindUnsyncedEntries returns all journal entries pending indexing.
func (s *Store) FindUnsyncedEntries() ([]ledger.JournalEntry, error) {
	rows, err := s.db.Query("SELECT " + entryColumns + " FROM journal_entries WHERE synced = 0 ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("querying unsynced entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkEntrySynced flips the synced flag on.
func (s *Store) MarkEntrySynced(id int64) error {
	return s.setEntrySynced(id, true)
}

// MarkEntryUnsynced flips the synced flag off.
func (s *Store) MarkEntryUnsynced(id int64) error {
	return s.setEntrySynced(id, false)
}

func (s *Store) setEntrySynced(id int64, synced bool) error {
	res, err := s.db.Exec("UPDATE journal_entries SET synced = ? WHERE id = ?", boolToInt(synced), id)
	if err != nil {
		return fmt.Errorf("updating sync flag for entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllEntriesUnsynced flags every journal entry for re-indexing.
func (s *Store) MarkAllEntriesUnsynced() error {
	if _, err := s.db.Exec("UPDATE journal_entries SET synced = 0"); err != nil {
		return fmt.Errorf("marking all entries unsynced: %w", err)
	}
	return nil
}

func scanEntry(row rowScanner) (ledger.JournalEntry, error) {
	var e ledger.JournalEntry
	var date, book, lines string
	var synced int
	if err := row.Scan(&e.ID, &date, &book, &e.Description, &lines, &synced); err != nil {
		return ledger.JournalEntry{}, err
	}

	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ledger.JournalEntry{}, fmt.Errorf("parsing entry date %q: %w", date, err)
	}
	e.Date = t
	e.BookType = ledger.BookType(book)
	e.Synced = synced != 0

	if err := json.Unmarshal([]byte(lines), &e.Lines); err != nil {
		return ledger.JournalEntry{}, fmt.Errorf("unmarshalling lines for entry %d: %w", e.ID, err)
	}
	return e, nil
}
