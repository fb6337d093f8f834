package storage

import (
	"database/sql"
	"fmt"

	"github.com/asiento-ai/asiento/internal/ledger"
)

const accountColumns = "id, code, name, type, normal_side, active, synced"

// SaveAccount inserts a new account or updates an existing one by code.
// A changed account is flagged unsynced so the next batch re-indexes it.
func (s *Store) SaveAccount(a ledger.Account) (int64, error) {
	_, err := s.db.Exec(`
		INSERT INTO accounts (code, name, type, normal_side, active, synced)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			normal_side = excluded.normal_side,
			active = excluded.active,
			synced = 0`,
		a.Code, a.Name, a.Type, string(a.NormalSide), boolToInt(a.Active))
	if err != nil {
		return 0, fmt.Errorf("saving account %s: %w", a.Code, err)
	}

	// On conflict-update LastInsertId does not reflect the row; resolve
	// by code instead.
	var id int64
	if err := s.db.QueryRow("SELECT id FROM accounts WHERE code = ?", a.Code).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolving account id for %s: %w", a.Code, err)
	}
	return id, nil
}

// FindAccountByID returns a single account or ErrNotFound.
func (s *Store) FindAccountByID(id int64) (ledger.Account, error) {
	row := s.db.QueryRow("SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return ledger.Account{}, ErrNotFound
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("finding account %d: %w", id, err)
	}
	return a, nil
}

// FindUnsyncedAccounts returns all accounts whose chunks are missing or
// stale in the vector index.
func (s *Store) FindUnsyncedAccounts() ([]ledger.Account, error) {
	rows, err := s.db.Query("SELECT " + accountColumns + " FROM accounts WHERE synced = 0 ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("querying unsynced accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// MarkAccountSynced flips the synced flag on.
func (s *Store) MarkAccountSynced(id int64) error {
	return s.setAccountSynced(id, true)
}

// MarkAccountUnsynced flips the synced flag off.
func (s *Store) MarkAccountUnsynced(id int64) error {
	return s.setAccountSynced(id, false)
}

func (s *Store) setAccountSynced(id int64, synced bool) error {
	res, err := s.db.Exec("UPDATE accounts SET synced = ? WHERE id = ?", boolToInt(synced), id)
	if err != nil {
		return fmt.Errorf("updating sync flag for account %d: %w", id, err)
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

// MarkAllAccountsUnsynced flags every account for re-indexing.
func (s *Store) MarkAllAccountsUnsynced() error {
	if _, err := s.db.Exec("UPDATE accounts SET synced = 0"); err != nil {
		return fmt.Errorf("marking all accounts unsynced: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var a ledger.Account
	var side string
	var active, synced int
	if err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &side, &active, &synced); err != nil {
		return ledger.Account{}, err
	}
	a.NormalSide = ledger.Side(side)
	a.Active = active != 0
	a.Synced = synced != 0
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
