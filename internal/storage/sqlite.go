// Package storage provides SQLite-based persistence for purchases, played games
// and interstitial presentations.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/arcade-interstitial/internal/storekit"
)

// timestampLayout sorts lexicographically, so ORDER BY works on the TEXT column.
const timestampLayout = "2006-01-02 15:04:05.000000000"

// Store manages the SQLite database connection.
type Store struct {
	db *sql.DB
}

// TransactionEntry is a transaction as recorded in the ledger.
type TransactionEntry struct {
	ID                    int64
	TransactionIdentifier string
	ProductIdentifier     string
	Quantity              int
	State                 storekit.TransactionState
	Error                 string
	TransactionDate       time.Time
	CreatedAt             time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_id TEXT NOT NULL UNIQUE,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			state TEXT NOT NULL,
			error TEXT,
			transaction_date DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_product ON transactions(product_id, state);

		CREATE TABLE IF NOT EXISTS plays (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			route TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS presentations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			outcome TEXT NOT NULL,
			seconds_elapsed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_presentations_outcome ON presentations(outcome);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordTransaction inserts a transaction, or updates its state if the
// transaction identifier is already known.
func (s *Store) RecordTransaction(tx storekit.Transaction) error {
	if tx.TransactionIdentifier == "" {
		return errors.New("storage: transaction without identifier")
	}

	var errText sql.NullString
	if tx.Error != nil {
		errText = sql.NullString{String: tx.Error.Error(), Valid: true}
	}
	date := tx.TransactionDate
	if date.IsZero() {
		date = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO transactions (transaction_id, product_id, quantity, state, error, transaction_date)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(transaction_id) DO UPDATE SET
		   state = excluded.state,
		   error = excluded.error,
		   transaction_date = excluded.transaction_date`,
		tx.TransactionIdentifier,
		tx.Payment.ProductIdentifier,
		tx.Payment.Quantity,
		tx.TransactionState.String(),
		errText,
		date.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot record transaction: %w", err)
	}
	return nil
}

// Ensure Store can back a payment gateway.
var _ storekit.Ledger = (*Store)(nil)

// Transactions returns the most recent transactions, newest first.
func (s *Store) Transactions(limit int) ([]TransactionEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, transaction_id, product_id, quantity, state, error, transaction_date, created_at
		 FROM transactions
		 ORDER BY transaction_date DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query transactions: %w", err)
	}
	defer rows.Close()

	var entries []TransactionEntry
	for rows.Next() {
		var (
			e         TransactionEntry
			state     string
			errText   sql.NullString
			txDate    any
			createdAt any
		)
		if err := rows.Scan(&e.ID, &e.TransactionIdentifier, &e.ProductIdentifier, &e.Quantity,
			&state, &errText, &txDate, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}

		if e.State, err = storekit.ParseTransactionState(state); err != nil {
			return nil, fmt.Errorf("storage: row %d: %w", e.ID, err)
		}
		e.Error = errText.String
		e.TransactionDate = parseTimestamp(txDate)
		e.CreatedAt = parseTimestamp(createdAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return entries, nil
}

// HasPurchased reports whether productID was ever purchased or restored.
func (s *Store) HasPurchased(productID string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE product_id = ? AND state IN (?, ?)`,
		productID,
		storekit.TransactionPurchased.String(),
		storekit.TransactionRestored.String(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage: cannot query purchases: %w", err)
	}
	return n > 0, nil
}

// RecordPlay records that a game was started through route ("solo", "multiplayer").
func (s *Store) RecordPlay(route string) error {
	if _, err := s.db.Exec("INSERT INTO plays (route) VALUES (?)", route); err != nil {
		return fmt.Errorf("storage: cannot record play: %w", err)
	}
	return nil
}

// PlayCount returns how many games have been started.
func (s *Store) PlayCount() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM plays").Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: cannot count plays: %w", err)
	}
	return n, nil
}

// parseTimestamp handles both time.Time and string DATETIME columns.
func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}
