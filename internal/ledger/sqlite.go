// Package ledger provides a SQLite-backed implementation of the transaction
// ledger consumed by the voice pipeline.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"voicedesk/internal/domain"
)

// Store implements ports.Ledger on top of SQLite. The controller guarantees
// at most one append per finalized utterance; SQLite serializes concurrent
// writers if the host runs more than one session.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates or opens the ledger database at path. ":memory:" is accepted
// for tests.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	store := &Store{db: db, log: log}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		recipient TEXT NOT NULL,
		amount REAL NOT NULL,
		category TEXT NOT NULL,
		source TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return nil
}

// Append records one transaction. Missing IDs and timestamps are filled in.
func (s *Store) Append(ctx context.Context, entry domain.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, created_at, description, recipient, amount, category, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CreatedAt, entry.Description, entry.Recipient, entry.Amount, entry.Category, entry.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	s.log.Debug("ledger entry appended",
		zap.String("id", entry.ID),
		zap.String("recipient", entry.Recipient),
		zap.Float64("amount", entry.Amount),
		zap.String("source", entry.Source),
	)
	return nil
}

// RecentEntries returns up to limit entries, newest first.
func (s *Store) RecentEntries(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, description, recipient, amount, category, source
		 FROM transactions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.CreatedAt, &entry.Description,
			&entry.Recipient, &entry.Amount, &entry.Category, &entry.Source); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger entries: %w", err)
	}
	return entries, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
