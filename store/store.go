// Package store keeps the local payment history in SQLite: rails created
// from this machine and the most recent settlements.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"dataforge-hub/store/migrations"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// MaxSettlements is how many settlements are kept.
const MaxSettlements = 10

var (
	ErrAlreadyExists = errors.New("store: already exists")
	ErrNotFound      = errors.New("store: not found")
)

// Rail is a payment rail opened by one of the user's accounts.
type Rail struct {
	ID           string
	Payer        string
	Payee        string
	Validator    string
	MaxRate      string // base units per epoch, decimal
	LockupPeriod string // seconds, decimal
	TxHash       string
	CreatedAt    time.Time
}

// Settlement records one settle transaction.
type Settlement struct {
	RailID    string
	TxHash    string
	SettledAt time.Time
}

// Store persists payment history in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddRail records a newly created rail.
func (s *Store) AddRail(ctx context.Context, r Rail) error {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return fmt.Errorf("rail id is required")
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rails (rail_id, payer, payee, validator, max_rate, lockup_period, tx_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Payer, r.Payee, r.Validator, r.MaxRate, r.LockupPeriod, r.TxHash, toMillis(created),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("add rail: %w", err)
	}
	return nil
}

// ActiveRails returns the recorded rails, oldest first.
func (s *Store) ActiveRails(ctx context.Context) ([]Rail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rail_id, payer, payee, validator, max_rate, lockup_period, tx_hash, created_at
		 FROM rails ORDER BY created_at, rail_id`)
	if err != nil {
		return nil, fmt.Errorf("list rails: %w", err)
	}
	defer rows.Close()

	var out []Rail
	for rows.Next() {
		var r Rail
		var created int64
		if err := rows.Scan(&r.ID, &r.Payer, &r.Payee, &r.Validator, &r.MaxRate, &r.LockupPeriod, &r.TxHash, &created); err != nil {
			return nil, fmt.Errorf("scan rail: %w", err)
		}
		r.CreatedAt = fromMillis(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RemoveRail forgets a terminated rail.
func (s *Store) RemoveRail(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rails WHERE rail_id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove rail: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove rail: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddSettlement records a settlement and prunes all but the newest
// MaxSettlements entries.
func (s *Store) AddSettlement(ctx context.Context, st Settlement) error {
	settled := st.SettledAt
	if settled.IsZero() {
		settled = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add settlement: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO settlements (rail_id, tx_hash, settled_at) VALUES (?, ?, ?)`,
		st.RailID, st.TxHash, toMillis(settled),
	); err != nil {
		return fmt.Errorf("add settlement: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM settlements WHERE id NOT IN (
		   SELECT id FROM settlements ORDER BY id DESC LIMIT ?
		 )`, MaxSettlements,
	); err != nil {
		return fmt.Errorf("prune settlements: %w", err)
	}
	return tx.Commit()
}

// Settlements returns the settlement history, newest first.
func (s *Store) Settlements(ctx context.Context) ([]Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rail_id, tx_hash, settled_at FROM settlements ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	var out []Settlement
	for rows.Next() {
		var st Settlement
		var settled int64
		if err := rows.Scan(&st.RailID, &st.TxHash, &settled); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		st.SettledAt = fromMillis(settled)
		out = append(out, st)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
