package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tesoreria/internal/core"

	_ "modernc.org/sqlite"
)

const (
	selectAllSQL = `SELECT id, date, description, amount, kind
FROM movements
ORDER BY date DESC, created_at ASC, rowid ASC`

	deleteSQL = `DELETE FROM movements WHERE id = ?`

	insertSQL = `INSERT INTO movements (id, date, description, amount, kind)
VALUES (?, ?, ?, ?, ?)`

	upsertSQL = insertSQL + `
ON CONFLICT(id) DO UPDATE SET
	date = excluded.date,
	description = excluded.description,
	amount = excluded.amount,
	kind = excluded.kind,
	updated_at = CURRENT_TIMESTAMP`
)

// SQLiteRepository persists movements in a SQLite database. It implements
// ledger.Store.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %w", core.ErrStoreUnavailable, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", core.ErrStoreUnavailable, err)
	}
	// One writer at a time; SQLite serializes anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", core.ErrStoreUnavailable, err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

// LoadAll returns every movement, most recent date first.
func (r *SQLiteRepository) LoadAll(ctx context.Context) ([]core.Movement, error) {
	rows, err := r.db.QueryContext(ctx, selectAllSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: query movements: %w", core.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []core.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate movements: %w", core.ErrStoreUnavailable, err)
	}
	return out, nil
}

// Apply runs deletions and upserts in one transaction.
func (r *SQLiteRepository) Apply(ctx context.Context, deletions []string, upserts []core.Movement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", core.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	if len(deletions) > 0 {
		del, err := tx.PrepareContext(ctx, deleteSQL)
		if err != nil {
			return fmt.Errorf("%w: prepare delete: %w", core.ErrStoreUnavailable, err)
		}
		defer del.Close()
		for _, id := range deletions {
			if _, err := del.ExecContext(ctx, id); err != nil {
				return fmt.Errorf("%w: delete movement %s: %w", core.ErrStoreUnavailable, id, err)
			}
		}
	}

	if len(upserts) > 0 {
		up, err := tx.PrepareContext(ctx, upsertSQL)
		if err != nil {
			return fmt.Errorf("%w: prepare upsert: %w", core.ErrStoreUnavailable, err)
		}
		defer up.Close()
		for _, m := range upserts {
			if _, err := up.ExecContext(ctx, movementArgs(m)...); err != nil {
				return fmt.Errorf("%w: upsert movement %s: %w", core.ErrStoreUnavailable, m.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", core.ErrStoreUnavailable, err)
	}

	slog.DebugContext(ctx, "Movements applied to SQLite",
		"component", "storage",
		"deleted", len(deletions),
		"upserted", len(upserts))
	return nil
}

// Add inserts a single movement.
func (r *SQLiteRepository) Add(ctx context.Context, m core.Movement) error {
	if _, err := r.db.ExecContext(ctx, insertSQL, movementArgs(m)...); err != nil {
		return fmt.Errorf("%w: insert movement %s: %w", core.ErrStoreUnavailable, m.ID, err)
	}

	slog.InfoContext(ctx, "Movement saved to SQLite",
		"component", "storage",
		"id", m.ID,
		"kind", m.Kind,
		"amount", m.Amount.String(),
		"date", m.Date.String())
	return nil
}

// Count returns the number of stored movements.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count movements: %w", core.ErrStoreUnavailable, err)
	}
	return n, nil
}

func movementArgs(m core.Movement) []any {
	return []any{m.ID, m.Date.String(), m.Description, m.Amount.String(), string(m.Kind)}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMovement(s scanner) (core.Movement, error) {
	var id, date, desc, amount, kind string
	if err := s.Scan(&id, &date, &desc, &amount, &kind); err != nil {
		return core.Movement{}, fmt.Errorf("%w: scan movement: %w", core.ErrStoreUnavailable, err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Movement{}, fmt.Errorf("movement %s: %w", id, err)
	}
	a, err := core.MoneyFromString(amount)
	if err != nil {
		return core.Movement{}, fmt.Errorf("movement %s: %w", id, err)
	}
	return core.Movement{
		ID:          id,
		Date:        d,
		Description: desc,
		Amount:      a,
		Kind:        core.Kind(kind),
	}, nil
}
