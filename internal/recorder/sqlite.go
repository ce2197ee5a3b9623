package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder writes cycle history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("sqlite recorder opened", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			cycle_id       TEXT PRIMARY KEY,
			fetched_at     INTEGER NOT NULL,
			status         TEXT NOT NULL,
			as_of          TEXT,
			duration_ms    INTEGER,
			requested      INTEGER,
			row_count      INTEGER,
			batches        INTEGER,
			failed_batches INTEGER,
			skipped        INTEGER,
			warnings       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(fetched_at)`,

		`CREATE TABLE IF NOT EXISTS snapshot_rows (
			cycle_id   TEXT NOT NULL,
			code       TEXT NOT NULL,
			name       TEXT,
			sector     TEXT,
			price      REAL,
			change_pct REAL,
			size       REAL,
			PRIMARY KEY (cycle_id, code)
		)`,

		`CREATE TABLE IF NOT EXISTS skipped_rows (
			cycle_id TEXT NOT NULL,
			code     TEXT NOT NULL,
			reason   TEXT NOT NULL,
			detail   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_skipped_cycle ON skipped_rows(cycle_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordCycle stores one cycle and its rows in a single transaction.
func (r *SQLiteRecorder) RecordCycle(ctx context.Context, rec *CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	asOf := ""
	if !rec.AsOf.IsZero() {
		asOf = rec.AsOf.Format("2006-01-02")
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO cycles
		(cycle_id, fetched_at, status, as_of, duration_ms, requested, row_count, batches, failed_batches, skipped, warnings)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rec.CycleID, rec.FetchedAt.Unix(), rec.Status, asOf, rec.Duration.Milliseconds(),
		rec.Requested, len(rec.Rows), rec.Batches, rec.FailedBatches, len(rec.Skips), rec.Warnings,
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	for _, row := range rec.Rows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_rows
			(cycle_id, code, name, sector, price, change_pct, size)
			VALUES (?,?,?,?,?,?,?)`,
			rec.CycleID, row.Code, row.Name, row.Sector, row.Price, row.ChangePct, row.Size,
		); err != nil {
			return fmt.Errorf("insert row %s: %w", row.Code, err)
		}
	}
	for _, s := range rec.Skips {
		if _, err := tx.ExecContext(ctx, `INSERT INTO skipped_rows
			(cycle_id, code, reason, detail) VALUES (?,?,?,?)`,
			rec.CycleID, s.Code, string(s.Reason), s.Detail,
		); err != nil {
			return fmt.Errorf("insert skip %s: %w", s.Code, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	slog.Info("closing sqlite recorder")
	return r.db.Close()
}
