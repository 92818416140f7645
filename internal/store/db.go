// Package store provides SQLite-backed reset history.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/setevik/orderwatch/internal/trigger"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps an SQLite connection for reset history storage.
type DB struct {
	db *sql.DB
}

// Open opens or creates an SQLite database at the given path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer connection to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Insert stores a new trigger record.
func (d *DB) Insert(tr *trigger.Trigger) error {
	_, err := d.db.Exec(`
		INSERT INTO resets (id, order_id, timestamp, line, outcome, diag_file, notified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.ID,
		tr.OrderID,
		tr.Timestamp.UTC().Format(time.RFC3339Nano),
		tr.Line,
		string(tr.Outcome),
		tr.DiagFile,
		tr.Notified,
	)
	if err != nil {
		return fmt.Errorf("inserting trigger: %w", err)
	}
	return nil
}

// MarkNotified marks a trigger as having been sent to Telegram.
func (d *DB) MarkNotified(id string) error {
	_, err := d.db.Exec(`UPDATE resets SET notified = TRUE WHERE id = ?`, id)
	return err
}

// QueryFilter controls which triggers are returned by Query.
type QueryFilter struct {
	Since   time.Time
	Until   time.Time
	OrderID string
	Outcome string
	Limit   int
}

// Query returns triggers matching the filter, ordered by timestamp descending.
func (d *DB) Query(f QueryFilter) ([]*trigger.Trigger, error) {
	query := `SELECT id, order_id, timestamp, line, outcome, diag_file, notified
		FROM resets WHERE 1=1`
	var args []interface{}

	if !f.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	if !f.Until.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, f.Until.UTC().Format(time.RFC3339Nano))
	}
	if f.OrderID != "" {
		query += " AND order_id = ?"
		args = append(args, f.OrderID)
	}
	if f.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, f.Outcome)
	}

	query += " ORDER BY timestamp DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying triggers: %w", err)
	}
	defer rows.Close()

	var triggers []*trigger.Trigger
	for rows.Next() {
		tr, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, tr)
	}
	return triggers, rows.Err()
}

// Count returns the total number of trigger records.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM resets`).Scan(&count)
	return count, err
}

// Purge deletes triggers older than the given retention duration.
func (d *DB) Purge(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339Nano)
	result, err := d.db.Exec(`DELETE FROM resets WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging old triggers: %w", err)
	}
	return result.RowsAffected()
}

func scanTrigger(rows *sql.Rows) (*trigger.Trigger, error) {
	var tr trigger.Trigger
	var tsStr string
	var line, diagFile sql.NullString

	err := rows.Scan(
		&tr.ID,
		&tr.OrderID,
		&tsStr,
		&line,
		&tr.Outcome,
		&diagFile,
		&tr.Notified,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning trigger row: %w", err)
	}

	tr.Timestamp, _ = time.Parse(time.RFC3339Nano, tsStr)
	tr.Line = line.String
	tr.DiagFile = diagFile.String
	return &tr, nil
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS resets (
			id        TEXT PRIMARY KEY,
			order_id  TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			line      TEXT,
			outcome   TEXT NOT NULL,
			diag_file TEXT,
			notified  BOOLEAN DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resets_order_ts ON resets(order_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_resets_ts ON resets(timestamp)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Debug("database schema up to date")
	return nil
}
