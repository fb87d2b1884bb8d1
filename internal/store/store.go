// Package store keeps the history log in SQLite so it survives restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mlsorensen/bleframe"
	"github.com/mlsorensen/bleframe/pkg/frame"
)

const schema = `
CREATE TABLE IF NOT EXISTS measurements (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	device      TEXT    NOT NULL,
	seq_nb      INTEGER NOT NULL,
	type        TEXT,
	value       REAL    NOT NULL,
	received_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS measurements_device_id ON measurements (device, id);
`

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert appends one measurement for device.
func (s *Store) Insert(ctx context.Context, device string, m bleframe.Measurement) error {
	var typ sql.NullString
	if m.HasType() {
		typ = sql.NullString{String: m.Type, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO measurements (device, seq_nb, type, value, received_at) VALUES (?, ?, ?, ?, ?)`,
		device, int64(m.SeqNb), typ, m.Value, m.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

// List returns the most recent measurements for device, newest first.
// limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, device string, limit int) ([]bleframe.Measurement, error) {
	query := `SELECT seq_nb, type, value, received_at FROM measurements WHERE device = ? ORDER BY id DESC`
	args := []any{device}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	defer rows.Close()

	var out []bleframe.Measurement
	for rows.Next() {
		var (
			seq  int64
			typ  sql.NullString
			val  float64
			nano int64
		)
		if err := rows.Scan(&seq, &typ, &val, &nano); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		out = append(out, bleframe.Measurement{
			Reading: frame.Reading{
				Type:  typ.String,
				Value: val,
				SeqNb: uint16(seq),
			},
			Timestamp: time.Unix(0, nano),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	return out, nil
}

// Devices lists the device names that have stored measurements.
func (s *Store) Devices(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT device FROM measurements ORDER BY device`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Wipe deletes every measurement for device.
func (s *Store) Wipe(ctx context.Context, device string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM measurements WHERE device = ?`, device); err != nil {
		return fmt.Errorf("wipe measurements: %w", err)
	}
	return nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return "file::memory:?_foreign_keys=on", nil
	}

	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	// If caller provided something like "file:/data/app.db?x=y" as path, don't double-wrap
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	// Ensure directory exists for file-backed sqlite db
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
