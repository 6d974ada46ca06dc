package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists audit records in a local sqlite database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default audit database location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "audit.db"
	}
	return filepath.Join(home, ".omnihost", "audit.db")
}

// Open opens (or creates) the audit database and ensures its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory '%s': %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database '%s': %w", path, err)
	}

	s := &Store{db: db}
	if err := s.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory store. Used in tests.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the audit table if it does not exist.
func (s *Store) EnsureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS invocations(
        id TEXT PRIMARY KEY,
        who TEXT,
        command TEXT,
        targets TEXT,
        succeeded INTEGER,
        failed INTEGER,
        started_at TIMESTAMP,
        wall_clock_ms INTEGER
    )`)
	if err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return nil
}

// Record implements Recorder.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations(id,who,command,targets,succeeded,failed,started_at,wall_clock_ms)
         VALUES (?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Who, rec.Command, rec.TargetList(), rec.Succeeded, rec.Failed, rec.StartedAt, rec.WallClockMs)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// ListRecent returns the most recent records, newest first.
func (s *Store) ListRecent(limit int) ([]Record, error) {
	return s.ListFiltered(limit, "", "")
}

// ListFiltered returns recent records filtered by target substring and
// command substring. Empty filters are ignored.
func (s *Store) ListFiltered(limit int, targetLike, cmdLike string) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []any{}
	if targetLike != "" {
		where += " AND targets LIKE ?"
		args = append(args, "%"+targetLike+"%")
	}
	if cmdLike != "" {
		where += " AND command LIKE ?"
		args = append(args, "%"+cmdLike+"%")
	}
	args = append(args, limit)

	rows, err := s.db.Query(
		`SELECT id,who,command,targets,succeeded,failed,started_at,wall_clock_ms
         FROM invocations WHERE 1=1`+where+` ORDER BY started_at DESC, id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var list []Record
	for rows.Next() {
		var rec Record
		var targets string
		if err := rows.Scan(&rec.ID, &rec.Who, &rec.Command, &targets,
			&rec.Succeeded, &rec.Failed, &rec.StartedAt, &rec.WallClockMs); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if targets != "" {
			rec.Targets = strings.Split(targets, ",")
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// Cleanup trims the table by retention days and maximum row count.
func (s *Store) Cleanup(retentionDays, maxRows int) error {
	if retentionDays > 0 {
		_, err := s.db.Exec(`DELETE FROM invocations WHERE started_at < datetime('now', ?)`,
			fmt.Sprintf("-%d days", retentionDays))
		if err != nil {
			return fmt.Errorf("failed to trim audit records by age: %w", err)
		}
	}
	if maxRows > 0 {
		_, err := s.db.Exec(
			`DELETE FROM invocations WHERE id IN (
                SELECT id FROM invocations ORDER BY started_at DESC, id DESC LIMIT -1 OFFSET ?
            )`, maxRows)
		if err != nil {
			return fmt.Errorf("failed to trim audit records by count: %w", err)
		}
	}
	return nil
}

// Compile-time assertion that Store satisfies Recorder.
var _ Recorder = (*Store)(nil)
