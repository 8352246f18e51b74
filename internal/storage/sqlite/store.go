// Package sqlite stores match snapshots in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/clinicsim/clinic-server-go/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a match has no stored snapshots.
var ErrNotFound = errors.New("snapshot not found")

const migrationTable = "schema_migrations"

// Store persists snapshots in SQLite. It is a game.SnapshotSink.
type Store struct {
	sqlDB *sql.DB
}

// MatchSummary is the newest stored version of one match.
type MatchSummary struct {
	MatchID   string
	Version   int64
	Turn      int
	Status    string
	UpdatedAt time.Time
}

// Open opens a SQLite snapshot store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveSnapshot stores snap. Re-saving a version is a no-op.
func (s *Store) SaveSnapshot(ctx context.Context, snap game.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.MatchID == "" {
		return fmt.Errorf("match id is required")
	}
	payload, err := game.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO match_snapshots (match_id, version, checksum, turn, status, created_at, payload)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.MatchID,
		snap.Version,
		strconv.FormatUint(snap.Checksum, 16),
		snap.State.Turn,
		string(snap.State.Status),
		snap.Timestamp.UTC().UnixMilli(),
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot %s@%d: %w", snap.MatchID, snap.Version, err)
	}
	return nil
}

// Latest returns the newest stored version of a match.
func (s *Store) Latest(ctx context.Context, matchID string) (game.Snapshot, error) {
	var payload []byte
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT payload FROM match_snapshots WHERE match_id = ? ORDER BY version DESC LIMIT 1`, matchID)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return game.Snapshot{}, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
		}
		return game.Snapshot{}, fmt.Errorf("load snapshot %s: %w", matchID, err)
	}
	return game.DecodeSnapshot(payload)
}

// History loads every stored version of a match into a replay.
func (s *Store) History(ctx context.Context, matchID string) (*game.Replay, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT payload FROM match_snapshots WHERE match_id = ? ORDER BY version`, matchID)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", matchID, err)
	}
	defer rows.Close()

	replay := game.NewReplay(matchID)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		snap, err := game.DecodeSnapshot(payload)
		if err != nil {
			return nil, err
		}
		replay.Record(snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if replay.Size() == 0 {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	return replay, nil
}

// Matches summarises every stored match, newest activity first.
func (s *Store) Matches(ctx context.Context) ([]MatchSummary, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT m.match_id, m.version, m.turn, m.status, m.created_at
FROM match_snapshots m
JOIN (SELECT match_id, MAX(version) AS version FROM match_snapshots GROUP BY match_id) latest
  ON latest.match_id = m.match_id AND latest.version = m.version`)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []MatchSummary
	for rows.Next() {
		var m MatchSummary
		var millis int64
		if err := rows.Scan(&m.MatchID, &m.Version, &m.Turn, &m.Status, &millis); err != nil {
			return nil, err
		}
		m.UpdatedAt = time.UnixMilli(millis).UTC()
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].MatchID < out[j].MatchID
	})
	return out, rows.Err()
}

// Delete removes every version of a match.
func (s *Store) Delete(ctx context.Context, matchID string) error {
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM match_snapshots WHERE match_id = ?`, matchID)
	return err
}

// applyMigrations executes each embedded .sql file at most once.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var found int
		err := sqlDB.QueryRow(`SELECT 1 FROM `+migrationTable+` WHERE name = ?`, file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		up := upSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upSection returns the SQL between the Up and Down markers.
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	start := strings.Index(content, up)
	if start == -1 {
		return content
	}
	content = content[start+len(up):]
	if end := strings.Index(content, down); end != -1 {
		return content[:end]
	}
	return content
}
