package registry

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"wildcard-party-be/internal/service/game"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// SQLiteStore keeps every room as one JSON document row. A single connection
// serializes the read-merge-write transactions of Update.
type SQLiteStore struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{sqlDB: sqlDB}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) Insert(ctx context.Context, room game.Room) error {
	doc, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO rooms (code, doc, version, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		room.Code,
		string(doc),
		room.Version,
		toMillis(room.CreatedAt),
		toMillis(room.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeTaken
		}
		return unavailable("insert room", err)
	}

	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, code string) (game.Room, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT doc FROM rooms WHERE code = ?`, code)
	return scanRoom(row)
}

func (s *SQLiteStore) Update(ctx context.Context, code string, fn func(room *game.Room) error) (game.Room, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return game.Room{}, unavailable("begin update", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	room, err := scanRoom(tx.QueryRowContext(ctx, `SELECT doc FROM rooms WHERE code = ?`, code))
	if err != nil {
		return game.Room{}, err
	}

	if err := fn(&room); err != nil {
		return game.Room{}, err
	}

	doc, err := json.Marshal(room)
	if err != nil {
		return game.Room{}, fmt.Errorf("encode room %s: %w", code, err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE rooms SET doc = ?, version = ?, updated_at = ? WHERE code = ?`,
		string(doc),
		room.Version,
		toMillis(room.UpdatedAt),
		code,
	); err != nil {
		return game.Room{}, unavailable("update room", err)
	}

	if err := tx.Commit(); err != nil {
		return game.Room{}, unavailable("commit update", err)
	}

	return room, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, code string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM rooms WHERE code = ?`, code); err != nil {
		return unavailable("delete room", err)
	}
	return nil
}

func (s *SQLiteStore) Codes(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT code FROM rooms ORDER BY code`)
	if err != nil {
		return nil, unavailable("list rooms", err)
	}
	defer rows.Close()

	codes := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, unavailable("scan room code", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list rooms", err)
	}

	return codes, nil
}

func scanRoom(row *sql.Row) (game.Room, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return game.Room{}, game.ErrRoomNotFound
		}
		return game.Room{}, unavailable("read room", err)
	}

	var room game.Room
	if err := json.Unmarshal([]byte(doc), &room); err != nil {
		return game.Room{}, fmt.Errorf("decode room: %w", err)
	}

	// JSON null 会解成 nil map
	if room.Players == nil {
		room.Players = make(map[string]game.Player)
	}
	if room.Assignments == nil {
		room.Assignments = make(map[string]game.Assignment)
	}
	if room.Catalog.Disabled == nil {
		room.Catalog.Disabled = make(map[string]bool)
	}
	if room.Catalog.Used == nil {
		room.Catalog.Used = make(map[string]bool)
	}

	return room, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", game.ErrStorageUnavailable, op, err)
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

// applyMigrations runs each embedded file at most once, recording it in
// schema_migrations.
func applyMigrations(sqlDB *sql.DB) error {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	files := make([]string, 0, len(entries))
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

		content, err := fs.ReadFile(migrationFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upSection(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file,
			toMillis(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}

	return nil
}

func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"

	start := strings.Index(content, up)
	if start == -1 {
		return content
	}
	content = content[start+len(up):]

	if end := strings.Index(content, down); end != -1 {
		content = content[:end]
	}

	return content
}
