package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

var (
	ErrDuplicateReference = errors.New("reference id already recorded")
	ErrEntryNotFound      = errors.New("access log entry not found")
)

// timestampLayout is fixed width so that stored timestamps compare lexicographically.
const timestampLayout = "2006-01-02 15:04:05.000000"

// DB wraps the SQLite store holding the membership view, the provider
// directory, the access log and the sheets sync queue.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.createTables(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return db, nil
}

func (db *DB) createTables() error {
	queries := []string{
		// Представление участников с правом доступа в зал
		`CREATE TABLE IF NOT EXISTS gym_members (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            client_policy_id TEXT NOT NULL DEFAULT '',
            client_name TEXT NOT NULL DEFAULT '',
            plan_type TEXT NOT NULL DEFAULT '',
            gym_access TEXT NOT NULL DEFAULT '',
            member_no TEXT NOT NULL,
            member_type TEXT NOT NULL DEFAULT '',
            name TEXT NOT NULL,
            email TEXT,
            access_limit INTEGER,
            access_type TEXT
        )`,
		// Справочник залов
		`CREATE TABLE IF NOT EXISTS gym_providers (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            state TEXT,
            provider_name TEXT
        )`,
		// Журнал посещений
		`CREATE TABLE IF NOT EXISTS gym_access_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            member_no TEXT NOT NULL,
            name TEXT NOT NULL,
            access_date TEXT NOT NULL,
            access_count INTEGER NOT NULL,
            gym TEXT NOT NULL,
            ref_id TEXT NOT NULL UNIQUE
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            entry_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_gym_members_member_no ON gym_members(member_no)`,
		`CREATE INDEX IF NOT EXISTS idx_gym_providers_state ON gym_providers(state)`,
		`CREATE INDEX IF NOT EXISTS idx_gym_access_log_member_date ON gym_access_log(member_no, access_date)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Ready reports whether the store answers queries.
func (db *DB) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(raw string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, raw, time.UTC)
}
