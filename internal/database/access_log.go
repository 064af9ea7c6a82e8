package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymaccess/internal/models"

	"github.com/mattn/go-sqlite3"
)

// CountAccessesInWindow counts member entries with start <= access_date < end.
func (db *DB) CountAccessesInWindow(ctx context.Context, memberNo string, start, end time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM gym_access_log
              WHERE member_no = ? AND access_date >= ? AND access_date < ?`
	var count int
	err := db.QueryRowContext(ctx, query, memberNo, formatTimestamp(start), formatTimestamp(end)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count accesses in window: %w", err)
	}
	return count, nil
}

// CountAccesses counts every entry ever recorded for the member.
func (db *DB) CountAccesses(ctx context.Context, memberNo string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gym_access_log WHERE member_no = ?`, memberNo).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count accesses: %w", err)
	}
	return count, nil
}

// ReferenceExists reports whether refID is already used by any entry.
func (db *DB) ReferenceExists(ctx context.Context, refID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gym_access_log WHERE ref_id = ?`, refID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check reference id: %w", err)
	}
	return count > 0, nil
}

// AppendAccessLog records a completed booking. The sequence count is the
// member's current total plus one, computed in the same transaction as the insert.
func (db *DB) AppendAccessLog(ctx context.Context, entry *models.AccessLogEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM gym_access_log WHERE member_no = ?`, entry.MemberID).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to count accesses in tx: %w", err)
	}

	if entry.AccessDate.IsZero() {
		entry.AccessDate = time.Now()
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO gym_access_log (member_no, name, access_date, access_count, gym, ref_id)
         VALUES (?, ?, ?, ?, ?, ?)`,
		entry.MemberID,
		entry.MemberName,
		formatTimestamp(entry.AccessDate),
		current+1,
		entry.Gym,
		entry.ReferenceID,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to insert access log entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit access log entry: %w", err)
	}

	entry.ID = id
	entry.AccessCount = current + 1
	return nil
}

const accessLogColumns = `id, member_no, name, access_date, access_count, gym, ref_id`

// GetAccessLogEntry returns an entry by id.
func (db *DB) GetAccessLogEntry(ctx context.Context, id int64) (*models.AccessLogEntry, error) {
	row := db.QueryRowContext(ctx, `SELECT `+accessLogColumns+` FROM gym_access_log WHERE id = ?`, id)
	entry, err := scanAccessLogEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access log entry: %w", err)
	}
	return entry, nil
}

// GetAccessLogByDateRange returns entries with start <= access_date < end ordered by time.
func (db *DB) GetAccessLogByDateRange(ctx context.Context, start, end time.Time) ([]*models.AccessLogEntry, error) {
	query := `SELECT ` + accessLogColumns + ` FROM gym_access_log
              WHERE access_date >= ? AND access_date < ?
              ORDER BY access_date ASC, id ASC`
	return db.queryAccessLog(ctx, query, formatTimestamp(start), formatTimestamp(end))
}

// FindAccessLogByReference returns the entry carrying refID, or nil when none exists.
func (db *DB) FindAccessLogByReference(ctx context.Context, refID string) (*models.AccessLogEntry, error) {
	row := db.QueryRowContext(ctx, `SELECT `+accessLogColumns+` FROM gym_access_log WHERE ref_id = ?`, refID)
	entry, err := scanAccessLogEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find access log entry by reference: %w", err)
	}
	return entry, nil
}

func (db *DB) queryAccessLog(ctx context.Context, query string, args ...any) ([]*models.AccessLogEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query access log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AccessLogEntry
	for rows.Next() {
		entry, err := scanAccessLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccessLogEntry(row rowScanner) (*models.AccessLogEntry, error) {
	var (
		e       models.AccessLogEntry
		dateStr string
	)
	if err := row.Scan(&e.ID, &e.MemberID, &e.MemberName, &dateStr, &e.AccessCount, &e.Gym, &e.ReferenceID); err != nil {
		return nil, err
	}
	t, err := parseTimestamp(dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse access date %s: %w", dateStr, err)
	}
	e.AccessDate = t
	return &e, nil
}
