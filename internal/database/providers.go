package database

import (
	"context"
	"fmt"

	"gymaccess/internal/models"
)

// GetStates returns the distinct non-empty states of the provider directory.
func (db *DB) GetStates(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT state FROM gym_providers
              WHERE state IS NOT NULL AND state <> ''
              ORDER BY state`
	return db.queryStrings(ctx, query)
}

// GetProvidersByState returns the distinct provider names listed under state.
func (db *DB) GetProvidersByState(ctx context.Context, state string) ([]string, error) {
	query := `SELECT DISTINCT provider_name FROM gym_providers
              WHERE state = ? AND provider_name IS NOT NULL AND provider_name <> ''
              ORDER BY provider_name`
	return db.queryStrings(ctx, query, state)
}

// ProviderExists reports whether provider is listed under state.
func (db *DB) ProviderExists(ctx context.Context, state, provider string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM gym_providers WHERE state = ? AND provider_name = ?`,
		state, provider,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check provider: %w", err)
	}
	return count > 0, nil
}

// ReplaceProviders swaps the provider directory in one transaction.
func (db *DB) ReplaceProviders(ctx context.Context, providers []models.GymProvider) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM gym_providers`); err != nil {
		return fmt.Errorf("failed to clear providers: %w", err)
	}
	for _, p := range providers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gym_providers (state, provider_name) VALUES (?, ?)`,
			p.State, p.ProviderName,
		); err != nil {
			return fmt.Errorf("failed to insert provider %s: %w", p.ProviderName, err)
		}
	}

	return tx.Commit()
}

func (db *DB) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query directory: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan directory row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
