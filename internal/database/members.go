package database

import (
	"context"
	"database/sql"
	"fmt"

	"gymaccess/internal/models"
)

// FindMember returns the first distinct membership row for memberNo.
// Duplicate rows of the same member are folded with MAX() on contact and
// quota columns. A nil member with a nil error means no row matched.
func (db *DB) FindMember(ctx context.Context, memberNo string) (*models.Member, error) {
	query := `
        SELECT DISTINCT
            client_policy_id,
            client_name,
            plan_type,
            gym_access,
            member_no,
            member_type,
            name,
            MAX(email) AS email,
            MAX(access_limit) AS access_limit,
            MAX(access_type) AS access_type
        FROM gym_members
        WHERE member_no = ?
        GROUP BY client_policy_id, client_name, plan_type, gym_access, member_no, member_type, name
        ORDER BY client_policy_id, client_name
        LIMIT 1
    `

	var (
		m          models.Member
		email      sql.NullString
		limit      sql.NullInt64
		accessType sql.NullString
	)
	err := db.QueryRowContext(ctx, query, memberNo).Scan(
		&m.ClientPolicyID,
		&m.ClientName,
		&m.PlanType,
		&m.GymAccess,
		&m.ID,
		&m.MemberType,
		&m.Name,
		&email,
		&limit,
		&accessType,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query membership: %w", err)
	}

	m.Email = email.String
	m.AccessLimit = int(limit.Int64)
	m.AccessType = accessType.String
	return &m, nil
}

// InsertMemberRow adds one row to the membership view. Used by seeding and tests;
// the service itself never writes membership data.
func (db *DB) InsertMemberRow(ctx context.Context, m *models.Member) error {
	query := `INSERT INTO gym_members (
                client_policy_id, client_name, plan_type, gym_access, member_no,
                member_type, name, email, access_limit, access_type
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		m.ClientPolicyID,
		m.ClientName,
		m.PlanType,
		m.GymAccess,
		m.ID,
		m.MemberType,
		m.Name,
		m.Email,
		m.AccessLimit,
		m.AccessType,
	)
	if err != nil {
		return fmt.Errorf("failed to insert member row: %w", err)
	}
	return nil
}

// ReplaceMembers swaps the whole membership view in one transaction.
func (db *DB) ReplaceMembers(ctx context.Context, members []models.Member) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM gym_members`); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO gym_members (
                client_policy_id, client_name, plan_type, gym_access, member_no,
                member_type, name, email, access_limit, access_type
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare member insert: %w", err)
	}
	defer stmt.Close()

	for i := range members {
		m := &members[i]
		if _, err := stmt.ExecContext(ctx,
			m.ClientPolicyID, m.ClientName, m.PlanType, m.GymAccess, m.ID,
			m.MemberType, m.Name, m.Email, m.AccessLimit, m.AccessType,
		); err != nil {
			return fmt.Errorf("failed to insert member %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}
