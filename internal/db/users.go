package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/applytrak/applytrak/internal/types"
)

const userColumns = `id, external_id, email, display_name, role, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.DisplayName, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail returns the user with the given email, or nil when none exists.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// GetUserByExternalID returns the user with the given identity id, or nil when none exists.
func (db *DB) GetUserByExternalID(ctx context.Context, externalID uuid.UUID) (*User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by external id: %w", err)
	}
	return u, nil
}

// UpsertUser creates or refreshes a users row keyed by external id and returns it.
func (db *DB) UpsertUser(ctx context.Context, externalID uuid.UUID, email, displayName string) (*User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`INSERT INTO users (external_id, email, display_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (external_id) DO UPDATE SET email = $2, display_name = COALESCE(NULLIF($3, ''), users.display_name)
		 RETURNING `+userColumns,
		externalID, email, displayName))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

// DeleteUser removes a user and, by cascade, their rows.
func (db *DB) DeleteUser(ctx context.Context, userID int64) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// IsAdmin reports whether the identity holds the admin role. Unknown identities are not admins.
func (db *DB) IsAdmin(ctx context.Context, externalID uuid.UUID) (bool, error) {
	var isAdmin bool
	err := db.pool.QueryRow(ctx,
		`SELECT role = $2 FROM users WHERE external_id = $1`, externalID, RoleAdmin,
	).Scan(&isAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check admin role: %w", err)
	}
	return isAdmin, nil
}

// GetGoals returns the user's goals, or the defaults when none were saved.
func (db *DB) GetGoals(ctx context.Context, userID int64) (types.Goals, error) {
	var g types.Goals
	err := db.pool.QueryRow(ctx,
		`SELECT weekly_goal, monthly_goal, total_goal FROM goals WHERE user_id = $1`, userID,
	).Scan(&g.WeeklyGoal, &g.MonthlyGoal, &g.TotalGoal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.DefaultGoals(), nil
		}
		return types.Goals{}, fmt.Errorf("failed to get goals: %w", err)
	}
	return g, nil
}

// SaveGoals overwrites the user's goals.
func (db *DB) SaveGoals(ctx context.Context, userID int64, g types.Goals) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO goals (user_id, weekly_goal, monthly_goal, total_goal)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET weekly_goal = $2, monthly_goal = $3, total_goal = $4, updated_at = NOW()`,
		userID, g.WeeklyGoal, g.MonthlyGoal, g.TotalGoal)
	if err != nil {
		return fmt.Errorf("failed to save goals: %w", err)
	}
	return nil
}
