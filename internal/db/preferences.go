package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/applytrak/applytrak/internal/types"
)

// GetEmailPreferences returns the user's preferences, or the defaults when none were saved.
func (db *DB) GetEmailPreferences(ctx context.Context, userID int64) (types.EmailPreferences, error) {
	var p types.EmailPreferences
	err := db.pool.QueryRow(ctx,
		`SELECT weekly_goals, monthly_analytics, milestone_emails, tips_and_updates, unsubscribed_all
		 FROM email_preferences WHERE user_id = $1`, userID,
	).Scan(&p.WeeklyGoals, &p.MonthlyAnalytics, &p.MilestoneEmails, &p.TipsAndUpdates, &p.UnsubscribedAll)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.DefaultEmailPreferences(), nil
		}
		return types.EmailPreferences{}, fmt.Errorf("failed to get email preferences: %w", err)
	}
	return p, nil
}

// UpsertEmailPreferences overwrites the user's preferences.
func (db *DB) UpsertEmailPreferences(ctx context.Context, userID int64, p types.EmailPreferences) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO email_preferences (user_id, weekly_goals, monthly_analytics, milestone_emails, tips_and_updates, unsubscribed_all)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   weekly_goals = $2, monthly_analytics = $3, milestone_emails = $4,
		   tips_and_updates = $5, unsubscribed_all = $6, updated_at = NOW()`,
		userID, p.WeeklyGoals, p.MonthlyAnalytics, p.MilestoneEmails, p.TipsAndUpdates, p.UnsubscribedAll)
	if err != nil {
		return fmt.Errorf("failed to upsert email preferences: %w", err)
	}
	return nil
}

// preferenceColumns maps an email kind to the column opting a user in.
var preferenceColumns = map[string]string{
	"weekly_goals":      "weekly_goals",
	"monthly_analytics": "monthly_analytics",
	"milestone":         "milestone_emails",
	"announcement":      "tips_and_updates",
}

// ListRecipients returns the users who accept emails of the given kind, with their goals.
// Users without a preferences row get the defaults, which accept everything.
func (db *DB) ListRecipients(ctx context.Context, kind string) ([]Recipient, error) {
	column, ok := preferenceColumns[kind]
	if !ok {
		return nil, fmt.Errorf("unknown email kind %q", kind)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT u.id, u.external_id, u.email, u.display_name, u.role, u.created_at,
		        COALESCE(g.weekly_goal, 5), COALESCE(g.monthly_goal, 20), COALESCE(g.total_goal, 100)
		 FROM users u
		 LEFT JOIN email_preferences p ON p.user_id = u.id
		 LEFT JOIN goals g ON g.user_id = u.id
		 WHERE COALESCE(p.unsubscribed_all, FALSE) = FALSE
		   AND COALESCE(p.`+column+`, TRUE) = TRUE
		 ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.ID, &r.ExternalID, &r.Email, &r.DisplayName, &r.Role, &r.CreatedAt,
			&r.Goals.WeeklyGoal, &r.Goals.MonthlyGoal, &r.Goals.TotalGoal); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recipients: %w", err)
	}
	return out, nil
}
