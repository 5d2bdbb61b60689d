package db

import (
	"context"
	"fmt"
	"time"

	"github.com/applytrak/applytrak/internal/types"
)

// GetApplicationStats counts the user's applications in the windows containing now.
func (db *DB) GetApplicationStats(ctx context.Context, userID int64, now time.Time) (*ApplicationStats, error) {
	w := WindowsAt(now)
	stats := &ApplicationStats{ByStatus: make(map[types.Status]int, len(types.Statuses))}

	var applied, interview, offer, rejected int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE date_applied >= $2),
		        COUNT(*) FILTER (WHERE date_applied >= $3),
		        COUNT(*) FILTER (WHERE date_applied >= $4 AND date_applied < $3),
		        COUNT(*) FILTER (WHERE status = 'Applied'),
		        COUNT(*) FILTER (WHERE status = 'Interview'),
		        COUNT(*) FILTER (WHERE status = 'Offer'),
		        COUNT(*) FILTER (WHERE status = 'Rejected')
		 FROM applications WHERE user_id = $1`,
		userID, w.WeekStart, w.MonthStart, w.LastMonthStart,
	).Scan(&stats.Total, &stats.ThisWeek, &stats.ThisMonth, &stats.LastMonth, &applied, &interview, &offer, &rejected)
	if err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}
	stats.ByStatus[types.StatusApplied] = applied
	stats.ByStatus[types.StatusInterview] = interview
	stats.ByStatus[types.StatusOffer] = offer
	stats.ByStatus[types.StatusRejected] = rejected

	rows, err := db.pool.Query(ctx,
		`SELECT job_source, COUNT(*) AS n FROM applications
		 WHERE user_id = $1 AND job_source <> ''
		 GROUP BY job_source ORDER BY n DESC, job_source LIMIT 3`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		stats.TopSources = append(stats.TopSources, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source counts: %w", err)
	}
	return stats, nil
}

// InsertApplication stores an application for userID. Used by tests and the import command.
func (db *DB) InsertApplication(ctx context.Context, userID int64, app types.Application) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx,
		`INSERT INTO applications (user_id, local_id, company, position, date_applied, type, status, location, job_source, job_url, notes)
		 VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (local_id) DO UPDATE SET status = $7, updated_at = NOW()
		 RETURNING id`,
		userID, app.ID, app.Company, app.Position, app.DateApplied, string(app.Type), string(app.Status),
		app.Location, app.JobSource, app.JobURL, app.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert application: %w", err)
	}
	return id, nil
}
