package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/applytrak/applytrak/internal/types"
)

// User is a users row.
type User struct {
	ID          int64     `json:"id"`
	ExternalID  uuid.UUID `json:"external_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// Name is the display name, falling back to the email's local part.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	for i, r := range u.Email {
		if r == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

// RoleAdmin marks users allowed into the admin dashboard.
const RoleAdmin = "admin"

// SourceCount is the number of applications from one job source.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// ApplicationStats are the counts used by digest emails.
type ApplicationStats struct {
	Total      int                  `json:"total"`
	ThisWeek   int                  `json:"this_week"`
	ThisMonth  int                  `json:"this_month"`
	LastMonth  int                  `json:"last_month"`
	ByStatus   map[types.Status]int `json:"by_status"`
	TopSources []SourceCount        `json:"top_sources"`
}

// ResponseRate is the share of applications that reached an interview or an offer, in percent.
func (s ApplicationStats) ResponseRate() int {
	if s.Total == 0 {
		return 0
	}
	responded := s.ByStatus[types.StatusInterview] + s.ByStatus[types.StatusOffer]
	return responded * 100 / s.Total
}

// Recipient is a user opted in to a digest.
type Recipient struct {
	User
	Goals types.Goals `json:"goals"`
}

// Windows are the date bounds of the current week (from Sunday) and month, and the previous month.
type Windows struct {
	WeekStart      time.Time
	MonthStart     time.Time
	LastMonthStart time.Time
}

// WindowsAt computes the windows containing now, in now's location.
func WindowsAt(now time.Time) Windows {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return Windows{
		WeekStart:      today.AddDate(0, 0, -int(today.Weekday())),
		MonthStart:     monthStart,
		LastMonthStart: monthStart.AddDate(0, -1, 0),
	}
}
