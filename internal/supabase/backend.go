package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/applytrak/applytrak/internal/types"
)

// Table names in the hosted database.
const (
	TableUsers            = "users"
	TableApplications     = "applications"
	TableGoals            = "goals"
	TableEmailPreferences = "email_preferences"
)

type userRow struct {
	ID          int64  `json:"id,omitempty"`
	ExternalID  string `json:"external_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

type applicationRow struct {
	ID          int64              `json:"id,omitempty"`
	UserID      int64              `json:"user_id"`
	LocalID     string             `json:"local_id"`
	Company     string             `json:"company"`
	Position    string             `json:"position"`
	DateApplied string             `json:"date_applied"`
	Type        string             `json:"type"`
	Status      string             `json:"status"`
	Location    string             `json:"location,omitempty"`
	Salary      string             `json:"salary,omitempty"`
	JobSource   string             `json:"job_source,omitempty"`
	JobURL      string             `json:"job_url,omitempty"`
	Notes       string             `json:"notes,omitempty"`
	Attachments []types.Attachment `json:"attachments"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type goalsRow struct {
	UserID      int64     `json:"user_id"`
	WeeklyGoal  int       `json:"weekly_goal"`
	MonthlyGoal int       `json:"monthly_goal"`
	TotalGoal   int       `json:"total_goal"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toApplicationRow(userID int64, app types.Application) applicationRow {
	attachments := app.Attachments
	if attachments == nil {
		attachments = []types.Attachment{}
	}
	return applicationRow{
		UserID:      userID,
		LocalID:     app.ID,
		Company:     app.Company,
		Position:    app.Position,
		DateApplied: app.DateApplied,
		Type:        string(app.Type),
		Status:      string(app.Status),
		Location:    app.Location,
		Salary:      app.Salary,
		JobSource:   app.JobSource,
		JobURL:      app.JobURL,
		Notes:       app.Notes,
		Attachments: attachments,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
	}
}

func (r applicationRow) toApplication() types.Application {
	return types.Application{
		ID:          r.LocalID,
		Company:     r.Company,
		Position:    r.Position,
		DateApplied: r.DateApplied,
		Type:        types.EmploymentType(r.Type),
		Status:      types.Status(r.Status),
		Location:    r.Location,
		Salary:      r.Salary,
		JobSource:   r.JobSource,
		JobURL:      r.JobURL,
		Notes:       r.Notes,
		Attachments: r.Attachments,
		SyncStatus:  types.SyncSynced,
		RemoteID:    strconv.FormatInt(r.ID, 10),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// UserData reads and writes one signed-in user's rows. Row-level security scopes
// every request to the owner of the access token.
type UserData struct {
	client     *Client
	token      string
	externalID string

	mu     sync.Mutex
	userID int64
}

// ForUser binds the client to a session.
func (c *Client) ForUser(accessToken, externalID string) *UserData {
	return &UserData{client: c, token: accessToken, externalID: externalID}
}

// UpsertProfile creates or refreshes the users row keyed by the external identity id.
func (u *UserData) UpsertProfile(ctx context.Context, email, displayName string) error {
	var rows []userRow
	err := u.client.From(TableUsers).
		WithToken(u.token).
		Upsert(userRow{ExternalID: u.externalID, Email: email, DisplayName: displayName}, "external_id").
		ExecuteInto(ctx, &rows)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	if len(rows) > 0 {
		u.mu.Lock()
		u.userID = rows[0].ID
		u.mu.Unlock()
	}
	return nil
}

// internalUserID resolves and caches the users.id of the bound identity.
func (u *UserData) internalUserID(ctx context.Context) (int64, error) {
	u.mu.Lock()
	cached := u.userID
	u.mu.Unlock()
	if cached != 0 {
		return cached, nil
	}

	var rows []userRow
	err := u.client.From(TableUsers).
		WithToken(u.token).
		Select("id,external_id,email").
		Eq("external_id", u.externalID).
		Limit(1).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return 0, fmt.Errorf("lookup user: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("no profile row for user %s", u.externalID)
	}

	u.mu.Lock()
	u.userID = rows[0].ID
	u.mu.Unlock()
	return rows[0].ID, nil
}

// InsertApplication stores app using its local id as the conflict key and returns the remote id.
func (u *UserData) InsertApplication(ctx context.Context, app types.Application) (string, error) {
	userID, err := u.internalUserID(ctx)
	if err != nil {
		return "", err
	}

	var rows []applicationRow
	err = u.client.From(TableApplications).
		WithToken(u.token).
		Upsert(toApplicationRow(userID, app), "local_id").
		ExecuteInto(ctx, &rows)
	if err != nil {
		return "", fmt.Errorf("insert application: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("insert application: empty response")
	}
	return strconv.FormatInt(rows[0].ID, 10), nil
}

// UpdateApplication overwrites the remote row of app.
func (u *UserData) UpdateApplication(ctx context.Context, app types.Application) error {
	if app.RemoteID == "" {
		return fmt.Errorf("update application %s: no remote id", app.ID)
	}
	userID, err := u.internalUserID(ctx)
	if err != nil {
		return err
	}

	row := toApplicationRow(userID, app)
	_, err = u.client.From(TableApplications).
		WithToken(u.token).
		Update(row).
		Eq("id", app.RemoteID).
		Execute(ctx)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return nil
}

// DeleteApplication removes the row with the given remote id.
func (u *UserData) DeleteApplication(ctx context.Context, remoteID string) error {
	_, err := u.client.From(TableApplications).
		WithToken(u.token).
		Delete().
		Eq("id", remoteID).
		Execute(ctx)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return nil
}

// ListApplications returns every application row of the user, newest first.
func (u *UserData) ListApplications(ctx context.Context) ([]types.Application, error) {
	userID, err := u.internalUserID(ctx)
	if err != nil {
		return nil, err
	}

	var rows []applicationRow
	err = u.client.From(TableApplications).
		WithToken(u.token).
		Select("*").
		Eq("user_id", userID).
		Order("date_applied", false).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	apps := make([]types.Application, 0, len(rows))
	for _, r := range rows {
		apps = append(apps, r.toApplication())
	}
	return apps, nil
}

// SaveGoals overwrites the user's goals row.
func (u *UserData) SaveGoals(ctx context.Context, g types.Goals) error {
	userID, err := u.internalUserID(ctx)
	if err != nil {
		return err
	}

	row := goalsRow{
		UserID:      userID,
		WeeklyGoal:  g.WeeklyGoal,
		MonthlyGoal: g.MonthlyGoal,
		TotalGoal:   g.TotalGoal,
		UpdatedAt:   time.Now().UTC(),
	}
	if _, err := u.client.From(TableGoals).WithToken(u.token).Upsert(row, "user_id").Execute(ctx); err != nil {
		return fmt.Errorf("save goals: %w", err)
	}
	return nil
}

// LoadGoals returns the user's goals; found is false when no row exists yet.
func (u *UserData) LoadGoals(ctx context.Context) (goals types.Goals, found bool, err error) {
	userID, err := u.internalUserID(ctx)
	if err != nil {
		return types.Goals{}, false, err
	}

	var rows []goalsRow
	err = u.client.From(TableGoals).
		WithToken(u.token).
		Select("user_id,weekly_goal,monthly_goal,total_goal,updated_at").
		Eq("user_id", userID).
		Limit(1).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return types.Goals{}, false, fmt.Errorf("load goals: %w", err)
	}
	if len(rows) == 0 {
		return types.Goals{}, false, nil
	}
	r := rows[0]
	return types.Goals{WeeklyGoal: r.WeeklyGoal, MonthlyGoal: r.MonthlyGoal, TotalGoal: r.TotalGoal}, true, nil
}

// IsAdmin asks the backend whether the bound user holds the admin role.
func (u *UserData) IsAdmin(ctx context.Context) (bool, error) {
	body, err := u.client.RPC(ctx, "is_admin", nil, u.token)
	if err != nil {
		return false, fmt.Errorf("verify admin: %w", err)
	}
	var isAdmin bool
	if err := json.Unmarshal(body, &isAdmin); err != nil {
		return false, fmt.Errorf("decode is_admin: %w", err)
	}
	return isAdmin, nil
}

// SaveConsents stores the privacy consents through the notification preferences RPC.
func (u *UserData) SaveConsents(ctx context.Context, consents types.PrivacyConsents) error {
	params := map[string]any{
		"p_external_id": u.externalID,
		"p_cloud_sync":  consents.CloudSync,
		"p_analytics":   consents.Analytics,
		"p_marketing":   consents.Marketing,
	}
	if _, err := u.client.RPC(ctx, "upsert_notification_preferences", params, u.token); err != nil {
		return fmt.Errorf("save consents: %w", err)
	}
	return nil
}
