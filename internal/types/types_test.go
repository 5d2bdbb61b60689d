package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusInterview.Valid())
	assert.False(t, Status("Ghosted").Valid())
}

func TestApplication_NeedsSync(t *testing.T) {
	app := Application{SyncStatus: SyncSynced, RemoteID: "42"}
	assert.False(t, app.NeedsSync())

	app.RemoteID = ""
	assert.True(t, app.NeedsSync(), "missing remote id counts as pending")

	app = Application{SyncStatus: SyncPending, RemoteID: "42"}
	assert.True(t, app.NeedsSync())
}

func TestApplication_AppliedOn(t *testing.T) {
	app := Application{DateApplied: "2026-03-09"}
	day, err := app.AppliedOn(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), day)

	app.DateApplied = "09/03/2026"
	_, err = app.AppliedOn(time.UTC)
	assert.Error(t, err)
}

func TestApplication_JSONUsesClientFieldNames(t *testing.T) {
	app := Application{
		ID:          "a1",
		Company:     "Acme",
		Position:    "Engineer",
		DateApplied: "2026-01-02",
		Type:        EmploymentRemote,
		Status:      StatusApplied,
		SyncStatus:  SyncPending,
	}
	data, err := json.Marshal(app)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dateApplied":"2026-01-02"`)
	assert.Contains(t, string(data), `"type":"Remote"`)
	assert.Contains(t, string(data), `"syncStatus":"pending"`)
	assert.NotContains(t, string(data), `"cloudId"`)
}

func TestGoalsPatch_Apply(t *testing.T) {
	weekly := 10
	got := GoalsPatch{WeeklyGoal: &weekly}.Apply(DefaultGoals())
	assert.Equal(t, Goals{WeeklyGoal: 10, MonthlyGoal: 20, TotalGoal: 100}, got)
}

func TestEmailPreferences_Allows(t *testing.T) {
	prefs := DefaultEmailPreferences()
	assert.True(t, prefs.Allows("weekly_goals"))
	assert.True(t, prefs.Allows("welcome"))

	prefs.WeeklyGoals = false
	assert.False(t, prefs.Allows("weekly_goals"))
	assert.True(t, prefs.Allows("monthly_analytics"))

	prefs.UnsubscribedAll = true
	assert.False(t, prefs.Allows("welcome"))
}
