package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applytrak/applytrak/internal/types"
)

// 2026-10-14 is a Wednesday; its week starts on Sunday 2026-10-11.
const progressFixture = `{
	"applications": [
		{"company": "A", "position": "Engineer", "dateApplied": "2026-10-12", "type": "Remote"},
		{"company": "B", "position": "Engineer", "dateApplied": "2026-10-13", "type": "Remote"},
		{"company": "C", "position": "Engineer", "dateApplied": "2026-10-14", "type": "Remote"},
		{"company": "D", "position": "Engineer", "dateApplied": "2026-10-02", "type": "Onsite"},
		{"company": "E", "position": "Engineer", "dateApplied": "2026-09-30", "type": "Hybrid"}
	],
	"goals": {"weeklyGoal": 5, "monthlyGoal": 20, "totalGoal": 100}
}`

func TestProgressCommand_JSON(t *testing.T) {
	path := writeFile(t, "export.json", progressFixture)

	out, err := execute(t, "progress", path, "--date", "2026-10-14", "--json")
	require.NoError(t, err)

	var p types.GoalProgress
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, types.WindowProgress{Count: 3, Target: 5, Percent: 60, Remaining: 2}, p.Weekly)
	assert.Equal(t, types.WindowProgress{Count: 4, Target: 20, Percent: 20, Remaining: 16}, p.Monthly)
	assert.Equal(t, types.WindowProgress{Count: 5, Target: 100, Percent: 5, Remaining: 95}, p.Total)
	assert.Equal(t, 3, p.DailyStreak)
}

func TestProgressCommand_GoalOverride(t *testing.T) {
	path := writeFile(t, "export.json", progressFixture)

	out, err := execute(t, "progress", path, "--date", "2026-10-14", "--weekly-goal", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Goal reached!")
	assert.Contains(t, out, "16 more to go")
	assert.Contains(t, out, "Streak     3 day(s)")
}

func TestProgressCommand_DefaultGoals(t *testing.T) {
	path := writeFile(t, "apps.json", `[{"company": "A", "position": "Engineer", "dateApplied": "2026-10-14", "type": "Remote"}]`)

	out, err := execute(t, "progress", path, "--date", "2026-10-14", "--json")
	require.NoError(t, err)

	var p types.GoalProgress
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	defaults := types.DefaultGoals()
	assert.Equal(t, defaults.WeeklyGoal, p.Weekly.Target)
	assert.Equal(t, defaults.TotalGoal, p.Total.Target)
}

func TestProgressCommand_InvalidDate(t *testing.T) {
	path := writeFile(t, "apps.json", `[]`)

	_, err := execute(t, "progress", path, "--date", "14/10/2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --date")
}
