package store

import (
	"fmt"
	"math"
	"time"

	"github.com/applytrak/applytrak/internal/types"
)

// CalculateProgress derives goal progress at now. Weeks start on Sunday and months are
// calendar months, both in now's location. Applications with an unparsable date count only
// toward the total.
func CalculateProgress(apps []types.Application, goals types.Goals, now time.Time) types.GoalProgress {
	loc := now.Location()
	today := startOfDay(now)
	weekStart := today.AddDate(0, 0, -int(today.Weekday()))
	weekEnd := weekStart.AddDate(0, 0, 7)

	var weekly, monthly int
	days := make(map[string]bool, len(apps))
	for i := range apps {
		applied, err := apps[i].AppliedOn(loc)
		if err != nil {
			continue
		}
		days[applied.Format(types.DateLayout)] = true
		if !applied.Before(weekStart) && applied.Before(weekEnd) {
			weekly++
		}
		if applied.Year() == today.Year() && applied.Month() == today.Month() {
			monthly++
		}
	}

	return types.GoalProgress{
		Weekly:      Window(weekly, goals.WeeklyGoal),
		Monthly:     Window(monthly, goals.MonthlyGoal),
		Total:       Window(len(apps), goals.TotalGoal),
		DailyStreak: streak(days, today),
	}
}

// ProgressMessage is the line shown under a goal bar.
func ProgressMessage(w types.WindowProgress) string {
	if w.Remaining == 0 {
		return "Goal reached!"
	}
	return fmt.Sprintf("%d more to go", w.Remaining)
}

// Window is the progress of count toward target.
func Window(count, target int) types.WindowProgress {
	w := types.WindowProgress{Count: count, Target: target}
	if target <= 0 {
		return w
	}
	w.Percent = min(100, int(math.Round(float64(count)/float64(target)*100)))
	w.Remaining = max(0, target-count)
	return w
}

// streak counts consecutive days with an application, walking back from today. A day
// without applications ends the streak, today included.
func streak(days map[string]bool, today time.Time) int {
	n := 0
	for d := today; days[d.Format(types.DateLayout)]; d = d.AddDate(0, 0, -1) {
		n++
	}
	return n
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
