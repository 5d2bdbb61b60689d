package types

// Goal bounds enforced before goals are saved.
const (
	MinWeeklyGoal  = 1
	MaxWeeklyGoal  = 50
	MinMonthlyGoal = 1
	MaxMonthlyGoal = 200
	MinTotalGoal   = 1
	MaxTotalGoal   = 1000
)

// Goals are the user's application targets. One row per user.
type Goals struct {
	WeeklyGoal  int `json:"weeklyGoal" validate:"min=1,max=50"`
	MonthlyGoal int `json:"monthlyGoal" validate:"min=1,max=200"`
	TotalGoal   int `json:"totalGoal" validate:"min=1,max=1000"`
}

// DefaultGoals returns the goals a new user starts with.
func DefaultGoals() Goals {
	return Goals{WeeklyGoal: 5, MonthlyGoal: 20, TotalGoal: 100}
}

// GoalsPatch is a partial goals update; nil fields keep their current value.
type GoalsPatch struct {
	WeeklyGoal  *int `json:"weeklyGoal,omitempty"`
	MonthlyGoal *int `json:"monthlyGoal,omitempty"`
	TotalGoal   *int `json:"totalGoal,omitempty"`
}

// Apply returns g with the non-nil fields of p applied.
func (p GoalsPatch) Apply(g Goals) Goals {
	if p.WeeklyGoal != nil {
		g.WeeklyGoal = *p.WeeklyGoal
	}
	if p.MonthlyGoal != nil {
		g.MonthlyGoal = *p.MonthlyGoal
	}
	if p.TotalGoal != nil {
		g.TotalGoal = *p.TotalGoal
	}
	return g
}

// WindowProgress is the progress toward one goal window.
type WindowProgress struct {
	Count     int `json:"count"`
	Target    int `json:"target"`
	Percent   int `json:"percent"`
	Remaining int `json:"remaining"`
}

// GoalProgress is derived from applications and goals; it is never persisted.
type GoalProgress struct {
	Weekly      WindowProgress `json:"weekly"`
	Monthly     WindowProgress `json:"monthly"`
	Total       WindowProgress `json:"total"`
	DailyStreak int            `json:"dailyStreak"`
}
