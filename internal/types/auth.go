package types

// AuthUser is the client's cached copy of the hosted identity.
type AuthUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

// PrivacyConsents are captured at sign-up and persisted server-side.
type PrivacyConsents struct {
	Required  bool `json:"required"`
	CloudSync bool `json:"cloudSync"`
	Analytics bool `json:"analytics"`
	Marketing bool `json:"marketing"`
}

// EmailPreferences controls which emails a user receives.
type EmailPreferences struct {
	WeeklyGoals      bool `json:"weekly_goals"`
	MonthlyAnalytics bool `json:"monthly_analytics"`
	MilestoneEmails  bool `json:"milestone_emails"`
	TipsAndUpdates   bool `json:"tips_and_updates"`
	UnsubscribedAll  bool `json:"unsubscribed_all"`
}

// DefaultEmailPreferences is what a user gets before saving any preference.
func DefaultEmailPreferences() EmailPreferences {
	return EmailPreferences{
		WeeklyGoals:      true,
		MonthlyAnalytics: true,
		MilestoneEmails:  true,
		TipsAndUpdates:   true,
	}
}

// Allows reports whether a given email kind may be sent under these preferences.
// Transactional kinds (welcome, interview) are always allowed unless unsubscribed from all.
func (p EmailPreferences) Allows(kind string) bool {
	if p.UnsubscribedAll {
		return false
	}
	switch kind {
	case "weekly_goals":
		return p.WeeklyGoals
	case "monthly_analytics":
		return p.MonthlyAnalytics
	case "milestone":
		return p.MilestoneEmails
	case "announcement":
		return p.TipsAndUpdates
	default:
		return true
	}
}
