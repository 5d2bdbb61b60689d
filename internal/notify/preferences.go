package notify

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/db"
	"github.com/applytrak/applytrak/internal/types"
)

// ErrInvalidLink is returned when a preference link carries no usable eid.
var ErrInvalidLink = errors.New("invalid or expired preferences link")

// Preference toggle keys as they appear in links and forms.
const (
	KeyWeeklyGoals      = "weekly_goals"
	KeyMonthlyAnalytics = "monthly_analytics"
	KeyMilestoneEmails  = "milestone_emails"
	KeyTipsAndUpdates   = "tips_and_updates"
	KeyUnsubscribe      = "unsubscribe"
)

func toggles(p *types.EmailPreferences) map[string]*bool {
	return map[string]*bool{
		KeyWeeklyGoals:      &p.WeeklyGoals,
		KeyMonthlyAnalytics: &p.MonthlyAnalytics,
		KeyMilestoneEmails:  &p.MilestoneEmails,
		KeyTipsAndUpdates:   &p.TipsAndUpdates,
	}
}

// HasChanges reports whether values carry any preference change.
func HasChanges(values url.Values) bool {
	if values.Get(KeyUnsubscribe) == "all" {
		return true
	}
	var p types.EmailPreferences
	for key := range toggles(&p) {
		if values.Has(key) {
			return true
		}
	}
	return false
}

// ApplyToggles returns p updated from link or form values. With full set, as for a submitted
// form, absent toggles mean off; otherwise only present toggles change. unsubscribe=all turns
// everything off. Turning any toggle on clears the unsubscribe-all flag.
func ApplyToggles(p types.EmailPreferences, values url.Values, full bool) types.EmailPreferences {
	if values.Get(KeyUnsubscribe) == "all" {
		return types.EmailPreferences{UnsubscribedAll: true}
	}
	for key, field := range toggles(&p) {
		raw, ok := values[key]
		if !ok {
			if full {
				*field = false
			}
			continue
		}
		on, err := strconv.ParseBool(raw[len(raw)-1])
		if err != nil {
			continue
		}
		*field = on
		if on {
			p.UnsubscribedAll = false
		}
	}
	return p
}

// PreferenceUser resolves the user behind an eid link parameter.
func (s *Service) PreferenceUser(ctx context.Context, eid string) (*db.User, types.EmailPreferences, error) {
	id, err := uuid.Parse(eid)
	if err != nil {
		return nil, types.EmailPreferences{}, ErrInvalidLink
	}
	u, err := s.store.GetUserByExternalID(ctx, id)
	if err != nil {
		return nil, types.EmailPreferences{}, err
	}
	if u == nil {
		return nil, types.EmailPreferences{}, ErrInvalidLink
	}
	prefs, err := s.store.GetEmailPreferences(ctx, u.ID)
	if err != nil {
		return nil, types.EmailPreferences{}, err
	}
	return u, prefs, nil
}

// UpdatePreferences applies values to the preferences of the eid's user and saves them.
func (s *Service) UpdatePreferences(ctx context.Context, eid string, values url.Values, full bool) (*db.User, types.EmailPreferences, error) {
	u, prefs, err := s.PreferenceUser(ctx, eid)
	if err != nil {
		return nil, types.EmailPreferences{}, err
	}
	updated := ApplyToggles(prefs, values, full)
	if err := s.store.UpsertEmailPreferences(ctx, u.ID, updated); err != nil {
		return nil, types.EmailPreferences{}, err
	}
	s.logger.Info("email preferences updated",
		zap.Int64("user_id", u.ID),
		zap.Bool("unsubscribed_all", updated.UnsubscribedAll))
	return u, updated, nil
}
