// Package notify sends ApplyTrak's transactional and digest emails. It looks up the user,
// honours their email preferences, renders the message and hands it to the email API.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/applytrak/applytrak/internal/db"
	"github.com/applytrak/applytrak/internal/email"
	"github.com/applytrak/applytrak/internal/logging"
	"github.com/applytrak/applytrak/internal/metrics"
	"github.com/applytrak/applytrak/internal/store"
	"github.com/applytrak/applytrak/internal/types"
)

// DefaultConcurrency bounds parallel sends during a broadcast.
const DefaultConcurrency = 5

// ErrUserNotFound is returned when no user matches the given email or id.
var ErrUserNotFound = errors.New("user not found")

// Store is the subset of internal/db the service reads and writes.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	GetUserByExternalID(ctx context.Context, externalID uuid.UUID) (*db.User, error)
	GetEmailPreferences(ctx context.Context, userID int64) (types.EmailPreferences, error)
	UpsertEmailPreferences(ctx context.Context, userID int64, p types.EmailPreferences) error
	GetGoals(ctx context.Context, userID int64) (types.Goals, error)
	GetApplicationStats(ctx context.Context, userID int64, now time.Time) (*db.ApplicationStats, error)
	ListRecipients(ctx context.Context, kind string) ([]db.Recipient, error)
	IsAdmin(ctx context.Context, externalID uuid.UUID) (bool, error)
}

// Result tells the caller whether an email went out and, if not, why.
type Result struct {
	Sent   bool   `json:"sent"`
	Reason string `json:"reason,omitempty"`
}

// BroadcastResult summarises a fan-out send.
type BroadcastResult struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Announcement is an admin broadcast.
type Announcement struct {
	Title    string `json:"title" validate:"required,max=200"`
	Body     string `json:"body" validate:"required"`
	CTALabel string `json:"ctaLabel,omitempty" validate:"max=60"`
	CTAURL   string `json:"ctaUrl,omitempty" validate:"omitempty,url"`
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(l) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConcurrency bounds parallel sends during broadcasts and digests.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Service renders and sends emails.
type Service struct {
	store       Store
	renderer    *email.Renderer
	sender      email.Sender
	logger      *zap.Logger
	now         func() time.Time
	concurrency int
}

// New creates a service.
func New(st Store, renderer *email.Renderer, sender email.Sender, opts ...Option) *Service {
	s := &Service{
		store:       st,
		renderer:    renderer,
		sender:      sender,
		logger:      zap.NewNop(),
		now:         time.Now,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) userByEmail(ctx context.Context, address string) (*db.User, error) {
	u, err := s.store.GetUserByEmail(ctx, address)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// allowed loads the user's preferences and reports a skip reason when kind is turned off.
func (s *Service) allowed(ctx context.Context, u *db.User, kind email.Kind) (string, error) {
	prefs, err := s.store.GetEmailPreferences(ctx, u.ID)
	if err != nil {
		return "", err
	}
	switch {
	case prefs.UnsubscribedAll:
		return "unsubscribed", nil
	case !prefs.Allows(string(kind)):
		return "disabled in preferences", nil
	}
	return "", nil
}

func recipientOf(u *db.User) email.Recipient {
	return email.Recipient{Email: u.Email, Name: u.Name(), ExternalID: u.ExternalID.String()}
}

func (s *Service) deliver(ctx context.Context, kind email.Kind, msg email.Message) error {
	start := time.Now()
	err := s.sender.Send(ctx, msg)
	if err != nil {
		metrics.RecordEmail(string(kind), metrics.ResultFailed, time.Since(start))
		s.logger.Error("email send failed", zap.String("kind", string(kind)), zap.String("to", msg.To), zap.Error(err))
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}
	metrics.RecordEmail(string(kind), metrics.ResultSent, time.Since(start))
	s.logger.Info("email sent", zap.String("kind", string(kind)), zap.String("to", msg.To))
	return nil
}

// sendTo checks preferences, renders and delivers one email to a known user.
func (s *Service) sendTo(ctx context.Context, u *db.User, kind email.Kind, render func(email.Recipient) (email.Message, error)) (Result, error) {
	reason, err := s.allowed(ctx, u, kind)
	if err != nil {
		return Result{}, err
	}
	if reason != "" {
		metrics.RecordEmail(string(kind), metrics.ResultSkipped, 0)
		s.logger.Debug("email skipped", zap.String("kind", string(kind)), zap.Int64("user_id", u.ID), zap.String("reason", reason))
		return Result{Reason: reason}, nil
	}
	msg, err := render(recipientOf(u))
	if err != nil {
		return Result{}, err
	}
	if err := s.deliver(ctx, kind, msg); err != nil {
		return Result{}, err
	}
	return Result{Sent: true}, nil
}

// Welcome greets a new user. The profile row may not exist yet right after sign-up, so an
// unknown address still gets the email under the given name.
func (s *Service) Welcome(ctx context.Context, address, name string) (Result, error) {
	u, err := s.store.GetUserByEmail(ctx, address)
	if err != nil {
		return Result{}, err
	}
	if u == nil {
		msg, err := s.renderer.Welcome(email.Recipient{Email: address, Name: name})
		if err != nil {
			return Result{}, err
		}
		if err := s.deliver(ctx, email.KindWelcome, msg); err != nil {
			return Result{}, err
		}
		return Result{Sent: true}, nil
	}
	if u.DisplayName == "" && name != "" {
		u.DisplayName = name
	}
	return s.sendTo(ctx, u, email.KindWelcome, s.renderer.Welcome)
}

// Milestone celebrates reaching an application count.
func (s *Service) Milestone(ctx context.Context, address string, milestone int) (Result, error) {
	u, err := s.userByEmail(ctx, address)
	if err != nil {
		return Result{}, err
	}
	return s.sendTo(ctx, u, email.KindMilestone, func(r email.Recipient) (email.Message, error) {
		return s.renderer.Milestone(r, email.MilestoneData{Milestone: milestone})
	})
}

// InterviewScheduled congratulates the user on an interview.
func (s *Service) InterviewScheduled(ctx context.Context, address string, d email.InterviewData) (Result, error) {
	u, err := s.userByEmail(ctx, address)
	if err != nil {
		return Result{}, err
	}
	return s.sendTo(ctx, u, email.KindInterviewScheduled, func(r email.Recipient) (email.Message, error) {
		return s.renderer.InterviewScheduled(r, d)
	})
}

// WeeklyGoals sends the weekly progress email to one user.
func (s *Service) WeeklyGoals(ctx context.Context, address string) (Result, error) {
	u, err := s.userByEmail(ctx, address)
	if err != nil {
		return Result{}, err
	}
	goals, err := s.store.GetGoals(ctx, u.ID)
	if err != nil {
		return Result{}, err
	}
	return s.weekly(ctx, u, goals)
}

func (s *Service) weekly(ctx context.Context, u *db.User, goals types.Goals) (Result, error) {
	return s.sendTo(ctx, u, email.KindWeeklyGoals, func(r email.Recipient) (email.Message, error) {
		stats, err := s.store.GetApplicationStats(ctx, u.ID, s.now())
		if err != nil {
			return email.Message{}, err
		}
		p := ProgressFromStats(*stats, goals)
		return s.renderer.WeeklyGoals(r, p, store.ProgressMessage(p.Weekly))
	})
}

// ProgressFromStats builds goal progress from server-side counts. The daily streak needs
// per-day data and is left at zero.
func ProgressFromStats(stats db.ApplicationStats, goals types.Goals) types.GoalProgress {
	return types.GoalProgress{
		Weekly:  store.Window(stats.ThisWeek, goals.WeeklyGoal),
		Monthly: store.Window(stats.ThisMonth, goals.MonthlyGoal),
		Total:   store.Window(stats.Total, goals.TotalGoal),
	}
}

// MonthlyAnalytics sends the monthly report to one user.
func (s *Service) MonthlyAnalytics(ctx context.Context, address string) (Result, error) {
	u, err := s.userByEmail(ctx, address)
	if err != nil {
		return Result{}, err
	}
	return s.monthly(ctx, u)
}

// monthly reports on the month containing yesterday, so the run on the 1st covers the
// month that just ended.
func (s *Service) monthly(ctx context.Context, u *db.User) (Result, error) {
	return s.sendTo(ctx, u, email.KindMonthlyAnalytics, func(r email.Recipient) (email.Message, error) {
		ref := s.now().AddDate(0, 0, -1)
		stats, err := s.store.GetApplicationStats(ctx, u.ID, ref)
		if err != nil {
			return email.Message{}, err
		}
		return s.renderer.MonthlyAnalytics(r, ref.Month().String(), *stats)
	})
}

// WeeklyDigest sends the weekly email to every opted-in user.
func (s *Service) WeeklyDigest(ctx context.Context) (BroadcastResult, error) {
	return s.fanOut(ctx, email.KindWeeklyGoals, func(ctx context.Context, r db.Recipient) (Result, error) {
		return s.weekly(ctx, &r.User, r.Goals)
	})
}

// MonthlyDigest sends the monthly report to every opted-in user.
func (s *Service) MonthlyDigest(ctx context.Context) (BroadcastResult, error) {
	return s.fanOut(ctx, email.KindMonthlyAnalytics, func(ctx context.Context, r db.Recipient) (Result, error) {
		return s.monthly(ctx, &r.User)
	})
}

// Announce broadcasts an announcement to users who accept tips and updates.
func (s *Service) Announce(ctx context.Context, a Announcement) (BroadcastResult, error) {
	if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Body) == "" {
		return BroadcastResult{}, fmt.Errorf("announcement needs a title and a body")
	}
	return s.fanOut(ctx, email.KindAnnouncement, func(ctx context.Context, r db.Recipient) (Result, error) {
		return s.sendTo(ctx, &r.User, email.KindAnnouncement, func(rc email.Recipient) (email.Message, error) {
			return s.renderer.Announcement(rc, a.Title, a.Body, a.CTALabel, a.CTAURL)
		})
	})
}

// fanOut runs send for each recipient with bounded concurrency. A failed recipient is
// counted and logged; it never stops the others.
func (s *Service) fanOut(ctx context.Context, kind email.Kind, send func(context.Context, db.Recipient) (Result, error)) (BroadcastResult, error) {
	recipients, err := s.store.ListRecipients(ctx, string(kind))
	if err != nil {
		return BroadcastResult{}, err
	}

	var sent, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, r := range recipients {
		g.Go(func() error {
			res, err := send(gctx, r)
			switch {
			case err != nil:
				failed.Add(1)
				s.logger.Warn("broadcast send failed", zap.String("kind", string(kind)), zap.Int64("user_id", r.ID), zap.Error(err))
			case res.Sent:
				sent.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := BroadcastResult{
		Recipients: len(recipients),
		Sent:       int(sent.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	s.logger.Info("broadcast finished",
		zap.String("kind", string(kind)),
		zap.Int("recipients", out.Recipients),
		zap.Int("sent", out.Sent),
		zap.Int("failed", out.Failed))
	return out, ctx.Err()
}

// IsAdmin reports whether the identity holds the admin role.
func (s *Service) IsAdmin(ctx context.Context, externalID uuid.UUID) (bool, error) {
	return s.store.IsAdmin(ctx, externalID)
}
