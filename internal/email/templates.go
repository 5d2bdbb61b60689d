package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/applytrak/applytrak/internal/db"
	"github.com/applytrak/applytrak/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// Kind names an email template. Kinds double as preference keys, see types.EmailPreferences.Allows.
type Kind string

const (
	KindWelcome            Kind = "welcome"
	KindMilestone          Kind = "milestone"
	KindInterviewScheduled Kind = "interview_scheduled"
	KindWeeklyGoals        Kind = "weekly_goals"
	KindMonthlyAnalytics   Kind = "monthly_analytics"
	KindAnnouncement       Kind = "announcement"
)

var kinds = []Kind{
	KindWelcome, KindMilestone, KindInterviewScheduled,
	KindWeeklyGoals, KindMonthlyAnalytics, KindAnnouncement,
}

// Message is a rendered email ready to send.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Recipient identifies who an email is for. ExternalID feeds the preference links.
type Recipient struct {
	Email      string
	Name       string
	ExternalID string
}

// Links are the absolute URLs emails point to.
type Links struct {
	AppURL         string
	PreferencesURL string
}

// Preferences returns the preferences page link for a user.
func (l Links) Preferences(externalID string) string {
	return l.preferenceLink(externalID, nil)
}

// Unsubscribe returns the one-click unsubscribe-all link for a user.
func (l Links) Unsubscribe(externalID string) string {
	return l.preferenceLink(externalID, url.Values{"unsubscribe": {"all"}})
}

// Toggle returns a link that sets one preference, e.g. weekly_goals=false.
func (l Links) Toggle(externalID, key string, on bool) string {
	return l.preferenceLink(externalID, url.Values{key: {fmt.Sprint(on)}})
}

func (l Links) preferenceLink(externalID string, extra url.Values) string {
	if l.PreferencesURL == "" || externalID == "" {
		return ""
	}
	q := url.Values{"eid": {externalID}}
	for k, v := range extra {
		q[k] = v
	}
	sep := "?"
	if strings.Contains(l.PreferencesURL, "?") {
		sep = "&"
	}
	return l.PreferencesURL + sep + q.Encode()
}

// MilestoneData fills the milestone template.
type MilestoneData struct {
	Milestone     int
	Message       string
	NextMilestone int
}

// InterviewData fills the interview-scheduled template.
type InterviewData struct {
	Company       string
	Position      string
	InterviewDate string
	InterviewType string
	Notes         string
}

// WeeklyData fills the weekly goals digest.
type WeeklyData struct {
	types.GoalProgress
	WeeklyMessage string
}

// StatusCount is one pipeline stage in the monthly digest.
type StatusCount struct {
	Status types.Status
	Count  int
}

// MonthlyData fills the monthly analytics digest.
type MonthlyData struct {
	Month    string
	Stats    db.ApplicationStats
	Change   string
	Statuses []StatusCount
}

// AnnouncementData fills an announcement broadcast.
type AnnouncementData struct {
	Title      string
	Paragraphs []string
	CTALabel   string
	CTAURL     string
}

// PreferencesPage fills the preferences HTML page.
type PreferencesPage struct {
	Email        string
	EID          string
	Action       string
	Prefs        types.EmailPreferences
	Saved        bool
	Unsubscribed bool
	Error        string
}

type view struct {
	Subject        string
	Heading        string
	Name           string
	AppURL         string
	PreferencesURL string
	UnsubscribeURL string
	Data           any
}

// Renderer turns template data into messages.
type Renderer struct {
	links       Links
	emails      map[Kind]*template.Template
	preferences *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer(links Links) (*Renderer, error) {
	r := &Renderer{links: links, emails: make(map[Kind]*template.Template, len(kinds))}
	for _, k := range kinds {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+string(k)+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", k, err)
		}
		r.emails[k] = t
	}
	t, err := template.ParseFS(templateFS, "templates/preferences.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse preferences template: %w", err)
	}
	r.preferences = t
	return r, nil
}

// Links returns the renderer's link configuration.
func (r *Renderer) Links() Links {
	return r.links
}

// Welcome renders the post-signup welcome email.
func (r *Renderer) Welcome(to Recipient) (Message, error) {
	return r.render(KindWelcome, to, "Welcome to ApplyTrak!", "Welcome aboard, "+to.Name, nil)
}

// Milestone renders the application-count celebration.
func (r *Renderer) Milestone(to Recipient, d MilestoneData) (Message, error) {
	if d.Message == "" {
		d.Message = MilestoneMessage(d.Milestone)
	}
	if d.NextMilestone == 0 {
		d.NextMilestone = NextMilestone(d.Milestone)
	}
	subject := fmt.Sprintf("🎉 You reached %d applications!", d.Milestone)
	return r.render(KindMilestone, to, subject, "Milestone unlocked", d)
}

// InterviewScheduled renders the interview congratulation.
func (r *Renderer) InterviewScheduled(to Recipient, d InterviewData) (Message, error) {
	subject := fmt.Sprintf("Interview scheduled with %s", d.Company)
	return r.render(KindInterviewScheduled, to, subject, "You landed an interview!", d)
}

// WeeklyGoals renders the weekly digest.
func (r *Renderer) WeeklyGoals(to Recipient, p types.GoalProgress, message string) (Message, error) {
	subject := fmt.Sprintf("Your week: %d of %d applications", p.Weekly.Count, p.Weekly.Target)
	return r.render(KindWeeklyGoals, to, subject, "Weekly progress", WeeklyData{GoalProgress: p, WeeklyMessage: message})
}

// MonthlyAnalytics renders the monthly digest.
func (r *Renderer) MonthlyAnalytics(to Recipient, month string, stats db.ApplicationStats) (Message, error) {
	d := MonthlyData{Month: month, Stats: stats, Change: monthChange(stats.ThisMonth, stats.LastMonth)}
	for _, s := range types.Statuses {
		d.Statuses = append(d.Statuses, StatusCount{Status: s, Count: stats.ByStatus[s]})
	}
	return r.render(KindMonthlyAnalytics, to, "Your "+month+" job search report", month+" report", d)
}

// Announcement renders a broadcast. Blank-line separated body text becomes paragraphs.
func (r *Renderer) Announcement(to Recipient, title, body, ctaLabel, ctaURL string) (Message, error) {
	d := AnnouncementData{Title: title, CTALabel: ctaLabel, CTAURL: ctaURL}
	for _, p := range strings.Split(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			d.Paragraphs = append(d.Paragraphs, p)
		}
	}
	if d.CTAURL != "" && d.CTALabel == "" {
		d.CTALabel = "Learn more"
	}
	return r.render(KindAnnouncement, to, title, title, d)
}

// PreferencesPage renders the standalone preferences page.
func (r *Renderer) PreferencesPage(p PreferencesPage) (string, error) {
	var buf bytes.Buffer
	if err := r.preferences.ExecuteTemplate(&buf, "page", p); err != nil {
		return "", fmt.Errorf("failed to render preferences page: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) render(kind Kind, to Recipient, subject, heading string, data any) (Message, error) {
	t, ok := r.emails[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown email kind %q", kind)
	}
	if to.Name == "" {
		to.Name = "there"
	}

	v := view{
		Subject:        subject,
		Heading:        heading,
		Name:           to.Name,
		AppURL:         r.links.AppURL,
		PreferencesURL: r.links.Preferences(to.ExternalID),
		UnsubscribeURL: r.links.Unsubscribe(to.ExternalID),
		Data:           data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		return Message{}, fmt.Errorf("failed to render %s email: %w", kind, err)
	}
	text, err := PlainText(buf.String())
	if err != nil {
		return Message{}, err
	}
	return Message{To: to.Email, Subject: subject, HTML: buf.String(), Text: text}, nil
}

// Milestones are the application counts worth celebrating.
var Milestones = []int{1, 5, 10, 25, 50, 100, 250, 500, 1000}

// IsMilestone reports whether count is one of Milestones.
func IsMilestone(count int) bool {
	for _, m := range Milestones {
		if m == count {
			return true
		}
	}
	return false
}

// NextMilestone returns the first milestone above count, or 0 past the last one.
func NextMilestone(count int) int {
	for _, m := range Milestones {
		if m > count {
			return m
		}
	}
	return 0
}

// MilestoneMessage is the encouragement line for a milestone.
func MilestoneMessage(count int) string {
	switch {
	case count <= 1:
		return "Every search starts with a first step, and you just took it."
	case count < 25:
		return "You are building real momentum."
	case count < 100:
		return "That is serious persistence. Keep it up!"
	default:
		return "Few job seekers get this far. Your next offer is getting closer."
	}
}

func monthChange(this, last int) string {
	if last == 0 {
		if this == 0 {
			return "0%"
		}
		return "new"
	}
	pct := (this - last) * 100 / last
	if pct > 0 {
		return fmt.Sprintf("+%d%%", pct)
	}
	return fmt.Sprintf("%d%%", pct)
}
