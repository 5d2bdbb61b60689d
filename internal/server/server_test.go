package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applytrak/applytrak/internal/db"
	"github.com/applytrak/applytrak/internal/email"
	"github.com/applytrak/applytrak/internal/notify"
	"github.com/applytrak/applytrak/internal/server/ratelimit"
	"github.com/applytrak/applytrak/internal/types"
)

// mockNotifier records calls and answers from its fields.
type mockNotifier struct {
	user    *db.User
	prefs   types.EmailPreferences
	admins  map[uuid.UUID]bool
	sendErr error

	welcomed   []string
	milestones []int
	interviews []email.InterviewData
	announced  []notify.Announcement
	updates    []url.Values
	fullForms  []bool
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{
		user: &db.User{
			ID:          7,
			ExternalID:  uuid.MustParse("7d1f5a8e-2b3c-4d5e-8f90-123456789abc"),
			Email:       "ada@example.com",
			DisplayName: "Ada",
		},
		prefs:  types.DefaultEmailPreferences(),
		admins: make(map[uuid.UUID]bool),
	}
}

func (m *mockNotifier) result() (notify.Result, error) {
	if m.sendErr != nil {
		return notify.Result{}, m.sendErr
	}
	return notify.Result{Sent: true}, nil
}

func (m *mockNotifier) Welcome(_ context.Context, address, _ string) (notify.Result, error) {
	m.welcomed = append(m.welcomed, address)
	return m.result()
}

func (m *mockNotifier) Milestone(_ context.Context, address string, milestone int) (notify.Result, error) {
	if address != m.user.Email {
		return notify.Result{}, notify.ErrUserNotFound
	}
	m.milestones = append(m.milestones, milestone)
	return m.result()
}

func (m *mockNotifier) InterviewScheduled(_ context.Context, _ string, d email.InterviewData) (notify.Result, error) {
	m.interviews = append(m.interviews, d)
	return m.result()
}

func (m *mockNotifier) WeeklyGoals(_ context.Context, _ string) (notify.Result, error) {
	if !m.prefs.WeeklyGoals {
		return notify.Result{Reason: "disabled in preferences"}, nil
	}
	return m.result()
}

func (m *mockNotifier) MonthlyAnalytics(_ context.Context, _ string) (notify.Result, error) {
	return m.result()
}

func (m *mockNotifier) Announce(_ context.Context, a notify.Announcement) (notify.BroadcastResult, error) {
	m.announced = append(m.announced, a)
	return notify.BroadcastResult{Recipients: 3, Sent: 3}, nil
}

func (m *mockNotifier) PreferenceUser(_ context.Context, eid string) (*db.User, types.EmailPreferences, error) {
	if eid != m.user.ExternalID.String() {
		return nil, types.EmailPreferences{}, notify.ErrInvalidLink
	}
	return m.user, m.prefs, nil
}

func (m *mockNotifier) UpdatePreferences(ctx context.Context, eid string, values url.Values, full bool) (*db.User, types.EmailPreferences, error) {
	u, prefs, err := m.PreferenceUser(ctx, eid)
	if err != nil {
		return nil, types.EmailPreferences{}, err
	}
	m.updates = append(m.updates, values)
	m.fullForms = append(m.fullForms, full)
	m.prefs = notify.ApplyToggles(prefs, values, full)
	return u, m.prefs, nil
}

func (m *mockNotifier) IsAdmin(_ context.Context, externalID uuid.UUID) (bool, error) {
	return m.admins[externalID], nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, n *mockNotifier) (*Server, *JWTService) {
	t.Helper()
	renderer, err := email.NewRenderer(email.Links{
		AppURL:         "https://applytrak.test",
		PreferencesURL: "https://functions.applytrak.test/email-preferences",
	})
	require.NoError(t, err)

	jwtService := setupTestJWTService(t)
	s := New(Config{RateLimit: &ratelimit.Config{Enabled: false}}, n, renderer, jwtService.AsTokenValidator(), nil)
	t.Cleanup(s.rateLimiter.Stop)
	return s, jwtService
}

func do(t *testing.T, h http.Handler, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, newMockNotifier())

	w := do(t, s.Handler(), http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])

	s.pinger = failingPinger{}
	w = do(t, s.Handler(), http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, newMockNotifier())

	w := do(t, s.Handler(), http.MethodOptions, "/welcome-email", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestWelcomeEmail(t *testing.T) {
	n := newMockNotifier()
	s, _ := newTestServer(t, n)

	t.Run("json body", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodPost, "/welcome-email", EmailRequest{Email: "new@example.com", Name: "New"}, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res notify.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.True(t, res.Sent)
	})

	t.Run("query parameters", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodPost, "/welcome-email?email=q%40example.com&name=Q", nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("numeric name in query", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodPost, "/welcome-email?email=a%40b.co&name=007", nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("invalid email", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodPost, "/welcome-email", EmailRequest{Email: "nope"}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp struct {
			Fields map[string]string `json:"fields"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Enter a valid email address", resp.Fields["email"])
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/welcome-email", strings.NewReader("{"))
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.Equal(t, []string{"new@example.com", "q@example.com", "a@b.co"}, n.welcomed)
}

func TestWelcomeEmail_UpstreamFailure(t *testing.T) {
	n := newMockNotifier()
	n.sendErr = &email.SendError{StatusCode: 500, Body: "down"}
	s, _ := newTestServer(t, n)

	w := do(t, s.Handler(), http.MethodPost, "/welcome-email", EmailRequest{Email: "new@example.com"}, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestMilestoneEmail(t *testing.T) {
	n := newMockNotifier()
	s, _ := newTestServer(t, n)

	w := do(t, s.Handler(), http.MethodPost, "/milestone-email", MilestoneRequest{Email: "ada@example.com", Milestone: 10}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []int{10}, n.milestones)

	w = do(t, s.Handler(), http.MethodPost, "/milestone-email", MilestoneRequest{Email: "ghost@example.com", Milestone: 10}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s.Handler(), http.MethodPost, "/milestone-email", MilestoneRequest{Email: "ada@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s.Handler(), http.MethodPost, "/milestone-email?email=ada%40example.com&milestone=25", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []int{10, 25}, n.milestones)

	w = do(t, s.Handler(), http.MethodPost, "/milestone-email?email=ada%40example.com&milestone=ten", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFromQuery(t *testing.T) {
	var req EmailRequest
	require.NoError(t, fromQuery(url.Values{"email": {"a@b.co"}, "name": {"007"}}, &req))
	assert.Equal(t, EmailRequest{Email: "a@b.co", Name: "007"}, req)

	var m MilestoneRequest
	require.NoError(t, fromQuery(url.Values{"email": {"a@b.co"}, "milestone": {"50"}}, &m))
	assert.Equal(t, 50, m.Milestone)

	var bad MilestoneRequest
	err := fromQuery(url.Values{"milestone": {"5.5"}}, &bad)
	var br *ErrBadRequest
	require.ErrorAs(t, err, &br)
	assert.Contains(t, br.Message, "milestone")
}

func TestInterviewScheduledEmail(t *testing.T) {
	n := newMockNotifier()
	s, _ := newTestServer(t, n)

	body := InterviewRequest{
		Email:         "ada@example.com",
		Company:       "Acme",
		Position:      "Engineer",
		InterviewDate: "2026-10-20",
		InterviewType: "Video",
	}
	w := do(t, s.Handler(), http.MethodPost, "/interview-scheduled-email", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, n.interviews, 1)
	assert.Equal(t, "Acme", n.interviews[0].Company)
	assert.Equal(t, "Video", n.interviews[0].InterviewType)

	w = do(t, s.Handler(), http.MethodPost, "/interview-scheduled-email", InterviewRequest{Email: "ada@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDigestEmails(t *testing.T) {
	n := newMockNotifier()
	s, _ := newTestServer(t, n)

	w := do(t, s.Handler(), http.MethodPost, "/monthly-analytics-email", EmailRequest{Email: "ada@example.com"}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	n.prefs.WeeklyGoals = false
	w = do(t, s.Handler(), http.MethodPost, "/weekly-goals-email", EmailRequest{Email: "ada@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var res notify.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Sent)
	assert.Equal(t, "disabled in preferences", res.Reason)
}

func TestAnnouncement(t *testing.T) {
	n := newMockNotifier()
	s, jwtService := newTestServer(t, n)
	body := notify.Announcement{Title: "New: analytics", Body: "Charts are here.\n\nTry them."}

	t.Run("no token", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodPost, "/achievements-announcement", body, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("not an admin", func(t *testing.T) {
		token, err := jwtService.GenerateToken(uuid.New(), "user@example.com")
		require.NoError(t, err)
		w := do(t, s.Handler(), http.MethodPost, "/achievements-announcement", body, token)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin", func(t *testing.T) {
		adminID := uuid.New()
		n.admins[adminID] = true
		token, err := jwtService.GenerateToken(adminID, "admin@example.com")
		require.NoError(t, err)

		w := do(t, s.Handler(), http.MethodPost, "/achievements-announcement", body, token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res notify.BroadcastResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, 3, res.Sent)

		w = do(t, s.Handler(), http.MethodPost, "/achievements-announcement", notify.Announcement{Title: "No body"}, token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.Len(t, n.announced, 1)
}

func TestAdminVerify(t *testing.T) {
	n := newMockNotifier()
	s, jwtService := newTestServer(t, n)

	adminID := uuid.New()
	n.admins[adminID] = true

	for _, tt := range []struct {
		name string
		id   uuid.UUID
		want bool
	}{
		{"admin", adminID, true},
		{"regular user", uuid.New(), false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			token, err := jwtService.GenerateToken(tt.id, "someone@example.com")
			require.NoError(t, err)

			w := do(t, s.Handler(), http.MethodGet, "/admin/verify", nil, token)
			require.Equal(t, http.StatusOK, w.Code)

			var resp AdminVerifyResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.IsAdmin)
			assert.Equal(t, tt.id.String(), resp.UserID)
		})
	}

	w := do(t, s.Handler(), http.MethodGet, "/admin/verify", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPreferencesPage(t *testing.T) {
	n := newMockNotifier()
	s, _ := newTestServer(t, n)
	eid := n.user.ExternalID.String()

	t.Run("shows current preferences", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodGet, "/email-preferences?eid="+eid, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "ada@example.com")
		assert.Empty(t, n.updates)
	})

	t.Run("link toggle", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodGet, "/email-preferences?eid="+eid+"&weekly_goals=false", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Your preferences were saved.")
		assert.False(t, n.prefs.WeeklyGoals)
		assert.True(t, n.prefs.MonthlyAnalytics)
		assert.Equal(t, []bool{false}, n.fullForms)
	})

	t.Run("unsubscribe all", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodGet, "/email-preferences?eid="+eid+"&unsubscribe=all", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "unsubscribed from all")
		assert.True(t, n.prefs.UnsubscribedAll)
	})

	t.Run("invalid link", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodGet, "/email-preferences?eid=garbage", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid or has expired")
	})
}

func TestPreferencesSubmit(t *testing.T) {
	n := newMockNotifier()
	s, _ := newTestServer(t, n)

	form := url.Values{
		"eid":               {n.user.ExternalID.String()},
		"monthly_analytics": {"true"},
	}
	req := httptest.NewRequest(http.MethodPost, "/email-preferences", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []bool{true}, n.fullForms)
	assert.True(t, n.prefs.MonthlyAnalytics)
	assert.False(t, n.prefs.WeeklyGoals, "unchecked boxes are turned off")
	assert.False(t, n.prefs.MilestoneEmails)
}

func TestRateLimit(t *testing.T) {
	n := newMockNotifier()
	renderer, err := email.NewRenderer(email.Links{})
	require.NoError(t, err)

	s := New(Config{RateLimit: &ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		EndpointConfigs: []ratelimit.EndpointConfig{
			{Path: "/welcome-email", Method: http.MethodPost, Limit: 1, Window: time.Minute, Burst: 1},
		},
	}}, n, renderer, nil, nil)
	t.Cleanup(s.rateLimiter.Stop)

	body := EmailRequest{Email: "new@example.com"}
	w := do(t, s.Handler(), http.MethodPost, "/welcome-email", body, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = do(t, s.Handler(), http.MethodPost, "/welcome-email", body, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Len(t, n.welcomed, 1)
}
