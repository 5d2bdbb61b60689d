package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/email"
	"github.com/applytrak/applytrak/internal/notify"
	"github.com/applytrak/applytrak/internal/server/middleware"
	"github.com/applytrak/applytrak/internal/validation"
)

// maxBodyBytes caps request bodies; announcements are the largest payload.
const maxBodyBytes = 1 << 20

// EmailRequest is the body of the single-recipient email handlers.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name,omitempty" validate:"max=100"`
}

// MilestoneRequest is the body of /milestone-email.
type MilestoneRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Milestone int    `json:"milestone" validate:"min=1"`
}

// InterviewRequest is the body of /interview-scheduled-email.
type InterviewRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Company       string `json:"company" validate:"required,max=100"`
	Position      string `json:"position" validate:"required,max=100"`
	InterviewDate string `json:"interviewDate,omitempty"`
	InterviewType string `json:"interviewType,omitempty"`
	Notes         string `json:"notes,omitempty" validate:"max=2000"`
}

// AdminVerifyResponse is the body returned by /admin/verify.
type AdminVerifyResponse struct {
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
}

// decodeRequest reads a JSON body into dst, falling back to the query string for callers that
// pass parameters in the URL, then validates dst.
func decodeRequest(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return &ErrBadRequest{Message: "Invalid request body"}
	}

	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return &ErrBadRequest{Message: "Invalid request body: " + err.Error()}
		}
	} else if err := fromQuery(r.URL.Query(), dst); err != nil {
		return err
	}

	return validation.Struct(dst)
}

// fromQuery maps query parameters onto dst through its JSON field names. Values are
// converted to numbers only for integer fields, so "007" stays a string elsewhere.
func fromQuery(q url.Values, dst any) error {
	if len(q) == 0 {
		return &ErrBadRequest{Message: "Request body is required"}
	}
	ints := intFields(dst)
	fields := make(map[string]any, len(q))
	for key := range q {
		v := q.Get(key)
		if !ints[key] {
			fields[key] = v
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ErrBadRequest{Message: "Invalid query parameter " + key + ": must be a whole number"}
		}
		fields[key] = n
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return &ErrBadRequest{Message: "Invalid query parameters"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ErrBadRequest{Message: "Invalid query parameters: " + err.Error()}
	}
	return nil
}

// intFields lists the JSON names of the integer fields of the struct dst points to.
func intFields(dst any) map[string]bool {
	t := reflect.TypeOf(dst)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := make(map[string]bool)
	if t == nil || t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		switch f.Type.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out[name] = true
		}
	}
	return out
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeRequest(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.notifier.Welcome(r.Context(), req.Email, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleMilestone(w http.ResponseWriter, r *http.Request) {
	var req MilestoneRequest
	if err := decodeRequest(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.notifier.Milestone(r.Context(), req.Email, req.Milestone)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleInterviewScheduled(w http.ResponseWriter, r *http.Request) {
	var req InterviewRequest
	if err := decodeRequest(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.notifier.InterviewScheduled(r.Context(), req.Email, email.InterviewData{
		Company:       req.Company,
		Position:      req.Position,
		InterviewDate: req.InterviewDate,
		InterviewType: req.InterviewType,
		Notes:         req.Notes,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleWeeklyGoals(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeRequest(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.notifier.WeeklyGoals(r.Context(), req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleMonthlyAnalytics(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeRequest(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.notifier.MonthlyAnalytics(r.Context(), req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// handleAnnouncement broadcasts to every opted-in user. Only admins may call it.
func (s *Server) handleAnnouncement(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	isAdmin, err := s.notifier.IsAdmin(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !isAdmin {
		s.logger.Warn("announcement rejected", zap.String("user_id", userID.String()))
		s.fail(w, r, &ErrForbidden{})
		return
	}

	var req notify.Announcement
	if err := decodeRequest(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.notifier.Announce(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("announcement sent", zap.String("user_id", userID.String()), zap.Int("sent", res.Sent))
	s.jsonResponse(w, http.StatusOK, res)
}

// handleAdminVerify tells the caller whether their identity holds the admin role.
func (s *Server) handleAdminVerify(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	isAdmin, err := s.notifier.IsAdmin(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, AdminVerifyResponse{UserID: userID.String(), IsAdmin: isAdmin})
}

// handlePreferencesPage serves the preferences page of an email link. Toggles in the query
// (weekly_goals=false, unsubscribe=all, ...) are applied before the page is shown.
func (s *Server) handlePreferencesPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	eid := q.Get("eid")

	if notify.HasChanges(q) {
		u, prefs, err := s.notifier.UpdatePreferences(r.Context(), eid, q, false)
		if err != nil {
			s.preferencesError(w, r, err)
			return
		}
		s.htmlPage(w, http.StatusOK, email.PreferencesPage{
			Email:        u.Email,
			EID:          eid,
			Action:       r.URL.Path,
			Prefs:        prefs,
			Saved:        true,
			Unsubscribed: prefs.UnsubscribedAll,
		})
		return
	}

	u, prefs, err := s.notifier.PreferenceUser(r.Context(), eid)
	if err != nil {
		s.preferencesError(w, r, err)
		return
	}
	s.htmlPage(w, http.StatusOK, email.PreferencesPage{
		Email:  u.Email,
		EID:    eid,
		Action: r.URL.Path,
		Prefs:  prefs,
	})
}

// handlePreferencesSubmit saves the preferences form. Unchecked boxes are absent from the
// form and mean off.
func (s *Server) handlePreferencesSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.preferencesError(w, r, &ErrBadRequest{Message: "Invalid form submission"})
		return
	}

	eid := r.Form.Get("eid")
	u, prefs, err := s.notifier.UpdatePreferences(r.Context(), eid, r.PostForm, true)
	if err != nil {
		s.preferencesError(w, r, err)
		return
	}
	s.htmlPage(w, http.StatusOK, email.PreferencesPage{
		Email:        u.Email,
		EID:          eid,
		Action:       r.URL.Path,
		Prefs:        prefs,
		Saved:        true,
		Unsubscribed: prefs.UnsubscribedAll,
	})
}

func (s *Server) preferencesError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	msg := "This preferences link is invalid or has expired."
	if status >= http.StatusInternalServerError {
		s.logger.Error("preferences request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "We could not load your preferences. Please try again later."
	} else if !errors.Is(err, notify.ErrInvalidLink) {
		msg = err.Error()
	}
	s.htmlPage(w, status, email.PreferencesPage{Action: r.URL.Path, Error: msg})
}

// htmlPage renders the preferences page.
func (s *Server) htmlPage(w http.ResponseWriter, status int, page email.PreferencesPage) {
	if s.pages == nil {
		s.errorResponse(w, http.StatusInternalServerError, "preferences page unavailable")
		return
	}
	body, err := s.pages.PreferencesPage(page)
	if err != nil {
		s.logger.Error("failed to render preferences page", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
