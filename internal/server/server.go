// Package server hosts the email functions over HTTP: transactional sends, digests on demand,
// the preferences pages and the admin check.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/db"
	"github.com/applytrak/applytrak/internal/email"
	"github.com/applytrak/applytrak/internal/logging"
	"github.com/applytrak/applytrak/internal/metrics"
	"github.com/applytrak/applytrak/internal/notify"
	"github.com/applytrak/applytrak/internal/server/middleware"
	"github.com/applytrak/applytrak/internal/server/ratelimit"
	"github.com/applytrak/applytrak/internal/types"
	"github.com/applytrak/applytrak/internal/validation"
)

// Notifier is the email service the handlers drive. *notify.Service implements it.
type Notifier interface {
	Welcome(ctx context.Context, address, name string) (notify.Result, error)
	Milestone(ctx context.Context, address string, milestone int) (notify.Result, error)
	InterviewScheduled(ctx context.Context, address string, d email.InterviewData) (notify.Result, error)
	WeeklyGoals(ctx context.Context, address string) (notify.Result, error)
	MonthlyAnalytics(ctx context.Context, address string) (notify.Result, error)
	Announce(ctx context.Context, a notify.Announcement) (notify.BroadcastResult, error)
	PreferenceUser(ctx context.Context, eid string) (*db.User, types.EmailPreferences, error)
	UpdatePreferences(ctx context.Context, eid string, values url.Values, full bool) (*db.User, types.EmailPreferences, error)
	IsAdmin(ctx context.Context, externalID uuid.UUID) (bool, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration.
type Config struct {
	Port          int
	AllowedOrigin string            // CORS origin, "*" when empty
	RateLimit     *ratelimit.Config // nil uses ratelimit.LoadConfig
	Logger        *zap.Logger
}

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	notifier    Notifier
	pages       *email.Renderer
	tokens      middleware.TokenValidator
	pinger      Pinger
	rateLimiter *ratelimit.Limiter
	logger      *zap.Logger
	origin      string
}

// New creates a server. tokens validates bearer tokens for the admin routes; when nil every
// admin request is rejected. pinger may be nil.
func New(cfg Config, notifier Notifier, pages *email.Renderer, tokens middleware.TokenValidator, pinger Pinger) *Server {
	rl := cfg.RateLimit
	if rl == nil {
		rl = ratelimit.LoadConfig()
	}
	if tokens == nil {
		tokens = rejectAll{}
	}
	origin := cfg.AllowedOrigin
	if origin == "" {
		origin = "*"
	}

	s := &Server{
		notifier:    notifier,
		pages:       pages,
		tokens:      tokens,
		pinger:      pinger,
		rateLimiter: ratelimit.NewLimiter(rl),
		logger:      logging.OrNop(cfg.Logger),
		origin:      origin,
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with every middleware applied.
func (s *Server) Handler() http.Handler {
	auth := middleware.AuthMiddleware(s.tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /welcome-email", s.handleWelcome)
	mux.HandleFunc("POST /milestone-email", s.handleMilestone)
	mux.HandleFunc("POST /interview-scheduled-email", s.handleInterviewScheduled)
	mux.HandleFunc("POST /weekly-goals-email", s.handleWeeklyGoals)
	mux.HandleFunc("POST /monthly-analytics-email", s.handleMonthlyAnalytics)
	mux.Handle("POST /achievements-announcement", auth(http.HandlerFunc(s.handleAnnouncement)))

	mux.HandleFunc("GET /email-preferences", s.handlePreferencesPage)
	mux.HandleFunc("POST /email-preferences", s.handlePreferencesSubmit)

	mux.Handle("GET /admin/verify", auth(http.HandlerFunc(s.handleAdminVerify)))

	return metrics.InstrumentHandler(s.withRateLimit(s.withLogging(s.withCORS(mux))))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.rateLimiter.Stop()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, apikey")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their per-endpoint budget with 429.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status and writes it. Validation failures carry their field messages;
// internal errors are logged and hidden.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)

	var invalid *validation.Error
	if errors.As(err, &invalid) {
		s.jsonResponse(w, status, map[string]any{"error": "validation failed", "fields": invalid.Fields})
		return
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		if status == http.StatusInternalServerError {
			s.errorResponse(w, status, "internal error")
			return
		}
	}
	s.errorResponse(w, status, err.Error())
}

// clientID identifies the caller by IP. X-Forwarded-For is not trusted.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":   "rate_limit_exceeded",
		"message": "Rate limit exceeded. Please try again later.",
		"limit":   info.Limit,
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", clientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

type rejectAll struct{}

func (rejectAll) ValidateToken(string) (middleware.UserIDGetter, error) {
	return nil, errors.New("token validation is not configured")
}
