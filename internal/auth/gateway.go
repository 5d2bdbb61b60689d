// Package auth tracks the signed-in user. Gateway wraps the hosted identity provider and exposes
// IsAuthenticated, User, IsLoading and Error as state that subscribers (the admin guard, the
// store wiring) observe.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/logging"
	"github.com/applytrak/applytrak/internal/supabase"
	"github.com/applytrak/applytrak/internal/tasks"
	"github.com/applytrak/applytrak/internal/types"
)

// WelcomeEmailTimeout bounds the best-effort welcome email request.
const WelcomeEmailTimeout = 4 * time.Second

// Session is an authenticated session. AccessToken is empty while the email address awaits
// confirmation.
type Session struct {
	AccessToken string
	User        types.AuthUser
}

// Provider is the hosted identity service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password, displayName string) (*Session, error)
	ResetPassword(ctx context.Context, email string) error
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*types.AuthUser, error)
}

// Profiles stores the profile row of a new user.
type Profiles interface {
	UpsertProfile(ctx context.Context, s Session, consents types.PrivacyConsents) error
}

// WelcomeSender sends the welcome email.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, email, name string) error
}

// State is a snapshot of the gateway.
type State struct {
	IsAuthenticated bool            `json:"isAuthenticated"`
	User            *types.AuthUser `json:"user,omitempty"`
	IsLoading       bool            `json:"isLoading"`
	Error           string          `json:"error,omitempty"`
	AccessToken     string          `json:"-"`
}

// Gateway is safe for concurrent use.
type Gateway struct {
	provider Provider
	profiles Profiles
	welcome  WelcomeSender
	queue    *tasks.Queue
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	subscribers map[int]func(State)
	nextSub     int
}

// NewGateway creates a signed-out gateway. profiles and welcome may be nil.
func NewGateway(provider Provider, profiles Profiles, welcome WelcomeSender, queue *tasks.Queue, logger *zap.Logger) *Gateway {
	logger = logging.OrNop(logger)
	if queue == nil {
		queue = tasks.NewQueue(tasks.DefaultConcurrency, logger)
	}
	return &Gateway{
		provider:    provider,
		profiles:    profiles,
		welcome:     welcome,
		queue:       queue,
		logger:      logger,
		subscribers: make(map[int]func(State)),
	}
}

// State returns the current state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Subscribe registers fn to run after every state change and returns its cancel function.
func (g *Gateway) Subscribe(fn func(State)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.subscribers[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.subscribers, id)
	}
}

func (g *Gateway) set(fn func(*State)) {
	g.mu.Lock()
	fn(&g.state)
	snapshot := g.state
	subs := make([]func(State), 0, len(g.subscribers))
	for _, s := range g.subscribers {
		subs = append(subs, s)
	}
	g.mu.Unlock()

	for _, s := range subs {
		s(snapshot)
	}
}

func (g *Gateway) begin() {
	g.set(func(s *State) {
		s.IsLoading = true
		s.Error = ""
	})
}

func (g *Gateway) fail(err error) error {
	msg := Message(err)
	g.set(func(s *State) {
		s.IsLoading = false
		s.Error = msg
	})
	return err
}

func (g *Gateway) signedIn(session *Session) {
	user := session.User
	g.set(func(s *State) {
		s.IsLoading = false
		s.Error = ""
		s.IsAuthenticated = session.AccessToken != ""
		s.User = &user
		s.AccessToken = session.AccessToken
	})
}

// SignIn authenticates with email and password.
func (g *Gateway) SignIn(ctx context.Context, email, password string) error {
	g.begin()
	session, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return g.fail(err)
	}
	g.signedIn(session)
	g.logger.Info("signed in", zap.String("user_id", session.User.ID))
	return nil
}

// SignUp registers a user. On success it queues the welcome email and the profile upsert;
// neither can fail the sign-up.
func (g *Gateway) SignUp(ctx context.Context, email, password, displayName string, consents types.PrivacyConsents) error {
	g.begin()
	session, err := g.provider.SignUp(ctx, email, password, displayName)
	if err != nil {
		return g.fail(err)
	}
	g.signedIn(session)
	g.logger.Info("signed up", zap.String("user_id", session.User.ID), zap.Bool("confirmed", session.AccessToken != ""))

	if g.profiles != nil {
		s := *session
		g.queue.Submit("upsert-profile", 0, func(ctx context.Context) error {
			return g.profiles.UpsertProfile(ctx, s, consents)
		})
	}
	if g.welcome != nil {
		name := displayName
		g.queue.Submit("welcome-email", WelcomeEmailTimeout, func(ctx context.Context) error {
			return g.welcome.SendWelcome(ctx, email, name)
		})
	}
	return nil
}

// ResetPassword sends a password recovery email.
func (g *Gateway) ResetPassword(ctx context.Context, email string) error {
	g.begin()
	if err := g.provider.ResetPassword(ctx, email); err != nil {
		return g.fail(err)
	}
	g.set(func(s *State) { s.IsLoading = false })
	return nil
}

// SignOut ends the session. Local state is cleared even when the provider call fails.
func (g *Gateway) SignOut(ctx context.Context) error {
	token := g.State().AccessToken
	g.begin()
	err := g.provider.SignOut(ctx, token)
	if err != nil {
		g.logger.Warn("sign out failed at provider", zap.Error(err))
	}
	g.set(func(s *State) {
		*s = State{}
	})
	return err
}

// RestoreSession signs in with a cached access token.
func (g *Gateway) RestoreSession(ctx context.Context, accessToken string) error {
	g.begin()
	user, err := g.provider.GetUser(ctx, accessToken)
	if err != nil {
		g.set(func(s *State) { *s = State{} })
		return err
	}
	g.signedIn(&Session{AccessToken: accessToken, User: *user})
	return nil
}

// Wait blocks until queued side effects have finished.
func (g *Gateway) Wait() {
	g.queue.Wait()
}

// Message converts err to text fit for the user.
func Message(err error) string {
	var se *supabase.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return se.UserMessage()
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Check your connection and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
