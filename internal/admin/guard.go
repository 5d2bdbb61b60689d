// Package admin opens the admin dashboard for users the backend confirms as admins.
// The guard only orchestrates: the privilege decision belongs to the backend, and any failure
// leaves the user a regular user.
package admin

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/logging"
	"github.com/applytrak/applytrak/internal/retry"
	"github.com/applytrak/applytrak/internal/ui"
)

// Phase is the guard's state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseChecking  Phase = "checking"
	PhaseConfirmed Phase = "admin-confirmed"
	PhaseNotAdmin  Phase = "not-admin"
	PhaseFailed    Phase = "failed"
)

// DefaultSection is the dashboard section opened on confirmation.
const DefaultSection = "overview"

// Verifier asks the backend whether the current user is an admin.
type Verifier interface {
	IsAdmin(ctx context.Context) (bool, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context) (bool, error)

func (f VerifierFunc) IsAdmin(ctx context.Context) (bool, error) { return f(ctx) }

// UI is the part of the UI state the guard drives.
type UI interface {
	Admin() ui.AdminState
	SetAdmin(state ui.AdminState)
	ResetAdmin()
	SetView(view string)
	ShowToast(t ui.Toast) string
}

// Config tunes the guard.
type Config struct {
	SettleDelay time.Duration
	Retry       retry.Policy
}

// DefaultConfig waits 500ms for auth to settle, then tries three times, 8s each, 1s apart.
func DefaultConfig() Config {
	return Config{
		SettleDelay: 500 * time.Millisecond,
		Retry: retry.Policy{
			MaxAttempts:    3,
			Delay:          time.Second,
			AttemptTimeout: 8 * time.Second,
		},
	}
}

// Guard runs at most one verification at a time.
type Guard struct {
	cfg    Config
	ui     UI
	logger *zap.Logger

	mu       sync.Mutex
	phase    Phase
	userID   string
	attempts int
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates an idle guard.
func New(cfg Config, view UI, logger *zap.Logger) *Guard {
	return &Guard{cfg: cfg, ui: view, logger: logging.OrNop(logger), phase: PhaseIdle}
}

// Phase returns the current phase.
func (g *Guard) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Attempts returns how many verification calls the current check has made.
func (g *Guard) Attempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts
}

// Observe feeds an authentication change to the guard. A new identity re-arms it; signing
// out cancels any running check and clears admin state.
func (g *Guard) Observe(authenticated bool, userID string, v Verifier) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !authenticated {
		if g.phase == PhaseIdle && g.userID == "" {
			return
		}
		g.stopLocked()
		g.phase = PhaseIdle
		g.userID = ""
		g.attempts = 0
		g.ui.ResetAdmin()
		return
	}

	if userID == g.userID && g.phase != PhaseIdle {
		return
	}
	g.stopLocked()
	g.userID = userID
	g.attempts = 0

	if g.ui.Admin().DashboardOpen || v == nil {
		g.phase = PhaseIdle
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	g.phase = PhaseChecking
	g.cancel = cancel
	g.done = done

	go func() {
		defer close(done)
		g.check(ctx, userID, v)
	}()
}

// stopLocked cancels the running check without waiting for it.
func (g *Guard) stopLocked() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

// Wait blocks until the current check, if any, has finished.
func (g *Guard) Wait() {
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Stop cancels any running check and waits for it.
func (g *Guard) Stop() {
	g.mu.Lock()
	g.stopLocked()
	g.mu.Unlock()
	g.Wait()
}

func (g *Guard) check(ctx context.Context, userID string, v Verifier) {
	if g.cfg.SettleDelay > 0 {
		timer := time.NewTimer(g.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	isAdmin, err := retry.Do(ctx, g.cfg.Retry, func(ctx context.Context) (bool, error) {
		g.mu.Lock()
		g.attempts++
		g.mu.Unlock()
		return v.IsAdmin(ctx)
	})

	g.mu.Lock()
	defer g.mu.Unlock()
	if ctx.Err() != nil || g.userID != userID {
		return
	}
	g.cancel = nil

	switch {
	case err != nil:
		g.phase = PhaseFailed
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			g.logger.Warn("admin verification failed", zap.String("user_id", userID), zap.Int("attempts", exhausted.Attempts), zap.Error(exhausted.Last))
		}
		g.ui.ShowToast(ui.Toast{
			Type:    ui.ToastWarning,
			Message: "Could not verify admin access. Continuing as a regular user.",
		})
		g.ui.SetView(ui.ViewHome)
	case !isAdmin:
		g.phase = PhaseNotAdmin
	default:
		g.phase = PhaseConfirmed
		g.ui.SetAdmin(ui.AdminState{Authenticated: true, DashboardOpen: true, CurrentSection: DefaultSection})
		g.ui.ShowToast(ui.Toast{Type: ui.ToastSuccess, Message: "Welcome back! Admin dashboard opened."})
		g.logger.Info("admin access confirmed", zap.String("user_id", userID))
	}
}
