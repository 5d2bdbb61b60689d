// Package ui holds the ephemeral UI state of the client core: modal flags, the admin panel
// sub-state, the current view and the toast queue. Nothing here outlives a reload except the
// first-visit and welcome-tour flags kept in a kv.Store.
package ui

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/applytrak/applytrak/internal/kv"
)

// Modal names.
const (
	ModalLogin           = "login"
	ModalSignup          = "signup"
	ModalResetPassword   = "resetPassword"
	ModalEditApp         = "editApplication"
	ModalGoalSetting     = "goalSetting"
	ModalMilestone       = "milestone"
	ModalRecovery        = "recovery"
	ModalPrivacySettings = "privacySettings"
	ModalExport          = "export"
	ModalImport          = "import"
)

// authModals are opened one at a time by OpenAuthModal.
var authModals = []string{ModalLogin, ModalSignup, ModalResetPassword}

// Views.
const (
	ViewHome      = "home"
	ViewTracker   = "tracker"
	ViewAnalytics = "analytics"
	ViewGoals     = "goals"
	ViewAdmin     = "admin"
)

// Persisted flag keys.
const (
	KeyHasVisited      = "applytrak_has_visited"
	KeyWelcomeTourSeen = "applytrak_welcome_tour_seen"
)

// ToastType is the severity of a toast.
type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastWarning ToastType = "warning"
	ToastInfo    ToastType = "info"
)

// DefaultToastDuration is how long the rendering layer shows a toast unless told otherwise.
const DefaultToastDuration = 5 * time.Second

// ToastAction is an optional button on a toast.
type ToastAction struct {
	Label string `json:"label"`
	Name  string `json:"name"`
}

// Toast is a transient notification. Dismissal timing belongs to the renderer.
type Toast struct {
	ID       string        `json:"id"`
	Type     ToastType     `json:"type"`
	Message  string        `json:"message"`
	Action   *ToastAction  `json:"action,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Modal is the open flag plus whatever parameters the opener passed.
type Modal struct {
	IsOpen bool           `json:"isOpen"`
	Params map[string]any `json:"params,omitempty"`
}

// AdminState is the admin panel sub-state.
type AdminState struct {
	Authenticated  bool   `json:"authenticated"`
	DashboardOpen  bool   `json:"dashboardOpen"`
	CurrentSection string `json:"currentSection"`
}

// Snapshot is a copy of the UI state.
type Snapshot struct {
	Modals map[string]Modal `json:"modals"`
	Admin  AdminState       `json:"admin"`
	View   string           `json:"view"`
	Toasts []Toast          `json:"toasts"`
}

// Orchestrator owns the UI state. It is safe for concurrent use.
type Orchestrator struct {
	mu     sync.RWMutex
	modals map[string]Modal
	admin  AdminState
	view   string
	toasts []Toast
	flags  kv.Store
}

// New creates an orchestrator. flags may be nil, in which case persisted flags live in memory.
func New(flags kv.Store) *Orchestrator {
	if flags == nil {
		flags = kv.NewMemory()
	}
	return &Orchestrator{
		modals: make(map[string]Modal),
		view:   ViewHome,
		admin:  AdminState{CurrentSection: "overview"},
		flags:  flags,
	}
}

// OpenModal opens name with params. Other modals are left as they are.
func (o *Orchestrator) OpenModal(name string, params map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.modals[name] = Modal{IsOpen: true, Params: params}
}

// OpenAuthModal closes the other auth modals before opening name.
func (o *Orchestrator) OpenAuthModal(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range authModals {
		if m != name {
			delete(o.modals, m)
		}
	}
	o.modals[name] = Modal{IsOpen: true}
}

// CloseModal closes name and drops its params.
func (o *Orchestrator) CloseModal(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.modals, name)
}

// IsOpen reports whether name is open.
func (o *Orchestrator) IsOpen(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.modals[name].IsOpen
}

// ShowToast appends t to the queue and returns its id. Empty fields get defaults.
func (o *Orchestrator) ShowToast(t Toast) string {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Type == "" {
		t.Type = ToastInfo
	}
	if t.Duration == 0 {
		t.Duration = DefaultToastDuration
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.toasts = append(o.toasts, t)
	return t.ID
}

// DismissToast removes the toast with the given id.
func (o *Orchestrator) DismissToast(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, t := range o.toasts {
		if t.ID == id {
			o.toasts = append(o.toasts[:i:i], o.toasts[i+1:]...)
			return
		}
	}
}

// Toasts returns a copy of the queue.
func (o *Orchestrator) Toasts() []Toast {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]Toast(nil), o.toasts...)
}

// Admin returns the admin sub-state.
func (o *Orchestrator) Admin() AdminState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.admin
}

// SetAdmin replaces the admin sub-state in one update.
func (o *Orchestrator) SetAdmin(state AdminState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.admin = state
	if state.DashboardOpen {
		o.view = ViewAdmin
	}
}

// ResetAdmin clears admin state and leaves the admin view.
func (o *Orchestrator) ResetAdmin() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.admin = AdminState{CurrentSection: "overview"}
	if o.view == ViewAdmin {
		o.view = ViewHome
	}
}

// View returns the current view.
func (o *Orchestrator) View() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.view
}

// SetView switches the current view.
func (o *Orchestrator) SetView(view string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.view = view
}

// Snapshot returns a copy of the whole UI state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	modals := make(map[string]Modal, len(o.modals))
	for k, v := range o.modals {
		modals[k] = v
	}
	return Snapshot{
		Modals: modals,
		Admin:  o.admin,
		View:   o.view,
		Toasts: append([]Toast(nil), o.toasts...),
	}
}

// FirstVisit reports whether this is the first visit and records the visit.
func (o *Orchestrator) FirstVisit(ctx context.Context) (bool, error) {
	_, seen, err := o.flags.Get(ctx, KeyHasVisited)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}
	return true, o.flags.Set(ctx, KeyHasVisited, "true")
}

// ShouldShowWelcomeTour reports whether the tour has not been completed yet.
func (o *Orchestrator) ShouldShowWelcomeTour(ctx context.Context) (bool, error) {
	_, seen, err := o.flags.Get(ctx, KeyWelcomeTourSeen)
	if err != nil {
		return false, err
	}
	return !seen, nil
}

// MarkWelcomeTourSeen records that the tour was completed or skipped.
func (o *Orchestrator) MarkWelcomeTourSeen(ctx context.Context) error {
	return o.flags.Set(ctx, KeyWelcomeTourSeen, "true")
}
