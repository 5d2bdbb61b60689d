// Package store is the client-side application state: the application list, goals and the
// filtered view. Mutations are commands reduced by Apply, a pure function returning the next
// state and the backend effects it implies; Store runs those effects and feeds their outcome
// back as commands.
package store

import (
	"context"
	"time"

	"github.com/applytrak/applytrak/internal/types"
	"github.com/applytrak/applytrak/internal/ui"
)

// Filter narrows the visible applications.
type Filter struct {
	Search string       `json:"search,omitempty"`
	Status types.Status `json:"status,omitempty"`
}

// State is a snapshot of the store. Slices are never modified in place once published.
type State struct {
	Applications []types.Application `json:"applications"`
	Goals        types.Goals         `json:"goals"`
	Filter       Filter              `json:"filter"`
	CloudSync    bool                `json:"cloudSync"`
	Error        string              `json:"error,omitempty"`
	FieldErrors  map[string]string   `json:"fieldErrors,omitempty"`
	SyncError    string              `json:"syncError,omitempty"`
}

// InitialState is the state of a fresh session.
func InitialState() State {
	return State{Goals: types.DefaultGoals()}
}

// Find returns the application with the given local id.
func (s State) Find(id string) (types.Application, bool) {
	if i := s.index(id); i >= 0 {
		return s.Applications[i], true
	}
	return types.Application{}, false
}

func (s State) index(id string) int {
	for i := range s.Applications {
		if s.Applications[i].ID == id {
			return i
		}
	}
	return -1
}

// PendingCount is the number of applications without a confirmed remote counterpart.
func (s State) PendingCount() int {
	n := 0
	for i := range s.Applications {
		if s.Applications[i].NeedsSync() {
			n++
		}
	}
	return n
}

// Command is a store mutation.
type Command interface {
	command()
}

// AddApplication appends a new application built from Input.
type AddApplication struct {
	ID    string
	Input types.ApplicationInput
	At    time.Time
}

// UpdateApplication edits an existing application.
type UpdateApplication struct {
	ID    string
	Patch types.ApplicationPatch
	At    time.Time
}

// UpdateStatus moves an application to another stage.
type UpdateStatus struct {
	ID     string
	Status types.Status
	At     time.Time
}

// DeleteApplications removes applications by local id. Unknown ids are ignored.
type DeleteApplications struct {
	IDs []string
}

// ImportApplications appends applications from an import file. Applications whose id is
// already present are skipped.
type ImportApplications struct {
	Applications []types.Application
	Goals        *types.Goals
	At           time.Time
}

// UpdateGoals overwrites the goals with Patch applied.
type UpdateGoals struct {
	Patch types.GoalsPatch
}

// SetApplications replaces the list with records loaded from the backend. Local records the
// backend has never seen are kept.
type SetApplications struct {
	Applications []types.Application
}

// SetGoals replaces the goals with values loaded from the backend.
type SetGoals struct {
	Goals types.Goals
}

// SetFilter changes the filtered view.
type SetFilter struct {
	Filter Filter
}

// SetCloudSync turns backend writes on or off.
type SetCloudSync struct {
	Enabled bool
}

// SetError records a backend failure for display.
type SetError struct {
	Message string
}

// AttachFiles merges Files into the attachments of an application. IDs holds one fresh
// attachment id per file.
type AttachFiles struct {
	ID    string
	Files []File
	IDs   []string
	At    time.Time
}

// MarkSynced records the outcome of a successful backend write. Version is the UpdatedAt
// of the record as sent; a record edited since stays pending. Inserted marks the outcome of
// an insert, whose remote row is removed again if the record was deleted meanwhile.
type MarkSynced struct {
	ID       string
	RemoteID string
	Version  time.Time
	Inserted bool
}

// MarkSyncFailed records a failed backend write. The record stays pending.
type MarkSyncFailed struct {
	ID  string
	Err string
}

func (AddApplication) command()     {}
func (UpdateApplication) command()  {}
func (UpdateStatus) command()       {}
func (AttachFiles) command()        {}
func (DeleteApplications) command() {}
func (ImportApplications) command() {}
func (UpdateGoals) command()        {}
func (SetApplications) command()    {}
func (SetGoals) command()           {}
func (SetFilter) command()          {}
func (SetCloudSync) command()       {}
func (SetError) command()           {}
func (MarkSynced) command()         {}
func (MarkSyncFailed) command()     {}

// Effect is a backend call implied by a command.
type Effect interface {
	effect()
}

// InsertRemote creates (or idempotently re-creates) the remote row of Application.
type InsertRemote struct {
	Application types.Application
}

// UpdateRemote overwrites the remote row of Application.
type UpdateRemote struct {
	Application types.Application
}

// DeleteRemote removes a remote row.
type DeleteRemote struct {
	ID       string
	RemoteID string
}

// SaveGoalsRemote overwrites the remote goals row.
type SaveGoalsRemote struct {
	Goals types.Goals
}

// ShowToast is a notification for the user.
type ShowToast struct {
	Toast ui.Toast
}

func (InsertRemote) effect()    {}
func (UpdateRemote) effect()    {}
func (DeleteRemote) effect()    {}
func (SaveGoalsRemote) effect() {}
func (ShowToast) effect()       {}

// Backend is the hosted storage of one signed-in user.
type Backend interface {
	InsertApplication(ctx context.Context, app types.Application) (remoteID string, err error)
	UpdateApplication(ctx context.Context, app types.Application) error
	DeleteApplication(ctx context.Context, remoteID string) error
	ListApplications(ctx context.Context) ([]types.Application, error)
	SaveGoals(ctx context.Context, g types.Goals) error
	LoadGoals(ctx context.Context) (goals types.Goals, found bool, err error)
}
