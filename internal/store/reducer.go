package store

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/applytrak/applytrak/internal/types"
	"github.com/applytrak/applytrak/internal/ui"
	"github.com/applytrak/applytrak/internal/validation"
)

// ErrNotFound is returned for a command naming an unknown application.
var ErrNotFound = errors.New("application not found")

// Check reports whether cmd is acceptable in state s. Apply leaves s unchanged, apart from
// its error fields, for any command Check rejects.
func Check(s State, cmd Command) error {
	switch c := cmd.(type) {
	case AddApplication:
		return validation.Struct(c.Input)
	case UpdateApplication:
		app, ok := s.Find(c.ID)
		if !ok {
			return fmt.Errorf("update %s: %w", c.ID, ErrNotFound)
		}
		return validation.Struct(inputOf(patched(app, c.Patch)))
	case UpdateStatus:
		if _, ok := s.Find(c.ID); !ok {
			return fmt.Errorf("update status %s: %w", c.ID, ErrNotFound)
		}
		if !c.Status.Valid() {
			ve := &validation.Error{}
			ve.Add("status", "Must be one of: Applied, Interview, Offer, Rejected")
			return ve
		}
	case AttachFiles:
		app, ok := s.Find(c.ID)
		if !ok {
			return fmt.Errorf("attach to %s: %w", c.ID, ErrNotFound)
		}
		merged, _ := attached(app, c)
		return validation.Struct(inputOf(merged))
	case UpdateGoals:
		return validation.Struct(c.Patch.Apply(s.Goals))
	case ImportApplications:
		if c.Goals != nil {
			if err := validation.Struct(*c.Goals); err != nil {
				return err
			}
		}
	}
	return nil
}

// Apply reduces cmd against s. It never mutates s.
func Apply(s State, cmd Command) (State, []Effect) {
	if err := Check(s, cmd); err != nil {
		s.Error = err.Error()
		s.FieldErrors = validation.Fields(err)
		return s, nil
	}

	switch c := cmd.(type) {
	case AddApplication:
		app := newApplication(c.ID, c.Input, c.At)
		s = clearErrors(s)
		s.Applications = append(slices.Clip(s.Applications), app)
		return s, s.syncEffect(app)

	case UpdateApplication:
		i := s.index(c.ID)
		app := patched(s.Applications[i], c.Patch)
		app.SyncStatus = types.SyncPending
		app.UpdatedAt = c.At
		s = clearErrors(s)
		s.Applications = replaceAt(s.Applications, i, app)
		return s, s.syncEffect(app)

	case UpdateStatus:
		i := s.index(c.ID)
		app := s.Applications[i]
		app.Status = c.Status
		app.SyncStatus = types.SyncPending
		app.UpdatedAt = c.At
		s = clearErrors(s)
		s.Applications = replaceAt(s.Applications, i, app)
		return s, s.syncEffect(app)

	case AttachFiles:
		i := s.index(c.ID)
		app, toasts := attached(s.Applications[i], c)
		effects := make([]Effect, 0, len(toasts)+1)
		for _, t := range toasts {
			effects = append(effects, ShowToast{Toast: t})
		}
		s = clearErrors(s)
		if len(app.Attachments) == len(s.Applications[i].Attachments) {
			return s, effects
		}
		app.SyncStatus = types.SyncPending
		app.UpdatedAt = c.At
		s.Applications = replaceAt(s.Applications, i, app)
		return s, append(effects, s.syncEffect(app)...)

	case DeleteApplications:
		var effects []Effect
		kept := make([]types.Application, 0, len(s.Applications))
		for _, app := range s.Applications {
			if !slices.Contains(c.IDs, app.ID) {
				kept = append(kept, app)
				continue
			}
			if s.CloudSync && app.RemoteID != "" {
				effects = append(effects, DeleteRemote{ID: app.ID, RemoteID: app.RemoteID})
			}
		}
		s = clearErrors(s)
		s.Applications = kept
		return s, effects

	case ImportApplications:
		var effects []Effect
		apps := slices.Clone(s.Applications)
		seen := make(map[string]bool, len(apps)+len(c.Applications))
		for _, app := range apps {
			seen[app.ID] = true
		}
		for _, app := range c.Applications {
			if seen[app.ID] {
				continue
			}
			seen[app.ID] = true
			app.SyncStatus = types.SyncPending
			app.RemoteID = ""
			if app.Status == "" {
				app.Status = types.StatusApplied
			}
			if app.CreatedAt.IsZero() {
				app.CreatedAt = c.At
			}
			app.UpdatedAt = c.At
			apps = append(apps, app)
			effects = append(effects, s.syncEffect(app)...)
		}
		s = clearErrors(s)
		s.Applications = apps
		if c.Goals != nil {
			s.Goals = *c.Goals
			if s.CloudSync {
				effects = append(effects, SaveGoalsRemote{Goals: s.Goals})
			}
		}
		return s, effects

	case UpdateGoals:
		s = clearErrors(s)
		s.Goals = c.Patch.Apply(s.Goals)
		if !s.CloudSync {
			return s, nil
		}
		return s, []Effect{SaveGoalsRemote{Goals: s.Goals}}

	case SetApplications:
		merged := slices.Clone(c.Applications)
		for _, local := range s.Applications {
			if local.RemoteID != "" {
				continue
			}
			if !slices.ContainsFunc(merged, func(a types.Application) bool { return a.ID == local.ID }) {
				merged = append(merged, local)
			}
		}
		s.Applications = merged
		return s, nil

	case SetGoals:
		s.Goals = c.Goals
		return s, nil

	case SetFilter:
		s.Filter = c.Filter
		return s, nil

	case SetCloudSync:
		s.CloudSync = c.Enabled
		return s, nil

	case SetError:
		s.Error = c.Message
		s.FieldErrors = nil
		return s, nil

	case MarkSynced:
		i := s.index(c.ID)
		if i < 0 {
			// Deleted while the insert was in flight: its remote row has no local owner.
			if c.Inserted && c.RemoteID != "" {
				return s, []Effect{DeleteRemote{ID: c.ID, RemoteID: c.RemoteID}}
			}
			return s, nil
		}
		app := s.Applications[i]
		app.RemoteID = c.RemoteID
		if app.UpdatedAt.Equal(c.Version) {
			app.SyncStatus = types.SyncSynced
		}
		s.Applications = replaceAt(s.Applications, i, app)
		s.SyncError = ""
		return s, nil

	case MarkSyncFailed:
		s.SyncError = c.Err
		return s, nil
	}
	return s, nil
}

// syncEffect is the backend write for app, or nothing without cloud sync.
func (s State) syncEffect(app types.Application) []Effect {
	if !s.CloudSync {
		return nil
	}
	if app.RemoteID == "" {
		return []Effect{InsertRemote{Application: app}}
	}
	return []Effect{UpdateRemote{Application: app}}
}

// attached is app with the acceptable files of c appended, plus the toasts for rejected ones.
func attached(app types.Application, c AttachFiles) (types.Application, []ui.Toast) {
	next := 0
	newID := func() string {
		if next >= len(c.IDs) {
			return ""
		}
		id := c.IDs[next]
		next++
		return id
	}
	list, toasts := SelectFiles(app.Attachments, c.Files, c.At, newID)
	app.Attachments = list
	return app, toasts
}

func clearErrors(s State) State {
	s.Error = ""
	s.FieldErrors = nil
	return s
}

func replaceAt(apps []types.Application, i int, app types.Application) []types.Application {
	out := slices.Clone(apps)
	out[i] = app
	return out
}

func newApplication(id string, in types.ApplicationInput, at time.Time) types.Application {
	status := in.Status
	if status == "" {
		status = types.StatusApplied
	}
	return types.Application{
		ID:          id,
		Company:     in.Company,
		Position:    in.Position,
		DateApplied: in.DateApplied,
		Type:        in.Type,
		Status:      status,
		Location:    in.Location,
		Salary:      in.Salary,
		JobSource:   in.JobSource,
		JobURL:      in.JobURL,
		Notes:       in.Notes,
		Attachments: slices.Clone(in.Attachments),
		SyncStatus:  types.SyncPending,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func patched(app types.Application, p types.ApplicationPatch) types.Application {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&app.Company, p.Company)
	set(&app.Position, p.Position)
	set(&app.DateApplied, p.DateApplied)
	set(&app.Location, p.Location)
	set(&app.Salary, p.Salary)
	set(&app.JobSource, p.JobSource)
	set(&app.JobURL, p.JobURL)
	set(&app.Notes, p.Notes)
	if p.Type != nil {
		app.Type = *p.Type
	}
	if p.Status != nil {
		app.Status = *p.Status
	}
	if p.Attachments != nil {
		app.Attachments = slices.Clone(p.Attachments)
	}
	return app
}

func inputOf(app types.Application) types.ApplicationInput {
	return types.ApplicationInput{
		Company:     app.Company,
		Position:    app.Position,
		DateApplied: app.DateApplied,
		Type:        app.Type,
		Status:      app.Status,
		Location:    app.Location,
		Salary:      app.Salary,
		JobSource:   app.JobSource,
		JobURL:      app.JobURL,
		Notes:       app.Notes,
		Attachments: app.Attachments,
	}
}
