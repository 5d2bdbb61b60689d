package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/logging"
	"github.com/applytrak/applytrak/internal/syncstatus"
	"github.com/applytrak/applytrak/internal/tasks"
	"github.com/applytrak/applytrak/internal/types"
	"github.com/applytrak/applytrak/internal/ui"
)

// DefaultEffectTimeout bounds one backend write.
const DefaultEffectTimeout = 15 * time.Second

// Toaster shows notifications.
type Toaster interface {
	ShowToast(t ui.Toast) string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = logging.OrNop(l) }
}

// WithQueue runs backend effects on q instead of a private queue.
func WithQueue(q *tasks.Queue) Option {
	return func(s *Store) { s.queue = q }
}

// WithToaster routes attachment toasts to t.
func WithToaster(t Toaster) Option {
	return func(s *Store) { s.toaster = t }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides the id generator.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithMessageSink receives sync progress messages.
func WithMessageSink(fn func(syncstatus.Message)) Option {
	return func(s *Store) { s.sink = fn }
}

// WithEffectTimeout bounds every backend write.
func WithEffectTimeout(d time.Duration) Option {
	return func(s *Store) { s.effectTimeout = d }
}

// Store holds State and runs the effects of each command. It is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	state       State
	backend     Backend
	subscribers map[int]func(State)
	nextSub     int
	syncing     bool

	queue         *tasks.Queue
	toaster       Toaster
	logger        *zap.Logger
	now           func() time.Time
	newID         func() string
	sink          func(syncstatus.Message)
	effectTimeout time.Duration
}

// New creates a store in its initial state.
func New(opts ...Option) *Store {
	s := &Store{
		state:         InitialState(),
		subscribers:   make(map[int]func(State)),
		logger:        zap.NewNop(),
		now:           time.Now,
		newID:         uuid.NewString,
		effectTimeout: DefaultEffectTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = tasks.NewQueue(tasks.DefaultConcurrency, s.logger)
	}
	return s
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to run after every state change and returns its cancel function.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// SetBackend binds the store to a signed-in user's storage. Backend writes happen only with
// a backend and cloud sync both present; pass nil on sign-out.
func (s *Store) SetBackend(b Backend, cloudSync bool) {
	s.mu.Lock()
	s.backend = b
	s.mu.Unlock()
	_ = s.Dispatch(SetCloudSync{Enabled: b != nil && cloudSync})
}

// Dispatch applies cmd and schedules its effects. The returned error is the reason cmd was
// rejected, if it was.
func (s *Store) Dispatch(cmd Command) error {
	s.mu.Lock()
	err := Check(s.state, cmd)
	next, effects := Apply(s.state, cmd)
	s.state = next
	backend := s.backend
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	for _, e := range effects {
		if t, ok := e.(ShowToast); ok {
			if s.toaster != nil {
				s.toaster.ShowToast(t.Toast)
			}
			continue
		}
		if backend != nil {
			s.schedule(backend, e)
		}
	}
	return err
}

func (s *Store) schedule(b Backend, e Effect) {
	switch e := e.(type) {
	case InsertRemote:
		s.queue.Submit("insert-application", s.effectTimeout, func(ctx context.Context) error {
			return s.insert(ctx, b, e.Application)
		})
	case UpdateRemote:
		s.queue.Submit("update-application", s.effectTimeout, func(ctx context.Context) error {
			return s.update(ctx, b, e.Application)
		})
	case DeleteRemote:
		s.queue.Submit("delete-application", s.effectTimeout, func(ctx context.Context) error {
			return b.DeleteApplication(ctx, e.RemoteID)
		})
	case SaveGoalsRemote:
		s.queue.Submit("save-goals", s.effectTimeout, func(ctx context.Context) error {
			return b.SaveGoals(ctx, e.Goals)
		})
	}
}

func (s *Store) insert(ctx context.Context, b Backend, app types.Application) error {
	remoteID, err := b.InsertApplication(ctx, app)
	if err != nil {
		_ = s.Dispatch(MarkSyncFailed{ID: app.ID, Err: err.Error()})
		return fmt.Errorf("insert %s: %w", app.ID, err)
	}
	_ = s.Dispatch(MarkSynced{ID: app.ID, RemoteID: remoteID, Version: app.UpdatedAt, Inserted: true})
	return nil
}

func (s *Store) update(ctx context.Context, b Backend, app types.Application) error {
	if err := b.UpdateApplication(ctx, app); err != nil {
		_ = s.Dispatch(MarkSyncFailed{ID: app.ID, Err: err.Error()})
		return fmt.Errorf("update %s: %w", app.ID, err)
	}
	_ = s.Dispatch(MarkSynced{ID: app.ID, RemoteID: app.RemoteID, Version: app.UpdatedAt})
	return nil
}

// Wait blocks until scheduled backend writes have finished.
func (s *Store) Wait() {
	s.queue.Wait()
}

// AddApplication validates input and appends a new application.
func (s *Store) AddApplication(input types.ApplicationInput) (types.Application, error) {
	id := s.newID()
	if err := s.Dispatch(AddApplication{ID: id, Input: input, At: s.now().UTC()}); err != nil {
		return types.Application{}, err
	}
	app, _ := s.State().Find(id)
	return app, nil
}

// UpdateApplication applies patch to the application with the given id.
func (s *Store) UpdateApplication(id string, patch types.ApplicationPatch) error {
	return s.Dispatch(UpdateApplication{ID: id, Patch: patch, At: s.now().UTC()})
}

// UpdateStatus moves the application with the given id to status.
func (s *Store) UpdateStatus(id string, status types.Status) error {
	return s.Dispatch(UpdateStatus{ID: id, Status: status, At: s.now().UTC()})
}

// DeleteApplications removes applications by id.
func (s *Store) DeleteApplications(ids ...string) error {
	return s.Dispatch(DeleteApplications{IDs: ids})
}

// UpdateGoals validates and saves a partial goals update. Invalid input leaves goals unchanged.
func (s *Store) UpdateGoals(patch types.GoalsPatch) error {
	return s.Dispatch(UpdateGoals{Patch: patch})
}

// SetFilter changes the filtered view.
func (s *Store) SetFilter(f Filter) {
	_ = s.Dispatch(SetFilter{Filter: f})
}

// Filtered returns the applications visible under the current filter.
func (s *Store) Filtered() []types.Application {
	return Filtered(s.State())
}

// Progress derives goal progress as of now.
func (s *Store) Progress() types.GoalProgress {
	st := s.State()
	return CalculateProgress(st.Applications, st.Goals, s.now())
}

// PendingCount is the number of applications awaiting a backend write.
func (s *Store) PendingCount() int {
	return s.State().PendingCount()
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportApplications validates and imports the content of an import file.
func (s *Store) ImportApplications(data []byte) (ImportResult, error) {
	file, err := ParseImport(data)
	if err != nil {
		_ = s.Dispatch(SetError{Message: err.Error()})
		return ImportResult{}, err
	}

	for i := range file.Applications {
		if file.Applications[i].ID == "" {
			file.Applications[i].ID = s.newID()
		}
	}

	before := len(s.State().Applications)
	if err := s.Dispatch(ImportApplications{Applications: file.Applications, Goals: file.Goals, At: s.now().UTC()}); err != nil {
		return ImportResult{}, err
	}
	imported := len(s.State().Applications) - before
	return ImportResult{Imported: imported, Skipped: len(file.Applications) - imported}, nil
}

// AttachFiles adds files to the application with the given id. Rejected files are reported
// as toasts and do not fail the call. The merge runs against the current attachments, so
// concurrent calls keep every accepted file.
func (s *Store) AttachFiles(id string, files []File) error {
	ids := make([]string, len(files))
	for i := range ids {
		ids[i] = s.newID()
	}
	return s.Dispatch(AttachFiles{ID: id, Files: files, IDs: ids, At: s.now().UTC()})
}

// Load replaces the state with the user's backend records.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	b := s.backend
	s.mu.Unlock()
	if b == nil {
		return nil
	}

	apps, err := b.ListApplications(ctx)
	if err != nil {
		_ = s.Dispatch(SetError{Message: "Could not load your applications."})
		return fmt.Errorf("load applications: %w", err)
	}
	_ = s.Dispatch(SetApplications{Applications: apps})

	goals, found, err := b.LoadGoals(ctx)
	if err != nil {
		_ = s.Dispatch(SetError{Message: "Could not load your goals."})
		return fmt.Errorf("load goals: %w", err)
	}
	if found {
		_ = s.Dispatch(SetGoals{Goals: goals})
	}
	return nil
}

// ErrSyncInProgress is returned by SyncPending while another sync runs.
var ErrSyncInProgress = errors.New("sync already in progress")

// SyncPending re-sends every pending application and reports progress to the message sink.
// Without a backend or cloud sync it does nothing.
func (s *Store) SyncPending(ctx context.Context) error {
	s.mu.Lock()
	b := s.backend
	st := s.state
	if b == nil || !st.CloudSync {
		s.mu.Unlock()
		return nil
	}
	if s.syncing {
		s.mu.Unlock()
		return ErrSyncInProgress
	}
	s.syncing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	pending := slices.DeleteFunc(slices.Clone(st.Applications), func(a types.Application) bool { return !a.NeedsSync() })
	s.emit(syncstatus.Message{Type: syncstatus.MsgSyncStarted, Count: len(pending)})

	var errs []error
	for _, app := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		var err error
		if app.RemoteID == "" {
			err = s.insert(ctx, b, app)
		} else {
			err = s.update(ctx, b, app)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	remaining := s.PendingCount()
	s.emit(syncstatus.Message{Type: syncstatus.MsgPendingChanges, Count: remaining})
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("sync incomplete", zap.Int("failed", len(errs)), zap.Int("pending", remaining), zap.Error(err))
		s.emit(syncstatus.Message{Type: syncstatus.MsgSyncFailed, Error: err.Error()})
		return err
	}
	s.emit(syncstatus.Message{Type: syncstatus.MsgSyncCompleted})
	return nil
}

// RequestSync starts SyncPending in the background.
func (s *Store) RequestSync() {
	s.queue.Submit("sync-pending", 0, func(ctx context.Context) error {
		err := s.SyncPending(ctx)
		if errors.Is(err, ErrSyncInProgress) {
			return nil
		}
		return err
	})
}

func (s *Store) emit(m syncstatus.Message) {
	if s.sink != nil {
		s.sink(m)
	}
}
