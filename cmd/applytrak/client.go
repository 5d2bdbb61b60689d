package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/admin"
	"github.com/applytrak/applytrak/internal/auth"
	"github.com/applytrak/applytrak/internal/config"
	"github.com/applytrak/applytrak/internal/email"
	"github.com/applytrak/applytrak/internal/kv"
	"github.com/applytrak/applytrak/internal/store"
	"github.com/applytrak/applytrak/internal/supabase"
	"github.com/applytrak/applytrak/internal/syncstatus"
	"github.com/applytrak/applytrak/internal/tasks"
	"github.com/applytrak/applytrak/internal/ui"
)

// session is the client core as a front end assembles it: the auth gateway drives the
// application store's backend binding and the admin guard, and the sync tracker listens to
// the store's sync messages.
type session struct {
	logger  *zap.Logger
	flags   kv.Store
	queue   *tasks.Queue
	ui      *ui.Orchestrator
	gateway *auth.Gateway
	guard   *admin.Guard
	store   *store.Store
	tracker *syncstatus.Tracker

	closeFlags func() error
	unsub      func()
}

// newSession builds a signed-out session. Without a backend URL the store stays local.
func newSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*session, error) {
	s := &session{logger: logger, closeFlags: func() error { return nil }}

	if cfg.RedisURL != "" {
		r, err := kv.NewRedis(ctx, cfg.RedisURL, "applytrak:")
		if err != nil {
			return nil, err
		}
		s.flags = r
		s.closeFlags = r.Close
	} else {
		s.flags = kv.NewMemory()
	}

	s.queue = tasks.NewQueue(tasks.DefaultConcurrency, logger)
	s.ui = ui.New(s.flags)
	s.guard = admin.New(admin.DefaultConfig(), s.ui, logger)
	s.store = store.New(
		store.WithLogger(logger),
		store.WithQueue(s.queue),
		store.WithToaster(s.ui),
		store.WithMessageSink(func(m syncstatus.Message) { s.tracker.HandleMessage(m) }),
	)
	s.tracker = syncstatus.New(syncstatus.Config{}, s.store, s.store, s.flags, logger)

	if cfg.SupabaseURL == "" {
		return s, nil
	}

	client, err := supabase.New(supabase.Config{ProjectURL: cfg.SupabaseURL, AnonKey: cfg.SupabaseAnonKey})
	if err != nil {
		_ = s.closeFlags()
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	var welcome auth.WelcomeSender
	if cfg.FunctionsURL != "" {
		welcome = email.NewFunctionsClient(cfg.FunctionsURL, cfg.SupabaseAnonKey, &http.Client{Timeout: auth.WelcomeEmailTimeout})
	}
	s.gateway = auth.NewGateway(auth.NewSupabaseProvider(client, cfg.AppURL), auth.NewSupabaseProfiles(client), welcome, s.queue, logger)

	cloudSync := cfg.CloudSync
	s.unsub = s.gateway.Subscribe(func(st auth.State) {
		if !st.IsAuthenticated || st.User == nil {
			s.store.SetBackend(nil, false)
			s.guard.Observe(false, "", nil)
			return
		}
		data := client.ForUser(st.AccessToken, st.User.ID)
		s.store.SetBackend(data, cloudSync)
		s.guard.Observe(true, st.User.ID, admin.VerifierFunc(data.IsAdmin))
	})
	return s, nil
}

// signIn authenticates and loads the user's records.
func (s *session) signIn(ctx context.Context, address, password string) error {
	if s.gateway == nil {
		return fmt.Errorf("SUPABASE_URL is required to sign in")
	}
	if err := s.gateway.SignIn(ctx, address, password); err != nil {
		return fmt.Errorf("sign in failed: %s", auth.Message(err))
	}
	if err := s.store.Load(ctx); err != nil {
		return err
	}
	return s.tracker.Start(ctx)
}

// Close signs out, waits for background work and releases the flag store.
func (s *session) Close(ctx context.Context) {
	s.store.Wait()
	if s.gateway != nil {
		if s.gateway.State().IsAuthenticated {
			_ = s.gateway.SignOut(ctx)
		}
		s.gateway.Wait()
		s.unsub()
	}
	s.guard.Stop()
	s.tracker.Stop()
	s.queue.Close(5 * time.Second)
	if err := s.closeFlags(); err != nil {
		s.logger.Warn("failed to close flag store", zap.Error(err))
	}
}
