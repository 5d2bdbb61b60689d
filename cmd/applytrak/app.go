package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/config"
	"github.com/applytrak/applytrak/internal/db"
	"github.com/applytrak/applytrak/internal/email"
	"github.com/applytrak/applytrak/internal/logging"
	"github.com/applytrak/applytrak/internal/notify"
)

// app holds the dependencies shared by the commands that talk to the database.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *db.DB
	renderer *email.Renderer
	notifier *notify.Service
}

// newApp loads configuration, connects to the database and builds the email service.
// Without an email API key emails are logged instead of sent.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}

	renderer, err := email.NewRenderer(email.Links{AppURL: cfg.AppURL, PreferencesURL: cfg.PreferencesURL})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}

	var sender email.Sender
	if cfg.EmailAPIKey == "" {
		logger.Warn("no email API key configured, emails will be logged")
		sender = email.NewLogSender(logger)
	} else {
		sender = email.NewHTTPSender(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom, &http.Client{Timeout: 15 * time.Second})
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       database,
		renderer: renderer,
		notifier: notify.New(database, renderer, sender,
			notify.WithLogger(logger),
			notify.WithConcurrency(cfg.DigestConcurrency)),
	}, nil
}

func (a *app) Close() {
	a.db.Close()
	_ = a.logger.Sync()
}
