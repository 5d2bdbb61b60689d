package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/config"
	"github.com/applytrak/applytrak/internal/digest"
	"github.com/applytrak/applytrak/internal/server"
	"github.com/applytrak/applytrak/internal/server/middleware"
)

var (
	servePort     int
	serveNoDigest bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the email functions server",
	Long:  `Start an HTTP server that hosts the email handlers and the preferences page, and runs the weekly and monthly digests on their schedules.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from PORT or config)")
	serveCmd.Flags().BoolVar(&serveNoDigest, "no-digest", false, "Do not schedule digest emails")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	port := a.cfg.Port
	if servePort != 0 {
		port = servePort
	}

	// Admin routes reject every token when no secret is configured.
	var tokens middleware.TokenValidator
	if jwtCfg, err := config.NewJWTConfig(); err != nil {
		a.logger.Warn("admin routes disabled", zap.Error(err))
	} else {
		tokens = server.NewJWTService(jwtCfg).AsTokenValidator()
	}

	if !serveNoDigest {
		scheduler, err := digest.New(digest.Config{
			WeeklySpec:  a.cfg.WeeklyDigestCron,
			MonthlySpec: a.cfg.MonthlyDigestCron,
			Location:    a.cfg.Location(),
		}, a.notifier, a.logger)
		if err != nil {
			return fmt.Errorf("failed to schedule digests: %w", err)
		}
		scheduler.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			scheduler.Stop(stopCtx)
		}()
	}

	srv := server.New(server.Config{
		Port:   port,
		Logger: a.logger,
	}, a.notifier, a.renderer, tokens, a.db)

	return srv.Start(ctx)
}
