package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/applytrak/applytrak/internal/config"
	"github.com/applytrak/applytrak/internal/logging"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import applications into an account",
	Long: `Signs in, loads the account's applications, imports the file (skipping duplicates of
existing applications) and uploads the new records. With --local nothing is uploaded and the
result is computed against an empty local store.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var (
	importEmail    string
	importPassword string
	importLocal    bool
)

func init() {
	importCmd.Flags().StringVar(&importEmail, "email", "", "Account email")
	importCmd.Flags().StringVar(&importPassword, "password", "", "Account password (default from APPLYTRAK_PASSWORD)")
	importCmd.Flags().BoolVar(&importLocal, "local", false, "Import into a local store only")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if importLocal {
		cfg.SupabaseURL = ""
	} else {
		if importEmail == "" {
			return fmt.Errorf("--email is required unless --local is set")
		}
		if importPassword == "" {
			importPassword = os.Getenv("APPLYTRAK_PASSWORD")
		}
		cfg.CloudSync = true
	}

	sess, err := newSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	if !importLocal {
		if err := sess.signIn(ctx, importEmail, importPassword); err != nil {
			return err
		}
	}

	res, err := sess.store.ImportApplications(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Imported %d application(s), skipped %d duplicate(s)\n", res.Imported, res.Skipped)

	if !importLocal {
		sess.tracker.TriggerSync(ctx)
		sess.store.Wait()
		sess.tracker.RefreshPending()
		sess.guard.Wait()

		status := sess.tracker.Status()
		_, _ = fmt.Fprintf(out, "Pending changes: %d\n", status.PendingChanges)
		if status.SyncError != "" {
			_, _ = fmt.Fprintf(out, "Sync error: %s\n", status.SyncError)
		}
		if sess.ui.Admin().DashboardOpen {
			_, _ = fmt.Fprintln(out, "Signed in as administrator")
		}
	}

	printProgress(out, sess.store.Progress())
	for _, t := range sess.ui.Toasts() {
		_, _ = fmt.Fprintf(out, "[%s] %s\n", t.Type, t.Message)
	}
	return nil
}
