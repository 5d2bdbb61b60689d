package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/applytrak/applytrak/internal/digest"
)

var digestCmd = &cobra.Command{
	Use:       "digest weekly|monthly",
	Short:     "Send a digest to every opted-in user now",
	Long:      "Runs one weekly goals or monthly analytics digest immediately, outside the serve schedule, and prints the send summary as JSON.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{digest.Weekly, digest.Monthly},
	RunE:      runDigest,
}

func init() {
	rootCmd.AddCommand(digestCmd)
}

func runDigest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	// Schedules are left empty: Run is called directly.
	scheduler, err := digest.New(digest.Config{Location: a.cfg.Location()}, a.notifier, a.logger)
	if err != nil {
		return err
	}

	res, err := scheduler.Run(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("%s digest failed: %w", args[0], err)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
