package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/applytrak/applytrak/internal/store"
	"github.com/applytrak/applytrak/internal/types"
)

var progressCmd = &cobra.Command{
	Use:   "progress <file>",
	Short: "Show goal progress for an import or export file",
	Long:  "Computes weekly, monthly and total goal progress and the daily streak for the applications in a file. Goals come from the file when it carries them, otherwise from the defaults; flags override either.",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgress,
}

var (
	progressDate    string
	progressWeekly  int
	progressMonthly int
	progressTotal   int
	progressJSON    bool
)

func init() {
	progressCmd.Flags().StringVar(&progressDate, "date", "", "Compute progress as of this day, YYYY-MM-DD (default today)")
	progressCmd.Flags().IntVar(&progressWeekly, "weekly-goal", 0, "Override the weekly goal")
	progressCmd.Flags().IntVar(&progressMonthly, "monthly-goal", 0, "Override the monthly goal")
	progressCmd.Flags().IntVar(&progressTotal, "total-goal", 0, "Override the total goal")
	progressCmd.Flags().BoolVar(&progressJSON, "json", false, "Print progress as JSON")
	rootCmd.AddCommand(progressCmd)
}

func runProgress(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	file, err := store.ParseImport(data)
	if err != nil {
		return err
	}

	now := time.Now()
	if progressDate != "" {
		if now, err = time.ParseInLocation(types.DateLayout, progressDate, time.Local); err != nil {
			return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", progressDate)
		}
	}

	goals := types.DefaultGoals()
	if file.Goals != nil {
		goals = *file.Goals
	}
	if progressWeekly > 0 {
		goals.WeeklyGoal = progressWeekly
	}
	if progressMonthly > 0 {
		goals.MonthlyGoal = progressMonthly
	}
	if progressTotal > 0 {
		goals.TotalGoal = progressTotal
	}

	progress := store.CalculateProgress(file.Applications, goals, now)
	if progressJSON {
		out, err := json.MarshalIndent(progress, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal progress: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	printProgress(cmd.OutOrStdout(), progress)
	return nil
}

func printProgress(w io.Writer, p types.GoalProgress) {
	for _, row := range []struct {
		label string
		win   types.WindowProgress
	}{
		{"This week", p.Weekly},
		{"This month", p.Monthly},
		{"Total", p.Total},
	} {
		_, _ = fmt.Fprintf(w, "%-10s %3d/%-4d %3d%%  %s\n", row.label, row.win.Count, row.win.Target, row.win.Percent, store.ProgressMessage(row.win))
	}
	_, _ = fmt.Fprintf(w, "Streak     %d day(s)\n", p.DailyStreak)
}
