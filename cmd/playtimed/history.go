package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/cli"
	"github.com/aaronsb/playtimed/internal/store"
)

var historyDays int

var historyCmd = &cobra.Command{
	Use:   "history [user]",
	Short: "Show per-day gaming time over the last N days",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var sessionsDays int

var sessionsCmd = &cobra.Command{
	Use:   "sessions [user]",
	Short: "List recent process/browser sessions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessions,
}

func init() {
	historyCmd.Flags().IntVar(&historyDays, "days", 14, "number of days to show")
	sessionsCmd.Flags().IntVar(&sessionsDays, "days", 1, "number of days to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	user := ""
	if len(args) == 1 {
		user = args[0]
	}

	since := store.Today(time.Now().AddDate(0, 0, -historyDays))
	summaries, err := st.DailySummariesSince(context.Background(), user, since)
	if err != nil {
		return err
	}

	t := cli.NewTable("Date", "User", "Gaming Time", "Total Time", "Sessions", "Warnings", "Enforcements")
	for _, d := range summaries {
		t.Append([]string{d.Date, d.User, cli.FormatDuration(d.GamingTimeSeconds), cli.FormatDuration(d.TotalTimeSeconds),
			itoa(d.SessionCount), itoa(d.WarningsSent), itoa(d.Enforcements)})
	}
	t.Render()
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	user := ""
	if len(args) == 1 {
		user = args[0]
	}

	since := time.Now().AddDate(0, 0, -sessionsDays)
	sessions, err := st.ListSessions(context.Background(), user, since)
	if err != nil {
		return err
	}

	t := cli.NewTable("Started", "User", "App", "Category", "PID", "Duration", "End Reason")
	for _, s := range sessions {
		duration := "live"
		if s.Duration != nil {
			duration = cli.FormatDuration(*s.Duration)
		}
		t.Append([]string{s.StartTime.Format("2006-01-02 15:04"), s.User, s.App, string(s.Category),
			itoa(s.PID), duration, string(s.EndReason)})
	}
	t.Render()
	return nil
}
