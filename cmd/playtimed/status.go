package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/cli"
	"github.com/aaronsb/playtimed/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status [user]",
	Short: "Show current mode and per-user time remaining",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	dcfg, err := st.GetDaemonConfig(ctx)
	if err != nil {
		return err
	}
	cli.PrintInfo("mode: %s (strict grace %ds)", dcfg.Mode, dcfg.StrictGraceSeconds)

	var users []string
	if len(args) == 1 {
		users = []string{args[0]}
	} else {
		users, err = st.ListEnabledUsernames(ctx)
		if err != nil {
			return err
		}
	}

	t := cli.NewTable("User", "Today Used", "Today Limit", "Remaining", "Allowed Now")
	now := time.Now()
	for _, u := range users {
		limit, err := st.GetUserLimit(ctx, u)
		if err != nil || limit == nil {
			continue
		}
		summary, err := st.GetOrCreateDailySummary(ctx, store.Today(now), u)
		if err != nil {
			return err
		}
		weekday := int(now.Weekday()+6) % 7
		limitMinutes := limit.DailyLimits[weekday]
		usedMinutes := summary.GamingTimeSeconds / 60
		remaining := int64(limitMinutes) - usedMinutes
		if remaining < 0 {
			remaining = 0
		}
		allowedNow := "no"
		if limit.Schedule[weekday*24+now.Hour()] == '1' {
			allowedNow = "yes"
		}
		t.Append([]string{u, cli.FormatDuration(usedMinutes * 60), cli.FormatDuration(int64(limitMinutes) * 60),
			cli.FormatDuration(remaining * 60), allowedNow})
	}
	t.Render()
	return nil
}
