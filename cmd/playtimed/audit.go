package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/cli"
)

var auditDays int

var auditCmd = &cobra.Command{
	Use:   "audit [user]",
	Short: "Show the append-only decision audit log",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().IntVar(&auditDays, "days", 7, "number of days to show")
}

func runAudit(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	user := ""
	if len(args) == 1 {
		user = args[0]
	}

	since := time.Now().AddDate(0, 0, -auditDays)
	events, err := st.ListEvents(context.Background(), user, since)
	if err != nil {
		return err
	}

	t := cli.NewTable("Timestamp", "User", "Event", "App", "Category", "PID", "Details")
	for _, e := range events {
		t.Append([]string{e.Timestamp.Format("2006-01-02 15:04:05"), e.User, e.EventType, e.App,
			string(e.Category), itoa(e.PID), e.Details})
	}
	t.Render()
	return nil
}
