package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/cli"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Purge expired events, sessions, message log rows and seen-pid rows",
	RunE:  runMaintenance,
}

func runMaintenance(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := st.Maintenance(context.Background())
	if err != nil {
		cli.PrintError("%s", err)
		return err
	}

	cli.PrintHeader("Maintenance complete")
	t := cli.NewTable("Table", "Rows Deleted")
	t.Append([]string{"events", itoa64(result.EventsDeleted)})
	t.Append([]string{"sessions", itoa64(result.SessionsDeleted)})
	t.Append([]string{"message_log", itoa64(result.MessagesDeleted)})
	t.Append([]string{"seen_pids", itoa64(result.SeenPIDsDeleted)})
	t.Render()
	return nil
}
