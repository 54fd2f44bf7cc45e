package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/cli"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "View and edit per-user weekly schedules",
}

var scheduleViewCmd = &cobra.Command{
	Use:   "view <user>",
	Short: "Show a user's allowed windows and daily limits for every day",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleView,
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set <user> <168-char-schedule>",
	Short: "Replace a user's raw schedule string wholesale",
	Args:  cobra.ExactArgs(2),
	RunE:  runScheduleSet,
}

var scheduleEditCmd = &cobra.Command{
	Use:   "edit <user> <spec>",
	Short: `Apply a schedule edit, e.g. "mon..fri 15..21 +, sat..sun all +, mon 12 -"`,
	Args:  cobra.ExactArgs(2),
	RunE:  runScheduleEdit,
}

var scheduleExportFile string

var scheduleExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every user's schedule and daily limits as JSON",
	RunE:  runScheduleExport,
}

var scheduleImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import schedules and daily limits from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleImport,
}

func init() {
	scheduleExportCmd.Flags().StringVar(&scheduleExportFile, "file", "", "write to this path instead of stdout")

	scheduleCmd.AddCommand(scheduleViewCmd, scheduleSetCmd, scheduleEditCmd, scheduleExportCmd, scheduleImportCmd)
}

func runScheduleView(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	u, err := st.GetUserLimit(context.Background(), args[0])
	if err != nil {
		return err
	}
	if u == nil {
		err := fmt.Errorf("unknown user: %s", args[0])
		cli.PrintError("%s", err)
		return err
	}

	t := cli.NewTable("Day", "Allowed Window", "Daily Limit")
	for day := 0; day < 7; day++ {
		t.Append([]string{cli.WeekdayName(day), cli.AllowedWindow(u.Schedule, day), cli.FormatDuration(int64(u.DailyLimits[day]) * 60)})
	}
	t.Render()
	return nil
}

func runScheduleSet(cmd *cobra.Command, args []string) error {
	if err := cli.ValidateSchedule(args[1]); err != nil {
		cli.PrintError("%s", err)
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	u, err := st.GetUserLimit(ctx, args[0])
	if err != nil {
		return err
	}
	if u == nil {
		err := fmt.Errorf("unknown user: %s", args[0])
		cli.PrintError("%s", err)
		return err
	}

	if err := st.UpdateSchedule(ctx, args[0], args[1], u.DailyLimits); err != nil {
		cli.PrintError("%s", err)
		return err
	}
	cli.PrintSuccess("schedule replaced for %s", args[0])
	return nil
}

func runScheduleEdit(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	u, err := st.GetUserLimit(ctx, args[0])
	if err != nil {
		return err
	}
	if u == nil {
		err := fmt.Errorf("unknown user: %s", args[0])
		cli.PrintError("%s", err)
		return err
	}

	edited, err := cli.ApplyScheduleEdit(u.Schedule, args[1])
	if err != nil {
		cli.PrintError("%s", err)
		return err
	}

	if err := st.UpdateSchedule(ctx, args[0], edited, u.DailyLimits); err != nil {
		cli.PrintError("%s", err)
		return err
	}
	cli.PrintSuccess("schedule updated for %s", args[0])
	return nil
}

func runScheduleExport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUserLimits(context.Background())
	if err != nil {
		return err
	}

	export := make(map[string]cli.ScheduleExport, len(users))
	for _, u := range users {
		export[u.Username] = cli.ScheduleExport{Schedule: u.Schedule, DailyLimits: u.DailyLimits}
	}

	data, err := cli.ExportSchedules(export)
	if err != nil {
		return err
	}

	if scheduleExportFile == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(scheduleExportFile, data, 0o644); err != nil {
		cli.PrintError("%s", err)
		return err
	}
	cli.PrintSuccess("wrote %s", scheduleExportFile)
	return nil
}

func runScheduleImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		cli.PrintError("%s", err)
		return err
	}

	imported, err := cli.ImportSchedules(data)
	if err != nil {
		cli.PrintError("%s", err)
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	for username, entry := range imported {
		if err := st.UpdateSchedule(ctx, username, entry.Schedule, entry.DailyLimits); err != nil {
			cli.PrintError("%s: %s", username, err)
			return err
		}
		cli.PrintSuccess("imported schedule for %s", username)
	}
	return nil
}
