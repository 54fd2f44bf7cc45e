package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/cli"
	"github.com/aaronsb/playtimed/internal/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage enrolled users",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled users",
	RunE:  runUserList,
}

var (
	userDailyLimit int
	userSchedule   string
	userDisabled   bool
)

var userEditDailyLimit int

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Enrol a new user with a uniform daily limit and schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userEditCmd = &cobra.Command{
	Use:   "edit <username>",
	Short: "Adjust a user's daily limit and/or apply a schedule edit",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserEdit,
}

var userEnableCmd = &cobra.Command{
	Use:   "enable <username>",
	Short: "Enable a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserSetEnabled(true),
}

var userDisableCmd = &cobra.Command{
	Use:   "disable <username>",
	Short: "Disable a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserSetEnabled(false),
}

func init() {
	userAddCmd.Flags().IntVar(&userDailyLimit, "daily-limit", 120, "daily gaming limit in minutes, applied to every day")
	userAddCmd.Flags().StringVar(&userSchedule, "schedule", "", `schedule spec clauses, e.g. "mon..fri 15..21 +, sat..sun all +"`)
	userAddCmd.Flags().BoolVar(&userDisabled, "disabled", false, "enrol the user disabled")

	userEditCmd.Flags().IntVar(&userEditDailyLimit, "daily-limit", -1, "replace the daily limit (minutes) on every day; -1 leaves it unchanged")
	userEditCmd.Flags().StringVar(&userSchedule, "schedule", "", "schedule edit spec applied on top of the user's current schedule")

	userCmd.AddCommand(userListCmd, userAddCmd, userEditCmd, userEnableCmd, userDisableCmd)
}

func runUserList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUserLimits(context.Background())
	if err != nil {
		return err
	}

	t := cli.NewTable("Username", "Enabled", "Daily Limits (Mon..Sun, min)")
	for _, u := range users {
		limits := make([]string, 7)
		for i, v := range u.DailyLimits {
			limits[i] = strconv.Itoa(v)
		}
		t.Append([]string{u.Username, strconv.FormatBool(u.Enabled), strings.Join(limits, ",")})
	}
	t.Render()
	return nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]

	schedule := strings.Repeat("0", 168)
	if userSchedule != "" {
		edited, err := cli.ApplyScheduleEdit(schedule, userSchedule)
		if err != nil {
			cli.PrintError("%s", err)
			return err
		}
		schedule = edited
	}

	var limits [7]int
	for i := range limits {
		limits[i] = userDailyLimit
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	err = st.AddUser(context.Background(), store.UserLimit{
		Username:          username,
		Enabled:           !userDisabled,
		DailyTotalMinutes: userDailyLimit,
		Schedule:          schedule,
		DailyLimits:       limits,
	})
	if err != nil {
		cli.PrintError("%s", err)
		return err
	}
	cli.PrintSuccess("enrolled %s", username)
	return nil
}

func runUserEdit(cmd *cobra.Command, args []string) error {
	username := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	u, err := st.GetUserLimit(ctx, username)
	if err != nil {
		return err
	}
	if u == nil {
		err := fmt.Errorf("unknown user: %s", username)
		cli.PrintError("%s", err)
		return err
	}

	schedule := u.Schedule
	if userSchedule != "" {
		edited, err := cli.ApplyScheduleEdit(schedule, userSchedule)
		if err != nil {
			cli.PrintError("%s", err)
			return err
		}
		schedule = edited
	}

	limits := u.DailyLimits
	if userEditDailyLimit >= 0 {
		for i := range limits {
			limits[i] = userEditDailyLimit
		}
	}

	if err := st.UpdateSchedule(ctx, username, schedule, limits); err != nil {
		cli.PrintError("%s", err)
		return err
	}
	cli.PrintSuccess("updated %s", username)
	return nil
}

func runUserSetEnabled(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SetUserEnabled(context.Background(), args[0], enabled); err != nil {
			cli.PrintError("%s", err)
			return err
		}
		cli.PrintSuccess("%s enabled=%v", args[0], enabled)
		return nil
	}
}
