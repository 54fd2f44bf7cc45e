package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/cli"
	"github.com/aaronsb/playtimed/internal/router"
	"github.com/aaronsb/playtimed/internal/store"
	"github.com/aaronsb/playtimed/pkg/logger"
)

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Inspect and manage notification templates and history",
}

var messageListLimit int

var messageListCmd = &cobra.Command{
	Use:   "list [user]",
	Short: "Show recently sent notifications",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMessageList,
}

var (
	messageIcon    string
	messageUrgency string
	messageEnabled bool
)

var messageAddCmd = &cobra.Command{
	Use:   "add <intention> <variant> <title> <body>",
	Short: "Add a new notification template variant",
	Args:  cobra.ExactArgs(4),
	RunE:  runMessageAdd,
}

var messageTestCmd = &cobra.Command{
	Use:   "test <intention> [user]",
	Short: "Render and dispatch a test notification for an intention",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runMessageTest,
}

func init() {
	messageListCmd.Flags().IntVar(&messageListLimit, "limit", 20, "maximum rows to show")
	messageAddCmd.Flags().StringVar(&messageIcon, "icon", "", "icon name")
	messageAddCmd.Flags().StringVar(&messageUrgency, "urgency", string(store.UrgencyNormal), "low, normal, or critical")
	messageAddCmd.Flags().BoolVar(&messageEnabled, "enabled", true, "whether this variant is eligible for selection")

	messageCmd.AddCommand(messageListCmd, messageAddCmd, messageTestCmd)
}

func runMessageList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	user := ""
	if len(args) == 1 {
		user = args[0]
	}

	rows, err := st.ListMessages(context.Background(), user, messageListLimit)
	if err != nil {
		return err
	}

	t := cli.NewTable("Timestamp", "User", "Intention", "Title", "Backend", "Notification ID")
	for _, m := range rows {
		t.Append([]string{m.Timestamp.Format("2006-01-02 15:04:05"), m.User, m.Intention, m.RenderedTitle,
			m.Backend, strconv.FormatInt(m.NotificationID, 10)})
	}
	t.Render()
	return nil
}

func runMessageAdd(cmd *cobra.Command, args []string) error {
	variant, err := strconv.Atoi(args[1])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.AddTemplate(context.Background(), store.MessageTemplate{
		Intention: args[0],
		Variant:   variant,
		Title:     args[2],
		Body:      args[3],
		Icon:      messageIcon,
		Urgency:   store.Urgency(messageUrgency),
		Enabled:   messageEnabled,
	})
	if err != nil {
		cli.PrintError("%s", err)
		return err
	}
	cli.PrintSuccess("added template #%d", id)
	return nil
}

func runMessageTest(cmd *cobra.Command, args []string) error {
	intention := args[0]
	user := "test"
	if len(args) == 2 {
		user = args[1]
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	log := logger.New("message-test", "info")
	dispatcher := buildDispatcher(log)
	r := router.New(st, dispatcher)

	err = r.Send(context.Background(), intention, router.Context{
		User:          user,
		Process:       "TestApp",
		Pattern:       "test-pattern",
		TimeLeft:      15,
		TimeUsed:      45,
		TimeLimit:     60,
		Category:      string(store.CategoryGaming),
		Mode:          string(store.ModeNormal),
		GraceSeconds:  30,
		AllowedWindow: "9:00 AM - 5:00 PM",
	}, false)
	if err != nil {
		cli.PrintError("%s", err)
		return err
	}
	cli.PrintSuccess("sent test notification for intention %q to %s", intention, user)
	return nil
}
