package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/cli"
)

var modeCmd = &cobra.Command{
	Use:   "mode [normal|passthrough|strict]",
	Short: "Show or change the daemon's enforcement mode",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMode,
}

func runMode(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	if len(args) == 0 {
		cfg, err := st.GetDaemonConfig(ctx)
		if err != nil {
			return err
		}
		cli.PrintInfo("mode: %s", cfg.Mode)
		return nil
	}

	if err := st.SetDaemonMode(ctx, args[0]); err != nil {
		cli.PrintError("%s", err)
		return err
	}
	cli.PrintSuccess("mode set to %s", args[0])
	return nil
}
