package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/cli"
	"github.com/aaronsb/playtimed/internal/store"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Review and dispose of processes found by the discovery pipeline",
}

var discoverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patterns awaiting a decision",
	RunE:  runDiscoverList,
}

var discoverCategory string

var discoverPromoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Move a discovered pattern to active (it will be monitored)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiscoverSetState(store.StateActive),
}

var discoverIgnoreCmd = &cobra.Command{
	Use:   "ignore <id>",
	Short: "Move a discovered pattern to ignored (seen again silently, never monitored)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiscoverSetState(store.StateIgnored),
}

var discoverDisallowCmd = &cobra.Command{
	Use:   "disallow <id>",
	Short: "Move a discovered pattern to disallowed (treated as a banned app)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiscoverSetState(store.StateDisallowed),
}

var discoverConfigCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Show or set a discovery-pipeline parameter (enabled, cpu_threshold, sample_window_seconds, min_samples)",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runDiscoverConfig,
}

func init() {
	discoverPromoteCmd.Flags().StringVar(&discoverCategory, "category", "", "category to assign (defaults to the pattern's existing category)")

	discoverCmd.AddCommand(discoverListCmd, discoverPromoteCmd, discoverIgnoreCmd, discoverDisallowCmd, discoverConfigCmd)
}

func runDiscoverList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	patterns, err := st.ListByState(context.Background(), store.StateDiscovered)
	if err != nil {
		return err
	}

	t := cli.NewTable("ID", "Pattern", "Name", "Type", "Category", "Owner", "Runtime")
	for _, p := range patterns {
		owner := p.Owner
		if owner == "" {
			owner = "(global)"
		}
		t.Append([]string{strconv.FormatInt(p.ID, 10), p.PatternText, p.DisplayName, string(p.PatternType),
			string(p.Category), owner, cli.FormatDuration(p.TotalRuntimeSeconds)})
	}
	t.Render()
	return nil
}

func runDiscoverSetState(state store.MonitorState) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := context.Background()

		category := store.Category(discoverCategory)
		if category == "" {
			patterns, err := st.ListAll(ctx)
			if err != nil {
				return err
			}
			for _, p := range patterns {
				if p.ID == id {
					category = p.Category
					break
				}
			}
		}

		if err := st.SetMonitorState(ctx, id, state, category); err != nil {
			cli.PrintError("%s", err)
			return err
		}
		cli.PrintSuccess("pattern #%d -> %s", id, state)
		return nil
	}
}

func runDiscoverConfig(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	if len(args) == 2 {
		if err := st.SetDiscoveryConfig(ctx, args[0], args[1]); err != nil {
			cli.PrintError("%s", err)
			return err
		}
		cli.PrintSuccess("discovery config %s = %s", args[0], args[1])
		return nil
	}

	cfg, err := st.GetDiscoveryConfig(ctx)
	if err != nil {
		return err
	}
	cli.PrintHeader("Discovery configuration")
	t := cli.NewTable("Key", "Value")
	t.Append([]string{"enabled", strconv.FormatBool(cfg.Enabled)})
	t.Append([]string{"cpu_threshold", strconv.FormatFloat(cfg.CPUThreshold, 'f', 1, 64)})
	t.Append([]string{"sample_window_seconds", strconv.Itoa(cfg.SampleWindowSeconds)})
	t.Append([]string{"min_samples", strconv.Itoa(cfg.MinSamples)})
	t.Render()
	return nil
}
