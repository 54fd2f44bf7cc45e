package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/cli"
	"github.com/aaronsb/playtimed/internal/store"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Manage the process/browser pattern catalogue",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every pattern in the catalogue",
	RunE:  runPatternsList,
}

var (
	patternOwner        string
	patternCategory     string
	patternCPUThreshold float64
	patternBrowser      string
)

var patternsAddCmd = &cobra.Command{
	Use:   "add <pattern-text> <display-name>",
	Short: "Add a new catalogue entry in the active state",
	Args:  cobra.ExactArgs(2),
	RunE:  runPatternsAdd,
}

var patternsEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsSetEnabled(true),
}

var patternsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsSetEnabled(false),
}

var patternsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a pattern permanently",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsDelete,
}

var patternsNoteCmd = &cobra.Command{
	Use:   "note <id> <text>",
	Short: "Set a pattern's admin note",
	Args:  cobra.ExactArgs(2),
	RunE:  runPatternsNote,
}

func init() {
	patternsAddCmd.Flags().StringVar(&patternOwner, "owner", "", "username this pattern is scoped to (empty = global)")
	patternsAddCmd.Flags().StringVar(&patternCategory, "category", string(store.CategoryGaming), "category: gaming, launcher, productive, educational, creative")
	patternsAddCmd.Flags().Float64Var(&patternCPUThreshold, "cpu-threshold", 20, "CPU percent threshold (process patterns only)")
	patternsAddCmd.Flags().StringVar(&patternBrowser, "browser", "", "non-empty marks this a browser_domain pattern (chrome, firefox, ...)")

	patternsCmd.AddCommand(patternsListCmd, patternsAddCmd, patternsEnableCmd, patternsDisableCmd, patternsDeleteCmd, patternsNoteCmd)
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	patterns, err := st.ListAll(context.Background())
	if err != nil {
		return err
	}

	t := cli.NewTable("ID", "Name", "State", "Category", "Type", "Owner", "Enabled", "Runtime")
	for _, p := range patterns {
		owner := p.Owner
		if owner == "" {
			owner = "(global)"
		}
		t.Append([]string{strconv.FormatInt(p.ID, 10), p.DisplayName, string(p.MonitorState), string(p.Category),
			string(p.PatternType), owner, strconv.FormatBool(p.Enabled), cli.FormatDuration(p.TotalRuntimeSeconds)})
	}
	t.Render()
	return nil
}

func runPatternsAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	patternType := store.PatternProcess
	cpuThreshold := patternCPUThreshold
	if patternBrowser != "" {
		patternType = store.PatternBrowserDomain
		cpuThreshold = 0
	}

	id, err := st.AddPattern(context.Background(), store.Pattern{
		PatternText:  args[0],
		DisplayName:  args[1],
		Category:     store.Category(patternCategory),
		PatternType:  patternType,
		Browser:      patternBrowser,
		MonitorState: store.StateActive,
		Owner:        patternOwner,
		Enabled:      true,
		CPUThreshold: cpuThreshold,
	})
	if err != nil {
		cli.PrintError("%s", err)
		return err
	}
	cli.PrintSuccess("added pattern #%d", id)
	return nil
}

func runPatternsSetEnabled(enabled bool) func(*cobra.Command, []string) error {
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
		if err := st.SetEnabled(context.Background(), id, enabled); err != nil {
			cli.PrintError("%s", err)
			return err
		}
		cli.PrintSuccess("pattern #%d enabled=%v", id, enabled)
		return nil
	}
}

func runPatternsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.DeletePattern(context.Background(), id); err != nil {
		cli.PrintError("%s", err)
		return err
	}
	cli.PrintSuccess("deleted pattern #%d", id)
	return nil
}

func runPatternsNote(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.SetNotes(context.Background(), id, args[1]); err != nil {
		cli.PrintError("%s", err)
		return err
	}
	cli.PrintSuccess("updated note on pattern #%d", id)
	return nil
}
