// Command playtimed is the per-host parental-control daemon and its
// administrative CLI, bundled into a single binary: "playtimed run"
// starts the daemon, every other subcommand is an admin tool that
// opens the sqlite store directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/store"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "playtimed",
	Short: "Per-host parental-control daemon",
	Long:  "playtimed monitors gaming processes and browser tabs against per-user schedules and daily limits, enforcing them and logging every decision.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "/var/lib/playtimed/playtimed.db", "path to the playtimed sqlite database")
	rootCmd.AddCommand(runCmd, statusCmd, historyCmd, sessionsCmd, auditCmd, reportCmd,
		heatmapCmd, scheduleCmd, modeCmd, patternsCmd, discoverCmd, userCmd, messageCmd, maintenanceCmd)
}

func openStore() (*store.Store, error) {
	return store.Open(store.DefaultConfig(dbPath))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
