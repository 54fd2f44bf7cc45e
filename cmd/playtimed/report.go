package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/cli"
	"github.com/aaronsb/playtimed/internal/store"
)

var reportDays int

var reportCmd = &cobra.Command{
	Use:   "report [user]",
	Short: "Summarise gaming time, sessions, warnings and enforcements over a period",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReport,
}

var heatmapDays int

var heatmapCmd = &cobra.Command{
	Use:   "heatmap [user]",
	Short: "Show an hour-by-day activity heat-map",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHeatmap,
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "number of days to summarise")
	heatmapCmd.Flags().IntVar(&heatmapDays, "days", 7, "number of days to show")
}

func runReport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	user := ""
	if len(args) == 1 {
		user = args[0]
	}

	since := store.Today(time.Now().AddDate(0, 0, -reportDays))
	summaries, err := st.DailySummariesSince(context.Background(), user, since)
	if err != nil {
		return err
	}

	var totalGaming, totalTime int64
	var sessions, warnings, enforcements int
	for _, d := range summaries {
		totalGaming += d.GamingTimeSeconds
		totalTime += d.TotalTimeSeconds
		sessions += d.SessionCount
		warnings += d.WarningsSent
		enforcements += d.Enforcements
	}

	cli.PrintHeader("Report (last %d days)", reportDays)
	fmt.Printf("  Gaming time:   %s\n", cli.FormatDuration(totalGaming))
	fmt.Printf("  Total time:    %s\n", cli.FormatDuration(totalTime))
	fmt.Printf("  Sessions:      %d\n", sessions)
	fmt.Printf("  Warnings sent: %d\n", warnings)
	fmt.Printf("  Enforcements:  %d\n", enforcements)
	if len(summaries) > 0 {
		fmt.Printf("  Daily average: %s\n", cli.FormatDuration(totalGaming/int64(len(summaries))))
	}
	return nil
}

func runHeatmap(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	user := ""
	if len(args) == 1 {
		user = args[0]
	}

	since := store.Today(time.Now().AddDate(0, 0, -heatmapDays))
	activity, err := st.HourlyActivitySince(context.Background(), user, since)
	if err != nil {
		return err
	}

	byDate := make(map[string][24]int64)
	var dates []string
	for _, h := range activity {
		row, ok := byDate[h.Date]
		if !ok {
			dates = append(dates, h.Date)
		}
		row[h.Hour] = h.GamingSeconds
		byDate[h.Date] = row
	}

	fmt.Print("Date        ")
	for h := 0; h < 24; h++ {
		fmt.Printf("%2d", h%10)
	}
	fmt.Println()
	for _, date := range dates {
		row := byDate[date]
		fmt.Printf("%s  ", date)
		for h := 0; h < 24; h++ {
			fmt.Print(" " + heatCell(row[h]))
		}
		fmt.Println()
	}
	cli.PrintDim("  . none   - light (<30m)   # heavy (>=30m)")
	return nil
}

func heatCell(gamingSeconds int64) string {
	switch {
	case gamingSeconds <= 0:
		return "."
	case gamingSeconds < 30*60:
		return "-"
	default:
		return "#"
	}
}
