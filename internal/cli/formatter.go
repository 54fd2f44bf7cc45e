// Package cli holds the reusable pieces of the playtimed administrative
// commands in cmd/playtimed: colorized print helpers, table construction,
// duration and schedule-window formatting, and the schedule spec-language
// parser with its JSON export/import.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgMagenta, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func init() {
	if !isTerminal(os.Stdout) {
		color.NoColor = true
	}
}

func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func PrintSuccess(format string, a ...any) { successColor.Printf(format+"\n", a...) }
func PrintError(format string, a ...any)   { errorColor.Printf(format+"\n", a...) }
func PrintWarning(format string, a ...any) { warningColor.Printf(format+"\n", a...) }
func PrintInfo(format string, a ...any)    { infoColor.Printf(format+"\n", a...) }
func PrintHeader(format string, a ...any)  { headerColor.Printf(format+"\n", a...) }
func PrintDim(format string, a ...any)     { dimColor.Printf(format+"\n", a...) }

// NewTable builds a tablewriter configured the way every playtimed
// command renders tabular output: bold magenta header, no border.
func NewTable(headers ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(os.Stdout)
	t.SetHeader(headers)
	t.SetBorder(false)
	t.SetAutoWrapText(false)
	colors := make([]tablewriter.Colors, len(headers))
	for i := range colors {
		colors[i] = tablewriter.Colors{tablewriter.FgMagentaColor, tablewriter.Bold}
	}
	t.SetHeaderColor(colors...)
	return t
}

// FormatDuration renders a second count the way the daemon's own
// messages and reports do: "42 seconds", "5 minutes", "3h 12m".
func FormatDuration(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// fmtHour renders an hour-of-day as 12-hour clock time, e.g. 17 -> "5:00 PM".
func fmtHour(h int) string {
	switch {
	case h == 0 || h == 24:
		return "12:00 AM"
	case h == 12:
		return "12:00 PM"
	case h < 12:
		return fmt.Sprintf("%d:00 AM", h)
	default:
		return fmt.Sprintf("%d:00 PM", h-12)
	}
}

// AllowedWindow renders a single weekday's slice of a 168-char schedule
// string as human-readable ranges, e.g. "7:00 AM - 9:00 AM, 5:00 PM -
// 10:00 PM", or "none" if the day is fully blocked.
func AllowedWindow(schedule string, day int) string {
	if len(schedule) != 168 || day < 0 || day > 6 {
		return "none"
	}
	daySched := schedule[day*24 : (day+1)*24]

	var ranges []string
	start := -1
	for h := 0; h <= 24; h++ {
		inRange := h < 24 && daySched[h] == '1'
		switch {
		case inRange && start == -1:
			start = h
		case !inRange && start != -1:
			ranges = append(ranges, fmt.Sprintf("%s - %s", fmtHour(start), fmtHour(h)))
			start = -1
		}
	}
	if len(ranges) == 0 {
		return "none"
	}
	return strings.Join(ranges, ", ")
}

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func WeekdayName(i int) string {
	if i < 0 || i > 6 {
		return "?"
	}
	return weekdayNames[i]
}
