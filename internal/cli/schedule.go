package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const scheduleLen = 168

var dayIndex = map[string]int{
	"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6,
}

// ValidateSchedule enforces the on-disk invariant: exactly 168 characters,
// every one '0' or '1'.
func ValidateSchedule(schedule string) error {
	if len(schedule) != scheduleLen {
		return fmt.Errorf("schedule must be %d characters, got %d", scheduleLen, len(schedule))
	}
	for i, c := range schedule {
		if c != '0' && c != '1' {
			return fmt.Errorf("schedule char %d is %q, must be '0' or '1'", i, c)
		}
	}
	return nil
}

// ParseDayTokens turns a comma-free day token ("mon", "tue..fri") into the
// list of weekday indices (Monday=0) it names.
func ParseDayTokens(tok string) ([]int, error) {
	tok = strings.ToLower(strings.TrimSpace(tok))
	if start, end, ok := strings.Cut(tok, ".."); ok {
		startIdx, ok1 := dayIndex[start]
		endIdx, ok2 := dayIndex[end]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unrecognised day range %q", tok)
		}
		var days []int
		for d := startIdx; ; d = (d + 1) % 7 {
			days = append(days, d)
			if d == endIdx {
				break
			}
		}
		return days, nil
	}
	idx, ok := dayIndex[tok]
	if !ok {
		return nil, fmt.Errorf("unrecognised day %q", tok)
	}
	return []int{idx}, nil
}

// ParseHourTokens turns "all", "17", or "17..22" into the list of hours
// (0-23) it names.
func ParseHourTokens(tok string) ([]int, error) {
	tok = strings.ToLower(strings.TrimSpace(tok))
	if tok == "all" {
		hours := make([]int, 24)
		for h := range hours {
			hours[h] = h
		}
		return hours, nil
	}
	if start, end, ok := strings.Cut(tok, ".."); ok {
		startH, err1 := strconv.Atoi(start)
		endH, err2 := strconv.Atoi(end)
		if err1 != nil || err2 != nil || startH < 0 || startH > 23 || endH < 0 || endH > 23 {
			return nil, fmt.Errorf("unrecognised hour range %q", tok)
		}
		var hours []int
		for h := startH; ; h = (h + 1) % 24 {
			hours = append(hours, h)
			if h == endH {
				break
			}
		}
		return hours, nil
	}
	h, err := strconv.Atoi(tok)
	if err != nil || h < 0 || h > 23 {
		return nil, fmt.Errorf("unrecognised hour %q", tok)
	}
	return []int{h}, nil
}

// ApplyScheduleEdit applies a comma-separated list of "<days> <hours>
// <+|->" clauses to a 168-char schedule string, returning the edited
// result. Each clause's days x hours product is set to '1' (+) or '0' (-).
func ApplyScheduleEdit(schedule, spec string) (string, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return "", err
	}
	buf := []byte(schedule)

	for _, clause := range strings.Split(spec, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		fields := strings.Fields(clause)
		if len(fields) != 3 {
			return "", fmt.Errorf("clause %q must be \"<days> <hours> <+|->\"", clause)
		}
		dayTok, hourTok, sign := fields[0], fields[1], fields[2]
		if sign != "+" && sign != "-" {
			return "", fmt.Errorf("clause %q: sign must be + or -", clause)
		}
		set := byte('0')
		if sign == "+" {
			set = '1'
		}

		var days []int
		for _, d := range strings.Split(dayTok, ",") {
			parsed, err := ParseDayTokens(d)
			if err != nil {
				return "", fmt.Errorf("clause %q: %w", clause, err)
			}
			days = append(days, parsed...)
		}
		hours, err := ParseHourTokens(hourTok)
		if err != nil {
			return "", fmt.Errorf("clause %q: %w", clause, err)
		}

		for _, d := range days {
			for _, h := range hours {
				buf[d*24+h] = set
			}
		}
	}
	return string(buf), nil
}

// ScheduleExport is the JSON export/import payload shape: {username: {schedule, daily_limits}}.
type ScheduleExport struct {
	Schedule    string `json:"schedule"`
	DailyLimits [7]int `json:"daily_limits"`
}

// ExportSchedules renders the given users' schedules as the export JSON.
func ExportSchedules(users map[string]ScheduleExport) ([]byte, error) {
	return json.MarshalIndent(users, "", "  ")
}

// ImportSchedules parses and validates the export JSON, rejecting any
// entry whose schedule or daily_limits fail the on-disk invariant.
func ImportSchedules(data []byte) (map[string]ScheduleExport, error) {
	var payload map[string]ScheduleExport
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse schedule import: %w", err)
	}
	for user, entry := range payload {
		if err := ValidateSchedule(entry.Schedule); err != nil {
			return nil, fmt.Errorf("user %s: %w", user, err)
		}
		for _, m := range entry.DailyLimits {
			if m < 0 {
				return nil, fmt.Errorf("user %s: daily_limits must be non-negative", user)
			}
		}
	}
	return payload, nil
}
