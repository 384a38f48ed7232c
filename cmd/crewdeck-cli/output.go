package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/tcmartin/crewdeck/pkg/models"
)

var (
	bold    = color.New(color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	success = color.New(color.FgGreen).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
	accent  = color.New(color.FgCyan).SprintFunc()
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes rows aligned under a header
func printTable(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, bold(strings.Join(header, "\t")))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// printFields writes label/value pairs, skipping empty values
func printFields(w io.Writer, fields [][2]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", faint(f[0]+":"), f[1])
	}
	return tw.Flush()
}

func colorStatus(s models.ExecutionStatus) string {
	switch s {
	case models.StatusCompleted:
		return success(string(s))
	case models.StatusFailed:
		return failure(string(s))
	case models.StatusCancelled, models.StatusWaitingHuman:
		return warning(string(s))
	case models.StatusRunning:
		return accent(string(s))
	default:
		return string(s)
	}
}

func colorLevel(level string) string {
	switch level {
	case "error":
		return failure(level)
	case "warning", "warn":
		return warning(level)
	case "success":
		return success(level)
	case "debug":
		return faint(level)
	default:
		return accent(level)
	}
}

func yesNo(b bool) string {
	if b {
		return success("yes")
	}
	return faint("no")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.Local().Format("15:04:05")
}
