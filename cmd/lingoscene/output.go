package main

// Terminal output for the lingoscene CLI. Everything human-facing goes to
// stderr so stdout stays free for the MCP stdio transport.

import (
	"fmt"
	"os"

	"github.com/ekazakov/lingoscene/internal/practice"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+fmt.Sprintf(format, args...)))
}

// feedbackRows flattens a feedback card into ordered label/value pairs,
// skipping fields the evaluator left empty.
func feedbackRows(fb practice.Feedback) [][2]string {
	all := [][2]string{
		{"Minimal fix", fb.MinimalFix},
		{"Why", fb.MicroReason},
		{"Best version", fb.BestDescription},
		{"Keep it up", fb.Encouragement},
	}
	rows := make([][2]string, 0, len(all))
	for _, row := range all {
		if row[1] != "" {
			rows = append(rows, row)
		}
	}
	return rows
}

// printFeedback renders the feedback card returned by a submission.
func printFeedback(fb practice.Feedback) {
	fmt.Fprintln(os.Stderr)
	for _, row := range feedbackRows(fb) {
		printStatus(row[0], "%s", row[1])
	}
}
