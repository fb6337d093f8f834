package main

import (
	"fmt"
	"os"
)

// ANSI SGR codes for terminal output. Color is suppressed by the --no-color
// flag or the NO_COLOR convention (https://no-color.org).
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorEnabled() bool {
	if noColor {
		return false
	}
	_, set := os.LookupEnv("NO_COLOR")
	return !set
}

func colorize(color, text string) string {
	if !colorEnabled() {
		return text
	}
	return color + text + colorReset
}

// say prints a marked, colorized line to stderr so command results on
// stdout stay pipeable.
func say(color, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { say(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { say(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { say(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { say(colorCyan, "→", format, args...) }

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n",
		colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}
