package main

import (
	"fmt"
	"os"
)

// All human-facing status output goes to stderr so stdout stays clean for
// answers and JSON.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

func styled(code, text string) string {
	if noColor {
		return text
	}
	return code + text + ansiReset
}

func note(code, prefix, format string, args ...any) {
	fmt.Fprintln(os.Stderr, styled(code, prefix+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { note(ansiGreen, "✔ ", format, args...) }

func printError(format string, args ...any) { note(ansiRed, "✘ ", format, args...) }

func printWarning(format string, args ...any) { note(ansiYellow, "! ", format, args...) }

func printStep(format string, args ...any) { note(ansiCyan, "· ", format, args...) }

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", styled(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
