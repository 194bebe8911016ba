package ui

import (
	"fmt"
	"sort"
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Red(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Println(Green(msg))
}

// PrintInfo prints a labeled value in cyan/yellow
func PrintInfo(label string, value string) {
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string) {
	fmt.Println(Yellow(msg))
}

// PrintSummary renders the per-extension download summary.
func PrintSummary(downloaded map[string]int, rejected, duplicates, failed int) {
	fmt.Println(Magenta("Download summary:"))

	exts := make([]string, 0, len(downloaded))
	total := 0
	for ext, count := range downloaded {
		exts = append(exts, ext)
		total += count
	}
	sort.Strings(exts)
	for _, ext := range exts {
		fmt.Printf("  %s: %d files\n", Cyan(ext), downloaded[ext])
	}

	fmt.Printf("  %s: %d\n", Green("downloaded"), total)
	fmt.Printf("  %s: %d\n", Yellow("rejected"), rejected)
	fmt.Printf("  %s: %d\n", Yellow("duplicates"), duplicates)
	if failed > 0 {
		fmt.Printf("  %s: %d\n", Red("failed"), failed)
	}
}
