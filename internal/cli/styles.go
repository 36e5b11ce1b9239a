// Package cli holds the lipgloss styling shared by the f120 command line
package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#0077B6") // implant blue
	accentColor  = lipgloss.Color("#FFA500") // orange
	warnColor    = lipgloss.Color("#FFA500")
	errorColor   = lipgloss.Color("#A40000") // red
	mutedColor   = lipgloss.Color("#888888") // gray
	textColor    = lipgloss.Color("#FFFFFF") // white
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	WarningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warnColor)

	// Key-value pair styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

// PrintVersion prints version information along with the coding strategy
func PrintVersion(w io.Writer, version, strategy string) {
	fmt.Fprintln(w, TitleStyle.Render("F120 👂"))
	printKeyValue(w, "Version:", version)
	printKeyValue(w, "Strategy:", strategy)
	printKeyValue(w, "Go:", runtime.Version())
	fmt.Fprintln(w)
}

func printKeyValue(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render(fmt.Sprintf("%-9s", key)), ValueStyle.Render(value))
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintWarning prints a non-fatal problem, such as a failed validation that still saved output
func PrintWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", WarningStyle.Render("Warning:"), message)
}
