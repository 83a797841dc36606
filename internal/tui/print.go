package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D787"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
)

// IsInteractive reports whether stdout is a terminal — the signal the CLI
// collaborator uses to pick between the bubbletea progress renderer and
// the plain-text one.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// StyleTitle renders title in the engine's accent color.
func StyleTitle(title string) string {
	return titleStyle.Render(title)
}

// PrintError prints a styled error with its source id / title.
func PrintError(title, message string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+title)+": "+message)
}

// PrintSuccess prints a styled success line.
func PrintSuccess(message string) {
	fmt.Println(successStyle.Render("✓ ") + message)
}

// PrintWarning prints a styled warning with its title.
func PrintWarning(title, message string) {
	fmt.Fprintln(os.Stderr, warnStyle.Render("⚠ "+title)+": "+message)
}
