// Package tui provides terminal user interface components and callbacks
// for the sync engine's CLI collaborator: progress rendering, styled
// print helpers, and the UICallback contract.
package tui

import (
	"github.com/fbosch/docs-cache/internal/core"
	"github.com/fbosch/docs-cache/internal/types"

	"github.com/charmbracelet/huh"
)

// UICallback is the narrow interface the CLI hands to the engine so it
// never imports a terminal library directly. The engine only ever calls
// these methods to report progress and outcomes; it never blocks on
// anything but AskConfirmation.
type UICallback interface {
	ShowError(title, message string)
	ShowSuccess(message string)
	ShowWarning(title, message string)
	AskConfirmation(title, message string) bool
	StartProgress(total int, label string) types.ProgressTracker
	GetOutputMode() core.OutputMode
	IsAutoApprove() bool
	FormatJSON(output core.JSONOutput) error
}

// TUICallback implements UICallback for interactive terminal use with styled output.
type TUICallback struct{}

// NewTUICallback creates a new interactive terminal UI callback.
func NewTUICallback() *TUICallback {
	return &TUICallback{}
}

// ShowError displays an error message.
func (t *TUICallback) ShowError(title, message string) {
	PrintError(title, message)
}

// ShowSuccess displays a success message.
func (t *TUICallback) ShowSuccess(message string) {
	PrintSuccess(message)
}

// ShowWarning displays a warning message.
func (t *TUICallback) ShowWarning(title, message string) {
	PrintWarning(title, message)
}

// AskConfirmation prompts the user for yes/no confirmation.
func (t *TUICallback) AskConfirmation(title, message string) bool {
	var confirm bool
	err := huh.NewConfirm().
		Title(title).
		Description(message).
		Value(&confirm).
		Affirmative("Yes").
		Negative("No").
		Run()
	if err != nil {
		return false
	}
	return confirm
}

// StartProgress returns a bubbletea-backed progress tracker when stdout
// is a terminal, and a plain text one otherwise.
func (t *TUICallback) StartProgress(total int, label string) types.ProgressTracker {
	if IsInteractive() {
		return NewBubbletaeProgressTracker(total, label)
	}
	return NewTextProgressTracker(total, label)
}

// GetOutputMode returns the output mode (normal for interactive TUI).
func (t *TUICallback) GetOutputMode() core.OutputMode {
	return core.OutputNormal
}

// IsAutoApprove returns whether auto-approve is enabled (always false for interactive mode).
func (t *TUICallback) IsAutoApprove() bool {
	return false
}

// FormatJSON is not used in interactive mode.
func (t *TUICallback) FormatJSON(_ core.JSONOutput) error {
	return nil
}
