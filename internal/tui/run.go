package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rbright/askvoice/internal/session"
)

// Run shows the voice input until the user quits. The controller is torn down on exit.
func Run(ctx context.Context, ctrl Controller, notes Notifications, committer session.Committer) error {
	defer ctrl.Teardown()
	program := tea.NewProgram(New(ctx, ctrl, notes, committer), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}
