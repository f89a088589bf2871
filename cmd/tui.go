package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunemirror/internal/shared"
	"github.com/desertthunder/tunemirror/internal/ui"
)

// TUI launches the interactive terminal UI over the local mirror.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	acct, err := r.signedIn(ctx, e)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, ui.Deps{
		Remote: acct.client,
		Engine: e.engine,
		Store:  e.store,
		User:   acct.user,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
