package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"spoton/internal/session"
	"spoton/internal/shared"
	"spoton/internal/ui"
)

// loginFlow adapts the CLI login round trip to the TUI's [ui.LoginFlow].
type loginFlow struct {
	runner *Runner
	mgr    *session.Manager
}

func (f *loginFlow) Login(ctx context.Context) error {
	return f.runner.runLoginFlow(ctx, f.mgr)
}

// TUI launches the interactive session view.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	spotify, err := r.ensureSpotify()
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/spoton-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	mgr, err := r.ensureSession()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, mgr, &loginFlow{runner: r, mgr: mgr}, spotify)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
