package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/csheth/policydesk/internal/session"
	"github.com/csheth/policydesk/internal/tui"
)

type chatOptions struct {
	role         string
	noAltScreen  bool
	exportFormat string
}

func newChatCmd(a *app) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(opts)
		},
	}
	cmd.Flags().StringVar(&opts.role, "role", "", "skip the role selector (staff or manager)")
	cmd.Flags().BoolVar(&opts.noAltScreen, "no-alt-screen", false, "disable the alternate screen buffer")
	cmd.Flags().StringVar(&opts.exportFormat, "export-format", "md", "transcript export format (md, json, yaml)")
	return cmd
}

func (a *app) runChat(opts *chatOptions) error {
	var role session.Role
	if opts.role != "" {
		parsed, err := session.ParseRole(opts.role)
		if err != nil {
			return err
		}
		role = parsed
	}

	turnTimeout := a.cfg.MaxWait
	if turnTimeout > 0 {
		// Leave room for the message post and the reply listing.
		turnTimeout += 2 * a.cfg.HTTPTimeout
	}

	var programOpts []tea.ProgramOption
	if !opts.noAltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Role:         role,
			APIKey:       a.cfg.APIKey,
			NewSession:   a.newSession,
			ExportDir:    a.cfg.ExportDir,
			ExportFormat: opts.exportFormat,
			TurnTimeout:  turnTimeout,
		}),
		programOpts...,
	)

	log.Info().Str("role", string(role)).Msg("starting chat UI")
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}
