package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/csheth/policydesk/internal/session"
)

type askOptions struct {
	role         string
	files        []string
	instructions string
}

func newAskCmd(a *app) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the cited answer",
		Example: `  policydesk ask "How often are care plans reviewed?"
  policydesk ask --role manager --file incident.pdf "Who signs off an incident report?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&opts.role, "role", string(session.RoleStaff), "staff or manager")
	cmd.Flags().StringSliceVarP(&opts.files, "file", "f", nil, "policy file to upload first (manager only, repeatable)")
	cmd.Flags().StringVar(&opts.instructions, "instructions", "", "extra instructions appended for this run")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, opts *askOptions, question string) error {
	role, err := session.ParseRole(opts.role)
	if err != nil {
		return err
	}
	if role == session.RoleStaff && len(opts.files) > 0 {
		return errors.New("--file is only used by manager sessions")
	}
	key, err := a.apiKey(cmd)
	if err != nil {
		return err
	}
	mgr, err := a.newSession(role, key)
	if err != nil {
		return err
	}
	defer mgr.End()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := uploadAll(ctx, mgr, opts.files); err != nil {
		return err
	}
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	replies, err := mgr.SubmitUserTurn(ctx, question, opts.instructions)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(replies) == 0 {
		fmt.Fprintln(out, "(no reply)")
		return nil
	}
	fmt.Fprintln(out, strings.Join(replies, "\n\n"))
	return nil
}

// apiKey returns the configured key or reads one from the terminal.
func (a *app) apiKey(cmd *cobra.Command) (string, error) {
	if a.cfg.APIKey != "" {
		return a.cfg.APIKey, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("OPENAI_API_KEY is not set")
	}
	return readAPIKey(cmd.ErrOrStderr(), func() ([]byte, error) { return term.ReadPassword(fd) })
}

func readAPIKey(prompt io.Writer, read func() ([]byte, error)) (string, error) {
	fmt.Fprint(prompt, "Enter your OpenAI API key: ")
	raw, err := read()
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read API key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", errors.New("an OpenAI API key is required")
	}
	return key, nil
}
