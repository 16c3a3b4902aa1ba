package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/csheth/policydesk/internal/assistant"
	"github.com/csheth/policydesk/internal/config"
	"github.com/csheth/policydesk/internal/logging"
	"github.com/csheth/policydesk/internal/session"
)

var (
	version = "dev"
	commit  = "unknown"
)

type app struct {
	configPath string
	verbose    bool
	logFile    string

	cfg       config.Config
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "policydesk",
		Short: "Chat with the aged-care policy assistant",
		Long: `PolicyDesk is a terminal chat front-end for Staff and Manager roles.

Staff ask questions against the shared policy reference document. Managers
upload their own policy files first and chat against those.

Quick Start:
  policydesk                              # open the chat UI
  policydesk ask "How are falls reported?" # one question, printed answer
  policydesk upload policy.pdf            # upload files as Manager
  policydesk reference build *.pdf        # rebuild all_pdfs_text.txt`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logCloser != nil {
				_ = a.logCloser.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "write logs to this file")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	chat := newChatCmd(a)
	root.RunE = chat.RunE
	root.Flags().AddFlagSet(chat.Flags())

	root.AddCommand(chat, newAskCmd(a), newUploadCmd(a), newReferenceCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	opts := logging.Options{Level: cfg.LogLevel, Verbose: a.verbose, Stderr: cmd.ErrOrStderr(), Console: true}
	switch {
	case a.logFile != "":
		opts.File = a.logFile
	case isInteractive(cmd):
		// The chat UI owns the terminal.
		opts.File = cfg.LogFile
	}
	closer, err := logging.Setup(opts)
	if err != nil {
		return err
	}
	a.logCloser = closer
	log.Debug().Interface("config", cfg.Redacted()).Msg("configuration loaded")
	return nil
}

func isInteractive(cmd *cobra.Command) bool {
	return cmd.Name() == "chat" || !cmd.HasParent()
}

func (a *app) newService(apiKey string) assistant.Service {
	return assistant.New(assistant.Config{
		APIKey:     apiKey,
		BaseURL:    a.cfg.BaseURL,
		HTTPClient: &http.Client{Timeout: a.cfg.HTTPTimeout},
	})
}

func (a *app) sessionOptions(role session.Role) session.Options {
	opts := session.Options{
		Role:            role,
		RunInstructions: a.cfg.RunInstructions,
		UploadDir:       a.cfg.UploadDir,
		Model:           a.cfg.Staff.Model,
		AssistantName:   a.cfg.Staff.AssistantName,
		Instructions:    a.cfg.Staff.Instructions,
		ReferencePath:   a.cfg.Staff.Reference,
		Poll: assistant.PollOptions{
			Interval: a.cfg.PollInterval,
			MaxWait:  a.cfg.MaxWait,
		},
	}
	if role == session.RoleManager {
		opts.AssistantID = a.cfg.Manager.AssistantID
	} else {
		opts.AssistantID = a.cfg.Staff.AssistantID
	}
	return opts
}

func (a *app) newSession(role session.Role, apiKey string) (*session.Manager, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("an OpenAI API key is required")
	}
	return session.New(a.newService(apiKey), a.sessionOptions(role)), nil
}
