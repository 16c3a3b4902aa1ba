package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/policydesk/internal/session"
	"github.com/csheth/policydesk/internal/transcript"
)

type sessionReadyMsg struct {
	session *session.Manager
	err     error
}

type uploadResultMsg struct {
	upload session.Upload
	err    error
}

type startResultMsg struct {
	err error
}

type turnResultMsg struct {
	replies []string
	err     error
}

type exportResultMsg struct {
	path string
	err  error
}

// connectJob builds the session and, for Staff, starts it straight away.
func connectJob(factory SessionFactory, role session.Role, apiKey string, autoStart bool) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		mgr, err := factory(role, apiKey)
		if err != nil {
			return sessionReadyMsg{err: err}, err
		}
		if autoStart {
			ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
			defer cancel()
			if err := mgr.Start(ctx); err != nil {
				return sessionReadyMsg{session: mgr, err: err}, err
			}
		}
		return sessionReadyMsg{session: mgr}, nil
	}
}

func uploadJob(mgr *session.Manager, path string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()
		up, err := mgr.UploadPath(ctx, path)
		return uploadResultMsg{upload: up, err: err}, err
	}
}

func startJob(mgr *session.Manager) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()
		err := mgr.Start(ctx)
		return startResultMsg{err: err}, err
	}
}

func turnJob(mgr *session.Manager, prompt string, timeout time.Duration) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		replies, err := mgr.SubmitUserTurn(ctx, prompt, "")
		return turnResultMsg{replies: replies, err: err}, err
	}
}

func exportJob(dir string, snapshot transcript.Snapshot, exporter transcript.Exporter) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		path, err := transcript.Save(dir, snapshot, exporter)
		return exportResultMsg{path: path, err: err}, err
	}
}
