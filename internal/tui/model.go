package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/policydesk/internal/session"
	"github.com/csheth/policydesk/internal/transcript"
)

// SessionFactory builds a session for a role using the given API key.
type SessionFactory func(role session.Role, apiKey string) (*session.Manager, error)

// Config wires runtime options into the TUI program.
type Config struct {
	// Role skips the role selector when set.
	Role session.Role
	// APIKey comes from the environment or config file. Manager sessions
	// prompt for one when it is empty.
	APIKey       string
	NewSession   SessionFactory
	ExportDir    string
	ExportFormat string
	TurnTimeout  time.Duration
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	if config.TurnTimeout <= 0 {
		config.TurnTimeout = defaultTurnTimeout
	}

	keyInput := textinput.New()
	keyInput.Placeholder = keyPlaceholder
	keyInput.EchoMode = textinput.EchoPassword
	keyInput.EchoCharacter = '•'
	keyInput.CharLimit = 200
	keyInput.Width = 60

	pathInput := textinput.New()
	pathInput.Placeholder = pathPlaceholder
	pathInput.CharLimit = 512
	pathInput.Width = 70

	composer := textinput.New()
	composer.Placeholder = composerPlaceholder
	composer.CharLimit = 2000
	composer.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	m := &model{
		config:      config,
		stage:       stageRole,
		layout:      newPageLayout(),
		jobs:        newJobBus(),
		running:     make(map[string]jobSnapshot),
		keyInput:    keyInput,
		pathInput:   pathInput,
		composer:    composer,
		spinner:     spin,
		viewport:    vp,
		infoMessage: "Choose your role to begin.",
	}
	if config.Role != "" {
		for idx, role := range roleChoices {
			if role == config.Role {
				m.roleCursor = idx
			}
		}
		m.initCmd = m.selectRole(config.Role)
	}
	return m
}

type model struct {
	config Config
	stage  stage
	layout pageLayout
	jobs   *jobBus

	roleCursor int
	role       session.Role
	setupField setupField

	keyInput  textinput.Model
	pathInput textinput.Model
	composer  textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model

	session   *session.Manager
	uploads   []session.Upload
	running   map[string]jobSnapshot
	initCmd   tea.Cmd

	errorMessage   string
	warningMessage string
	infoMessage    string
	viewportDirty  bool
}

func (m *model) Init() tea.Cmd {
	if m.initCmd != nil {
		return tea.Batch(textinput.Blink, m.initCmd)
	}
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.viewport.Width = m.layout.viewportWidth
		m.viewport.Height = m.layout.viewportHeight
		m.composer.Width = m.layout.viewportWidth - 4
		m.markViewportDirty()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.jobs.CancelAll()
			return m, tea.Quit
		}
		switch m.stage {
		case stageRole:
			return m.handleRoleKey(msg)
		case stageSetup:
			return m.handleSetupKey(msg)
		default:
			return m.handleChatKey(msg)
		}
	case tea.MouseMsg:
		if m.stage == stageChat {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	case jobSignalMsg:
		m.running[msg.Snapshot.ID] = msg.Snapshot
		return m, m.spinner.Tick
	case jobResultEnvelope:
		delete(m.running, msg.Snapshot.ID)
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case sessionReadyMsg:
		return m.handleSessionReady(msg)
	case uploadResultMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.uploads = append(m.uploads, msg.upload)
		m.pathInput.SetValue("")
		m.errorMessage = ""
		m.warningMessage = ""
		m.infoMessage = fmt.Sprintf("Uploaded %s (%s). Press ctrl+s to start the chat.", msg.upload.Filename, msg.upload.FileID)
		return m, nil
	case startResultMsg:
		if msg.err != nil {
			if errors.Is(msg.err, session.ErrNoUploads) {
				m.warningMessage = noUploadsWarning
				return m, nil
			}
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		return m, m.enterChat()
	case turnResultMsg:
		m.markViewportDirty()
		if errors.Is(msg.err, context.Canceled) {
			m.errorMessage = ""
			m.infoMessage = "Turn cancelled."
			return m, nil
		}
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			m.infoMessage = "The assistant could not answer. Try again."
			return m, nil
		}
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("Received %d %s.", len(msg.replies), pluralize(len(msg.replies), "reply", "replies"))
		return m, nil
	case exportResultMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.infoMessage = "Transcript saved to " + msg.path
		return m, nil
	}

	return m.updateFocusedInput(msg)
}

func (m *model) handleRoleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy() {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.roleCursor > 0 {
			m.roleCursor--
		}
	case "down", "j":
		if m.roleCursor < len(roleChoices)-1 {
			m.roleCursor++
		}
	case "enter":
		return m, m.selectRole(roleChoices[m.roleCursor])
	case "q", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) selectRole(role session.Role) tea.Cmd {
	m.role = role
	m.errorMessage = ""
	m.warningMessage = ""
	if m.config.NewSession == nil {
		m.errorMessage = "No assistant service is configured."
		return nil
	}
	switch role {
	case session.RoleManager:
		m.stage = stageSetup
		if strings.TrimSpace(m.config.APIKey) == "" {
			m.setupField = setupFieldKey
			m.infoMessage = "Enter your OpenAI API key."
			return m.keyInput.Focus()
		}
		m.infoMessage = "Connecting…"
		return m.jobs.Start(jobKindConnect, connectJob(m.config.NewSession, role, m.config.APIKey, false))
	default:
		if strings.TrimSpace(m.config.APIKey) == "" {
			m.stage = stageRole
			m.errorMessage = "OPENAI_API_KEY is not set."
			return nil
		}
		m.infoMessage = "Preparing the Staff assistant…"
		return m.jobs.Start(jobKindConnect, connectJob(m.config.NewSession, role, m.config.APIKey, true))
	}
}

func (m *model) handleSessionReady(msg sessionReadyMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		if m.role == session.RoleManager {
			m.setupField = setupFieldKey
			return m, m.keyInput.Focus()
		}
		m.stage = stageRole
		return m, nil
	}
	m.session = msg.session
	m.errorMessage = ""
	if m.role == session.RoleManager {
		m.setupField = setupFieldPath
		m.keyInput.Blur()
		m.infoMessage = "Upload policy documents, then press ctrl+s to start the chat."
		return m, m.pathInput.Focus()
	}
	return m, m.enterChat()
}

func (m *model) handleSetupKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		m.resetToRoles()
		return m, nil
	case tea.KeyCtrlS:
		if m.session == nil || m.busy() {
			return m, nil
		}
		m.warningMessage = ""
		m.infoMessage = "Starting chat…"
		return m, m.jobs.Start(jobKindStart, startJob(m.session))
	case tea.KeyEnter:
		if m.busy() {
			return m, nil
		}
		if m.setupField == setupFieldKey {
			value := strings.TrimSpace(m.keyInput.Value())
			if value == "" {
				m.errorMessage = "An API key is required."
				return m, nil
			}
			m.errorMessage = ""
			m.infoMessage = "Connecting…"
			return m, m.jobs.Start(jobKindConnect, connectJob(m.config.NewSession, m.role, value, false))
		}
		path := strings.TrimSpace(m.pathInput.Value())
		if path == "" || m.session == nil {
			return m, nil
		}
		m.errorMessage = ""
		m.infoMessage = "Uploading " + path + "…"
		return m, m.jobs.Start(jobKindUpload, uploadJob(m.session, path))
	}
	return m.updateFocusedInput(key)
}

func (m *model) handleChatKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		if m.busy() {
			if turn, ok := m.runningJob(jobKindTurn); ok && m.jobs.Cancel(turn.ID) {
				m.infoMessage = "Cancelling the current turn…"
			}
			return m, nil
		}
		m.resetToRoles()
		return m, nil
	case tea.KeyCtrlE:
		return m, m.exportCmd()
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(key)
		return m, cmd
	case tea.KeyEnter:
		prompt := strings.TrimSpace(m.composer.Value())
		if prompt == "" {
			return m, nil
		}
		if m.busy() {
			m.infoMessage = "Please wait for the current reply."
			return m, nil
		}
		m.composer.SetValue("")
		m.errorMessage = ""
		m.infoMessage = "Waiting for the assistant…"
		m.markViewportDirty()
		return m, m.jobs.Start(jobKindTurn, turnJob(m.session, prompt, m.config.TurnTimeout))
	}
	return m.updateFocusedInput(key)
}

func (m *model) updateFocusedInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.stage == stageChat:
		m.composer, cmd = m.composer.Update(msg)
	case m.stage == stageSetup && m.setupField == setupFieldKey:
		m.keyInput, cmd = m.keyInput.Update(msg)
	case m.stage == stageSetup:
		m.pathInput, cmd = m.pathInput.Update(msg)
	}
	return m, cmd
}

func (m *model) enterChat() tea.Cmd {
	m.stage = stageChat
	m.warningMessage = ""
	m.pathInput.Blur()
	m.infoMessage = "Chat started. Ask a question and press Enter."
	m.markViewportDirty()
	return m.composer.Focus()
}

func (m *model) resetToRoles() {
	if m.session != nil {
		m.session.End()
	}
	m.session = nil
	m.uploads = nil
	m.stage = stageRole
	m.keyInput.SetValue("")
	m.keyInput.Blur()
	m.pathInput.SetValue("")
	m.pathInput.Blur()
	m.composer.SetValue("")
	m.composer.Blur()
	m.errorMessage = ""
	m.warningMessage = ""
	m.infoMessage = "Choose your role to begin."
}

func (m *model) exportCmd() tea.Cmd {
	if m.session == nil {
		return nil
	}
	if m.busy() {
		m.infoMessage = "Please wait for the current turn to finish before exporting."
		return nil
	}
	snapshot := m.session.Transcript().Snapshot()
	if len(snapshot.Entries) == 0 {
		m.infoMessage = "Nothing to export yet."
		return nil
	}
	exporter, err := transcript.NewExporter(m.config.ExportFormat)
	if err != nil {
		m.errorMessage = err.Error()
		return nil
	}
	return m.jobs.Start(jobKindExport, exportJob(m.config.ExportDir, snapshot, exporter))
}

func (m *model) busy() bool { return len(m.running) > 0 }

func (m *model) runningJob(kind jobKind) (jobSnapshot, bool) {
	for _, job := range m.running {
		if job.Kind == kind {
			return job, true
		}
	}
	return jobSnapshot{}, false
}

func (m *model) markViewportDirty() {
	m.viewportDirty = true
}

func (m *model) refreshViewportIfDirty() {
	if !m.viewportDirty {
		return
	}
	m.viewportDirty = false
	var entries []transcript.Entry
	if m.session != nil {
		entries = m.session.Transcript().Entries()
	}
	m.viewport.SetContent(renderTranscript(entries, m.viewport.Width))
	m.viewport.GotoBottom()
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
