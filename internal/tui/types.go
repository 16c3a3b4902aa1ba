package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/csheth/policydesk/internal/session"
)

type stage int

const (
	stageRole stage = iota
	stageSetup
	stageChat
)

type setupField int

const (
	setupFieldKey setupField = iota
	setupFieldPath
)

var roleChoices = []session.Role{session.RoleStaff, session.RoleManager}

const heroTagline = "Ask about aged-care policies and incidents."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	defaultTurnTimeout        = 5 * time.Minute
)

const (
	composerPlaceholder = "Ask a question about the policies…"
	keyPlaceholder      = "OpenAI API key"
	pathPlaceholder     = "Path to a policy document to upload…"
	noUploadsWarning    = "No files found. Please upload at least one file to get started."
)

var (
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Underline(true)
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	userLabelStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8ecae6"))
	assistantLabel     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffb347"))

	heroAccentColor = lipgloss.Color("#ff8c00")
	taglineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb347")).Italic(true)
	heroTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	selectedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	choiceStyle     = lipgloss.NewStyle().Padding(0, 1)
	statusBarStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
)
