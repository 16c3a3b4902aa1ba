package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/csheth/policydesk/internal/session"
)

func (m *model) View() string {
	var body string
	switch m.stage {
	case stageRole:
		body = m.viewRoles()
	case stageSetup:
		body = m.viewSetup()
	default:
		body = m.viewChat()
	}
	return joinNonEmpty([]string{m.heroView(), body, m.statusView(), m.keyLegendView()})
}

func (m *model) heroView() string {
	title := heroTitleStyle.Render("PolicyDesk")
	if m.role != "" && m.stage != stageRole {
		title += helperStyle.Render("  ·  " + roleLabel(m.role))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, taglineStyle.Render(heroTagline))
}

func (m *model) viewRoles() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Select your role"))
	for idx, role := range roleChoices {
		b.WriteRune('\n')
		label := roleLabel(role)
		if idx == m.roleCursor {
			b.WriteString(selectedStyle.Render("> " + label))
		} else {
			b.WriteString(choiceStyle.Render("  " + label))
		}
	}
	return b.String()
}

func (m *model) viewSetup() string {
	parts := []string{sectionHeaderStyle.Render("Manager setup")}
	if m.session == nil {
		parts = append(parts, m.keyInput.View())
		return joinNonEmpty(parts)
	}
	parts = append(parts, m.pathInput.View())
	if len(m.uploads) == 0 {
		parts = append(parts, helperStyle.Render("No files uploaded yet."))
	} else {
		var b strings.Builder
		b.WriteString(titleStyle.Render("Uploaded files"))
		for _, up := range m.uploads {
			fmt.Fprintf(&b, "\n• %s  %s", up.Filename, helperStyle.Render(up.FileID))
		}
		parts = append(parts, b.String())
	}
	return joinNonEmpty(parts)
}

func (m *model) viewChat() string {
	m.refreshViewportIfDirty()
	return joinNonEmpty([]string{
		m.viewport.View(),
		sectionHeaderStyle.Render("Message"),
		m.composer.View(),
	})
}

func (m *model) statusView() string {
	var lines []string
	if m.errorMessage != "" {
		lines = append(lines, errorStyle.Render(m.errorMessage))
	}
	if m.warningMessage != "" {
		lines = append(lines, warningStyle.Render(m.warningMessage))
	}
	if m.infoMessage != "" {
		message := m.infoMessage
		if m.busy() {
			message = fmt.Sprintf("%s %s", m.spinner.View(), message)
		}
		lines = append(lines, statusBarStyle.Render(message))
	}
	return strings.Join(lines, "\n")
}

func (m *model) keyLegendView() string {
	var keys [][2]string
	switch m.stage {
	case stageRole:
		keys = [][2]string{{"↑/↓", "choose"}, {"enter", "select"}, {"q", "quit"}}
	case stageSetup:
		keys = [][2]string{{"enter", "submit"}, {"ctrl+s", "start chat"}, {"esc", "back"}}
	default:
		keys = [][2]string{{"enter", "send"}, {"pgup/pgdn", "scroll"}, {"ctrl+e", "export"}, {"esc", "end chat"}}
	}
	rendered := make([]string, 0, len(keys))
	for _, k := range keys {
		rendered = append(rendered, keyStyle.Render(k[0])+" "+keyDescStyle.Render(k[1]))
	}
	return strings.Join(rendered, "  ")
}

func roleLabel(role session.Role) string {
	if role == "" {
		return ""
	}
	name := string(role)
	return strings.ToUpper(name[:1]) + name[1:]
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}
