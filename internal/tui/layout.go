package tui

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/policydesk/internal/transcript"
)

type pageLayout struct {
	windowWidth    int
	windowHeight   int
	viewportWidth  int
	viewportHeight int
}

func newPageLayout() pageLayout {
	return pageLayout{
		viewportWidth:  80,
		viewportHeight: 20,
	}
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	innerWidth := width - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.viewportWidth = innerWidth
	// hero, composer, status and help lines
	const chrome = 10
	contentHeight := height - chrome
	if contentHeight < 6 {
		contentHeight = 6
	}
	l.viewportHeight = contentHeight
}

// renderTranscript lays entries out for the chat viewport, wrapped to width.
func renderTranscript(entries []transcript.Entry, width int) string {
	if len(entries) == 0 {
		return helperStyle.Render("Your conversation will appear here.")
	}
	wrap := width - 2
	if wrap < 20 {
		wrap = 20
	}
	var b strings.Builder
	for idx, entry := range entries {
		if idx > 0 {
			b.WriteString("\n\n")
		}
		switch entry.Role {
		case transcript.RoleUser:
			b.WriteString(userLabelStyle.Render("You"))
		default:
			b.WriteString(assistantLabel.Render("Assistant"))
		}
		b.WriteRune('\n')
		b.WriteString(wordwrap.String(strings.TrimRight(entry.Content, "\n"), wrap))
	}
	return b.String()
}
