package tui

import (
	"strings"
	"testing"

	"github.com/csheth/policydesk/internal/transcript"
)

func TestPageLayoutUpdate(t *testing.T) {
	cases := []struct {
		name           string
		width          int
		height         int
		viewportWidth  int
		viewportHeight int
	}{
		{name: "narrow", width: 30, height: 12, viewportWidth: 40, viewportHeight: 6},
		{name: "standard", width: 80, height: 24, viewportWidth: 76, viewportHeight: 14},
		{name: "wide", width: 200, height: 40, viewportWidth: 196, viewportHeight: 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			layout := newPageLayout()
			layout.Update(tc.width, tc.height)
			if layout.viewportWidth != tc.viewportWidth {
				t.Fatalf("viewport width mismatch: got %d want %d", layout.viewportWidth, tc.viewportWidth)
			}
			if layout.viewportHeight != tc.viewportHeight {
				t.Fatalf("viewport height mismatch: got %d want %d", layout.viewportHeight, tc.viewportHeight)
			}
		})
	}
}

func TestRenderTranscriptWrapsAndLabels(t *testing.T) {
	entries := []transcript.Entry{
		{Role: transcript.RoleUser, Content: "short question"},
		{Role: transcript.RoleAssistant, Content: strings.Repeat("word ", 20) + "\n\n"},
	}
	out := renderTranscript(entries, 32)
	if !strings.Contains(out, "You") || !strings.Contains(out, "Assistant") {
		t.Fatalf("labels missing:\n%s", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if len([]rune(line)) > 40 {
			t.Fatalf("line not wrapped: %q", line)
		}
	}
	if strings.HasSuffix(out, "\n") {
		t.Fatal("trailing blank lines should be trimmed")
	}
}

func TestRenderTranscriptEmpty(t *testing.T) {
	if out := renderTranscript(nil, 80); !strings.Contains(out, "conversation will appear here") {
		t.Fatalf("unexpected placeholder: %q", out)
	}
}
