// Package citation turns assistant replies with file annotations into
// display text carrying numbered footnote markers and a reference list.
package citation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/csheth/policydesk/internal/assistant"
)

// DefaultFallbackName is the Staff reference document's name.
const DefaultFallbackName = "all_pdfs_text.txt"

// FileResolver maps a remote file id to the name shown to the user.
type FileResolver interface {
	Filename(fileID string) (string, bool)
}

// Names is a FileResolver backed by a map of upload records.
type Names map[string]string

func (n Names) Filename(fileID string) (string, bool) {
	name, ok := n[fileID]
	return name, ok && name != ""
}

// Options controls how cited files are named.
type Options struct {
	Resolver     FileResolver
	FallbackName string
}

func (o Options) filename(fileID string) string {
	if o.Resolver != nil && fileID != "" {
		if name, ok := o.Resolver.Filename(fileID); ok {
			return name
		}
	}
	if o.FallbackName != "" {
		return o.FallbackName
	}
	return DefaultFallbackName
}

type span struct {
	start, end int
	marker     string
}

type substitution struct {
	old, marker string
}

// Rewrite replaces each annotation's source text with " [n]", n being the
// annotation's 1-based position, and appends one reference line per
// recognised annotation after a blank line.
func Rewrite(text assistant.MessageText, opts Options) string {
	runes := []rune(text.Value)
	var (
		spans     []span
		textual   []substitution
		citations []string
	)
	for i, ann := range text.Annotations {
		number := i + 1
		var line string
		switch ann.Type {
		case assistant.AnnotationFileCitation:
			var fileID, quote string
			if ann.FileCitation != nil {
				fileID = ann.FileCitation.FileID
				quote = ann.FileCitation.Quote
			}
			if quote == "" {
				quote = ann.Text
			}
			line = fmt.Sprintf("[%d] %s from %s", number, quote, opts.filename(fileID))
		case assistant.AnnotationFilePath:
			var fileID string
			if ann.FilePath != nil {
				fileID = ann.FilePath.FileID
			}
			line = fmt.Sprintf("[%d] Click here to download %s", number, opts.filename(fileID))
		default:
			continue
		}
		citations = append(citations, line)

		marker := fmt.Sprintf(" [%d]", number)
		if start, end, ok := addressedSpan(runes, ann); ok && !overlaps(spans, start, end) {
			spans = append(spans, span{start: start, end: end, marker: marker})
			continue
		}
		if ann.Text != "" {
			textual = append(textual, substitution{old: ann.Text, marker: marker})
		}
	}

	content := applySpans(runes, spans)
	for _, t := range textual {
		content = strings.ReplaceAll(content, t.old, t.marker)
	}
	return content + "\n\n" + strings.Join(citations, "\n")
}

// addressedSpan reports the annotation's offsets when they exactly cover its
// source text in the original content.
func addressedSpan(runes []rune, ann assistant.Annotation) (int, int, bool) {
	if ann.StartIndex == nil || ann.EndIndex == nil || ann.Text == "" {
		return 0, 0, false
	}
	start, end := *ann.StartIndex, *ann.EndIndex
	if start < 0 || end > len(runes) || start >= end {
		return 0, 0, false
	}
	if string(runes[start:end]) != ann.Text {
		return 0, 0, false
	}
	return start, end, true
}

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}

func applySpans(runes []rune, spans []span) string {
	if len(spans) == 0 {
		return string(runes)
	}
	sorted := append([]span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start > sorted[j].start })
	out := runes
	for _, s := range sorted {
		next := make([]rune, 0, len(out)-(s.end-s.start)+len(s.marker))
		next = append(next, out[:s.start]...)
		next = append(next, []rune(s.marker)...)
		next = append(next, out[s.end:]...)
		out = next
	}
	return string(out)
}
