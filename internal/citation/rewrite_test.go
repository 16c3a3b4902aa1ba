package citation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/csheth/policydesk/internal/assistant"
)

func intPtr(v int) *int { return &v }

func TestRewriteFileCitation(t *testing.T) {
	text := assistant.MessageText{
		Value: "Policy X applies. SOURCE_A",
		Annotations: []assistant.Annotation{{
			Type:         assistant.AnnotationFileCitation,
			Text:         "SOURCE_A",
			FileCitation: &assistant.FileCitation{FileID: "file_1", Quote: "Section 4.2"},
		}},
	}
	got := Rewrite(text, Options{Resolver: Names{"file_1": "policy.txt"}})
	want := "Policy X applies.  [1]\n\n[1] Section 4.2 from policy.txt"
	if got != want {
		t.Fatalf("unexpected rewrite:\n%q\nwant\n%q", got, want)
	}
}

func TestRewriteMixedKinds(t *testing.T) {
	text := assistant.MessageText{
		Value: "See A and B.",
		Annotations: []assistant.Annotation{
			{Type: assistant.AnnotationFileCitation, Text: "A", FileCitation: &assistant.FileCitation{FileID: "f1", Quote: "q"}},
			{Type: assistant.AnnotationFilePath, Text: "B", FilePath: &assistant.FilePath{FileID: "f2"}},
		},
	}
	got := Rewrite(text, Options{})
	want := "See  [1] and  [2].\n\n[1] q from all_pdfs_text.txt\n[2] Click here to download all_pdfs_text.txt"
	if got != want {
		t.Fatalf("unexpected rewrite:\n%q\nwant\n%q", got, want)
	}
}

func TestRewriteNoAnnotations(t *testing.T) {
	got := Rewrite(assistant.MessageText{Value: "plain answer"}, Options{})
	if got != "plain answer\n\n" {
		t.Fatalf("unexpected rewrite: %q", got)
	}
}

func TestRewriteUnknownKindKeepsNumbering(t *testing.T) {
	text := assistant.MessageText{
		Value: "one X two Y",
		Annotations: []assistant.Annotation{
			{Type: "url_citation", Text: "X"},
			{Type: assistant.AnnotationFilePath, Text: "Y", FilePath: &assistant.FilePath{FileID: "f"}},
		},
	}
	got := Rewrite(text, Options{FallbackName: "ref.txt"})
	want := "one X two  [2]\n\n[2] Click here to download ref.txt"
	if got != want {
		t.Fatalf("unexpected rewrite:\n%q\nwant\n%q", got, want)
	}
}

func TestRewriteMissingSourceTextLeavesContent(t *testing.T) {
	text := assistant.MessageText{
		Value: "nothing to replace",
		Annotations: []assistant.Annotation{
			{Type: assistant.AnnotationFileCitation, Text: "ABSENT", FileCitation: &assistant.FileCitation{Quote: "quote"}},
		},
	}
	got := Rewrite(text, Options{})
	if !strings.HasPrefix(got, "nothing to replace\n\n") {
		t.Fatalf("content should be unchanged: %q", got)
	}
	if !strings.HasSuffix(got, "[1] quote from all_pdfs_text.txt") {
		t.Fatalf("reference line missing: %q", got)
	}
}

func TestRewriteEmptyQuoteFallsBackToSourceText(t *testing.T) {
	text := assistant.MessageText{
		Value: "x 【4:0†source】",
		Annotations: []assistant.Annotation{
			{Type: assistant.AnnotationFileCitation, Text: "【4:0†source】", FileCitation: &assistant.FileCitation{FileID: "f"}},
		},
	}
	got := Rewrite(text, Options{})
	want := "x  [1]\n\n[1] 【4:0†source】 from all_pdfs_text.txt"
	if got != want {
		t.Fatalf("unexpected rewrite:\n%q\nwant\n%q", got, want)
	}
}

func TestRewriteUsesOffsetsWhenTheyMatch(t *testing.T) {
	// The same marker appears twice; offsets pin each annotation to its own span.
	value := "café 【s】 and again 【s】"
	runes := []rune(value)
	first := strings.Index(value, "【s】")
	firstStart := len([]rune(value[:first]))
	secondStart := len(runes) - len([]rune("【s】"))
	text := assistant.MessageText{
		Value: value,
		Annotations: []assistant.Annotation{
			{
				Type: assistant.AnnotationFileCitation, Text: "【s】",
				StartIndex: intPtr(firstStart), EndIndex: intPtr(firstStart + 3),
				FileCitation: &assistant.FileCitation{FileID: "a", Quote: "first"},
			},
			{
				Type: assistant.AnnotationFileCitation, Text: "【s】",
				StartIndex: intPtr(secondStart), EndIndex: intPtr(secondStart + 3),
				FileCitation: &assistant.FileCitation{FileID: "b", Quote: "second"},
			},
		},
	}
	got := Rewrite(text, Options{Resolver: Names{"a": "a.txt", "b": "b.txt"}})
	want := "café  [1] and again  [2]\n\n[1] first from a.txt\n[2] second from b.txt"
	if got != want {
		t.Fatalf("unexpected rewrite:\n%q\nwant\n%q", got, want)
	}
}

func TestRewriteFallsBackWhenOffsetsAreStale(t *testing.T) {
	text := assistant.MessageText{
		Value: "see SRC",
		Annotations: []assistant.Annotation{{
			Type: assistant.AnnotationFilePath, Text: "SRC",
			StartIndex: intPtr(0), EndIndex: intPtr(3),
			FilePath: &assistant.FilePath{FileID: "f"},
		}},
	}
	got := Rewrite(text, Options{})
	if !strings.HasPrefix(got, "see  [1]\n\n") {
		t.Fatalf("expected textual replacement, got %q", got)
	}
}

func TestRewriteEmitsOneLinePerRecognisedAnnotation(t *testing.T) {
	var anns []assistant.Annotation
	value := ""
	for i := 0; i < 5; i++ {
		marker := "M" + string(rune('a'+i))
		value += "text " + marker + " "
		anns = append(anns, assistant.Annotation{Type: assistant.AnnotationFileCitation, Text: marker, FileCitation: &assistant.FileCitation{Quote: "q"}})
	}
	got := Rewrite(assistant.MessageText{Value: value, Annotations: anns}, Options{})
	parts := strings.SplitN(got, "\n\n", 2)
	if len(parts) != 2 {
		t.Fatalf("missing separator: %q", got)
	}
	lines := strings.Split(parts[1], "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 reference lines, got %d: %q", len(lines), parts[1])
	}
	last := -1
	for _, line := range lines {
		var n int
		if _, err := fmt.Sscanf(line, "[%d]", &n); err != nil {
			t.Fatalf("bad reference line %q: %v", line, err)
		}
		if n <= last {
			t.Fatalf("footnotes not increasing: %q", parts[1])
		}
		last = n
	}
}
