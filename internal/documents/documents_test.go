package documents

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestExtractTextReadsPlainFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "policy.txt", "Falls must be reported within 24 hours.")
	text, err := ExtractText(path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if text != "Falls must be reported within 24 hours." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractTextWrapsPDFErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.pdf", "not really a pdf")
	_, err := ExtractText(path)
	var extractErr *ExtractError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractError, got %v", err)
	}
	if extractErr.Path != path {
		t.Fatalf("unexpected path: %s", extractErr.Path)
	}
}

func TestNormalizeText(t *testing.T) {
	got := normalizeText("  Line one\t\twith   gaps\r\n\n\n\nLine two  ")
	if got != "Line one with gaps\n\nLine two" {
		t.Fatalf("unexpected normalised text: %q", got)
	}
}

func TestBuildReferenceConcatenatesSections(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "falls.txt", "Report falls.")
	empty := writeFile(t, dir, "blank.md", "   ")
	second := writeFile(t, dir, "meds.md", "Record medication.")

	var out bytes.Buffer
	n, err := BuildReference(context.Background(), &out, first, empty, second)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 sections, got %d", n)
	}
	want := "===== falls.txt =====\n\nReport falls.\n\n\n===== meds.md =====\n\nRecord medication.\n"
	if out.String() != want {
		t.Fatalf("unexpected reference:\n%q\nwant\n%q", out.String(), want)
	}
}

func TestBuildReferenceRequiresInputs(t *testing.T) {
	if _, err := BuildReference(context.Background(), &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error without inputs")
	}
}

func TestInspectBytes(t *testing.T) {
	cases := []struct {
		name    string
		head    []byte
		ext     string
		wantExt string
		wantErr bool
	}{
		{"pdf", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"), ".pdf", "pdf", false},
		{"plain text", []byte("Aged care policy"), ".txt", "txt", false},
		{"markdown", []byte("# Policies"), ".md", "md", false},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), ".png", "", true},
		{"binary", []byte{0xff, 0xfe, 0x00, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86}, ".bin", "", true},
		{"empty", nil, ".txt", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, err := InspectBytes(tc.head, tc.ext)
			if tc.wantErr {
				if !errors.Is(err, ErrUnsupportedType) {
					t.Fatalf("expected ErrUnsupportedType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("inspect failed: %v", err)
			}
			if kind.Extension != tc.wantExt {
				t.Fatalf("expected %s, got %+v", tc.wantExt, kind)
			}
		})
	}
}

func TestInspectReadsFileHeader(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", strings.Repeat("é", sniffLen))
	kind, err := Inspect(path)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if kind.MIME != "text/plain" {
		t.Fatalf("unexpected kind: %+v", kind)
	}
}

func TestSaveUploadKeepsBaseName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	path, err := SaveUpload(dir, "../../etc/Incident Policy.pdf", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if path != filepath.Join(dir, "Incident Policy.pdf") {
		t.Fatalf("unexpected path: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "data" {
		t.Fatalf("unexpected saved content %q: %v", data, err)
	}
	if _, err := SaveUpload(dir, "..", strings.NewReader("x")); err == nil {
		t.Fatal("expected an error for a bare parent reference")
	}
}

func TestSaveUploadFromTheTargetFileKeepsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.txt")
	if err := os.WriteFile(path, []byte("Report falls within 24 hours."), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	saved, err := SaveUpload(dir, "policy.txt", src)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if saved != path {
		t.Fatalf("unexpected path: %s", saved)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "Report falls within 24 hours." {
		t.Fatalf("source was not preserved: %q (%v)", data, err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".upload-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}
