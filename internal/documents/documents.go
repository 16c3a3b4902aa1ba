// Package documents prepares local files for the assistant service: it
// extracts text from policy PDFs, builds the Staff reference document and
// vets Manager uploads.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// ReferenceName is the Staff reference document's default file name.
const ReferenceName = "all_pdfs_text.txt"

const sniffLen = 512

var (
	extraneousWhitespace = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines           = regexp.MustCompile(`\n{3,}`)

	// ErrUnsupportedType is returned by Inspect for files the assistant cannot index.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// ExtractError reports a file whose text could not be read.
type ExtractError struct {
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract text from %s: %v", e.Path, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// ExtractText returns the plain text of a PDF, or the contents of a text file.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &ExtractError{Path: path, Err: err}
		}
		return string(data), nil
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", &ExtractError{Path: path, Err: fmt.Errorf("open pdf: %w", err)}
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", &ExtractError{Path: path, Err: fmt.Errorf("read pdf text: %w", err)}
	}
	var builder strings.Builder
	if _, err := io.Copy(&builder, content); err != nil {
		return "", &ExtractError{Path: path, Err: err}
	}
	return normalizeText(builder.String()), nil
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = extraneousWhitespace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// BuildReference concatenates the text of inputs into out, one section per
// source file. It returns the number of sections written.
func BuildReference(ctx context.Context, out io.Writer, inputs ...string) (int, error) {
	if len(inputs) == 0 {
		return 0, errors.New("no input documents")
	}
	written := 0
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		text, err := ExtractText(input)
		if err != nil {
			return written, err
		}
		if strings.TrimSpace(text) == "" {
			log.Warn().Str("file", input).Msg("document has no extractable text; skipping")
			continue
		}
		if written > 0 {
			if _, err := io.WriteString(out, "\n\n"); err != nil {
				return written, err
			}
		}
		if _, err := fmt.Fprintf(out, "===== %s =====\n\n%s\n", filepath.Base(input), text); err != nil {
			return written, err
		}
		written++
		log.Debug().Str("file", input).Int("chars", len(text)).Msg("added document to reference")
	}
	return written, nil
}

// Kind describes a sniffed upload.
type Kind struct {
	Extension string
	MIME      string
}

var allowedKinds = map[string]bool{
	"pdf":  true,
	"docx": true,
	"doc":  true,
	"pptx": true,
	"rtf":  true,
}

// Inspect sniffs the first bytes of path and rejects files the file_search
// tool cannot index.
func Inspect(path string) (Kind, error) {
	file, err := os.Open(path)
	if err != nil {
		return Kind{}, err
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Kind{}, err
	}
	return InspectBytes(head[:n], filepath.Ext(path))
}

// InspectBytes classifies a file header; ext is used to label plain text.
func InspectBytes(head []byte, ext string) (Kind, error) {
	if len(head) == 0 {
		return Kind{}, fmt.Errorf("%w: empty file", ErrUnsupportedType)
	}
	kind, _ := filetype.Match(head)
	if kind != filetype.Unknown {
		if allowedKinds[kind.Extension] {
			return Kind{Extension: kind.Extension, MIME: kind.MIME.Value}, nil
		}
		return Kind{}, fmt.Errorf("%w: %s", ErrUnsupportedType, kind.MIME.Value)
	}
	if utf8.Valid(trimPartialRune(head)) {
		ext = strings.TrimPrefix(strings.ToLower(ext), ".")
		if ext == "" {
			ext = "txt"
		}
		mime := "text/plain"
		if ext == "md" || ext == "markdown" {
			mime = "text/markdown"
		}
		return Kind{Extension: ext, MIME: mime}, nil
	}
	return Kind{}, fmt.Errorf("%w: unrecognised binary", ErrUnsupportedType)
}

// trimPartialRune drops a multi-byte sequence cut off by the sniff window.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

// SaveUpload writes body to dir under the base of name and returns the path.
// The target is replaced only after body has been read in full, so body may
// be the file being replaced.
func SaveUpload(dir, name string, body io.Reader) (string, error) {
	clean := sanitizeName(name)
	if clean == "" {
		return "", fmt.Errorf("invalid upload name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	path := filepath.Join(dir, clean)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

func sanitizeName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.ReplaceAll(name, ":", "-")
}
