package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Exporter writes a snapshot in one file format.
type Exporter interface {
	Export(snapshot Snapshot, w io.Writer) error
	Extension() string
}

// NewExporter picks an exporter by format name.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "", "md", "markdown":
		return MarkdownExporter{}, nil
	case "json":
		return JSONExporter{}, nil
	case "yaml", "yml":
		return YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s (supported: md, json, yaml)", format)
	}
}

type JSONExporter struct{}

func (JSONExporter) Export(snapshot Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}

func (JSONExporter) Extension() string { return "json" }

type YAMLExporter struct{}

func (YAMLExporter) Export(snapshot Snapshot, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	return enc.Encode(snapshot)
}

func (YAMLExporter) Extension() string { return "yaml" }

// MarkdownExporter renders the conversation for reading.
type MarkdownExporter struct{}

func (MarkdownExporter) Export(snapshot Snapshot, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", snapshot.SessionID)
	if snapshot.Role != "" {
		fmt.Fprintf(&b, "**Role:** %s  \n", snapshot.Role)
	}
	if snapshot.ThreadID != "" {
		fmt.Fprintf(&b, "**Thread:** %s  \n", snapshot.ThreadID)
	}
	fmt.Fprintf(&b, "**Messages:** %d\n\n---\n\n", len(snapshot.Entries))
	for i, entry := range snapshot.Entries {
		stamp := ""
		if !entry.Timestamp.IsZero() {
			stamp = " (" + entry.Timestamp.Format("2006-01-02 15:04:05") + ")"
		}
		fmt.Fprintf(&b, "**%s:**%s\n\n%s\n\n", displayRole(entry.Role), stamp, strings.TrimRight(entry.Content, "\n"))
		if i < len(snapshot.Entries)-1 {
			b.WriteString("---\n\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (MarkdownExporter) Extension() string { return "md" }

func displayRole(role string) string {
	switch role {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return role
	}
}

// Save writes the snapshot into dir as <session-id>.<ext> and returns the
// path. The file is replaced atomically.
func Save(dir string, snapshot Snapshot, exporter Exporter) (string, error) {
	if exporter == nil {
		exporter = MarkdownExporter{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s", snapshot.SessionID, exporter.Extension()))
	tmp, err := os.CreateTemp(dir, ".transcript-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if err := exporter.Export(snapshot, tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("export transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
