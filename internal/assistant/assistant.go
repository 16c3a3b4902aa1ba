package assistant

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultHTTPTimeout = 2 * time.Minute
	betaHeaderValue    = "assistants=v2"
)

// Service lists the hosted assistant operations the chat front-ends consume.
type Service interface {
	UploadFile(ctx context.Context, name string, body io.Reader) (File, error)
	CreateVectorStore(ctx context.Context, name string, fileIDs []string) (VectorStore, error)
	CreateAssistant(ctx context.Context, params AssistantParams) (Assistant, error)
	AttachVectorStores(ctx context.Context, assistantID string, storeIDs []string) (Assistant, error)
	CreateThread(ctx context.Context) (Thread, error)
	CreateMessage(ctx context.Context, threadID, role, content string) (Message, error)
	CreateRun(ctx context.Context, threadID string, params RunParams) (Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (Run, error)
	ListMessages(ctx context.Context, threadID string, params ListMessagesParams) ([]Message, error)
}

// Config describes how to reach the hosted assistant service.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// File is an uploaded document owned by the remote service.
type File struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Bytes     int64  `json:"bytes"`
	Purpose   string `json:"purpose"`
	CreatedAt int64  `json:"created_at"`
}

// VectorStore groups uploaded files for the file_search tool.
type VectorStore struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Assistant is a configured remote assistant.
type Assistant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
}

// AssistantParams configures CreateAssistant.
type AssistantParams struct {
	Name           string
	Instructions   string
	Model          string
	VectorStoreIDs []string
}

// Thread scopes one conversation on the remote service.
type Thread struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

// RunParams configures CreateRun. Instructions replaces the assistant's own
// instructions when set; AdditionalInstructions is appended to them.
type RunParams struct {
	AssistantID            string
	Instructions           string
	AdditionalInstructions string
}

// RunStatus is the remote service's run status string.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// Run is one assistant turn against a thread.
type Run struct {
	ID          string        `json:"id"`
	ThreadID    string        `json:"thread_id"`
	AssistantID string        `json:"assistant_id"`
	Status      RunStatus     `json:"status"`
	CreatedAt   int64         `json:"created_at"`
	CompletedAt *int64        `json:"completed_at"`
	LastError   *RunLastError `json:"last_error"`
}

// RunLastError is the failure detail attached to a failed run.
type RunLastError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Elapsed reports completed_at - created_at, or zero while the run is open.
func (r Run) Elapsed() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	seconds := *r.CompletedAt - r.CreatedAt
	if seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry on a thread.
type Message struct {
	ID        string           `json:"id"`
	ThreadID  string           `json:"thread_id"`
	RunID     string           `json:"run_id"`
	Role      string           `json:"role"`
	CreatedAt int64            `json:"created_at"`
	Content   []MessageContent `json:"content"`
}

// MessageContent is one content part of a message.
type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

// MessageText carries the generated text and its citation annotations.
type MessageText struct {
	Value       string       `json:"value"`
	Annotations []Annotation `json:"annotations"`
}

// Text returns the first text part of the message.
func (m Message) Text() (MessageText, bool) {
	for _, part := range m.Content {
		if part.Text != nil && (part.Type == "" || part.Type == "text") {
			return *part.Text, true
		}
	}
	return MessageText{}, false
}

const (
	AnnotationFileCitation = "file_citation"
	AnnotationFilePath     = "file_path"
)

// Annotation ties a span of generated text to a cited or produced file.
// StartIndex and EndIndex are character offsets into the message value.
type Annotation struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	StartIndex   *int          `json:"start_index,omitempty"`
	EndIndex     *int          `json:"end_index,omitempty"`
	FileCitation *FileCitation `json:"file_citation,omitempty"`
	FilePath     *FilePath     `json:"file_path,omitempty"`
}

// FileCitation references a passage in an uploaded file.
type FileCitation struct {
	FileID string `json:"file_id"`
	Quote  string `json:"quote,omitempty"`
}

// FilePath references a file the assistant produced for download.
type FilePath struct {
	FileID string `json:"file_id"`
}

// ListMessagesParams filters ListMessages. An empty RunID lists the whole thread.
type ListMessagesParams struct {
	RunID string
	Limit int
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	// Uploads of large reference documents can take a while; callers bound polls with their context.
	return &http.Client{Timeout: defaultHTTPTimeout}
}
