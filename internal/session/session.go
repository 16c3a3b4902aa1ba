// Package session drives one Staff or Manager conversation with the hosted
// assistant: it owns the remote thread, the upload records and the
// transcript shown to the user.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/csheth/policydesk/internal/assistant"
	"github.com/csheth/policydesk/internal/citation"
	"github.com/csheth/policydesk/internal/documents"
	"github.com/csheth/policydesk/internal/transcript"
)

// Role selects which front-end behaviour a session follows.
type Role string

const (
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
)

// ParseRole accepts the role names shown in the role selector.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleStaff:
		return RoleStaff, nil
	case RoleManager:
		return RoleManager, nil
	default:
		return "", fmt.Errorf("unknown role %q (want staff or manager)", value)
	}
}

var (
	ErrNoUploads   = errors.New("no files found. Please upload at least one file to get started")
	ErrNotStarted  = errors.New("chat session has not been started")
	ErrMissingFile = errors.New("file not found")
	ErrBusy        = errors.New("a reply is still being generated")
	ErrEmptyPrompt = errors.New("prompt is empty")

	ErrDuplicateName = errors.New("two uploads share a file name")
)

// Upload records a file forwarded to the assistant service.
type Upload struct {
	Filename  string
	FileID    string
	LocalPath string
}

// Options configure a Manager. Zero values fall back to the Staff defaults.
type Options struct {
	Role Role

	// AssistantID is used as-is when set. Staff sessions without one
	// provision an assistant from ReferencePath on Start.
	AssistantID   string
	AssistantName string
	Model         string
	Instructions  string
	ReferencePath string

	RunInstructions string
	UploadDir       string
	Poll            assistant.PollOptions
}

// Manager runs the turns of one chat session. It is safe for concurrent use
// but serves one turn at a time.
type Manager struct {
	svc  assistant.Service
	opts Options

	mu          sync.Mutex
	busy        bool
	threadID    string
	assistantID string
	uploads     []Upload
	names       citation.Names
	transcript  *transcript.Transcript
}

// New builds a Manager around an injected service client.
func New(svc assistant.Service, opts Options) *Manager {
	if opts.Role == "" {
		opts.Role = RoleStaff
	}
	if opts.AssistantName == "" {
		opts.AssistantName = "HHC Assistant Bot"
	}
	if opts.Model == "" {
		opts.Model = "gpt-3.5-turbo-0125"
	}
	if opts.ReferencePath == "" {
		opts.ReferencePath = citation.DefaultFallbackName
	}
	if opts.RunInstructions == "" {
		opts.RunInstructions = "If the user is using another language to ask, please answer in that language as well."
	}
	return &Manager{
		svc:         svc,
		opts:        opts,
		assistantID: opts.AssistantID,
		names:       citation.Names{},
		transcript:  transcript.New(string(opts.Role)),
	}
}

func (m *Manager) Role() Role { return m.opts.Role }

// ThreadID is empty until Start succeeds.
func (m *Manager) ThreadID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threadID
}

func (m *Manager) AssistantID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assistantID
}

func (m *Manager) Started() bool { return m.ThreadID() != "" }

func (m *Manager) Transcript() *transcript.Transcript { return m.transcript }

// Uploads returns the upload records in the order they were made.
func (m *Manager) Uploads() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Upload(nil), m.uploads...)
}

// Upload forwards body to the assistant service. Manager sessions with an
// UploadDir first save it there under its original name.
func (m *Manager) Upload(ctx context.Context, name string, body io.Reader) (Upload, error) {
	record, err := m.send(ctx, name, body)
	if err != nil {
		return Upload{}, err
	}
	m.record(record)
	return record, nil
}

// UploadPath inspects and uploads a local file.
func (m *Manager) UploadPath(ctx context.Context, path string) (Upload, error) {
	record, err := m.sendPath(ctx, path)
	if err != nil {
		return Upload{}, err
	}
	m.record(record)
	return record, nil
}

// UploadPaths uploads up to parallel files at a time. Successful uploads are
// recorded in the order of paths even when one of them fails. Two paths with
// the same file name are rejected before anything is sent.
func (m *Manager) UploadPaths(ctx context.Context, paths []string, parallel int) ([]Upload, error) {
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		base := filepath.Base(path)
		if prev, ok := seen[base]; ok {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateName, prev, path)
		}
		seen[base] = path
	}

	results := make([]Upload, len(paths))
	done := make([]bool, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, path := range paths {
		g.Go(func() error {
			record, err := m.sendPath(gctx, path)
			if err != nil {
				return err
			}
			results[i], done[i] = record, true
			return nil
		})
	}
	err := g.Wait()

	recorded := make([]Upload, 0, len(paths))
	for i, record := range results {
		if done[i] {
			m.record(record)
			recorded = append(recorded, record)
		}
	}
	return recorded, err
}

func (m *Manager) sendPath(ctx context.Context, path string) (Upload, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Upload{}, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return Upload{}, err
	}
	if _, err := documents.Inspect(path); err != nil {
		return Upload{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	file, err := os.Open(path)
	if err != nil {
		return Upload{}, err
	}
	defer file.Close()
	return m.send(ctx, filepath.Base(path), file)
}

func (m *Manager) send(ctx context.Context, name string, body io.Reader) (Upload, error) {
	record := Upload{Filename: filepath.Base(name)}
	if m.opts.Role == RoleManager && m.opts.UploadDir != "" {
		path, err := documents.SaveUpload(m.opts.UploadDir, name, body)
		if err != nil {
			return Upload{}, fmt.Errorf("save upload %s: %w", name, err)
		}
		record.LocalPath = path
		record.Filename = filepath.Base(path)
		file, err := os.Open(path)
		if err != nil {
			return Upload{}, err
		}
		defer file.Close()
		body = file
	}

	file, err := m.svc.UploadFile(ctx, record.Filename, body)
	if err != nil {
		return Upload{}, fmt.Errorf("upload %s: %w", record.Filename, err)
	}
	record.FileID = file.ID
	log.Info().Str("file", record.Filename).Str("file_id", file.ID).Msg("uploaded file")
	return record, nil
}

func (m *Manager) record(u Upload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, u)
	m.names[u.FileID] = u.Filename
}

// Start prepares the assistant for the role and creates the thread. Manager
// sessions need at least one upload and return ErrNoUploads otherwise.
func (m *Manager) Start(ctx context.Context) error {
	if m.Started() {
		return nil
	}
	var err error
	switch m.opts.Role {
	case RoleManager:
		err = m.prepareManager(ctx)
	default:
		err = m.prepareStaff(ctx)
	}
	if err != nil {
		return err
	}

	thread, err := m.svc.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	m.mu.Lock()
	m.threadID = thread.ID
	m.mu.Unlock()
	m.transcript.SetThread(thread.ID)
	log.Info().Str("role", string(m.opts.Role)).Str("thread", thread.ID).Msg("chat started")
	return nil
}

func (m *Manager) prepareManager(ctx context.Context) error {
	uploads := m.Uploads()
	if len(uploads) == 0 {
		return ErrNoUploads
	}
	fileIDs := make([]string, 0, len(uploads))
	for _, up := range uploads {
		fileIDs = append(fileIDs, up.FileID)
	}
	store, err := m.svc.CreateVectorStore(ctx, "manager uploads", fileIDs)
	if err != nil {
		return fmt.Errorf("create vector store: %w", err)
	}
	// TODO: wait for the vector store's file_counts to finish processing before the first run.

	if id := m.AssistantID(); id != "" {
		if _, err := m.svc.AttachVectorStores(ctx, id, []string{store.ID}); err != nil {
			return fmt.Errorf("attach uploads to assistant %s: %w", id, err)
		}
		return nil
	}
	return m.createAssistant(ctx, store.ID)
}

func (m *Manager) prepareStaff(ctx context.Context) error {
	if m.AssistantID() != "" {
		return nil
	}
	up, err := m.UploadPath(ctx, m.opts.ReferencePath)
	if err != nil {
		return fmt.Errorf("reference document: %w", err)
	}
	store, err := m.svc.CreateVectorStore(ctx, "staff reference", []string{up.FileID})
	if err != nil {
		return fmt.Errorf("create vector store: %w", err)
	}
	return m.createAssistant(ctx, store.ID)
}

func (m *Manager) createAssistant(ctx context.Context, storeID string) error {
	created, err := m.svc.CreateAssistant(ctx, assistant.AssistantParams{
		Name:           m.opts.AssistantName,
		Instructions:   m.opts.Instructions,
		Model:          m.opts.Model,
		VectorStoreIDs: []string{storeID},
	})
	if err != nil {
		return fmt.Errorf("create assistant: %w", err)
	}
	m.mu.Lock()
	m.assistantID = created.ID
	m.mu.Unlock()
	log.Info().Str("assistant", created.ID).Str("model", m.opts.Model).Msg("assistant provisioned")
	return nil
}

// SubmitUserTurn sends prompt, waits for the assistant's run to finish and
// returns its replies oldest first with citations rewritten.
func (m *Manager) SubmitUserTurn(ctx context.Context, prompt, extraInstructions string) ([]string, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	m.mu.Lock()
	threadID, assistantID := m.threadID, m.assistantID
	if threadID == "" {
		m.mu.Unlock()
		return nil, ErrNotStarted
	}
	if m.busy {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.busy = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}()

	m.transcript.Append(transcript.RoleUser, prompt)
	if _, err := m.svc.CreateMessage(ctx, threadID, assistant.RoleUser, prompt); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	run, err := m.svc.CreateRun(ctx, threadID, assistant.RunParams{
		AssistantID:            assistantID,
		AdditionalInstructions: joinInstructions(m.opts.RunInstructions, extraInstructions),
	})
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	log.Debug().Str("thread", threadID).Str("run", run.ID).Msg("waiting for run")

	if _, err := assistant.AwaitCompletion(ctx, m.svc, threadID, run.ID, m.opts.Poll); err != nil {
		return nil, err
	}

	messages, err := m.svc.ListMessages(ctx, threadID, assistant.ListMessagesParams{RunID: run.ID})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	opts := citation.Options{Resolver: m.resolver(), FallbackName: filepath.Base(m.opts.ReferencePath)}
	var replies []string
	for _, msg := range messages {
		if msg.RunID != run.ID || msg.Role != assistant.RoleAssistant {
			continue
		}
		text, ok := msg.Text()
		if !ok {
			continue
		}
		reply := citation.Rewrite(text, opts)
		m.transcript.Append(transcript.RoleAssistant, reply)
		replies = append(replies, reply)
	}
	return replies, nil
}

// End forgets the thread and clears the transcript. Uploads are kept.
func (m *Manager) End() {
	m.mu.Lock()
	m.threadID = ""
	m.mu.Unlock()
	m.transcript.Clear()
}

func (m *Manager) resolver() citation.Names {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make(citation.Names, len(m.names))
	for id, name := range m.names {
		names[id] = name
	}
	return names
}

func joinInstructions(base, extra string) string {
	base = strings.TrimSpace(base)
	extra = strings.TrimSpace(extra)
	switch {
	case base == "":
		return extra
	case extra == "":
		return base
	default:
		return base + "\n" + extra
	}
}
