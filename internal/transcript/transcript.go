// Package transcript holds the in-memory record of one chat session and
// exports it on request.
package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry is one line of the conversation as shown to the user.
type Entry struct {
	Role      string    `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Snapshot is a point-in-time copy of a transcript, suitable for export.
type Snapshot struct {
	SessionID  string    `json:"sessionId" yaml:"session_id"`
	Role       string    `json:"role" yaml:"role"`
	ThreadID   string    `json:"threadId,omitempty" yaml:"thread_id,omitempty"`
	StartedAt  time.Time `json:"startedAt" yaml:"started_at"`
	CapturedAt time.Time `json:"capturedAt" yaml:"captured_at"`
	Entries    []Entry   `json:"entries" yaml:"entries"`
}

// Transcript is append-only; entries are never edited once recorded.
type Transcript struct {
	mu       sync.RWMutex
	id       string
	role     string
	threadID string
	started  time.Time
	entries  []Entry
	now      func() time.Time
}

// New starts an empty transcript for the given session role.
func New(role string) *Transcript {
	return &Transcript{
		id:      uuid.NewString(),
		role:    role,
		started: time.Now(),
		now:     time.Now,
	}
}

func (t *Transcript) ID() string { return t.id }

// SetThread records the remote thread the transcript mirrors.
func (t *Transcript) SetThread(threadID string) {
	t.mu.Lock()
	t.threadID = threadID
	t.mu.Unlock()
}

// Append records an entry stamped with the current time.
func (t *Transcript) Append(role, content string) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := Entry{Role: role, Content: content, Timestamp: t.now()}
	t.entries = append(t.entries, entry)
	return entry
}

// Entries returns a copy of the recorded entries in order.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Entry(nil), t.entries...)
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear drops every entry; used when the session ends.
func (t *Transcript) Clear() {
	t.mu.Lock()
	t.entries = nil
	t.threadID = ""
	t.mu.Unlock()
}

func (t *Transcript) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		SessionID:  t.id,
		Role:       t.role,
		ThreadID:   t.threadID,
		StartedAt:  t.started,
		CapturedAt: t.now(),
		Entries:    append([]Entry(nil), t.entries...),
	}
}
