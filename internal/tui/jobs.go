package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
)

type jobKind string

type jobStatus string

const (
	jobKindConnect jobKind = "connect"
	jobKindUpload  jobKind = "upload"
	jobKindStart   jobKind = "start"
	jobKindTurn    jobKind = "turn"
	jobKindExport  jobKind = "export"
)

const (
	jobStatusRunning   jobStatus = "running"
	jobStatusSucceeded jobStatus = "succeeded"
	jobStatusFailed    jobStatus = "failed"
	jobStatusCancelled jobStatus = "cancelled"
)

type jobSnapshot struct {
	ID          string
	Kind        jobKind
	Status      jobStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Err         string
	Duration    time.Duration
}

// jobSignalMsg announces that a job is running.
type jobSignalMsg struct {
	Snapshot jobSnapshot
}

// jobResultEnvelope carries the final snapshot plus the job's own message.
type jobResultEnvelope struct {
	Snapshot jobSnapshot
	Payload  tea.Msg
}

type jobRunner func(context.Context) (tea.Msg, error)

// jobBus runs blocking work off the update loop. Each job gets its own
// context so a single turn can be cancelled without ending the program.
type jobBus struct {
	mu      sync.Mutex
	counter int
	cancels map[string]context.CancelFunc
}

func newJobBus() *jobBus {
	return &jobBus{cancels: make(map[string]context.CancelFunc)}
}

func (b *jobBus) nextID(kind jobKind) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counter++
	return fmt.Sprintf("%s-%d", kind, b.counter)
}

// Start emits a running snapshot, then runs the job and emits its result.
func (b *jobBus) Start(kind jobKind, runner jobRunner) tea.Cmd {
	_, announce, run := b.launch(kind, runner)
	return tea.Sequence(announce, run)
}

func (b *jobBus) launch(kind jobKind, runner jobRunner) (string, tea.Cmd, tea.Cmd) {
	id := b.nextID(kind)
	ctx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.cancels[id] = cancel
	b.mu.Unlock()

	started := time.Now()
	announce := func() tea.Msg {
		return jobSignalMsg{Snapshot: jobSnapshot{ID: id, Kind: kind, Status: jobStatusRunning, StartedAt: started}}
	}
	run := func() tea.Msg {
		payload, err := runner(ctx)
		b.release(id)
		return jobResultEnvelope{Snapshot: finishSnapshot(id, kind, started, err), Payload: payload}
	}
	return id, announce, run
}

// Cancel stops the job with the given id. It reports whether it was running.
func (b *jobBus) Cancel(id string) bool {
	b.mu.Lock()
	cancel, ok := b.cancels[id]
	b.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// CancelAll stops every running job.
func (b *jobBus) CancelAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cancel := range b.cancels {
		cancel()
	}
}

func (b *jobBus) release(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cancel, ok := b.cancels[id]; ok {
		cancel()
		delete(b.cancels, id)
	}
}

func finishSnapshot(id string, kind jobKind, started time.Time, err error) jobSnapshot {
	snapshot := jobSnapshot{
		ID:          id,
		Kind:        kind,
		Status:      jobStatusSucceeded,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
	snapshot.Duration = snapshot.CompletedAt.Sub(started)

	event := log.Info()
	switch {
	case errors.Is(err, context.Canceled):
		snapshot.Status = jobStatusCancelled
		snapshot.Err = err.Error()
	case err != nil:
		snapshot.Status = jobStatusFailed
		snapshot.Err = err.Error()
		event = log.Warn().Err(err)
	}
	event.Str("job", id).Str("status", string(snapshot.Status)).Dur("duration", snapshot.Duration).Msg("[jobs] finished")
	return snapshot
}
