package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultPollInterval = time.Second

// State is the poller's view of a run.
type State int

const (
	StateQueued State = iota
	StateInProgress
	StateCompleted
	StateFailed
	StateCancelled
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether polling stops in this state.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// StateOf maps a fetched run onto the poller's states. A completion
// timestamp wins over whatever the status says.
func StateOf(run Run) State {
	if run.CompletedAt != nil {
		return StateCompleted
	}
	switch run.Status {
	case RunCompleted:
		return StateCompleted
	case RunFailed, RunRequiresAction, RunIncomplete:
		return StateFailed
	case RunCancelled:
		return StateCancelled
	case RunExpired:
		return StateExpired
	case RunQueued:
		return StateQueued
	default:
		// cancelling and anything unrecognised keep the run open.
		return StateInProgress
	}
}

// RunFetcher is the slice of Service the poller needs.
type RunFetcher interface {
	RetrieveRun(ctx context.Context, threadID, runID string) (Run, error)
}

// PollOptions tunes AwaitCompletion. Zero MaxWait means no deadline beyond ctx.
type PollOptions struct {
	Interval time.Duration
	MaxWait  time.Duration
	Sleep    func(ctx context.Context, d time.Duration) error
}

// CompletedRun is the final snapshot of a run that reached completed.
type CompletedRun struct {
	Run     Run
	Elapsed time.Duration
}

// AwaitCompletion fetches the run immediately, then once per interval until
// it reaches a terminal state. A fetch failure ends the wait at once.
func AwaitCompletion(ctx context.Context, fetcher RunFetcher, threadID, runID string, opts PollOptions) (CompletedRun, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if opts.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.MaxWait)
		defer cancel()
	}

	logger := log.With().Str("thread", threadID).Str("run", runID).Logger()
	start := time.Now()
	state := StateQueued
	for {
		run, err := fetcher.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			logger.Error().Err(err).Msg("retrieve run failed")
			return CompletedRun{}, fmt.Errorf("retrieve run %s: %w", runID, err)
		}
		next := StateOf(run)
		if next != state {
			logger.Debug().Stringer("from", state).Stringer("to", next).Msg("run state changed")
			state = next
		}

		switch state {
		case StateCompleted:
			elapsed := run.Elapsed()
			if elapsed == 0 {
				elapsed = time.Since(start).Truncate(time.Second)
			}
			logger.Info().Str("elapsed", FormatElapsed(elapsed)).Msgf("Run completed in %s", FormatElapsed(elapsed))
			return CompletedRun{Run: run, Elapsed: elapsed}, nil
		case StateFailed, StateCancelled, StateExpired:
			runErr := &RunError{RunID: run.ID, Status: run.Status, State: state, LastError: run.LastError}
			if runErr.RunID == "" {
				runErr.RunID = runID
			}
			logger.Warn().Str("status", string(run.Status)).Msg("run ended without completing")
			return CompletedRun{}, runErr
		}

		if err := sleep(ctx, interval); err != nil {
			return CompletedRun{}, fmt.Errorf("await run %s: %w", runID, err)
		}
	}
}

// FormatElapsed renders d as HH:MM:SS. Hours keep counting past 24.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
