package assistant

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedFetcher struct {
	runs  []Run
	err   error
	calls int
}

func (f *scriptedFetcher) RetrieveRun(ctx context.Context, threadID, runID string) (Run, error) {
	if f.err != nil {
		f.calls++
		return Run{}, f.err
	}
	idx := f.calls
	if idx >= len(f.runs) {
		idx = len(f.runs) - 1
	}
	f.calls++
	return f.runs[idx], nil
}

type countingSleeper struct {
	count int
	last  time.Duration
}

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.count++
	s.last = d
	return ctx.Err()
}

func completedAt(ts int64) *int64 { return &ts }

func TestAwaitCompletionSleepsBetweenFetches(t *testing.T) {
	fetcher := &scriptedFetcher{runs: []Run{
		{ID: "run_1", Status: RunInProgress, CreatedAt: 100},
		{ID: "run_1", Status: RunInProgress, CreatedAt: 100},
		{ID: "run_1", Status: RunCompleted, CreatedAt: 100, CompletedAt: completedAt(3825)},
	}}
	sleeper := &countingSleeper{}

	done, err := AwaitCompletion(context.Background(), fetcher, "thread_1", "run_1", PollOptions{
		Interval: 5 * time.Second,
		Sleep:    sleeper.Sleep,
	})
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if sleeper.count != 2 || fetcher.calls != 3 {
		t.Fatalf("expected 2 sleeps and 3 fetches, got %d and %d", sleeper.count, fetcher.calls)
	}
	if sleeper.last != 5*time.Second {
		t.Fatalf("unexpected interval: %s", sleeper.last)
	}
	if got := FormatElapsed(done.Elapsed); got != "01:02:05" {
		t.Fatalf("unexpected elapsed: %s", got)
	}
}

func TestAwaitCompletionTreatsCompletedAtAsDone(t *testing.T) {
	fetcher := &scriptedFetcher{runs: []Run{
		{ID: "run_1", Status: RunInProgress, CreatedAt: 10, CompletedAt: completedAt(12)},
	}}
	sleeper := &countingSleeper{}
	done, err := AwaitCompletion(context.Background(), fetcher, "t", "run_1", PollOptions{Sleep: sleeper.Sleep})
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if sleeper.count != 0 || done.Elapsed != 2*time.Second {
		t.Fatalf("unexpected result: sleeps=%d elapsed=%s", sleeper.count, done.Elapsed)
	}
}

func TestAwaitCompletionReturnsRunErrorForTerminalFailures(t *testing.T) {
	cases := []struct {
		status RunStatus
		state  State
	}{
		{RunFailed, StateFailed},
		{RunRequiresAction, StateFailed},
		{RunIncomplete, StateFailed},
		{RunCancelled, StateCancelled},
		{RunExpired, StateExpired},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			fetcher := &scriptedFetcher{runs: []Run{
				{ID: "run_1", Status: RunQueued},
				{ID: "run_1", Status: tc.status, LastError: &RunLastError{Code: "server_error", Message: "boom"}},
			}}
			sleeper := &countingSleeper{}
			_, err := AwaitCompletion(context.Background(), fetcher, "t", "run_1", PollOptions{Sleep: sleeper.Sleep})
			var runErr *RunError
			if !errors.As(err, &runErr) {
				t.Fatalf("expected RunError, got %v", err)
			}
			if runErr.State != tc.state || runErr.Status != tc.status {
				t.Fatalf("unexpected run error: %+v", runErr)
			}
			if sleeper.count != 1 {
				t.Fatalf("expected 1 sleep, got %d", sleeper.count)
			}
		})
	}
}

func TestAwaitCompletionStopsOnFetchError(t *testing.T) {
	boom := errors.New("connection reset")
	fetcher := &scriptedFetcher{err: boom}
	sleeper := &countingSleeper{}
	_, err := AwaitCompletion(context.Background(), fetcher, "t", "run_1", PollOptions{Sleep: sleeper.Sleep})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	if fetcher.calls != 1 || sleeper.count != 0 {
		t.Fatalf("expected a single fetch and no sleeps, got %d and %d", fetcher.calls, sleeper.count)
	}
}

func TestAwaitCompletionHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetcher := &scriptedFetcher{runs: []Run{{ID: "run_1", Status: RunInProgress}}}
	_, err := AwaitCompletion(ctx, fetcher, "t", "run_1", PollOptions{Interval: time.Millisecond})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAwaitCompletionMaxWait(t *testing.T) {
	fetcher := &scriptedFetcher{runs: []Run{{ID: "run_1", Status: RunCancelling}}}
	_, err := AwaitCompletion(context.Background(), fetcher, "t", "run_1", PollOptions{
		Interval: time.Millisecond,
		MaxWait:  20 * time.Millisecond,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStateOfKeepsUnknownStatusOpen(t *testing.T) {
	if got := StateOf(Run{Status: "something_new"}); got.Terminal() {
		t.Fatalf("unknown status should not be terminal, got %s", got)
	}
	if got := StateOf(Run{Status: RunCancelling}); got != StateInProgress {
		t.Fatalf("cancelling should stay in progress, got %s", got)
	}
}

func TestFormatElapsedDoesNotWrapHours(t *testing.T) {
	cases := map[time.Duration]string{
		0:                  "00:00:00",
		59 * time.Second:   "00:00:59",
		3725 * time.Second: "01:02:05",
		25 * time.Hour:     "25:00:00",
	}
	for d, want := range cases {
		if got := FormatElapsed(d); got != want {
			t.Fatalf("FormatElapsed(%s) = %s, want %s", d, got, want)
		}
	}
}
