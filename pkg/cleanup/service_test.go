package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/queue"
)

type pruneCall struct {
	status    string
	olderThan time.Duration
}

type fakePruner struct {
	mu    sync.Mutex
	calls []pruneCall
	err   error
}

func (f *fakePruner) PruneJobs(_ context.Context, status string, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pruneCall{status: status, olderThan: olderThan})
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func (f *fakePruner) snapshot() []pruneCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pruneCall(nil), f.calls...)
}

func testRetentionConfig() *config.RetentionConfig {
	return &config.RetentionConfig{
		CompletedJobRetention: 7 * 24 * time.Hour,
		FailedJobRetention:    30 * 24 * time.Hour,
		CleanupInterval:       time.Hour,
	}
}

func waitForCalls(t *testing.T, f *fakePruner, n int) []pruneCall {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls := f.snapshot(); len(calls) >= n {
			return calls
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least %d prune calls, got %d", n, len(f.snapshot()))
	return nil
}

func TestService_PrunesOnStart(t *testing.T) {
	pruner := &fakePruner{}
	svc := NewService(testRetentionConfig(), pruner, nil)

	svc.Start(context.Background())
	defer svc.Stop()

	calls := waitForCalls(t, pruner, 2)
	assert.Equal(t, queue.StatusCompleted, calls[0].status)
	assert.Equal(t, 7*24*time.Hour, calls[0].olderThan)
	assert.Equal(t, queue.StatusFailed, calls[1].status)
	assert.Equal(t, 30*24*time.Hour, calls[1].olderThan)
}

func TestService_StartIsIdempotent(t *testing.T) {
	pruner := &fakePruner{}
	svc := NewService(testRetentionConfig(), pruner, nil)

	svc.Start(context.Background())
	svc.Start(context.Background())
	defer svc.Stop()

	waitForCalls(t, pruner, 2)
	// A second Start must not spawn a second loop.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, pruner.snapshot(), 2)
}

func TestService_PruneErrorsAreNotFatal(t *testing.T) {
	pruner := &fakePruner{err: errors.New("connection refused")}
	svc := NewService(testRetentionConfig(), pruner, nil)

	svc.Start(context.Background())
	calls := waitForCalls(t, pruner, 2)
	svc.Stop()

	// Both statuses are attempted even when the first prune fails.
	require.Len(t, calls, 2)
}

func TestService_StopWithoutStart(t *testing.T) {
	svc := NewService(testRetentionConfig(), &fakePruner{}, nil)
	svc.Stop() // must not block or panic
}

func TestNewServiceValidation(t *testing.T) {
	assert.Panics(t, func() { NewService(testRetentionConfig(), nil, nil) })
}
