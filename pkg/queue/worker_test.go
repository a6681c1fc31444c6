package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/loglens/loglens/pkg/config"
)

func TestRetryBackoff(t *testing.T) {
	initial := 2 * time.Second
	tests := []struct {
		attempts int
		expected time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, RetryBackoff(initial, tt.attempts),
			"attempts=%d", tt.attempts)
	}
}

func TestTerminalErrors(t *testing.T) {
	base := errors.New("archive is empty")

	assert.False(t, IsTerminal(base))
	assert.True(t, IsTerminal(Terminal(base)))
	assert.True(t, IsTerminal(fmt.Errorf("processing job: %w", Terminal(base))))
	assert.Nil(t, Terminal(nil))

	wrapped := Terminal(base)
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, base.Error(), wrapped.Error())
}

func TestPollIntervalJitterBounds(t *testing.T) {
	cfg := config.DefaultQueueConfig()
	cfg.PollInterval = 1 * time.Second
	cfg.PollIntervalJitter = 500 * time.Millisecond
	w := NewWorker("w-0", "pod-0", nil, cfg, nil, nil)

	for i := 0; i < 100; i++ {
		d := w.pollInterval()
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestPollIntervalWithoutJitter(t *testing.T) {
	cfg := config.DefaultQueueConfig()
	cfg.PollInterval = 1 * time.Second
	cfg.PollIntervalJitter = 0
	w := NewWorker("w-0", "pod-0", nil, cfg, nil, nil)

	assert.Equal(t, 1*time.Second, w.pollInterval())
}

func TestWorkerHealthTracking(t *testing.T) {
	w := NewWorker("w-1", "pod-0", nil, config.DefaultQueueConfig(), nil, nil)

	health := w.Health()
	assert.Equal(t, "w-1", health.ID)
	assert.Equal(t, string(WorkerStatusIdle), health.Status)
	assert.Zero(t, health.JobsProcessed)

	w.setStatus(WorkerStatusWorking, "job-42")
	health = w.Health()
	assert.Equal(t, string(WorkerStatusWorking), health.Status)
	assert.Equal(t, "job-42", health.CurrentJobID)
}
