package config

import "time"

// QueueConfig contains queue and worker pool configuration.
// These values control how log-processing jobs are polled, claimed,
// heartbeated, and retried.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per replica/pod.
	// Each worker independently polls and processes jobs.
	WorkerCount int

	// PollInterval is the base interval for checking pending jobs.
	PollInterval time.Duration

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration

	// LockDuration is the maximum time a claimed job may run before the
	// sweeper considers it stalled. Must cover slow LLM and embedding calls.
	LockDuration time.Duration

	// HeartbeatInterval is how often a worker refreshes the job heartbeat.
	HeartbeatInterval time.Duration

	// StallSweepInterval is how often the sweeper scans for stalled jobs.
	StallSweepInterval time.Duration

	// MaxStalledRetries is the number of times a stalled or transiently
	// failed job is re-queued before it is marked failed.
	MaxStalledRetries int

	// BackoffInitial is the first retry delay; subsequent retries double it.
	BackoffInitial time.Duration

	// GracefulShutdownTimeout is the max time to wait for active jobs to
	// complete during shutdown.
	GracefulShutdownTimeout time.Duration
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		LockDuration:            10 * time.Minute,
		HeartbeatInterval:       15 * time.Second,
		StallSweepInterval:      30 * time.Second,
		MaxStalledRetries:       3,
		BackoffInitial:          2 * time.Second,
		GracefulShutdownTimeout: 10 * time.Minute,
	}
}

// LoadQueueConfigFromEnv returns the defaults overridden by any environment
// variables that are set.
func LoadQueueConfigFromEnv() *QueueConfig {
	cfg := DefaultQueueConfig()
	cfg.WorkerCount = envInt("QUEUE_WORKER_COUNT", cfg.WorkerCount)
	cfg.LockDuration = time.Duration(envInt("JOB_LOCK_SECONDS", int(cfg.LockDuration/time.Second))) * time.Second
	cfg.MaxStalledRetries = envInt("JOB_MAX_STALLED_RETRIES", cfg.MaxStalledRetries)
	cfg.BackoffInitial = time.Duration(envInt("JOB_BACKOFF_INITIAL_MS", int(cfg.BackoffInitial/time.Millisecond))) * time.Millisecond
	return cfg
}
