package config

import "time"

// RetentionConfig controls how long finished jobs stay in the jobs table.
// Completed jobs are kept as bounded history; failed jobs are kept longer
// so operators can inspect them.
type RetentionConfig struct {
	// CompletedJobRetention is how long completed jobs are kept.
	CompletedJobRetention time.Duration

	// FailedJobRetention is how long failed jobs are kept.
	FailedJobRetention time.Duration

	// CleanupInterval is how often the retention loop runs.
	CleanupInterval time.Duration
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		CompletedJobRetention: 7 * 24 * time.Hour,
		FailedJobRetention:    30 * 24 * time.Hour,
		CleanupInterval:       1 * time.Hour,
	}
}

// LoadRetentionConfigFromEnv returns the defaults overridden by any
// environment variables that are set.
func LoadRetentionConfigFromEnv() *RetentionConfig {
	cfg := DefaultRetentionConfig()
	cfg.CompletedJobRetention = time.Duration(envInt("JOB_COMPLETED_RETENTION_HOURS",
		int(cfg.CompletedJobRetention/time.Hour))) * time.Hour
	cfg.FailedJobRetention = time.Duration(envInt("JOB_FAILED_RETENTION_HOURS",
		int(cfg.FailedJobRetention/time.Hour))) * time.Hour
	cfg.CleanupInterval = time.Duration(envInt("JOB_CLEANUP_INTERVAL_MINUTES",
		int(cfg.CleanupInterval/time.Minute))) * time.Minute
	return cfg
}
