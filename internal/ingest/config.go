package ingest

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// BackfillConfig holds configuration for the backfill coordinator.
type BackfillConfig struct {
	Workers     int
	StartHeight uint64
	EndHeight   uint64
}

// NewBackfillConfig creates a backfill configuration from environment
// variables, falling back to sensible defaults.
func NewBackfillConfig() (*BackfillConfig, error) {
	workers := getEnvInt("BACKFILL_WORKERS", 8)
	if workers <= 0 {
		return nil, fmt.Errorf("BACKFILL_WORKERS must be > 0, got %d", workers)
	}

	startHeight := getEnvUint64("BACKFILL_START_HEIGHT", 0)
	endHeight := getEnvUint64("BACKFILL_END_HEIGHT", 5000)
	if startHeight >= endHeight {
		return nil, fmt.Errorf("BACKFILL_START_HEIGHT (%d) must be < BACKFILL_END_HEIGHT (%d)", startHeight, endHeight)
	}

	return &BackfillConfig{Workers: workers, StartHeight: startHeight, EndHeight: endHeight}, nil
}

// Validate checks the configuration for internal consistency.
func (c *BackfillConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0, got %d", c.Workers)
	}
	if c.StartHeight >= c.EndHeight {
		return fmt.Errorf("start_height (%d) must be < end_height (%d)", c.StartHeight, c.EndHeight)
	}
	return nil
}

// TotalBlocks returns the total number of blocks to backfill.
func (c *BackfillConfig) TotalBlocks() uint64 {
	return c.EndHeight - c.StartHeight + 1
}

// LiveTailConfig holds configuration for the live-tail coordinator.
type LiveTailConfig struct {
	PollInterval time.Duration
}

// NewLiveTailConfig creates a live-tail configuration from environment
// variables, falling back to a 2-second poll interval.
func NewLiveTailConfig() (*LiveTailConfig, error) {
	pollInterval := 2 * time.Second
	if s := os.Getenv("LIVETAIL_POLL_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err == nil && d > 0 {
			pollInterval = d
		}
	}
	cfg := &LiveTailConfig{PollInterval: pollInterval}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *LiveTailConfig) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0, got %v", c.PollInterval)
	}
	return nil
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvUint64(key string, defaultVal uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}
