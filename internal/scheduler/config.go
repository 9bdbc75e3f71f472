package scheduler

import "time"

// Config controls the batch job loop.
type Config struct {
	TickInterval    time.Duration
	RunTimeout      time.Duration
	AggregateOffset int // days back from today that the metrics job targets
}

func DefaultConfig() Config {
	return Config{
		TickInterval:    time.Hour,
		RunTimeout:      15 * time.Minute,
		AggregateOffset: 1,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	if c.AggregateOffset <= 0 {
		c.AggregateOffset = defaults.AggregateOffset
	}
	return c
}
