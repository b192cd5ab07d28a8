package writer

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Options controls batching and retries. Durations are wall-clock.
type Options struct {
	BatchSize         int           `yaml:"batch_size"`
	FlushInterval     time.Duration `yaml:"flush_interval"`
	JitterInterval    time.Duration `yaml:"jitter_interval"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	MaxRetries        int           `yaml:"max_retries"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay"`
	ExponentialBase   int           `yaml:"exponential_base"`
	Workers           int           `yaml:"workers"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		BatchSize:         500,
		FlushInterval:     10_000 * time.Millisecond,
		JitterInterval:    2_000 * time.Millisecond,
		RetryInterval:     5_000 * time.Millisecond,
		MaxRetries:        5,
		MaxRetryDelay:     30_000 * time.Millisecond,
		ExponentialBase:   2,
		Workers:           1,
		WriteTimeout:      30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Validate reports the first option that cannot be used.
func (o Options) Validate() error {
	switch {
	case o.BatchSize < 1:
		return fmt.Errorf("batch size must be positive, got %d", o.BatchSize)
	case o.FlushInterval <= 0:
		return fmt.Errorf("flush interval must be positive, got %s", o.FlushInterval)
	case o.JitterInterval < 0:
		return fmt.Errorf("jitter interval must not be negative, got %s", o.JitterInterval)
	case o.RetryInterval < 0:
		return fmt.Errorf("retry interval must not be negative, got %s", o.RetryInterval)
	case o.MaxRetries < 0:
		return fmt.Errorf("max retries must not be negative, got %d", o.MaxRetries)
	case o.MaxRetryDelay < o.RetryInterval:
		return fmt.Errorf("max retry delay %s is below retry interval %s", o.MaxRetryDelay, o.RetryInterval)
	case o.ExponentialBase < 1:
		return fmt.Errorf("exponential base must be at least 1, got %d", o.ExponentialBase)
	case o.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", o.Workers)
	}
	return nil
}

// sanitize replaces unusable values with defaults so a Writer always runs.
func (o Options) sanitize() Options {
	d := DefaultOptions()
	if o.BatchSize < 1 {
		o.BatchSize = d.BatchSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = d.FlushInterval
	}
	if o.JitterInterval < 0 {
		o.JitterInterval = 0
	}
	if o.RetryInterval < 0 {
		o.RetryInterval = 0
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.MaxRetryDelay < o.RetryInterval {
		o.MaxRetryDelay = o.RetryInterval
	}
	if o.ExponentialBase < 1 {
		o.ExponentialBase = 1
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

// RetryDelay returns the wait before retry number attempt (0-based):
// min(RetryInterval * ExponentialBase^attempt + jitter, MaxRetryDelay).
func (o Options) RetryDelay(attempt int, jitter time.Duration) time.Duration {
	d := float64(o.RetryInterval)*math.Pow(float64(o.ExponentialBase), float64(attempt)) + float64(jitter)
	if d > float64(o.MaxRetryDelay) || math.IsInf(d, 0) {
		return o.MaxRetryDelay
	}
	return time.Duration(d)
}

// randomJitter returns a uniform duration in [0, max).
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}
