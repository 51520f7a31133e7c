// Package retry implements exponential backoff with jitter for
// transient failures, used by the socket dialer's reconnection policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	randMutex  sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// ErrMaxAttempts is wrapped into the error returned when every attempt
// has failed.
var ErrMaxAttempts = errors.New("maximum retry attempts exceeded")

// Config controls the backoff schedule. MaxAttempts of zero or less
// means a single attempt with no retries.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	AddJitter    bool
}

// DefaultConfig suits ordinary reconnect scenarios: a handful of
// attempts backing off from 100ms to 5s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Persistent retries for a long time before giving up, for connections
// that should survive server restarts.
func Persistent() Config {
	return Config{
		MaxAttempts:  30,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, or ctx is
// cancelled. The last attempt's error is wrapped in the returned error.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		select {
		case <-time.After(jittered(delay, cfg.AddJitter)):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay = nextDelay(delay, cfg)
	}

	return fmt.Errorf("%w after %d attempt(s): %v", ErrMaxAttempts, attempts, lastErr)
}

func nextDelay(delay time.Duration, cfg Config) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier <= 1 {
		multiplier = 2.0
	}
	next := time.Duration(float64(delay) * multiplier)
	if cfg.MaxDelay > 0 && next > cfg.MaxDelay {
		next = cfg.MaxDelay
	}
	return next
}

// jittered spreads a delay over [delay/2, delay) so that a fleet of
// clients does not reconnect in lockstep.
func jittered(delay time.Duration, add bool) time.Duration {
	if !add || delay <= 0 {
		return delay
	}
	randMutex.Lock()
	defer randMutex.Unlock()
	half := delay / 2
	return half + time.Duration(randSource.Int63n(int64(half)+1))
}
