package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const jitterFraction = 0.25

// Observer is notified before each backoff wait. It must not block.
type Observer func(attempt int, delay time.Duration)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Executor runs operations according to a Config.
type Executor struct {
	cfg      Config
	observer Observer
	sleep    Sleeper
	random   func() float64
}

// Option customizes an Executor.
type Option func(*Executor)

// WithObserver sets a per-retry observer used for progress reporting.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

// WithRandom replaces the jitter source. f must return values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(e *Executor) { e.random = f }
}

// New creates an Executor. Non-positive values fall back to sane minimums.
func New(cfg Config, opts ...Option) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.MaxDelayMS < cfg.InitialDelayMS {
		cfg.MaxDelayMS = cfg.InitialDelayMS
	}

	e := &Executor{
		cfg:    cfg,
		sleep:  sleepContext,
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective policy.
func (e *Executor) Config() Config {
	return e.cfg
}

// Delay returns the backoff before retrying after attempt n (1-indexed), without jitter.
func (e *Executor) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	initial := float64(e.cfg.initialDelay())
	limit := float64(e.cfg.maxDelay())
	d := initial * math.Pow(e.cfg.Multiplier, float64(n-1))
	if d > limit || math.IsInf(d, 1) {
		d = limit
	}
	return time.Duration(d)
}

func (e *Executor) backoff(n int) time.Duration {
	d := e.Delay(n)
	if e.cfg.Jitter && d > 0 {
		d += time.Duration(e.random() * jitterFraction * float64(d))
	}
	return d
}

// Outcome is the result of a successful Execute.
type Outcome[T any] struct {
	Value    T
	Attempts int
}

// Execute runs op until it succeeds, fails fatally, runs out of attempts or ctx is done.
func Execute[T any](ctx context.Context, e *Executor, op func(ctx context.Context, attempt int) (T, error)) (Outcome[T], error) {
	var last error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome[T]{Attempts: attempt - 1}, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		value, err := op(ctx, attempt)
		if err == nil {
			return Outcome[T]{Value: value, Attempts: attempt}, nil
		}
		last = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome[T]{Attempts: attempt}, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
		if !IsRetryable(err) {
			return Outcome[T]{Attempts: attempt}, &NonRetryableError{Err: err}
		}
		if attempt == e.cfg.MaxAttempts {
			break
		}

		delay := e.backoff(attempt)
		if e.observer != nil {
			e.observer(attempt, delay)
		}
		if err := e.sleep(ctx, delay); err != nil {
			return Outcome[T]{Attempts: attempt}, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}

	return Outcome[T]{Attempts: e.cfg.MaxAttempts}, &ExhaustedError{Attempts: e.cfg.MaxAttempts, Last: last}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
