// Package retry re-runs backend calls that failed for transient reasons,
// using exponential backoff with jitter.
package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/Subconscious-ai/ghostshell/pkg/apierror"
)

// DefaultRetryable lists the kinds retried when Opts.Retryable is empty.
// Everything else is caller-caused and would fail the same way again.
var DefaultRetryable = []apierror.Kind{apierror.RateLimit, apierror.Server, apierror.Network}

// Opts configures a Policy.
type Opts struct {
	MaxRetries int             // Retries after the first attempt (default 3, negative disables).
	BaseDelay  time.Duration   // First backoff delay (default 1s).
	MaxDelay   time.Duration   // Upper bound for one delay before jitter (default 30s).
	Retryable  []apierror.Kind // Kinds worth retrying (default DefaultRetryable).
	Logger     *slog.Logger    // Retry log sink (default slog.Default()).
}

// Policy decides whether and when to retry. It holds no per-call state and is
// safe for concurrent use.
type Policy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	retryable  map[apierror.Kind]bool
	log        *slog.Logger

	// sleepFunc is used for testing; defaults to a context-aware sleep.
	sleepFunc func(ctx context.Context, d time.Duration) error
	// randFunc returns a random float64 in [0,1); used for jitter.
	randFunc func() float64
}

// New builds a Policy, filling unset options with defaults.
func New(opts Opts) *Policy {
	switch {
	case opts.MaxRetries == 0:
		opts.MaxRetries = 3
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if len(opts.Retryable) == 0 {
		opts.Retryable = DefaultRetryable
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	retryable := make(map[apierror.Kind]bool, len(opts.Retryable))
	for _, k := range opts.Retryable {
		retryable[k] = true
	}

	return &Policy{
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		maxDelay:   opts.MaxDelay,
		retryable:  retryable,
		log:        opts.Logger,
		sleepFunc:  contextSleep,
		randFunc:   rand.Float64,
	}
}

// SetSleepFunc overrides the sleep function (for testing).
func (p *Policy) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	p.sleepFunc = fn
}

// SetRandFunc overrides the random number generator (for testing).
func (p *Policy) SetRandFunc(fn func() float64) { p.randFunc = fn }

// MaxRetries returns the configured retry budget.
func (p *Policy) MaxRetries() int { return p.maxRetries }

// Retryable reports whether err is a classified failure of a retryable kind.
func (p *Policy) Retryable(err error) bool {
	e, ok := apierror.As(err)
	return ok && p.retryable[e.Kind]
}

// Backoff returns the jittered delay before retry number attempt (0-based).
// A server-supplied Retry-After wins when it is longer than the computed
// delay.
func (p *Policy) Backoff(attempt int, err error) time.Duration {
	d := time.Duration(float64(p.baseDelay) * math.Pow(2, float64(attempt))) //nolint:mnd // exponential backoff formula
	if d <= 0 || d > p.maxDelay {
		d = p.maxDelay
	}
	if e, ok := apierror.As(err); ok && e.RetryAfter > d {
		d = min(e.RetryAfter, p.maxDelay)
	}
	return p.jitter(d)
}

// jitter applies ±25% random jitter to a duration.
func (p *Policy) jitter(d time.Duration) time.Duration {
	// Scale factor in [0.75, 1.25).
	factor := 0.75 + p.randFunc()*0.5 //nolint:mnd // jitter range: ±25%
	return time.Duration(float64(d) * factor)
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. The last error is returned unchanged so callers see
// the real failure kind. Cancelling ctx aborts a pending backoff and returns
// ctx.Err(); an expired deadline is reported as a Network error.
func Do[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		if !p.Retryable(err) {
			return zero, err
		}

		if attempt >= p.maxRetries {
			if p.maxRetries > 0 {
				p.log.ErrorContext(ctx, "max retries exceeded",
					"max_retries", p.maxRetries,
					"error", err,
				)
			}
			return zero, err
		}

		delay := p.Backoff(attempt, err)
		p.log.WarnContext(ctx, "retrying backend call",
			"attempt", attempt+1,
			"max_retries", p.maxRetries,
			"delay", delay,
			"error", err,
		)

		if sleepErr := p.sleepFunc(ctx, delay); sleepErr != nil {
			return zero, apierror.FromContext(sleepErr)
		}
	}
}

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
