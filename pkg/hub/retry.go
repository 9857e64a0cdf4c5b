package hub

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/ronwebb/pixtell/pkg/hub/stats"
	"github.com/ronwebb/pixtell/pkg/imageref"
)

var (
	_ Captioner = (*RetryingCaptioner)(nil)
	_ Answerer  = (*RetryingAnswerer)(nil)
)

// RetryOpts configures transient-error retry behaviour.
type RetryOpts struct {
	MaxRetries int           // Max retries on 429/503 (default 3).
	BaseDelay  time.Duration // Initial backoff delay (default 1s).
}

// retrier implements bounded retry with exponential backoff and jitter for
// transient hub errors. The hub's own Retry-After / estimated_time hints act
// as a floor for each backoff.
type retrier struct {
	maxRetries    int
	baseDelay     time.Duration
	fallbackStats *stats.Tracker // stable fallback tracker when inner lacks StatsReporter

	// sleepFunc is used for testing; defaults to a context-aware sleep.
	sleepFunc func(ctx context.Context, d time.Duration) error
	// randFunc returns a random float64 in [0,1); used for jitter.
	randFunc func() float64
}

func newRetrier(opts RetryOpts) retrier {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}

	return retrier{
		maxRetries:    opts.MaxRetries,
		baseDelay:     opts.BaseDelay,
		fallbackStats: &stats.Tracker{},
		sleepFunc:     contextSleep,
		randFunc:      rand.Float64,
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

// jitter applies ±25% random jitter to a duration.
func (r *retrier) jitter(d time.Duration) time.Duration {
	// Scale factor in [0.75, 1.25).
	factor := 0.75 + r.randFunc()*0.5 //nolint:mnd // jitter range: ±25%
	return time.Duration(float64(d) * factor)
}

// do runs fn, retrying transient hub errors up to maxRetries times.
func (r *retrier) do(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := range r.maxRetries + 1 {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}

		if !IsTransient(err) {
			return "", err
		}

		lastErr = err

		if attempt >= r.maxRetries {
			break
		}

		// Backoff: baseDelay * 2^attempt, but never shorter than the hub's
		// own hint. Apply jitter.
		backoff := r.jitter(max(
			r.baseDelay*time.Duration(math.Pow(2, float64(attempt))), //nolint:mnd // exponential backoff formula
			hintedDelay(err),
		))

		if err := r.sleepFunc(ctx, backoff); err != nil {
			return "", err
		}
	}

	if lastErr == nil {
		lastErr = errors.New("hub: exhausted retries without a result")
	}

	return "", lastErr
}

// hintedDelay extracts the server-provided wait hint from a transient error.
func hintedDelay(err error) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter
	}

	var mle *ModelLoadingError
	if errors.As(err, &mle) {
		return mle.EstimatedTime
	}

	return 0
}

// RetryingCaptioner wraps a Captioner with transient-error retry.
type RetryingCaptioner struct {
	inner Captioner
	retrier
}

// NewRetryingCaptioner wraps a Captioner with retry behaviour.
func NewRetryingCaptioner(inner Captioner, opts RetryOpts) *RetryingCaptioner {
	return &RetryingCaptioner{inner: inner, retrier: newRetrier(opts)}
}

// SetSleepFunc overrides the sleep function (for testing).
func (c *RetryingCaptioner) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	c.sleepFunc = fn
}

// SetRandFunc overrides the random number generator (for testing).
func (c *RetryingCaptioner) SetRandFunc(fn func() float64) { c.randFunc = fn }

// Caption implements Captioner with bounded retry on 429/503.
func (c *RetryingCaptioner) Caption(ctx context.Context, img imageref.Image) (string, error) {
	return c.do(ctx, func(ctx context.Context) (string, error) {
		return c.inner.Caption(ctx, img)
	})
}

// StatsTracker forwards to the inner captioner if it reports statistics.
func (c *RetryingCaptioner) StatsTracker() *stats.Tracker {
	if sr, ok := c.inner.(StatsReporter); ok {
		return sr.StatsTracker()
	}
	return c.fallbackStats
}

// RetryingAnswerer wraps an Answerer with transient-error retry.
type RetryingAnswerer struct {
	inner Answerer
	retrier
}

// NewRetryingAnswerer wraps an Answerer with retry behaviour.
func NewRetryingAnswerer(inner Answerer, opts RetryOpts) *RetryingAnswerer {
	return &RetryingAnswerer{inner: inner, retrier: newRetrier(opts)}
}

// SetSleepFunc overrides the sleep function (for testing).
func (a *RetryingAnswerer) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	a.sleepFunc = fn
}

// SetRandFunc overrides the random number generator (for testing).
func (a *RetryingAnswerer) SetRandFunc(fn func() float64) { a.randFunc = fn }

// Answer implements Answerer with bounded retry on 429/503.
func (a *RetryingAnswerer) Answer(ctx context.Context, img imageref.Image, question string) (string, error) {
	return a.do(ctx, func(ctx context.Context) (string, error) {
		return a.inner.Answer(ctx, img, question)
	})
}

// StatsTracker forwards to the inner answerer if it reports statistics.
func (a *RetryingAnswerer) StatsTracker() *stats.Tracker {
	if sr, ok := a.inner.(StatsReporter); ok {
		return sr.StatsTracker()
	}
	return a.fallbackStats
}
