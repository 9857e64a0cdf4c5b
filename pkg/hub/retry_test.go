package hub_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ronwebb/pixtell/pkg/hub"
	"github.com/ronwebb/pixtell/pkg/hub/stats"
	"github.com/ronwebb/pixtell/pkg/imageref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCaptioner fails with the scripted errors before succeeding.
type scriptedCaptioner struct {
	errs  []error
	calls int
}

func (s *scriptedCaptioner) Caption(_ context.Context, _ imageref.Image) (string, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	return "a cat on a mat", nil
}

// noSleep records requested delays instead of sleeping.
func noSleep(slept *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}

func TestRetryingCaptioner_SucceedsFirstTry(t *testing.T) {
	inner := &scriptedCaptioner{}
	rc := hub.NewRetryingCaptioner(inner, hub.RetryOpts{})

	out, err := rc.Caption(context.Background(), imageref.Image{})
	require.NoError(t, err)
	assert.Equal(t, "a cat on a mat", out)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingCaptioner_RetriesModelLoading(t *testing.T) {
	inner := &scriptedCaptioner{errs: []error{
		&hub.ModelLoadingError{Model: "m", EstimatedTime: 5 * time.Second},
	}}
	rc := hub.NewRetryingCaptioner(inner, hub.RetryOpts{BaseDelay: time.Second})

	var slept []time.Duration
	rc.SetSleepFunc(noSleep(&slept))
	rc.SetRandFunc(func() float64 { return 0.5 }) // jitter factor 1.0

	out, err := rc.Caption(context.Background(), imageref.Image{})
	require.NoError(t, err)
	assert.Equal(t, "a cat on a mat", out)
	assert.Equal(t, 2, inner.calls)

	// The hub's 5s estimate floors the 1s base delay.
	require.Len(t, slept, 1)
	assert.Equal(t, 5*time.Second, slept[0])
}

func TestRetryingCaptioner_ExponentialBackoff(t *testing.T) {
	inner := &scriptedCaptioner{errs: []error{
		&hub.RateLimitError{},
		&hub.RateLimitError{},
	}}
	rc := hub.NewRetryingCaptioner(inner, hub.RetryOpts{BaseDelay: time.Second})

	var slept []time.Duration
	rc.SetSleepFunc(noSleep(&slept))
	rc.SetRandFunc(func() float64 { return 0.5 })

	_, err := rc.Caption(context.Background(), imageref.Image{})
	require.NoError(t, err)

	require.Len(t, slept, 2)
	assert.Equal(t, time.Second, slept[0])
	assert.Equal(t, 2*time.Second, slept[1])
}

func TestRetryingCaptioner_ExhaustsRetries(t *testing.T) {
	inner := &scriptedCaptioner{errs: []error{
		&hub.ModelLoadingError{Model: "m"},
		&hub.ModelLoadingError{Model: "m"},
		&hub.ModelLoadingError{Model: "m"},
	}}
	rc := hub.NewRetryingCaptioner(inner, hub.RetryOpts{MaxRetries: 2})
	rc.SetSleepFunc(func(context.Context, time.Duration) error { return nil })

	_, err := rc.Caption(context.Background(), imageref.Image{})

	var mle *hub.ModelLoadingError
	require.ErrorAs(t, err, &mle)
	assert.Equal(t, 3, inner.calls) // initial call + 2 retries
}

func TestRetryingCaptioner_NonTransientNotRetried(t *testing.T) {
	boom := errors.New("invalid credentials")
	inner := &scriptedCaptioner{errs: []error{boom}}
	rc := hub.NewRetryingCaptioner(inner, hub.RetryOpts{})
	rc.SetSleepFunc(func(context.Context, time.Duration) error { return nil })

	_, err := rc.Caption(context.Background(), imageref.Image{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingCaptioner_CancelledDuringBackoff(t *testing.T) {
	inner := &scriptedCaptioner{errs: []error{&hub.RateLimitError{}}}
	rc := hub.NewRetryingCaptioner(inner, hub.RetryOpts{})
	rc.SetSleepFunc(func(ctx context.Context, _ time.Duration) error { return context.Canceled })

	_, err := rc.Caption(context.Background(), imageref.Image{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

type scriptedAnswerer struct {
	question string
	calls    int
	errs     []error
}

func (s *scriptedAnswerer) Answer(_ context.Context, _ imageref.Image, question string) (string, error) {
	s.calls++
	s.question = question
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	return "yes", nil
}

func TestRetryingAnswerer_PassesQuestionThrough(t *testing.T) {
	inner := &scriptedAnswerer{errs: []error{&hub.ModelLoadingError{Model: "m"}}}
	ra := hub.NewRetryingAnswerer(inner, hub.RetryOpts{})
	ra.SetSleepFunc(func(context.Context, time.Duration) error { return nil })

	out, err := ra.Answer(context.Background(), imageref.Image{}, "is it a cat?")
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
	assert.Equal(t, "is it a cat?", inner.question)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingCaptioner_FallbackStatsStable(t *testing.T) {
	// scriptedCaptioner has no StatsTracker, so the wrapper hands out its
	// own fallback tracker. It must be the same tracker across calls and
	// safe to record into while a caption call is running.
	rc := hub.NewRetryingCaptioner(&scriptedCaptioner{}, hub.RetryOpts{})

	tracker := rc.StatsTracker()
	require.NotNil(t, tracker)

	var wg sync.WaitGroup
	wg.Go(func() {
		for range 10 {
			_, _ = rc.Caption(context.Background(), imageref.Image{})
		}
	})
	wg.Go(func() {
		for range 10 {
			tracker.Add(stats.Call{Model: "m", Duration: time.Millisecond})
		}
	})
	wg.Wait()

	assert.Same(t, tracker, rc.StatsTracker())
	assert.Equal(t, 10, tracker.Count())
}
