package backend

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

var _ Client = (*Retrying)(nil)

// Retrying wraps a Client with proactive RPM throttling and reactive 429
// retry with exponential backoff and jitter. It also honors provider-reported
// rate limit state when the inner client exposes it.
type Retrying struct {
	inner      Client
	limiter    *rate.Limiter // nil when no RPM limit is set
	maxRetries int           // max retries on 429
	baseDelay  time.Duration // initial backoff delay

	// nowFunc is used for testing; defaults to time.Now.
	nowFunc func() time.Time
	// sleepFunc is used for testing; defaults to a context-aware sleep.
	sleepFunc func(ctx context.Context, d time.Duration) error
	// randFunc returns a random float64 in [0,1); used for jitter. Defaults to rand.Float64.
	randFunc func() float64
}

// RetryOpts configures the Retrying wrapper.
type RetryOpts struct {
	RPM        int           // Requests per minute (0 = no limit).
	MaxRetries int           // Max retries on 429 (default 3).
	BaseDelay  time.Duration // Initial backoff delay (default 1s).
}

// NewRetrying wraps a Client with rate limiting.
func NewRetrying(inner Client, opts RetryOpts) *Retrying {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}

	var limiter *rate.Limiter
	if opts.RPM > 0 {
		// Token bucket refilling at RPM/60 per second, bursting up to a full
		// minute's worth.
		limiter = rate.NewLimiter(rate.Limit(opts.RPM)/60, opts.RPM)
	}

	return &Retrying{
		inner:      inner,
		limiter:    limiter,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		nowFunc:    time.Now,
		sleepFunc:  contextSleep,
		randFunc:   rand.Float64,
	}
}

// SetNowFunc overrides the time source (for testing).
func (r *Retrying) SetNowFunc(fn func() time.Time) { r.nowFunc = fn }

// SetSleepFunc overrides the sleep function (for testing).
func (r *Retrying) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleepFunc = fn
}

// SetRandFunc overrides the random number generator (for testing).
func (r *Retrying) SetRandFunc(fn func() float64) { r.randFunc = fn }

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
func (r *Retrying) jitter(d time.Duration) time.Duration {
	// Scale factor in [0.75, 1.25).
	factor := 0.75 + r.randFunc()*0.5 //nolint:mnd // jitter range: ±25%
	return time.Duration(float64(d) * factor)
}

// Complete implements Client with proactive RPM throttling and 429 retry.
func (r *Retrying) Complete(ctx context.Context, req Request) (Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return Response{}, err
		}
	}

	var lastErr error
	for attempt := range r.maxRetries + 1 {
		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			if sleepErr := r.adaptFromServerInfo(ctx); sleepErr != nil {
				return Response{}, sleepErr
			}
			return resp, nil
		}

		var rle *RateLimitError
		if !errors.As(err, &rle) {
			return Response{}, err
		}

		lastErr = err

		if attempt >= r.maxRetries {
			break
		}

		// Compute backoff: baseDelay * 2^attempt, but use RetryAfter if larger. Apply jitter.
		backoff := r.jitter(max(
			r.baseDelay*time.Duration(math.Pow(2, float64(attempt))), //nolint:mnd // exponential backoff formula
			rle.RetryAfter,
		))

		if err := r.sleepFunc(ctx, backoff); err != nil {
			return Response{}, err
		}
	}

	return Response{}, lastErr
}

// adaptFromServerInfo checks whether the inner client reports near-zero
// remaining capacity via RateLimitInfoReporter. If so, it preemptively sleeps
// until the provider's reset time.
func (r *Retrying) adaptFromServerInfo(ctx context.Context) error {
	reporter, ok := r.inner.(RateLimitInfoReporter)
	if !ok {
		return nil
	}

	info := reporter.LastRateLimitInfo()
	if info == nil {
		return nil
	}

	now := r.nowFunc()
	var sleepUntil time.Time

	if info.RemainingRequests <= 1 && !info.RequestsReset.IsZero() && info.RequestsReset.After(now) {
		sleepUntil = info.RequestsReset
	}

	if info.RemainingTokens <= 1 && !info.TokensReset.IsZero() && info.TokensReset.After(now) {
		if info.TokensReset.After(sleepUntil) {
			sleepUntil = info.TokensReset
		}
	}

	if sleepUntil.IsZero() {
		return nil
	}

	return r.sleepFunc(ctx, sleepUntil.Sub(now))
}

// LastRateLimitInfo forwards to the inner client if it implements
// RateLimitInfoReporter.
func (r *Retrying) LastRateLimitInfo() *RateLimitInfo {
	if reporter, ok := r.inner.(RateLimitInfoReporter); ok {
		return reporter.LastRateLimitInfo()
	}
	return nil
}
