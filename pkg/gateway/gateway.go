// Package gateway wraps the three external capabilities behind a single
// rate-limited, retrying call path. Every outbound request the research
// pipeline makes goes through Call, which enforces a per-capability
// window budget, paces consecutive requests, bounds each attempt with a
// deadline, and retries with a backoff tiered by error class.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	standardBase   = time.Second
	timeoutBase    = 2 * time.Second
	rateBase       = 5 * time.Second
	throughputBase = 15 * time.Second
	maxBackoff     = 2 * time.Minute
	jitterFactor   = 0.25
)

// Gateway owns all shared rate-limit state. Construct one per process
// and hand it to every component that talks to an external capability.
type Gateway struct {
	limits      Limits
	maxAttempts int
	logger      *slog.Logger

	mu      sync.Mutex
	windows map[Capability]*window
	pacers  map[Capability]*rate.Limiter
	calls   map[Capability]*atomic.Int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Gateway from the given limits. maxAttempts values below 1
// are clamped to 1.
func New(limits Limits, maxAttempts int, logger *slog.Logger) *Gateway {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		limits:      limits,
		maxAttempts: maxAttempts,
		logger:      logger,
		windows:     make(map[Capability]*window),
		pacers:      make(map[Capability]*rate.Limiter),
		calls:       make(map[Capability]*atomic.Int64),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Call runs op against one capability with the window budget, pacing,
// per-attempt deadline, and tiered retry policy applied. An exhausted
// window budget fails fast with a RateLimitError carrying the time until
// reset; it never blocks waiting for the window to roll over.
func Call[T any](ctx context.Context, g *Gateway, c Capability, op func(context.Context) (T, error)) (T, error) {
	var zero T
	limit := g.limits.limitFor(c)
	if limit.AttemptTimeout <= 0 {
		limit.AttemptTimeout = 60 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := g.backoffFor(lastErr, attempt-1)
			g.logger.Warn("retrying capability call",
				"capability", c, "attempt", attempt, "delay", delay, "error", lastErr)
			if err := g.sleep(ctx, delay); err != nil {
				return zero, fmt.Errorf("%s: aborted during backoff: %w", c, err)
			}
		}

		ok, retryAfter := g.windowFor(c).take(g.now())
		if !ok {
			return zero, &RateLimitError{Capability: c, RetryAfter: retryAfter}
		}

		if err := g.pacerFor(c).Wait(ctx); err != nil {
			return zero, fmt.Errorf("%s: pacing: %w", c, err)
		}

		g.counterFor(c).Add(1)

		attemptCtx, cancel := context.WithTimeout(ctx, limit.AttemptTimeout)
		result, err := op(attemptCtx)
		deadlineHit := attemptCtx.Err() == context.DeadlineExceeded
		cancel()
		if err == nil {
			return result, nil
		}
		if deadlineHit && ctx.Err() == nil {
			err = &TimeoutError{Capability: c, Deadline: limit.AttemptTimeout, Err: err}
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return zero, fmt.Errorf("%s: %w", c, lastErr)
		}

		switch classify(err) {
		case classAuth:
			var ae *AuthError
			if errors.As(err, &ae) {
				return zero, err
			}
			return zero, &AuthError{Capability: c, Err: err}
		case classQuota:
			var qe *QuotaError
			if errors.As(err, &qe) {
				return zero, err
			}
			return zero, &QuotaError{Capability: c, Err: err}
		}
	}

	return zero, fmt.Errorf("%s: %d attempts exhausted: %w", c, g.maxAttempts, lastErr)
}

// backoffFor picks the delay before the given retry. retries counts the
// failures so far, starting at 1.
func (g *Gateway) backoffFor(err error, retries int) time.Duration {
	var base time.Duration
	switch classify(err) {
	case classRateLimit:
		base = rateBase
		if throughputLimited(err) {
			base = throughputBase
		}
	case classTimeout:
		base = timeoutBase
	default:
		base = standardBase
	}

	delay := base << (retries - 1)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	if hint := retryAfterHint(err); hint > delay {
		delay = hint
	}
	return applyJitter(delay, jitterFactor)
}

// Stats returns the cumulative number of attempts issued per capability
// since construction.
func (g *Gateway) Stats() map[Capability]int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[Capability]int64, len(g.calls))
	for c, n := range g.calls {
		out[c] = n.Load()
	}
	return out
}

func (g *Gateway) windowFor(c Capability) *window {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.windows[c]
	if !ok {
		cl := g.limits.limitFor(c)
		length := g.limits.Window
		if length <= 0 {
			length = time.Minute
		}
		w = &window{budget: cl.CallsPerWindow, length: length}
		g.windows[c] = w
	}
	return w
}

func (g *Gateway) pacerFor(c Capability) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pacers[c]
	if !ok {
		cl := g.limits.limitFor(c)
		p = rate.NewLimiter(rate.Every(cl.MinInterval), 1)
		g.pacers[c] = p
	}
	return p
}

func (g *Gateway) counterFor(c Capability) *atomic.Int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.calls[c]
	if !ok {
		n = &atomic.Int64{}
		g.calls[c] = n
	}
	return n
}

func applyJitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	jitter := (rand.Float64()*2 - 1) * factor * float64(d)
	return d + time.Duration(jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
