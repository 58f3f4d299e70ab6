package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// errorClass buckets a failed attempt for retry decisions.
type errorClass int

const (
	classTransient errorClass = iota
	classAuth
	classQuota
	classRateLimit
	classTimeout
)

// AuthError marks authentication or permission failures. Never retried.
type AuthError struct {
	Capability Capability
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Capability, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// QuotaError marks exhausted account quota. Never retried.
type QuotaError struct {
	Capability Capability
	Err        error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: quota exceeded: %v", e.Capability, e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// RateLimitError marks a call rejected by a rate limit, either the
// gateway's own window budget or the remote service. Throughput is set
// when the underlying message points at a token/throughput limit rather
// than a connection-rate one, which warrants a longer wait.
type RateLimitError struct {
	Capability Capability
	RetryAfter time.Duration
	Throughput bool
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Capability, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("%s: rate limited: %v", e.Capability, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// TimeoutError marks an attempt that exceeded its deadline.
type TimeoutError struct {
	Capability Capability
	Deadline   time.Duration
	Err        error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Capability, e.Deadline)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

var throughputMarkers = []string{
	"tokens per minute",
	"token rate",
	"tpm",
	"throughput",
	"input size exceeds",
}

var authMarkers = []string{
	"unauthorized",
	"authentication",
	"invalid api key",
	"invalid x-api-key",
	"api key not valid",
	"permission denied",
	"forbidden",
	"401",
	"403",
}

var quotaMarkers = []string{
	"quota",
	"resource exhausted",
	"resource_exhausted",
	"billing",
	"payment required",
	"insufficient credit",
}

var rateMarkers = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"overloaded",
	"429",
}

var timeoutMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
}

// classify maps an attempt error onto the retry taxonomy. Typed errors
// from the clients win over message sniffing.
func classify(err error) errorClass {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return classAuth
	}
	var quotaErr *QuotaError
	if errors.As(err, &quotaErr) {
		return classQuota
	}
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return classRateLimit
	}
	var toErr *TimeoutError
	if errors.As(err, &toErr) {
		return classTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return classQuota
		}
	}
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return classAuth
		}
	}
	for _, m := range rateMarkers {
		if strings.Contains(msg, m) {
			return classRateLimit
		}
	}
	for _, m := range timeoutMarkers {
		if strings.Contains(msg, m) {
			return classTimeout
		}
	}
	return classTransient
}

// throughputLimited reports whether a rate-limit error stems from a
// token/throughput budget instead of a request-count one.
func throughputLimited(err error) bool {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) && rlErr.Throughput {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range throughputMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// retryAfterHint extracts an explicit wait the remote service asked for.
func retryAfterHint(err error) time.Duration {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr.RetryAfter
	}
	return 0
}
