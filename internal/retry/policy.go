// Package retry classifies failed call outcomes and decides whether and when
// to try again. The policy is pure: it never sleeps or performs I/O, so the
// executor owns all suspension.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"
)

// Kind labels a terminal or retryable failure.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindServerError Kind = "server_error"
	KindTimeout     Kind = "timeout"
	KindConnection  Kind = "connection_error"
	KindParse       Kind = "parse_error"
	KindAborted     Kind = "aborted"
)

const (
	maxRateLimitAttempts = 5
	maxServerAttempts    = 3
	connectionRetryFor   = 30 * time.Second
	connectionInterval   = 2 * time.Second
	jitterFraction       = 0.25
)

// Classify maps a raw call failure to a Kind. status is the HTTP status code,
// zero when the request never produced a response.
func Classify(status int, err error) Kind {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return KindTimeout
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}
	switch {
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	default:
		// Other 4xx responses signal a non-transient request problem,
		// same fail-fast treatment as a malformed body.
		return KindParse
	}
}

// Decision is the verdict for one failed attempt.
type Decision struct {
	Retry bool
	After time.Duration
}

// GiveUp is the terminal decision.
var GiveUp = Decision{}

// Policy computes backoff decisions. Jitter randomness is injectable so tests
// stay deterministic.
type Policy struct {
	jitter func() float64
}

// NewPolicy returns a policy using math/rand jitter.
func NewPolicy() *Policy {
	return &Policy{jitter: rand.Float64}
}

// NewPolicyWithJitter returns a policy with a fixed jitter source in [0,1).
func NewPolicyWithJitter(jitter func() float64) *Policy {
	return &Policy{jitter: jitter}
}

// NextAction decides the follow-up for a failure of the given kind. attempt
// is the 1-based count of attempts made of that kind; elapsed is the time
// since the first attempt of that kind (only connection failures use it).
//
//	rate limited:  5 attempts, exponential from 1s doubling, +0..25% jitter
//	server error:  3 attempts, linear attempt*2s  (timeouts treated the same)
//	connection:    every 2s until 30s has elapsed
//	parse error:   never retried
func (p *Policy) NextAction(kind Kind, attempt int, elapsed time.Duration) Decision {
	switch kind {
	case KindRateLimited:
		if attempt >= maxRateLimitAttempts {
			return GiveUp
		}
		base := time.Duration(1<<uint(attempt-1)) * time.Second
		return Decision{Retry: true, After: base + time.Duration(p.jitter()*jitterFraction*float64(base))}
	case KindServerError, KindTimeout:
		if attempt >= maxServerAttempts {
			return GiveUp
		}
		return Decision{Retry: true, After: time.Duration(attempt) * 2 * time.Second}
	case KindConnection:
		if elapsed > connectionRetryFor {
			return GiveUp
		}
		return Decision{Retry: true, After: connectionInterval}
	default:
		return GiveUp
	}
}
