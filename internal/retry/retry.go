// Package retry executes remote operations with bounded, network-aware
// retries and exponential backoff.
package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/careops/caresync/internal/core/apperr"
	"github.com/careops/caresync/internal/metrics"
	"github.com/careops/caresync/internal/netmon"
)

// MaxDelay caps the backoff delay regardless of exponent.
const MaxDelay = 30 * time.Second

// Policy defines retry behavior for a single Execute call. It is immutable
// per invocation and supplied by the caller.
type Policy struct {
	MaxRetries         int
	BaseDelay          time.Duration
	ExponentialBackoff bool
	NetworkAware       bool

	// ShouldRetry overrides the default budget check for retryable errors.
	// It never sees non-retryable errors; those stop the sequence first.
	ShouldRetry func(err error, attempt int) bool

	// OnRetry is invoked before each backoff delay so callers can surface
	// progress ("retrying attempt N").
	OnRetry func(attempt int, err error)
}

// DefaultPolicy provides sensible defaults for a healthy link.
var DefaultPolicy = Policy{
	MaxRetries:         3,
	BaseDelay:          1 * time.Second,
	ExponentialBackoff: true,
	NetworkAware:       true,
}

// ScaleForQuality applies the quality convention to a base policy: a
// smaller budget with longer delays on a poor link. Call sites share this
// helper instead of duplicating the constants.
func ScaleForQuality(p Policy, q netmon.Quality) Policy {
	if q == netmon.QualityPoor || q == netmon.QualityOffline {
		p.MaxRetries = 1
		p.BaseDelay = 2 * time.Second
	}
	return p
}

// PolicyForQuality returns the default policy scaled for q.
func PolicyForQuality(q netmon.Quality) Policy {
	return ScaleForQuality(DefaultPolicy, q)
}

// Outcome is the final result of an Execute call. Exactly one of Data/Err
// is meaningful; Attempts counts every execution of the operation,
// including the first.
type Outcome[T any] struct {
	Data     T
	Err      error
	Attempts int
}

// ConnectivitySource is the slice of the network monitor the orchestrator
// needs: current state plus transition notifications.
type ConnectivitySource interface {
	Online() bool
	Quality() netmon.Quality
	Subscribe() (<-chan netmon.Event, func())
}

// Orchestrator runs operations with retries. A nil connectivity source
// disables network awareness regardless of policy.
type Orchestrator struct {
	network ConnectivitySource
}

// NewOrchestrator creates an orchestrator bound to the given monitor.
func NewOrchestrator(network ConnectivitySource) *Orchestrator {
	return &Orchestrator{network: network}
}

// PolicyForCurrentQuality builds the quality-scaled policy from the bound
// monitor's current state.
func (o *Orchestrator) PolicyForCurrentQuality() Policy {
	return o.ScalePolicy(DefaultPolicy)
}

// ScalePolicy applies the quality convention to p using the bound
// monitor's current state.
func (o *Orchestrator) ScalePolicy(p Policy) Policy {
	if o.network == nil {
		return p
	}
	return ScaleForQuality(p, o.network.Quality())
}

func (o *Orchestrator) networkAware(p Policy) bool {
	return p.NetworkAware && o.network != nil
}

// Execute runs op under the given policy. It returns a single final
// outcome; partial-attempt errors are never raised to the caller.
//
// Attempts are strictly sequential: attempt N+1 never starts before
// attempt N's result is known. Total attempts never exceed MaxRetries+1.
func Execute[T any](ctx context.Context, o *Orchestrator, op func(ctx context.Context) (T, error), p Policy) Outcome[T] {
	var zero T
	var lastErr error

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr)
			}
			if err := o.waitBackoff(ctx, attempt, p); err != nil {
				metrics.RetryAttempts.WithLabelValues("aborted").Inc()
				return Outcome[T]{Data: zero, Err: err, Attempts: attempt}
			}
		}

		data, err := op(ctx)
		if err == nil {
			metrics.RetryAttempts.WithLabelValues("success").Inc()
			return Outcome[T]{Data: data, Attempts: attempt + 1}
		}
		lastErr = err
		metrics.RetryAttempts.WithLabelValues("failure").Inc()

		// Non-retryable classification stops immediately, regardless of
		// remaining budget.
		if !apperr.Retryable(err) {
			slog.Debug("Operation failed with non-retryable error", "error", err, "attempts", attempt+1)
			return Outcome[T]{Data: zero, Err: err, Attempts: attempt + 1}
		}

		// No attempt is made while confirmed offline.
		if o.networkAware(p) && !o.network.Online() {
			return Outcome[T]{
				Data:     zero,
				Err:      apperr.NewNetwork("device is offline", err),
				Attempts: attempt + 1,
			}
		}

		// The budget caps total attempts at MaxRetries+1 no matter what;
		// ShouldRetry can only stop earlier, never extend past it.
		if attempt >= p.MaxRetries {
			metrics.RetriesExhausted.Inc()
			slog.Warn("Retry budget exhausted", "attempts", attempt+1, "error", err)
			return Outcome[T]{Data: zero, Err: err, Attempts: attempt + 1}
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(err, attempt) {
			return Outcome[T]{Data: zero, Err: err, Attempts: attempt + 1}
		}
	}
}

// waitBackoff sleeps for the backoff delay before attempt. A context
// cancellation or a confirmed offline transition aborts the pending retry
// rather than letting it fire.
func (o *Orchestrator) waitBackoff(ctx context.Context, attempt int, p Policy) error {
	if o.networkAware(p) && !o.network.Online() {
		return apperr.NewNetwork("device is offline", nil)
	}

	delay := backoffDelay(attempt, p)

	var offline <-chan netmon.Event
	if o.networkAware(p) {
		ch, cancel := o.network.Subscribe()
		defer cancel()
		offline = ch
		// Re-check after subscribing so a transition between the check
		// above and the subscription is not lost.
		if !o.network.Online() {
			return apperr.NewNetwork("device is offline", nil)
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-offline:
			if !e.Online {
				return apperr.NewNetwork("device went offline during backoff", nil)
			}
			// Reconnect event, keep waiting out the delay
		case <-timer.C:
			return nil
		}
	}
}

// backoffDelay computes the delay before the given attempt (attempt ≥ 1),
// capped at MaxDelay.
func backoffDelay(attempt int, p Policy) time.Duration {
	delay := p.BaseDelay
	if p.ExponentialBackoff {
		delay = time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)))
	}
	if delay > MaxDelay {
		delay = MaxDelay
	}
	return delay
}
