package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

// Verdict tells the executor how to treat one failed attempt.
type Verdict struct {
	Retryable bool
	// Trips marks failures that count against the circuit breaker.
	Trips bool
}

type Classifier func(err error) Verdict

// Observer receives retry and breaker events, typically to feed metrics.
type Observer interface {
	ObserveRetry(operation string, attempt int)
	ObserveBreakerState(operation string, state string)
}

type Option func(*Executor)

func WithObserver(observer Observer) Option {
	return func(e *Executor) {
		e.observer = observer
	}
}

type Executor struct {
	cfg      Config
	observer Observer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config, opts ...Option) *Executor {
	e := &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Call runs fn under retry and the per-operation breaker and returns its value.
// An open breaker surfaces as domain.ErrTemporary.
func Call[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error), classify Classifier) (T, error) {
	var zero T
	if fn == nil {
		return zero, fmt.Errorf("resilience: operation callback is nil")
	}
	if e == nil {
		return fn(ctx)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = ClassifyDefault
	}

	attempt := func() (any, error) {
		return e.retry(ctx, op, func(ctx context.Context) (any, error) {
			return fn(ctx)
		}, classify)
	}

	var (
		out any
		err error
	)
	if e.cfg.BreakerEnabled {
		out, err = e.breaker(op, classify).Execute(attempt)
		if IsCircuitOpen(err) {
			return zero, domain.WrapError(domain.ErrTemporary, op, err)
		}
	} else {
		out, err = attempt()
	}
	if err != nil {
		return zero, err
	}
	value, _ := out.(T)
	return value, nil
}

// Execute is Call for operations without a result.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	_, err := Call(ctx, e, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, classify)
	return err
}

func (e *Executor) retry(
	ctx context.Context,
	operation string,
	fn func(context.Context) (any, error),
	classify Classifier,
) (any, error) {
	wait := e.cfg.RetryInitialBackoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if attempt >= e.cfg.RetryMaxAttempts || !classify(err).Retryable {
			return nil, err
		}

		delay := e.jittered(wait)
		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff_ms", delay.Milliseconds(),
			"error", err,
		)
		if e.observer != nil {
			e.observer.ObserveRetry(operation, attempt)
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, err
			case <-timer.C:
			}
		}
		wait = min(time.Duration(float64(wait)*e.cfg.RetryMultiplier), e.cfg.RetryMaxBackoff)
	}
}

func (e *Executor) jittered(wait time.Duration) time.Duration {
	wait = min(wait, e.cfg.RetryMaxBackoff)
	if e.cfg.RetryJitter <= 0 || wait <= 0 {
		return wait
	}
	spread := float64(wait) * e.cfg.RetryJitter
	return wait - time.Duration(spread) + time.Duration(rand.Float64()*2*spread)
}

func (e *Executor) breaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).Trips
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if e.observer != nil {
				e.observer.ObserveBreakerState(name, to.String())
			}
		},
	})
	e.breakers[operation] = cb
	return cb
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// ClassifyDefault retries only errors already marked temporary. Cancellation never trips.
func ClassifyDefault(err error) Verdict {
	switch {
	case err == nil:
		return Verdict{}
	case errors.Is(err, context.Canceled):
		return Verdict{}
	case errors.Is(err, context.DeadlineExceeded):
		return Verdict{Trips: true}
	case domain.IsKind(err, domain.ErrTemporary):
		return Verdict{Retryable: true, Trips: true}
	default:
		return Verdict{Trips: true}
	}
}

// MarkTemporary wraps err as domain.ErrTemporary when classify considers it retryable.
func MarkTemporary(operation string, err error, classify Classifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classify != nil && classify(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
