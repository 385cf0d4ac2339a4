package adapters

import (
	"context"
	"fmt"
	"time"

	"visaflow/models"
	"visaflow/utils"

	"go.uber.org/zap"
)

// Guard bounds an adapter: every call gets its own timeout, panics become
// unavailable errors and every error comes back as an *AdapterError. A
// discovery that ignores its context is abandoned when the timeout fires. A
// booking never is: the guard waits for it so that at most one booking call
// per request is ever in flight.
type Guard struct {
	inner   Adapter
	timeout time.Duration
	health  HealthReporter
	logger  *zap.Logger
}

// NewGuard wraps inner. health may be nil.
func NewGuard(inner Adapter, timeout time.Duration, health HealthReporter, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Guard{inner: inner, timeout: timeout, health: health, logger: logger}
}

func (g *Guard) ID() string { return g.inner.ID() }

func (g *Guard) DiscoverSlots(ctx context.Context, q models.SlotQuery) ([]models.SlotCandidate, error) {
	return guarded(ctx, g, "discover", true, func(callCtx context.Context) ([]models.SlotCandidate, error) {
		return g.inner.DiscoverSlots(callCtx, q)
	})
}

func (g *Guard) AttemptBooking(ctx context.Context, req models.BookingRequest) (*models.Appointment, error) {
	return guarded(ctx, g, "book", false, func(callCtx context.Context) (*models.Appointment, error) {
		return g.inner.AttemptBooking(callCtx, req)
	})
}

type result[T any] struct {
	val T
	err error
}

func guarded[T any](ctx context.Context, g *Guard, op string, abandon bool, fn func(context.Context) (T, error)) (T, error) {
	id := g.inner.ID()
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				g.logger.Error("adapter panicked", zap.String("adapterID", id), zap.String("operation", op), zap.Any("panic", r))
				var zero T
				done <- result[T]{val: zero, err: NewUnavailableError(id, "adapter fault", fmt.Errorf("panic: %v", r))}
			}
		}()
		v, err := fn(callCtx)
		done <- result[T]{val: v, err: err}
	}()

	var res result[T]
	select {
	case res = <-done:
	case <-callCtx.Done():
		// a result that raced the deadline still wins
		select {
		case res = <-done:
		default:
			if abandon || ctx.Err() != nil {
				res.err = callCtx.Err()
			} else {
				res = awaitLate(ctx, g, id, op, done)
			}
		}
	}

	outcome := "success"
	if res.err != nil {
		ae := Classify(ctx, id, res.err)
		res.err = ae
		outcome = string(ae.Kind)
		var zero T
		res.val = zero
	}
	utils.AdapterCalls.WithLabelValues(id, op, outcome).Inc()
	utils.AdapterLatency.WithLabelValues(id, op).Observe(time.Since(start).Seconds())

	if g.health != nil {
		switch KindOf(res.err) {
		case KindCanceled, KindValidation:
		case KindNoSlots:
			g.health.MarkHealth(id, nil)
		default:
			g.health.MarkHealth(id, res.err)
		}
	}
	return res.val, res.err
}

// awaitLate waits out a call that overran its deadline. A late success is
// kept since the provider did book; a late failure counts as the timeout.
// Only the caller giving up ends the wait early, and that stops the chain.
func awaitLate[T any](ctx context.Context, g *Guard, id, op string, done <-chan result[T]) result[T] {
	g.logger.Warn("adapter overran its deadline, waiting for the call to finish",
		zap.String("adapterID", id), zap.String("operation", op), zap.Duration("timeout", g.timeout))
	select {
	case res := <-done:
		if res.err != nil {
			res.err = fmt.Errorf("%w: %v", context.DeadlineExceeded, res.err)
		} else {
			g.logger.Warn("adapter completed after its deadline", zap.String("adapterID", id), zap.String("operation", op))
		}
		return res
	case <-ctx.Done():
		return result[T]{err: ctx.Err()}
	}
}
