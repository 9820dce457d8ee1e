package reliability

import (
	"context"
	"errors"

	"iceflux/internal/core/domain"
	"iceflux/internal/core/ports"
	"iceflux/pkg/circuitbreaker"
	apperrors "iceflux/pkg/errors"

	"go.uber.org/zap"
)

// PublisherWrapper guards a MetricPublisher with a circuit breaker. While the circuit is
// open the store is not contacted and the cycle fails with a publish error immediately.
type PublisherWrapper struct {
	publisher      ports.MetricPublisher
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.SugaredLogger
}

// NewPublisherWrapper creates a new wrapper. onStateChange may be nil.
func NewPublisherWrapper(
	publisher ports.MetricPublisher,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
	onStateChange func(from, to circuitbreaker.State),
) *PublisherWrapper {
	wrapper := &PublisherWrapper{
		publisher:      publisher,
		circuitBreaker: circuitbreaker.New(cbConfig),
		logger:         logger,
	}

	wrapper.circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("publisher circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
		if onStateChange != nil {
			onStateChange(from, to)
		}
	})

	return wrapper
}

// Publish forwards the batch unless the circuit is open.
func (w *PublisherWrapper) Publish(ctx context.Context, points []domain.MetricPoint) error {
	err := w.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return w.publisher.Publish(ctx, points)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return apperrors.NewPublishError(err, "publish skipped").
			WithContext("points", len(points))
	}
	return err
}

// State returns the current circuit state.
func (w *PublisherWrapper) State() circuitbreaker.State {
	return w.circuitBreaker.GetState()
}
