package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"iceflux/internal/core/domain"
	"iceflux/pkg/circuitbreaker"
	apperrors "iceflux/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockMetricPublisher struct {
	mock.Mock
}

func (m *MockMetricPublisher) Publish(ctx context.Context, points []domain.MetricPoint) error {
	args := m.Called(ctx, points)
	return args.Error(0)
}

func testBreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		Enabled:             true,
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Hour,
		MaxRequestsHalfOpen: 1,
	}
}

func TestPublisherWrapper_PassesThroughWhileClosed(t *testing.T) {
	publisher := new(MockMetricPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Twice()

	w := NewPublisherWrapper(publisher, testBreakerConfig(), zap.NewNop().Sugar(), nil)

	assert.NoError(t, w.Publish(context.Background(), nil))
	assert.NoError(t, w.Publish(context.Background(), nil))
	assert.Equal(t, circuitbreaker.StateClosed, w.State())
	publisher.AssertExpectations(t)
}

func TestPublisherWrapper_OpensAfterConsecutiveFailures(t *testing.T) {
	writeErr := apperrors.NewPublishError(errors.New("connection refused"), "influx write failed")
	publisher := new(MockMetricPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(writeErr)

	var transitions []circuitbreaker.State
	w := NewPublisherWrapper(publisher, testBreakerConfig(), zap.NewNop().Sugar(),
		func(_, to circuitbreaker.State) { transitions = append(transitions, to) })

	points := []domain.MetricPoint{{Name: domain.MeasurementListenersTotal, Value: 1}}
	assert.Same(t, writeErr, w.Publish(context.Background(), points))
	assert.Same(t, writeErr, w.Publish(context.Background(), points))

	err := w.Publish(context.Background(), points)
	assert.True(t, apperrors.IsPublishError(err))
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)

	publisher.AssertNumberOfCalls(t, "Publish", 2)
	assert.Equal(t, circuitbreaker.StateOpen, w.State())
	assert.Equal(t, []circuitbreaker.State{circuitbreaker.StateOpen}, transitions)
}
