package ports

import (
	"context"
	"time"

	"iceflux/internal/core/domain"
)

// StatusFetcher reads the raw mount-list document from the media server.
type StatusFetcher interface {
	FetchStatus(ctx context.Context) (string, error)
}

// StatusParser decodes a raw status document.
type StatusParser interface {
	Parse(raw string) (domain.StatusSnapshot, error)
}

// MetricPublisher writes all points of one cycle as a single batch.
type MetricPublisher interface {
	Publish(ctx context.Context, points []domain.MetricPoint) error
}

// CycleLease grants the right to run the next cycle when several bridge instances
// share one metrics store.
type CycleLease interface {
	// Acquire returns true when this instance holds the lease, renewing it if already held.
	Acquire(ctx context.Context) (bool, error)
}

// CycleObserver is notified about every cycle outcome. Implementations must not block.
type CycleObserver interface {
	CycleSucceeded(report domain.CycleReport)
	CycleSkipped(report domain.CycleReport)
	CycleFailed(step domain.CycleStep, err error, duration time.Duration)
}
