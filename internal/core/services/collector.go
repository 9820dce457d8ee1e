package services

import (
	"context"
	"time"

	"iceflux/internal/core/domain"
	"iceflux/internal/core/ports"
	apperrors "iceflux/pkg/errors"
	"iceflux/pkg/logger"
	"iceflux/pkg/tracing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ScheduleFixedDelay = "fixed-delay"
	ScheduleFixedRate  = "fixed-rate"

	OnErrorExit     = "exit"
	OnErrorContinue = "continue"
)

// CollectorConfig controls pacing and failure handling of the collection loop.
type CollectorConfig struct {
	Interval  time.Duration
	Schedule  string
	OnError   string
	HostLabel string
}

// CollectorOption customises a Collector.
type CollectorOption func(*Collector)

// WithLease makes every cycle conditional on holding the given lease.
func WithLease(lease ports.CycleLease) CollectorOption {
	return func(c *Collector) { c.lease = lease }
}

// WithObserver registers a receiver for cycle outcomes.
func WithObserver(observer ports.CycleObserver) CollectorOption {
	return func(c *Collector) { c.observer = observer }
}

// WithClock replaces the wall clock used for point timestamps and durations.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) { c.now = now }
}

// WithCycleIDs replaces the cycle id generator.
func WithCycleIDs(next func() string) CollectorOption {
	return func(c *Collector) { c.newID = next }
}

// Collector drives fetch, parse, map and publish once per interval.
type Collector struct {
	config    CollectorConfig
	fetcher   ports.StatusFetcher
	parser    ports.StatusParser
	mapper    *Mapper
	publisher ports.MetricPublisher
	lease     ports.CycleLease
	observer  ports.CycleObserver
	log       *logger.ContextLogger
	now       func() time.Time
	newID     func() string
}

func NewCollector(
	config CollectorConfig,
	fetcher ports.StatusFetcher,
	parser ports.StatusParser,
	mapper *Mapper,
	publisher ports.MetricPublisher,
	log *zap.SugaredLogger,
	opts ...CollectorOption,
) *Collector {
	if config.Schedule == "" {
		config.Schedule = ScheduleFixedDelay
	}
	if config.OnError == "" {
		config.OnError = OnErrorExit
	}

	c := &Collector{
		config:    config,
		fetcher:   fetcher,
		parser:    parser,
		mapper:    mapper,
		publisher: publisher,
		log:       logger.NewContextLogger(log),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the first cycle immediately and then one cycle per interval until ctx is
// cancelled. Cancellation is only observed between cycles and while waiting; it returns
// nil. Under the exit policy the first cycle error is returned.
func (c *Collector) Run(ctx context.Context) error {
	base := c.log.Base()
	base.Infow("Collector started",
		"interval", c.config.Interval,
		"schedule", c.config.Schedule,
		"on_error", c.config.OnError,
		"host", c.config.HostLabel,
	)

	for {
		if ctx.Err() != nil {
			base.Infow("Collector stopped")
			return nil
		}

		started := c.now()
		if _, err := c.RunCycle(ctx); err != nil && c.config.OnError != OnErrorContinue {
			base.Errorw("Collector stopping after failed cycle", "error", err)
			return err
		}

		if err := c.wait(ctx, c.nextDelay(started, c.now())); err != nil {
			base.Infow("Collector stopped")
			return nil
		}
	}
}

// RunCycle performs one complete collection cycle. Nothing from a previous cycle is
// consulted; the returned report is informational only.
func (c *Collector) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	started := c.now()
	report := domain.CycleReport{ID: c.newID()}

	ctx = logger.WithCycleID(ctx, report.ID)
	ctx, span := tracing.TraceCycle(ctx, report.ID, c.config.HostLabel)
	defer span.End()
	log := c.log.WithContext(ctx)

	// In-flight network calls are bounded by their own timeouts, not by shutdown.
	ioCtx := context.WithoutCancel(ctx)

	if c.lease != nil {
		held, err := c.acquireLease(ioCtx)
		if err != nil {
			// No confirmed lease, no cycle.
			log.Warnw("Cycle lease check failed, skipping cycle", "error", err)
			c.failed(ctx, domain.StepLease, err, started)
			return report, nil
		}
		if !held {
			report.Skipped = true
			report.Duration = c.now().Sub(started)
			log.Infow("Cycle skipped", "reason", domain.ErrLeaseHeld.Error())
			if c.observer != nil {
				c.observer.CycleSkipped(report)
			}
			return report, nil
		}
	}

	raw, err := c.fetch(ioCtx)
	if err != nil {
		return report, c.fail(ctx, log, domain.StepFetch, err, started)
	}

	snapshot, err := c.parse(ctx, raw)
	if err != nil {
		return report, c.fail(ctx, log, domain.StepParse, err, started)
	}

	report.Timestamp = c.now()
	batch, err := c.mapSnapshot(ctx, snapshot, report.Timestamp.UnixNano())
	if err != nil {
		return report, c.fail(ctx, log, domain.StepMap, err, started)
	}

	if err := c.publish(ioCtx, batch.Points); err != nil {
		return report, c.fail(ctx, log, domain.StepPublish, err, started)
	}

	report.Mounts = snapshot.Len()
	report.Points = len(batch.Points)
	report.SkippedMounts = batch.SkippedMounts
	report.TotalListeners = batch.TotalListeners
	report.Duration = c.now().Sub(started)

	tracing.AddSpanAttributes(ctx,
		tracing.MountCountKey.Int(report.Mounts),
		tracing.PointCountKey.Int(report.Points),
		tracing.ListenersTotalKey.Int64(report.TotalListeners),
	)

	fields := []interface{}{
		"mounts", report.Mounts,
		"points", report.Points,
		"listeners_total", report.TotalListeners,
		"timestamp", report.Timestamp.UnixNano(),
		"duration", report.Duration,
	}
	if report.SkippedMounts > 0 {
		fields = append(fields, "skipped_mounts", report.SkippedMounts)
	}
	log.Infow("Cycle completed", fields...)

	if c.observer != nil {
		c.observer.CycleSucceeded(report)
	}
	return report, nil
}

func (c *Collector) acquireLease(ctx context.Context) (bool, error) {
	ctx, span := tracing.TraceStep(ctx, string(domain.StepLease))
	defer span.End()

	held, err := c.lease.Acquire(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return held, err
}

func (c *Collector) fetch(ctx context.Context) (string, error) {
	ctx, span := tracing.TraceStep(ctx, string(domain.StepFetch))
	defer span.End()

	raw, err := c.fetcher.FetchStatus(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return "", err
	}
	c.log.WithContext(ctx).Debugw("Status document fetched", "bytes", len(raw))
	return raw, nil
}

func (c *Collector) parse(ctx context.Context, raw string) (domain.StatusSnapshot, error) {
	ctx, span := tracing.TraceStep(ctx, string(domain.StepParse))
	defer span.End()

	snapshot, err := c.parser.Parse(raw)
	if err != nil {
		tracing.RecordError(ctx, err)
		return domain.StatusSnapshot{}, err
	}
	tracing.AddSpanAttributes(ctx, tracing.MountCountKey.Int(snapshot.Len()))
	return snapshot, nil
}

func (c *Collector) mapSnapshot(ctx context.Context, snapshot domain.StatusSnapshot, timestamp int64) (MappedBatch, error) {
	ctx, span := tracing.TraceStep(ctx, string(domain.StepMap))
	defer span.End()

	c.log.WithContext(ctx).Debugw("Creating measurements", "timestamp", timestamp, "mounts", snapshot.Len())
	batch, err := c.mapper.Map(snapshot, c.config.HostLabel, timestamp)
	if err != nil {
		tracing.RecordError(ctx, err)
		return MappedBatch{}, err
	}
	tracing.AddSpanAttributes(ctx, tracing.PointCountKey.Int(len(batch.Points)))
	return batch, nil
}

func (c *Collector) publish(ctx context.Context, points []domain.MetricPoint) error {
	ctx, span := tracing.TraceStep(ctx, string(domain.StepPublish))
	defer span.End()

	if err := c.publisher.Publish(ctx, points); err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

func (c *Collector) fail(ctx context.Context, log *zap.SugaredLogger, step domain.CycleStep, err error, started time.Time) error {
	fields := []interface{}{"step", step, "error", err}
	if appErr := apperrors.GetAppError(err); appErr != nil {
		fields = append(fields, "code", appErr.Code)
		if appErr.Kind != "" {
			fields = append(fields, "kind", appErr.Kind)
		}
		if appErr.StatusCode != 0 {
			fields = append(fields, "status_code", appErr.StatusCode)
		}
	}
	log.Errorw("Cycle failed", fields...)

	c.failed(ctx, step, err, started)
	return err
}

func (c *Collector) failed(ctx context.Context, step domain.CycleStep, err error, started time.Time) {
	tracing.RecordError(ctx, err)
	if c.observer != nil {
		c.observer.CycleFailed(step, err, c.now().Sub(started))
	}
}

// nextDelay returns the pause before the next cycle. Fixed-delay waits a full interval
// after the cycle ends; fixed-rate keeps the cadence of cycle starts and never waits when
// a cycle overran.
func (c *Collector) nextDelay(started, finished time.Time) time.Duration {
	if c.config.Schedule != ScheduleFixedRate {
		return c.config.Interval
	}
	remaining := c.config.Interval - finished.Sub(started)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *Collector) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
