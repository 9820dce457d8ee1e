package influx

import (
	"context"
	"fmt"
	"time"

	"iceflux/internal/core/domain"
	apperrors "iceflux/pkg/errors"
	"iceflux/pkg/version"

	client "github.com/influxdata/influxdb1-client/v2"
	"go.uber.org/zap"
)

// Precision of every written point.
const Precision = "ns"

// Config holds InfluxDB connection settings.
type Config struct {
	URL      string // scheme://host:port
	User     string
	Password string
	Database string
	Timeout  time.Duration
}

// Publisher writes metric points to InfluxDB, one batch per call.
type Publisher struct {
	client   client.Client
	database string
	timeout  time.Duration
	logger   *zap.SugaredLogger
}

func NewPublisher(cfg Config, logger *zap.SugaredLogger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, apperrors.NewConfigError("influx url must not be empty")
	}
	if cfg.Database == "" {
		return nil, apperrors.NewConfigError("influx database must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:      cfg.URL,
		Username:  cfg.User,
		Password:  cfg.Password,
		UserAgent: version.UserAgent(),
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return nil, apperrors.WrapConfigError(err, "failed to create influx client")
	}

	return &Publisher{
		client:   c,
		database: cfg.Database,
		timeout:  cfg.Timeout,
		logger:   logger,
	}, nil
}

// Publish sends all points in a single write. Either the whole batch is accepted or a
// publish error is returned; nothing is kept for a later attempt.
func (p *Publisher) Publish(ctx context.Context, points []domain.MetricPoint) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewPublishError(err, "publish cancelled")
	}

	bp, err := p.batch(points)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := p.client.Write(bp); err != nil {
		return apperrors.NewPublishError(err, "influx write failed").
			WithContext("database", p.database).
			WithContext("points", len(points))
	}

	p.logger.Debugw("Points written", "database", p.database, "points", len(points), "duration", time.Since(start))
	return nil
}

func (p *Publisher) batch(points []domain.MetricPoint) (client.BatchPoints, error) {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  p.database,
		Precision: Precision,
	})
	if err != nil {
		return nil, apperrors.NewPublishError(err, "failed to create batch")
	}

	for _, point := range points {
		pt, err := client.NewPoint(
			point.Name,
			point.Tags,
			map[string]interface{}{domain.FieldValue: point.Value},
			time.Unix(0, point.Timestamp),
		)
		if err != nil {
			return nil, apperrors.NewPublishError(err, fmt.Sprintf("invalid point %s", point.Name))
		}
		bp.AddPoint(pt)
	}
	return bp, nil
}

// Ping checks that InfluxDB answers within the configured timeout.
func (p *Publisher) Ping(ctx context.Context) error {
	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("influx ping: %w", context.DeadlineExceeded)
	}

	if _, _, err := p.client.Ping(timeout); err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (p *Publisher) Close() error {
	return p.client.Close()
}
