package monitoring

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger is implemented by the InfluxDB publisher.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client redis.UniversalClient, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddInfluxCheck verifies that the metrics store answers pings.
func (h *HealthChecker) AddInfluxCheck(pinger Pinger, timeout time.Duration) {
	h.AddCheck("influxdb", func(ctx context.Context) (bool, error) {
		if err := pinger.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddCycleFreshnessCheck fails once no cycle has succeeded for maxAge.
func (h *HealthChecker) AddCycleFreshnessCheck(tracker *CycleTracker, maxAge time.Duration) {
	h.AddCheck("collector", func(context.Context) (bool, error) {
		if err := tracker.CheckFresh(maxAge); err != nil {
			return false, err
		}
		return true, nil
	}, 0)
}
