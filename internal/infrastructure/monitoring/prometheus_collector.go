package monitoring

import (
	"time"

	"iceflux/internal/core/domain"
	"iceflux/pkg/circuitbreaker"
	"iceflux/pkg/version"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultSkipped = "skipped"
)

// PrometheusCollector exposes the bridge's own health as Prometheus metrics. It receives
// cycle outcomes as a ports.CycleObserver.
type PrometheusCollector struct {
	// Counters
	cyclesTotal          *prometheus.CounterVec
	cycleFailuresTotal   *prometheus.CounterVec
	pointsPublishedTotal prometheus.Counter

	// Histograms
	cycleDuration prometheus.Histogram

	// Last successful cycle
	lastSuccessTimestamp prometheus.Gauge
	mounts               prometheus.Gauge
	skippedMounts        prometheus.Gauge
	listeners            prometheus.Gauge

	circuitState prometheus.Gauge
	buildInfo    *prometheus.GaugeVec
}

// NewPrometheusCollector registers all metrics with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	p := &PrometheusCollector{
		cyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "iceflux_cycles_total",
			Help: "Total number of collection cycles by result",
		}, []string{"result"}),

		cycleFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "iceflux_cycle_failures_total",
			Help: "Total number of failed collection cycles by failing step",
		}, []string{"step"}),

		pointsPublishedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "iceflux_points_published_total",
			Help: "Total number of metric points written to InfluxDB",
		}),

		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "iceflux_cycle_duration_seconds",
			Help:    "Duration of collection cycles",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		lastSuccessTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "iceflux_last_success_timestamp_seconds",
			Help: "Unix time of the last successful collection cycle",
		}),

		mounts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "iceflux_mounts",
			Help: "Number of mounts reported in the last successful cycle",
		}),

		skippedMounts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "iceflux_skipped_mounts",
			Help: "Number of mounts without identifier skipped in the last successful cycle",
		}),

		listeners: factory.NewGauge(prometheus.GaugeOpts{
			Name: "iceflux_listeners",
			Help: "Total listeners reported in the last successful cycle",
		}),

		circuitState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "iceflux_publisher_circuit_state",
			Help: "Publisher circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),

		buildInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "iceflux_build_info",
			Help: "Build information",
		}, []string{"version", "commit"}),
	}

	p.buildInfo.WithLabelValues(version.Version, version.Commit).Set(1)
	return p
}

func (p *PrometheusCollector) CycleSucceeded(report domain.CycleReport) {
	p.cyclesTotal.WithLabelValues(resultSuccess).Inc()
	p.pointsPublishedTotal.Add(float64(report.Points))
	p.cycleDuration.Observe(report.Duration.Seconds())

	p.lastSuccessTimestamp.Set(float64(report.Timestamp.UnixNano()) / float64(time.Second))
	p.mounts.Set(float64(report.Mounts))
	p.skippedMounts.Set(float64(report.SkippedMounts))
	p.listeners.Set(float64(report.TotalListeners))
}

func (p *PrometheusCollector) CycleSkipped(domain.CycleReport) {
	p.cyclesTotal.WithLabelValues(resultSkipped).Inc()
}

func (p *PrometheusCollector) CycleFailed(step domain.CycleStep, _ error, duration time.Duration) {
	p.cyclesTotal.WithLabelValues(resultFailure).Inc()
	p.cycleFailuresTotal.WithLabelValues(string(step)).Inc()
	p.cycleDuration.Observe(duration.Seconds())
}

// RecordCircuitState matches the signature of the publisher wrapper's state callback.
func (p *PrometheusCollector) RecordCircuitState(_, to circuitbreaker.State) {
	p.circuitState.Set(float64(to))
}
