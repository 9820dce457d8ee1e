package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iceflux/internal/core/ports"
	"iceflux/internal/core/services"
	httphandlers "iceflux/internal/handlers/http"
	"iceflux/internal/infrastructure/icecast"
	"iceflux/internal/infrastructure/influx"
	"iceflux/internal/infrastructure/monitoring"
	redisinfra "iceflux/internal/infrastructure/redis"
	"iceflux/internal/infrastructure/reliability"
	"iceflux/pkg/config"
	"iceflux/pkg/distributed"
	"iceflux/pkg/logger"
	"iceflux/pkg/tracing"
	"iceflux/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const checkTimeout = 2 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(config.LocatePath())
	if err != nil {
		boot, _ := logger.New("info", "json")
		boot.Sugar().Errorw("Invalid configuration", "error", err)
		logger.Sync(boot)
		return 1
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync(zapLogger)
	log := zapLogger.Sugar()

	log.Infow("Starting iceflux",
		"version", version.Version,
		"commit", version.Commit,
		"icecast", cfg.IcecastBaseURL(),
		"influx", cfg.InfluxURL(),
		"database", cfg.Influx.Database,
	)

	tp, err := tracing.Init(cfg.Tracing)
	if err != nil {
		log.Errorw("Failed to initialise tracing", "error", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warnw("Error flushing traces", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Errorw("iceflux stopped with error", "error", err)
		return 1
	}
	log.Info("iceflux stopped")
	return 0
}

func serve(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	fetcher, err := icecast.NewFetcher(icecast.FetcherConfig{
		BaseURL:           cfg.IcecastBaseURL(),
		User:              cfg.Icecast.User,
		Password:          cfg.Icecast.Password,
		StatusPath:        cfg.Icecast.StatusPath,
		Timeout:           cfg.Icecast.Timeout,
		RequestsPerSecond: cfg.Icecast.RequestsPerSecond,
		Retry:             cfg.Icecast.Retry,
	}, log)
	if err != nil {
		return err
	}

	publisher, err := influx.NewPublisher(influx.Config{
		URL:      cfg.InfluxURL(),
		User:     cfg.Influx.User,
		Password: cfg.Influx.Password,
		Database: cfg.Influx.Database,
		Timeout:  cfg.Influx.Timeout,
	}, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Self-monitoring
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prometheusCollector := monitoring.NewPrometheusCollector(registry)
	tracker := monitoring.NewCycleTracker(nil)

	health := monitoring.NewHealthChecker()
	health.AddInfluxCheck(publisher, checkTimeout)
	health.AddCycleFreshnessCheck(tracker, time.Duration(cfg.Monitoring.StaleAfterIntervals)*cfg.Collector.Interval)

	var metricPublisher ports.MetricPublisher = publisher
	if cfg.CircuitBreaker.Enabled {
		metricPublisher = reliability.NewPublisherWrapper(publisher, cfg.CircuitBreaker, log,
			prometheusCollector.RecordCircuitState)
	}

	opts := []services.CollectorOption{
		services.WithObserver(monitoring.Observers{tracker, prometheusCollector}),
	}

	var lease *distributed.Lease
	if cfg.Redis.Enabled {
		client, err := redisinfra.NewRedisClient(ctx, redisinfra.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, log)
		if err != nil {
			return err
		}
		defer redisinfra.CloseRedisClient(client)

		lease = distributed.NewLease(client, cfg.Redis.LeaseKey, cfg.LeaseTTL())
		opts = append(opts, services.WithLease(lease))
		health.AddRedisCheck(client, checkTimeout)
		log.Infow("Cycle lease enabled", "key", lease.Key(), "holder", lease.Holder(), "ttl", cfg.LeaseTTL())
	}

	collector := services.NewCollector(
		services.CollectorConfig{
			Interval:  cfg.Collector.Interval,
			Schedule:  cfg.Collector.Schedule,
			OnError:   cfg.Collector.OnError,
			HostLabel: cfg.HostLabel(),
		},
		fetcher,
		icecast.NewParser(),
		services.NewMapper(services.MissingMountPolicy(cfg.Collector.MissingMount)),
		metricPublisher,
		log,
		opts...,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return collector.Run(gctx)
	})

	if cfg.Server.Enabled {
		var metrics http.Handler
		if cfg.Monitoring.PrometheusEnabled {
			metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
		}

		if cfg.Logging.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		handler := httphandlers.NewOpsHandler(health, tracker, metrics, checkTimeout)

		srv := &http.Server{
			Addr:         cfg.Server.Address,
			Handler:      httphandlers.NewRouter(handler, log),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		g.Go(func() error {
			log.Infow("Starting ops server", "address", cfg.Server.Address)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Errorw("Error during server shutdown", "error", err)
				if closeErr := srv.Close(); closeErr != nil {
					log.Errorw("Error force closing server", "error", closeErr)
				}
			}
			return nil
		})
	}

	err = g.Wait()

	if lease != nil {
		releaseCtx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		if relErr := lease.Release(releaseCtx); relErr != nil && !errors.Is(relErr, distributed.ErrNotHeld) {
			log.Warnw("Failed to release cycle lease", "error", relErr)
		}
	}

	return err
}
