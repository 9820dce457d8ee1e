package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"iceflux/pkg/circuitbreaker"
	apperrors "iceflux/pkg/errors"
	"iceflux/pkg/retry"
	"iceflux/pkg/tracing"
	"iceflux/pkg/validation"

	"gopkg.in/yaml.v2"
)

const (
	ScheduleFixedDelay = "fixed-delay"
	ScheduleFixedRate  = "fixed-rate"

	OnErrorExit     = "exit"
	OnErrorContinue = "continue"

	MissingMountFail = "fail"
	MissingMountSkip = "skip"
)

// ConfigPathEnv names the environment variable holding an explicit config file path.
const ConfigPathEnv = "ICEFLUX_CONFIG"

var defaultConfigPaths = []string{
	"configs/config.yaml",
	"/etc/iceflux/config.yaml",
	"config.yaml",
}

type Config struct {
	Icecast struct {
		Scheme            string        `yaml:"scheme"`
		Host              string        `yaml:"host"`
		Port              int           `yaml:"port"`
		User              string        `yaml:"user"`
		Password          string        `yaml:"password"`
		HostLabel         string        `yaml:"host_label"` // tag value, defaults to host
		StatusPath        string        `yaml:"status_path"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
		Retry             retry.Config  `yaml:"retry"`
	} `yaml:"icecast"`

	Influx struct {
		Scheme   string        `yaml:"scheme"`
		Host     string        `yaml:"host"`
		Port     int           `yaml:"port"`
		User     string        `yaml:"user"`
		Password string        `yaml:"password"`
		Database string        `yaml:"database"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"influx"`

	Collector struct {
		Interval     time.Duration `yaml:"interval"`
		Schedule     string        `yaml:"schedule"`
		OnError      string        `yaml:"on_error"`
		MissingMount string        `yaml:"missing_mount"`
	} `yaml:"collector"`

	CircuitBreaker circuitbreaker.Config `yaml:"circuit_breaker"`

	Server struct {
		Enabled         bool          `yaml:"enabled"`
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		// Readiness fails when no cycle succeeded within this many intervals.
		StaleAfterIntervals int `yaml:"stale_after_intervals"`
	} `yaml:"monitoring"`

	Tracing tracing.Config `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Address  string        `yaml:"address"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		PoolSize int           `yaml:"pool_size"`
		LeaseKey string        `yaml:"lease_key"`
		LeaseTTL time.Duration `yaml:"lease_ttl"` // 0 = 2 * collector.interval
	} `yaml:"redis"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Icecast
	if err := validation.ValidateScheme(c.Icecast.Scheme, "icecast.scheme (ICECAST_SCHEME)"); err != nil {
		return err
	}
	if err := validation.ValidateHost(c.Icecast.Host, "icecast.host (ICECAST_HOST)"); err != nil {
		return err
	}
	if err := validation.ValidatePort(c.Icecast.Port, "icecast.port (ICECAST_PORT)"); err != nil {
		return err
	}
	if err := validation.ValidateNonEmptyString(c.Icecast.User, "icecast.user (ICECAST_USER)"); err != nil {
		return err
	}
	if err := validation.ValidateNonEmptyString(c.Icecast.Password, "icecast.password (ICECAST_PASSWORD)"); err != nil {
		return err
	}
	if err := validation.ValidateNonEmptyString(c.Icecast.StatusPath, "icecast.status_path"); err != nil {
		return err
	}
	if c.Icecast.Timeout <= 0 {
		return fmt.Errorf("icecast.timeout must be > 0")
	}
	if c.Icecast.RequestsPerSecond < 0 {
		return fmt.Errorf("icecast.requests_per_second must be >= 0")
	}
	if c.Icecast.Retry.Enabled {
		if c.Icecast.Retry.MaxAttempts <= 0 {
			return fmt.Errorf("icecast.retry.max_attempts must be > 0 when retry is enabled")
		}
		if c.Icecast.Retry.InitialDelay <= 0 {
			return fmt.Errorf("icecast.retry.initial_delay must be > 0 when retry is enabled")
		}
		if c.Icecast.Retry.Multiplier < 1 {
			return fmt.Errorf("icecast.retry.multiplier must be >= 1 when retry is enabled")
		}
	}

	// Influx
	if err := validation.ValidateScheme(c.Influx.Scheme, "influx.scheme (INFLUX_SCHEME)"); err != nil {
		return err
	}
	if err := validation.ValidateHost(c.Influx.Host, "influx.host (INFLUX_HOST)"); err != nil {
		return err
	}
	if err := validation.ValidatePort(c.Influx.Port, "influx.port (INFLUX_PORT)"); err != nil {
		return err
	}
	if err := validation.ValidateNonEmptyString(c.Influx.User, "influx.user (INFLUX_USER)"); err != nil {
		return err
	}
	if err := validation.ValidateNonEmptyString(c.Influx.Password, "influx.password (INFLUX_PASSWORD)"); err != nil {
		return err
	}
	if err := validation.ValidateNonEmptyString(c.Influx.Database, "influx.database (INFLUX_DATABASE)"); err != nil {
		return err
	}
	if c.Influx.Timeout <= 0 {
		return fmt.Errorf("influx.timeout must be > 0")
	}

	// Collector
	if c.Collector.Interval <= 0 {
		return fmt.Errorf("collector.interval must be > 0")
	}
	if err := validation.ValidateOneOf(c.Collector.Schedule, "collector.schedule", ScheduleFixedDelay, ScheduleFixedRate); err != nil {
		return err
	}
	if err := validation.ValidateOneOf(c.Collector.OnError, "collector.on_error", OnErrorExit, OnErrorContinue); err != nil {
		return err
	}
	if err := validation.ValidateOneOf(c.Collector.MissingMount, "collector.missing_mount", MissingMountFail, MissingMountSkip); err != nil {
		return err
	}

	// Circuit breaker
	if c.CircuitBreaker.Enabled {
		if c.Collector.OnError != OnErrorContinue {
			return fmt.Errorf("circuit_breaker.enabled requires collector.on_error=%s", OnErrorContinue)
		}
		if c.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuit_breaker.failure_threshold must be > 0")
		}
		if c.CircuitBreaker.SuccessThreshold <= 0 {
			return fmt.Errorf("circuit_breaker.success_threshold must be > 0")
		}
		if c.CircuitBreaker.Timeout <= 0 {
			return fmt.Errorf("circuit_breaker.timeout must be > 0")
		}
		if c.CircuitBreaker.MaxRequestsHalfOpen <= 0 {
			return fmt.Errorf("circuit_breaker.max_requests_half_open must be > 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Address == "" {
			return fmt.Errorf("server.address must not be empty when server.enabled=true")
		}
		if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
			return fmt.Errorf("server timeouts must be > 0")
		}
	}

	// Monitoring
	if c.Monitoring.StaleAfterIntervals <= 0 {
		return fmt.Errorf("monitoring.stale_after_intervals must be > 0")
	}

	// Tracing
	if c.Tracing.Enabled {
		if err := validation.ValidateURL(c.Tracing.JaegerURL, "tracing.jaeger_url"); err != nil {
			return err
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.LeaseKey == "" {
			return fmt.Errorf("redis.lease_key must not be empty when redis.enabled=true")
		}
		if c.Redis.LeaseTTL < 0 {
			return fmt.Errorf("redis.lease_ttl must be >= 0")
		}
	}

	return nil
}

// Load reads configuration from an optional YAML file, applies defaults and environment
// overrides, and validates the result. Every failure is a CONFIG_INVALID AppError.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
			// environment only
		case err != nil:
			return nil, apperrors.WrapConfigError(err, fmt.Sprintf("failed to read config file %s", configPath))
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, apperrors.WrapConfigError(err, "failed to unmarshal config yaml")
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, apperrors.WrapConfigError(err, "invalid environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.WrapConfigError(err, "invalid configuration")
	}
	return cfg, nil
}

// LocatePath returns ICEFLUX_CONFIG when set, otherwise the first default path that
// exists, otherwise "".
func LocatePath() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DefaultConfig returns configuration with sane defaults. Connection settings for the
// media server and the metrics store have no defaults and must be supplied.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Icecast.Scheme = "http"
	cfg.Icecast.StatusPath = "admin/listmounts"
	cfg.Icecast.Timeout = 10 * time.Second
	cfg.Icecast.Retry = retry.DefaultConfig()

	cfg.Influx.Scheme = "http"
	cfg.Influx.Timeout = 10 * time.Second

	cfg.Collector.Interval = 30 * time.Second
	cfg.Collector.Schedule = ScheduleFixedDelay
	cfg.Collector.OnError = OnErrorExit
	cfg.Collector.MissingMount = MissingMountFail

	cfg.CircuitBreaker = circuitbreaker.DefaultConfig()

	cfg.Server.Enabled = true
	cfg.Server.Address = ":9105"
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second
	cfg.Server.ShutdownTimeout = 5 * time.Second

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.StaleAfterIntervals = 3

	cfg.Tracing = tracing.DefaultConfig()

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 4
	cfg.Redis.LeaseKey = "iceflux:cycle-lease"

	return cfg
}

func (c *Config) applyEnvOverrides() error {
	setString(&c.Icecast.Scheme, "ICECAST_SCHEME")
	setString(&c.Icecast.Host, "ICECAST_HOST")
	setString(&c.Icecast.User, "ICECAST_USER")
	setString(&c.Icecast.Password, "ICECAST_PASSWORD")
	setString(&c.Icecast.HostLabel, "ICECAST_HOST_LABEL")
	if err := setPort(&c.Icecast.Port, "ICECAST_PORT"); err != nil {
		return err
	}

	setString(&c.Influx.Scheme, "INFLUX_SCHEME")
	setString(&c.Influx.Host, "INFLUX_HOST")
	setString(&c.Influx.User, "INFLUX_USER")
	setString(&c.Influx.Password, "INFLUX_PASSWORD")
	setString(&c.Influx.Database, "INFLUX_DATABASE")
	if err := setPort(&c.Influx.Port, "INFLUX_PORT"); err != nil {
		return err
	}

	setString(&c.Collector.OnError, "ICEFLUX_ON_ERROR")
	setString(&c.Logging.Level, "ICEFLUX_LOG_LEVEL")
	setString(&c.Server.Address, "ICEFLUX_SERVER_ADDRESS")
	setString(&c.Redis.Address, "ICEFLUX_REDIS_ADDRESS")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setPort(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be a number between 1 and 65535, got %q", key, v)
	}
	*dst = port
	return nil
}

// HostLabel is the host tag attached to every point.
func (c *Config) HostLabel() string {
	if c.Icecast.HostLabel != "" {
		return c.Icecast.HostLabel
	}
	return c.Icecast.Host
}

// IcecastBaseURL returns scheme://host:port of the media server.
func (c *Config) IcecastBaseURL() string {
	return fmt.Sprintf("%s://%s", c.Icecast.Scheme, net.JoinHostPort(c.Icecast.Host, strconv.Itoa(c.Icecast.Port)))
}

// InfluxURL returns scheme://host:port of the metrics store.
func (c *Config) InfluxURL() string {
	return fmt.Sprintf("%s://%s", c.Influx.Scheme, net.JoinHostPort(c.Influx.Host, strconv.Itoa(c.Influx.Port)))
}

// LeaseTTL returns the effective Redis lease TTL.
func (c *Config) LeaseTTL() time.Duration {
	if c.Redis.LeaseTTL > 0 {
		return c.Redis.LeaseTTL
	}
	return 2 * c.Collector.Interval
}
