package icecast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "iceflux/pkg/errors"
	"iceflux/pkg/retry"
	"iceflux/pkg/version"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultStatusPath is the Icecast admin endpoint listing every mount with its listeners.
const DefaultStatusPath = "admin/listmounts"

// maxStatusSize caps the status document read into memory (4 MiB).
const maxStatusSize = 4 * 1024 * 1024

// FetcherConfig describes how to reach the Icecast admin interface.
type FetcherConfig struct {
	BaseURL    string // scheme://host:port
	User       string
	Password   string
	StatusPath string
	Timeout    time.Duration
	// RequestsPerSecond limits outgoing status requests; 0 disables the limit.
	RequestsPerSecond float64
	Retry             retry.Config
}

// Fetcher performs authenticated status requests against one Icecast server.
type Fetcher struct {
	client    *http.Client
	statusURL string
	user      string
	password  string
	userAgent string
	limiter   *rate.Limiter
	retry     retry.Config
	logger    *zap.SugaredLogger
}

func NewFetcher(cfg FetcherConfig, logger *zap.SugaredLogger) (*Fetcher, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, apperrors.NewConfigError("icecast base url must not be empty")
	}
	if cfg.User == "" || cfg.Password == "" {
		return nil, apperrors.NewConfigError("icecast credentials must not be empty")
	}
	if cfg.StatusPath == "" {
		cfg.StatusPath = DefaultStatusPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	f := &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		statusURL: strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.StatusPath, "/"),
		user:      cfg.User,
		password:  cfg.Password,
		userAgent: version.UserAgent(),
		retry:     cfg.Retry,
		logger:    logger,
	}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return f, nil
}

// StatusURL returns the full address polled on every cycle.
func (f *Fetcher) StatusURL() string {
	return f.statusURL
}

// FetchStatus returns the body of the status document. Only a 200 response succeeds.
// Transport failures may be retried when configured; status failures never are.
func (f *Fetcher) FetchStatus(ctx context.Context) (string, error) {
	attempt := 0
	return retry.DoWithResult(ctx, f.retry, isTransportError, func() (string, error) {
		attempt++
		body, err := f.fetchOnce(ctx)
		if err != nil && f.retry.Enabled && attempt <= f.retry.MaxAttempts && isTransportError(err) {
			f.logger.Warnw("Status request failed, retrying", "url", f.statusURL, "attempt", attempt, "error", err)
		}
		return body, err
	})
}

func (f *Fetcher) fetchOnce(ctx context.Context) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", apperrors.NewFetchTransportError(fmt.Errorf("rate limit wait: %w", err), f.statusURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.statusURL, nil)
	if err != nil {
		return "", apperrors.NewFetchTransportError(fmt.Errorf("create request: %w", err), f.statusURL)
	}
	req.SetBasicAuth(f.user, f.password)
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperrors.NewFetchTransportError(err, f.statusURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxStatusSize))
		return "", apperrors.NewFetchStatusError(resp.StatusCode, f.statusURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusSize))
	if err != nil {
		return "", apperrors.NewFetchTransportError(fmt.Errorf("read body: %w", err), f.statusURL)
	}
	return string(body), nil
}

func isTransportError(err error) bool {
	appErr := apperrors.GetAppError(err)
	return appErr != nil && appErr.Code == apperrors.ErrCodeFetch && appErr.Kind == apperrors.FetchKindTransport
}
