package scraper

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	crerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/volleystats/parser/internal/platform/logging"
	"github.com/volleystats/parser/internal/platform/resilience"
)

// ErrNotFound marks a page the upstream reports as permanently absent.
// Retrying never helps; callers tombstone the entity instead.
var ErrNotFound = crerr.New("page not found")

var errPageTransient = crerr.New("transient page failure")

const (
	defaultTimeout    = 20 * time.Second
	defaultUserAgent  = "volleystats-parser/1.0"
	maxBodyBytes      = 6 << 20
	maxAttemptDelay   = 64 * time.Second
	unboundedAttempts = 0
)

type FetcherConfig struct {
	HTTPClient *http.Client
	// MaxAttempts bounds the retry loop. Zero or negative means retry
	// forever, which refresh jobs rely on.
	MaxAttempts    int
	UserAgent      string
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Fetcher downloads catalog pages and parses them into goquery documents.
// Every non-404 failure is retried; a 404 surfaces immediately as
// ErrNotFound.
type Fetcher struct {
	httpClient     *http.Client
	maxAttempts    int
	userAgent      string
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := &http.Client{Timeout: defaultTimeout}
	if cfg.HTTPClient != nil {
		clone := *cfg.HTTPClient
		httpClient = &clone
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}
	if _, ok := httpClient.Transport.(*otelhttp.Transport); !ok {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		httpClient.Transport = otelhttp.NewTransport(base)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Fetcher{
		httpClient:     httpClient,
		maxAttempts:    cfg.MaxAttempts,
		userAgent:      userAgent,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(cfg.CircuitBreaker),
		circuitEnabled: cfg.CircuitBreaker.Enabled,
	}
}

type attemptBudgetKey struct{}

// WithAttemptBudget caps the retry loop for requests issued under ctx,
// overriding the fetcher's configured MaxAttempts. Discovery probes sweep ids
// that may never resolve, so they carry a finite budget while refresh jobs
// keep retrying.
func WithAttemptBudget(ctx context.Context, attempts int) context.Context {
	if attempts <= 0 {
		return ctx
	}
	return context.WithValue(ctx, attemptBudgetKey{}, attempts)
}

// AttemptBudget reports the per-request attempt cap carried by ctx, if any.
func AttemptBudget(ctx context.Context) (int, bool) {
	budget, ok := ctx.Value(attemptBudgetKey{}).(int)
	return budget, ok
}

// Document fetches the page at url and parses the HTML body.
func (f *Fetcher) Document(ctx context.Context, url string) (*goquery.Document, error) {
	raw, err := f.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, crerr.Wrapf(err, "parse html url=%s", url)
	}
	return doc, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	maxAttempts := f.maxAttempts
	if budget, ok := AttemptBudget(ctx); ok {
		maxAttempts = budget
	}

	var lastErr error
	for attempt := 0; maxAttempts <= unboundedAttempts || attempt < maxAttempts; attempt++ {
		if f.circuitEnabled {
			if err := f.breaker.Allow(); err != nil {
				return nil, err
			}
		}

		raw, status, err := f.attempt(ctx, url)
		if f.circuitEnabled {
			f.breaker.Record(err)
		}
		if err == nil {
			return raw, nil
		}
		if stderrors.Is(err, ErrNotFound) {
			return nil, err
		}
		lastErr = err
		if maxAttempts > unboundedAttempts && attempt+1 >= maxAttempts {
			break
		}

		delay := attemptDelay(attempt, status)
		f.logger.WarnContext(ctx, "page fetch failed",
			"url", url,
			"attempt", attempt+1,
			"status", status,
			"retry_in", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = crerr.New("page request failed")
	}
	return nil, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, crerr.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: send request: %v", errPageTransient, err)
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response body: %v", errPageTransient, readErr)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp.StatusCode, fmt.Errorf("%w: url=%s", ErrNotFound, url)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, resp.StatusCode, nil
	default:
		return nil, resp.StatusCode, fmt.Errorf("%w: status=%d", errPageTransient, resp.StatusCode)
	}
}

// attemptDelay grows exponentially with the attempt number, except a 500
// which the upstream throws sporadically under load and clears on an
// immediate retry.
func attemptDelay(attempt, status int) time.Duration {
	if status == http.StatusInternalServerError {
		return 0
	}
	if attempt > 6 {
		return maxAttemptDelay
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > maxAttemptDelay {
		delay = maxAttemptDelay
	}
	return delay
}

// IsNotFound reports whether err stems from a permanently absent page.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsTransient reports whether err would have been retried given more
// attempts.
func IsTransient(err error) bool {
	return stderrors.Is(err, errPageTransient)
}
