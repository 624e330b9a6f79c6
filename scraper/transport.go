// scraper/transport.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type TransportOptions struct {
	Client      *http.Client
	Retries     int
	Concurrency int // max in-flight requests across all sources, 0 = unlimited
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      *slog.Logger
}

// NewTransport layers retries and a global in-flight limit over the client.
// The result is safe to share between all sources.
func NewTransport(opts TransportOptions) (Doer, error) {
	if opts.Client == nil {
		return nil, errors.New("transport: nil http client")
	}
	if opts.Retries < 0 || opts.Concurrency < 0 {
		return nil, errors.New("transport: retries and concurrency must be >= 0")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 300 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 8 * time.Second
	}

	// The limit sits under the retries: a slot is held per attempt, never
	// across a backoff sleep.
	var d Doer = opts.Client
	if opts.Concurrency > 0 {
		d = &limitDoer{next: d, sem: semaphore.NewWeighted(int64(opts.Concurrency))}
	}
	if opts.Retries > 0 {
		d = &retryDoer{
			next:      d,
			retries:   opts.Retries,
			baseDelay: opts.BaseDelay,
			maxDelay:  opts.MaxDelay,
			log:       opts.Logger.With("component", "transport"),
		}
	}
	return d, nil
}

// NewHTTPClient returns the pooled client shared by every source.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}

type limitDoer struct {
	next Doer
	sem  *semaphore.Weighted
}

func (l *limitDoer) Do(req *http.Request) (*http.Response, error) {
	if err := l.sem.Acquire(req.Context(), 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.next.Do(req)
}

type retryDoer struct {
	next      Doer
	retries   int
	baseDelay time.Duration
	maxDelay  time.Duration
	log       *slog.Logger
}

func (r *retryDoer) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error

	for attempt := 0; attempt <= r.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur, err := cloneForRetry(req)
		if err != nil {
			return nil, err
		}

		wait := backoff(r.baseDelay, r.maxDelay, attempt)
		resp, err := r.next.Do(cur)
		switch {
		case err == nil && !retryableStatus(resp.StatusCode):
			return resp, nil
		case err == nil:
			if attempt == r.retries {
				// out of attempts: let the caller see the status
				return resp, nil
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				if ra := retryAfter(resp); ra > 0 {
					wait = ra
				}
			}
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 32<<10))
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("retryable status %d", resp.StatusCode)
			r.log.Warn("retrying request", "url", req.URL.String(), "status", resp.StatusCode,
				"attempt", attempt+1, "max_attempts", r.retries+1)
		default:
			if !retryableError(err) {
				return nil, err
			}
			lastErr = err
			r.log.Warn("retrying request", "url", req.URL.String(), "err", err,
				"attempt", attempt+1, "max_attempts", r.retries+1)
		}

		if attempt < r.retries {
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	d := base << attempt
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(d) * jitter)
}

func retryAfter(resp *http.Response) time.Duration {
	sec, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || sec <= 0 {
		return 0
	}
	return time.Duration(min(sec, 60)) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cloneForRetry(req *http.Request) (*http.Request, error) {
	cloned := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return cloned, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("cannot retry request with body: GetBody is nil")
	}
	b, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("cannot retry request with body: %w", err)
	}
	cloned.Body = b
	return cloned, nil
}
